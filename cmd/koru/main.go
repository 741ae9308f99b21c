// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"runtime"
	"time"
	"unsafe"

	glm "github.com/go-gl/mathgl/mgl32"
	"github.com/gobuffalo/packr"
	log "github.com/sirupsen/logrus"
	"github.com/veandco/go-sdl2/sdl"

	"github.com/devblok/kpipe/core"
	"github.com/devblok/kpipe/device"
	"github.com/devblok/kpipe/model"
	"github.com/devblok/kpipe/utility/kar"
)

func init() {
	runtime.LockOSThread()
}

// StaticResources are the shaders built into the binary
var StaticResources = packr.NewBox("./shaders")

func newWindow(cfg core.RendererConfiguration) *sdl.Window {
	window, err := sdl.CreateWindow("Koru3D",
		sdl.WINDOWPOS_UNDEFINED,
		sdl.WINDOWPOS_UNDEFINED,
		int32(cfg.ScreenWidth),
		int32(cfg.ScreenHeight),
		sdl.WINDOW_VULKAN)
	if err != nil {
		log.Fatal(err)
	}
	return window
}

// shaderSetup picks the shader stages and where to load them from. An archive
// is tried first, then the shader directory, then the embedded box.
func shaderSetup(cfg core.PipelineConfiguration) ([]core.ShaderStage, core.ShaderSource, func()) {
	var (
		sources core.FallbackSource
		stages  []core.ShaderStage
		closer  = func() {}
	)

	if cfg.ShaderArchive != "" {
		if archive, err := kar.OpenFile(cfg.ShaderArchive); err != nil {
			log.WithFields(log.Fields{
				"archive": cfg.ShaderArchive,
				"error":   err,
			}).Warn("shader archive could not be opened")
		} else {
			sources = append(sources, core.ArchiveSource{Archive: archive})
			stages = core.ShaderStagesFromNames(archive.Names(), cfg.ShaderName)
			closer = func() { archive.Close() }
		}
	}

	sources = append(sources, core.DirectorySource{Dir: cfg.ShaderDirectory})
	if len(stages) == 0 {
		if found, err := core.ShaderStagesFromDirectory(cfg.ShaderDirectory, cfg.ShaderName); err == nil {
			stages = found
		}
	}

	sources = append(sources, core.BoxSource{Box: StaticResources})
	if len(stages) == 0 {
		stages = core.ShaderStagesFromNames(StaticResources.List(), cfg.ShaderName)
	}
	return stages, sources, closer
}

func main() {
	configuration, err := core.LoadConfiguration(".env")
	if err != nil {
		log.Fatal(err)
	}
	log.SetLevel(configuration.LogLevel)

	if err := sdl.Init(sdl.INIT_VIDEO | sdl.INIT_EVENTS); err != nil {
		log.Fatal(err)
	}
	defer sdl.Quit()

	if err := sdl.VulkanLoadLibrary(""); err != nil {
		log.Fatal(err)
	}
	defer sdl.VulkanUnloadLibrary()

	sdlWindow := newWindow(configuration.Renderer)
	defer sdlWindow.Destroy()

	vkInstance, err := device.NewInstance(device.DefaultApplicationInfo, sdl.VulkanGetVkGetInstanceProcAddr(), device.InstanceConfiguration{
		DebugMode:  configuration.Renderer.DebugMode,
		Extensions: sdlWindow.VulkanGetInstanceExtensions(),
	})
	if err != nil {
		log.Fatal(err)
	}
	defer vkInstance.Destroy()

	sdlSurface, err := sdlWindow.VulkanCreateSurface(vkInstance.Handle())
	if err != nil {
		log.Fatal(err)
	}
	vkInstance.SetSurface(sdlSurface)

	if len(vkInstance.AvailableDevices()) == 0 {
		log.Fatal("no vulkan capable device found")
	}
	ctx, err := device.NewContext(vkInstance, vkInstance.AvailableDevices()[0], configuration.Renderer)
	if err != nil {
		log.Fatal(err)
	}
	defer ctx.Destroy()

	stages, source, closeSource := shaderSetup(configuration.Pipeline)
	defer closeSource()

	var pipeline core.GraphicsPipeline
	if err := pipeline.Init(ctx, core.GraphicsPipelineCreateInfo{
		Shaders: stages,
		Flags:   configuration.Pipeline.Flags,
		Layout:  model.VertexLayout(),
		Source:  source,
	}); err != nil {
		log.WithFields(log.Fields{
			"fatal": core.IsFatal(err),
		}).Fatal(err)
	}
	defer pipeline.Destroy()

	commandBuffers, err := ctx.AllocateCommandBuffers(1)
	if err != nil {
		log.Fatal(err)
	}
	defer ctx.FreeCommandBuffers(commandBuffers)

	aspect := float32(configuration.Renderer.ScreenWidth) / float32(configuration.Renderer.ScreenHeight)
	view := glm.LookAtV(glm.Vec3{0, 0, 2}, glm.Vec3{0, 0, 0}, glm.Vec3{0, 1, 0})
	projection := glm.Perspective(glm.DegToRad(45), aspect, 0.1, 10)

	timer := core.NewTime(configuration.Time)
	defer timer.Stop()
	started := time.Now()

EventLoop:
	for range timer.FpsTicker().C {
		for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
			switch et := event.(type) {
			case *sdl.KeyboardEvent:
				if et.Keysym.Sym == sdl.K_ESCAPE {
					break EventLoop
				}
			case *sdl.QuitEvent:
				break EventLoop
			}
		}

		angle := float32(time.Since(started).Seconds())
		pushConstants := model.NewPushConstants(glm.HomogRotate3DY(angle), view, projection)
		if err := record(commandBuffers[0], &pipeline, &pushConstants); err != nil {
			log.Error(err)
			break
		}
	}
	log.Info("Event loop exited")

	ctx.WaitIdle()
}

// record binds the pipeline and pushes the frame transform
func record(cmd device.CommandBuffer, pipeline *core.GraphicsPipeline, pc *model.PushConstants) error {
	if err := cmd.Begin(); err != nil {
		return err
	}
	pipeline.Bind(cmd)
	for _, r := range pipeline.PushConstantRanges() {
		size := pc.Size()
		if r.Offset >= size {
			continue
		}
		if r.Offset+r.Size < size {
			size = r.Offset + r.Size
		}
		pipeline.PushConstantData(cmd, r.StageFlags, unsafe.Add(pc.Pointer(), r.Offset), size-r.Offset, r.Offset)
	}
	return cmd.End()
}
