// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core_test

import (
	"testing"
	"unsafe"

	qt "github.com/frankban/quicktest"

	vk "github.com/devblok/vulkan"

	"github.com/devblok/kpipe/core"
	"github.com/devblok/kpipe/spirv"
	"github.com/devblok/kpipe/spirv/spirvtest"
)

// mapSource serves shaders from memory
func mapSource(shaders map[string][]byte) core.ShaderSource {
	return core.ShaderSourceFunc(func(id string) []byte {
		return shaders[id]
	})
}

// sceneShaders is a vertex stage with a camera block, a texture and a
// 16 byte push constant block, and a fragment stage sharing the texture
// and sampling a second set.
func sceneShaders() map[string][]byte {
	vert := spirvtest.New(spirv.ExecutionModelVertex, "main")
	vert.UniformBuffer(0, 0, "camera", 4)
	vert.TextureBinding(0, 1, "heightmap")
	vert.PushConstants("tint", 0, 1)

	frag := spirvtest.New(spirv.ExecutionModelFragment, "main")
	frag.TextureBinding(0, 1, "heightmap")
	frag.CombinedImageSampler(1, 0, "albedo")

	return map[string][]byte{
		"scene.vert.spv": vert.Bytes(),
		"scene.frag.spv": frag.Bytes(),
	}
}

func sceneInfo(flags core.PipelineFlags) core.GraphicsPipelineCreateInfo {
	return core.GraphicsPipelineCreateInfo{
		Shaders: []core.ShaderStage{
			{Filename: "scene.vert.spv", Type: core.VertexShaderType},
			{Filename: "scene.frag.spv", Type: core.FragmentShaderType},
		},
		Flags: flags,
		Layout: core.NewVertexLayout(
			core.VertexElement{Name: "position", Type: core.Float3},
			core.VertexElement{Name: "uv", Type: core.Float2},
		),
		Source: mapSource(sceneShaders()),
	}
}

func TestInitScene(t *testing.T) {
	c := qt.New(t)
	ctx := newRecordingContext()

	var p core.GraphicsPipeline
	err := p.Init(ctx, sceneInfo(core.DepthTestEnabled|core.DepthCompareLess))
	c.Assert(err, qt.IsNil)
	defer p.Destroy()

	c.Assert(p.DescriptorSetLayouts(), qt.HasLen, 2)
	c.Assert(ctx.count("CreateDescriptorSetLayout"), qt.Equals, 2)
	c.Assert(p.PushConstantRanges(), qt.HasLen, 1)
	c.Assert(p.PushConstantRanges()[0], qt.Equals, vk.PushConstantRange{
		StageFlags: vk.ShaderStageFlags(vk.ShaderStageVertexBit),
		Offset:     0,
		Size:       16,
	})
	c.Assert(p.Layout(), qt.IsNotNil)
	c.Assert(p.Pipeline(), qt.IsNotNil)
	c.Assert(p.BindPoint(), qt.Equals, vk.PipelineBindPointGraphics)

	set0 := ctx.setLayoutBindings[0]
	c.Assert(set0, qt.HasLen, 2)
	c.Assert(set0[0].Binding, qt.Equals, uint32(0))
	c.Assert(set0[0].DescriptorType, qt.Equals, vk.DescriptorTypeUniformBuffer)
	c.Assert(set0[0].StageFlags, qt.Equals, vk.ShaderStageFlags(vk.ShaderStageVertexBit))
	c.Assert(set0[1].Binding, qt.Equals, uint32(1))
	c.Assert(set0[1].DescriptorType, qt.Equals, vk.DescriptorTypeSampledImage)
	c.Assert(set0[1].StageFlags, qt.Equals, vk.ShaderStageFlags(vk.ShaderStageVertexBit|vk.ShaderStageFragmentBit))

	set1 := ctx.setLayoutBindings[1]
	c.Assert(set1, qt.HasLen, 1)
	c.Assert(set1[0].DescriptorType, qt.Equals, vk.DescriptorTypeCombinedImageSampler)
	c.Assert(set1[0].StageFlags, qt.Equals, vk.ShaderStageFlags(vk.ShaderStageFragmentBit))

	c.Assert(ctx.pipelineLayout.SetLayoutCount, qt.Equals, uint32(2))
	c.Assert(ctx.pipelineLayout.PushConstantRangeCount, qt.Equals, uint32(1))

	gpci := ctx.graphics
	c.Assert(gpci, qt.IsNotNil)
	c.Assert(gpci.StageCount, qt.Equals, uint32(2))
	c.Assert(gpci.PStages[0].Stage, qt.Equals, vk.ShaderStageVertexBit)
	c.Assert(gpci.PStages[1].Stage, qt.Equals, vk.ShaderStageFragmentBit)
	c.Assert(gpci.PStages[0].PName, qt.Equals, "main\x00")
	c.Assert(gpci.RenderPass, qt.Equals, ctx.renderPass)
	c.Assert(gpci.Layout, qt.Equals, p.Layout())
	c.Assert(gpci.PDepthStencilState.DepthTestEnable, qt.Equals, vk.Bool32(vk.True))
	c.Assert(gpci.PDepthStencilState.DepthCompareOp, qt.Equals, vk.CompareOpLess)
	c.Assert(gpci.PVertexInputState.VertexAttributeDescriptionCount, qt.Equals, uint32(2))
	c.Assert(gpci.PVertexInputState.PVertexBindingDescriptions[0].Stride, qt.Equals, uint32(20))
}

func TestInitTwice(t *testing.T) {
	c := qt.New(t)
	ctx := newRecordingContext()

	var p core.GraphicsPipeline
	c.Assert(p.Init(ctx, sceneInfo(0)), qt.IsNil)
	first := p.DescriptorSetLayouts()

	c.Assert(p.Init(ctx, sceneInfo(0)), qt.IsNil)
	defer p.Destroy()

	c.Assert(p.DescriptorSetLayouts(), qt.HasLen, 2)
	c.Assert(p.PushConstantRanges(), qt.HasLen, 1)
	c.Assert(ctx.pipelineLayout.SetLayoutCount, qt.Equals, uint32(2))
	for _, layout := range p.DescriptorSetLayouts() {
		for _, old := range first {
			c.Assert(layout, qt.Not(qt.Equals), old)
		}
	}
}

func TestInitReleasesShaderModules(t *testing.T) {
	c := qt.New(t)
	ctx := newRecordingContext()

	var p core.GraphicsPipeline
	c.Assert(p.Init(ctx, sceneInfo(0)), qt.IsNil)
	defer p.Destroy()

	c.Assert(ctx.count("CreateShaderModule"), qt.Equals, 2)
	c.Assert(ctx.count("DestroyShaderModule"), qt.Equals, 2)
	for _, op := range ctx.live {
		c.Assert(op, qt.Not(qt.Equals), "CreateShaderModule")
	}
	c.Assert(ctx.invalid, qt.HasLen, 0)
}

func TestInitNoResources(t *testing.T) {
	c := qt.New(t)
	ctx := newRecordingContext()

	info := core.GraphicsPipelineCreateInfo{
		Shaders: []core.ShaderStage{
			{Filename: "plain.vert.spv", Type: core.VertexShaderType},
			{Filename: "plain.frag.spv", Type: core.FragmentShaderType},
		},
		Source: mapSource(map[string][]byte{
			"plain.vert.spv": spirvtest.New(spirv.ExecutionModelVertex, "main").Bytes(),
			"plain.frag.spv": spirvtest.New(spirv.ExecutionModelFragment, "main").Bytes(),
		}),
	}

	var p core.GraphicsPipeline
	c.Assert(p.Init(ctx, info), qt.IsNil)
	defer p.Destroy()

	c.Assert(p.DescriptorSetLayouts(), qt.HasLen, 0)
	c.Assert(p.PushConstantRanges(), qt.HasLen, 0)
	c.Assert(ctx.pipelineLayout.SetLayoutCount, qt.Equals, uint32(0))
	c.Assert(ctx.pipelineLayout.PushConstantRangeCount, qt.Equals, uint32(0))
	c.Assert(p.Layout(), qt.IsNotNil)
	c.Assert(p.Pipeline(), qt.IsNotNil)
}

func TestInitPushConstantOrder(t *testing.T) {
	c := qt.New(t)
	ctx := newRecordingContext()

	vert := spirvtest.New(spirv.ExecutionModelVertex, "main")
	vert.PushConstants("transform", 0, 1)
	frag := spirvtest.New(spirv.ExecutionModelFragment, "main")
	frag.PushConstants("material", 16, 2)

	info := core.GraphicsPipelineCreateInfo{
		Shaders: []core.ShaderStage{
			{Filename: "pc.frag.spv", Type: core.FragmentShaderType},
			{Filename: "pc.vert.spv", Type: core.VertexShaderType},
		},
		Source: mapSource(map[string][]byte{
			"pc.vert.spv": vert.Bytes(),
			"pc.frag.spv": frag.Bytes(),
		}),
	}

	var p core.GraphicsPipeline
	c.Assert(p.Init(ctx, info), qt.IsNil)
	defer p.Destroy()

	ranges := p.PushConstantRanges()
	c.Assert(ranges, qt.HasLen, 2)
	c.Assert(ranges[0], qt.Equals, vk.PushConstantRange{
		StageFlags: vk.ShaderStageFlags(vk.ShaderStageFragmentBit),
		Offset:     16,
		Size:       32,
	})
	c.Assert(ranges[1], qt.Equals, vk.PushConstantRange{
		StageFlags: vk.ShaderStageFlags(vk.ShaderStageVertexBit),
		Offset:     0,
		Size:       16,
	})
}

func TestInitSparseSets(t *testing.T) {
	c := qt.New(t)
	ctx := newRecordingContext()

	vert := spirvtest.New(spirv.ExecutionModelVertex, "main")
	vert.UniformBuffer(0, 0, "camera", 4)
	vert.UniformBuffer(3, 0, "bones", 4, 8)

	info := core.GraphicsPipelineCreateInfo{
		Shaders: []core.ShaderStage{{Filename: "skin.vert.spv", Type: core.VertexShaderType}},
		Source:  mapSource(map[string][]byte{"skin.vert.spv": vert.Bytes()}),
	}

	var p core.GraphicsPipeline
	c.Assert(p.Init(ctx, info), qt.IsNil)
	defer p.Destroy()

	c.Assert(p.DescriptorSetLayouts(), qt.HasLen, 2)
	c.Assert(ctx.setLayoutBindings[1][0].DescriptorCount, qt.Equals, uint32(8))
}

func TestInitMergesBindings(t *testing.T) {
	c := qt.New(t)
	ctx := newRecordingContext()

	vert := spirvtest.New(spirv.ExecutionModelVertex, "main")
	vert.UniformBuffer(0, 0, "lights", 4)
	frag := spirvtest.New(spirv.ExecutionModelFragment, "main")
	frag.UniformBuffer(0, 0, "lights", 4, 4)

	info := core.GraphicsPipelineCreateInfo{
		Shaders: []core.ShaderStage{
			{Filename: "lit.vert.spv", Type: core.VertexShaderType},
			{Filename: "lit.frag.spv", Type: core.FragmentShaderType},
		},
		Source: mapSource(map[string][]byte{
			"lit.vert.spv": vert.Bytes(),
			"lit.frag.spv": frag.Bytes(),
		}),
	}

	var p core.GraphicsPipeline
	c.Assert(p.Init(ctx, info), qt.IsNil)
	defer p.Destroy()

	c.Assert(ctx.setLayoutBindings, qt.HasLen, 1)
	c.Assert(ctx.setLayoutBindings[0], qt.HasLen, 1)
	merged := ctx.setLayoutBindings[0][0]
	c.Assert(merged.DescriptorCount, qt.Equals, uint32(4))
	c.Assert(merged.StageFlags, qt.Equals, vk.ShaderStageFlags(vk.ShaderStageVertexBit|vk.ShaderStageFragmentBit))
}

func TestInitRejectedBeforeNativeCalls(t *testing.T) {
	vert := spirvtest.New(spirv.ExecutionModelVertex, "main")
	vert.UniformBuffer(0, 0, "camera", 4)
	frag := spirvtest.New(spirv.ExecutionModelFragment, "main")
	frag.SamplerBinding(0, 0, "camera")
	comp := spirvtest.New(spirv.ExecutionModelGLCompute, "main")

	shaders := map[string][]byte{
		"ok.vert.spv":       vert.Bytes(),
		"conflict.frag.spv": frag.Bytes(),
		"ok.comp.spv":       comp.Bytes(),
		"garbage.vert.spv":  []byte("not a shader at all"),
	}

	tests := []struct {
		name    string
		shaders []core.ShaderStage
		source  core.ShaderSource
		fatal   bool
		is      error
	}{{
		name:    "wrong extension",
		shaders: []core.ShaderStage{{Filename: "ok.vert.glsl", Type: core.VertexShaderType}},
		source:  mapSource(shaders),
		is:      core.ErrShaderExtension,
	}, {
		name: "extension of a later stage",
		shaders: []core.ShaderStage{
			{Filename: "ok.vert.spv", Type: core.VertexShaderType},
			{Filename: "ok.frag", Type: core.FragmentShaderType},
		},
		source: mapSource(shaders),
		is:     core.ErrShaderExtension,
	}, {
		name:    "empty source",
		shaders: []core.ShaderStage{{Filename: "missing.vert.spv", Type: core.VertexShaderType}},
		source:  mapSource(shaders),
		is:      core.ErrShaderEmpty,
	}, {
		name:   "no shaders",
		source: mapSource(shaders),
		is:     core.ErrNoShaders,
	}, {
		name:    "no source",
		shaders: []core.ShaderStage{{Filename: "ok.vert.spv", Type: core.VertexShaderType}},
		is:      core.ErrNoSource,
	}, {
		name:    "invalid module",
		shaders: []core.ShaderStage{{Filename: "garbage.vert.spv", Type: core.VertexShaderType}},
		source:  mapSource(shaders),
		fatal:   true,
		is:      spirv.ErrInvalidModule,
	}, {
		name: "binding type conflict",
		shaders: []core.ShaderStage{
			{Filename: "ok.vert.spv", Type: core.VertexShaderType},
			{Filename: "conflict.frag.spv", Type: core.FragmentShaderType},
		},
		source: mapSource(shaders),
		fatal:  true,
	}, {
		name: "compute mixed with graphics",
		shaders: []core.ShaderStage{
			{Filename: "ok.vert.spv", Type: core.VertexShaderType},
			{Filename: "ok.comp.spv", Type: core.ComputeShaderType},
		},
		source: mapSource(shaders),
		fatal:  true,
	}}

	c := qt.New(t)
	for _, test := range tests {
		c.Run(test.name, func(c *qt.C) {
			ctx := newRecordingContext()

			var p core.GraphicsPipeline
			err := p.Init(ctx, core.GraphicsPipelineCreateInfo{
				Shaders: test.shaders,
				Source:  test.source,
			})
			c.Assert(err, qt.IsNotNil)
			c.Assert(core.IsFatal(err), qt.Equals, test.fatal)
			if test.is != nil {
				c.Assert(err, qt.ErrorIs, test.is)
			}

			c.Assert(ctx.calls, qt.HasLen, 0)
			c.Assert(p.Pipeline(), qt.IsNil)
			c.Assert(p.Layout(), qt.IsNil)
			c.Assert(p.DescriptorSetLayouts(), qt.HasLen, 0)
		})
	}
}

func TestInitNativeFailureReleases(t *testing.T) {
	tests := []struct {
		op string
		n  int
	}{
		{"CreateShaderModule", 2},
		{"CreateDescriptorSetLayout", 1},
		{"CreateDescriptorSetLayout", 2},
		{"CreatePipelineLayout", 1},
		{"CreateGraphicsPipeline", 1},
	}

	c := qt.New(t)
	for _, test := range tests {
		c.Run(test.op, func(c *qt.C) {
			ctx := newRecordingContext()
			ctx.failAt[test.op] = test.n

			var p core.GraphicsPipeline
			err := p.Init(ctx, sceneInfo(0))
			c.Assert(err, qt.IsNotNil)
			c.Assert(core.IsFatal(err), qt.IsTrue)

			c.Assert(ctx.live, qt.HasLen, 0)
			c.Assert(ctx.invalid, qt.HasLen, 0)
			c.Assert(p.Pipeline(), qt.IsNil)
			c.Assert(p.Layout(), qt.IsNil)
			c.Assert(p.DescriptorSetLayouts(), qt.HasLen, 0)

			// a failed pipeline has nothing left to release
			calls := len(ctx.calls)
			p.Destroy()
			c.Assert(ctx.calls, qt.HasLen, calls)
		})
	}
}

func TestInitStageMismatch(t *testing.T) {
	c := qt.New(t)
	ctx := newRecordingContext()

	info := core.GraphicsPipelineCreateInfo{
		Shaders: []core.ShaderStage{{Filename: "odd.frag.spv", Type: core.FragmentShaderType}},
		Source: mapSource(map[string][]byte{
			"odd.frag.spv": spirvtest.New(spirv.ExecutionModelVertex, "main").Bytes(),
		}),
	}

	var p core.GraphicsPipeline
	c.Assert(p.Init(ctx, info), qt.IsNil)
	defer p.Destroy()
	c.Assert(ctx.graphics.PStages[0].Stage, qt.Equals, vk.ShaderStageVertexBit)
}

func TestInitCompute(t *testing.T) {
	c := qt.New(t)
	ctx := newRecordingContext()

	comp := spirvtest.New(spirv.ExecutionModelGLCompute, "cs_main")
	comp.StorageBuffer(0, 0, "particles")
	comp.PushConstants("step", 0, 1)

	info := core.GraphicsPipelineCreateInfo{
		Shaders: []core.ShaderStage{{Filename: "particles.comp.spv", Type: core.ComputeShaderType}},
		Source:  mapSource(map[string][]byte{"particles.comp.spv": comp.Bytes()}),
	}

	var p core.GraphicsPipeline
	c.Assert(p.Init(ctx, info), qt.IsNil)
	defer p.Destroy()

	c.Assert(p.BindPoint(), qt.Equals, vk.PipelineBindPointCompute)
	c.Assert(ctx.graphics, qt.IsNil)
	c.Assert(ctx.compute, qt.IsNotNil)
	c.Assert(ctx.compute.Stage.Stage, qt.Equals, vk.ShaderStageComputeBit)
	c.Assert(ctx.compute.Stage.PName, qt.Equals, "cs_main\x00")
	c.Assert(ctx.compute.Layout, qt.Equals, p.Layout())
	c.Assert(ctx.setLayoutBindings[0][0].DescriptorType, qt.Equals, vk.DescriptorTypeStorageBuffer)

	cmd := &recordingCommands{}
	p.Bind(cmd)
	c.Assert(cmd.bindPoints, qt.HasLen, 1)
	c.Assert(cmd.bindPoints[0], qt.Equals, vk.PipelineBindPointCompute)
}

func TestDestroy(t *testing.T) {
	c := qt.New(t)

	c.Run("never initialised", func(c *qt.C) {
		var p core.GraphicsPipeline
		p.Destroy()
		p.Destroy()
		c.Assert(p.Pipeline(), qt.IsNil)
	})

	c.Run("teardown order", func(c *qt.C) {
		ctx := newRecordingContext()

		var p core.GraphicsPipeline
		c.Assert(p.Init(ctx, sceneInfo(0)), qt.IsNil)

		before := len(ctx.calls)
		p.Destroy()
		c.Assert(ctx.calls[before:], qt.DeepEquals, []string{
			"DestroyDescriptorSetLayout",
			"DestroyDescriptorSetLayout",
			"DestroyPipelineLayout",
			"DestroyPipeline",
		})
		c.Assert(ctx.live, qt.HasLen, 0)
		c.Assert(p.Pipeline(), qt.IsNil)
		c.Assert(p.Layout(), qt.IsNil)
		c.Assert(p.DescriptorSetLayouts(), qt.HasLen, 0)

		p.Destroy()
		c.Assert(ctx.calls, qt.HasLen, before+4)
		c.Assert(ctx.invalid, qt.HasLen, 0)
	})
}

func TestBindingCommands(t *testing.T) {
	c := qt.New(t)
	ctx := newRecordingContext()

	var p core.GraphicsPipeline
	c.Assert(p.Init(ctx, sceneInfo(0)), qt.IsNil)
	defer p.Destroy()

	cmd := &recordingCommands{}
	p.Bind(cmd)
	c.Assert(cmd.pipelines, qt.HasLen, 1)
	c.Assert(cmd.pipelines[0], qt.Equals, p.Pipeline())
	c.Assert(cmd.bindPoints[0], qt.Equals, vk.PipelineBindPointGraphics)

	sets := []vk.DescriptorSet{
		vk.DescriptorSet(unsafe.Pointer(new(uint64))),
		vk.DescriptorSet(unsafe.Pointer(new(uint64))),
	}
	p.BindDescriptorSets(cmd, sets, 1)
	p.BindDescriptorSets(cmd, sets, 5)
	c.Assert(cmd.bindSets, qt.HasLen, 2)
	c.Assert(cmd.bindSets[0].firstSet, qt.Equals, uint32(0))
	c.Assert(cmd.bindSets[0].layout, qt.Equals, p.Layout())
	c.Assert(cmd.bindSets[0].sets, qt.HasLen, 1)
	c.Assert(cmd.bindSets[0].sets[0], qt.Equals, sets[0])
	c.Assert(cmd.bindSets[1].sets, qt.HasLen, 2)

	tint := [4]float32{1, 0.5, 0.25, 1}
	p.PushConstantData(cmd, vk.ShaderStageFlags(vk.ShaderStageVertexBit), unsafe.Pointer(&tint), 16, 0)
	c.Assert(cmd.pushes, qt.HasLen, 1)
	c.Assert(cmd.pushes[0].layout, qt.Equals, p.Layout())
	c.Assert(cmd.pushes[0].stages, qt.Equals, vk.ShaderStageFlags(vk.ShaderStageVertexBit))
	c.Assert(cmd.pushes[0].size, qt.Equals, uint32(16))
	c.Assert(cmd.pushes[0].offset, qt.Equals, uint32(0))
	c.Assert(cmd.pushes[0].data, qt.Equals, unsafe.Pointer(&tint))
}
