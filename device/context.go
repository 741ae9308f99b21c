// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package device

import (
	"errors"

	vk "github.com/devblok/vulkan"
	log "github.com/sirupsen/logrus"

	"github.com/devblok/kpipe/core"
)

var _ core.RenderContext = (*Context)(nil)

// NewContext creates a logical device on the physical device, along with
// the render pass and the pipeline cache every pipeline is built with.
func NewContext(instance *Instance, physicalDevice vk.PhysicalDevice, cfg core.RendererConfiguration) (*Context, error) {
	v := &Context{
		physicalDevice: physicalDevice,
		surface:        instance.Surface(),
	}

	if err := v.createLogicalDevice(cfg.DeviceExtensions); err != nil {
		return nil, err
	}

	if err := v.createRenderPass(); err != nil {
		v.Destroy()
		return nil, err
	}

	if err := v.createPipelineCache(); err != nil {
		v.Destroy()
		return nil, err
	}

	if err := v.createCommandPool(); err != nil {
		v.Destroy()
		return nil, err
	}

	log.WithFields(log.Fields{
		"queueFamily": v.graphicsQueueIndex,
		"colorFormat": v.imageFormat,
	}).Debug("vulkan device context created")
	return v, nil
}

// Context is a Vulkan logical device with the objects
// needed to build pipelines against it.
type Context struct {
	physicalDevice vk.PhysicalDevice
	surface        vk.Surface

	logicalDevice vk.Device
	deviceQueue   vk.Queue

	imageFormat   vk.Format
	renderPass    vk.RenderPass
	pipelineCache vk.PipelineCache
	commandPool   vk.CommandPool

	graphicsQueueIndex uint32
}

func (v *Context) createLogicalDevice(extensions []string) error {
	var queueFamilyCount uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(v.physicalDevice, &queueFamilyCount, nil)
	if queueFamilyCount == 0 {
		return errors.New("vk.GetPhysicalDeviceQueueFamilyProperties(): no queuefamilies on GPU")
	}
	queueFamilies := make([]vk.QueueFamilyProperties, queueFamilyCount)
	vk.GetPhysicalDeviceQueueFamilyProperties(v.physicalDevice, &queueFamilyCount, queueFamilies)

	flags := make([]vk.QueueFlags, queueFamilyCount)
	for idx := range queueFamilies {
		queueFamilies[idx].Deref()
		flags[idx] = queueFamilies[idx].QueueFlags
	}

	var present func(uint32) bool
	if v.surface != vk.NullSurface {
		present = func(idx uint32) bool {
			var supported vk.Bool32
			vk.GetPhysicalDeviceSurfaceSupport(v.physicalDevice, idx, v.surface, &supported)
			return supported.B()
		}
	}

	index, found := graphicsQueueFamily(flags, present)
	if !found {
		return errors.New("vulkan error: could not find a suitable queue family for the target Vulkan mode")
	}
	v.graphicsQueueIndex = index

	/* Logical Device setup */
	queueInfos := []vk.DeviceQueueCreateInfo{{
		SType:            vk.StructureTypeDeviceQueueCreateInfo,
		QueueFamilyIndex: v.graphicsQueueIndex,
		QueueCount:       1,
		PQueuePriorities: []float32{1},
	}}

	if v.surface == vk.NullSurface {
		extensions = nil
	}
	enabled := safeStrings(extensions)

	var vkDevice vk.Device
	dci := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueInfos)),
		PQueueCreateInfos:       queueInfos,
		EnabledExtensionCount:   uint32(len(enabled)),
		PpEnabledExtensionNames: enabled,
	}
	if err := vk.Error(vk.CreateDevice(v.physicalDevice, &dci, nil, &vkDevice)); err != nil {
		return errors.New("vk.CreateDevice(): " + err.Error())
	}
	v.logicalDevice = vkDevice

	var deviceQueue vk.Queue
	vk.GetDeviceQueue(vkDevice, v.graphicsQueueIndex, 0, &deviceQueue)
	v.deviceQueue = deviceQueue

	/* ImageFormat */
	v.imageFormat = colorFormat(nil)
	if v.surface != vk.NullSurface {
		var surfaceFormatCount uint32
		if err := vk.Error(vk.GetPhysicalDeviceSurfaceFormats(v.physicalDevice, v.surface, &surfaceFormatCount, nil)); err != nil {
			return errors.New("vk.GetPhysicalDeviceSurfaceFormats(): " + err.Error())
		}
		surfaceFormats := make([]vk.SurfaceFormat, surfaceFormatCount)
		if err := vk.Error(vk.GetPhysicalDeviceSurfaceFormats(v.physicalDevice, v.surface, &surfaceFormatCount, surfaceFormats)); err != nil {
			return errors.New("vk.GetPhysicalDeviceSurfaceFormats(): " + err.Error())
		}
		formats := make([]vk.Format, len(surfaceFormats))
		for idx := range surfaceFormats {
			surfaceFormats[idx].Deref()
			formats[idx] = surfaceFormats[idx].Format
		}
		v.imageFormat = colorFormat(formats)
	}
	return nil
}

func (v *Context) createRenderPass() error {
	attachments := []vk.AttachmentDescription{{
		Format:         v.imageFormat,
		Samples:        vk.SampleCount1Bit,
		LoadOp:         vk.AttachmentLoadOpClear,
		StoreOp:        vk.AttachmentStoreOpStore,
		StencilLoadOp:  vk.AttachmentLoadOpDontCare,
		StencilStoreOp: vk.AttachmentStoreOpDontCare,
		InitialLayout:  vk.ImageLayoutUndefined,
		FinalLayout:    vk.ImageLayoutPresentSrc,
	}, {
		Format:         vk.FormatD16Unorm,
		Samples:        vk.SampleCount1Bit,
		LoadOp:         vk.AttachmentLoadOpClear,
		StoreOp:        vk.AttachmentStoreOpDontCare,
		StencilLoadOp:  vk.AttachmentLoadOpDontCare,
		StencilStoreOp: vk.AttachmentStoreOpDontCare,
		InitialLayout:  vk.ImageLayoutUndefined,
		FinalLayout:    vk.ImageLayoutDepthStencilAttachmentOptimal,
	}}

	colorAttachmentRef := []vk.AttachmentReference{{
		Attachment: 0,
		Layout:     vk.ImageLayoutColorAttachmentOptimal,
	}}
	depthAttachmentRef := vk.AttachmentReference{
		Attachment: 1,
		Layout:     vk.ImageLayoutDepthStencilAttachmentOptimal,
	}

	subpassDependency := vk.SubpassDependency{
		SrcSubpass:    vk.SubpassExternal,
		DstSubpass:    0,
		SrcStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		SrcAccessMask: 0,
		DstStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		DstAccessMask: vk.AccessFlags(vk.AccessColorAttachmentReadBit | vk.AccessColorAttachmentWriteBit),
	}

	subpass := vk.SubpassDescription{
		PipelineBindPoint:       vk.PipelineBindPointGraphics,
		ColorAttachmentCount:    uint32(len(colorAttachmentRef)),
		PColorAttachments:       colorAttachmentRef,
		PDepthStencilAttachment: &depthAttachmentRef,
	}

	rpci := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
		DependencyCount: 1,
		PDependencies:   []vk.SubpassDependency{subpassDependency},
	}

	var renderPass vk.RenderPass
	if err := vk.Error(vk.CreateRenderPass(v.logicalDevice, &rpci, nil, &renderPass)); err != nil {
		return errors.New("vk.CreateRenderPass(): " + err.Error())
	}
	v.renderPass = renderPass
	return nil
}

func (v *Context) createPipelineCache() error {
	pcci := vk.PipelineCacheCreateInfo{
		SType: vk.StructureTypePipelineCacheCreateInfo,
	}

	var pipelineCache vk.PipelineCache
	if err := vk.Error(vk.CreatePipelineCache(v.logicalDevice, &pcci, nil, &pipelineCache)); err != nil {
		return errors.New("vk.CreatePipelineCache(): " + err.Error())
	}
	v.pipelineCache = pipelineCache
	return nil
}

func (v *Context) createCommandPool() error {
	cpci := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
		QueueFamilyIndex: v.graphicsQueueIndex,
	}

	var commandPool vk.CommandPool
	if err := vk.Error(vk.CreateCommandPool(v.logicalDevice, &cpci, nil, &commandPool)); err != nil {
		return errors.New("vk.CreateCommandPool(): " + err.Error())
	}
	v.commandPool = commandPool
	return nil
}

// RenderPass implements interface
func (v *Context) RenderPass() vk.RenderPass {
	return v.renderPass
}

// CreateShaderModule implements interface
func (v *Context) CreateShaderModule(code []byte) (vk.ShaderModule, error) {
	smci := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(code)),
		PCode:    core.SliceUint32(code),
	}

	var shader vk.ShaderModule
	if err := vk.Error(vk.CreateShaderModule(v.logicalDevice, &smci, nil, &shader)); err != nil {
		return nil, errors.New("vk.CreateShaderModule(): " + err.Error())
	}
	return shader, nil
}

// DestroyShaderModule implements interface
func (v *Context) DestroyShaderModule(shader vk.ShaderModule) {
	vk.DestroyShaderModule(v.logicalDevice, shader, nil)
}

// CreateDescriptorSetLayout implements interface
func (v *Context) CreateDescriptorSetLayout(dslci *vk.DescriptorSetLayoutCreateInfo) (vk.DescriptorSetLayout, error) {
	var layout vk.DescriptorSetLayout
	if err := vk.Error(vk.CreateDescriptorSetLayout(v.logicalDevice, dslci, nil, &layout)); err != nil {
		return nil, errors.New("vk.CreateDescriptorSetLayout(): " + err.Error())
	}
	return layout, nil
}

// DestroyDescriptorSetLayout implements interface
func (v *Context) DestroyDescriptorSetLayout(layout vk.DescriptorSetLayout) {
	vk.DestroyDescriptorSetLayout(v.logicalDevice, layout, nil)
}

// CreatePipelineLayout implements interface
func (v *Context) CreatePipelineLayout(plci *vk.PipelineLayoutCreateInfo) (vk.PipelineLayout, error) {
	var layout vk.PipelineLayout
	if err := vk.Error(vk.CreatePipelineLayout(v.logicalDevice, plci, nil, &layout)); err != nil {
		return nil, errors.New("vk.CreatePipelineLayout(): " + err.Error())
	}
	return layout, nil
}

// DestroyPipelineLayout implements interface
func (v *Context) DestroyPipelineLayout(layout vk.PipelineLayout) {
	vk.DestroyPipelineLayout(v.logicalDevice, layout, nil)
}

// CreateGraphicsPipeline implements interface
func (v *Context) CreateGraphicsPipeline(gpci *vk.GraphicsPipelineCreateInfo) (vk.Pipeline, error) {
	pipelines := make([]vk.Pipeline, 1)
	if err := vk.Error(vk.CreateGraphicsPipelines(v.logicalDevice, v.pipelineCache, 1, []vk.GraphicsPipelineCreateInfo{*gpci}, nil, pipelines)); err != nil {
		return nil, errors.New("vk.CreateGraphicsPipelines(): " + err.Error())
	}
	return pipelines[0], nil
}

// CreateComputePipeline implements interface
func (v *Context) CreateComputePipeline(cpci *vk.ComputePipelineCreateInfo) (vk.Pipeline, error) {
	pipelines := make([]vk.Pipeline, 1)
	if err := vk.Error(vk.CreateComputePipelines(v.logicalDevice, v.pipelineCache, 1, []vk.ComputePipelineCreateInfo{*cpci}, nil, pipelines)); err != nil {
		return nil, errors.New("vk.CreateComputePipelines(): " + err.Error())
	}
	return pipelines[0], nil
}

// DestroyPipeline implements interface
func (v *Context) DestroyPipeline(pipeline vk.Pipeline) {
	vk.DestroyPipeline(v.logicalDevice, pipeline, nil)
}

// Device returns the logical device
func (v *Context) Device() vk.Device {
	return v.logicalDevice
}

// Queue returns the graphics queue
func (v *Context) Queue() vk.Queue {
	return v.deviceQueue
}

// ColorFormat is the color attachment format of the render pass
func (v *Context) ColorFormat() vk.Format {
	return v.imageFormat
}

// WaitIdle blocks until the device finished all submitted work
func (v *Context) WaitIdle() {
	if v.logicalDevice != nil {
		vk.DeviceWaitIdle(v.logicalDevice)
	}
}

// Destroy releases everything the context created. Pipelines
// built against it must be destroyed first.
func (v *Context) Destroy() {
	if v.logicalDevice == nil {
		return
	}
	vk.DeviceWaitIdle(v.logicalDevice)

	if v.commandPool != nil {
		vk.DestroyCommandPool(v.logicalDevice, v.commandPool, nil)
		v.commandPool = nil
	}
	if v.pipelineCache != nil {
		vk.DestroyPipelineCache(v.logicalDevice, v.pipelineCache, nil)
		v.pipelineCache = nil
	}
	if v.renderPass != nil {
		vk.DestroyRenderPass(v.logicalDevice, v.renderPass, nil)
		v.renderPass = nil
	}
	vk.DestroyDevice(v.logicalDevice, nil)
	v.logicalDevice = nil
}
