// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core_test

import (
	"errors"
	"unsafe"

	vk "github.com/devblok/vulkan"
)

// recordingContext hands out fake handles and records every call made
// against it. Calls listed in failAt fail on their nth invocation.
type recordingContext struct {
	renderPass vk.RenderPass

	failAt  map[string]int
	counts  map[string]int
	calls   []string
	live    map[unsafe.Pointer]string
	invalid []string

	setLayoutBindings [][]vk.DescriptorSetLayoutBinding
	pipelineLayout    *vk.PipelineLayoutCreateInfo
	graphics          *vk.GraphicsPipelineCreateInfo
	compute           *vk.ComputePipelineCreateInfo
}

func newRecordingContext() *recordingContext {
	return &recordingContext{
		renderPass: vk.RenderPass(unsafe.Pointer(new(uint64))),
		failAt:     make(map[string]int),
		counts:     make(map[string]int),
		live:       make(map[unsafe.Pointer]string),
	}
}

func (r *recordingContext) create(op string) (unsafe.Pointer, error) {
	r.calls = append(r.calls, op)
	r.counts[op]++
	if n, ok := r.failAt[op]; ok && n == r.counts[op] {
		return nil, errors.New(op + ": device lost")
	}
	handle := unsafe.Pointer(new(uint64))
	r.live[handle] = op
	return handle, nil
}

func (r *recordingContext) destroy(op string, handle unsafe.Pointer) {
	r.calls = append(r.calls, op)
	if _, ok := r.live[handle]; !ok {
		r.invalid = append(r.invalid, op)
	}
	delete(r.live, handle)
}

// count returns how many times op was called
func (r *recordingContext) count(op string) int {
	var n int
	for _, call := range r.calls {
		if call == op {
			n++
		}
	}
	return n
}

func (r *recordingContext) RenderPass() vk.RenderPass {
	return r.renderPass
}

func (r *recordingContext) CreateShaderModule(code []byte) (vk.ShaderModule, error) {
	handle, err := r.create("CreateShaderModule")
	return vk.ShaderModule(handle), err
}

func (r *recordingContext) DestroyShaderModule(module vk.ShaderModule) {
	r.destroy("DestroyShaderModule", unsafe.Pointer(module))
}

func (r *recordingContext) CreateDescriptorSetLayout(info *vk.DescriptorSetLayoutCreateInfo) (vk.DescriptorSetLayout, error) {
	handle, err := r.create("CreateDescriptorSetLayout")
	if err == nil {
		r.setLayoutBindings = append(r.setLayoutBindings, append([]vk.DescriptorSetLayoutBinding(nil), info.PBindings...))
	}
	return vk.DescriptorSetLayout(handle), err
}

func (r *recordingContext) DestroyDescriptorSetLayout(layout vk.DescriptorSetLayout) {
	r.destroy("DestroyDescriptorSetLayout", unsafe.Pointer(layout))
}

func (r *recordingContext) CreatePipelineLayout(info *vk.PipelineLayoutCreateInfo) (vk.PipelineLayout, error) {
	handle, err := r.create("CreatePipelineLayout")
	if err == nil {
		copied := *info
		r.pipelineLayout = &copied
	}
	return vk.PipelineLayout(handle), err
}

func (r *recordingContext) DestroyPipelineLayout(layout vk.PipelineLayout) {
	r.destroy("DestroyPipelineLayout", unsafe.Pointer(layout))
}

func (r *recordingContext) CreateGraphicsPipeline(info *vk.GraphicsPipelineCreateInfo) (vk.Pipeline, error) {
	handle, err := r.create("CreateGraphicsPipeline")
	if err == nil {
		copied := *info
		r.graphics = &copied
	}
	return vk.Pipeline(handle), err
}

func (r *recordingContext) CreateComputePipeline(info *vk.ComputePipelineCreateInfo) (vk.Pipeline, error) {
	handle, err := r.create("CreateComputePipeline")
	if err == nil {
		copied := *info
		r.compute = &copied
	}
	return vk.Pipeline(handle), err
}

func (r *recordingContext) DestroyPipeline(pipeline vk.Pipeline) {
	r.destroy("DestroyPipeline", unsafe.Pointer(pipeline))
}

type pushCall struct {
	layout vk.PipelineLayout
	stages vk.ShaderStageFlags
	offset uint32
	size   uint32
	data   unsafe.Pointer
}

type bindSetsCall struct {
	bindPoint vk.PipelineBindPoint
	layout    vk.PipelineLayout
	firstSet  uint32
	sets      []vk.DescriptorSet
}

// recordingCommands is a command buffer that only remembers what was recorded
type recordingCommands struct {
	bindPoints []vk.PipelineBindPoint
	pipelines  []vk.Pipeline
	bindSets   []bindSetsCall
	pushes     []pushCall
}

func (r *recordingCommands) BindPipeline(bindPoint vk.PipelineBindPoint, pipeline vk.Pipeline) {
	r.bindPoints = append(r.bindPoints, bindPoint)
	r.pipelines = append(r.pipelines, pipeline)
}

func (r *recordingCommands) BindDescriptorSets(bindPoint vk.PipelineBindPoint, layout vk.PipelineLayout, firstSet uint32, sets []vk.DescriptorSet, dynamicOffsets []uint32) {
	r.bindSets = append(r.bindSets, bindSetsCall{
		bindPoint: bindPoint,
		layout:    layout,
		firstSet:  firstSet,
		sets:      append([]vk.DescriptorSet(nil), sets...),
	})
}

func (r *recordingCommands) PushConstants(layout vk.PipelineLayout, stages vk.ShaderStageFlags, offset, size uint32, data unsafe.Pointer) {
	r.pushes = append(r.pushes, pushCall{
		layout: layout,
		stages: stages,
		offset: offset,
		size:   size,
		data:   data,
	})
}
