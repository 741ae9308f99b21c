// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package device

import (
	"errors"
	"fmt"
	"unsafe"

	vk "github.com/devblok/vulkan"

	"github.com/devblok/kpipe/core"
)

var _ core.CommandContext = CommandBuffer{}

// CommandBuffer is a primary command buffer of the context
type CommandBuffer struct {
	buffer vk.CommandBuffer
}

// AllocateCommandBuffers allocates count primary command buffers from the context pool
func (v *Context) AllocateCommandBuffers(count int) ([]CommandBuffer, error) {
	cbai := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        v.commandPool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: uint32(count),
	}

	commandBuffers := make([]vk.CommandBuffer, count)
	if err := vk.Error(vk.AllocateCommandBuffers(v.logicalDevice, &cbai, commandBuffers)); err != nil {
		return nil, errors.New("vk.AllocateCommandBuffers(): " + err.Error())
	}

	buffers := make([]CommandBuffer, count)
	for idx, buffer := range commandBuffers {
		buffers[idx] = CommandBuffer{buffer: buffer}
	}
	return buffers, nil
}

// FreeCommandBuffers returns the buffers to the context pool
func (v *Context) FreeCommandBuffers(buffers []CommandBuffer) {
	if len(buffers) == 0 {
		return
	}
	commandBuffers := make([]vk.CommandBuffer, len(buffers))
	for idx, buffer := range buffers {
		commandBuffers[idx] = buffer.buffer
	}
	vk.FreeCommandBuffers(v.logicalDevice, v.commandPool, uint32(len(commandBuffers)), commandBuffers)
}

// Begin starts recording
func (c CommandBuffer) Begin() error {
	cbbi := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageSimultaneousUseBit),
	}
	if err := vk.Error(vk.BeginCommandBuffer(c.buffer, &cbbi)); err != nil {
		return fmt.Errorf("vk.BeginCommandBuffer(): %s", err.Error())
	}
	return nil
}

// End finishes recording
func (c CommandBuffer) End() error {
	if err := vk.Error(vk.EndCommandBuffer(c.buffer)); err != nil {
		return fmt.Errorf("vk.EndCommandBuffer(): %s", err.Error())
	}
	return nil
}

// Handle returns internal vk.CommandBuffer
func (c CommandBuffer) Handle() vk.CommandBuffer {
	return c.buffer
}

// BindPipeline implements interface
func (c CommandBuffer) BindPipeline(bindPoint vk.PipelineBindPoint, pipeline vk.Pipeline) {
	vk.CmdBindPipeline(c.buffer, bindPoint, pipeline)
}

// BindDescriptorSets implements interface
func (c CommandBuffer) BindDescriptorSets(bindPoint vk.PipelineBindPoint, layout vk.PipelineLayout, firstSet uint32, sets []vk.DescriptorSet, dynamicOffsets []uint32) {
	if len(sets) == 0 {
		return
	}
	vk.CmdBindDescriptorSets(c.buffer, bindPoint, layout, firstSet,
		uint32(len(sets)), sets, uint32(len(dynamicOffsets)), dynamicOffsets)
}

// PushConstants implements interface
func (c CommandBuffer) PushConstants(layout vk.PipelineLayout, stages vk.ShaderStageFlags, offset, size uint32, data unsafe.Pointer) {
	vk.CmdPushConstants(c.buffer, layout, stages, offset, size, data)
}
