// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package core builds Vulkan pipeline objects from compiled SPIR-V shaders.
// The shaders are reflected to derive descriptor set layouts and push constant
// ranges, while a small set of flags and a vertex layout describe the fixed
// function state. Native object creation goes through a RenderContext, so the
// core itself never holds a global device.
package core

import (
	"fmt"
	"unsafe"

	vk "github.com/devblok/vulkan"
)

// ShaderType represents the type of shader thats loaded
type ShaderType int

// Identifies shader objects with their types
const (
	VertexShaderType ShaderType = iota
	FragmentShaderType
	ComputeShaderType
	GeometryShaderType
	TessellationControlShaderType
	TessellationEvaluationShaderType
	UnknownShaderType
)

var shaderTypeNames = []string{
	"vertex",
	"fragment",
	"compute",
	"geometry",
	"tessellation control",
	"tessellation evaluation",
	"unknown",
}

func (s ShaderType) String() string {
	if s < 0 || int(s) >= len(shaderTypeNames) {
		return fmt.Sprintf("ShaderType(%d)", int(s))
	}
	return shaderTypeNames[s]
}

// Stage returns the Vulkan stage bit of the shader type,
// zero for UnknownShaderType.
func (s ShaderType) Stage() vk.ShaderStageFlagBits {
	switch s {
	case VertexShaderType:
		return vk.ShaderStageVertexBit
	case FragmentShaderType:
		return vk.ShaderStageFragmentBit
	case ComputeShaderType:
		return vk.ShaderStageComputeBit
	case GeometryShaderType:
		return vk.ShaderStageGeometryBit
	case TessellationControlShaderType:
		return vk.ShaderStageTessellationControlBit
	case TessellationEvaluationShaderType:
		return vk.ShaderStageTessellationEvaluationBit
	}
	return 0
}

// ShaderTypeFromSuffix maps the stage part of a shader file name
// (name.vert.spv) to a shader type.
func ShaderTypeFromSuffix(suffix string) ShaderType {
	switch suffix {
	case "vert":
		return VertexShaderType
	case "frag":
		return FragmentShaderType
	case "comp":
		return ComputeShaderType
	case "geom":
		return GeometryShaderType
	case "tesc":
		return TessellationControlShaderType
	case "tese":
		return TessellationEvaluationShaderType
	}
	return UnknownShaderType
}

// ShaderStage names one compiled shader and the role it is declared for.
type ShaderStage struct {
	Filename string
	Type     ShaderType
}

// GraphicsPipelineCreateInfo is everything Init needs to build a pipeline.
type GraphicsPipelineCreateInfo struct {
	Shaders []ShaderStage
	Flags   PipelineFlags
	Layout  VertexLayout
	Source  ShaderSource
}

// RenderContext describes the device side a pipeline is built against.
// Implementations own the logical device, the pipeline cache and the
// render pass pipelines are made compatible with.
type RenderContext interface {
	// RenderPass returns the render pass graphics pipelines target
	RenderPass() vk.RenderPass

	// CreateShaderModule creates a shader module from SPIR-V code
	CreateShaderModule(code []byte) (vk.ShaderModule, error)

	// DestroyShaderModule releases a shader module
	DestroyShaderModule(vk.ShaderModule)

	// CreateDescriptorSetLayout creates a descriptor set layout
	CreateDescriptorSetLayout(*vk.DescriptorSetLayoutCreateInfo) (vk.DescriptorSetLayout, error)

	// DestroyDescriptorSetLayout releases a descriptor set layout
	DestroyDescriptorSetLayout(vk.DescriptorSetLayout)

	// CreatePipelineLayout creates a pipeline layout
	CreatePipelineLayout(*vk.PipelineLayoutCreateInfo) (vk.PipelineLayout, error)

	// DestroyPipelineLayout releases a pipeline layout
	DestroyPipelineLayout(vk.PipelineLayout)

	// CreateGraphicsPipeline creates a single graphics pipeline
	CreateGraphicsPipeline(*vk.GraphicsPipelineCreateInfo) (vk.Pipeline, error)

	// CreateComputePipeline creates a single compute pipeline
	CreateComputePipeline(*vk.ComputePipelineCreateInfo) (vk.Pipeline, error)

	// DestroyPipeline releases a pipeline
	DestroyPipeline(vk.Pipeline)
}

// CommandContext is a command buffer in the recording state.
type CommandContext interface {
	// BindPipeline binds a pipeline at the bind point
	BindPipeline(vk.PipelineBindPoint, vk.Pipeline)

	// BindDescriptorSets binds sets starting at firstSet
	BindDescriptorSets(bindPoint vk.PipelineBindPoint, layout vk.PipelineLayout, firstSet uint32, sets []vk.DescriptorSet, dynamicOffsets []uint32)

	// PushConstants updates push constant values of the layout
	PushConstants(layout vk.PipelineLayout, stages vk.ShaderStageFlags, offset, size uint32, data unsafe.Pointer)
}
