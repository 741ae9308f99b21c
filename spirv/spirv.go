// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package spirv reflects the binary interface of compiled SPIR-V shader modules.
// It reads the execution stage, the descriptor bindings grouped by set and the
// push constant blocks straight from the instruction stream, without any
// native library, so pipeline layouts can be derived from the shaders themselves.
package spirv

import (
	"errors"
	"fmt"

	vk "github.com/devblok/vulkan"
)

// package errors
var (
	ErrInvalidModule       = errors.New("not a valid SPIR-V module")
	ErrNoEntryPoint        = errors.New("SPIR-V module declares no entry point")
	ErrUnsupportedStage    = errors.New("unsupported SPIR-V execution model")
	ErrUnsupportedResource = errors.New("unsupported SPIR-V resource type")

	errShortInstruction = errors.New("instruction too short")
)

// Magic number found in the first word of every module.
const (
	MagicNumber        = 0x07230203
	magicNumberSwapped = 0x03022307
	headerWords        = 5
)

type opcode uint16

const (
	opName            opcode = 5
	opMemberName      opcode = 6
	opEntryPoint      opcode = 15
	opTypeVoid        opcode = 19
	opTypeBool        opcode = 20
	opTypeInt         opcode = 21
	opTypeFloat       opcode = 22
	opTypeVector      opcode = 23
	opTypeMatrix      opcode = 24
	opTypeImage       opcode = 25
	opTypeSampler     opcode = 26
	opTypeSampledImg  opcode = 27
	opTypeArray       opcode = 28
	opTypeRuntimeArr  opcode = 29
	opTypeStruct      opcode = 30
	opTypePointer     opcode = 32
	opConstant        opcode = 43
	opSpecConstant    opcode = 50
	opVariable        opcode = 59
	opDecorate        opcode = 71
	opMemberDecorate  opcode = 72
	opTypeAccelStruct opcode = 5341
)

type decoration uint32

const (
	decorationBlock         decoration = 2
	decorationBufferBlock   decoration = 3
	decorationArrayStride   decoration = 6
	decorationMatrixStride  decoration = 7
	decorationBinding       decoration = 33
	decorationDescriptorSet decoration = 34
	decorationOffset        decoration = 35
)

// StorageClass is the SPIR-V storage class of a variable or pointer.
type StorageClass uint32

// Storage classes relevant to the pipeline interface
const (
	StorageClassUniformConstant       StorageClass = 0
	StorageClassInput                 StorageClass = 1
	StorageClassUniform               StorageClass = 2
	StorageClassOutput                StorageClass = 3
	StorageClassPushConstant          StorageClass = 9
	StorageClassStorageBuffer         StorageClass = 12
	StorageClassPhysicalStorageBuffer StorageClass = 5349
)

// ExecutionModel is the stage an entry point executes in.
type ExecutionModel uint32

// Execution models that map onto Vulkan pipeline stages
const (
	ExecutionModelVertex                 ExecutionModel = 0
	ExecutionModelTessellationControl    ExecutionModel = 1
	ExecutionModelTessellationEvaluation ExecutionModel = 2
	ExecutionModelGeometry               ExecutionModel = 3
	ExecutionModelFragment               ExecutionModel = 4
	ExecutionModelGLCompute              ExecutionModel = 5
)

var executionModelNames = map[ExecutionModel]string{
	ExecutionModelVertex:                 "Vertex",
	ExecutionModelTessellationControl:    "TessellationControl",
	ExecutionModelTessellationEvaluation: "TessellationEvaluation",
	ExecutionModelGeometry:               "Geometry",
	ExecutionModelFragment:               "Fragment",
	ExecutionModelGLCompute:              "GLCompute",
}

func (e ExecutionModel) String() string {
	if name, ok := executionModelNames[e]; ok {
		return name
	}
	return fmt.Sprintf("ExecutionModel(%d)", uint32(e))
}

// ShaderStage converts the execution model into the Vulkan stage bit.
func (e ExecutionModel) ShaderStage() (vk.ShaderStageFlagBits, error) {
	switch e {
	case ExecutionModelVertex:
		return vk.ShaderStageVertexBit, nil
	case ExecutionModelTessellationControl:
		return vk.ShaderStageTessellationControlBit, nil
	case ExecutionModelTessellationEvaluation:
		return vk.ShaderStageTessellationEvaluationBit, nil
	case ExecutionModelGeometry:
		return vk.ShaderStageGeometryBit, nil
	case ExecutionModelFragment:
		return vk.ShaderStageFragmentBit, nil
	case ExecutionModelGLCompute:
		return vk.ShaderStageComputeBit, nil
	}
	return 0, fmt.Errorf("%w: %s", ErrUnsupportedStage, e)
}

// Image dimensionalities that change the descriptor type
const (
	dimBuffer      = 5
	dimSubpassData = 6
)

// StageName returns a readable name of a single Vulkan shader stage bit.
func StageName(stage vk.ShaderStageFlagBits) string {
	switch stage {
	case vk.ShaderStageVertexBit:
		return "vertex"
	case vk.ShaderStageTessellationControlBit:
		return "tessellation control"
	case vk.ShaderStageTessellationEvaluationBit:
		return "tessellation evaluation"
	case vk.ShaderStageGeometryBit:
		return "geometry"
	case vk.ShaderStageFragmentBit:
		return "fragment"
	case vk.ShaderStageComputeBit:
		return "compute"
	}
	return fmt.Sprintf("stage(0x%x)", uint32(stage))
}

// DescriptorTypeName returns a readable name of a Vulkan descriptor type.
func DescriptorTypeName(t vk.DescriptorType) string {
	switch t {
	case vk.DescriptorTypeSampler:
		return "sampler"
	case vk.DescriptorTypeCombinedImageSampler:
		return "combined image sampler"
	case vk.DescriptorTypeSampledImage:
		return "sampled image"
	case vk.DescriptorTypeStorageImage:
		return "storage image"
	case vk.DescriptorTypeUniformTexelBuffer:
		return "uniform texel buffer"
	case vk.DescriptorTypeStorageTexelBuffer:
		return "storage texel buffer"
	case vk.DescriptorTypeUniformBuffer:
		return "uniform buffer"
	case vk.DescriptorTypeStorageBuffer:
		return "storage buffer"
	case vk.DescriptorTypeUniformBufferDynamic:
		return "dynamic uniform buffer"
	case vk.DescriptorTypeStorageBufferDynamic:
		return "dynamic storage buffer"
	case vk.DescriptorTypeInputAttachment:
		return "input attachment"
	}
	return fmt.Sprintf("descriptor(%d)", int32(t))
}
