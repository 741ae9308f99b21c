// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	vk "github.com/devblok/vulkan"
)

// FixedFunctionState holds every non programmable state block of a
// graphics pipeline. It keeps the slices the blocks point into alive,
// so a state must outlive the create info built from it.
type FixedFunctionState struct {
	VertexInput   vk.PipelineVertexInputStateCreateInfo
	InputAssembly vk.PipelineInputAssemblyStateCreateInfo
	Viewport      vk.PipelineViewportStateCreateInfo
	Rasterization vk.PipelineRasterizationStateCreateInfo
	Multisample   vk.PipelineMultisampleStateCreateInfo
	DepthStencil  vk.PipelineDepthStencilStateCreateInfo
	ColorBlend    vk.PipelineColorBlendStateCreateInfo
	Dynamic       vk.PipelineDynamicStateCreateInfo
}

// NewFixedFunctionState translates the flags and the vertex layout into
// state blocks. Viewport and scissor are left dynamic.
func NewFixedFunctionState(flags PipelineFlags, layout VertexLayout) *FixedFunctionState {
	bindings := layout.BindingDescriptions()
	attributes := layout.AttributeDescriptions()

	s := &FixedFunctionState{
		VertexInput: vk.PipelineVertexInputStateCreateInfo{
			SType:                           vk.StructureTypePipelineVertexInputStateCreateInfo,
			VertexBindingDescriptionCount:   uint32(len(bindings)),
			PVertexBindingDescriptions:      bindings,
			VertexAttributeDescriptionCount: uint32(len(attributes)),
			PVertexAttributeDescriptions:    attributes,
		},
		InputAssembly: vk.PipelineInputAssemblyStateCreateInfo{
			SType:                  vk.StructureTypePipelineInputAssemblyStateCreateInfo,
			Topology:               vk.PrimitiveTopologyTriangleList,
			PrimitiveRestartEnable: vk.False,
		},
		Viewport: vk.PipelineViewportStateCreateInfo{
			SType:         vk.StructureTypePipelineViewportStateCreateInfo,
			ViewportCount: 1,
			ScissorCount:  1,
		},
		Rasterization: vk.PipelineRasterizationStateCreateInfo{
			SType:                   vk.StructureTypePipelineRasterizationStateCreateInfo,
			DepthClampEnable:        vk.False,
			RasterizerDiscardEnable: vk.False,
			DepthBiasEnable:         vk.False,
			LineWidth:               1.0,
			PolygonMode:             vk.PolygonModeFill,
			CullMode:                vk.CullModeFlags(vk.CullModeNone),
			FrontFace:               vk.FrontFaceCounterClockwise,
		},
		Multisample: vk.PipelineMultisampleStateCreateInfo{
			SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
			RasterizationSamples: vk.SampleCount1Bit,
			SampleShadingEnable:  vk.False,
		},
		DepthStencil: vk.PipelineDepthStencilStateCreateInfo{
			SType:                 vk.StructureTypePipelineDepthStencilStateCreateInfo,
			DepthTestEnable:       bool32(flags.Has(DepthTestEnabled)),
			DepthWriteEnable:      bool32(flags.Has(DepthWriteEnabled)),
			DepthCompareOp:        depthCompareOp(flags),
			DepthBoundsTestEnable: vk.False,
			StencilTestEnable:     vk.False,
			Front: vk.StencilOpState{
				FailOp:    vk.StencilOpKeep,
				PassOp:    vk.StencilOpKeep,
				CompareOp: vk.CompareOpAlways,
			},
			Back: vk.StencilOpState{
				FailOp:    vk.StencilOpKeep,
				PassOp:    vk.StencilOpKeep,
				CompareOp: vk.CompareOpAlways,
			},
		},
		ColorBlend: vk.PipelineColorBlendStateCreateInfo{
			SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
			LogicOpEnable:   vk.False,
			LogicOp:         vk.LogicOpCopy,
			AttachmentCount: 1,
			PAttachments: []vk.PipelineColorBlendAttachmentState{{
				BlendEnable: vk.False,
				ColorWriteMask: vk.ColorComponentFlags(vk.ColorComponentRBit | vk.ColorComponentGBit |
					vk.ColorComponentBBit | vk.ColorComponentABit),
			}},
			BlendConstants: [4]float32{0, 0, 0, 0},
		},
		Dynamic: vk.PipelineDynamicStateCreateInfo{
			SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
			DynamicStateCount: 2,
			PDynamicStates: []vk.DynamicState{
				vk.DynamicStateViewport,
				vk.DynamicStateScissor,
			},
		},
	}

	if flags.Has(PolygonModeLine) {
		s.Rasterization.PolygonMode = vk.PolygonModeLine
	}

	if flags.Has(EnableCulling) {
		s.Rasterization.FrontFace = vk.FrontFaceCounterClockwise
		if flags.Has(CullModeFrontFace) {
			s.Rasterization.CullMode = vk.CullModeFlags(vk.CullModeFrontBit)
		} else {
			s.Rasterization.CullMode = vk.CullModeFlags(vk.CullModeBackBit)
		}
	}
	return s
}

// GraphicsPipelineCreateInfo fills a create info pointing into the state.
func (s *FixedFunctionState) GraphicsPipelineCreateInfo(stages []vk.PipelineShaderStageCreateInfo, layout vk.PipelineLayout, renderPass vk.RenderPass) vk.GraphicsPipelineCreateInfo {
	return vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(stages)),
		PStages:             stages,
		PVertexInputState:   &s.VertexInput,
		PInputAssemblyState: &s.InputAssembly,
		PViewportState:      &s.Viewport,
		PRasterizationState: &s.Rasterization,
		PMultisampleState:   &s.Multisample,
		PDepthStencilState:  &s.DepthStencil,
		PColorBlendState:    &s.ColorBlend,
		PDynamicState:       &s.Dynamic,
		Layout:              layout,
		RenderPass:          renderPass,
		Subpass:             0,
		BasePipelineIndex:   -1,
	}
}

// depthCompareOp resolves the compare flags, combinations first.
func depthCompareOp(flags PipelineFlags) vk.CompareOp {
	less := flags.Has(DepthCompareLess)
	equal := flags.Has(DepthCompareEqual)
	greater := flags.Has(DepthCompareGreater)

	if flags.Has(LegacyDepthCompare) {
		switch {
		case less:
			return vk.CompareOpLess
		case equal:
			return vk.CompareOpEqual
		case greater:
			return vk.CompareOpGreater
		}
		return vk.CompareOpNever
	}

	switch {
	case less && equal && greater:
		return vk.CompareOpAlways
	case less && equal:
		return vk.CompareOpLessOrEqual
	case greater && equal:
		return vk.CompareOpGreaterOrEqual
	case less && greater:
		return vk.CompareOpNotEqual
	case less:
		return vk.CompareOpLess
	case equal:
		return vk.CompareOpEqual
	case greater:
		return vk.CompareOpGreater
	}
	return vk.CompareOpNever
}

func bool32(b bool) vk.Bool32 {
	if b {
		return vk.True
	}
	return vk.False
}
