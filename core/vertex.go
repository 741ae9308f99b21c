// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"fmt"

	vk "github.com/devblok/vulkan"
)

// DataType is the semantic type of one vertex element
type DataType int

// Vertex element types
const (
	Float DataType = iota
	Float2
	Float3
	Float4
	Int
	Int2
	Int3
	Int4
	UInt
	UInt2
	UInt3
	UInt4
	ColorUNorm
)

type dataTypeInfo struct {
	name   string
	size   uint32
	format vk.Format
}

var dataTypes = map[DataType]dataTypeInfo{
	Float:      {"float", 4, vk.FormatR32Sfloat},
	Float2:     {"float2", 8, vk.FormatR32g32Sfloat},
	Float3:     {"float3", 12, vk.FormatR32g32b32Sfloat},
	Float4:     {"float4", 16, vk.FormatR32g32b32a32Sfloat},
	Int:        {"int", 4, vk.FormatR32Sint},
	Int2:       {"int2", 8, vk.FormatR32g32Sint},
	Int3:       {"int3", 12, vk.FormatR32g32b32Sint},
	Int4:       {"int4", 16, vk.FormatR32g32b32a32Sint},
	UInt:       {"uint", 4, vk.FormatR32Uint},
	UInt2:      {"uint2", 8, vk.FormatR32g32Uint},
	UInt3:      {"uint3", 12, vk.FormatR32g32b32Uint},
	UInt4:      {"uint4", 16, vk.FormatR32g32b32a32Uint},
	ColorUNorm: {"color", 4, vk.FormatR8g8b8a8Unorm},
}

// Size is the byte size of the type
func (d DataType) Size() uint32 {
	return dataTypes[d].size
}

// Format is the Vulkan vertex attribute format of the type
func (d DataType) Format() vk.Format {
	if info, ok := dataTypes[d]; ok {
		return info.format
	}
	return vk.FormatUndefined
}

func (d DataType) String() string {
	if info, ok := dataTypes[d]; ok {
		return info.name
	}
	return fmt.Sprintf("DataType(%d)", int(d))
}

// VertexElement is one attribute of a vertex
type VertexElement struct {
	Name   string
	Type   DataType
	Offset uint32
}

// VertexLayout is the ordered list of vertex elements. The element index
// is the attribute location in the vertex shader.
type VertexLayout struct {
	Elements []VertexElement
}

// NewVertexLayout lays the elements out back to back, in order.
// Offsets given in elements are overwritten.
func NewVertexLayout(elements ...VertexElement) VertexLayout {
	var offset uint32
	laid := make([]VertexElement, len(elements))
	for idx, e := range elements {
		e.Offset = offset
		offset += e.Type.Size()
		laid[idx] = e
	}
	return VertexLayout{Elements: laid}
}

// Stride is the distance between two vertices, the end of the furthest element.
func (l VertexLayout) Stride() uint32 {
	var stride uint32
	for _, e := range l.Elements {
		if end := e.Offset + e.Type.Size(); end > stride {
			stride = end
		}
	}
	return stride
}

// BindingDescriptions describes the single per vertex binding of the layout
func (l VertexLayout) BindingDescriptions() []vk.VertexInputBindingDescription {
	return []vk.VertexInputBindingDescription{{
		Binding:   0,
		Stride:    l.Stride(),
		InputRate: vk.VertexInputRateVertex,
	}}
}

// AttributeDescriptions describes every element at its own location
func (l VertexLayout) AttributeDescriptions() []vk.VertexInputAttributeDescription {
	if len(l.Elements) == 0 {
		return nil
	}
	attrs := make([]vk.VertexInputAttributeDescription, len(l.Elements))
	for idx, e := range l.Elements {
		attrs[idx] = vk.VertexInputAttributeDescription{
			Binding:  0,
			Location: uint32(idx),
			Format:   e.Type.Format(),
			Offset:   e.Offset,
		}
	}
	return attrs
}
