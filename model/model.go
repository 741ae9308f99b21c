// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package model

import (
	"unsafe"

	glm "github.com/go-gl/mathgl/mgl32"

	"github.com/devblok/kpipe/core"
)

// Vertex is a model vertex
type Vertex struct {
	Pos   glm.Vec3
	Color glm.Vec4
}

// VertexLayout describes Vertex to the pipeline, position at
// location 0 and color at location 1.
func VertexLayout() core.VertexLayout {
	return core.VertexLayout{Elements: []core.VertexElement{
		{Name: "position", Type: core.Float3, Offset: uint32(unsafe.Offsetof(Vertex{}.Pos))},
		{Name: "color", Type: core.Float4, Offset: uint32(unsafe.Offsetof(Vertex{}.Color))},
	}}
}

// PushConstants is the per draw block pushed to the vertex stage
type PushConstants struct {
	MVP glm.Mat4
}

// NewPushConstants combines the matrices into a single transform
func NewPushConstants(model, view, projection glm.Mat4) PushConstants {
	return PushConstants{MVP: projection.Mul4(view).Mul4(model)}
}

// Size is the byte size of the block
func (p *PushConstants) Size() uint32 {
	return uint32(unsafe.Sizeof(*p))
}

// Pointer points to the block for recording a push
func (p *PushConstants) Pointer() unsafe.Pointer {
	return unsafe.Pointer(p)
}

// Triangle is a colored triangle facing the camera
func Triangle() []Vertex {
	return []Vertex{
		{Pos: glm.Vec3{0, -0.5, 0}, Color: glm.Vec4{1, 0, 0, 1}},
		{Pos: glm.Vec3{0.5, 0.5, 0}, Color: glm.Vec4{0, 1, 0, 1}},
		{Pos: glm.Vec3{-0.5, 0.5, 0}, Color: glm.Vec4{0, 0, 1, 1}},
	}
}
