// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package spirvtest assembles small SPIR-V modules for tests.
// Only the instructions relevant to interface reflection are emitted;
// the modules carry no function bodies.
package spirvtest

import (
	"encoding/binary"

	"github.com/devblok/kpipe/spirv"
)

// Decorations understood by the reflector
const (
	DecorationBlock         = 2
	DecorationBufferBlock   = 3
	DecorationArrayStride   = 6
	DecorationMatrixStride  = 7
	DecorationBinding       = 33
	DecorationDescriptorSet = 34
	DecorationOffset        = 35
)

// Image dimensionalities
const (
	Dim2D          = 1
	DimBuffer      = 5
	DimSubpassData = 6
)

const (
	opCapability     = 17
	opMemoryModel    = 14
	opEntryPoint     = 15
	opName           = 5
	opTypeVoid       = 19
	opTypeInt        = 21
	opTypeFloat      = 22
	opTypeVector     = 23
	opTypeMatrix     = 24
	opTypeImage      = 25
	opTypeSampler    = 26
	opTypeSampledImg = 27
	opTypeArray      = 28
	opTypeRuntimeArr = 29
	opTypeStruct     = 30
	opTypePointer    = 32
	opConstant       = 43
	opVariable       = 59
	opDecorate       = 71
	opMemberDecorate = 72
)

// Builder collects instructions into the logical sections of a module.
type Builder struct {
	nextID      uint32
	entry       []uint32
	debug       []uint32
	annotations []uint32
	types       []uint32

	uint32Type uint32
	floatType  uint32
	vec4Type   uint32
}

// New starts a module with a single entry point of the given model.
func New(model spirv.ExecutionModel, name string) *Builder {
	b := &Builder{nextID: 1}
	fn := b.ID()
	b.entry = appendInstruction(b.entry, opEntryPoint, append([]uint32{uint32(model), fn}, stringWords(name)...)...)
	return b
}

// Empty starts a module with no entry point at all.
func Empty() *Builder {
	return &Builder{nextID: 1}
}

// ID allocates a fresh result id.
func (b *Builder) ID() uint32 {
	id := b.nextID
	b.nextID++
	return id
}

// Name attaches a debug name to an id.
func (b *Builder) Name(id uint32, name string) {
	b.debug = appendInstruction(b.debug, opName, append([]uint32{id}, stringWords(name)...)...)
}

// Decorate attaches a decoration with its literal parameters to an id.
func (b *Builder) Decorate(id, decoration uint32, params ...uint32) {
	b.annotations = appendInstruction(b.annotations, opDecorate, append([]uint32{id, decoration}, params...)...)
}

// MemberDecorate attaches a decoration to a struct member.
func (b *Builder) MemberDecorate(structID, member, decoration uint32, params ...uint32) {
	b.annotations = appendInstruction(b.annotations, opMemberDecorate, append([]uint32{structID, member, decoration}, params...)...)
}

func (b *Builder) typeOp(op uint16, operands ...uint32) uint32 {
	id := b.ID()
	b.types = appendInstruction(b.types, op, append([]uint32{id}, operands...)...)
	return id
}

// Void declares the void type.
func (b *Builder) Void() uint32 { return b.typeOp(opTypeVoid) }

// Int declares an integer type.
func (b *Builder) Int(width uint32, signed bool) uint32 {
	var s uint32
	if signed {
		s = 1
	}
	return b.typeOp(opTypeInt, width, s)
}

// Float declares a floating point type.
func (b *Builder) Float(width uint32) uint32 { return b.typeOp(opTypeFloat, width) }

// Vector declares a vector of n components.
func (b *Builder) Vector(component, n uint32) uint32 { return b.typeOp(opTypeVector, component, n) }

// Matrix declares a matrix of n columns.
func (b *Builder) Matrix(column, n uint32) uint32 { return b.typeOp(opTypeMatrix, column, n) }

// Constant declares a 32 bit unsigned integer constant.
func (b *Builder) Constant(value uint32) uint32 {
	if b.uint32Type == 0 {
		b.uint32Type = b.Int(32, false)
	}
	id := b.ID()
	b.types = appendInstruction(b.types, opConstant, b.uint32Type, id, value)
	return id
}

// Array declares a fixed size array.
func (b *Builder) Array(element, length uint32) uint32 {
	return b.typeOp(opTypeArray, element, b.Constant(length))
}

// RuntimeArray declares an unsized array.
func (b *Builder) RuntimeArray(element uint32) uint32 { return b.typeOp(opTypeRuntimeArr, element) }

// Struct declares a struct with the given member types.
func (b *Builder) Struct(members ...uint32) uint32 { return b.typeOp(opTypeStruct, members...) }

// Pointer declares a pointer type in a storage class.
func (b *Builder) Pointer(class spirv.StorageClass, pointee uint32) uint32 {
	return b.typeOp(opTypePointer, uint32(class), pointee)
}

// Image declares an image type; sampled is 1 for sampled and 2 for storage.
func (b *Builder) Image(dim, sampled uint32) uint32 {
	if b.floatType == 0 {
		b.floatType = b.Float(32)
	}
	return b.typeOp(opTypeImage, b.floatType, dim, 0, 0, 0, sampled, 0)
}

// Sampler declares the sampler type.
func (b *Builder) Sampler() uint32 { return b.typeOp(opTypeSampler) }

// SampledImage declares a combined image sampler type.
func (b *Builder) SampledImage(image uint32) uint32 { return b.typeOp(opTypeSampledImg, image) }

// Variable declares a global variable of a pointer type.
func (b *Builder) Variable(pointer uint32, class spirv.StorageClass) uint32 {
	id := b.ID()
	b.types = appendInstruction(b.types, opVariable, pointer, id, uint32(class))
	return id
}

// Resource declares a named global bound at (set, binding). The element
// type is wrapped in arrays of dims, outermost first.
func (b *Builder) Resource(set, binding uint32, name string, class spirv.StorageClass, element uint32, dims ...uint32) uint32 {
	typ := element
	for idx := len(dims) - 1; idx >= 0; idx-- {
		typ = b.Array(typ, dims[idx])
	}
	v := b.Variable(b.Pointer(class, typ), class)
	b.Decorate(v, DecorationDescriptorSet, set)
	b.Decorate(v, DecorationBinding, binding)
	if name != "" {
		b.Name(v, name)
	}
	return v
}

func (b *Builder) vec4() uint32 {
	if b.floatType == 0 {
		b.floatType = b.Float(32)
	}
	if b.vec4Type == 0 {
		b.vec4Type = b.Vector(b.floatType, 4)
	}
	return b.vec4Type
}

// UniformBuffer declares a uniform block holding the given number of vec4 members.
func (b *Builder) UniformBuffer(set, binding uint32, name string, vec4s uint32, dims ...uint32) uint32 {
	block := b.block(0, vec4s)
	b.Decorate(block, DecorationBlock)
	return b.Resource(set, binding, name, spirv.StorageClassUniform, block, dims...)
}

// StorageBuffer declares a storage block with a runtime array of vec4.
func (b *Builder) StorageBuffer(set, binding uint32, name string, dims ...uint32) uint32 {
	arr := b.RuntimeArray(b.vec4())
	b.Decorate(arr, DecorationArrayStride, 16)
	block := b.Struct(arr)
	b.Decorate(block, DecorationBlock)
	b.MemberDecorate(block, 0, DecorationOffset, 0)
	return b.Resource(set, binding, name, spirv.StorageClassStorageBuffer, block, dims...)
}

// SamplerBinding declares a sampler resource.
func (b *Builder) SamplerBinding(set, binding uint32, name string, dims ...uint32) uint32 {
	return b.Resource(set, binding, name, spirv.StorageClassUniformConstant, b.Sampler(), dims...)
}

// TextureBinding declares a sampled 2D image resource.
func (b *Builder) TextureBinding(set, binding uint32, name string, dims ...uint32) uint32 {
	return b.Resource(set, binding, name, spirv.StorageClassUniformConstant, b.Image(Dim2D, 1), dims...)
}

// CombinedImageSampler declares a combined image sampler resource.
func (b *Builder) CombinedImageSampler(set, binding uint32, name string, dims ...uint32) uint32 {
	return b.Resource(set, binding, name, spirv.StorageClassUniformConstant, b.SampledImage(b.Image(Dim2D, 1)), dims...)
}

// PushConstants declares a push constant block of vec4 members starting at offset.
func (b *Builder) PushConstants(name string, offset, vec4s uint32) uint32 {
	block := b.block(offset, vec4s)
	b.Decorate(block, DecorationBlock)
	v := b.Variable(b.Pointer(spirv.StorageClassPushConstant, block), spirv.StorageClassPushConstant)
	if name != "" {
		b.Name(v, name)
	}
	return v
}

func (b *Builder) block(offset, vec4s uint32) uint32 {
	members := make([]uint32, vec4s)
	for idx := range members {
		members[idx] = b.vec4()
	}
	block := b.Struct(members...)
	for idx := range members {
		b.MemberDecorate(block, uint32(idx), DecorationOffset, offset+uint32(idx)*16)
	}
	return block
}

// Words returns the module as a word stream.
func (b *Builder) Words() []uint32 {
	words := []uint32{spirv.MagicNumber, 0x00010300, 0, b.nextID, 0}
	words = appendInstruction(words, opCapability, 1)
	words = appendInstruction(words, opMemoryModel, 0, 1)
	words = append(words, b.entry...)
	words = append(words, b.debug...)
	words = append(words, b.annotations...)
	words = append(words, b.types...)
	return words
}

// Bytes returns the module encoded little endian.
func (b *Builder) Bytes() []byte {
	return Encode(b.Words(), binary.LittleEndian)
}

// BigEndianBytes returns the module encoded big endian.
func (b *Builder) BigEndianBytes() []byte {
	return Encode(b.Words(), binary.BigEndian)
}

// Encode serializes words in the given byte order.
func Encode(words []uint32, order binary.ByteOrder) []byte {
	out := make([]byte, len(words)*4)
	for idx, w := range words {
		order.PutUint32(out[idx*4:], w)
	}
	return out
}

func appendInstruction(dst []uint32, op uint16, operands ...uint32) []uint32 {
	dst = append(dst, uint32(len(operands)+1)<<16|uint32(op))
	return append(dst, operands...)
}

func stringWords(s string) []uint32 {
	raw := append([]byte(s), 0)
	for len(raw)%4 != 0 {
		raw = append(raw, 0)
	}
	words := make([]uint32, len(raw)/4)
	for idx := range words {
		words[idx] = binary.LittleEndian.Uint32(raw[idx*4:])
	}
	return words
}
