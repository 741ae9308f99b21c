// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package spirv

import (
	"fmt"
	"math"

	vk "github.com/devblok/vulkan"
)

// maxTypeDepth guards against self referencing types in corrupted modules.
const maxTypeDepth = 64

// product multiplies sizes and counts, rejecting results that do not fit
// a 32 bit size.
func product(factors ...uint32) (uint32, error) {
	total := uint64(1)
	for _, f := range factors {
		total *= uint64(f)
		if total > math.MaxUint32 {
			return 0, fmt.Errorf("%w: size overflows 32 bits", ErrInvalidModule)
		}
	}
	return uint32(total), nil
}

func (m *module) typeOf(id uint32) (typeInfo, error) {
	t, ok := m.types[id]
	if !ok {
		return typeInfo{}, fmt.Errorf("%w: type %%%d is not declared", ErrInvalidModule, id)
	}
	return t, nil
}

// pointee resolves a pointer type to the type it points at.
func (m *module) pointee(pointerType uint32) (uint32, error) {
	t, err := m.typeOf(pointerType)
	if err != nil {
		return 0, err
	}
	if t.op != opTypePointer || len(t.operands) < 2 {
		return 0, fmt.Errorf("%w: %%%d is not a pointer type", ErrInvalidModule, pointerType)
	}
	return t.operands[1], nil
}

// unwrapArrays peels array types off a resource type and collects their
// dimensions, outermost first. Runtime arrays contribute no dimension.
func (m *module) unwrapArrays(typeID uint32) (uint32, []uint32, error) {
	var dims []uint32
	for depth := 0; depth < maxTypeDepth; depth++ {
		t, err := m.typeOf(typeID)
		if err != nil {
			return 0, nil, err
		}
		switch t.op {
		case opTypeArray:
			if len(t.operands) < 2 {
				return 0, nil, fmt.Errorf("%w: malformed array %%%d", ErrInvalidModule, typeID)
			}
			length, ok := m.constants[t.operands[1]]
			if !ok {
				return 0, nil, fmt.Errorf("%w: array %%%d length is not a constant", ErrInvalidModule, typeID)
			}
			dims = append(dims, length)
			typeID = t.operands[0]
		case opTypeRuntimeArr:
			if len(t.operands) < 1 {
				return 0, nil, fmt.Errorf("%w: malformed runtime array %%%d", ErrInvalidModule, typeID)
			}
			typeID = t.operands[0]
		default:
			return typeID, dims, nil
		}
	}
	return 0, nil, fmt.Errorf("%w: type nesting too deep", ErrInvalidModule)
}

// descriptorType decides the Vulkan descriptor type of a resource variable
// from its storage class and the element type behind any arrays.
func (m *module) descriptorType(typeID uint32, class StorageClass) (vk.DescriptorType, error) {
	t, err := m.typeOf(typeID)
	if err != nil {
		return 0, err
	}

	switch t.op {
	case opTypeSampler:
		return vk.DescriptorTypeSampler, nil

	case opTypeSampledImg:
		if len(t.operands) < 1 {
			return 0, fmt.Errorf("%w: malformed sampled image %%%d", ErrInvalidModule, typeID)
		}
		img, err := m.typeOf(t.operands[0])
		if err != nil {
			return 0, err
		}
		if img.op == opTypeImage && len(img.operands) > 1 && img.operands[1] == dimBuffer {
			return vk.DescriptorTypeUniformTexelBuffer, nil
		}
		return vk.DescriptorTypeCombinedImageSampler, nil

	case opTypeImage:
		// operands: sampled type, dim, depth, arrayed, ms, sampled, format
		if len(t.operands) < 6 {
			return 0, fmt.Errorf("%w: malformed image %%%d", ErrInvalidModule, typeID)
		}
		dim, sampled := t.operands[1], t.operands[5]
		switch {
		case dim == dimBuffer && sampled == 2:
			return vk.DescriptorTypeStorageTexelBuffer, nil
		case dim == dimBuffer:
			return vk.DescriptorTypeUniformTexelBuffer, nil
		case dim == dimSubpassData:
			return vk.DescriptorTypeInputAttachment, nil
		case sampled == 2:
			return vk.DescriptorTypeStorageImage, nil
		}
		return vk.DescriptorTypeSampledImage, nil

	case opTypeStruct:
		switch class {
		case StorageClassStorageBuffer:
			return vk.DescriptorTypeStorageBuffer, nil
		case StorageClassUniform:
			if m.hasDecoration(typeID, decorationBufferBlock) {
				return vk.DescriptorTypeStorageBuffer, nil
			}
			return vk.DescriptorTypeUniformBuffer, nil
		}
	}
	return 0, fmt.Errorf("%w: %%%d (opcode %d) in storage class %d", ErrUnsupportedResource, typeID, t.op, class)
}

// sizeOf computes the byte size of a type laid out with explicit offsets.
// Matrix stride is a member decoration, so the caller passes it down.
func (m *module) sizeOf(typeID uint32, matrixStride uint32, depth int) (uint32, error) {
	if depth > maxTypeDepth {
		return 0, fmt.Errorf("%w: type nesting too deep", ErrInvalidModule)
	}
	t, err := m.typeOf(typeID)
	if err != nil {
		return 0, err
	}

	switch t.op {
	case opTypeBool:
		return 4, nil

	case opTypeInt, opTypeFloat:
		if len(t.operands) < 1 {
			return 0, fmt.Errorf("%w: malformed scalar %%%d", ErrInvalidModule, typeID)
		}
		return t.operands[0] / 8, nil

	case opTypeVector:
		if len(t.operands) < 2 {
			return 0, fmt.Errorf("%w: malformed vector %%%d", ErrInvalidModule, typeID)
		}
		component, err := m.sizeOf(t.operands[0], 0, depth+1)
		if err != nil {
			return 0, err
		}
		return product(component, t.operands[1])

	case opTypeMatrix:
		if len(t.operands) < 2 {
			return 0, fmt.Errorf("%w: malformed matrix %%%d", ErrInvalidModule, typeID)
		}
		if matrixStride != 0 {
			return product(matrixStride, t.operands[1])
		}
		column, err := m.sizeOf(t.operands[0], 0, depth+1)
		if err != nil {
			return 0, err
		}
		return product(column, t.operands[1])

	case opTypeArray:
		if len(t.operands) < 2 {
			return 0, fmt.Errorf("%w: malformed array %%%d", ErrInvalidModule, typeID)
		}
		length, ok := m.constants[t.operands[1]]
		if !ok {
			return 0, fmt.Errorf("%w: array %%%d length is not a constant", ErrInvalidModule, typeID)
		}
		if stride, ok := m.decoration(typeID, decorationArrayStride); ok && stride != 0 {
			return product(stride, length)
		}
		element, err := m.sizeOf(t.operands[0], matrixStride, depth+1)
		if err != nil {
			return 0, err
		}
		return product(element, length)

	case opTypeRuntimeArr:
		return 0, nil

	case opTypePointer:
		return 8, nil

	case opTypeStruct:
		_, end, err := m.structExtent(typeID, depth+1)
		return end, err
	}
	return 0, fmt.Errorf("%w: cannot size type %%%d (opcode %d)", ErrUnsupportedResource, typeID, t.op)
}

// structExtent returns the lowest member offset and the end of the last
// byte occupied by any member. Members without an Offset decoration are
// packed after the previous one.
func (m *module) structExtent(structID uint32, depth int) (uint32, uint32, error) {
	t, err := m.typeOf(structID)
	if err != nil {
		return 0, 0, err
	}
	if t.op != opTypeStruct {
		return 0, 0, fmt.Errorf("%w: %%%d is not a struct", ErrInvalidModule, structID)
	}
	if len(t.operands) == 0 {
		return 0, 0, nil
	}

	var (
		begin  = ^uint32(0)
		end    uint32
		cursor uint32
	)
	for idx, memberType := range t.operands {
		member := uint32(idx)
		offset, ok := m.memberDecoration(structID, member, decorationOffset)
		if !ok {
			offset = cursor
		}
		stride, _ := m.memberDecoration(structID, member, decorationMatrixStride)
		size, err := m.sizeOf(memberType, stride, depth)
		if err != nil {
			return 0, 0, err
		}
		memberEnd := uint64(offset) + uint64(size)
		if memberEnd > math.MaxUint32 {
			return 0, 0, fmt.Errorf("%w: struct %%%d member %d ends past 4GiB", ErrInvalidModule, structID, member)
		}
		if offset < begin {
			begin = offset
		}
		if uint32(memberEnd) > end {
			end = uint32(memberEnd)
		}
		cursor = uint32(memberEnd)
	}
	return begin, end, nil
}
