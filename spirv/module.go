// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package spirv

import (
	"encoding/binary"
	"fmt"
)

type entryPoint struct {
	model    ExecutionModel
	function uint32
	name     string
}

type typeInfo struct {
	op       opcode
	operands []uint32
}

type variable struct {
	id           uint32
	pointerType  uint32
	storageClass StorageClass
}

type memberKey struct {
	structID uint32
	member   uint32
}

// module is the decoded form of a SPIR-V binary, holding only what is
// needed to answer interface queries.
type module struct {
	version     uint32
	entryPoints []entryPoint
	names       map[uint32]string
	decorations map[uint32]map[decoration][]uint32
	members     map[memberKey]map[decoration][]uint32
	types       map[uint32]typeInfo
	constants   map[uint32]uint32
	variables   []variable
}

// decode walks the instruction stream. Instructions the reflection
// does not care about are skipped by their word count.
func decode(code []byte) (*module, error) {
	if len(code)%4 != 0 {
		return nil, fmt.Errorf("%w: size %d is not a multiple of 4", ErrInvalidModule, len(code))
	}
	if len(code) < headerWords*4 {
		return nil, fmt.Errorf("%w: %d bytes is shorter than the header", ErrInvalidModule, len(code))
	}

	var order binary.ByteOrder = binary.LittleEndian
	switch binary.LittleEndian.Uint32(code) {
	case MagicNumber:
	case magicNumberSwapped:
		order = binary.BigEndian
	default:
		return nil, fmt.Errorf("%w: bad magic 0x%08x", ErrInvalidModule, binary.LittleEndian.Uint32(code))
	}

	words := make([]uint32, len(code)/4)
	for idx := range words {
		words[idx] = order.Uint32(code[idx*4:])
	}

	m := &module{
		version:     words[1],
		names:       make(map[uint32]string),
		decorations: make(map[uint32]map[decoration][]uint32),
		members:     make(map[memberKey]map[decoration][]uint32),
		types:       make(map[uint32]typeInfo),
		constants:   make(map[uint32]uint32),
	}

	for offset := headerWords; offset < len(words); {
		wordCount := int(words[offset] >> 16)
		op := opcode(words[offset] & 0xFFFF)
		if wordCount == 0 || offset+wordCount > len(words) {
			return nil, fmt.Errorf("%w: invalid word count %d at word %d", ErrInvalidModule, wordCount, offset)
		}
		if err := m.record(op, words[offset+1:offset+wordCount]); err != nil {
			return nil, fmt.Errorf("%w: opcode %d at word %d: %s", ErrInvalidModule, op, offset, err)
		}
		offset += wordCount
	}
	return m, nil
}

func (m *module) record(op opcode, ops []uint32) error {
	switch op {
	case opName:
		if len(ops) < 1 {
			return errShortInstruction
		}
		m.names[ops[0]] = literalString(ops[1:])

	case opEntryPoint:
		if len(ops) < 3 {
			return errShortInstruction
		}
		m.entryPoints = append(m.entryPoints, entryPoint{
			model:    ExecutionModel(ops[0]),
			function: ops[1],
			name:     literalString(ops[2:]),
		})

	case opDecorate:
		if len(ops) < 2 {
			return errShortInstruction
		}
		decs, ok := m.decorations[ops[0]]
		if !ok {
			decs = make(map[decoration][]uint32)
			m.decorations[ops[0]] = decs
		}
		decs[decoration(ops[1])] = ops[2:]

	case opMemberDecorate:
		if len(ops) < 3 {
			return errShortInstruction
		}
		key := memberKey{structID: ops[0], member: ops[1]}
		decs, ok := m.members[key]
		if !ok {
			decs = make(map[decoration][]uint32)
			m.members[key] = decs
		}
		decs[decoration(ops[2])] = ops[3:]

	case opTypeVoid, opTypeBool, opTypeInt, opTypeFloat, opTypeVector, opTypeMatrix,
		opTypeImage, opTypeSampler, opTypeSampledImg, opTypeArray, opTypeRuntimeArr,
		opTypeStruct, opTypePointer, opTypeAccelStruct:
		if len(ops) < 1 {
			return errShortInstruction
		}
		m.types[ops[0]] = typeInfo{op: op, operands: ops[1:]}

	case opConstant, opSpecConstant:
		if len(ops) < 3 {
			return errShortInstruction
		}
		// only the low order word matters for array lengths
		m.constants[ops[1]] = ops[2]

	case opVariable:
		if len(ops) < 3 {
			return errShortInstruction
		}
		m.variables = append(m.variables, variable{
			pointerType:  ops[0],
			id:           ops[1],
			storageClass: StorageClass(ops[2]),
		})
	}
	return nil
}

func (m *module) decoration(id uint32, dec decoration) (uint32, bool) {
	params, ok := m.decorations[id][dec]
	if !ok || len(params) == 0 {
		return 0, ok
	}
	return params[0], true
}

func (m *module) hasDecoration(id uint32, dec decoration) bool {
	_, ok := m.decorations[id][dec]
	return ok
}

func (m *module) memberDecoration(structID, member uint32, dec decoration) (uint32, bool) {
	params, ok := m.members[memberKey{structID: structID, member: member}][dec]
	if !ok || len(params) == 0 {
		return 0, false
	}
	return params[0], true
}

// literalString decodes a nul terminated string packed into words.
func literalString(words []uint32) string {
	buf := make([]byte, 0, len(words)*4)
	for _, w := range words {
		for shift := uint(0); shift < 32; shift += 8 {
			b := byte(w >> shift)
			if b == 0 {
				return string(buf)
			}
			buf = append(buf, b)
		}
	}
	return string(buf)
}
