// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package spirv

import (
	"fmt"
	"sort"

	vk "github.com/devblok/vulkan"
)

// Binding is a single resource slot a shader expects inside a descriptor set.
type Binding struct {
	Binding        uint32              `json:"binding"`
	DescriptorType vk.DescriptorType   `json:"descriptorType"`
	Count          uint32              `json:"count"`
	Dims           []uint32            `json:"dims,omitempty"`
	Stage          vk.ShaderStageFlags `json:"stage"`
	Name           string              `json:"name,omitempty"`
}

func (b Binding) String() string {
	return fmt.Sprintf("binding %d %s[%d] %q", b.Binding, DescriptorTypeName(b.DescriptorType), b.Count, b.Name)
}

// DescriptorSet groups the bindings that share one set index.
type DescriptorSet struct {
	Set      uint32    `json:"set"`
	Bindings []Binding `json:"bindings"`
}

// Reflection is the interface of one shader stage as read from its binary.
type Reflection struct {
	EntryPoint     string                 `json:"entryPoint"`
	Stage          vk.ShaderStageFlagBits `json:"stage"`
	DescriptorSets []DescriptorSet        `json:"descriptorSets"`
	PushConstants  []vk.PushConstantRange `json:"pushConstants"`
}

// Set returns the bindings group with the given set index.
func (r *Reflection) Set(n uint32) (DescriptorSet, bool) {
	for _, set := range r.DescriptorSets {
		if set.Set == n {
			return set, true
		}
	}
	return DescriptorSet{}, false
}

// BindingCount is the number of bindings over all sets.
func (r *Reflection) BindingCount() int {
	var n int
	for _, set := range r.DescriptorSets {
		n += len(set.Bindings)
	}
	return n
}

func (r *Reflection) String() string {
	return fmt.Sprintf("%s %q: %d sets, %d bindings, %d push constant ranges",
		StageName(r.Stage), r.EntryPoint, len(r.DescriptorSets), r.BindingCount(), len(r.PushConstants))
}

// Reflect reads the stage, descriptor bindings and push constant blocks
// of a SPIR-V binary. A module with no resources yields empty lists.
func Reflect(code []byte) (*Reflection, error) {
	m, err := decode(code)
	if err != nil {
		return nil, err
	}

	if len(m.entryPoints) == 0 {
		return nil, ErrNoEntryPoint
	}
	entry := m.entryPoints[0]
	stage, err := entry.model.ShaderStage()
	if err != nil {
		return nil, err
	}

	r := &Reflection{
		EntryPoint:     entry.name,
		Stage:          stage,
		DescriptorSets: []DescriptorSet{},
		PushConstants:  []vk.PushConstantRange{},
	}

	sets := make(map[uint32][]Binding)
	for _, v := range m.variables {
		switch v.storageClass {
		case StorageClassUniformConstant, StorageClassUniform, StorageClassStorageBuffer:
			set, hasSet := m.decoration(v.id, decorationDescriptorSet)
			binding, hasBinding := m.decoration(v.id, decorationBinding)
			if !hasSet || !hasBinding {
				continue
			}
			b, err := m.reflectBinding(v, stage)
			if err != nil {
				return nil, fmt.Errorf("variable %%%d: %w", v.id, err)
			}
			b.Binding = binding
			sets[set] = append(sets[set], b)

		case StorageClassPushConstant:
			pcr, err := m.reflectPushConstant(v, stage)
			if err != nil {
				return nil, fmt.Errorf("push constant %%%d: %w", v.id, err)
			}
			r.PushConstants = append(r.PushConstants, pcr)
		}
	}

	for idx, bindings := range sets {
		sort.Slice(bindings, func(i, j int) bool {
			return bindings[i].Binding < bindings[j].Binding
		})
		r.DescriptorSets = append(r.DescriptorSets, DescriptorSet{
			Set:      idx,
			Bindings: bindings,
		})
	}
	sort.Slice(r.DescriptorSets, func(i, j int) bool {
		return r.DescriptorSets[i].Set < r.DescriptorSets[j].Set
	})

	return r, nil
}

func (m *module) reflectBinding(v variable, stage vk.ShaderStageFlagBits) (Binding, error) {
	typeID, err := m.pointee(v.pointerType)
	if err != nil {
		return Binding{}, err
	}
	element, dims, err := m.unwrapArrays(typeID)
	if err != nil {
		return Binding{}, err
	}
	descriptorType, err := m.descriptorType(element, v.storageClass)
	if err != nil {
		return Binding{}, err
	}

	count, err := product(dims...)
	if err != nil {
		return Binding{}, err
	}

	name := m.names[v.id]
	if name == "" {
		name = m.names[element]
	}

	return Binding{
		DescriptorType: descriptorType,
		Count:          count,
		Dims:           dims,
		Stage:          vk.ShaderStageFlags(stage),
		Name:           name,
	}, nil
}

func (m *module) reflectPushConstant(v variable, stage vk.ShaderStageFlagBits) (vk.PushConstantRange, error) {
	typeID, err := m.pointee(v.pointerType)
	if err != nil {
		return vk.PushConstantRange{}, err
	}
	begin, end, err := m.structExtent(typeID, 0)
	if err != nil {
		return vk.PushConstantRange{}, err
	}
	if end < begin {
		begin = end
	}
	return vk.PushConstantRange{
		StageFlags: vk.ShaderStageFlags(stage),
		Offset:     begin,
		Size:       end - begin,
	}, nil
}
