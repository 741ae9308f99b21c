// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"fmt"
	"sort"

	vk "github.com/devblok/vulkan"
	log "github.com/sirupsen/logrus"

	"github.com/devblok/kpipe/spirv"
)

type bindingKey struct {
	set     uint32
	binding uint32
}

// setBindings is the merged view of one descriptor set over all stages
type setBindings struct {
	set      uint32
	bindings []vk.DescriptorSetLayoutBinding
}

// mergeBindings folds the bindings of every stage into one list per set.
// A binding declared by several stages is visible to all of them and takes
// the largest descriptor count. Declaring it with different descriptor types
// is an error. The result holds one entry per declared set, ordered by set,
// bindings by binding index.
func mergeBindings(reflections []*spirv.Reflection) ([]setBindings, error) {
	merged := make(map[bindingKey]vk.DescriptorSetLayoutBinding)
	for _, r := range reflections {
		for _, set := range r.DescriptorSets {
			for _, b := range set.Bindings {
				key := bindingKey{set: set.Set, binding: b.Binding}
				prev, ok := merged[key]
				if !ok {
					merged[key] = vk.DescriptorSetLayoutBinding{
						Binding:         b.Binding,
						DescriptorType:  b.DescriptorType,
						DescriptorCount: b.Count,
						StageFlags:      b.Stage,
					}
					continue
				}

				if prev.DescriptorType != b.DescriptorType {
					return nil, fmt.Errorf("set %d binding %d: declared as %s and %s (%s stage)",
						set.Set, b.Binding,
						spirv.DescriptorTypeName(prev.DescriptorType),
						spirv.DescriptorTypeName(b.DescriptorType),
						spirv.StageName(r.Stage))
				}
				prev.StageFlags |= b.Stage
				if b.Count > prev.DescriptorCount {
					log.WithFields(log.Fields{
						"set":     set.Set,
						"binding": b.Binding,
						"count":   b.Count,
						"was":     prev.DescriptorCount,
					}).Debug("descriptor count grown by later stage")
					prev.DescriptorCount = b.Count
				}
				merged[key] = prev
			}
		}
	}

	if len(merged) == 0 {
		return nil, nil
	}

	bySet := make(map[uint32][]vk.DescriptorSetLayoutBinding)
	for key, b := range merged {
		bySet[key.set] = append(bySet[key.set], b)
	}

	sets := make([]setBindings, 0, len(bySet))
	for set, bindings := range bySet {
		sort.Slice(bindings, func(i, j int) bool {
			return bindings[i].Binding < bindings[j].Binding
		})
		sets = append(sets, setBindings{set: set, bindings: bindings})
	}
	sort.Slice(sets, func(i, j int) bool {
		return sets[i].set < sets[j].set
	})

	for idx, set := range sets {
		if set.set != uint32(idx) {
			log.WithFields(log.Fields{
				"set":      set.set,
				"position": idx,
			}).Warn(sparseSetsWarning)
			break
		}
	}
	return sets, nil
}

const sparseSetsWarning = "descriptor set indices are not contiguous, sets bind at their position in the layout " +
	"and drivers will reject shaders that use the declared indices"

// createDescriptorSetLayouts creates one layout per merged set, in set order.
// Every created handle is appended to the pipeline right away so a later
// failure still releases it.
func (p *GraphicsPipeline) createDescriptorSetLayouts(ctx RenderContext, sets []setBindings) error {
	for _, set := range sets {
		dslci := vk.DescriptorSetLayoutCreateInfo{
			SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
			BindingCount: uint32(len(set.bindings)),
			PBindings:    set.bindings,
		}

		layout, err := ctx.CreateDescriptorSetLayout(&dslci)
		if err != nil {
			return fatal(fmt.Sprintf("descriptor set layout %d", set.set), err)
		}
		p.setLayouts = append(p.setLayouts, layout)

		log.WithFields(log.Fields{
			"set":      set.set,
			"bindings": len(set.bindings),
		}).Debug("descriptor set layout created")
	}
	return nil
}

// aggregatePushConstants concatenates the ranges of all stages in stage order.
// Overlaps are left for the driver to reject.
func aggregatePushConstants(reflections []*spirv.Reflection) []vk.PushConstantRange {
	var ranges []vk.PushConstantRange
	for _, r := range reflections {
		ranges = append(ranges, r.PushConstants...)
	}
	return ranges
}

// createPipelineLayout creates the pipeline layout from every set layout
// already owned by the pipeline and the aggregated push constant ranges.
func (p *GraphicsPipeline) createPipelineLayout(ctx RenderContext) error {
	plci := vk.PipelineLayoutCreateInfo{
		SType:                  vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount:         uint32(len(p.setLayouts)),
		PSetLayouts:            p.setLayouts,
		PushConstantRangeCount: uint32(len(p.pushConstants)),
		PPushConstantRanges:    p.pushConstants,
	}

	layout, err := ctx.CreatePipelineLayout(&plci)
	if err != nil {
		return fatal("pipeline layout", err)
	}
	p.layout = layout
	return nil
}
