// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package core

import (
	"errors"
	"fmt"
	"strings"
	"unsafe"

	vk "github.com/devblok/vulkan"
	log "github.com/sirupsen/logrus"

	"github.com/devblok/kpipe/spirv"
)

// GraphicsPipeline owns a pipeline object, its layout and the descriptor
// set layouts reflected from its shaders. The zero value is an empty
// pipeline that can be initialised with Init.
type GraphicsPipeline struct {
	ctx RenderContext

	setLayouts    []vk.DescriptorSetLayout
	pushConstants []vk.PushConstantRange
	layout        vk.PipelineLayout
	pipeline      vk.Pipeline
	bindPoint     vk.PipelineBindPoint
}

// Init loads, validates and reflects every shader stage, then creates the
// descriptor set layouts, the pipeline layout and the pipeline object.
// Shaders are all loaded before any native object is created. On failure
// everything created so far is released and the pipeline stays empty.
// Initialising a pipeline twice without Destroy leaks the first objects.
func (p *GraphicsPipeline) Init(ctx RenderContext, info GraphicsPipelineCreateInfo) error {
	p.reset()

	codes, err := loadStages(info)
	if err != nil {
		log.WithFields(log.Fields{
			"error": err,
		}).Error("pipeline shaders could not be loaded")
		return err
	}

	reflections := make([]*spirv.Reflection, len(codes))
	for idx, code := range codes {
		stage := info.Shaders[idx]
		r, err := spirv.Reflect(code)
		if err != nil {
			return logFatal(fatal("reflect "+stage.Filename, err))
		}
		if declared := stage.Type.Stage(); declared != 0 && declared != r.Stage {
			log.WithFields(log.Fields{
				"shader":    stage.Filename,
				"declared":  stage.Type,
				"reflected": spirv.StageName(r.Stage),
			}).Warn("declared shader type does not match the shader, using reflected stage")
		}
		log.WithFields(log.Fields{
			"shader": stage.Filename,
		}).Debug(r)
		reflections[idx] = r
	}

	bindPoint, err := pipelineBindPoint(reflections)
	if err != nil {
		return logFatal(fatal("stages", err))
	}

	sets, err := mergeBindings(reflections)
	if err != nil {
		return logFatal(fatal("merge bindings", err))
	}

	p.ctx = ctx
	p.bindPoint = bindPoint
	if err := p.build(ctx, info, codes, reflections, sets); err != nil {
		p.Destroy()
		return logFatal(err)
	}

	log.WithFields(log.Fields{
		"stages":        len(codes),
		"setLayouts":    len(p.setLayouts),
		"pushConstants": len(p.pushConstants),
		"flags":         info.Flags,
	}).Debug("pipeline created")
	return nil
}

func (p *GraphicsPipeline) build(ctx RenderContext, info GraphicsPipelineCreateInfo, codes [][]byte, reflections []*spirv.Reflection, sets []setBindings) error {
	modules := make([]vk.ShaderModule, 0, len(codes))
	defer func() {
		for _, module := range modules {
			ctx.DestroyShaderModule(module)
		}
	}()

	stages := make([]vk.PipelineShaderStageCreateInfo, len(codes))
	for idx, code := range codes {
		module, err := ctx.CreateShaderModule(code)
		if err != nil {
			return fatal("shader module "+info.Shaders[idx].Filename, err)
		}
		modules = append(modules, module)

		stages[idx] = vk.PipelineShaderStageCreateInfo{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  reflections[idx].Stage,
			Module: module,
			PName:  safeString(reflections[idx].EntryPoint),
		}
	}

	if err := p.createDescriptorSetLayouts(ctx, sets); err != nil {
		return err
	}

	p.pushConstants = aggregatePushConstants(reflections)
	if err := p.createPipelineLayout(ctx); err != nil {
		return err
	}

	if p.bindPoint == vk.PipelineBindPointCompute {
		cpci := vk.ComputePipelineCreateInfo{
			SType:             vk.StructureTypeComputePipelineCreateInfo,
			Stage:             stages[0],
			Layout:            p.layout,
			BasePipelineIndex: -1,
		}
		pipeline, err := ctx.CreateComputePipeline(&cpci)
		if err != nil {
			return fatal("compute pipeline", err)
		}
		p.pipeline = pipeline
		return nil
	}

	state := NewFixedFunctionState(info.Flags, info.Layout)
	gpci := state.GraphicsPipelineCreateInfo(stages, p.layout, ctx.RenderPass())
	pipeline, err := ctx.CreateGraphicsPipeline(&gpci)
	if err != nil {
		return fatal("graphics pipeline", err)
	}
	p.pipeline = pipeline
	return nil
}

// loadStages checks every stage file name and loads its bytes.
func loadStages(info GraphicsPipelineCreateInfo) ([][]byte, error) {
	if len(info.Shaders) == 0 {
		return nil, ErrNoShaders
	}
	if info.Source == nil {
		return nil, ErrNoSource
	}

	codes := make([][]byte, len(info.Shaders))
	for idx, stage := range info.Shaders {
		if !strings.HasSuffix(stage.Filename, shaderSuffix) {
			return nil, fmt.Errorf("%w: %s", ErrShaderExtension, stage.Filename)
		}
		code := info.Source.Load(stage.Filename)
		if len(code) == 0 {
			return nil, fmt.Errorf("%w: %s", ErrShaderEmpty, stage.Filename)
		}
		codes[idx] = code
	}
	return codes, nil
}

// pipelineBindPoint picks compute for a lone compute stage and graphics
// for everything else. Compute cannot be mixed with graphics stages.
func pipelineBindPoint(reflections []*spirv.Reflection) (vk.PipelineBindPoint, error) {
	var compute int
	for _, r := range reflections {
		if r.Stage == vk.ShaderStageComputeBit {
			compute++
		}
	}
	switch {
	case compute == 0:
		return vk.PipelineBindPointGraphics, nil
	case compute == 1 && len(reflections) == 1:
		return vk.PipelineBindPointCompute, nil
	}
	return 0, errors.New("a compute stage must be the only stage of its pipeline")
}

func logFatal(err error) error {
	fields := log.Fields{"error": err}
	var fe *FatalError
	if errors.As(err, &fe) {
		fields["op"] = fe.Op
		fields["error"] = fe.Err
	}
	log.WithFields(fields).Error("pipeline construction failed")
	return err
}

// Destroy releases the descriptor set layouts, then the pipeline layout,
// then the pipeline. It does nothing on an empty pipeline and can be
// called more than once.
func (p *GraphicsPipeline) Destroy() {
	if p.ctx == nil {
		return
	}

	for _, layout := range p.setLayouts {
		p.ctx.DestroyDescriptorSetLayout(layout)
	}
	p.setLayouts = nil

	if p.layout != nil {
		p.ctx.DestroyPipelineLayout(p.layout)
		p.layout = nil
	}

	if p.pipeline != nil {
		p.ctx.DestroyPipeline(p.pipeline)
		p.pipeline = nil
	}

	p.pushConstants = nil
	p.ctx = nil
}

// reset forgets every handle without releasing it
func (p *GraphicsPipeline) reset() {
	p.ctx = nil
	p.setLayouts = nil
	p.pushConstants = nil
	p.layout = nil
	p.pipeline = nil
	p.bindPoint = vk.PipelineBindPointGraphics
}

// Bind binds the pipeline to the command buffer
func (p *GraphicsPipeline) Bind(cmd CommandContext) {
	cmd.BindPipeline(p.bindPoint, p.pipeline)
}

// BindDescriptorSets binds the first count sets, starting at set 0
func (p *GraphicsPipeline) BindDescriptorSets(cmd CommandContext, sets []vk.DescriptorSet, count uint32) {
	if int(count) > len(sets) {
		count = uint32(len(sets))
	}
	cmd.BindDescriptorSets(p.bindPoint, p.layout, 0, sets[:count], nil)
}

// PushConstantData updates size bytes of push constants at offset from data
func (p *GraphicsPipeline) PushConstantData(cmd CommandContext, stage vk.ShaderStageFlags, data unsafe.Pointer, size, offset uint32) {
	cmd.PushConstants(p.layout, stage, offset, size, data)
}

// Layout returns the pipeline layout, nil before Init
func (p *GraphicsPipeline) Layout() vk.PipelineLayout {
	return p.layout
}

// Pipeline returns the pipeline object, nil before Init
func (p *GraphicsPipeline) Pipeline() vk.Pipeline {
	return p.pipeline
}

// DescriptorSetLayouts returns the owned set layouts in set order
func (p *GraphicsPipeline) DescriptorSetLayouts() []vk.DescriptorSetLayout {
	return p.setLayouts
}

// PushConstantRanges returns the aggregated ranges of all stages
func (p *GraphicsPipeline) PushConstantRanges() []vk.PushConstantRange {
	return p.pushConstants
}

// BindPoint is compute for compute pipelines, graphics otherwise
func (p *GraphicsPipeline) BindPoint() vk.PipelineBindPoint {
	return p.bindPoint
}
