// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"fmt"

	"github.com/gogpu/sdfatlas/gpucore"
	"github.com/gogpu/sdfatlas/program"
)

// Render target formats, in fragment output order.
const (
	ColorFormat = gpucore.TextureFormatRGBA8Unorm
	PickFormat  = gpucore.TextureFormatR32Uint

	// PositionFormat holds the world-space hit point in xyz and 1 in w on
	// a hit, zero on a miss.
	PositionFormat = gpucore.TextureFormatRGBA32Float
)

// bakePipeline is a compiled bake program.
type bakePipeline struct {
	key         uint64
	label       string
	specialized bool
	module      gpucore.ShaderModuleID
	pipeline    gpucore.ComputePipelineID
}

func (p *bakePipeline) destroy(a gpucore.Adapter) {
	if p.pipeline != gpucore.InvalidID {
		a.DestroyComputePipeline(p.pipeline)
	}
	if p.module != gpucore.InvalidID {
		a.DestroyShaderModule(p.module)
	}
}

// layouts holds the bind group and pipeline layouts shared by every
// pipeline of one kind.
type layouts struct {
	bake, reduce, draw             gpucore.BindGroupLayoutID
	bakePipe, reducePipe, drawPipe gpucore.PipelineLayoutID
}

func createLayouts(a gpucore.Adapter) (layouts, error) {
	var l layouts
	var err error
	const compute = gpucore.ShaderStageCompute
	const raster = gpucore.ShaderStageVertex | gpucore.ShaderStageFragment

	l.bake, err = a.CreateBindGroupLayout(&gpucore.BindGroupLayoutDesc{
		Label: "sdf_bake_layout",
		Entries: []gpucore.BindGroupLayoutEntry{
			{Binding: 0, Type: gpucore.BindingTypeUniformBuffer, Visibility: compute, HasDynamicOffset: true, MinBindingSize: ChunkParamsSize},
			{Binding: 1, Type: gpucore.BindingTypeReadOnlyStorageBuffer, Visibility: compute},
			{Binding: 2, Type: gpucore.BindingTypeReadOnlyStorageBuffer, Visibility: compute},
			{Binding: 3, Type: gpucore.BindingTypeReadOnlyStorageBuffer, Visibility: compute},
			{Binding: 4, Type: gpucore.BindingTypeStorageBuffer, Visibility: compute},
			{Binding: 5, Type: gpucore.BindingTypeUniformBuffer, Visibility: compute, MinBindingSize: AtlasInfoSize},
		},
	})
	if err != nil {
		return l, err
	}
	l.reduce, err = a.CreateBindGroupLayout(&gpucore.BindGroupLayoutDesc{
		Label: "sdf_reduce_layout",
		Entries: []gpucore.BindGroupLayoutEntry{
			{Binding: 0, Type: gpucore.BindingTypeUniformBuffer, Visibility: compute, HasDynamicOffset: true, MinBindingSize: ChunkParamsSize},
			{Binding: 1, Type: gpucore.BindingTypeReadOnlyStorageBuffer, Visibility: compute},
			{Binding: 2, Type: gpucore.BindingTypeStorageBuffer, Visibility: compute},
			{Binding: 3, Type: gpucore.BindingTypeUniformBuffer, Visibility: compute, MinBindingSize: AtlasInfoSize},
		},
	})
	if err != nil {
		return l, err
	}
	l.draw, err = a.CreateBindGroupLayout(&gpucore.BindGroupLayoutDesc{
		Label: "sdf_render_layout",
		Entries: []gpucore.BindGroupLayoutEntry{
			{Binding: 0, Type: gpucore.BindingTypeUniformBuffer, Visibility: raster, MinBindingSize: CameraSize},
			{Binding: 1, Type: gpucore.BindingTypeReadOnlyStorageBuffer, Visibility: raster},
			{Binding: 2, Type: gpucore.BindingTypeReadOnlyStorageBuffer, Visibility: raster},
			{Binding: 3, Type: gpucore.BindingTypeReadOnlyStorageBuffer, Visibility: raster},
			{Binding: 4, Type: gpucore.BindingTypeUniformBuffer, Visibility: raster, MinBindingSize: AtlasInfoSize},
		},
	})
	if err != nil {
		return l, err
	}
	if l.bakePipe, err = a.CreatePipelineLayout([]gpucore.BindGroupLayoutID{l.bake}, "sdf_bake_pipe_layout"); err != nil {
		return l, err
	}
	if l.reducePipe, err = a.CreatePipelineLayout([]gpucore.BindGroupLayoutID{l.reduce}, "sdf_reduce_pipe_layout"); err != nil {
		return l, err
	}
	l.drawPipe, err = a.CreatePipelineLayout([]gpucore.BindGroupLayoutID{l.draw}, "sdf_render_pipe_layout")
	return l, err
}

func (l *layouts) destroy(a gpucore.Adapter) {
	for _, id := range []gpucore.PipelineLayoutID{l.bakePipe, l.reducePipe, l.drawPipe} {
		if id != gpucore.InvalidID {
			a.DestroyPipelineLayout(id)
		}
	}
	for _, id := range []gpucore.BindGroupLayoutID{l.bake, l.reduce, l.draw} {
		if id != gpucore.InvalidID {
			a.DestroyBindGroupLayout(id)
		}
	}
}

// compileBake builds the compute pipeline for a bake program.
func compileBake(a gpucore.Adapter, layout gpucore.PipelineLayoutID, p *program.Program) (*bakePipeline, error) {
	bp := &bakePipeline{key: p.Key, label: p.Label(), specialized: p.Specialized}
	var err error
	bp.module, err = a.CreateShaderModule(p.Source, bp.label)
	if err != nil {
		return nil, fmt.Errorf("render: compile %s: %w", bp.label, err)
	}
	bp.pipeline, err = a.CreateComputePipeline(&gpucore.ComputePipelineDesc{
		Label:        bp.label,
		Layout:       layout,
		ShaderModule: bp.module,
		EntryPoint:   program.BakeEntry,
	})
	if err != nil {
		bp.destroy(a)
		return nil, fmt.Errorf("render: create pipeline %s: %w", bp.label, err)
	}
	slogger().Debug("render: bake pipeline compiled", "label", bp.label, "specialized", bp.specialized)
	return bp, nil
}

// staticPipelines are the reduction and raymarch pipelines.
type staticPipelines struct {
	reduceModule gpucore.ShaderModuleID
	reduce       gpucore.ComputePipelineID
	drawModule   gpucore.ShaderModuleID
	draw         gpucore.RenderPipelineID
}

func createStatic(a gpucore.Adapter, l *layouts) (staticPipelines, error) {
	var s staticPipelines
	var err error
	if s.reduceModule, err = a.CreateShaderModule(program.ReduceSource(), "sdf_reduce"); err != nil {
		return s, fmt.Errorf("render: compile reduce shader: %w", err)
	}
	s.reduce, err = a.CreateComputePipeline(&gpucore.ComputePipelineDesc{
		Label:        "sdf_reduce",
		Layout:       l.reducePipe,
		ShaderModule: s.reduceModule,
		EntryPoint:   program.ReduceEntry,
	})
	if err != nil {
		return s, fmt.Errorf("render: create reduce pipeline: %w", err)
	}
	if s.drawModule, err = a.CreateShaderModule(program.RenderSource(), "sdf_render"); err != nil {
		return s, fmt.Errorf("render: compile render shader: %w", err)
	}
	s.draw, err = a.CreateRenderPipeline(&gpucore.RenderPipelineDesc{
		Label:         "sdf_render",
		Layout:        l.drawPipe,
		ShaderModule:  s.drawModule,
		VertexEntry:   program.VertexEntry,
		FragmentEntry: program.FragmentEntry,
		Targets:       []gpucore.TextureFormat{ColorFormat, PickFormat, PositionFormat},
	})
	if err != nil {
		return s, fmt.Errorf("render: create render pipeline: %w", err)
	}
	return s, nil
}

func (s *staticPipelines) destroy(a gpucore.Adapter) {
	if s.draw != gpucore.InvalidID {
		a.DestroyRenderPipeline(s.draw)
	}
	if s.reduce != gpucore.InvalidID {
		a.DestroyComputePipeline(s.reduce)
	}
	for _, m := range []gpucore.ShaderModuleID{s.drawModule, s.reduceModule} {
		if m != gpucore.InvalidID {
			a.DestroyShaderModule(m)
		}
	}
}
