// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package halgpu

import (
	"fmt"
	"unsafe"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/sdfatlas/gpucore"
)

type capabilities struct {
	name   string
	limits gputypes.Limits
}

type buffer struct {
	raw  hal.Buffer
	size uint64
}

type texture struct {
	raw    hal.Texture
	view   hal.TextureView
	format gputypes.TextureFormat
	width  uint32
	height uint32
}

type inflight struct {
	index gpucore.SubmissionIndex
	cmd   hal.CommandBuffer
}

// retired is a released object whose native handle is freed once the
// submission it may be used by has completed.
type retired struct {
	after gpucore.SubmissionIndex
	free  func()
}

// Device adapts a hal.Device/hal.Queue pair to gpucore.Adapter.
type Device struct {
	instance   hal.Instance
	device     hal.Device
	queue      hal.Queue
	caps       capabilities
	owned      bool
	precompile bool

	nextID          uint64
	buffers         map[gpucore.BufferID]buffer
	textures        map[gpucore.TextureID]texture
	modules         map[gpucore.ShaderModuleID]hal.ShaderModule
	bindLayouts     map[gpucore.BindGroupLayoutID]hal.BindGroupLayout
	pipelineLayouts map[gpucore.PipelineLayoutID]hal.PipelineLayout
	computes        map[gpucore.ComputePipelineID]hal.ComputePipeline
	renders         map[gpucore.RenderPipelineID]hal.RenderPipeline
	bindGroups      map[gpucore.BindGroupID]hal.BindGroup

	pending   []inflight
	submitted gpucore.SubmissionIndex
	graveyard []retired
}

var _ gpucore.Adapter = (*Device)(nil)

func newDevice(device hal.Device, queue hal.Queue, caps capabilities) *Device {
	return &Device{
		device:          device,
		queue:           queue,
		caps:            caps,
		buffers:         make(map[gpucore.BufferID]buffer),
		textures:        make(map[gpucore.TextureID]texture),
		modules:         make(map[gpucore.ShaderModuleID]hal.ShaderModule),
		bindLayouts:     make(map[gpucore.BindGroupLayoutID]hal.BindGroupLayout),
		pipelineLayouts: make(map[gpucore.PipelineLayoutID]hal.PipelineLayout),
		computes:        make(map[gpucore.ComputePipelineID]hal.ComputePipeline),
		renders:         make(map[gpucore.RenderPipelineID]hal.RenderPipeline),
		bindGroups:      make(map[gpucore.BindGroupID]hal.BindGroup),
	}
}

func (d *Device) id() uint64 {
	d.nextID++
	return d.nextID
}

// Capabilities implements gpucore.Adapter.
func (d *Device) Capabilities() gpucore.Capabilities {
	l := d.caps.limits
	return gpucore.Capabilities{
		Name:                              d.caps.name,
		SupportsCompute:                   l.MaxComputeInvocationsPerWorkgroup > 0,
		MaxComputeInvocationsPerWorkgroup: l.MaxComputeInvocationsPerWorkgroup,
		MaxComputeWorkgroupsPerDimension:  l.MaxComputeWorkgroupsPerDimension,
		MaxBufferSize:                     l.MaxBufferSize,
		MaxStorageBufferBindingSize:       l.MaxStorageBufferBindingSize,
		MinUniformBufferOffsetAlignment:   l.MinUniformBufferOffsetAlignment,
	}
}

// CreateShaderModule implements gpucore.Adapter.
func (d *Device) CreateShaderModule(wgsl, label string) (gpucore.ShaderModuleID, error) {
	src := hal.ShaderSource{WGSL: wgsl}
	if d.precompile {
		words, err := CompileSPIRV(wgsl)
		if err != nil {
			return gpucore.InvalidID, err
		}
		src = hal.ShaderSource{SPIRV: words}
	}
	m, err := d.device.CreateShaderModule(&hal.ShaderModuleDescriptor{Label: label, Source: src})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("halgpu: create shader module %s: %w", label, err)
	}
	id := gpucore.ShaderModuleID(d.id())
	d.modules[id] = m
	return id, nil
}

// DestroyShaderModule implements gpucore.Adapter.
func (d *Device) DestroyShaderModule(id gpucore.ShaderModuleID) {
	if m, ok := d.modules[id]; ok {
		d.device.DestroyShaderModule(m)
		delete(d.modules, id)
	}
}

// CreateBuffer implements gpucore.Adapter.
func (d *Device) CreateBuffer(size uint64, usage gpucore.BufferUsage, label string) (gpucore.BufferID, error) {
	if limit := d.caps.limits.MaxBufferSize; limit > 0 && size > limit {
		return gpucore.InvalidID, fmt.Errorf("halgpu: buffer %s: size %d exceeds limit %d", label, size, limit)
	}
	b, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: label,
		Size:  size,
		Usage: bufferUsage(usage),
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("halgpu: create buffer %s: %w", label, err)
	}
	id := gpucore.BufferID(d.id())
	d.buffers[id] = buffer{raw: b, size: size}
	return id, nil
}

// DestroyBuffer implements gpucore.Adapter.
func (d *Device) DestroyBuffer(id gpucore.BufferID) {
	if b, ok := d.buffers[id]; ok {
		delete(d.buffers, id)
		d.retire(func() { d.device.DestroyBuffer(b.raw) })
	}
}

// WriteBuffer implements gpucore.Adapter.
func (d *Device) WriteBuffer(id gpucore.BufferID, offset uint64, data []byte) error {
	b, ok := d.buffers[id]
	if !ok {
		return fmt.Errorf("halgpu: write to unknown buffer %d", id)
	}
	if offset+uint64(len(data)) > b.size {
		return fmt.Errorf("halgpu: write of %d bytes at %d overflows buffer of %d", len(data), offset, b.size)
	}
	return d.queue.WriteBuffer(b.raw, offset, data)
}

// MapRead implements gpucore.Adapter.
func (d *Device) MapRead(id gpucore.BufferID, offset, size uint64) ([]byte, error) {
	b, ok := d.buffers[id]
	if !ok {
		return nil, fmt.Errorf("halgpu: map unknown buffer %d", id)
	}
	if offset+size > b.size {
		return nil, fmt.Errorf("halgpu: map range [%d, %d) outside buffer of %d", offset, offset+size, b.size)
	}
	m, err := d.device.MapBuffer(b.raw, offset, size)
	if err != nil {
		return nil, fmt.Errorf("halgpu: map buffer: %w", err)
	}
	out := make([]byte, size)
	copy(out, unsafe.Slice((*byte)(m.Ptr), size)) //nolint:gosec // mapping covers size bytes
	if err := d.device.UnmapBuffer(b.raw); err != nil {
		return nil, fmt.Errorf("halgpu: unmap buffer: %w", err)
	}
	return out, nil
}

// CreateTexture implements gpucore.Adapter.
func (d *Device) CreateTexture(width, height uint32, format gpucore.TextureFormat, usage gpucore.TextureUsage, label string) (gpucore.TextureID, error) {
	f, err := textureFormat(format)
	if err != nil {
		return gpucore.InvalidID, err
	}
	t, err := d.device.CreateTexture(&hal.TextureDescriptor{
		Label:         label,
		Size:          hal.Extent3D{Width: width, Height: height, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        f,
		Usage:         textureUsage(usage),
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("halgpu: create texture %s: %w", label, err)
	}
	v, err := d.device.CreateTextureView(t, &hal.TextureViewDescriptor{
		Label:           label + "_view",
		Format:          f,
		Dimension:       gputypes.TextureViewDimension2D,
		Aspect:          gputypes.TextureAspectAll,
		MipLevelCount:   1,
		ArrayLayerCount: 1,
	})
	if err != nil {
		d.device.DestroyTexture(t)
		return gpucore.InvalidID, fmt.Errorf("halgpu: create texture view %s: %w", label, err)
	}
	id := gpucore.TextureID(d.id())
	d.textures[id] = texture{raw: t, view: v, format: f, width: width, height: height}
	return id, nil
}

// DestroyTexture implements gpucore.Adapter.
func (d *Device) DestroyTexture(id gpucore.TextureID) {
	if t, ok := d.textures[id]; ok {
		delete(d.textures, id)
		d.retire(func() {
			d.device.DestroyTextureView(t.view)
			d.device.DestroyTexture(t.raw)
		})
	}
}

// CreateBindGroupLayout implements gpucore.Adapter.
func (d *Device) CreateBindGroupLayout(desc *gpucore.BindGroupLayoutDesc) (gpucore.BindGroupLayoutID, error) {
	entries := make([]gputypes.BindGroupLayoutEntry, len(desc.Entries))
	for i, e := range desc.Entries {
		bt, err := bufferBindingType(e.Type)
		if err != nil {
			return gpucore.InvalidID, err
		}
		entries[i] = gputypes.BindGroupLayoutEntry{
			Binding:    e.Binding,
			Visibility: shaderStages(e.Visibility),
			Buffer: &gputypes.BufferBindingLayout{
				Type:             bt,
				HasDynamicOffset: e.HasDynamicOffset,
				MinBindingSize:   e.MinBindingSize,
			},
		}
	}
	l, err := d.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{Label: desc.Label, Entries: entries})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("halgpu: create bind group layout %s: %w", desc.Label, err)
	}
	id := gpucore.BindGroupLayoutID(d.id())
	d.bindLayouts[id] = l
	return id, nil
}

// DestroyBindGroupLayout implements gpucore.Adapter.
func (d *Device) DestroyBindGroupLayout(id gpucore.BindGroupLayoutID) {
	if l, ok := d.bindLayouts[id]; ok {
		d.device.DestroyBindGroupLayout(l)
		delete(d.bindLayouts, id)
	}
}

// CreatePipelineLayout implements gpucore.Adapter.
func (d *Device) CreatePipelineLayout(layouts []gpucore.BindGroupLayoutID, label string) (gpucore.PipelineLayoutID, error) {
	raw := make([]hal.BindGroupLayout, len(layouts))
	for i, id := range layouts {
		l, ok := d.bindLayouts[id]
		if !ok {
			return gpucore.InvalidID, fmt.Errorf("halgpu: pipeline layout %s: unknown bind group layout %d", label, id)
		}
		raw[i] = l
	}
	pl, err := d.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{Label: label, BindGroupLayouts: raw})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("halgpu: create pipeline layout %s: %w", label, err)
	}
	id := gpucore.PipelineLayoutID(d.id())
	d.pipelineLayouts[id] = pl
	return id, nil
}

// DestroyPipelineLayout implements gpucore.Adapter.
func (d *Device) DestroyPipelineLayout(id gpucore.PipelineLayoutID) {
	if pl, ok := d.pipelineLayouts[id]; ok {
		d.device.DestroyPipelineLayout(pl)
		delete(d.pipelineLayouts, id)
	}
}

// CreateComputePipeline implements gpucore.Adapter.
func (d *Device) CreateComputePipeline(desc *gpucore.ComputePipelineDesc) (gpucore.ComputePipelineID, error) {
	layout, module, err := d.pipelineParts(desc.Layout, desc.ShaderModule)
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("halgpu: compute pipeline %s: %w", desc.Label, err)
	}
	p, err := d.device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label:   desc.Label,
		Layout:  layout,
		Compute: hal.ComputeState{Module: module, EntryPoint: desc.EntryPoint},
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("halgpu: create compute pipeline %s: %w", desc.Label, err)
	}
	id := gpucore.ComputePipelineID(d.id())
	d.computes[id] = p
	return id, nil
}

// DestroyComputePipeline implements gpucore.Adapter.
func (d *Device) DestroyComputePipeline(id gpucore.ComputePipelineID) {
	if p, ok := d.computes[id]; ok {
		delete(d.computes, id)
		d.retire(func() { d.device.DestroyComputePipeline(p) })
	}
}

// CreateRenderPipeline implements gpucore.Adapter.
func (d *Device) CreateRenderPipeline(desc *gpucore.RenderPipelineDesc) (gpucore.RenderPipelineID, error) {
	layout, module, err := d.pipelineParts(desc.Layout, desc.ShaderModule)
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("halgpu: render pipeline %s: %w", desc.Label, err)
	}
	targets := make([]gputypes.ColorTargetState, len(desc.Targets))
	for i, t := range desc.Targets {
		f, err := textureFormat(t)
		if err != nil {
			return gpucore.InvalidID, err
		}
		targets[i] = gputypes.ColorTargetState{Format: f, WriteMask: gputypes.ColorWriteMaskAll}
	}
	p, err := d.device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:       desc.Label,
		Layout:      layout,
		Vertex:      hal.VertexState{Module: module, EntryPoint: desc.VertexEntry},
		Primitive:   gputypes.DefaultPrimitiveState(),
		Multisample: gputypes.DefaultMultisampleState(),
		Fragment:    &hal.FragmentState{Module: module, EntryPoint: desc.FragmentEntry, Targets: targets},
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("halgpu: create render pipeline %s: %w", desc.Label, err)
	}
	id := gpucore.RenderPipelineID(d.id())
	d.renders[id] = p
	return id, nil
}

// DestroyRenderPipeline implements gpucore.Adapter.
func (d *Device) DestroyRenderPipeline(id gpucore.RenderPipelineID) {
	if p, ok := d.renders[id]; ok {
		delete(d.renders, id)
		d.retire(func() { d.device.DestroyRenderPipeline(p) })
	}
}

func (d *Device) pipelineParts(lid gpucore.PipelineLayoutID, mid gpucore.ShaderModuleID) (hal.PipelineLayout, hal.ShaderModule, error) {
	layout, ok := d.pipelineLayouts[lid]
	if !ok {
		return nil, nil, fmt.Errorf("unknown pipeline layout %d", lid)
	}
	module, ok := d.modules[mid]
	if !ok {
		return nil, nil, fmt.Errorf("unknown shader module %d", mid)
	}
	return layout, module, nil
}

// CreateBindGroup implements gpucore.Adapter.
func (d *Device) CreateBindGroup(desc *gpucore.BindGroupDesc) (gpucore.BindGroupID, error) {
	layout, ok := d.bindLayouts[desc.Layout]
	if !ok {
		return gpucore.InvalidID, fmt.Errorf("halgpu: bind group %s: unknown layout %d", desc.Label, desc.Layout)
	}
	entries := make([]gputypes.BindGroupEntry, len(desc.Entries))
	for i, e := range desc.Entries {
		b, ok := d.buffers[e.Buffer]
		if !ok {
			return gpucore.InvalidID, fmt.Errorf("halgpu: bind group %s: unknown buffer %d at binding %d", desc.Label, e.Buffer, e.Binding)
		}
		size := e.Size
		if size == 0 {
			size = b.size - e.Offset
		}
		entries[i] = gputypes.BindGroupEntry{
			Binding:  e.Binding,
			Resource: gputypes.BufferBinding{Buffer: b.raw.NativeHandle(), Offset: e.Offset, Size: size},
		}
	}
	g, err := d.device.CreateBindGroup(&hal.BindGroupDescriptor{Label: desc.Label, Layout: layout, Entries: entries})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("halgpu: create bind group %s: %w", desc.Label, err)
	}
	id := gpucore.BindGroupID(d.id())
	d.bindGroups[id] = g
	return id, nil
}

// DestroyBindGroup implements gpucore.Adapter.
func (d *Device) DestroyBindGroup(id gpucore.BindGroupID) {
	if g, ok := d.bindGroups[id]; ok {
		delete(d.bindGroups, id)
		d.retire(func() { d.device.DestroyBindGroup(g) })
	}
}

// BeginEncoding implements gpucore.Adapter.
func (d *Device) BeginEncoding(label string) (gpucore.Encoder, error) {
	raw, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: label})
	if err != nil {
		return nil, fmt.Errorf("halgpu: create command encoder: %w", err)
	}
	if err := raw.BeginEncoding(label); err != nil {
		return nil, fmt.Errorf("halgpu: begin encoding: %w", err)
	}
	return &encoder{d: d, raw: raw}, nil
}

// Submit implements gpucore.Adapter.
func (d *Device) Submit(enc gpucore.Encoder) (gpucore.SubmissionIndex, error) {
	e, ok := enc.(*encoder)
	if !ok || e.d != d {
		return 0, fmt.Errorf("halgpu: encoder %T does not belong to this device", enc)
	}
	if e.done {
		return 0, fmt.Errorf("halgpu: encoder already finished")
	}
	e.done = true
	cmd, err := e.raw.EndEncoding()
	if err != nil {
		return 0, fmt.Errorf("halgpu: end encoding: %w", err)
	}
	idx, err := d.queue.Submit([]hal.CommandBuffer{cmd})
	if err != nil {
		d.device.FreeCommandBuffer(cmd)
		return 0, fmt.Errorf("halgpu: submit: %w", err)
	}
	si := gpucore.SubmissionIndex(idx)
	d.pending = append(d.pending, inflight{index: si, cmd: cmd})
	d.submitted = si
	d.reclaim()
	return si, nil
}

// Completed implements gpucore.Adapter.
func (d *Device) Completed() gpucore.SubmissionIndex {
	d.reclaim()
	return gpucore.SubmissionIndex(d.queue.PollCompleted())
}

// retire frees an object now when no submission is in flight, and
// otherwise after the latest submission completes.
func (d *Device) retire(free func()) {
	if d.submitted <= gpucore.SubmissionIndex(d.queue.PollCompleted()) {
		free()
		return
	}
	d.graveyard = append(d.graveyard, retired{after: d.submitted, free: free})
}

// reclaim frees command buffers and retired objects whose submissions
// have completed.
func (d *Device) reclaim() {
	done := gpucore.SubmissionIndex(d.queue.PollCompleted())
	n := 0
	for _, p := range d.pending {
		if p.index <= done {
			d.device.FreeCommandBuffer(p.cmd)
			continue
		}
		d.pending[n] = p
		n++
	}
	d.pending = d.pending[:n]

	n = 0
	for _, r := range d.graveyard {
		if r.after <= done {
			r.free()
			continue
		}
		d.graveyard[n] = r
		n++
	}
	clear(d.graveyard[n:])
	d.graveyard = d.graveyard[:n]
}

// freeAll releases every pending command buffer and retired object.
// The device must be idle.
func (d *Device) freeAll() {
	for _, p := range d.pending {
		d.device.FreeCommandBuffer(p.cmd)
	}
	d.pending = nil
	for _, r := range d.graveyard {
		r.free()
	}
	d.graveyard = nil
}

// WaitIdle implements gpucore.Adapter.
func (d *Device) WaitIdle() error {
	if err := d.device.WaitIdle(); err != nil {
		return fmt.Errorf("halgpu: wait idle: %w", err)
	}
	d.reclaim()
	return nil
}

// Destroy implements gpucore.Adapter. Resources still registered are
// released; a shared device and instance are left alone.
func (d *Device) Destroy() {
	if d.device == nil {
		return
	}
	if err := d.device.WaitIdle(); err != nil {
		slogger().Warn("halgpu: wait idle before destroy", "err", err)
	}
	// The device is idle, so the objects below are freed at once.
	d.freeAll()
	d.submitted = 0
	for id := range d.bindGroups {
		d.DestroyBindGroup(id)
	}
	for id := range d.computes {
		d.DestroyComputePipeline(id)
	}
	for id := range d.renders {
		d.DestroyRenderPipeline(id)
	}
	for id := range d.pipelineLayouts {
		d.DestroyPipelineLayout(id)
	}
	for id := range d.bindLayouts {
		d.DestroyBindGroupLayout(id)
	}
	for id := range d.modules {
		d.DestroyShaderModule(id)
	}
	for id := range d.textures {
		d.DestroyTexture(id)
	}
	for id := range d.buffers {
		d.DestroyBuffer(id)
	}
	if d.owned {
		d.device.Destroy()
		if d.instance != nil {
			d.instance.Destroy()
		}
	}
	d.device = nil
	d.queue = nil
	d.instance = nil
}

// Retired returns the number of released objects waiting for their
// submission to complete.
func (d *Device) Retired() int { return len(d.graveyard) }

// Live returns the number of resources currently registered.
func (d *Device) Live() int {
	return len(d.buffers) + len(d.textures) + len(d.modules) + len(d.bindLayouts) +
		len(d.pipelineLayouts) + len(d.computes) + len(d.renders) + len(d.bindGroups)
}
