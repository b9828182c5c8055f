// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"golang.org/x/image/math/f32"

	"github.com/gogpu/sdfatlas/chunk"
	"github.com/gogpu/sdfatlas/geom"
	"github.com/gogpu/sdfatlas/gpucore"
	"github.com/gogpu/sdfatlas/internal/cache"
	"github.com/gogpu/sdfatlas/program"
	"github.com/gogpu/sdfatlas/scene"
)

// Errors returned by the renderer.
var (
	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("render: renderer closed")

	// ErrUnsupported is wrapped when the adapter cannot host the atlas.
	ErrUnsupported = errors.New("render: adapter cannot host the atlas")

	// ErrNilScene is returned by Bake for a frame without a scene.
	ErrNilScene = errors.New("render: frame has no scene")
)

// View is the camera used by the raymarch.
type View struct {
	// InvViewProj maps clip space back to world space.
	InvViewProj geom.Mat4
	Eye         geom.Vec3
}

// DefaultView looks at the origin from +Z with a 60 degree field of view.
func DefaultView(width, height int) View {
	eye := geom.V3(0, 1, 4)
	vp := geom.Perspective(math.Pi/3, float64(width)/float64(height), 0.05, 100).
		Mul(geom.LookAt(eye, geom.Vec3{}, geom.V3(0, 1, 0)))
	inv, _ := vp.Inverse()
	return View{InvViewProj: inv, Eye: eye}
}

// Frame is the input of one Bake.
type Frame struct {
	Scene *scene.Scene

	// Sync is the chunk cache result for Scene.
	Sync chunk.Result

	// Program is the bake program for Scene. Nil selects the static one.
	Program *program.Program
}

// FrameStats describes the work recorded for one frame.
type FrameStats struct {
	Dirty       int
	Batches     int
	Objects     int
	Truncated   int
	MapUploaded bool
	Submission  gpucore.SubmissionIndex
	ProgramKey  uint64
	Specialized bool

	// Compiled reports that the bake pipeline was built for this frame.
	Compiled bool

	// Resolved is the number of picks resolved after submission.
	Resolved int
}

// Renderer owns the GPU resources of the atlas and records frames.
type Renderer struct {
	a        gpucore.Adapter
	chunkCfg chunk.Config
	cfg      Config

	layouts   layouts
	static    staticPipelines
	pipelines *cache.Cache[uint64, *bakePipeline]

	params, objects, extras, vertices gpucore.BufferID
	atlas, march, chunkMap            gpucore.BufferID
	atlasInfo, camera                 gpucore.BufferID

	bakeGroup, reduceGroup, drawGroup gpucore.BindGroupID

	color, pickTex, position gpucore.TextureID

	view        View
	mapVersion  uint64
	mapUploaded bool
	generation  uint64
	truncating  bool

	picks  []*Pick
	closed bool
}

// New creates the atlas, its companion buffers, the static pipelines and
// the render targets on a.
func New(a gpucore.Adapter, chunkCfg chunk.Config, cfg Config) (*Renderer, error) {
	if err := chunkCfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := checkCapabilities(a.Capabilities(), &chunkCfg); err != nil {
		return nil, err
	}

	r := &Renderer{
		a:        a,
		chunkCfg: chunkCfg,
		cfg:      cfg,
		view:     DefaultView(cfg.Width, cfg.Height),
	}
	r.pipelines = cache.New[uint64, *bakePipeline](cfg.PipelineCacheSize, func(_ uint64, p *bakePipeline) {
		slogger().Debug("render: bake pipeline evicted", "label", p.label)
		// Frames in flight may still bind it; the adapter frees it after them.
		p.destroy(r.a)
	})
	if err := r.init(); err != nil {
		r.release()
		return nil, err
	}
	slogger().Info("render: renderer ready",
		"adapter", a.Capabilities().Name,
		"slots", chunkCfg.Capacity(),
		"atlas_bytes", uint64(chunkCfg.AtlasVoxels())*chunk.VoxelBytes,
		"width", cfg.Width, "height", cfg.Height)
	return r, nil
}

func checkCapabilities(caps gpucore.Capabilities, cfg *chunk.Config) error {
	if !caps.SupportsCompute {
		return fmt.Errorf("%w: no compute support", ErrUnsupported)
	}
	atlas := uint64(cfg.AtlasVoxels()) * chunk.VoxelBytes
	if limit := caps.MaxStorageBufferBindingSize; limit > 0 && atlas > limit {
		return fmt.Errorf("%w: atlas of %d bytes exceeds storage binding limit %d", ErrUnsupported, atlas, limit)
	}
	if limit := caps.MaxComputeInvocationsPerWorkgroup; limit > 0 && limit < program.ReduceWorkgroupSize {
		return fmt.Errorf("%w: %d invocations per workgroup", ErrUnsupported, limit)
	}
	if align := caps.MinUniformBufferOffsetAlignment; align > 0 && ParamStride%align != 0 {
		return fmt.Errorf("%w: uniform offset alignment %d", ErrUnsupported, align)
	}
	return nil
}

func (r *Renderer) init() error {
	var err error
	if r.layouts, err = createLayouts(r.a); err != nil {
		return fmt.Errorf("render: create layouts: %w", err)
	}
	if r.static, err = createStatic(r.a, &r.layouts); err != nil {
		return err
	}
	if err = r.createBuffers(); err != nil {
		return err
	}
	if err = r.createBindGroups(); err != nil {
		return err
	}
	if err = r.createTargets(r.cfg.Width, r.cfg.Height); err != nil {
		return err
	}

	info := NewAtlasInfo(&r.chunkCfg)
	b := make([]byte, AtlasInfoSize)
	PutAtlasInfo(b, &info)
	if err = r.a.WriteBuffer(r.atlasInfo, 0, b); err != nil {
		return err
	}
	return r.a.WriteBuffer(r.chunkMap, 0, bytes.Repeat([]byte{0xFF}, 4*cube(r.chunkCfg.GridDim)))
}

func cube(n int) int { return n * n * n }

func (r *Renderer) createBuffers() error {
	const (
		storage = gpucore.BufferUsageStorage | gpucore.BufferUsageCopyDst
		uniform = gpucore.BufferUsageUniform | gpucore.BufferUsageCopyDst
	)
	capacity := uint64(r.chunkCfg.Capacity())
	maxObjects := uint64(r.cfg.MaxObjects)
	specs := []struct {
		id    *gpucore.BufferID
		size  uint64
		usage gpucore.BufferUsage
		label string
	}{
		{&r.params, capacity * ParamStride, uniform, "sdf_chunk_params"},
		{&r.objects, maxObjects * ObjectRecordSize, storage, "sdf_objects"},
		{&r.extras, maxObjects * ObjectExtraSize, storage, "sdf_object_extras"},
		{&r.vertices, maxObjects * scene.MaxPolygonVertices * VertexSize, storage, "sdf_vertices"},
		{&r.atlas, uint64(r.chunkCfg.AtlasVoxels()) * chunk.VoxelBytes, gpucore.BufferUsageStorage, "sdf_atlas"},
		{&r.march, capacity * 4, gpucore.BufferUsageStorage, "sdf_march"},
		{&r.chunkMap, uint64(4 * cube(r.chunkCfg.GridDim)), storage, "sdf_chunk_map"},
		{&r.atlasInfo, AtlasInfoSize, uniform, "sdf_atlas_info"},
		{&r.camera, CameraSize, uniform, "sdf_camera"},
	}
	for _, s := range specs {
		id, err := r.a.CreateBuffer(s.size, s.usage, s.label)
		if err != nil {
			return err
		}
		*s.id = id
	}
	return nil
}

func (r *Renderer) createBindGroups() error {
	var err error
	r.bakeGroup, err = r.a.CreateBindGroup(&gpucore.BindGroupDesc{
		Label:  "sdf_bake_group",
		Layout: r.layouts.bake,
		Entries: []gpucore.BindGroupEntry{
			{Binding: 0, Buffer: r.params, Size: ChunkParamsSize},
			{Binding: 1, Buffer: r.objects},
			{Binding: 2, Buffer: r.extras},
			{Binding: 3, Buffer: r.vertices},
			{Binding: 4, Buffer: r.atlas},
			{Binding: 5, Buffer: r.atlasInfo},
		},
	})
	if err != nil {
		return err
	}
	r.reduceGroup, err = r.a.CreateBindGroup(&gpucore.BindGroupDesc{
		Label:  "sdf_reduce_group",
		Layout: r.layouts.reduce,
		Entries: []gpucore.BindGroupEntry{
			{Binding: 0, Buffer: r.params, Size: ChunkParamsSize},
			{Binding: 1, Buffer: r.atlas},
			{Binding: 2, Buffer: r.march},
			{Binding: 3, Buffer: r.atlasInfo},
		},
	})
	if err != nil {
		return err
	}
	r.drawGroup, err = r.a.CreateBindGroup(&gpucore.BindGroupDesc{
		Label:  "sdf_render_group",
		Layout: r.layouts.draw,
		Entries: []gpucore.BindGroupEntry{
			{Binding: 0, Buffer: r.camera},
			{Binding: 1, Buffer: r.chunkMap},
			{Binding: 2, Buffer: r.atlas},
			{Binding: 3, Buffer: r.march},
			{Binding: 4, Buffer: r.atlasInfo},
		},
	})
	return err
}

func (r *Renderer) createTargets(width, height int) error {
	w, h := uint32(width), uint32(height)
	color, err := r.a.CreateTexture(w, h, ColorFormat,
		gpucore.TextureUsageRenderAttachment|gpucore.TextureUsageCopySrc, "sdf_color")
	if err != nil {
		return err
	}
	r.color = color
	pick, err := r.a.CreateTexture(w, h, PickFormat,
		gpucore.TextureUsageRenderAttachment|gpucore.TextureUsageCopySrc, "sdf_pick")
	if err != nil {
		r.destroyTargets()
		return err
	}
	r.pickTex = pick
	position, err := r.a.CreateTexture(w, h, PositionFormat,
		gpucore.TextureUsageRenderAttachment|gpucore.TextureUsageCopySrc, "sdf_pick_position")
	if err != nil {
		r.destroyTargets()
		return err
	}
	r.position = position
	return nil
}

// destroyTargets releases the render targets. Copies already submitted
// from them complete first; the adapter defers the free.
func (r *Renderer) destroyTargets() {
	for _, t := range []*gpucore.TextureID{&r.color, &r.pickTex, &r.position} {
		if *t != gpucore.InvalidID {
			r.a.DestroyTexture(*t)
			*t = gpucore.InvalidID
		}
	}
}

// SetCamera sets the view used by subsequent frames.
func (r *Renderer) SetCamera(v View) {
	r.view = v
}

// Size returns the render target size.
func (r *Renderer) Size() (width, height int) {
	return r.cfg.Width, r.cfg.Height
}

// Resize recreates the render targets. Picks already submitted against
// the old targets still resolve.
func (r *Renderer) Resize(width, height int) error {
	if r.closed {
		return ErrClosed
	}
	if width < 1 || height < 1 {
		return &ConfigError{Field: "Size", Reason: fmt.Sprintf("invalid target size %dx%d", width, height)}
	}
	if width == r.cfg.Width && height == r.cfg.Height {
		return nil
	}
	r.destroyTargets()
	if err := r.createTargets(width, height); err != nil {
		return err
	}
	r.cfg.Width, r.cfg.Height = width, height
	return nil
}

// Generation returns the scene generation of the last baked frame.
func (r *Renderer) Generation() uint64 { return r.generation }

// Pipelines returns the number of cached bake pipelines.
func (r *Renderer) Pipelines() int { return r.pipelines.Len() }

// pipeline returns the bake pipeline of prog, compiling it on first use.
func (r *Renderer) pipeline(prog *program.Program) (*bakePipeline, bool, error) {
	compiled := false
	p, err := r.pipelines.GetOrCreate(prog.Key, func() (*bakePipeline, error) {
		compiled = true
		return compileBake(r.a, r.layouts.bakePipe, prog)
	})
	return p, compiled, err
}

// Bake uploads the frame's scene, bakes its dirty chunks, raymarches the
// atlas into the render targets and submits the work once. Completed
// picks are resolved afterwards against the frame's scene generation.
func (r *Renderer) Bake(ctx context.Context, f Frame) (FrameStats, error) {
	if r.closed {
		return FrameStats{}, ErrClosed
	}
	if f.Scene == nil {
		return FrameStats{}, ErrNilScene
	}
	if err := ctx.Err(); err != nil {
		return FrameStats{}, err
	}
	prog := f.Program
	if prog == nil {
		prog = program.Static()
	}

	bp, compiled, err := r.pipeline(prog)
	if err != nil {
		return FrameStats{}, err
	}
	stats := FrameStats{
		Dirty:       len(f.Sync.Dirty),
		ProgramKey:  prog.Key,
		Specialized: prog.Specialized,
		Compiled:    compiled,
	}

	rec := PackScene(f.Scene, prog, r.cfg.MaxObjects)
	stats.Objects, stats.Truncated = rec.Count, rec.Truncated
	r.noteTruncation(rec.Truncated)
	if err := r.upload(&rec); err != nil {
		return stats, err
	}
	if stats.MapUploaded, err = r.uploadMap(&f.Sync); err != nil {
		return stats, err
	}
	if err := r.writeCamera(); err != nil {
		return stats, err
	}
	if err := r.writeParams(f.Sync.Dirty, rec.Count); err != nil {
		return stats, err
	}

	enc, err := r.a.BeginEncoding("sdf_frame")
	if err != nil {
		return stats, err
	}
	stats.Batches = r.encodeBake(enc, bp, len(f.Sync.Dirty))
	r.encodeDraw(enc)

	idx, err := r.a.Submit(enc)
	if err != nil {
		return stats, fmt.Errorf("render: submit frame: %w", err)
	}
	stats.Submission = idx
	r.generation = f.Scene.Generation
	stats.Resolved = r.Poll(r.generation)

	slogger().Debug("render: frame submitted",
		"submission", idx, "dirty", stats.Dirty, "batches", stats.Batches,
		"objects", stats.Objects, "program", bp.label)
	return stats, nil
}

func (r *Renderer) noteTruncation(n int) {
	switch {
	case n > 0 && !r.truncating:
		slogger().Warn("render: object buffer full, objects not uploaded",
			"truncated", n, "max_objects", r.cfg.MaxObjects)
		r.truncating = true
	case n == 0 && r.truncating:
		slogger().Info("render: object buffer capacity recovered")
		r.truncating = false
	}
}

func (r *Renderer) upload(rec *Records) error {
	for _, w := range []struct {
		id   gpucore.BufferID
		data []byte
	}{
		{r.objects, rec.Objects},
		{r.extras, rec.Extras},
		{r.vertices, rec.Vertices},
	} {
		if len(w.data) == 0 {
			continue
		}
		if err := r.a.WriteBuffer(w.id, 0, w.data); err != nil {
			return fmt.Errorf("render: upload objects: %w", err)
		}
	}
	return nil
}

// uploadMap writes the ChunkMap when its version moved since the last
// upload.
func (r *Renderer) uploadMap(res *chunk.Result) (bool, error) {
	if len(res.ChunkMap) == 0 {
		return false, nil
	}
	if r.mapUploaded && res.MapVersion == r.mapVersion {
		return false, nil
	}
	if len(res.ChunkMap) != cube(r.chunkCfg.GridDim) {
		return false, fmt.Errorf("render: chunk map has %d cells, want %d", len(res.ChunkMap), cube(r.chunkCfg.GridDim))
	}
	b := make([]byte, 4*len(res.ChunkMap))
	for i, v := range res.ChunkMap {
		binary.LittleEndian.PutUint32(b[4*i:], v)
	}
	if err := r.a.WriteBuffer(r.chunkMap, 0, b); err != nil {
		return false, fmt.Errorf("render: upload chunk map: %w", err)
	}
	r.mapVersion = res.MapVersion
	r.mapUploaded = true
	return true, nil
}

func (r *Renderer) writeCamera() error {
	var c Camera
	for row := 0; row < 4; row++ {
		for col := 0; col < 4; col++ {
			c.InvViewProj[row*4+col] = float32(r.view.InvViewProj[row][col])
		}
	}
	c.Eye = vec4(r.view.Eye, 1)
	c.Viewport = f32.Vec4{
		float32(r.cfg.Width), float32(r.cfg.Height),
		float32(r.cfg.MaxSteps), float32(r.cfg.MaxDistance),
	}
	b := make([]byte, CameraSize)
	PutCamera(b, &c)
	return r.a.WriteBuffer(r.camera, 0, b)
}

// writeParams writes one parameter block per dirty chunk at ParamStride.
func (r *Renderer) writeParams(dirty []chunk.Slot, objects int) error {
	if len(dirty) == 0 {
		return nil
	}
	if len(dirty) > r.chunkCfg.Capacity() {
		return fmt.Errorf("render: %d dirty chunks exceed %d slots", len(dirty), r.chunkCfg.Capacity())
	}
	b := make([]byte, len(dirty)*ParamStride)
	for i, s := range dirty {
		p := NewChunkParams(&r.chunkCfg, s, objects)
		PutChunkParams(b[i*ParamStride:], &p)
	}
	return r.a.WriteBuffer(r.params, 0, b)
}

// encodeBake records a bake pass and a reduce pass per batch of dirty
// chunks and returns the number of batches.
func (r *Renderer) encodeBake(enc gpucore.Encoder, bp *bakePipeline, dirty int) int {
	groups := gpucore.WorkgroupCount(uint32(r.chunkCfg.PaddedDim()), program.BakeWorkgroupSize)
	batches := 0
	for start := 0; start < dirty; start += r.cfg.BatchSize {
		end := min(start+r.cfg.BatchSize, dirty)

		pass := enc.BeginComputePass(fmt.Sprintf("sdf_bake_%d", batches))
		pass.SetPipeline(bp.pipeline)
		for i := start; i < end; i++ {
			pass.SetBindGroup(0, r.bakeGroup, uint32(i*ParamStride))
			pass.Dispatch(groups, groups, groups)
		}
		pass.End()

		pass = enc.BeginComputePass(fmt.Sprintf("sdf_reduce_%d", batches))
		pass.SetPipeline(r.static.reduce)
		for i := start; i < end; i++ {
			pass.SetBindGroup(0, r.reduceGroup, uint32(i*ParamStride))
			pass.Dispatch(1, 1, 1)
		}
		pass.End()
		batches++
	}
	return batches
}

func (r *Renderer) encodeDraw(enc gpucore.Encoder) {
	pass := enc.BeginRenderPass(&gpucore.RenderPassDesc{
		Label: "sdf_render",
		ColorAttachments: []gpucore.ColorAttachment{
			{Texture: r.color, Clear: [4]float64{0, 0, 0, 1}},
			{Texture: r.pickTex},
			{Texture: r.position},
		},
	})
	pass.SetPipeline(r.static.draw)
	pass.SetBindGroup(0, r.drawGroup)
	pass.Draw(3, 1)
	pass.End()
}

// Close waits for the device, drops pending picks and releases every
// resource. The adapter itself is not destroyed.
func (r *Renderer) Close() {
	if r.closed {
		return
	}
	if err := r.a.WaitIdle(); err != nil {
		slogger().Warn("render: wait idle on close", "err", err)
	}
	for _, p := range r.picks {
		p.finish(PickResult{}, true)
	}
	r.picks = nil
	r.release()
	r.closed = true
}

func (r *Renderer) release() {
	if r.pipelines != nil {
		r.pipelines.Purge()
	}
	for _, g := range []gpucore.BindGroupID{r.bakeGroup, r.reduceGroup, r.drawGroup} {
		if g != gpucore.InvalidID {
			r.a.DestroyBindGroup(g)
		}
	}
	r.bakeGroup, r.reduceGroup, r.drawGroup = gpucore.InvalidID, gpucore.InvalidID, gpucore.InvalidID
	for _, b := range []*gpucore.BufferID{
		&r.params, &r.objects, &r.extras, &r.vertices,
		&r.atlas, &r.march, &r.chunkMap, &r.atlasInfo, &r.camera,
	} {
		if *b != gpucore.InvalidID {
			r.a.DestroyBuffer(*b)
			*b = gpucore.InvalidID
		}
	}
	r.destroyTargets()
	r.static.destroy(r.a)
	r.static = staticPipelines{}
	r.layouts.destroy(r.a)
	r.layouts = layouts{}
}
