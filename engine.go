package sdfatlas

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/dustin/go-humanize"
	"github.com/gogpu/gpucontext"

	"github.com/gogpu/sdfatlas/chunk"
	"github.com/gogpu/sdfatlas/geom"
	"github.com/gogpu/sdfatlas/gpucore"
	"github.com/gogpu/sdfatlas/internal/halgpu"
	"github.com/gogpu/sdfatlas/program"
	"github.com/gogpu/sdfatlas/render"
	"github.com/gogpu/sdfatlas/scene"
	"github.com/gogpu/sdfatlas/sdf"
)

var (
	// ErrClosed is returned by Engine methods after Close.
	ErrClosed = errors.New("sdfatlas: engine closed")

	// ErrNilScene is returned when a nil scene is passed to Bake.
	ErrNilScene = errors.New("sdfatlas: nil scene")
)

// FrameStats describes one baked frame.
type FrameStats struct {
	render.FrameStats

	// Allocated is the number of atlas slots in use after the sync.
	Allocated int
	// Skipped counts needed chunks that found no free slot.
	Skipped int
	// Clipped counts objects reaching outside the ChunkMap window.
	Clipped int
}

// Stats is a snapshot of engine state.
type Stats struct {
	Adapter    string
	Cache      chunk.Stats
	Pipelines  int
	Pending    int
	Generation uint64
}

func (s Stats) String() string {
	return fmt.Sprintf("%s: %s, %s pipelines, %s picks pending, generation %d",
		s.Adapter, s.Cache, humanize.Comma(int64(s.Pipelines)), humanize.Comma(int64(s.Pending)), s.Generation)
}

// Engine ties the chunk cache, the program specializer and the GPU
// renderer together. It is not safe for concurrent use; drive it from one
// goroutine.
type Engine struct {
	cfg      Config
	adapter  gpucore.Adapter
	owned    bool
	cache    *chunk.Cache
	programs program.Specializer
	renderer *render.Renderer
	eval     sdf.Evaluator
	closed   bool
}

// New opens the configured backend and creates an engine that owns the
// device. GPU initialization failures are returned as is: missing backend,
// adapter or compute support wrap the halgpu sentinel errors.
func New(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	d, err := halgpu.Open(halgpu.Options{Backend: cfg.Backend, PrecompileSPIRV: cfg.PrecompileSPIRV})
	if err != nil {
		return nil, err
	}
	e, err := newEngine(d, cfg)
	if err != nil {
		d.Destroy()
		return nil, err
	}
	e.owned = true
	return e, nil
}

// NewWithAdapter creates an engine on an existing adapter. The adapter is
// not destroyed by Close.
func NewWithAdapter(a gpucore.Adapter, cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return newEngine(a, cfg)
}

// FromProvider creates an engine on a host application's device. The
// device stays owned by the host.
func FromProvider(p gpucontext.DeviceProvider, cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	d, err := halgpu.FromProvider(p)
	if err != nil {
		return nil, err
	}
	e, err := newEngine(d, cfg)
	if err != nil {
		d.Destroy()
		return nil, err
	}
	// The wrapper's own resources are released on Close; the host device
	// and queue are left alone.
	e.owned = true
	return e, nil
}

func newEngine(a gpucore.Adapter, cfg Config) (*Engine, error) {
	c, err := chunk.New(cfg.Chunk)
	if err != nil {
		return nil, err
	}
	c.SetLogger(Logger())
	r, err := render.New(a, cfg.Chunk, cfg.Render)
	if err != nil {
		return nil, fmt.Errorf("sdfatlas: %w", err)
	}
	return &Engine{cfg: cfg, adapter: a, cache: c, renderer: r}, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() Config { return e.cfg }

// Sync diffs s against the previous snapshot without touching the GPU.
// Bake calls it; call it directly to inspect dirty chunks.
func (e *Engine) Sync(s *scene.Scene) chunk.Result {
	return e.cache.Sync(s)
}

// ForceFullRebake makes the next Bake rebake every allocated chunk.
func (e *Engine) ForceFullRebake() { e.cache.ForceFullRebake() }

// Bake syncs s, specializes the bake program for its effects and records
// and submits one frame.
func (e *Engine) Bake(ctx context.Context, s *scene.Scene) (FrameStats, error) {
	if e.closed {
		return FrameStats{}, ErrClosed
	}
	if s == nil {
		return FrameStats{}, ErrNilScene
	}
	if err := ctx.Err(); err != nil {
		return FrameStats{}, err
	}
	res := e.cache.Sync(s)
	prog := e.programs.Specialize(s)
	rs, err := e.renderer.Bake(ctx, render.Frame{Scene: s, Sync: res, Program: prog})
	if err != nil {
		// The cache already counts this frame's chunks as clean.
		e.cache.ForceFullRebake()
		return FrameStats{}, err
	}
	return FrameStats{
		FrameStats: rs,
		Allocated:  e.cache.Stats().Allocated,
		Skipped:    res.Skipped,
		Clipped:    res.Clipped,
	}, nil
}

// SetCamera sets the raymarch view.
func (e *Engine) SetCamera(v render.View) { e.renderer.SetCamera(v) }

// Resize recreates the render targets.
func (e *Engine) Resize(width, height int) error {
	if e.closed {
		return ErrClosed
	}
	return e.renderer.Resize(width, height)
}

// PickPoint requests the object and world-space surface point under pixel
// (px, py) of the last frame. A resolved hit is in the result's Point.
func (e *Engine) PickPoint(px, py int) (*render.Pick, error) {
	if e.closed {
		return nil, ErrClosed
	}
	return e.renderer.PickPoint(px, py, e.renderer.Generation())
}

// PickRegion requests every object visible in rect of the last frame.
func (e *Engine) PickRegion(rect image.Rectangle) (*render.Pick, error) {
	if e.closed {
		return nil, ErrClosed
	}
	return e.renderer.PickRegion(rect, e.renderer.Generation())
}

// Poll resolves completed picks against the current scene generation and
// returns how many were resolved or dropped.
func (e *Engine) Poll(generation uint64) int {
	if e.closed {
		return 0
	}
	return e.renderer.Poll(generation)
}

// SetEffects registers CPU implementations of effect bodies used by
// DistanceAt.
func (e *Engine) SetEffects(fns map[string]sdf.EffectFunc) {
	e.eval.Effects = fns
}

// DistanceAt evaluates the scene field at p on the CPU.
func (e *Engine) DistanceAt(s *scene.Scene, p geom.Vec3) sdf.Sample {
	return e.eval.Sample(s, p)
}

// SlotAt returns the atlas slot of the chunk containing p.
func (e *Engine) SlotAt(p geom.Vec3) (uint32, bool) {
	return e.cache.Lookup(p)
}

// Stats returns a snapshot of engine state.
func (e *Engine) Stats() Stats {
	return Stats{
		Adapter:    e.adapter.Capabilities().Name,
		Cache:      e.cache.Stats(),
		Pipelines:  e.renderer.Pipelines(),
		Pending:    e.renderer.Pending(),
		Generation: e.renderer.Generation(),
	}
}

// Close releases GPU resources. An adapter opened by New is destroyed.
func (e *Engine) Close() {
	if e.closed {
		return
	}
	e.closed = true
	e.renderer.Close()
	if e.owned {
		e.adapter.Destroy()
	}
}
