// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"context"
	"encoding/binary"
	"errors"
	"image"
	"math"
	"slices"

	"github.com/gogpu/sdfatlas/geom"
	"github.com/gogpu/sdfatlas/gpucore"
)

// ErrPickIncomplete is returned by Pick.Wait when the device went idle
// without completing the pick's submission.
var ErrPickIncomplete = errors.New("render: pick submission did not complete")

// PointHit is the surface under a picked pixel.
type PointHit struct {
	// Pos is the world-space point where the raymarch hit the surface.
	Pos    geom.Vec3
	Object uint32
}

// PickResult lists the objects found in a picked region.
type PickResult struct {
	// Objects holds the distinct object ids, ascending.
	Objects []uint32

	// Point is the hit under the pixel of a point pick. It is nil for
	// region picks and misses.
	Point *PointHit
}

// Hit reports whether any object was found.
func (r PickResult) Hit() bool { return len(r.Objects) > 0 }

// Pick is a pending readback of the pick target.
type Pick struct {
	r          *Renderer
	generation uint64
	index      gpucore.SubmissionIndex
	rect       image.Rectangle
	buffer     gpucore.BufferID
	rowBytes   uint32
	size       uint64

	// position is the staging buffer of the hit point, point picks only.
	position gpucore.BufferID

	done   bool
	stale  bool
	result PickResult
}

// Rect returns the picked region, clamped to the target.
func (p *Pick) Rect() image.Rectangle { return p.rect }

// Generation returns the scene generation the pick was issued for.
func (p *Pick) Generation() uint64 { return p.generation }

// Done reports whether the pick has been resolved or dropped.
func (p *Pick) Done() bool { return p.done }

// Result returns the resolved result. ok is false while the pick is
// pending and when it was dropped as stale.
func (p *Pick) Result() (PickResult, bool) {
	if !p.done || p.stale {
		return PickResult{}, false
	}
	return p.result, true
}

// Wait blocks until the pick resolves. ok is false for a stale pick.
func (p *Pick) Wait(ctx context.Context) (PickResult, bool, error) {
	if !p.done {
		if err := ctx.Err(); err != nil {
			return PickResult{}, false, err
		}
		if p.r.a.Completed() < p.index {
			if err := p.r.a.WaitIdle(); err != nil {
				return PickResult{}, false, err
			}
		}
		p.r.Poll(p.r.generation)
		if !p.done {
			return PickResult{}, false, ErrPickIncomplete
		}
	}
	res, ok := p.Result()
	return res, ok, nil
}

func (p *Pick) finish(res PickResult, stale bool) {
	for _, b := range []*gpucore.BufferID{&p.buffer, &p.position} {
		if *b != gpucore.InvalidID {
			p.r.a.DestroyBuffer(*b)
			*b = gpucore.InvalidID
		}
	}
	p.result = res
	p.stale = stale
	p.done = true
}

// PickPoint requests the object and world-space surface point under pixel
// (px, py). The result carries them in Point.
func (r *Renderer) PickPoint(px, py int, generation uint64) (*Pick, error) {
	return r.pick(image.Rect(px, py, px+1, py+1), generation, true)
}

// PickRegion requests every object visible in rect. The region is clamped
// to the render target; a region entirely outside it resolves at once
// with no objects.
func (r *Renderer) PickRegion(rect image.Rectangle, generation uint64) (*Pick, error) {
	return r.pick(rect, generation, false)
}

func (r *Renderer) pick(rect image.Rectangle, generation uint64, point bool) (*Pick, error) {
	if r.closed {
		return nil, ErrClosed
	}
	rect = rect.Canon().Intersect(image.Rect(0, 0, r.cfg.Width, r.cfg.Height))
	p := &Pick{r: r, generation: generation, rect: rect}
	if rect.Empty() {
		p.done = true
		return p, nil
	}

	w, h := uint32(rect.Dx()), uint32(rect.Dy())
	p.rowBytes = gpucore.AlignedBytesPerRow(w, PickFormat)
	p.size = uint64(p.rowBytes) * uint64(h)
	buf, err := r.a.CreateBuffer(p.size, gpucore.BufferUsageMapRead|gpucore.BufferUsageCopyDst, "sdf_pick_staging")
	if err != nil {
		return nil, err
	}
	p.buffer = buf
	if point {
		p.position, err = r.a.CreateBuffer(uint64(positionRowBytes), gpucore.BufferUsageMapRead|gpucore.BufferUsageCopyDst, "sdf_pick_position_staging")
		if err != nil {
			p.finish(PickResult{}, true)
			return nil, err
		}
	}

	enc, err := r.a.BeginEncoding("sdf_pick")
	if err != nil {
		p.finish(PickResult{}, true)
		return nil, err
	}
	enc.CopyTextureToBuffer(r.pickTex, buf, gpucore.TextureCopy{
		X: uint32(rect.Min.X), Y: uint32(rect.Min.Y),
		Width: w, Height: h,
		BytesPerRow: p.rowBytes,
	})
	if point {
		enc.CopyTextureToBuffer(r.position, p.position, gpucore.TextureCopy{
			X: uint32(rect.Min.X), Y: uint32(rect.Min.Y),
			Width: 1, Height: 1,
			BytesPerRow: positionRowBytes,
		})
	}
	if p.index, err = r.a.Submit(enc); err != nil {
		p.finish(PickResult{}, true)
		return nil, err
	}
	r.picks = append(r.picks, p)
	return p, nil
}

// Pending returns the number of unresolved picks.
func (r *Renderer) Pending() int { return len(r.picks) }

// Poll resolves every pick whose submission has completed. Picks issued
// for a generation other than current are dropped without a result.
// It returns the number of picks resolved or dropped.
func (r *Renderer) Poll(current uint64) int {
	if len(r.picks) == 0 {
		return 0
	}
	completed := r.a.Completed()
	n := 0
	keep := r.picks[:0]
	for _, p := range r.picks {
		if p.index > completed {
			keep = append(keep, p)
			continue
		}
		n++
		if p.generation != current {
			slogger().Debug("render: stale pick dropped", "generation", p.generation, "current", current)
			p.finish(PickResult{}, true)
			continue
		}
		data, err := r.a.MapRead(p.buffer, 0, p.size)
		if err != nil {
			slogger().Warn("render: pick readback failed", "err", err)
			p.finish(PickResult{}, true)
			continue
		}
		res := decodePick(data, p.rect.Dx(), p.rect.Dy(), int(p.rowBytes))
		if p.position != gpucore.InvalidID && res.Hit() {
			pos, err := r.a.MapRead(p.position, 0, uint64(positionRowBytes))
			if err != nil {
				slogger().Warn("render: pick position readback failed", "err", err)
				p.finish(PickResult{}, true)
				continue
			}
			res.Point = decodePoint(binary.LittleEndian.Uint32(data), pos)
		}
		p.finish(res, false)
	}
	clear(r.picks[len(keep):])
	r.picks = keep
	return n
}

// decodePick collects the distinct object ids of a pick readback. Texels
// hold id+1; zero is background.
func decodePick(data []byte, w, h, rowBytes int) PickResult {
	seen := make(map[uint32]struct{})
	for y := 0; y < h; y++ {
		row := data[y*rowBytes:]
		for x := 0; x < w; x++ {
			v := binary.LittleEndian.Uint32(row[4*x:])
			if v != 0 {
				seen[v-1] = struct{}{}
			}
		}
	}
	if len(seen) == 0 {
		return PickResult{}
	}
	ids := make([]uint32, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return PickResult{Objects: ids}
}

// positionRowBytes is the staging size of one position texel.
var positionRowBytes = gpucore.AlignedBytesPerRow(1, PositionFormat)

// decodePoint returns the hit of a point pick from its id texel and its
// position texel, or nil on a miss.
func decodePoint(id uint32, pos []byte) *PointHit {
	w := math.Float32frombits(binary.LittleEndian.Uint32(pos[12:]))
	if id == 0 || w <= 0 {
		return nil
	}
	f := func(i int) float64 {
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(pos[4*i:])))
	}
	return &PointHit{Pos: geom.V3(f(0), f(1), f(2)), Object: id - 1}
}
