package sdf

import (
	"math"

	"github.com/gogpu/sdfatlas/geom"
	"github.com/gogpu/sdfatlas/scene"
)

// EffectFunc is the CPU counterpart of an effect body: it receives the world
// position, the incoming distance and the effect parameters.
type EffectFunc func(p geom.Vec3, d float64, params [4]float64) float64

// Evaluator computes the composited distance field of a scene.
// The zero value treats every effect as the identity.
type Evaluator struct {
	// Effects maps effect bodies to CPU implementations. Bodies without an
	// entry leave the distance unchanged.
	Effects map[string]EffectFunc
}

// Sample is the field value at a point.
type Sample struct {
	Distance float64
	// Owner is the id of the object that supplies the nearest surface, and
	// HasOwner is false when no pickable object contributes.
	Owner    uint32
	HasOwner bool
}

// Distance returns the composited distance at p.
func (e *Evaluator) Distance(s *scene.Scene, p geom.Vec3) float64 {
	return e.Sample(s, p).Distance
}

// Sample evaluates the scene at p.
//
// Objects of one layer are folded into an isolated layer value starting from
// Far, each with its own mode and opacity. Mask objects are unioned
// separately and intersected with the layer value at the end of the run.
// The layer effect is applied to the layer value, which is then combined
// with the result from before the layer using the layer's mode; the layer
// opacity blends the pre-layer and post-layer distances once.
func (e *Evaluator) Sample(s *scene.Scene, p geom.Vec3) Sample {
	out := Sample{Distance: Far}
	best := math.Inf(1)

	var pre, content, mask float64
	var hasMask bool
	for _, pl := range s.Ordered() {
		if pl.First {
			pre, content, mask, hasMask = out.Distance, Far, Far, false
		}

		b := Shape(pl.Object, p)
		if pl.Effect.Active() {
			b = e.apply(pl.Effect, p, b)
		}
		if pl.Mask {
			mask = math.Min(mask, b)
			hasMask = true
		} else {
			content = Transfer(pl.Mode, content, b, pl.Opacity, pl.Param)
			if owns(pl.Mode) && pl.Opacity > 0 && math.Abs(b) < best {
				best = math.Abs(b)
				out.Owner, out.HasOwner = pl.ID, true
			}
		}

		if pl.Last {
			if hasMask {
				content = math.Max(content, mask)
			}
			if pl.Layer.Effect.Active() {
				content = e.apply(pl.Layer.Effect, p, content)
			}
			post := Combine(pl.Layer.Mode, pre, content, pl.Layer.Param)
			out.Distance = mix(pre, post, clamp(pl.Layer.Opacity, 0, 1))
		}
	}
	return out
}

func (e *Evaluator) apply(ref *scene.EffectRef, p geom.Vec3, d float64) float64 {
	fn, ok := e.Effects[ref.Body]
	if !ok {
		return d
	}
	return fn(p, d, ref.Params)
}

// owns reports whether an operand combined with mode can supply the visible
// surface. Cutting modes never do.
func owns(mode scene.TransferMode) bool {
	switch mode {
	case scene.ModeSubtract, scene.ModeIntersect, scene.ModeEngrave, scene.ModeSmoothSubtract:
		return false
	}
	return true
}
