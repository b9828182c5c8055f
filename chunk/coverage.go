package chunk

import (
	"math"

	"github.com/gogpu/sdfatlas/geom"
	"github.com/gogpu/sdfatlas/scene"
)

// LocalExtents returns the object-space half extents of an unscaled,
// unrotated shape.
func LocalExtents(o *scene.Object) geom.Vec3 {
	switch o.Shape {
	case scene.ShapeSphere:
		return geom.Splat(o.Size.X)
	case scene.ShapeCylinder, scene.ShapeCone:
		return geom.V3(o.Size.X, o.Size.Y, o.Size.X)
	case scene.ShapePolygon:
		if len(o.Vertices) == 0 {
			return o.Size.Abs()
		}
		var mx, mz float64
		for i, v := range o.Vertices {
			if i == scene.MaxPolygonVertices {
				break
			}
			mx = math.Max(mx, math.Abs(v.X))
			mz = math.Max(mz, math.Abs(v.Y))
		}
		return geom.V3(mx, math.Abs(o.Size.Y), mz)
	default:
		return o.Size.Abs()
	}
}

// Reach returns how far beyond its scaled extents the object can influence
// the field: the coverage margin, its shell thickness and the blend radius
// of its own or its layer's transfer mode.
func Reach(p scene.Placed, cfg *Config) float64 {
	r := cfg.Margin() + math.Max(p.Wall, 0)*scale(p.Object)
	blend := 0.0
	if p.Mode.Blends() {
		blend = clamp01(p.Param) * scene.BlendRadius
	}
	if p.Layer.Mode.Blends() {
		blend = math.Max(blend, clamp01(p.Layer.Param)*scene.BlendRadius)
	}
	return r + blend
}

// Bounds returns the inflated world-space bounding box of a placed object.
func Bounds(p scene.Placed, cfg *Config) geom.AABB {
	half := geom.AABBHalfExtents(geom.EulerXYZ(p.Rotation), LocalExtents(p.Object), scale(p.Object))
	half = half.Add(geom.Splat(Reach(p, cfg)))
	return geom.BoundsAround(p.Position, half)
}

// Coverage returns the chunks the object's inflated bounds touch.
func Coverage(p scene.Placed, cfg *Config) Range {
	b := Bounds(p, cfg)
	return Range{
		Min: CoordOf(b.Min, cfg.ChunkSize),
		Max: CoordOf(b.Max, cfg.ChunkSize),
	}
}

func scale(o *scene.Object) float64 {
	if o.Scale <= 0 {
		return 1
	}
	return o.Scale
}

func clamp01(v float64) float64 {
	return math.Min(math.Max(v, 0), 1)
}
