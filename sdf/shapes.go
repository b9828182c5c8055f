// Package sdf is the CPU reference for the bake kernel: primitive distance
// functions, transfer modes and layer compositing with the same semantics as
// the generated compute program. It backs point queries and tests; it is not
// used on the frame path.
package sdf

import (
	"math"

	"github.com/gogpu/sdfatlas/geom"
	"github.com/gogpu/sdfatlas/scene"
)

// Box returns the distance from p to a box with half extents b.
func Box(p, b geom.Vec3) float64 {
	q := p.Abs().Sub(b)
	outside := q.Max(geom.Vec3{}).Length()
	inside := math.Min(q.MaxComponent(), 0)
	return outside + inside
}

// Sphere returns the distance from p to a sphere of radius r.
func Sphere(p geom.Vec3, r float64) float64 {
	return p.Length() - r
}

// Cylinder returns the distance to a Y-aligned cylinder of radius r and half
// height h. Uncapped cylinders are open tubes with zero thickness.
func Cylinder(p geom.Vec3, r, h float64, capped bool) float64 {
	return extrude(math.Hypot(p.X, p.Z)-r, p.Y, h, capped)
}

// Cone returns the distance to a Y-aligned cone with base radius r at
// y = -h and apex at y = +h.
func Cone(p geom.Vec3, r, h float64) float64 {
	qx, qy := math.Hypot(p.X, p.Z), p.Y
	// Capped cone with top radius 0.
	k1x, k1y := 0.0, h
	k2x, k2y := -r, 2*h
	rr := 0.0
	if qy < 0 {
		rr = r
	}
	cax := qx - math.Min(qx, rr)
	cay := math.Abs(qy) - h
	t := clamp(((k1x-qx)*k2x+(k1y-qy)*k2y)/(k2x*k2x+k2y*k2y), 0, 1)
	cbx := qx - k1x + k2x*t
	cby := qy - k1y + k2y*t
	s := 1.0
	if cbx < 0 && cay < 0 {
		s = -1
	}
	return s * math.Sqrt(math.Min(cax*cax+cay*cay, cbx*cbx+cby*cby))
}

// Pyramid returns a bound on the distance to a pyramid with a rectangular
// base of half extents (b.X, b.Z) at y = -b.Y and its apex at y = +b.Y.
// The bound is exact inside and never overestimates outside.
func Pyramid(p, b geom.Vec3) float64 {
	h2 := 2 * b.Y
	fx := (math.Abs(p.X)*h2 + (p.Y-b.Y)*b.X) / math.Hypot(h2, b.X)
	fz := (math.Abs(p.Z)*h2 + (p.Y-b.Y)*b.Z) / math.Hypot(h2, b.Z)
	return math.Max(-b.Y-p.Y, math.Max(fx, fz))
}

// Polygon2D returns the signed distance from (x, y) to a closed polygon.
func Polygon2D(x, y float64, v []geom.Vec2) float64 {
	n := len(v)
	if n < 3 {
		return math.Inf(1)
	}
	dx, dy := x-v[0].X, y-v[0].Y
	d := dx*dx + dy*dy
	s := 1.0
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		ex, ey := v[j].X-v[i].X, v[j].Y-v[i].Y
		wx, wy := x-v[i].X, y-v[i].Y
		t := 0.0
		if ee := ex*ex + ey*ey; ee > 0 {
			t = clamp((wx*ex+wy*ey)/ee, 0, 1)
		}
		bx, by := wx-ex*t, wy-ey*t
		d = math.Min(d, bx*bx+by*by)
		c1 := y >= v[i].Y
		c2 := y < v[j].Y
		c3 := ex*wy > ey*wx
		if (c1 && c2 && c3) || (!c1 && !c2 && !c3) {
			s = -s
		}
	}
	return s * math.Sqrt(d)
}

// Prism returns the distance to a polygon in the XZ plane extruded along Y
// by half height h.
func Prism(p geom.Vec3, v []geom.Vec2, h float64, capped bool) float64 {
	return extrude(Polygon2D(p.X, p.Z, v), p.Y, h, capped)
}

// extrude turns a 2D distance d into a 3D distance for a slab of half
// height h along y.
func extrude(d, y, h float64, capped bool) float64 {
	wy := math.Abs(y) - h
	if !capped {
		if wy <= 0 {
			return math.Abs(d)
		}
		return math.Hypot(d, wy)
	}
	return math.Min(math.Max(d, wy), 0) + math.Hypot(math.Max(d, 0), math.Max(wy, 0))
}

// Shape returns the object's distance at world position p, including scale
// and shell thickness, before any effect or transfer mode.
func Shape(o *scene.Object, p geom.Vec3) float64 {
	s := o.Scale
	if s <= 0 {
		s = 1
	}
	inv := geom.EulerXYZ(o.Rotation).Transpose()
	q := inv.MulVec(p.Sub(o.Position)).Mul(1 / s)

	var d float64
	switch o.Shape {
	case scene.ShapeBox:
		d = Box(q, o.Size)
	case scene.ShapeSphere:
		d = Sphere(q, o.Size.X)
	case scene.ShapeCylinder:
		d = Cylinder(q, o.Size.X, o.Size.Y, o.Capped)
	case scene.ShapeCone:
		d = Cone(q, o.Size.X, o.Size.Y)
	case scene.ShapePyramid:
		d = Pyramid(q, o.Size)
	case scene.ShapePolygon:
		v := o.Vertices
		if len(v) > scene.MaxPolygonVertices {
			v = v[:scene.MaxPolygonVertices]
		}
		d = Prism(q, v, o.Size.Y, o.Capped)
	default:
		d = math.Inf(1)
	}
	d *= s
	if o.Wall > 0 {
		d = math.Abs(d) - o.Wall*s
	}
	return d
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}
