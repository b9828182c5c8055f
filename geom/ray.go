package geom

import "math"

const parallelEpsilon = 1e-9

// Ray is a half-line starting at Origin. Dir is expected to be unit length.
type Ray struct {
	Origin Vec3
	Dir    Vec3
}

// At returns the point at parameter t along the ray.
func (r Ray) At(t float64) Vec3 {
	return r.Origin.Add(r.Dir.Mul(t))
}

// ScreenRay unprojects pixel (px, py) of a w×h viewport through the inverse
// view-projection matrix. Pixel centers are sampled; y grows downward.
func ScreenRay(invViewProj Mat4, px, py float64, w, h int) Ray {
	nx := 2*(px+0.5)/float64(w) - 1
	ny := 1 - 2*(py+0.5)/float64(h)
	near := invViewProj.MulPoint(Vec3{X: nx, Y: ny, Z: 0})
	far := invViewProj.MulPoint(Vec3{X: nx, Y: ny, Z: 1})
	return Ray{Origin: near, Dir: far.Sub(near).Normalize()}
}

// IntersectPlane returns where the ray hits the plane through p with normal
// n. It reports false for rays parallel to the plane or pointing away.
func (r Ray) IntersectPlane(p, n Vec3) (Vec3, bool) {
	denom := n.Dot(r.Dir)
	if math.Abs(denom) < parallelEpsilon {
		return Vec3{}, false
	}
	t := n.Dot(p.Sub(r.Origin)) / denom
	if t < 0 {
		return Vec3{}, false
	}
	return r.At(t), true
}

// ProjectOntoAxis returns the parameter s of the point on the line
// origin + s*axis closest to the ray. Dragging a gizmo along an axis uses
// the difference of two such parameters. It reports false when the ray is
// parallel to the axis.
func (r Ray) ProjectOntoAxis(origin, axis Vec3) (float64, bool) {
	axis = axis.Normalize()
	w0 := origin.Sub(r.Origin)
	b := axis.Dot(r.Dir)
	d := axis.Dot(w0)
	e := r.Dir.Dot(w0)
	denom := 1 - b*b
	if math.Abs(denom) < parallelEpsilon {
		return 0, false
	}
	return (b*e - d) / denom, true
}
