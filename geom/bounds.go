package geom

import "math"

// AABB is an axis-aligned box in world space.
type AABB struct {
	Min, Max Vec3
}

// Center returns the midpoint of the box.
func (b AABB) Center() Vec3 {
	return b.Min.Add(b.Max).Mul(0.5)
}

// Size returns the edge lengths of the box.
func (b AABB) Size() Vec3 {
	return b.Max.Sub(b.Min)
}

// Union returns the smallest box containing both b and o.
func (b AABB) Union(o AABB) AABB {
	return AABB{Min: b.Min.Min(o.Min), Max: b.Max.Max(o.Max)}
}

// Empty reports whether the box has no volume on some axis.
func (b AABB) Empty() bool {
	return b.Max.X < b.Min.X || b.Max.Y < b.Min.Y || b.Max.Z < b.Min.Z
}

// Contains reports whether p lies inside the box (inclusive).
func (b AABB) Contains(p Vec3) bool {
	return p.X >= b.Min.X && p.X <= b.Max.X &&
		p.Y >= b.Min.Y && p.Y <= b.Max.Y &&
		p.Z >= b.Min.Z && p.Z <= b.Max.Z
}

// AABBHalfExtents returns the half extents of the world-space bounding box
// of a local box with half extents ext, rotated by r and uniformly scaled:
//
//	half[i] = Σ_j |r[i][j]| * ext[j] * scale
func AABBHalfExtents(r Mat3, ext Vec3, scale float64) Vec3 {
	var half [3]float64
	for i := 0; i < 3; i++ {
		half[i] = (math.Abs(r[i][0])*ext.X + math.Abs(r[i][1])*ext.Y + math.Abs(r[i][2])*ext.Z) * scale
	}
	return Vec3{X: half[0], Y: half[1], Z: half[2]}
}

// BoundsAround returns the box centered at c with half extents h.
func BoundsAround(c, h Vec3) AABB {
	return AABB{Min: c.Sub(h), Max: c.Add(h)}
}
