package chunk

import (
	"fmt"
	"math"

	"github.com/gogpu/sdfatlas/geom"
)

// Coord addresses a chunk: floor(worldPos / ChunkSize) on each axis.
type Coord struct {
	X, Y, Z int32
}

// CoordOf returns the chunk containing world position p.
func CoordOf(p geom.Vec3, chunkSize float64) Coord {
	return Coord{
		X: floorDiv(p.X, chunkSize),
		Y: floorDiv(p.Y, chunkSize),
		Z: floorDiv(p.Z, chunkSize),
	}
}

func floorDiv(v, size float64) int32 {
	f := math.Floor(v / size)
	switch {
	case f < math.MinInt32:
		return math.MinInt32
	case f > math.MaxInt32:
		return math.MaxInt32
	}
	return int32(f)
}

// Origin returns the world-space minimum corner of the chunk.
func (c Coord) Origin(chunkSize float64) geom.Vec3 {
	return geom.V3(float64(c.X)*chunkSize, float64(c.Y)*chunkSize, float64(c.Z)*chunkSize)
}

// Less orders coordinates by Z, then Y, then X.
func (c Coord) Less(o Coord) bool {
	if c.Z != o.Z {
		return c.Z < o.Z
	}
	if c.Y != o.Y {
		return c.Y < o.Y
	}
	return c.X < o.X
}

func (c Coord) String() string {
	return fmt.Sprintf("(%d,%d,%d)", c.X, c.Y, c.Z)
}

// Range is an inclusive box of chunk coordinates.
type Range struct {
	Min, Max Coord
}

// Empty reports whether the range contains no chunks.
func (r Range) Empty() bool {
	return r.Max.X < r.Min.X || r.Max.Y < r.Min.Y || r.Max.Z < r.Min.Z
}

// Len returns the number of chunks in the range.
func (r Range) Len() int {
	if r.Empty() {
		return 0
	}
	return int(r.Max.X-r.Min.X+1) * int(r.Max.Y-r.Min.Y+1) * int(r.Max.Z-r.Min.Z+1)
}

// Contains reports whether c lies in the range.
func (r Range) Contains(c Coord) bool {
	return c.X >= r.Min.X && c.X <= r.Max.X &&
		c.Y >= r.Min.Y && c.Y <= r.Max.Y &&
		c.Z >= r.Min.Z && c.Z <= r.Max.Z
}

// Intersect returns the overlap of r and o.
func (r Range) Intersect(o Range) Range {
	return Range{
		Min: Coord{max(r.Min.X, o.Min.X), max(r.Min.Y, o.Min.Y), max(r.Min.Z, o.Min.Z)},
		Max: Coord{min(r.Max.X, o.Max.X), min(r.Max.Y, o.Max.Y), min(r.Max.Z, o.Max.Z)},
	}
}

// Each calls fn for every chunk in the range in Less order.
func (r Range) Each(fn func(Coord)) {
	if r.Empty() {
		return
	}
	for z := r.Min.Z; z <= r.Max.Z; z++ {
		for y := r.Min.Y; y <= r.Max.Y; y++ {
			for x := r.Min.X; x <= r.Max.X; x++ {
				fn(Coord{x, y, z})
			}
		}
	}
}

// Coords returns the chunks of the range in Less order.
func (r Range) Coords() []Coord {
	out := make([]Coord, 0, r.Len())
	r.Each(func(c Coord) { out = append(out, c) })
	return out
}
