package chunk

import (
	"fmt"

	"github.com/dustin/go-humanize"

	"github.com/gogpu/sdfatlas/geom"
)

// VoxelBytes is the atlas storage size of one voxel.
const VoxelBytes = 8

// Stats is a snapshot of cache occupancy.
type Stats struct {
	Allocated int
	Capacity  int
	Free      int
	Objects   int
	Skipped   int
	Clipped   int

	// AtlasBytes is the size of the atlas storage. Each voxel holds a
	// distance and an owner id.
	AtlasBytes uint64

	Bounds    geom.AABB
	HasBounds bool
}

// Stats returns the current occupancy.
func (c *Cache) Stats() Stats {
	return Stats{
		Allocated:  len(c.slots),
		Capacity:   c.cfg.Capacity(),
		Free:       c.free.len(),
		Objects:    len(c.entries),
		Skipped:    c.skipped,
		Clipped:    c.clipped,
		AtlasBytes: uint64(c.cfg.AtlasVoxels()) * VoxelBytes,
		Bounds:     c.bounds,
		HasBounds:  c.hasBounds,
	}
}

// Occupancy returns the allocated fraction of the atlas.
func (s Stats) Occupancy() float64 {
	if s.Capacity == 0 {
		return 0
	}
	return float64(s.Allocated) / float64(s.Capacity)
}

func (s Stats) String() string {
	str := fmt.Sprintf("%s/%s slots (%.1f%%), atlas %s, %s objects",
		humanize.Comma(int64(s.Allocated)), humanize.Comma(int64(s.Capacity)),
		100*s.Occupancy(), humanize.IBytes(s.AtlasBytes), humanize.Comma(int64(s.Objects)))
	if s.Skipped > 0 {
		str += fmt.Sprintf(", %s skipped", humanize.Comma(int64(s.Skipped)))
	}
	if s.Clipped > 0 {
		str += fmt.Sprintf(", %d clipped", s.Clipped)
	}
	return str
}
