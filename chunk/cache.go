// Package chunk maintains the sparse chunk cache: which chunks of space are
// occupied, which atlas slot each one owns and which ones must be rebaked
// after an edit.
//
// The cache is driven by Sync, which diffs a scene snapshot against the
// previous one using per-object coverage and fingerprints. Cache is not safe
// for concurrent use; it is owned by the frame loop.
package chunk

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/gogpu/sdfatlas/geom"
	"github.com/gogpu/sdfatlas/scene"
)

// Slot binds a chunk to an atlas slot.
type Slot struct {
	Coord Coord
	Index uint32
}

// Result is the outcome of a Sync.
type Result struct {
	// Dirty lists the allocated chunks whose slot content must be rebaked,
	// in Coord.Less order.
	Dirty []Slot

	// ChunkMap is the dense slot grid. It aliases cache state and is valid
	// until the next Sync.
	ChunkMap []uint32

	// MapVersion increases whenever ChunkMap changes.
	MapVersion uint64

	// Skipped counts needed chunks left without a slot because the atlas
	// is full. They are retried on the next Sync.
	Skipped int

	// Clipped counts objects whose coverage extends past the ChunkMap
	// window. The part outside the window is not cached.
	Clipped int
}

// objectKey identifies an object across syncs. N disambiguates repeated IDs.
type objectKey struct {
	ID uint32
	N  int
}

type entry struct {
	coverage    Range
	fingerprint string
	seq         int // position in compositing order
}

// Cache tracks allocated chunks and per-object dependencies.
type Cache struct {
	cfg  Config
	grid *Grid

	entries map[objectKey]entry
	slots   map[Coord]uint32
	owner   []Coord // slot -> chunk, valid while the slot is allocated
	inUse   []bool
	free    slotStack

	bounds     geom.AABB
	hasBounds  bool
	force      bool
	mapVersion uint64
	skipped    int
	clipped    int
	overflow   bool

	log *slog.Logger
}

// New creates an empty cache.
func New(cfg Config) (*Cache, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	n := cfg.Capacity()
	return &Cache{
		cfg:     cfg,
		grid:    NewGrid(cfg.GridDim),
		entries: make(map[objectKey]entry),
		slots:   make(map[Coord]uint32),
		owner:   make([]Coord, n),
		inUse:   make([]bool, n),
		free:    newSlotStack(n),
		log:     slog.New(nopHandler{}),
	}, nil
}

// SetLogger sets the logger used for capacity warnings. Nil disables logging.
func (c *Cache) SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(nopHandler{})
	}
	c.log = l
}

// Config returns the cache configuration.
func (c *Cache) Config() Config { return c.cfg }

// Grid returns the ChunkMap.
func (c *Cache) Grid() *Grid { return c.grid }

// ForceFullRebake marks every needed chunk dirty on the next Sync.
func (c *Cache) ForceFullRebake() { c.force = true }

// Sync reconciles the cache with a scene snapshot.
func (c *Cache) Sync(s *scene.Scene) Result {
	window := c.grid.Window()
	placed := s.Ordered()

	next := make(map[objectKey]entry, len(placed))
	seen := make(map[uint32]int, len(placed))
	needed := make(map[Coord]struct{})
	clipped := 0
	for i, p := range placed {
		key := objectKey{ID: p.ID, N: seen[p.ID]}
		seen[p.ID]++

		cov := Coverage(p, &c.cfg)
		in := cov.Intersect(window)
		if in != cov {
			clipped++
		}
		in.Each(func(co Coord) { needed[co] = struct{}{} })
		next[key] = entry{coverage: in, fingerprint: Fingerprint(p), seq: i}
	}

	mapChanged := c.release(needed)
	dirty := c.diff(next, needed)

	skipped := 0
	for _, co := range sortedCoords(needed) {
		if _, ok := c.slots[co]; ok {
			continue
		}
		idx, ok := c.free.pop()
		if !ok {
			skipped++
			continue
		}
		c.slots[co] = idx
		c.owner[idx] = co
		c.inUse[idx] = true
		c.grid.set(co, idx)
		dirty[co] = struct{}{}
		mapChanged = true
	}

	if mapChanged {
		c.mapVersion++
		c.updateBounds()
	}
	c.noteOverflow(skipped, len(needed))
	c.entries = next
	c.force = false
	c.skipped = skipped
	c.clipped = clipped

	res := Result{
		ChunkMap:   c.grid.Cells(),
		MapVersion: c.mapVersion,
		Skipped:    skipped,
		Clipped:    clipped,
	}
	for co := range dirty {
		idx, ok := c.slots[co]
		if !ok {
			continue
		}
		if _, ok := needed[co]; !ok {
			continue
		}
		res.Dirty = append(res.Dirty, Slot{Coord: co, Index: idx})
	}
	slices.SortFunc(res.Dirty, func(a, b Slot) int { return compareCoord(a.Coord, b.Coord) })
	return res
}

// release frees every allocated chunk that is no longer needed.
func (c *Cache) release(needed map[Coord]struct{}) bool {
	var stale []Coord
	for co := range c.slots {
		if _, ok := needed[co]; !ok {
			stale = append(stale, co)
		}
	}
	slices.SortFunc(stale, compareCoord)
	for _, co := range stale {
		idx := c.slots[co]
		delete(c.slots, co)
		c.inUse[idx] = false
		c.grid.set(co, Unallocated)
		c.free.push(idx)
	}
	return len(stale) > 0
}

// diff marks the chunks touched by added, changed, removed and reordered
// objects.
func (c *Cache) diff(next map[objectKey]entry, needed map[Coord]struct{}) map[Coord]struct{} {
	dirty := make(map[Coord]struct{})
	mark := func(r Range) {
		r.Each(func(co Coord) { dirty[co] = struct{}{} })
	}
	if c.force {
		for co := range needed {
			dirty[co] = struct{}{}
		}
	}
	for k, e := range next {
		old, ok := c.entries[k]
		switch {
		case !ok:
			mark(e.coverage)
		case old.fingerprint != e.fingerprint:
			mark(old.coverage)
			mark(e.coverage)
		}
	}
	for k, old := range c.entries {
		if _, ok := next[k]; !ok {
			mark(old.coverage)
		}
	}
	for _, k := range c.reordered(next) {
		mark(c.entries[k].coverage)
		mark(next[k].coverage)
	}
	return dirty
}

// reordered returns the objects present in both snapshots whose rank among
// those common objects changed. Insertions and removals alone shift no
// rank, while any pair that swapped order has at least one member listed.
func (c *Cache) reordered(next map[objectKey]entry) []objectKey {
	common := make([]objectKey, 0, len(next))
	for k := range next {
		if _, ok := c.entries[k]; ok {
			common = append(common, k)
		}
	}
	slices.SortFunc(common, func(a, b objectKey) int { return c.entries[a].seq - c.entries[b].seq })
	oldRank := make(map[objectKey]int, len(common))
	for i, k := range common {
		oldRank[k] = i
	}
	slices.SortFunc(common, func(a, b objectKey) int { return next[a].seq - next[b].seq })

	var moved []objectKey
	for i, k := range common {
		if oldRank[k] != i {
			moved = append(moved, k)
		}
	}
	return moved
}

func (c *Cache) noteOverflow(skipped, needed int) {
	switch {
	case skipped > 0 && !c.overflow:
		c.log.Warn("chunk: atlas full, chunks left unbaked",
			"skipped", skipped, "needed", needed, "capacity", c.cfg.Capacity())
		c.overflow = true
	case skipped == 0 && c.overflow:
		c.log.Info("chunk: atlas capacity recovered", "needed", needed)
		c.overflow = false
	}
}

func (c *Cache) updateBounds() {
	c.hasBounds = false
	for co := range c.slots {
		b := geom.AABB{
			Min: co.Origin(c.cfg.ChunkSize),
			Max: co.Origin(c.cfg.ChunkSize).Add(geom.Splat(c.cfg.ChunkSize)),
		}
		if !c.hasBounds {
			c.bounds = b
			c.hasBounds = true
			continue
		}
		c.bounds = c.bounds.Union(b)
	}
}

// Bounds returns the world-space box enclosing all allocated chunks and
// false when nothing is allocated.
func (c *Cache) Bounds() (geom.AABB, bool) {
	return c.bounds, c.hasBounds
}

// SlotOf returns the slot held by chunk co.
func (c *Cache) SlotOf(co Coord) (uint32, bool) {
	idx, ok := c.slots[co]
	return idx, ok
}

// Lookup returns the slot of the chunk containing world position p.
func (c *Cache) Lookup(p geom.Vec3) (uint32, bool) {
	return c.grid.Lookup(p, c.cfg.ChunkSize)
}

// Allocated returns the allocated chunks in Coord.Less order.
func (c *Cache) Allocated() []Slot {
	out := make([]Slot, 0, len(c.slots))
	for co, idx := range c.slots {
		out = append(out, Slot{Coord: co, Index: idx})
	}
	slices.SortFunc(out, func(a, b Slot) int { return compareCoord(a.Coord, b.Coord) })
	return out
}

// AtlasOffset returns the voxel offset of a slot's block within the atlas.
func (c *Cache) AtlasOffset(slot uint32) [3]uint32 {
	return AtlasOffset(&c.cfg, slot)
}

// AtlasOffset returns the voxel offset of a slot's block within an atlas
// laid out by cfg. Slots fill X first, then Y, then Z.
func AtlasOffset(cfg *Config, slot uint32) [3]uint32 {
	sx, sy := uint32(cfg.SlotsX), uint32(cfg.SlotsY)
	d := uint32(cfg.PaddedDim())
	return [3]uint32{
		(slot % sx) * d,
		(slot / sx % sy) * d,
		(slot / (sx * sy)) * d,
	}
}

// CheckInvariants verifies slot bookkeeping: the slot/chunk mapping is a
// bijection, the ChunkMap agrees with it, and free plus allocated slots
// partition the capacity.
func (c *Cache) CheckInvariants() error {
	n := c.cfg.Capacity()
	if len(c.slots)+c.free.len() != n {
		return fmt.Errorf("chunk: %d allocated + %d free != capacity %d", len(c.slots), c.free.len(), n)
	}
	seen := make([]bool, n)
	for co, idx := range c.slots {
		if int(idx) >= n {
			return fmt.Errorf("chunk: slot %d of %v out of range", idx, co)
		}
		if seen[idx] {
			return fmt.Errorf("chunk: slot %d assigned twice", idx)
		}
		seen[idx] = true
		if !c.inUse[idx] || c.owner[idx] != co {
			return fmt.Errorf("chunk: slot %d owner mismatch for %v", idx, co)
		}
		if g := c.grid.Get(co); g != idx {
			return fmt.Errorf("chunk: ChunkMap holds %d for %v, want %d", g, co, idx)
		}
	}
	for _, idx := range c.free.free {
		if seen[idx] {
			return fmt.Errorf("chunk: slot %d both free and allocated", idx)
		}
		seen[idx] = true
	}
	mapped := 0
	for _, v := range c.grid.cells {
		if v != Unallocated {
			mapped++
		}
	}
	if mapped != len(c.slots) {
		return fmt.Errorf("chunk: ChunkMap has %d cells, %d chunks allocated", mapped, len(c.slots))
	}
	return nil
}

func sortedCoords(set map[Coord]struct{}) []Coord {
	out := make([]Coord, 0, len(set))
	for co := range set {
		out = append(out, co)
	}
	slices.SortFunc(out, compareCoord)
	return out
}

func compareCoord(a, b Coord) int {
	switch {
	case a.Less(b):
		return -1
	case b.Less(a):
		return 1
	}
	return 0
}

type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }
