package chunk

import "github.com/gogpu/sdfatlas/geom"

// Unallocated marks a ChunkMap cell whose chunk holds no atlas slot.
const Unallocated = ^uint32(0)

// Grid is the dense ChunkMap: a dim³ window of slot indices centered on
// the origin. Cell (x, y, z) maps chunk (x-dim/2, y-dim/2, z-dim/2) and is
// stored at x + dim*(y + dim*z).
type Grid struct {
	dim   int
	cells []uint32
}

// NewGrid returns a grid with every cell unallocated.
func NewGrid(dim int) *Grid {
	g := &Grid{dim: dim, cells: make([]uint32, dim*dim*dim)}
	for i := range g.cells {
		g.cells[i] = Unallocated
	}
	return g
}

// Dim returns the grid edge length in chunks.
func (g *Grid) Dim() int { return g.dim }

// Origin returns the chunk coordinate stored in cell (0, 0, 0).
func (g *Grid) Origin() Coord {
	o := int32(-g.dim / 2)
	return Coord{o, o, o}
}

// Window returns the range of chunks the grid can address.
func (g *Grid) Window() Range {
	o := g.Origin()
	e := int32(g.dim - 1)
	return Range{Min: o, Max: Coord{o.X + e, o.Y + e, o.Z + e}}
}

// Index returns the cell index of c and false if c lies outside the window.
func (g *Grid) Index(c Coord) (int, bool) {
	half := g.dim / 2
	x, y, z := int(c.X)+half, int(c.Y)+half, int(c.Z)+half
	if x < 0 || y < 0 || z < 0 || x >= g.dim || y >= g.dim || z >= g.dim {
		return 0, false
	}
	return x + g.dim*(y+g.dim*z), true
}

// Get returns the slot stored for c, or Unallocated.
func (g *Grid) Get(c Coord) uint32 {
	i, ok := g.Index(c)
	if !ok {
		return Unallocated
	}
	return g.cells[i]
}

func (g *Grid) set(c Coord, slot uint32) {
	if i, ok := g.Index(c); ok {
		g.cells[i] = slot
	}
}

// Lookup returns the slot of the chunk containing world position p.
func (g *Grid) Lookup(p geom.Vec3, chunkSize float64) (uint32, bool) {
	s := g.Get(CoordOf(p, chunkSize))
	return s, s != Unallocated
}

// Cells returns the backing slice. It must not be modified.
func (g *Grid) Cells() []uint32 { return g.cells }
