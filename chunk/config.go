package chunk

import (
	"errors"
	"math"
)

// ErrInvalidConfig is wrapped by every ConfigError.
var ErrInvalidConfig = errors.New("chunk: invalid config")

// Config describes chunk geometry and atlas capacity.
type Config struct {
	// ChunkSize is the world-space edge length of a chunk.
	ChunkSize float64 `toml:"chunk_size"`

	// VoxelSize is the world-space edge length of one atlas voxel.
	// ChunkSize must be an integer multiple of VoxelSize.
	VoxelSize float64 `toml:"voxel_size"`

	// MarginVoxels inflates every object's bounds before chunk coverage is
	// computed, so gradients near chunk borders see the object.
	MarginVoxels int `toml:"margin_voxels"`

	// PadVoxels is the apron baked on each side of a chunk block.
	PadVoxels int `toml:"pad_voxels"`

	// SlotsX, SlotsY and SlotsZ lay out the atlas as a 3D grid of blocks.
	SlotsX int `toml:"slots_x"`
	SlotsY int `toml:"slots_y"`
	SlotsZ int `toml:"slots_z"`

	// GridDim is the edge length, in chunks, of the dense ChunkMap window
	// centered on the origin.
	GridDim int `toml:"grid_dim"`
}

// DefaultConfig returns the standard geometry: 0.5-unit chunks of 32³
// voxels, 2 voxels of margin, a 34³ padded block and a 256-slot atlas.
func DefaultConfig() Config {
	return Config{
		ChunkSize:    0.5,
		VoxelSize:    0.015625,
		MarginVoxels: 2,
		PadVoxels:    1,
		SlotsX:       8,
		SlotsY:       8,
		SlotsZ:       4,
		GridDim:      64,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if !(c.ChunkSize > 0) {
		return &ConfigError{Field: "ChunkSize", Reason: "must be positive"}
	}
	if !(c.VoxelSize > 0) || c.VoxelSize > c.ChunkSize {
		return &ConfigError{Field: "VoxelSize", Reason: "must be positive and at most ChunkSize"}
	}
	n := c.ChunkSize / c.VoxelSize
	if math.Abs(n-math.Round(n)) > 1e-6 {
		return &ConfigError{Field: "VoxelSize", Reason: "must divide ChunkSize"}
	}
	if c.MarginVoxels < 0 {
		return &ConfigError{Field: "MarginVoxels", Reason: "must be non-negative"}
	}
	if c.PadVoxels < 0 {
		return &ConfigError{Field: "PadVoxels", Reason: "must be non-negative"}
	}
	if c.SlotsX < 1 || c.SlotsY < 1 || c.SlotsZ < 1 {
		return &ConfigError{Field: "Slots", Reason: "must be at least 1 on every axis"}
	}
	if c.Capacity() > 1<<20 {
		return &ConfigError{Field: "Slots", Reason: "capacity must be at most 1048576"}
	}
	if c.GridDim < 2 || c.GridDim%2 != 0 || c.GridDim > 1024 {
		return &ConfigError{Field: "GridDim", Reason: "must be even and in [2, 1024]"}
	}
	return nil
}

// VoxelsPerChunk returns the number of voxels along a chunk edge.
func (c *Config) VoxelsPerChunk() int {
	return int(math.Round(c.ChunkSize / c.VoxelSize))
}

// PaddedDim returns the edge length, in voxels, of one atlas block.
func (c *Config) PaddedDim() int {
	return c.VoxelsPerChunk() + 2*c.PadVoxels
}

// Capacity returns the number of atlas slots.
func (c *Config) Capacity() int {
	return c.SlotsX * c.SlotsY * c.SlotsZ
}

// Margin returns the world-space coverage margin.
func (c *Config) Margin() float64 {
	return float64(c.MarginVoxels) * c.VoxelSize
}

// AtlasDims returns the atlas extent in voxels.
func (c *Config) AtlasDims() [3]int {
	d := c.PaddedDim()
	return [3]int{c.SlotsX * d, c.SlotsY * d, c.SlotsZ * d}
}

// AtlasVoxels returns the total number of voxels in the atlas.
func (c *Config) AtlasVoxels() int {
	d := c.AtlasDims()
	return d[0] * d[1] * d[2]
}

// ConfigError reports an invalid Config field.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return "chunk: invalid config." + e.Field + ": " + e.Reason
}

func (e *ConfigError) Unwrap() error { return ErrInvalidConfig }
