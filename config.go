package sdfatlas

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/gogpu/sdfatlas/chunk"
	"github.com/gogpu/sdfatlas/internal/halgpu"
	"github.com/gogpu/sdfatlas/render"
	"github.com/gogpu/sdfatlas/scene"
)

// Config is the complete engine configuration.
//
// In TOML:
//
//	backend = "vulkan"
//
//	[chunk]
//	chunk_size = 0.5
//	voxel_size = 0.015625
//	slots_x = 8
//
//	[render]
//	max_objects = 1024
//	width = 1280
//	height = 720
type Config struct {
	// Backend names the HAL backend opened by New: "vulkan" or "noop".
	Backend string `toml:"backend"`

	// PrecompileSPIRV hands SPIR-V produced by naga to the backend instead
	// of WGSL source.
	PrecompileSPIRV bool `toml:"precompile_spirv"`

	Chunk  chunk.Config  `toml:"chunk"`
	Render render.Config `toml:"render"`
}

// DefaultConfig returns the standard configuration on the Vulkan backend.
func DefaultConfig() Config {
	return Config{
		Backend: halgpu.BackendVulkan,
		Chunk:   chunk.DefaultConfig(),
		Render:  render.DefaultConfig(),
	}
}

// Validate checks every section.
func (c *Config) Validate() error {
	if _, err := halgpu.ParseBackend(c.Backend); err != nil {
		return err
	}
	if err := c.Chunk.Validate(); err != nil {
		return err
	}
	return c.Render.Validate()
}

// LoadConfig reads a TOML configuration file. Keys missing from the file
// keep their DefaultConfig values; unknown keys are an error.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("sdfatlas: load config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("sdfatlas: load config %s: unknown key %q", path, undecoded[0].String())
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadScene reads a TOML scene description. See scene.Decode for the
// format.
func LoadScene(path string) (*scene.Scene, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("sdfatlas: load scene: %w", err)
	}
	defer f.Close()
	return scene.Decode(f)
}
