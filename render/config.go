// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig is wrapped by every ConfigError.
var ErrInvalidConfig = errors.New("render: invalid config")

// Config holds orchestrator limits and target geometry.
type Config struct {
	// MaxObjects is the capacity of the object buffers. Visible objects
	// beyond it are not uploaded for the frame.
	MaxObjects int `toml:"max_objects"`

	// BatchSize is the number of dirty chunks baked per compute pass.
	BatchSize int `toml:"batch_size"`

	// PipelineCacheSize is the soft limit of compiled bake pipelines.
	PipelineCacheSize int `toml:"pipeline_cache_size"`

	// Width and Height size the color and pick targets.
	Width  int `toml:"width"`
	Height int `toml:"height"`

	// MaxSteps and MaxDistance bound each raymarch.
	MaxSteps    int     `toml:"max_steps"`
	MaxDistance float64 `toml:"max_distance"`
}

// DefaultConfig returns the standard orchestrator limits.
func DefaultConfig() Config {
	return Config{
		MaxObjects:        1024,
		BatchSize:         64,
		PipelineCacheSize: 8,
		Width:             1280,
		Height:            720,
		MaxSteps:          256,
		MaxDistance:       64,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	switch {
	case c.MaxObjects < 1:
		return &ConfigError{Field: "MaxObjects", Reason: "must be at least 1"}
	case c.BatchSize < 1:
		return &ConfigError{Field: "BatchSize", Reason: "must be at least 1"}
	case c.PipelineCacheSize < 1:
		return &ConfigError{Field: "PipelineCacheSize", Reason: "must be at least 1"}
	case c.Width < 1 || c.Height < 1:
		return &ConfigError{Field: "Size", Reason: fmt.Sprintf("invalid target size %dx%d", c.Width, c.Height)}
	case c.MaxSteps < 1:
		return &ConfigError{Field: "MaxSteps", Reason: "must be at least 1"}
	case !(c.MaxDistance > 0):
		return &ConfigError{Field: "MaxDistance", Reason: "must be positive"}
	}
	return nil
}

// ConfigError reports an invalid configuration field.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return "render: invalid config." + e.Field + ": " + e.Reason
}

func (e *ConfigError) Unwrap() error { return ErrInvalidConfig }
