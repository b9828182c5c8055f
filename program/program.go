// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package program generates the WGSL source of the chunk bake kernel.
//
// The kernel exists in two forms. Scenes without custom effects share one
// static program whose text and identity never change. Scenes with effects
// get a specialized program with one function per unique effect body; each
// object refers to its body through a small slot number, so the text (and
// the compiled pipeline keyed by it) changes only when the set of distinct
// bodies changes.
package program

import (
	_ "embed"
	"fmt"
	"slices"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/gogpu/sdfatlas/scene"
)

// Entry points of the embedded shaders.
const (
	BakeEntry     = "bake_main"
	ReduceEntry   = "reduce_main"
	VertexEntry   = "vs_main"
	FragmentEntry = "fs_main"
)

// BakeWorkgroupSize is the edge length of the bake kernel's cubic workgroup.
const BakeWorkgroupSize = 4

// ReduceWorkgroupSize is the invocation count of the reduction workgroup.
const ReduceWorkgroupSize = 64

const effectsMarker = "// @effects"

//go:embed shaders/bake.wgsl
var bakeTemplate string

//go:embed shaders/reduce.wgsl
var reduceSource string

//go:embed shaders/render.wgsl
var renderSource string

// ReduceSource returns the per-chunk reduction kernel.
func ReduceSource() string { return reduceSource }

// RenderSource returns the raymarch render shader.
func RenderSource() string { return renderSource }

// Program is a generated bake kernel.
type Program struct {
	// Source is the complete WGSL module.
	Source string
	// Key is a hash of Source, used to cache compiled pipelines.
	Key uint64
	// Specialized is false for the static program.
	Specialized bool

	bodies []string
	slots  map[string]uint32
}

// SlotFor returns the 1-based slot of an effect body, or 0 when the program
// has no function for it.
func (p *Program) SlotFor(body string) uint32 {
	return p.slots[body]
}

// Bodies returns the effect bodies in slot order.
func (p *Program) Bodies() []string {
	return slices.Clone(p.bodies)
}

// Label returns a short debug name.
func (p *Program) Label() string {
	if !p.Specialized {
		return "sdf_bake_static"
	}
	return fmt.Sprintf("sdf_bake_%016x", p.Key)
}

var static = newProgram(nil)

// Static returns the shared program used when no effect is active.
func Static() *Program { return static }

func newProgram(bodies []string) *Program {
	src := strings.Replace(bakeTemplate, effectsMarker, effectsBlock(bodies), 1)
	p := &Program{
		Source:      src,
		Key:         xxhash.Sum64String(src),
		Specialized: len(bodies) > 0,
		bodies:      bodies,
		slots:       make(map[string]uint32, len(bodies)),
	}
	for i, b := range bodies {
		p.slots[b] = uint32(i + 1)
	}
	return p
}

// effectsBlock emits one function per body and the apply_effect dispatcher.
func effectsBlock(bodies []string) string {
	var sb strings.Builder
	for i, body := range bodies {
		fmt.Fprintf(&sb, "fn effect_%d(p: vec3<f32>, d: f32, params: vec4<f32>) -> f32 {\n", i+1)
		for _, line := range strings.Split(strings.TrimRight(body, "\n"), "\n") {
			sb.WriteString("    ")
			sb.WriteString(line)
			sb.WriteByte('\n')
		}
		sb.WriteString("}\n\n")
	}

	sb.WriteString("fn apply_effect(slot: u32, p: vec3<f32>, d: f32, params: vec4<f32>) -> f32 {\n")
	if len(bodies) == 0 {
		sb.WriteString("    return d;\n}\n")
		return sb.String()
	}
	sb.WriteString("    var r = d;\n    switch slot {\n")
	for i := range bodies {
		fmt.Fprintf(&sb, "        case %du: { r = effect_%d(p, d, params); }\n", i+1, i+1)
	}
	sb.WriteString("        default: {}\n    }\n    return r;\n}\n")
	return sb.String()
}

// Specializer produces the bake program for a scene and remembers the last
// specialized variant so repeated calls with the same effect set return the
// same *Program.
//
// Specializer is not safe for concurrent use.
type Specializer struct {
	last *Program
}

// Specialize returns the program for the effect set of s. Hidden layers and
// their objects contribute too, so toggling visibility keeps the program.
func (sp *Specializer) Specialize(s *scene.Scene) *Program {
	return sp.ForBodies(s.Effects())
}

// ForBodies returns the program for a list of effect bodies, in any order
// and with duplicates.
func (sp *Specializer) ForBodies(bodies []string) *Program {
	unique := slices.Clone(bodies)
	slices.Sort(unique)
	unique = slices.Compact(unique)
	if len(unique) == 0 {
		return static
	}
	if sp.last != nil && slices.Equal(sp.last.bodies, unique) {
		return sp.last
	}
	sp.last = newProgram(unique)
	return sp.last
}
