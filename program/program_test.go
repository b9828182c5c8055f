// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package program

import (
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/gogpu/naga"

	"github.com/gogpu/sdfatlas/geom"
	"github.com/gogpu/sdfatlas/scene"
	"github.com/gogpu/sdfatlas/sdf"
)

const (
	twist = "return d + 0.1 * sin(p.y * params.x);"
	grow  = "return d - params.x;"
)

func testScene() *scene.Scene {
	return &scene.Scene{
		Layers: []scene.Layer{{ID: 1, Mode: scene.ModeUnion, Opacity: 1, Visible: true}},
		Objects: []scene.Object{
			{ID: 1, Shape: scene.ShapeBox, Size: geom.V3(0.5, 0.5, 0.5), Scale: 1, Opacity: 1},
			{ID: 2, Shape: scene.ShapeSphere, Position: geom.V3(1, 0, 0), Size: geom.V3(0.3, 0, 0), Scale: 1, Opacity: 1, Layer: 1},
		},
	}
}

func countEffectFuncs(src string) int {
	return strings.Count(src, "fn effect_")
}

func TestStaticFastPath(t *testing.T) {
	var sp Specializer
	s := testScene()

	first := sp.Specialize(s)
	if first != Static() {
		t.Fatal("scene without effects should use the static program")
	}
	if first.Specialized {
		t.Error("static program marked specialized")
	}
	if strings.Contains(first.Source, effectsMarker) {
		t.Error("static program still contains the effects marker")
	}

	for i := 0; i < 5; i++ {
		s.Objects[0].Position = geom.V3(float64(i), 0, 0)
		s.Objects = append(s.Objects, scene.Object{ID: uint32(10 + i), Scale: 1, Opacity: 1})
		if got := sp.Specialize(s); got != first || got.Source != first.Source {
			t.Fatalf("edit %d changed the static program", i)
		}
	}
}

func TestProgramStability(t *testing.T) {
	var sp Specializer
	s := testScene()
	s.Objects[0].Effect = &scene.EffectRef{Body: twist, Params: [4]float64{3}}

	p1 := sp.Specialize(s)
	if !p1.Specialized {
		t.Fatal("scene with an effect should be specialized")
	}
	if got := countEffectFuncs(p1.Source); got != 1 {
		t.Fatalf("effect functions = %d, want 1", got)
	}

	// Moving objects and changing effect parameters keep the text.
	s.Objects[0].Position = geom.V3(4, 4, 4)
	s.Objects[0].Effect.Params[0] = 9
	if p2 := sp.Specialize(s); p2 != p1 {
		t.Error("transform edit produced a new program")
	}

	// A second object reusing the body adds no function.
	s.Objects[1].Effect = &scene.EffectRef{Body: twist}
	p3 := sp.Specialize(s)
	if p3.Source != p1.Source {
		t.Error("reusing an effect body changed the program text")
	}
	if got := countEffectFuncs(p3.Source); got != 1 {
		t.Errorf("effect functions after reuse = %d, want 1", got)
	}

	// A new body does.
	s.Layers[0].Effect = &scene.EffectRef{Body: grow}
	p4 := sp.Specialize(s)
	if p4.Source == p1.Source {
		t.Fatal("new effect body should change the program")
	}
	if got := countEffectFuncs(p4.Source); got != 2 {
		t.Errorf("effect functions = %d, want 2", got)
	}
	if p4.Key == p1.Key {
		t.Error("program key did not change with the source")
	}

	// Hiding the layer keeps its effect and object 2's.
	s.Layers[0].Visible = false
	if p5 := sp.Specialize(s); p5 != p4 {
		t.Error("hiding a layer produced a new program")
	}
}

func TestVisibilityKeepsProgram(t *testing.T) {
	const wave = "return d + sin(p.x);"
	s := &scene.Scene{
		Layers: []scene.Layer{{ID: 1, Mode: scene.ModeUnion, Opacity: 1, Visible: true}},
		Objects: []scene.Object{
			{ID: 1, Layer: 1, Shape: scene.ShapeSphere, Size: geom.V3(0.3, 0, 0), Scale: 1, Opacity: 1,
				Effect: &scene.EffectRef{Body: wave}},
		},
	}

	var sp Specializer
	shown := sp.Specialize(s)
	if !shown.Specialized || shown.SlotFor(wave) != 1 {
		t.Fatalf("visible layer: specialized=%v slot=%d", shown.Specialized, shown.SlotFor(wave))
	}

	for _, visible := range []bool{false, true, false} {
		s.Layers[0].Visible = visible
		got := sp.Specialize(s)
		if got.Source != shown.Source || got.Key != shown.Key || !got.Specialized {
			t.Errorf("visible=%v: key %x, want %x", visible, got.Key, shown.Key)
		}
	}

	// A fresh specializer agrees on the hidden scene.
	var fresh Specializer
	if got := fresh.Specialize(s); got.Key != shown.Key {
		t.Errorf("fresh specializer key %x, want %x", got.Key, shown.Key)
	}
}

func TestSlotsAreSortedByBody(t *testing.T) {
	var sp Specializer
	p := sp.ForBodies([]string{twist, grow, twist})
	// "return d + ..." sorts before "return d - ...".
	if got := p.SlotFor(twist); got != 1 {
		t.Errorf("SlotFor(twist) = %d, want 1", got)
	}
	if got := p.SlotFor(grow); got != 2 {
		t.Errorf("SlotFor(grow) = %d, want 2", got)
	}
	if got := p.SlotFor("return 0.0;"); got != 0 {
		t.Errorf("SlotFor(unknown) = %d, want 0", got)
	}
	if bodies := p.Bodies(); len(bodies) != 2 || bodies[0] != twist {
		t.Errorf("Bodies() = %q", bodies)
	}
	for slot := 1; slot <= 2; slot++ {
		call := fmt.Sprintf("case %du: { r = effect_%d(p, d, params); }", slot, slot)
		if !strings.Contains(p.Source, call) {
			t.Errorf("dispatcher missing %q", call)
		}
	}
}

func TestTextDependsOnlyOnBodySet(t *testing.T) {
	var a, b Specializer
	pa := a.ForBodies([]string{grow, twist})
	pb := b.ForBodies([]string{twist, twist, grow})
	if pa.Source != pb.Source || pa.Key != pb.Key {
		t.Error("same body set produced different programs")
	}
	if pa.Label() == Static().Label() {
		t.Error("specialized label should differ from static label")
	}
}

func TestShaderConstantsMatchReference(t *testing.T) {
	want := []string{
		fmt.Sprintf("const BLEND_RADIUS: f32 = %v;", scene.BlendRadius),
		fmt.Sprintf("const FAR: f32 = %ge%d;", sdf.Far/math.Pow10(int(math.Log10(sdf.Far))), int(math.Log10(sdf.Far))),
		"@workgroup_size(4, 4, 4)",
		"fn " + BakeEntry + "(",
	}
	for _, w := range want {
		if !strings.Contains(Static().Source, w) {
			t.Errorf("bake source missing %q", w)
		}
	}
	if !strings.Contains(ReduceSource(), fmt.Sprintf("@workgroup_size(%d)", ReduceWorkgroupSize)) {
		t.Error("reduce workgroup size mismatch")
	}
	for _, entry := range []string{VertexEntry, FragmentEntry} {
		if !strings.Contains(RenderSource(), "fn "+entry+"(") {
			t.Errorf("render source missing entry %s", entry)
		}
	}
}

func TestShadersCompile(t *testing.T) {
	var sp Specializer
	sources := map[string]string{
		"bake static":      Static().Source,
		"bake specialized": sp.ForBodies([]string{twist, grow}).Source,
		"reduce":           ReduceSource(),
		"render":           RenderSource(),
	}
	for name, src := range sources {
		t.Run(name, func(t *testing.T) {
			spirv, err := naga.Compile(src)
			if err != nil {
				msg := err.Error()
				if strings.Contains(msg, "not yet implemented") || strings.Contains(msg, "not supported") {
					t.Skipf("Skipping: naga feature not yet implemented: %v", err)
				}
				t.Fatalf("compile %s: %v", name, err)
			}
			if len(spirv) == 0 || len(spirv)%4 != 0 {
				t.Errorf("SPIR-V length = %d", len(spirv))
			}
		})
	}
}
