// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"encoding/binary"
	"math"
	"testing"

	"golang.org/x/image/math/f32"

	"github.com/gogpu/sdfatlas/chunk"
	"github.com/gogpu/sdfatlas/geom"
	"github.com/gogpu/sdfatlas/program"
	"github.com/gogpu/sdfatlas/scene"
)

func u32At(b []byte, off int) uint32 { return binary.LittleEndian.Uint32(b[off:]) }

func f32At(b []byte, off int) float32 { return math.Float32frombits(u32At(b, off)) }

// Offsets within an encoded ObjectExtra.
const (
	extraEffectSlot    = 80
	extraFlags         = 88
	extraLayerTransfer = 92
	extraVertexStart   = 96
	extraVertexCount   = 100
	extraID            = 104
)

func TestPackTransfer(t *testing.T) {
	tests := []struct {
		name           string
		mode           scene.TransferMode
		opacity, param float64
		want           uint32
	}{
		{"union opaque", scene.ModeUnion, 1, 0, 4095 << 8},
		{"subtract half", scene.ModeSubtract, 0.5, 1, 2 | 2048<<8 | 4095<<20},
		{"clamped", scene.ModeSmoothSubtract, 2, -1, 8 | 4095<<8},
		{"nan opacity", scene.ModePipe, math.NaN(), 0.25, 6 | 1024<<20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PackTransfer(tt.mode, tt.opacity, tt.param)
			if got != tt.want {
				t.Fatalf("PackTransfer = %#x, want %#x", got, tt.want)
			}
			mode, _, _ := UnpackTransfer(got)
			if mode != tt.mode {
				t.Errorf("UnpackTransfer mode = %v, want %v", mode, tt.mode)
			}
		})
	}

	_, op, pa := UnpackTransfer(PackTransfer(scene.ModeUnion, 0.3, 0.7))
	if math.Abs(op-0.3) > 1.0/4095 || math.Abs(pa-0.7) > 1.0/4095 {
		t.Errorf("UnpackTransfer = %v, %v, want ~0.3, ~0.7", op, pa)
	}
}

func TestObjectRecordLayout(t *testing.T) {
	b := make([]byte, ObjectRecordSize)
	PutObjectRecord(b, &ObjectRecord{
		Pos:      f32.Vec3{1, 2, 3},
		Shape:    4,
		Size:     f32.Vec3{0.5, 0.25, 0.125},
		Transfer: 0xABCDEF01,
	})
	for i, want := range []float32{1, 2, 3} {
		if got := f32At(b, 4*i); got != want {
			t.Errorf("pos[%d] = %v, want %v", i, got, want)
		}
	}
	if got := u32At(b, 12); got != 4 {
		t.Errorf("shape = %d, want 4", got)
	}
	if got := f32At(b, 24); got != 0.125 {
		t.Errorf("size.z = %v, want 0.125", got)
	}
	if got := u32At(b, 28); got != 0xABCDEF01 {
		t.Errorf("transfer = %#x", got)
	}
}

func TestChunkParamsLayout(t *testing.T) {
	cfg := chunk.DefaultConfig()
	p := NewChunkParams(&cfg, chunk.Slot{Coord: chunk.Coord{X: 1, Y: -2, Z: 3}, Index: 9}, 7)
	b := make([]byte, ChunkParamsSize)
	PutChunkParams(b, &p)

	for i, want := range []float32{0.5, -1, 1.5} {
		if got := f32At(b, 4*i); got != want {
			t.Errorf("origin[%d] = %v, want %v", i, got, want)
		}
	}
	if got := u32At(b, 12); got != 7 {
		t.Errorf("object count = %d, want 7", got)
	}
	for i, want := range []uint32{34, 34, 0} {
		if got := u32At(b, 16+4*i); got != want {
			t.Errorf("atlas offset[%d] = %d, want %d", i, got, want)
		}
	}
	if got := f32At(b, 28); got != 0.015625 {
		t.Errorf("voxel size = %v", got)
	}
}

func TestAtlasInfo(t *testing.T) {
	cfg := chunk.DefaultConfig()
	info := NewAtlasInfo(&cfg)
	if info.Dims != [3]uint32{272, 272, 136} {
		t.Errorf("Dims = %v, want [272 272 136]", info.Dims)
	}
	if info.PaddedDim != 34 || info.VoxelsPerChunk != 32 || info.PadVoxels != 1 {
		t.Errorf("PaddedDim/VoxelsPerChunk/PadVoxels = %d/%d/%d", info.PaddedDim, info.VoxelsPerChunk, info.PadVoxels)
	}
	if info.GridOrigin != [3]int32{-32, -32, -32} {
		t.Errorf("GridOrigin = %v", info.GridOrigin)
	}

	b := make([]byte, AtlasInfoSize)
	PutAtlasInfo(b, &info)
	if got := int32(u32At(b, 16)); got != -32 {
		t.Errorf("encoded grid origin = %d", got)
	}
	if got := u32At(b, 40); got != 8 {
		t.Errorf("encoded slots_x = %d", got)
	}
}

func TestCameraColumnOrder(t *testing.T) {
	var c Camera
	for i := range c.InvViewProj {
		c.InvViewProj[i] = float32(i)
	}
	b := make([]byte, CameraSize)
	PutCamera(b, &c)

	for col := 0; col < 4; col++ {
		for row := 0; row < 4; row++ {
			got := f32At(b, 4*(col*4+row))
			if want := float32(row*4 + col); got != want {
				t.Errorf("column %d row %d = %v, want %v", col, row, got, want)
			}
		}
	}
}

func packTestScene() *scene.Scene {
	square := []geom.Vec2{{X: -1, Y: -1}, {X: 1, Y: -1}, {X: 1, Y: 1}, {X: -1, Y: 1}}
	return &scene.Scene{
		Layers: []scene.Layer{
			{ID: 1, Mode: scene.ModeSubtract, Opacity: 0.5, Visible: true, Effect: &scene.EffectRef{Body: "return d;"}},
		},
		Objects: []scene.Object{
			{ID: 10, Shape: scene.ShapeBox, Size: geom.Splat(0.5), Opacity: 1, Layer: 1},
			{ID: 20, Shape: scene.ShapeSphere, Size: geom.V3(0.3, 0, 0), Opacity: 1},
			{ID: 30, Shape: scene.ShapePolygon, Size: geom.V3(0, 0.2, 0), Opacity: 1, Layer: 1, Vertices: square, Capped: true, Mask: true},
		},
	}
}

func TestPackSceneFlags(t *testing.T) {
	s := packTestScene()
	var sp program.Specializer
	prog := sp.Specialize(s)
	rec := PackScene(s, prog, 16)

	if rec.Count != 3 || rec.Truncated != 0 {
		t.Fatalf("Count/Truncated = %d/%d, want 3/0", rec.Count, rec.Truncated)
	}
	tests := []struct {
		id    uint32
		flags uint32
	}{
		{20, FlagLayerStart | FlagLayerEnd},
		{10, FlagLayerStart},
		{30, FlagLayerEnd | FlagMask | FlagCapped},
	}
	for i, tt := range tests {
		x := rec.Extras[i*ObjectExtraSize:]
		if got := u32At(x, extraID); got != tt.id {
			t.Errorf("object %d id = %d, want %d", i, got, tt.id)
		}
		if got := u32At(x, extraFlags); got != tt.flags {
			t.Errorf("object %d flags = %#b, want %#b", i, got, tt.flags)
		}
	}

	last := rec.Extras[2*ObjectExtraSize:]
	if got, want := u32At(last, extraLayerTransfer), PackTransfer(scene.ModeSubtract, 0.5, 0); got != want {
		t.Errorf("layer transfer = %#x, want %#x", got, want)
	}
	if got := u32At(last, extraEffectSlot+4); got != prog.SlotFor("return d;") || got == 0 {
		t.Errorf("layer effect slot = %d", got)
	}
	if got := u32At(last, extraVertexCount); got != 4 {
		t.Errorf("vertex count = %d, want 4", got)
	}
	if len(rec.Vertices) != 4*VertexSize {
		t.Errorf("vertices = %d bytes, want %d", len(rec.Vertices), 4*VertexSize)
	}
}

func TestPackSceneTruncation(t *testing.T) {
	s := packTestScene()
	rec := PackScene(s, program.Static(), 2)
	if rec.Count != 2 || rec.Truncated != 1 {
		t.Fatalf("Count/Truncated = %d/%d, want 2/1", rec.Count, rec.Truncated)
	}
	x := rec.Extras[ObjectExtraSize:]
	if got := u32At(x, extraFlags); got != FlagLayerStart|FlagLayerEnd {
		t.Errorf("flags of final object = %#b, want start|end", got)
	}
	if len(rec.Objects) != 2*ObjectRecordSize || len(rec.Vertices) != 0 {
		t.Errorf("objects/vertices = %d/%d bytes", len(rec.Objects), len(rec.Vertices))
	}
}

func TestPackScenePolygonCap(t *testing.T) {
	vs := make([]geom.Vec2, 20)
	for i := range vs {
		a := 2 * math.Pi * float64(i) / float64(len(vs))
		vs[i] = geom.V2(math.Cos(a), math.Sin(a))
	}
	s := &scene.Scene{Objects: []scene.Object{
		{ID: 1, Shape: scene.ShapePolygon, Size: geom.V3(0, 0.1, 0), Opacity: 1, Vertices: vs},
		{ID: 2, Shape: scene.ShapePolygon, Size: geom.V3(0, 0.1, 0), Opacity: 1, Vertices: vs[:3]},
	}}
	rec := PackScene(s, program.Static(), 8)
	if got := u32At(rec.Extras, extraVertexCount); got != scene.MaxPolygonVertices {
		t.Errorf("vertex count = %d, want %d", got, scene.MaxPolygonVertices)
	}
	second := rec.Extras[ObjectExtraSize:]
	if got := u32At(second, extraVertexStart); got != scene.MaxPolygonVertices {
		t.Errorf("second vertex start = %d, want %d", got, scene.MaxPolygonVertices)
	}
	if want := (scene.MaxPolygonVertices + 3) * VertexSize; len(rec.Vertices) != want {
		t.Errorf("vertices = %d bytes, want %d", len(rec.Vertices), want)
	}
}

func TestPackSceneRotationAndScale(t *testing.T) {
	s := &scene.Scene{Objects: []scene.Object{
		{ID: 1, Shape: scene.ShapeBox, Size: geom.Splat(1), Rotation: geom.V3(0, 0, math.Pi/2), Scale: 2, Wall: 0.1, Opacity: 1},
	}}
	rec := PackScene(s, program.Static(), 1)
	inv := geom.EulerXYZ(geom.V3(0, 0, math.Pi/2)).Transpose()
	for row := 0; row < 3; row++ {
		want := inv.Row(row)
		for col, w := range []float64{want.X, want.Y, want.Z} {
			if got := f32At(rec.Extras, 16*row+4*col); math.Abs(float64(got)-w) > 1e-6 {
				t.Errorf("rot[%d][%d] = %v, want %v", row, col, got, w)
			}
		}
	}
	if got := f32At(rec.Extras, 12); got != 2 {
		t.Errorf("scale = %v, want 2", got)
	}
	if got := f32At(rec.Extras, 28); math.Abs(float64(got)-0.1) > 1e-7 {
		t.Errorf("wall = %v, want 0.1", got)
	}
}
