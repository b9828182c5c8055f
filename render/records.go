// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import (
	"encoding/binary"
	"math"

	"golang.org/x/image/math/f32"

	"github.com/gogpu/sdfatlas/chunk"
	"github.com/gogpu/sdfatlas/geom"
	"github.com/gogpu/sdfatlas/program"
	"github.com/gogpu/sdfatlas/scene"
)

// GPU record sizes in bytes. They must match the structs in the WGSL
// sources of package program.
const (
	ObjectRecordSize = 32
	ObjectExtraSize  = 112
	VertexSize       = 8
	ChunkParamsSize  = 32
	AtlasInfoSize    = 48
	CameraSize       = 96
)

// ParamStride is the distance between per-chunk parameter blocks in the
// parameter buffer. It satisfies the common dynamic uniform offset
// alignment of 256 bytes.
const ParamStride = 256

// Extra flags.
const (
	FlagLayerStart uint32 = 1 << 0
	FlagLayerEnd   uint32 = 1 << 1
	FlagMask       uint32 = 1 << 2
	FlagCapped     uint32 = 1 << 3
)

// ObjectRecord is the compact per-object record read by every bake
// invocation.
//
// Layout: pos vec3<f32> | shape u32 | size vec3<f32> | transfer u32.
type ObjectRecord struct {
	Pos      f32.Vec3
	Shape    uint32
	Size     f32.Vec3
	Transfer uint32
}

// ObjectExtra carries the rotation, effect and layer data of an object.
type ObjectExtra struct {
	// Rot holds the rows of the inverse rotation. Rot[0][3] is the uniform
	// scale and Rot[1][3] the wall thickness.
	Rot               [3]f32.Vec4
	EffectParams      f32.Vec4
	LayerEffectParams f32.Vec4
	EffectSlot        uint32
	LayerEffectSlot   uint32
	Flags             uint32
	LayerTransfer     uint32
	VertexStart       uint32
	VertexCount       uint32
	ID                uint32
}

// ChunkParams is the per-chunk uniform block of the bake and reduce
// kernels. ObjectCount is the total number of uploaded objects.
type ChunkParams struct {
	Origin      f32.Vec3
	ObjectCount uint32
	AtlasOffset [3]uint32
	VoxelSize   float32
}

// AtlasInfo describes atlas and ChunkMap geometry to every kernel.
type AtlasInfo struct {
	Dims           [3]uint32
	PaddedDim      uint32
	GridOrigin     [3]int32
	PadVoxels      uint32
	ChunkSize      float32
	VoxelsPerChunk uint32
	SlotsX         uint32
	SlotsY         uint32
}

// Camera is the per-frame uniform of the render pass.
type Camera struct {
	// InvViewProj is stored row-major (m[row*4+col]).
	InvViewProj f32.Mat4
	Eye         f32.Vec4
	// Viewport is width, height, max march steps, max march distance.
	Viewport f32.Vec4
}

// PackTransfer packs a transfer mode with 12-bit opacity and parameter.
func PackTransfer(mode scene.TransferMode, opacity, param float64) uint32 {
	return uint32(mode) | quantize12(opacity)<<8 | quantize12(param)<<20
}

// UnpackTransfer reverses PackTransfer up to quantization.
func UnpackTransfer(t uint32) (mode scene.TransferMode, opacity, param float64) {
	return scene.TransferMode(t & 0xFF), float64(t>>8&0xFFF) / 4095, float64(t>>20&0xFFF) / 4095
}

func quantize12(v float64) uint32 {
	if !(v > 0) {
		return 0
	}
	if v >= 1 {
		return 4095
	}
	return uint32(math.Round(v * 4095))
}

func vec3(v geom.Vec3) f32.Vec3 {
	return f32.Vec3{float32(v.X), float32(v.Y), float32(v.Z)}
}

func vec4(v geom.Vec3, w float64) f32.Vec4 {
	return f32.Vec4{float32(v.X), float32(v.Y), float32(v.Z), float32(w)}
}

func params4(p [4]float64) f32.Vec4 {
	return f32.Vec4{float32(p[0]), float32(p[1]), float32(p[2]), float32(p[3])}
}

// PutObjectRecord encodes r into b[:ObjectRecordSize].
func PutObjectRecord(b []byte, r *ObjectRecord) {
	putVec3(b[0:], r.Pos)
	binary.LittleEndian.PutUint32(b[12:], r.Shape)
	putVec3(b[16:], r.Size)
	binary.LittleEndian.PutUint32(b[28:], r.Transfer)
}

// PutObjectExtra encodes x into b[:ObjectExtraSize].
func PutObjectExtra(b []byte, x *ObjectExtra) {
	for i, row := range x.Rot {
		putVec4(b[16*i:], row)
	}
	putVec4(b[48:], x.EffectParams)
	putVec4(b[64:], x.LayerEffectParams)
	for i, v := range [...]uint32{
		x.EffectSlot, x.LayerEffectSlot, x.Flags, x.LayerTransfer,
		x.VertexStart, x.VertexCount, x.ID, 0,
	} {
		binary.LittleEndian.PutUint32(b[80+4*i:], v)
	}
}

// PutChunkParams encodes p into b[:ChunkParamsSize].
func PutChunkParams(b []byte, p *ChunkParams) {
	putVec3(b[0:], p.Origin)
	binary.LittleEndian.PutUint32(b[12:], p.ObjectCount)
	for i, v := range p.AtlasOffset {
		binary.LittleEndian.PutUint32(b[16+4*i:], v)
	}
	putF32(b[28:], p.VoxelSize)
}

// PutAtlasInfo encodes a into b[:AtlasInfoSize].
func PutAtlasInfo(b []byte, a *AtlasInfo) {
	for i, v := range a.Dims {
		binary.LittleEndian.PutUint32(b[4*i:], v)
	}
	binary.LittleEndian.PutUint32(b[12:], a.PaddedDim)
	for i, v := range a.GridOrigin {
		binary.LittleEndian.PutUint32(b[16+4*i:], uint32(v))
	}
	binary.LittleEndian.PutUint32(b[28:], a.PadVoxels)
	putF32(b[32:], a.ChunkSize)
	binary.LittleEndian.PutUint32(b[36:], a.VoxelsPerChunk)
	binary.LittleEndian.PutUint32(b[40:], a.SlotsX)
	binary.LittleEndian.PutUint32(b[44:], a.SlotsY)
}

// PutCamera encodes c into b[:CameraSize]. The matrix is written column by
// column as WGSL expects.
func PutCamera(b []byte, c *Camera) {
	for col := 0; col < 4; col++ {
		for row := 0; row < 4; row++ {
			putF32(b[4*(col*4+row):], c.InvViewProj[row*4+col])
		}
	}
	putVec4(b[64:], c.Eye)
	putVec4(b[80:], c.Viewport)
}

func putF32(b []byte, v float32) {
	binary.LittleEndian.PutUint32(b, math.Float32bits(v))
}

func putVec3(b []byte, v f32.Vec3) {
	for i, c := range v {
		putF32(b[4*i:], c)
	}
}

func putVec4(b []byte, v f32.Vec4) {
	for i, c := range v {
		putF32(b[4*i:], c)
	}
}

// NewAtlasInfo derives the kernel geometry block from a chunk config.
func NewAtlasInfo(cfg *chunk.Config) AtlasInfo {
	dims := cfg.AtlasDims()
	origin := int32(-cfg.GridDim / 2)
	return AtlasInfo{
		Dims:           [3]uint32{uint32(dims[0]), uint32(dims[1]), uint32(dims[2])},
		PaddedDim:      uint32(cfg.PaddedDim()),
		GridOrigin:     [3]int32{origin, origin, origin},
		PadVoxels:      uint32(cfg.PadVoxels),
		ChunkSize:      float32(cfg.ChunkSize),
		VoxelsPerChunk: uint32(cfg.VoxelsPerChunk()),
		SlotsX:         uint32(cfg.SlotsX),
		SlotsY:         uint32(cfg.SlotsY),
	}
}

// NewChunkParams builds the parameter block of one dirty chunk. The bake
// grid starts PadVoxels before the chunk origin.
func NewChunkParams(cfg *chunk.Config, s chunk.Slot, objectCount int) ChunkParams {
	origin := s.Coord.Origin(cfg.ChunkSize)
	return ChunkParams{
		Origin:      vec3(origin),
		ObjectCount: uint32(objectCount),
		AtlasOffset: chunk.AtlasOffset(cfg, s.Index),
		VoxelSize:   float32(cfg.VoxelSize),
	}
}

// Records is a scene encoded for upload.
type Records struct {
	Objects  []byte
	Extras   []byte
	Vertices []byte

	// Count is the number of encoded objects and Truncated the number of
	// visible objects that did not fit.
	Count     int
	Truncated int
}

// PackScene encodes the visible objects of s in compositing order, up to
// maxObjects. Effect slots are resolved against prog. Polygon vertices
// beyond scene.MaxPolygonVertices are dropped.
func PackScene(s *scene.Scene, prog *program.Program, maxObjects int) Records {
	placed := s.Ordered()
	var rec Records
	if len(placed) > maxObjects {
		rec.Truncated = len(placed) - maxObjects
		placed = placed[:maxObjects]
	}
	rec.Count = len(placed)
	rec.Objects = make([]byte, len(placed)*ObjectRecordSize)
	rec.Extras = make([]byte, len(placed)*ObjectExtraSize)

	var vertices []f32.Vec2
	for i, p := range placed {
		o := p.Object
		r := ObjectRecord{
			Pos:      vec3(o.Position),
			Shape:    uint32(o.Shape),
			Size:     vec3(o.Size),
			Transfer: PackTransfer(o.Mode, o.Opacity, o.Param),
		}
		PutObjectRecord(rec.Objects[i*ObjectRecordSize:], &r)

		inv := geom.EulerXYZ(o.Rotation).Transpose()
		x := ObjectExtra{
			Rot: [3]f32.Vec4{
				vec4(inv.Row(0), objectScale(o)),
				vec4(inv.Row(1), o.Wall),
				vec4(inv.Row(2), 0),
			},
			ID: o.ID,
		}
		if o.Effect.Active() {
			x.EffectSlot = uint32(prog.SlotFor(o.Effect.Body))
			x.EffectParams = params4(o.Effect.Params)
		}
		if o.Mask {
			x.Flags |= FlagMask
		}
		if o.Capped {
			x.Flags |= FlagCapped
		}
		if p.First {
			x.Flags |= FlagLayerStart
		}
		// A truncated run still has to close its layer.
		if p.Last || i == len(placed)-1 {
			x.Flags |= FlagLayerEnd
			x.LayerTransfer = PackTransfer(p.Layer.Mode, p.Layer.Opacity, p.Layer.Param)
			if p.Layer.Effect.Active() {
				x.LayerEffectSlot = uint32(prog.SlotFor(p.Layer.Effect.Body))
				x.LayerEffectParams = params4(p.Layer.Effect.Params)
			}
		}
		if o.Shape == scene.ShapePolygon {
			vs := o.Vertices
			if len(vs) > scene.MaxPolygonVertices {
				vs = vs[:scene.MaxPolygonVertices]
			}
			x.VertexStart = uint32(len(vertices))
			x.VertexCount = uint32(len(vs))
			for _, v := range vs {
				vertices = append(vertices, f32.Vec2{float32(v.X), float32(v.Y)})
			}
		}
		PutObjectExtra(rec.Extras[i*ObjectExtraSize:], &x)
	}

	rec.Vertices = make([]byte, len(vertices)*VertexSize)
	for i, v := range vertices {
		putF32(rec.Vertices[i*VertexSize:], v[0])
		putF32(rec.Vertices[i*VertexSize+4:], v[1])
	}
	return rec
}

func objectScale(o *scene.Object) float64 {
	if o.Scale > 0 {
		return o.Scale
	}
	return 1
}
