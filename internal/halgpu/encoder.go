// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package halgpu

import (
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/sdfatlas/gpucore"
)

type encoder struct {
	d    *Device
	raw  hal.CommandEncoder
	done bool
}

func (e *encoder) BeginComputePass(label string) gpucore.ComputePassEncoder {
	return &computePass{d: e.d, raw: e.raw.BeginComputePass(&hal.ComputePassDescriptor{Label: label})}
}

func (e *encoder) BeginRenderPass(desc *gpucore.RenderPassDesc) gpucore.RenderPassEncoder {
	attachments := make([]hal.RenderPassColorAttachment, 0, len(desc.ColorAttachments))
	for _, a := range desc.ColorAttachments {
		t, ok := e.d.textures[a.Texture]
		if !ok {
			slogger().Warn("halgpu: render pass with unknown texture", "id", a.Texture)
			continue
		}
		attachments = append(attachments, hal.RenderPassColorAttachment{
			View:       t.view,
			LoadOp:     gputypes.LoadOpClear,
			StoreOp:    gputypes.StoreOpStore,
			ClearValue: gputypes.Color{R: a.Clear[0], G: a.Clear[1], B: a.Clear[2], A: a.Clear[3]},
		})
	}
	raw := e.raw.BeginRenderPass(&hal.RenderPassDescriptor{Label: desc.Label, ColorAttachments: attachments})
	return &renderPass{d: e.d, raw: raw}
}

func (e *encoder) CopyTextureToBuffer(src gpucore.TextureID, dst gpucore.BufferID, r gpucore.TextureCopy) {
	t, ok := e.d.textures[src]
	if !ok {
		slogger().Warn("halgpu: copy from unknown texture", "id", src)
		return
	}
	b, ok := e.d.buffers[dst]
	if !ok {
		slogger().Warn("halgpu: copy into unknown buffer", "id", dst)
		return
	}
	e.raw.CopyTextureToBuffer(t.raw, b.raw, []hal.BufferTextureCopy{{
		BufferLayout: hal.ImageDataLayout{Offset: r.BufferOffset, BytesPerRow: r.BytesPerRow, RowsPerImage: r.Height},
		TextureBase: hal.ImageCopyTexture{
			Texture: t.raw,
			Origin:  hal.Origin3D{X: r.X, Y: r.Y},
			Aspect:  gputypes.TextureAspectAll,
		},
		Size: hal.Extent3D{Width: r.Width, Height: r.Height, DepthOrArrayLayers: 1},
	}})
}

func (e *encoder) Discard() {
	if e.done {
		return
	}
	e.done = true
	e.raw.DiscardEncoding()
}

type computePass struct {
	d   *Device
	raw hal.ComputePassEncoder
}

func (p *computePass) SetPipeline(id gpucore.ComputePipelineID) {
	p.raw.SetPipeline(p.d.computes[id])
}

func (p *computePass) SetBindGroup(index uint32, id gpucore.BindGroupID, dynamicOffsets ...uint32) {
	p.raw.SetBindGroup(index, p.d.bindGroups[id], dynamicOffsets)
}

func (p *computePass) Dispatch(x, y, z uint32) { p.raw.Dispatch(x, y, z) }
func (p *computePass) End()                    { p.raw.End() }

type renderPass struct {
	d   *Device
	raw hal.RenderPassEncoder
}

func (p *renderPass) SetPipeline(id gpucore.RenderPipelineID) {
	p.raw.SetPipeline(p.d.renders[id])
}

func (p *renderPass) SetBindGroup(index uint32, id gpucore.BindGroupID, dynamicOffsets ...uint32) {
	p.raw.SetBindGroup(index, p.d.bindGroups[id], dynamicOffsets)
}

func (p *renderPass) Draw(vertexCount, instanceCount uint32) {
	p.raw.Draw(vertexCount, instanceCount, 0, 0)
}

func (p *renderPass) End() { p.raw.End() }
