// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package render drives the GPU side of the SDF atlas: it uploads the scene
// as packed records, bakes dirty chunks into the atlas, reduces each baked
// chunk to a safe march distance, raymarches the result and services
// picking readbacks.
//
// # Frame
//
// One call to [Renderer.Bake] records a single command buffer:
//
//	bake pass (<= 64 chunks) -> reduce pass -> ... -> render pass
//
// and submits it once. Dirty chunks are processed in batches; each chunk
// reads its parameter block through a dynamic uniform offset into a buffer
// with [ParamStride] spacing.
//
// # Pipelines
//
// Bake pipelines are keyed by the program key of package program and kept
// in a small LRU. The reduction and render pipelines are static.
//
// # Picking
//
// [Renderer.PickPoint] and [Renderer.PickRegion] copy pick-target texels
// into a staging buffer and return a [Pick] future. [Renderer.Poll] resolves
// completed picks; picks issued against an older scene generation resolve
// as stale and carry no result.
//
// The Renderer is not safe for concurrent use.
package render
