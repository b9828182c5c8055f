// Package sdfatlas keeps a sparse, chunked signed distance field of a scene
// on the GPU and rebakes only the chunks an edit touched.
//
// Space is split into fixed-size chunks. Each chunk that some object can
// reach holds one slot of a bounded atlas; a dense ChunkMap translates chunk
// coordinates to slots for the raymarcher. Every frame the Engine diffs the
// scene snapshot against the previous one, specializes the bake program for
// the active effects, bakes the dirty chunks in batches and raymarches the
// atlas into a color target and a pick target.
//
// # Quick Start
//
//	cfg := sdfatlas.DefaultConfig()
//	eng, err := sdfatlas.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer eng.Close()
//
//	s, err := sdfatlas.LoadScene("scene.toml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	stats, err := eng.Bake(ctx, s)
//
// # Capacity
//
// The atlas and the object buffers have fixed capacities. Chunks that do not
// fit are skipped and retried on the next frame; objects beyond
// render.Config.MaxObjects are not uploaded. Neither case is an error: both
// are reported in [FrameStats] and logged once when the limit is first hit.
//
// # Picking
//
// [Engine.PickPoint] and [Engine.PickRegion] return futures bound to the
// generation of the last baked scene. Results for a scene that has been
// edited since are dropped.
//
// # Logging
//
// The package is silent by default. [SetLogger] enables structured logging
// for the engine and its GPU layers.
package sdfatlas
