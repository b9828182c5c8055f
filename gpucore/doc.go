// Package gpucore defines the GPU abstraction the SDF bake orchestrator runs on.
//
// The [Adapter] interface hides the concrete backend behind opaque resource
// IDs, so the orchestrator in package render can drive either a real device
// (gogpu/wgpu HAL, see internal/halgpu) or the HAL noop backend in tests.
//
//	          +------------------+
//	          |  render.Renderer |
//	          +--------+---------+
//	                   |
//	          +--------v---------+
//	          | gpucore.Adapter  |
//	          +--------+---------+
//	                   |
//	     +-------------+-------------+
//	     |                           |
//	+----v-----------+      +--------v--------+
//	| halgpu (wgpu)  |      | halgpu (noop)   |
//	+----------------+      +-----------------+
//
// # Resource Management
//
// GPU resources are addressed by IDs ([BufferID], [TextureID], ...).
// Adapters own the mapping from IDs to backend objects. Every Create method
// has a matching Destroy method; destroying a resource that is still
// referenced by in-flight work is undefined.
//
// # Submission Tracking
//
// [Adapter.Submit] returns a monotonically increasing [SubmissionIndex].
// [Adapter.Completed] reports the highest index the device has finished,
// which lets callers resolve readbacks without blocking the control loop.
package gpucore
