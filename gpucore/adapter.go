package gpucore

// Adapter abstracts over GPU backend implementations.
//
// Adapters are used from a single control goroutine. Every Create* call
// has a matching Destroy*. A destroyed ID is invalid at once, but the
// backend object is freed only after every submission made before the
// call has completed. IDs are not reused after destruction.
type Adapter interface {
	// Capabilities reports device limits and features.
	Capabilities() Capabilities

	// CreateShaderModule compiles a WGSL module. Backends that consume
	// SPIR-V translate the source first.
	CreateShaderModule(wgsl, label string) (ShaderModuleID, error)
	DestroyShaderModule(id ShaderModuleID)

	CreateBuffer(size uint64, usage BufferUsage, label string) (BufferID, error)
	DestroyBuffer(id BufferID)

	// WriteBuffer stages data for upload ahead of the next submission.
	WriteBuffer(id BufferID, offset uint64, data []byte) error

	// MapRead copies size bytes out of a buffer created with
	// BufferUsageMapRead. The caller must ensure the submission that last
	// wrote the buffer has completed.
	MapRead(id BufferID, offset, size uint64) ([]byte, error)

	// CreateTexture creates a 2D texture with a default full view.
	CreateTexture(width, height uint32, format TextureFormat, usage TextureUsage, label string) (TextureID, error)
	DestroyTexture(id TextureID)

	CreateBindGroupLayout(desc *BindGroupLayoutDesc) (BindGroupLayoutID, error)
	DestroyBindGroupLayout(id BindGroupLayoutID)

	CreatePipelineLayout(layouts []BindGroupLayoutID, label string) (PipelineLayoutID, error)
	DestroyPipelineLayout(id PipelineLayoutID)

	CreateComputePipeline(desc *ComputePipelineDesc) (ComputePipelineID, error)
	DestroyComputePipeline(id ComputePipelineID)

	CreateRenderPipeline(desc *RenderPipelineDesc) (RenderPipelineID, error)
	DestroyRenderPipeline(id RenderPipelineID)

	CreateBindGroup(desc *BindGroupDesc) (BindGroupID, error)
	DestroyBindGroup(id BindGroupID)

	// BeginEncoding starts recording a command buffer.
	BeginEncoding(label string) (Encoder, error)

	// Submit finishes enc and submits it to the queue.
	Submit(enc Encoder) (SubmissionIndex, error)

	// Completed returns the highest submission index the device finished.
	Completed() SubmissionIndex

	// WaitIdle blocks until all submitted work has completed.
	WaitIdle() error

	// Destroy releases the adapter and, if owned, the device.
	Destroy()
}

// Encoder records commands into a single command buffer.
//
// Usage:
//  1. Obtain an encoder from Adapter.BeginEncoding
//  2. Record passes and copies
//  3. Pass it to Adapter.Submit, or call Discard
//
// The encoder is single-use.
type Encoder interface {
	// BeginComputePass begins a compute pass. The pass must be ended before
	// another pass or copy is recorded.
	BeginComputePass(label string) ComputePassEncoder

	// BeginRenderPass begins a render pass over the given attachments.
	BeginRenderPass(desc *RenderPassDesc) RenderPassEncoder

	// CopyTextureToBuffer copies a texel rectangle into a buffer.
	CopyTextureToBuffer(src TextureID, dst BufferID, region TextureCopy)

	// Discard abandons the recording.
	Discard()
}

// ComputePassEncoder records dispatches into one compute pass.
type ComputePassEncoder interface {
	SetPipeline(pipeline ComputePipelineID)

	// SetBindGroup sets a bind group at the specified index. Dynamic offsets
	// are given in binding order for bindings with HasDynamicOffset.
	SetBindGroup(index uint32, group BindGroupID, dynamicOffsets ...uint32)

	// Dispatch launches x*y*z workgroups.
	Dispatch(x, y, z uint32)

	End()
}

// RenderPassEncoder records draw commands.
type RenderPassEncoder interface {
	SetPipeline(pipeline RenderPipelineID)
	SetBindGroup(index uint32, group BindGroupID, dynamicOffsets ...uint32)

	// Draw issues a non-indexed draw without vertex buffers.
	Draw(vertexCount, instanceCount uint32)

	End()
}

// WorkgroupCount returns how many workgroups of size cover n invocations.
func WorkgroupCount(n, size uint32) uint32 {
	if size == 0 {
		return 0
	}
	return (n + size - 1) / size
}
