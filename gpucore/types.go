package gpucore

// Resource IDs
//
// Resources are referred to by IDs; the adapter maps them to backend
// objects.

// BufferID names a buffer.
type BufferID uint64

// TextureID is an opaque handle to a 2D GPU texture and its default view.
type TextureID uint64

// ShaderModuleID names a shader module.
type ShaderModuleID uint64

// ComputePipelineID names a compute pipeline.
type ComputePipelineID uint64

// RenderPipelineID is an opaque handle to a render pipeline.
type RenderPipelineID uint64

// BindGroupLayoutID names a bind group layout.
type BindGroupLayoutID uint64

// BindGroupID names a bind group.
type BindGroupID uint64

// PipelineLayoutID names a pipeline layout.
type PipelineLayoutID uint64

// InvalidID is never returned for a live resource.
const InvalidID = 0

// SubmissionIndex identifies one queue submission. Indices increase
// monotonically; zero means "nothing submitted".
type SubmissionIndex uint64

// BufferUsage is a set of buffer usage flags.
type BufferUsage uint32

// Buffer usage flags.
const (
	BufferUsageMapRead  BufferUsage = 1 << 0
	BufferUsageCopySrc  BufferUsage = 1 << 1
	BufferUsageCopyDst  BufferUsage = 1 << 2
	BufferUsageUniform  BufferUsage = 1 << 3
	BufferUsageStorage  BufferUsage = 1 << 4
	BufferUsageIndirect BufferUsage = 1 << 5
)

// TextureFormat is a texel format.
type TextureFormat uint32

// Texture formats.
const (
	// TextureFormatRGBA8Unorm is the color target format.
	TextureFormatRGBA8Unorm TextureFormat = iota + 1

	// TextureFormatR32Uint is a single 32-bit unsigned integer channel.
	TextureFormatR32Uint

	// TextureFormatR32Float is a single 32-bit float channel.
	TextureFormatR32Float

	// TextureFormatRGBA32Float is four 32-bit float channels.
	TextureFormatRGBA32Float
)

// BytesPerTexel returns the texel size of the format.
func (f TextureFormat) BytesPerTexel() uint32 {
	switch f {
	case TextureFormatRGBA8Unorm, TextureFormatR32Uint, TextureFormatR32Float:
		return 4
	case TextureFormatRGBA32Float:
		return 16
	default:
		return 0
	}
}

// TextureUsage is a set of texture usage flags.
type TextureUsage uint32

// Texture usage flags.
const (
	TextureUsageCopySrc          TextureUsage = 1 << 0
	TextureUsageCopyDst          TextureUsage = 1 << 1
	TextureUsageTextureBinding   TextureUsage = 1 << 2
	TextureUsageStorageBinding   TextureUsage = 1 << 3
	TextureUsageRenderAttachment TextureUsage = 1 << 4
)

// ShaderStage is a bitmask of shader stages a binding is visible to.
type ShaderStage uint32

// Shader stages.
const (
	ShaderStageVertex   ShaderStage = 1 << 0
	ShaderStageFragment ShaderStage = 1 << 1
	ShaderStageCompute  ShaderStage = 1 << 2
)

// BindingType is the kind of buffer a binding expects.
type BindingType uint32

// Binding types.
const (
	// BindingTypeUniformBuffer is var<uniform>.
	BindingTypeUniformBuffer BindingType = iota + 1

	// BindingTypeStorageBuffer is var<storage, read_write>.
	BindingTypeStorageBuffer

	// BindingTypeReadOnlyStorageBuffer is var<storage, read>.
	BindingTypeReadOnlyStorageBuffer
)

// Capabilities describes what the device can do.
type Capabilities struct {
	// Name is the adapter name reported by the driver.
	Name string

	// SupportsCompute is false on adapters without compute shaders.
	SupportsCompute bool

	// MaxComputeInvocationsPerWorkgroup bounds x*y*z of a workgroup.
	MaxComputeInvocationsPerWorkgroup uint32

	// MaxComputeWorkgroupsPerDimension bounds each Dispatch argument.
	MaxComputeWorkgroupsPerDimension uint32

	// MaxBufferSize bounds CreateBuffer, in bytes.
	MaxBufferSize uint64

	// MaxStorageBufferBindingSize bounds a storage binding; the atlas
	// must fit in one.
	MaxStorageBufferBindingSize uint64

	// MinUniformBufferOffsetAlignment is the alignment required for
	// dynamic uniform offsets.
	MinUniformBufferOffsetAlignment uint32
}

// BindGroupLayoutDesc lists the bindings of one group.
type BindGroupLayoutDesc struct {
	Label   string
	Entries []BindGroupLayoutEntry
}

// BindGroupLayoutEntry declares one buffer binding.
type BindGroupLayoutEntry struct {
	Binding    uint32
	Type       BindingType
	Visibility ShaderStage

	// HasDynamicOffset marks a buffer binding whose offset is supplied at
	// SetBindGroup time.
	HasDynamicOffset bool

	// MinBindingSize is the smallest range the shader may read. Zero
	// skips the check.
	MinBindingSize uint64
}

// BindGroupEntry binds a buffer range to one binding slot.
type BindGroupEntry struct {
	Binding uint32
	Buffer  BufferID
	Offset  uint64

	// Size is the size of the bound range. Use 0 to bind the rest of the
	// buffer from Offset.
	Size uint64
}

// BindGroupDesc binds concrete buffers to a layout.
type BindGroupDesc struct {
	Label   string
	Layout  BindGroupLayoutID
	Entries []BindGroupEntry
}

// ComputePipelineDesc selects a compute entry point of a module.
type ComputePipelineDesc struct {
	Label        string
	Layout       PipelineLayoutID
	ShaderModule ShaderModuleID
	EntryPoint   string
}

// RenderPipelineDesc describes a fullscreen render pipeline without vertex
// buffers. Targets lists the color attachment formats in location order.
type RenderPipelineDesc struct {
	Label         string
	Layout        PipelineLayoutID
	ShaderModule  ShaderModuleID
	VertexEntry   string
	FragmentEntry string
	Targets       []TextureFormat
}

// ColorAttachment is one render pass target, cleared to Clear on load.
type ColorAttachment struct {
	Texture TextureID
	Clear   [4]float64
}

// RenderPassDesc describes a render pass.
type RenderPassDesc struct {
	Label            string
	ColorAttachments []ColorAttachment
}

// TextureCopy selects a rectangle of a texture copied into a buffer with
// rows BytesPerRow apart starting at BufferOffset.
type TextureCopy struct {
	X, Y          uint32
	Width, Height uint32
	BufferOffset  uint64
	BytesPerRow   uint32
}

// CopyBytesPerRowAlignment is the required alignment of
// TextureCopy.BytesPerRow.
const CopyBytesPerRowAlignment = 256

// AlignedBytesPerRow rounds a row of width texels up to the copy alignment.
func AlignedBytesPerRow(width uint32, f TextureFormat) uint32 {
	row := width * f.BytesPerTexel()
	return (row + CopyBytesPerRowAlignment - 1) &^ (CopyBytesPerRowAlignment - 1)
}
