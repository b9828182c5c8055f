// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package halgpu

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"

	"github.com/gogpu/sdfatlas/gpucore"
)

func openNoop(t *testing.T) *Device {
	t.Helper()
	d, err := Open(Options{Backend: BackendNoop})
	if err != nil {
		t.Fatalf("Open(noop) failed: %v", err)
	}
	t.Cleanup(d.Destroy)
	return d
}

func TestParseBackend(t *testing.T) {
	tests := []struct {
		name    string
		want    gputypes.Backend
		wantErr bool
	}{
		{"", gputypes.BackendVulkan, false},
		{"Vulkan", gputypes.BackendVulkan, false},
		{"noop", gputypes.BackendEmpty, false},
		{"metal2", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseBackend(tt.name)
			if tt.wantErr {
				if !errors.Is(err, ErrNoBackend) {
					t.Errorf("err = %v, want ErrNoBackend", err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("ParseBackend(%q) = %v, %v", tt.name, got, err)
			}
		})
	}
}

func TestOpenNoop(t *testing.T) {
	d := openNoop(t)
	caps := d.Capabilities()
	if !caps.SupportsCompute {
		t.Error("noop device should report compute support")
	}
	if caps.MinUniformBufferOffsetAlignment == 0 || caps.MaxBufferSize == 0 {
		t.Errorf("limits not populated: %+v", caps)
	}
	if caps.Name == "" {
		t.Error("adapter name missing")
	}
}

func TestBufferRoundTrip(t *testing.T) {
	d := openNoop(t)
	id, err := d.CreateBuffer(64, gpucore.BufferUsageMapRead|gpucore.BufferUsageCopyDst, "rt")
	if err != nil {
		t.Fatalf("CreateBuffer: %v", err)
	}
	want := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	if err := d.WriteBuffer(id, 16, want); err != nil {
		t.Fatalf("WriteBuffer: %v", err)
	}
	got, err := d.MapRead(id, 16, uint64(len(want)))
	if err != nil {
		t.Fatalf("MapRead: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("MapRead = %v, want %v", got, want)
	}

	if err := d.WriteBuffer(id, 60, want); err == nil {
		t.Error("overflowing write should fail")
	}
	if _, err := d.MapRead(id, 60, 8); err == nil {
		t.Error("overflowing map should fail")
	}
	if err := d.WriteBuffer(gpucore.BufferID(999), 0, want); err == nil {
		t.Error("write to unknown buffer should fail")
	}
}

func TestSubmitAdvancesCompleted(t *testing.T) {
	d := openNoop(t)
	var last gpucore.SubmissionIndex
	for i := 0; i < 3; i++ {
		enc, err := d.BeginEncoding("frame")
		if err != nil {
			t.Fatalf("BeginEncoding: %v", err)
		}
		idx, err := d.Submit(enc)
		if err != nil {
			t.Fatalf("Submit: %v", err)
		}
		if idx <= last {
			t.Errorf("submission index %d not increasing after %d", idx, last)
		}
		last = idx
		if _, err := d.Submit(enc); err == nil {
			t.Error("double submit should fail")
		}
	}
	if got := d.Completed(); got != last {
		t.Errorf("Completed() = %d, want %d", got, last)
	}
	if len(d.pending) != 0 {
		t.Errorf("%d command buffers not reclaimed", len(d.pending))
	}
}

func TestPipelineResources(t *testing.T) {
	d := openNoop(t)
	layout, err := d.CreateBindGroupLayout(&gpucore.BindGroupLayoutDesc{
		Label: "test",
		Entries: []gpucore.BindGroupLayoutEntry{
			{Binding: 0, Type: gpucore.BindingTypeUniformBuffer, Visibility: gpucore.ShaderStageCompute, HasDynamicOffset: true},
			{Binding: 1, Type: gpucore.BindingTypeStorageBuffer, Visibility: gpucore.ShaderStageCompute},
		},
	})
	if err != nil {
		t.Fatalf("CreateBindGroupLayout: %v", err)
	}
	pl, err := d.CreatePipelineLayout([]gpucore.BindGroupLayoutID{layout}, "test")
	if err != nil {
		t.Fatalf("CreatePipelineLayout: %v", err)
	}
	mod, err := d.CreateShaderModule("@compute @workgroup_size(1) fn main() {}", "test")
	if err != nil {
		t.Fatalf("CreateShaderModule: %v", err)
	}
	cp, err := d.CreateComputePipeline(&gpucore.ComputePipelineDesc{Label: "test", Layout: pl, ShaderModule: mod, EntryPoint: "main"})
	if err != nil {
		t.Fatalf("CreateComputePipeline: %v", err)
	}
	ub, _ := d.CreateBuffer(512, gpucore.BufferUsageUniform|gpucore.BufferUsageCopyDst, "u")
	sb, _ := d.CreateBuffer(64, gpucore.BufferUsageStorage, "s")
	bg, err := d.CreateBindGroup(&gpucore.BindGroupDesc{
		Label:  "test",
		Layout: layout,
		Entries: []gpucore.BindGroupEntry{
			{Binding: 0, Buffer: ub, Size: 32},
			{Binding: 1, Buffer: sb},
		},
	})
	if err != nil {
		t.Fatalf("CreateBindGroup: %v", err)
	}
	tex, err := d.CreateTexture(8, 8, gpucore.TextureFormatR32Uint, gpucore.TextureUsageRenderAttachment|gpucore.TextureUsageCopySrc, "pick")
	if err != nil {
		t.Fatalf("CreateTexture: %v", err)
	}

	enc, _ := d.BeginEncoding("test")
	pass := enc.BeginComputePass("test")
	pass.SetPipeline(cp)
	pass.SetBindGroup(0, bg, 256)
	pass.Dispatch(1, 1, 1)
	pass.End()
	enc.CopyTextureToBuffer(tex, sb, gpucore.TextureCopy{Width: 1, Height: 1, BytesPerRow: 256})
	if _, err := d.Submit(enc); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if got := d.Live(); got != 8 {
		t.Errorf("Live() = %d, want 8", got)
	}
	d.DestroyBindGroup(bg)
	d.DestroyComputePipeline(cp)
	if got := d.Live(); got != 6 {
		t.Errorf("Live() after destroy = %d, want 6", got)
	}

	if _, err := d.CreateBindGroup(&gpucore.BindGroupDesc{Layout: layout, Entries: []gpucore.BindGroupEntry{{Buffer: 12345}}}); err == nil {
		t.Error("bind group with unknown buffer should fail")
	}
	if _, err := d.CreateTexture(1, 1, gpucore.TextureFormat(99), 0, "bad"); err == nil {
		t.Error("unsupported format should fail")
	}
}

type fakeProvider struct {
	device hal.Device
	queue  hal.Queue
}

func (p fakeProvider) HalDevice() any                        { return p.device }
func (p fakeProvider) HalQueue() any                         { return p.queue }
func (p fakeProvider) Device() gpucontext.Device             { return nil }
func (p fakeProvider) Queue() gpucontext.Queue               { return nil }
func (p fakeProvider) SurfaceFormat() gputypes.TextureFormat { return gputypes.TextureFormatRGBA8Unorm }
func (p fakeProvider) Adapter() gpucontext.Adapter           { return nil }
func (p fakeProvider) AdapterInfo() gpucontext.AdapterInfo {
	return gpucontext.AdapterInfo{Name: "host"}
}

type bareProvider struct{ fakeProvider }

func (bareProvider) HalDevice() {}

func TestFromProvider(t *testing.T) {
	instance, err := noop.API{}.CreateInstance(nil)
	if err != nil {
		t.Fatalf("CreateInstance failed: %v", err)
	}
	defer instance.Destroy()
	adapters := instance.EnumerateAdapters(nil)
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer openDev.Device.Destroy()

	d, err := FromProvider(fakeProvider{device: openDev.Device, queue: openDev.Queue})
	if err != nil {
		t.Fatalf("FromProvider: %v", err)
	}
	if d.owned {
		t.Error("shared device must not be owned")
	}
	if d.Capabilities().Name != "host" {
		t.Errorf("Name = %q, want host", d.Capabilities().Name)
	}
	d.Destroy()

	if _, err := FromProvider(bareProvider{}); !errors.Is(err, ErrNotHAL) {
		t.Errorf("err = %v, want ErrNotHAL", err)
	}
}

func TestCompileSPIRV(t *testing.T) {
	words, err := CompileSPIRV("@compute @workgroup_size(1) fn main() {}")
	if err != nil {
		if strings.Contains(err.Error(), "not yet implemented") {
			t.Skipf("Skipping: naga feature not yet implemented: %v", err)
		}
		t.Fatalf("CompileSPIRV: %v", err)
	}
	if len(words) == 0 || words[0] != 0x07230203 {
		t.Errorf("missing SPIR-V magic number")
	}
}

// heldQueue reports completion only up to done.
type heldQueue struct {
	hal.Queue
	done uint64
}

func (q *heldQueue) PollCompleted() uint64 { return q.done }

// countingDevice counts native texture and compute pipeline frees.
type countingDevice struct {
	hal.Device
	textures, computes int
}

func (c *countingDevice) DestroyTexture(t hal.Texture) {
	c.textures++
	c.Device.DestroyTexture(t)
}

func (c *countingDevice) DestroyComputePipeline(p hal.ComputePipeline) {
	c.computes++
	c.Device.DestroyComputePipeline(p)
}

func TestDestroyWaitsForSubmission(t *testing.T) {
	instance, err := noop.API{}.CreateInstance(nil)
	if err != nil {
		t.Fatalf("CreateInstance failed: %v", err)
	}
	defer instance.Destroy()
	adapters := instance.EnumerateAdapters(nil)
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer openDev.Device.Destroy()

	dev := &countingDevice{Device: openDev.Device}
	q := &heldQueue{Queue: openDev.Queue}
	d := newDevice(dev, q, capabilities{name: "held", limits: gputypes.DefaultLimits()})
	defer d.Destroy()

	// Nothing in flight: freed at once.
	early, err := d.CreateTexture(4, 4, gpucore.TextureFormatR32Uint, gpucore.TextureUsageCopySrc, "early")
	if err != nil {
		t.Fatalf("CreateTexture: %v", err)
	}
	d.DestroyTexture(early)
	if dev.textures != 1 || d.Retired() != 0 {
		t.Fatalf("idle destroy: freed %d, retired %d", dev.textures, d.Retired())
	}

	tex, _ := d.CreateTexture(4, 4, gpucore.TextureFormatR32Uint, gpucore.TextureUsageCopySrc, "pick")
	buf, _ := d.CreateBuffer(256, gpucore.BufferUsageMapRead|gpucore.BufferUsageCopyDst, "staging")
	layout, _ := d.CreatePipelineLayout(nil, "empty")
	mod, _ := d.CreateShaderModule("@compute @workgroup_size(1) fn main() {}", "test")
	cp, err := d.CreateComputePipeline(&gpucore.ComputePipelineDesc{Label: "bake", Layout: layout, ShaderModule: mod, EntryPoint: "main"})
	if err != nil {
		t.Fatalf("CreateComputePipeline: %v", err)
	}

	enc, _ := d.BeginEncoding("frame")
	pass := enc.BeginComputePass("bake")
	pass.SetPipeline(cp)
	pass.Dispatch(1, 1, 1)
	pass.End()
	enc.CopyTextureToBuffer(tex, buf, gpucore.TextureCopy{Width: 1, Height: 1, BytesPerRow: 256})
	idx, err := d.Submit(enc)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	live := d.Live()
	d.DestroyTexture(tex)
	d.DestroyComputePipeline(cp)
	if got := d.Live(); got != live-2 {
		t.Errorf("Live() = %d, want %d", got, live-2)
	}
	if dev.textures != 1 || dev.computes != 0 {
		t.Errorf("freed while in flight: textures %d, pipelines %d", dev.textures-1, dev.computes)
	}
	if d.Retired() != 2 {
		t.Errorf("Retired() = %d, want 2", d.Retired())
	}

	q.done = uint64(idx) - 1
	if d.Completed(); d.Retired() != 2 {
		t.Errorf("freed before submission %d completed", idx)
	}

	q.done = uint64(idx)
	if got := d.Completed(); got < idx {
		t.Fatalf("Completed() = %d, want >= %d", got, idx)
	}
	if dev.textures != 2 || dev.computes != 1 || d.Retired() != 0 {
		t.Errorf("after completion: textures %d, pipelines %d, retired %d", dev.textures, dev.computes, d.Retired())
	}
}
