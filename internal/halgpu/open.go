// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package halgpu implements gpucore.Adapter on top of the gogpu/wgpu HAL.
//
// Open creates and owns a device on a registered HAL backend (Vulkan by
// default, noop for headless tests). FromProvider wraps a device that a host
// application already owns.
package halgpu

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	// Backends register themselves via init().
	_ "github.com/gogpu/wgpu/hal/noop"
	_ "github.com/gogpu/wgpu/hal/vulkan"
)

// Initialization errors. All of them are fatal for the caller.
var (
	ErrNoBackend          = errors.New("halgpu: backend not available")
	ErrNoAdapter          = errors.New("halgpu: no GPU adapter found")
	ErrComputeUnsupported = errors.New("halgpu: adapter does not support compute shaders")
	ErrNotHAL             = errors.New("halgpu: provider does not expose HAL types")
)

// Backend names accepted by Options.Backend.
const (
	BackendVulkan = "vulkan"
	BackendNoop   = "noop"
)

// Options configures Open.
type Options struct {
	// Backend selects the HAL backend: "vulkan" (default) or "noop".
	Backend string

	// PrecompileSPIRV translates WGSL to SPIR-V with naga before handing
	// modules to the backend.
	PrecompileSPIRV bool
}

// ParseBackend maps a backend name to its HAL variant.
func ParseBackend(name string) (gputypes.Backend, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", BackendVulkan:
		return gputypes.BackendVulkan, nil
	case BackendNoop, "empty":
		return gputypes.BackendEmpty, nil
	default:
		return gputypes.BackendEmpty, fmt.Errorf("%w: %q", ErrNoBackend, name)
	}
}

// Open creates an instance on the selected backend, picks an adapter
// (discrete, then integrated, then the first one) and opens a device.
func Open(opts Options) (*Device, error) {
	variant, err := ParseBackend(opts.Backend)
	if err != nil {
		return nil, err
	}
	backend, ok := hal.GetBackend(variant)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoBackend, variant)
	}
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{})
	if err != nil {
		return nil, fmt.Errorf("halgpu: create instance: %w", err)
	}

	adapters := instance.EnumerateAdapters(nil)
	selected := selectAdapter(adapters)
	if selected == nil {
		instance.Destroy()
		return nil, ErrNoAdapter
	}
	limits := selected.Capabilities.Limits
	if limits.MaxComputeInvocationsPerWorkgroup == 0 {
		instance.Destroy()
		return nil, fmt.Errorf("%w: %s", ErrComputeUnsupported, selected.Info.Name)
	}

	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("halgpu: open device: %w", err)
	}

	d := newDevice(openDev.Device, openDev.Queue, capabilitiesOf(selected.Info.Name, limits))
	d.instance = instance
	d.owned = true
	d.precompile = opts.PrecompileSPIRV
	slogger().Info("halgpu: device opened",
		"backend", variant.String(), "adapter", selected.Info.Name, "type", selected.Info.DeviceType.String())
	return d, nil
}

func selectAdapter(adapters []hal.ExposedAdapter) *hal.ExposedAdapter {
	if len(adapters) == 0 {
		return nil
	}
	for _, want := range []gputypes.DeviceType{gputypes.DeviceTypeDiscreteGPU, gputypes.DeviceTypeIntegratedGPU} {
		for i := range adapters {
			if adapters[i].Info.DeviceType == want {
				return &adapters[i]
			}
		}
	}
	return &adapters[0]
}

// FromProvider wraps a device owned by a host application. The provider
// must hand out HAL objects, either through HalDevice/HalQueue accessors or
// directly from Device/Queue. The returned adapter never destroys the
// device.
func FromProvider(p gpucontext.DeviceProvider) (*Device, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	var rawDevice, rawQueue any
	if hp, ok := p.(halProvider); ok {
		rawDevice, rawQueue = hp.HalDevice(), hp.HalQueue()
	} else {
		rawDevice, rawQueue = p.Device(), p.Queue()
	}
	device, ok := rawDevice.(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("%w: device is %T", ErrNotHAL, rawDevice)
	}
	queue, ok := rawQueue.(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("%w: queue is %T", ErrNotHAL, rawQueue)
	}
	info := p.AdapterInfo()
	d := newDevice(device, queue, capabilitiesOf(info.Name, gputypes.DefaultLimits()))
	slogger().Info("halgpu: using shared device", "adapter", info.Name)
	return d, nil
}

func capabilitiesOf(name string, l gputypes.Limits) capabilities {
	return capabilities{name: name, limits: l}
}
