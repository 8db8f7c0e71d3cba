// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package wgpu

import (
	"errors"
	"fmt"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/tilerender/backend"
)

// ErrNoDevice is returned when no GPU device could be opened.
var ErrNoDevice = errors.New("wgpu: no GPU device")

// device is an opened HAL device and queue. instance is nil when the device
// is borrowed from a provider and must not be destroyed by us.
type device struct {
	device   hal.Device
	queue    hal.Queue
	instance hal.Instance
	name     string
}

// release destroys the device if we own it.
func (d *device) release() {
	if d.instance == nil {
		return
	}
	if d.device != nil {
		d.device.Destroy()
	}
	d.instance.Destroy()
	d.device, d.queue, d.instance = nil, nil, nil
}

// openVulkan opens the first discrete or integrated Vulkan adapter, falling
// back to the first adapter of any type.
func openVulkan() (*device, error) {
	vk, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return nil, fmt.Errorf("%w: vulkan backend not available", ErrNoDevice)
	}
	instance, err := vk.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("%w: create instance: %w", ErrNoDevice, err)
	}
	return openFirstAdapter(instance)
}

// openFirstAdapter opens a device on instance. The instance is destroyed on
// failure.
func openFirstAdapter(instance hal.Instance) (*device, error) {
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, fmt.Errorf("%w: no adapters found", ErrNoDevice)
	}

	selected := &adapters[0]
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}

	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, fmt.Errorf("%w: open %s: %w", ErrNoDevice, selected.Info.Name, err)
	}
	backend.Logger().Info("wgpu: adapter selected", "name", selected.Info.Name)
	return &device{
		device:   openDev.Device,
		queue:    openDev.Queue,
		instance: instance,
		name:     selected.Info.Name,
	}, nil
}

// fromProvider borrows the HAL device and queue of a gpucontext provider.
// The provider must implement HalDevice() any and HalQueue() any returning
// hal.Device and hal.Queue.
func fromProvider(provider gpucontext.DeviceProvider) (*device, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, fmt.Errorf("%w: provider does not expose HAL types", ErrNoDevice)
	}
	dev, ok := hp.HalDevice().(hal.Device)
	if !ok || dev == nil {
		return nil, fmt.Errorf("%w: provider HalDevice is not hal.Device", ErrNoDevice)
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("%w: provider HalQueue is not hal.Queue", ErrNoDevice)
	}
	backend.Logger().Info("wgpu: using shared device from provider")
	return &device{device: dev, queue: queue, name: "shared"}, nil
}
