// -*- Mode: Go; indent-tabs-mode: t -*-
//
// SPDX-License-Identifier: Apache-2.0

// Package registry implements the DeviceRegistry named in section 9's
// re-architecture guidance: "a DeviceRegistry value threaded through
// the event loop; retain a single owner to avoid aliasing hazards. No
// thread-local or hidden globals." It replaces a sync.Once-guarded
// package-level device map with one owned value passed explicitly to
// internal/eventloop and internal/targeting.
package registry

import (
	"github.com/pkg/errors"

	"github.com/powermand/engine/internal/device"
)

// Registry is the process-wide list of configured devices. Section 5
// ("the global device registry is process-wide; only the event loop
// mutates it") means callers outside internal/eventloop should treat
// it as read-only after config-load population.
type Registry struct {
	byName map[string]*device.Device
	order  []*device.Device
}

// New builds an empty Registry.
func New() *Registry {
	return &Registry{byName: make(map[string]*device.Device)}
}

// Add registers a device, constructed at config-load (section 3's
// Lifecycle: "Device created at config-load; destroyed at shutdown").
func (r *Registry) Add(d *device.Device) error {
	if _, exists := r.byName[d.Name]; exists {
		return errors.Errorf("duplicate device name %q", d.Name)
	}
	r.byName[d.Name] = d
	r.order = append(r.order, d)
	return nil
}

// ByName returns the device with the given name, or nil.
func (r *Registry) ByName(name string) *device.Device {
	return r.byName[name]
}

// All returns every device in declaration order. Callers must not
// mutate the returned slice; the Registry remains the single owner.
func (r *Registry) All() []*device.Device {
	return r.order
}

// Len reports how many devices are registered.
func (r *Registry) Len() int { return len(r.order) }
