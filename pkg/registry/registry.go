package registry

import (
	"fmt"
	"sync"

	"github.com/astrobus-protocol/astrobus-go/pkg/property"
)

// Registry is the device table of one bus instance.
type Registry struct {
	sink Sink

	mu      sync.RWMutex
	devices map[string]*Device
	order   []string
}

// NewRegistry creates an empty registry publishing events to sink. A nil
// sink discards events.
func NewRegistry(sink Sink) *Registry {
	if sink == nil {
		sink = func(Event) {}
	}
	return &Registry{
		sink:    sink,
		devices: make(map[string]*Device),
	}
}

// Attach adds a device to the registry. The device starts without
// properties; the owning driver defines them afterwards, each definition
// producing its own event.
func (r *Registry) Attach(dev *Device) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.devices[dev.name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateDevice, dev.name)
	}
	r.devices[dev.name] = dev
	r.order = append(r.order, dev.name)
	return nil
}

// Detach removes a device, emitting a delete event for each of its
// properties in definition order and then a device-level delete event.
// Detaching an unknown device is a no-op.
func (r *Registry) Detach(name, message string) {
	r.mu.Lock()
	dev, ok := r.devices[name]
	if ok {
		delete(r.devices, name)
		for i, n := range r.order {
			if n == name {
				r.order = append(r.order[:i], r.order[i+1:]...)
				break
			}
		}
	}
	r.mu.Unlock()

	if ok {
		dev.drain(message, r.sink)
	}
}

// Device returns the named attached device.
func (r *Registry) Device(name string) (*Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	dev, ok := r.devices[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDevice, name)
	}
	return dev, nil
}

// Devices returns all attached devices in attach order.
func (r *Registry) Devices() []*Device {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Device, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.devices[name])
	}
	return out
}

// Define publishes a property on the device. Redefining an existing name
// replaces it; either way a define event with the full snapshot is
// emitted. The registry takes ownership of p; the caller must mutate it
// only through Update afterwards.
func (r *Registry) Define(device string, p *property.Property, message string) error {
	dev, err := r.Device(device)
	if err != nil {
		return err
	}
	dev.define(p, message, r.sink)
	return nil
}

// Update applies mutate to the named property under the device lock and,
// on success, publishes the committed snapshot. If mutate returns an
// error the property is assumed unchanged and nothing is published.
func (r *Registry) Update(device, name, message string, mutate func(*property.Property) error) error {
	dev, err := r.Device(device)
	if err != nil {
		return err
	}
	return dev.update(name, message, mutate, r.sink)
}

// DeleteProperty removes one property from the device and publishes a
// delete event.
func (r *Registry) DeleteProperty(device, name, message string) error {
	dev, err := r.Device(device)
	if err != nil {
		return err
	}
	return dev.deleteProperty(name, message, r.sink)
}

// Snapshot returns define events for the current property set in attach
// and definition order. An empty device name covers all devices; naming an
// unknown device yields no events, since a concurrent detach is
// indistinguishable from the device never having existed.
func (r *Registry) Snapshot(device string) []Event {
	r.mu.RLock()
	var devs []*Device
	if device == "" {
		for _, name := range r.order {
			devs = append(devs, r.devices[name])
		}
	} else if dev, ok := r.devices[device]; ok {
		devs = append(devs, dev)
	}
	r.mu.RUnlock()

	var events []Event
	for _, dev := range devs {
		events = dev.snapshot(events)
	}
	return events
}
