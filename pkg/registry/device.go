package registry

import (
	"context"
	"fmt"
	"sync"

	"github.com/astrobus-protocol/astrobus-go/pkg/property"
)

// Interface is a bitmask of device capability classes. A device may expose
// several at once, e.g. a mount with a built-in GPS.
type Interface uint32

const (
	InterfaceMount Interface = 1 << iota
	InterfaceCCD
	InterfaceGuider
	InterfaceFocuser
	InterfaceFilterWheel
	InterfaceDome
	InterfaceGPS
	InterfaceAUX
)

// Has reports whether all bits of flag are set.
func (i Interface) Has(flag Interface) bool {
	return i&flag == flag
}

// ChangeHandler is invoked by the bus when a client requests value changes
// on one of the device's properties. The handler commits accepted values
// through Registry.Update; a returned error rejects the whole request and
// is reported back to the requesting client.
type ChangeHandler func(ctx context.Context, name string, values map[string]property.Value) error

// Device is one attached device: a name, a capability mask, a change
// handler and an ordered property table.
type Device struct {
	name       string
	interfaces Interface
	handler    ChangeHandler

	mu    sync.Mutex
	props map[string]*property.Property
	order []string
}

// NewDevice creates an unattached device with no properties. The handler
// may be nil for devices that expose only read-only state.
func NewDevice(name string, interfaces Interface, handler ChangeHandler) *Device {
	return &Device{
		name:       name,
		interfaces: interfaces,
		handler:    handler,
		props:      make(map[string]*property.Property),
	}
}

// Name returns the device name.
func (d *Device) Name() string {
	return d.name
}

// Interfaces returns the capability mask.
func (d *Device) Interfaces() Interface {
	return d.interfaces
}

// Handler returns the change handler, or nil.
func (d *Device) Handler() ChangeHandler {
	return d.handler
}

// Property returns a clone of the named property.
func (d *Device) Property(name string) (*property.Property, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, ok := d.props[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrUnknownProperty, d.name, name)
	}
	return p.Clone(), nil
}

// Properties returns clones of all properties in definition order.
func (d *Device) Properties() []*property.Property {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]*property.Property, 0, len(d.order))
	for _, name := range d.order {
		out = append(out, d.props[name].Clone())
	}
	return out
}

// define stores the property and emits a define event. Redefining an
// existing name replaces it in place, keeping its position.
func (d *Device) define(p *property.Property, message string, sink Sink) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.props[p.Name]; !exists {
		d.order = append(d.order, p.Name)
	}
	d.props[p.Name] = p

	sink(Event{Kind: EventDefine, Device: d.name, Property: p.Clone(), Message: message})
}

// update runs mutate on the named property under the device lock and emits
// an update event with the committed snapshot. A mutate error aborts the
// update and nothing is published.
func (d *Device) update(name, message string, mutate func(*property.Property) error, sink Sink) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, ok := d.props[name]
	if !ok {
		return fmt.Errorf("%w: %s/%s", ErrUnknownProperty, d.name, name)
	}
	if err := mutate(p); err != nil {
		return err
	}

	sink(Event{Kind: EventUpdate, Device: d.name, Property: p.Clone(), Message: message})
	return nil
}

// deleteProperty removes the named property and emits a delete event.
func (d *Device) deleteProperty(name, message string, sink Sink) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, ok := d.props[name]
	if !ok {
		return fmt.Errorf("%w: %s/%s", ErrUnknownProperty, d.name, name)
	}
	delete(d.props, name)
	for i, n := range d.order {
		if n == name {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}

	sink(Event{Kind: EventDelete, Device: d.name, Property: p.Clone(), Message: message})
	return nil
}

// drain removes every property, emitting one delete event each in
// definition order, followed by a device-level delete event.
func (d *Device) drain(message string, sink Sink) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, name := range d.order {
		sink(Event{Kind: EventDelete, Device: d.name, Property: d.props[name].Clone(), Message: message})
		delete(d.props, name)
	}
	d.order = nil

	sink(Event{Kind: EventDelete, Device: d.name, Message: message})
}

// snapshot appends define events for all properties in definition order.
func (d *Device) snapshot(events []Event) []Event {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, name := range d.order {
		events = append(events, Event{Kind: EventDefine, Device: d.name, Property: d.props[name].Clone()})
	}
	return events
}
