package bus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/astrobus-protocol/astrobus-go/pkg/buslog"
	"github.com/astrobus-protocol/astrobus-go/pkg/property"
	"github.com/astrobus-protocol/astrobus-go/pkg/registry"
	"github.com/astrobus-protocol/astrobus-go/pkg/wire"
)

// eventBuffer decouples registry commits from broadcast fan-out.
const eventBuffer = 1024

// Config configures a bus.
type Config struct {
	// Logger receives protocol events. Nil disables logging.
	Logger buslog.Logger

	// QueueCapacity bounds each client's outbound queue.
	// Zero means DefaultQueueCapacity.
	QueueCapacity int
}

// DeviceObserver is notified after a device is attached to or detached
// from the bus. Used by the driver manager to attribute devices to the
// driver that created them.
type DeviceObserver func(device string, attached bool)

// Bus connects drivers and clients. Drivers publish property state through
// the bus's registry; clients receive the event stream and submit change
// requests.
type Bus struct {
	logger   buslog.Logger
	queueCap int
	reg      *registry.Registry

	events chan registry.Event
	done   chan struct{}
	wg     sync.WaitGroup

	mu       sync.RWMutex
	clients  map[uuid.UUID]*Client
	observer DeviceObserver
	started  bool
	stopped  bool
}

// New creates a bus. Call Start before attaching drivers or clients.
func New(cfg Config) *Bus {
	logger := cfg.Logger
	if logger == nil {
		logger = buslog.NoopLogger{}
	}
	b := &Bus{
		logger:   logger,
		queueCap: cfg.QueueCapacity,
		events:   make(chan registry.Event, eventBuffer),
		done:     make(chan struct{}),
		clients:  make(map[uuid.UUID]*Client),
	}
	b.reg = registry.NewRegistry(b.publish)
	return b
}

// Registry returns the bus's device registry.
func (b *Bus) Registry() *registry.Registry {
	return b.reg
}

// SetDeviceObserver installs the device lifecycle observer. At most one
// observer is supported; set it before loading drivers.
func (b *Bus) SetDeviceObserver(o DeviceObserver) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.observer = o
}

// Start launches the broadcast loop. The bus stops when ctx is cancelled
// or Stop is called.
func (b *Bus) Start(ctx context.Context) error {
	b.mu.Lock()
	if b.started {
		b.mu.Unlock()
		return ErrAlreadyStarted
	}
	b.started = true
	b.mu.Unlock()

	b.wg.Add(1)
	go b.run(ctx)
	return nil
}

// Stop shuts down the broadcast loop and closes all client queues.
// Blocks until the loop has exited. Safe to call more than once.
func (b *Bus) Stop() {
	b.mu.Lock()
	if !b.started || b.stopped {
		b.mu.Unlock()
		return
	}
	b.stopped = true
	b.mu.Unlock()

	close(b.done)
	b.wg.Wait()

	b.mu.Lock()
	clients := make([]*Client, 0, len(b.clients))
	for _, c := range b.clients {
		clients = append(clients, c)
	}
	b.clients = make(map[uuid.UUID]*Client)
	b.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
}

func (b *Bus) run(ctx context.Context) {
	defer b.wg.Done()
	for {
		select {
		case ev := <-b.events:
			b.broadcast(ev)
		case <-ctx.Done():
			return
		case <-b.done:
			return
		}
	}
}

// publish is the registry sink. Events are queued for the broadcast loop;
// after shutdown they are discarded.
func (b *Bus) publish(ev registry.Event) {
	select {
	case b.events <- ev:
	case <-b.done:
	}
}

// broadcast converts one event to its wire form and delivers it to every
// client, applying each client's blob transfer preference.
func (b *Bus) broadcast(ev registry.Event) {
	msg := messageFromEvent(ev)
	if msg == nil {
		return
	}

	hasBlob := ev.Property != nil && ev.Property.HasBlob()

	b.mu.RLock()
	clients := make([]*Client, 0, len(b.clients))
	for _, c := range b.clients {
		clients = append(clients, c)
	}
	b.mu.RUnlock()

	for _, c := range clients {
		if !c.wants(ev.Device) {
			continue
		}
		out := msg
		if hasBlob {
			out = filterBlobMessage(msg, c.blobMode(ev.Device, ev.Property.Name))
		}
		c.push(out)
	}

	logEv := buslog.Event{
		Timestamp: time.Now(),
		Direction: buslog.DirectionOut,
		Layer:     buslog.LayerBus,
		Category:  buslog.CategoryMessage,
		Device:    ev.Device,
		Message:   &buslog.MessageEvent{Verb: ev.Kind.String(), Device: ev.Device},
	}
	if ev.Property != nil {
		logEv.Message.Property = ev.Property.Name
		logEv.Message.State = ev.Property.State.String()
	}
	b.logger.Log(logEv)
}

// AttachClient registers a new event consumer. The client receives all
// events committed after attachment; call Enumerate for the current state.
func (b *Bus) AttachClient() *Client {
	c := newClient(b.queueCap)

	b.mu.Lock()
	b.clients[c.id] = c
	b.mu.Unlock()

	b.logStateChange(c.id.String(), buslog.StateEntityConnection, "", "attached", "")
	return c
}

// DetachClient removes the client and closes its queue. After DetachClient
// returns, no further messages are delivered. Safe to call more than once.
func (b *Bus) DetachClient(c *Client) {
	b.mu.Lock()
	_, known := b.clients[c.id]
	delete(b.clients, c.id)
	b.mu.Unlock()

	c.close()
	if known {
		b.logStateChange(c.id.String(), buslog.StateEntityConnection, "attached", "detached", "")
	}
}

// AttachDevice adds a driver's device to the registry.
func (b *Bus) AttachDevice(dev *registry.Device) error {
	if err := b.reg.Attach(dev); err != nil {
		return err
	}
	b.logStateChange("", buslog.StateEntityDevice, "", "attached", dev.Name())
	b.notifyObserver(dev.Name(), true)
	return nil
}

// DetachDevice removes a device, broadcasting delete events for all its
// properties. Detaching an unknown device is a no-op.
func (b *Bus) DetachDevice(name, message string) {
	b.reg.Detach(name, message)
	b.logStateChange("", buslog.StateEntityDevice, "attached", "detached", name)
	b.notifyObserver(name, false)
}

func (b *Bus) notifyObserver(device string, attached bool) {
	b.mu.RLock()
	o := b.observer
	b.mu.RUnlock()
	if o != nil {
		o(device, attached)
	}
}

// Enumerate replays the current property definitions to one client. An
// empty device name covers all devices. Definitions committed while the
// replay runs may be delivered twice; clients treat defines as upserts.
func (b *Bus) Enumerate(c *Client, device string) {
	for _, ev := range b.reg.Snapshot(device) {
		msg := messageFromEvent(ev)
		if ev.Property != nil && ev.Property.HasBlob() {
			msg = filterBlobMessage(msg, c.blobMode(ev.Device, ev.Property.Name))
		}
		c.push(msg)
	}
}

// ChangeRequest routes a client's value change to the owning device. The
// request is checked against the property's permission before the device
// handler runs; any failure is reported to the requester as an alert
// notice and returned.
func (b *Bus) ChangeRequest(ctx context.Context, requester *Client, device, name string, values map[string]property.Value) error {
	err := b.dispatchChange(ctx, device, name, values)
	if err != nil {
		if requester != nil {
			requester.push(&wire.Message{Notice: &wire.Notice{
				Device:   device,
				Text:     fmt.Sprintf("change %s/%s rejected: %v", device, name, err),
				Severity: wire.SeverityAlert,
			}})
		}
		b.logger.Log(buslog.Event{
			Timestamp: time.Now(),
			Direction: buslog.DirectionIn,
			Layer:     buslog.LayerBus,
			Category:  buslog.CategoryError,
			Device:    device,
			Error:     &buslog.ErrorEventData{Layer: buslog.LayerBus, Message: err.Error(), Context: "change " + device + "/" + name},
		})
	}
	return err
}

func (b *Bus) dispatchChange(ctx context.Context, device, name string, values map[string]property.Value) error {
	dev, err := b.reg.Device(device)
	if err != nil {
		return err
	}
	p, err := dev.Property(name)
	if err != nil {
		return err
	}
	if !p.Perm.CanWrite() {
		return fmt.Errorf("%w: %s/%s is read only", property.ErrPermissionDenied, device, name)
	}
	handler := dev.Handler()
	if handler == nil {
		return fmt.Errorf("%w: %s", ErrNoHandler, device)
	}
	return handler(ctx, name, values)
}

// SetBlobMode records the client's binary transfer preference. An empty
// property name sets the device-wide default.
func (b *Bus) SetBlobMode(c *Client, device, name string, mode wire.BlobMode) {
	c.setBlobMode(device, name, mode)
}

// SendMessage broadcasts a free-form notice to all clients. Device may be
// empty for bus-level messages.
func (b *Bus) SendMessage(device, text string, severity wire.Severity) {
	b.publish(registry.Event{
		Kind:     registry.EventMessage,
		Device:   device,
		Message:  text,
		Severity: string(severity),
	})
}

func (b *Bus) logStateChange(connID string, entity buslog.StateEntity, old, next, device string) {
	b.logger.Log(buslog.Event{
		Timestamp:    time.Now(),
		ConnectionID: connID,
		Layer:        buslog.LayerBus,
		Category:     buslog.CategoryState,
		Device:       device,
		StateChange:  &buslog.StateChangeEvent{Entity: entity, OldState: old, NewState: next},
	})
}

// messageFromEvent converts a registry event to its wire form, without
// blob filtering.
func messageFromEvent(ev registry.Event) *wire.Message {
	switch ev.Kind {
	case registry.EventDefine:
		return &wire.Message{Define: wire.DefineFromProperty(ev.Device, ev.Property, ev.Message)}
	case registry.EventUpdate:
		return &wire.Message{Update: wire.UpdateFromProperty(ev.Device, ev.Property, nil, ev.Message)}
	case registry.EventDelete:
		name := ""
		if ev.Property != nil {
			name = ev.Property.Name
		}
		return &wire.Message{Delete: &wire.Delete{Device: ev.Device, Name: name, Message: ev.Message}}
	case registry.EventMessage:
		sev := wire.Severity(ev.Severity)
		if sev == "" {
			sev = wire.SeverityInfo
		}
		return &wire.Message{Notice: &wire.Notice{Device: ev.Device, Text: ev.Message, Severity: sev}}
	}
	return nil
}

// filterBlobMessage applies a blob mode to a define or update, copying the
// message so other clients keep the unfiltered items.
func filterBlobMessage(m *wire.Message, mode wire.BlobMode) *wire.Message {
	switch {
	case m.Define != nil:
		d := *m.Define
		d.Items = wire.FilterBlobs(d.Items, mode)
		return &wire.Message{Define: &d}
	case m.Update != nil:
		u := *m.Update
		u.Items = wire.FilterBlobs(u.Items, mode)
		return &wire.Message{Update: &u}
	}
	return m
}
