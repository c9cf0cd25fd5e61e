package bus

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/astrobus-protocol/astrobus-go/pkg/wire"
)

// DefaultQueueCapacity bounds a client's outbound queue when the bus
// config does not override it.
const DefaultQueueCapacity = 256

type blobKey struct {
	device string
	name   string
}

// Client is one attached event consumer. Messages are delivered through a
// bounded queue; consume them by ranging over Messages. The channel is
// closed when the client is detached or the bus stops.
type Client struct {
	id uuid.UUID

	mu      sync.Mutex
	queue   chan *wire.Message
	closed  bool
	dropped int
	blobs   map[blobKey]wire.BlobMode
	devices map[string]bool
}

func newClient(capacity int) *Client {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &Client{
		id:    uuid.New(),
		queue: make(chan *wire.Message, capacity),
		blobs: make(map[blobKey]wire.BlobMode),
	}
}

// ID returns the client's unique identifier.
func (c *Client) ID() uuid.UUID {
	return c.id
}

// Messages returns the outbound message stream.
func (c *Client) Messages() <-chan *wire.Message {
	return c.queue
}

// push enqueues a message, evicting the oldest pending messages when the
// queue is full. Once space frees up again, the client is sent a notice
// with the number of messages it missed.
func (c *Client) push(m *wire.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	if c.dropped > 0 && len(c.queue)+1 < cap(c.queue) {
		c.queue <- &wire.Message{Notice: &wire.Notice{
			Text:     fmt.Sprintf("event queue overrun, %d messages dropped; enumerate to resynchronize", c.dropped),
			Severity: wire.SeverityWarning,
		}}
		c.dropped = 0
	}
	for {
		select {
		case c.queue <- m:
			return
		default:
		}
		// Full. Evict the oldest entry, but never block: the consumer
		// drains the same channel concurrently and may have emptied it
		// since the failed send.
		select {
		case <-c.queue:
			c.dropped++
		default:
		}
	}
}

// close shuts the queue. Safe to call more than once.
func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.queue)
	}
}

// SetDeviceFilter restricts delivery to the named devices. Bus-level
// messages without a device are always delivered. An empty list removes
// the filter, restoring the global subscription every client starts with.
func (c *Client) SetDeviceFilter(devices ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(devices) == 0 {
		c.devices = nil
		return
	}
	c.devices = make(map[string]bool, len(devices))
	for _, d := range devices {
		c.devices[d] = true
	}
}

// wants reports whether the client subscribes to events from the device.
func (c *Client) wants(device string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.devices == nil || device == "" || c.devices[device]
}

// setBlobMode records the client's transfer preference. An empty property
// name sets the device-wide default.
func (c *Client) setBlobMode(device, name string, mode wire.BlobMode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.blobs[blobKey{device, name}] = mode
}

// blobMode resolves the preference for one property: exact match first,
// then the device-wide default, then never.
func (c *Client) blobMode(device, name string) wire.BlobMode {
	c.mu.Lock()
	defer c.mu.Unlock()

	if mode, ok := c.blobs[blobKey{device, name}]; ok {
		return mode
	}
	if mode, ok := c.blobs[blobKey{device, ""}]; ok {
		return mode
	}
	return wire.BlobNever
}
