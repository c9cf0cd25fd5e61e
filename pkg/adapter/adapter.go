package adapter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/astrobus-protocol/astrobus-go/pkg/bus"
	"github.com/astrobus-protocol/astrobus-go/pkg/buslog"
	"github.com/astrobus-protocol/astrobus-go/pkg/transport"
	"github.com/astrobus-protocol/astrobus-go/pkg/wire"
)

// State is the adapter lifecycle state.
type State int32

const (
	// StateIdle means Start has not been called yet.
	StateIdle State = iota

	// StateStreaming means the adapter is attached and relaying events.
	StateStreaming

	// StateClosing means shutdown has begun.
	StateClosing

	// StateClosed means the adapter is fully detached.
	StateClosed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateStreaming:
		return "STREAMING"
	case StateClosing:
		return "CLOSING"
	case StateClosed:
		return "CLOSED"
	}
	return "UNKNOWN"
}

// Config configures an adapter.
type Config struct {
	// Bus the connection is attached to. Required.
	Bus *bus.Bus

	// Send writes one encoded line to the peer. Required.
	Send func(line []byte) error

	// ConnID identifies the connection in log events.
	ConnID string

	// Logger for protocol logging (optional).
	Logger buslog.Logger
}

// Adapter relays between one peer and the bus.
type Adapter struct {
	cfg    Config
	logger buslog.Logger

	client    *bus.Client
	state     atomic.Int32
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// New creates an adapter. Call Start before feeding it lines.
func New(cfg Config) *Adapter {
	logger := cfg.Logger
	if logger == nil {
		logger = buslog.NoopLogger{}
	}
	return &Adapter{cfg: cfg, logger: logger}
}

// State returns the current lifecycle state.
func (a *Adapter) State() State {
	return State(a.state.Load())
}

// Start attaches a bus client and begins pumping its events to the peer.
func (a *Adapter) Start() error {
	if !a.state.CompareAndSwap(int32(StateIdle), int32(StateStreaming)) {
		return fmt.Errorf("adapter already started")
	}

	a.client = a.cfg.Bus.AttachClient()

	a.wg.Add(1)
	go a.outboundLoop()
	return nil
}

// Close detaches from the bus and stops the outbound pump. After Close
// returns no further lines are written. Safe to call more than once.
func (a *Adapter) Close() {
	a.closeOnce.Do(func() {
		a.state.Store(int32(StateClosing))
		if a.client != nil {
			a.cfg.Bus.DetachClient(a.client)
		}
		a.wg.Wait()
		a.state.Store(int32(StateClosed))
	})
}

// outboundLoop encodes bus events and writes them to the peer. Exits when
// the client queue is closed; a write failure triggers a full close.
func (a *Adapter) outboundLoop() {
	defer a.wg.Done()

	for msg := range a.client.Messages() {
		line, err := wire.Encode(msg)
		if err != nil {
			a.logError(err, "encoding outbound message")
			continue
		}
		if err := a.cfg.Send(line); err != nil {
			a.logError(err, "writing to peer")
			// Detach asynchronously; Close waits on this goroutine.
			go a.Close()
			return
		}
		a.logMessage(msg, buslog.DirectionOut)
	}
}

// HandleLine decodes and dispatches one inbound line. Protocol errors are
// reported back to the peer and the connection stays open.
func (a *Adapter) HandleLine(ctx context.Context, line []byte) {
	if a.State() != StateStreaming {
		return
	}

	msg, err := wire.Decode(line)
	if err != nil {
		a.logError(err, "decoding inbound line")
		a.reply(&wire.Message{Notice: &wire.Notice{
			Text:     fmt.Sprintf("protocol error: %v", err),
			Severity: wire.SeverityAlert,
		}})
		return
	}

	a.logMessage(msg, buslog.DirectionIn)

	switch {
	case msg.Enumerate != nil:
		a.cfg.Bus.Enumerate(a.client, msg.Enumerate.Device)

	case msg.Change != nil:
		values, err := msg.Change.Values()
		if err != nil {
			a.reply(&wire.Message{Notice: &wire.Notice{
				Text:     err.Error(),
				Severity: wire.SeverityAlert,
			}})
			return
		}
		// Failures are reported to this client by the bus.
		_ = a.cfg.Bus.ChangeRequest(ctx, a.client, msg.Change.Device, msg.Change.Name, values)

	case msg.BlobMode != nil:
		a.cfg.Bus.SetBlobMode(a.client, msg.BlobMode.Device, msg.BlobMode.Name, msg.BlobMode.Mode)

	default:
		// define, update, delete and message originate from the hub side
		// only.
		a.reply(&wire.Message{Notice: &wire.Notice{
			Text:     fmt.Sprintf("verb %q is not accepted from clients", msg.Verb()),
			Severity: wire.SeverityAlert,
		}})
	}
}

// reply sends a message to this peer only, outside the bus event stream.
func (a *Adapter) reply(msg *wire.Message) {
	line, err := wire.Encode(msg)
	if err != nil {
		a.logError(err, "encoding reply")
		return
	}
	if err := a.cfg.Send(line); err != nil {
		a.logError(err, "writing reply")
	}
}

func (a *Adapter) logMessage(msg *wire.Message, direction buslog.Direction) {
	ev := buslog.Event{
		Timestamp:    time.Now(),
		ConnectionID: a.cfg.ConnID,
		Direction:    direction,
		Layer:        buslog.LayerWire,
		Category:     buslog.CategoryMessage,
		Message:      &buslog.MessageEvent{Verb: msg.Verb()},
	}
	switch {
	case msg.Enumerate != nil:
		ev.Device = msg.Enumerate.Device
	case msg.Change != nil:
		ev.Device = msg.Change.Device
		ev.Message.Property = msg.Change.Name
	case msg.BlobMode != nil:
		ev.Device = msg.BlobMode.Device
		ev.Message.Property = msg.BlobMode.Name
	case msg.Define != nil:
		ev.Device = msg.Define.Device
		ev.Message.Property = msg.Define.Name
		ev.Message.State = msg.Define.State
	case msg.Update != nil:
		ev.Device = msg.Update.Device
		ev.Message.Property = msg.Update.Name
		ev.Message.State = msg.Update.State
	case msg.Delete != nil:
		ev.Device = msg.Delete.Device
		ev.Message.Property = msg.Delete.Name
	case msg.Notice != nil:
		ev.Device = msg.Notice.Device
	}
	ev.Message.Device = ev.Device
	a.logger.Log(ev)
}

func (a *Adapter) logError(err error, context string) {
	a.logger.Log(buslog.Event{
		Timestamp:    time.Now(),
		ConnectionID: a.cfg.ConnID,
		Layer:        buslog.LayerWire,
		Category:     buslog.CategoryError,
		Error:        &buslog.ErrorEventData{Layer: buslog.LayerWire, Message: err.Error(), Context: context},
	})
}

// Serve runs the protocol over one bidirectional stream until it fails or
// ctx is cancelled. Used for stdio peers and tests; TCP connections are
// wired through the transport server's callbacks instead.
func Serve(ctx context.Context, b *bus.Bus, rw io.ReadWriteCloser, logger buslog.Logger) error {
	framer := transport.NewLineFramer(rw)

	a := New(Config{
		Bus:    b,
		Send:   framer.WriteLine,
		Logger: logger,
	})
	if err := a.Start(); err != nil {
		return err
	}
	defer a.Close()

	stop := context.AfterFunc(ctx, func() { rw.Close() })
	defer stop()

	for {
		line, err := framer.ReadLine()
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("%w: %v", wire.ErrTransportClosed, err)
		}
		a.HandleLine(ctx, line)
	}
}
