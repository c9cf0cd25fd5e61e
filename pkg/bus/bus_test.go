package bus

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astrobus-protocol/astrobus-go/pkg/property"
	"github.com/astrobus-protocol/astrobus-go/pkg/registry"
	"github.com/astrobus-protocol/astrobus-go/pkg/wire"
)

func startBus(t *testing.T, cfg Config) *Bus {
	t.Helper()
	b := New(cfg)
	require.NoError(t, b.Start(context.Background()))
	t.Cleanup(b.Stop)
	return b
}

// attachSpeedDevice attaches device "foo" with a writable number property
// "speed" (0..100) whose handler commits accepted values with state ok.
func attachSpeedDevice(t *testing.T, b *Bus) {
	t.Helper()
	handler := func(ctx context.Context, name string, values map[string]property.Value) error {
		return b.Registry().Update("foo", name, "", func(p *property.Property) error {
			if err := p.ApplyChange(values); err != nil {
				return err
			}
			p.State = property.StateOK
			return nil
		})
	}
	require.NoError(t, b.AttachDevice(registry.NewDevice("foo", registry.InterfaceAUX, handler)))

	p, err := property.NewNumber("speed", "Main", "Speed", property.PermReadWrite,
		property.Item{Name: "value", Value: property.NumberValue{Value: 10, Min: 0, Max: 100}})
	require.NoError(t, err)
	require.NoError(t, b.Registry().Define("foo", p, ""))
}

func recv(t *testing.T, c *Client) *wire.Message {
	t.Helper()
	select {
	case m, ok := <-c.Messages():
		require.True(t, ok, "queue closed")
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
		return nil
	}
}

func recvVerb(t *testing.T, c *Client, verb string) *wire.Message {
	t.Helper()
	for {
		m := recv(t, c)
		if m.Verb() == verb {
			return m
		}
	}
}

func TestStartTwice(t *testing.T) {
	b := startBus(t, Config{})
	assert.ErrorIs(t, b.Start(context.Background()), ErrAlreadyStarted)
}

func TestChangeRejectedThenCommitted(t *testing.T) {
	b := startBus(t, Config{})
	attachSpeedDevice(t, b)

	requester := b.AttachClient()
	observer := b.AttachClient()

	// Out of range: the requester gets an alert, nothing is broadcast.
	err := b.ChangeRequest(context.Background(), requester, "foo", "speed",
		map[string]property.Value{"value": property.NumberValue{Value: 150}})
	require.ErrorIs(t, err, property.ErrOutOfRange)

	m := recv(t, requester)
	require.NotNil(t, m.Notice)
	assert.Equal(t, wire.SeverityAlert, m.Notice.Severity)
	assert.Equal(t, "foo", m.Notice.Device)

	// In range: both clients observe the committed update.
	err = b.ChangeRequest(context.Background(), requester, "foo", "speed",
		map[string]property.Value{"value": property.NumberValue{Value: 50}})
	require.NoError(t, err)

	for _, c := range []*Client{requester, observer} {
		m := recvVerb(t, c, "update")
		assert.Equal(t, "foo", m.Update.Device)
		assert.Equal(t, "speed", m.Update.Name)
		assert.Equal(t, "ok", m.Update.State)
		require.Len(t, m.Update.Items, 1)
		assert.Equal(t, 50.0, m.Update.Items[0].Number.Value)
	}
}

func TestChangeReadOnlyRejected(t *testing.T) {
	b := startBus(t, Config{})
	require.NoError(t, b.AttachDevice(registry.NewDevice("foo", registry.InterfaceAUX, nil)))

	p, err := property.NewLight("status", "Main", "Status",
		property.Item{Name: "ready", Value: property.LightValue{State: property.StateOK}})
	require.NoError(t, err)
	require.NoError(t, b.Registry().Define("foo", p, ""))

	err = b.ChangeRequest(context.Background(), nil, "foo", "status",
		map[string]property.Value{"ready": property.LightValue{State: property.StateAlert}})
	assert.ErrorIs(t, err, property.ErrPermissionDenied)
}

func TestChangeUnknownDevice(t *testing.T) {
	b := startBus(t, Config{})
	err := b.ChangeRequest(context.Background(), nil, "ghost", "speed", nil)
	assert.ErrorIs(t, err, registry.ErrUnknownDevice)
}

func TestBlobFilteringPerClient(t *testing.T) {
	b := startBus(t, Config{})
	require.NoError(t, b.AttachDevice(registry.NewDevice("cam", registry.InterfaceCCD, nil)))

	payload := []byte{1, 2, 3, 4}
	p, err := property.NewBlob("image", "Main", "Image",
		property.Item{Name: "frame", Value: property.BlobValue{ContentType: ".fits", Size: 4}})
	require.NoError(t, err)
	require.NoError(t, b.Registry().Define("cam", p, ""))

	inline := b.AttachClient()
	byURL := b.AttachClient()
	metadata := b.AttachClient()

	b.SetBlobMode(inline, "cam", "image", wire.BlobAlso)
	b.SetBlobMode(byURL, "cam", "", wire.BlobURL) // device-wide default

	err = b.Registry().Update("cam", "image", "", func(p *property.Property) error {
		it, err := p.Item("frame")
		if err != nil {
			return err
		}
		it.Value = property.BlobValue{
			ContentType: ".fits",
			Size:        int64(len(payload)),
			Data:        payload,
			URL:         "http://hub/blob/cam/image",
		}
		p.State = property.StateOK
		return nil
	})
	require.NoError(t, err)

	m := recvVerb(t, inline, "update")
	require.NotNil(t, m.Update.Items[0].Blob)
	assert.Equal(t, payload, m.Update.Items[0].Blob.Data)
	assert.Empty(t, m.Update.Items[0].Blob.URL)

	m = recvVerb(t, byURL, "update")
	assert.Nil(t, m.Update.Items[0].Blob.Data)
	assert.Equal(t, "http://hub/blob/cam/image", m.Update.Items[0].Blob.URL)

	// Without a preference the payload is suppressed, metadata kept.
	m = recvVerb(t, metadata, "update")
	assert.Nil(t, m.Update.Items[0].Blob.Data)
	assert.Empty(t, m.Update.Items[0].Blob.URL)
	assert.Equal(t, int64(4), m.Update.Items[0].Blob.Size)
}

func TestDetachDeviceBroadcastsDeletes(t *testing.T) {
	b := startBus(t, Config{})
	attachSpeedDevice(t, b)

	c := b.AttachClient()
	b.DetachDevice("foo", "driver unloaded")

	m := recvVerb(t, c, "delete")
	assert.Equal(t, "foo", m.Delete.Device)
	assert.Equal(t, "speed", m.Delete.Name)

	m = recvVerb(t, c, "delete")
	assert.Equal(t, "foo", m.Delete.Device)
	assert.Empty(t, m.Delete.Name, "device level delete comes last")
	assert.Equal(t, "driver unloaded", m.Delete.Message)

	// The name is free again.
	attachSpeedDevice(t, b)
	m = recvVerb(t, c, "define")
	assert.Equal(t, "foo", m.Define.Device)
	assert.Equal(t, "speed", m.Define.Name)
}

func TestEnumerateReplaysDefinitions(t *testing.T) {
	b := startBus(t, Config{})
	attachSpeedDevice(t, b)

	// Attached after the define was broadcast, so only the replay has it.
	c := b.AttachClient()
	b.Enumerate(c, "")

	m := recvVerb(t, c, "define")
	assert.Equal(t, "foo", m.Define.Device)
	assert.Equal(t, "speed", m.Define.Name)
	assert.Equal(t, "number", m.Define.Type)

	b.Enumerate(c, "ghost") // no events, no error
}

func TestSendMessageBroadcast(t *testing.T) {
	b := startBus(t, Config{})
	c := b.AttachClient()

	b.SendMessage("", "hub started", wire.SeverityInfo)

	m := recvVerb(t, c, "message")
	assert.Equal(t, "hub started", m.Notice.Text)
	assert.Equal(t, wire.SeverityInfo, m.Notice.Severity)
	assert.Empty(t, m.Notice.Device)
}

func TestSlowClientOverrun(t *testing.T) {
	b := startBus(t, Config{QueueCapacity: 4})
	attachSpeedDevice(t, b)

	c := b.AttachClient()

	// Flood without consuming; the queue keeps only the newest messages.
	for i := 0; i < 20; i++ {
		err := b.Registry().Update("foo", "speed", "", func(p *property.Property) error {
			return p.ApplyChange(map[string]property.Value{"value": property.NumberValue{Value: float64(i % 100)}})
		})
		require.NoError(t, err)
	}

	// One more update after draining room must be preceded by an overrun
	// notice reporting the dropped count.
	deadline := time.Now().Add(2 * time.Second)
	var sawOverrun bool
	for time.Now().Before(deadline) {
		select {
		case m := <-c.Messages():
			if m.Notice != nil {
				assert.Equal(t, wire.SeverityWarning, m.Notice.Severity)
				assert.Contains(t, m.Notice.Text, "dropped")
				sawOverrun = true
			}
		default:
			err := b.Registry().Update("foo", "speed", "", func(p *property.Property) error {
				return p.ApplyChange(map[string]property.Value{"value": property.NumberValue{Value: 1}})
			})
			require.NoError(t, err)
			time.Sleep(10 * time.Millisecond)
		}
		if sawOverrun {
			break
		}
	}
	assert.True(t, sawOverrun, "expected an overrun notice")
}

func TestDetachClientClosesQueue(t *testing.T) {
	b := startBus(t, Config{})
	c := b.AttachClient()

	b.DetachClient(c)
	b.DetachClient(c) // idempotent

	_, ok := <-c.Messages()
	assert.False(t, ok)

	// Traffic after detach is discarded, not delivered.
	b.SendMessage("", "late", wire.SeverityInfo)
}

func TestDeviceObserver(t *testing.T) {
	b := startBus(t, Config{})

	var got []string
	b.SetDeviceObserver(func(device string, attached bool) {
		got = append(got, fmt.Sprintf("%s=%t", device, attached))
	})

	require.NoError(t, b.AttachDevice(registry.NewDevice("foo", registry.InterfaceAUX, nil)))
	b.DetachDevice("foo", "")

	assert.Equal(t, []string{"foo=true", "foo=false"}, got)
}

func TestDeviceFilter(t *testing.T) {
	b := startBus(t, Config{})
	attachSpeedDevice(t, b)

	filtered := b.AttachClient()
	filtered.SetDeviceFilter("bar")
	global := b.AttachClient()

	require.NoError(t, b.Registry().Update("foo", "speed", "", func(p *property.Property) error {
		p.State = property.StateBusy
		return nil
	}))

	// The update reaches only the global subscriber.
	m := recvVerb(t, global, "update")
	assert.Equal(t, "foo", m.Update.Device)
	select {
	case m := <-filtered.Messages():
		t.Fatalf("filtered client received %s for %q", m.Verb(), "foo")
	case <-time.After(50 * time.Millisecond):
	}

	// Bus-level messages ignore device filters.
	b.SendMessage("", "maintenance window", wire.SeverityInfo)
	m = recvVerb(t, filtered, "message")
	assert.Equal(t, "maintenance window", m.Notice.Text)

	// Clearing the filter restores the global subscription.
	filtered.SetDeviceFilter()
	require.NoError(t, b.Registry().Update("foo", "speed", "", func(p *property.Property) error {
		p.State = property.StateOK
		return nil
	}))
	m = recvVerb(t, filtered, "update")
	assert.Equal(t, "foo", m.Update.Device)
}

func TestBlobModeSwitchAppliesToNextEvent(t *testing.T) {
	b := startBus(t, Config{})
	require.NoError(t, b.AttachDevice(registry.NewDevice("cam", registry.InterfaceCCD, nil)))

	p, err := property.NewBlob("image", "Main", "Image",
		property.Item{Name: "frame", Value: property.BlobValue{ContentType: ".fits"}})
	require.NoError(t, err)
	require.NoError(t, b.Registry().Define("cam", p, ""))

	c := b.AttachClient()

	payload := []byte{9, 8, 7}
	publishFrame := func() {
		err := b.Registry().Update("cam", "image", "", func(p *property.Property) error {
			it, err := p.Item("frame")
			if err != nil {
				return err
			}
			it.Value = property.BlobValue{ContentType: ".fits", Size: int64(len(payload)), Data: payload}
			p.State = property.StateOK
			return nil
		})
		require.NoError(t, err)
	}

	// Default mode suppresses the payload but keeps the metadata.
	publishFrame()
	m := recvVerb(t, c, "update")
	require.NotNil(t, m.Update.Items[0].Blob)
	assert.Nil(t, m.Update.Items[0].Blob.Data)
	assert.Equal(t, int64(3), m.Update.Items[0].Blob.Size)

	// Switching the mode is not retroactive: only events committed after
	// the switch carry inline bytes.
	b.SetBlobMode(c, "cam", "image", wire.BlobAlso)
	publishFrame()
	m = recvVerb(t, c, "update")
	require.NotNil(t, m.Update.Items[0].Blob)
	assert.Equal(t, payload, m.Update.Items[0].Blob.Data)
}

func TestPushConcurrentConsumer(t *testing.T) {
	c := newClient(1)

	consumed := make(chan struct{})
	go func() {
		defer close(consumed)
		for range c.Messages() {
		}
	}()

	// A tiny queue drained in parallel maximizes send/evict interleavings;
	// push must make progress no matter where the consumer interrupts it.
	msg := &wire.Message{Notice: &wire.Notice{Text: "tick", Severity: wire.SeverityInfo}}
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		for i := 0; i < 200000; i++ {
			c.push(msg)
		}
	}()

	select {
	case <-finished:
	case <-time.After(30 * time.Second):
		t.Fatal("push blocked against a concurrent consumer")
	}

	c.close()
	<-consumed
}
