package buslog

import (
	"bytes"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileLoggerRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	l := NewFileLogger(&buf)

	events := []Event{
		{
			Timestamp:    time.Now().Truncate(time.Microsecond),
			ConnectionID: "conn-1",
			Direction:    DirectionIn,
			Layer:        LayerTransport,
			Category:     CategoryMessage,
			Frame:        &FrameEvent{Size: 42, Data: []byte(`{"enumerate":{}}`)},
		},
		{
			Timestamp: time.Now().Truncate(time.Microsecond),
			Direction: DirectionOut,
			Layer:     LayerWire,
			Category:  CategoryMessage,
			Device:    "Simulator CCD",
			Message:   &MessageEvent{Verb: "update", Device: "Simulator CCD", Property: "exposure", State: "busy"},
		},
		{
			Timestamp:   time.Now().Truncate(time.Microsecond),
			Layer:       LayerBus,
			Category:    CategoryState,
			StateChange: &StateChangeEvent{Entity: StateEntityDevice, NewState: "ATTACHED"},
		},
	}
	for _, ev := range events {
		l.Log(ev)
	}

	r := NewReader(&buf)
	for i := range events {
		got, err := r.Next()
		require.NoError(t, err, "event %d", i)
		assert.Equal(t, events[i].Layer, got.Layer)
		assert.Equal(t, events[i].Category, got.Category)
		assert.Equal(t, events[i].Device, got.Device)
		if events[i].Message != nil {
			require.NotNil(t, got.Message)
			assert.Equal(t, events[i].Message.Verb, got.Message.Verb)
		}
	}
	_, err := r.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestMultiLoggerFansOut(t *testing.T) {
	var a, b countingLogger
	m := NewMultiLogger(&a, nil, &b)

	m.Log(Event{Layer: LayerBus})
	m.Log(Event{Layer: LayerWire})

	assert.Equal(t, 2, a.count)
	assert.Equal(t, 2, b.count)
}

func TestSlogAdapterLevels(t *testing.T) {
	var buf bytes.Buffer
	h := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn})
	a := NewSlogAdapter(slog.New(h))

	a.Log(Event{Layer: LayerWire, Category: CategoryMessage, Message: &MessageEvent{Verb: "define"}})
	assert.Empty(t, buf.String(), "message events log at debug")

	a.Log(Event{Layer: LayerWire, Category: CategoryError, Error: &ErrorEventData{Layer: LayerWire, Message: "bad message"}})
	assert.Contains(t, buf.String(), "bad message")
}

type countingLogger struct {
	count int
}

func (c *countingLogger) Log(Event) { c.count++ }
