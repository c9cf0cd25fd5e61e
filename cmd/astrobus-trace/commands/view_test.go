package commands

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/astrobus-protocol/astrobus-go/pkg/buslog"
)

// createTestTraceFile writes events to a temporary trace file and returns
// its path.
func createTestTraceFile(t *testing.T, events []buslog.Event) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.trace")
	logger, err := buslog.OpenFileLogger(path)
	if err != nil {
		t.Fatalf("failed to create trace file: %v", err)
	}
	for _, ev := range events {
		logger.Log(ev)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("failed to close trace file: %v", err)
	}
	return path
}

func TestViewFormatsEvents(t *testing.T) {
	ts := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	events := []buslog.Event{
		{
			Timestamp:    ts,
			ConnectionID: "11112222-3333-4444-5555-666677778888",
			Direction:    buslog.DirectionOut,
			Layer:        buslog.LayerWire,
			Category:     buslog.CategoryMessage,
			Device:       "Simulator CCD",
			Message:      &buslog.MessageEvent{Verb: "update", Device: "Simulator CCD", Property: "exposure", State: "busy"},
		},
		{
			Timestamp: ts.Add(time.Second),
			Direction: buslog.DirectionIn,
			Layer:     buslog.LayerTransport,
			Category:  buslog.CategoryMessage,
			Frame:     &buslog.FrameEvent{Size: 42, Data: []byte(`{"enumerate":{}}` + "\n")},
		},
	}

	path := createTestTraceFile(t, events)

	var buf bytes.Buffer
	if err := RunView(path, ViewFilter{}, &buf); err != nil {
		t.Fatalf("RunView failed: %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "[conn:11112222]") {
		t.Errorf("expected shortened connection ID in output, got:\n%s", output)
	}
	if !strings.Contains(output, "WIRE update") {
		t.Errorf("expected wire message header in output, got:\n%s", output)
	}
	if !strings.Contains(output, "Property: exposure") {
		t.Errorf("expected property detail in output, got:\n%s", output)
	}
	if !strings.Contains(output, "Size: 42 bytes") {
		t.Errorf("expected frame size in output, got:\n%s", output)
	}
	if !strings.Contains(output, `{"enumerate":{}}`) {
		t.Errorf("expected frame data in output, got:\n%s", output)
	}
}

func TestViewFiltersByLayer(t *testing.T) {
	ts := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	events := []buslog.Event{
		{Timestamp: ts, Layer: buslog.LayerTransport, Category: buslog.CategoryMessage,
			Frame: &buslog.FrameEvent{Size: 10}},
		{Timestamp: ts, Layer: buslog.LayerWire, Category: buslog.CategoryMessage,
			Message: &buslog.MessageEvent{Verb: "define"}},
	}

	path := createTestTraceFile(t, events)

	wire := buslog.LayerWire
	var buf bytes.Buffer
	if err := RunView(path, ViewFilter{Layer: &wire}, &buf); err != nil {
		t.Fatalf("RunView failed: %v", err)
	}

	output := buf.String()
	if strings.Contains(output, "Frame") {
		t.Errorf("transport event should be filtered out, got:\n%s", output)
	}
	if !strings.Contains(output, "define") {
		t.Errorf("expected wire event in output, got:\n%s", output)
	}
}

func TestViewFiltersByDevice(t *testing.T) {
	ts := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	events := []buslog.Event{
		{Timestamp: ts, Layer: buslog.LayerBus, Category: buslog.CategoryMessage,
			Device:  "Simulator CCD",
			Message: &buslog.MessageEvent{Verb: "update", Device: "Simulator CCD"}},
		{Timestamp: ts, Layer: buslog.LayerBus, Category: buslog.CategoryMessage,
			Device:  "Simulator Focuser",
			Message: &buslog.MessageEvent{Verb: "update", Device: "Simulator Focuser"}},
	}

	path := createTestTraceFile(t, events)

	var buf bytes.Buffer
	if err := RunView(path, ViewFilter{Device: "Simulator Focuser"}, &buf); err != nil {
		t.Fatalf("RunView failed: %v", err)
	}

	output := buf.String()
	if strings.Contains(output, "Simulator CCD") {
		t.Errorf("CCD events should be filtered out, got:\n%s", output)
	}
	if !strings.Contains(output, "Simulator Focuser") {
		t.Errorf("expected focuser events in output, got:\n%s", output)
	}
}

func TestViewStateChange(t *testing.T) {
	ts := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	events := []buslog.Event{
		{Timestamp: ts, Layer: buslog.LayerBus, Category: buslog.CategoryState,
			StateChange: &buslog.StateChangeEvent{
				Entity:   buslog.StateEntityDriver,
				NewState: "LOADED",
				Reason:   "driver simulator",
			}},
	}

	path := createTestTraceFile(t, events)

	var buf bytes.Buffer
	if err := RunView(path, ViewFilter{}, &buf); err != nil {
		t.Fatalf("RunView failed: %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "Entity: DRIVER") {
		t.Errorf("expected driver entity in output, got:\n%s", output)
	}
	if !strings.Contains(output, "-> LOADED") {
		t.Errorf("expected new state in output, got:\n%s", output)
	}
	if !strings.Contains(output, "Reason: driver simulator") {
		t.Errorf("expected reason in output, got:\n%s", output)
	}
}

func TestParseFlags(t *testing.T) {
	if _, err := ParseLayerFlag("bogus"); err == nil {
		t.Error("ParseLayerFlag should reject unknown layers")
	}
	if l, err := ParseLayerFlag("Bus"); err != nil || l != buslog.LayerBus {
		t.Errorf("ParseLayerFlag(Bus) = %v, %v", l, err)
	}

	if _, err := ParseDirectionFlag("sideways"); err == nil {
		t.Error("ParseDirectionFlag should reject unknown directions")
	}
	if d, err := ParseDirectionFlag("OUT"); err != nil || d != buslog.DirectionOut {
		t.Errorf("ParseDirectionFlag(OUT) = %v, %v", d, err)
	}

	if _, err := ParseCategoryFlag("snapshot"); err == nil {
		t.Error("ParseCategoryFlag should reject unknown categories")
	}
	if c, err := ParseCategoryFlag("error"); err != nil || c != buslog.CategoryError {
		t.Errorf("ParseCategoryFlag(error) = %v, %v", c, err)
	}
}
