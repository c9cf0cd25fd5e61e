package transport

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/astrobus-protocol/astrobus-go/pkg/buslog"
)

// Framing constants.
const (
	// DefaultMaxLineSize is the default maximum line size (16 MB).
	// Sized for inline base64 image payloads.
	DefaultMaxLineSize = 16 << 20

	// MaxLogFrameDataSize is the maximum frame data size to include in log
	// events (4 KB). Larger lines are truncated in the event.
	MaxLogFrameDataSize = 4096

	// readBufferSize is the scanner's initial buffer size.
	readBufferSize = 64 << 10
)

// Framing errors.
var (
	// ErrLineTooLong indicates a line exceeds the maximum size.
	ErrLineTooLong = errors.New("line too long")

	// ErrLineEmpty indicates an attempt to write an empty message.
	ErrLineEmpty = errors.New("line is empty")
)

// LineWriter writes newline-terminated lines to an underlying writer.
type LineWriter struct {
	w           io.Writer
	maxLineSize int
	mu          sync.Mutex

	logger buslog.Logger
	connID string
}

// NewLineWriter creates a line writer with the default maximum size.
func NewLineWriter(w io.Writer) *LineWriter {
	return NewLineWriterWithMaxSize(w, DefaultMaxLineSize)
}

// NewLineWriterWithMaxSize creates a line writer with a custom max size.
func NewLineWriterWithMaxSize(w io.Writer, maxSize int) *LineWriter {
	return &LineWriter{w: w, maxLineSize: maxSize}
}

// SetLogger configures logging for this writer. Pass nil to disable.
func (lw *LineWriter) SetLogger(logger buslog.Logger, connID string) {
	lw.logger = logger
	lw.connID = connID
}

// WriteLine writes one message followed by the line terminator.
// Thread-safe: can be called from multiple goroutines.
func (lw *LineWriter) WriteLine(data []byte) error {
	if len(data) == 0 {
		return ErrLineEmpty
	}
	if len(data) > lw.maxLineSize {
		return fmt.Errorf("%w: %d > %d", ErrLineTooLong, len(data), lw.maxLineSize)
	}
	if bytes.IndexByte(data, '\n') >= 0 {
		return fmt.Errorf("message contains a line terminator")
	}

	lw.mu.Lock()
	defer lw.mu.Unlock()

	if _, err := lw.w.Write(data); err != nil {
		return fmt.Errorf("failed to write line: %w", err)
	}
	if _, err := lw.w.Write([]byte{'\n'}); err != nil {
		return fmt.Errorf("failed to write line terminator: %w", err)
	}

	if lw.logger != nil {
		lw.logger.Log(makeFrameEvent(lw.connID, data, buslog.DirectionOut))
	}
	return nil
}

// LineReader reads newline-terminated lines from an underlying reader.
type LineReader struct {
	scanner     *bufio.Scanner
	maxLineSize int

	logger buslog.Logger
	connID string
}

// NewLineReader creates a line reader with the default maximum size.
func NewLineReader(r io.Reader) *LineReader {
	return NewLineReaderWithMaxSize(r, DefaultMaxLineSize)
}

// NewLineReaderWithMaxSize creates a line reader with a custom max size.
func NewLineReaderWithMaxSize(r io.Reader, maxSize int) *LineReader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, readBufferSize), maxSize)
	return &LineReader{scanner: scanner, maxLineSize: maxSize}
}

// SetLogger configures logging for this reader. Pass nil to disable.
func (lr *LineReader) SetLogger(logger buslog.Logger, connID string) {
	lr.logger = logger
	lr.connID = connID
}

// ReadLine reads the next non-empty line, without its terminator. The
// returned slice is a copy owned by the caller. Returns io.EOF when the
// stream ends cleanly.
func (lr *LineReader) ReadLine() ([]byte, error) {
	for lr.scanner.Scan() {
		line := lr.scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		out := make([]byte, len(line))
		copy(out, line)

		if lr.logger != nil {
			lr.logger.Log(makeFrameEvent(lr.connID, out, buslog.DirectionIn))
		}
		return out, nil
	}
	if err := lr.scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return nil, fmt.Errorf("%w: exceeds %d", ErrLineTooLong, lr.maxLineSize)
		}
		return nil, fmt.Errorf("failed to read line: %w", err)
	}
	return nil, io.EOF
}

// makeFrameEvent creates a transport-layer log event for one line.
func makeFrameEvent(connID string, data []byte, direction buslog.Direction) buslog.Event {
	frameData := data
	truncated := false
	if len(data) > MaxLogFrameDataSize {
		frameData = data[:MaxLogFrameDataSize]
		truncated = true
	}
	return buslog.Event{
		Timestamp:    time.Now(),
		ConnectionID: connID,
		Direction:    direction,
		Layer:        buslog.LayerTransport,
		Category:     buslog.CategoryMessage,
		Frame: &buslog.FrameEvent{
			Size:      len(data) + 1,
			Data:      frameData,
			Truncated: truncated,
		},
	}
}

// LineFramer combines line reading and writing on one stream.
type LineFramer struct {
	*LineReader
	*LineWriter
}

// NewLineFramer creates a framer for bidirectional communication.
func NewLineFramer(rw io.ReadWriter) *LineFramer {
	return NewLineFramerWithMaxSize(rw, DefaultMaxLineSize)
}

// NewLineFramerWithMaxSize creates a framer with a custom max line size.
func NewLineFramerWithMaxSize(rw io.ReadWriter, maxSize int) *LineFramer {
	return &LineFramer{
		LineReader: NewLineReaderWithMaxSize(rw, maxSize),
		LineWriter: NewLineWriterWithMaxSize(rw, maxSize),
	}
}

// SetLogger configures logging for both directions. Pass nil to disable.
func (f *LineFramer) SetLogger(logger buslog.Logger, connID string) {
	f.LineReader.SetLogger(logger, connID)
	f.LineWriter.SetLogger(logger, connID)
}
