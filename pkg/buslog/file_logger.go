package buslog

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/fxamacker/cbor/v2"
)

// FileLogger appends CBOR-encoded events to a writer, one record per
// event. The format is compact and append-only, suited to long captures
// of wire traffic that are analysed offline.
type FileLogger struct {
	mu  sync.Mutex
	w   io.Writer
	c   io.Closer
	enc *cbor.Encoder
}

// NewFileLogger creates a logger writing to w.
func NewFileLogger(w io.Writer) *FileLogger {
	return &FileLogger{w: w, enc: encMode.NewEncoder(w)}
}

// OpenFileLogger creates or truncates the named trace file.
func OpenFileLogger(path string) (*FileLogger, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace file: %w", err)
	}
	l := NewFileLogger(f)
	l.c = f
	return l, nil
}

// Log appends one event record. Encoding errors are silently dropped:
// logging must never take down the bus.
func (l *FileLogger) Log(event Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_ = l.enc.Encode(&event)
}

// Close closes the underlying file, if the logger owns one.
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.c != nil {
		return l.c.Close()
	}
	return nil
}

// Reader decodes events back from a trace produced by FileLogger.
type Reader struct {
	dec *cbor.Decoder
}

// NewReader creates a trace reader.
func NewReader(r io.Reader) *Reader {
	return &Reader{dec: decMode.NewDecoder(r)}
}

// Next returns the next event, or io.EOF at the end of the trace.
func (r *Reader) Next() (*Event, error) {
	var ev Event
	if err := r.dec.Decode(&ev); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("failed to decode trace event: %w", err)
	}
	return &ev, nil
}

// encMode is the CBOR encoder mode for trace records.
var encMode cbor.EncMode

// decMode is the CBOR decoder mode for trace records.
var decMode cbor.DecMode

func init() {
	var err error
	encMode, err = cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
		Time:          cbor.TimeUnixMicro,
	}.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR encoder mode: %v", err))
	}
	decMode, err = cbor.DecOptions{
		DupMapKey:   cbor.DupMapKeyQuiet,
		IndefLength: cbor.IndefLengthAllowed,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR decoder mode: %v", err))
	}
}
