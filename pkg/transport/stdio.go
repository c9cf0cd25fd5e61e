package transport

import (
	"io"
	"os"
)

// StdioPipe adapts a read/write stream pair to a single ReadWriteCloser.
// Used to speak the protocol over the standard streams of a spawned peer,
// or over the process's own stdin/stdout.
type StdioPipe struct {
	in  io.ReadCloser
	out io.WriteCloser
}

// NewStdioPipe combines a reader and a writer into one stream.
func NewStdioPipe(in io.ReadCloser, out io.WriteCloser) *StdioPipe {
	return &StdioPipe{in: in, out: out}
}

// Stdio returns a pipe over the process's own standard streams.
func Stdio() *StdioPipe {
	return &StdioPipe{in: os.Stdin, out: os.Stdout}
}

// Read reads from the input stream.
func (p *StdioPipe) Read(b []byte) (int, error) {
	return p.in.Read(b)
}

// Write writes to the output stream.
func (p *StdioPipe) Write(b []byte) (int, error) {
	return p.out.Write(b)
}

// Close closes both streams. The first error wins.
func (p *StdioPipe) Close() error {
	errIn := p.in.Close()
	errOut := p.out.Close()
	if errIn != nil {
		return errIn
	}
	return errOut
}
