package transport

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLineRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	w := NewLineWriter(&buf)

	require.NoError(t, w.WriteLine([]byte(`{"enumerate":{}}`)))
	require.NoError(t, w.WriteLine([]byte(`{"delete":{"device":"foo"}}`)))

	r := NewLineReader(&buf)

	line, err := r.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, `{"enumerate":{}}`, string(line))

	line, err = r.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, `{"delete":{"device":"foo"}}`, string(line))

	_, err = r.ReadLine()
	assert.ErrorIs(t, err, io.EOF)
}

func TestReadSkipsBlankLines(t *testing.T) {
	r := NewLineReader(strings.NewReader("\n  \n{\"enumerate\":{}}\n\n"))

	line, err := r.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, `{"enumerate":{}}`, string(line))

	_, err = r.ReadLine()
	assert.ErrorIs(t, err, io.EOF)
}

func TestWriteRejectsBadLines(t *testing.T) {
	w := NewLineWriterWithMaxSize(&bytes.Buffer{}, 8)

	assert.ErrorIs(t, w.WriteLine(nil), ErrLineEmpty)
	assert.ErrorIs(t, w.WriteLine([]byte("123456789")), ErrLineTooLong)
	assert.Error(t, w.WriteLine([]byte("a\nb")))
}

func TestReadLineTooLong(t *testing.T) {
	long := strings.Repeat("x", 64) + "\n"
	r := NewLineReaderWithMaxSize(strings.NewReader(long), 16)

	_, err := r.ReadLine()
	assert.ErrorIs(t, err, ErrLineTooLong)
}

func TestReadCopiesLine(t *testing.T) {
	r := NewLineReader(strings.NewReader("first-line-padding-padding\nsecond\n"))

	first, err := r.ReadLine()
	require.NoError(t, err)

	_, err = r.ReadLine()
	require.NoError(t, err)

	// The first slice must not be clobbered by the next read.
	assert.Equal(t, "first-line-padding-padding", string(first))
}
