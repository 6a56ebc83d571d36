package flatmsg

import (
	"bufio"
	"bytes"
	"io"
)

type flushWriter interface {
	io.Writer
	Flush() error
}

type bytesBufferWriter struct{ *bytes.Buffer }

func (bytesBufferWriter) Flush() error { return nil }

// Writer is a buffered writer for streams of records.
// It tracks the first error that occurs; after an error all writes become no-ops.
type Writer struct {
	w     flushWriter
	count int64 // total bytes written
	err   error // first error encountered
	depth int
}

// NewWriterSize creates a Writer with a buffer of at least size bytes.
// Writers that already buffer (Writer, bufio.Writer, BytesWriter, bytes.Buffer) are
// used as they are; the caller stays responsible for flushing a Writer or bufio.Writer
// it passes in.
func NewWriterSize(w io.Writer, size int) (*Writer, error) {
	if w == nil {
		return nil, ErrNilIO
	}

	switch bw := w.(type) {
	case *Writer:
		return &Writer{w: bw.w, depth: bw.depth + 1}, nil
	case *bufio.Writer:
		return &Writer{w: bw, depth: 1}, nil
	case *BytesWriter:
		return &Writer{w: bw}, nil
	case *bytes.Buffer:
		return &Writer{w: bytesBufferWriter{bw}}, nil
	}
	return &Writer{w: bufio.NewWriterSize(w, size)}, nil
}

// NewWriter creates a Writer with the default buffer size.
func NewWriter(w io.Writer) (*Writer, error) {
	return NewWriterSize(w, 0)
}

// Write implements the io.Writer interface.
func (w *Writer) Write(buf []byte) (int, error) {
	if w.err != nil {
		return 0, w.err
	}
	n, err := w.w.Write(buf)
	if n < 0 {
		n, err = 0, ErrInvalidWrite
	}
	w.count += int64(n)
	w.setError(err)
	return n, w.err
}

// WriteBytes writes a byte slice, recording any error.
func (w *Writer) WriteBytes(buf []byte) {
	if len(buf) == 0 || w.err != nil {
		return
	}
	_, _ = w.Write(buf)
}

// WriteFrom writes a value that knows how to write itself, such as a Record.
func (w *Writer) WriteFrom(wt io.WriterTo) {
	if wt == nil || w.err != nil {
		return
	}
	n, err := wt.WriteTo(w.w)
	w.count += n
	w.setError(err)
}

func (w *Writer) Count() int64 { return w.count }
func (w *Writer) Err() error   { return w.err }

// setError records the first non-nil error.
func (w *Writer) setError(err error) {
	if w.err == nil && err != nil {
		w.err = err
	}
}

// Result flushes the buffer and returns the final count and error state.
func (w *Writer) Result() (int64, error) {
	w.Flush()
	return w.count, w.err
}

// Flush writes any buffered data to the underlying io.Writer.
// Only the outermost Writer flushes.
func (w *Writer) Flush() error {
	if w.depth > 0 || w.err != nil {
		return w.err
	}
	err := w.w.Flush()
	w.setError(err)
	return err
}
