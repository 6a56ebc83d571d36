package flatmsg

import (
	"bufio"
	"errors"
	"io"
)

// RecordReader reads consecutive fixed-width records of type T from a stream,
// such as a batch file. It tracks the first error; after an error (including io.EOF)
// every call returns it again.
type RecordReader[T any] struct {
	r     *bufio.Reader
	dec   *Decoder[T]
	buf   []byte
	count int64 // total bytes read
	err   error
}

// NewRecordReader creates a RecordReader. A nil dec means NewDecoder[T]().
// The layout of T must have a fixed width.
func NewRecordReader[T any](r io.Reader, dec *Decoder[T]) (*RecordReader[T], error) {
	if r == nil {
		return nil, ErrNilIO
	}
	if dec == nil {
		var err error
		if dec, err = NewDecoder[T](); err != nil {
			return nil, err
		}
	}
	size, ok := dec.schema.FixedSize()
	if !ok || size == 0 {
		return nil, &Error{Kind: ErrMetadataDefinition, Type: typeName(dec.schema.Type),
			Detail: "stream reading needs a fixed record width"}
	}

	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}
	return &RecordReader[T]{r: br, dec: dec, buf: make([]byte, size)}, nil
}

// Next returns the next record, or io.EOF at the end of the stream.
// A stream ending inside a record fails with ErrDataTooShort.
func (r *RecordReader[T]) Next() (*T, error) {
	if r.err != nil {
		return nil, r.err
	}

	n, err := io.ReadFull(r.r, r.buf)
	r.count += int64(n)
	switch {
	case err == nil:
	case errors.Is(err, io.ErrUnexpectedEOF):
		r.setError(tooShort(r.dec.schema.Type, "", len(r.buf)-n))
		return nil, r.err
	default:
		r.setError(err)
		return nil, r.err
	}

	v, _, err := r.dec.Decode(r.buf, 0)
	if err != nil {
		r.setError(err)
		return nil, r.err
	}
	return v, nil
}

// ReadAll reads records until the end of the stream.
func (r *RecordReader[T]) ReadAll() ([]*T, error) {
	var out []*T
	for {
		v, err := r.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, v)
	}
}

func (r *RecordReader[T]) Count() int64 { return r.count }
func (r *RecordReader[T]) Err() error   { return r.err }

func (r *RecordReader[T]) setError(err error) {
	if r.err == nil && err != nil {
		r.err = err
	}
}
