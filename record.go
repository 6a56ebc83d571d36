package flatmsg

import "io"

// Record provides a Codec implementation for any record type, so a layout-annotated struct
// can be handed to code that works with encoding.BinaryMarshaler, io.WriterTo and friends.
// It uses the default resolver and charset.
type Record[T any] struct {
	Value T
}

// Statically assert that Record implements Codec.
var _ Codec = (*Record[struct{}])(nil)

// Size returns the encoded width of the record, or -1 if its layout is invalid.
func (r *Record[T]) Size() int {
	e, err := NewEncoder[T]()
	if err != nil {
		return -1
	}
	n, err := e.Size(&r.Value)
	if err != nil {
		return -1
	}
	return n
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (r *Record[T]) MarshalBinary() ([]byte, error) {
	e, err := NewEncoder[T]()
	if err != nil {
		return nil, err
	}
	return e.Encode(&r.Value)
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler. Bytes after the record must be
// spaces or NULs, otherwise ErrTrailingData is returned.
func (r *Record[T]) UnmarshalBinary(data []byte) error {
	d, err := NewDecoder[T]()
	if err != nil {
		return err
	}
	v, n, err := d.Decode(data, 0)
	if err != nil {
		return err
	}
	if err := checkTrailingBlank(data[n:]); err != nil {
		return err
	}
	r.Value = *v
	return nil
}

// ReadFrom implements io.ReaderFrom. It reads r to EOF.
func (r *Record[T]) ReadFrom(rd io.Reader) (int64, error) {
	return ReadFromGeneric(r, rd)
}

// WriteTo implements io.WriterTo.
func (r *Record[T]) WriteTo(w io.Writer) (int64, error) {
	return WriteToGeneric(r, w)
}

// MarshalTo encodes the record into p.
func (r *Record[T]) MarshalTo(p []byte) (int, error) {
	return MarshalToGeneric(r, p)
}
