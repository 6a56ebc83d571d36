package flatmsg

import (
	"encoding"
	"io"
	"reflect"
)

// Sizer is an interface for types that can report their encoded width.
// This is useful for pre-allocating buffers before encoding.
type Sizer interface {
	// Size returns the width of the value in bytes when encoded.
	Size() int
}

// Marshaler defines the methods for encoding a record into bytes.
type Marshaler interface {
	// encoding.BinaryMarshaler allocates and returns the record bytes.
	encoding.BinaryMarshaler
	// io.WriterTo writes the record to a stream.
	io.WriterTo

	// MarshalTo encodes into a pre-allocated buffer, returning io.ErrShortWrite
	// if the buffer is too small.
	MarshalTo(buf []byte) (int, error)
}

// Unmarshaler defines the methods for decoding a record from bytes.
type Unmarshaler interface {
	encoding.BinaryUnmarshaler
	io.ReaderFrom
}

// Codec aggregates all encoding and decoding interfaces.
type Codec interface {
	Sizer
	Marshaler
	Unmarshaler
}

// Marshal encodes v, a struct or pointer to struct. A nil pointer is encoded as a default record.
func Marshal(v any, opts ...Option) ([]byte, error) {
	o, s, rec, err := prepare(v, opts)
	if err != nil {
		return nil, err
	}
	return encode(walkContext{charset: o.charset}, s, rec)
}

// Size returns the width v would be encoded at.
func Size(v any, opts ...Option) (int, error) {
	_, s, rec, err := prepare(v, opts)
	if err != nil {
		return 0, err
	}
	return recordSize(s, rec)
}

// Unmarshal decodes the record at the start of data into v, which must be a non-nil
// pointer to a struct, and returns the number of bytes it occupied.
func Unmarshal(data []byte, v any, opts ...Option) (int, error) {
	o, err := newOptions(opts)
	if err != nil {
		return 0, err
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return 0, &Error{Kind: ErrNotStruct, Detail: "Unmarshal needs a non-nil pointer"}
	}
	s, err := o.resolver.Resolve(rv.Type())
	if err != nil {
		return 0, err
	}
	if rv.Elem().Type() != s.Type {
		return 0, &Error{Kind: ErrNotStruct, Type: typeName(rv.Type()), Detail: "Unmarshal needs a pointer to a struct"}
	}

	ptr, n, err := decodeRecord(walkContext{charset: o.charset}, s, data, 0, len(data))
	if err != nil {
		return 0, err
	}
	rv.Elem().Set(ptr.Elem())
	return n, nil
}

// prepare resolves the schema of v and returns an addressable record value.
func prepare(v any, opts []Option) (options, *Schema, reflect.Value, error) {
	o, err := newOptions(opts)
	if err != nil {
		return o, nil, reflect.Value{}, err
	}
	s, err := o.resolver.Resolve(reflect.TypeOf(v))
	if err != nil {
		return o, nil, reflect.Value{}, err
	}

	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer && !rv.IsNil() && rv.Elem().Kind() == reflect.Pointer {
		rv = rv.Elem()
	}
	rec, err := recordValue(s, rv)
	return o, s, rec, err
}
