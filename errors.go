package flatmsg

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

var (
	// ErrMetadataDefinition indicates an invalid record layout: a length/scale conflict, a Go field type
	// that does not match its declared kind, a missing accessor or an invalid row-count reference.
	ErrMetadataDefinition = errors.New("flatmsg: invalid metadata definition")

	// ErrSelfReference indicates a nested or table field whose type is its own declaring record type.
	ErrSelfReference = fmt.Errorf("%w: self reference detected", ErrMetadataDefinition)

	// ErrCrossReference indicates a record type that reappears on its own ancestor chain (A -> B -> A).
	ErrCrossReference = fmt.Errorf("%w: cross reference detected", ErrMetadataDefinition)

	// ErrNotStruct indicates that a record was requested for a type that is not a struct.
	ErrNotStruct = fmt.Errorf("%w: record type must be a struct", ErrMetadataDefinition)

	// ErrDataTooShort indicates that the input ended before the declared layout was complete.
	// Truncated data is a format error and is never padded.
	ErrDataTooShort = errors.New("flatmsg: data too short")

	// ErrFieldAccess indicates that reading or assigning a field value failed.
	ErrFieldAccess = errors.New("flatmsg: field access failed")

	// ErrDataConversion indicates a byte/value conversion that is impossible or would lose data.
	ErrDataConversion = errors.New("flatmsg: data conversion failed")

	// ErrInstanceCreate indicates that a record or row could not be default-constructed.
	ErrInstanceCreate = errors.New("flatmsg: cannot create instance")

	// ErrTrailingData is returned by Record.UnmarshalBinary when non-blank bytes follow the record.
	ErrTrailingData = errors.New("flatmsg: non-blank trailing data found after decoding")

	// ErrNilIO indicates that NewWriter/NewRecordReader was called with a nil io.Writer/io.Reader.
	ErrNilIO = errors.New("flatmsg: NewWriter/NewRecordReader called with a nil io.Reader/io.Writer")

	// ErrInvalidWrite indicates that an io.Writer returned an invalid (negative) count from Write.
	ErrInvalidWrite = errors.New("flatmsg: writer returned invalid count from Write")
)

// Error carries the context of a failed schema resolution, encode or decode call.
// errors.Is matches it against its Kind, so callers can test for ErrDataTooShort and friends
// without unwrapping.
type Error struct {
	Kind   error  // one of the Err* sentinels
	Type   string // record type, e.g. "bank.Transfer"
	Field  string // Go field name
	Detail string
	Short  int // missing bytes, set for ErrDataTooShort
	Cause  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())

	if e.Type != "" || e.Field != "" {
		b.WriteString(" at ")
		b.WriteString(e.Type)
		if e.Type != "" && e.Field != "" {
			b.WriteByte('.')
		}
		b.WriteString(e.Field)
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Short > 0 {
		fmt.Fprintf(&b, " (%d bytes short)", e.Short)
	}
	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}
	return b.String()
}

// Is reports whether target is the error's kind or one of the kinds it refines.
func (e *Error) Is(target error) bool {
	return errors.Is(e.Kind, target)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

func typeName(t reflect.Type) string {
	if t == nil {
		return ""
	}
	return t.String()
}

func metadataError(t reflect.Type, field, format string, args ...any) *Error {
	return &Error{Kind: ErrMetadataDefinition, Type: typeName(t), Field: field, Detail: fmt.Sprintf(format, args...)}
}

func conversionError(format string, args ...any) *Error {
	return &Error{Kind: ErrDataConversion, Detail: fmt.Sprintf(format, args...)}
}

func tooShort(t reflect.Type, field string, short int) *Error {
	return &Error{Kind: ErrDataTooShort, Type: typeName(t), Field: field, Short: short}
}

// annotate fills in the record type and field of an *Error raised without that context,
// e.g. by the value converter.
func annotate(err error, t reflect.Type, field string) error {
	var fe *Error
	if errors.As(err, &fe) && fe.Type == "" && fe.Field == "" {
		fe.Type = typeName(t)
		fe.Field = field
	}
	return err
}
