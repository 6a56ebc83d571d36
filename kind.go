package flatmsg

import (
	"fmt"
	"strings"
)

// Kind selects how a field's bytes are converted to and from its Go value.
type Kind int

const (
	// KindBlock is raw bytes ([]byte), copied unchanged.
	KindBlock Kind = iota
	// KindNumeric is zero-padded decimal digit text with an optional implied scale.
	KindNumeric
	// KindAlphaNumeric is printable ASCII; other bytes decode as '?'.
	KindAlphaNumeric
	// KindLocalString is text in the configured charset.
	KindLocalString
	// KindUTF8 is text that is always UTF-8, whatever the configured charset.
	KindUTF8
	// KindNested is a sub-record laid out inline.
	KindNested
)

func (k Kind) String() string {
	switch k {
	case KindBlock:
		return "block"
	case KindNumeric:
		return "numeric"
	case KindAlphaNumeric:
		return "alphanum"
	case KindLocalString:
		return "string"
	case KindUTF8:
		return "utf8"
	case KindNested:
		return "nested"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind parses the textual kind used in struct tags and layout documents.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "block":
		return KindBlock, nil
	case "numeric", "number":
		return KindNumeric, nil
	case "alphanum", "alphanumeric":
		return KindAlphaNumeric, nil
	case "string", "local", "":
		return KindLocalString, nil
	case "utf8", "utf-8":
		return KindUTF8, nil
	case "nested", "class":
		return KindNested, nil
	default:
		return 0, fmt.Errorf("%w: unknown kind %q", ErrMetadataDefinition, s)
	}
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	v, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// TableKind tells whether a field is a repeating group and how its row count is obtained.
type TableKind int

const (
	TableNone     TableKind = iota
	TableFixed              // row count declared in the layout
	TableVariable           // row count read from an earlier numeric field
)

func (t TableKind) String() string {
	switch t {
	case TableNone:
		return "none"
	case TableFixed:
		return "fixed"
	case TableVariable:
		return "variable"
	default:
		return fmt.Sprintf("table(%d)", int(t))
	}
}

// ParseTableKind parses "fixed", "variable" or "none".
func ParseTableKind(s string) (TableKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return TableNone, nil
	case "fixed":
		return TableFixed, nil
	case "variable":
		return TableVariable, nil
	default:
		return 0, fmt.Errorf("%w: unknown table kind %q", ErrMetadataDefinition, s)
	}
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *TableKind) UnmarshalText(text []byte) error {
	v, err := ParseTableKind(string(text))
	if err != nil {
		return err
	}
	*t = v
	return nil
}
