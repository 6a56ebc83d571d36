package flatmsg

import "reflect"

// FieldDecl is the layout declared for one struct field, before validation.
// Nested and row types are taken from the Go type of the field.
type FieldDecl struct {
	Field       string // Go field name
	Description string
	Position    int // sort key; gaps are allowed
	Length      int // bytes; -1 consumes the rest of the budget (Block only)
	Kind        Kind
	Scale       int // implied fractional digits for Numeric; -1 means unconstrained
	Table       TableKind
	RowCount    int    // TableFixed
	CountField  string // TableVariable: Go name of an earlier Numeric field
}

// Provider supplies the declared layout of a struct type's own fields.
// Fields of embedded structs are requested separately for the embedded type.
// A type without any declarations returns an empty slice.
type Provider interface {
	Declarations(t reflect.Type) ([]FieldDecl, error)
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(t reflect.Type) ([]FieldDecl, error)

// Declarations implements Provider.
func (f ProviderFunc) Declarations(t reflect.Type) ([]FieldDecl, error) { return f(t) }

// Defaulter is implemented by record types that need more than the zero value
// when default-constructed for decoding, missing table rows or nil nested records.
type Defaulter interface {
	SetDefaults() error
}
