package flatmsg

import (
	"errors"
	"fmt"
	"io"
	"reflect"

	"github.com/puzpuzpuz/xsync/v4"
	"gopkg.in/yaml.v3"
)

// YAMLProvider serves layouts kept outside the Go code, typically next to the
// copybooks of the system the records are exchanged with:
//
//	records:
//	  Header:
//	    - {field: Length, pos: 1, len: 8, kind: numeric}
//	    - {field: Name, pos: 2, len: 30, kind: string, desc: customer name}
//	    - {field: Lines, pos: 3, table: variable, count: Length}
//
// Go types are attached to layout names with Bind. Types that are not bound are
// passed to the fallback provider, if any.
type YAMLProvider struct {
	layouts map[string][]FieldDecl
	bound   *xsync.Map[reflect.Type, string]
	next    Provider
}

type yamlDocument struct {
	Records map[string][]yamlField `yaml:"records"`
}

type yamlField struct {
	Field string    `yaml:"field"`
	Desc  string    `yaml:"desc"`
	Pos   *int      `yaml:"pos"`
	Len   *int      `yaml:"len"`
	Kind  *Kind     `yaml:"kind"` // nil means KindLocalString
	Scale *int      `yaml:"scale"`
	Table TableKind `yaml:"table"`
	Rows  int       `yaml:"rows"`
	Count string    `yaml:"count"`
}

// LoadYAML reads a layout document.
func LoadYAML(r io.Reader) (*YAMLProvider, error) {
	var doc yamlDocument
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, &Error{Kind: ErrMetadataDefinition, Detail: "yaml layout", Cause: err}
	}

	p := &YAMLProvider{
		layouts: make(map[string][]FieldDecl, len(doc.Records)),
		bound:   xsync.NewMap[reflect.Type, string](),
	}
	for name, fields := range doc.Records {
		decls := make([]FieldDecl, 0, len(fields))
		for i, f := range fields {
			decl, err := f.decl()
			if err != nil {
				return nil, fmt.Errorf("%w (record %s, entry %d)", err, name, i)
			}
			decls = append(decls, decl)
		}
		p.layouts[name] = decls
	}
	return p, nil
}

func (f yamlField) decl() (FieldDecl, error) {
	if f.Field == "" {
		return FieldDecl{}, metadataError(nil, "", "layout entry has no field name")
	}
	if f.Pos == nil {
		return FieldDecl{}, metadataError(nil, f.Field, "layout entry has no pos")
	}
	decl := FieldDecl{
		Field:       f.Field,
		Description: f.Desc,
		Position:    *f.Pos,
		Kind:        KindLocalString,
		Scale:       -1,
		Table:       f.Table,
		RowCount:    f.Rows,
		CountField:  f.Count,
	}
	if f.Kind != nil {
		decl.Kind = *f.Kind
	}
	if f.Scale != nil {
		decl.Scale = *f.Scale
	}
	switch {
	case decl.Table != TableNone:
		decl.Kind = KindNested
	case f.Len != nil:
		decl.Length = *f.Len
	case decl.Kind != KindNested:
		return FieldDecl{}, metadataError(nil, f.Field, "layout entry has no len")
	}
	return decl, nil
}

// Bind attaches the Go type of sample (a struct or pointer to struct) to a layout name.
func (p *YAMLProvider) Bind(name string, sample any) *YAMLProvider {
	t := reflect.TypeOf(sample)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t != nil {
		p.bound.Store(t, name)
	}
	return p
}

// Fallback sets the provider consulted for types that are not bound.
func (p *YAMLProvider) Fallback(next Provider) *YAMLProvider {
	p.next = next
	return p
}

// Declarations implements Provider.
func (p *YAMLProvider) Declarations(t reflect.Type) ([]FieldDecl, error) {
	name, ok := p.bound.Load(t)
	if !ok {
		if p.next != nil {
			return p.next.Declarations(t)
		}
		return nil, nil
	}
	decls, ok := p.layouts[name]
	if !ok {
		return nil, metadataError(t, "", "no layout named %q", name)
	}
	return decls, nil
}
