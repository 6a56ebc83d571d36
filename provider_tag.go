package flatmsg

import (
	"reflect"
	"strconv"
	"strings"
)

// DefaultTagKey is the struct tag read by TagProvider when Key is empty.
const DefaultTagKey = "flat"

// TagProvider reads layouts from struct tags:
//
//	type Header struct {
//		Length int      `flat:"pos=1,len=8,kind=numeric"`
//		Raw    []byte   `flat:"pos=2,len=-1,kind=block"`
//		Name   string   `flat:"pos=3,len=30,desc=customer name"`
//		Rows   []Line   `flat:"pos=4,table=fixed,rows=5"`
//		Items  []Line   `flat:"pos=6,table=variable,count=Length"`
//		Sub    *Trailer `flat:"pos=5,kind=nested"`
//	}
//
// Keys: pos (required), len (required for scalar kinds), kind (default "string"),
// scale, desc, table, rows, count. The tag value "-" skips the field.
type TagProvider struct {
	Key string
}

// Declarations implements Provider.
func (p TagProvider) Declarations(t reflect.Type) ([]FieldDecl, error) {
	key := p.Key
	if key == "" {
		key = DefaultTagKey
	}

	var decls []FieldDecl
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		tag, ok := sf.Tag.Lookup(key)
		if !ok || tag == "-" {
			continue
		}
		decl, err := parseTag(sf.Name, tag)
		if err != nil {
			return nil, annotate(err, t, sf.Name)
		}
		decls = append(decls, decl)
	}
	return decls, nil
}

func parseTag(field, tag string) (FieldDecl, error) {
	decl := FieldDecl{Field: field, Kind: KindLocalString, Scale: -1}
	var hasPos, hasLen bool

	for _, part := range strings.Split(tag, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		k, v, ok := strings.Cut(part, "=")
		if !ok {
			return decl, metadataError(nil, "", "malformed tag option %q", part)
		}
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)

		var err error
		switch k {
		case "pos":
			decl.Position, err = strconv.Atoi(v)
			hasPos = true
		case "len":
			decl.Length, err = strconv.Atoi(v)
			hasLen = true
		case "kind":
			decl.Kind, err = ParseKind(v)
		case "scale":
			decl.Scale, err = strconv.Atoi(v)
		case "desc":
			decl.Description = v
		case "table":
			decl.Table, err = ParseTableKind(v)
		case "rows":
			decl.RowCount, err = strconv.Atoi(v)
		case "count":
			decl.CountField = v
		default:
			return decl, metadataError(nil, "", "unknown tag option %q", k)
		}
		if err != nil {
			return decl, &Error{Kind: ErrMetadataDefinition, Detail: "tag option " + k, Cause: err}
		}
	}

	if !hasPos {
		return decl, metadataError(nil, "", "tag has no pos")
	}
	if !hasLen && decl.Table == TableNone && decl.Kind != KindNested {
		return decl, metadataError(nil, "", "tag has no len")
	}
	if decl.Table != TableNone {
		decl.Kind = KindNested
	}
	return decl, nil
}
