package flatmsg

import (
	"reflect"

	"golang.org/x/text/encoding"
)

// Decoder reads records of type T. It is immutable and safe for concurrent use.
type Decoder[T any] struct {
	schema  *Schema
	charset encoding.Encoding
}

// NewDecoder resolves the layout of T, which must be a struct type.
func NewDecoder[T any](opts ...Option) (*Decoder[T], error) {
	o, err := newOptions(opts)
	if err != nil {
		return nil, err
	}
	t := reflect.TypeFor[T]()
	if t.Kind() != reflect.Struct {
		return nil, &Error{Kind: ErrNotStruct, Type: typeName(t)}
	}
	s, err := o.resolver.Resolve(t)
	if err != nil {
		return nil, err
	}
	return &Decoder[T]{schema: s, charset: o.charset}, nil
}

// Schema returns the resolved layout of T.
func (d *Decoder[T]) Schema() *Schema { return d.schema }

// Decode reads one record from data starting at offset, allowing it to use all remaining bytes.
// It returns the record and the number of bytes it occupied.
func (d *Decoder[T]) Decode(data []byte, offset int) (*T, int, error) {
	return d.DecodeLimit(data, offset, len(data)-offset)
}

// DecodeLimit reads one record from data[offset:offset+limit].
func (d *Decoder[T]) DecodeLimit(data []byte, offset, limit int) (*T, int, error) {
	v, n, err := decodeRecord(walkContext{charset: d.charset}, d.schema, data, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	return v.Interface().(*T), n, nil
}

// DecodeTrace is DecodeLimit that also reports the offset, length and value of every field.
func (d *Decoder[T]) DecodeTrace(data []byte, offset, limit int) (*T, int, []TraceEntry, error) {
	ctx := walkContext{charset: d.charset, trace: &tracer{}}
	v, n, err := decodeRecord(ctx, d.schema, data, offset, limit)
	if err != nil {
		return nil, 0, ctx.trace.result(), err
	}
	return v.Interface().(*T), n, ctx.trace.result(), nil
}

// DecodeAll reads consecutive records until data is exhausted.
func (d *Decoder[T]) DecodeAll(data []byte) ([]*T, error) {
	var out []*T
	for offset := 0; offset < len(data); {
		v, n, err := d.Decode(data, offset)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, &Error{Kind: ErrMetadataDefinition, Type: typeName(d.schema.Type), Detail: "record has no width"}
		}
		out = append(out, v)
		offset += n
	}
	return out, nil
}

// decodeRecord reads one record of schema s from data[offset:offset+limit] and returns
// a pointer to it with the number of bytes consumed.
func decodeRecord(ctx walkContext, s *Schema, data []byte, offset, limit int) (reflect.Value, int, error) {
	if offset < 0 || limit < 0 || offset > len(data) || limit > len(data)-offset {
		return reflect.Value{}, 0, &Error{
			Kind:   ErrDataTooShort,
			Type:   typeName(s.Type),
			Detail: "invalid offset or limit",
			Short:  max(0, offset+limit-len(data)),
		}
	}

	ptr, err := s.New()
	if err != nil {
		return reflect.Value{}, 0, err
	}
	rec := ptr.Elem()
	ctx.base = offset

	consumed := 0
	for _, f := range s.Fields {
		var n int
		switch {
		case f.Table != TableNone:
			n, err = decodeTable(ctx, f, rec, data, offset+consumed, limit-consumed)
		case f.Kind == KindNested:
			n, err = decodeNested(ctx, f, rec, data, offset+consumed, limit-consumed)
		default:
			n, err = decodeScalar(ctx, f, rec, data, offset+consumed, limit-consumed)
		}
		if err != nil {
			return reflect.Value{}, 0, err
		}
		consumed += n
		if consumed > limit {
			return reflect.Value{}, 0, tooShort(s.Type, f.Name, consumed-limit)
		}
	}
	return ptr, consumed, nil
}

func decodeScalar(ctx walkContext, f *Descriptor, rec reflect.Value, data []byte, cursor, budget int) (int, error) {
	length := f.Length
	if f.Open() {
		length = budget
	}
	if length > budget {
		return 0, tooShort(rec.Type(), f.Name, length-budget)
	}

	v, err := toValue(data[cursor:cursor+length], f, ctx.charset)
	if err != nil {
		return 0, annotate(err, rec.Type(), f.Name)
	}
	if err := f.access.set(rec, v); err != nil {
		return 0, annotate(err, rec.Type(), f.Name)
	}

	if ctx.trace != nil {
		ctx.trace.add(ctx.entry(f, cursor-ctx.base, length, renderValue(v, f, charsetFor(f, ctx.charset))))
	}
	return length, nil
}

func decodeNested(ctx walkContext, f *Descriptor, rec reflect.Value, data []byte, cursor, budget int) (int, error) {
	group := ctx.trace.reserve()

	child, n, err := decodeRecord(ctx.child(f.Name, 0), f.Elem, data, cursor, budget)
	if err != nil {
		return 0, err
	}
	if !f.elemPtr {
		child = child.Elem()
	}
	if err := f.access.set(rec, child); err != nil {
		return 0, annotate(err, rec.Type(), f.Name)
	}

	e := ctx.entry(f, cursor-ctx.base, n, "")
	e.Group = true
	ctx.trace.fill(group, e)
	return n, nil
}

func decodeTable(ctx walkContext, f *Descriptor, rec reflect.Value, data []byte, cursor, budget int) (int, error) {
	rows := f.RowCount
	if f.Table == TableVariable {
		cv, err := f.count.access.get(rec)
		if err != nil {
			return 0, annotate(err, rec.Type(), f.count.Name)
		}
		if rows, err = countValue(cv); err != nil {
			return 0, annotate(err, rec.Type(), f.Name)
		}
	}

	var table reflect.Value
	if f.array {
		if rows > f.Type.Len() {
			return 0, &Error{Kind: ErrDataConversion, Type: typeName(rec.Type()), Field: f.Name,
				Detail: "row count exceeds array length"}
		}
		table = reflect.New(f.Type).Elem()
	} else {
		table = reflect.MakeSlice(f.Type, rows, rows)
	}

	group := ctx.trace.reserve()
	used := 0
	for i := 0; i < rows; i++ {
		rowCtx := ctx.child(f.Name, i+1)
		rowGroup := rowCtx.trace.reserve()

		child, n, err := decodeRecord(rowCtx, f.Elem, data, cursor+used, budget-used)
		if err != nil {
			return 0, err
		}
		if !f.elemPtr {
			child = child.Elem()
		}
		table.Index(i).Set(child)

		e := rowCtx.entry(f, cursor+used-ctx.base, n, "")
		e.Group = true
		rowCtx.trace.fill(rowGroup, e)
		used += n
	}

	if err := f.access.set(rec, table); err != nil {
		return 0, annotate(err, rec.Type(), f.Name)
	}

	e := ctx.entry(f, cursor-ctx.base, used, "")
	e.Group = true
	ctx.trace.fill(group, e)
	return used, nil
}
