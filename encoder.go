package flatmsg

import (
	"fmt"
	"io"
	"reflect"

	"golang.org/x/text/encoding"
)

// Encoder writes records of type T. It is immutable and safe for concurrent use.
type Encoder[T any] struct {
	schema  *Schema
	charset encoding.Encoding
}

// NewEncoder resolves the layout of T, which must be a struct type.
func NewEncoder[T any](opts ...Option) (*Encoder[T], error) {
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
	return &Encoder[T]{schema: s, charset: o.charset}, nil
}

// Schema returns the resolved layout of T.
func (e *Encoder[T]) Schema() *Schema { return e.schema }

// Size returns the encoded width of v. A nil v is a default record.
func (e *Encoder[T]) Size(v *T) (int, error) {
	rec, err := e.record(v)
	if err != nil {
		return 0, err
	}
	return recordSize(e.schema, rec)
}

// Encode returns the bytes of v. A nil v is encoded as a default record.
func (e *Encoder[T]) Encode(v *T) ([]byte, error) {
	rec, err := e.record(v)
	if err != nil {
		return nil, err
	}
	return encode(walkContext{charset: e.charset}, e.schema, rec)
}

// EncodeTrace is Encode that also reports the offset, length and bytes of every field.
func (e *Encoder[T]) EncodeTrace(v *T) ([]byte, []TraceEntry, error) {
	rec, err := e.record(v)
	if err != nil {
		return nil, nil, err
	}
	ctx := walkContext{charset: e.charset, trace: &tracer{}}
	b, err := encode(ctx, e.schema, rec)
	return b, ctx.trace.result(), err
}

// WriteTo encodes records back to back into w.
func (e *Encoder[T]) WriteTo(w io.Writer, records ...*T) (int64, error) {
	bw, err := NewWriter(w)
	if err != nil {
		return 0, err
	}
	for _, v := range records {
		b, err := e.Encode(v)
		if err != nil {
			bw.Flush()
			return bw.Count(), err
		}
		bw.WriteBytes(b)
	}
	return bw.Result()
}

func (e *Encoder[T]) record(v *T) (reflect.Value, error) {
	if v == nil {
		ptr, err := e.schema.New()
		if err != nil {
			return reflect.Value{}, err
		}
		return ptr.Elem(), nil
	}
	return reflect.ValueOf(v).Elem(), nil
}

// encode runs the length pass, then writes rec into a buffer of exactly that size.
func encode(ctx walkContext, s *Schema, rec reflect.Value) ([]byte, error) {
	size, err := recordSize(s, rec)
	if err != nil {
		return nil, err
	}
	w := NewBytesWriter(make([]byte, size))
	if err := encodeRecord(ctx, s, rec, w); err != nil {
		return nil, err
	}
	if w.Len() != size {
		return nil, &Error{Kind: ErrDataConversion, Type: typeName(s.Type),
			Detail: fmt.Sprintf("length mismatch: wrote %d of %d bytes", w.Len(), size)}
	}
	return w.Bytes(), nil
}

// recordSize is the length pass: the width rec will be encoded at.
func recordSize(s *Schema, rec reflect.Value) (int, error) {
	size := 0
	for _, f := range s.Fields {
		switch {
		case f.Table != TableNone:
			rows, err := encodeRowCount(f, rec)
			if err != nil {
				return 0, err
			}
			rowSize, err := defaultSize(f.Elem)
			if err != nil {
				return 0, err
			}
			size += rows * rowSize

		case f.Kind == KindNested:
			child, err := nestedValue(f, rec)
			if err != nil {
				return 0, err
			}
			n, err := recordSize(f.Elem, child)
			if err != nil {
				return 0, err
			}
			size += n

		case f.Open():
			v, err := f.access.get(rec)
			if err != nil {
				return 0, annotate(err, rec.Type(), f.Name)
			}
			size += v.Len()

		default:
			size += f.Length
		}
	}
	return size, nil
}

// defaultSize is the width of a default record of s.
func defaultSize(s *Schema) (int, error) {
	if n, ok := s.FixedSize(); ok {
		return n, nil
	}
	ptr, err := s.New()
	if err != nil {
		return 0, err
	}
	return recordSize(s, ptr.Elem())
}

func encodeRecord(ctx walkContext, s *Schema, rec reflect.Value, w *BytesWriter) error {
	ctx.base = w.Len()

	for _, f := range s.Fields {
		start := w.Len()
		switch {
		case f.Table != TableNone:
			if err := encodeTable(ctx, f, rec, w); err != nil {
				return err
			}

		case f.Kind == KindNested:
			group := ctx.trace.reserve()
			child, err := nestedValue(f, rec)
			if err != nil {
				return err
			}
			if err := encodeRecord(ctx.child(f.Name, 0), f.Elem, child, w); err != nil {
				return err
			}
			e := ctx.entry(f, start-ctx.base, w.Len()-start, "")
			e.Group = true
			ctx.trace.fill(group, e)

		default:
			v, err := f.access.get(rec)
			if err != nil {
				return annotate(err, rec.Type(), f.Name)
			}
			cs := charsetFor(f, ctx.charset)
			b, err := toBytes(v, f.Length, f.Scale, cs)
			if err != nil {
				return annotate(err, rec.Type(), f.Name)
			}
			if _, err := w.Write(b); err != nil {
				return &Error{Kind: ErrDataConversion, Type: typeName(rec.Type()), Field: f.Name,
					Detail: "length mismatch", Cause: err}
			}
			if ctx.trace != nil {
				ctx.trace.add(ctx.entry(f, start-ctx.base, len(b), renderBytes(b, cs)))
			}
		}
	}
	return nil
}

func encodeTable(ctx walkContext, f *Descriptor, rec reflect.Value, w *BytesWriter) error {
	rows, err := encodeRowCount(f, rec)
	if err != nil {
		return err
	}
	table, err := f.access.get(rec)
	if err != nil {
		return annotate(err, rec.Type(), f.Name)
	}

	group := ctx.trace.reserve()
	start := w.Len()
	for i := 0; i < rows; i++ {
		rowStart := w.Len()
		rowCtx := ctx.child(f.Name, i+1)
		rowGroup := rowCtx.trace.reserve()

		row, err := rowValue(f, table, i)
		if err != nil {
			return err
		}
		if err := encodeRecord(rowCtx, f.Elem, row, w); err != nil {
			return err
		}

		e := rowCtx.entry(f, rowStart-ctx.base, w.Len()-rowStart, "")
		e.Group = true
		rowCtx.trace.fill(rowGroup, e)
	}

	e := ctx.entry(f, start-ctx.base, w.Len()-start, "")
	e.Group = true
	ctx.trace.fill(group, e)
	return nil
}

func encodeRowCount(f *Descriptor, rec reflect.Value) (int, error) {
	if f.Table != TableVariable {
		return f.RowCount, nil
	}
	cv, err := f.count.access.get(rec)
	if err != nil {
		return 0, annotate(err, rec.Type(), f.count.Name)
	}
	n, err := countValue(cv)
	if err != nil {
		return 0, annotate(err, rec.Type(), f.Name)
	}
	return n, nil
}

// nestedValue returns an addressable nested record, a default one in place of nil.
func nestedValue(f *Descriptor, rec reflect.Value) (reflect.Value, error) {
	v, err := f.access.get(rec)
	if err != nil {
		return reflect.Value{}, annotate(err, rec.Type(), f.Name)
	}
	return recordValue(f.Elem, v)
}

// rowValue returns row i of table, or a default row when the table is shorter.
func rowValue(f *Descriptor, table reflect.Value, i int) (reflect.Value, error) {
	if !table.IsValid() || i >= table.Len() {
		ptr, err := f.Elem.New()
		if err != nil {
			return reflect.Value{}, err
		}
		return ptr.Elem(), nil
	}
	return recordValue(f.Elem, table.Index(i))
}

func recordValue(s *Schema, v reflect.Value) (reflect.Value, error) {
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			ptr, err := s.New()
			if err != nil {
				return reflect.Value{}, err
			}
			return ptr.Elem(), nil
		}
		return v.Elem(), nil
	}
	if !v.CanAddr() {
		cp := reflect.New(v.Type()).Elem()
		cp.Set(v)
		return cp, nil
	}
	return v, nil
}

func renderBytes(b []byte, cs encoding.Encoding) string {
	s, err := decodeText(b, cs)
	if err != nil {
		return string(b)
	}
	return s
}
