package flatmsg

import (
	"fmt"
	"math/big"
	"reflect"

	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
	"golang.org/x/text/encoding"
)

// TraceEntry records where one field was read or written during a traced call.
// A nested record and each table row get a group entry ahead of their fields.
type TraceEntry struct {
	Name           string
	Description    string
	Offset         int // relative to the enclosing record
	AbsoluteOffset int // relative to the start of the input or output
	Length         int
	Value          string
	Depth          int    // 0 for top-level fields
	Table          string // enclosing nested or table field, "" at the top level
	Row            int    // 1-based table row, 0 outside tables
	Group          bool
}

// tracer collects entries for one call. A nil tracer records nothing.
type tracer struct {
	entries []TraceEntry
}

func (t *tracer) add(e TraceEntry) {
	if t != nil {
		t.entries = append(t.entries, e)
	}
}

// reserve adds a placeholder for a group entry whose length is known only after
// its fields have been walked.
func (t *tracer) reserve() int {
	if t == nil {
		return -1
	}
	t.entries = append(t.entries, TraceEntry{})
	return len(t.entries) - 1
}

func (t *tracer) fill(i int, e TraceEntry) {
	if t != nil && i >= 0 {
		t.entries[i] = e
	}
}

func (t *tracer) result() []TraceEntry {
	if t == nil {
		return nil
	}
	return t.entries
}

// walkContext is the per-call state handed down the recursion. Children get a copy.
type walkContext struct {
	charset encoding.Encoding
	trace   *tracer
	base    int // absolute offset of the current record
	depth   int
	table   string
	row     int
}

func (c walkContext) child(table string, row int) walkContext {
	c.depth++
	c.table = table
	c.row = row
	return c
}

func (c walkContext) entry(d *Descriptor, offset, length int, value string) TraceEntry {
	return TraceEntry{
		Name:           d.Name,
		Description:    d.Description,
		Offset:         offset,
		AbsoluteOffset: c.base + offset,
		Length:         length,
		Value:          value,
		Depth:          c.depth,
		Table:          c.table,
		Row:            c.row,
	}
}

// renderValue formats a decoded field value for a trace entry.
func renderValue(v reflect.Value, d *Descriptor, cs encoding.Encoding) string {
	if !v.IsValid() {
		return ""
	}
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return ""
		}
		v = v.Elem()
	}

	switch x := v.Interface().(type) {
	case big.Int:
		return x.String()
	case decimal.Decimal:
		return x.String()
	}
	if d.Kind == KindBlock {
		s, err := decodeText(v.Bytes(), cs)
		if err != nil {
			return fmt.Sprintf("%q", v.Bytes())
		}
		return s
	}
	s, err := cast.ToStringE(v.Interface())
	if err != nil {
		return fmt.Sprint(v.Interface())
	}
	return s
}
