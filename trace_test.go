package flatmsg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type traceRow struct {
	Name   string
	Offset int
	Abs    int
	Length int
	Value  string
	Depth  int
	Table  string
	Row    int
	Group  bool
}

func traceRows(entries []TraceEntry) []traceRow {
	rows := make([]traceRow, len(entries))
	for i, e := range entries {
		rows[i] = traceRow{e.Name, e.Offset, e.AbsoluteOffset, e.Length, e.Value, e.Depth, e.Table, e.Row, e.Group}
	}
	return rows
}

func TestEncodeTrace(t *testing.T) {
	enc, err := NewEncoder[openBlock]()
	require.NoError(t, err)

	data, trace, err := enc.EncodeTrace(&openBlock{Count: 7, Body: []byte("hello")})
	require.NoError(t, err)
	assert.Equal(t, "007hello", string(data))
	assert.Equal(t, []traceRow{
		{Name: "Count", Offset: 0, Abs: 0, Length: 3, Value: "007"},
		{Name: "Body", Offset: 3, Abs: 3, Length: 5, Value: "hello"},
	}, traceRows(trace))
}

func TestDecodeTrace(t *testing.T) {
	dec, err := NewDecoder[order]()
	require.NoError(t, err)

	_, n, trace, err := dec.DecodeTrace([]byte(sampleOrderText), 0, len(sampleOrderText))
	require.NoError(t, err)
	assert.Equal(t, len(sampleOrderText), n)

	assert.Equal(t, []traceRow{
		{Name: "ID", Offset: 0, Abs: 0, Length: 6, Value: "A1"},
		{Name: "Count", Offset: 6, Abs: 6, Length: 2, Value: "2"},
		{Name: "Lines", Offset: 8, Abs: 8, Length: 14, Group: true},
		{Name: "Lines", Offset: 8, Abs: 8, Length: 7, Depth: 1, Table: "Lines", Row: 1, Group: true},
		{Name: "Code", Offset: 0, Abs: 8, Length: 4, Value: "AB", Depth: 1, Table: "Lines", Row: 1},
		{Name: "Qty", Offset: 4, Abs: 12, Length: 3, Value: "5", Depth: 1, Table: "Lines", Row: 1},
		{Name: "Lines", Offset: 15, Abs: 15, Length: 7, Depth: 1, Table: "Lines", Row: 2, Group: true},
		{Name: "Code", Offset: 0, Abs: 15, Length: 4, Value: "CD", Depth: 1, Table: "Lines", Row: 2},
		{Name: "Qty", Offset: 4, Abs: 19, Length: 3, Value: "12", Depth: 1, Table: "Lines", Row: 2},
		{Name: "Total", Offset: 22, Abs: 22, Length: 9, Value: "123.45"},
	}, traceRows(trace))
}

func TestDecodeTraceNested(t *testing.T) {
	enc, err := NewEncoder[testMessage]()
	require.NoError(t, err)
	data, err := enc.Encode(&testMessage{Length: 1, SubClass: &subMessage{StringData1: "SUB", IntData: 9}})
	require.NoError(t, err)

	// Decode from an offset so the absolute and relative offsets differ.
	padded := append([]byte("XXXX"), data...)
	dec, err := NewDecoder[testMessage]()
	require.NoError(t, err)
	_, _, trace, err := dec.DecodeTrace(padded, 4, len(data))
	require.NoError(t, err)

	last := trace[len(trace)-4:]
	assert.Equal(t, []traceRow{
		{Name: "SubClass", Offset: 223, Abs: 227, Length: 35, Group: true},
		{Name: "StringData1", Offset: 0, Abs: 227, Length: 10, Value: "SUB", Depth: 1, Table: "SubClass"},
		{Name: "IntData", Offset: 10, Abs: 237, Length: 5, Value: "9", Depth: 1, Table: "SubClass"},
		{Name: "StringData2", Offset: 15, Abs: 242, Length: 20, Value: "", Depth: 1, Table: "SubClass"},
	}, traceRows(last))
	assert.Equal(t, "first text", last[1].Description)
}

func TestDecodeTraceOnError(t *testing.T) {
	dec, err := NewDecoder[order]()
	require.NoError(t, err)

	_, _, trace, err := dec.DecodeTrace([]byte("A1    02AB  0"), 0, 13)
	assert.ErrorIs(t, err, ErrDataTooShort)
	require.NotEmpty(t, trace)
	assert.Equal(t, "Code", trace[len(trace)-1].Name)
}
