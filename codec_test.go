package flatmsg

import (
	"bytes"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"golang.org/x/text/encoding/korean"
)

func sampleMessage() *testMessage {
	return &testMessage{
		Length:     12345,
		RawData:    []byte("MSG"),
		StringData: "테스트",
		MessageArray: [5]subMessage{
			{StringData1: "ONE", IntData: 1, StringData2: "first row"},
			{StringData1: "TWO", IntData: -22, StringData2: "second row"},
		},
		SubClass: &subMessage{StringData1: "SUB", IntData: 333, StringData2: "nested"},
	}
}

func sampleOrder() *order {
	return &order{
		ID:    "A1",
		Count: 2,
		Lines: []line{{Code: "AB", Qty: 5}, {Code: "CD", Qty: 12}},
		Total: decimal.RequireFromString("123.45"),
	}
}

const sampleOrderText = "A1    " + "02" + "AB  005" + "CD  012" + "000012345"

// --- Codec Test Suite ---

type CodecTestSuite struct {
	suite.Suite
	enc *Encoder[testMessage]
	dec *Decoder[testMessage]
}

func (s *CodecTestSuite) SetupTest() {
	var err error
	s.enc, err = NewEncoder[testMessage](WithCharset(korean.EUCKR))
	s.Require().NoError(err)
	s.dec, err = NewDecoder[testMessage](WithCharsetName("euc-kr"))
	s.Require().NoError(err)
}

func (s *CodecTestSuite) TestRoundTrip() {
	msg := sampleMessage()

	data, err := s.enc.Encode(msg)
	s.Require().NoError(err)
	s.Require().Len(data, testMessageSize)

	s.Assert().Equal("00012345", string(data[:8]))
	s.Assert().Equal("MSG       ", string(data[8:18]))
	text, err := korean.EUCKR.NewEncoder().Bytes([]byte("테스트"))
	s.Require().NoError(err)
	s.Assert().Equal(append(text, bytes.Repeat([]byte{' '}, 30-len(text))...), data[18:48])
	s.Assert().Equal("TWO       -0022second row          ", string(data[83:118]))

	got, n, err := s.dec.Decode(data, 0)
	s.Require().NoError(err)
	s.Assert().Equal(testMessageSize, n)

	want := sampleMessage()
	want.RawData = []byte("MSG       ") // blocks keep their padding
	s.Assert().Equal(want, got)
}

func (s *CodecTestSuite) TestRoundTripOpenTrailer() {
	enc, err := NewEncoder[trailedMessage](WithCharsetName("euc-kr"))
	s.Require().NoError(err)
	dec, err := NewDecoder[trailedMessage](WithCharsetName("euc-kr"))
	s.Require().NoError(err)

	_, fixed := dec.Schema().FixedSize()
	s.Assert().False(fixed)

	msg := &trailedMessage{testMessage: *sampleMessage(), Trailer: []byte("free form trailer")}
	data, err := enc.Encode(msg)
	s.Require().NoError(err)
	s.Require().Len(data, testMessageSize+len(msg.Trailer))
	s.Assert().Equal("free form trailer", string(data[testMessageSize:]))

	head, err := s.enc.Encode(sampleMessage())
	s.Require().NoError(err)
	s.Assert().Equal(head, data[:testMessageSize])

	got, n, err := dec.Decode(data, 0)
	s.Require().NoError(err)
	s.Assert().Equal(len(data), n)

	want := *msg
	want.RawData = []byte("MSG       ")
	s.Assert().Equal(&want, got)

	// A limit ending at the fixed part leaves the trailer empty.
	got, n, err = dec.DecodeLimit(data, 0, testMessageSize)
	s.Require().NoError(err)
	s.Assert().Equal(testMessageSize, n)
	s.Assert().Empty(got.Trailer)
	s.Assert().Equal(want.SubClass, got.SubClass)
	s.Assert().Equal(want.MessageArray, got.MessageArray)
}

func (s *CodecTestSuite) TestFixedSize() {
	size, ok := s.dec.Schema().FixedSize()
	s.Assert().True(ok)
	s.Assert().Equal(testMessageSize, size)

	n, err := s.enc.Size(sampleMessage())
	s.Require().NoError(err)
	s.Assert().Equal(testMessageSize, n)
}

func (s *CodecTestSuite) TestNilNestedIsDefault() {
	msg := sampleMessage()
	msg.SubClass = nil

	data, err := s.enc.Encode(msg)
	s.Require().NoError(err)
	s.Assert().Equal("          00000                    ", string(data[testMessageSize-35:]))

	got, _, err := s.dec.Decode(data, 0)
	s.Require().NoError(err)
	s.Assert().Equal(&subMessage{}, got.SubClass)
}

func (s *CodecTestSuite) TestEncodeNil() {
	data, err := s.enc.Encode(nil)
	s.Require().NoError(err)
	s.Assert().Len(data, testMessageSize)
	s.Assert().Equal("00000000", string(data[:8]))
}

func (s *CodecTestSuite) TestDataTooShort() {
	data, err := s.enc.Encode(sampleMessage())
	s.Require().NoError(err)

	s.T().Run("ReportsShortfall", func(t *testing.T) {
		_, _, err := s.dec.Decode(data[:len(data)-5], 0)
		require.ErrorIs(t, err, ErrDataTooShort)

		var fe *Error
		require.True(t, errors.As(err, &fe))
		assert.Equal(t, 5, fe.Short)
		assert.Equal(t, "StringData2", fe.Field)
		assert.Equal(t, "flatmsg.subMessage", fe.Type)
	})

	s.T().Run("LimitInsideRecord", func(t *testing.T) {
		_, _, err := s.dec.DecodeLimit(data, 0, 100)
		assert.ErrorIs(t, err, ErrDataTooShort)
	})

	s.T().Run("InvalidOffset", func(t *testing.T) {
		_, _, err := s.dec.Decode(data, len(data)+1)
		assert.ErrorIs(t, err, ErrDataTooShort)
		_, _, err = s.dec.DecodeLimit(data, 0, len(data)+1)
		assert.ErrorIs(t, err, ErrDataTooShort)
		_, _, err = s.dec.DecodeLimit(data, -1, 10)
		assert.ErrorIs(t, err, ErrDataTooShort)
	})
}

func (s *CodecTestSuite) TestDecodeAtOffset() {
	data, err := s.enc.Encode(sampleMessage())
	s.Require().NoError(err)

	framed := append([]byte("HDR"), data...)
	framed = append(framed, "TRAILER"...)
	got, n, err := s.dec.Decode(framed, 3)
	s.Require().NoError(err)
	s.Assert().Equal(testMessageSize, n)
	s.Assert().Equal(12345, got.Length)
}

func TestCodecTestSuite(t *testing.T) {
	suite.Run(t, new(CodecTestSuite))
}

// --- Layout features ---

func TestVariableTable(t *testing.T) {
	enc, err := NewEncoder[order]()
	require.NoError(t, err)
	dec, err := NewDecoder[order]()
	require.NoError(t, err)

	_, fixed := dec.Schema().FixedSize()
	assert.False(t, fixed)

	t.Run("RoundTrip", func(t *testing.T) {
		data, err := enc.Encode(sampleOrder())
		require.NoError(t, err)
		assert.Equal(t, sampleOrderText, string(data))

		got, n, err := dec.Decode(data, 0)
		require.NoError(t, err)
		assert.Equal(t, len(sampleOrderText), n)
		assert.Equal(t, "A1", got.ID)
		assert.Equal(t, sampleOrder().Lines, got.Lines)
		assert.True(t, sampleOrder().Total.Equal(got.Total), got.Total.String())
	})

	t.Run("MissingRowsArePadded", func(t *testing.T) {
		o := sampleOrder()
		o.Count = 3
		data, err := enc.Encode(o)
		require.NoError(t, err)
		assert.Equal(t, "A1    03AB  005CD  012    000000012345", string(data))

		got, _, err := dec.Decode(data, 0)
		require.NoError(t, err)
		assert.Equal(t, []line{{"AB", 5}, {"CD", 12}, {}}, got.Lines)
	})

	t.Run("ExtraRowsAreDropped", func(t *testing.T) {
		o := sampleOrder()
		o.Count = 1
		data, err := enc.Encode(o)
		require.NoError(t, err)
		assert.Equal(t, "A1    01AB  005000012345", string(data))
	})

	t.Run("NegativeCount", func(t *testing.T) {
		o := sampleOrder()
		o.Count = -1
		_, err := enc.Encode(o)
		assert.ErrorIs(t, err, ErrDataConversion)

		_, _, err = dec.Decode([]byte("A1    -1000000000"), 0)
		assert.ErrorIs(t, err, ErrDataConversion)
	})

	t.Run("DecodeAll", func(t *testing.T) {
		o := sampleOrder()
		o.Count = 1
		first, err := enc.Encode(o)
		require.NoError(t, err)

		all, err := dec.DecodeAll([]byte(sampleOrderText + string(first)))
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Len(t, all[0].Lines, 2)
		assert.Len(t, all[1].Lines, 1)

		_, err = dec.DecodeAll([]byte(sampleOrderText + "A1"))
		assert.ErrorIs(t, err, ErrDataTooShort)
	})
}

func TestOpenBlock(t *testing.T) {
	enc, err := NewEncoder[openBlock]()
	require.NoError(t, err)
	dec, err := NewDecoder[openBlock]()
	require.NoError(t, err)

	data, err := enc.Encode(&openBlock{Count: 7, Body: []byte("hello")})
	require.NoError(t, err)
	assert.Equal(t, "007hello", string(data))

	got, n, err := dec.Decode(data, 0)
	require.NoError(t, err)
	assert.Equal(t, 8, n)
	assert.Equal(t, []byte("hello"), got.Body)

	got, n, err = dec.DecodeLimit(data, 0, 5)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, []byte("he"), got.Body)

	got, n, err = dec.Decode([]byte("007"), 0)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Empty(t, got.Body)

	data, err = enc.Encode(&openBlock{Count: 1})
	require.NoError(t, err)
	assert.Equal(t, "001", string(data))
}

func TestAncestorFields(t *testing.T) {
	data, err := Marshal(&withHeader{header: header{Kind: "AB"}, Body: "xyz"})
	require.NoError(t, err)
	assert.Equal(t, "ABxyz  ", string(data))

	var got withHeader
	n, err := Unmarshal(data, &got)
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	assert.Equal(t, "AB", got.Kind)
	assert.Equal(t, "xyz", got.Body)
}

func TestAccessorMethods(t *testing.T) {
	data, err := Marshal(private{code: "AB12", Value: 7})
	require.NoError(t, err)
	assert.Equal(t, "AB12007", string(data))

	var got private
	_, err = Unmarshal(data, &got)
	require.NoError(t, err)
	assert.Equal(t, "AB12", got.code)
	assert.Equal(t, 7, got.Value)
}

func TestDefaults(t *testing.T) {
	t.Run("MissingRows", func(t *testing.T) {
		data, err := Marshal(&ledger{Entries: []*defaulted{{Currency: "USD", Amount: 5}}})
		require.NoError(t, err)
		assert.Equal(t, "USD00005KRW00000KRW00000", string(data))

		var got ledger
		_, err = Unmarshal(data, &got)
		require.NoError(t, err)
		assert.Equal(t, []*defaulted{{"USD", 5}, {"KRW", 0}, {"KRW", 0}}, got.Entries)
	})

	t.Run("NilRow", func(t *testing.T) {
		data, err := Marshal(&ledger{Entries: []*defaulted{nil, {Currency: "EUR", Amount: 1}}})
		require.NoError(t, err)
		assert.Equal(t, "KRW00000EUR00001KRW00000", string(data))
	})

	t.Run("ExtraRows", func(t *testing.T) {
		rows := []*defaulted{{"A", 1}, {"B", 2}, {"C", 3}, {"D", 4}}
		n, err := Size(&ledger{Entries: rows})
		require.NoError(t, err)
		assert.Equal(t, 24, n)
	})

	t.Run("NilRecord", func(t *testing.T) {
		data, err := Marshal((*defaulted)(nil))
		require.NoError(t, err)
		assert.Equal(t, "KRW00000", string(data))
	})

	t.Run("FailingDefaults", func(t *testing.T) {
		_, err := Marshal((*broken)(nil))
		assert.ErrorIs(t, err, ErrInstanceCreate)

		var b broken
		_, err = Unmarshal([]byte("001"), &b)
		assert.ErrorIs(t, err, ErrInstanceCreate)
	})
}

func TestUntypedAPI(t *testing.T) {
	t.Run("MarshalValue", func(t *testing.T) {
		data, err := Marshal(*sampleOrder())
		require.NoError(t, err)
		assert.Equal(t, sampleOrderText, string(data))
	})

	t.Run("Size", func(t *testing.T) {
		n, err := Size(sampleOrder())
		require.NoError(t, err)
		assert.Equal(t, len(sampleOrderText), n)
	})

	t.Run("UnmarshalNeedsPointer", func(t *testing.T) {
		_, err := Unmarshal([]byte(sampleOrderText), order{})
		assert.ErrorIs(t, err, ErrNotStruct)
		_, err = Unmarshal([]byte(sampleOrderText), (*order)(nil))
		assert.ErrorIs(t, err, ErrNotStruct)
	})

	t.Run("NotStruct", func(t *testing.T) {
		_, err := NewDecoder[int]()
		assert.ErrorIs(t, err, ErrNotStruct)
		_, err = NewEncoder[*order]()
		assert.ErrorIs(t, err, ErrNotStruct)
		_, err = Marshal(42)
		assert.ErrorIs(t, err, ErrMetadataDefinition)
	})

	t.Run("UnknownCharset", func(t *testing.T) {
		_, err := NewDecoder[order](WithCharsetName("no-such-charset"))
		assert.ErrorIs(t, err, ErrMetadataDefinition)
	})
}

func TestEncoderWriteTo(t *testing.T) {
	enc, err := NewEncoder[order]()
	require.NoError(t, err)

	var buf bytes.Buffer
	n, err := enc.WriteTo(&buf, sampleOrder(), sampleOrder())
	require.NoError(t, err)
	assert.EqualValues(t, 2*len(sampleOrderText), n)
	assert.Equal(t, sampleOrderText+sampleOrderText, buf.String())

	bad := sampleOrder()
	bad.Count = -1
	buf.Reset()
	n, err = enc.WriteTo(&buf, sampleOrder(), bad)
	assert.ErrorIs(t, err, ErrDataConversion)
	assert.EqualValues(t, len(sampleOrderText), n)
}

type optional struct {
	Name   *string          `flat:"pos=1,len=4"`
	Amount *int64           `flat:"pos=2,len=4,kind=numeric"`
	Rate   *decimal.Decimal `flat:"pos=3,len=4,kind=numeric,scale=3"`
}

func TestPointerFields(t *testing.T) {
	data, err := Marshal(&optional{Name: Ptr("ab"), Amount: Ptr(int64(-7)), Rate: Ptr(decimal.RequireFromString("1.5"))})
	require.NoError(t, err)
	assert.Equal(t, "ab  -0071500", string(data))

	var got optional
	_, err = Unmarshal(data, &got)
	require.NoError(t, err)
	assert.Equal(t, "ab", *got.Name)
	assert.Equal(t, int64(-7), *got.Amount)
	assert.Equal(t, "1.5", got.Rate.String())

	data, err = Marshal(optional{})
	require.NoError(t, err)
	assert.Equal(t, "            ", string(data), "nil pointers encode as blanks")
}
