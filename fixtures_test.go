package flatmsg

import (
	"errors"

	"github.com/shopspring/decimal"
)

// --- Record types shared by the tests ---

type subMessage struct {
	StringData1 string `flat:"pos=1,len=10,desc=first text"`
	IntData     int    `flat:"pos=2,len=5,kind=numeric"`
	StringData2 string `flat:"pos=3,len=20"`
}

type testMessage struct {
	Length       int           `flat:"pos=1,len=8,kind=numeric"`
	RawData      []byte        `flat:"pos=2,len=10,kind=block"`
	StringData   string        `flat:"pos=3,len=30"`
	MessageArray [5]subMessage `flat:"pos=4,table=fixed,rows=5"`
	SubClass     *subMessage   `flat:"pos=5,kind=nested"`
}

const testMessageSize = 8 + 10 + 30 + 5*35 + 35

// trailedMessage is testMessage followed by an open block holding the rest of the record.
type trailedMessage struct {
	testMessage
	Trailer []byte `flat:"pos=6,len=-1,kind=block"`
}

type line struct {
	Code string `flat:"pos=1,len=4,kind=alphanum"`
	Qty  int    `flat:"pos=2,len=3,kind=numeric"`
}

type order struct {
	ID    string          `flat:"pos=1,len=6"`
	Count int             `flat:"pos=2,len=2,kind=numeric"`
	Lines []line          `flat:"pos=3,table=variable,count=Count"`
	Total decimal.Decimal `flat:"pos=4,len=9,kind=numeric,scale=2"`
}

type openBlock struct {
	Count int    `flat:"pos=1,len=3,kind=numeric"`
	Body  []byte `flat:"pos=2,len=-1,kind=block"`
}

type header struct {
	Kind string `flat:"pos=1,len=2"`
}

type withHeader struct {
	header
	Body string `flat:"pos=1,len=5"`
}

type private struct {
	code  string `flat:"pos=1,len=4"`
	Value int    `flat:"pos=2,len=3,kind=numeric"`
}

func (p *private) Code() string     { return p.code }
func (p *private) SetCode(v string) { p.code = v }

type defaulted struct {
	Currency string `flat:"pos=1,len=3"`
	Amount   int    `flat:"pos=2,len=5,kind=numeric"`
}

func (d *defaulted) SetDefaults() error {
	d.Currency = "KRW"
	return nil
}

type ledger struct {
	Entries []*defaulted `flat:"pos=1,table=fixed,rows=3"`
}

type broken struct {
	Amount int `flat:"pos=1,len=3,kind=numeric"`
}

func (b *broken) SetDefaults() error { return errors.New("no defaults") }
