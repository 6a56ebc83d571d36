package flatmsg

import (
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
)

// DefaultCharset is used for KindLocalString fields when no charset option is given.
var DefaultCharset encoding.Encoding = unicode.UTF8

// LookupCharset returns the encoding registered under an IANA or WHATWG name,
// e.g. "euc-kr", "shift_jis", "windows-1252".
func LookupCharset(name string) (encoding.Encoding, error) {
	cs, err := htmlindex.Get(name)
	if err != nil {
		return nil, &Error{Kind: ErrMetadataDefinition, Detail: "charset " + name, Cause: err}
	}
	return cs, nil
}

// charsetFor returns the charset d is converted with.
func charsetFor(d *Descriptor, cs encoding.Encoding) encoding.Encoding {
	if d.Kind == KindUTF8 {
		return unicode.UTF8
	}
	return cs
}

func decodeText(data []byte, cs encoding.Encoding) (string, error) {
	out, err := cs.NewDecoder().Bytes(data)
	if err != nil {
		return "", &Error{Kind: ErrDataConversion, Detail: "decode text", Cause: err}
	}
	return string(out), nil
}

func encodeText(s string, cs encoding.Encoding) ([]byte, error) {
	out, err := cs.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, &Error{Kind: ErrDataConversion, Detail: "encode text", Cause: err}
	}
	return out, nil
}
