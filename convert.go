package flatmsg

import (
	"bytes"
	"fmt"
	"math/big"
	"reflect"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
	"golang.org/x/text/encoding"
)

// toValue converts one field segment to a value of d.Type.
func toValue(data []byte, d *Descriptor, cs encoding.Encoding) (reflect.Value, error) {
	switch d.Kind {
	case KindBlock:
		v := reflect.New(d.Type).Elem()
		v.SetBytes(bytes.Clone(data))
		return v, nil

	case KindNumeric:
		text, fractional, err := parseNumeric(data, d.Scale)
		if err != nil {
			return reflect.Value{}, err
		}
		return numericValue(text, fractional, d.Type)

	case KindAlphaNumeric:
		b := make([]byte, len(data))
		for i, c := range data {
			if c < 0x20 || c >= 0x80 {
				c = '?'
			}
			b[i] = c
		}
		return stringValue(rtrim(string(b)), d.Type), nil

	case KindLocalString, KindUTF8:
		s, err := decodeText(data, charsetFor(d, cs))
		if err != nil {
			return reflect.Value{}, err
		}
		return stringValue(rtrim(s), d.Type), nil
	}
	return reflect.Value{}, conversionError("cannot convert bytes to %s", d.Kind)
}

func stringValue(s string, t reflect.Type) reflect.Value {
	if t.Kind() == reflect.Pointer {
		v := reflect.New(t.Elem())
		v.Elem().SetString(s)
		return v
	}
	v := reflect.New(t).Elem()
	v.SetString(s)
	return v
}

// ParseNumeric validates zero-padded numeric field text and returns it as plain decimal
// text: an optional '-', at least one integer digit, and a fractional part when the text
// carries a '.' or scale > 0 places one scale digits from the end.
//
// A '-' is accepted as the first byte or between the zero padding and the first
// significant digit ("00-5"); '+' counts as a padding zero. A literal '.' in a field
// with a positive scale is rejected as ambiguous.
func ParseNumeric(data []byte, scale int) (string, error) {
	text, _, err := parseNumeric(data, scale)
	return text, err
}

func parseNumeric(data []byte, scale int) (text string, fractional bool, err error) {
	buf := bytesBufPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer bytesBufPool.Put(buf)

	var neg, dot bool
	padding := true // only '0' and '+' seen so far
	digits := 0
	for i, c := range data {
		switch {
		case c >= '0' && c <= '9':
			buf.WriteByte(c)
			digits++
			padding = padding && c == '0'
		case c == '+':
			buf.WriteByte('0')
			digits++
		case c == '.':
			if dot {
				return "", false, conversionError("second decimal point in %q", data)
			}
			dot = true
			padding = false
			buf.WriteByte('.')
		case c == '-':
			if neg || !padding || i > 0 && !significant(data, i+1) {
				return "", false, conversionError("negative sign position in %q", data)
			}
			neg = true
			padding = false
		default:
			return "", false, conversionError("non numeric value %q", data)
		}
	}
	if digits == 0 {
		return "", false, conversionError("no digits in %q", data)
	}
	if scale > 0 && dot {
		return "", false, conversionError("decimal point in fixed scale field %q", data)
	}

	s := buf.String()
	if scale > 0 {
		if len(s) < scale {
			s = strings.Repeat("0", scale-len(s)) + s
		}
		s = s[:len(s)-scale] + "." + s[len(s)-scale:]
	}
	fractional = scale > 0 || dot

	intPart, frac, hasFrac := strings.Cut(s, ".")
	intPart = strings.TrimLeft(intPart, "0")
	if intPart == "" {
		intPart = "0"
	}
	s = intPart
	if hasFrac && frac != "" {
		s += "." + frac
	}
	if neg && strings.Trim(s, "0.") != "" {
		s = "-" + s
	}
	return s, fractional, nil
}

func significant(data []byte, i int) bool {
	return i < len(data) && data[i] >= '1' && data[i] <= '9'
}

// numericValue parses normalised numeric text into a value of type t.
func numericValue(text string, fractional bool, t reflect.Type) (reflect.Value, error) {
	target, ptr := t, false
	if t.Kind() == reflect.Pointer {
		target, ptr = t.Elem(), true
	}
	v := reflect.New(target).Elem()

	switch {
	case target == bigIntType:
		if fractional {
			return reflect.Value{}, conversionError("decimal %s to integer", text)
		}
		if _, ok := v.Addr().Interface().(*big.Int).SetString(text, 10); !ok {
			return reflect.Value{}, conversionError("invalid integer %s", text)
		}
	case target == decimalType:
		d, err := decimal.NewFromString(text)
		if err != nil {
			return reflect.Value{}, &Error{Kind: ErrDataConversion, Detail: "invalid decimal " + text, Cause: err}
		}
		v.Set(reflect.ValueOf(d))
	default:
		switch target.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			if fractional {
				return reflect.Value{}, conversionError("decimal %s to integer", text)
			}
			n, err := strconv.ParseInt(text, 10, target.Bits())
			if err != nil {
				return reflect.Value{}, &Error{Kind: ErrDataConversion, Detail: "integer " + text, Cause: err}
			}
			v.SetInt(n)
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			if fractional {
				return reflect.Value{}, conversionError("decimal %s to integer", text)
			}
			n, err := strconv.ParseUint(text, 10, target.Bits())
			if err != nil {
				return reflect.Value{}, &Error{Kind: ErrDataConversion, Detail: "unsigned integer " + text, Cause: err}
			}
			v.SetUint(n)
		case reflect.Float32, reflect.Float64:
			f, err := strconv.ParseFloat(text, target.Bits())
			if err != nil {
				return reflect.Value{}, &Error{Kind: ErrDataConversion, Detail: "float " + text, Cause: err}
			}
			v.SetFloat(f)
		default:
			return reflect.Value{}, conversionError("unknown numeric target %s", t)
		}
	}

	if ptr {
		return v.Addr(), nil
	}
	return v, nil
}

// countValue reads a decoded row count field.
func countValue(v reflect.Value) (int, error) {
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return 0, conversionError("row count is nil")
		}
		v = v.Elem()
	}

	switch v.Type() {
	case bigIntType:
		b := v.Interface().(big.Int)
		if !b.IsInt64() {
			return 0, conversionError("row count %s out of range", b.String())
		}
		return castCount(b.Int64())
	case decimalType:
		d := v.Interface().(decimal.Decimal)
		if !d.IsInteger() {
			return 0, conversionError("row count %s is not an integer", d)
		}
		return castCount(d.IntPart())
	}

	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return castCount(v.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return castCount(v.Uint())
	case reflect.Float32, reflect.Float64:
		f := v.Float()
		if f != float64(int64(f)) {
			return 0, conversionError("row count %v is not an integer", f)
		}
		return castCount(f)
	}
	return 0, conversionError("row count of type %s", v.Type())
}

func castCount(v any) (int, error) {
	n, err := cast.ToIntE(v)
	if err != nil {
		return 0, &Error{Kind: ErrDataConversion, Detail: fmt.Sprintf("row count %v", v), Cause: err}
	}
	if n < 0 {
		return 0, conversionError("row count %d is negative", n)
	}
	return n, nil
}
