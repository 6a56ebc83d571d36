package flatmsg

import (
	"bytes"
	"math"
	"math/big"
	"reflect"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/exp/constraints"
	"golang.org/x/text/encoding"
)

// toBytes renders v as field bytes. A negative length is only meaningful for byte slices,
// which are then written at their full length.
func toBytes(v reflect.Value, length, scale int, cs encoding.Encoding) ([]byte, error) {
	if !v.IsValid() || (v.Kind() == reflect.Pointer || v.Kind() == reflect.Slice) && v.IsNil() {
		return fill(make([]byte, max(length, 0)), ' '), nil
	}

	if v.Kind() == reflect.Pointer {
		v = v.Elem()
	}
	switch v.Type() {
	case bigIntType:
		b := v.Interface().(big.Int)
		return padNumber(b.String(), length)
	case decimalType:
		return FormatDecimal(v.Interface().(decimal.Decimal), length, scale)
	}

	switch v.Kind() {
	case reflect.Slice:
		if v.Type().Elem().Kind() != reflect.Uint8 {
			return nil, conversionError("only byte slices can be written, not %s", v.Type())
		}
		src := v.Bytes()
		if length < 0 {
			return bytes.Clone(src), nil
		}
		return padRight(src, length), nil

	case reflect.String:
		src, err := encodeText(v.String(), cs)
		if err != nil {
			return nil, err
		}
		return padRight(src, length), nil

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return FormatInteger(v.Int(), length)

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return FormatInteger(v.Uint(), length)

	case reflect.Float32:
		f := v.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, conversionError("cannot write %v", f)
		}
		return FormatDecimal(decimal.NewFromFloat32(float32(f)), length, scale)

	case reflect.Float64:
		f := v.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, conversionError("cannot write %v", f)
		}
		return FormatDecimal(decimal.NewFromFloat(f), length, scale)
	}
	return nil, conversionError("cannot write %s", v.Type())
}

func padRight(src []byte, length int) []byte {
	dst := make([]byte, length)
	n := copy(dst, src)
	fill(dst[n:], ' ')
	return dst
}

// FormatInteger renders v as decimal digits left-padded with zeros to length.
// A negative value keeps its '-' in front of the padding, e.g. -5 at length 4 is "-005".
func FormatInteger[T constraints.Integer](v T, length int) ([]byte, error) {
	if v < 0 {
		return padNumber(strconv.FormatInt(int64(v), 10), length)
	}
	return padNumber(strconv.FormatUint(uint64(v), 10), length)
}

// FormatDecimal renders d as fixed-point digits without a decimal point, left-padded with
// zeros to length. With scale >= 0 exactly scale fractional digits are written, truncating
// extra precision toward zero. With a negative scale the natural text of d is written and
// fractional digits that do not fit are dropped.
func FormatDecimal(d decimal.Decimal, length, scale int) ([]byte, error) {
	if scale >= 0 {
		s := d.Truncate(int32(scale)).StringFixed(int32(scale))
		return padNumber(strings.Replace(s, ".", "", 1), length)
	}

	s := d.String()
	if len(s) > length {
		intPart, _, _ := strings.Cut(s, ".")
		if len(intPart) > length {
			return nil, conversionError("value loss: %s does not fit %d bytes", s, length)
		}
		s = strings.TrimSuffix(s[:length], ".")
	}
	return padNumber(s, length)
}

// padNumber left-pads digit text with zeros, keeping a leading '-' in front.
func padNumber(s string, length int) ([]byte, error) {
	if len(s) > length {
		return nil, conversionError("value loss: %s does not fit %d bytes", s, length)
	}

	b := make([]byte, length)
	digits := s
	pad := 0
	if strings.HasPrefix(s, "-") {
		b[0] = '-'
		digits = s[1:]
		pad = 1
	}
	fill(b[pad:length-len(digits)], '0')
	copy(b[length-len(digits):], digits)
	return b, nil
}
