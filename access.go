package flatmsg

import (
	"fmt"
	"reflect"
	"unicode"
	"unicode/utf8"
)

// accessor reads and assigns one field of an addressable root record value.
// Exported fields are reached directly; unexported ones through a Name/SetName
// method pair on the root's pointer type.
type accessor struct {
	index     []int
	getter    int // method index, -1 for direct access
	setter    int
	setterErr bool // setter returns error
}

func newAccessor(root reflect.Type, sf reflect.StructField, index []int) (accessor, error) {
	if sf.IsExported() {
		return accessor{index: index, getter: -1, setter: -1}, nil
	}

	pt := reflect.PointerTo(root)
	name := exportedName(sf.Name)
	a := accessor{index: index}

	get, ok := pt.MethodByName(name)
	if !ok || get.Type.NumIn() != 1 || get.Type.NumOut() != 1 || get.Type.Out(0) != sf.Type {
		return a, metadataError(root, sf.Name, "unexported field needs method %s() %s", name, sf.Type)
	}
	set, ok := pt.MethodByName("Set" + name)
	if !ok || set.Type.NumIn() != 2 || set.Type.In(1) != sf.Type {
		return a, metadataError(root, sf.Name, "unexported field needs method Set%s(%s)", name, sf.Type)
	}
	switch {
	case set.Type.NumOut() == 0:
	case set.Type.NumOut() == 1 && set.Type.Out(0) == errorType:
		a.setterErr = true
	default:
		return a, metadataError(root, sf.Name, "Set%s must return nothing or an error", name)
	}

	a.getter, a.setter = get.Index, set.Index
	return a, nil
}

func (a accessor) direct() bool { return a.getter < 0 }

func (a accessor) get(rec reflect.Value) (v reflect.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &Error{Kind: ErrFieldAccess, Detail: fmt.Sprint(r)}
		}
	}()

	if a.direct() {
		return rec.FieldByIndex(a.index), nil
	}
	return rec.Addr().Method(a.getter).Call(nil)[0], nil
}

func (a accessor) set(rec, v reflect.Value) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &Error{Kind: ErrFieldAccess, Detail: fmt.Sprint(r)}
		}
	}()

	if a.direct() {
		rec.FieldByIndex(a.index).Set(v)
		return nil
	}
	out := rec.Addr().Method(a.setter).Call([]reflect.Value{v})
	if a.setterErr && !out[0].IsNil() {
		return &Error{Kind: ErrFieldAccess, Cause: out[0].Interface().(error)}
	}
	return nil
}

func exportedName(s string) string {
	r, n := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + s[n:]
}
