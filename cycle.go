package flatmsg

import (
	"reflect"
	"slices"

	"go.uber.org/zap"
)

// CheckCycles walks the nested and table references declared for t by p and reports
// a type that refers to itself (ErrSelfReference) or reappears further down its own
// reference chain (ErrCrossReference). The same type may be used by sibling fields.
func CheckCycles(t reflect.Type, p Provider) error {
	t, err := recordType(t)
	if err != nil {
		return err
	}
	if p == nil {
		p = TagProvider{}
	}

	c := cycleChecker{provider: p, clean: make(map[reflect.Type]bool)}
	err = c.walk([]reflect.Type{t})
	Logger().Debug("flatmsg: cycle check", zap.Stringer("type", t), zap.Error(err))
	return err
}

type cycleChecker struct {
	provider Provider
	clean    map[reflect.Type]bool // subtrees already walked without finding a cycle
}

func (c *cycleChecker) walk(path []reflect.Type) error {
	t := path[len(path)-1]
	if c.clean[t] {
		return nil
	}

	refs, err := c.references(t)
	if err != nil {
		return err
	}
	for _, ref := range refs {
		switch {
		case ref.typ == t:
			return &Error{Kind: ErrSelfReference, Type: typeName(ref.owner), Field: ref.field}
		case slices.Contains(path, ref.typ):
			return &Error{Kind: ErrCrossReference, Type: typeName(ref.owner), Field: ref.field,
				Detail: pathString(append(slices.Clip(path), ref.typ))}
		}
		if err := c.walk(append(slices.Clip(path), ref.typ)); err != nil {
			return err
		}
	}

	c.clean[t] = true
	return nil
}

type reference struct {
	owner reflect.Type
	field string
	typ   reflect.Type
}

// references lists the record types t refers to, including those declared by its ancestors.
func (c *cycleChecker) references(t reflect.Type) ([]reference, error) {
	decls, err := c.provider.Declarations(t)
	if err != nil {
		return nil, annotate(err, t, "")
	}

	declared := make(map[string]bool, len(decls))
	var refs []reference
	for _, decl := range decls {
		declared[decl.Field] = true
		if decl.Kind != KindNested && decl.Table == TableNone {
			continue
		}
		sf, ok := t.FieldByName(decl.Field)
		if !ok {
			return nil, metadataError(t, decl.Field, "no such field")
		}
		rt := sf.Type
		if decl.Table != TableNone && (rt.Kind() == reflect.Array || rt.Kind() == reflect.Slice) {
			rt = rt.Elem()
		}
		rt = indirect(rt)
		if rt.Kind() == reflect.Struct {
			refs = append(refs, reference{owner: t, field: decl.Field, typ: rt})
		}
	}

	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.Anonymous || sf.Type.Kind() != reflect.Struct || declared[sf.Name] {
			continue
		}
		inherited, err := c.references(sf.Type)
		if err != nil {
			return nil, err
		}
		refs = append(refs, inherited...)
	}
	return refs, nil
}
