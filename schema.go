package flatmsg

import (
	"fmt"
	"math/big"
	"reflect"
	"slices"
	"sync"

	"github.com/puzpuzpuz/xsync/v4"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	bigIntType  = reflect.TypeFor[big.Int]()
	decimalType = reflect.TypeFor[decimal.Decimal]()
	bytesType   = reflect.TypeFor[[]byte]()
	errorType   = reflect.TypeFor[error]()
)

// Descriptor is the validated layout of one record field.
type Descriptor struct {
	Name        string
	Description string
	Position    int
	Length      int
	Kind        Kind
	Scale       int
	Table       TableKind
	RowCount    int
	CountField  string

	// Type is the Go type of the field.
	Type reflect.Type
	// Elem is the schema of a nested record or of a table row.
	Elem *Schema

	count   *Descriptor // row count source for TableVariable
	array   bool        // table stored in an array rather than a slice
	elemPtr bool        // nested value or table rows held by pointer
	access  accessor
}

// Open reports whether the field consumes the rest of the available budget.
func (d *Descriptor) Open() bool { return d.Length < 0 }

// Schema is the resolved, immutable layout of a record type.
type Schema struct {
	Type   reflect.Type
	Fields []*Descriptor

	size int // -1 when the width depends on the data
}

// FixedSize reports the encoded width of the record when it does not depend on the data,
// i.e. the record holds no open Block and no variable table at any depth.
func (s *Schema) FixedSize() (int, bool) {
	return s.size, s.size >= 0
}

// New returns a pointer to a default instance of the record type.
func (s *Schema) New() (v reflect.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &Error{Kind: ErrInstanceCreate, Type: typeName(s.Type), Detail: fmt.Sprint(r)}
		}
	}()

	v = reflect.New(s.Type)
	if d, ok := v.Interface().(Defaulter); ok {
		if err := d.SetDefaults(); err != nil {
			return reflect.Value{}, &Error{Kind: ErrInstanceCreate, Type: typeName(s.Type), Cause: err}
		}
	}
	return v, nil
}

// Resolver builds and caches schemas using one Provider.
type Resolver struct {
	provider Provider
	cache    *xsync.Map[reflect.Type, *Schema]
	mu       sync.Mutex // serialises builds
}

// NewResolver returns a resolver with an empty cache. A nil provider means TagProvider{}.
func NewResolver(p Provider) *Resolver {
	if p == nil {
		p = TagProvider{}
	}
	return &Resolver{
		provider: p,
		cache:    xsync.NewMap[reflect.Type, *Schema](),
	}
}

var defaultResolver = NewResolver(TagProvider{})

// Resolve returns the schema of t (a struct or pointer to struct) from the default resolver.
func Resolve(t reflect.Type) (*Schema, error) {
	return defaultResolver.Resolve(t)
}

// Resolve returns the cached schema of t, building and validating it on first use.
func (r *Resolver) Resolve(t reflect.Type) (*Schema, error) {
	t, err := recordType(t)
	if err != nil {
		return nil, err
	}
	if s, ok := r.cache.Load(t); ok {
		return s, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.build(t, nil)
}

func recordType(t reflect.Type) (reflect.Type, error) {
	if t == nil {
		return nil, &Error{Kind: ErrNotStruct, Detail: "nil type"}
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, &Error{Kind: ErrNotStruct, Type: typeName(t)}
	}
	return t, nil
}

// build must be called with r.mu held. path holds the types whose builds are in progress.
func (r *Resolver) build(t reflect.Type, path []reflect.Type) (*Schema, error) {
	if s, ok := r.cache.Load(t); ok {
		return s, nil
	}
	if slices.Contains(path, t) {
		return nil, &Error{Kind: ErrCrossReference, Type: typeName(t), Detail: pathString(append(path, t))}
	}
	path = append(slices.Clip(path), t)

	fields, err := r.collect(t, t, nil)
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(fields, func(a, b *Descriptor) int { return a.Position - b.Position })

	for i, d := range fields {
		if err := r.link(t, d, fields[:i], path); err != nil {
			return nil, err
		}
	}

	s := &Schema{Type: t, Fields: fields}
	s.size = fixedSize(fields)
	r.cache.Store(t, s)

	Logger().Debug("flatmsg: schema resolved",
		zap.Stringer("type", t),
		zap.Int("fields", len(fields)),
		zap.Int("size", s.size))
	return s, nil
}

// collect returns the declared fields of t, ancestors first. Fields are addressed from root
// through index.
func (r *Resolver) collect(t, root reflect.Type, index []int) ([]*Descriptor, error) {
	decls, err := r.provider.Declarations(t)
	if err != nil {
		return nil, annotate(err, t, "")
	}

	declared := make(map[string]bool, len(decls))
	for _, decl := range decls {
		declared[decl.Field] = true
	}

	var fields []*Descriptor
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.Anonymous || sf.Type.Kind() != reflect.Struct || declared[sf.Name] {
			continue
		}
		inherited, err := r.collect(sf.Type, root, append(slices.Clip(index), i))
		if err != nil {
			return nil, err
		}
		fields = append(fields, inherited...)
	}

	for _, decl := range decls {
		sf, ok := t.FieldByName(decl.Field)
		if !ok || len(sf.Index) != 1 {
			return nil, metadataError(t, decl.Field, "no such field")
		}
		d, err := newDescriptor(t, sf, decl)
		if err != nil {
			return nil, err
		}
		if d.access, err = newAccessor(root, sf, append(slices.Clip(index), sf.Index[0])); err != nil {
			return nil, err
		}
		fields = append(fields, d)
	}
	return fields, nil
}

// newDescriptor validates decl against the Go type of sf.
func newDescriptor(t reflect.Type, sf reflect.StructField, decl FieldDecl) (*Descriptor, error) {
	d := &Descriptor{
		Name:        sf.Name,
		Description: decl.Description,
		Position:    decl.Position,
		Length:      decl.Length,
		Kind:        decl.Kind,
		Scale:       decl.Scale,
		Table:       decl.Table,
		RowCount:    decl.RowCount,
		CountField:  decl.CountField,
		Type:        sf.Type,
	}
	if d.Description == "" {
		d.Description = d.Name
	}
	fail := func(format string, args ...any) (*Descriptor, error) {
		return nil, metadataError(t, sf.Name, format, args...)
	}

	if d.Table != TableNone {
		d.Kind = KindNested
		return validateTable(t, d, fail)
	}
	if d.Length < 0 && !(d.Kind == KindBlock && d.Length == -1) {
		return fail("length %d is only allowed as -1 on a block field", d.Length)
	}

	switch d.Kind {
	case KindBlock:
		if sf.Type.Kind() != reflect.Slice || sf.Type.Elem().Kind() != reflect.Uint8 {
			return fail("block field must be a byte slice, not %s", sf.Type)
		}
	case KindNumeric:
		if !numericType(sf.Type) {
			return fail("numeric field cannot be %s", sf.Type)
		}
		if d.Scale < -1 {
			return fail("scale %d is negative", d.Scale)
		}
		if d.Scale >= d.Length {
			return fail("scale %d must be less than length %d", d.Scale, d.Length)
		}
		if d.Scale > 0 && integerType(sf.Type) {
			return fail("scale %d on integer field %s", d.Scale, sf.Type)
		}
	case KindAlphaNumeric, KindLocalString, KindUTF8:
		if indirect(sf.Type).Kind() != reflect.String {
			return fail("%s field must be a string, not %s", d.Kind, sf.Type)
		}
	case KindNested:
		et := sf.Type
		if et.Kind() == reflect.Pointer {
			d.elemPtr = true
			et = et.Elem()
		}
		if et.Kind() != reflect.Struct {
			return fail("nested field must be a struct, not %s", sf.Type)
		}
		if et == t {
			return nil, &Error{Kind: ErrSelfReference, Type: typeName(t), Field: sf.Name}
		}
	default:
		return fail("unknown kind %s", d.Kind)
	}
	return d, nil
}

func validateTable(t reflect.Type, d *Descriptor, fail func(string, ...any) (*Descriptor, error)) (*Descriptor, error) {
	switch d.Type.Kind() {
	case reflect.Array:
		d.array = true
	case reflect.Slice:
	default:
		return fail("table field must be an array or slice, not %s", d.Type)
	}

	et := d.Type.Elem()
	if et.Kind() == reflect.Pointer {
		d.elemPtr = true
		et = et.Elem()
	}
	if et.Kind() != reflect.Struct {
		return fail("table rows must be structs, not %s", d.Type.Elem())
	}
	if et == t {
		return nil, &Error{Kind: ErrSelfReference, Type: typeName(t), Field: d.Name}
	}

	switch d.Table {
	case TableFixed:
		if d.RowCount < 0 {
			return fail("row count %d is negative", d.RowCount)
		}
		if d.array && d.RowCount > d.Type.Len() {
			return fail("row count %d exceeds array length %d", d.RowCount, d.Type.Len())
		}
	case TableVariable:
		if d.CountField == "" {
			return fail("variable table has no count field")
		}
	}
	return d, nil
}

// link resolves the nested/row schema and the row count source of d.
// before holds the fields sorted ahead of d.
func (r *Resolver) link(t reflect.Type, d *Descriptor, before []*Descriptor, path []reflect.Type) error {
	if d.Kind == KindNested {
		et := d.Type
		if d.Table != TableNone {
			et = et.Elem()
		}
		if et.Kind() == reflect.Pointer {
			et = et.Elem()
		}
		elem, err := r.build(et, path)
		if err != nil {
			return err
		}
		if d.Table != TableNone && len(elem.Fields) == 0 {
			return metadataError(t, d.Name, "row type %s declares no fields", et)
		}
		d.Elem = elem
	}

	if d.Table != TableVariable {
		return nil
	}
	for _, c := range before {
		if c.Name != d.CountField {
			continue
		}
		if c.Kind != KindNumeric || c.Table != TableNone {
			return metadataError(t, d.Name, "count field %s is not numeric", c.Name)
		}
		d.count = c
		return nil
	}
	if _, ok := t.FieldByName(d.CountField); ok {
		return metadataError(t, d.Name, "count field %s is not declared before the table", d.CountField)
	}
	return metadataError(t, d.Name, "count field %s is not defined", d.CountField)
}

func fixedSize(fields []*Descriptor) int {
	size := 0
	for _, d := range fields {
		switch {
		case d.Table == TableVariable || d.Open():
			return -1
		case d.Kind == KindNested:
			n := d.Elem.size
			if n < 0 {
				return -1
			}
			if d.Table == TableFixed {
				n *= d.RowCount
			}
			size += n
		default:
			size += d.Length
		}
	}
	return size
}

func numericType(t reflect.Type) bool {
	if t == bigIntType || t == decimalType {
		return true
	}
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
		if t == bigIntType || t == decimalType {
			return true
		}
	}
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func integerType(t reflect.Type) bool {
	t = indirect(t)
	if t == bigIntType {
		return true
	}
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	}
	return false
}

func indirect(t reflect.Type) reflect.Type {
	if t.Kind() == reflect.Pointer {
		return t.Elem()
	}
	return t
}

func pathString(path []reflect.Type) string {
	s := ""
	for i, t := range path {
		if i > 0 {
			s += " -> "
		}
		s += typeName(t)
	}
	return s
}

// Register resolves the record types of values in the default resolver after checking them
// for reference cycles. It is meant for program start-up, so that layout errors surface early.
func Register(values ...any) error {
	return defaultResolver.Register(values...)
}

// MustRegister is like Register but panics on error.
func MustRegister(values ...any) {
	if err := Register(values...); err != nil {
		panic(err)
	}
}

// Register resolves the record types of values after checking them for reference cycles.
func (r *Resolver) Register(values ...any) error {
	for _, v := range values {
		t, err := recordType(reflect.TypeOf(v))
		if err != nil {
			return err
		}
		if err := CheckCycles(t, r.provider); err != nil {
			return err
		}
		if _, err := r.Resolve(t); err != nil {
			return err
		}
		Logger().Debug("flatmsg: registered", zap.Stringer("type", t))
	}
	return nil
}
