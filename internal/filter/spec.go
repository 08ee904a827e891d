package filter

import (
	"errors"
	"fmt"
)

// CustomFunc narrows q using an already coerced filter value.
type CustomFunc func(q Query, value any) (Query, error)

type fieldKind int

const (
	compareField fieldKind = iota + 1
	customField
)

// Field declares one named filter. A field either compares a column path with
// an operator or delegates to a CustomFunc, never both.
type Field struct {
	Name string
	Path string
	Op   Operator
	// Type is the type values are coerced to. Compare fields take it from the
	// resolved column when the Spec is built.
	Type ColumnType

	kind fieldKind
	fn   CustomFunc
}

// Compare declares a filter comparing path with op.
func Compare(name, path string, op Operator) Field {
	return Field{Name: name, Path: path, Op: op, kind: compareField}
}

// Custom declares a filter whose value is coerced to valueType and handed to fn.
func Custom(name string, valueType ColumnType, fn CustomFunc) Field {
	return Field{Name: name, Type: valueType, kind: customField, fn: fn}
}

// IsCustom reports whether the field delegates to a CustomFunc.
func (f Field) IsCustom() bool {
	return f.kind == customField
}

// Binding is a field paired with its coerced value.
type Binding struct {
	Field Field
	Value any
}

// Predicate returns the comparison for a compare field.
func (b Binding) Predicate() (Predicate, bool) {
	if b.Field.IsCustom() {
		return Predicate{}, false
	}
	return Predicate{Path: b.Field.Path, Op: b.Field.Op, Value: b.Value}, true
}

func (b Binding) apply(q Query) (Query, error) {
	switch b.Field.kind {
	case customField:
		return b.Field.fn(q, b.Value)
	case compareField:
		p, _ := b.Predicate()
		return q.Apply(p)
	}
	return Query{}, fmt.Errorf("filter %q has no kind", b.Field.Name)
}

// Spec is the immutable set of filters available for one entity.
type Spec struct {
	entity string
	table  *Table
	fields []Field
	index  map[string]int
}

// NewSpec validates fields against table. Every compare path must resolve to
// a column the operator can compare, and names must be unique.
func NewSpec(entity string, table *Table, fields ...Field) (*Spec, error) {
	if table == nil {
		return nil, errors.New("spec requires a table")
	}
	s := &Spec{
		entity: entity,
		table:  table,
		fields: make([]Field, 0, len(fields)),
		index:  make(map[string]int, len(fields)),
	}

	for _, f := range fields {
		if f.Name == "" {
			return nil, &InvalidFieldPathError{Entity: entity, Path: f.Path, Reason: "filter name is empty"}
		}
		if _, dup := s.index[f.Name]; dup {
			return nil, &InvalidFieldPathError{Entity: entity, Filter: f.Name, Reason: "duplicate filter name"}
		}

		switch f.kind {
		case compareField:
			fp, err := table.resolve(f.Path)
			if err != nil {
				return nil, &InvalidFieldPathError{Entity: entity, Filter: f.Name, Path: f.Path, Reason: err.Error()}
			}
			if !f.Op.Valid() {
				return nil, &InvalidFieldPathError{Entity: entity, Filter: f.Name, Path: f.Path, Reason: fmt.Sprintf("unknown operator %q", f.Op)}
			}
			if !f.Op.Accepts(fp.column.Type) {
				return nil, &InvalidFieldPathError{
					Entity: entity, Filter: f.Name, Path: f.Path,
					Reason: fmt.Sprintf("operator %s cannot compare a %s column", f.Op, fp.column.Type),
				}
			}
			f.Type = fp.column.Type
		case customField:
			if f.fn == nil {
				return nil, &InvalidFieldPathError{Entity: entity, Filter: f.Name, Reason: "custom filter has no function"}
			}
			if f.Type < TypeText || f.Type > TypeBoolean {
				return nil, &InvalidFieldPathError{Entity: entity, Filter: f.Name, Reason: "custom filter has no value type"}
			}
		default:
			return nil, &InvalidFieldPathError{Entity: entity, Filter: f.Name, Reason: "filter declared without Compare or Custom"}
		}

		s.index[f.Name] = len(s.fields)
		s.fields = append(s.fields, f)
	}
	return s, nil
}

// MustSpec is NewSpec for package level declarations.
func MustSpec(entity string, table *Table, fields ...Field) *Spec {
	s, err := NewSpec(entity, table, fields...)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *Spec) Entity() string { return s.entity }

func (s *Spec) Table() *Table { return s.table }

// Fields returns the filters in declaration order.
func (s *Spec) Fields() []Field {
	out := make([]Field, len(s.fields))
	copy(out, s.fields)
	return out
}

// Field returns the named filter.
func (s *Spec) Field(name string) (Field, bool) {
	i, ok := s.index[name]
	if !ok {
		return Field{}, false
	}
	return s.fields[i], true
}

// Unknown lists request keys that name no filter of this spec.
func (s *Spec) Unknown(req Request) []string {
	var unknown []string
	for _, name := range req.Names() {
		if _, ok := s.index[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// Bind coerces every supplied value of req. Unknown names are ignored and
// empty values are skipped. All malformed values are reported together.
func (s *Spec) Bind(req Request) ([]Binding, error) {
	var (
		bindings []Binding
		problems []FieldError
	)

	for _, f := range s.fields {
		raw, ok := req[f.Name]
		if !ok || isEmpty(raw) {
			continue
		}

		var (
			value any
			err   error
		)
		if f.Op == OpIn {
			var list []any
			list, err = coerceList(f.Type, raw)
			if err == nil && len(list) == 0 {
				continue
			}
			value = list
		} else {
			value, err = coerce(f.Type, lastValue(raw))
		}
		if err != nil {
			expected := f.Type.String()
			if f.Op == OpIn {
				expected = "list of " + expected
			}
			problems = append(problems, FieldError{Filter: f.Name, Expected: expected, Value: raw, Err: err})
			continue
		}
		bindings = append(bindings, Binding{Field: f, Value: value})
	}

	if len(problems) > 0 {
		return nil, &ValidationError{Entity: s.entity, Errors: problems}
	}
	return bindings, nil
}

// lastValue picks the last non-blank item of a repeated parameter.
func lastValue(raw any) any {
	switch v := raw.(type) {
	case []string:
		for i := len(v) - 1; i >= 0; i-- {
			if !isEmpty(v[i]) {
				return v[i]
			}
		}
	case []any:
		for i := len(v) - 1; i >= 0; i-- {
			if !isEmpty(v[i]) {
				return v[i]
			}
		}
	}
	return raw
}
