package forge

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// ValueKind tags the variant held by a Value.
type ValueKind int

// Value kinds.
const (
	ValueNull ValueKind = iota
	ValueText
	ValueInteger
	ValueReal
	ValueBoolean
)

// Value is a closed literal variant. Each kind carries its own formatting
// rule, applied by formatLiteral.
type Value struct {
	kind ValueKind
	text string
	i    int64
	f    float64
	b    bool
}

// Null returns the SQL NULL literal.
func Null() Value { return Value{kind: ValueNull} }

// Text returns a text literal.
func Text(s string) Value { return Value{kind: ValueText, text: s} }

// Integer returns an integer literal.
func Integer(i int64) Value { return Value{kind: ValueInteger, i: i} }

// Real returns a floating point literal.
func Real(f float64) Value { return Value{kind: ValueReal, f: f} }

// Boolean returns a boolean literal, rendered as 1 or 0.
func Boolean(b bool) Value { return Value{kind: ValueBoolean, b: b} }

// Kind returns the variant tag.
func (v Value) Kind() ValueKind { return v.kind }

// String renders the value with the default (unescaped) rule.
func (v Value) String() string { return formatLiteral(v, false) }

// formatLiteral is the single point where values become SQL text.
// Text is single-quoted; embedded quotes are doubled only when escape is set.
func formatLiteral(v Value, escape bool) string {
	switch v.kind {
	case ValueText:
		if escape {
			return "'" + strings.ReplaceAll(v.text, "'", "''") + "'"
		}
		return "'" + v.text + "'"
	case ValueInteger:
		return strconv.FormatInt(v.i, 10)
	case ValueReal:
		if math.IsNaN(v.f) || math.IsInf(v.f, 0) {
			return "NULL"
		}
		return strconv.FormatFloat(v.f, 'f', -1, 64)
	case ValueBoolean:
		if v.b {
			return "1"
		}
		return "0"
	default:
		return "NULL"
	}
}

// ValueOf converts a Go value into a Value.
func ValueOf(x any) (Value, error) {
	switch t := x.(type) {
	case nil:
		return Null(), nil
	case Value:
		return t, nil
	case string:
		return Text(t), nil
	case uuid.UUID:
		return Text(t.String()), nil
	case bool:
		return Boolean(t), nil
	case int:
		return Integer(int64(t)), nil
	case int64:
		return Integer(t), nil
	}
	return valueOfReflect(reflect.ValueOf(x))
}

func valueOfReflect(rv reflect.Value) (Value, error) {
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return Null(), nil
		}
		rv = rv.Elem()
	}
	if rv.Type() == uuidType {
		return Text(rv.Interface().(uuid.UUID).String()), nil
	}

	switch rv.Kind() {
	case reflect.String:
		return Text(rv.String()), nil
	case reflect.Bool:
		return Boolean(rv.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Integer(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return Value{}, fmt.Errorf("%w: %d overflows a signed 64-bit integer", ErrInvalidLiteral, u)
		}
		return Integer(int64(u)), nil
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return Value{}, fmt.Errorf("%w: %v", ErrInvalidLiteral, f)
		}
		return Real(f), nil
	default:
		return Value{}, fmt.Errorf("%w: cannot use %s as a literal", ErrUnsupportedStorageKind, rv.Type())
	}
}

// valueMap is an insertion-ordered column → value map. Overwriting a key
// keeps its original position.
type valueMap struct {
	keys   []string
	values map[string]Value
}

func newValueMap() *valueMap {
	return &valueMap{values: make(map[string]Value)}
}

func (m *valueMap) set(column string, v Value) {
	if _, ok := m.values[column]; !ok {
		m.keys = append(m.keys, column)
	}
	m.values[column] = v
}

func (m *valueMap) len() int {
	return len(m.keys)
}

// snapshot reads every storable field of model into a valueMap.
func snapshot(desc *Descriptor, model reflect.Value) (*valueMap, error) {
	m := newValueMap()
	for _, f := range desc.Fields {
		if !f.storable() {
			continue
		}
		v, err := valueOfReflect(model.FieldByIndex(f.index))
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", desc.Table, f.Name, err)
		}
		m.set(f.Column, v)
	}
	return m, nil
}

// indirect dereferences pointers until it reaches a non-pointer value.
// ok is false for a nil pointer or an invalid value.
func indirect(rv reflect.Value) (reflect.Value, bool) {
	for rv.IsValid() && rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return reflect.Value{}, false
		}
		rv = rv.Elem()
	}
	return rv, rv.IsValid()
}
