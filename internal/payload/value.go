// Package payload decodes the semi-structured blobs the native layer sends
// back across the bridge.
//
// Native SDKs hand over dictionaries whose values are sometimes native types
// and sometimes JSON strings that need a second pass. Value keeps that shape
// without committing to Go types early; Decode maps it onto tagged structs with
// checked conversions.
package payload

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// Kind is the dynamic type held by a Value.
type Kind int

// Value kinds.
const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindMap
)

var kindNames = map[Kind]string{
	KindNull:   "null",
	KindBool:   "bool",
	KindNumber: "number",
	KindString: "string",
	KindArray:  "array",
	KindMap:    "map",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Value is a JSON-like value: null, bool, number, string, array or map.
// The zero Value is null.
type Value struct {
	kind Kind
	b    bool
	num  json.Number
	s    string
	arr  []Value
	m    map[string]Value
}

// Null returns the null Value.
func Null() Value { return Value{} }

// BoolValue wraps b.
func BoolValue(b bool) Value { return Value{kind: KindBool, b: b} }

// StringValue wraps s.
func StringValue(s string) Value { return Value{kind: KindString, s: s} }

// IntValue wraps n.
func IntValue(n int64) Value {
	return Value{kind: KindNumber, num: json.Number(strconv.FormatInt(n, 10))}
}

// FloatValue wraps f. NaN and infinities have no JSON form and are rejected
// by FromNative; FloatValue stores them as null.
func FloatValue(f float64) Value {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Value{}
	}
	return Value{kind: KindNumber, num: json.Number(strconv.FormatFloat(f, 'g', -1, 64))}
}

// ArrayValue wraps items.
func ArrayValue(items ...Value) Value { return Value{kind: KindArray, arr: items} }

// MapValue wraps m.
func MapValue(m map[string]Value) Value {
	if m == nil {
		m = map[string]Value{}
	}
	return Value{kind: KindMap, m: m}
}

// Kind returns the dynamic kind of v.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

func (v Value) wrongKind(want Kind) error {
	return fmt.Errorf("%w: want %s, have %s", ErrWrongKind, want, v.kind)
}

// Bool returns the boolean held by v.
func (v Value) Bool() (bool, error) {
	if v.kind != KindBool {
		return false, v.wrongKind(KindBool)
	}
	return v.b, nil
}

// Str returns the string held by v.
func (v Value) Str() (string, error) {
	if v.kind != KindString {
		return "", v.wrongKind(KindString)
	}
	return v.s, nil
}

// Float64 returns the number held by v.
func (v Value) Float64() (float64, error) {
	if v.kind != KindNumber {
		return 0, v.wrongKind(KindNumber)
	}
	f, err := v.num.Float64()
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrOutOfRange, v.num)
	}
	return f, nil
}

// Int64 returns the number held by v as an integer. Fractional values and
// values beyond the int64 range are errors.
func (v Value) Int64() (int64, error) {
	if v.kind != KindNumber {
		return 0, v.wrongKind(KindNumber)
	}
	if n, err := strconv.ParseInt(string(v.num), 10, 64); err == nil {
		return n, nil
	}
	f, err := v.num.Float64()
	if err != nil {
		return 0, fmt.Errorf("%w: %s", ErrOutOfRange, v.num)
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("%w: %s", ErrFractional, v.num)
	}
	// 2^63 is exactly representable; anything at or beyond it overflows.
	if f >= math.Exp2(63) || f < -math.Exp2(63) {
		return 0, fmt.Errorf("%w: %s", ErrOutOfRange, v.num)
	}
	return int64(f), nil
}

// Int32 returns the number held by v as an int32.
func (v Value) Int32() (int32, error) {
	n, err := v.Int64()
	if err != nil {
		return 0, err
	}
	if n < math.MinInt32 || n > math.MaxInt32 {
		return 0, fmt.Errorf("%w: %d does not fit int32", ErrOutOfRange, n)
	}
	return int32(n), nil
}

// Array returns the items held by v.
func (v Value) Array() ([]Value, error) {
	if v.kind != KindArray {
		return nil, v.wrongKind(KindArray)
	}
	return v.arr, nil
}

// Map returns the entries held by v. The map must not be modified.
func (v Value) Map() (map[string]Value, error) {
	if v.kind != KindMap {
		return nil, v.wrongKind(KindMap)
	}
	return v.m, nil
}

// Get returns the entry under key. v must be a map.
func (v Value) Get(key string) (Value, error) {
	m, err := v.Map()
	if err != nil {
		return Value{}, err
	}
	item, ok := m[key]
	if !ok {
		return Value{}, fmt.Errorf("%w: %q", ErrMissingKey, key)
	}
	return item, nil
}

// Has reports whether v is a map holding key.
func (v Value) Has(key string) bool {
	if v.kind != KindMap {
		return false
	}
	_, ok := v.m[key]
	return ok
}

// Nested runs a second decode pass over a string value holding JSON. Any
// other kind is returned unchanged.
func (v Value) Nested() (Value, error) {
	if v.kind != KindString {
		return v, nil
	}
	return Parse(v.s)
}

// Interface converts v to plain Go values: nil, bool, float64 or int64,
// string, []any and map[string]any.
func (v Value) Interface() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNumber:
		if n, err := strconv.ParseInt(string(v.num), 10, 64); err == nil {
			return n
		}
		f, _ := v.num.Float64()
		return f
	case KindString:
		return v.s
	case KindArray:
		out := make([]any, len(v.arr))
		for i, item := range v.arr {
			out[i] = item.Interface()
		}
		return out
	case KindMap:
		out := make(map[string]any, len(v.m))
		for k, item := range v.m {
			out[k] = item.Interface()
		}
		return out
	default:
		return nil
	}
}

// StringMap converts a map of scalars to map[string]string. Numbers and
// booleans are rendered in their JSON form; nested values are errors.
func (v Value) StringMap() (map[string]string, error) {
	m, err := v.Map()
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(m))
	for k, item := range m {
		s, err := item.scalarString()
		if err != nil {
			return nil, decodeErr(k, err)
		}
		out[k] = s
	}
	return out, nil
}

func (v Value) scalarString() (string, error) {
	switch v.kind {
	case KindString:
		return v.s, nil
	case KindNumber:
		return string(v.num), nil
	case KindBool:
		return strconv.FormatBool(v.b), nil
	case KindNull:
		return "", nil
	default:
		return "", v.wrongKind(KindString)
	}
}

// MarshalJSON renders v as JSON. Map keys are sorted.
func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.writeJSON(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalJSON parses data into v.
func (v *Value) UnmarshalJSON(data []byte) error {
	parsed, err := parseBytes(data)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// String returns the JSON form of v.
func (v Value) String() string {
	b, err := v.MarshalJSON()
	if err != nil {
		return "null"
	}
	return string(b)
}

func (v Value) writeJSON(buf *bytes.Buffer) error {
	switch v.kind {
	case KindNull:
		buf.WriteString("null")
	case KindBool:
		buf.WriteString(strconv.FormatBool(v.b))
	case KindNumber:
		buf.WriteString(string(v.num))
	case KindString:
		b, err := json.Marshal(v.s)
		if err != nil {
			return err
		}
		buf.Write(b)
	case KindArray:
		buf.WriteByte('[')
		for i, item := range v.arr {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := item.writeJSON(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case KindMap:
		keys := make([]string, 0, len(v.m))
		for k := range v.m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return err
			}
			buf.Write(kb)
			buf.WriteByte(':')
			if err := v.m[k].writeJSON(buf); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	}
	return nil
}

// Parse decodes a JSON blob into a Value. Numbers keep their textual form so
// large integers survive without float rounding.
func Parse(blob string) (Value, error) {
	return parseBytes([]byte(blob))
}

func parseBytes(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return Value{}, &DecodeError{Err: fmt.Errorf("%w: %v", ErrMalformedJSON, err)}
	}
	if _, err := dec.Token(); err != io.EOF {
		return Value{}, &DecodeError{Err: fmt.Errorf("%w: trailing data", ErrMalformedJSON)}
	}
	return FromNative(raw)
}

// FromNative converts a value already decoded by a native bridge (maps,
// slices, any Go numeric width) into a Value.
func FromNative(x any) (Value, error) {
	return fromNative(x, "")
}

func fromNative(x any, path string) (Value, error) {
	switch t := x.(type) {
	case nil:
		return Value{}, nil
	case Value:
		return t, nil
	case *Value:
		if t == nil {
			return Value{}, nil
		}
		return *t, nil
	case bool:
		return BoolValue(t), nil
	case string:
		return StringValue(t), nil
	case json.Number:
		if _, err := t.Float64(); err != nil {
			return Value{}, decodeErr(path, fmt.Errorf("%w: %s", ErrOutOfRange, t))
		}
		return Value{kind: KindNumber, num: t}, nil
	case int:
		return IntValue(int64(t)), nil
	case int8:
		return IntValue(int64(t)), nil
	case int16:
		return IntValue(int64(t)), nil
	case int32:
		return IntValue(int64(t)), nil
	case int64:
		return IntValue(t), nil
	case uint:
		return uintValue(uint64(t)), nil
	case uint8:
		return uintValue(uint64(t)), nil
	case uint16:
		return uintValue(uint64(t)), nil
	case uint32:
		return uintValue(uint64(t)), nil
	case uint64:
		return uintValue(t), nil
	case float32:
		return floatValue(float64(t), path)
	case float64:
		return floatValue(t, path)
	case []any:
		items := make([]Value, len(t))
		for i, item := range t {
			v, err := fromNative(item, joinPath(path, strconv.Itoa(i)))
			if err != nil {
				return Value{}, err
			}
			items[i] = v
		}
		return ArrayValue(items...), nil
	case map[string]any:
		m := make(map[string]Value, len(t))
		for k, item := range t {
			v, err := fromNative(item, joinPath(path, k))
			if err != nil {
				return Value{}, err
			}
			m[k] = v
		}
		return MapValue(m), nil
	case map[string]string:
		m := make(map[string]Value, len(t))
		for k, s := range t {
			m[k] = StringValue(s)
		}
		return MapValue(m), nil
	case []string:
		items := make([]Value, len(t))
		for i, s := range t {
			items[i] = StringValue(s)
		}
		return ArrayValue(items...), nil
	}
	return fromReflect(reflect.ValueOf(x), path)
}

// fromReflect handles typed maps and slices that the fast path misses.
func fromReflect(rv reflect.Value, path string) (Value, error) {
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return Value{}, nil
		}
		return fromNative(rv.Elem().Interface(), path)
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return Value{}, nil
		}
		items := make([]Value, rv.Len())
		for i := range items {
			v, err := fromNative(rv.Index(i).Interface(), joinPath(path, strconv.Itoa(i)))
			if err != nil {
				return Value{}, err
			}
			items[i] = v
		}
		return ArrayValue(items...), nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return Value{}, decodeErr(path, fmt.Errorf("%w: map key %s", ErrUnsupportedType, rv.Type().Key()))
		}
		m := make(map[string]Value, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			k := iter.Key().String()
			v, err := fromNative(iter.Value().Interface(), joinPath(path, k))
			if err != nil {
				return Value{}, err
			}
			m[k] = v
		}
		return MapValue(m), nil
	case reflect.String:
		return StringValue(rv.String()), nil
	case reflect.Bool:
		return BoolValue(rv.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return IntValue(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return uintValue(rv.Uint()), nil
	case reflect.Float32, reflect.Float64:
		return floatValue(rv.Float(), path)
	}
	return Value{}, decodeErr(path, fmt.Errorf("%w: %T", ErrUnsupportedType, rv.Interface()))
}

func uintValue(n uint64) Value {
	return Value{kind: KindNumber, num: json.Number(strconv.FormatUint(n, 10))}
}

func floatValue(f float64, path string) (Value, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Value{}, decodeErr(path, fmt.Errorf("%w: %v", ErrOutOfRange, f))
	}
	return FloatValue(f), nil
}

func joinPath(parent, child string) string {
	if parent == "" {
		return child
	}
	return parent + "." + child
}

// trimmedPrefix reports whether s, ignoring leading whitespace, starts with c.
func trimmedPrefix(s string, c byte) bool {
	s = strings.TrimLeft(s, " \t\r\n")
	return len(s) > 0 && s[0] == c
}
