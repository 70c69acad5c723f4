package payload

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"sync"
)

var valueType = reflect.TypeOf(Value{})

// Decode parses blob and fills target, which must be a non-nil pointer.
func Decode(blob string, target any) error {
	v, err := Parse(blob)
	if err != nil {
		return err
	}
	return DecodeValue(v, target)
}

// DecodeValue fills target from v by the targets' json tags.
//
// Absent keys leave fields at their zero value. A string holding JSON is
// decoded again when the target is not itself a string. Numbers are converted
// with range and integrality checks; nothing is truncated silently.
func DecodeValue(v Value, target any) error {
	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return &DecodeError{Err: ErrInvalidTarget}
	}
	return assign(v, rv.Elem(), "")
}

func assign(v Value, dst reflect.Value, path string) error {
	if dst.Type() == valueType {
		dst.Set(reflect.ValueOf(v))
		return nil
	}

	if v.kind == KindNull {
		dst.Set(reflect.Zero(dst.Type()))
		return nil
	}

	switch dst.Kind() {
	case reflect.Pointer:
		elem := reflect.New(dst.Type().Elem())
		if err := assign(v, elem.Elem(), path); err != nil {
			return err
		}
		dst.Set(elem)
		return nil

	case reflect.Interface:
		if dst.NumMethod() != 0 {
			return decodeErr(path, fmt.Errorf("%w: %s", ErrUnsupportedType, dst.Type()))
		}
		dst.Set(reflect.ValueOf(v.Interface()))
		return nil

	case reflect.String:
		s, err := v.scalarString()
		if err != nil {
			return decodeErr(path, err)
		}
		dst.SetString(s)
		return nil
	}

	// Native layers often send nested structures and scalars as JSON strings.
	if v.kind == KindString {
		nested, err := v.Nested()
		if err != nil {
			return decodeErr(path, fmt.Errorf("%w: string is not %s", ErrWrongKind, dst.Kind()))
		}
		if nested.kind == KindString {
			return decodeErr(path, v.wrongKind(expectedKind(dst.Kind())))
		}
		v = nested
		if v.kind == KindNull {
			dst.Set(reflect.Zero(dst.Type()))
			return nil
		}
	}

	switch dst.Kind() {
	case reflect.Bool:
		b, err := v.Bool()
		if err != nil {
			return decodeErr(path, err)
		}
		dst.SetBool(b)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := v.Int64()
		if err != nil {
			return decodeErr(path, err)
		}
		if dst.OverflowInt(n) {
			return decodeErr(path, fmt.Errorf("%w: %d does not fit %s", ErrOutOfRange, n, dst.Type()))
		}
		dst.SetInt(n)

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		n, err := v.uint64()
		if err != nil {
			return decodeErr(path, err)
		}
		if dst.OverflowUint(n) {
			return decodeErr(path, fmt.Errorf("%w: %d does not fit %s", ErrOutOfRange, n, dst.Type()))
		}
		dst.SetUint(n)

	case reflect.Float32, reflect.Float64:
		f, err := v.Float64()
		if err != nil {
			return decodeErr(path, err)
		}
		if dst.OverflowFloat(f) {
			return decodeErr(path, fmt.Errorf("%w: %v does not fit %s", ErrOutOfRange, f, dst.Type()))
		}
		dst.SetFloat(f)

	case reflect.Slice:
		items, err := v.Array()
		if err != nil {
			return decodeErr(path, err)
		}
		out := reflect.MakeSlice(dst.Type(), len(items), len(items))
		for i, item := range items {
			if err := assign(item, out.Index(i), joinPath(path, strconv.Itoa(i))); err != nil {
				return err
			}
		}
		dst.Set(out)

	case reflect.Map:
		if dst.Type().Key().Kind() != reflect.String {
			return decodeErr(path, fmt.Errorf("%w: map key %s", ErrUnsupportedType, dst.Type().Key()))
		}
		m, err := v.Map()
		if err != nil {
			return decodeErr(path, err)
		}
		out := reflect.MakeMapWithSize(dst.Type(), len(m))
		elemType := dst.Type().Elem()
		for k, item := range m {
			elem := reflect.New(elemType).Elem()
			if err := assign(item, elem, joinPath(path, k)); err != nil {
				return err
			}
			key := reflect.New(dst.Type().Key()).Elem()
			key.SetString(k)
			out.SetMapIndex(key, elem)
		}
		dst.Set(out)

	case reflect.Struct:
		m, err := v.Map()
		if err != nil {
			return decodeErr(path, err)
		}
		for _, f := range cachedFields(dst.Type()) {
			item, ok := lookup(m, f.name)
			if !ok {
				continue
			}
			field, err := fieldByIndex(dst, f.index)
			if err != nil {
				return decodeErr(joinPath(path, f.name), err)
			}
			if err := assign(item, field, joinPath(path, f.name)); err != nil {
				return err
			}
		}

	default:
		return decodeErr(path, fmt.Errorf("%w: %s", ErrUnsupportedType, dst.Type()))
	}
	return nil
}

func (v Value) uint64() (uint64, error) {
	if v.kind != KindNumber {
		return 0, v.wrongKind(KindNumber)
	}
	if n, err := strconv.ParseUint(string(v.num), 10, 64); err == nil {
		return n, nil
	}
	n, err := v.Int64()
	if err != nil {
		f, ferr := v.Float64()
		if ferr == nil && f == math.Trunc(f) && f >= math.Exp2(63) && f < math.Exp2(64) {
			return uint64(f), nil
		}
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("%w: %d is negative", ErrOutOfRange, n)
	}
	return uint64(n), nil
}

func expectedKind(k reflect.Kind) Kind {
	switch k {
	case reflect.Bool:
		return KindBool
	case reflect.Slice:
		return KindArray
	case reflect.Map, reflect.Struct:
		return KindMap
	default:
		return KindNumber
	}
}

// lookup prefers an exact key match and falls back to a case-insensitive
// one, the same way encoding/json matches field names.
func lookup(m map[string]Value, name string) (Value, bool) {
	if v, ok := m[name]; ok {
		return v, true
	}
	for k, v := range m {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return Value{}, false
}

// fieldByIndex walks into embedded structs, allocating nil embedded pointers.
func fieldByIndex(v reflect.Value, index []int) (reflect.Value, error) {
	for i, x := range index {
		if i > 0 && v.Kind() == reflect.Pointer {
			if v.IsNil() {
				if !v.CanSet() {
					return reflect.Value{}, fmt.Errorf("%w: unexported embedded pointer %s", ErrUnsupportedType, v.Type())
				}
				v.Set(reflect.New(v.Type().Elem()))
			}
			v = v.Elem()
		}
		v = v.Field(x)
	}
	return v, nil
}

type structField struct {
	name  string
	index []int
}

var fieldCache sync.Map // map[reflect.Type][]structField

func cachedFields(t reflect.Type) []structField {
	if f, ok := fieldCache.Load(t); ok {
		return f.([]structField)
	}
	f, _ := fieldCache.LoadOrStore(t, typeFields(t, nil))
	return f.([]structField)
}

// typeFields lists the decodable fields of t, flattening untagged embedded
// structs. Outer fields shadow embedded ones of the same name.
func typeFields(t reflect.Type, parent []int) []structField {
	var fields []structField
	seen := map[string]bool{}
	var embedded []structField

	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		index := append(append([]int(nil), parent...), i)

		tag := sf.Tag.Get("json")
		if tag == "-" {
			continue
		}
		name, _, _ := strings.Cut(tag, ",")

		if sf.Anonymous && name == "" {
			ft := sf.Type
			if ft.Kind() == reflect.Pointer {
				ft = ft.Elem()
			}
			if ft.Kind() == reflect.Struct {
				embedded = append(embedded, typeFields(ft, index)...)
				continue
			}
		}
		if !sf.IsExported() {
			continue
		}
		if name == "" {
			name = sf.Name
		}
		seen[name] = true
		fields = append(fields, structField{name: name, index: index})
	}

	for _, f := range embedded {
		if !seen[f.name] {
			seen[f.name] = true
			fields = append(fields, f)
		}
	}
	return fields
}
