package simulator

import (
	"fmt"

	"github.com/SebastienMelki/pushbridge/internal/native"
	"github.com/SebastienMelki/pushbridge/internal/payload"
)

// args gives typed access to a call's positional arguments.
type args struct {
	method string
	items  []payload.Value
}

func callArgs(c native.Call) (args, error) {
	a := args{method: c.Method}
	for i, x := range c.Args {
		v, err := payload.FromNative(x)
		if err != nil {
			return a, fmt.Errorf("%s arg %d: %w", c.Method, i, err)
		}
		a.items = append(a.items, v)
	}
	return a, nil
}

func (a args) at(i int) (payload.Value, error) {
	if i >= len(a.items) {
		return payload.Null(), fmt.Errorf("%s: missing arg %d", a.method, i)
	}
	return a.items[i], nil
}

func (a args) str(i int) (string, error) {
	v, err := a.at(i)
	if err != nil {
		return "", err
	}
	if v.IsNull() {
		return "", nil
	}
	return v.Str()
}

func (a args) boolean(i int) (bool, error) {
	v, err := a.at(i)
	if err != nil {
		return false, err
	}
	return v.Bool()
}

func (a args) integer(i int) (int64, error) {
	v, err := a.at(i)
	if err != nil {
		return 0, err
	}
	return v.Int64()
}

func (a args) float(i int) (float64, error) {
	v, err := a.at(i)
	if err != nil {
		return 0, err
	}
	return v.Float64()
}

// scalar renders a string, number or boolean argument as a string.
func (a args) scalar(i int) (string, error) {
	v, err := a.at(i)
	if err != nil {
		return "", err
	}
	if v.Kind() == payload.KindString {
		return v.Str()
	}
	if v.Kind() == payload.KindArray || v.Kind() == payload.KindMap {
		return "", fmt.Errorf("%s arg %d: want scalar, got %s", a.method, i, v.Kind())
	}
	return v.String(), nil
}

func (a args) stringMap(i int) (map[string]string, error) {
	v, err := a.at(i)
	if err != nil {
		return nil, err
	}
	return v.StringMap()
}

func (a args) strings(i int) ([]string, error) {
	v, err := a.at(i)
	if err != nil {
		return nil, err
	}
	items, err := v.Array()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		s, err := item.Str()
		if err != nil {
			return nil, fmt.Errorf("%s arg %d: %w", a.method, i, err)
		}
		out = append(out, s)
	}
	return out, nil
}
