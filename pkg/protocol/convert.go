package protocol

import (
	"encoding/json"
	"fmt"
)

// UnsupportedValueError occurs when a Go value has no representation on the
// script side.
type UnsupportedValueError struct {
	Value  any
	Reason string
}

func (e *UnsupportedValueError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("unsupported value %T: %s", e.Value, e.Reason)
	}
	return fmt.Sprintf("unsupported value %T", e.Value)
}

// FromAny converts plain Go values into a Value. It accepts the shapes
// produced by encoding/json and script engines (nil, bool, numbers, string,
// slices and string-keyed maps of those) as well as Value itself.
func FromAny(x any) (Value, error) {
	switch t := x.(type) {
	case nil:
		return Null(), nil
	case Value:
		return t, nil
	case *Value:
		if t == nil {
			return Null(), nil
		}
		return *t, nil
	case bool:
		return Bool(t), nil
	case string:
		return String(t), nil
	case float64:
		return Number(t), nil
	case float32:
		return Number(float64(t)), nil
	case int:
		return Number(float64(t)), nil
	case int8:
		return Number(float64(t)), nil
	case int16:
		return Number(float64(t)), nil
	case int32:
		return Number(float64(t)), nil
	case int64:
		return Number(float64(t)), nil
	case uint:
		return Number(float64(t)), nil
	case uint8:
		return Number(float64(t)), nil
	case uint16:
		return Number(float64(t)), nil
	case uint32:
		return Number(float64(t)), nil
	case uint64:
		return Number(float64(t)), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return Null(), &UnsupportedValueError{Value: x, Reason: err.Error()}
		}
		return Number(f), nil
	case []Value:
		return Array(t...), nil
	case []any:
		items := make([]Value, len(t))
		for i, item := range t {
			v, err := FromAny(item)
			if err != nil {
				return Null(), err
			}
			items[i] = v
		}
		return Array(items...), nil
	case []string:
		items := make([]Value, len(t))
		for i, item := range t {
			items[i] = String(item)
		}
		return Array(items...), nil
	case []float64:
		items := make([]Value, len(t))
		for i, item := range t {
			items[i] = Number(item)
		}
		return Array(items...), nil
	case []int:
		items := make([]Value, len(t))
		for i, item := range t {
			items[i] = Number(float64(item))
		}
		return Array(items...), nil
	case map[string]Value:
		return Object(t), nil
	case map[string]any:
		fields := make(map[string]Value, len(t))
		for k, item := range t {
			v, err := FromAny(item)
			if err != nil {
				return Null(), err
			}
			fields[k] = v
		}
		return Object(fields), nil
	case map[string]string:
		fields := make(map[string]Value, len(t))
		for k, item := range t {
			fields[k] = String(item)
		}
		return Object(fields), nil
	default:
		return Null(), &UnsupportedValueError{Value: x}
	}
}

// FromSlice converts each element with FromAny.
func FromSlice(xs []any) ([]Value, error) {
	out := make([]Value, len(xs))
	for i, x := range xs {
		v, err := FromAny(x)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}
