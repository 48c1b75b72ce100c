package core

import (
	"math"
	"reflect"
)

// Sanitize returns a copy of v that is safe to serialize anywhere:
// NaN and infinite floats become nil, typed numeric slices become []any,
// maps with string keys become map[string]any, and pointers are
// dereferenced. Other values are returned unchanged. Sanitize is
// idempotent.
func Sanitize(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case float64:
		return finiteOrNil(x)
	case float32:
		return finiteOrNil(float64(x))
	case string, bool, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return x
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, val := range x {
			out[k] = Sanitize(val)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, val := range x {
			out[i] = Sanitize(val)
		}
		return out
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer:
		if rv.IsNil() {
			return nil
		}
		return Sanitize(rv.Elem().Interface())
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return nil
		}
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return v // []byte stays opaque
		}
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = Sanitize(rv.Index(i).Interface())
		}
		return out
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return v
		}
		if rv.IsNil() {
			return nil
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[iter.Key().String()] = Sanitize(iter.Value().Interface())
		}
		return out
	case reflect.Float32, reflect.Float64:
		return finiteOrNil(rv.Float())
	}
	return v
}

// finitePtr returns nil for NaN or infinite values.
func finitePtr(f *float64) *float64 {
	if f == nil || math.IsNaN(*f) || math.IsInf(*f, 0) {
		return nil
	}
	return f
}

// sanitizeFloats drops non-finite entries from a numeric list.
func sanitizeFloats(in []float64) []float64 {
	out := make([]float64, 0, len(in))
	for _, f := range in {
		if !math.IsNaN(f) && !math.IsInf(f, 0) {
			out = append(out, f)
		}
	}
	return out
}

// sanitizeExtensions drops nil entries after sanitizing values.
func sanitizeExtensions(ext map[string]any) map[string]any {
	out := make(map[string]any, len(ext))
	for k, v := range ext {
		if s := Sanitize(v); s != nil {
			out[k] = s
		}
	}
	return out
}
