package misc

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"reflect"
)

// IsEmpty reports whether v carries no value: nil, an empty string, NaN, or
// an empty slice, array or map. Zero numbers and false are not empty.
func IsEmpty(v any) bool {
	if v == nil {
		return true
	}
	switch t := v.(type) {
	case string:
		return t == ""
	case float64:
		return math.IsNaN(t)
	case float32:
		return math.IsNaN(float64(t))
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map:
		return rv.IsNil() || rv.Len() == 0
	case reflect.Array:
		return rv.Len() == 0
	case reflect.Pointer, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

// FilterObject returns the entries of m for which keep returns true. A nil
// keep drops empty values.
func FilterObject(m map[string]any, keep func(v any, k string) bool) map[string]any {
	if keep == nil {
		keep = func(v any, _ string) bool { return !IsEmpty(v) }
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		if keep(v, k) {
			out[k] = v
		}
	}
	return out
}

// UID returns a random lowercase hex string of the given length.
func UID(length int) (string, error) {
	if length < 1 {
		return "", fmt.Errorf("length expected natural number, got %d", length)
	}
	out := make([]byte, 0, length)
	for len(out) < length {
		b := make([]byte, 256)
		if _, err := rand.Read(b); err != nil {
			return "", err
		}
		sum := sha256.Sum256(b)
		out = append(out, hex.EncodeToString(sum[:])...)
	}
	return string(out[:length]), nil
}
