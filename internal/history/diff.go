package history

import (
	"math"
	"reflect"
	"sort"

	"github.com/google/go-cmp/cmp"
)

var equalOpts = cmp.Options{
	cmp.Exporter(func(reflect.Type) bool { return true }),
	cmp.FilterValues(func(x, y any) bool {
		return isNumber(x) && isNumber(y)
	}, cmp.Comparer(func(x, y any) bool {
		return sameNumber(x, y)
	})),
}

// Equal reports whether two field values are the same value. Numbers compare
// by value regardless of their Go type, as the store does.
func Equal(a, b any) bool {
	return cmp.Equal(a, b, equalOpts)
}

// integer is an integral value split by sign so int64 and uint64 both fit.
type integer struct {
	neg bool
	abs uint64
}

func toInteger(v any) (integer, bool) {
	switch n := v.(type) {
	case int:
		return signed(int64(n)), true
	case int8:
		return signed(int64(n)), true
	case int16:
		return signed(int64(n)), true
	case int32:
		return signed(int64(n)), true
	case int64:
		return signed(n), true
	case uint:
		return integer{abs: uint64(n)}, true
	case uint8:
		return integer{abs: uint64(n)}, true
	case uint16:
		return integer{abs: uint64(n)}, true
	case uint32:
		return integer{abs: uint64(n)}, true
	case uint64:
		return integer{abs: n}, true
	}
	return integer{}, false
}

func signed(n int64) integer {
	if n < 0 {
		return integer{neg: true, abs: uint64(-(n + 1)) + 1}
	}
	return integer{abs: uint64(n)}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func isNumber(v any) bool {
	_, i := toInteger(v)
	_, f := toFloat(v)
	return i || f
}

// sameNumber compares integers exactly and floats against integers only
// when the float is integral, so large 64-bit values are not rounded.
func sameNumber(x, y any) bool {
	xi, xInt := toInteger(x)
	yi, yInt := toInteger(y)
	xf, _ := toFloat(x)
	yf, _ := toFloat(y)
	switch {
	case xInt && yInt:
		return xi == yi || (xi.abs == 0 && yi.abs == 0)
	case xInt:
		return floatIsInteger(yf, xi)
	case yInt:
		return floatIsInteger(xf, yi)
	}
	return xf == yf
}

func floatIsInteger(f float64, n integer) bool {
	if f != math.Trunc(f) || math.IsInf(f, 0) {
		return false
	}
	neg := f < 0
	if neg {
		f = -f
	}
	if f >= 1<<64 {
		return false
	}
	abs := uint64(f)
	if abs == 0 {
		return n.abs == 0
	}
	return neg == n.neg && abs == n.abs
}

// ReplaceDiff computes the diff of replacing the non-reserved fields of old
// with next: fields missing from next are removed, fields new or different
// in next carry their new value.
func ReplaceDiff(old, next map[string]any) Diff {
	d := Diff{}
	for k := range old {
		if IsReserved(k) {
			continue
		}
		if _, ok := next[k]; !ok {
			d[k] = nil
		}
	}
	for k, v := range next {
		if IsReserved(k) {
			continue
		}
		if ov, ok := old[k]; !ok || !Equal(ov, v) {
			d[k] = v
		}
	}
	return d
}

// UpdateDiff computes the diff of setting set and unsetting unset on old.
// Unsetting a field old doesn't have contributes nothing.
func UpdateDiff(old, set map[string]any, unset []string) Diff {
	d := Diff{}
	for _, k := range unset {
		if IsReserved(k) {
			continue
		}
		if _, ok := old[k]; ok {
			d[k] = nil
		}
	}
	for k, v := range set {
		if IsReserved(k) {
			continue
		}
		if ov, ok := old[k]; !ok || !Equal(ov, v) {
			d[k] = v
		}
	}
	return d
}

// SplitChanges separates a partial body into the fields to set and the
// fields to remove (nil values).
func SplitChanges(changes map[string]any) (map[string]any, []string) {
	set := map[string]any{}
	unset := []string{}
	for k, v := range changes {
		if v == nil {
			unset = append(unset, k)
			continue
		}
		set[k] = v
	}
	sort.Strings(unset)
	return set, unset
}
