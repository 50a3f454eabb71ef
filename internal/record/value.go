package record

import (
	"fmt"
	"math"
	"slices"
	"time"
	"unicode/utf16"
)

// Value is a sealed interface over the supported field value types.
type Value interface {
	recordValue()
}

// Null is an explicit absent value. Putting Null into an optional field is
// the same as leaving the field out.
type Null struct{}

func (Null) recordValue() {}

// String is a text value.
type String string

func (String) recordValue() {}

// Int is an integer value.
type Int int64

func (Int) recordValue() {}

// Float is a floating point value. NaN and infinities are rejected when
// marshaling.
type Float float64

func (Float) recordValue() {}

// Bool is a boolean value.
type Bool bool

func (Bool) recordValue() {}

// Time is an instant. The store keeps millisecond precision in UTC.
type Time time.Time

func (Time) recordValue() {}

// Ref names an item by type and network-local id. Reference fields whose
// target is schema.Any take and return a Ref; typed reference fields use a
// plain String local id.
type Ref struct {
	Type string
	ID   string
}

func (Ref) recordValue() {}

func (r Ref) String() string {
	return r.Type + ":" + r.ID
}

// Array is an ordered list of values.
type Array []Value

func (Array) recordValue() {}

// Object maps field names to values.
// Use SortedKeys() for deterministic iteration.
type Object map[string]Value

func (Object) recordValue() {}

// Pair is a key-value pair for Object construction.
type Pair struct {
	Key   string
	Value Value
}

// P is a shorthand for Pair.
// Example: NewObject(P("id", String("abc")), P("time", T(now)))
func P(key string, value Value) Pair {
	return Pair{Key: key, Value: value}
}

// NewObject builds an Object from pairs. Later pairs overwrite earlier
// ones with the same key.
func NewObject(pairs ...Pair) Object {
	obj := make(Object, len(pairs))
	for _, p := range pairs {
		obj[p.Key] = p.Value
	}
	return obj
}

// T converts a time to a Time value truncated to milliseconds in UTC,
// which is what the store round-trips.
func T(t time.Time) Time {
	return Time(t.UTC().Truncate(time.Millisecond))
}

// SortedKeys returns keys in UTF-16 code unit order.
// Go's default string ordering compares UTF-8 bytes, which differs for
// characters outside the BMP.
func (obj Object) SortedKeys() []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareUTF16)
	return keys
}

// Clone returns a shallow copy of obj.
func (obj Object) Clone() Object {
	out := make(Object, len(obj))
	for k, v := range obj {
		out[k] = v
	}
	return out
}

// Str returns the string stored under key, if any.
func (obj Object) Str(key string) (string, bool) {
	s, ok := obj[key].(String)
	return string(s), ok
}

// Has reports whether key holds a non-null value.
func (obj Object) Has(key string) bool {
	v, ok := obj[key]
	if !ok {
		return false
	}
	_, null := v.(Null)
	return !null
}

func compareUTF16(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	n := min(len(a16), len(b16))
	for i := 0; i < n; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a16) < len(b16):
		return -1
	case len(a16) > len(b16):
		return 1
	}
	return 0
}

// Equal reports whether a and b hold the same value. A nil Value and Null
// are equal. Times compare at millisecond precision.
func Equal(a, b Value) bool {
	if isNull(a) || isNull(b) {
		return isNull(a) && isNull(b)
	}

	switch av := a.(type) {
	case String:
		bv, ok := b.(String)
		return ok && av == bv
	case Int:
		switch bv := b.(type) {
		case Int:
			return av == bv
		case Float:
			return float64(av) == float64(bv)
		}
		return false
	case Float:
		switch bv := b.(type) {
		case Float:
			return av == bv
		case Int:
			return float64(av) == float64(bv)
		}
		return false
	case Bool:
		bv, ok := b.(Bool)
		return ok && av == bv
	case Time:
		bv, ok := b.(Time)
		return ok && time.Time(av).UnixMilli() == time.Time(bv).UnixMilli()
	case Ref:
		bv, ok := b.(Ref)
		return ok && av == bv
	case Array:
		bv, ok := b.(Array)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case Object:
		bv, ok := b.(Object)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			w, ok := bv[k]
			if !ok || !Equal(v, w) {
				return false
			}
		}
		return true
	}
	return false
}

func isNull(v Value) bool {
	if v == nil {
		return true
	}
	_, ok := v.(Null)
	return ok
}

// FromAny converts decoded YAML or JSON data into a Value. Maps must have
// string keys. Integral numbers become Int, other numbers Float.
func FromAny(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return val, nil
	case string:
		return String(val), nil
	case bool:
		return Bool(val), nil
	case int:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case uint64:
		if val > math.MaxInt64 {
			return nil, fmt.Errorf("integer %d overflows int64", val)
		}
		return Int(val), nil
	case float64:
		return Float(val), nil
	case time.Time:
		return T(val), nil
	case []any:
		arr := make(Array, len(val))
		for i, elem := range val {
			ev, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			arr[i] = ev
		}
		return arr, nil
	case map[string]any:
		obj := make(Object, len(val))
		for k, elem := range val {
			ev, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("[%q]: %w", k, err)
			}
			obj[k] = ev
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}

// ObjectFromAny is FromAny for a top-level map.
func ObjectFromAny(m map[string]any) (Object, error) {
	if m == nil {
		return Object{}, nil
	}
	v, err := FromAny(m)
	if err != nil {
		return nil, err
	}
	return v.(Object), nil
}
