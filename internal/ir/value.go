package ir

import (
	"slices"
	"unicode/utf16"
)

// Value is a sealed interface over the canonical value tree used for diffing.
// Only Null, String, Int, Bool, List, Record and Map implement it.
// There is no float kind; prices and quantities are whole yen and whole units.
type Value interface {
	value() // Sealed - only these types implement it
}

// Null represents an absent value.
type Null struct{}

func (Null) value() {}

// String represents a string value.
type String string

func (String) value() {}

// Int represents an integer value.
type Int int64

func (Int) value() {}

// Bool represents a boolean value.
type Bool bool

func (Bool) value() {}

// List is compared positionally: index is the identity of an element.
type List []Value

func (List) value() {}

// Field is one named member of a Record.
type Field struct {
	Key   string
	Value Value
}

// Record is an object with a fixed, schema-defined field order.
// The differ walks a Record in declaration order, which is what makes the
// delta order reproducible.
type Record []Field

func (Record) value() {}

// Get returns the value for key and whether it was present.
func (r Record) Get(key string) (Value, bool) {
	for _, f := range r {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// Keys returns field keys in declaration order.
func (r Record) Keys() []string {
	keys := make([]string, len(r))
	for i, f := range r {
		keys[i] = f.Key
	}
	return keys
}

// F is shorthand for constructing a Field.
// Example: Record{F("name", String("極")), F("quantity", Int(2))}
func F(key string, v Value) Field {
	return Field{Key: key, Value: v}
}

// Map is an object keyed by caller-assigned identifiers.
// Iteration always goes through SortedKeys.
type Map map[string]Value

func (Map) value() {}

// SortedKeys returns keys in RFC 8785 order (UTF-16 code units).
// Go's default string ordering compares UTF-8 bytes, which differs for
// characters outside the BMP.
func (m Map) SortedKeys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, CompareKeys)
	return keys
}

// CompareKeys compares strings by UTF-16 code units as required by RFC 8785.
func CompareKeys(a, b string) int {
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

// Equal reports whether two values are structurally identical.
// Record equality is order-sensitive; Map equality is not.
func Equal(a, b Value) bool {
	switch av := a.(type) {
	case nil:
		return b == nil
	case Null:
		_, ok := b.(Null)
		return ok
	case String:
		bv, ok := b.(String)
		return ok && av == bv
	case Int:
		bv, ok := b.(Int)
		return ok && av == bv
	case Bool:
		bv, ok := b.(Bool)
		return ok && av == bv
	case List:
		bv, ok := b.(List)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case Record:
		bv, ok := b.(Record)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if av[i].Key != bv[i].Key || !Equal(av[i].Value, bv[i].Value) {
				return false
			}
		}
		return true
	case Map:
		bv, ok := b.(Map)
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

// IsScalar reports whether v is a leaf (Null, String, Int or Bool).
func IsScalar(v Value) bool {
	switch v.(type) {
	case Null, String, Int, Bool:
		return true
	}
	return false
}
