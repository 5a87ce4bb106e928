package types

import (
	"bytes"
	"encoding/json"
)

// Field models an optional update value with three states: unset (leave the
// column unchanged), null (clear the column) and set (write the value).
type Field[T any] struct {
	set   bool
	value *T
}

// Set returns a Field that writes v.
func Set[T any](v T) Field[T] {
	return Field[T]{set: true, value: &v}
}

// Null returns a Field that clears the column.
func Null[T any]() Field[T] {
	return Field[T]{set: true}
}

// SetPtr returns a Field that writes *v, or clears the column when v is nil.
func SetPtr[T any](v *T) Field[T] {
	if v == nil {
		return Null[T]()
	}
	val := *v
	return Field[T]{set: true, value: &val}
}

// IsSet reports whether the field participates in the update.
func (f Field[T]) IsSet() bool {
	return f.set
}

// IsNull reports whether the field explicitly clears the column.
func (f Field[T]) IsNull() bool {
	return f.set && f.value == nil
}

// Value returns the value to write; nil when unset or null.
func (f Field[T]) Value() *T {
	return f.value
}

// Column returns the representation that belongs in a column map: nil for
// null, the plain value otherwise. ok is false when the field is unset.
func (f Field[T]) Column() (value any, ok bool) {
	if !f.set {
		return nil, false
	}
	if f.value == nil {
		return nil, true
	}
	return *f.value, true
}

// UnmarshalJSON implements json.Unmarshaler. A present JSON null yields Null;
// an absent key leaves the field unset.
func (f *Field[T]) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil
	}
	if bytes.Equal(trimmed, []byte("null")) {
		f.set = true
		f.value = nil
		return nil
	}
	var parsed T
	if err := json.Unmarshal(trimmed, &parsed); err != nil {
		return err
	}
	f.set = true
	f.value = &parsed
	return nil
}

// MarshalJSON implements json.Marshaler.
func (f Field[T]) MarshalJSON() ([]byte, error) {
	if f.value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(*f.value)
}
