// Package domain contains the core domain models for the action graph engine
// and the graph pipeline runtime.
package domain

import "unique"

// InternedString is a value object wrapping a unique.Handle[string].
// It gives path and tag names a single canonical identity per distinct
// string value, which both the FileItem cache and the pipeline graph's
// tag resolution rely on.
type InternedString struct {
	h unique.Handle[string]
}

// NewInternedString interns s and returns its canonical handle.
func NewInternedString(s string) InternedString {
	return InternedString{h: unique.Make(s)}
}

// String returns the underlying string value.
func (is InternedString) String() string {
	var zero unique.Handle[string]
	if is.h == zero {
		return ""
	}
	return is.h.Value()
}

// IsZero reports whether is was never assigned via NewInternedString.
func (is InternedString) IsZero() bool {
	var zero unique.Handle[string]
	return is.h == zero
}

// MarshalText implements encoding.TextMarshaler.
func (is InternedString) MarshalText() ([]byte, error) {
	return []byte(is.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (is *InternedString) UnmarshalText(text []byte) error {
	is.h = unique.Make(string(text))
	return nil
}
