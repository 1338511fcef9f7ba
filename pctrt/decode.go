package pctrt

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Decode rebuilds a value from a literal written by the precompiler's codec.
// The literal is YAML (JSON literals are accepted too, being valid YAML).
//
// Decode panics if the literal does not decode into T. That only happens when
// a generated file has been edited by hand.
func Decode[T any](literal string) T {
	var v T

	// Byte slices travel as strings so they stay readable in generated code
	if b, ok := any(&v).(*[]byte); ok {
		var s string
		if err := yaml.Unmarshal([]byte(literal), &s); err != nil {
			panic(fmt.Sprintf("pctrt: cannot decode %q into []byte: %v", literal, err))
		}
		*b = []byte(s)
		return v
	}

	if err := yaml.Unmarshal([]byte(literal), &v); err != nil {
		panic(fmt.Sprintf("pctrt: cannot decode %q into %T: %v", literal, v, err))
	}
	return v
}

// Unknown stands in for a value the precompiler could not capture. repr is
// the value as it printed at compile time; the result is always the zero T.
func Unknown[T any](repr string) T {
	var zero T
	return zero
}
