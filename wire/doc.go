// Package wire provides the JSON-compatible value codec crossing the
// script/host boundary.
//
// # Value Model
//
// A canonical wire value is a tagged union over plain Go types:
//
//	Wire type       Go representation
//	─────────────────────────────────
//	null            nil
//	bool            bool
//	int             int64
//	float           float64
//	string          string
//	array           []Value
//	object          map[string]Value
//
// Object key insertion order is irrelevant; Equal compares objects by key.
//
// # Canonicalization
//
// Engines and hosts hand over arbitrary Go values. FromNative collapses
// them into canonical form: all integer widths become int64 (unsigned
// values above math.MaxInt64 are rejected), float32 widens to float64, and
// slices and string-keyed maps convert recursively. Anything else is a
// wire-phase protocol error.
//
// # Non-Finite Floats
//
// JSON has no representation for +Inf, -Inf or NaN, so Marshal encodes them
// as sentinel strings and Unmarshal decodes the sentinels back:
//
//	+Inf  ←→  "__INFINITY__"
//	-Inf  ←→  "__NEG_INFINITY__"
//	NaN   ←→  "__NAN__"
//
// Any value, including the non-finite floats, survives a
// Marshal/Unmarshal round trip as Equal-comparable. NaN compares equal to
// NaN under Equal so round-trip checks never need special cases.
//
// # Int/Float Distinction
//
// Unmarshal preserves the int/float split: syntactically integral JSON
// numbers decode to int64, everything else to float64.
package wire
