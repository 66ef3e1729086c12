package wire

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/wippyai/script-bridge/errors"
)

// Value is the JSON-compatible representation crossing the script/host
// boundary. A canonical Value is one of:
//
//	nil, bool, int64, float64, string, []Value, map[string]Value
//
// Use FromNative to coerce arbitrary Go values into canonical form.
type Value = any

// Sentinel encodings for floats the wire format cannot represent natively.
const (
	SentinelInfinity    = "__INFINITY__"
	SentinelNegInfinity = "__NEG_INFINITY__"
	SentinelNaN         = "__NAN__"
)

// MaxDepth bounds nesting during canonicalization and encoding so cyclic
// structures fail cleanly instead of overflowing the stack.
const MaxDepth = 128

// FromNative coerces an engine-native Go value into canonical wire form.
// Integer widths collapse to int64, float32 widens to float64, slices and
// string-keyed maps convert recursively. Unsupported types are reported as
// wire-phase protocol errors.
func FromNative(v any) (Value, error) {
	return fromNative(v, 0)
}

func fromNative(v any, depth int) (Value, error) {
	if depth > MaxDepth {
		return nil, errors.Protocol(errors.PhaseWire, "value nesting exceeds maximum depth")
	}

	switch x := v.(type) {
	case nil:
		return nil, nil
	case bool, int64, float64, string:
		return x, nil
	case int:
		return int64(x), nil
	case int8:
		return int64(x), nil
	case int16:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case uint:
		if uint64(x) > math.MaxInt64 {
			return nil, overflowErr(uint64(x))
		}
		return int64(x), nil
	case uint8:
		return int64(x), nil
	case uint16:
		return int64(x), nil
	case uint32:
		return int64(x), nil
	case uint64:
		if x > math.MaxInt64 {
			return nil, overflowErr(x)
		}
		return int64(x), nil
	case float32:
		return float64(x), nil
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i, nil
		}
		f, err := x.Float64()
		if err != nil {
			return nil, errors.New(errors.PhaseWire, errors.KindProtocol).
				Detail("unparseable number %q", x.String()).
				Cause(err).
				Build()
		}
		return f, nil
	case []any:
		out := make([]Value, len(x))
		for i, elem := range x {
			c, err := fromNative(elem, depth+1)
			if err != nil {
				return nil, err
			}
			out[i] = c
		}
		return out, nil
	case map[string]any:
		out := make(map[string]Value, len(x))
		for k, elem := range x {
			c, err := fromNative(elem, depth+1)
			if err != nil {
				return nil, err
			}
			out[k] = c
		}
		return out, nil
	}

	// Slices and maps of concrete element types arrive from engines and
	// hosts as e.g. []int64 or map[string]string; flatten via reflection.
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		out := make([]Value, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			c, err := fromNative(rv.Index(i).Interface(), depth+1)
			if err != nil {
				return nil, err
			}
			out[i] = c
		}
		return out, nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, errors.Protocol(errors.PhaseWire,
				fmt.Sprintf("map key type %s is not a string", rv.Type().Key()))
		}
		out := make(map[string]Value, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			c, err := fromNative(iter.Value().Interface(), depth+1)
			if err != nil {
				return nil, err
			}
			out[iter.Key().String()] = c
		}
		return out, nil
	}

	return nil, errors.Protocol(errors.PhaseWire,
		fmt.Sprintf("unsupported value type %T", v))
}

// formatFloat renders a finite float with an explicit decimal point or
// exponent, so the int/float distinction is visible in the JSON text.
func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

func overflowErr(x uint64) error {
	return errors.Protocol(errors.PhaseWire,
		fmt.Sprintf("unsigned value %d overflows int64", x))
}

// Marshal encodes a canonical wire value as JSON. Non-finite floats are
// encoded as their sentinel strings since JSON has no representation for
// them.
func Marshal(v Value) ([]byte, error) {
	safe, err := toEncodable(v, 0)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(safe)
	if err != nil {
		return nil, errors.New(errors.PhaseWire, errors.KindProtocol).
			Detail("encode wire value").
			Cause(err).
			Build()
	}
	return data, nil
}

func toEncodable(v Value, depth int) (any, error) {
	if depth > MaxDepth {
		return nil, errors.Protocol(errors.PhaseWire, "value nesting exceeds maximum depth")
	}

	switch x := v.(type) {
	case nil, bool, int64, string:
		return x, nil
	case float64:
		switch {
		case math.IsInf(x, 1):
			return SentinelInfinity, nil
		case math.IsInf(x, -1):
			return SentinelNegInfinity, nil
		case math.IsNaN(x):
			return SentinelNaN, nil
		}
		// Emitted pre-encoded so integral floats keep a decimal point and
		// decode back as floats, not integers.
		return json.RawMessage(formatFloat(x)), nil
	case []Value:
		out := make([]any, len(x))
		for i, elem := range x {
			e, err := toEncodable(elem, depth+1)
			if err != nil {
				return nil, err
			}
			out[i] = e
		}
		return out, nil
	case map[string]Value:
		out := make(map[string]any, len(x))
		for k, elem := range x {
			e, err := toEncodable(elem, depth+1)
			if err != nil {
				return nil, err
			}
			out[k] = e
		}
		return out, nil
	}

	return nil, errors.Protocol(errors.PhaseWire,
		fmt.Sprintf("value type %T is not canonical; call FromNative first", v))
}

// Unmarshal decodes JSON into a canonical wire value. Integers survive as
// int64, everything else as float64, and the non-finite sentinel strings
// decode back to their float values.
func Unmarshal(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, errors.New(errors.PhaseWire, errors.KindProtocol).
			Detail("decode wire value").
			Cause(err).
			Build()
	}
	if dec.More() {
		return nil, errors.Protocol(errors.PhaseWire, "trailing data after wire value")
	}
	return fromDecoded(raw)
}

func fromDecoded(v any) (Value, error) {
	switch x := v.(type) {
	case nil, bool:
		return x, nil
	case string:
		switch x {
		case SentinelInfinity:
			return math.Inf(1), nil
		case SentinelNegInfinity:
			return math.Inf(-1), nil
		case SentinelNaN:
			return math.NaN(), nil
		}
		return x, nil
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i, nil
		}
		f, err := x.Float64()
		if err != nil {
			return nil, errors.Protocol(errors.PhaseWire,
				fmt.Sprintf("unparseable number %q", x.String()))
		}
		return f, nil
	case []any:
		out := make([]Value, len(x))
		for i, elem := range x {
			c, err := fromDecoded(elem)
			if err != nil {
				return nil, err
			}
			out[i] = c
		}
		return out, nil
	case map[string]any:
		out := make(map[string]Value, len(x))
		for k, elem := range x {
			c, err := fromDecoded(elem)
			if err != nil {
				return nil, err
			}
			out[k] = c
		}
		return out, nil
	}

	return nil, errors.Protocol(errors.PhaseWire,
		fmt.Sprintf("unexpected decoded type %T", v))
}

// Equal reports deep equality of two canonical wire values. Unlike ==, NaN
// compares equal to NaN, so round-tripped values remain comparable. Object
// key order is irrelevant.
func Equal(a, b Value) bool {
	switch x := a.(type) {
	case nil:
		return b == nil
	case bool:
		y, ok := b.(bool)
		return ok && x == y
	case int64:
		y, ok := b.(int64)
		return ok && x == y
	case string:
		y, ok := b.(string)
		return ok && x == y
	case float64:
		y, ok := b.(float64)
		if !ok {
			return false
		}
		if math.IsNaN(x) && math.IsNaN(y) {
			return true
		}
		return x == y
	case []Value:
		y, ok := b.([]Value)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !Equal(x[i], y[i]) {
				return false
			}
		}
		return true
	case map[string]Value:
		y, ok := b.(map[string]Value)
		if !ok || len(x) != len(y) {
			return false
		}
		for k, v := range x {
			w, present := y[k]
			if !present || !Equal(v, w) {
				return false
			}
		}
		return true
	}
	return false
}
