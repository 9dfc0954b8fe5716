// Package protocol implements the request parser and response builder
// from spec.md §4.4/§4.5/§4.9 (components C4/C5): decoding a raw JSON
// request into a structured execution plan, and assembling the JSON
// response the engine posts back.
package protocol

import (
	"encoding/json"
	"math"

	"github.com/nativebridge/engine/abi"
	"github.com/nativebridge/engine/internal/bridgeerr"
)

// tagFromWire maps the type-tag strings spec.md §4.4 and §4.2 use on the
// wire to the internal abi.Tag space. "long" names Int64, which
// abi.Tag.String() calls "int64", so the mapping is explicit rather than
// derived.
func tagFromWire(s string) (abi.Tag, bool) {
	switch s {
	case "int8":
		return abi.TagInt8, true
	case "uint8":
		return abi.TagUint8, true
	case "int16":
		return abi.TagInt16, true
	case "uint16":
		return abi.TagUint16, true
	case "int32":
		return abi.TagInt32, true
	case "uint32":
		return abi.TagUint32, true
	case "long":
		return abi.TagInt64, true
	case "uint64":
		return abi.TagUint64, true
	case "float32":
		return abi.TagFloat32, true
	case "float64":
		return abi.TagFloat64, true
	case "pointer":
		return abi.TagPointer, true
	case "funcptr":
		return abi.TagFuncPtr, true
	case "var":
		return abi.TagVar, true
	case "function":
		return abi.TagFuncID, true
	default:
		return 0, false
	}
}

func wireFromTag(t abi.Tag) string {
	switch t {
	case abi.TagInt64:
		return "long"
	case abi.TagFuncID, abi.TagFuncIDFree:
		return "function"
	default:
		return t.String()
	}
}

// jsonNumberToInt64 decodes a json.RawMessage holding a JSON number into
// an int64, failing with KindTypeMismatch on non-numeric input.
func jsonNumberToInt64(raw json.RawMessage) (int64, error) {
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, bridgeerr.Wrap(bridgeerr.KindTypeMismatch, err, "expected a number")
	}
	i, err := n.Int64()
	if err != nil {
		return 0, bridgeerr.Wrap(bridgeerr.KindTypeMismatch, err, "expected an integer, got %s", n)
	}
	return i, nil
}

func jsonNumberToFloat64(raw json.RawMessage) (float64, error) {
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, bridgeerr.Wrap(bridgeerr.KindTypeMismatch, err, "expected a number")
	}
	f, err := n.Float64()
	if err != nil {
		return 0, bridgeerr.Wrap(bridgeerr.KindTypeMismatch, err, "expected a float, got %s", n)
	}
	return f, nil
}

func checkRange(tag abi.Tag, v int64) error {
	var lo, hi int64
	switch tag {
	case abi.TagInt8:
		lo, hi = math.MinInt8, math.MaxInt8
	case abi.TagUint8:
		lo, hi = 0, math.MaxUint8
	case abi.TagInt16:
		lo, hi = math.MinInt16, math.MaxInt16
	case abi.TagUint16:
		lo, hi = 0, math.MaxUint16
	case abi.TagInt32:
		lo, hi = math.MinInt32, math.MaxInt32
	case abi.TagUint32:
		lo, hi = 0, math.MaxUint32
	default:
		return nil
	}
	if v < lo || v > hi {
		return bridgeerr.New(bridgeerr.KindTypeMismatch, "value %d out of range for %s", v, tag)
	}
	return nil
}
