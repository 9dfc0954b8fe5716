package variant

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
)

// Marshal encodes v per spec.md §4.2's JSON surface:
//
//	String/Bool/Double/Int32       -> native JSON
//	Int64                          -> ["long", lo32, hi32]
//	ArrayBuffer                    -> ["ArrayBuffer", base64]
//	Array                          -> JSON array
//	Dictionary                     -> JSON object, insertion-ordered
//	Object                         -> ["object", id] (this build's own
//	                                   extension; spec.md does not define
//	                                   an Object wire form because the
//	                                   source bridge never serialized one)
//
// Dictionary/array encoding is hand-rolled rather than routed through
// encoding/json's map marshaling because Go maps do not preserve
// insertion order and this package's Open Question decision (see
// DESIGN.md) is to emit dictionaries in insertion order for deterministic
// wire output.
func Marshal(v Variant) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeJSON(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeJSON(buf *bytes.Buffer, v Variant) error {
	switch v.Kind() {
	case Undefined, Null:
		buf.WriteString("null")
	case Bool:
		if v.Bool() {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case Int32:
		fmt.Fprintf(buf, "%d", v.Int32())
	case Double:
		b, err := json.Marshal(v.Double())
		if err != nil {
			return err
		}
		buf.Write(b)
	case String:
		b, err := json.Marshal(string(v.Bytes()))
		if err != nil {
			return err
		}
		buf.Write(b)
	case Array:
		buf.WriteByte('[')
		for i := 0; i < v.ArrayLen(); i++ {
			if i > 0 {
				buf.WriteByte(',')
			}
			el, _ := v.ArrayGet(i)
			if err := writeJSON(buf, el); err != nil {
				Release(el)
				return err
			}
			Release(el)
		}
		buf.WriteByte(']')
	case Dictionary:
		buf.WriteByte('{')
		for i, key := range v.DictKeys() {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := json.Marshal(key)
			if err != nil {
				return err
			}
			buf.Write(kb)
			buf.WriteByte(':')
			val, _ := v.DictGet(key)
			if err := writeJSON(buf, val); err != nil {
				Release(val)
				return err
			}
			Release(val)
		}
		buf.WriteByte('}')
	case ArrayBuffer:
		s := base64.StdEncoding.EncodeToString(v.Bytes())
		sb, err := json.Marshal(s)
		if err != nil {
			return err
		}
		buf.WriteString(`["ArrayBuffer",`)
		buf.Write(sb)
		buf.WriteByte(']')
	case Int64:
		i := v.Int64()
		lo := int32(uint32(i))
		hi := int32(uint32(i >> 32))
		fmt.Fprintf(buf, `["long",%d,%d]`, lo, hi)
	case Object:
		fmt.Fprintf(buf, `["object",%d]`, v.ObjectID())
	default:
		return fmt.Errorf("variant: cannot marshal kind %s", v.Kind())
	}
	return nil
}

// Unmarshal decodes a single JSON value into a Variant, inverting Marshal
// for every kind except Object (an `["object", id]` tuple decodes as an
// Array); dictionary keys come back in an unspecified order. json.Number (via Decoder.UseNumber) distinguishes integers that fit
// int32 from doubles, matching spec.md §3's Int32/Double split.
func Unmarshal(data []byte) (Variant, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var x any
	if err := dec.Decode(&x); err != nil {
		return Variant{}, err
	}
	return fromAny(x)
}

func fromAny(x any) (Variant, error) {
	switch t := x.(type) {
	case nil:
		return NewNull(), nil
	case bool:
		return NewBool(t), nil
	case json.Number:
		if i, err := t.Int64(); err == nil && i >= math.MinInt32 && i <= math.MaxInt32 {
			return NewInt32(int32(i)), nil
		}
		f, err := t.Float64()
		if err != nil {
			return Variant{}, fmt.Errorf("variant: invalid number %q: %w", t, err)
		}
		return NewDouble(f), nil
	case string:
		return NewString([]byte(t)), nil
	case []any:
		if tag, ok := tupleTag(t); ok {
			switch tag {
			case "long":
				return decodeLong(t)
			case "ArrayBuffer":
				return decodeArrayBuffer(t)
			}
		}
		arr := NewArray()
		for i, el := range t {
			ev, err := fromAny(el)
			if err != nil {
				Release(arr)
				return Variant{}, err
			}
			arr.ArraySet(i, ev)
		}
		return arr, nil
	case map[string]any:
		d := NewDictionary()
		for k, val := range t {
			vv, err := fromAny(val)
			if err != nil {
				Release(d)
				return Variant{}, err
			}
			d.DictSet(k, vv)
		}
		return d, nil
	default:
		return Variant{}, fmt.Errorf("variant: unsupported JSON value of type %T", x)
	}
}

func tupleTag(t []any) (string, bool) {
	if len(t) == 0 {
		return "", false
	}
	s, ok := t[0].(string)
	return s, ok
}

func decodeLong(t []any) (Variant, error) {
	if len(t) != 3 {
		return Variant{}, fmt.Errorf("variant: malformed [\"long\",lo,hi] tuple")
	}
	lo, okLo := t[1].(json.Number)
	hi, okHi := t[2].(json.Number)
	if !okLo || !okHi {
		return Variant{}, fmt.Errorf("variant: [\"long\",lo,hi] components must be integers")
	}
	loV, err := lo.Int64()
	if err != nil {
		return Variant{}, err
	}
	hiV, err := hi.Int64()
	if err != nil {
		return Variant{}, err
	}
	val := (int64(int32(hiV)) << 32) | int64(uint32(int32(loV)))
	return NewInt64(val), nil
}

func decodeArrayBuffer(t []any) (Variant, error) {
	if len(t) != 2 {
		return Variant{}, fmt.Errorf("variant: malformed [\"ArrayBuffer\",base64] tuple")
	}
	s, ok := t[1].(string)
	if !ok {
		return Variant{}, fmt.Errorf("variant: ArrayBuffer payload must be a base64 string")
	}
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return Variant{}, fmt.Errorf("variant: invalid base64 ArrayBuffer: %w", err)
	}
	return NewArrayBufferFromBytes(raw), nil
}
