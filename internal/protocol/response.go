package protocol

import (
	"bytes"
	"fmt"
	"unsafe"

	"github.com/nativebridge/engine/abi"
	"github.com/nativebridge/engine/internal/bridgeerr"
	"github.com/nativebridge/engine/internal/handle"
	"github.com/nativebridge/engine/internal/variant"
)

// Response is the response Variant spec.md §3/§6 describes, already
// reduced to its three wire shapes: normal, callback, and error.
type Response struct {
	ID     int32
	CbID   *int32
	Err    string
	Values [][]byte // each element is a complete JSON value
}

// NewResponse starts a normal response for request id.
func NewResponse(id int32) *Response { return &Response{ID: id} }

// NewCallbackResponse starts the intermediate response a trampoline posts
// when it re-enters the host: `id` is the callback's func-id, cbID is the
// per-signature monotonic callback id (spec.md §4.7 step 1).
func NewCallbackResponse(funcID int32, cbID int32) *Response {
	return &Response{ID: funcID, CbID: &cbID}
}

// SetError marks the response as a failure; any previously added values
// are discarded, matching "the command aborts... the response carries the
// error string" (spec.md §7).
func (r *Response) SetError(err error) {
	r.Err = err.Error()
	r.Values = nil
}

// AddValue appends a pre-encoded JSON value to the response's values
// array, in call order.
func (r *Response) AddValue(raw []byte) {
	r.Values = append(r.Values, raw)
}

// Encode renders r as the wire JSON spec.md §6 specifies.
func (r *Response) Encode() []byte {
	var buf bytes.Buffer
	buf.WriteByte('{')
	fmt.Fprintf(&buf, `"id":%d`, r.ID)
	if r.Err != "" {
		errJSON, _ := jsonString(r.Err)
		fmt.Fprintf(&buf, `,"error":%s`, errJSON)
		buf.WriteByte('}')
		return buf.Bytes()
	}
	if r.CbID != nil {
		fmt.Fprintf(&buf, `,"cbId":%d`, *r.CbID)
	}
	buf.WriteString(`,"values":[`)
	for i, v := range r.Values {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.Write(v)
	}
	buf.WriteString(`]}`)
	return buf.Bytes()
}

func jsonString(s string) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			buf.WriteString(`\"`)
		case '\\':
			buf.WriteString(`\\`)
		case '\n':
			buf.WriteString(`\n`)
		default:
			buf.WriteRune(r)
		}
	}
	buf.WriteByte('"')
	return buf.Bytes(), nil
}

// EncodeHandleValue renders handle h's current value the way `get`
// requires: the Variant wire form for Var handles, the `["long", lo, hi]`
// tuple for int64/uint64 handles, a plain JSON number for the other scalar
// and pointer handles, and the `["function", func_id]` placeholder
// for function handles — the placeholder lives here, not in
// internal/variant, because func-id is a Handle Table concept (spec.md
// §3), not a Variant sum-type member.
func EncodeHandleValue(tbl *handle.Table, h uint32) ([]byte, error) {
	tag, err := tbl.Tag(h)
	if err != nil {
		return nil, err
	}
	val, err := tbl.Value(h)
	if err != nil {
		return nil, err
	}
	switch tag {
	case abi.TagInt8:
		return variant.Marshal(variant.NewInt32(int32(val.(int8))))
	case abi.TagUint8:
		return variant.Marshal(variant.NewInt32(int32(val.(uint8))))
	case abi.TagInt16:
		return variant.Marshal(variant.NewInt32(int32(val.(int16))))
	case abi.TagUint16:
		return variant.Marshal(variant.NewInt32(int32(val.(uint16))))
	case abi.TagInt32:
		return variant.Marshal(variant.NewInt32(val.(int32)))
	case abi.TagUint32:
		return variant.Marshal(variant.NewDouble(float64(val.(uint32))))
	case abi.TagInt64:
		return variant.Marshal(variant.NewInt64(val.(int64)))
	case abi.TagUint64:
		return variant.Marshal(variant.NewInt64(int64(val.(uint64))))
	case abi.TagFloat32:
		return variant.Marshal(variant.NewDouble(float64(val.(float32))))
	case abi.TagFloat64:
		return variant.Marshal(variant.NewDouble(val.(float64)))
	case abi.TagPointer, abi.TagFuncPtr:
		return variant.Marshal(variant.NewDouble(float64(uintptr(val.(unsafe.Pointer)))))
	case abi.TagFuncID, abi.TagFuncIDFree:
		return []byte(fmt.Sprintf(`["function",%d]`, val.(int32))), nil
	case abi.TagVar:
		v, err := tbl.GetVar(h)
		if err != nil {
			return nil, err
		}
		defer variant.Release(v)
		return variant.Marshal(v)
	default:
		return nil, bridgeerr.New(bridgeerr.KindUnsupportedType, "cannot encode handle %d of tag %s", h, tag)
	}
}
