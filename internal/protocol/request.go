package protocol

import (
	"encoding/json"
	"sort"
	"strconv"
	"unsafe"

	"github.com/nativebridge/engine/abi"
	"github.com/nativebridge/engine/internal/bridgeerr"
	"github.com/nativebridge/engine/internal/handle"
	"github.com/nativebridge/engine/internal/variant"
)

// Command is one function invocation within a request batch (spec.md §3).
type Command struct {
	ID   int32
	Args []uint32
	Ret  *uint32
}

// Request is the structured plan Parse produces: id plus the command
// list and the get/destroy handle views, with `set` already applied to
// the handle table by the time Parse returns (spec.md §4.4 step (b) is
// not deferred — there is nothing further for the engine to "apply").
type Request struct {
	ID       int32
	Commands []Command
	Get      []uint32
	Destroy  []uint32
}

type wireCommand struct {
	ID   int32    `json:"id"`
	Args []uint32 `json:"args"`
	Ret  *uint32  `json:"ret,omitempty"`
}

type wireRequest struct {
	ID       *int32                     `json:"id"`
	Set      map[string]json.RawMessage `json:"set,omitempty"`
	Commands []wireCommand              `json:"commands,omitempty"`
	Get      []uint32                   `json:"get,omitempty"`
	Destroy  []uint32                   `json:"destroy,omitempty"`
}

// Parse decodes a raw request JSON payload, registering every `set` entry
// into tbl before returning. If any `set` entry fails to parse or
// register, every `set` entry already registered by this call is rolled
// back (destroyed) and the error is returned — spec.md §4.4: "never
// partially registers handles".
func Parse(data []byte, tbl *handle.Table) (*Request, error) {
	var w wireRequest
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, bridgeerr.Wrap(bridgeerr.KindProtocolError, err, "malformed request")
	}
	if w.ID == nil {
		return nil, bridgeerr.New(bridgeerr.KindProtocolError, "request missing integer id")
	}

	registered, err := applySet(w.Set, tbl)
	if err != nil {
		for i := len(registered) - 1; i >= 0; i-- {
			tbl.Destroy(registered[i])
		}
		return nil, err
	}

	cmds := make([]Command, 0, len(w.Commands))
	for _, c := range w.Commands {
		cmds = append(cmds, Command{ID: c.ID, Args: c.Args, Ret: c.Ret})
	}

	return &Request{
		ID:       *w.ID,
		Commands: cmds,
		Get:      w.Get,
		Destroy:  w.Destroy,
	}, nil
}

// applySet registers every set entry, returning the handle IDs it
// successfully registered in registration order (so the caller can roll
// them back on a later failure). Keys are processed in sorted string
// (lexicographic) order for deterministic behavior; the wire format does not require any
// particular order since handles are independent.
func applySet(set map[string]json.RawMessage, tbl *handle.Table) ([]uint32, error) {
	if len(set) == 0 {
		return nil, nil
	}
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	registered := make([]uint32, 0, len(set))
	for _, key := range keys {
		h, err := strconv.ParseUint(key, 10, 32)
		if err != nil {
			return registered, bridgeerr.Wrap(bridgeerr.KindProtocolError, err, "set: invalid handle key %q", key)
		}
		if err := applySetEntry(uint32(h), set[key], tbl); err != nil {
			return registered, err
		}
		registered = append(registered, uint32(h))
	}
	return registered, nil
}

func applySetEntry(h uint32, raw json.RawMessage, tbl *handle.Table) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(raw, &pair); err != nil || len(pair) != 2 {
		return bridgeerr.New(bridgeerr.KindProtocolError, "set[%d]: expected a [typeTag, value] pair", h)
	}
	var tagStr string
	if err := json.Unmarshal(pair[0], &tagStr); err != nil {
		return bridgeerr.New(bridgeerr.KindProtocolError, "set[%d]: type tag must be a string", h)
	}
	tag, ok := tagFromWire(tagStr)
	if !ok {
		return bridgeerr.New(bridgeerr.KindProtocolError, "set[%d]: unknown type tag %q", h, tagStr)
	}
	value := pair[1]

	switch tag {
	case abi.TagInt8, abi.TagUint8, abi.TagInt16, abi.TagUint16, abi.TagInt32, abi.TagUint32:
		i, err := jsonNumberToInt64(value)
		if err != nil {
			return err
		}
		if err := checkRange(tag, i); err != nil {
			return err
		}
		return registerScalar(tbl, h, tag, i)
	case abi.TagInt64:
		v, err := decodeLongPair(value)
		if err != nil {
			return err
		}
		return tbl.RegisterInt64(h, v)
	case abi.TagUint64:
		v, err := decodeLongPair(value)
		if err != nil {
			return err
		}
		return tbl.RegisterUint64(h, uint64(v))
	case abi.TagFloat32:
		f, err := jsonNumberToFloat64(value)
		if err != nil {
			return err
		}
		return tbl.RegisterFloat32(h, float32(f))
	case abi.TagFloat64:
		f, err := jsonNumberToFloat64(value)
		if err != nil {
			return err
		}
		return tbl.RegisterFloat64(h, f)
	case abi.TagPointer, abi.TagFuncPtr:
		addr, err := jsonNumberToInt64(value)
		if err != nil {
			return err
		}
		p := unsafe.Pointer(uintptr(addr))
		if tag == abi.TagPointer {
			return tbl.RegisterPointer(h, p)
		}
		return tbl.RegisterFuncPtr(h, p)
	case abi.TagFuncID:
		id, err := jsonNumberToInt64(value)
		if err != nil {
			return err
		}
		return tbl.RegisterFuncID(h, int32(id))
	case abi.TagVar:
		v, err := variant.Unmarshal(value)
		if err != nil {
			return bridgeerr.Wrap(bridgeerr.KindProtocolError, err, "set[%d]: invalid var value", h)
		}
		return tbl.RegisterVar(h, v)
	default:
		return bridgeerr.New(bridgeerr.KindUnsupportedType, "set[%d]: tag %s is not settable", h, tagStr)
	}
}

// decodeLongPair decodes the two-element [lo, hi] numeric pair used as
// this build's `set` value for the "long" tag (see DESIGN.md's Open
// Question decision — spec.md's ["long",lo,hi] wire tuple already
// consumes the outer two slots of the [typeTag, value] pair, so the
// inner value here is just [lo, hi]).
func decodeLongPair(value json.RawMessage) (int64, error) {
	var pair []json.Number
	if err := json.Unmarshal(value, &pair); err != nil || len(pair) != 2 {
		return 0, bridgeerr.New(bridgeerr.KindProtocolError, "expected a [lo, hi] pair for a long value")
	}
	lo, err := pair[0].Int64()
	if err != nil {
		return 0, bridgeerr.Wrap(bridgeerr.KindTypeMismatch, err, "long lo component must be an integer")
	}
	hi, err := pair[1].Int64()
	if err != nil {
		return 0, bridgeerr.Wrap(bridgeerr.KindTypeMismatch, err, "long hi component must be an integer")
	}
	return (int64(int32(hi)) << 32) | int64(uint32(int32(lo))), nil
}

func registerScalar(tbl *handle.Table, h uint32, tag abi.Tag, v int64) error {
	switch tag {
	case abi.TagInt8:
		return tbl.RegisterInt8(h, int8(v))
	case abi.TagUint8:
		return tbl.RegisterUint8(h, uint8(v))
	case abi.TagInt16:
		return tbl.RegisterInt16(h, int16(v))
	case abi.TagUint16:
		return tbl.RegisterUint16(h, uint16(v))
	case abi.TagInt32:
		return tbl.RegisterInt32(h, int32(v))
	case abi.TagUint32:
		return tbl.RegisterUint32(h, uint32(v))
	default:
		return bridgeerr.New(bridgeerr.KindUnsupportedType, "unsupported scalar tag %s", tag)
	}
}
