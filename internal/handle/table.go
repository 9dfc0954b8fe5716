// Package handle implements the handle table (spec.md §4.1, component C1):
// a process-wide map from host-assigned integer handle IDs to tagged
// values, with typed accessors that enforce the widening table and the
// at-most-one-tag-per-handle invariant.
package handle

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/nativebridge/engine/abi"
	"github.com/nativebridge/engine/internal/bridgeerr"
	"github.com/nativebridge/engine/internal/variant"
)

// FreeFunc is invoked when a func-id handle registered with SetFuncIDFree
// is destroyed, right after the handle is removed from the table and
// outside the table's lock.
type FreeFunc func(funcID int32)

type entry struct {
	tag    abi.Tag
	val    any // native Go value appropriate to tag; see convert() for the full mapping
	freeFn FreeFunc
}

// Table is the handle table. Per spec.md §5, it is only ever mutated from
// the engine's single worker goroutine; the mutex here is defense for
// concurrent reads from metrics/inspection code, not a correctness
// requirement of the dispatch algorithm itself.
type Table struct {
	mu      sync.RWMutex
	entries map[uint32]entry
}

// New constructs an empty handle table. Call Reset at teardown for test
// isolation, per spec.md §9 ("process-wide singletons... reset at
// teardown").
func New() *Table {
	return &Table{entries: make(map[uint32]entry)}
}

// Reset clears all entries without running free callbacks or releasing
// Variant references — it is a test-isolation hard reset, not a graceful
// teardown. Callers that need graceful teardown should Destroy every live
// handle first.
func (t *Table) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = make(map[uint32]entry)
}

// Len reports the number of live handles, used by the leak check in
// spec.md §5 ("a test-only leak check reports nonzero residual handle
// counts at teardown") and by engine metrics.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

func (t *Table) register(h uint32, tag abi.Tag, val any) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.entries[h]; exists {
		return bridgeerr.New(bridgeerr.KindProtocolError, "handle %d is already registered", h)
	}
	t.entries[h] = entry{tag: tag, val: val}
	return nil
}

// Typed registration, one per spec.md §4.1 scalar tag plus pointer/
// funcptr/var/func-id.
func (t *Table) RegisterInt8(h uint32, v int8) error     { return t.register(h, abi.TagInt8, v) }
func (t *Table) RegisterUint8(h uint32, v uint8) error   { return t.register(h, abi.TagUint8, v) }
func (t *Table) RegisterInt16(h uint32, v int16) error   { return t.register(h, abi.TagInt16, v) }
func (t *Table) RegisterUint16(h uint32, v uint16) error { return t.register(h, abi.TagUint16, v) }
func (t *Table) RegisterInt32(h uint32, v int32) error   { return t.register(h, abi.TagInt32, v) }
func (t *Table) RegisterUint32(h uint32, v uint32) error { return t.register(h, abi.TagUint32, v) }
func (t *Table) RegisterInt64(h uint32, v int64) error   { return t.register(h, abi.TagInt64, v) }
func (t *Table) RegisterUint64(h uint32, v uint64) error { return t.register(h, abi.TagUint64, v) }
func (t *Table) RegisterFloat32(h uint32, v float32) error {
	return t.register(h, abi.TagFloat32, v)
}
func (t *Table) RegisterFloat64(h uint32, v float64) error {
	return t.register(h, abi.TagFloat64, v)
}

// RegisterPointer registers a raw void* handle.
func (t *Table) RegisterPointer(h uint32, p unsafe.Pointer) error {
	return t.register(h, abi.TagPointer, p)
}

// RegisterFuncPtr registers a C function pointer handle, as produced by
// the reserved getFunc command (spec.md §4.5).
func (t *Table) RegisterFuncPtr(h uint32, p unsafe.Pointer) error {
	return t.register(h, abi.TagFuncPtr, p)
}

// RegisterVar registers a Variant handle, taking ownership of the
// reference passed in v (spec.md §4.1: "Variant handles retain a
// reference while registered").
func (t *Table) RegisterVar(h uint32, v variant.Variant) error {
	return t.register(h, abi.TagVar, v)
}

// RegisterFuncID registers a host-side JS function identifier.
func (t *Table) RegisterFuncID(h uint32, funcID int32) error {
	return t.register(h, abi.TagFuncID, funcID)
}

// SetFuncIDFree attaches a free callback to an already-registered func-id
// handle, upgrading its tag to FuncIDFree (spec.md §4.1). It fails if h is
// not currently a plain func-id handle.
func (t *Table) SetFuncIDFree(h uint32, free FreeFunc) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[h]
	if !ok {
		return bridgeerr.New(bridgeerr.KindHandleLookupFailed, "handle %d not found", h)
	}
	if e.tag != abi.TagFuncID {
		return bridgeerr.New(bridgeerr.KindTypeMismatch, "handle %d is not a function-id handle (tag %s)", h, e.tag)
	}
	e.tag = abi.TagFuncIDFree
	e.freeFn = free
	t.entries[h] = e
	return nil
}

// convert implements spec.md §4.1's widening table: int8/int16 => int32,
// uint8/uint16 => uint32, signed<->unsigned at the same width, float32 =>
// float64. Pointer tags never interchange with integer tags. Returns the
// converted value and whether the (from, to) pair is permitted.
func convert(from abi.Tag, val any, to abi.Tag) (any, bool) {
	if from == to {
		return val, true
	}
	if !from.WidensTo(to) {
		return nil, false
	}
	switch from {
	case abi.TagInt8:
		return int32(val.(int8)), true
	case abi.TagInt16:
		return int32(val.(int16)), true
	case abi.TagUint8:
		return uint32(val.(uint8)), true
	case abi.TagUint16:
		return uint32(val.(uint16)), true
	case abi.TagInt32:
		return uint32(val.(int32)), true // reinterpret bits, same width
	case abi.TagUint32:
		return int32(val.(uint32)), true
	case abi.TagInt64:
		return uint64(val.(int64)), true
	case abi.TagUint64:
		return int64(val.(uint64)), true
	case abi.TagFloat32:
		return float64(val.(float32)), true
	default:
		return nil, false
	}
}

func (t *Table) get(h uint32, want abi.Tag) (any, error) {
	t.mu.RLock()
	e, ok := t.entries[h]
	t.mu.RUnlock()
	if !ok {
		return nil, bridgeerr.New(bridgeerr.KindHandleLookupFailed, "handle %d not found", h)
	}
	val, ok := convert(e.tag, e.val, want)
	if !ok {
		return nil, bridgeerr.New(bridgeerr.KindTypeMismatch,
			"type mismatch for handle %d: expected %s, got %s", h, want, e.tag)
	}
	return val, nil
}

func (t *Table) GetInt8(h uint32) (int8, error) {
	v, err := t.get(h, abi.TagInt8)
	if err != nil {
		return 0, err
	}
	return v.(int8), nil
}

func (t *Table) GetUint8(h uint32) (uint8, error) {
	v, err := t.get(h, abi.TagUint8)
	if err != nil {
		return 0, err
	}
	return v.(uint8), nil
}

func (t *Table) GetInt16(h uint32) (int16, error) {
	v, err := t.get(h, abi.TagInt16)
	if err != nil {
		return 0, err
	}
	return v.(int16), nil
}

func (t *Table) GetUint16(h uint32) (uint16, error) {
	v, err := t.get(h, abi.TagUint16)
	if err != nil {
		return 0, err
	}
	return v.(uint16), nil
}

func (t *Table) GetInt32(h uint32) (int32, error) {
	v, err := t.get(h, abi.TagInt32)
	if err != nil {
		return 0, err
	}
	return v.(int32), nil
}

func (t *Table) GetUint32(h uint32) (uint32, error) {
	v, err := t.get(h, abi.TagUint32)
	if err != nil {
		return 0, err
	}
	return v.(uint32), nil
}

func (t *Table) GetInt64(h uint32) (int64, error) {
	v, err := t.get(h, abi.TagInt64)
	if err != nil {
		return 0, err
	}
	return v.(int64), nil
}

func (t *Table) GetUint64(h uint32) (uint64, error) {
	v, err := t.get(h, abi.TagUint64)
	if err != nil {
		return 0, err
	}
	return v.(uint64), nil
}

func (t *Table) GetFloat32(h uint32) (float32, error) {
	v, err := t.get(h, abi.TagFloat32)
	if err != nil {
		return 0, err
	}
	return v.(float32), nil
}

func (t *Table) GetFloat64(h uint32) (float64, error) {
	v, err := t.get(h, abi.TagFloat64)
	if err != nil {
		return 0, err
	}
	return v.(float64), nil
}

func (t *Table) GetPointer(h uint32) (unsafe.Pointer, error) {
	v, err := t.get(h, abi.TagPointer)
	if err != nil {
		return nil, err
	}
	return v.(unsafe.Pointer), nil
}

func (t *Table) GetFuncPtr(h uint32) (unsafe.Pointer, error) {
	v, err := t.get(h, abi.TagFuncPtr)
	if err != nil {
		return nil, err
	}
	return v.(unsafe.Pointer), nil
}

// GetVar returns an AddRef'd copy of the stored Variant; the caller must
// Release it once done (the table keeps its own reference for as long as
// the handle is registered).
func (t *Table) GetVar(h uint32) (variant.Variant, error) {
	t.mu.RLock()
	e, ok := t.entries[h]
	t.mu.RUnlock()
	if !ok {
		return variant.Variant{}, bridgeerr.New(bridgeerr.KindHandleLookupFailed, "handle %d not found", h)
	}
	if e.tag != abi.TagVar {
		return variant.Variant{}, bridgeerr.New(bridgeerr.KindTypeMismatch,
			"type mismatch for handle %d: expected var, got %s", h, e.tag)
	}
	return variant.AddRef(e.val.(variant.Variant)), nil
}

// GetFuncID returns the stored function id, accepting both FuncID and
// FuncIDFree tags (the free callback does not change how the id reads).
func (t *Table) GetFuncID(h uint32) (int32, error) {
	t.mu.RLock()
	e, ok := t.entries[h]
	t.mu.RUnlock()
	if !ok {
		return 0, bridgeerr.New(bridgeerr.KindHandleLookupFailed, "handle %d not found", h)
	}
	if e.tag != abi.TagFuncID && e.tag != abi.TagFuncIDFree {
		return 0, bridgeerr.New(bridgeerr.KindTypeMismatch,
			"type mismatch for handle %d: expected function, got %s", h, e.tag)
	}
	return e.val.(int32), nil
}

// Tag returns the tag a handle is currently registered under, used by the
// response builder to pick the wire encoding for a `get` handle.
func (t *Table) Tag(h uint32) (abi.Tag, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.entries[h]
	if !ok {
		return 0, bridgeerr.New(bridgeerr.KindHandleLookupFailed, "handle %d not found", h)
	}
	return e.tag, nil
}

// Value returns the raw stored value for h exactly as registered (no
// widening), used internally by the response builder once it already has
// the tag via Tag.
func (t *Table) Value(h uint32) (any, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.entries[h]
	if !ok {
		return nil, bridgeerr.New(bridgeerr.KindHandleLookupFailed, "handle %d not found", h)
	}
	return e.val, nil
}

// Destroy releases handle h. Destroying a Variant handle releases its
// reference; destroying a func-id handle with a registered free callback
// invokes it once the entry has been removed (spec.md §4.1). Destroying an unregistered handle is a
// no-op error: the table is left unchanged and an error is returned so
// callers can log it, but the run loop does not treat it as fatal.
func (t *Table) Destroy(h uint32) error {
	t.mu.Lock()
	e, ok := t.entries[h]
	if !ok {
		t.mu.Unlock()
		return bridgeerr.New(bridgeerr.KindHandleLookupFailed, "destroy: handle %d not found", h)
	}
	delete(t.entries, h)
	t.mu.Unlock()

	switch e.tag {
	case abi.TagVar:
		variant.Release(e.val.(variant.Variant))
	case abi.TagFuncIDFree:
		if e.freeFn != nil {
			e.freeFn(e.val.(int32))
		}
	}
	return nil
}

// DestroyAll destroys every handle in hs, collecting (not stopping on) any
// per-handle errors — spec.md §4.8 step 5 runs destruction unconditionally
// for every listed handle.
func (t *Table) DestroyAll(hs []uint32) []error {
	var errs []error
	for _, h := range hs {
		if err := t.Destroy(h); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// String implements fmt.Stringer for debug logging, reporting the number
// of live handles.
func (t *Table) String() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return fmt.Sprintf("handle.Table{%d live}", len(t.entries))
}
