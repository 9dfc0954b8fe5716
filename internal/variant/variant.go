// Package variant implements the Variant (V) dynamic value from spec.md
// §3: a tagged sum type with refcounted payloads for the composite kinds
// (String, Object, Array, Dictionary, ArrayBuffer, Int64), crossing the
// host↔native boundary as JSON (see json.go).
//
// Composite kinds share their payload through a *ref indirection so
// AddRef/Release on any copy of a Variant affects every other copy that
// was handed the same reference, matching "at-most-one-owner-per-
// reference" semantics: a Variant value is cheap to copy, but copying it
// does not imply taking a new reference — callers that want one call
// AddRef explicitly.
package variant

import "sync/atomic"

// Kind is the Variant's tag.
type Kind uint8

const (
	Undefined Kind = iota
	Null
	Bool
	Int32
	Double
	String
	Object
	Array
	Dictionary
	ArrayBuffer
	Int64
)

func (k Kind) String() string {
	switch k {
	case Undefined:
		return "undefined"
	case Null:
		return "null"
	case Bool:
		return "bool"
	case Int32:
		return "int32"
	case Double:
		return "double"
	case String:
		return "string"
	case Object:
		return "object"
	case Array:
		return "array"
	case Dictionary:
		return "dictionary"
	case ArrayBuffer:
		return "arraybuffer"
	case Int64:
		return "int64"
	default:
		return "unknown"
	}
}

// IsRefcounted reports whether this kind's payload is shared and must be
// AddRef'd/Released, per spec.md §3.
func (k Kind) IsRefcounted() bool {
	switch k {
	case String, Object, Array, Dictionary, ArrayBuffer, Int64:
		return true
	default:
		return false
	}
}

// ref is the shared, refcounted payload backing composite Variants.
type ref struct {
	count int32 // atomic
	str   []byte
	arr   []Variant
	dict  *dictionary
	buf   []byte
	i64   int64
	objID uint64
}

// Variant is a small value type: copying it is cheap and never implicitly
// shares ownership of composite payloads (see package doc).
type Variant struct {
	kind Kind
	b    bool
	i32  int32
	f64  float64
	data *ref
}

// V is shorthand used pervasively by callers constructing literals.
type V = Variant

// NewUndefined, NewNull, NewBool, NewInt32, NewDouble construct the
// non-refcounted scalar kinds.
func NewUndefined() Variant        { return Variant{kind: Undefined} }
func NewNull() Variant             { return Variant{kind: Null} }
func NewBool(b bool) Variant       { return Variant{kind: Bool, b: b} }
func NewInt32(i int32) Variant     { return Variant{kind: Int32, i32: i} }
func NewDouble(f float64) Variant  { return Variant{kind: Double, f64: f} }

// NewString builds a refcount-1 UTF-8 string Variant from raw bytes,
// mirroring the original's varFromUtf8(ptr, len).
func NewString(b []byte) Variant {
	cp := make([]byte, len(b))
	copy(cp, b)
	return Variant{kind: String, data: &ref{count: 1, str: cp}}
}

// NewArray builds a refcount-1 empty array.
func NewArray() Variant {
	return Variant{kind: Array, data: &ref{count: 1}}
}

// NewDictionary builds a refcount-1 empty dictionary.
func NewDictionary() Variant {
	return Variant{kind: Dictionary, data: &ref{count: 1, dict: newDictionary()}}
}

// NewArrayBuffer builds a refcount-1 array buffer of n zeroed bytes.
func NewArrayBuffer(n int) Variant {
	return Variant{kind: ArrayBuffer, data: &ref{count: 1, buf: make([]byte, n)}}
}

// NewArrayBufferFromBytes builds a refcount-1 array buffer copying b.
func NewArrayBufferFromBytes(b []byte) Variant {
	cp := make([]byte, len(b))
	copy(cp, b)
	return Variant{kind: ArrayBuffer, data: &ref{count: 1, buf: cp}}
}

// NewInt64 builds a refcount-1 64-bit integer Variant.
func NewInt64(v int64) Variant {
	return Variant{kind: Int64, data: &ref{count: 1, i64: v}}
}

// NewObject builds a refcount-1 opaque object Variant identified by id.
// Objects carry no other payload in this implementation: the original's
// PP_VARTYPE_OBJECT is host-owned opaque state this engine never inspects.
func NewObject(id uint64) Variant {
	return Variant{kind: Object, data: &ref{count: 1, objID: id}}
}

func (v Variant) Kind() Kind { return v.kind }
func (v Variant) Bool() bool { return v.b }
func (v Variant) Int32() int32 { return v.i32 }
func (v Variant) Double() float64 { return v.f64 }

func (v Variant) Int64() int64 {
	if v.data == nil {
		return 0
	}
	return v.data.i64
}

func (v Variant) ObjectID() uint64 {
	if v.data == nil {
		return 0
	}
	return v.data.objID
}

// Bytes returns the UTF-8 bytes of a String Variant, or the raw bytes of
// an ArrayBuffer Variant. Callers must not mutate the returned slice for
// String (shared storage); ArrayBuffer callers may mutate it, matching
// ArrayBufferMap/Unmap's shared-memory-view semantics.
func (v Variant) Bytes() []byte {
	if v.data == nil {
		return nil
	}
	switch v.kind {
	case String:
		return v.data.str
	case ArrayBuffer:
		return v.data.buf
	default:
		return nil
	}
}

// Refcount returns the current reference count of a composite Variant, or
// 0 for non-refcounted kinds. Exposed for the refcount-conservation
// property test (spec.md §8).
func (v Variant) Refcount() int32 {
	if v.data == nil {
		return 0
	}
	return atomic.LoadInt32(&v.data.count)
}

// AddRef increments the shared refcount. No-op for non-refcounted kinds.
func AddRef(v Variant) Variant {
	if v.data != nil {
		atomic.AddInt32(&v.data.count, 1)
	}
	return v
}

// Release decrements the shared refcount, recursively releasing array
// elements and dictionary values when it reaches zero (spec.md §3: "refcount
// 0 triggers recursive release").
func Release(v Variant) {
	if v.data == nil {
		return
	}
	if atomic.AddInt32(&v.data.count, -1) > 0 {
		return
	}
	switch v.kind {
	case Array:
		for _, el := range v.data.arr {
			Release(el)
		}
	case Dictionary:
		for _, key := range v.data.dict.keys {
			Release(v.data.dict.values[key])
		}
	}
}

// ArrayCreate is the public constructor used by the builtin command suite.
func ArrayCreate() Variant { return NewArray() }

// ArrayLen returns the array's current length.
func (v Variant) ArrayLen() int {
	if v.kind != Array || v.data == nil {
		return 0
	}
	return len(v.data.arr)
}

// ArrayGet returns element i of an array Variant, AddRef'd for the caller,
// and whether the index was in bounds.
func (v Variant) ArrayGet(i int) (Variant, bool) {
	if v.kind != Array || v.data == nil || i < 0 || i >= len(v.data.arr) {
		return Variant{}, false
	}
	return AddRef(v.data.arr[i]), true
}

// ArraySet stores elem at index i, growing the array (undefined-filled) if
// needed, and takes ownership of the reference passed in elem (matching
// the original's arraySet(array, index, value) which steals the caller's
// reference to value).
func (v Variant) ArraySet(i int, elem Variant) bool {
	if v.kind != Array || v.data == nil || i < 0 {
		return false
	}
	for len(v.data.arr) <= i {
		v.data.arr = append(v.data.arr, NewUndefined())
	}
	Release(v.data.arr[i])
	v.data.arr[i] = elem
	return true
}

// ArraySetLength truncates or extends (with Undefined) the array.
func (v Variant) ArraySetLength(n int) bool {
	if v.kind != Array || v.data == nil || n < 0 {
		return false
	}
	switch {
	case n < len(v.data.arr):
		for _, el := range v.data.arr[n:] {
			Release(el)
		}
		v.data.arr = v.data.arr[:n]
	case n > len(v.data.arr):
		for len(v.data.arr) < n {
			v.data.arr = append(v.data.arr, NewUndefined())
		}
	}
	return true
}

// dictionary is an insertion-ordered string-keyed map (see DESIGN.md's
// Open Question decision on key ordering: spec.md says ordering is not
// required, but deterministic output makes the wire format testable).
type dictionary struct {
	keys   []string
	values map[string]Variant
}

func newDictionary() *dictionary {
	return &dictionary{values: make(map[string]Variant)}
}

// DictGet looks up a key, returning an AddRef'd copy.
func (v Variant) DictGet(key string) (Variant, bool) {
	if v.kind != Dictionary || v.data == nil {
		return Variant{}, false
	}
	val, ok := v.data.dict.values[key]
	if !ok {
		return Variant{}, false
	}
	return AddRef(val), true
}

// DictSet inserts or replaces key, taking ownership of val's reference.
func (v Variant) DictSet(key string, val Variant) bool {
	if v.kind != Dictionary || v.data == nil {
		return false
	}
	d := v.data.dict
	if old, ok := d.values[key]; ok {
		Release(old)
	} else {
		d.keys = append(d.keys, key)
	}
	d.values[key] = val
	return true
}

// DictDelete removes key, releasing its value's reference.
func (v Variant) DictDelete(key string) bool {
	if v.kind != Dictionary || v.data == nil {
		return false
	}
	d := v.data.dict
	val, ok := d.values[key]
	if !ok {
		return false
	}
	Release(val)
	delete(d.values, key)
	for i, k := range d.keys {
		if k == key {
			d.keys = append(d.keys[:i], d.keys[i+1:]...)
			break
		}
	}
	return true
}

// DictHasKey reports whether key is present.
func (v Variant) DictHasKey(key string) bool {
	if v.kind != Dictionary || v.data == nil {
		return false
	}
	_, ok := v.data.dict.values[key]
	return ok
}

// DictKeys returns keys in insertion order.
func (v Variant) DictKeys() []string {
	if v.kind != Dictionary || v.data == nil {
		return nil
	}
	out := make([]string, len(v.data.dict.keys))
	copy(out, v.data.dict.keys)
	return out
}
