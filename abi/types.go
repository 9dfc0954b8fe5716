// Package abi defines the C ABI-stable types that cross the cgo boundary
// between the Go-native request execution engine and the linked C
// functions it dispatches into.
//
// Every struct that crosses into C is built with explicit field widths and
// padding comments so its Go definition and the C compiler's definition
// can never silently drift.
package abi

/*
#include <stdint.h>
#include <stddef.h>
#include <stdlib.h>
#include <string.h>
*/
import "C"
import "unsafe"

// Tag identifies the type a Handle or Variant slot was registered under.
type Tag uint32

const (
	TagInt8 Tag = iota
	TagUint8
	TagInt16
	TagUint16
	TagInt32
	TagUint32
	TagInt64
	TagUint64
	TagFloat32
	TagFloat64
	TagPointer
	TagFuncPtr
	TagVar
	TagFuncID
	TagFuncIDFree
)

// String names a tag the way the original's TypeToString does, for error
// messages ("Type mismatch. Expected %s. Got %s.").
func (t Tag) String() string {
	switch t {
	case TagInt8:
		return "int8"
	case TagUint8:
		return "uint8"
	case TagInt16:
		return "int16"
	case TagUint16:
		return "uint16"
	case TagInt32:
		return "int32"
	case TagUint32:
		return "uint32"
	case TagInt64:
		return "int64"
	case TagUint64:
		return "uint64"
	case TagFloat32:
		return "float32"
	case TagFloat64:
		return "float64"
	case TagPointer:
		return "pointer"
	case TagFuncPtr:
		return "funcptr"
	case TagVar:
		return "var"
	case TagFuncID:
		return "function"
	case TagFuncIDFree:
		return "function+free"
	default:
		return "unknown"
	}
}

// WidensTo reports whether a value registered at tag `from` may be read
// back as tag `to`, per spec.md §4.1's widening table:
//
//	int8/int16   => int32
//	uint8/uint16 => uint32
//	signed <-> unsigned at the same width
//	float32      => float64
//
// Pointer tags never widen into or from integer tags.
func (from Tag) WidensTo(to Tag) bool {
	if from == to {
		return true
	}
	switch from {
	case TagInt8, TagInt16:
		return to == TagInt32
	case TagUint8, TagUint16:
		return to == TagUint32
	case TagInt32:
		return to == TagUint32
	case TagUint32:
		return to == TagInt32
	case TagInt64:
		return to == TagUint64
	case TagUint64:
		return to == TagInt64
	case TagFloat32:
		return to == TagFloat64
	default:
		return false
	}
}

// SizeofTag returns the C byte width backing a tag, ported from
// original_source/src/c/commands.h's implicit per-type sizing. No builtin
// command calls it: the add_pointer/sub_pointer builtins offset by raw
// bytes.
func SizeofTag(t Tag) uintptr {
	switch t {
	case TagInt8, TagUint8:
		return 1
	case TagInt16, TagUint16:
		return 2
	case TagInt32, TagUint32, TagFloat32:
		return 4
	case TagInt64, TagUint64, TagFloat64, TagPointer, TagFuncPtr:
		return 8
	default:
		return 1
	}
}

// Malloc allocates n bytes of C heap memory and returns the raw pointer.
// Callers are responsible for eventually calling Free; the builtin "free"
// command is the only intended caller outside tests.
func Malloc(n uintptr) unsafe.Pointer {
	if n == 0 {
		n = 1
	}
	return C.malloc(C.size_t(n))
}

// Free releases memory obtained from Malloc.
func Free(p unsafe.Pointer) {
	if p != nil {
		C.free(p)
	}
}

// Memset fills n bytes at p with byte value v, returning p, mirroring the
// C memset builtin's (ptr, int, uint) -> ptr signature exactly.
func Memset(p unsafe.Pointer, v int32, n uintptr) unsafe.Pointer {
	return C.memset(p, C.int(v), C.size_t(n))
}

// Memcpy copies n bytes from src to dst, returning dst.
func Memcpy(dst, src unsafe.Pointer, n uintptr) unsafe.Pointer {
	return C.memcpy(dst, src, C.size_t(n))
}

// CCallbackSlot is the C-visible half of a trampoline pool slot: a
// function-id (0 means free) and an opaque pointer to the blocking reply
// queue the trampoline will dequeue from, following spec.md §4.7 and
// original_source/templates/glue.c's slot-array shape. internal/trampoline
// keeps its own slot bookkeeping as plain Go ([]int32 of func-ids) and does
// not store these.
//
// This is the one "record type whose ABI layout is asserted" (spec.md §6)
// in this build: abi/layout_test.go pins its size and field offsets so a
// change here cannot silently desync from the matching C struct.
type CCallbackSlot struct {
	FuncID uint32
	_      [4]byte // padding to align Queue on 8 bytes
	Queue  unsafe.Pointer
}

