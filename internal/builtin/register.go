package builtin

import (
	"github.com/nativebridge/engine/abi"
	"github.com/nativebridge/engine/internal/dispatch"
	"github.com/nativebridge/engine/internal/host"
	"github.com/nativebridge/engine/internal/queue"
	"github.com/nativebridge/engine/internal/trampoline"
)

// scalarTags lists every concrete type the get/set/add/sub/compare command
// families are generated for, in a fixed order so the function-id ranges
// below are reproducible.
var scalarTags = []abi.Tag{
	abi.TagInt8, abi.TagUint8, abi.TagInt16, abi.TagUint16,
	abi.TagInt32, abi.TagUint32, abi.TagInt64, abi.TagUint64,
	abi.TagFloat32, abi.TagFloat64,
}

// Function id ranges for the generated per-type command families. One id
// per (operation, type) pair, following original_source/src/c/commands.c's
// per-type switch cases (see scalar.go's package doc).
const (
	funcGetBase     int32 = 100 // 100..109, one per scalarTags entry
	funcSetBase     int32 = 110 // 110..119
	funcAddBase     int32 = 120 // 120..129
	funcSubBase     int32 = 130 // 130..139
	funcCompareBase int32 = 140 // 140..199, 6 ops * 10 types

	funcAddPointer int32 = 200
	funcSubPointer int32 = 201

	funcMalloc int32 = 210
	funcFree   int32 = 211
	funcMemset int32 = 212
	funcMemcpy int32 = 213
	funcStrlen int32 = 214
	funcPuts   int32 = 215

	funcVarAddRef           int32 = 220
	funcVarRelease          int32 = 221
	funcVarFromUtf8         int32 = 222
	funcVarToUtf8           int32 = 223
	funcArrayCreate         int32 = 224
	funcArrayGet            int32 = 225
	funcArraySet            int32 = 226
	funcArrayGetLength      int32 = 227
	funcArraySetLength      int32 = 228
	funcArrayBufferCreate   int32 = 229
	funcArrayBufferByteLen  int32 = 230
	funcArrayBufferMap      int32 = 231
	funcArrayBufferUnmap    int32 = 232
	funcDictCreate          int32 = 233
	funcDictGet             int32 = 234
	funcDictSet             int32 = 235
	funcDictDelete          int32 = 236
	funcDictHasKey          int32 = 237
)

var compareOps = []cmpOp{cmpLT, cmpLTE, cmpGT, cmpGTE, cmpEQ, cmpNE}

// Pools bundles the callback trampoline pools the demonstration generated
// stubs (scenarios 2 and 3) invoke through. Callers construct these with
// the shared messenger and incoming queue the run loop itself reads from
// (spec.md §9's "blocking nested dequeue" design note).
type Pools struct {
	IntToInt     *trampoline.Pool
	Int64ToInt64 *trampoline.Pool
}

// NewPools constructs the trampoline pools this package's generated demo
// stubs need, sized from cfg's FUNCTION_POINTER_COUNT.
func NewPools(slotCount int, messenger host.Messenger, inQueue *queue.Queue, log host.Logger) *Pools {
	return &Pools{
		IntToInt:     trampoline.NewPool("int->int", slotCount, messenger, inQueue, log),
		Int64ToInt64: trampoline.NewPool("int64->int64", slotCount, messenger, inQueue, log),
	}
}

// Register installs every command this package implements into reg:
// the scalar get/set/add/sub/compare matrix, the raw pointer add/sub pair,
// the memory primitives, the Variant/Array/Dictionary operations, the two
// pool-backed demonstration generated stubs (only when pools is non-nil),
// and the va_list stub, which always fails.
func Register(reg *dispatch.Registry, pools *Pools, log host.Logger) {
	for i, tag := range scalarTags {
		reg.Register(funcGetBase+int32(i), newGet(tag))
		reg.Register(funcSetBase+int32(i), newSet(tag))
		reg.Register(funcAddBase+int32(i), newArith(tag, false))
		reg.Register(funcSubBase+int32(i), newArith(tag, true))
		for j, op := range compareOps {
			reg.Register(funcCompareBase+int32(j)*10+int32(i), newCompare(tag, op))
		}
	}

	reg.Register(funcAddPointer, newAddPointer())
	reg.Register(funcSubPointer, newSubPointer())

	reg.Register(funcMalloc, newMalloc())
	reg.Register(funcFree, newFree())
	reg.Register(funcMemset, newMemset())
	reg.Register(funcMemcpy, newMemcpy())
	reg.Register(funcStrlen, newStrlen())
	reg.Register(funcPuts, newPuts(log))

	reg.Register(funcVarAddRef, newVarAddRef())
	reg.Register(funcVarRelease, newVarRelease())
	reg.Register(funcVarFromUtf8, newVarFromUtf8())
	reg.Register(funcVarToUtf8, newVarToUtf8())
	reg.Register(funcArrayCreate, newArrayCreate())
	reg.Register(funcArrayGet, newArrayGet())
	reg.Register(funcArraySet, newArraySet())
	reg.Register(funcArrayGetLength, newArrayGetLength())
	reg.Register(funcArraySetLength, newArraySetLength())
	reg.Register(funcArrayBufferCreate, newArrayBufferCreate())
	reg.Register(funcArrayBufferByteLen, newArrayBufferByteLength())
	reg.Register(funcArrayBufferMap, newArrayBufferMap())
	reg.Register(funcArrayBufferUnmap, newArrayBufferUnmap())
	reg.Register(funcDictCreate, newDictCreate())
	reg.Register(funcDictGet, newDictGet())
	reg.Register(funcDictSet, newDictSet())
	reg.Register(funcDictDelete, newDictDelete())
	reg.Register(funcDictHasKey, newDictHasKey())

	if pools != nil {
		reg.Register(FuncCallWith10AndAdd1, newCallWith10AndAdd1(pools.IntToInt))
		reg.Register(FuncSumCallsOf10And20, newSumCallsOf10And20(pools.Int64ToInt64))
	}

	if !variadicABISupported() && log != nil {
		log.Warn("variadic calls assume the amd64 SysV ABI, which this architecture does not use; no variadic-call commands are registered")
	}
	reg.Register(FuncVaListUnsupported, newVaListUnsupported())
}
