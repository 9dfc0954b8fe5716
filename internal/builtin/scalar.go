// Package builtin implements the concrete command suite from spec.md §4.8
// supplemental notes and original_source/src/c/commands.c (component C9),
// plus two demonstration "generated stubs" (component C7) that exercise
// the callback trampoline pool end to end, following §4.6's invariants:
// argument count is checked before any handle is read, integer narrowing
// is two's-complement wraparound, and every successful call leaves
// handle-table references in a consistent state.
//
// One function id is registered per concrete (operation, scalar type)
// pair, mirroring the original's per-type `TYPE_FUNC_GET_INT8` / `..._
// UINT8` / etc. switch cases: the source's code generator emits one stub
// per signature, and a signature includes the scalar type, so the type
// lives in the function id rather than in a runtime argument.
package builtin

import (
	"unsafe"

	"github.com/nativebridge/engine/abi"
	"github.com/nativebridge/engine/internal/bridgeerr"
	"github.com/nativebridge/engine/internal/dispatch"
	"github.com/nativebridge/engine/internal/handle"
)

func requireArgs(args []uint32, n int) error {
	if len(args) != n {
		return bridgeerr.New(bridgeerr.KindArgCountMismatch, "expected %d argument(s), got %d", n, len(args))
	}
	return nil
}

func requireRet(ret *uint32) (uint32, error) {
	if ret == nil {
		return 0, bridgeerr.New(bridgeerr.KindProtocolError, "this command requires a ret handle")
	}
	return *ret, nil
}

// readScalar dereferences a raw pointer as tag's native width, matching
// commands.c's ARG_VOIDP_CAST(0, T*) + getT(arg0) pattern.
func readScalar(tag abi.Tag, p unsafe.Pointer) int64 {
	switch tag {
	case abi.TagInt8:
		return int64(*(*int8)(p))
	case abi.TagUint8:
		return int64(*(*uint8)(p))
	case abi.TagInt16:
		return int64(*(*int16)(p))
	case abi.TagUint16:
		return int64(*(*uint16)(p))
	case abi.TagInt32:
		return int64(*(*int32)(p))
	case abi.TagUint32:
		return int64(*(*uint32)(p))
	case abi.TagInt64:
		return *(*int64)(p)
	case abi.TagUint64:
		return int64(*(*uint64)(p))
	default:
		return 0
	}
}

func readScalarFloat(tag abi.Tag, p unsafe.Pointer) float64 {
	switch tag {
	case abi.TagFloat32:
		return float64(*(*float32)(p))
	case abi.TagFloat64:
		return *(*float64)(p)
	default:
		return 0
	}
}

func writeScalar(tag abi.Tag, p unsafe.Pointer, v int64) {
	switch tag {
	case abi.TagInt8:
		*(*int8)(p) = int8(v)
	case abi.TagUint8:
		*(*uint8)(p) = uint8(v)
	case abi.TagInt16:
		*(*int16)(p) = int16(v)
	case abi.TagUint16:
		*(*uint16)(p) = uint16(v)
	case abi.TagInt32:
		*(*int32)(p) = int32(v)
	case abi.TagUint32:
		*(*uint32)(p) = uint32(v)
	case abi.TagInt64:
		*(*int64)(p) = v
	case abi.TagUint64:
		*(*uint64)(p) = uint64(v)
	}
}

func writeScalarFloat(tag abi.Tag, p unsafe.Pointer, v float64) {
	switch tag {
	case abi.TagFloat32:
		*(*float32)(p) = float32(v)
	case abi.TagFloat64:
		*(*float64)(p) = v
	}
}

func registerScalarInt(tbl *handle.Table, h uint32, tag abi.Tag, v int64) error {
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
	case abi.TagInt64:
		return tbl.RegisterInt64(h, v)
	case abi.TagUint64:
		return tbl.RegisterUint64(h, uint64(v))
	default:
		return bridgeerr.New(bridgeerr.KindUnsupportedType, "unsupported integer tag %s", tag)
	}
}

func getScalarIntArg(tbl *handle.Table, h uint32, tag abi.Tag) (int64, error) {
	switch tag {
	case abi.TagInt8:
		v, err := tbl.GetInt8(h)
		return int64(v), err
	case abi.TagUint8:
		v, err := tbl.GetUint8(h)
		return int64(v), err
	case abi.TagInt16:
		v, err := tbl.GetInt16(h)
		return int64(v), err
	case abi.TagUint16:
		v, err := tbl.GetUint16(h)
		return int64(v), err
	case abi.TagInt32:
		v, err := tbl.GetInt32(h)
		return int64(v), err
	case abi.TagUint32:
		v, err := tbl.GetUint32(h)
		return int64(v), err
	case abi.TagInt64:
		return tbl.GetInt64(h)
	case abi.TagUint64:
		v, err := tbl.GetUint64(h)
		return int64(v), err
	default:
		return 0, bridgeerr.New(bridgeerr.KindUnsupportedType, "unsupported integer tag %s", tag)
	}
}

// newGet builds the `get_<tag>(ptr) -> value` stub: dereferences the raw
// pointer at args[0] and registers the result under ret.
func newGet(tag abi.Tag) dispatch.Stub {
	return func(ctx *dispatch.Context, args []uint32, ret *uint32) error {
		if err := requireArgs(args, 1); err != nil {
			return err
		}
		retH, err := requireRet(ret)
		if err != nil {
			return err
		}
		p, err := ctx.Table.GetPointer(args[0])
		if err != nil {
			return err
		}
		if tag == abi.TagFloat32 || tag == abi.TagFloat64 {
			return ctx.Table.RegisterFloat64(retH, readScalarFloat(tag, p))
		}
		return registerScalarInt(ctx.Table, retH, tag, readScalar(tag, p))
	}
}

// newSet builds the `set_<tag>(ptr, value)` stub: writes value through the
// raw pointer at args[0]. No return value.
func newSet(tag abi.Tag) dispatch.Stub {
	return func(ctx *dispatch.Context, args []uint32, _ *uint32) error {
		if err := requireArgs(args, 2); err != nil {
			return err
		}
		p, err := ctx.Table.GetPointer(args[0])
		if err != nil {
			return err
		}
		if tag == abi.TagFloat32 || tag == abi.TagFloat64 {
			v, err := ctx.Table.GetFloat64(args[1])
			if err != nil {
				return err
			}
			writeScalarFloat(tag, p, v)
			return nil
		}
		v, err := getScalarIntArg(ctx.Table, args[1], tag)
		if err != nil {
			return err
		}
		writeScalar(tag, p, v)
		return nil
	}
}

// newAddPointer builds `add_pointer(ptr, delta) -> ptr`, offsetting by a
// raw byte count — the untyped void* arithmetic spec.md §4.8 scenario 4
// uses, which scales by 1 byte (see SPEC_FULL.md's sizeof-table note).
func newAddPointer() dispatch.Stub {
	return func(ctx *dispatch.Context, args []uint32, ret *uint32) error {
		if err := requireArgs(args, 2); err != nil {
			return err
		}
		retH, err := requireRet(ret)
		if err != nil {
			return err
		}
		p, err := ctx.Table.GetPointer(args[0])
		if err != nil {
			return err
		}
		delta, err := ctx.Table.GetInt32(args[1])
		if err != nil {
			return err
		}
		return ctx.Table.RegisterPointer(retH, unsafe.Add(p, int(delta)))
	}
}

// newSubPointer mirrors newAddPointer, subtracting the byte delta.
func newSubPointer() dispatch.Stub {
	return func(ctx *dispatch.Context, args []uint32, ret *uint32) error {
		if err := requireArgs(args, 2); err != nil {
			return err
		}
		retH, err := requireRet(ret)
		if err != nil {
			return err
		}
		p, err := ctx.Table.GetPointer(args[0])
		if err != nil {
			return err
		}
		delta, err := ctx.Table.GetInt32(args[1])
		if err != nil {
			return err
		}
		return ctx.Table.RegisterPointer(retH, unsafe.Add(p, -int(delta)))
	}
}

// newArith builds a scalar `add_<tag>`/`sub_<tag>` stub over two
// same-tagged integer handles, with two's-complement wraparound handled
// implicitly by Go's fixed-width integer arithmetic (spec.md §4.6
// invariant 3).
func newArith(tag abi.Tag, sub bool) dispatch.Stub {
	return func(ctx *dispatch.Context, args []uint32, ret *uint32) error {
		if err := requireArgs(args, 2); err != nil {
			return err
		}
		retH, err := requireRet(ret)
		if err != nil {
			return err
		}
		a, err := getScalarIntArg(ctx.Table, args[0], tag)
		if err != nil {
			return err
		}
		b, err := getScalarIntArg(ctx.Table, args[1], tag)
		if err != nil {
			return err
		}
		result := a + b
		if sub {
			result = a - b
		}
		return registerScalarInt(ctx.Table, retH, tag, result)
	}
}

type cmpOp int

const (
	cmpLT cmpOp = iota
	cmpLTE
	cmpGT
	cmpGTE
	cmpEQ
	cmpNE
)

func compareInt64(op cmpOp, a, b int64) bool {
	switch op {
	case cmpLT:
		return a < b
	case cmpLTE:
		return a <= b
	case cmpGT:
		return a > b
	case cmpGTE:
		return a >= b
	case cmpEQ:
		return a == b
	default:
		return a != b
	}
}

func compareFloat64(op cmpOp, a, b float64) bool {
	switch op {
	case cmpLT:
		return a < b
	case cmpLTE:
		return a <= b
	case cmpGT:
		return a > b
	case cmpGTE:
		return a >= b
	case cmpEQ:
		return a == b
	default:
		return a != b
	}
}

// newCompare builds a `<op>_<tag>(a, b) -> int32` stub; the boolean result
// is registered as 0 or 1, the convention the dispatcher's reserved
// `$errorIf` command (and any caller) consumes directly as a flag.
func newCompare(tag abi.Tag, op cmpOp) dispatch.Stub {
	return func(ctx *dispatch.Context, args []uint32, ret *uint32) error {
		if err := requireArgs(args, 2); err != nil {
			return err
		}
		retH, err := requireRet(ret)
		if err != nil {
			return err
		}
		var result bool
		if tag == abi.TagFloat32 || tag == abi.TagFloat64 {
			a, err := ctx.Table.GetFloat64(args[0])
			if err != nil {
				return err
			}
			b, err := ctx.Table.GetFloat64(args[1])
			if err != nil {
				return err
			}
			result = compareFloat64(op, a, b)
		} else {
			a, err := getScalarIntArg(ctx.Table, args[0], tag)
			if err != nil {
				return err
			}
			b, err := getScalarIntArg(ctx.Table, args[1], tag)
			if err != nil {
				return err
			}
			result = compareInt64(op, a, b)
		}
		var iv int32
		if result {
			iv = 1
		}
		return ctx.Table.RegisterInt32(retH, iv)
	}
}
