package builtin

import (
	"github.com/nativebridge/engine/internal/bridgeerr"
	"github.com/nativebridge/engine/internal/dispatch"
	"github.com/nativebridge/engine/internal/trampoline"
	"github.com/nativebridge/engine/internal/variant"
)

// Function ids for the two demonstration "generated stubs" spec.md §4.8
// scenarios 2 and 3 exercise, plus the unsupported-signature stub scenario
// 6 exercises. A real deployment's code generator would assign these from
// the plugin's actual function table; here they are fixed constants since
// the signatures themselves are fixed by the scenarios.
const (
	FuncCallWith10AndAdd1  int32 = 0
	FuncSumCallsOf10And20  int32 = 1
	FuncVaListUnsupported  int32 = 2
)

// attachSlotFree registers slot's deallocator as funcIDHandle's
// free-on-destroy callback (spec.md §4.1/§4.6 invariant 2: "the handle is
// augmented with a free-on-destroy callback pointing at the matching
// trampoline deallocator"), so the slot's lifetime follows the handle
// instead of the single call that happened to allocate it. It reports
// false when funcIDHandle already carries a free callback from an earlier
// call — in that case the caller frees slot itself once this call
// returns, since the handle's eventual destroy will already free the
// first slot that was attached to it.
func attachSlotFree(ctx *dispatch.Context, funcIDHandle uint32, pool *trampoline.Pool, slot int) bool {
	err := ctx.Table.SetFuncIDFree(funcIDHandle, func(int32) { pool.Free(slot) })
	return err == nil
}

// newCallWith10AndAdd1 builds generated function 0, `int
// call_with_10_and_add_1(int(*f)(int)) { return f(10) + 1; }` (spec.md
// §4.8 scenario 2). args[0] is a func-id handle; pool is the int->int
// trampoline pool this signature shares across calls.
func newCallWith10AndAdd1(pool *trampoline.Pool) dispatch.Stub {
	return func(ctx *dispatch.Context, args []uint32, ret *uint32) error {
		if err := requireArgs(args, 1); err != nil {
			return err
		}
		retH, err := requireRet(ret)
		if err != nil {
			return err
		}
		funcID, err := ctx.Table.GetFuncID(args[0])
		if err != nil {
			return err
		}
		slot, ok := pool.Alloc(funcID)
		if !ok {
			return bridgeerr.New(bridgeerr.KindAllocationFailed, "no free callback slot for signature int->int")
		}
		if !attachSlotFree(ctx, args[0], pool, slot) {
			defer pool.Free(slot)
		}

		argJSON, err := variant.Marshal(variant.NewInt32(10))
		if err != nil {
			return err
		}
		resultJSON, err := pool.Invoke(slot, [][]byte{argJSON})
		if err != nil {
			return err
		}
		result, err := variant.Unmarshal(resultJSON)
		if err != nil {
			return err
		}
		return ctx.Table.RegisterInt32(retH, result.Int32()+1)
	}
}

// newSumCallsOf10And20 builds generated function 1, `int64
// sum_calls_of_10_and_20(int64(*f)(int64))` (spec.md §4.8 scenario 3): two
// sequential calls to f, with 10 and 20, summing their replies.
func newSumCallsOf10And20(pool *trampoline.Pool) dispatch.Stub {
	return func(ctx *dispatch.Context, args []uint32, ret *uint32) error {
		if err := requireArgs(args, 1); err != nil {
			return err
		}
		retH, err := requireRet(ret)
		if err != nil {
			return err
		}
		funcID, err := ctx.Table.GetFuncID(args[0])
		if err != nil {
			return err
		}
		slot, ok := pool.Alloc(funcID)
		if !ok {
			return bridgeerr.New(bridgeerr.KindAllocationFailed, "no free callback slot for signature int64->int64")
		}
		if !attachSlotFree(ctx, args[0], pool, slot) {
			defer pool.Free(slot)
		}

		var sum int64
		for _, arg := range []int64{10, 20} {
			argJSON, err := variant.Marshal(variant.NewInt64(arg))
			if err != nil {
				return err
			}
			resultJSON, err := pool.Invoke(slot, [][]byte{argJSON})
			if err != nil {
				return err
			}
			result, err := variant.Unmarshal(resultJSON)
			if err != nil {
				return err
			}
			sum += result.Int64()
		}
		return ctx.Table.RegisterInt64(retH, sum)
	}
}

// newVaListUnsupported builds generated function 2, whose C signature
// mentions va_list: spec.md §4.8 scenario 6 requires it to fail at
// dispatch time with UnsupportedType rather than attempt a best-effort
// call.
func newVaListUnsupported() dispatch.Stub {
	return func(ctx *dispatch.Context, args []uint32, ret *uint32) error {
		return bridgeerr.New(bridgeerr.KindUnsupportedType, "function %d's signature uses va_list, which this engine cannot invoke", FuncVaListUnsupported)
	}
}
