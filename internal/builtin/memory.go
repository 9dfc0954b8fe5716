package builtin

import (
	"unsafe"

	"github.com/nativebridge/engine/abi"
	"github.com/nativebridge/engine/internal/bridgeerr"
	"github.com/nativebridge/engine/internal/dispatch"
	"github.com/nativebridge/engine/internal/host"
)

// newMalloc builds `malloc(size) -> pointer`.
func newMalloc() dispatch.Stub {
	return func(ctx *dispatch.Context, args []uint32, ret *uint32) error {
		if err := requireArgs(args, 1); err != nil {
			return err
		}
		retH, err := requireRet(ret)
		if err != nil {
			return err
		}
		size, err := ctx.Table.GetUint32(args[0])
		if err != nil {
			return err
		}
		p := abi.Malloc(uintptr(size))
		if p == nil {
			return bridgeerr.New(bridgeerr.KindAllocationFailed, "malloc(%d) failed", size)
		}
		return ctx.Table.RegisterPointer(retH, p)
	}
}

// newFree builds `free(pointer)`, releasing the C heap block. The handle
// itself is destroyed by the run loop's `destroy` step, not by this stub.
func newFree() dispatch.Stub {
	return func(ctx *dispatch.Context, args []uint32, _ *uint32) error {
		if err := requireArgs(args, 1); err != nil {
			return err
		}
		p, err := ctx.Table.GetPointer(args[0])
		if err != nil {
			return err
		}
		abi.Free(p)
		return nil
	}
}

// newMemset builds `memset(pointer, value, n) -> pointer`.
func newMemset() dispatch.Stub {
	return func(ctx *dispatch.Context, args []uint32, ret *uint32) error {
		if err := requireArgs(args, 3); err != nil {
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
		val, err := ctx.Table.GetInt32(args[1])
		if err != nil {
			return err
		}
		n, err := ctx.Table.GetUint32(args[2])
		if err != nil {
			return err
		}
		result := abi.Memset(p, val, uintptr(n))
		return ctx.Table.RegisterPointer(retH, result)
	}
}

// newMemcpy builds `memcpy(dst, src, n) -> pointer`.
func newMemcpy() dispatch.Stub {
	return func(ctx *dispatch.Context, args []uint32, ret *uint32) error {
		if err := requireArgs(args, 3); err != nil {
			return err
		}
		retH, err := requireRet(ret)
		if err != nil {
			return err
		}
		dst, err := ctx.Table.GetPointer(args[0])
		if err != nil {
			return err
		}
		src, err := ctx.Table.GetPointer(args[1])
		if err != nil {
			return err
		}
		n, err := ctx.Table.GetUint32(args[2])
		if err != nil {
			return err
		}
		result := abi.Memcpy(dst, src, uintptr(n))
		return ctx.Table.RegisterPointer(retH, result)
	}
}

// newStrlen builds `strlen(pointer) -> uint32`, scanning for a NUL byte
// the way C's strlen does.
func newStrlen() dispatch.Stub {
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
		var n uint32
		for *(*byte)(unsafe.Add(p, int(n))) != 0 {
			n++
		}
		return ctx.Table.RegisterUint32(retH, n)
	}
}

// newPuts builds `puts(pointer)`, logging the NUL-terminated C string at
// pointer through the engine's structured logger instead of writing to
// stdout, since this engine has no console of its own.
func newPuts(log host.Logger) dispatch.Stub {
	return func(ctx *dispatch.Context, args []uint32, _ *uint32) error {
		if err := requireArgs(args, 1); err != nil {
			return err
		}
		p, err := ctx.Table.GetPointer(args[0])
		if err != nil {
			return err
		}
		var n int
		for *(*byte)(unsafe.Add(p, n)) != 0 {
			n++
		}
		buf := unsafe.Slice((*byte)(p), n)
		s := string(buf)
		if log != nil {
			log.WithField("puts", s).Debug("plugin puts")
		}
		return nil
	}
}
