package builtin

import (
	"unsafe"

	"github.com/nativebridge/engine/internal/bridgeerr"
	"github.com/nativebridge/engine/internal/dispatch"
	"github.com/nativebridge/engine/internal/variant"
)

// unsafeBytes views n bytes of raw C memory at p as a Go slice without
// copying. Callers that need to retain the data past the stub's lifetime
// (e.g. varFromUtf8) must copy out of it themselves — variant.NewString
// already does.
func unsafeBytes(p unsafe.Pointer, n int) []byte {
	if n == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(p), n)
}

// bytesPointer returns a raw pointer to b's backing array, or nil for an
// empty buffer.
func bytesPointer(b []byte) unsafe.Pointer {
	if len(b) == 0 {
		return nil
	}
	return unsafe.Pointer(&b[0])
}

func getVarArg(ctx *dispatch.Context, h uint32) (variant.Variant, error) {
	v, err := ctx.Table.GetVar(h)
	if err != nil {
		return variant.Variant{}, err
	}
	return v, nil
}

// newVarAddRef builds `varAddRef(var) -> var`, registering a second handle
// that shares the same refcounted payload.
func newVarAddRef() dispatch.Stub {
	return func(ctx *dispatch.Context, args []uint32, ret *uint32) error {
		if err := requireArgs(args, 1); err != nil {
			return err
		}
		retH, err := requireRet(ret)
		if err != nil {
			return err
		}
		v, err := getVarArg(ctx, args[0])
		if err != nil {
			return err
		}
		// v is already AddRef'd by GetVar; that's the one reference the new
		// handle owns, so it's registered as-is rather than AddRef'd again.
		return ctx.Table.RegisterVar(retH, v)
	}
}

// newVarRelease builds `varRelease(var)`, dropping the reference this
// handle's own Get put on the table and then destroying the handle itself
// — matching the original's varRelease freeing the handle slot along with
// the reference it named.
func newVarRelease() dispatch.Stub {
	return func(ctx *dispatch.Context, args []uint32, _ *uint32) error {
		if err := requireArgs(args, 1); err != nil {
			return err
		}
		v, err := getVarArg(ctx, args[0])
		if err != nil {
			return err
		}
		variant.Release(v) // drop the ref GetVar added
		return ctx.Table.Destroy(args[0])
	}
}

// newVarFromUtf8 builds `varFromUtf8(ptr, len) -> var`, copying len bytes
// from the raw C buffer at ptr into a new String Variant.
func newVarFromUtf8() dispatch.Stub {
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
		n, err := ctx.Table.GetUint32(args[1])
		if err != nil {
			return err
		}
		b := unsafeBytes(p, int(n))
		return ctx.Table.RegisterVar(retH, variant.NewString(b))
	}
}

// newVarToUtf8 builds `varToUtf8(var, ptr, cap) -> uint32`, writing the
// string's UTF-8 bytes into the caller-owned buffer at ptr (truncated to
// cap) and returning the number of bytes written.
func newVarToUtf8() dispatch.Stub {
	return func(ctx *dispatch.Context, args []uint32, ret *uint32) error {
		if err := requireArgs(args, 3); err != nil {
			return err
		}
		retH, err := requireRet(ret)
		if err != nil {
			return err
		}
		v, err := getVarArg(ctx, args[0])
		if err != nil {
			return err
		}
		defer variant.Release(v)
		if v.Kind() != variant.String {
			return bridgeerr.New(bridgeerr.KindTypeMismatch, "varToUtf8: handle %d is not a string variant", args[0])
		}
		p, err := ctx.Table.GetPointer(args[1])
		if err != nil {
			return err
		}
		capacity, err := ctx.Table.GetUint32(args[2])
		if err != nil {
			return err
		}
		src := v.Bytes()
		n := len(src)
		if uint32(n) > capacity {
			n = int(capacity)
		}
		dst := unsafeBytes(p, n)
		copy(dst, src[:n])
		return ctx.Table.RegisterUint32(retH, uint32(n))
	}
}

// newArrayCreate builds `arrayCreate() -> var`.
func newArrayCreate() dispatch.Stub {
	return func(ctx *dispatch.Context, args []uint32, ret *uint32) error {
		if err := requireArgs(args, 0); err != nil {
			return err
		}
		retH, err := requireRet(ret)
		if err != nil {
			return err
		}
		return ctx.Table.RegisterVar(retH, variant.NewArray())
	}
}

// newArrayGet builds `arrayGet(array, index) -> var`.
func newArrayGet() dispatch.Stub {
	return func(ctx *dispatch.Context, args []uint32, ret *uint32) error {
		if err := requireArgs(args, 2); err != nil {
			return err
		}
		retH, err := requireRet(ret)
		if err != nil {
			return err
		}
		arr, err := getVarArg(ctx, args[0])
		if err != nil {
			return err
		}
		defer variant.Release(arr)
		idx, err := ctx.Table.GetInt32(args[1])
		if err != nil {
			return err
		}
		el, ok := arr.ArrayGet(int(idx))
		if !ok {
			return bridgeerr.New(bridgeerr.KindHandleLookupFailed, "arrayGet: index %d out of range", idx)
		}
		return ctx.Table.RegisterVar(retH, el)
	}
}

// newArraySet builds `arraySet(array, index, value)`, taking ownership of
// value's reference (spec.md's Variant ownership-transfer convention).
func newArraySet() dispatch.Stub {
	return func(ctx *dispatch.Context, args []uint32, _ *uint32) error {
		if err := requireArgs(args, 3); err != nil {
			return err
		}
		arr, err := getVarArg(ctx, args[0])
		if err != nil {
			return err
		}
		defer variant.Release(arr)
		idx, err := ctx.Table.GetInt32(args[1])
		if err != nil {
			return err
		}
		val, err := getVarArg(ctx, args[2])
		if err != nil {
			return err
		}
		if !arr.ArraySet(int(idx), val) {
			variant.Release(val)
			return bridgeerr.New(bridgeerr.KindTypeMismatch, "arraySet: handle %d is not an array", args[0])
		}
		return nil
	}
}

// newArrayGetLength builds `arrayGetLength(array) -> uint32`.
func newArrayGetLength() dispatch.Stub {
	return func(ctx *dispatch.Context, args []uint32, ret *uint32) error {
		if err := requireArgs(args, 1); err != nil {
			return err
		}
		retH, err := requireRet(ret)
		if err != nil {
			return err
		}
		arr, err := getVarArg(ctx, args[0])
		if err != nil {
			return err
		}
		defer variant.Release(arr)
		return ctx.Table.RegisterUint32(retH, uint32(arr.ArrayLen()))
	}
}

// newArraySetLength builds `arraySetLength(array, n)`.
func newArraySetLength() dispatch.Stub {
	return func(ctx *dispatch.Context, args []uint32, _ *uint32) error {
		if err := requireArgs(args, 2); err != nil {
			return err
		}
		arr, err := getVarArg(ctx, args[0])
		if err != nil {
			return err
		}
		defer variant.Release(arr)
		n, err := ctx.Table.GetUint32(args[1])
		if err != nil {
			return err
		}
		if !arr.ArraySetLength(int(n)) {
			return bridgeerr.New(bridgeerr.KindTypeMismatch, "arraySetLength: handle %d is not an array", args[0])
		}
		return nil
	}
}

// newArrayBufferCreate builds `arrayBufferCreate(n) -> var`.
func newArrayBufferCreate() dispatch.Stub {
	return func(ctx *dispatch.Context, args []uint32, ret *uint32) error {
		if err := requireArgs(args, 1); err != nil {
			return err
		}
		retH, err := requireRet(ret)
		if err != nil {
			return err
		}
		n, err := ctx.Table.GetUint32(args[0])
		if err != nil {
			return err
		}
		return ctx.Table.RegisterVar(retH, variant.NewArrayBuffer(int(n)))
	}
}

// newArrayBufferByteLength builds `arrayBufferByteLength(var) -> uint32`.
func newArrayBufferByteLength() dispatch.Stub {
	return func(ctx *dispatch.Context, args []uint32, ret *uint32) error {
		if err := requireArgs(args, 1); err != nil {
			return err
		}
		retH, err := requireRet(ret)
		if err != nil {
			return err
		}
		v, err := getVarArg(ctx, args[0])
		if err != nil {
			return err
		}
		defer variant.Release(v)
		if v.Kind() != variant.ArrayBuffer {
			return bridgeerr.New(bridgeerr.KindTypeMismatch, "arrayBufferByteLength: handle %d is not an ArrayBuffer", args[0])
		}
		return ctx.Table.RegisterUint32(retH, uint32(len(v.Bytes())))
	}
}

// newArrayBufferMap builds `arrayBufferMap(var) -> pointer`, exposing the
// buffer's backing storage directly — the pointer aliases the Variant's
// own memory, matching arrayBufferUnmap's role as a pure accounting no-op.
func newArrayBufferMap() dispatch.Stub {
	return func(ctx *dispatch.Context, args []uint32, ret *uint32) error {
		if err := requireArgs(args, 1); err != nil {
			return err
		}
		retH, err := requireRet(ret)
		if err != nil {
			return err
		}
		v, err := getVarArg(ctx, args[0])
		if err != nil {
			return err
		}
		defer variant.Release(v)
		if v.Kind() != variant.ArrayBuffer {
			return bridgeerr.New(bridgeerr.KindTypeMismatch, "arrayBufferMap: handle %d is not an ArrayBuffer", args[0])
		}
		return ctx.Table.RegisterPointer(retH, bytesPointer(v.Bytes()))
	}
}

// newArrayBufferUnmap builds `arrayBufferUnmap(var, pointer)`. The mapping
// this build hands out is a direct alias with no separate lifetime to
// unwind, so this is a validated no-op kept for call-site symmetry with
// the original's map/unmap pairing.
func newArrayBufferUnmap() dispatch.Stub {
	return func(ctx *dispatch.Context, args []uint32, _ *uint32) error {
		if err := requireArgs(args, 2); err != nil {
			return err
		}
		v, err := getVarArg(ctx, args[0])
		if err != nil {
			return err
		}
		variant.Release(v)
		if _, err := ctx.Table.GetPointer(args[1]); err != nil {
			return err
		}
		return nil
	}
}

// newDictCreate builds `dictCreate() -> var`.
func newDictCreate() dispatch.Stub {
	return func(ctx *dispatch.Context, args []uint32, ret *uint32) error {
		if err := requireArgs(args, 0); err != nil {
			return err
		}
		retH, err := requireRet(ret)
		if err != nil {
			return err
		}
		return ctx.Table.RegisterVar(retH, variant.NewDictionary())
	}
}

// newDictGet builds `dictGet(dict, key) -> var`, reading key as a UTF-8
// C string from the raw pointer/length pair at args[1]/args[2].
func newDictGet() dispatch.Stub {
	return func(ctx *dispatch.Context, args []uint32, ret *uint32) error {
		if err := requireArgs(args, 3); err != nil {
			return err
		}
		retH, err := requireRet(ret)
		if err != nil {
			return err
		}
		d, err := getVarArg(ctx, args[0])
		if err != nil {
			return err
		}
		defer variant.Release(d)
		key, err := readCString(ctx, args[1], args[2])
		if err != nil {
			return err
		}
		val, ok := d.DictGet(key)
		if !ok {
			return bridgeerr.New(bridgeerr.KindHandleLookupFailed, "dictGet: key %q not found", key)
		}
		return ctx.Table.RegisterVar(retH, val)
	}
}

// newDictSet builds `dictSet(dict, key, keyLen, value)`.
func newDictSet() dispatch.Stub {
	return func(ctx *dispatch.Context, args []uint32, _ *uint32) error {
		if err := requireArgs(args, 4); err != nil {
			return err
		}
		d, err := getVarArg(ctx, args[0])
		if err != nil {
			return err
		}
		defer variant.Release(d)
		key, err := readCString(ctx, args[1], args[2])
		if err != nil {
			return err
		}
		val, err := getVarArg(ctx, args[3])
		if err != nil {
			return err
		}
		if !d.DictSet(key, val) {
			variant.Release(val)
			return bridgeerr.New(bridgeerr.KindTypeMismatch, "dictSet: handle %d is not a dictionary", args[0])
		}
		return nil
	}
}

// newDictDelete builds `dictDelete(dict, key, keyLen)`.
func newDictDelete() dispatch.Stub {
	return func(ctx *dispatch.Context, args []uint32, _ *uint32) error {
		if err := requireArgs(args, 3); err != nil {
			return err
		}
		d, err := getVarArg(ctx, args[0])
		if err != nil {
			return err
		}
		defer variant.Release(d)
		key, err := readCString(ctx, args[1], args[2])
		if err != nil {
			return err
		}
		d.DictDelete(key)
		return nil
	}
}

// newDictHasKey builds `dictHasKey(dict, key, keyLen) -> int32`.
func newDictHasKey() dispatch.Stub {
	return func(ctx *dispatch.Context, args []uint32, ret *uint32) error {
		if err := requireArgs(args, 3); err != nil {
			return err
		}
		retH, err := requireRet(ret)
		if err != nil {
			return err
		}
		d, err := getVarArg(ctx, args[0])
		if err != nil {
			return err
		}
		defer variant.Release(d)
		key, err := readCString(ctx, args[1], args[2])
		if err != nil {
			return err
		}
		var has int32
		if d.DictHasKey(key) {
			has = 1
		}
		return ctx.Table.RegisterInt32(retH, has)
	}
}

func readCString(ctx *dispatch.Context, ptrH, lenH uint32) (string, error) {
	p, err := ctx.Table.GetPointer(ptrH)
	if err != nil {
		return "", err
	}
	n, err := ctx.Table.GetUint32(lenH)
	if err != nil {
		return "", err
	}
	return string(unsafeBytes(p, int(n))), nil
}
