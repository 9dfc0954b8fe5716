package handle

import (
	"testing"

	"github.com/nativebridge/engine/abi"
	"github.com/nativebridge/engine/internal/bridgeerr"
	"github.com/nativebridge/engine/internal/variant"
)

func TestRoundTripAllScalarTags(t *testing.T) {
	tbl := New()

	if err := tbl.RegisterInt8(1, -5); err != nil {
		t.Fatal(err)
	}
	if v, err := tbl.GetInt8(1); err != nil || v != -5 {
		t.Fatalf("GetInt8 = %v, %v, want -5, nil", v, err)
	}

	if err := tbl.RegisterUint8(2, 200); err != nil {
		t.Fatal(err)
	}
	if v, err := tbl.GetUint8(2); err != nil || v != 200 {
		t.Fatalf("GetUint8 = %v, %v, want 200, nil", v, err)
	}

	if err := tbl.RegisterInt64(3, -1); err != nil {
		t.Fatal(err)
	}
	if v, err := tbl.GetInt64(3); err != nil || v != -1 {
		t.Fatalf("GetInt64 = %v, %v, want -1, nil", v, err)
	}

	if err := tbl.RegisterFloat64(4, 3.25); err != nil {
		t.Fatal(err)
	}
	if v, err := tbl.GetFloat64(4); err != nil || v != 3.25 {
		t.Fatalf("GetFloat64 = %v, %v, want 3.25, nil", v, err)
	}

	raw := abi.Malloc(8)
	defer abi.Free(raw)
	if err := tbl.RegisterPointer(5, raw); err != nil {
		t.Fatal(err)
	}
	if v, err := tbl.GetPointer(5); err != nil || v != raw {
		t.Fatalf("GetPointer = %v, %v, want %v, nil", v, err, raw)
	}

	s := variant.NewString([]byte("x"))
	if err := tbl.RegisterVar(6, s); err != nil {
		t.Fatal(err)
	}
	got, err := tbl.GetVar(6)
	if err != nil {
		t.Fatal(err)
	}
	if string(got.Bytes()) != "x" {
		t.Fatalf("GetVar bytes = %q, want x", got.Bytes())
	}
	if got.Refcount() != 2 {
		t.Fatalf("GetVar refcount = %d, want 2 (table's own + caller's AddRef)", got.Refcount())
	}
	variant.Release(got)

	if err := tbl.RegisterFuncID(7, 42); err != nil {
		t.Fatal(err)
	}
	if v, err := tbl.GetFuncID(7); err != nil || v != 42 {
		t.Fatalf("GetFuncID = %v, %v, want 42, nil", v, err)
	}
}

func TestWideningTable(t *testing.T) {
	tbl := New()

	if err := tbl.RegisterInt8(1, -1); err != nil {
		t.Fatal(err)
	}
	if v, err := tbl.GetInt32(1); err != nil || v != -1 {
		t.Fatalf("int8 -1 widened to int32 = %v, %v, want -1, nil", v, err)
	}

	if err := tbl.RegisterUint16(2, 500); err != nil {
		t.Fatal(err)
	}
	if v, err := tbl.GetUint32(2); err != nil || v != 500 {
		t.Fatalf("uint16 500 widened to uint32 = %v, %v, want 500, nil", v, err)
	}

	if err := tbl.RegisterInt32(3, -1); err != nil {
		t.Fatal(err)
	}
	if v, err := tbl.GetUint32(3); err != nil || v != 0xFFFFFFFF {
		t.Fatalf("int32 -1 reinterpreted as uint32 = %v, %v, want 0xFFFFFFFF, nil", v, err)
	}

	if err := tbl.RegisterFloat32(4, 1.5); err != nil {
		t.Fatal(err)
	}
	if v, err := tbl.GetFloat64(4); err != nil || v != 1.5 {
		t.Fatalf("float32 1.5 widened to float64 = %v, %v, want 1.5, nil", v, err)
	}

	// Pointer tags never widen into integer tags.
	raw := abi.Malloc(1)
	defer abi.Free(raw)
	if err := tbl.RegisterPointer(5, raw); err != nil {
		t.Fatal(err)
	}
	if _, err := tbl.GetInt32(5); bridgeerr.KindOf(err) != bridgeerr.KindTypeMismatch {
		t.Fatalf("reading a pointer handle as int32 should type-mismatch, got %v", err)
	}

	// int8 cannot widen directly to int64.
	if err := tbl.RegisterInt8(6, 1); err != nil {
		t.Fatal(err)
	}
	if _, err := tbl.GetInt64(6); bridgeerr.KindOf(err) != bridgeerr.KindTypeMismatch {
		t.Fatalf("int8 should not widen to int64, got %v", err)
	}
}

func TestDestroyThenGetFails(t *testing.T) {
	tbl := New()
	if err := tbl.RegisterInt32(1, 10); err != nil {
		t.Fatal(err)
	}
	if err := tbl.Destroy(1); err != nil {
		t.Fatal(err)
	}
	if _, err := tbl.GetInt32(1); bridgeerr.KindOf(err) != bridgeerr.KindHandleLookupFailed {
		t.Fatalf("get after destroy should fail with handle_lookup_failed, got %v", err)
	}
	if err := tbl.Destroy(1); bridgeerr.KindOf(err) != bridgeerr.KindHandleLookupFailed {
		t.Fatalf("double destroy should be a no-op error, got %v", err)
	}
}

func TestDestroyReleasesVarAndRunsFreeCallback(t *testing.T) {
	tbl := New()
	s := variant.NewString([]byte("owned"))
	if err := tbl.RegisterVar(1, s); err != nil {
		t.Fatal(err)
	}
	if err := tbl.Destroy(1); err != nil {
		t.Fatal(err)
	}
	if s.Refcount() != 0 {
		t.Fatalf("var refcount after destroy = %d, want 0", s.Refcount())
	}

	if err := tbl.RegisterFuncID(2, 99); err != nil {
		t.Fatal(err)
	}
	var freedWith int32 = -1
	if err := tbl.SetFuncIDFree(2, func(id int32) { freedWith = id }); err != nil {
		t.Fatal(err)
	}
	if err := tbl.Destroy(2); err != nil {
		t.Fatal(err)
	}
	if freedWith != 99 {
		t.Fatalf("free callback ran with %d, want 99", freedWith)
	}
}

func TestRegisterAlreadyLiveFails(t *testing.T) {
	tbl := New()
	if err := tbl.RegisterInt32(1, 1); err != nil {
		t.Fatal(err)
	}
	if err := tbl.RegisterInt32(1, 2); err == nil {
		t.Fatal("expected error registering an already-live handle")
	}
}

func TestDestroyAllCollectsErrorsWithoutStopping(t *testing.T) {
	tbl := New()
	if err := tbl.RegisterInt32(1, 1); err != nil {
		t.Fatal(err)
	}
	if err := tbl.RegisterInt32(3, 3); err != nil {
		t.Fatal(err)
	}
	errs := tbl.DestroyAll([]uint32{1, 2, 3})
	if len(errs) != 1 {
		t.Fatalf("DestroyAll errs = %v, want exactly one error for handle 2", errs)
	}
	if tbl.Len() != 0 {
		t.Fatalf("Len() after DestroyAll = %d, want 0", tbl.Len())
	}
}
