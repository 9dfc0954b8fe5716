package builtin

import (
	"testing"
	"unsafe"

	"github.com/nativebridge/engine/internal/bridgeerr"
	"github.com/nativebridge/engine/internal/dispatch"
	"github.com/nativebridge/engine/internal/handle"
	"github.com/nativebridge/engine/internal/protocol"
	"github.com/nativebridge/engine/internal/variant"
)

func newTestRegistry() (*dispatch.Registry, *handle.Table) {
	tbl := handle.New()
	reg := dispatch.NewRegistry()
	Register(reg, nil, nil)
	return reg, tbl
}

func dispatchOK(t *testing.T, reg *dispatch.Registry, ctx *dispatch.Context, cmd protocol.Command) {
	t.Helper()
	if err := reg.Dispatch(ctx, cmd); err != nil {
		t.Fatalf("dispatch %d failed: %v", cmd.ID, err)
	}
}

func refUint32(v uint32) *uint32 { return &v }

// TestBuiltinArithmeticScenario reproduces spec.md §4.8 scenario 4:
// malloc(16), memset(H1,0,16), add(H1,4), set_int32(H3,42), get_int32(H3).
func TestBuiltinArithmeticScenario(t *testing.T) {
	reg, tbl := newTestRegistry()
	ctx := &dispatch.Context{Table: tbl}

	tbl.RegisterUint32(1, 16) // malloc size
	dispatchOK(t, reg, ctx, protocol.Command{ID: funcMalloc, Args: []uint32{1}, Ret: refUint32(2)})

	tbl.RegisterInt32(3, 0)   // memset value
	tbl.RegisterUint32(4, 16) // memset size
	dispatchOK(t, reg, ctx, protocol.Command{ID: funcMemset, Args: []uint32{2, 3, 4}, Ret: refUint32(5)})

	tbl.RegisterInt32(6, 4) // pointer delta
	dispatchOK(t, reg, ctx, protocol.Command{ID: funcAddPointer, Args: []uint32{5, 6}, Ret: refUint32(7)})

	tbl.RegisterInt32(8, 42)
	dispatchOK(t, reg, ctx, protocol.Command{ID: funcSetBase + 4, Args: []uint32{7, 8}}) // set_int32 (index 4 == TagInt32)

	dispatchOK(t, reg, ctx, protocol.Command{ID: funcGetBase + 4, Args: []uint32{7}, Ret: refUint32(9)}) // get_int32
	got, err := tbl.GetInt32(9)
	if err != nil || got != 42 {
		t.Fatalf("get_int32 = %d, %v, want 42, nil", got, err)
	}
}

func TestCompareAndArithInt32(t *testing.T) {
	reg, tbl := newTestRegistry()
	ctx := &dispatch.Context{Table: tbl}

	tbl.RegisterInt32(1, 3)
	tbl.RegisterInt32(2, 5)
	dispatchOK(t, reg, ctx, protocol.Command{ID: funcAddBase + 4, Args: []uint32{1, 2}, Ret: refUint32(3)})
	sum, _ := tbl.GetInt32(3)
	if sum != 8 {
		t.Fatalf("add_int32(3,5) = %d, want 8", sum)
	}

	// cmpLT is compareOps[0]
	dispatchOK(t, reg, ctx, protocol.Command{ID: funcCompareBase + 0*10 + 4, Args: []uint32{1, 2}, Ret: refUint32(4)})
	lt, _ := tbl.GetInt32(4)
	if lt != 1 {
		t.Fatalf("lt_int32(3,5) = %d, want 1", lt)
	}
}

func TestArrayAndDictOps(t *testing.T) {
	reg, tbl := newTestRegistry()
	ctx := &dispatch.Context{Table: tbl}

	dispatchOK(t, reg, ctx, protocol.Command{ID: funcArrayCreate, Ret: refUint32(1)})
	tbl.RegisterInt32(2, 0)
	tbl.RegisterVar(3, variant.NewInt32(99))
	dispatchOK(t, reg, ctx, protocol.Command{ID: funcArraySet, Args: []uint32{1, 2, 3}})
	dispatchOK(t, reg, ctx, protocol.Command{ID: funcArrayGetLength, Args: []uint32{1}, Ret: refUint32(4)})
	n, _ := tbl.GetUint32(4)
	if n != 1 {
		t.Fatalf("arrayGetLength = %d, want 1", n)
	}
	dispatchOK(t, reg, ctx, protocol.Command{ID: funcArrayGet, Args: []uint32{1, 2}, Ret: refUint32(5)})
	v, err := tbl.GetVar(5)
	if err != nil {
		t.Fatal(err)
	}
	if v.Int32() != 99 {
		t.Fatalf("arrayGet(0) = %d, want 99", v.Int32())
	}

	key := []byte("greeting")
	tbl.RegisterPointer(10, unsafe.Pointer(&key[0]))
	tbl.RegisterUint32(11, uint32(len(key)))
	dispatchOK(t, reg, ctx, protocol.Command{ID: funcDictCreate, Ret: refUint32(20)})
	tbl.RegisterVar(21, variant.NewInt32(7))
	dispatchOK(t, reg, ctx, protocol.Command{ID: funcDictSet, Args: []uint32{20, 10, 11, 21}})
	dispatchOK(t, reg, ctx, protocol.Command{ID: funcDictHasKey, Args: []uint32{20, 10, 11}, Ret: refUint32(22)})
	has, _ := tbl.GetInt32(22)
	if has != 1 {
		t.Fatalf("dictHasKey = %d, want 1", has)
	}
}

func TestVaListUnsupportedFailsAtDispatch(t *testing.T) {
	reg, tbl := newTestRegistry()
	ctx := &dispatch.Context{Table: tbl}
	err := reg.Dispatch(ctx, protocol.Command{ID: FuncVaListUnsupported})
	if bridgeerr.KindOf(err) != bridgeerr.KindUnsupportedType {
		t.Fatalf("expected KindUnsupportedType, got %v", err)
	}
}
