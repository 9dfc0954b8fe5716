package dispatch

import (
	"testing"
	"unsafe"

	"github.com/nativebridge/engine/internal/bridgeerr"
	"github.com/nativebridge/engine/internal/handle"
	"github.com/nativebridge/engine/internal/host"
	"github.com/nativebridge/engine/internal/protocol"
)

type fakeFunctions struct {
	byID map[int32]host.CFunc
}

func (f fakeFunctions) Lookup(id int32) (host.CFunc, bool) {
	c, ok := f.byID[id]
	return c, ok
}

func TestDispatchGetFunc(t *testing.T) {
	tbl := handle.New()
	tbl.RegisterInt32(1, 5)
	var sentinel int
	ctx := &Context{Table: tbl, Functions: fakeFunctions{byID: map[int32]host.CFunc{5: host.CFunc(unsafe.Pointer(&sentinel))}}}

	reg := NewRegistry()
	ret := uint32(2)
	err := reg.Dispatch(ctx, protocol.Command{ID: FuncGetFunc, Args: []uint32{1}, Ret: &ret})
	if err != nil {
		t.Fatal(err)
	}
	p, err := tbl.GetFuncPtr(2)
	if err != nil || p != unsafe.Pointer(&sentinel) {
		t.Fatalf("GetFuncPtr = %v, %v, want %v, nil", p, err, &sentinel)
	}
}

func TestDispatchGetFuncUnknownID(t *testing.T) {
	tbl := handle.New()
	tbl.RegisterInt32(1, 99)
	ctx := &Context{Table: tbl, Functions: fakeFunctions{byID: map[int32]host.CFunc{}}}
	reg := NewRegistry()
	ret := uint32(2)
	err := reg.Dispatch(ctx, protocol.Command{ID: FuncGetFunc, Args: []uint32{1}, Ret: &ret})
	if bridgeerr.KindOf(err) != bridgeerr.KindFunctionIDOutOfRange {
		t.Fatalf("expected KindFunctionIDOutOfRange, got %v", err)
	}
}

func TestDispatchErrorIf(t *testing.T) {
	tbl := handle.New()
	tbl.RegisterInt32(1, 0)
	tbl.RegisterInt32(2, 1)
	ctx := &Context{Table: tbl}
	reg := NewRegistry()

	if err := reg.Dispatch(ctx, protocol.Command{ID: FuncErrorIf, Args: []uint32{1}}); err != nil {
		t.Fatalf("errorIf(0) should pass, got %v", err)
	}
	if err := reg.Dispatch(ctx, protocol.Command{ID: FuncErrorIf, Args: []uint32{2}}); err == nil {
		t.Fatal("errorIf(1) should fail")
	}
}

func TestDispatchUnregisteredFunctionID(t *testing.T) {
	reg := NewRegistry()
	ctx := &Context{Table: handle.New()}
	err := reg.Dispatch(ctx, protocol.Command{ID: 12345})
	if bridgeerr.KindOf(err) != bridgeerr.KindFunctionIDOutOfRange {
		t.Fatalf("expected KindFunctionIDOutOfRange, got %v", err)
	}
}

func TestRegisterAndDispatchCustomStub(t *testing.T) {
	reg := NewRegistry()
	called := false
	reg.Register(42, func(ctx *Context, args []uint32, ret *uint32) error {
		called = true
		return nil
	})
	ctx := &Context{Table: handle.New()}
	if err := reg.Dispatch(ctx, protocol.Command{ID: 42}); err != nil {
		t.Fatal(err)
	}
	if !called {
		t.Fatal("registered stub was not invoked")
	}
}
