// Package dispatch implements the command dispatcher from spec.md §4.5
// (component C6): for each command in a request, select a stub by
// function id and run it. Stubs are registered at engine construction
// time into a runtime Registry rather than emitted by a build-time code
// generator, per spec.md §9's "an implementer may generate the stubs at
// build time or reflect over a registry at run time" option — the six
// invariants in §4.6 are what must hold, not the mechanism that produces
// the table.
package dispatch

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/nativebridge/engine/internal/bridgeerr"
	"github.com/nativebridge/engine/internal/handle"
	"github.com/nativebridge/engine/internal/host"
	"github.com/nativebridge/engine/internal/protocol"
)

// Reserved function ids (spec.md §3).
const (
	FuncGetFunc = -2
	FuncErrorIf = -1
)

// Stub is the uniform per-function-id closure spec.md §4.5 describes as
// `(queue, request, command_index) -> bool`; the queue and request index
// are threaded through Context and the call site respectively, so the Go
// shape is `(ctx, args, ret) -> error`. Argument count checking and
// per-argument handle decoding happen inside the stub itself (spec.md
// §4.6 invariant 1).
type Stub func(ctx *Context, args []uint32, ret *uint32) error

// Context carries everything a stub needs to run one command.
type Context struct {
	Table     *handle.Table
	Functions host.FunctionTable
	Log       host.Logger
}

// Registry is the runtime function-id -> Stub table.
type Registry struct {
	mu    sync.RWMutex
	stubs map[int32]Stub
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{stubs: make(map[int32]Stub)}
}

// Register installs stub under id. Registering the same id twice is a
// programmer error (the registry is populated once at construction), so
// it panics rather than surfacing an error to request-handling code.
func (r *Registry) Register(id int32, stub Stub) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.stubs[id]; exists {
		panic(fmt.Sprintf("dispatch: function id already registered: %d", id))
	}
	r.stubs[id] = stub
}

func (r *Registry) lookup(id int32) (Stub, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.stubs[id]
	return s, ok
}

// Dispatch runs the command named by cmd.ID, handling the two reserved
// ids itself and otherwise delegating to the registered stub. A panic
// inside a stub is recovered and returned as an error.
func (r *Registry) Dispatch(ctx *Context, cmd protocol.Command) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = bridgeerr.New(bridgeerr.KindProtocolError, "function id %d panicked: %v", cmd.ID, p)
		}
	}()
	switch cmd.ID {
	case FuncGetFunc:
		return dispatchGetFunc(ctx, cmd)
	case FuncErrorIf:
		return dispatchErrorIf(ctx, cmd)
	default:
		stub, ok := r.lookup(cmd.ID)
		if !ok {
			return bridgeerr.New(bridgeerr.KindFunctionIDOutOfRange, "function id %d is not registered", cmd.ID)
		}
		return stub(ctx, cmd.Args, cmd.Ret)
	}
}

// dispatchGetFunc implements the reserved `getFunc(int32 id) -> funcptr`
// stub (spec.md §4.5).
func dispatchGetFunc(ctx *Context, cmd protocol.Command) error {
	if len(cmd.Args) != 1 {
		return bridgeerr.New(bridgeerr.KindArgCountMismatch, "getFunc expects 1 argument, got %d", len(cmd.Args))
	}
	if cmd.Ret == nil {
		return bridgeerr.New(bridgeerr.KindProtocolError, "getFunc requires a ret handle")
	}
	id, err := ctx.Table.GetInt32(cmd.Args[0])
	if err != nil {
		return err
	}
	if ctx.Functions == nil {
		return bridgeerr.New(bridgeerr.KindFunctionIDOutOfRange, "no function table configured")
	}
	f, ok := ctx.Functions.Lookup(id)
	if !ok {
		return bridgeerr.New(bridgeerr.KindFunctionIDOutOfRange, "no C function registered for id %d", id)
	}
	return ctx.Table.RegisterFuncPtr(*cmd.Ret, unsafe.Pointer(f))
}

// dispatchErrorIf implements the reserved `$errorIf(int32 flag) -> bool`
// stub: it fails iff flag != 0, letting a generated command stream use it
// as a conditional abort marker (spec.md §4.5, and the supplemental note
// that glue.c also uses it as a pre-call argument-validity guard).
func dispatchErrorIf(ctx *Context, cmd protocol.Command) error {
	if len(cmd.Args) != 1 {
		return bridgeerr.New(bridgeerr.KindArgCountMismatch, "$errorIf expects 1 argument, got %d", len(cmd.Args))
	}
	flag, err := ctx.Table.GetInt32(cmd.Args[0])
	if err != nil {
		return err
	}
	if flag != 0 {
		return bridgeerr.New(bridgeerr.KindProtocolError, "$errorIf: flag %d is set", flag)
	}
	return nil
}
