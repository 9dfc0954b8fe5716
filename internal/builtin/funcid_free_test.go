package builtin

import (
	"sync"
	"testing"
	"time"

	"github.com/nativebridge/engine/internal/dispatch"
	"github.com/nativebridge/engine/internal/handle"
	"github.com/nativebridge/engine/internal/protocol"
	"github.com/nativebridge/engine/internal/queue"
)

type recordingMessenger struct {
	mu     sync.Mutex
	posted [][]byte
	notify chan struct{}
}

func newRecordingMessenger() *recordingMessenger {
	return &recordingMessenger{notify: make(chan struct{}, 16)}
}

func (m *recordingMessenger) Post(response []byte) {
	m.mu.Lock()
	m.posted = append(m.posted, append([]byte(nil), response...))
	m.mu.Unlock()
	m.notify <- struct{}{}
}

func (m *recordingMessenger) waitForPost(t *testing.T) {
	t.Helper()
	select {
	case <-m.notify:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for a posted response")
	}
}

// TestFuncIDFreeRunsOnDestroy reproduces spec.md §4.6 invariant 2: a
// func-id handle consumed by a callback-invoking command is augmented
// with a free-on-destroy callback, and destroying the handle frees the
// trampoline slot rather than leaving it occupied until process exit.
func TestFuncIDFreeRunsOnDestroy(t *testing.T) {
	tbl := handle.New()
	reg := dispatch.NewRegistry()
	q := queue.New(4)
	m := newRecordingMessenger()
	pools := NewPools(4, m, q, nil)
	Register(reg, pools, nil)

	if err := tbl.RegisterFuncID(1, 99); err != nil {
		t.Fatal(err)
	}
	ctx := &dispatch.Context{Table: tbl}

	done := make(chan error, 1)
	go func() {
		done <- reg.Dispatch(ctx, protocol.Command{ID: FuncCallWith10AndAdd1, Args: []uint32{1}, Ret: refUint32(2)})
	}()

	m.waitForPost(t) // the intermediate callback request for funcID 99
	if err := q.Enqueue([]byte(`{"id":99,"cbId":1,"values":[20]}`)); err != nil {
		t.Fatal(err)
	}
	if err := <-done; err != nil {
		t.Fatalf("dispatch failed: %v", err)
	}

	slotLive := false
	for _, f := range pools.IntToInt.Snapshot() {
		if f == 99 {
			slotLive = true
		}
	}
	if !slotLive {
		t.Fatal("expected the trampoline slot to still be occupied before the handle is destroyed")
	}

	if err := tbl.Destroy(1); err != nil {
		t.Fatalf("destroy failed: %v", err)
	}

	for _, f := range pools.IntToInt.Snapshot() {
		if f == 99 {
			t.Fatal("trampoline slot for funcID 99 is still occupied after its handle was destroyed")
		}
	}
}
