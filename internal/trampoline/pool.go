// Package trampoline implements the callback trampoline pool from spec.md
// §4.7 (component C8): for one C function-pointer signature, a
// fixed-size slot array that lets the host impersonate a C function
// pointer by re-entering the run loop's queue.
//
// Slots are associated with their caller by index, not by pointer,
// following spec.md §9's cyclic-reference fix: "the handle stores an
// integer func-id and a free-function pointer chosen at allocation time."
// abi.CCallbackSlot is the C-visible half of a slot for ABI layout
// purposes only; this package's own bookkeeping is plain Go.
package trampoline

import (
	"sync"

	"github.com/nativebridge/engine/internal/bridgeerr"
	"github.com/nativebridge/engine/internal/host"
	"github.com/nativebridge/engine/internal/protocol"
	"github.com/nativebridge/engine/internal/queue"
)

// Pool manages FUNCTION_POINTER_COUNT slots for a single callback
// signature. cb_id is scoped per Pool (per signature), per spec.md §4.7's
// "per signature" note and original_source/templates/glue.c's emission
// shape.
type Pool struct {
	mu        sync.Mutex
	slots     []int32 // func_id per slot; 0 means free
	nextCbID  int32
	messenger host.Messenger
	inQueue   *queue.Queue
	log       host.Logger
	name      string
}

// NewPool constructs a pool of n slots for the signature named name (used
// only in log fields and error messages).
func NewPool(name string, n int, messenger host.Messenger, inQueue *queue.Queue, log host.Logger) *Pool {
	return &Pool{
		name:      name,
		slots:     make([]int32, n),
		messenger: messenger,
		inQueue:   inQueue,
		log:       log,
	}
}

// Alloc assigns funcID to the first free slot, returning its index. It
// returns ok=false when every slot is live, mirroring alloc_T returning
// null when full.
func (p *Pool) Alloc(funcID int32) (slot int, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, f := range p.slots {
		if f == 0 {
			p.slots[i] = funcID
			return i, true
		}
	}
	return 0, false
}

// Free clears slot, making it available for reuse.
func (p *Pool) Free(slot int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.slots[slot] = 0
}

// FuncID returns the func-id currently occupying slot.
func (p *Pool) FuncID(slot int) int32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.slots[slot]
}

// Snapshot returns a copy of the slot array, used by the callback-slot
// reuse property test (spec.md §8).
func (p *Pool) Snapshot() []int32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]int32, len(p.slots))
	copy(out, p.slots)
	return out
}

// Invoke runs the invoke_T protocol from spec.md §4.7: post an
// intermediate callback response carrying argValues (each already encoded
// as a single JSON value), then block on the shared incoming queue until
// the matching (func_id, cb_id) reply arrives, returning its single
// return value still encoded as JSON for the caller (a generated stub) to
// decode per its own result type.
//
// Any item dequeued that is not the matching reply is stashed and pushed
// back to the front of the queue in its original order once the match is
// found, preserving enqueue order for the top-level request it belongs to
// (spec.md §5: "Ordering... Requests are processed strictly in enqueue
// order").
func (p *Pool) Invoke(slot int, argValues [][]byte) ([]byte, error) {
	p.mu.Lock()
	funcID := p.slots[slot]
	p.nextCbID++
	cbID := p.nextCbID
	p.mu.Unlock()

	if p.log != nil {
		p.log.WithFields(map[string]any{"signature": p.name, "func_id": funcID, "cb_id": cbID}).Trace("invoking callback trampoline")
	}

	resp := protocol.NewCallbackResponse(funcID, cbID)
	for _, raw := range argValues {
		resp.AddValue(raw)
	}
	p.messenger.Post(resp.Encode())

	var stash [][]byte
	defer func() {
		for i := len(stash) - 1; i >= 0; i-- {
			p.inQueue.PushFront(stash[i])
		}
	}()

	for {
		raw, ok := p.inQueue.Dequeue()
		if !ok {
			return nil, bridgeerr.New(bridgeerr.KindProtocolError, "queue closed while awaiting callback %d reply", cbID)
		}
		reply, err := protocol.ParseReply(raw)
		if err != nil {
			stash = append(stash, raw)
			continue
		}
		if reply.HasCbID && reply.ID == funcID && reply.CbID == cbID {
			if len(reply.Values) != 1 {
				return nil, bridgeerr.New(bridgeerr.KindProtocolError,
					"callback %d reply carried %d values, want 1", cbID, len(reply.Values))
			}
			return reply.Values[0], nil
		}
		stash = append(stash, raw)
	}
}
