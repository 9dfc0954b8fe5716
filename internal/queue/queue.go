// Package queue implements the bounded blocking mailbox described in
// spec.md §4.3 and §5: a multi-producer/single-consumer FIFO carrying the
// wire encoding of Variants (requests arriving from the host, and the
// replies callback trampolines block on).
//
// It is built on a mutex and condition variable rather than a bare Go
// channel because two things a channel cannot give us are required: Len()
// must be inspectable for metrics without racing a receive, and a full
// queue must report a classified QueueFull error to the producer instead
// of blocking it indefinitely (spec.md §7's KindQueueFull exists
// specifically for this path). Items are carried as already-serialized
// []byte rather than internal/variant.Variant: nothing downstream of
// Dequeue ever needs the item as a live, refcounted tree again before
// protocol.Parse walks its fields once, so routing it through Variant's
// AddRef/Release machinery at the queue boundary would buy nothing (see
// DESIGN.md's Open Question decision).
package queue

import (
	"sync"

	"github.com/nativebridge/engine/internal/bridgeerr"
)

// Queue is a bounded FIFO of wire messages.
type Queue struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	items    [][]byte
	capacity int
	closed   bool
}

// New constructs a queue with room for capacity pending items.
func New(capacity int) *Queue {
	q := &Queue{capacity: capacity}
	q.notEmpty = sync.NewCond(&q.mu)
	return q
}

// Enqueue appends msg without blocking. It fails with KindQueueFull if the
// queue is at capacity, and with KindProtocolError if the queue has been
// closed.
func (q *Queue) Enqueue(msg []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return bridgeerr.New(bridgeerr.KindProtocolError, "enqueue on closed queue")
	}
	if len(q.items) >= q.capacity {
		return bridgeerr.New(bridgeerr.KindQueueFull, "queue at capacity %d", q.capacity)
	}
	q.items = append(q.items, msg)
	q.notEmpty.Signal()
	return nil
}

// Dequeue blocks until an item is available or the queue is closed. It
// returns (nil, false) only when the queue is closed and drained — the
// sole way a consumer loop is meant to exit.
func (q *Queue) Dequeue() ([]byte, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && !q.closed {
		q.notEmpty.Wait()
	}
	if len(q.items) == 0 {
		return nil, false
	}
	v := q.items[0]
	q.items = q.items[1:]
	return v, true
}

// PushFront reinserts msg at the head of the queue. The callback
// trampoline's nested dequeue loop (spec.md §4.7 step 4) uses this to
// preserve enqueue order for a top-level request that arrives while the
// worker is blocked waiting on a specific callback reply: the request is
// put back where it will be the next item an ordinary Dequeue sees once
// the nested call completes.
func (q *Queue) PushFront(msg []byte) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append([][]byte{msg}, q.items...)
	q.notEmpty.Signal()
}

// Len reports the current number of pending items, used by engine metrics
// (spec.md §5: "depth/fullness must be inspectable").
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close marks the queue closed and wakes every blocked consumer. Items
// already pending stay queued: Dequeue keeps returning them until the
// queue is empty and only then reports closed.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	q.notEmpty.Broadcast()
}
