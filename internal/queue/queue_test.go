package queue

import (
	"testing"
	"time"

	"github.com/nativebridge/engine/internal/bridgeerr"
)

func TestEnqueueDequeueFIFO(t *testing.T) {
	q := New(4)
	for i := byte(0); i < 3; i++ {
		if err := q.Enqueue([]byte{i}); err != nil {
			t.Fatal(err)
		}
	}
	for i := byte(0); i < 3; i++ {
		v, ok := q.Dequeue()
		if !ok {
			t.Fatal("Dequeue reported closed on a non-closed queue")
		}
		if len(v) != 1 || v[0] != i {
			t.Fatalf("Dequeue order = %v, want [%d]", v, i)
		}
	}
}

func TestEnqueueFailsWhenFull(t *testing.T) {
	q := New(1)
	if err := q.Enqueue([]byte("a")); err != nil {
		t.Fatal(err)
	}
	err := q.Enqueue([]byte("b"))
	if bridgeerr.KindOf(err) != bridgeerr.KindQueueFull {
		t.Fatalf("Enqueue on full queue = %v, want KindQueueFull", err)
	}
}

func TestDequeueBlocksUntilEnqueue(t *testing.T) {
	q := New(1)
	done := make(chan []byte, 1)
	go func() {
		v, ok := q.Dequeue()
		if ok {
			done <- v
		}
	}()

	select {
	case <-done:
		t.Fatal("Dequeue returned before any item was enqueued")
	case <-time.After(20 * time.Millisecond):
	}

	if err := q.Enqueue([]byte("hi")); err != nil {
		t.Fatal(err)
	}

	select {
	case v := <-done:
		if string(v) != "hi" {
			t.Fatalf("got %q, want hi", v)
		}
	case <-time.After(time.Second):
		t.Fatal("Dequeue did not unblock after Enqueue")
	}
}

func TestCloseUnblocksConsumer(t *testing.T) {
	q := New(1)
	done := make(chan bool, 1)
	go func() {
		_, ok := q.Dequeue()
		done <- ok
	}()

	select {
	case <-done:
		t.Fatal("Dequeue returned before Close")
	case <-time.After(20 * time.Millisecond):
	}

	q.Close()

	select {
	case ok := <-done:
		if ok {
			t.Fatal("Dequeue should report closed (ok=false) after Close")
		}
	case <-time.After(time.Second):
		t.Fatal("Close did not unblock the waiting consumer")
	}

	if err := q.Enqueue([]byte("x")); bridgeerr.KindOf(err) != bridgeerr.KindProtocolError {
		t.Fatalf("Enqueue on closed queue = %v, want KindProtocolError", err)
	}
}

func TestLenTracksPendingCount(t *testing.T) {
	q := New(4)
	if q.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", q.Len())
	}
	q.Enqueue([]byte("a"))
	q.Enqueue([]byte("b"))
	if q.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", q.Len())
	}
	q.Dequeue()
	if q.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", q.Len())
	}
}

func TestPushFrontPreservesOrderingForRequeuedItem(t *testing.T) {
	q := New(4)
	q.Enqueue([]byte("b"))
	q.PushFront([]byte("a"))
	v, ok := q.Dequeue()
	if !ok || string(v) != "a" {
		t.Fatalf("first Dequeue = %q, %v, want a, true", v, ok)
	}
	v, ok = q.Dequeue()
	if !ok || string(v) != "b" {
		t.Fatalf("second Dequeue = %q, %v, want b, true", v, ok)
	}
}
