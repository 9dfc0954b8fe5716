// Package engine implements the run loop (spec.md §4.8, component C10):
// the single worker goroutine that dequeues requests, drives them through
// the request parser, command dispatcher, and response builder, and posts
// the result back through the host messaging interface.
package engine

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/nativebridge/engine/internal/dispatch"
	"github.com/nativebridge/engine/internal/handle"
	"github.com/nativebridge/engine/internal/host"
	"github.com/nativebridge/engine/internal/protocol"
	"github.com/nativebridge/engine/internal/queue"
)

// Engine owns the process-wide singletons spec.md §9 calls out — the
// handle table, the incoming queue, and the dispatch registry — and drives
// the run loop over them. Exactly one goroutine should call Run per
// Engine instance (spec.md §5: "one worker thread drives the run loop").
type Engine struct {
	ID     string
	Table  *handle.Table
	Queue  *queue.Queue
	Reg    *dispatch.Registry
	Funcs  host.FunctionTable
	Post   host.Messenger
	Log    host.Logger
	metrics *metrics
}

// New constructs an Engine. registry should already have every builtin
// and generated stub registered (see internal/builtin.Register); funcs
// and post are the host-provided collaborators spec.md §6 names.
func New(cfg Config, registry *dispatch.Registry, funcs host.FunctionTable, post host.Messenger, promRegistry *prometheus.Registry) *Engine {
	lvl, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	base := logrus.New()
	base.SetLevel(lvl)
	id := uuid.NewString()
	log := base.WithField("engine_id", id)

	var m *metrics
	if cfg.MetricsEnabled {
		m = newMetrics(promRegistry)
	} else {
		m = newMetrics(nil)
	}

	return &Engine{
		ID:      id,
		Table:   handle.New(),
		Queue:   queue.New(cfg.QueueCapacity),
		Reg:     registry,
		Funcs:   funcs,
		Post:    post,
		Log:     log,
		metrics: m,
	}
}

// Run drains the incoming queue until it is closed (spec.md §5's shutdown
// sentinel — this build closes the queue instead of enqueueing an
// Undefined Variant, since the queue here carries raw JSON bytes rather
// than Variants; see DESIGN.md's Open Question decision on queue element
// type). Each dequeued message is handled in turn; Run returns once the
// queue reports closed-and-drained.
func (e *Engine) Run() {
	for {
		raw, ok := e.Queue.Dequeue()
		if !ok {
			return
		}
		e.handleTopLevel(raw)
	}
}

// handleTopLevel runs one top-level request through steps 1-6 of spec.md
// §4.8 and posts the resulting response. A reply to an in-flight
// callback trampoline is never seen here: Pool.Invoke drains those
// directly off the same queue before they would reach this loop.
func (e *Engine) handleTopLevel(raw []byte) {
	if e.metrics != nil {
		e.metrics.queueDepth.Set(float64(e.Queue.Len()))
	}

	req, err := protocol.Parse(raw, e.Table)
	if err != nil {
		errResp := protocol.NewResponse(peekID(raw))
		errResp.SetError(err)
		e.Post.Post(errResp.Encode())
		if e.metrics != nil {
			e.metrics.commandErrors.Inc()
		}
		return
	}

	resp := protocol.NewResponse(req.ID)
	ctx := &dispatch.Context{Table: e.Table, Functions: e.Funcs, Log: e.Log}

	for _, cmd := range req.Commands {
		if e.metrics != nil {
			e.metrics.commandsDispatched.Inc()
		}
		if err := e.Reg.Dispatch(ctx, cmd); err != nil {
			e.Log.WithError(err).WithField("function_id", cmd.ID).Warn("command dispatch failed")
			resp.SetError(err)
			if e.metrics != nil {
				e.metrics.commandErrors.Inc()
			}
			e.postResponse(resp)
			return
		}
	}

	for _, h := range req.Get {
		val, err := protocol.EncodeHandleValue(e.Table, h)
		if err != nil {
			resp.SetError(err)
			e.postResponse(resp)
			return
		}
		resp.AddValue(val)
	}

	for _, err := range e.Table.DestroyAll(req.Destroy) {
		e.Log.WithError(err).Debug("destroy failed for a handle in this request's destroy list")
	}

	if e.metrics != nil {
		e.metrics.liveHandles.Set(float64(e.Table.Len()))
		e.metrics.requestsProcessed.Inc()
	}
	e.postResponse(resp)
}

func (e *Engine) postResponse(resp *protocol.Response) {
	e.Post.Post(resp.Encode())
}

// peekID extracts a request's `id` field for error responses when Parse
// itself failed (e.g. malformed JSON) before a structured Request existed
// to carry one. Returns 0 if no integer id can be found.
func peekID(raw []byte) int32 {
	var partial struct {
		ID int32 `json:"id"`
	}
	_ = json.Unmarshal(raw, &partial)
	return partial.ID
}
