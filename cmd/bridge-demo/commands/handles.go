package commands

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/nativebridge/engine/internal/builtin"
	"github.com/nativebridge/engine/internal/dispatch"
	"github.com/nativebridge/engine/internal/engine"
)

var handlesCmd = &cobra.Command{
	Use:   "handles",
	Short: "Run a scripted sequence of requests against an in-process engine",
	Long: `handles feeds a handful of canned requests — function-handle
registration, scalar arithmetic through the builtin command suite, and an
unsupported-signature failure — through a freshly constructed engine and
prints each response line by line. It is meant for eyeballing the wire
format, not for scripting.`,
	RunE: runHandles,
}

// printMessenger prints every posted response and signals doneCh once it
// has seen the expected count, so runHandles can close the queue and
// return without guessing at a sleep duration.
type printMessenger struct {
	want int
	seen int
	done chan struct{}
}

func newPrintMessenger(want int) *printMessenger {
	return &printMessenger{want: want, done: make(chan struct{})}
}

func (m *printMessenger) Post(response []byte) {
	fmt.Println(string(response))
	m.seen++
	if m.seen >= m.want {
		close(m.done)
	}
}

var scriptedRequests = []string{
	// Scenario: register a function handle, read it straight back.
	`{"id":1,"set":{"1":["function",2]},"get":[1]}`,
	// Scenario: malloc(16) -> memset(0) -> pointer+4 -> set_int32(42) -> get_int32.
	`{"id":2,"set":{"10":["uint32",16],"12":["int32",0],"13":["uint32",16],"15":["int32",4],"17":["int32",42]},"commands":[
		{"id":210,"args":[10],"ret":11},
		{"id":212,"args":[11,12,13],"ret":14},
		{"id":200,"args":[14,15],"ret":16},
		{"id":114,"args":[16,17]},
		{"id":104,"args":[16],"ret":18}
	],"get":[18]}`,
	// Scenario: a va_list-signature function id fails immediately.
	`{"id":3,"commands":[{"id":2,"args":[]}]}`,
}

func runHandles(cmd *cobra.Command, args []string) error {
	cfg, err := engine.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg.MetricsEnabled = false

	reg := dispatch.NewRegistry()
	out := newPrintMessenger(len(scriptedRequests))

	e := engine.New(cfg, reg, emptyFunctionTable{}, out, prometheus.NewRegistry())
	pools := builtin.NewPools(cfg.FunctionPointerCount, out, e.Queue, e.Log)
	builtin.Register(reg, pools, e.Log)

	go e.Run()

	for _, req := range scriptedRequests {
		if err := e.Queue.Enqueue([]byte(req)); err != nil {
			return fmt.Errorf("enqueue scripted request: %w", err)
		}
	}

	<-out.done
	e.Queue.Close()
	return nil
}
