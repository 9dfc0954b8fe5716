package commands

import (
	"bufio"
	"fmt"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/nativebridge/engine/internal/builtin"
	"github.com/nativebridge/engine/internal/dispatch"
	"github.com/nativebridge/engine/internal/engine"
	"github.com/nativebridge/engine/internal/host"
)

var metricsAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the engine's run loop over newline-delimited JSON on stdin/stdout",
	Long: `serve reads one top-level request per line from stdin, feeds it
through the run loop, and writes the encoded response as one line on
stdout — a stand-in for the host process a real embedder would be.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "address to serve /metrics on (empty disables it)")
}

// stdoutMessenger implements host.Messenger by writing one line per
// response to stdout.
type stdoutMessenger struct {
	w *bufio.Writer
}

func (m *stdoutMessenger) Post(response []byte) {
	m.w.Write(response)
	m.w.WriteByte('\n')
	m.w.Flush()
}

// emptyFunctionTable is the demo harness's host.FunctionTable: bridge-demo
// never links real C function pointers, so getFunc always reports not
// found, and only the generated demo stubs' own trampoline pools ever
// exercise a callback.
type emptyFunctionTable struct{}

func (emptyFunctionTable) Lookup(id int32) (host.CFunc, bool) { return nil, false }

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := engine.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	promRegistry := prometheus.NewRegistry()
	reg := dispatch.NewRegistry()
	out := &stdoutMessenger{w: bufio.NewWriter(os.Stdout)}

	e := engine.New(cfg, reg, emptyFunctionTable{}, out, promRegistry)

	pools := builtin.NewPools(cfg.FunctionPointerCount, out, e.Queue, e.Log)
	builtin.Register(reg, pools, e.Log)

	if metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}))
		go func() {
			e.Log.WithField("addr", metricsAddr).Info("metrics listener starting")
			if err := http.ListenAndServe(metricsAddr, mux); err != nil {
				e.Log.WithError(err).Error("metrics listener stopped")
			}
		}()
	}

	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
		for scanner.Scan() {
			line := scanner.Bytes()
			if len(line) == 0 {
				continue
			}
			if err := e.Queue.Enqueue(append([]byte(nil), line...)); err != nil {
				e.Log.WithError(err).Warn("dropped an incoming line")
			}
		}
		e.Queue.Close()
	}()

	e.Log.Info("run loop starting")
	e.Run()
	e.Log.Info("run loop stopped")
	return nil
}
