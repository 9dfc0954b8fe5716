package engine

import "github.com/prometheus/client_golang/prometheus"

// metrics are the engine's Prometheus instruments, grounded on
// etalazz-vsa/internal/ratelimiter/telemetry/churn/prom_counters.go's
// package-level gauge/counter style (global registration in a
// constructor, not an init-time MustRegister, since an embedder may run
// more than one Engine in a test process and each needs its own
// registry).
type metrics struct {
	liveHandles        prometheus.Gauge
	queueDepth         prometheus.Gauge
	commandsDispatched prometheus.Counter
	commandErrors      prometheus.Counter
	requestsProcessed  prometheus.Counter
}

func newMetrics(registry *prometheus.Registry) *metrics {
	m := &metrics{
		liveHandles: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "nativebridge_live_handles",
			Help: "Number of handles currently registered in the handle table.",
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "nativebridge_queue_depth",
			Help: "Number of messages currently pending in the incoming queue.",
		}),
		commandsDispatched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nativebridge_commands_dispatched_total",
			Help: "Total number of commands dispatched across all requests.",
		}),
		commandErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nativebridge_command_errors_total",
			Help: "Total number of commands that returned an error.",
		}),
		requestsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "nativebridge_requests_processed_total",
			Help: "Total number of top-level requests processed by the run loop.",
		}),
	}
	if registry != nil {
		registry.MustRegister(m.liveHandles, m.queueDepth, m.commandsDispatched,
			m.commandErrors, m.requestsProcessed)
	}
	return m
}
