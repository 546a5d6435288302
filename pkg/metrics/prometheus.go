// Package metrics exposes Prometheus instrumentation for the solver.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is the container of solver metrics.
type Metrics struct {
	// Solve lifecycle
	SolveOperationsTotal *prometheus.CounterVec
	SolveDuration        *prometheus.HistogramVec
	MaxFlowValue         prometheus.Gauge

	// Solver internals
	DischargesTotal       prometheus.Counter
	GlobalRelabelsTotal   prometheus.Counter
	BoundaryMessagesTotal prometheus.Counter
	RegionsClaimedTotal   prometheus.Counter
	ActiveBlocks          prometheus.Gauge

	// Graph shape
	GraphNodesTotal  prometheus.Gauge
	GraphBlocksTotal prometheus.Gauge

	// Service info
	ServiceInfo *prometheus.GaugeVec
}

var (
	defaultMetrics *Metrics
	initOnce       sync.Once
)

// InitMetrics registers and returns the metric container. Repeated calls
// return the instance created by the first one; promauto registration is
// not idempotent.
func InitMetrics(namespace, subsystem string) *Metrics {
	initOnce.Do(func() {
		defaultMetrics = newMetrics(namespace, subsystem)
	})
	return defaultMetrics
}

func newMetrics(namespace, subsystem string) *Metrics {
	return &Metrics{
		SolveOperationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "solve_operations_total",
				Help:      "Total number of solve operations",
			},
			[]string{"status"},
		),

		SolveDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "solve_duration_seconds",
				Help:      "Duration of solve operations",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"status"},
		),

		MaxFlowValue: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "max_flow_value",
				Help:      "Flow value of the last completed solve",
			},
		),

		DischargesTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "discharges_total",
				Help:      "Total number of node discharges",
			},
		),

		GlobalRelabelsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "global_relabels_total",
				Help:      "Total number of global relabel rounds",
			},
		),

		BoundaryMessagesTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "boundary_messages_total",
				Help:      "Total number of cross-block push messages",
			},
		),

		RegionsClaimedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "regions_claimed_total",
				Help:      "Total number of regions claimed by workers",
			},
		),

		ActiveBlocks: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "active_blocks",
				Help:      "Blocks currently queued for discharge",
			},
		),

		GraphNodesTotal: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "graph_nodes_total",
				Help:      "Nodes in the current graph",
			},
		),

		GraphBlocksTotal: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "graph_blocks_total",
				Help:      "Blocks in the current graph",
			},
		),

		ServiceInfo: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "service_info",
				Help:      "Service metadata",
			},
			[]string{"version", "environment"},
		),
	}
}

// Get returns the container created by InitMetrics, or nil when metrics are
// disabled. All solver call sites must tolerate nil.
func Get() *Metrics {
	return defaultMetrics
}

// ObserveSolve records a finished solve.
func (m *Metrics) ObserveSolve(status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.SolveOperationsTotal.WithLabelValues(status).Inc()
	m.SolveDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// Handler returns the HTTP handler serving the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
