// Package observability exports the adaptation engine's activity as
// Prometheus metrics.
//
// The engine publishes events through a hook it calls synchronously on its
// single thread, so every metric update here must stay cheap: counters and
// gauges only, plus one histogram for measured frame times.
//
// Each Metrics instance carries its own registry so parallel engines (and
// tests) never collide on metric registration; hand Registry() to a
// promhttp handler to expose it.
package observability

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	cadence "github.com/cadence-rt/cadence"
)

// Metrics implements the engine's metrics hook on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	frameEnters     *prometheus.CounterVec
	frameCompletes  *prometheus.CounterVec
	frameSeconds    *prometheus.HistogramVec
	execFrameRuns   *prometheus.CounterVec
	execFrameChoice *prometheus.GaugeVec
	rescalings      *prometheus.CounterVec
}

// New creates a Metrics hook backed by a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,

		frameEnters: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cadence",
			Subsystem: "frame",
			Name:      "enters_total",
			Help:      "Frame Enter transitions (starts and resumes).",
		}, []string{"frame"}),

		frameCompletes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cadence",
			Subsystem: "frame",
			Name:      "completes_total",
			Help:      "Frame completions by objective outcome.",
		}, []string{"frame", "outcome"}),

		frameSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "cadence",
			Subsystem: "frame",
			Name:      "invocation_seconds",
			Help:      "Measured frame invocation times.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 1.5, 20),
		}, []string{"frame"}),

		execFrameRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cadence",
			Subsystem: "execframe",
			Name:      "runs_total",
			Help:      "Exec frame runs by chosen decision tag.",
		}, []string{"execframe", "tag"}),

		execFrameChoice: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "cadence",
			Subsystem: "execframe",
			Name:      "current_choice",
			Help:      "Most recent decision tag per exec frame.",
		}, []string{"execframe"}),

		rescalings: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cadence",
			Subsystem: "strategy",
			Name:      "rescalings_total",
			Help:      "Fast-reaction coefficient rescalings by trigger.",
		}, []string{"execframe", "cause"}),
	}
}

// Registry returns the private registry for mounting on a /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// FrameEntered implements cadence.MetricsHook.
func (m *Metrics) FrameEntered(id cadence.FrameID) {
	m.frameEnters.WithLabelValues(frameLabel(id)).Inc()
}

// FrameCompleted implements cadence.MetricsHook.
func (m *Metrics) FrameCompleted(id cadence.FrameID, seconds float64, outcome string) {
	label := frameLabel(id)
	m.frameCompletes.WithLabelValues(label, outcome).Inc()
	m.frameSeconds.WithLabelValues(label).Observe(seconds)
}

// ExecFrameRan implements cadence.MetricsHook.
func (m *Metrics) ExecFrameRan(id cadence.FrameID, tag int, _ float64) {
	label := frameLabel(id)
	m.execFrameRuns.WithLabelValues(label, strconv.Itoa(tag)).Inc()
	m.execFrameChoice.WithLabelValues(label).Set(float64(tag))
}

// StrategyRescaled implements cadence.MetricsHook.
func (m *Metrics) StrategyRescaled(id cadence.FrameID, cause string) {
	m.rescalings.WithLabelValues(frameLabel(id), cause).Inc()
}

func frameLabel(id cadence.FrameID) string {
	return strconv.FormatInt(int64(id), 10)
}
