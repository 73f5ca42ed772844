// Package metrics provides Prometheus metrics for the signal engine.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// EngineMetrics collects and exposes engine-level Prometheus metrics.
type EngineMetrics struct {
	registry *prometheus.Registry

	// Tick metrics
	TicksTotal   *prometheus.CounterVec
	TickDuration *prometheus.HistogramVec
	LiveMatches  *prometheus.GaugeVec

	// Feed metrics
	FeedErrors     *prometheus.CounterVec
	StaleClocks    *prometheus.CounterVec
	TrackedClocks  *prometheus.GaugeVec
	DetailFallback *prometheus.CounterVec

	// Signal metrics
	SignalsByState   *prometheus.GaugeVec
	SignalsActivated *prometheus.CounterVec
	SignalsExpired   *prometheus.CounterVec
	SignalConfidence *prometheus.HistogramVec

	// Agent metrics
	AgentUpdates       *prometheus.CounterVec
	AgentEpsilon       *prometheus.GaugeVec
	AgentStates        *prometheus.GaugeVec
	PendingEvaluations *prometheus.GaugeVec
}

// NewEngineMetrics creates a metrics collector with its own registry.
func NewEngineMetrics() *EngineMetrics {
	registry := prometheus.NewRegistry()

	em := &EngineMetrics{
		registry: registry,

		TicksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "matchpulse_ticks_total",
				Help: "Total number of evaluation ticks",
			},
			[]string{"status"},
		),
		TickDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "matchpulse_tick_duration_seconds",
				Help:    "End-to-end evaluation tick duration",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
			},
			[]string{},
		),
		LiveMatches: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "matchpulse_live_matches",
				Help: "Number of live matches in the current tick",
			},
			[]string{},
		),

		FeedErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "matchpulse_feed_errors_total",
				Help: "Total number of failed provider calls",
			},
			[]string{"endpoint"},
		),
		StaleClocks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "matchpulse_stale_clocks_total",
				Help: "Total number of stale-clock detections",
			},
			[]string{},
		),
		TrackedClocks: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "matchpulse_tracked_clocks",
				Help: "Number of matches with clock tracking state",
			},
			[]string{},
		),
		DetailFallback: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "matchpulse_detail_fallback_total",
				Help: "Total number of fixture-detail fallback fetches",
			},
			[]string{"status"},
		),

		SignalsByState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "matchpulse_signals",
				Help: "Current number of live signals per lifecycle state",
			},
			[]string{"state"},
		),
		SignalsActivated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "matchpulse_signals_activated_total",
				Help: "Total number of signal activations",
			},
			[]string{"bucket"},
		),
		SignalsExpired: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "matchpulse_signals_expired_total",
				Help: "Total number of signal expiries",
			},
			[]string{},
		),
		SignalConfidence: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "matchpulse_signal_confidence",
				Help:    "Adjusted confidence of generated signals (0-100)",
				Buckets: prometheus.LinearBuckets(0, 10, 11),
			},
			[]string{"bucket"},
		),

		AgentUpdates: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "matchpulse_agent_updates_total",
				Help: "Total number of outcome updates applied to the agent",
			},
			[]string{"outcome"},
		),
		AgentEpsilon: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "matchpulse_agent_epsilon",
				Help: "Current exploration rate",
			},
			[]string{},
		),
		AgentStates: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "matchpulse_agent_states",
				Help: "Number of known Q-table states",
			},
			[]string{},
		),
		PendingEvaluations: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "matchpulse_pending_evaluations",
				Help: "Evaluations awaiting outcome feedback",
			},
			[]string{},
		),
	}

	em.registerAll()
	return em
}

func (em *EngineMetrics) registerAll() {
	em.registry.MustRegister(
		em.TicksTotal,
		em.TickDuration,
		em.LiveMatches,
		em.FeedErrors,
		em.StaleClocks,
		em.TrackedClocks,
		em.DetailFallback,
		em.SignalsByState,
		em.SignalsActivated,
		em.SignalsExpired,
		em.SignalConfidence,
		em.AgentUpdates,
		em.AgentEpsilon,
		em.AgentStates,
		em.PendingEvaluations,
	)
}

// Registry returns the prometheus registry for the /metrics handler.
func (em *EngineMetrics) Registry() *prometheus.Registry {
	return em.registry
}

// RecordTick records one evaluation tick.
func (em *EngineMetrics) RecordTick(status string, durationSec float64, liveMatches int) {
	em.TicksTotal.WithLabelValues(status).Inc()
	if durationSec > 0 {
		em.TickDuration.WithLabelValues().Observe(durationSec)
	}
	em.LiveMatches.WithLabelValues().Set(float64(liveMatches))
}

// RecordFeedError records a failed provider call.
func (em *EngineMetrics) RecordFeedError(endpoint string) {
	em.FeedErrors.WithLabelValues(endpoint).Inc()
}

// UpdateSignalCounts sets the per-state signal gauges.
func (em *EngineMetrics) UpdateSignalCounts(counts map[string]int) {
	for state, n := range counts {
		em.SignalsByState.WithLabelValues(state).Set(float64(n))
	}
}

// RecordActivation records one signal activation.
func (em *EngineMetrics) RecordActivation(bucket string, confidence float64) {
	em.SignalsActivated.WithLabelValues(bucket).Inc()
	em.SignalConfidence.WithLabelValues(bucket).Observe(confidence)
}

// RecordExpiries adds to the expiry counter.
func (em *EngineMetrics) RecordExpiries(n int) {
	em.SignalsExpired.WithLabelValues().Add(float64(n))
}

// RecordAgentUpdate records one outcome update.
func (em *EngineMetrics) RecordAgentUpdate(outcome string) {
	em.AgentUpdates.WithLabelValues(outcome).Inc()
}

// UpdateAgentGauges refreshes the agent health gauges.
func (em *EngineMetrics) UpdateAgentGauges(epsilon float64, states, pending int) {
	em.AgentEpsilon.WithLabelValues().Set(epsilon)
	em.AgentStates.WithLabelValues().Set(float64(states))
	em.PendingEvaluations.WithLabelValues().Set(float64(pending))
}

// UpdateTrackedClocks refreshes the clock-tracking gauge.
func (em *EngineMetrics) UpdateTrackedClocks(n int) {
	em.TrackedClocks.WithLabelValues().Set(float64(n))
}

// Global instance for convenience.
var (
	defaultMetrics *EngineMetrics
	once           sync.Once
)

// Default returns the default global metrics instance.
func Default() *EngineMetrics {
	once.Do(func() {
		defaultMetrics = NewEngineMetrics()
	})
	return defaultMetrics
}
