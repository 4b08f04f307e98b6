// Package metrics exposes Prometheus collectors for the extension core.
// All record methods are nil-receiver safe so subsystems can run without a
// metrics sink wired in.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome label values shared across collectors.
const (
	OutcomeReady    = "ready"
	OutcomeReloaded = "reloaded"
	OutcomeFailed   = "failed"
	OutcomeOK       = "ok"
	OutcomeNotReady = "not_ready"
	OutcomeError    = "error"
	OutcomeDropped  = "dropped"
)

type Metrics struct {
	PrototypeLoads  *prometheus.CounterVec
	Spawns          *prometheus.CounterVec
	EventsSent      prometheus.Counter
	EventsDelivered *prometheus.CounterVec
	HookInvocations *prometheus.CounterVec
	HookDuration    prometheus.Histogram
	ScriptAttaches  *prometheus.CounterVec
	ContextsLive    prometheus.Gauge
	TickDuration    prometheus.Histogram
}

func NewMetrics() *Metrics {
	return &Metrics{
		PrototypeLoads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "simforge",
				Subsystem: "prototype",
				Name:      "loads_total",
				Help:      "Prototype descriptor load resolutions by outcome.",
			},
			[]string{"outcome"},
		),
		Spawns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "simforge",
				Subsystem: "spawn",
				Name:      "requests_total",
				Help:      "Prototype spawn requests by outcome.",
			},
			[]string{"outcome"},
		),
		EventsSent: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "simforge",
				Subsystem: "events",
				Name:      "sent_total",
				Help:      "Events enqueued for dispatch.",
			},
		),
		EventsDelivered: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "simforge",
				Subsystem: "events",
				Name:      "delivered_total",
				Help:      "Event deliveries by outcome; dropped means no matching recipient.",
			},
			[]string{"outcome"},
		),
		HookInvocations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "simforge",
				Subsystem: "script",
				Name:      "hook_invocations_total",
				Help:      "Script hook invocations by outcome.",
			},
			[]string{"outcome"},
		),
		HookDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "simforge",
				Subsystem: "script",
				Name:      "hook_duration_seconds",
				Help:      "Script hook execution time.",
				Buckets:   prometheus.DefBuckets,
			},
		),
		ScriptAttaches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "simforge",
				Subsystem: "script",
				Name:      "attaches_total",
				Help:      "Script context attach attempts by outcome.",
			},
			[]string{"outcome"},
		),
		ContextsLive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "simforge",
				Subsystem: "script",
				Name:      "contexts_live",
				Help:      "Currently attached script contexts.",
			},
		),
		TickDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "simforge",
				Subsystem: "engine",
				Name:      "tick_duration_seconds",
				Help:      "Full update tick time.",
				Buckets:   prometheus.DefBuckets,
			},
		),
	}
}

// Register attaches all collectors to the given registerer.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	if m == nil {
		return nil
	}
	collectors := []prometheus.Collector{
		m.PrototypeLoads,
		m.Spawns,
		m.EventsSent,
		m.EventsDelivered,
		m.HookInvocations,
		m.HookDuration,
		m.ScriptAttaches,
		m.ContextsLive,
		m.TickDuration,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) PrototypeLoad(outcome string) {
	if m == nil {
		return
	}
	m.PrototypeLoads.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Spawn(outcome string) {
	if m == nil {
		return
	}
	m.Spawns.WithLabelValues(outcome).Inc()
}

func (m *Metrics) EventSent() {
	if m == nil {
		return
	}
	m.EventsSent.Inc()
}

func (m *Metrics) EventDelivered(outcome string) {
	if m == nil {
		return
	}
	m.EventsDelivered.WithLabelValues(outcome).Inc()
}

func (m *Metrics) HookInvocation(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.HookInvocations.WithLabelValues(outcome).Inc()
	m.HookDuration.Observe(d.Seconds())
}

func (m *Metrics) ScriptAttach(outcome string) {
	if m == nil {
		return
	}
	m.ScriptAttaches.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ContextCount(delta int) {
	if m == nil {
		return
	}
	m.ContextsLive.Add(float64(delta))
}

func (m *Metrics) Tick(d time.Duration) {
	if m == nil {
		return
	}
	m.TickDuration.Observe(d.Seconds())
}
