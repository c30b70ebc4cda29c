// Package metrics registers the engine's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the workflow counters. Register once per process.
type Metrics struct {
	Transitions     *prometheus.CounterVec
	Rejections      *prometheus.CounterVec
	Escalations     *prometheus.CounterVec
	PayoutRetries   prometheus.Counter
	DispatchRetries prometheus.Counter
	DispatchDropped prometheus.Counter
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sdcrs_transitions_total",
				Help: "Committed workflow transitions by source state, event and target state.",
			},
			[]string{"from", "event", "to"},
		),
		Rejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sdcrs_rejections_total",
				Help: "Rejected transition attempts by rejection kind.",
			},
			[]string{"kind"},
		),
		Escalations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sdcrs_sla_escalations_total",
				Help: "SLA escalations fired by state.",
			},
			[]string{"state"},
		),
		PayoutRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sdcrs_payout_retries_total",
			Help: "Payout retry transitions.",
		}),
		DispatchRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sdcrs_dispatch_retries_total",
			Help: "Side-effect deliveries that needed a retry.",
		}),
		DispatchDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sdcrs_dispatch_dropped_total",
			Help: "Side-effect deliveries abandoned after the retry budget.",
		}),
	}
	reg.MustRegister(
		m.Transitions,
		m.Rejections,
		m.Escalations,
		m.PayoutRetries,
		m.DispatchRetries,
		m.DispatchDropped,
	)
	return m
}

// NewNop creates unregistered collectors for tests.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}
