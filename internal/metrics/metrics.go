// Package metrics holds the prometheus collectors shared by the engine,
// dispatcher and scheduler.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
)

var Module = fx.Module("metrics",
	fx.Provide(New),
)

type Metrics struct {
	Transitions         *prometheus.CounterVec
	TransitionsRejected *prometheus.CounterVec
	EventsDispatched    *prometheus.CounterVec
	ReconcileMismatches prometheus.Counter
}

func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "exportflow",
			Name:      "transitions_total",
			Help:      "Committed export status transitions.",
		}, []string{"action", "to_status", "organization"}),
		TransitionsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "exportflow",
			Name:      "transitions_rejected_total",
			Help:      "Engine calls rejected before any mutation.",
		}, []string{"reason"}),
		EventsDispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "exportflow",
			Name:      "events_dispatched_total",
			Help:      "Outbox events handed to side-effect providers.",
		}, []string{"provider", "result"}),
		ReconcileMismatches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "exportflow",
			Name:      "reconcile_mismatches_total",
			Help:      "Exports whose stored status disagreed with ledger replay.",
		}),
	}
	reg.MustRegister(m.Transitions, m.TransitionsRejected, m.EventsDispatched, m.ReconcileMismatches)
	return m
}

// Nop returns metrics backed by a throwaway registry, for tests.
func Nop() *Metrics {
	return New(prometheus.NewRegistry())
}
