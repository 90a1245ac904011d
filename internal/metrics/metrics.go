// Package metrics provides Prometheus metrics for Purlock.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Purlock counters and the registry exposing them.
type Metrics struct {
	Registry *prometheus.Registry

	// Verifications counts activation attempts by outcome: "activated" for
	// success, otherwise the engine error kind.
	Verifications *prometheus.CounterVec
	// Resets counts reset attempts by outcome.
	Resets *prometheus.CounterVec
}

// New creates a Metrics with all collectors registered.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,
		Verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "purlock",
			Name:      "verifications_total",
			Help:      "License verification attempts by outcome.",
		}, []string{"outcome"}),
		Resets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "purlock",
			Name:      "resets_total",
			Help:      "License reset attempts by outcome.",
		}, []string{"outcome"}),
	}

	reg.MustRegister(m.Verifications, m.Resets)
	return m
}
