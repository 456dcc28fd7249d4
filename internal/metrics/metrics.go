// Package metrics exposes Prometheus instrumentation for the auth core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the counters incremented on the auth hot paths.
type Metrics struct {
	Registrations prometheus.Counter
	Activations   prometheus.Counter
	Logins        *prometheus.CounterVec
	Refreshes     *prometheus.CounterVec
	Logouts       prometheus.Counter
	GateDenied    *prometheus.CounterVec
}

// New registers all collectors with reg and returns them. Passing a fresh
// registry in tests avoids duplicate-registration panics.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Registrations: factory.NewCounter(prometheus.CounterOpts{
			Name: "coursehub_registrations_total",
			Help: "Accepted registration requests.",
		}),
		Activations: factory.NewCounter(prometheus.CounterOpts{
			Name: "coursehub_activations_total",
			Help: "Successful account activations.",
		}),
		Logins: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "coursehub_logins_total",
			Help: "Login attempts by result.",
		}, []string{"result"}),
		Refreshes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "coursehub_token_refreshes_total",
			Help: "Refresh-token exchanges by result.",
		}, []string{"result"}),
		Logouts: factory.NewCounter(prometheus.CounterOpts{
			Name: "coursehub_logouts_total",
			Help: "Logout requests.",
		}),
		GateDenied: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "coursehub_auth_gate_denied_total",
			Help: "Requests rejected by the auth gate, by reason.",
		}, []string{"reason"}),
	}
}
