// ABOUTME: Prometheus metrics for the forward-auth hot path
// ABOUTME: Exposed on GET /metrics via the default registry

package gateway

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	authzDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "keyward_authz_decisions_total",
			Help: "Forward-auth decisions by outcome.",
		},
		[]string{"outcome"},
	)

	ceremonies = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "keyward_ceremonies_total",
			Help: "Completed WebAuthn ceremonies by type and outcome.",
		},
		[]string{"ceremony", "outcome"},
	)
)

func init() {
	prometheus.MustRegister(authzDecisions, ceremonies)
}

func observeDecision(allowed bool) {
	outcome := "deny"
	if allowed {
		outcome = "allow"
	}
	authzDecisions.WithLabelValues(outcome).Inc()
}

func observeCeremony(name string, ok bool) {
	outcome := "failure"
	if ok {
		outcome = "success"
	}
	ceremonies.WithLabelValues(name, outcome).Inc()
}
