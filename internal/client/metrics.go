package client

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for transport activity.
type Metrics struct {
	requests        *prometheus.CounterVec
	retries         prometheus.Counter
	refreshes       prometheus.Counter
	refreshFailures prometheus.Counter
	authFailures    prometheus.Counter
}

// NewMetrics registers transport collectors on the given registerer. A nil
// registerer yields collectors that are recorded but not exported, which
// keeps repeated client construction in tests panic-free.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)
	return &Metrics{
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "vantage_client_requests_total",
			Help: "API requests by method and outcome",
		}, []string{"method", "outcome"}),
		retries: factory.NewCounter(prometheus.CounterOpts{
			Name: "vantage_client_retries_total",
			Help: "Transient-failure retry attempts",
		}),
		refreshes: factory.NewCounter(prometheus.CounterOpts{
			Name: "vantage_client_token_refreshes_total",
			Help: "Successful token refresh exchanges",
		}),
		refreshFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "vantage_client_token_refresh_failures_total",
			Help: "Terminal refresh failures that ended the session",
		}),
		authFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "vantage_client_auth_failures_total",
			Help: "401 responses on authenticatable requests",
		}),
	}
}

func (m *Metrics) observeRequest(method, outcome string) {
	m.requests.WithLabelValues(method, outcome).Inc()
}
