package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/aussiebroadwan/tokenbridge/internal/bridge/domain"
)

// Metrics holds all Prometheus metrics for the bridge.
type Metrics struct {
	Exchanges         *prometheus.CounterVec
	ExchangeDuration  prometheus.Histogram
	FlowStepFailures  *prometheus.CounterVec
	CredentialRefresh *prometheus.CounterVec
	ResolverFailures  prometheus.Counter
}

// New creates and registers all metrics on reg. A nil reg uses the default
// registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		Exchanges: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tokenbridge_exchanges_total",
			Help: "Token exchange attempts by outcome",
		}, []string{"outcome"}),
		ExchangeDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "tokenbridge_exchange_duration_seconds",
			Help:    "Wall time of token exchanges, including the provider flow",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		FlowStepFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tokenbridge_flow_step_failures_total",
			Help: "Provider flow aborts by the step that failed",
		}, []string{"step"}),
		CredentialRefresh: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tokenbridge_credential_refreshes_total",
			Help: "Client credentials refreshes by mode and result",
		}, []string{"mode", "result"}),
		ResolverFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "tokenbridge_resolver_failures_total",
			Help: "Subject tokens the resolver could not map to claims",
		}),
	}
}

// ObserveExchange records one finished exchange.
func (m *Metrics) ObserveExchange(outcome domain.ExchangeOutcome, took time.Duration) {
	m.Exchanges.WithLabelValues(string(outcome)).Inc()
	m.ExchangeDuration.Observe(took.Seconds())
}

// ObserveStepFailure counts a provider flow abort at step.
func (m *Metrics) ObserveStepFailure(step string) {
	m.FlowStepFailures.WithLabelValues(step).Inc()
}

// ObserveResolverFailure counts a rejected subject token.
func (m *Metrics) ObserveResolverFailure() {
	m.ResolverFailures.Inc()
}

// ObserveRefresh implements credential.Observer.
func (m *Metrics) ObserveRefresh(background bool, err error) {
	mode := "sync"
	if background {
		mode = "background"
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.CredentialRefresh.WithLabelValues(mode, result).Inc()
}
