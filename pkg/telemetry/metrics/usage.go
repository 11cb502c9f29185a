package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"keyrelay-hq/keyrelay/pkg/usage"
)

// UsageMetrics tracks token consumption and estimated spend.
//
// Metrics:
//   - keyrelay_usage_tokens_total: tokens by account, model and type
//   - keyrelay_usage_cost_usd_total: estimated cost in USD by account and model
//   - keyrelay_usage_cost_per_request_usd: cost distribution per request
//   - keyrelay_usage_records_dropped_total: records lost to a full buffer
type UsageMetrics struct {
	tokensTotal    *prometheus.CounterVec
	costTotal      *prometheus.CounterVec
	costPerRequest *prometheus.HistogramVec
}

// NewUsageMetrics creates and registers usage metrics with the provided registry.
func NewUsageMetrics(cfg *Config, registry *prometheus.Registry) *UsageMetrics {
	um := &UsageMetrics{
		tokensTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "usage",
				Name:      "tokens_total",
				Help:      "Tokens consumed by account, model and type",
			},
			[]string{"account_id", "model", "type"},
		),

		costTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "usage",
				Name:      "cost_usd_total",
				Help:      "Estimated cost in USD by account and model",
			},
			[]string{"account_id", "model"},
		),

		costPerRequest: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: "usage",
				Name:      "cost_per_request_usd",
				Help:      "Estimated cost distribution per request in USD",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 10.0},
			},
			[]string{"model"},
		),
	}

	registry.MustRegister(
		um.tokensTotal,
		um.costTotal,
		um.costPerRequest,
	)

	return um
}

// RecordUsage adds one usage record. account and model are the
// cardinality-limited label values.
func (um *UsageMetrics) RecordUsage(account, model string, rec *usage.Record) {
	tokens := []struct {
		kind  string
		count int64
	}{
		{"input", rec.InputTokens},
		{"output", rec.OutputTokens},
		{"cache_creation", rec.CacheCreationTokens},
		{"cache_read", rec.CacheReadTokens},
	}
	for _, t := range tokens {
		if t.count > 0 {
			um.tokensTotal.WithLabelValues(account, model, t.kind).Add(float64(t.count))
		}
	}

	if rec.CostUSD > 0 {
		um.costTotal.WithLabelValues(account, model).Add(rec.CostUSD)
	}
	um.costPerRequest.WithLabelValues(model).Observe(rec.CostUSD)
}

// RegisterDropped registers a counter that reads the drop total from fn.
func (um *UsageMetrics) RegisterDropped(cfg *Config, registry *prometheus.Registry, fn func() int64) {
	registry.MustRegister(prometheus.NewCounterFunc(
		prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: "usage",
			Name:      "records_dropped_total",
			Help:      "Usage records dropped because the recorder buffer was full or closed",
		},
		func() float64 { return float64(fn()) },
	))
}
