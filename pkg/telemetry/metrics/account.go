package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// AccountMetrics tracks the account registry.
//
// Metrics:
//   - keyrelay_accounts_configured: number of accounts
//   - keyrelay_accounts_active: 1 for the active account id, 0 for former ones
//   - keyrelay_accounts_switches_total: activations
//   - keyrelay_accounts_requests_total: relayed requests by account
type AccountMetrics struct {
	configured    prometheus.Gauge
	active        *prometheus.GaugeVec
	switchesTotal prometheus.Counter
	requestsTotal *prometheus.CounterVec

	mu         sync.Mutex
	lastActive string
}

// NewAccountMetrics creates and registers account metrics with the provided registry.
func NewAccountMetrics(cfg *Config, registry *prometheus.Registry) *AccountMetrics {
	am := &AccountMetrics{
		configured: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: "accounts",
				Name:      "configured",
				Help:      "Number of configured accounts",
			},
		),

		active: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: "accounts",
				Name:      "active",
				Help:      "Active account (1=active, 0=inactive)",
			},
			[]string{"account_id"},
		),

		switchesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "accounts",
				Name:      "switches_total",
				Help:      "Total number of account activations",
			},
		),

		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "accounts",
				Name:      "requests_total",
				Help:      "Relayed requests by account",
			},
			[]string{"account_id"},
		),
	}

	registry.MustRegister(
		am.configured,
		am.active,
		am.switchesTotal,
		am.requestsTotal,
	)

	return am
}

// RecordSwitch moves the active gauge to accountID.
func (am *AccountMetrics) RecordSwitch(accountID string) {
	am.mu.Lock()
	defer am.mu.Unlock()

	am.switchesTotal.Inc()
	if am.lastActive != "" && am.lastActive != accountID {
		am.active.WithLabelValues(am.lastActive).Set(0)
	}
	if accountID != "" {
		am.active.WithLabelValues(accountID).Set(1)
	}
	am.lastActive = accountID
}

// SetCount sets the configured account gauge.
func (am *AccountMetrics) SetCount(n int) {
	am.configured.Set(float64(n))
}

// RecordRequest counts a request relayed through accountID.
func (am *AccountMetrics) RecordRequest(accountID string) {
	am.requestsTotal.WithLabelValues(accountID).Inc()
}
