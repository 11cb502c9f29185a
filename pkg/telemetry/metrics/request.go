package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// RelayMetrics tracks relayed exchanges.
//
// Metrics:
//   - keyrelay_relay_requests_total: exchanges by outcome, method and status
//   - keyrelay_relay_request_duration_seconds: exchange duration by outcome
//   - keyrelay_relay_bytes_total: body bytes by direction
//   - keyrelay_relay_upstream_errors_total: transport failures by operation
//   - keyrelay_relay_in_flight_requests: requests currently being served
type RelayMetrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	bytesTotal      *prometheus.CounterVec
	upstreamErrors  *prometheus.CounterVec
	inFlight        prometheus.Gauge
}

// NewRelayMetrics creates and registers relay metrics with the provided registry.
func NewRelayMetrics(cfg *Config, registry *prometheus.Registry) *RelayMetrics {
	rm := &RelayMetrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "relay",
				Name:      "requests_total",
				Help:      "Total number of relayed requests",
			},
			[]string{"outcome", "method", "status"},
		),

		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: "relay",
				Name:      "request_duration_seconds",
				Help:      "Duration of relayed requests in seconds, including streaming",
				Buckets:   cfg.DurationBuckets,
			},
			[]string{"outcome"},
		),

		bytesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "relay",
				Name:      "bytes_total",
				Help:      "Body bytes relayed, by direction",
			},
			[]string{"direction"},
		),

		upstreamErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: "relay",
				Name:      "upstream_errors_total",
				Help:      "Upstream transport failures by operation",
			},
			[]string{"op"},
		),

		inFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: "relay",
				Name:      "in_flight_requests",
				Help:      "Requests currently being relayed",
			},
		),
	}

	registry.MustRegister(
		rm.requestsTotal,
		rm.requestDuration,
		rm.bytesTotal,
		rm.upstreamErrors,
		rm.inFlight,
	)

	return rm
}

// RecordRequest records one completed exchange.
func (rm *RelayMetrics) RecordRequest(outcome, method, status string, duration time.Duration, bytesIn, bytesOut int64) {
	rm.requestsTotal.WithLabelValues(outcome, method, status).Inc()
	rm.requestDuration.WithLabelValues(outcome).Observe(duration.Seconds())

	if bytesIn > 0 {
		rm.bytesTotal.WithLabelValues("in").Add(float64(bytesIn))
	}
	if bytesOut > 0 {
		rm.bytesTotal.WithLabelValues("out").Add(float64(bytesOut))
	}
}

// RecordUpstreamError counts a transport failure. op is one of "build",
// "roundtrip" or "read_body".
func (rm *RelayMetrics) RecordUpstreamError(op string) {
	rm.upstreamErrors.WithLabelValues(op).Inc()
}
