package metrics

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"keyrelay-hq/keyrelay/pkg/relay"
	"keyrelay-hq/keyrelay/pkg/usage"
)

// overflowLabel replaces label values once the cardinality limit is reached.
const overflowLabel = "other"

// Config controls metric collection.
type Config struct {
	// Enabled turns collection on. A disabled Collector accepts every call and
	// records nothing.
	Enabled bool

	// Namespace prefixes every metric name.
	// Default: "keyrelay"
	Namespace string

	// Path is where the management API serves the exposition.
	// Default: "/metrics"
	Path string

	// MaxLabelSets caps the distinct account/model label combinations.
	// Default: 1000
	MaxLabelSets int

	// DurationBuckets are the relay latency histogram buckets in seconds.
	DurationBuckets []float64
}

// DefaultConfig returns the default metrics configuration.
func DefaultConfig() *Config {
	return &Config{
		Enabled:      true,
		Namespace:    "keyrelay",
		Path:         "/metrics",
		MaxLabelSets: 1000,
		// LLM calls run from sub-second to several minutes when streaming.
		DurationBuckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	}
}

// Collector owns the registry and every metric family exported by keyrelay.
// It implements relay.Hook so the relay engine reports each exchange directly.
type Collector struct {
	config   *Config
	registry *prometheus.Registry

	relayMetrics   *RelayMetrics
	accountMetrics *AccountMetrics
	usageMetrics   *UsageMetrics

	cardinalityLimiter *CardinalityLimiter
}

var _ relay.Hook = (*Collector)(nil)

// NewCollector creates a Collector and registers its metrics with registry.
// A nil registry gets a fresh one; a nil config uses DefaultConfig.
func NewCollector(cfg *Config, registry *prometheus.Registry) *Collector {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	defaults := DefaultConfig()
	if cfg.Namespace == "" {
		cfg.Namespace = defaults.Namespace
	}
	if cfg.Path == "" {
		cfg.Path = defaults.Path
	}
	if cfg.MaxLabelSets <= 0 {
		cfg.MaxLabelSets = defaults.MaxLabelSets
	}
	if len(cfg.DurationBuckets) == 0 {
		cfg.DurationBuckets = defaults.DurationBuckets
	}

	return &Collector{
		config:             cfg,
		registry:           registry,
		relayMetrics:       NewRelayMetrics(cfg, registry),
		accountMetrics:     NewAccountMetrics(cfg, registry),
		usageMetrics:       NewUsageMetrics(cfg, registry),
		cardinalityLimiter: NewCardinalityLimiter(cfg.MaxLabelSets),
	}
}

// AfterRelay implements relay.Hook.
func (c *Collector) AfterRelay(_ context.Context, o *relay.Outcome) {
	if !c.config.Enabled || o == nil {
		return
	}

	status := ""
	if o.StatusCode > 0 {
		status = strconv.Itoa(o.StatusCode)
	}
	c.relayMetrics.RecordRequest(string(o.Kind), o.Method, status, o.Duration, o.BytesIn, o.BytesOut)

	if o.AccountID != "" {
		c.accountMetrics.RecordRequest(c.limit("account", o.AccountID))
	}

	var uerr *relay.UpstreamError
	if o.Kind == relay.KindUpstreamFailure && errors.As(o.Err, &uerr) {
		c.relayMetrics.RecordUpstreamError(uerr.Op)
	}
}

// ObserveUsage records token and cost counters for a stored usage record.
// Its signature matches recorder.Config.OnRecord.
func (c *Collector) ObserveUsage(rec *usage.Record) {
	if !c.config.Enabled || rec == nil {
		return
	}
	account := c.limit("account", rec.AccountID)
	model := c.limit("model", rec.Model)
	c.usageMetrics.RecordUsage(account, model, rec)
}

// RecordAccountSwitch counts an account activation and moves the active
// account gauge.
func (c *Collector) RecordAccountSwitch(accountID string) {
	if !c.config.Enabled {
		return
	}
	c.accountMetrics.RecordSwitch(c.limit("account", accountID))
}

// SetAccountCount reports how many accounts are configured.
func (c *Collector) SetAccountCount(n int) {
	if !c.config.Enabled {
		return
	}
	c.accountMetrics.SetCount(n)
}

// RegisterDropped exposes the usage recorder's drop count as a counter.
func (c *Collector) RegisterDropped(fn func() int64) {
	c.usageMetrics.RegisterDropped(c.config, c.registry, fn)
}

// RegisterProxyUp exposes whether the proxy listener is running.
func (c *Collector) RegisterProxyUp(fn func() bool) {
	c.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: c.config.Namespace,
			Subsystem: "proxy",
			Name:      "up",
			Help:      "1 when the proxy listener is running",
		},
		func() float64 {
			if fn() {
				return 1
			}
			return 0
		},
	))
}

// InFlightMiddleware tracks requests currently being served by next.
func (c *Collector) InFlightMiddleware(next http.Handler) http.Handler {
	if !c.config.Enabled {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.relayMetrics.inFlight.Inc()
		defer c.relayMetrics.inFlight.Dec()
		next.ServeHTTP(w, r)
	})
}

// Config returns the effective configuration.
func (c *Collector) Config() *Config {
	return c.config
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) limit(kind, value string) string {
	if value == "" {
		return value
	}
	if !c.cardinalityLimiter.Allow(kind + ":" + value) {
		return overflowLabel
	}
	return value
}

// CardinalityLimiter prevents metric cardinality explosion by limiting
// the number of unique label values.
type CardinalityLimiter struct {
	maxCardinality int
	current        map[string]struct{}
	mu             sync.RWMutex
}

// NewCardinalityLimiter creates a new cardinality limiter with the specified
// maximum cardinality.
func NewCardinalityLimiter(maxCardinality int) *CardinalityLimiter {
	return &CardinalityLimiter{
		maxCardinality: maxCardinality,
		current:        make(map[string]struct{}),
	}
}

// Allow reports whether labelSet may be used. Known label sets are always
// allowed; new ones are allowed until the limit is reached.
func (cl *CardinalityLimiter) Allow(labelSet string) bool {
	cl.mu.RLock()
	if _, exists := cl.current[labelSet]; exists {
		cl.mu.RUnlock()
		return true
	}
	cl.mu.RUnlock()

	cl.mu.Lock()
	defer cl.mu.Unlock()

	if _, exists := cl.current[labelSet]; exists {
		return true
	}
	if len(cl.current) >= cl.maxCardinality {
		return false
	}
	cl.current[labelSet] = struct{}{}
	return true
}

// Count returns the current cardinality.
func (cl *CardinalityLimiter) Count() int {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return len(cl.current)
}
