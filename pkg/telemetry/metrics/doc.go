// Package metrics provides Prometheus metrics collection for keyrelay.
//
// # Overview
//
// A Collector owns a registry and three metric groups:
//
//   - Relay metrics: request count, duration, body bytes, upstream errors
//   - Account metrics: configured accounts, active account, switches
//   - Usage metrics: tokens and estimated cost per account and model
//
// # Usage
//
//	collector := metrics.NewCollector(cfg, nil)
//
//	// The collector is a relay hook
//	engine := relay.New(resolver, relayCfg, relay.WithHooks(collector))
//
//	// Usage counters follow the recorder
//	recCfg.OnRecord = collector.ObserveUsage
//
//	mux.Handle(cfg.Path, collector.Handler())
//
// # Cardinality Management
//
// Account IDs and model names are user-controlled label values. Once
// Config.MaxLabelSets distinct values have been seen, new ones are recorded
// under "other".
package metrics
