// Package metrics provides Prometheus metrics collection for dittodav
// components.
//
// All metrics are optional - if not initialized, components receive nil
// metrics, which they treat as no-op. This allows dittodav to run with or
// without metrics collection enabled.
//
// Usage:
//
//	// Initialize global registry (typically in the start command)
//	metrics.InitRegistry()
//
//	// Create metrics instances for components
//	engineMetrics := prometheus.NewEngineMetrics()
//	lockMetrics := prometheus.NewLockMetrics()
//
//	// Or use nil for no-op behavior
//	e := engine.New(reg, cfg) // No metrics
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// registry is the global Prometheus registry for all dittodav metrics.
	// Protected by registryOnce for write-once, read-many pattern.
	registry     *prometheus.Registry
	registryOnce sync.Once
)

// InitRegistry initializes the global Prometheus registry with the Go
// runtime and process collectors.
//
// It's safe to call multiple times - subsequent calls are ignored. If not
// called, GetRegistry() returns nil and all metrics constructors return nil.
func InitRegistry() {
	registryOnce.Do(func() {
		r := prometheus.NewRegistry()
		r.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		registry = r
	})
}

// GetRegistry returns the global Prometheus registry, or nil if
// InitRegistry() has not been called.
func GetRegistry() *prometheus.Registry {
	return registry
}

// IsEnabled returns true if metrics collection is enabled.
func IsEnabled() bool {
	return GetRegistry() != nil
}
