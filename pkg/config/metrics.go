package config

import (
	"github.com/marmos91/dittodav/pkg/copier"
	"github.com/marmos91/dittodav/pkg/engine"
	"github.com/marmos91/dittodav/pkg/lock"
	"github.com/marmos91/dittodav/pkg/metrics"
	promMetrics "github.com/marmos91/dittodav/pkg/metrics/prometheus"
	stores3 "github.com/marmos91/dittodav/pkg/store/s3"
)

// MetricsResult contains all metrics-related components created from
// configuration. Every field is nil when metrics are disabled, which the
// components treat as no-op.
type MetricsResult struct {
	// Server is the HTTP server exposing Prometheus metrics
	Server *metrics.Server

	Engine engine.Metrics
	Copier copier.Metrics
	Lock   lock.Metrics
	S3     stores3.Metrics
}

// InitializeMetrics creates and initializes all metrics components based
// on configuration.
//
// If metrics are enabled in the configuration:
//   - Initializes the global Prometheus registry
//   - Creates the metrics HTTP server
//   - Creates Prometheus-backed metrics instances for all components
//
// Prometheus collectors can only be registered once, so this must be
// called at most once per process with metrics enabled.
func InitializeMetrics(cfg *Config) *MetricsResult {
	if !cfg.Metrics.Enabled {
		return &MetricsResult{}
	}

	metrics.InitRegistry()

	return &MetricsResult{
		Server: metrics.NewServer(cfg.Metrics),
		Engine: promMetrics.NewEngineMetrics(),
		Copier: promMetrics.NewCopierMetrics(),
		Lock:   promMetrics.NewLockMetrics(),
		S3:     promMetrics.NewS3Metrics(),
	}
}
