package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/dittodav/pkg/copier"
	"github.com/marmos91/dittodav/pkg/metrics"
)

// copierMetrics is the Prometheus implementation of copier.Metrics.
type copierMetrics struct {
	copiesTotal     *prometheus.CounterVec
	bytesTotal      prometheus.Counter
	copyDuration    prometheus.Histogram
	finalBufferSize prometheus.Histogram
	growthsTotal    prometheus.Counter
}

// NewCopierMetrics creates a new Prometheus-backed copier.Metrics instance.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewCopierMetrics() copier.Metrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &copierMetrics{
		copiesTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittodav_copier_copies_total",
				Help: "Total number of content copies by status",
			},
			[]string{"status"},
		),
		bytesTotal: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "dittodav_copier_bytes_total",
				Help: "Total bytes moved by the adaptive copier",
			},
		),
		copyDuration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "dittodav_copier_duration_milliseconds",
				Help:    "Duration of content copies in milliseconds",
				Buckets: prometheus.ExponentialBuckets(1, 4, 10), // 1ms .. ~4.4m
			},
		),
		finalBufferSize: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "dittodav_copier_buffer_bytes",
				Help:    "Buffer size reached at the end of each copy",
				Buckets: prometheus.ExponentialBuckets(4096, 4, 8), // 4KiB .. 64MiB
			},
		),
		growthsTotal: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "dittodav_copier_buffer_growths_total",
				Help: "Number of times the copy buffer was doubled",
			},
		),
	}
}

func (m *copierMetrics) ObserveCopy(written int64, duration time.Duration, finalBufferSize int, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.copiesTotal.WithLabelValues(status).Inc()
	if written > 0 {
		m.bytesTotal.Add(float64(written))
	}
	m.copyDuration.Observe(float64(duration.Milliseconds()))
	m.finalBufferSize.Observe(float64(finalBufferSize))
}

func (m *copierMetrics) RecordGrowth(newSize int) {
	if m == nil {
		return
	}
	m.growthsTotal.Inc()
}
