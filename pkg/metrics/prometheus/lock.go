package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/dittodav/pkg/lock"
	"github.com/marmos91/dittodav/pkg/metrics"
)

// lockMetrics is the Prometheus implementation of lock.Metrics.
type lockMetrics struct {
	acquireTotal *prometheus.CounterVec
	releaseTotal *prometheus.CounterVec
	waitDuration *prometheus.HistogramVec
	activeLocks  prometheus.Gauge
}

// NewLockMetrics creates a new Prometheus-backed lock.Metrics instance.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewLockMetrics() lock.Metrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &lockMetrics{
		acquireTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittodav_lock_acquire_total",
				Help: "Total number of lock attempts by kind and result",
			},
			[]string{"kind", "result"},
		),
		releaseTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittodav_lock_release_total",
				Help: "Total number of lock releases by reason",
			},
			[]string{"reason"},
		),
		waitDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "dittodav_lock_wait_milliseconds",
				Help: "Time implicit lock requests spent queued in milliseconds",
				Buckets: []float64{
					0.1, // uncontended
					1,
					10,
					100,
					1000,
					10000,
				},
			},
			[]string{"result"},
		),
		activeLocks: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "dittodav_lock_active",
				Help: "Number of locks currently held",
			},
		),
	}
}

func (m *lockMetrics) RecordAcquire(kind string, granted bool) {
	if m == nil {
		return
	}
	m.acquireTotal.WithLabelValues(kind, result(granted)).Inc()
}

func (m *lockMetrics) RecordRelease(reason string) {
	if m == nil {
		return
	}
	m.releaseTotal.WithLabelValues(reason).Inc()
}

func (m *lockMetrics) ObserveWait(d time.Duration, granted bool) {
	if m == nil {
		return
	}
	m.waitDuration.WithLabelValues(result(granted)).Observe(float64(d) / float64(time.Millisecond))
}

func (m *lockMetrics) SetActive(n int) {
	if m == nil {
		return
	}
	m.activeLocks.Set(float64(n))
}

func result(granted bool) string {
	if granted {
		return "granted"
	}
	return "denied"
}
