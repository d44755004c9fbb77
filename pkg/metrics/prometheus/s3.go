package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/dittodav/pkg/metrics"
	"github.com/marmos91/dittodav/pkg/store/s3"
)

// s3Metrics is the Prometheus implementation of s3.Metrics.
type s3Metrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	bytesTransferred  *prometheus.CounterVec
}

// NewS3Metrics creates a new Prometheus-backed s3.Metrics instance.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewS3Metrics() s3.Metrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &s3Metrics{
		operationsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittodav_s3_operations_total",
				Help: "Total number of S3 operations by operation type and status",
			},
			[]string{"operation", "status"},
		),
		operationDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "dittodav_s3_operation_duration_milliseconds",
				Help: "Duration of S3 operations in milliseconds",
				Buckets: []float64{
					10,    // 10ms - metadata operations
					50,    // 50ms - small objects
					100,   // 100ms
					500,   // 500ms
					1000,  // 1s - medium objects
					5000,  // 5s - large objects
					30000, // 30s - server-side copies of large trees
				},
			},
			[]string{"operation"},
		),
		bytesTransferred: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittodav_s3_bytes_transferred_total",
				Help: "Total bytes uploaded via S3 operations",
			},
			[]string{"operation"},
		),
	}
}

func (m *s3Metrics) ObserveOperation(operation string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.operationsTotal.WithLabelValues(operation, status).Inc()
	m.operationDuration.WithLabelValues(operation).Observe(float64(duration.Milliseconds()))
}

func (m *s3Metrics) RecordBytes(operation string, bytes int64) {
	if m == nil || bytes <= 0 {
		return
	}
	m.bytesTransferred.WithLabelValues(operation).Add(float64(bytes))
}
