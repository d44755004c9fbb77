package prometheus

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/dittodav/pkg/engine"
	"github.com/marmos91/dittodav/pkg/metrics"
)

// engineMetrics is the Prometheus implementation of engine.Metrics.
type engineMetrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	nodesTotal      *prometheus.CounterVec
	strategiesTotal *prometheus.CounterVec
}

// NewEngineMetrics creates a new Prometheus-backed engine.Metrics instance.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewEngineMetrics() engine.Metrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &engineMetrics{
		requestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittodav_requests_total",
				Help: "Total number of mutation requests by method and status code",
			},
			[]string{"method", "status"},
		),
		requestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "dittodav_request_duration_milliseconds",
				Help: "Duration of mutation requests in milliseconds",
				Buckets: []float64{
					1,      // 1ms - single node metadata changes
					10,     // 10ms
					100,    // 100ms
					1000,   // 1s - small trees
					10000,  // 10s
					60000,  // 1m - large trees
					600000, // 10m - remote transfers
				},
			},
			[]string{"method"},
		),
		nodesTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittodav_nodes_total",
				Help: "Total number of resources visited by recursive requests",
			},
			[]string{"method", "result"},
		),
		strategiesTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittodav_transfer_strategy_total",
				Help: "Number of COPY and MOVE requests by target action strategy",
			},
			[]string{"strategy"},
		),
	}
}

func (m *engineMetrics) ObserveOperation(method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method).Observe(float64(duration.Milliseconds()))
}

func (m *engineMetrics) RecordNodes(method string, succeeded, failed int) {
	if m == nil {
		return
	}
	if succeeded > 0 {
		m.nodesTotal.WithLabelValues(method, "success").Add(float64(succeeded))
	}
	if failed > 0 {
		m.nodesTotal.WithLabelValues(method, "failure").Add(float64(failed))
	}
}

func (m *engineMetrics) RecordStrategy(strategy string) {
	if m == nil {
		return
	}
	m.strategiesTotal.WithLabelValues(strategy).Inc()
}
