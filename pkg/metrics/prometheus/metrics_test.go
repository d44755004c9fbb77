package prometheus

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittodav/pkg/engine"
	"github.com/marmos91/dittodav/pkg/lock"
	"github.com/marmos91/dittodav/pkg/metrics"
)

// Constructors register their collectors on the global registry, so each
// one may only be called once per test binary.
func TestMain(m *testing.M) {
	metrics.InitRegistry()
	os.Exit(m.Run())
}

// ============================================================================
// Engine
// ============================================================================

func TestEngineMetrics(t *testing.T) {
	m := NewEngineMetrics().(*engineMetrics)

	m.ObserveOperation("COPY", 201, 15*time.Millisecond)
	m.ObserveOperation("COPY", 207, 40*time.Millisecond)
	m.ObserveOperation("COPY", 201, time.Millisecond)
	m.RecordNodes("COPY", 4, 1)
	m.RecordNodes("DELETE", 0, 0)
	m.RecordStrategy(engine.StrategyFast)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues("COPY", "201")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requestsTotal.WithLabelValues("COPY", "207")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.nodesTotal.WithLabelValues("COPY", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.nodesTotal.WithLabelValues("COPY", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.strategiesTotal.WithLabelValues(engine.StrategyFast)))

	// Zero counts must not create series.
	assert.Equal(t, 2, testutil.CollectAndCount(m.nodesTotal))
}

// ============================================================================
// Copier
// ============================================================================

func TestCopierMetrics(t *testing.T) {
	m := NewCopierMetrics().(*copierMetrics)

	m.ObserveCopy(1<<20, 250*time.Millisecond, 64*1024, nil)
	m.ObserveCopy(512, time.Millisecond, 4096, errors.New("broken pipe"))
	m.RecordGrowth(8192)
	m.RecordGrowth(16384)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.copiesTotal.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.copiesTotal.WithLabelValues("error")))
	assert.Equal(t, float64(1<<20+512), testutil.ToFloat64(m.bytesTotal))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.growthsTotal))
}

// ============================================================================
// Lock
// ============================================================================

func TestLockMetrics(t *testing.T) {
	m := NewLockMetrics().(*lockMetrics)

	m.RecordAcquire(lock.KindImplicit, true)
	m.RecordAcquire(lock.KindExplicit, false)
	m.RecordRelease(lock.ReasonExpired)
	m.ObserveWait(2*time.Millisecond, true)
	m.SetActive(3)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.acquireTotal.WithLabelValues(lock.KindImplicit, "granted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.acquireTotal.WithLabelValues(lock.KindExplicit, "denied")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.releaseTotal.WithLabelValues(lock.ReasonExpired)))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.activeLocks))
}

// ============================================================================
// S3
// ============================================================================

func TestS3Metrics(t *testing.T) {
	m := NewS3Metrics().(*s3Metrics)

	m.ObserveOperation("PutObject", 20*time.Millisecond, nil)
	m.ObserveOperation("HeadObject", time.Millisecond, errors.New("timeout"))
	m.RecordBytes("PutObject", 1024)
	m.RecordBytes("PutObject", 0)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.operationsTotal.WithLabelValues("PutObject", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operationsTotal.WithLabelValues("HeadObject", "error")))
	assert.Equal(t, 1024.0, testutil.ToFloat64(m.bytesTransferred.WithLabelValues("PutObject")))
}

// ============================================================================
// Badger
// ============================================================================

func TestRegisterBadgerMetrics(t *testing.T) {
	assert.False(t, RegisterBadgerMetrics(nil))

	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.True(t, RegisterBadgerMetrics(db))

	families, err := metrics.GetRegistry().Gather()
	require.NoError(t, err)

	found := make(map[string]int)
	for _, mf := range families {
		found[mf.GetName()] = len(mf.GetMetric())
	}
	assert.Equal(t, 2, found["dittodav_badger_cache_hit_ratio"])
	assert.Equal(t, 2, found["dittodav_badger_cache_hits_total"])
	assert.Equal(t, 2, found["dittodav_badger_cache_misses_total"])
}

// ============================================================================
// Nil receivers
// ============================================================================

func TestNilMetricsAreNoOps(t *testing.T) {
	var e *engineMetrics
	var c *copierMetrics
	var l *lockMetrics
	var s *s3Metrics

	assert.NotPanics(t, func() {
		e.ObserveOperation("PUT", 201, time.Millisecond)
		e.RecordNodes("PUT", 1, 0)
		e.RecordStrategy(engine.StrategyGeneric)
		c.ObserveCopy(1, time.Millisecond, 4096, nil)
		c.RecordGrowth(8192)
		l.RecordAcquire(lock.KindImplicit, true)
		l.RecordRelease(lock.ReasonUnlock)
		l.ObserveWait(time.Millisecond, true)
		l.SetActive(0)
		s.ObserveOperation("GetObject", time.Millisecond, nil)
		s.RecordBytes("PutObject", 1)
	})
}
