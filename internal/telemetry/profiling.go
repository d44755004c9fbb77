package telemetry

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"

	"github.com/grafana/pyroscope-go"

	"github.com/marmos91/dittodav/internal/logger"
)

// ProfilingConfig contains configuration for Pyroscope continuous profiling.
type ProfilingConfig struct {
	Enabled bool

	// ServiceName is the application name shown in Pyroscope
	ServiceName    string
	ServiceVersion string

	// Endpoint is the Pyroscope server URL (e.g., "http://localhost:4040")
	Endpoint string

	// ProfileTypes names the profiles to collect; see profileTypes.
	ProfileTypes []string
}

// LabelMethod tags profile samples taken while serving a WebDAV method.
const LabelMethod = "dav_method"

// profileTypes maps config names to Pyroscope profile types. Mutex and block
// profiles show contention on the lock table and copier buffer pool.
var profileTypes = map[string]pyroscope.ProfileType{
	"cpu":            pyroscope.ProfileCPU,
	"alloc_objects":  pyroscope.ProfileAllocObjects,
	"alloc_space":    pyroscope.ProfileAllocSpace,
	"inuse_objects":  pyroscope.ProfileInuseObjects,
	"inuse_space":    pyroscope.ProfileInuseSpace,
	"goroutines":     pyroscope.ProfileGoroutines,
	"mutex_count":    pyroscope.ProfileMutexCount,
	"mutex_duration": pyroscope.ProfileMutexDuration,
	"block_count":    pyroscope.ProfileBlockCount,
	"block_duration": pyroscope.ProfileBlockDuration,
}

var profilingEnabled atomic.Bool

// InitProfiling starts Pyroscope continuous profiling and returns the
// function that stops it.
func InitProfiling(cfg ProfilingConfig) (shutdown func() error, err error) {
	noop := func() error { return nil }
	if !cfg.Enabled {
		profilingEnabled.Store(false)
		return noop, nil
	}

	types := make([]pyroscope.ProfileType, 0, len(cfg.ProfileTypes))
	for _, name := range cfg.ProfileTypes {
		pt, err := parseProfileType(name)
		if err != nil {
			return nil, err
		}
		types = append(types, pt)
		switch pt {
		case pyroscope.ProfileMutexCount, pyroscope.ProfileMutexDuration:
			runtime.SetMutexProfileFraction(5)
		case pyroscope.ProfileBlockCount, pyroscope.ProfileBlockDuration:
			runtime.SetBlockProfileRate(5)
		}
	}

	profiler, err := pyroscope.Start(pyroscope.Config{
		ApplicationName: cfg.ServiceName,
		ServerAddress:   cfg.Endpoint,
		Tags:            map[string]string{"version": cfg.ServiceVersion},
		ProfileTypes:    types,
		Logger:          pyroscopeLogger{},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start Pyroscope profiler: %w", err)
	}
	profilingEnabled.Store(true)

	return func() error {
		profilingEnabled.Store(false)
		return profiler.Stop()
	}, nil
}

// IsProfilingEnabled returns whether profiling is enabled
func IsProfilingEnabled() bool {
	return profilingEnabled.Load()
}

// ProfileRequest runs fn with its CPU samples labelled by WebDAV method, so a
// flame graph can be split into COPY, MOVE, PUT and the rest. Without
// profiling fn runs directly.
func ProfileRequest(ctx context.Context, method string, fn func(context.Context)) {
	if !profilingEnabled.Load() {
		fn(ctx)
		return
	}
	pyroscope.TagWrapper(ctx, pyroscope.Labels(LabelMethod, method), fn)
}

func parseProfileType(name string) (pyroscope.ProfileType, error) {
	pt, ok := profileTypes[name]
	if !ok {
		return "", fmt.Errorf("invalid profile type %q", name)
	}
	return pt, nil
}

// pyroscopeLogger routes profiler diagnostics into the structured log.
type pyroscopeLogger struct{}

func (pyroscopeLogger) Infof(format string, args ...any) {
	logger.Debug(fmt.Sprintf(format, args...), "component", "pyroscope")
}

func (pyroscopeLogger) Debugf(format string, args ...any) {
	logger.Debug(fmt.Sprintf(format, args...), "component", "pyroscope")
}

func (pyroscopeLogger) Errorf(format string, args ...any) {
	logger.Warn(fmt.Sprintf(format, args...), "component", "pyroscope")
}
