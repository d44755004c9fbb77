package engine

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/marmos91/dittodav/internal/logger"
	"github.com/marmos91/dittodav/internal/telemetry"
	"github.com/marmos91/dittodav/pkg/copier"
	daverrors "github.com/marmos91/dittodav/pkg/errors"
	"github.com/marmos91/dittodav/pkg/lock"
	"github.com/marmos91/dittodav/pkg/props"
	"github.com/marmos91/dittodav/pkg/registry"
	"github.com/marmos91/dittodav/pkg/store"
)

// Strategy names.
const (
	StrategyFast    = "fast"
	StrategyGeneric = "generic"
	StrategyRemote  = "remote"
)

// Mode selects how hard the engine tries to avoid streaming bytes.
type Mode string

const (
	// ModeFastest uses native store copy and move when source and
	// destination share a physical store.
	ModeFastest Mode = "fastest"

	// ModeGeneric always streams bytes through the copier.
	ModeGeneric Mode = "generic"
)

// Config holds engine behaviour switches.
type Config struct {
	// Mode is the processing mode for COPY and MOVE.
	Mode Mode `mapstructure:"mode" yaml:"mode" validate:"omitempty,oneof=fastest generic"`

	// OverwriteDefault applies when a request has no Overwrite header.
	OverwriteDefault bool `mapstructure:"overwrite_default" yaml:"overwrite_default"`
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		Mode:             ModeFastest,
		OverwriteDefault: true,
	}
}

// Metrics records engine activity. A nil Metrics disables recording.
type Metrics interface {
	// ObserveOperation records a finished request.
	ObserveOperation(method string, status int, duration time.Duration)

	// RecordNodes records how many nodes a request visited.
	RecordNodes(method string, succeeded, failed int)

	// RecordStrategy records the strategy chosen for a COPY or MOVE.
	RecordStrategy(strategy string)
}

// Option configures an Engine.
type Option func(*Engine)

// WithLockManager coordinates writers through m. Without one every request
// runs under lock.TrivialGrant and LOCK/UNLOCK answer 501.
func WithLockManager(m *lock.Manager) Option {
	return func(e *Engine) { e.locks = m }
}

// WithCopier streams document bytes through c.
func WithCopier(c *copier.Copier) Option {
	return func(e *Engine) { e.copier = c }
}

// WithProperties makes dead properties and ETags follow mutations.
func WithProperties(p props.Store) Option {
	return func(e *Engine) { e.props = p }
}

// WithRemoteFactory enables remote destinations.
func WithRemoteFactory(f RemoteActionsFactory) Option {
	return func(e *Engine) { e.remote = f }
}

// WithMetrics records engine metrics to m.
func WithMetrics(m Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// Engine executes mutating WebDAV operations. It is safe for concurrent
// use; each request keeps its state on its own stack.
type Engine struct {
	config   Config
	registry *registry.Registry
	locks    *lock.Manager
	copier   *copier.Copier
	props    props.Store
	remote   RemoteActionsFactory
	metrics  Metrics
}

// New creates an engine serving the shares of reg.
func New(reg *registry.Registry, cfg Config, opts ...Option) *Engine {
	if cfg.Mode == "" {
		cfg.Mode = ModeFastest
	}
	e := &Engine{
		config:   cfg,
		registry: reg,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.copier == nil {
		e.copier = copier.New(copier.DefaultConfig(), nil)
	}
	return e
}

// Config returns the engine configuration.
func (e *Engine) Config() Config {
	return e.config
}

// LockManager returns the lock manager, nil when locking is disabled.
func (e *Engine) LockManager() *lock.Manager {
	return e.locks
}

// ============================================================================
// State machine helpers
// ============================================================================

type state string

const (
	stateInit               state = "Init"
	stateResolveSource      state = "ResolveSource"
	stateResolveDestination state = "ResolveDestination"
	stateAcquireLock        state = "AcquireLock"
	statePlan               state = "Plan"
	stateExecute            state = "Execute"
	stateFinalize           state = "Finalize"
)

func enter(ctx context.Context, s state, p string) {
	logger.DebugCtx(ctx, "engine state", logger.KeyState, string(s), logger.KeyPath, p)
}

// begin opens the span of an operation and returns the function that
// closes it. finish must be deferred with pointers to the named results.
func (e *Engine) begin(ctx context.Context, spanName, method, p string, attrs ...attribute.KeyValue) (context.Context, func(*Result, *error)) {
	start := time.Now()
	ctx, span := telemetry.StartDAVSpan(ctx, spanName, method, p, attrs...)
	enter(ctx, stateInit, p)

	return ctx, func(res *Result, errp *error) {
		enter(ctx, stateFinalize, p)
		e.finish(ctx, span, method, p, start, res, *errp)
	}
}

func (e *Engine) finish(ctx context.Context, span trace.Span, method, p string, start time.Time, res *Result, err error) {
	defer span.End()

	status := res.Status
	if err != nil {
		status = daverrors.StatusOf(err)
	}

	failedNodes := len(res.Failures)
	if !res.Root.Succeeded() && res.Nodes > 0 {
		failedNodes++
	}

	span.SetAttributes(telemetry.Status(status), telemetry.Nodes(res.Nodes), telemetry.Failed(failedNodes))
	if status >= http.StatusInternalServerError {
		span.SetStatus(codes.Error, http.StatusText(status))
	}
	if err != nil {
		span.RecordError(err)
	}

	if e.metrics != nil {
		e.metrics.ObserveOperation(method, status, time.Since(start))
		if res.Nodes > 0 {
			e.metrics.RecordNodes(method, res.Nodes-failedNodes, failedNodes)
		}
	}

	args := []any{
		logger.KeyMethod, method,
		logger.KeyPath, p,
		logger.KeyStatus, status,
		logger.KeyNodes, res.Nodes,
		logger.KeyDurationMs, logger.Duration(start),
	}
	switch {
	case status >= http.StatusInternalServerError:
		logger.ErrorCtx(ctx, "operation failed", append(args, logger.Err(err))...)
	case err != nil || status == http.StatusMultiStatus:
		logger.DebugCtx(ctx, "operation rejected", append(args, logger.Err(err), logger.KeyFailed, failedNodes)...)
	default:
		logger.InfoCtx(ctx, "operation completed", args...)
	}
}

// ============================================================================
// Shared helpers
// ============================================================================

// lookup maps a URL path to its share and store path.
func (e *Engine) lookup(urlPath string) (*registry.Share, string, error) {
	share, rel, err := e.registry.Lookup(urlPath)
	if err != nil {
		return nil, "", daverrors.NewNotFoundError(store.Clean(urlPath))
	}
	return share, share.StorePath(rel), nil
}

// acquire takes the implicit lock protecting one mutation of p.
func (e *Engine) acquire(ctx context.Context, owner string, ifTokens []string, p string, deep bool) (*lock.Grant, error) {
	enter(ctx, stateAcquireLock, p)
	if e.locks == nil {
		return lock.TrivialGrant(), nil
	}
	return e.locks.LockImplicit(ctx, ifTokens, lock.Request{
		Path:      p,
		Deep:      deep,
		Scope:     lock.ScopeExclusive,
		Owner:     owner,
		Principal: owner,
	})
}

// checkIfTokens fails with PreconditionFailed when the If header named lock
// tokens and none of them is an active lock on p, on p's parent collection
// or on one of the other paths the request modifies.
func (e *Engine) checkIfTokens(p string, tokens []string, others ...string) error {
	if len(tokens) == 0 || e.locks == nil {
		return nil
	}
	p = store.Clean(p)
	paths := append([]string{p, store.Dir(p)}, others...)
	for _, t := range tokens {
		l, ok := e.locks.Get(t)
		if !ok {
			continue
		}
		for _, q := range paths {
			if l.Covers(q) {
				return nil
			}
		}
	}
	return daverrors.NewPreconditionFailedError(p, "no lock token in the If header is active for this resource")
}

// propertyKey returns the property key of a store path.
func propertyKey(s store.Store, p string) props.Key {
	return props.Key{StoreID: s.ID(), Path: store.Clean(p)}
}

// deleteProperties drops the property record of a removed node.
func (e *Engine) deleteProperties(ctx context.Context, key props.Key) {
	if e.props == nil {
		return
	}
	if err := e.props.Delete(ctx, key); err != nil {
		logger.WarnCtx(ctx, "failed to delete properties", logger.KeyPath, key.Path, logger.Err(err))
	}
}

func newOwner(owner string) string {
	if owner != "" {
		return owner
	}
	return "request:" + uuid.NewString()
}

func childHref(parent, name string) string {
	return strings.TrimSuffix(parent, "/") + "/" + name
}
