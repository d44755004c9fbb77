package lock

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/marmos91/dittodav/internal/logger"
	daverrors "github.com/marmos91/dittodav/pkg/errors"
	"github.com/marmos91/dittodav/pkg/store"
)

// Manager grants, refreshes and releases locks.
//
// Thread Safety:
// The lock table is a single map guarded by one mutex. Persister calls are
// made outside the mutex.
type Manager struct {
	mu      sync.Mutex
	config  Config
	locks   map[string]*Lock // token -> lock
	changed chan struct{}    // closed and replaced whenever a lock goes away

	persister Persister
	metrics   Metrics
	now       func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithPersister stores explicit locks in p.
func WithPersister(p Persister) Option {
	return func(m *Manager) { m.persister = p }
}

// WithMetrics records lock metrics to mt. A nil value disables metrics.
func WithMetrics(mt Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a lock manager.
func NewManager(config Config, opts ...Option) *Manager {
	m := &Manager{
		config:  config,
		locks:   make(map[string]*Lock),
		changed: make(chan struct{}),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ============================================================================
// Grants
// ============================================================================

// Grant is the right to mutate a path for the duration of one request.
// Release is idempotent and must always be deferred.
type Grant struct {
	lock    *Lock
	created bool
	release func()
	once    sync.Once
}

// TrivialGrant returns a grant that holds nothing. It is used when locking
// is disabled.
func TrivialGrant() *Grant {
	return &Grant{}
}

// Release gives the grant back. Safe to call more than once and on nil.
func (g *Grant) Release() {
	if g == nil {
		return
	}
	g.once.Do(func() {
		if g.release != nil {
			g.release()
		}
	})
}

// Lock returns a snapshot of the lock backing the grant, nil for trivial
// grants.
func (g *Grant) Lock() *Lock {
	if g == nil {
		return nil
	}
	return g.lock
}

// Token returns the backing lock token, or "" for trivial grants.
func (g *Grant) Token() string {
	if g == nil || g.lock == nil {
		return ""
	}
	return g.lock.Token
}

// Created reports whether the grant created a new implicit lock, as opposed
// to running under an explicit lock the client presented.
func (g *Grant) Created() bool {
	return g != nil && g.created
}

// LockImplicit acquires a write lock on req.Path for one request.
//
// Implicit locks never expire; they live exactly as long as the Grant.
//
// If one of ifTokens names an active lock covering the path and nothing else
// conflicts, the request runs under that lock and no new lock is created.
// Otherwise a new implicit lock is taken. Conflicting locks fail with Locked,
// or, when WaitTimeout is set, are waited on until they go away.
func (m *Manager) LockImplicit(ctx context.Context, ifTokens []string, req Request) (*Grant, error) {
	req.Path = store.Clean(req.Path)
	tokens := make(map[string]struct{}, len(ifTokens))
	for _, t := range ifTokens {
		tokens[t] = struct{}{}
	}

	start := m.now()
	deadline := start.Add(m.config.WaitTimeout)
	waited := false

	for {
		m.mu.Lock()
		now := m.now()
		expired := m.purgeLocked(now)
		conflicts := m.conflictsLocked(req, tokens)

		if len(conflicts) == 0 {
			if held := m.coveringLocked(req.Path, tokens); held != nil {
				snapshot := held.clone()
				m.mu.Unlock()
				m.forget(ctx, expired)
				m.recordAcquire(KindImplicit, true, waited, start)
				logger.DebugCtx(ctx, "running under explicit lock", logger.KeyPath, req.Path, logger.KeyLockToken, snapshot.Token)
				return &Grant{lock: snapshot}, nil
			}

			if m.config.MaxLocks > 0 && len(m.locks) >= m.config.MaxLocks {
				m.mu.Unlock()
				m.forget(ctx, expired)
				m.recordAcquire(KindImplicit, false, waited, start)
				return nil, daverrors.New(daverrors.ErrLocked, req.Path, "lock limit reached")
			}

			l := &Lock{
				Token:     NewToken(),
				Path:      req.Path,
				Root:      req.Path,
				Deep:      req.Deep,
				Owner:     req.Owner,
				Principal: req.Principal,
				Access:    AccessWrite,
				Scope:     req.Scope,
				CreatedAt: now,
				Implicit:  true,
			}
			m.locks[l.Token] = l
			m.setActiveLocked()
			m.mu.Unlock()

			m.forget(ctx, expired)
			m.recordAcquire(KindImplicit, true, waited, start)
			token := l.Token
			return &Grant{
				lock:    l.clone(),
				created: true,
				release: func() { m.remove(context.Background(), token, ReasonRequest) },
			}, nil
		}

		wake := m.changed
		nextExpiry := earliestExpiry(conflicts)
		m.mu.Unlock()
		m.forget(ctx, expired)

		if m.config.WaitTimeout <= 0 || !now.Before(deadline) {
			m.recordAcquire(KindImplicit, false, waited, start)
			logger.DebugCtx(ctx, "implicit lock denied",
				logger.KeyPath, req.Path, logger.KeyLockToken, conflicts[0].Token)
			return nil, daverrors.NewLockedError(req.Path, "")
		}

		waitFor := deadline.Sub(now)
		if !nextExpiry.IsZero() && nextExpiry.Sub(now) < waitFor {
			waitFor = nextExpiry.Sub(now)
		}
		waited = true
		if err := sleepUntilChange(ctx, wake, waitFor); err != nil {
			m.recordAcquire(KindImplicit, false, waited, start)
			return nil, err
		}
	}
}

func sleepUntilChange(ctx context.Context, wake <-chan struct{}, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-wake:
		return nil
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func earliestExpiry(locks []*Lock) time.Time {
	var earliest time.Time
	for _, l := range locks {
		if l.ExpiresAt.IsZero() {
			continue
		}
		if earliest.IsZero() || l.ExpiresAt.Before(earliest) {
			earliest = l.ExpiresAt
		}
	}
	return earliest
}

// ============================================================================
// Explicit locks
// ============================================================================

// Lock grants an explicit lock. Conflicts fail with Locked.
func (m *Manager) Lock(ctx context.Context, req Request) (*Lock, error) {
	req.Path = store.Clean(req.Path)

	m.mu.Lock()
	now := m.now()
	expired := m.purgeLocked(now)

	if conflicts := m.conflictsLocked(req, nil); len(conflicts) > 0 {
		m.mu.Unlock()
		m.forget(ctx, expired)
		m.recordAcquire(KindExplicit, false, false, now)
		return nil, daverrors.NewLockedError(req.Path, "")
	}
	if m.config.MaxLocks > 0 && len(m.locks) >= m.config.MaxLocks {
		m.mu.Unlock()
		m.forget(ctx, expired)
		m.recordAcquire(KindExplicit, false, false, now)
		return nil, daverrors.New(daverrors.ErrLocked, req.Path, "lock limit reached")
	}

	l := &Lock{
		Token:     NewToken(),
		Path:      req.Path,
		Root:      req.Path,
		Deep:      req.Deep,
		Owner:     req.Owner,
		Principal: req.Principal,
		Access:    AccessWrite,
		Scope:     req.Scope,
		Timeout:   m.config.leaseFor(req.Timeout),
		CreatedAt: now,
	}
	if l.Principal == "" {
		l.Principal = l.Token
	}
	if l.Timeout > 0 {
		l.ExpiresAt = now.Add(l.Timeout)
	}
	m.locks[l.Token] = l
	m.setActiveLocked()
	snapshot := l.clone()
	m.mu.Unlock()

	m.forget(ctx, expired)

	if m.persister != nil {
		if err := m.persister.PutLock(ctx, ToPersistedLock(snapshot)); err != nil {
			m.remove(ctx, snapshot.Token, ReasonUnlock)
			m.recordAcquire(KindExplicit, false, false, now)
			return nil, daverrors.Wrap(daverrors.ErrIOError, req.Path, err)
		}
	}

	m.recordAcquire(KindExplicit, true, false, now)
	logger.DebugCtx(ctx, "lock granted",
		logger.KeyPath, snapshot.Root,
		logger.KeyLockToken, snapshot.Token,
		logger.KeyLockScope, snapshot.Scope.String(),
		logger.KeyTimeout, snapshot.Timeout.String())
	return snapshot, nil
}

// Refresh renews the lease of an explicit lock. The lock must cover p.
func (m *Manager) Refresh(ctx context.Context, p, token string, timeout time.Duration) (*Lock, error) {
	p = store.Clean(p)

	m.mu.Lock()
	now := m.now()
	expired := m.purgeLocked(now)

	l, ok := m.locks[token]
	if !ok || l.Implicit || !l.Covers(p) {
		m.mu.Unlock()
		m.forget(ctx, expired)
		return nil, daverrors.NewPreconditionFailedError(p, "no matching lock to refresh")
	}

	l.Timeout = m.config.leaseFor(timeout)
	l.ExpiresAt = time.Time{}
	if l.Timeout > 0 {
		l.ExpiresAt = now.Add(l.Timeout)
	}
	snapshot := l.clone()
	m.mu.Unlock()

	m.forget(ctx, expired)
	if m.persister != nil {
		if err := m.persister.PutLock(ctx, ToPersistedLock(snapshot)); err != nil {
			logger.WarnCtx(ctx, "failed to persist refreshed lock", logger.KeyLockToken, token, logger.KeyError, err)
		}
	}
	return snapshot, nil
}

// Release removes the lock named by token if it covers p.
func (m *Manager) Release(ctx context.Context, p, token string) ReleaseStatus {
	p = store.Clean(p)

	m.mu.Lock()
	expired := m.purgeLocked(m.now())

	l, ok := m.locks[token]
	var status ReleaseStatus
	switch {
	case !ok || l.Implicit:
		status = NotFound
	case !l.Covers(p):
		status = Conflict
	default:
		status = Released
		m.deleteLocked(token)
	}
	m.mu.Unlock()

	m.forget(ctx, expired)
	if status == Released {
		if m.metrics != nil {
			m.metrics.RecordRelease(ReasonUnlock)
		}
		m.forget(ctx, []string{token})
	}
	logger.DebugCtx(ctx, "lock release", logger.KeyPath, p, logger.KeyLockToken, token, "result", status.String())
	return status
}

// Discover returns the explicit locks covering p, ordered by root.
func (m *Manager) Discover(p string) []*Lock {
	p = store.Clean(p)

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	var found []*Lock
	for _, l := range m.locks {
		if l.Implicit || l.Expired(now) || !l.Covers(p) {
			continue
		}
		found = append(found, l.clone())
	}
	sort.Slice(found, func(i, j int) bool {
		if found[i].Root != found[j].Root {
			return found[i].Root < found[j].Root
		}
		return found[i].Token < found[j].Token
	})
	return found
}

// Get returns the active lock with token.
func (m *Manager) Get(token string) (*Lock, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.locks[token]
	if !ok || l.Expired(m.now()) {
		return nil, false
	}
	return l.clone(), true
}

// Count returns the number of active locks, implicit ones included.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}

// Restore loads persisted explicit locks. Expired entries are dropped from
// the persister. It returns the number of locks restored.
func (m *Manager) Restore(ctx context.Context) (int, error) {
	if m.persister == nil {
		return 0, nil
	}
	persisted, err := m.persister.ListLocks(ctx)
	if err != nil {
		return 0, err
	}

	now := m.now()
	var stale []string
	restored := 0

	m.mu.Lock()
	for _, pl := range persisted {
		l := FromPersistedLock(pl)
		if l.Expired(now) {
			stale = append(stale, l.Token)
			continue
		}
		m.locks[l.Token] = l
		restored++
	}
	m.setActiveLocked()
	m.mu.Unlock()

	for range stale {
		if m.metrics != nil {
			m.metrics.RecordRelease(ReasonExpired)
		}
	}
	m.forget(ctx, stale)

	logger.Info("restored persisted locks", "restored", restored, "expired", len(stale))
	return restored, nil
}

// ============================================================================
// Internals (callers hold m.mu unless noted)
// ============================================================================

// conflictsLocked returns active locks that forbid req. Locks named in
// tokens and locks of the same principal are not conflicts.
func (m *Manager) conflictsLocked(req Request, tokens map[string]struct{}) []*Lock {
	var conflicts []*Lock
	for _, l := range m.locks {
		if !l.Overlaps(req.Path, req.Deep) {
			continue
		}
		if _, ok := tokens[l.Token]; ok {
			continue
		}
		if req.Principal != "" && l.Principal == req.Principal {
			continue
		}
		if l.Scope == ScopeShared && req.Scope == ScopeShared {
			continue
		}
		conflicts = append(conflicts, l)
	}
	return conflicts
}

// coveringLocked returns an explicit lock named in tokens that covers p.
func (m *Manager) coveringLocked(p string, tokens map[string]struct{}) *Lock {
	for t := range tokens {
		if l, ok := m.locks[t]; ok && !l.Implicit && l.Covers(p) {
			return l
		}
	}
	return nil
}

// purgeLocked drops expired locks and returns the tokens of persisted ones.
func (m *Manager) purgeLocked(now time.Time) []string {
	var persisted []string
	for token, l := range m.locks {
		if !l.Expired(now) {
			continue
		}
		m.deleteLocked(token)
		if m.metrics != nil {
			m.metrics.RecordRelease(ReasonExpired)
		}
		if !l.Implicit {
			persisted = append(persisted, token)
		}
	}
	return persisted
}

func (m *Manager) deleteLocked(token string) {
	delete(m.locks, token)
	close(m.changed)
	m.changed = make(chan struct{})
	m.setActiveLocked()
}

func (m *Manager) setActiveLocked() {
	if m.metrics != nil {
		m.metrics.SetActive(len(m.locks))
	}
}

// remove deletes a lock by token. Called without m.mu held.
func (m *Manager) remove(ctx context.Context, token, reason string) {
	m.mu.Lock()
	l, ok := m.locks[token]
	if ok {
		m.deleteLocked(token)
	}
	m.mu.Unlock()

	if !ok {
		return
	}
	if m.metrics != nil {
		m.metrics.RecordRelease(reason)
	}
	if !l.Implicit {
		m.forget(ctx, []string{token})
	}
}

// forget removes tokens from the persister. Called without m.mu held.
func (m *Manager) forget(ctx context.Context, tokens []string) {
	if m.persister == nil {
		return
	}
	for _, token := range tokens {
		if err := m.persister.DeleteLock(ctx, token); err != nil {
			logger.WarnCtx(ctx, "failed to delete persisted lock", logger.KeyLockToken, token, logger.KeyError, err)
		}
	}
}

func (m *Manager) recordAcquire(kind string, granted, waited bool, start time.Time) {
	if m.metrics == nil {
		return
	}
	m.metrics.RecordAcquire(kind, granted)
	if waited {
		m.metrics.ObserveWait(m.now().Sub(start), granted)
	}
}
