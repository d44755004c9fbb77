// Package lock provides the lease-based lock manager that coordinates
// writers on the WebDAV namespace.
//
// Locks are keyed by URL path. A lock covers its root and, when Deep, every
// path below it. Explicit locks are created by LOCK requests and identified
// by a token the client presents in If headers. Implicit locks are taken by
// the engine for the duration of one mutating request.
//
// Import graph: errors <- lock <- engine <- webdav
package lock

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/marmos91/dittodav/pkg/store"
)

// TokenPrefix is the URI scheme of lock tokens.
const TokenPrefix = "opaquelocktoken:"

// Scope is the lock scope.
type Scope int

const (
	// ScopeExclusive admits no other lock on overlapping paths.
	ScopeExclusive Scope = iota

	// ScopeShared admits other shared locks, never an exclusive one.
	ScopeShared
)

// String returns the DAV element name of the scope.
func (s Scope) String() string {
	switch s {
	case ScopeExclusive:
		return "exclusive"
	case ScopeShared:
		return "shared"
	default:
		return "unknown"
	}
}

// ParseScope parses a DAV scope name. Unknown values map to exclusive.
func ParseScope(s string) Scope {
	if strings.EqualFold(s, "shared") {
		return ScopeShared
	}
	return ScopeExclusive
}

// Access is the lock type. WebDAV only defines write locks.
type Access int

const (
	AccessWrite Access = iota
)

func (a Access) String() string { return "write" }

// Lock is an active lock.
type Lock struct {
	// Token uniquely identifies the lock ("opaquelocktoken:<uuid>").
	Token string

	// Path is the resource the lock was requested on.
	Path string

	// Root is the lock root. Equal to Path for locks granted here.
	Root string

	// Deep extends the lock to every path below Root.
	Deep bool

	// Owner is the client-supplied owner description (DAV:owner content).
	Owner string

	// Principal identifies the holder for conflict checks. Locks with the
	// same principal never conflict with each other.
	Principal string

	Access Access
	Scope  Scope

	// Timeout is the granted lease. Zero means infinite.
	Timeout time.Duration

	// ExpiresAt is the lease deadline, zero for infinite locks.
	ExpiresAt time.Time

	// CreatedAt is when the lock was granted.
	CreatedAt time.Time

	// Implicit marks locks taken by the engine for a single request.
	Implicit bool
}

// Expired reports whether the lease ran out at now.
func (l *Lock) Expired(now time.Time) bool {
	return !l.ExpiresAt.IsZero() && !now.Before(l.ExpiresAt)
}

// Covers reports whether the lock applies to p.
func (l *Lock) Covers(p string) bool {
	p = store.Clean(p)
	if p == l.Root {
		return true
	}
	return l.Deep && store.IsWithin(p, l.Root)
}

// Overlaps reports whether a lock request on p (deep or not) touches this
// lock's scope of paths.
func (l *Lock) Overlaps(p string, deep bool) bool {
	p = store.Clean(p)
	if l.Covers(p) {
		return true
	}
	return deep && store.IsWithin(l.Root, p)
}

// Remaining returns the lease left at now, or zero for infinite locks.
func (l *Lock) Remaining(now time.Time) time.Duration {
	if l.ExpiresAt.IsZero() {
		return 0
	}
	if d := l.ExpiresAt.Sub(now); d > 0 {
		return d
	}
	return 0
}

func (l *Lock) clone() *Lock {
	c := *l
	return &c
}

// Request describes a lock to acquire.
type Request struct {
	Path      string
	Deep      bool
	Scope     Scope
	Owner     string
	Principal string

	// Timeout is the requested lease. Zero selects the configured default.
	Timeout time.Duration
}

// NewToken returns a fresh lock token.
func NewToken() string {
	return TokenPrefix + uuid.NewString()
}

// ReleaseStatus is the outcome of Release.
type ReleaseStatus int

const (
	// Released means the lock was removed.
	Released ReleaseStatus = iota

	// NotFound means no active lock carries the token.
	NotFound

	// Conflict means the token names a lock that does not cover the path.
	Conflict
)

func (s ReleaseStatus) String() string {
	switch s {
	case Released:
		return "released"
	case NotFound:
		return "not_found"
	case Conflict:
		return "conflict"
	default:
		return "unknown"
	}
}
