package lock

import (
	"context"
	"time"
)

// PersistedLock is the serializable form of an explicit lock.
type PersistedLock struct {
	Token     string    `json:"token"`
	Path      string    `json:"path"`
	Root      string    `json:"root"`
	Deep      bool      `json:"deep"`
	Owner     string    `json:"owner,omitempty"`
	Principal string    `json:"principal"`
	Scope     int       `json:"scope"`
	TimeoutNs int64     `json:"timeout_ns"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// Persister stores explicit locks so they survive restarts. Implicit locks
// live only as long as their request and are never persisted.
//
// Implementations must be safe for concurrent use.
type Persister interface {
	// PutLock persists a lock. Overwrites a lock with the same token.
	PutLock(ctx context.Context, lock *PersistedLock) error

	// DeleteLock removes a lock. Deleting a missing token is not an error.
	DeleteLock(ctx context.Context, token string) error

	// ListLocks returns every persisted lock.
	ListLocks(ctx context.Context) ([]*PersistedLock, error)
}

// ToPersistedLock converts a Lock to its stored form.
func ToPersistedLock(l *Lock) *PersistedLock {
	return &PersistedLock{
		Token:     l.Token,
		Path:      l.Path,
		Root:      l.Root,
		Deep:      l.Deep,
		Owner:     l.Owner,
		Principal: l.Principal,
		Scope:     int(l.Scope),
		TimeoutNs: int64(l.Timeout),
		ExpiresAt: l.ExpiresAt,
		CreatedAt: l.CreatedAt,
	}
}

// FromPersistedLock converts a stored lock back to a Lock.
func FromPersistedLock(pl *PersistedLock) *Lock {
	return &Lock{
		Token:     pl.Token,
		Path:      pl.Path,
		Root:      pl.Root,
		Deep:      pl.Deep,
		Owner:     pl.Owner,
		Principal: pl.Principal,
		Access:    AccessWrite,
		Scope:     Scope(pl.Scope),
		Timeout:   time.Duration(pl.TimeoutNs),
		ExpiresAt: pl.ExpiresAt,
		CreatedAt: pl.CreatedAt,
	}
}
