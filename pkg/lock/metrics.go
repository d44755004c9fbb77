package lock

import "time"

// Kind labels for lock metrics.
const (
	KindImplicit = "implicit"
	KindExplicit = "explicit"
)

// Reason labels for lock release metrics.
const (
	ReasonUnlock   = "unlock"
	ReasonRequest  = "request_done"
	ReasonExpired  = "expired"
	ReasonRestored = "restored"
)

// Metrics provides observability for the lock manager.
//
// This interface is optional: pass nil to disable metrics collection with
// zero overhead.
type Metrics interface {
	// RecordAcquire records a lock attempt of the given kind and its outcome.
	RecordAcquire(kind string, granted bool)

	// RecordRelease records a lock removal and why it happened.
	RecordRelease(reason string)

	// ObserveWait records how long an implicit request queued.
	ObserveWait(d time.Duration, granted bool)

	// SetActive updates the active lock gauge.
	SetActive(n int)
}
