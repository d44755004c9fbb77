package lock

import "time"

// Config contains configuration settings for the lock manager.
type Config struct {
	// DefaultTimeout is the lease granted when a LOCK request has no
	// Timeout header. Zero means infinite.
	// Default: 10m
	DefaultTimeout time.Duration `mapstructure:"default_timeout" yaml:"default_timeout"`

	// MaxTimeout caps requested leases. Zero means no cap.
	// Default: 1h
	MaxTimeout time.Duration `mapstructure:"max_timeout" yaml:"max_timeout"`

	// WaitTimeout makes implicit lock requests queue behind a conflicting
	// lock for up to this long instead of failing immediately with 423.
	// Default: 0 (fail fast)
	WaitTimeout time.Duration `mapstructure:"wait_timeout" yaml:"wait_timeout"`

	// MaxLocks is the maximum number of active locks. Zero means unlimited.
	// Default: 100000
	MaxLocks int `mapstructure:"max_locks" yaml:"max_locks"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		DefaultTimeout: 10 * time.Minute,
		MaxTimeout:     time.Hour,
		WaitTimeout:    0,
		MaxLocks:       100000,
	}
}

// Infinite requests a lease without expiry.
const Infinite time.Duration = -1

// leaseFor clamps a requested lease to the configured bounds. Zero selects
// the default; the result zero means infinite.
func (c Config) leaseFor(requested time.Duration) time.Duration {
	switch {
	case requested == 0:
		requested = c.DefaultTimeout
	case requested < 0:
		requested = 0
	}
	if c.MaxTimeout > 0 && (requested == 0 || requested > c.MaxTimeout) {
		return c.MaxTimeout
	}
	return requested
}
