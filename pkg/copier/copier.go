// Package copier implements the adaptive stream copier used by PUT and by
// the generic copy strategy.
//
// The copier rents its buffer from a bufpool.Pool and measures throughput the
// way TCP slow start does: every time a read fills the whole buffer and the
// read+write pair finishes under GrowthThreshold, the buffer doubles, up to
// MaxSize. Growing returns the old buffer to the pool and rents a new one, so
// at most one buffer is held at any time.
package copier

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/marmos91/dittodav/internal/bytesize"
	"github.com/marmos91/dittodav/internal/logger"
	"github.com/marmos91/dittodav/pkg/bufpool"
	daverrors "github.com/marmos91/dittodav/pkg/errors"
)

const (
	// DefaultMaxSize is the buffer cap (64MB).
	DefaultMaxSize = 64 << 20

	// DefaultGrowthThreshold is the iteration time under which the buffer grows.
	DefaultGrowthThreshold = 200 * time.Millisecond
)

// UnknownLength tells Copy to stream until EOF.
const UnknownLength int64 = -1

// Config holds the copier tuning knobs.
type Config struct {
	// InitialSize is the first buffer rented for every copy.
	InitialSize bytesize.ByteSize `mapstructure:"initial_buffer" yaml:"initial_buffer" validate:"omitempty,gt=0"`

	// MaxSize caps buffer growth.
	MaxSize bytesize.ByteSize `mapstructure:"max_buffer" yaml:"max_buffer" validate:"omitempty,gt=0"`

	// GrowthThreshold is the read+write duration under which a full buffer
	// is doubled.
	GrowthThreshold time.Duration `mapstructure:"growth_threshold" yaml:"growth_threshold" validate:"omitempty,gt=0"`
}

// DefaultConfig returns the default copier configuration. The initial size
// depends on the davdebug build tag.
func DefaultConfig() Config {
	return Config{
		InitialSize:     bytesize.ByteSize(defaultInitialSize),
		MaxSize:         DefaultMaxSize,
		GrowthThreshold: DefaultGrowthThreshold,
	}
}

// ApplyDefaults fills zero fields with defaults.
func (c *Config) ApplyDefaults() {
	d := DefaultConfig()
	if c.InitialSize == 0 {
		c.InitialSize = d.InitialSize
	}
	if c.MaxSize == 0 {
		c.MaxSize = d.MaxSize
	}
	if c.GrowthThreshold == 0 {
		c.GrowthThreshold = d.GrowthThreshold
	}
	if c.InitialSize > c.MaxSize {
		c.InitialSize = c.MaxSize
	}
}

// Result describes a finished copy.
type Result struct {
	Written         int64
	FinalBufferSize int
	Growths         int
	Duration        time.Duration
}

// Metrics records copier activity. A nil Metrics disables recording.
type Metrics interface {
	// ObserveCopy records a finished copy, failed or not.
	ObserveCopy(written int64, duration time.Duration, finalBufferSize int, err error)

	// RecordGrowth records a buffer doubling to newSize.
	RecordGrowth(newSize int)
}

// Option configures a Copier.
type Option func(*Copier)

// WithMetrics records copier metrics to m.
func WithMetrics(m Metrics) Option {
	return func(c *Copier) { c.metrics = m }
}

// WithClock replaces the time source used to time iterations.
func WithClock(now func() time.Time) Option {
	return func(c *Copier) { c.now = now }
}

// Copier copies streams with a self-growing pooled buffer. It is safe for
// concurrent use; each Copy holds its own buffer.
type Copier struct {
	config  Config
	pool    *bufpool.Pool
	metrics Metrics
	now     func() time.Time
}

// New creates a copier renting from pool. A nil pool uses bufpool.Default().
func New(cfg Config, pool *bufpool.Pool, opts ...Option) *Copier {
	cfg.ApplyDefaults()
	if pool == nil {
		pool = bufpool.Default()
	}
	c := &Copier{
		config: cfg,
		pool:   pool,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Config returns the effective configuration.
func (c *Copier) Config() Config {
	return c.config
}

// Copy streams src into dst. When contentLength is not UnknownLength, at
// most contentLength bytes are read and a shorter body fails with
// BadRequest.
func (c *Copier) Copy(ctx context.Context, dst io.Writer, src io.Reader, contentLength int64) (res Result, err error) {
	start := c.now()
	size := int(c.config.InitialSize)
	maxSize := int(c.config.MaxSize)

	buf := c.pool.Get(size)
	defer func() {
		c.pool.Put(buf)
		res.FinalBufferSize = size
		res.Duration = c.now().Sub(start)
		if c.metrics != nil {
			c.metrics.ObserveCopy(res.Written, res.Duration, size, err)
		}
		logger.DebugCtx(ctx, "stream copy finished",
			logger.KeyBytesWritten, res.Written,
			logger.KeyBufferSize, size,
			logger.KeyGrowths, res.Growths,
			logger.Err(err))
	}()

	remaining := contentLength
	for contentLength < 0 || remaining > 0 {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		chunk := buf[:size]
		if contentLength >= 0 && remaining < int64(size) {
			chunk = chunk[:remaining]
		}

		iterStart := c.now()
		n, rerr := io.ReadFull(src, chunk)
		if n > 0 {
			w, werr := dst.Write(chunk[:n])
			res.Written += int64(w)
			if werr == nil && w < n {
				werr = io.ErrShortWrite
			}
			if werr != nil {
				return res, daverrors.Wrap(daverrors.ErrIOError, "", fmt.Errorf("write: %w", werr))
			}
			remaining -= int64(n)
		}

		if rerr != nil {
			if errors.Is(rerr, io.EOF) || errors.Is(rerr, io.ErrUnexpectedEOF) {
				if contentLength >= 0 && remaining > 0 {
					return res, daverrors.NewBadRequestError(fmt.Sprintf(
						"request body ended after %d of %d bytes", res.Written, contentLength))
				}
				return res, nil
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return res, ctxErr
			}
			return res, daverrors.Wrap(daverrors.ErrIOError, "", fmt.Errorf("read: %w", rerr))
		}

		elapsed := c.now().Sub(iterStart)
		if n == size && size < maxSize && elapsed < c.config.GrowthThreshold {
			next := size * 2
			if next > maxSize {
				next = maxSize
			}
			c.pool.Put(buf)
			buf = c.pool.Get(next)
			size = next
			res.Growths++
			if c.metrics != nil {
				c.metrics.RecordGrowth(next)
			}
		}
	}
	return res, nil
}
