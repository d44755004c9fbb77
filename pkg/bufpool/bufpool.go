// Package bufpool provides a size-classed buffer pool for the stream copier.
//
// Buffers are grouped in power-of-two classes between MinSize and MaxSize,
// one sync.Pool per class. Requests above MaxSize are allocated directly and
// never pooled, so very large buffers are not kept alive.
//
// Every pool keeps rent/return counters. Callers that must prove they return
// each buffer exactly once (the copier does, including on cancellation) can
// compare Stats().Outstanding before and after.
//
// # Usage
//
//	buf := pool.Get(size)
//	defer pool.Put(buf)
package bufpool

import (
	"math/bits"
	"sync"
	"sync/atomic"
)

const (
	// DefaultMinSize is the smallest size class (4KB).
	DefaultMinSize = 4 << 10

	// DefaultMaxSize is the largest pooled size class (64MB).
	DefaultMaxSize = 64 << 20
)

// Config holds configuration for creating a buffer pool.
type Config struct {
	// MinSize is the smallest size class, rounded up to a power of two.
	MinSize int

	// MaxSize is the largest pooled size class, rounded up to a power of two.
	MaxSize int
}

// DefaultConfig returns the default pool configuration.
func DefaultConfig() Config {
	return Config{
		MinSize: DefaultMinSize,
		MaxSize: DefaultMaxSize,
	}
}

// Stats is a snapshot of pool accounting.
type Stats struct {
	Gets        int64 // buffers handed out
	Puts        int64 // buffers given back
	Outstanding int64 // Gets - Puts
	Allocations int64 // buffers created because a class was empty
	MaxRented   int   // largest capacity ever handed out
}

// Pool manages one sync.Pool per power-of-two size class.
type Pool struct {
	minShift int
	maxShift int
	classes  []sync.Pool

	gets        atomic.Int64
	puts        atomic.Int64
	allocations atomic.Int64
	maxRented   atomic.Int64
}

// NewPool creates a buffer pool. A nil config uses DefaultConfig.
func NewPool(cfg *Config) *Pool {
	c := DefaultConfig()
	if cfg != nil {
		if cfg.MinSize > 0 {
			c.MinSize = cfg.MinSize
		}
		if cfg.MaxSize > 0 {
			c.MaxSize = cfg.MaxSize
		}
	}
	if c.MaxSize < c.MinSize {
		c.MaxSize = c.MinSize
	}

	p := &Pool{
		minShift: ceilLog2(c.MinSize),
		maxShift: ceilLog2(c.MaxSize),
	}
	p.classes = make([]sync.Pool, p.maxShift-p.minShift+1)
	for i := range p.classes {
		size := 1 << (p.minShift + i)
		p.classes[i].New = func() any {
			p.allocations.Add(1)
			buf := make([]byte, size)
			return &buf
		}
	}
	return p
}

// ceilLog2 returns the smallest n with 1<<n >= v.
func ceilLog2(v int) int {
	if v <= 1 {
		return 0
	}
	return bits.Len(uint(v - 1))
}

// MinSize returns the smallest size class.
func (p *Pool) MinSize() int {
	return 1 << p.minShift
}

// MaxSize returns the largest pooled size class.
func (p *Pool) MaxSize() int {
	return 1 << p.maxShift
}

// classIndex returns the class for a size, or -1 when the size is above MaxSize.
func (p *Pool) classIndex(size int) int {
	shift := ceilLog2(size)
	if shift < p.minShift {
		shift = p.minShift
	}
	if shift > p.maxShift {
		return -1
	}
	return shift - p.minShift
}

// Get returns a byte slice of length size. Its capacity is the size class,
// so it may be larger than requested. The caller must Put it back.
func (p *Pool) Get(size int) []byte {
	if size < 0 {
		size = 0
	}
	p.gets.Add(1)

	var buf []byte
	if idx := p.classIndex(size); idx >= 0 {
		buf = *(p.classes[idx].Get().(*[]byte))
	} else {
		p.allocations.Add(1)
		buf = make([]byte, size)
	}

	p.recordRented(cap(buf))
	return buf[:size]
}

func (p *Pool) recordRented(c int) {
	for {
		cur := p.maxRented.Load()
		if int64(c) <= cur || p.maxRented.CompareAndSwap(cur, int64(c)) {
			return
		}
	}
}

// Put returns a buffer to the pool. Buffers whose capacity is not exactly a
// size class are counted but left to the GC.
func (p *Pool) Put(buf []byte) {
	if buf == nil {
		return
	}
	p.puts.Add(1)

	c := cap(buf)
	if c&(c-1) != 0 {
		return
	}
	idx := p.classIndex(c)
	if idx < 0 || 1<<(p.minShift+idx) != c {
		return
	}
	full := buf[:c]
	p.classes[idx].Put(&full)
}

// Stats returns a snapshot of the pool accounting.
func (p *Pool) Stats() Stats {
	gets := p.gets.Load()
	puts := p.puts.Load()
	return Stats{
		Gets:        gets,
		Puts:        puts,
		Outstanding: gets - puts,
		Allocations: p.allocations.Load(),
		MaxRented:   int(p.maxRented.Load()),
	}
}

// =============================================================================
// Global Pool
// =============================================================================

var globalPool = NewPool(nil)

// Default returns the package-level pool.
func Default() *Pool {
	return globalPool
}

// Get returns a buffer from the global pool.
func Get(size int) []byte {
	return globalPool.Get(size)
}

// Put returns a buffer to the global pool.
func Put(buf []byte) {
	globalPool.Put(buf)
}
