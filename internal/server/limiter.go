package server

import (
	"context"
	"sync/atomic"
	"time"
)

// LimiterConfig bounds how many connections are handled at once.
type LimiterConfig struct {
	// MaxConcurrent is the number of connections handled in parallel.
	MaxConcurrent int
	// QueueSize is how many further connections may wait for a slot.
	// Connections beyond it are shed immediately.
	QueueSize int
	// QueueTimeout is how long a queued connection waits before it is shed.
	// Zero waits until the server shuts down.
	QueueTimeout time.Duration
}

// DefaultLimiterConfig returns the limits used when none are configured.
func DefaultLimiterConfig() LimiterConfig {
	return LimiterConfig{
		MaxConcurrent: 64,
		QueueSize:     64,
		QueueTimeout:  5 * time.Second,
	}
}

// Limiter is a counting semaphore with a bounded wait queue.
type Limiter struct {
	config LimiterConfig

	inFlight    int64
	queueLength int64
	totalShed   uint64
	lastShed    atomic.Value // time.Time

	semaphore chan struct{}
	queue     chan struct{}
}

// NewLimiter creates a limiter. MaxConcurrent below 1 is treated as 1.
func NewLimiter(config LimiterConfig) *Limiter {
	if config.MaxConcurrent < 1 {
		config.MaxConcurrent = 1
	}
	if config.QueueSize < 0 {
		config.QueueSize = 0
	}

	l := &Limiter{
		config:    config,
		semaphore: make(chan struct{}, config.MaxConcurrent),
		queue:     make(chan struct{}, config.QueueSize),
	}
	l.lastShed.Store(time.Time{})
	return l
}

// Acquire takes a slot, queueing if all are busy. It returns false when the
// connection should be shed: the queue is full, the wait timed out, or ctx
// ended.
func (l *Limiter) Acquire(ctx context.Context) bool {
	select {
	case l.semaphore <- struct{}{}:
		atomic.AddInt64(&l.inFlight, 1)
		return true
	default:
	}

	select {
	case l.queue <- struct{}{}:
		atomic.AddInt64(&l.queueLength, 1)
		defer func() {
			<-l.queue
			atomic.AddInt64(&l.queueLength, -1)
		}()
	default:
		l.recordShed()
		return false
	}

	var expired <-chan time.Time
	if l.config.QueueTimeout > 0 {
		timer := time.NewTimer(l.config.QueueTimeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case l.semaphore <- struct{}{}:
		atomic.AddInt64(&l.inFlight, 1)
		return true
	case <-expired:
		l.recordShed()
		return false
	case <-ctx.Done():
		l.recordShed()
		return false
	}
}

// Release returns a slot taken by a successful Acquire.
func (l *Limiter) Release() {
	select {
	case <-l.semaphore:
		atomic.AddInt64(&l.inFlight, -1)
	default:
	}
}

// LimiterStats is a snapshot of limiter state.
type LimiterStats struct {
	InFlight      int64     `json:"inFlight"`
	QueueLength   int64     `json:"queueLength"`
	MaxConcurrent int       `json:"maxConcurrent"`
	MaxQueue      int       `json:"maxQueue"`
	TotalShed     uint64    `json:"totalShed"`
	LastShedTime  time.Time `json:"lastShedTime,omitempty"`
}

// Stats returns current limiter statistics.
func (l *Limiter) Stats() LimiterStats {
	lastShed, _ := l.lastShed.Load().(time.Time)
	return LimiterStats{
		InFlight:      atomic.LoadInt64(&l.inFlight),
		QueueLength:   atomic.LoadInt64(&l.queueLength),
		MaxConcurrent: l.config.MaxConcurrent,
		MaxQueue:      l.config.QueueSize,
		TotalShed:     atomic.LoadUint64(&l.totalShed),
		LastShedTime:  lastShed,
	}
}

func (l *Limiter) recordShed() {
	atomic.AddUint64(&l.totalShed, 1)
	l.lastShed.Store(time.Now())
}
