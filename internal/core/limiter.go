package core

// limiter.go bounds how many datasets are parsed or fetched at once.
//
// Parsing holds the whole file in memory, so unbounded parallel uploads
// could exhaust the process. Slots are a buffered channel; callers wait up
// to maxWait for one and then fail with ErrTooManyIngestions. WaitForDrain
// lets shutdown wait for in-flight work.

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrTooManyIngestions is returned when all slots stay occupied for the
// whole wait period. Clients should retry after a short delay.
var ErrTooManyIngestions = errors.New("too many concurrent ingestions")

// DefaultMaxConcurrentIngestions is the default limit for parallel ingestions.
const DefaultMaxConcurrentIngestions = 5

// DefaultMaxWaitTime is how long to wait for a slot before rejecting.
const DefaultMaxWaitTime = 10 * time.Second

// IngestLimiter is a counting semaphore over ingestion work.
type IngestLimiter struct {
	slots   chan struct{}
	maxWait time.Duration

	mu       sync.Mutex
	active   int
	rejected int64
	idle     chan struct{} // closed while active == 0
}

// NewIngestLimiter creates a limiter allowing maxConcurrent ingestions.
// Non-positive arguments select the defaults.
func NewIngestLimiter(maxConcurrent int, maxWait time.Duration) *IngestLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentIngestions
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWaitTime
	}

	idle := make(chan struct{})
	close(idle)
	return &IngestLimiter{
		slots:   make(chan struct{}, maxConcurrent),
		maxWait: maxWait,
		idle:    idle,
	}
}

// Acquire waits for a slot. The caller must call Release exactly once after
// a nil return.
func (l *IngestLimiter) Acquire(ctx context.Context) error {
	timer := time.NewTimer(l.maxWait)
	defer timer.Stop()

	select {
	case l.slots <- struct{}{}:
		l.enter()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		l.mu.Lock()
		l.rejected++
		l.mu.Unlock()
		return ErrTooManyIngestions
	}
}

// Release returns a slot taken by Acquire.
func (l *IngestLimiter) Release() {
	l.mu.Lock()
	l.active--
	if l.active == 0 {
		close(l.idle)
	}
	l.mu.Unlock()

	<-l.slots
}

func (l *IngestLimiter) enter() {
	l.mu.Lock()
	if l.active == 0 {
		l.idle = make(chan struct{})
	}
	l.active++
	l.mu.Unlock()
}

// Do runs fn while holding a slot.
func (l *IngestLimiter) Do(ctx context.Context, fn func(context.Context) error) error {
	if err := l.Acquire(ctx); err != nil {
		return err
	}
	defer l.Release()
	return fn(ctx)
}

// ActiveCount returns the number of ingestions holding a slot.
func (l *IngestLimiter) ActiveCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active
}

// MaxConcurrent returns the slot count.
func (l *IngestLimiter) MaxConcurrent() int {
	return cap(l.slots)
}

// Available returns the number of free slots.
func (l *IngestLimiter) Available() int {
	return cap(l.slots) - len(l.slots)
}

// WaitForDrain blocks until no ingestion holds a slot or ctx ends.
func (l *IngestLimiter) WaitForDrain(ctx context.Context) error {
	for {
		l.mu.Lock()
		idle, active := l.idle, l.active
		l.mu.Unlock()
		if active == 0 {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-idle:
			// A new ingestion may have started after idle closed; re-check.
		}
	}
}

// IngestLimiterStatus is a snapshot of limiter usage.
type IngestLimiterStatus struct {
	Active        int   `json:"active"`
	Available     int   `json:"available"`
	MaxConcurrent int   `json:"max_concurrent"`
	Rejected      int64 `json:"rejected"`
}

// Status returns the current limiter state for health checks.
func (l *IngestLimiter) Status() IngestLimiterStatus {
	l.mu.Lock()
	rejected := l.rejected
	l.mu.Unlock()

	return IngestLimiterStatus{
		Active:        l.ActiveCount(),
		Available:     l.Available(),
		MaxConcurrent: l.MaxConcurrent(),
		Rejected:      rejected,
	}
}
