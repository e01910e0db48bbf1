package engine

// limiter.go bounds how many search/replace runs execute at once.
//
// A semaphore caps concurrent runs at a configurable maximum. When every
// slot is taken, Acquire waits up to maxWait before failing with
// ErrTooManyProcesses. WaitForDrain lets shutdown block until in-flight runs
// finish.

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrTooManyProcesses is returned when every slot is occupied and the wait
// timeout expires. Clients should retry after a short delay.
var ErrTooManyProcesses = errors.New("too many concurrent operations, please try again later")

// DefaultMaxConcurrent is the default cap on parallel runs.
const DefaultMaxConcurrent = 4

// DefaultAcquireWait is how long Acquire waits for a slot before rejecting.
const DefaultAcquireWait = 10 * time.Second

// ProcessLimiter restricts concurrent search/replace runs.
type ProcessLimiter struct {
	slots   chan struct{}
	maxWait time.Duration

	mu     sync.RWMutex
	active int
}

// NewProcessLimiter allows at most maxConcurrent simultaneous runs. Callers
// that cannot acquire a slot within maxWait receive ErrTooManyProcesses.
func NewProcessLimiter(maxConcurrent int, maxWait time.Duration) *ProcessLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}
	if maxWait <= 0 {
		maxWait = DefaultAcquireWait
	}
	return &ProcessLimiter{
		slots:   make(chan struct{}, maxConcurrent),
		maxWait: maxWait,
	}
}

// Acquire claims a run slot, waiting up to the configured maximum. The
// caller must Release exactly once per successful Acquire.
func (l *ProcessLimiter) Acquire(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, l.maxWait)
	defer cancel()

	select {
	case l.slots <- struct{}{}:
		l.mu.Lock()
		l.active++
		l.mu.Unlock()
		return nil
	case <-waitCtx.Done():
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrTooManyProcesses
	}
}

// Release frees a previously acquired slot.
func (l *ProcessLimiter) Release() {
	l.mu.Lock()
	l.active--
	l.mu.Unlock()
	<-l.slots
}

// ActiveCount returns how many runs hold a slot right now.
func (l *ProcessLimiter) ActiveCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.active
}

// MaxConcurrent returns the configured cap.
func (l *ProcessLimiter) MaxConcurrent() int {
	return cap(l.slots)
}

// WaitForDrain blocks until no runs remain active or the context is
// cancelled. Used during graceful shutdown.
func (l *ProcessLimiter) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if l.ActiveCount() == 0 {
				return nil
			}
		}
	}
}

// LimiterStatus is a snapshot of the limiter for monitoring.
type LimiterStatus struct {
	Active        int `json:"active"`
	Available     int `json:"available"`
	MaxConcurrent int `json:"maxConcurrent"`
}

// Status reports the limiter's current state.
func (l *ProcessLimiter) Status() LimiterStatus {
	l.mu.RLock()
	active := l.active
	l.mu.RUnlock()

	return LimiterStatus{
		Active:        active,
		Available:     cap(l.slots) - len(l.slots),
		MaxConcurrent: cap(l.slots),
	}
}
