package pipeline

// guard.go keeps pipeline runs from overlapping.
//
// The guard is a one-slot semaphore. A trigger that finds the slot taken is
// refused immediately with ErrRunInProgress instead of queueing, because a
// queued full-replace load would only overwrite the run ahead of it.
// WaitForDrain lets a shutting-down server wait for the active run.

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrRunInProgress is returned when a run is requested while another is active.
var ErrRunInProgress = errors.New("pipeline run already in progress")

// RunGuard admits at most one pipeline run at a time.
type RunGuard struct {
	slot chan struct{}

	mu      sync.RWMutex
	started time.Time
}

// NewRunGuard returns an idle guard.
func NewRunGuard() *RunGuard {
	return &RunGuard{slot: make(chan struct{}, 1)}
}

// TryAcquire claims the run slot without blocking.
// The caller MUST call Release when the run ends (use defer).
func (g *RunGuard) TryAcquire() error {
	select {
	case g.slot <- struct{}{}:
		g.mu.Lock()
		g.started = time.Now()
		g.mu.Unlock()
		return nil
	default:
		return ErrRunInProgress
	}
}

// Release frees the run slot.
func (g *RunGuard) Release() {
	g.mu.Lock()
	g.started = time.Time{}
	g.mu.Unlock()

	<-g.slot
}

// Running reports whether a run holds the slot, and since when.
func (g *RunGuard) Running() (bool, time.Time) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return !g.started.IsZero(), g.started
}

// WaitForDrain blocks until no run is active or ctx is done.
func (g *RunGuard) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		if running, _ := g.Running(); !running {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
