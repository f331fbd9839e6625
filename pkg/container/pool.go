package container

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Pool is the container-owned worker pool described in spec §5: each
// submitted fan-out or user-callback task runs on its own goroutine, and
// a semaphore lets at most size of them run at once.
// Submission is fire-and-forget; once the pool has been shut down,
// Schedule follows its configured RejectionPolicy. An errgroup.Group
// supervises the in-flight goroutines so Wait can block on every one of
// them without the caller-runs path leaking a goroutine accounting bug
// into the fast path.
type Pool struct {
	sem       *semaphore.Weighted
	grp       errgroup.Group
	mu        sync.Mutex
	shutdown  bool
	rejection RejectionPolicy
}

// NewPool creates a pool that runs at most size tasks concurrently,
// applying policy once shut down.
func NewPool(size int, policy RejectionPolicy) *Pool {
	if size <= 0 {
		size = 1
	}
	return &Pool{sem: semaphore.NewWeighted(int64(size)), rejection: policy}
}

// Schedule implements controller.Scheduler.
func (p *Pool) Schedule(fn func()) {
	p.mu.Lock()
	down := p.shutdown
	p.mu.Unlock()
	if down {
		switch p.rejection {
		case RejectDrop:
			return
		default: // RejectCallerRuns
			fn()
			return
		}
	}

	p.grp.Go(func() error {
		// Acquire never fails against context.Background(); errors are
		// impossible here, only ever returned for a cancelable context.
		_ = p.sem.Acquire(context.Background(), 1)
		defer p.sem.Release(1)
		fn()
		return nil
	})
}

// Shutdown stops accepting background dispatch: subsequent Schedule
// calls follow the rejection policy (run inline, or drop). It does not
// wait for in-flight work; call Wait for that.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	p.shutdown = true
	p.mu.Unlock()
}

// Wait blocks until every previously scheduled task has returned.
func (p *Pool) Wait() {
	p.grp.Wait()
}
