package container

import (
	"time"
)

// Adjust implements controller.StabilityTracker. Every controller reports
// its own before/after rest-state diff here; the container just sums
// them and wakes anyone blocked in AwaitStability once the sum returns
// to zero.
func (c *Container) Adjust(delta int) {
	c.mu.Lock()
	c.unstable += delta
	settled := c.unstable == 0
	c.mu.Unlock()
	if settled {
		c.cond.Broadcast()
	}
}

// UnstableCount reports the current count of controllers not at rest,
// mirroring spec §4.6's unstable_services gauge.
func (c *Container) UnstableCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.unstable
}

// AwaitStability blocks until every installed controller is at rest, or
// timeout elapses. sync.Cond has no native deadline support, so a timer
// goroutine wakes the waiter once to re-check the deadline; it is
// stopped again once AwaitStability returns. A second ticker, at the
// configured stabilityPollInterval, wakes the waiter periodically as a
// defensive re-check independent of Adjust's own Broadcast — the same
// belt-and-suspenders shape as the teacher's BGProcessService polling
// for daemon liveness instead of relying solely on an exit signal
// (pkg/service/bgprocess.go's monitorDaemon).
func (c *Container) AwaitStability(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)

	timer := time.AfterFunc(timeout, func() {
		c.cond.Broadcast()
	})
	defer timer.Stop()

	poll := c.stabilityPollInterval
	if poll <= 0 {
		poll = 250 * time.Millisecond
	}
	stopPoll := make(chan struct{})
	defer close(stopPoll)
	go func() {
		ticker := time.NewTicker(poll)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.cond.Broadcast()
			case <-stopPoll:
				return
			}
		}
	}()

	c.mu.Lock()
	defer c.mu.Unlock()
	for c.unstable != 0 {
		if !time.Now().Before(deadline) {
			return false
		}
		c.cond.Wait()
	}
	return true
}

// AwaitTermination blocks until Shutdown has fully drained every
// controller to REMOVED, or timeout elapses.
func (c *Container) AwaitTermination(timeout time.Duration) bool {
	select {
	case <-c.done:
		return true
	case <-time.After(timeout):
		return false
	}
}
