package controller

// Scheduler runs fan-out and user-callback work on a container-owned
// worker pool (spec §5). Controllers never block waiting on scheduled
// work; Schedule is fire-and-forget from the caller's perspective.
type Scheduler interface {
	Schedule(fn func())
}

// InlineScheduler runs work synchronously on the calling goroutine. It
// exists for unit tests that want deterministic, single-threaded
// transition chains without pulling in the container's worker pool.
type InlineScheduler struct{}

func (InlineScheduler) Schedule(fn func()) { fn() }
