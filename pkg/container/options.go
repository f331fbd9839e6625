package container

import (
	"time"

	"github.com/sunlightlinux/svcengine/pkg/logging"
)

// RejectionPolicy selects what Pool.Schedule does once the pool has
// been shut down.
type RejectionPolicy int

const (
	// RejectCallerRuns runs the task inline on the submitting goroutine,
	// so in-flight transitions can still make progress during shutdown.
	RejectCallerRuns RejectionPolicy = iota
	// RejectDrop silently discards the task.
	RejectDrop
)

// Config controls container construction. It replaces the on-disk
// service-description format the teacher's pkg/config loads — the core
// has no persisted configuration surface (spec §6) — with the small set
// of knobs the engine itself actually needs.
type Config struct {
	Workers int
	Logger  *logging.Logger

	// StabilityPollInterval is how often AwaitStability re-checks the
	// unstable count on its own, independent of the container's Cond
	// broadcasts — the same defensive-polling shape the teacher's
	// BGProcessService.monitorDaemon uses to catch a missed signal
	// (pkg/service/bgprocess.go's daemonPollInterval ticker).
	StabilityPollInterval time.Duration
	// Rejection is the policy Pool.Schedule follows once the pool is
	// shut down.
	Rejection RejectionPolicy
}

// Option mutates a Config, following the functional-options idiom.
type Option func(*Config)

// WithWorkers sets the worker pool size. Default 8.
func WithWorkers(n int) Option {
	return func(c *Config) { c.Workers = n }
}

// WithLogger installs a structured logger. Default discards everything.
func WithLogger(l *logging.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// WithStabilityPollInterval overrides how often AwaitStability
// re-checks stability outside of Cond wakeups. Default 250ms.
func WithStabilityPollInterval(d time.Duration) Option {
	return func(c *Config) { c.StabilityPollInterval = d }
}

// WithRejectionPolicy overrides the worker pool's post-shutdown
// scheduling policy. Default RejectCallerRuns.
func WithRejectionPolicy(p RejectionPolicy) Option {
	return func(c *Config) { c.Rejection = p }
}

func defaultConfig() Config {
	return Config{
		Workers:               8,
		Logger:                logging.Noop(),
		StabilityPollInterval: 250 * time.Millisecond,
		Rejection:             RejectCallerRuns,
	}
}
