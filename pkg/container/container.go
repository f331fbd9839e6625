// Package container implements the orchestrator: the global registry,
// worker pool, stability tracker, install/shutdown flow, and install-time
// cycle detection described in spec §4.6.
package container

import (
	"sync"
	"time"

	"github.com/sunlightlinux/svcengine/pkg/controller"
	"github.com/sunlightlinux/svcengine/pkg/depend"
	"github.com/sunlightlinux/svcengine/pkg/errs"
	"github.com/sunlightlinux/svcengine/pkg/logging"
	"github.com/sunlightlinux/svcengine/pkg/registry"
	"github.com/sunlightlinux/svcengine/pkg/svcname"
)

// Container owns the registry map exclusively (spec §3's ownership
// rule): it is the only place registrations are created or dropped.
type Container struct {
	mu   sync.Mutex
	cond *sync.Cond

	table  *registry.Table
	pool   *Pool
	logger *logging.Logger

	stabilityPollInterval time.Duration

	unstable    int
	controllers []*controller.Controller

	down             bool
	shutdownComplete bool
	done             chan struct{}
}

// New creates a container with an empty registry and a running worker
// pool.
func New(opts ...Option) *Container {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	c := &Container{
		table:                 registry.NewTable(),
		pool:                  NewPool(cfg.Workers, cfg.Rejection),
		logger:                cfg.Logger,
		stabilityPollInterval: cfg.StabilityPollInterval,
		done:                  make(chan struct{}),
	}
	c.cond = sync.NewCond(&c.mu)
	return c
}

// install implements spec §4.6's install(builder): get-or-create every
// provided registration, construct and wire the controller, run cycle
// detection, and finally commit — all serialized against Shutdown by the
// container's own lock at the points that touch shared registry state.
func (c *Container) install(b *Builder) (*controller.Controller, error) {
	if b.installed {
		return nil, errs.ErrAlreadyInstalled
	}
	b.installed = true
	if b.svc == nil {
		return nil, errs.ErrNilArgument
	}

	provided := make(map[string]bool, len(b.provides))
	for _, name := range b.provides {
		provided[name.String()] = true
	}
	for _, r := range b.requires {
		if provided[r.name.String()] {
			return nil, errs.RequireAndProvide(r.name.String())
		}
	}

	// The whole bind-into-registry sequence below runs under the
	// container's own lock, matching the original's
	// ServiceContainerImpl.install: it must serialize against Shutdown's
	// controllers snapshot, or a controller could still be binding
	// providers when Shutdown walks past it, leaving it out of the
	// REMOVED countdown and letting finishShutdown close the pool while
	// it's still alive. Commit() is deliberately called after Unlock, not
	// before: it can synchronously settle a controller straight to a
	// rest substate and report that back through Adjust, which itself
	// locks c.mu and would deadlock if called while still held here.
	c.mu.Lock()
	if c.down {
		c.mu.Unlock()
		return nil, errs.ContractViolation("install", b.diagName(), "container is shut down")
	}

	ctl := controller.NewController(b.diagName(), b.svc, b.mode, c.pool, c.logger)
	for _, l := range b.listeners {
		ctl.AddListener(l)
	}
	ctl.SetStabilityTracker(c)
	// Every controller sweeps latched-removed registrations out of the
	// table on its own way out, not just at container Shutdown: a
	// service can be individually driven to REMOVE via SetMode outside a
	// full shutdown, and without this the table would grow unboundedly
	// across repeated install/remove cycles.
	ctl.AddListener(controller.ListenerFunc(func(_ string, ev controller.Event) {
		if ev == controller.EventRemoved {
			c.table.Sweep()
		}
	}))
	// A controller is born in NEW, a non-rest state, before it has ever
	// gone through Controller.withLock's own before/after diff — seed
	// the counter directly, since c.mu is already held here and Adjust
	// would deadlock trying to lock it again.
	c.unstable++

	var bound []*registry.Registration
	rollback := func() {
		for _, reg := range bound {
			reg.ClearProvider(ctl)
		}
		ctl.Rollback()
	}

	for _, name := range b.provides {
		reg := c.table.GetOrCreate(name)
		if !reg.SetProvider(ctl) {
			reg.CancelPendingInstallation()
			rollback()
			c.mu.Unlock()
			return nil, errs.DuplicateProvider(name.String())
		}
		bound = append(bound, reg)
		ctl.AddProvide(reg)
	}

	for _, r := range b.requires {
		reg := c.table.EnsureExists(r.name)
		ctl.AddRequire(depend.New(reg, r.kind))
		reg.AddDependent(ctl)
	}

	if cyclePath := detectCycle(ctl); cyclePath != nil {
		rollback()
		c.mu.Unlock()
		return nil, errs.NewCycle(cyclePath)
	}

	c.controllers = append(c.controllers, ctl)
	c.mu.Unlock()

	ctl.Commit()
	return ctl, nil
}

// Shutdown is monotonic (spec §4.6): it marks the container down, then
// drives every installed controller's mode to REMOVE. Once the last one
// reaches REMOVED the worker pool is retired.
func (c *Container) Shutdown() {
	c.mu.Lock()
	if c.down {
		c.mu.Unlock()
		return
	}
	c.down = true
	controllers := append([]*controller.Controller(nil), c.controllers...)
	c.mu.Unlock()

	if len(controllers) == 0 {
		c.finishShutdown()
		return
	}

	var pending sync.WaitGroup
	pending.Add(len(controllers))
	for _, ctl := range controllers {
		ctl.AddListener(controller.ListenerFunc(func(name string, ev controller.Event) {
			if ev == controller.EventRemoved {
				pending.Done()
			}
		}))
		ctl.SetMode(controller.Remove)
	}

	go func() {
		pending.Wait()
		c.finishShutdown()
	}()
}

func (c *Container) finishShutdown() {
	c.mu.Lock()
	c.shutdownComplete = true
	c.mu.Unlock()
	close(c.done)
	c.pool.Shutdown()
}

// IsShutdown reports whether Shutdown has been called.
func (c *Container) IsShutdown() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.down
}

// IsShutdownComplete reports whether every controller has reached
// REMOVED.
func (c *Container) IsShutdownComplete() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.shutdownComplete
}

// ControllerOfValue looks up the committed provider controller for name,
// per spec §6.
func (c *Container) ControllerOfValue(name string) (*controller.Controller, bool) {
	reg, ok := c.table.Get(svcname.Parse(name))
	if !ok {
		return nil, false
	}
	p, ok := reg.Provider()
	if !ok {
		return nil, false
	}
	ctl, ok := p.(*controller.Controller)
	return ctl, ok
}

// ValueNames enumerates every name currently backed by a provider.
func (c *Container) ValueNames() []string {
	var out []string
	for _, reg := range c.table.All() {
		if reg.HasProvider() {
			out = append(out, reg.Name())
		}
	}
	return out
}
