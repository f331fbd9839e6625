package controller

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/sunlightlinux/svcengine/pkg/depend"
	"github.com/sunlightlinux/svcengine/pkg/errs"
	"github.com/sunlightlinux/svcengine/pkg/logging"
	"github.com/sunlightlinux/svcengine/pkg/registry"
	"github.com/sunlightlinux/svcengine/pkg/valuecell"
)

// provided pairs a registration this controller owns with the cell its
// service writes into during start/stop.
type provided struct {
	reg  *registry.Registration
	cell *valuecell.Cell
}

// Controller is the per-service state machine: the hardest piece of the
// engine. It fuses a substate with the counters that summarize the
// surrounding dependency graph, translates concurrent neighbor
// notifications into at most one legal transition at a time, and issues
// matching fan-out in response.
//
// Every field below is touched only while mu is held; the one exception
// is the immutable identity (id, name, svc, sched, logger), safe to read
// without the lock.
type Controller struct {
	mu sync.Mutex

	id     uuid.UUID
	name   string
	svc    Service
	sched  Scheduler
	logger *logging.Logger

	mode      Mode
	state     Substate
	committed bool

	requires map[string]*depend.Link
	provides map[string]*provided

	unavailableDeps      uint
	stoppingDeps         uint
	runningDependents    uint
	demandedByCount      uint
	failCount            uint
	dependenciesDemanded bool
	startErr             error

	asyncTasks int

	listeners    []Listener
	pendingEvent *Event

	stability StabilityTracker
}

// StabilityTracker receives +1/-1 as a controller leaves/re-enters rest
// with no pending fan-out (spec §4.6's unstable_services counter). The
// container implements this; tests may leave it nil.
type StabilityTracker interface {
	Adjust(delta int)
}

// SetStabilityTracker wires the container's stability counter. Called
// once, before Commit, by whatever assembles the controller.
func (c *Controller) SetStabilityTracker(t StabilityTracker) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stability = t
}

func (c *Controller) isUnstableLocked() bool {
	return !c.state.IsRest() || c.asyncTasks != 0
}

// withLock runs fn under mu, diffs stability before/after, notifies the
// tracker on any change, and dispatches whatever task closures fn
// produced — all after releasing mu, so scheduled work (even under an
// inline scheduler) never re-enters this lock reentrantly.
func (c *Controller) withLock(fn func() []func()) {
	c.mu.Lock()
	before := c.isUnstableLocked()
	tasks := fn()
	after := c.isUnstableLocked()
	c.mu.Unlock()

	if before != after && c.stability != nil {
		if after {
			c.stability.Adjust(1)
		} else {
			c.stability.Adjust(-1)
		}
	}
	c.dispatch(tasks)
}

// NewController creates a controller in substate NEW. It has no
// requires/provides yet; the container wires those with AddRequire and
// AddProvide before calling Commit, which drives it out of NEW.
func NewController(name string, svc Service, mode Mode, sched Scheduler, logger *logging.Logger) *Controller {
	if sched == nil {
		sched = InlineScheduler{}
	}
	if logger == nil {
		logger = logging.Noop()
	}
	return &Controller{
		id:       uuid.New(),
		name:     name,
		svc:      svc,
		mode:     mode,
		sched:    sched,
		logger:   logger,
		state:    New,
		requires: make(map[string]*depend.Link),
		provides: make(map[string]*provided),
	}
}

func (c *Controller) ID() uuid.UUID { return c.id }
func (c *Controller) Name() string  { return c.name }

// AddRequire wires a dependency link, pre-commit only. stopping_dependencies
// is initialized here, one increment per link, so it already reads
// requires.size() by the time the container starts attaching this
// controller as a dependent (spec §3).
func (c *Controller) AddRequire(link *depend.Link) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requires[link.TargetName()] = link
	c.stoppingDeps++
}

// AddProvide wires a provided registration, pre-commit only, and returns
// the value cell this controller's service will write into.
func (c *Controller) AddProvide(reg *registry.Registration) *valuecell.Cell {
	c.mu.Lock()
	defer c.mu.Unlock()
	cell := valuecell.New()
	c.provides[reg.Name()] = &provided{reg: reg, cell: cell}
	return cell
}

// Commit marks installation complete and drives the controller out of
// NEW. Called by the container after every registration has been wired
// and cycle detection has passed.
func (c *Controller) Commit() {
	c.withLock(func() []func() {
		c.committed = true
		for _, p := range c.provides {
			p.reg.Commit()
		}
		return c.settleLocked()
	})
}

// Rollback forces the controller through REMOVING/REMOVED without ever
// having committed, per spec §4.6's rollback-on-installation-exception
// path: mode is pinned to REMOVE and the remove task runs immediately.
func (c *Controller) Rollback() {
	c.withLock(func() []func() {
		c.mode = Remove
		c.committed = true
		c.state = Down
		tasks := c.enterLocked(Removing)
		return append(tasks, c.settleLocked()...)
	})
}

// State returns the current substate.
func (c *Controller) State() Substate {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Mode returns the current mode.
func (c *Controller) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// SetMode changes the controller's mode. REMOVE is terminal: once set,
// further calls are no-ops. Setting the current mode is idempotent and
// returns true without a transition (spec §8).
func (c *Controller) SetMode(m Mode) bool {
	c.withLock(func() []func() {
		if c.mode == Remove || c.mode == m {
			return nil
		}
		c.mode = m
		return c.settleLocked()
	})
	return true
}

// Retry clears a stored start failure and re-enters the selector from
// DOWN. Spec §9 leaves the exact re-entry edge an open question; this
// resolves it as an explicit action rather than an automatic timer.
func (c *Controller) Retry() error {
	c.mu.Lock()
	if c.state != StartFailed {
		c.mu.Unlock()
		return errs.ContractViolation("retry", c.name, "controller is not in START_FAILED")
	}
	c.mu.Unlock()

	c.withLock(func() []func() {
		if c.state != StartFailed {
			return nil
		}
		c.startErr = nil
		tasks := c.enterLocked(Down)
		return append(tasks, c.settleLocked()...)
	})
	return nil
}

// Requires returns the names this controller depends on.
func (c *Controller) Requires() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.requires))
	for name := range c.requires {
		out = append(out, name)
	}
	return out
}

// Provides returns the names this controller provides.
func (c *Controller) Provides() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.provides))
	for name := range c.provides {
		out = append(out, name)
	}
	return out
}

// Missing returns the currently-unavailable required names (spec §6).
func (c *Controller) Missing() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for name, l := range c.requires {
		if l.IsUnavailable() {
			out = append(out, name)
		}
	}
	return out
}

// Reason returns the last start failure, or nil.
func (c *Controller) Reason() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.startErr
}

// ProvidedRegistrations returns the registrations this controller
// provides, for the container's install-time cycle detection.
func (c *Controller) ProvidedRegistrations() []*registry.Registration {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*registry.Registration, 0, len(c.provides))
	for _, p := range c.provides {
		out = append(out, p.reg)
	}
	return out
}

// Value returns the current value of a name this controller provides.
func (c *Controller) Value(name string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.provides[name]
	if !ok {
		return nil, false
	}
	return p.cell.Get()
}

// AddListener registers l. A controller already at rest immediately
// replays one synthetic event for its current state (spec §6), so
// subscription order never loses the steady state.
func (c *Controller) AddListener(l Listener) {
	c.mu.Lock()
	c.listeners = append(c.listeners, l)
	var replay func()
	if ev, ok := restEventFor(c.state); ok {
		name := c.name
		replay = func() { l.ServiceEvent(name, ev) }
	}
	c.mu.Unlock()
	if replay != nil {
		c.sched.Schedule(replay)
	}
}

// RemoveListener detaches l. Listener implementations backed by
// incomparable dynamic types (e.g. ListenerFunc) can never equal a
// previously stored value under ==, which panics rather than returning
// false for such types; safeEqualListener recovers from that so removal
// degrades to a no-op instead of crashing the caller.
func (c *Controller) RemoveListener(l Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	kept := c.listeners[:0]
	for _, existing := range c.listeners {
		if !safeEqualListener(existing, l) {
			kept = append(kept, existing)
		}
	}
	c.listeners = kept
}

func safeEqualListener(a, b Listener) (eq bool) {
	defer func() { recover() }()
	return a == b
}

// registry.Provider implementation -----------------------------------

func (c *Controller) VisibleStatus() registry.VisibleStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return computeVisible(c.state)
}

func (c *Controller) AdjustDemand(delta int) {
	c.withLock(func() []func() {
		c.demandedByCount = addClamped(c.demandedByCount, delta)
		return c.settleLocked()
	})
}

func (c *Controller) AdjustRunningDependents(delta int) {
	c.withLock(func() []func() {
		c.runningDependents = addClamped(c.runningDependents, delta)
		return c.settleLocked()
	})
}

func addClamped(v uint, delta int) uint {
	if delta > 0 {
		return v + uint(delta)
	}
	d := uint(-delta)
	if d > v {
		return 0
	}
	return v - d
}

// registry.Dependent implementation -----------------------------------

func (c *Controller) DeliverUnavailable(target string) {
	c.applyDelivery(target, func(l *depend.Link) {
		if l.MarkUnavailable(true) {
			c.unavailableDeps++
		}
		if l.MarkUp(false) {
			c.stoppingDeps++
		}
	})
}

func (c *Controller) DeliverAvailable(target string) {
	c.applyDelivery(target, func(l *depend.Link) {
		if l.MarkUnavailable(false) && c.unavailableDeps > 0 {
			c.unavailableDeps--
		}
	})
}

func (c *Controller) DeliverStarted(target string) {
	c.applyDelivery(target, func(l *depend.Link) {
		if l.MarkUp(true) && c.stoppingDeps > 0 {
			c.stoppingDeps--
		}
	})
}

func (c *Controller) DeliverStopped(target string) {
	c.applyDelivery(target, func(l *depend.Link) {
		if l.MarkUp(false) {
			c.stoppingDeps++
		}
	})
}

func (c *Controller) DeliverFailed(target string) {
	c.applyDelivery(target, func(l *depend.Link) {
		if l.MarkFailed(true) {
			c.failCount++
		}
		if l.MarkUp(false) {
			c.stoppingDeps++
		}
	})
}

func (c *Controller) DeliverRetrying(target string) {
	c.applyDelivery(target, func(l *depend.Link) {
		if l.MarkFailed(false) && c.failCount > 0 {
			c.failCount--
		}
	})
}

func (c *Controller) DeliverNewDependent(target string, status registry.VisibleStatus) {
	c.applyDelivery(target, func(l *depend.Link) {
		if status.Unavailable {
			if l.MarkUnavailable(true) {
				c.unavailableDeps++
			}
			if l.MarkUp(false) {
				c.stoppingDeps++
			}
		}
		if status.Failed {
			if l.MarkFailed(true) {
				c.failCount++
			}
			if l.MarkUp(false) {
				c.stoppingDeps++
			}
		}
		if status.Up && l.MarkUp(true) && c.stoppingDeps > 0 {
			c.stoppingDeps--
		}
	})
}

func (c *Controller) applyDelivery(target string, mutate func(*depend.Link)) {
	c.withLock(func() []func() {
		if link, ok := c.requires[target]; ok {
			mutate(link)
		}
		return c.settleLocked()
	})
}

// Transition selection -------------------------------------------------

func (c *Controller) shouldStart() bool {
	switch c.mode {
	case Active:
		return true
	case Passive:
		return c.stoppingDeps == 0
	case OnDemand, Lazy:
		return c.demandedByCount > 0
	default: // Never, Remove
		return false
	}
}

func (c *Controller) shouldStop() bool {
	return c.mode == Remove || c.mode == Never || (c.mode == OnDemand && c.demandedByCount == 0)
}

func (c *Controller) desiredDemand() bool {
	switch c.mode {
	case Active:
		return true
	case OnDemand, Passive:
		return c.demandedByCount > 0
	case Lazy:
		return c.state == Up || c.demandedByCount > 0
	default: // Never, Remove
		return false
	}
}

// selectTransition is the pure function of (state, mode, counters,
// start_exception) from spec §4.2, called only while mu is held.
func (c *Controller) selectTransition() (Substate, bool) {
	switch c.state {
	case New:
		if !c.committed {
			return 0, false
		}
		return Down, true
	case Down:
		if c.mode == Remove {
			return Removing, true
		}
		if c.shouldStart() {
			if c.unavailableDeps > 0 || c.failCount > 0 {
				return Problem, true
			}
			if c.stoppingDeps == 0 {
				return StartRequested, true
			}
		}
		return 0, false
	case Problem:
		if !c.shouldStart() || (c.unavailableDeps == 0 && c.failCount == 0) {
			return Down, true
		}
		return 0, false
	case StartRequested:
		if c.shouldStart() && c.stoppingDeps == 0 {
			return Starting, true
		}
		return Down, true
	case Up:
		if c.shouldStop() || c.stoppingDeps > 0 {
			return StopRequested, true
		}
		return 0, false
	case StopRequested:
		if c.shouldStart() && c.stoppingDeps == 0 {
			return Up, true
		}
		if c.runningDependents == 0 {
			return Stopping, true
		}
		return 0, false
	case StartFailed:
		if c.stoppingDeps > 0 {
			return Down, true
		}
		return 0, false
	case Removing:
		return Removed, true
	default: // Starting, Stopping, Removed: resolved externally or terminal
		return 0, false
	}
}

// settleLocked drains the transition loop from spec §4.2: reconcile
// demand, then either select and enter the next transition or, once
// idle, flush the postponed listener event. It stops the instant a
// transition schedules async work, returning whatever task closures were
// produced so the caller can dispatch them after releasing mu.
func (c *Controller) settleLocked() []func() {
	var tasks []func()
	for {
		if t, changed := c.reconcileDemandLocked(); changed {
			tasks = append(tasks, t)
		}
		if c.asyncTasks != 0 {
			return tasks
		}
		next, ok := c.selectTransition()
		if !ok {
			if c.pendingEvent != nil {
				tasks = append(tasks, c.flushEventLocked())
			}
			return tasks
		}
		tasks = append(tasks, c.enterLocked(next)...)
	}
}

func (c *Controller) reconcileDemandLocked() (func(), bool) {
	want := c.desiredDemand()
	if want == c.dependenciesDemanded {
		return nil, false
	}
	c.dependenciesDemanded = want
	c.asyncTasks++
	return c.demandTask(want), true
}

func (c *Controller) flushEventLocked() func() {
	ev := *c.pendingEvent
	c.pendingEvent = nil
	listeners := append([]Listener(nil), c.listeners...)
	name := c.name
	return func() {
		for _, l := range listeners {
			l.ServiceEvent(name, ev)
		}
	}
}

// enterLocked applies the transition to next, diffs late-join visibility
// and dependent-span membership against the previous substate to decide
// which fan-out families fire, and returns their task closures.
func (c *Controller) enterLocked(next Substate) []func() {
	prev := c.state
	c.state = next
	c.logger.Transition(c.name, prev.String(), next.String(), c.id.String())

	var tasks []func()

	oldVis, newVis := computeVisible(prev), computeVisible(next)
	if oldVis.Up != newVis.Up {
		c.asyncTasks++
		tasks = append(tasks, c.visibilityTask(visUp, newVis.Up))
	}
	if oldVis.Unavailable != newVis.Unavailable {
		c.asyncTasks++
		tasks = append(tasks, c.visibilityTask(visUnavailable, newVis.Unavailable))
	}
	if oldVis.Failed != newVis.Failed {
		c.asyncTasks++
		tasks = append(tasks, c.visibilityTask(visFailed, newVis.Failed))
	}

	prevSpan := prev == Up || prev == StopRequested
	nextSpan := next == Up || next == StopRequested
	if prevSpan != nextSpan {
		c.asyncTasks++
		tasks = append(tasks, c.dependentSpanTask(nextSpan))
	}

	if ev, ok := restEventFor(next); ok {
		c.pendingEvent = &ev
	}

	switch next {
	case Starting:
		c.startErr = nil
		c.asyncTasks++
		tasks = append(tasks, c.startTask())
	case Stopping:
		c.asyncTasks++
		tasks = append(tasks, c.stopTask())
	case Removing:
		c.asyncTasks++
		tasks = append(tasks, c.removeTask())
	case Up:
		c.logger.ServiceStarted(c.name, c.id.String())
	case StartFailed:
		c.logger.ServiceFailed(c.name, c.startErr, c.id.String())
	case Down:
		if prev == Stopping {
			c.logger.ServiceStopped(c.name, c.id.String())
		}
	}

	return tasks
}

func computeVisible(s Substate) registry.VisibleStatus {
	switch s {
	case Up, StopRequested:
		return registry.VisibleStatus{Up: true}
	case StartFailed:
		return registry.VisibleStatus{Failed: true}
	case New, Problem, Removing, Removed, Down, StartRequested:
		return registry.VisibleStatus{Unavailable: true}
	default: // Starting, Stopping: no visible flag settles mid-flight
		return registry.VisibleStatus{}
	}
}

// dispatch hands task closures to the scheduler. Each closure is fully
// self-contained: it does its work and, if it consumed one of the
// asyncTasks units, ends by calling taskCompleted itself.
func (c *Controller) dispatch(tasks []func()) {
	for _, t := range tasks {
		c.sched.Schedule(t)
	}
}

// taskCompleted is the epilogue every asyncTasks-consuming closure calls
// on completion: release its unit, re-run the selector, and dispatch
// whatever it produces.
func (c *Controller) taskCompleted() {
	c.withLock(func() []func() {
		if c.asyncTasks > 0 {
			c.asyncTasks--
		}
		return c.settleLocked()
	})
}

// Fan-out task families (spec §4.5) ------------------------------------

type visKind uint8

const (
	visUp visKind = iota
	visUnavailable
	visFailed
)

// visibilityTask is family 2, the dependents tasks: walk every provides
// registration's dependents and deliver the diffed edge.
func (c *Controller) visibilityTask(kind visKind, want bool) func() {
	regs := make([]*registry.Registration, 0, len(c.provides))
	for _, p := range c.provides {
		regs = append(regs, p.reg)
	}
	name := c.name
	logger, id := c.logger, c.id
	return func() {
		logger.FanOutBatch("visibility", name, len(regs), want, id.String())
		for _, reg := range regs {
			// Dependents key their links by the required registration's
			// name, so deliver under that name, not this controller's.
			target := reg.Name()
			for _, dep := range reg.Dependents() {
				switch kind {
				case visUp:
					if want {
						dep.DeliverStarted(target)
					} else {
						dep.DeliverStopped(target)
					}
				case visUnavailable:
					if want {
						dep.DeliverUnavailable(target)
					} else {
						dep.DeliverAvailable(target)
					}
				case visFailed:
					if want {
						dep.DeliverFailed(target)
					} else {
						dep.DeliverRetrying(target)
					}
				}
			}
		}
		c.taskCompleted()
	}
}

// dependentSpanTask is family 1's DependentStarted/DependentStopped:
// inform every required registration whether this controller now
// occupies the UP..STOP_REQUESTED span.
func (c *Controller) dependentSpanTask(want bool) func() {
	targets := make([]*registry.Registration, 0, len(c.requires))
	for _, l := range c.requires {
		targets = append(targets, l.Target)
	}
	name := c.name
	logger, id := c.logger, c.id
	return func() {
		logger.FanOutBatch("dependent-span", name, len(targets), want, id.String())
		for _, t := range targets {
			if want {
				t.DependentStarted()
			} else {
				t.DependentStopped()
			}
		}
		c.taskCompleted()
	}
}

// demandTask is family 1's Demand/Undemand.
func (c *Controller) demandTask(want bool) func() {
	targets := make([]*registry.Registration, 0, len(c.requires))
	for _, l := range c.requires {
		targets = append(targets, l.Target)
	}
	name := c.name
	logger, id := c.logger, c.id
	return func() {
		logger.FanOutBatch("demand", name, len(targets), want, id.String())
		for _, t := range targets {
			if want {
				t.AddDemand()
			} else {
				t.RemoveDemand()
			}
		}
		c.taskCompleted()
	}
}

func (c *Controller) cellsSnapshot() map[string]*valuecell.Cell {
	out := make(map[string]*valuecell.Cell, len(c.provides))
	for name, p := range c.provides {
		out[name] = p.cell
	}
	return out
}

// startTask runs Service.Start on the scheduler, outside every container
// lock (spec §4.4).
func (c *Controller) startTask() func() {
	cells := c.cellsSnapshot()
	svc, name := c.svc, c.name
	return func() {
		for _, cell := range cells {
			cell.OpenForWrite()
		}
		lc := newLifecycleContext()
		lc.onDone = func(err error) { c.finishStart(err) }
		ctx := &StartContext{lc: lc, service: name, cells: cells}
		func() {
			defer func() {
				if r := recover(); r != nil {
					lc.finish("start", name, fmt.Errorf("panic: %v", r))
				}
			}()
			svc.Start(ctx)
		}()
		if !lc.isAsync() && !lc.isCompleted() {
			lc.finish("start", name, nil)
		}
	}
}

// finishStart runs once, whenever the start lifecycle actually
// completes — synchronously right after Start returns, or later from an
// arbitrary goroutine via ctx.Complete()/ctx.Fail() after ctx.Asynchronous().
func (c *Controller) finishStart(cause error) {
	c.withLock(func() []func() {
		if cause == nil {
			for _, p := range c.provides {
				if !p.cell.Defined() {
					cause = fmt.Errorf("provided value %q not set", p.reg.Name())
					break
				}
			}
		}
		if cause != nil {
			c.startErr = errs.StartFailure(c.name, cause)
			for _, p := range c.provides {
				p.cell.Clear()
			}
		}
		for _, p := range c.provides {
			p.cell.CloseForWrite()
		}
		if c.asyncTasks > 0 {
			c.asyncTasks--
		}
		var tasks []func()
		if cause != nil {
			tasks = c.enterLocked(StartFailed)
		} else {
			tasks = c.enterLocked(Up)
		}
		return append(tasks, c.settleLocked()...)
	})
}

// stopTask runs Service.Stop. A stop can never fail the lifecycle; a
// panic in Stop is only logged (spec §4.4/§7).
func (c *Controller) stopTask() func() {
	cells := c.cellsSnapshot()
	svc, name := c.svc, c.name
	return func() {
		for _, cell := range cells {
			cell.OpenForWrite()
		}
		lc := newLifecycleContext()
		lc.onDone = func(err error) { c.finishStop(err) }
		ctx := &StopContext{lc: lc, service: name, cells: cells}
		func() {
			defer func() {
				if r := recover(); r != nil {
					lc.finish("stop", name, fmt.Errorf("panic: %v", r))
				}
			}()
			svc.Stop(ctx)
		}()
		if !lc.isAsync() && !lc.isCompleted() {
			lc.finish("stop", name, nil)
		}
	}
}

func (c *Controller) finishStop(cause error) {
	c.withLock(func() []func() {
		if cause != nil {
			c.logger.Error("service reported an error while stopping",
				"service", c.name, "error", errs.StopFailure(c.name, cause))
		}
		for _, p := range c.provides {
			p.cell.Clear()
			p.cell.CloseForWrite()
		}
		if c.asyncTasks > 0 {
			c.asyncTasks--
		}
		tasks := c.enterLocked(Down)
		return append(tasks, c.settleLocked()...)
	})
}

// removeTask detaches this controller from every registration it
// touches: clears its provided registrations and removes it as a
// dependent of everything it requires.
func (c *Controller) removeTask() func() {
	provides := make([]*provided, 0, len(c.provides))
	for _, p := range c.provides {
		provides = append(provides, p)
	}
	links := make([]*depend.Link, 0, len(c.requires))
	for _, l := range c.requires {
		links = append(links, l)
	}
	self := c
	return func() {
		for _, p := range provides {
			p.cell.Clear()
			p.reg.ClearProvider(self)
		}
		for _, l := range links {
			l.Target.RemoveDependent(self)
		}
		self.taskCompleted()
	}
}
