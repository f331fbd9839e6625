package controller

import (
	"fmt"
	"sync"

	"github.com/sunlightlinux/svcengine/pkg/errs"
	"github.com/sunlightlinux/svcengine/pkg/valuecell"
)

// Service is the user-supplied lifecycle callback pair, treated as
// opaque per spec §1 — the container never inspects what start/stop
// actually do.
type Service interface {
	Start(ctx *StartContext)
	Stop(ctx *StopContext)
}

// lifecycleContext holds the shared idempotent-on-final-state machinery
// backing both StartContext and StopContext (spec §4.4).
type lifecycleContext struct {
	mu        sync.Mutex
	async     bool
	completed bool
	done      chan struct{}
	err       error // nil on success
	onDone    func(error)
}

func newLifecycleContext() *lifecycleContext {
	return &lifecycleContext{done: make(chan struct{})}
}

func (c *lifecycleContext) asynchronous() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.async = true
}

func (c *lifecycleContext) isAsync() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.async
}

func (c *lifecycleContext) isCompleted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.completed
}

// finish completes the context exactly once; a second call is a
// contract violation (spec §7's "calling complete() twice"). The first
// call invokes onDone, which may run on whatever goroutine called
// complete()/fail() — possibly long after the worker that ran
// Start/Stop has moved on.
func (c *lifecycleContext) finish(op, service string, err error) error {
	c.mu.Lock()
	if c.completed {
		c.mu.Unlock()
		return errs.ContractViolation(op, service, "lifecycle context already completed")
	}
	c.completed = true
	c.err = err
	close(c.done)
	onDone := c.onDone
	c.mu.Unlock()
	if onDone != nil {
		onDone(err)
	}
	return nil
}

// StartContext is passed to Service.Start. Per §4.4: asynchronous()
// defers completion to a later complete()/fail() call from any
// goroutine; without it, the worker thread's return implicitly
// completes (success on normal return, failure on panic).
type StartContext struct {
	lc      *lifecycleContext
	service string
	cells   map[string]*valuecell.Cell
}

// Asynchronous defers completion; the worker will not finish this
// transition until Complete or Fail is called.
func (c *StartContext) Asynchronous() { c.lc.asynchronous() }

// Complete signals a successful start.
func (c *StartContext) Complete() error {
	return c.lc.finish("complete", c.service, nil)
}

// Fail signals a failed start, storing reason as the controller's
// start_exception.
func (c *StartContext) Fail(reason error) error {
	if reason == nil {
		reason = errs.ContractViolation("fail", c.service, "nil failure reason")
	}
	return c.lc.finish("fail", c.service, reason)
}

// SetValue writes one of this service's provided values. Writing
// outside the STARTING/STOPPING window, or to a name this service does
// not provide, is a contract violation (spec §3, §7).
func (c *StartContext) SetValue(name string, v interface{}) error {
	return setCellValue(c.cells, c.service, name, v)
}

// StopContext is passed to Service.Stop. Stops cannot fail the
// lifecycle (spec §4.4/§7), so unlike StartContext it has no Fail: a
// panic in Stop is logged and the stop still completes.
type StopContext struct {
	lc      *lifecycleContext
	service string
	cells   map[string]*valuecell.Cell
}

// Asynchronous defers completion of the stop transition.
func (c *StopContext) Asynchronous() { c.lc.asynchronous() }

// Complete signals the stop finished (always treated as successful).
func (c *StopContext) Complete() error {
	return c.lc.finish("complete", c.service, nil)
}

// SetValue is available during STOPPING too, per §3's write window.
func (c *StopContext) SetValue(name string, v interface{}) error {
	return setCellValue(c.cells, c.service, name, v)
}

func setCellValue(cells map[string]*valuecell.Cell, service, name string, v interface{}) error {
	cell, ok := cells[name]
	if !ok {
		return errs.ContractViolation("set_value", service, fmt.Sprintf("service does not provide %q", name))
	}
	if !cell.Set(v) {
		return errs.ContractViolation("set_value", service, fmt.Sprintf("%q written outside the start/stop window", name))
	}
	return nil
}
