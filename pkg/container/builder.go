package container

import (
	"bytes"
	"runtime"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/sunlightlinux/svcengine/pkg/controller"
	"github.com/sunlightlinux/svcengine/pkg/depend"
	"github.com/sunlightlinux/svcengine/pkg/errs"
	"github.com/sunlightlinux/svcengine/pkg/svcname"
)

type requireSpec struct {
	name svcname.Name
	kind depend.Kind
}

// Builder is the minimal external surface named in spec §6 — everything
// beyond requires/provides/instance/mode/addListener/install (the public
// fluent builder API proper) is explicitly out of the core's scope.
// Builder is not safe for concurrent use: it records the goroutine that
// created it and poisons itself, per spec §6's foreign-thread error, if
// touched from any other one (the original's ServiceBuilderImpl does the
// same with Thread identity). Fluent setters can't return an error
// without breaking the chain, so the poison is recorded and surfaced at
// Install.
type Builder struct {
	container *Container
	owner     uint64

	name      string
	requires  []requireSpec
	provides  []svcname.Name
	svc       controller.Service
	mode      controller.Mode
	listeners []controller.Listener

	installed bool
	poisoned  error
}

// NewBuilder starts a service definition against this container.
func (c *Container) NewBuilder() *Builder {
	return &Builder{container: c, mode: controller.Active, owner: currentGoroutineID()}
}

// touch is called from every mutating fluent method to enforce the
// single-goroutine-affinity contract; it returns false once the builder
// is poisoned, letting the caller skip the mutation.
func (b *Builder) touch() bool {
	if b.poisoned != nil {
		return false
	}
	if currentGoroutineID() != b.owner {
		b.poisoned = errs.ErrForeignThread
		return false
	}
	return true
}

// Requires declares one or more required names of the given link kind.
// Each name is parsed as a "/"-delimited svcname.Name (spec §3's
// ordered-segment identifier); a bare name is just a single segment.
func (b *Builder) Requires(kind depend.Kind, names ...string) *Builder {
	if !b.touch() {
		return b
	}
	for _, n := range names {
		b.requires = append(b.requires, requireSpec{name: svcname.Parse(n), kind: kind})
	}
	return b
}

// Provides declares one or more names this service provides, each
// parsed as a "/"-delimited svcname.Name.
func (b *Builder) Provides(names ...string) *Builder {
	if !b.touch() {
		return b
	}
	for _, n := range names {
		b.provides = append(b.provides, svcname.Parse(n))
	}
	return b
}

// Instance sets the user service callbacks.
func (b *Builder) Instance(svc controller.Service) *Builder {
	if !b.touch() {
		return b
	}
	b.svc = svc
	return b
}

// Mode sets the initial mode. Default ACTIVE.
func (b *Builder) Mode(m controller.Mode) *Builder {
	if !b.touch() {
		return b
	}
	b.mode = m
	return b
}

// Named overrides the diagnostic name used in logs and cycle-error
// paths, for aggregation services that provide nothing and so have no
// natural name of their own.
func (b *Builder) Named(name string) *Builder {
	if !b.touch() {
		return b
	}
	b.name = name
	return b
}

// AddListener registers a listener before install so it observes the
// service's very first transition out of NEW.
func (b *Builder) AddListener(l controller.Listener) *Builder {
	if !b.touch() {
		return b
	}
	b.listeners = append(b.listeners, l)
	return b
}

// Install commits the definition, per spec §4.6. A Builder can only be
// installed once, and only from the goroutine that created it.
func (b *Builder) Install() (*controller.Controller, error) {
	if !b.touch() {
		return nil, b.poisoned
	}
	return b.container.install(b)
}

// currentGoroutineID extracts the calling goroutine's ID from its own
// stack trace header ("goroutine 123 [running]:..."). Go deliberately
// exposes no public API for this; parsing runtime.Stack's own output is
// the standard workaround when goroutine affinity genuinely needs
// checking, as it does here.
func currentGoroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	field := bytes.Fields(buf[:n])
	if len(field) < 2 {
		return 0
	}
	id, _ := strconv.ParseUint(string(field[1]), 10, 64)
	return id
}

func (b *Builder) diagName() string {
	if b.name != "" {
		return b.name
	}
	if len(b.provides) > 0 {
		names := make([]string, len(b.provides))
		for i, n := range b.provides {
			names[i] = n.String()
		}
		return strings.Join(names, "+")
	}
	return "aggregation-" + uuid.New().String()[:8]
}
