package registry

import (
	"sync"

	"github.com/sunlightlinux/svcengine/pkg/svcname"
)

// Table is the container-owned map of canonical name to Registration. It
// is the only place registrations are added or removed; a Registration
// itself only ever mutates its own fields. Keys are svcname.Name's
// canonical string form, its equality key over the segment sequence.
type Table struct {
	mu     sync.Mutex
	byName map[string]*Registration
}

// NewTable creates an empty registration table.
func NewTable() *Table {
	return &Table{byName: make(map[string]*Registration)}
}

// GetOrCreate implements spec §4.1's get_or_create: atomically fetch or
// insert a registration for name, then bump its pendingInstallations —
// unless the existing entry already latched removed, in which case the
// stale entry is replaced with a fresh one and the caller proceeds
// against that.
func (t *Table) GetOrCreate(name svcname.Name) *Registration {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := name.String()
	reg, ok := t.byName[key]
	if !ok || reg.Removed() {
		reg = New(name)
		t.byName[key] = reg
	}
	reg.AddPendingInstallation()
	return reg
}

// EnsureExists returns the registration for name, creating a fresh one
// (replacing a latched-removed entry, same retry rule as GetOrCreate) but
// without bumping pending_installations — used when attaching a
// dependent to a required name, which does not itself install a
// provider.
func (t *Table) EnsureExists(name svcname.Name) *Registration {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := name.String()
	reg, ok := t.byName[key]
	if !ok || reg.Removed() {
		reg = New(name)
		t.byName[key] = reg
	}
	return reg
}

// Get returns the current registration for name, if any, without
// creating one.
func (t *Table) Get(name svcname.Name) (*Registration, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	reg, ok := t.byName[name.String()]
	return reg, ok
}

// Sweep removes registrations that have latched removed. The container
// calls this after operations that might have driven a registration to
// removed, keeping the table from growing unboundedly across repeated
// install/remove cycles.
func (t *Table) Sweep() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for name, reg := range t.byName {
		if reg.Removed() {
			delete(t.byName, name)
		}
	}
}

// All returns a snapshot of every registration, used by
// Container.ValueNames (spec §6 ServiceContainer.valueNames).
func (t *Table) All() []*Registration {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*Registration, 0, len(t.byName))
	for _, reg := range t.byName {
		out = append(out, reg)
	}
	return out
}
