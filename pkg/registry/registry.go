// Package registry implements the per-name registration: the slot that
// mediates between at most one provider controller and the set of
// controllers that depend on it.
package registry

import (
	"sync"

	"github.com/sunlightlinux/svcengine/pkg/svcname"
)

// VisibleStatus answers the late-join visibility question from spec
// §4.3: what does a provider look like to a dependent attaching right
// now, even while its own transition fan-out is still draining.
type VisibleStatus struct {
	Failed      bool
	Unavailable bool
	Up          bool
}

// Provider is the callback surface a controller exposes so its
// Registration can query current visible status and forward buffered
// demand/dependent-count changes once a provider is bound.
type Provider interface {
	Name() string
	VisibleStatus() VisibleStatus
	AdjustDemand(delta int)
	AdjustRunningDependents(delta int)
}

// Dependent is the callback surface a controller exposes so registrations
// it depends on can deliver the dependents-task family of live
// notifications (spec §4.5) plus the initial status replay on attach.
// Each Deliver* method is a boundary-toggle edge, not a level signal: the
// receiver only reacts when its own bookkeeping actually crosses 0/1.
type Dependent interface {
	Name() string
	DeliverUnavailable(target string)
	DeliverAvailable(target string)
	DeliverStarted(target string)
	DeliverStopped(target string)
	DeliverFailed(target string)
	DeliverRetrying(target string)
	DeliverNewDependent(target string, status VisibleStatus)
}

// Registration is the per-name slot described in spec §3/§4.1. All
// mutation happens under mu, held for the duration of each operation;
// callers never see a partially-updated registration.
type Registration struct {
	mu sync.RWMutex

	name       svcname.Name
	provider   Provider
	committed  bool // provider installation has passed commitInstallation
	dependents map[string]Dependent

	demandedByCount        uint
	dependentsStartedCount uint
	pendingInstallations   uint
	removed                bool
}

// New creates a registration for name with no provider and no dependents.
func New(name svcname.Name) *Registration {
	return &Registration{name: name, dependents: make(map[string]Dependent)}
}

// Name returns the registration's canonical name string, the equality
// key svcname.Name defines over its segment sequence.
func (r *Registration) Name() string { return r.name.String() }

// Removed reports whether the registration has permanently latched
// removed (no provider, no dependents, no pending installations).
func (r *Registration) Removed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.removed
}

// AddPendingInstallation records that an install is in flight against
// this registration, called by Table.GetOrCreate.
func (r *Registration) AddPendingInstallation() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pendingInstallations++
}

// CancelPendingInstallation undoes AddPendingInstallation on rollback,
// before a provider was ever set.
func (r *Registration) CancelPendingInstallation() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pendingInstallations > 0 {
		r.pendingInstallations--
	}
	r.recomputeRemovedLocked()
}

// HasProvider reports whether a provider is currently bound, committed
// or not.
func (r *Registration) HasProvider() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.provider != nil
}

// SetProvider binds p as the sole provider. It fails with ok=false if a
// provider is already present (duplicate-provider, spec §4.1). On
// success it decrements pendingInstallations and replays any demand and
// dependent-started counts accumulated while no provider existed, so a
// late-arriving provider observes the same net state as if it had
// been first.
func (r *Registration) SetProvider(p Provider) (ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.provider != nil {
		return false
	}
	r.provider = p
	if r.pendingInstallations > 0 {
		r.pendingInstallations--
	}
	if r.demandedByCount > 0 {
		p.AdjustDemand(int(r.demandedByCount))
	}
	if r.dependentsStartedCount > 0 {
		p.AdjustRunningDependents(int(r.dependentsStartedCount))
	}
	return true
}

// Commit marks the bound provider's installation as complete: from this
// point AddDependent replays the provider's live VisibleStatus instead
// of treating it as not-yet-present.
func (r *Registration) Commit() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed = true
}

// ClearProvider removes p as provider, only if p is the current
// provider. demandedByCount/dependentsStartedCount are dependent-side
// bookkeeping (set by AddDemand/RemoveDemand/DependentStarted/
// DependentStopped from a dependent's own controller) and outlive
// whichever provider currently occupies the slot — clearing them here
// would drop live demand a still-attached dependent never re-asserts,
// so the next provider to install would never see it (spec §4.1's
// late-arrival replay in SetProvider). It latches removed if no
// dependents and no pending installations remain.
func (r *Registration) ClearProvider(p Provider) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.provider != p {
		return false
	}
	r.provider = nil
	r.committed = false
	r.recomputeRemovedLocked()
	return true
}

// AddDependent registers dep as depending on this registration. Per
// spec §4.1: if no committed provider is present, dep is synchronously
// told the registration is unavailable; otherwise it is replayed the
// provider's current visible status.
func (r *Registration) AddDependent(dep Dependent) {
	r.mu.Lock()
	r.dependents[dep.Name()] = dep
	provider, committed := r.provider, r.committed
	r.mu.Unlock()

	if provider == nil || !committed {
		dep.DeliverUnavailable(r.name.String())
		return
	}
	dep.DeliverNewDependent(r.name.String(), provider.VisibleStatus())
}

// RemoveDependent detaches dep. It latches removed if this was the last
// dependent and no provider or pending installation remains.
func (r *Registration) RemoveDependent(dep Dependent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.dependents, dep.Name())
	r.recomputeRemovedLocked()
}

// Dependents returns a snapshot of currently attached dependents. Fan-out
// tasks walk this snapshot, which is copied under the read lock so it
// stays coherent with concurrent Add/RemoveDependent.
func (r *Registration) Dependents() []Dependent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Dependent, 0, len(r.dependents))
	for _, d := range r.dependents {
		out = append(out, d)
	}
	return out
}

// AddDemand increments the demand count, forwarding to a bound provider
// or latching it in the registration for replay on SetProvider.
func (r *Registration) AddDemand() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.demandedByCount++
	if r.provider != nil {
		r.provider.AdjustDemand(1)
	}
}

// RemoveDemand decrements the demand count symmetrically to AddDemand.
func (r *Registration) RemoveDemand() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.demandedByCount > 0 {
		r.demandedByCount--
	}
	if r.provider != nil {
		r.provider.AdjustDemand(-1)
	}
}

// DependentStarted records that one of this registration's dependents
// reached UP, forwarding to the provider's running_dependents counter.
func (r *Registration) DependentStarted() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dependentsStartedCount++
	if r.provider != nil {
		r.provider.AdjustRunningDependents(1)
	}
}

// DependentStopped is the symmetric decrement to DependentStarted.
func (r *Registration) DependentStopped() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.dependentsStartedCount > 0 {
		r.dependentsStartedCount--
	}
	if r.provider != nil {
		r.provider.AdjustRunningDependents(-1)
	}
}

// Provider returns the bound provider, if one exists and its
// installation has committed. Used for value/controller lookups by name
// (spec §6's controllerOfValue).
func (r *Registration) Provider() (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.provider == nil || !r.committed {
		return nil, false
	}
	return r.provider, true
}

func (r *Registration) recomputeRemovedLocked() {
	r.removed = r.provider == nil && len(r.dependents) == 0 && r.pendingInstallations == 0
}
