package registry

import (
	"testing"

	"github.com/sunlightlinux/svcengine/pkg/svcname"
)

type fakeProvider struct {
	name    string
	status  VisibleStatus
	demand  int
	running int
}

func (p *fakeProvider) Name() string                 { return p.name }
func (p *fakeProvider) VisibleStatus() VisibleStatus  { return p.status }
func (p *fakeProvider) AdjustDemand(delta int)        { p.demand += delta }
func (p *fakeProvider) AdjustRunningDependents(d int) { p.running += d }

type fakeDependent struct {
	name        string
	unavailable int
	available   int
	started     int
	stopped     int
	failed      int
	retrying    int
	replayed    []VisibleStatus
}

func (d *fakeDependent) Name() string                    { return d.name }
func (d *fakeDependent) DeliverUnavailable(string)       { d.unavailable++ }
func (d *fakeDependent) DeliverAvailable(string)         { d.available++ }
func (d *fakeDependent) DeliverStarted(string)           { d.started++ }
func (d *fakeDependent) DeliverStopped(string)           { d.stopped++ }
func (d *fakeDependent) DeliverFailed(string)            { d.failed++ }
func (d *fakeDependent) DeliverRetrying(string)          { d.retrying++ }
func (d *fakeDependent) DeliverNewDependent(_ string, s VisibleStatus) {
	d.replayed = append(d.replayed, s)
}

func TestRegistration_AddDependentBeforeProviderDeliversUnavailable(t *testing.T) {
	r := New(svcname.Of("db"))
	dep := &fakeDependent{name: "api"}
	r.AddDependent(dep)

	if dep.unavailable != 1 {
		t.Fatalf("unavailable = %d, want 1", dep.unavailable)
	}
}

func TestRegistration_AddDependentAfterCommitReplaysStatus(t *testing.T) {
	r := New(svcname.Of("db"))
	p := &fakeProvider{name: "database", status: VisibleStatus{Up: true}}
	if !r.SetProvider(p) {
		t.Fatalf("SetProvider failed")
	}
	r.Commit()

	dep := &fakeDependent{name: "api"}
	r.AddDependent(dep)

	if len(dep.replayed) != 1 || !dep.replayed[0].Up {
		t.Fatalf("replayed = %+v, want one Up status", dep.replayed)
	}
}

func TestRegistration_SetProviderRejectsDuplicate(t *testing.T) {
	r := New(svcname.Of("db"))
	r.SetProvider(&fakeProvider{name: "first"})
	if r.SetProvider(&fakeProvider{name: "second"}) {
		t.Fatalf("SetProvider should reject a second provider")
	}
}

func TestRegistration_DemandLatchesUntilProviderBound(t *testing.T) {
	r := New(svcname.Of("cache"))
	r.AddDemand()
	r.AddDemand()

	p := &fakeProvider{name: "cache-svc"}
	r.SetProvider(p)

	if p.demand != 2 {
		t.Fatalf("demand replayed to late provider = %d, want 2", p.demand)
	}

	r.AddDemand()
	if p.demand != 3 {
		t.Fatalf("demand after bind = %d, want 3", p.demand)
	}
}

func TestRegistration_ClearProviderLatchesRemovedWhenIdle(t *testing.T) {
	r := New(svcname.Of("db"))
	p := &fakeProvider{name: "database"}
	r.SetProvider(p)
	r.Commit()

	if !r.ClearProvider(p) {
		t.Fatalf("ClearProvider should succeed for the current provider")
	}
	if !r.Removed() {
		t.Fatalf("registration should latch removed with no provider or dependents")
	}
}

func TestRegistration_ClearProviderRejectsWrongProvider(t *testing.T) {
	r := New(svcname.Of("db"))
	p := &fakeProvider{name: "database"}
	r.SetProvider(p)

	if r.ClearProvider(&fakeProvider{name: "impostor"}) {
		t.Fatalf("ClearProvider should reject a provider that isn't bound")
	}
}

func TestRegistration_DemandSurvivesProviderReplacement(t *testing.T) {
	r := New(svcname.Of("cache"))
	first := &fakeProvider{name: "cache-v1"}
	r.SetProvider(first)
	r.Commit()

	dep := &fakeDependent{name: "api"}
	r.AddDependent(dep)
	r.AddDemand()
	if first.demand != 1 {
		t.Fatalf("demand on first provider = %d, want 1", first.demand)
	}

	if !r.ClearProvider(first) {
		t.Fatalf("ClearProvider should succeed for the current provider")
	}
	r.RemoveDependent(dep) // the dependent that called AddDemand is still tracked via demandedByCount, not dependents; detach only matters for the removed latch

	second := &fakeProvider{name: "cache-v2"}
	if !r.SetProvider(second) {
		t.Fatalf("SetProvider for the replacement should succeed")
	}
	if second.demand != 1 {
		t.Fatalf("replacement provider demand = %d, want 1 (outstanding demand must survive ClearProvider)", second.demand)
	}
}

func TestRegistration_ProviderOnlyVisibleAfterCommit(t *testing.T) {
	r := New(svcname.Of("db"))
	p := &fakeProvider{name: "database"}
	r.SetProvider(p)

	if _, ok := r.Provider(); ok {
		t.Fatalf("Provider should be hidden before Commit")
	}
	r.Commit()
	if got, ok := r.Provider(); !ok || got != p {
		t.Fatalf("Provider after commit = %v, %v", got, ok)
	}
}
