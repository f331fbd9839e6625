package registry

import (
	"testing"

	"github.com/sunlightlinux/svcengine/pkg/svcname"
)

func TestTable_GetOrCreateReturnsSameRegistration(t *testing.T) {
	tbl := NewTable()
	a := tbl.GetOrCreate(svcname.Of("db"))
	b := tbl.GetOrCreate(svcname.Of("db"))
	if a != b {
		t.Fatalf("GetOrCreate returned different registrations for the same name")
	}
}

func TestTable_GetOrCreateReplacesRemovedEntry(t *testing.T) {
	tbl := NewTable()
	first := tbl.GetOrCreate(svcname.Of("db"))
	first.CancelPendingInstallation() // no provider, no dependents -> latches removed

	second := tbl.GetOrCreate(svcname.Of("db"))
	if first == second {
		t.Fatalf("GetOrCreate should replace a latched-removed registration")
	}
}

func TestTable_EnsureExistsDoesNotBumpPendingInstallations(t *testing.T) {
	tbl := NewTable()
	reg := tbl.EnsureExists(svcname.Of("db"))
	if reg.Removed() {
		t.Fatalf("freshly ensured registration should not be removed")
	}
	// EnsureExists alone must not keep the registration alive as a
	// pending installation: removing it should latch removed immediately.
	reg.RemoveDependent(&fakeDependent{name: "nobody"})
	if !reg.Removed() {
		t.Fatalf("registration should latch removed once its only dependent detaches")
	}
}

func TestTable_Sweep(t *testing.T) {
	tbl := NewTable()
	reg := tbl.GetOrCreate(svcname.Of("db"))
	reg.CancelPendingInstallation()

	tbl.Sweep()
	if _, ok := tbl.Get(svcname.Of("db")); ok {
		t.Fatalf("Sweep should have removed the latched-removed registration")
	}
}
