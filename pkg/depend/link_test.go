package depend

import (
	"testing"

	"github.com/sunlightlinux/svcengine/pkg/registry"
	"github.com/sunlightlinux/svcengine/pkg/svcname"
)

func TestLink_MarkUpBoundaryToggle(t *testing.T) {
	l := New(registry.New(svcname.Of("db")), Direct)

	if !l.MarkUp(true) {
		t.Fatalf("first MarkUp(true) should report changed")
	}
	if l.MarkUp(true) {
		t.Fatalf("repeated MarkUp(true) should not report changed")
	}
	if !l.IsUp() {
		t.Fatalf("IsUp should be true")
	}
	if !l.MarkUp(false) {
		t.Fatalf("MarkUp(false) after true should report changed")
	}
}

func TestLink_OptionalMasksUnavailableAndFailed(t *testing.T) {
	l := New(registry.New(svcname.Of("cache")), Optional)

	if l.MarkUnavailable(true) {
		t.Fatalf("optional link should never toggle unavailable")
	}
	if l.IsUnavailable() {
		t.Fatalf("optional link reported unavailable")
	}
	if l.MarkFailed(true) {
		t.Fatalf("optional link should never toggle failed")
	}
	if l.IsFailed() {
		t.Fatalf("optional link reported failed")
	}
}

func TestLink_DirectTracksUnavailableAndFailed(t *testing.T) {
	l := New(registry.New(svcname.Of("db")), Direct)

	if !l.MarkUnavailable(true) {
		t.Fatalf("direct link should toggle unavailable")
	}
	if !l.IsUnavailable() {
		t.Fatalf("IsUnavailable should be true")
	}
	if !l.MarkFailed(true) {
		t.Fatalf("direct link should toggle failed")
	}
	if !l.IsFailed() {
		t.Fatalf("IsFailed should be true")
	}
}
