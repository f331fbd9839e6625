package errs_test

import (
	"errors"
	"testing"

	"github.com/sunlightlinux/svcengine/pkg/errs"
)

func TestError_IsDistinguishesConfigurationSentinels(t *testing.T) {
	dup := errs.DuplicateProvider("x")

	if !errors.Is(dup, errs.ErrDuplicateProvider) {
		t.Fatalf("DuplicateProvider(x) should match ErrDuplicateProvider")
	}
	if errors.Is(dup, errs.ErrCycle) {
		t.Fatalf("DuplicateProvider(x) must not match ErrCycle despite sharing KindConfiguration")
	}
	if errors.Is(dup, errs.ErrRequireAndProvide) {
		t.Fatalf("DuplicateProvider(x) must not match ErrRequireAndProvide")
	}

	rap := errs.RequireAndProvide("y")
	if !errors.Is(rap, errs.ErrRequireAndProvide) {
		t.Fatalf("RequireAndProvide(y) should match ErrRequireAndProvide")
	}
	if errors.Is(rap, errs.ErrDuplicateProvider) {
		t.Fatalf("RequireAndProvide(y) must not match ErrDuplicateProvider")
	}

	cyc := errs.NewCycle([]string{"a", "b"})
	if !errors.Is(cyc, errs.ErrCycle) {
		t.Fatalf("NewCycle should match ErrCycle")
	}
	if errors.Is(cyc, errs.ErrDuplicateProvider) {
		t.Fatalf("NewCycle must not match ErrDuplicateProvider")
	}
}

func TestError_IsBucketHelperStillMatchesKind(t *testing.T) {
	dup := errs.DuplicateProvider("x")
	if !errs.Is(dup, errs.KindConfiguration) {
		t.Fatalf("Is(dup, KindConfiguration) should still report true")
	}
	if errs.Is(dup, errs.KindStartFailure) {
		t.Fatalf("Is(dup, KindStartFailure) should report false")
	}
}
