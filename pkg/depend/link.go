// Package depend implements the dependency link: the edge from a
// dependent controller to a registration it requires, in its direct and
// optional variants.
package depend

import "github.com/sunlightlinux/svcengine/pkg/registry"

// Kind distinguishes the two link variants named in spec §3/§4.5.
type Kind uint8

const (
	// Direct links pass the target's availability straight through.
	Direct Kind = iota
	// Optional links mask the underlying provider's existence: a
	// missing provider looks identical to a present-but-down one, so
	// the dependent never sees "unavailable", only up/down.
	Optional
)

// Link is one entry in a controller's requires set. The three boundary
// flags below are the per-link bookkeeping a controller needs to
// maintain its unavailable_dependencies/stopping_dependencies/fail_count
// aggregates (spec §3, §4.2): each flag flips at most between false and
// true, and the owning controller fires follow-on fan-out only on that
// 0↔1 edge, never on a repeated notification of the same value.
type Link struct {
	Target *registry.Registration
	Kind   Kind

	up          bool
	unavailable bool
	failed      bool
}

// New creates a link to target of the given kind.
func New(target *registry.Registration, kind Kind) *Link {
	return &Link{Target: target, Kind: kind}
}

// TargetName is a convenience accessor used as the map key in a
// controller's requires set.
func (l *Link) TargetName() string { return l.Target.Name() }

// MarkUp sets whether the target is currently observed UP, reporting
// whether that crossed the 0/1 boundary. This is what drives
// stopping_dependencies.
func (l *Link) MarkUp(v bool) (changed bool) {
	if l.up == v {
		return false
	}
	l.up = v
	return true
}

// IsUp reports the link's last-observed up state.
func (l *Link) IsUp() bool { return l.up }

// MarkUnavailable is the boundary toggle backing unavailable_dependencies.
// Optional links never contribute to this counter (§3: a missing
// optional target looks like present-but-down, not unavailable), so
// this is a no-op for them.
func (l *Link) MarkUnavailable(v bool) (changed bool) {
	if l.Kind == Optional || l.unavailable == v {
		return false
	}
	l.unavailable = v
	return true
}

// IsUnavailable reports the link's last-observed unavailable state.
func (l *Link) IsUnavailable() bool { return l.unavailable }

// MarkFailed is the boundary toggle backing fail_count. Optional links
// never contribute to it, for the same reason as MarkUnavailable.
func (l *Link) MarkFailed(v bool) (changed bool) {
	if l.Kind == Optional || l.failed == v {
		return false
	}
	l.failed = v
	return true
}

// IsFailed reports the link's last-observed failed state.
func (l *Link) IsFailed() bool { return l.failed }
