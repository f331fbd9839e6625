package controller

// Mode selects how a controller decides shouldStart/shouldStop, per
// spec §4.2.
type Mode uint8

const (
	// Remove is terminal: the controller drives to REMOVED and stays
	// there; callbacks cannot veto it.
	Remove Mode = iota
	// Never means the controller should always be stopped.
	Never
	// OnDemand starts only while demanded, and stops the instant
	// demand drops to zero.
	OnDemand
	// Lazy starts only while demanded but, once UP, stays UP even if
	// demand later drops to zero (spec §9 open question, resolved:
	// demand is consulted only to start LAZY, never to stop it).
	Lazy
	// Passive starts whenever its dependencies aren't mid-stop, but
	// never on its own initiative beyond that.
	Passive
	// Active always wants to be started.
	Active
)

func (m Mode) String() string {
	switch m {
	case Remove:
		return "REMOVE"
	case Never:
		return "NEVER"
	case OnDemand:
		return "ON_DEMAND"
	case Lazy:
		return "LAZY"
	case Passive:
		return "PASSIVE"
	case Active:
		return "ACTIVE"
	default:
		return "UNKNOWN"
	}
}
