// Package lifecycle tracks the access-token lifecycle of an identity session
// and performs the refresh grant against the provider's token endpoint.
package lifecycle

import "time"

// State classifies a session's token against the clock.
type State int

const (
	// Fresh means the token has no expiry information or is far from expiry.
	Fresh State = iota
	// NearExpiry means the token expires within the idle-time threshold.
	NearExpiry
	// Expired means the token's expiry has passed.
	Expired
)

func (s State) String() string {
	switch s {
	case NearExpiry:
		return "near-expiry"
	case Expired:
		return "expired"
	default:
		return "fresh"
	}
}

// Classify maps a session expiry to a lifecycle state. A nil expiresAt means
// the provider advertised no expiry: such sessions never expire. The boundary
// instant counts as expired.
func Classify(expiresAt *int64, now time.Time, idleTime time.Duration) State {
	if expiresAt == nil {
		return Fresh
	}
	remaining := time.Duration(*expiresAt-now.Unix()) * time.Second
	if remaining <= 0 {
		return Expired
	}
	if remaining < idleTime {
		return NearExpiry
	}
	return Fresh
}
