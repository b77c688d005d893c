package connectivity

import "time"

// DefaultBaseBackoff is the reconnection interval B when none is configured.
const DefaultBaseBackoff = 10 * time.Second

// Backoff returns the reconnection interval for the given consecutive-failure
// count. The loss of an established link counts as the first failure.
// The policy is a step function, not exponential:
//
//	failures 0..1 -> B
//	failures 2..3 -> 3B
//	failures >= 4 -> 6B
func Backoff(base time.Duration, failures int) time.Duration {
	if base <= 0 {
		base = DefaultBaseBackoff
	}
	switch {
	case failures <= 1:
		return base
	case failures <= 3:
		return 3 * base
	default:
		return 6 * base
	}
}
