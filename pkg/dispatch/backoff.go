package dispatch

import "time"

const (
	// DefaultMaxRetries is the retry budget after the first attempt.
	DefaultMaxRetries = 3
	// DefaultRetryDelay is used when the server gives no Retry-After hint.
	DefaultRetryDelay = time.Second
)

// RetryState tracks one logical call. Attempt is 0 for the first try and is
// incremented before each retry.
type RetryState struct {
	Attempt int
}

// Policy decides whether a failed attempt is retried and how long to wait.
// There is no exponential growth: the delay is the server's hint or the
// fixed Delay.
type Policy struct {
	MaxRetries int
	Delay      time.Duration
	// MaxDelay clamps server hints when positive.
	MaxDelay time.Duration
}

// DefaultPolicy returns the policy used when none is configured.
func DefaultPolicy() Policy {
	return Policy{MaxRetries: DefaultMaxRetries, Delay: DefaultRetryDelay}
}

// ShouldRetry is a pure function of its inputs.
func (p Policy) ShouldRetry(outcome Outcome, state RetryState) (bool, time.Duration) {
	if outcome.Kind != OutcomeTransient {
		return false, 0
	}
	if state.Attempt >= p.MaxRetries {
		return false, 0
	}
	return true, p.delay(outcome)
}

func (p Policy) delay(outcome Outcome) time.Duration {
	if outcome.RetryAfter > 0 {
		if p.MaxDelay > 0 && outcome.RetryAfter > p.MaxDelay {
			return p.MaxDelay
		}
		return outcome.RetryAfter
	}
	if p.Delay > 0 {
		return p.Delay
	}
	return DefaultRetryDelay
}
