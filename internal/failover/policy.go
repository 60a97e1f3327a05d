// Package failover implements the per-broker restart-backoff arithmetic.
package failover

import "time"

// maxShift bounds the exponent in currentDelay so a broker with an unlimited
// maxTries and a very long failure history can't overflow the shift.
const maxShift = 32

// Policy tracks the failure history for a single broker and derives the
// current backoff delay from it. All comparisons against "now" take the
// caller's clock as an explicit argument so the policy stays pure and
// deterministic under test.
type Policy struct {
	Failures    int
	MaxTries    int // 0 means unlimited
	Delay       time.Duration
	MaxDelay    time.Duration
	FailureTime *time.Time
}

// RegisterFailure records a failure observed at now.
func (p *Policy) RegisterFailure(now time.Time) {
	p.Failures++
	t := now
	p.FailureTime = &t
}

// ResetFailures clears the failure history, e.g. on TASK_RUNNING.
func (p *Policy) ResetFailures() {
	p.Failures = 0
	p.FailureTime = nil
}

// CurrentDelay is delay * 2^(failures-1), capped at maxDelay.
func (p *Policy) CurrentDelay() time.Duration {
	if p.Failures <= 0 {
		return 0
	}
	shift := p.Failures - 1
	if shift > maxShift {
		shift = maxShift
	}
	factor := time.Duration(uint64(1) << uint(shift))
	// Compare before multiplying so a long failure history cannot overflow
	// the product past the cap.
	if p.MaxDelay > 0 && p.Delay > p.MaxDelay/factor {
		return p.MaxDelay
	}
	return p.Delay * factor
}

// DelayExpires is the instant the current backoff window ends. It is the
// zero time if no failure has been registered.
func (p *Policy) DelayExpires() time.Time {
	if p.FailureTime == nil {
		return time.Time{}
	}
	return p.FailureTime.Add(p.CurrentDelay())
}

// IsWaitingDelay reports whether now still falls inside the backoff window.
func (p *Policy) IsWaitingDelay(now time.Time) bool {
	if p.FailureTime == nil {
		return false
	}
	return now.Before(p.DelayExpires())
}

// IsMaxTriesExceeded reports whether the broker has exhausted its retries.
func (p *Policy) IsMaxTriesExceeded() bool {
	return p.MaxTries > 0 && p.Failures >= p.MaxTries
}
