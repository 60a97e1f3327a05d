package failover

import (
	"testing"
	"time"
)

func TestCurrentDelayBacksOffExponentiallyUpToMaxDelay(t *testing.T) {
	p := &Policy{Delay: 10 * time.Second, MaxDelay: 60 * time.Second}

	cases := []struct {
		failures int
		want     time.Duration
	}{
		{0, 0},
		{1, 10 * time.Second},
		{2, 20 * time.Second},
		{3, 40 * time.Second},
		{4, 60 * time.Second}, // would be 80s uncapped
		{10, 60 * time.Second},
	}
	for _, c := range cases {
		p.Failures = c.failures
		if got := p.CurrentDelay(); got != c.want {
			t.Errorf("failures=%d: CurrentDelay()=%v, want %v", c.failures, got, c.want)
		}
	}
}

func TestIsWaitingDelay(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	p := &Policy{Delay: 10 * time.Second, MaxDelay: 60 * time.Second}
	p.RegisterFailure(base)

	if !p.IsWaitingDelay(base.Add(5 * time.Second)) {
		t.Error("expected still waiting 5s after a single failure with a 10s delay")
	}
	if p.IsWaitingDelay(base.Add(11 * time.Second)) {
		t.Error("expected delay to have expired after 11s")
	}
}

func TestIsWaitingDelayFalseWithoutFailure(t *testing.T) {
	p := &Policy{Delay: 10 * time.Second, MaxDelay: 60 * time.Second}
	if p.IsWaitingDelay(time.Now()) {
		t.Error("a policy with no registered failure should never be waiting")
	}
}

func TestResetFailuresClearsState(t *testing.T) {
	p := &Policy{Delay: time.Second, MaxDelay: time.Minute}
	p.RegisterFailure(time.Now())
	p.ResetFailures()
	if p.Failures != 0 || p.FailureTime != nil {
		t.Errorf("ResetFailures did not clear state: %+v", p)
	}
	if p.IsWaitingDelay(time.Now()) {
		t.Error("a reset policy should not be waiting")
	}
}

func TestIsMaxTriesExceeded(t *testing.T) {
	p := &Policy{MaxTries: 3}
	for i := 0; i < 2; i++ {
		p.RegisterFailure(time.Now())
		if p.IsMaxTriesExceeded() {
			t.Fatalf("should not be exceeded after %d failures", i+1)
		}
	}
	p.RegisterFailure(time.Now())
	if !p.IsMaxTriesExceeded() {
		t.Error("expected max tries exceeded after 3 failures with maxTries=3")
	}
}

func TestIsMaxTriesExceededUnlimitedWhenZero(t *testing.T) {
	p := &Policy{MaxTries: 0}
	for i := 0; i < 1000; i++ {
		p.RegisterFailure(time.Now())
	}
	if p.IsMaxTriesExceeded() {
		t.Error("maxTries=0 should mean unlimited retries")
	}
}

func TestClockMovingBackwardsDoesNotWedgeWaitingDelay(t *testing.T) {
	// Even if failureTime was captured from a wall clock that later jumps
	// backwards, isWaitingDelay must still clear once real time advances
	// past delayExpires computed from the (now stale) failureTime.
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	p := &Policy{Delay: time.Second, MaxDelay: 10 * time.Second}
	p.RegisterFailure(base)

	future := base.Add(2 * time.Second)
	if p.IsWaitingDelay(future) {
		t.Error("expected delay window to have elapsed by 'future', regardless of clock skew")
	}
}
