// Package ratelimit implements the portal failure budget.
// Transient portal failures are recorded in a Redis sorted set; once too
// many fall inside the sliding window, fetches are throttled and finally
// blocked so a struggling portal is not hammered by every replica at once.
package ratelimit

import (
	"time"
)

// Redis keys for failure budget storage.
const (
	RedisKeyFailures = "beu:failure_budget:failures"
)

// Thresholds configure the failure budget.
type Thresholds struct {
	// Window is the sliding window failures are counted in.
	Window time.Duration

	// Warning throttles requests once this many failures are in the window.
	Warning int

	// Critical blocks requests once this many failures are in the window.
	Critical int
}

// DefaultThresholds returns the built-in failure budget.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Window:   time.Minute,
		Warning:  20,
		Critical: 50,
	}
}

// State is a snapshot of the failure budget shared via Redis.
type State struct {
	// Failures is the number of failures inside the window.
	Failures int `json:"failures"`

	// OldestFailure is the earliest failure still inside the window.
	OldestFailure time.Time `json:"oldest_failure"`

	// LastFailure is the most recent failure.
	LastFailure time.Time `json:"last_failure"`

	// IsHealthy is true while Failures is below the warning threshold.
	IsHealthy bool `json:"is_healthy"`

	thresholds Thresholds
}

// NeedsCriticalBlock returns true if requests should be blocked.
func (s *State) NeedsCriticalBlock() bool {
	return s.thresholds.Critical > 0 && s.Failures >= s.thresholds.Critical
}

// NeedsThrottling returns true if requests should be slowed down.
func (s *State) NeedsThrottling() bool {
	return s.thresholds.Warning > 0 && s.Failures >= s.thresholds.Warning && !s.NeedsCriticalBlock()
}

// TimeUntilRecovery returns how long until the oldest failure leaves the window.
// Returns 0 if there is nothing to wait for.
func (s *State) TimeUntilRecovery(now time.Time) time.Duration {
	if s.Failures == 0 || s.OldestFailure.IsZero() {
		return 0
	}
	d := s.OldestFailure.Add(s.thresholds.Window).Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// UpdateHealth updates IsHealthy from Failures.
func (s *State) UpdateHealth() {
	s.IsHealthy = s.thresholds.Warning <= 0 || s.Failures < s.thresholds.Warning
}
