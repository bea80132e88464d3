// Package entitlement decides whether a user may use gated features.
//
// Access is derived from two stored fields, the sticky subscriber flag and the
// trial expiry, and is recomputed on every check.
package entitlement

import "time"

// DefaultTrial is the trial window granted at signup.
const DefaultTrial = 72 * time.Hour

// Clock returns the current time. Handlers and services take one so tests can move time.
type Clock func() time.Time

func SystemClock() time.Time { return time.Now().UTC() }

// HasAccess: subscribers always pass; otherwise the trial must be provisioned and
// now must not be after trialEnd (the boundary instant still has access).
func HasAccess(subscriber bool, trialEnd *time.Time, now time.Time) bool {
	if subscriber {
		return true
	}
	if trialEnd == nil {
		return false
	}
	return !now.After(*trialEnd)
}

// Lapsed is the sweep predicate: a non-subscriber whose provisioned trial is in the past.
// Unprovisioned users are not lapsed; they get a trial on next login.
func Lapsed(subscriber bool, trialEnd *time.Time, now time.Time) bool {
	return !subscriber && trialEnd != nil && trialEnd.Before(now)
}

// EnsureTrialEnd returns current untouched when set. Otherwise it returns now+d and assigned=true.
func EnsureTrialEnd(current *time.Time, now time.Time, d time.Duration) (time.Time, bool) {
	if current != nil {
		return *current, false
	}
	if d <= 0 {
		d = DefaultTrial
	}
	return now.Add(d).UTC(), true
}

type Snapshot struct {
	Subscriber       bool       `json:"subscriber"`
	TrialEnd         *time.Time `json:"trialEnd"`
	HasAccess        bool       `json:"hasAccess"`
	RemainingSeconds int64      `json:"remainingSeconds"`
}

func NewSnapshot(subscriber bool, trialEnd *time.Time, now time.Time) Snapshot {
	s := Snapshot{
		Subscriber: subscriber,
		TrialEnd:   trialEnd,
		HasAccess:  HasAccess(subscriber, trialEnd, now),
	}

	if trialEnd != nil && now.Before(*trialEnd) {
		s.RemainingSeconds = int64(trialEnd.Sub(now) / time.Second)
	}

	return s
}
