package model

import "time"

// Snooze is a temporary, time-boxed suppression of a repository's activity.
// Expired entries are inert until explicitly pruned.
type Snooze struct {
	Repo      string    `json:"repo"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Active reports whether the snooze is still in effect at the given instant.
func (s Snooze) Active(now time.Time) bool {
	return s.ExpiresAt.After(now)
}

// PruneSnoozes returns a new slice containing only the snoozes still active at
// now. The input is not mutated.
func PruneSnoozes(snoozed []Snooze, now time.Time) []Snooze {
	out := make([]Snooze, 0, len(snoozed))
	for _, s := range snoozed {
		if s.Active(now) {
			out = append(out, s)
		}
	}
	return out
}

// ComputeExclusions returns the set of repository full names currently
// suppressed from notification and activity surfaces: the union of the mute
// list and every repository with an unexpired snooze. Snooze expiry is
// time-dependent, so the result must be recomputed per call, never cached.
func ComputeExclusions(muted []string, snoozed []Snooze, now time.Time) map[string]struct{} {
	excluded := make(map[string]struct{}, len(muted)+len(snoozed))
	for _, repo := range muted {
		excluded[repo] = struct{}{}
	}
	for _, s := range snoozed {
		if s.Active(now) {
			excluded[s.Repo] = struct{}{}
		}
	}
	return excluded
}
