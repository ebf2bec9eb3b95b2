package schedule

import (
	"sort"
	"time"
)

// DefaultLookAheadMinutes is the proactive reminder horizon: an untaken
// occurrence due within this many minutes is surfaced as a reminder.
const DefaultLookAheadMinutes = 15

// SelectDue filters today's occurrences down to the subset worth surfacing
// as reminders right now: not yet taken, not dismissed, and scheduled
// between now and now+lookAheadMinutes inclusive. Occurrences already in the
// past are not reminders (the overdue state covers those).
//
// The dismissed predicate may be nil (nothing dismissed). A non-positive
// lookAheadMinutes falls back to DefaultLookAheadMinutes. The result is
// sorted ascending by scheduled time.
func SelectDue(occs []Occurrence, now time.Time, lookAheadMinutes int, dismissed func(Occurrence) bool) []Occurrence {
	if lookAheadMinutes <= 0 {
		lookAheadMinutes = DefaultLookAheadMinutes
	}
	nowMin := nowMinutes(now)

	out := make([]Occurrence, 0, len(occs))
	for _, o := range occs {
		if o.State.IsTaken {
			continue
		}
		if dismissed != nil && dismissed(o) {
			continue
		}
		delta := o.Minutes - nowMin
		if delta < 0 || delta > lookAheadMinutes {
			continue
		}
		out = append(out, o)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Minutes < out[j].Minutes })
	return out
}
