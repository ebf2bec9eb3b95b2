// Package schedule implements the medication scheduling engine: recurrence
// evaluation, dose status classification, refill projection, and reminder
// window selection. It is intentionally small and dependency-free, but
// engineered with production-grade ergonomics:
//
//   - No logging and no I/O in the library (callers decide how/what to log)
//   - No hidden state: every function is pure and re-entrant, safe to call
//     redundantly from multiple surfaces without coordination
//   - Time is always passed in (or obtained through the Clock interface),
//     never read ambiently, so behavior is fully deterministic under test
//   - Deterministic ordering (stable comparators for display and alerts)
//
// The engine never mutates anything. Adherence history and inventory counters
// live behind the repository layer; services feed their current values in and
// apply the engine's verdicts back out.
package schedule

import "time"

// Clock supplies the current instant. Every consumer of "now" (classification,
// refill projection, reminder polling) takes one so tests can drive it with a
// fixed clock while production uses the wall clock.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns a Clock backed by time.Now.
func SystemClock() Clock { return systemClock{} }

// DateKey formats t as the canonical YYYY-MM-DD key used to index adherence
// history. All history lookups and persisted snapshots use this shape.
func DateKey(t time.Time) string { return t.Format("2006-01-02") }

// ParseDateKey parses a YYYY-MM-DD key back into a (midnight, local) time.
func ParseDateKey(s string) (time.Time, error) {
	return time.ParseInLocation("2006-01-02", s, time.Local)
}

// SameDate reports whether a and b fall on the same calendar date.
func SameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// beforeDate reports whether a's calendar date is strictly before b's.
func beforeDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	if ay != by {
		return ay < by
	}
	if am != bm {
		return am < bm
	}
	return ad < bd
}
