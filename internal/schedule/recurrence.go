package schedule

import "time"

// WeekMask is a Sunday-first recurrence mask: index 0 is Sunday, 6 is
// Saturday. A true entry means the medication is scheduled on that weekday.
type WeekMask [7]bool

// dayKeys is the fixed Sunday-first key ordering used wherever the mask is
// rendered as (or parsed from) a keyed map, e.g. the persisted JSON shape.
var dayKeys = [7]string{"sun", "mon", "tue", "wed", "thu", "fri", "sat"}

// DayKeys returns the Sunday-first weekday keys in mask order.
func DayKeys() [7]string { return dayKeys }

// WeekMaskFromMap builds a mask from a sun..sat keyed map. Missing keys are
// treated as false. Unknown keys are ignored.
func WeekMaskFromMap(m map[string]bool) WeekMask {
	var out WeekMask
	for i, k := range dayKeys {
		out[i] = m[k]
	}
	return out
}

// Map renders the mask as the sun..sat keyed map used by the wire/storage
// representation.
func (m WeekMask) Map() map[string]bool {
	out := make(map[string]bool, 7)
	for i, k := range dayKeys {
		out[k] = m[i]
	}
	return out
}

// Any reports whether at least one weekday is enabled.
func (m WeekMask) Any() bool {
	for _, b := range m {
		if b {
			return true
		}
	}
	return false
}

// Definition is the engine-facing view of a medication. It carries only what
// the scheduling computations need; display-only attributes such as dosage
// text stay out. Days == nil means "no recurrence mask", which this engine
// uniformly treats as scheduled every day. Earlier call sites disagreed on
// this, so one explicit default is imposed here and everywhere.
type Definition struct {
	ID        string
	Name      string
	Times     []string // "HH:MM" entries, one occurrence per entry per day
	Days      *WeekMask
	StartDate *time.Time // inclusive calendar date bound; nil = unbounded
	EndDate   *time.Time
	Meal      MealTiming
}

// IsScheduledOn reports whether the definition recurs on date's weekday.
// Only the weekly mask is consulted; start/end date bounds are a lifecycle
// concern handled by classification, not recurrence.
func IsScheduledOn(def Definition, date time.Time) bool {
	if def.Days == nil {
		return true
	}
	return def.Days[int(date.Weekday())]
}
