package schedule

import "time"

// Lifecycle is the coarse status of a medication course relative to its
// start/end date bounds.
type Lifecycle string

const (
	// LifecycleScheduled means the course has not started yet.
	LifecycleScheduled Lifecycle = "scheduled"
	// LifecycleActive means the date falls within the course bounds.
	LifecycleActive Lifecycle = "active"
	// LifecycleCompleted means the course has ended.
	LifecycleCompleted Lifecycle = "completed"
)

// MealTiming describes when a dose is taken relative to meals. It never
// affects status computation; it only participates in display ordering.
type MealTiming string

const (
	MealBefore  MealTiming = "before"
	MealWith    MealTiming = "with"
	MealAfter   MealTiming = "after"
	MealAnytime MealTiming = "anytime"
)

// ValidMealTiming reports whether mt is one of the known meal timings.
func ValidMealTiming(mt MealTiming) bool {
	switch mt {
	case MealBefore, MealWith, MealAfter, MealAnytime:
		return true
	}
	return false
}

// mealRank orders meal timings for display tie-breaking: before, with,
// after, anytime.
func mealRank(mt MealTiming) int {
	switch mt {
	case MealBefore:
		return 1
	case MealWith:
		return 2
	case MealAfter:
		return 3
	default:
		return 4
	}
}

// Urgency windows, in minutes relative to the scheduled time. The due window
// is deliberately asymmetric: 30 minutes of early tolerance and a full hour
// of late grace, wide enough to absorb routine variance for elderly users.
const (
	EarlyToleranceMinutes  = 30
	LateGraceMinutes       = 60
	UpcomingHorizonMinutes = 120
)

// DoseState is the classification of one occurrence at one instant.
//
//   - Status is the course lifecycle from date bounds alone.
//   - IsPast/IsNow/IsUpcoming are mutually exclusive urgency flags; all three
//     are false when the dose is taken (display suppression), when the course
//     is not active, or when the occurrence sits further than two hours out.
//   - CanMarkTaken is true only while the course is active; toggling outside
//     the bounds is rejected with a typed error at the service layer.
type DoseState struct {
	Status       Lifecycle `json:"status"`
	IsPast       bool      `json:"is_past"`
	IsNow        bool      `json:"is_now"`
	IsUpcoming   bool      `json:"is_upcoming"`
	IsTaken      bool      `json:"is_taken"`
	CanMarkTaken bool      `json:"can_mark_taken"`
}

// LifecycleOn computes the course lifecycle for def on day, comparing
// calendar dates only (bounds are inclusive).
func LifecycleOn(def Definition, day time.Time) Lifecycle {
	if def.StartDate != nil && beforeDate(day, *def.StartDate) {
		return LifecycleScheduled
	}
	if def.EndDate != nil && beforeDate(*def.EndDate, day) {
		return LifecycleCompleted
	}
	return LifecycleActive
}

// Classify computes the dose state for one occurrence of def scheduled at
// timeOfDay ("HH:MM") on now's date, given whether it has been marked taken.
//
// Classification never fails: a malformed timeOfDay simply yields a state
// with no urgency flags (occurrence expansion already excludes malformed
// entries, so this is a second line of defense, not the primary filter).
func Classify(def Definition, timeOfDay string, taken bool, now time.Time) DoseState {
	st := DoseState{
		Status:  LifecycleOn(def, now),
		IsTaken: taken,
	}
	st.CanMarkTaken = st.Status == LifecycleActive

	// Urgency flags only apply to untaken doses of an active course.
	if st.Status != LifecycleActive || taken {
		return st
	}

	occMin, err := MinutesOfDay(timeOfDay)
	if err != nil {
		return st
	}

	diff := nowMinutes(now) - occMin
	switch {
	case diff > LateGraceMinutes:
		st.IsPast = true
	case diff >= -EarlyToleranceMinutes:
		st.IsNow = true
	case diff > -UpcomingHorizonMinutes:
		st.IsUpcoming = true
	}
	// Anything earlier than the upcoming horizon is just "later today":
	// scheduled, but carrying no urgency flag.
	return st
}
