package schedule

import (
	"sort"
	"time"
)

// Occurrence is one scheduled dose instance: the cartesian product of a
// medication, a calendar date, and one entry of its times list. Occurrences
// are derived on demand and never persisted; identity is the
// (MedicationID, Date, TimeOfDay) triple.
type Occurrence struct {
	MedicationID string     `json:"medication_id"`
	Name         string     `json:"name"`
	Date         string     `json:"date"` // YYYY-MM-DD
	TimeOfDay    string     `json:"time"` // HH:MM
	Minutes      int        `json:"-"`    // parsed TimeOfDay, minutes since midnight
	Meal         MealTiming `json:"meal_timing"`
	State        DoseState  `json:"state"`
}

// Key returns the stable identity string for the occurrence, used for
// session-scoped dismissal bookkeeping.
func (o Occurrence) Key() string {
	return o.MedicationID + "|" + o.Date + "|" + o.TimeOfDay
}

// DayOccurrences expands def into its occurrences for day. It returns nil
// when the weekly mask excludes day's weekday. Malformed HH:MM entries are
// skipped (fail-soft) so one bad record cannot take down the whole schedule.
//
// The returned occurrences carry no taken flag and no classification; the
// caller joins adherence history and classifies against its own "now".
func DayOccurrences(def Definition, day time.Time) []Occurrence {
	if !IsScheduledOn(def, day) {
		return nil
	}
	date := DateKey(day)
	out := make([]Occurrence, 0, len(def.Times))
	for _, tod := range def.Times {
		min, err := MinutesOfDay(tod)
		if err != nil {
			continue
		}
		out = append(out, Occurrence{
			MedicationID: def.ID,
			Name:         def.Name,
			Date:         date,
			TimeOfDay:    tod,
			Minutes:      min,
			Meal:         def.Meal,
		})
	}
	return out
}

// SortForDisplay orders occurrences the way the daily schedule presents
// them: untaken before taken, then ascending by scheduled time, tie-broken
// by meal-timing rank (before, with, after, anytime), then by name.
// The sort is stable so equal entries keep their relative input order.
func SortForDisplay(occs []Occurrence) {
	sort.SliceStable(occs, func(i, j int) bool {
		a, b := occs[i], occs[j]
		if a.State.IsTaken != b.State.IsTaken {
			return !a.State.IsTaken
		}
		if a.TimeOfDay != b.TimeOfDay {
			return a.TimeOfDay < b.TimeOfDay
		}
		if ra, rb := mealRank(a.Meal), mealRank(b.Meal); ra != rb {
			return ra < rb
		}
		return a.Name < b.Name
	})
}
