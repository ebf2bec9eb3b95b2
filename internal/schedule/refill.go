package schedule

import (
	"math"
	"sort"
	"time"
)

// Urgency is the refill urgency tier derived from remaining days of supply.
type Urgency string

const (
	UrgencyCritical Urgency = "critical" // <= 3 days
	UrgencyUrgent   Urgency = "urgent"   // <= 7 days
	UrgencySoon     Urgency = "soon"     // <= 14 days
	UrgencyOK       Urgency = "ok"
)

// NotDepletingDays is the sentinel days-remaining value for inventories with
// zero daily consumption (as-needed medications that are tracked but never
// auto-depleted).
const NotDepletingDays = 999

// urgencyRank orders tiers most-severe first for alert sorting.
func urgencyRank(u Urgency) int {
	switch u {
	case UrgencyCritical:
		return 0
	case UrgencyUrgent:
		return 1
	case UrgencySoon:
		return 2
	default:
		return 3
	}
}

// Supply carries the inventory counters the projector consumes. All values
// are assumed already validated as non-negative by the caller.
type Supply struct {
	MedicationID      string
	QuantityRemaining float64
	QuantityPerDose   float64
	DosesPerDay       int
}

// Projection is the refill outlook for one inventory: whole days of supply
// left, the urgency tier, and the projected run-out date.
type Projection struct {
	MedicationID  string    `json:"medication_id"`
	DaysRemaining int       `json:"days_remaining"`
	Urgency       Urgency   `json:"urgency"`
	RunOutDate    time.Time `json:"estimated_run_out_date"`
}

// Project computes the refill outlook for s as of today.
//
// dailyConsumption = quantityPerDose * dosesPerDay. A zero daily consumption
// yields the NotDepletingDays sentinel and an ok tier. Otherwise days
// remaining is floor(quantityRemaining / dailyConsumption), clamped at zero,
// and the run-out date is today plus that many days.
func Project(s Supply, today time.Time) Projection {
	p := Projection{MedicationID: s.MedicationID}

	daily := s.QuantityPerDose * float64(s.DosesPerDay)
	if daily <= 0 {
		p.DaysRemaining = NotDepletingDays
		p.Urgency = UrgencyOK
		p.RunOutDate = today.AddDate(0, 0, NotDepletingDays)
		return p
	}

	days := int(math.Floor(s.QuantityRemaining / daily))
	if days < 0 {
		days = 0
	}
	p.DaysRemaining = days
	p.RunOutDate = today.AddDate(0, 0, days)

	switch {
	case days <= 3:
		p.Urgency = UrgencyCritical
	case days <= 7:
		p.Urgency = UrgencyUrgent
	case days <= 14:
		p.Urgency = UrgencySoon
	default:
		p.Urgency = UrgencyOK
	}
	return p
}

// CheckAll projects every supply, drops the ok tier, and sorts the remainder
// most-pressing first: by urgency rank, then by fewest days remaining.
func CheckAll(supplies []Supply, today time.Time) []Projection {
	out := make([]Projection, 0, len(supplies))
	for _, s := range supplies {
		if p := Project(s, today); p.Urgency != UrgencyOK {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if ri, rj := urgencyRank(out[i].Urgency), urgencyRank(out[j].Urgency); ri != rj {
			return ri < rj
		}
		return out[i].DaysRemaining < out[j].DaysRemaining
	})
	return out
}

// ClampDecrement returns remaining minus (perDose * dosesUsed), floored at
// zero. The floor is deliberate: recording a dose must never be blocked by
// drifted bookkeeping, so the counter absorbs the drift instead of raising.
func ClampDecrement(remaining, perDose float64, dosesUsed int) float64 {
	next := remaining - perDose*float64(dosesUsed)
	if next < 0 {
		return 0
	}
	return next
}
