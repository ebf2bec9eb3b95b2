package schedule

import (
	"errors"
	"regexp"
	"time"
)

// ErrInvalidTimeFormat is returned when a scheduled time string does not
// match the HH:MM 24-hour shape. Callers expanding a day's occurrences are
// expected to skip the malformed entry (fail-soft) rather than abort the
// whole schedule.
var ErrInvalidTimeFormat = errors.New("invalid time of day: want HH:MM (24-hour)")

// timeOfDayRE matches the canonical two-digit HH:MM shape.
var timeOfDayRE = regexp.MustCompile(`^\d{2}:\d{2}$`)

// MinutesOfDay parses an "HH:MM" 24-hour string into minutes since midnight.
// It returns ErrInvalidTimeFormat when the string has the wrong shape or the
// hour/minute values are out of range.
func MinutesOfDay(s string) (int, error) {
	if !timeOfDayRE.MatchString(s) {
		return 0, ErrInvalidTimeFormat
	}
	hh := int(s[0]-'0')*10 + int(s[1]-'0')
	mm := int(s[3]-'0')*10 + int(s[4]-'0')
	if hh > 23 || mm > 59 {
		return 0, ErrInvalidTimeFormat
	}
	return hh*60 + mm, nil
}

// nowMinutes returns t's minutes since local midnight.
func nowMinutes(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}
