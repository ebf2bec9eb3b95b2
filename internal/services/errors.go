// Package services defines the business logic for medications, schedules,
// adherence, refills, and reminders. This file centralizes common
// service-level error values so that they can be consistently returned by
// service methods and checked by callers.
//
// These errors are intended for internal use by the service layer and
// translation into user-facing messages or HTTP status codes should be
// performed at the handler/controller layer.
package services

import (
	"errors"
	"fmt"
)

// Medication-related errors.
var (
	// ErrMedicationNotFound indicates that the requested medication does not
	// exist or is not accessible to the current user.
	ErrMedicationNotFound = errors.New("medication not found")

	// ErrEmptyName is returned when a medication is created or updated with a
	// blank name.
	ErrEmptyName = errors.New("medication name is empty")

	// ErrNameTooLong is returned when a medication name exceeds the configured
	// rune-length limit.
	ErrNameTooLong = errors.New("medication name too long")

	// ErrNoTimes is returned when a schedule carries no dose times at all.
	ErrNoTimes = errors.New("at least one dose time is required")

	// ErrInvalidTime is returned when a dose time is not a valid HH:MM
	// 24-hour value. Malformed times are rejected at the write boundary so
	// that evaluation never has to error on stored data.
	ErrInvalidTime = errors.New("dose time must be HH:MM (24-hour)")

	// ErrInvalidMealTiming is returned when the meal-timing value is outside
	// the allowed set (before, with, after, anytime).
	ErrInvalidMealTiming = errors.New("invalid meal timing")

	// ErrInvalidDateRange is returned when an end date precedes the start date.
	ErrInvalidDateRange = errors.New("end date precedes start date")

	// ErrInvalidDate is returned when a date parameter is not a valid
	// YYYY-MM-DD calendar date.
	ErrInvalidDate = errors.New("date must be YYYY-MM-DD")
)

// Inventory- and refill-related errors.
var (
	// ErrNotTracked indicates that the medication has no inventory counters,
	// so refill projection and recording do not apply to it.
	ErrNotTracked = errors.New("medication is not inventory-tracked")

	// ErrInvalidQuantity is returned when a refill quantity is zero or
	// negative.
	ErrInvalidQuantity = errors.New("refill quantity must be positive")
)

// Bound values carried by NotActiveError.
const (
	// BoundNotStarted means the target date precedes the course start date.
	BoundNotStarted = "not_started"
	// BoundEnded means the target date follows the course end date.
	BoundEnded = "ended"
)

// NotActiveError is returned by ToggleTaken when the target date falls
// outside the medication's active course. Bound identifies which edge was
// violated so callers can phrase the rejection precisely.
type NotActiveError struct {
	MedicationID string
	DateKey      string
	Bound        string
}

// Error implements the error interface.
func (e *NotActiveError) Error() string {
	switch e.Bound {
	case BoundNotStarted:
		return fmt.Sprintf("medication %s has not started by %s", e.MedicationID, e.DateKey)
	case BoundEnded:
		return fmt.Sprintf("medication %s course ended before %s", e.MedicationID, e.DateKey)
	default:
		return fmt.Sprintf("medication %s is not active on %s", e.MedicationID, e.DateKey)
	}
}

// IsNotActive reports whether err wraps a NotActiveError, returning it when so.
func IsNotActive(err error) (*NotActiveError, bool) {
	var nae *NotActiveError
	if errors.As(err, &nae) {
		return nae, true
	}
	return nil, false
}
