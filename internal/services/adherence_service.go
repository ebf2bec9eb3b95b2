// Package services – AdherenceService
//
// This file implements the AdherenceService, owner of the only mutation the
// adherence history has: toggling a (date, medication) cell. The toggle is
// transactional and couples the history flip with the inventory side effect:
// marking taken consumes stock, un-marking restores it. Counters never go
// negative and never exceed the bottle's total.
package services

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/pilltrack/go-adherence-backend/internal/repo"
	"github.com/pilltrack/go-adherence-backend/internal/schedule"
)

// ToggleResult reports the outcome of a toggle: the stored value after the
// flip and the remaining inventory when the medication is tracked.
type ToggleResult struct {
	MedicationID      string   `json:"medication_id"`
	DateKey           string   `json:"date"`
	Taken             bool     `json:"taken"`
	QuantityRemaining *float64 `json:"quantity_remaining,omitempty"`
}

// AdherenceService mediates reads and writes of the adherence history.
type AdherenceService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Clock supplies "today" when no explicit date is given.
	Clock schedule.Clock
}

// NewAdherenceService constructs an AdherenceService.
func NewAdherenceService(db *gorm.DB, clk schedule.Clock) *AdherenceService {
	return &AdherenceService{DB: db, Clock: clk}
}

// ToggleTaken flips the (dateKey, medicationID) history cell for userID.
// An empty dateKey means today.
//
// The medication must be ACTIVE on the target date: dates before the course
// start or after the course end are rejected with a NotActiveError naming the
// violated bound. The history flip and the inventory adjustment commit
// together or not at all.
func (s *AdherenceService) ToggleTaken(ctx context.Context, userID, medicationID, dateKey string) (*ToggleResult, error) {
	tr := otel.Tracer("services/AdherenceService")
	ctx, span := tr.Start(ctx, "ToggleTaken",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("medication.id", medicationID),
		),
	)
	defer span.End()

	if dateKey == "" {
		dateKey = schedule.DateKey(s.Clock.Now())
	}
	date, err := schedule.ParseDateKey(dateKey)
	if err != nil {
		return nil, ErrInvalidDate
	}

	med, err := repo.GetMedication(ctx, s.DB, medicationID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMedicationNotFound
		}
		return nil, err
	}

	def := med.Definition()
	switch schedule.LifecycleOn(def, date) {
	case schedule.LifecycleScheduled:
		return nil, &NotActiveError{MedicationID: medicationID, DateKey: dateKey, Bound: BoundNotStarted}
	case schedule.LifecycleCompleted:
		return nil, &NotActiveError{MedicationID: medicationID, DateKey: dateKey, Bound: BoundEnded}
	}

	result := &ToggleResult{MedicationID: medicationID, DateKey: dateKey}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		wasTaken, err := repo.GetTaken(ctx, tx, userID, dateKey, medicationID)
		if err != nil {
			return err
		}
		nowTaken, err := repo.SetTaken(ctx, tx, userID, dateKey, medicationID, !wasTaken)
		if err != nil {
			return err
		}
		result.Taken = nowTaken

		if med.Inventory == nil {
			return nil
		}
		inv, err := repo.GetInventory(ctx, tx, medicationID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}

		remaining := inv.QuantityRemaining
		if nowTaken {
			remaining = schedule.ClampDecrement(remaining, inv.QuantityPerDose, len(def.Times))
		} else {
			remaining += inv.QuantityPerDose * float64(len(def.Times))
			if remaining > inv.TotalQuantity {
				remaining = inv.TotalQuantity
			}
		}
		if err := repo.SetQuantityRemaining(ctx, tx, medicationID, remaining); err != nil {
			return err
		}
		result.QuantityRemaining = &remaining
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// TakenOn returns the medication-id to taken map for one date.
func (s *AdherenceService) TakenOn(ctx context.Context, userID, dateKey string) (map[string]bool, error) {
	if _, err := schedule.ParseDateKey(dateKey); err != nil {
		return nil, ErrInvalidDate
	}
	return repo.TakenOn(ctx, s.DB, userID, dateKey)
}

// HistorySnapshot rebuilds the date-keyed history map for userID in the
// serialized shape the surrounding hosts persist:
// { "YYYY-MM-DD": { "<medicationId>": true|false } }.
func (s *AdherenceService) HistorySnapshot(ctx context.Context, userID string) (map[string]map[string]bool, error) {
	return repo.HistorySnapshot(ctx, s.DB, userID)
}
