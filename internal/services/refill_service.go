// Package services – RefillService
//
// This file implements the RefillService, which projects how long the
// remaining stock of each inventory-tracked medication lasts and records
// refills. Projection math lives in the schedule package; this service binds
// it to persistence and renders the user-facing alert text.
package services

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/pilltrack/go-adherence-backend/internal/domain"
	"github.com/pilltrack/go-adherence-backend/internal/repo"
	"github.com/pilltrack/go-adherence-backend/internal/schedule"
)

// RefillAlert is one user-facing refill warning: the projection plus the
// rendered message. ActionRequired marks the tiers that need a pharmacy trip
// now rather than soon.
type RefillAlert struct {
	MedicationID   string            `json:"medication_id"`
	Name           string            `json:"name"`
	DaysRemaining  int               `json:"days_remaining"`
	Urgency        schedule.Urgency  `json:"urgency"`
	RunOutDate     string            `json:"run_out_date"`
	Message        string            `json:"message"`
	ActionRequired bool              `json:"action_required"`
}

// RefillService projects stock depletion and records refills.
type RefillService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Clock supplies "today" for depletion projections.
	Clock schedule.Clock
}

// NewRefillService constructs a RefillService.
func NewRefillService(db *gorm.DB, clk schedule.Clock) *RefillService {
	return &RefillService{DB: db, Clock: clk}
}

// ProjectFor returns the depletion projection for one medication, or
// ErrNotTracked when it has no inventory counters.
func (s *RefillService) ProjectFor(ctx context.Context, userID, medicationID string) (*schedule.Projection, error) {
	med, err := repo.GetMedication(ctx, s.DB, medicationID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMedicationNotFound
		}
		return nil, err
	}
	if med.Inventory == nil {
		return nil, ErrNotTracked
	}
	p := schedule.Project(med.Inventory.Supply(), s.Clock.Now())
	return &p, nil
}

// CheckAllRefills scans every inventory-tracked medication the user owns and
// returns alerts for those running low, most urgent first. Medications with
// comfortable stock produce no alert.
func (s *RefillService) CheckAllRefills(ctx context.Context, userID string) ([]RefillAlert, error) {
	tr := otel.Tracer("services/RefillService")
	ctx, span := tr.Start(ctx, "CheckAllRefills",
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer span.End()

	rows, err := repo.ListTrackedInventories(ctx, s.DB, userID)
	if err != nil {
		return nil, err
	}

	today := s.Clock.Now()
	names := make(map[string]string, len(rows))
	supplies := make([]schedule.Supply, 0, len(rows))
	for _, r := range rows {
		names[r.MedicationID] = r.Name
		supplies = append(supplies, r.Supply())
	}

	projections := schedule.CheckAll(supplies, today)
	out := make([]RefillAlert, 0, len(projections))
	for _, p := range projections {
		name := names[p.MedicationID]
		out = append(out, RefillAlert{
			MedicationID:   p.MedicationID,
			Name:           name,
			DaysRemaining:  p.DaysRemaining,
			Urgency:        p.Urgency,
			RunOutDate:     schedule.DateKey(p.RunOutDate),
			Message:        alertMessage(name, p),
			ActionRequired: p.Urgency == schedule.UrgencyCritical || p.Urgency == schedule.UrgencyUrgent,
		})
	}
	return out, nil
}

// RecordRefill adds quantity pills to the medication's counters and stamps
// the refill date. The quantity must be positive; the medication must be
// inventory-tracked.
func (s *RefillService) RecordRefill(ctx context.Context, userID, medicationID string, quantity float64) (*domain.Inventory, error) {
	tr := otel.Tracer("services/RefillService")
	ctx, span := tr.Start(ctx, "RecordRefill",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("medication.id", medicationID),
		),
	)
	defer span.End()

	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	med, err := repo.GetMedication(ctx, s.DB, medicationID, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMedicationNotFound
		}
		return nil, err
	}
	if med.Inventory == nil {
		return nil, ErrNotTracked
	}

	if err := repo.ApplyRefill(ctx, s.DB, medicationID, quantity, s.Clock.Now().UTC()); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotTracked
		}
		return nil, err
	}
	return repo.GetInventory(ctx, s.DB, medicationID)
}

// alertMessage renders one warning line per tier.
func alertMessage(name string, p schedule.Projection) string {
	switch p.Urgency {
	case schedule.UrgencyCritical:
		return fmt.Sprintf("%s runs out in %s. Refill immediately.", name, dayWord(p.DaysRemaining))
	case schedule.UrgencyUrgent:
		return fmt.Sprintf("%s runs out in %s. Refill this week.", name, dayWord(p.DaysRemaining))
	default:
		return fmt.Sprintf("%s runs out in %s. Plan a refill.", name, dayWord(p.DaysRemaining))
	}
}

func dayWord(days int) string {
	if days == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", days)
}
