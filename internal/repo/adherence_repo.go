// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the narrow adherence-history accessors
// the engine depends on: a boolean get, a boolean set, and snapshot queries
// that rebuild the date-keyed map shape the host environment persists.
//
// The history is append-only from the application's point of view: cells are
// created lazily on first toggle and never deleted.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pilltrack/go-adherence-backend/internal/domain"
)

// GetTaken reports whether the (dateKey, medicationID) cell is marked taken
// for userID. A missing cell reads as false, never as an error.
func GetTaken(ctx context.Context, db *gorm.DB, userID, dateKey, medicationID string) (bool, error) {
	var rec domain.AdherenceRecord
	err := db.WithContext(ctx).
		Where("user_id = ? AND date_key = ? AND medication_id = ?", userID, dateKey, medicationID).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return rec.Taken, nil
}

// SetTaken writes the (dateKey, medicationID) cell for userID, creating the
// row on first write and updating it afterwards. It returns the stored value.
func SetTaken(ctx context.Context, db *gorm.DB, userID, dateKey, medicationID string, taken bool) (bool, error) {
	var rec domain.AdherenceRecord
	err := db.WithContext(ctx).
		Where("user_id = ? AND date_key = ? AND medication_id = ?", userID, dateKey, medicationID).
		First(&rec).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		rec = domain.AdherenceRecord{
			ID:           uuid.NewString(),
			UserID:       userID,
			DateKey:      dateKey,
			MedicationID: medicationID,
			Taken:        taken,
			CreatedAt:    time.Now().UTC(),
		}
		if err := db.WithContext(ctx).Create(&rec).Error; err != nil {
			return false, err
		}
		return taken, nil
	case err != nil:
		return false, err
	}

	if rec.Taken == taken {
		return taken, nil
	}
	if err := db.WithContext(ctx).
		Model(&rec).
		Update("taken", taken).Error; err != nil {
		return false, err
	}
	return taken, nil
}

// TakenOn returns the medication-id → taken map for one date, the shape the
// day-schedule join consumes. Missing medications simply have no entry.
func TakenOn(ctx context.Context, db *gorm.DB, userID, dateKey string) (map[string]bool, error) {
	var recs []domain.AdherenceRecord
	err := db.WithContext(ctx).
		Where("user_id = ? AND date_key = ?", userID, dateKey).
		Find(&recs).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(recs))
	for _, r := range recs {
		out[r.MedicationID] = r.Taken
	}
	return out, nil
}

// HistorySnapshot rebuilds the full date-keyed history map for userID:
// { "YYYY-MM-DD": { "<medicationId>": true|false } }. This is the exact
// serialized layout the surrounding hosts persist and exchange.
func HistorySnapshot(ctx context.Context, db *gorm.DB, userID string) (map[string]map[string]bool, error) {
	var recs []domain.AdherenceRecord
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("date_key asc").
		Find(&recs).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]map[string]bool)
	for _, r := range recs {
		day := out[r.DateKey]
		if day == nil {
			day = make(map[string]bool)
			out[r.DateKey] = day
		}
		day[r.MedicationID] = r.Taken
	}
	return out, nil
}
