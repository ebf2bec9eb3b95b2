// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate/statistics queries used
// primarily for conditional responses (e.g., ETag generation) in the HTTP
// layer. Each function is context-aware and safe to call from services or
// handlers.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/pilltrack/go-adherence-backend/internal/domain"
)

// MedicationsStats returns aggregate metadata for a user's medications: the
// total number of live rows and the maximum UpdatedAt timestamp among them.
// The pair is cheap to compute and changes whenever any definition changes,
// which makes it a good weak-ETag ingredient for the list endpoint.
//
// When the user has no medications, count is 0 and maxUpdatedAt is nil.
func MedicationsStats(ctx context.Context, db *gorm.DB, userID string) (count int64, maxUpdatedAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.Medication{}).Where("user_id = ?", userID)

	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest updated_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		UpdatedAt time.Time
	}
	if err = q.Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.UpdatedAt, nil
}

// AdherenceStats returns the number of history cells and the latest update
// time for a user's adherence history, used for conditional snapshot
// responses.
func AdherenceStats(ctx context.Context, db *gorm.DB, userID string) (count int64, maxUpdatedAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.AdherenceRecord{}).Where("user_id = ?", userID)

	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	var row struct {
		UpdatedAt time.Time
	}
	if err = q.Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.UpdatedAt, nil
}
