// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Medication
// model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations. They
// follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition. Schedule validation happens in the
// service layer before anything reaches these functions.
//
// Error semantics:
//   - When a medication is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pilltrack/go-adherence-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// CreateMedication inserts a new medication row owned by userID. The ID is a
// randomly generated UUID and CreatedAt is set to UTC. When the record
// carries an Inventory association, GORM persists it in the same statement.
func CreateMedication(ctx context.Context, db *gorm.DB, med *domain.Medication) (*domain.Medication, error) {
	med.ID = uuid.NewString()
	med.CreatedAt = time.Now().UTC()
	if med.Inventory != nil {
		med.Inventory.MedicationID = med.ID
	}
	if err := db.WithContext(ctx).Create(med).Error; err != nil {
		return nil, err
	}
	return med, nil
}

// GetMedication fetches a single medication by its ID and owner, preloading
// the inventory association. Soft-deleted rows are excluded. Returns
// ErrNotFound if missing.
func GetMedication(ctx context.Context, db *gorm.DB, id, userID string) (*domain.Medication, error) {
	var m domain.Medication
	err := db.WithContext(ctx).
		Preload("Inventory").
		Where("id = ? AND user_id = ?", id, userID).
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ListMedications returns all live medications for userID ordered by name,
// with inventories preloaded. Soft-deleted rows are excluded by GORM.
func ListMedications(ctx context.Context, db *gorm.DB, userID string) ([]domain.Medication, error) {
	var out []domain.Medication
	err := db.WithContext(ctx).
		Preload("Inventory").
		Where("user_id = ?", userID).
		Order("name asc").
		Find(&out).Error
	return out, err
}

// CountMedications returns the number of live medications owned by userID.
func CountMedications(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Medication{}).
		Where("user_id = ?", userID).
		Count(&total).Error
	return total, err
}

// ListMedicationsPage returns a page of live medications for userID ordered
// by name. Use CountMedications to obtain the total for pagination metadata.
func ListMedicationsPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.Medication, error) {
	var out []domain.Medication
	err := db.WithContext(ctx).
		Preload("Inventory").
		Where("user_id = ?", userID).
		Order("name asc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// UpdateMedication saves the definition fields of an existing medication
// owned by userID. It returns ErrNotFound when the row is missing or owned by
// someone else. Inventory counters are not touched here; they have their own
// mutation paths.
func UpdateMedication(ctx context.Context, db *gorm.DB, med *domain.Medication, userID string) error {
	updates := map[string]any{
		"name":        med.Name,
		"dosage":      med.Dosage,
		"times":       med.Times,
		"days":        nil,
		"start_date":  med.StartDate,
		"end_date":    med.EndDate,
		"meal_timing": med.MealTiming,
	}
	if med.Days != nil {
		updates["days"] = *med.Days
	}
	res := db.WithContext(ctx).
		Model(&domain.Medication{}).
		Where("id = ? AND user_id = ?", med.ID, userID).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteMedication soft-deletes a medication owned by userID. Adherence
// history referencing the medication is intentionally retained. Returns
// ErrNotFound when nothing was deleted.
func DeleteMedication(ctx context.Context, db *gorm.DB, id, userID string) error {
	res := db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&domain.Medication{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListUserIDs returns the distinct owners of live medications. The reminder
// polling loop uses it to evaluate every user's due window.
func ListUserIDs(ctx context.Context, db *gorm.DB) ([]string, error) {
	var out []string
	err := db.WithContext(ctx).
		Model(&domain.Medication{}).
		Distinct("user_id").
		Order("user_id asc").
		Pluck("user_id", &out).Error
	return out, err
}
