// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Inventory
// model. Clamping rules (never-negative counters) are enforced by the
// service layer; this file persists whatever counters it is handed.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/pilltrack/go-adherence-backend/internal/domain"
)

// GetInventory fetches the inventory row for a medication, or ErrNotFound
// when the medication is not inventory-tracked.
func GetInventory(ctx context.Context, db *gorm.DB, medicationID string) (*domain.Inventory, error) {
	var inv domain.Inventory
	err := db.WithContext(ctx).
		Where("medication_id = ?", medicationID).
		First(&inv).Error
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// UpsertInventory creates or replaces the counters for a medication.
func UpsertInventory(ctx context.Context, db *gorm.DB, inv *domain.Inventory) error {
	return db.WithContext(ctx).Save(inv).Error
}

// SetQuantityRemaining persists a new remaining-quantity counter. Returns
// ErrNotFound when the medication has no inventory row.
func SetQuantityRemaining(ctx context.Context, db *gorm.DB, medicationID string, remaining float64) error {
	res := db.WithContext(ctx).
		Model(&domain.Inventory{}).
		Where("medication_id = ?", medicationID).
		Update("quantity_remaining", remaining)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ApplyRefill adds quantity to both the remaining and total counters and
// stamps the refill date. Returns ErrNotFound when the medication has no
// inventory row.
func ApplyRefill(ctx context.Context, db *gorm.DB, medicationID string, quantity float64, refillDate time.Time) error {
	res := db.WithContext(ctx).
		Model(&domain.Inventory{}).
		Where("medication_id = ?", medicationID).
		Updates(map[string]any{
			"quantity_remaining": gorm.Expr("quantity_remaining + ?", quantity),
			"total_quantity":     gorm.Expr("total_quantity + ?", quantity),
			"last_refill_date":   refillDate,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// TrackedInventory is an inventory row joined with its medication's display
// name, so refill projection can label alerts without a second query.
type TrackedInventory struct {
	domain.Inventory
	Name string
}

// ListTrackedInventories returns each live medication's inventory counters
// together with its display name.
func ListTrackedInventories(ctx context.Context, db *gorm.DB, userID string) ([]TrackedInventory, error) {
	var out []TrackedInventory
	err := db.WithContext(ctx).
		Model(&domain.Inventory{}).
		Select("inventories.*, medications.name AS name").
		Joins("JOIN medications ON medications.id = inventories.medication_id").
		Where("medications.user_id = ? AND medications.deleted_at IS NULL", userID).
		Order("medications.name asc").
		Scan(&out).Error
	return out, err
}
