// Package domain defines the persistence models for medications, inventory,
// and adherence history. These types are mapped with GORM and form the core
// data layer of the adherence backend. Scheduling logic never lives here:
// models convert themselves into engine-facing values (see Definition) and
// the schedule package does the thinking.
package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/pilltrack/go-adherence-backend/internal/schedule"
)

// TimeList is an ordered list of "HH:MM" dose times, stored as a JSON array
// in a TEXT column.
type TimeList []string

// Value implements driver.Valuer: serialize as JSON.
func (l TimeList) Value() (driver.Value, error) {
	b, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner: deserialize from JSON text/bytes.
func (l *TimeList) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*l = nil
		return nil
	case string:
		return json.Unmarshal([]byte(v), (*[]string)(l))
	case []byte:
		return json.Unmarshal(v, (*[]string)(l))
	default:
		return fmt.Errorf("cannot scan %T into TimeList", src)
	}
}

// WeekMask is the persisted weekly recurrence mask. It wraps the engine's
// Sunday-first mask with the keyed JSON column shape
// {"sun":bool,...,"sat":bool}. A NULL column means "no mask", which the
// engine treats as scheduled every day.
type WeekMask struct {
	schedule.WeekMask
}

// Value implements driver.Valuer: serialize as the sun..sat keyed JSON map.
func (m WeekMask) Value() (driver.Value, error) {
	b, err := json.Marshal(m.Map())
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (m *WeekMask) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("cannot scan %T into WeekMask", src)
	}
	keyed := make(map[string]bool, 7)
	if err := json.Unmarshal(raw, &keyed); err != nil {
		return err
	}
	m.WeekMask = schedule.WeekMaskFromMap(keyed)
	return nil
}

// MarshalJSON renders the mask in its keyed map shape for API responses.
func (m WeekMask) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Map())
}

// UnmarshalJSON parses the keyed map shape.
func (m *WeekMask) UnmarshalJSON(b []byte) error {
	keyed := make(map[string]bool, 7)
	if err := json.Unmarshal(b, &keyed); err != nil {
		return err
	}
	m.WeekMask = schedule.WeekMaskFromMap(keyed)
	return nil
}

// Medication is one tracked medication owned by a user. The definition
// (times, recurrence, bounds) drives occurrence expansion; the optional
// Inventory association drives refill projection.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - UserID: identifier of the owner; indexed for efficient retrieval.
//   - Name/Dosage: display strings, never interpreted by the engine.
//   - Times: JSON-encoded ordered list of HH:MM entries; one occurrence per
//     entry per scheduled day. Validated at ingestion, not deep in the engine.
//   - Days: nullable weekly recurrence mask; NULL means every day.
//   - StartDate/EndDate: inclusive course bounds; NULL means unbounded.
//   - MealTiming: before|with|after|anytime; cosmetic plus display ordering.
//   - DeletedAt: soft deletion marker (retains row for history).
type Medication struct {
	ID         string         `json:"id"          gorm:"type:char(36);primaryKey"`
	UserID     string         `json:"user_id"     gorm:"type:varchar(64);not null;index:idx_user_medications"`
	Name       string         `json:"name"        gorm:"type:varchar(255);not null"`
	Dosage     string         `json:"dosage"      gorm:"type:varchar(255)"`
	Times      TimeList       `json:"times"       gorm:"type:text;not null"`
	Days       *WeekMask      `json:"days_of_week,omitempty" gorm:"type:text"`
	StartDate  *time.Time     `json:"start_date,omitempty"`
	EndDate    *time.Time     `json:"end_date,omitempty"`
	MealTiming string         `json:"meal_timing" gorm:"type:varchar(16);not null;default:'anytime';check:meal_timing IN ('before','with','after','anytime')"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `json:"-"           gorm:"index"`

	// Inventory is the optional 1:1 supply record; medications without
	// inventory tracking simply have none.
	Inventory *Inventory `json:"inventory,omitempty" gorm:"foreignKey:MedicationID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Medication.
func (Medication) TableName() string { return "medications" }

// Definition converts the persisted record into the engine-facing view
// consumed by the schedule package.
func (m *Medication) Definition() schedule.Definition {
	def := schedule.Definition{
		ID:        m.ID,
		Name:      m.Name,
		Times:     []string(m.Times),
		StartDate: m.StartDate,
		EndDate:   m.EndDate,
		Meal:      schedule.MealTiming(m.MealTiming),
	}
	if m.Days != nil {
		mask := m.Days.WeekMask
		def.Days = &mask
	}
	return def
}

// Inventory tracks the remaining supply for one medication (1:1 by
// medication id). Quantities are floats so fractional doses (half tablets)
// stay representable. All mutation goes through the service layer, which
// clamps decrements at zero rather than ever going negative.
type Inventory struct {
	MedicationID      string     `json:"medication_id"      gorm:"type:char(36);primaryKey"`
	TotalQuantity     float64    `json:"total_quantity"     gorm:"not null;default:0"`
	QuantityRemaining float64    `json:"quantity_remaining" gorm:"not null;default:0"`
	QuantityPerDose   float64    `json:"quantity_per_dose"  gorm:"not null;default:0"`
	DosesPerDay       int        `json:"doses_per_day"      gorm:"not null;default:0"`
	LastRefillDate    *time.Time `json:"last_refill_date,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// TableName returns the database table name for Inventory.
func (Inventory) TableName() string { return "inventories" }

// Supply converts the record into the engine-facing counters consumed by the
// refill projector.
func (i *Inventory) Supply() schedule.Supply {
	return schedule.Supply{
		MedicationID:      i.MedicationID,
		QuantityRemaining: i.QuantityRemaining,
		QuantityPerDose:   i.QuantityPerDose,
		DosesPerDay:       i.DosesPerDay,
	}
}

// AdherenceRecord is one cell of the adherence history: whether the user
// marked a medication taken on a calendar date. It is the relational
// rendering of the date-keyed map `{ "YYYY-MM-DD": { "<id>": bool } }`; the
// repository rebuilds that JSON shape on demand for host compatibility.
// Rows are created lazily on first toggle and never deleted.
type AdherenceRecord struct {
	ID           string    `json:"id"            gorm:"type:char(36);primaryKey"`
	UserID       string    `json:"user_id"       gorm:"type:varchar(64);not null;uniqueIndex:ux_adherence_cell,priority:1"`
	DateKey      string    `json:"date"          gorm:"type:char(10);not null;uniqueIndex:ux_adherence_cell,priority:2"`
	MedicationID string    `json:"medication_id" gorm:"type:char(36);not null;uniqueIndex:ux_adherence_cell,priority:3;index"`
	Taken        bool      `json:"taken"         gorm:"not null;default:false"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName returns the database table name for AdherenceRecord.
func (AdherenceRecord) TableName() string { return "adherence_records" }

// ErrInvalidDateKey is returned when a date string is not YYYY-MM-DD.
var ErrInvalidDateKey = errors.New("date must be YYYY-MM-DD")

// ValidateDateKey checks the canonical YYYY-MM-DD shape used to key
// adherence history.
func ValidateDateKey(s string) error {
	if _, err := schedule.ParseDateKey(s); err != nil {
		return ErrInvalidDateKey
	}
	return nil
}
