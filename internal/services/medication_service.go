// Package services – MedicationService
//
// This file implements the MedicationService, which manages the lifecycle of
// medication records and produces classified day schedules. It is the write
// boundary of the system: malformed schedules (blank names, unparseable dose
// times, inverted date ranges, unknown meal timings) are rejected here so the
// evaluation engine never has to error on stored data.
//
// Service-level errors (e.g., ErrMedicationNotFound) are returned for
// predictable cases so handlers can map them to HTTP results consistently.
package services

import (
	"context"
	"errors"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/gorm"

	"github.com/pilltrack/go-adherence-backend/internal/domain"
	"github.com/pilltrack/go-adherence-backend/internal/schedule"
)

// MedicationRepo defines the repository contract required by MedicationService.
// Implementations are responsible for persistence of medication aggregates.
type MedicationRepo interface {
	// CreateMedication inserts a new medication row, generating its ID.
	CreateMedication(ctx context.Context, db *gorm.DB, med *domain.Medication) (*domain.Medication, error)

	// GetMedication fetches a medication by ID ensuring it belongs to the user.
	GetMedication(ctx context.Context, db *gorm.DB, id, userID string) (*domain.Medication, error)

	// ListMedications returns all live medications for the user.
	ListMedications(ctx context.Context, db *gorm.DB, userID string) ([]domain.Medication, error)

	// CountMedications returns the total number of live rows for pagination.
	CountMedications(ctx context.Context, db *gorm.DB, userID string) (int64, error)

	// ListMedicationsPage returns a page of medications belonging to the user.
	ListMedicationsPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.Medication, error)

	// UpdateMedication saves the definition fields of an existing medication.
	UpdateMedication(ctx context.Context, db *gorm.DB, med *domain.Medication, userID string) error

	// DeleteMedication soft-deletes a medication owned by the user.
	DeleteMedication(ctx context.Context, db *gorm.DB, id, userID string) error

	// TakenOn returns the medication-id to taken map for one date.
	TakenOn(ctx context.Context, db *gorm.DB, userID, dateKey string) (map[string]bool, error)
}

// MedicationService provides medication CRUD plus the classified day-schedule
// view. It enforces schedule validity rules and ownership constraints.
type MedicationService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the medication repository used by this service.
	Repo MedicationRepo
	// Clock supplies the current time for dose classification.
	Clock schedule.Clock

	// NameMaxLen caps stored medication names by rune length.
	NameMaxLen int
	// NameLocale drives title casing applied to all-lowercase names.
	NameLocale language.Tag
}

// NewMedicationService constructs a MedicationService with sane defaults.
func NewMedicationService(db *gorm.DB, r MedicationRepo, clk schedule.Clock) *MedicationService {
	return &MedicationService{
		DB:         db,
		Repo:       r,
		Clock:      clk,
		NameMaxLen: 120,
		NameLocale: language.English,
	}
}

// Create validates and inserts a new medication owned by userID.
func (s *MedicationService) Create(ctx context.Context, userID string, med *domain.Medication) (*domain.Medication, error) {
	tr := otel.Tracer("services/MedicationService")
	ctx, span := tr.Start(ctx, "Create",
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer span.End()

	if err := s.normalizeAndValidate(med); err != nil {
		return nil, err
	}
	med.UserID = userID
	return s.Repo.CreateMedication(ctx, s.DB, med)
}

// Get fetches a single medication, ensuring it belongs to the user.
func (s *MedicationService) Get(ctx context.Context, userID, id string) (*domain.Medication, error) {
	m, err := s.Repo.GetMedication(ctx, s.DB, id, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMedicationNotFound
		}
		return nil, err
	}
	return m, nil
}

// List returns all medications for a user (non-paginated).
// Prefer ListPage for scalability on large datasets.
func (s *MedicationService) List(ctx context.Context, userID string) ([]domain.Medication, error) {
	return s.Repo.ListMedications(ctx, s.DB, userID)
}

// ListPage returns a page of medications for a user (paginated).
// It applies defaults for invalid page/pageSize and returns total count.
func (s *MedicationService) ListPage(ctx context.Context, userID string, page, pageSize int) ([]domain.Medication, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	total, err := s.Repo.CountMedications(ctx, s.DB, userID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Medication{}, 0, nil
	}

	items, err := s.Repo.ListMedicationsPage(ctx, s.DB, userID, offset, pageSize)
	return items, total, err
}

// Update validates and saves the definition fields of an existing medication.
func (s *MedicationService) Update(ctx context.Context, userID, id string, med *domain.Medication) (*domain.Medication, error) {
	if err := s.normalizeAndValidate(med); err != nil {
		return nil, err
	}
	med.ID = id
	if err := s.Repo.UpdateMedication(ctx, s.DB, med, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMedicationNotFound
		}
		return nil, err
	}
	return s.Get(ctx, userID, id)
}

// Delete soft-deletes a medication. Adherence history referencing it is kept.
func (s *MedicationService) Delete(ctx context.Context, userID, id string) error {
	if err := s.Repo.DeleteMedication(ctx, s.DB, id, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrMedicationNotFound
		}
		return err
	}
	return nil
}

// DaySchedule expands every medication scheduled on dateKey into classified,
// display-ordered occurrences. Taken flags come from the adherence history;
// urgency flags are evaluated against the service clock.
func (s *MedicationService) DaySchedule(ctx context.Context, userID, dateKey string) ([]schedule.Occurrence, error) {
	tr := otel.Tracer("services/MedicationService")
	ctx, span := tr.Start(ctx, "DaySchedule",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("schedule.date", dateKey),
		),
	)
	defer span.End()

	date, err := schedule.ParseDateKey(dateKey)
	if err != nil {
		return nil, ErrInvalidDate
	}

	meds, err := s.Repo.ListMedications(ctx, s.DB, userID)
	if err != nil {
		return nil, err
	}
	taken, err := s.Repo.TakenOn(ctx, s.DB, userID, dateKey)
	if err != nil {
		return nil, err
	}

	now := s.Clock.Now()
	isToday := schedule.SameDate(now, date)
	out := make([]schedule.Occurrence, 0, len(meds))
	for i := range meds {
		def := meds[i].Definition()
		occs := schedule.DayOccurrences(def, date)
		tk := taken[def.ID]
		for j := range occs {
			if isToday {
				occs[j].State = schedule.Classify(def, occs[j].TimeOfDay, tk, now)
				continue
			}
			// Urgency windows are a today-only concept. Other dates get the
			// lifecycle and taken flag and nothing else.
			st := schedule.DoseState{
				Status:  schedule.LifecycleOn(def, date),
				IsTaken: tk,
			}
			st.CanMarkTaken = st.Status == schedule.LifecycleActive
			occs[j].State = st
		}
		out = append(out, occs...)
	}
	schedule.SortForDisplay(out)
	return out, nil
}

// normalizeAndValidate applies the write-boundary rules in place: a usable
// name, at least one parseable HH:MM dose time (deduplicated and sorted), a
// known meal timing, and a coherent date range.
func (s *MedicationService) normalizeAndValidate(med *domain.Medication) error {
	med.Name = s.normalizeName(med.Name)
	if med.Name == "" {
		return ErrEmptyName
	}
	if s.NameMaxLen > 0 && utf8.RuneCountInString(med.Name) > s.NameMaxLen {
		return ErrNameTooLong
	}
	med.Dosage = strings.TrimSpace(med.Dosage)

	times, err := normalizeTimes(med.Times)
	if err != nil {
		return err
	}
	med.Times = times

	if med.MealTiming == "" {
		med.MealTiming = string(schedule.MealAnytime)
	}
	if !schedule.ValidMealTiming(schedule.MealTiming(med.MealTiming)) {
		return ErrInvalidMealTiming
	}

	if med.StartDate != nil && med.EndDate != nil && med.EndDate.Before(*med.StartDate) {
		return ErrInvalidDateRange
	}
	return nil
}

// normalizeName trims and collapses whitespace, then title-cases names that
// arrive all-lowercase so listings read consistently.
func (s *MedicationService) normalizeName(name string) string {
	name = whitespaceRE.ReplaceAllString(strings.TrimSpace(name), " ")
	if name == "" || strings.ContainsFunc(name, unicode.IsUpper) {
		return name
	}
	return cases.Title(s.nameLocaleOrDefault()).String(name)
}

func (s *MedicationService) nameLocaleOrDefault() language.Tag {
	if s.NameLocale == language.Und {
		return language.English
	}
	return s.NameLocale
}

// normalizeTimes validates each dose time, drops duplicates, and sorts the
// remainder chronologically.
func normalizeTimes(in domain.TimeList) (domain.TimeList, error) {
	if len(in) == 0 {
		return nil, ErrNoTimes
	}
	seen := make(map[string]struct{}, len(in))
	out := make(domain.TimeList, 0, len(in))
	for _, t := range in {
		t = strings.TrimSpace(t)
		if _, err := schedule.MinutesOfDay(t); err != nil {
			return nil, ErrInvalidTime
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out, nil
}

// whitespaceRE collapses consecutive whitespace to a single space.
var whitespaceRE = regexp.MustCompile(`\s+`)
