// Medication HTTP handlers.
//
// This file exposes REST endpoints for medication resources:
//   - POST   /medications        (create)
//   - GET    /medications        (list, paginated, ETag support)
//   - GET    /medications/{id}   (fetch)
//   - PUT    /medications/{id}   (update definition)
//   - DELETE /medications/{id}   (soft delete)
//
// Handlers are transport-thin: they validate input, call application services,
// and translate results into HTTP responses (including conditional responses).
package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pilltrack/go-adherence-backend/internal/domain"
	"github.com/pilltrack/go-adherence-backend/internal/repo"
	"github.com/pilltrack/go-adherence-backend/internal/schedule"
	"github.com/pilltrack/go-adherence-backend/internal/services"
	"github.com/pilltrack/go-adherence-backend/internal/utils"
)

//
// Service contracts (context-aware)
//

// MedicationService defines medication lifecycle operations consumed by HTTP
// handlers.
//
// Implementations should be safe for concurrent use and must honor the
// provided context for cancellation and timeouts.
type MedicationService interface {
	// Create validates and inserts a new medication for userID.
	Create(ctx context.Context, userID string, med *domain.Medication) (*domain.Medication, error)
	// Get fetches one medication that belongs to userID.
	Get(ctx context.Context, userID, id string) (*domain.Medication, error)
	// ListPage returns a page of medications for a user and the total count.
	ListPage(ctx context.Context, userID string, page, pageSize int) ([]domain.Medication, int64, error)
	// Update validates and saves the definition of an existing medication.
	Update(ctx context.Context, userID, id string, med *domain.Medication) (*domain.Medication, error)
	// Delete soft-deletes a medication that belongs to userID.
	Delete(ctx context.Context, userID, id string) error
	// DaySchedule returns the classified, display-ordered doses for one date.
	DaySchedule(ctx context.Context, userID, dateKey string) ([]schedule.Occurrence, error)
}

// AdherenceService defines history reads and the toggle mutation.
type AdherenceService interface {
	// ToggleTaken flips one (date, medication) history cell.
	ToggleTaken(ctx context.Context, userID, medicationID, dateKey string) (*services.ToggleResult, error)
	// HistorySnapshot returns the full date-keyed history map.
	HistorySnapshot(ctx context.Context, userID string) (map[string]map[string]bool, error)
}

// RefillService defines refill projection and recording operations.
type RefillService interface {
	// CheckAllRefills returns low-stock alerts, most urgent first.
	CheckAllRefills(ctx context.Context, userID string) ([]services.RefillAlert, error)
	// RecordRefill adds stock to a medication's inventory counters.
	RecordRefill(ctx context.Context, userID, medicationID string, quantity float64) (*domain.Inventory, error)
}

// ReminderService defines the due-window read and session dismissal.
type ReminderService interface {
	// DueSoon returns occurrences inside the look-ahead window right now.
	DueSoon(ctx context.Context, userID string) ([]schedule.Occurrence, error)
	// Dismiss silences one occurrence for the rest of the session.
	Dismiss(userID, occurrenceKey string)
}

//
// Handler wiring
//

// Handlers groups HTTP endpoints for medications, schedules, adherence,
// refills, and reminders. It depends on abstract service interfaces to keep
// transport concerns separate from business logic.
type Handlers struct {
	medSvc MedicationService
	adhSvc AdherenceService
	refSvc RefillService
	remSvc ReminderService
}

// New constructs and returns a Handlers instance bound to the given services.
func New(medSvc MedicationService, adhSvc AdherenceService, refSvc RefillService, remSvc ReminderService) *Handlers {
	return &Handlers{medSvc: medSvc, adhSvc: adhSvc, refSvc: refSvc, remSvc: remSvc}
}

// userID extracts the authenticated user id from Gin context (set by upstream
// middleware). If absent, it falls back to "X-User-ID" header (tests use it),
// and finally to "demo-user". It never touches c.Request if it's nil.
func userID(c *gin.Context) string {
	if v, ok := c.Get("userID"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	if c != nil && c.Request != nil {
		if h := strings.TrimSpace(c.GetHeader("X-User-ID")); h != "" {
			return h
		}
	}
	return "demo-user"
}

//
// DTOs
//

// InventoryPayload carries the optional stock counters of a medication.
type InventoryPayload struct {
	// TotalQuantity is the bottle size in pills.
	TotalQuantity float64 `json:"total_quantity" example:"60"`
	// QuantityRemaining defaults to TotalQuantity when omitted.
	QuantityRemaining *float64 `json:"quantity_remaining,omitempty" example:"58"`
	// QuantityPerDose is how many pills one dose consumes.
	QuantityPerDose float64 `json:"quantity_per_dose" example:"1"`
	// DosesPerDay is how many doses are scheduled per day.
	DosesPerDay int `json:"doses_per_day" example:"2"`
}

// MedicationRequest is the JSON payload for creating or updating a medication.
type MedicationRequest struct {
	// Name is the display name (required).
	Name string `json:"name" binding:"required" example:"Metformin"`
	// Dosage is free-form strength text.
	Dosage string `json:"dosage" example:"500mg"`
	// Times lists the dose times as HH:MM, 24-hour.
	Times []string `json:"times" binding:"required" example:"08:00,20:00"`
	// Days restricts the schedule to certain weekdays; omit for every day.
	Days map[string]bool `json:"days,omitempty"`
	// StartDate is the first day of the course (YYYY-MM-DD), optional.
	StartDate string `json:"start_date,omitempty" example:"2026-03-01"`
	// EndDate is the last day of the course (YYYY-MM-DD), optional.
	EndDate string `json:"end_date,omitempty" example:"2026-03-31"`
	// MealTiming is one of before, with, after, anytime.
	MealTiming string `json:"meal_timing" example:"with"`
	// Inventory enables refill tracking when present.
	Inventory *InventoryPayload `json:"inventory,omitempty"`
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ListMedicationsResponse wraps a page of medications and pagination
// information.
type ListMedicationsResponse struct {
	Medications []domain.Medication `json:"medications"`
	Pagination  Pagination          `json:"pagination"`
}

//
// Helpers
//

// clampPagination parses and bounds page and page_size query params to sane
// defaults and limits, returning (page, pageSize).
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return
}

// toDomain converts the request payload into the persistence model. Date
// strings must be YYYY-MM-DD; anything else is a validation error.
func (r MedicationRequest) toDomain() (*domain.Medication, error) {
	med := &domain.Medication{
		Name:       r.Name,
		Dosage:     r.Dosage,
		Times:      domain.TimeList(r.Times),
		MealTiming: r.MealTiming,
	}
	if r.Days != nil {
		mask := domain.WeekMask{WeekMask: schedule.WeekMaskFromMap(r.Days)}
		med.Days = &mask
	}
	if r.StartDate != "" {
		d, err := schedule.ParseDateKey(r.StartDate)
		if err != nil {
			return nil, services.ErrInvalidDate
		}
		med.StartDate = &d
	}
	if r.EndDate != "" {
		d, err := schedule.ParseDateKey(r.EndDate)
		if err != nil {
			return nil, services.ErrInvalidDate
		}
		med.EndDate = &d
	}
	if r.Inventory != nil {
		remaining := r.Inventory.TotalQuantity
		if r.Inventory.QuantityRemaining != nil {
			remaining = *r.Inventory.QuantityRemaining
		}
		med.Inventory = &domain.Inventory{
			TotalQuantity:     r.Inventory.TotalQuantity,
			QuantityRemaining: remaining,
			QuantityPerDose:   r.Inventory.QuantityPerDose,
			DosesPerDay:       r.Inventory.DosesPerDay,
		}
	}
	return med, nil
}

// failValidation maps service validation errors onto 400 responses with the
// invalid_schedule code; anything unrecognized becomes a 500.
func failValidation(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrEmptyName),
		errors.Is(err, services.ErrNameTooLong),
		errors.Is(err, services.ErrNoTimes),
		errors.Is(err, services.ErrInvalidTime),
		errors.Is(err, services.ErrInvalidMealTiming),
		errors.Is(err, services.ErrInvalidDateRange),
		errors.Is(err, services.ErrInvalidDate):
		fail(c, http.StatusBadRequest, ErrCodeInvalidSchedule, err.Error())
	case errors.Is(err, services.ErrMedicationNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "medication not found")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
	}
}

//
// Handlers
//

// CreateMedication godoc
// @ID          createMedication
// @Summary     Create a medication
// @Description Validates the schedule and creates a medication for the current user.
// @Tags        Medications
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       body       body    handlers.MedicationRequest  true  "Medication payload"
//
// @Success     201  {object}  domain.Medication
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid schedule"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /medications [post]
func (h *Handlers) CreateMedication(c *gin.Context) {
	var req MedicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	med, err := req.toDomain()
	if err != nil {
		failValidation(c, err)
		return
	}

	created, err := h.medSvc.Create(c.Request.Context(), userID(c), med)
	if err != nil {
		failValidation(c, err)
		return
	}
	ok(c, http.StatusCreated, created)
}

// ListMedications godoc
// @ID          listMedications
// @Summary     List medications (paginated)
// @Description Returns a page of the user's medications. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Medications
// @Produce     json
//
// @Param       X-User-ID      header  string  false "User ID (demo header)"       example(user123)
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"  example(W/\"abc123\")
// @Param       page           query   int     false "Page number"                  minimum(1) default(1)
// @Param       page_size      query   int     false "Items per page"               minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.ListMedicationsResponse
// @Header      200  {string} ETag           "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /medications [get]
func (h *Handlers) ListMedications(c *gin.Context) {
	ctx := c.Request.Context()
	uid := userID(c)
	page, pageSize := clampPagination(c)

	// ETag pre-check (best effort).
	var db *gorm.DB
	if svc, ok := h.medSvc.(*services.MedicationService); ok {
		db = svc.DB
	}
	if db != nil {
		count, maxTS, err := repo.MedicationsStats(ctx, db, uid)
		if err == nil {
			var ts int64
			if maxTS != nil {
				ts = maxTS.Unix()
			}
			etag := fmt.Sprintf(`W/"medications:%s:%d:%d"`, uid, count, ts)
			c.Header("ETag", etag)
			if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	// Fetch page.
	items, total, err := h.medSvc.ListPage(ctx, uid, page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	resp := ListMedicationsResponse{
		Medications: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	}
	ok(c, http.StatusOK, resp)
}

// GetMedication godoc
// @ID          getMedication
// @Summary     Fetch a medication
// @Description Returns one medication owned by the current user, inventory included.
// @Tags        Medications
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Medication ID (UUID)"   format(uuid)
//
// @Success     200  {object} domain.Medication
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Medication not found"
// @Router      /medications/{id} [get]
func (h *Handlers) GetMedication(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "medication id must be a UUID")
		return
	}
	med, err := h.medSvc.Get(c.Request.Context(), userID(c), id)
	if err != nil {
		failValidation(c, err)
		return
	}
	ok(c, http.StatusOK, med)
}

// UpdateMedication godoc
// @ID          updateMedication
// @Summary     Update a medication definition
// @Description Replaces the schedule fields of a medication owned by the current user.
// @Tags        Medications
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Medication ID (UUID)"   format(uuid)
// @Param       body       body    handlers.MedicationRequest  true  "New definition"
//
// @Success     200  {object} domain.Medication
// @Failure     400  {object} handlers.ErrorResponse "Invalid schedule"
// @Failure     404  {object} handlers.ErrorResponse "Medication not found"
// @Router      /medications/{id} [put]
func (h *Handlers) UpdateMedication(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "medication id must be a UUID")
		return
	}

	var req MedicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	med, err := req.toDomain()
	if err != nil {
		failValidation(c, err)
		return
	}

	updated, err := h.medSvc.Update(c.Request.Context(), userID(c), id, med)
	if err != nil {
		failValidation(c, err)
		return
	}
	ok(c, http.StatusOK, updated)
}

// DeleteMedication godoc
// @ID          deleteMedication
// @Summary     Delete a medication
// @Description Soft-deletes a medication; adherence history is retained.
// @Tags        Medications
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Medication ID (UUID)"   format(uuid)
//
// @Success     204  {string} string "No Content"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Medication not found"
// @Router      /medications/{id} [delete]
func (h *Handlers) DeleteMedication(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "medication id must be a UUID")
		return
	}
	if err := h.medSvc.Delete(c.Request.Context(), userID(c), id); err != nil {
		failValidation(c, err)
		return
	}
	noContent(c)
}

// today is a seam for date defaults in query handling.
func today() string { return time.Now().Format("2006-01-02") }
