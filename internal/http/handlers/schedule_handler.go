// Schedule and adherence HTTP handlers.
//
// This file exposes the evaluation surface of the API:
//   - GET  /schedule                   (classified day schedule, ?date=)
//   - POST /medications/{id}/taken     (toggle a history cell, ?date=)
//   - GET  /adherence                  (full history snapshot)
//
// Toggle supports idempotent retries via the Idempotency-Key header: a replay
// of a completed toggle returns the stored outcome instead of flipping again.
package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pilltrack/go-adherence-backend/internal/http/middleware"
	"github.com/pilltrack/go-adherence-backend/internal/repo"
	"github.com/pilltrack/go-adherence-backend/internal/schedule"
	"github.com/pilltrack/go-adherence-backend/internal/services"
)

// DayScheduleResponse wraps one date's classified, display-ordered doses.
type DayScheduleResponse struct {
	Date  string                `json:"date"`
	Doses []schedule.Occurrence `json:"doses"`
}

// GetSchedule godoc
// @ID          getSchedule
// @Summary     Day schedule
// @Description Returns the classified, display-ordered doses for one date (defaults to today).
// @Tags        Schedule
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"     example(user123)
// @Param       date       query   string  false "Target date (YYYY-MM-DD)"  example(2026-03-10)
//
// @Success     200  {object} handlers.DayScheduleResponse
// @Failure     400  {object} handlers.ErrorResponse "Invalid date"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /schedule [get]
func (h *Handlers) GetSchedule(c *gin.Context) {
	dateKey := c.Query("date")
	if dateKey == "" {
		dateKey = today()
	}

	doses, err := h.medSvc.DaySchedule(c.Request.Context(), userID(c), dateKey)
	if err != nil {
		failValidation(c, err)
		return
	}
	ok(c, http.StatusOK, DayScheduleResponse{Date: dateKey, Doses: doses})
}

// ToggleTaken godoc
// @ID          toggleTaken
// @Summary     Toggle a dose taken
// @Description Flips the taken flag for one medication on one date (defaults to today). Rejects dates outside the medication's active course.
// @Tags        Adherence
// @Produce     json
//
// @Param       X-User-ID        header  string  false "User ID (demo header)"       example(user123)
// @Param       Idempotency-Key  header  string  false "Safe-retry key"
// @Param       id               path    string  true  "Medication ID (UUID)"        format(uuid)
// @Param       date             query   string  false "Target date (YYYY-MM-DD)"    example(2026-03-10)
//
// @Success     200  {object} services.ToggleResult
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Medication not found"
// @Failure     409  {object} handlers.ErrorResponse "Medication not active on date"
// @Router      /medications/{id}/taken [post]
func (h *Handlers) ToggleTaken(c *gin.Context) {
	medID := c.Param("id")
	if _, err := uuid.Parse(medID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "medication id must be a UUID")
		return
	}
	ctx := c.Request.Context()
	uid := userID(c)

	// Idempotency (replay path): a completed toggle with this key already
	// exists, so report the stored outcome instead of flipping again.
	idemKey, _ := handlerIdempotencyKey(c)
	db := h.adherenceDB()
	if idemKey != "" && db != nil {
		if rec, err := repo.GetIdempotency(ctx, db, uid, medID, idemKey, time.Now().UTC()); err == nil && rec != nil {
			if taken, err2 := repo.GetTaken(ctx, db, uid, rec.ResultID, medID); err2 == nil {
				c.Header("Idempotency-Replayed", "true")
				ok(c, http.StatusOK, services.ToggleResult{
					MedicationID: medID,
					DateKey:      rec.ResultID,
					Taken:        taken,
				})
				return
			}
		}
	}

	res, err := h.adhSvc.ToggleTaken(ctx, uid, medID, c.Query("date"))
	if err != nil {
		if nae, isNAE := services.IsNotActive(err); isNAE {
			fail(c, http.StatusConflict, ErrCodeNotActive, nae.Error())
			return
		}
		failValidation(c, err)
		return
	}

	// Idempotency (store path) – best effort. ResultID records the resolved
	// date key so replays can re-read the same cell.
	if idemKey != "" && db != nil {
		ttl := 24 * time.Hour
		_, _ = repo.CreateIdempotency(ctx, db, uid, medID, idemKey, res.DateKey, http.StatusOK, ttl)
	}
	ok(c, http.StatusOK, res)
}

// handlerIdempotencyKey extracts an idempotency key if an upstream middleware
// validated one, falling back to the raw "Idempotency-Key" header when the
// route runs without the dedicated middleware.
func handlerIdempotencyKey(c *gin.Context) (string, bool) {
	if key, has := middleware.GetIdempotencyKey(c); has {
		return key, true
	}
	if v := strings.TrimSpace(c.GetHeader(middleware.HeaderIdempotencyKey)); v != "" {
		return v, true
	}
	return "", false
}

// adherenceDB unwraps the concrete adherence service for direct repository
// access (idempotency bookkeeping). Nil when a test double is installed.
func (h *Handlers) adherenceDB() *gorm.DB {
	if svc, isConcrete := h.adhSvc.(*services.AdherenceService); isConcrete {
		return svc.DB
	}
	return nil
}

// GetAdherence godoc
// @ID          getAdherence
// @Summary     Adherence history snapshot
// @Description Returns the full history as a date-keyed map: { "YYYY-MM-DD": { "<medicationId>": true } }.
// @Tags        Adherence
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
//
// @Success     200  {object} map[string]map[string]bool
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /adherence [get]
func (h *Handlers) GetAdherence(c *gin.Context) {
	snap, err := h.adhSvc.HistorySnapshot(c.Request.Context(), userID(c))
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, snap)
}
