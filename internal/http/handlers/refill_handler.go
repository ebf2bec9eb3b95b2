// Refill HTTP handlers.
//
// This file exposes the inventory surface of the API:
//   - GET  /refills                    (low-stock alerts, most urgent first)
//   - POST /medications/{id}/refill    (record a refill)
package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pilltrack/go-adherence-backend/internal/repo"
	"github.com/pilltrack/go-adherence-backend/internal/services"
)

// RecordRefillRequest is the JSON payload for recording a refill.
type RecordRefillRequest struct {
	// Quantity is the number of pills added (must be positive).
	Quantity float64 `json:"quantity" binding:"required" example:"30"`
}

// ListRefills godoc
// @ID          listRefills
// @Summary     Refill alerts
// @Description Scans every inventory-tracked medication and returns low-stock alerts, most urgent first. Comfortable stock produces no alert.
// @Tags        Refills
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
//
// @Success     200  {array}  services.RefillAlert
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /refills [get]
func (h *Handlers) ListRefills(c *gin.Context) {
	alerts, err := h.refSvc.CheckAllRefills(c.Request.Context(), userID(c))
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, alerts)
}

// RecordRefill godoc
// @ID          recordRefill
// @Summary     Record a refill
// @Description Adds stock to a medication's inventory counters and stamps the refill date.
// @Tags        Refills
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID        header  string  false "User ID (demo header)"  example(user123)
// @Param       Idempotency-Key  header  string  false "Safe-retry key"
// @Param       id               path    string  true  "Medication ID (UUID)"   format(uuid)
// @Param       body             body    handlers.RecordRefillRequest  true  "Refill payload"
//
// @Success     200  {object} domain.Inventory
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Medication not found"
// @Failure     409  {object} handlers.ErrorResponse "Medication not inventory-tracked"
// @Router      /medications/{id}/refill [post]
func (h *Handlers) RecordRefill(c *gin.Context) {
	medID := c.Param("id")
	if _, err := uuid.Parse(medID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "medication id must be a UUID")
		return
	}
	ctx := c.Request.Context()
	uid := userID(c)

	var req RecordRefillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	// Idempotency (replay path): the refill with this key was already applied,
	// so return the current counters without adding stock twice.
	idemKey, _ := handlerIdempotencyKey(c)
	db := h.refillDB()
	if idemKey != "" && db != nil {
		if rec, err := repo.GetIdempotency(ctx, db, uid, medID, idemKey, time.Now().UTC()); err == nil && rec != nil {
			if inv, err2 := repo.GetInventory(ctx, db, medID); err2 == nil {
				c.Header("Idempotency-Replayed", "true")
				ok(c, http.StatusOK, inv)
				return
			}
		}
	}

	inv, err := h.refSvc.RecordRefill(ctx, uid, medID, req.Quantity)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidQuantity):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		case errors.Is(err, services.ErrNotTracked):
			fail(c, http.StatusConflict, ErrCodeNotTracked, err.Error())
		default:
			failValidation(c, err)
		}
		return
	}

	// Idempotency (store path) – best effort.
	if idemKey != "" && db != nil {
		ttl := 24 * time.Hour
		_, _ = repo.CreateIdempotency(ctx, db, uid, medID, idemKey, medID, http.StatusOK, ttl)
	}
	ok(c, http.StatusOK, inv)
}

// refillDB unwraps the concrete refill service for direct repository access
// (idempotency bookkeeping). Nil when a test double is installed.
func (h *Handlers) refillDB() *gorm.DB {
	if svc, isConcrete := h.refSvc.(*services.RefillService); isConcrete {
		return svc.DB
	}
	return nil
}
