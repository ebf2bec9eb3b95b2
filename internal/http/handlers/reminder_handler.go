// Reminder HTTP handlers.
//
// This file exposes the reminder surface of the API:
//   - GET  /reminders/due               (doses due within the look-ahead window)
//   - POST /reminders/{id}/dismiss      (dismiss one occurrence for this session)
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/pilltrack/go-adherence-backend/internal/schedule"
)

// DismissReminderRequest identifies the dose occurrence being dismissed.
// The medication comes from the path; date defaults to today when omitted.
type DismissReminderRequest struct {
	Date string `json:"date" example:"2026-03-10"`
	Time string `json:"time" binding:"required" example:"09:00"`
}

// ListDueReminders godoc
// @ID          listDueReminders
// @Summary     Due reminders
// @Description Returns the untaken, undismissed doses falling inside the reminder look-ahead window, soonest first.
// @Tags        Reminders
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
//
// @Success     200  {array}  schedule.Occurrence
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /reminders/due [get]
func (h *Handlers) ListDueReminders(c *gin.Context) {
	due, err := h.remSvc.DueSoon(c.Request.Context(), userID(c))
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	if due == nil {
		due = []schedule.Occurrence{}
	}
	ok(c, http.StatusOK, due)
}

// DismissReminder godoc
// @ID          dismissReminder
// @Summary     Dismiss a reminder
// @Description Suppresses one dose occurrence from reminder sweeps for the rest of the process lifetime. The dose itself stays untaken.
// @Tags        Reminders
// @Accept      json
// @Produce     json
//
// @Param       X-User-ID  header  string  false "User ID (demo header)"  example(user123)
// @Param       id         path    string  true  "Medication ID (UUID)"   format(uuid)
// @Param       body       body    handlers.DismissReminderRequest  true  "Occurrence to dismiss"
//
// @Success     204  "Dismissed"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Router      /reminders/{id}/dismiss [post]
func (h *Handlers) DismissReminder(c *gin.Context) {
	medID := c.Param("id")
	if _, err := uuid.Parse(medID); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "medication id must be a UUID")
		return
	}

	var req DismissReminderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	if _, err := schedule.MinutesOfDay(req.Time); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "time must be HH:MM")
		return
	}
	if req.Date == "" {
		req.Date = today()
	}
	if _, err := schedule.ParseDateKey(req.Date); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "date must be YYYY-MM-DD")
		return
	}

	occ := schedule.Occurrence{MedicationID: medID, Date: req.Date, TimeOfDay: req.Time}
	h.remSvc.Dismiss(userID(c), occ.Key())
	noContent(c)
}
