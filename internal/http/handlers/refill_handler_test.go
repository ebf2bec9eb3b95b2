package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/pilltrack/go-adherence-backend/internal/domain"
	"github.com/pilltrack/go-adherence-backend/internal/services"
)

func TestListRefills_Alerts_MostUrgentFirst(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h, _ := newRealHandlers(t, tuesdayClock(9, 0))

	r := gin.New()
	r.POST("/medications", h.CreateMedication)
	r.GET("/refills", h.ListRefills)

	// 4 pills / 2 per day -> 2 days, critical
	seedViaAPI(t, r, "u1", `{
		"name": "Metformin",
		"times": ["09:00", "21:00"],
		"inventory": {"total_quantity": 60, "quantity_remaining": 4, "quantity_per_dose": 1, "doses_per_day": 2}
	}`)
	// 12 pills / 1 per day -> 12 days, soon
	seedViaAPI(t, r, "u1", `{
		"name": "Aspirin",
		"times": ["08:00"],
		"inventory": {"total_quantity": 30, "quantity_remaining": 12, "quantity_per_dose": 1, "doses_per_day": 1}
	}`)
	// plenty left -> no alert
	seedViaAPI(t, r, "u1", `{
		"name": "Vitamin D",
		"times": ["08:00"],
		"inventory": {"total_quantity": 90, "quantity_per_dose": 1, "doses_per_day": 1}
	}`)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/refills", nil)
	req.Header.Set("X-User-ID", "u1")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("refills -> %d body=%s", w.Code, w.Body.String())
	}
	var alerts []services.RefillAlert
	if err := json.Unmarshal(w.Body.Bytes(), &alerts); err != nil {
		t.Fatalf("json: %v", err)
	}
	if len(alerts) != 2 {
		t.Fatalf("expected 2 alerts, got %d: %#v", len(alerts), alerts)
	}
	if alerts[0].Name != "Metformin" || alerts[0].Urgency != "critical" || !alerts[0].ActionRequired {
		t.Fatalf("first alert should be the critical one: %#v", alerts[0])
	}
	if alerts[1].Name != "Aspirin" || alerts[1].Urgency != "soon" || alerts[1].ActionRequired {
		t.Fatalf("second alert should be soon: %#v", alerts[1])
	}

	// no tracked inventories for this user -> empty array
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/refills", nil)
	req.Header.Set("X-User-ID", "u2")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("empty refills -> %d", w.Code)
	}
}

func TestRecordRefill_Validation_NotTracked_Success(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h, _ := newRealHandlers(t, tuesdayClock(9, 0))

	r := gin.New()
	r.POST("/medications", h.CreateMedication)
	r.POST("/medications/:id/refill", h.RecordRefill)

	// bad UUID -> 400
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/medications/not-uuid/refill", bytes.NewBufferString(`{"quantity":30}`))
	req.Header.Set("X-User-ID", "u1")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("uuid 400 -> %d", w.Code)
	}

	// bad JSON -> 400
	medID := seedViaAPI(t, r, "u1", `{
		"name": "Metformin",
		"times": ["09:00"],
		"inventory": {"total_quantity": 60, "quantity_remaining": 4, "quantity_per_dose": 1, "doses_per_day": 1}
	}`)
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/medications/"+medID+"/refill", bytes.NewBufferString("{bad"))
	req.Header.Set("X-User-ID", "u1")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad json -> %d", w.Code)
	}

	// zero quantity -> 400 (binding rejects the missing/zero field)
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/medications/"+medID+"/refill", bytes.NewBufferString(`{"quantity":0}`))
	req.Header.Set("X-User-ID", "u1")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("zero qty -> %d", w.Code)
	}

	// negative quantity -> 400 invalid quantity
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/medications/"+medID+"/refill", bytes.NewBufferString(`{"quantity":-5}`))
	req.Header.Set("X-User-ID", "u1")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("negative qty -> %d", w.Code)
	}

	// ghost -> 404
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/medications/"+uuid.NewString()+"/refill", bytes.NewBufferString(`{"quantity":30}`))
	req.Header.Set("X-User-ID", "u1")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("ghost 404 -> %d", w.Code)
	}

	// untracked medication -> 409 not_tracked
	untracked := seedViaAPI(t, r, "u1", `{"name":"Aspirin","times":["08:00"]}`)
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/medications/"+untracked+"/refill", bytes.NewBufferString(`{"quantity":30}`))
	req.Header.Set("X-User-ID", "u1")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusConflict {
		t.Fatalf("untracked -> %d body=%s", w.Code, w.Body.String())
	}
	var er ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &er); err != nil {
		t.Fatalf("json: %v", err)
	}
	if er.Code != ErrCodeNotTracked {
		t.Fatalf("error code = %q", er.Code)
	}

	// success -> counters bumped, refill date stamped
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/medications/"+medID+"/refill", bytes.NewBufferString(`{"quantity":30}`))
	req.Header.Set("X-User-ID", "u1")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("refill -> %d body=%s", w.Code, w.Body.String())
	}
	var inv domain.Inventory
	if err := json.Unmarshal(w.Body.Bytes(), &inv); err != nil {
		t.Fatalf("json: %v", err)
	}
	if inv.QuantityRemaining != 34 || inv.TotalQuantity != 90 {
		t.Fatalf("counters after refill: %#v", inv)
	}
	if inv.LastRefillDate == nil {
		t.Fatalf("refill date not stamped")
	}
}

func TestRecordRefill_IdempotencyReplay(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h, _ := newRealHandlers(t, tuesdayClock(9, 0))

	r := gin.New()
	r.POST("/medications", h.CreateMedication)
	r.POST("/medications/:id/refill", h.RecordRefill)

	medID := seedViaAPI(t, r, "u1", `{
		"name": "Metformin",
		"times": ["09:00"],
		"inventory": {"total_quantity": 60, "quantity_remaining": 10, "quantity_per_dose": 1, "doses_per_day": 1}
	}`)

	send := func(key string) (*httptest.ResponseRecorder, domain.Inventory) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/medications/"+medID+"/refill", bytes.NewBufferString(`{"quantity":30}`))
		req.Header.Set("X-User-ID", "u1")
		req.Header.Set("Idempotency-Key", key)
		r.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("refill -> %d body=%s", w.Code, w.Body.String())
		}
		var inv domain.Inventory
		if err := json.Unmarshal(w.Body.Bytes(), &inv); err != nil {
			t.Fatalf("json: %v", err)
		}
		return w, inv
	}

	key := uuid.NewString()
	w1, inv1 := send(key)
	if w1.Header().Get("Idempotency-Replayed") != "" {
		t.Fatalf("first call must not be a replay")
	}
	if inv1.QuantityRemaining != 40 {
		t.Fatalf("first refill remaining = %v", inv1.QuantityRemaining)
	}

	// Same key: stock must not be added twice.
	w2, inv2 := send(key)
	if w2.Header().Get("Idempotency-Replayed") != "true" {
		t.Fatalf("expected replay header")
	}
	if inv2.QuantityRemaining != 40 {
		t.Fatalf("replay changed counters: %v", inv2.QuantityRemaining)
	}
}
