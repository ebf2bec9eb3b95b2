package httpapi

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/pilltrack/go-adherence-backend/internal/config"
	"github.com/pilltrack/go-adherence-backend/internal/domain"
	"github.com/pilltrack/go-adherence-backend/internal/http/middleware"
	"github.com/pilltrack/go-adherence-backend/internal/repo"
)

// --- test DB helper (pure-Go sqlite, no CGO) ---
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:routerdb?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// schema so handlers don't explode on list endpoints
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func testConfig(base string) config.Config {
	return config.Config{
		APIBasePath: base,
		RateRPS:     100,
		RateBurst:   10,
		CORS:        config.CORSConfig{},
		Security:    config.SecurityConfig{EnableHSTS: false, HSTSMaxAge: 0},
		OTEL:        config.OTELConfig{ServiceName: "test-svc"},
		Reminder:    config.ReminderConfig{LookAheadMinutes: 15, PollInterval: 30 * time.Second},
	}
}

func TestRegisterRoutes_CORSAllowAll_Health_Metrics_Fallbacks(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	cfg := testConfig("/api/v1") // nil CORS origins triggers AllowAllOrigins branch
	db := newTestDB(t)

	RegisterRoutes(r, db, cfg)

	// /health works
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	// CORS (AllowAllOrigins) → header "*"
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("AllowAllOrigins expected '*', got %q", got)
	}

	// /metrics is wired
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK || len(w.Body.Bytes()) == 0 {
		t.Fatalf("GET /metrics bad: code=%d len=%d", w.Code, w.Body.Len())
	}

	// NoRoute → 404
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/nope", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("GET /nope expected 404, got %d", w.Code)
	}

	// NoMethod → 405 (POST /health)
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/health", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST /health expected 405, got %d", w.Code)
	}
}

func TestRegisterRoutes_CORSWithOrigins_HeaderEcho(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	cfg := testConfig("/api/v2")
	cfg.CORS = config.CORSConfig{AllowedOrigins: []string{"http://example.com"}}
	db := newTestDB(t)

	RegisterRoutes(r, db, cfg)

	// Any request runs through CORS middleware; header should reflect origin.
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://example.com")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://example.com" {
		t.Fatalf("expected ACAO echo, got %q", got)
	}
}

func TestRegisterRoutes_MountsMedicationAPI(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	cfg := testConfig("/api/v1")
	db := newTestDB(t)
	remSvc := RegisterRoutes(r, db, cfg)
	if remSvc == nil {
		t.Fatalf("expected reminder service from RegisterRoutes")
	}
	if remSvc.LookAheadMinutes != 15 || remSvc.Interval != 30*time.Second {
		t.Fatalf("reminder settings not applied: %d %v", remSvc.LookAheadMinutes, remSvc.Interval)
	}

	// End-to-end through the full stack: create then list.
	w := httptest.NewRecorder()
	body := bytes.NewBufferString(`{"name":"Metformin","times":["08:00"]}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/medications", body)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "router-u1")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("POST /medications = %d body=%s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/v1/medications", nil)
	req.Header.Set("X-User-ID", "router-u1")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /medications = %d body=%s", w.Code, w.Body.String())
	}

	// Reminder and refill surfaces respond through the same pipeline.
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/v1/reminders/due", nil)
	req.Header.Set("X-User-ID", "router-u1")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /reminders/due = %d", w.Code)
	}
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/v1/refills", nil)
	req.Header.Set("X-User-ID", "router-u1")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /refills = %d", w.Code)
	}
}

func Test_limitBody_Middleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	// tiny cap to trigger MaxBytesReader
	r.Use(limitBody(10))
	r.POST("/echo", func(c *gin.Context) {
		_, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.String(http.StatusRequestEntityTooLarge, "too big")
			return
		}
		c.String(http.StatusOK, "ok")
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/echo", bytes.NewBufferString("0123456789AB")) // 12 bytes
	r.ServeHTTP(w, req)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413 from limitBody, got %d", w.Code)
	}
}

func Test_groupWithPrefix(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	// "/" and "" should mount at root
	root1 := groupWithPrefix(r, "/")
	root1.GET("/one", func(c *gin.Context) { c.String(http.StatusOK, "one") })
	root2 := groupWithPrefix(r, "")
	root2.GET("/two", func(c *gin.Context) { c.String(http.StatusOK, "two") })

	// non-root prefix
	api := groupWithPrefix(r, "/api")
	api.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	// Hit all three
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/one", nil)
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "one" {
		t.Fatalf("GET /one got %d %q", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/two", nil)
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "two" {
		t.Fatalf("GET /two got %d %q", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/ping", nil)
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "pong" {
		t.Fatalf("GET /api/ping got %d %q", rec.Code, rec.Body.String())
	}
}

// Smoke test that a request traverses idempotency + ratelimit + otel + security headers pipeline.
func TestPipeline_Smoke(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	cfg := testConfig("/api/v1")
	cfg.Security = config.SecurityConfig{EnableHSTS: true, HSTSMaxAge: time.Hour} // enabled (but only set on https)
	db := newTestDB(t)
	RegisterRoutes(r, db, cfg)

	// Any request goes through the middleware stack
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	// simulate https so HSTS could be eligible if middleware checks scheme
	req.URL.Scheme = "https"
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("pipeline GET /health = %d", w.Code)
	}
	// RequestID header should be present (from RequestID middleware)
	if rid := w.Header().Get("X-Request-ID"); rid == "" {
		t.Fatalf("expected X-Request-ID header to be set")
	}
	// Tracing middleware shouldn't cause errors; nothing to assert here beyond 200.
	_ = context.Background()
}

func Test_medicationRepoShim_Proxies(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := newTestDB(t)

	shim := medicationRepoShim{}
	ctx := context.Background()

	// --- CreateMedication ---
	m1, err := shim.CreateMedication(ctx, db, &domain.Medication{UserID: "u1", Name: "Aspirin", Times: domain.TimeList{"08:00"}, MealTiming: "anytime"})
	if err != nil {
		t.Fatalf("CreateMedication: %v", err)
	}
	if m1 == nil || m1.ID == "" || m1.Name != "Aspirin" || m1.UserID != "u1" {
		t.Fatalf("CreateMedication returned bad row: %+v", m1)
	}

	// --- ListMedications ---
	all, err := shim.ListMedications(ctx, db, "u1")
	if err != nil {
		t.Fatalf("ListMedications: %v", err)
	}
	if len(all) < 1 {
		t.Fatalf("ListMedications expected >=1, got %d", len(all))
	}

	// --- GetMedication ---
	got, err := shim.GetMedication(ctx, db, m1.ID, "u1")
	if err != nil {
		t.Fatalf("GetMedication: %v", err)
	}
	if got.ID != m1.ID || got.UserID != "u1" {
		t.Fatalf("GetMedication mismatch: got=%+v want id=%s user=u1", got, m1.ID)
	}

	// --- UpdateMedication ---
	got.Name = "Aspirin Forte"
	if err := shim.UpdateMedication(ctx, db, got, "u1"); err != nil {
		t.Fatalf("UpdateMedication: %v", err)
	}
	got2, err := shim.GetMedication(ctx, db, m1.ID, "u1")
	if err != nil {
		t.Fatalf("GetMedication (after update): %v", err)
	}
	if got2.Name != "Aspirin Forte" {
		t.Fatalf("UpdateMedication failed, name=%q", got2.Name)
	}

	// Seed a few more for pagination
	if _, err := shim.CreateMedication(ctx, db, &domain.Medication{UserID: "u1", Name: "Metformin", Times: domain.TimeList{"08:00"}, MealTiming: "with"}); err != nil {
		t.Fatalf("CreateMedication Metformin: %v", err)
	}
	if _, err := shim.CreateMedication(ctx, db, &domain.Medication{UserID: "u1", Name: "Vitamin D", Times: domain.TimeList{"08:00"}, MealTiming: "anytime"}); err != nil {
		t.Fatalf("CreateMedication Vitamin D: %v", err)
	}

	// --- CountMedications ---
	n, err := shim.CountMedications(ctx, db, "u1")
	if err != nil {
		t.Fatalf("CountMedications: %v", err)
	}
	if n < 3 {
		t.Fatalf("CountMedications expected >=3, got %d", n)
	}

	// --- ListMedicationsPage ---
	page, err := shim.ListMedicationsPage(ctx, db, "u1", 0, 2)
	if err != nil {
		t.Fatalf("ListMedicationsPage: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("ListMedicationsPage expected 2, got %d", len(page))
	}

	// --- DeleteMedication + TakenOn ---
	if err := shim.DeleteMedication(ctx, db, m1.ID, "u1"); err != nil {
		t.Fatalf("DeleteMedication: %v", err)
	}
	tk, err := shim.TakenOn(ctx, db, "u1", "2026-03-10")
	if err != nil {
		t.Fatalf("TakenOn: %v", err)
	}
	if len(tk) != 0 {
		t.Fatalf("TakenOn expected empty map, got %v", tk)
	}
}

func TestRegisterRoutes_IdempotencyCallback_MissAndHit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	cfg := testConfig("/api/vX")
	db := newTestDB(t)
	RegisterRoutes(r, db, cfg)

	const userID = "u1"
	const key = "key-hit"
	const medicationID = "" // we’ll hit /health, so no path param

	// --- MISS: record does not exist (executes 'rec == nil' branch) ---
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/health", bytes.NewBufferString("{}"))
	req.Header.Set("X-User-ID", userID)
	req.Header.Set(middleware.HeaderIdempotencyKey, key)
	r.ServeHTTP(w, req)
	// NoMethod is expected for POST /health, but middleware ran.

	// --- seed an idempotency record so the callback returns non-nil ---
	seed := &domain.Idempotency{
		ID:           "idem-seed-1",
		UserID:       userID,
		MedicationID: medicationID,
		Key:          key,
		ResultID:     "2026-03-10",
		Status:       1,
		// ensure it's considered valid "now"
		ExpiresAt: time.Now().Add(time.Hour),
	}
	if err := db.Create(seed).Error; err != nil {
		t.Fatalf("seed idempotency: %v", err)
	}

	// --- HIT: record exists (executes 'return true, nil' branch) ---
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/health", bytes.NewBufferString("{}"))
	req.Header.Set("X-User-ID", userID)
	req.Header.Set(middleware.HeaderIdempotencyKey, key)
	r.ServeHTTP(w, req)
	// again, 405 is fine; goal is to drive the middleware branch.
}

func TestRegisterRoutes_IdempotencyCallback_ErrorBranch(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	cfg := testConfig("/api/v1")

	// Make a fresh in-memory DB and migrate normally.
	db, err := gorm.Open(sqlite.Open("file:routerdb_err?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}

	// Wire routes first...
	RegisterRoutes(r, db, cfg)

	// ...then force queries to fail by closing the underlying connection.
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db.DB(): %v", err)
	}
	_ = sqlDB.Close()

	// Now any repo.GetIdempotency call should error → drives (err != nil) branch.
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/health", bytes.NewBufferString("{}"))
	req.Header.Set("X-User-ID", "u1")
	req.Header.Set(middleware.HeaderIdempotencyKey, "force-error")
	r.ServeHTTP(w, req)

	// 405 is expected for POST /health; goal is to exercise the middleware branch.
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", w.Code)
	}
}
