// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// CORS, security headers, idempotency, and rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Production-ready CORS and security header posture
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/pilltrack/go-adherence-backend/internal/config"
	"github.com/pilltrack/go-adherence-backend/internal/domain"
	"github.com/pilltrack/go-adherence-backend/internal/http/handlers"
	"github.com/pilltrack/go-adherence-backend/internal/http/middleware"
	"github.com/pilltrack/go-adherence-backend/internal/repo"
	"github.com/pilltrack/go-adherence-backend/internal/schedule"
	"github.com/pilltrack/go-adherence-backend/internal/services"

	"github.com/rs/zerolog/log"
)

// medicationRepoShim adapts the repository free functions to the
// services.MedicationRepo interface expected by the MedicationService. This
// keeps services decoupled from the concrete repo package while reusing
// existing functions.
type medicationRepoShim struct{}

// CreateMedication proxies repo.CreateMedication.
func (medicationRepoShim) CreateMedication(ctx context.Context, db *gorm.DB, med *domain.Medication) (*domain.Medication, error) {
	return repo.CreateMedication(ctx, db, med)
}

// GetMedication proxies repo.GetMedication.
func (medicationRepoShim) GetMedication(ctx context.Context, db *gorm.DB, id, userID string) (*domain.Medication, error) {
	return repo.GetMedication(ctx, db, id, userID)
}

// ListMedications proxies repo.ListMedications.
func (medicationRepoShim) ListMedications(ctx context.Context, db *gorm.DB, userID string) ([]domain.Medication, error) {
	return repo.ListMedications(ctx, db, userID)
}

// CountMedications proxies repo.CountMedications (pagination support).
func (medicationRepoShim) CountMedications(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	return repo.CountMedications(ctx, db, userID)
}

// ListMedicationsPage proxies repo.ListMedicationsPage (pagination support).
func (medicationRepoShim) ListMedicationsPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.Medication, error) {
	return repo.ListMedicationsPage(ctx, db, userID, offset, limit)
}

// UpdateMedication proxies repo.UpdateMedication.
func (medicationRepoShim) UpdateMedication(ctx context.Context, db *gorm.DB, med *domain.Medication, userID string) error {
	return repo.UpdateMedication(ctx, db, med, userID)
}

// DeleteMedication proxies repo.DeleteMedication.
func (medicationRepoShim) DeleteMedication(ctx context.Context, db *gorm.DB, id, userID string) error {
	return repo.DeleteMedication(ctx, db, id, userID)
}

// TakenOn proxies repo.TakenOn (day-schedule history join).
func (medicationRepoShim) TakenOn(ctx context.Context, db *gorm.DB, userID, dateKey string) (map[string]bool, error) {
	return repo.TakenOn(ctx, db, userID, dateKey)
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. It configures observability (tracing, metrics), idempotency and rate
// limiting, CORS and security headers, health and metrics endpoints, and then
// mounts the versioned public API under /api/v*.
//
// It returns the ReminderService so the caller can run the background sweep
// loop alongside the HTTP server.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with PII scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter, gzip
//  6. Metrics
//  7. Idempotency validator (before rate limiter to allow bypass on replay)
//  8. Rate limiter (per user/IP, bypass on replay)
//  9. CORS and Security headers
func RegisterRoutes(r *gin.Engine, db *gorm.DB, cfg config.Config) *services.ReminderService {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{
			"X-API-Key", // project-specific sensitive header example
		},
	}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (1 MiB), gzip responses
	r.Use(limitBody(1 << 20))
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) Idempotency validation (before rate limiting)
	r.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{
			MaxLen: 200,
		},
		func(ctx context.Context, userID, medicationID, key string, now time.Time) (bool, error) {
			rec, err := repo.GetIdempotency(ctx, db, userID, medicationID, key, now)
			if err != nil || rec == nil {
				return false, nil
			}
			return true, nil
		},
	))

	// 8) Token-bucket rate limiter per user/IP
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())
	r.Use(rl.Handler())

	// 9) CORS posture (safe defaults: allow all if none configured)
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header (helps tests and simple health checks).
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-User-ID", middleware.HeaderIdempotencyKey},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		// Echo ACAO with the request Origin when it is in the allowlist (in addition to gin-contrib/cors).
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-User-ID", middleware.HeaderIdempotencyKey},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	// Swagger UI (opt-in)
	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Dependency injection: services ← repo/db/clock
	clk := schedule.SystemClock()
	medSvc := services.NewMedicationService(db, medicationRepoShim{}, clk)
	adhSvc := services.NewAdherenceService(db, clk)
	refSvc := services.NewRefillService(db, clk)

	remSvc := services.NewReminderService(db, clk, log.Logger)
	remSvc.LookAheadMinutes = cfg.Reminder.LookAheadMinutes
	remSvc.Interval = cfg.Reminder.PollInterval

	h := handlers.New(medSvc, adhSvc, refSvc, remSvc)

	// Public API
	apiBase := cfg.APIBasePath // e.g. "/api/v1"
	api := groupWithPrefix(r, apiBase)
	{
		// Medications
		api.POST("/medications", h.CreateMedication)
		api.GET("/medications", h.ListMedications)
		api.GET("/medications/:id", h.GetMedication)
		api.PUT("/medications/:id", h.UpdateMedication)
		api.DELETE("/medications/:id", h.DeleteMedication)

		// Schedule and adherence
		api.GET("/schedule", h.GetSchedule)
		api.POST("/medications/:id/taken", h.ToggleTaken)
		api.GET("/adherence", h.GetAdherence)

		// Refills
		api.GET("/refills", h.ListRefills)
		api.POST("/medications/:id/refill", h.RecordRefill)

		// Reminders
		api.GET("/reminders/due", h.ListDueReminders)
		api.POST("/reminders/:id/dismiss", h.DismissReminder)
	}

	return remSvc
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
