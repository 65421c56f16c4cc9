// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// CORS, security headers, replay detection, and rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Production-ready CORS and security header posture
package httpapi

import (
	"context"
	"errors"
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

	"github.com/pitchloop/sales-coach-backend/internal/auth"
	"github.com/pitchloop/sales-coach-backend/internal/config"
	"github.com/pitchloop/sales-coach-backend/internal/http/handlers"
	"github.com/pitchloop/sales-coach-backend/internal/http/middleware"
	"github.com/pitchloop/sales-coach-backend/internal/providers/llm"
	"github.com/pitchloop/sales-coach-backend/internal/providers/voice"
	"github.com/pitchloop/sales-coach-backend/internal/repo"
	"github.com/pitchloop/sales-coach-backend/internal/secrets"
	"github.com/pitchloop/sales-coach-backend/internal/services"
)

// analysisCacheLookup reports whether a conversation already has a stored
// analysis. Used by the replay detector so repeat analyze calls bypass the
// rate limiter; failures are treated as "no cache" and never block.
func analysisCacheLookup(db *gorm.DB) middleware.CacheLookup {
	return func(ctx context.Context, conversationID string, _ time.Time) (bool, error) {
		session, err := repo.GetSessionByConversationID(ctx, db, conversationID)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return false, nil
			}
			return false, err
		}
		if _, err := repo.GetAnalysisBySessionID(ctx, db, session.ID); err != nil {
			return false, nil
		}
		return true, nil
	}
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. It configures observability (tracing, metrics), identity
// resolution, replay detection and rate limiting, CORS and security headers,
// health and metrics endpoints, and then mounts the public API under the
// configured base path.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with PII scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. Identity resolution (cookie first, then bearer; never aborts)
//  8. Replay detector (before rate limiter to allow bypass on cached analyses)
//  9. Rate limiter (per user/IP, bypass on replay)
//  10. CORS and Security headers
func RegisterRoutes(r *gin.Engine, db *gorm.DB, cipher *secrets.Cipher, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (1 MiB)
	r.Use(limitBody(1 << 20))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) Resolve caller identity from cookie or bearer credentials
	verifier := auth.NewClient(cfg.Auth)
	resolver := auth.NewResolver(verifier, cfg.Auth.CookieName)
	r.Use(middleware.ResolveIdentity(resolver))

	// 8) Replay detection (before rate limiting)
	r.Use(middleware.ReplayDetector(analysisCacheLookup(db)))

	// 9) Token-bucket rate limiter per user/IP
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())
	r.Use(rl.Handler())

	// 10) CORS posture (safe defaults: allow all if none configured)
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header (helps tests and simple health checks).
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "Cookie"},
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
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "Cookie"},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: true, // session cookies cross origins
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

	// Swagger UI (behind a flag; off in production by default)
	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Dependency injection: services ← providers/repo/db
	voiceClient := voice.NewClient(cfg.Voice)
	llmClient := llm.NewClient(cfg.LLM)

	quota := services.NewQuotaGuard(db, cfg.Demo.MaxSessions, cfg.Demo.MaxMinutes)
	fetcher := services.NewTranscriptFetcher(voiceClient, cfg.Transcript.MaxRetries, cfg.Transcript.Backoff)
	analyzer := services.NewAnalyzer(db, fetcher, llmClient)
	saver := services.NewAnalysisSaver(db)
	sessionSvc := services.NewSessionService(db, quota)
	profileSvc := services.NewProfileService(db)
	statsSvc := services.NewStatsService(db, quota)
	dashboardSvc := services.NewDashboardService(db, voiceClient)
	keySvc := services.NewAPIKeyService(db, cipher)

	analysisH := handlers.NewAnalysisHandler(analyzer, saver, int(cfg.Transcript.RetryAfter.Seconds()))
	conversationH := handlers.NewConversationHandler(voiceClient)
	sessionH := handlers.NewSessionHandler(sessionSvc)
	profileH := handlers.NewProfileHandler(profileSvc)
	dashboardH := handlers.NewDashboardHandler(statsSvc, dashboardSvc)
	keyH := handlers.NewAPIKeyHandler(keySvc, profileSvc)

	// Public API
	api := groupWithPrefix(r, cfg.APIBasePath)
	api.Use(gzip.Gzip(gzip.DefaultCompression))
	{
		// Conversations
		api.GET("/conversations", conversationH.List)
		api.GET("/conversations/:id", conversationH.Get)
		api.POST("/conversations/:id/analyze", analysisH.Analyze)

		// Sessions
		api.POST("/session/create", sessionH.Create)
		api.POST("/session/:id/end", sessionH.End)
		api.GET("/session/:id", sessionH.Get)

		// Profiles
		api.POST("/profile/create", profileH.Create)

		// Dashboard
		api.GET("/dashboard/stats", dashboardH.GetStats)
		api.GET("/dashboard/recent-sessions", dashboardH.RecentSessions)

		// API keys
		api.GET("/api-keys", keyH.List)
		api.POST("/api-keys", keyH.Save)
		api.DELETE("/api-keys/:service", keyH.Delete)

		// Analysis persistence
		api.POST("/analysis/save", analysisH.Save)
	}
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
