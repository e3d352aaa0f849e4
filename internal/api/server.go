// ABOUTME: HTTP server struct, constructor, and handler wiring for Board Ops.
// ABOUTME: Holds the store, config, password hasher and retention runner used by handlers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/scarson/board-ops/internal/auth"
	"github.com/scarson/board-ops/internal/config"
	"github.com/scarson/board-ops/internal/retention"
	"github.com/scarson/board-ops/internal/store"
)

// RetentionRunner runs one retention pass on demand.
type RetentionRunner interface {
	Run(ctx context.Context) (retention.Result, error)
}

// Server holds the dependencies for the HTTP layer.
type Server struct {
	store       *store.Store
	cfg         *config.Config
	hasher      *auth.Hasher
	rateLimiter *ipRateLimiter
	retention   RetentionRunner // nil disables POST /admin/retention
	sessionTTL  time.Duration
	now         func() time.Time
}

// NewServer creates a Server. Returns an error when the session secret is missing.
func NewServer(s *store.Store, cfg *config.Config, rr RetentionRunner) (*Server, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("api: JWT secret is required")
	}
	evictTTL := cfg.RateLimitEvictTTL
	if evictTTL == 0 {
		evictTTL = 15 * time.Minute
	}
	sessionTTL := cfg.AccessTokenTTL
	if sessionTTL == 0 {
		sessionTTL = 12 * time.Hour
	}
	// 10 requests per minute, burst of 10.
	rl := newIPRateLimiter(rate.Limit(10.0/60), 10, evictTTL)
	return &Server{
		store:       s,
		cfg:         cfg,
		hasher:      auth.NewHasher(cfg.Argon2MaxConcurrent),
		rateLimiter: rl,
		retention:   rr,
		sessionTTL:  sessionTTL,
		now:         time.Now,
	}, nil
}

// Close stops the rate limiter's background cleanup.
func (srv *Server) Close() {
	if srv.rateLimiter != nil {
		srv.rateLimiter.stop()
	}
}

// Handler builds and returns the http.Handler.
func (srv *Server) Handler() http.Handler {
	r := chi.NewRouter()

	// Must be first so they appear on every response including errors.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
			next.ServeHTTP(w, r)
		})
	})

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestSize(1 << 20))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", srv.healthzHandler)
	r.Handle("/metrics", promhttp.Handler())

	// ── API v1: CSRF, member scope, then visit logging ───────────────────────
	apiRouter := chi.NewRouter()
	apiRouter.Use(csrfProtect)
	apiRouter.Use(srv.memberScope)
	apiRouter.Use(srv.recordVisit)

	humaConfig := huma.DefaultConfig("Board Ops API", "0.1.0")
	humaConfig.Info.Description = "Member permissions, admin checks and visit statistics for a bulletin board"
	api := humachi.New(apiRouter, humaConfig)
	registerMeRoutes(api, srv)
	registerPermissionRoutes(api, srv)
	registerToolRoutes(api)

	// Cookie-setting auth routes are plain chi so the rate limiter can wrap them.
	apiRouter.Route("/auth", func(r chi.Router) {
		r.With(srv.authRateLimit()).Post("/login", srv.loginHandler)
		r.Post("/logout", srv.logoutHandler)
	})

	apiRouter.With(srv.RequireBoardAdmin()).Get("/boards/{bo_table}/admin", srv.boardAdminHandler)

	apiRouter.Route("/admin", func(r chi.Router) {
		r.Use(srv.RequireSuperAdmin())
		r.Get("/visits/hours", srv.visitHoursHandler)
		r.Get("/visits/weekdays", srv.visitWeekdaysHandler)
		r.Post("/retention", srv.retentionHandler)
	})

	r.Mount("/api/v1", apiRouter)

	return r
}

// writeJSON writes v as JSON with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("writeJSON: encode failed", "error", err)
	}
}

// healthResponse is the JSON body for /healthz.
type healthResponse struct {
	Status string `json:"status"`
	DB     string `json:"db,omitempty"`
}

// healthzHandler returns 200 {"status":"ok"} when the DB is reachable,
// or 503 {"status":"degraded","db":"unavailable"} when it is not.
func (srv *Server) healthzHandler(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok"}
	statusCode := http.StatusOK

	if srv.store == nil {
		resp.Status = "degraded"
		resp.DB = "unavailable"
		statusCode = http.StatusServiceUnavailable
	} else if err := srv.store.Ping(r.Context()); err != nil {
		slog.WarnContext(r.Context(), "healthz: db ping failed", "error", err)
		resp.Status = "degraded"
		resp.DB = "unavailable"
		statusCode = http.StatusServiceUnavailable
	}

	writeJSON(w, statusCode, resp)
}
