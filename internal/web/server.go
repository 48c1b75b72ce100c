// Package web provides the HTTP API for previewing and importing workout
// CSV files.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/runimport/internal/config"
	"github.com/JonMunkholm/runimport/internal/core"
	webmw "github.com/JonMunkholm/runimport/internal/web/middleware"
)

// WorkoutStore persists import results. A nil store disables persistence.
type WorkoutStore interface {
	SaveWorkouts(ctx context.Context, res *core.ImportResult) (int64, error)
	Ping(ctx context.Context) error
}

// Server is the HTTP server for the import API.
type Server struct {
	engine  *core.Engine
	store   WorkoutStore
	limiter *core.ImportLimiter
	cfg     *config.Config
	router  *chi.Mux
	server  *http.Server

	stopCleanup context.CancelFunc
}

// NewServer creates a Server. store may be nil.
func NewServer(engine *core.Engine, store WorkoutStore, cfg *config.Config) *Server {
	s := &Server{
		engine:  engine,
		store:   store,
		limiter: core.NewImportLimiter(cfg.Upload.MaxConcurrent, cfg.Upload.MaxWaitTime),
		cfg:     cfg,
		router:  chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(webmw.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(webmw.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))

	// Security hardening
	s.router.Use(securityHeaders(s.cfg.Security.EnableCSP))
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	var general, uploads func(http.Handler) http.Handler
	if s.cfg.Rate.Enabled {
		ctx, cancel := context.WithCancel(context.Background())
		s.stopCleanup = cancel
		general = newRateLimiter(ctx, s.cfg.Rate.RequestsPerMinute, time.Minute).middleware
		uploads = newRateLimiter(ctx, s.cfg.Rate.UploadLimit, time.Minute).middleware
	}

	s.router.Route("/api", func(r chi.Router) {
		if general != nil {
			r.Use(general)
		}
		r.Get("/status", s.handleStatus)

		r.Group(func(r chi.Router) {
			if uploads != nil {
				r.Use(uploads)
			}
			r.Post("/preview", s.handlePreview)
			r.Post("/import", s.handleImport)
		})
	})
}

// Start begins listening for HTTP requests on the configured address.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}
	return s.server.ListenAndServe()
}

// Shutdown waits for in-flight imports and then stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.stopCleanup != nil {
		s.stopCleanup()
	}

	if status := s.limiter.Status(); status.Active > 0 {
		slog.Info("waiting for imports to complete", "active", status.Active)
		if err := s.limiter.WaitForDrain(ctx); err != nil {
			slog.Warn("imports did not complete in time", "error", err)
		}
	}

	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// securityHeaders adds security headers to all responses.
func securityHeaders(enableCSP bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
			if enableCSP {
				w.Header().Set("Content-Security-Policy", "default-src 'self'; style-src 'self' 'unsafe-inline'")
			}
			next.ServeHTTP(w, r)
		})
	}
}

// writeJSON encodes v as JSON with the given status.
// Logs encoding errors since headers are already sent.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
