package core

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// defaultRequestTimeout is the soft deadline applied to request contexts.
// Handlers serve from in-memory snapshots, so only the acknowledge mutation
// ever approaches this; it bounds the upstream call plus its retries.
const defaultRequestTimeout = 29 * time.Second

// defaultRedactedHeaders lists header names whose values are masked in
// request logs to prevent accidental leakage of credentials.
var defaultRedactedHeaders = []string{
	"Authorization",
	"Cookie",
}

// MountRoutes defines the top-level routing hierarchy: the global middleware
// chain, the /v1 API group, and the operational endpoints.
func (s *Server) MountRoutes() {
	// Global Middleware Registration (strict order matters).
	//
	//  1. Recoverer       - Catches panics; outermost to catch all failures.
	//  2. ContextTimeout  - Sets the soft request deadline.
	//  3. RequestID       - Generates/propagates correlation ID.
	//  4. SecurityHeaders - Ensures all responses include security headers.
	//  5. RequestLogger   - Structured logging (redacted headers).
	//  6. CORS            - Browser access for the dashboard frontend.
	//  7. Gzip            - Response compression for snapshot payloads.
	//  8. Metrics         - Request latency and count recording.
	s.router.Use(s.Recoverer)
	s.router.Use(ContextTimeoutMiddleware(defaultRequestTimeout))
	s.router.Use(RequestIDMiddleware)
	s.router.Use(s.SecurityHeadersMiddleware)
	s.router.Use(RequestLogger(s.Logger, defaultRedactedHeaders))
	s.router.Use(NewCORSMiddleware(s.corsAllowedOrigins()))
	s.router.Use(GzipMiddleware)
	s.router.Use(s.MetricsMiddleware)

	// API Version Groups. Domain handler routes are registered through
	// V1RouteRegistrars, populated by the application entry point; this
	// indirection avoids import cycles between core and handler packages.
	s.router.Route("/v1", func(r chi.Router) {
		for _, registrar := range s.V1RouteRegistrars {
			registrar(r)
		}
	})

	// Operational endpoints (outside /v1)
	s.router.Get("/health", s.HandleHealth)
	s.router.Get("/version", s.HandleVersion)
}

// corsAllowedOrigins returns the CORS allowed origins from configuration.
func (s *Server) corsAllowedOrigins() []string {
	if s.Config != nil && len(s.Config.Security.CorsAllowedOrigins) > 0 {
		return s.Config.Security.CorsAllowedOrigins
	}
	return []string{"*"}
}

// HandleVersion reports the build metadata injected at compile time.
func (s *Server) HandleVersion(w http.ResponseWriter, r *http.Request) {
	JSON(w, r, http.StatusOK, map[string]string{
		"service":    s.Config.Service,
		"version":    s.Config.Build.Version,
		"commit":     s.Config.Build.Commit,
		"build_time": s.Config.Build.BuildTime,
	})
}
