package api

import (
	"context"
	"net/http"
	"slices"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/nerrad567/gray-logic-fieldio/internal/fieldio"
)

const (
	// pollRoute is logged at debug level; clients hit it continuously.
	pollRoute = fieldio.PollPath

	// healthCheckTimeout bounds each component check.
	healthCheckTimeout = 2 * time.Second
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/metrics", s.handleMetrics)

		// Auth is by single-use ticket, checked in the handler.
		r.Get(s.wsPath(), s.handleWebSocket)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Post("/auth/ws-ticket", s.handleWSTicket)

			r.Get("/fields/topology", s.handleTopology)
			r.Post("/fields/poll", s.handlePoll)

			r.Route("/drivers", func(r chi.Router) {
				r.Get("/", s.handleListDrivers)

				r.Route("/{moniker}", func(r chi.Router) {
					r.Get("/", s.handleGetDriver)
					r.Delete("/", s.handleRemoveDriver)
					r.Get("/values", s.handleDriverValues)

					r.Route("/fields/{name}", func(r chi.Router) {
						r.Get("/", s.handleGetField)
						r.Put("/", s.handleWriteField)
						r.Post("/step", s.handleStepField)
						r.Get("/history", s.handleFieldHistory)
					})
				})
			})

			r.Get("/events", s.handleListEvents)
		})
	})

	return r
}

// wsPath is the WebSocket route inside /api/v1.
func (s *Server) wsPath() string {
	if s.wsCfg.Path == "" {
		return "/ws"
	}
	return s.wsCfg.Path
}

// handleHealth reports the server and each configured component. Any
// failing component makes the answer 503.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	components := make(map[string]string, len(s.checks))
	healthy := true

	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		err := s.checks[name].HealthCheck(ctx)
		cancel()
		if err != nil {
			healthy = false
			components[name] = err.Error()
			continue
		}
		components[name] = "ok"
	}

	status, code := "ok", http.StatusOK
	if !healthy {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"status":     status,
		"version":    s.version,
		"components": components,
	})
}
