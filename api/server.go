/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the chi router, the middleware stack and the route table.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request, echoed in logs
  2. Logger:     Structured request log through logrus
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for the frontend
  5. Auth:       Bearer JWT on everything except healthz and scenarios

AUTHENTICATION:
  Authorization: Bearer <jwt> resolves to a local user via auth.Manager.
  In dev mode an X-User-ID header is accepted instead.

ROUTE GROUPS:
  /api/healthz           Liveness (public)
  /api/scenarios/*       Demo scenarios (public, dev mode only)
  /api/users/*           Users, balances, month assignment
  /api/shifts/*          Shifts and situational flags
  /api/shift-details/*   Work, break and outing intervals
  /api/leave/*           Immediate leave registration
  /api/applications/*    Leave applications
  /api/stats/*           Monthly stats and xlsx export
  /api/holidays/*        Holiday calendar and iCalendar import
  /api/patterns/*        Default shift patterns
  /api/settings/*        apply_deadline_days

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"
	"github.com/warp/shift-engine/auth"
	"github.com/warp/shift-engine/config"
	"github.com/warp/shift-engine/schedule"
)

var defaultOrigins = []string{"http://localhost:5173", "http://localhost:8080"}

var errMissingCredentials = errors.New("missing bearer token")

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, cfg config.ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = defaultOrigins
	}

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(requestLogger(h.log))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-User-ID"},
		ExposedHeaders:   []string{"Content-Disposition", "Retry-After"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/healthz", h.Health)

		if h.DevMode {
			r.Route("/scenarios", func(r chi.Router) {
				r.Get("/", h.ListScenarios)
				r.Get("/current", h.GetCurrentScenario)
				r.Post("/load", h.LoadScenario)
			})
		}

		r.Group(func(r chi.Router) {
			r.Use(h.authenticate)

			r.Get("/me", h.Me)
			r.Get("/classify", h.Classify)

			// User routes
			r.Route("/users/{id}", func(r chi.Router) {
				r.Put("/", h.SaveUser)
				r.Get("/remaining", h.GetRemaining)
				r.Put("/months/{month}/shifts", h.AssignMonth)
			})

			// Shift routes
			r.Route("/shifts", func(r chi.Router) {
				r.Get("/", h.ListShifts)
				r.Post("/", h.AssignShift)
				r.Get("/{id}", h.GetShift)
				r.Put("/{id}/flags/{flag}", h.SetFlag)
			})

			// Shift detail routes
			r.Route("/shift-details", func(r chi.Router) {
				r.Get("/", h.ListShiftDetails)
				r.Post("/", h.AddShiftDetail)
				r.Put("/{id}", h.UpdateShiftDetail)
				r.Delete("/{id}", h.DeleteShiftDetail)
			})

			// Leave routes
			r.Route("/leave", func(r chi.Router) {
				r.Post("/", h.RegisterLeave)
				r.Delete("/{date}", h.UnregisterLeave)
			})

			// Application routes
			r.Route("/applications", func(r chi.Router) {
				r.Get("/", h.ListApplications)
				r.Post("/", h.CreateApplication)
				r.Get("/{id}", h.GetApplication)
				r.Post("/{id}/approve", h.ApproveApplication)
				r.Post("/{id}/reject", h.RejectApplication)
				r.Delete("/{id}", h.DeleteApplication)
			})

			// Stats routes
			r.Route("/stats", func(r chi.Router) {
				r.Get("/", h.GetStats)
				r.Get("/export", h.ExportStats)
			})

			// Holiday routes
			r.Route("/holidays", func(r chi.Router) {
				r.Get("/", h.ListHolidays)
				r.Post("/", h.CreateHoliday)
				r.Post("/import", h.ImportHolidays)
				r.Delete("/{id}", h.DeleteHoliday)
			})

			// Pattern routes
			r.Route("/patterns", func(r chi.Router) {
				r.Get("/", h.ListPatterns)
				r.Post("/import", h.ImportPatterns)
			})

			// Settings routes
			r.Route("/settings", func(r chi.Router) {
				r.Get("/deadline", h.GetDeadline)
				r.Put("/deadline", h.SetDeadline)
			})
		})
	})

	return r
}

// =============================================================================
// MIDDLEWARE
// =============================================================================

// authenticate resolves the caller and stores it on the request context.
func (h *Handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := h.credentials(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Unauthorized", err)
			return
		}

		user, err := h.Service.GetUser(r.Context(), userID)
		if schedule.IsNotFound(err) {
			writeError(w, http.StatusUnauthorized, "Unknown user", err)
			return
		}
		if err != nil {
			h.fail(w, r, err, "Failed to resolve user")
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithUser(r.Context(), *user)))
	})
}

func (h *Handler) credentials(r *http.Request) (string, error) {
	if header := r.Header.Get("Authorization"); header != "" {
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || h.Tokens == nil {
			return "", auth.ErrTokenInvalid
		}
		claims, err := h.Tokens.Parse(strings.TrimSpace(token))
		if err != nil {
			return "", err
		}
		return claims.UserID, nil
	}
	if h.DevMode {
		if id := strings.TrimSpace(r.Header.Get("X-User-ID")); id != "" {
			return id, nil
		}
	}
	return "", errMissingCredentials
}

// requestLogger logs one structured line per request.
func requestLogger(log *logrus.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			defer func() {
				entry := log.WithFields(logrus.Fields{
					"request_id":  middleware.GetReqID(r.Context()),
					"method":      r.Method,
					"path":        r.URL.Path,
					"status":      ww.Status(),
					"bytes":       ww.BytesWritten(),
					"duration_ms": time.Since(start).Milliseconds(),
				})
				if ww.Status() >= http.StatusInternalServerError {
					entry.Warn("request failed")
					return
				}
				entry.Debug("request")
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
