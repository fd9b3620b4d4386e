/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     zap request logging with the request id
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for dashboards

ROUTE GROUPS:
  /api/indicators/*     Catalog and evaluation
  /api/periods          Named windows
  /api/reports/*        Report runs and exports
  /api/participants/*   Participant lookups
  /api/plot             Monthly frames over reporting tables
  /api/agg/*            Aggregate plot tables
  /healthz              Database ping
  /metrics              Prometheus

SECURITY NOTE:
  No authentication middleware. Run behind the reporting network's proxy.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/paceutils: serve command
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/whatscottcodes/paceutils/metrics"
	"go.uber.org/zap"
)

// Options configures the router.
type Options struct {
	CORSOrigins []string
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts Options) *chi.Mux {
	r := chi.NewRouter()

	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(requestLogger(h.log))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		ExposedHeaders: []string{"Content-Disposition"},
		MaxAge:         300,
	}))

	r.Get("/healthz", h.Health)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Route("/indicators", func(r chi.Router) {
			r.Get("/", h.ListIndicators)
			r.Get("/{name}", h.GetIndicator)
			r.Get("/{name}/series", h.GetSeries)
		})

		r.Get("/periods", h.ListPeriods)

		r.Route("/reports", func(r chi.Router) {
			r.Post("/", h.RunReport)
			r.Post("/export", h.ExportReport)
		})

		r.Get("/participants/{id}", h.GetParticipant)

		r.Post("/plot", h.PlotFrame)

		r.Route("/agg", func(r chi.Router) {
			r.Get("/{table}", h.AggPlot)
			r.Get("/{table}/teams/{column}", h.AggTeamPlot)
		})
	})

	return r
}

// requestLogger logs one line per request at info, or warn for 5xx.
func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				fields := []zap.Field{
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("duration", time.Since(start)),
					zap.String("request_id", middleware.GetReqID(r.Context())),
				}
				if ww.Status() >= http.StatusInternalServerError {
					log.Warn("http request", fields...)
					return
				}
				log.Info("http request", fields...)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
