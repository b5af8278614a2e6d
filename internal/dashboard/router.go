package dashboard

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/signalsfoundry/schoolbus-tracker/internal/logging"
	"github.com/signalsfoundry/schoolbus-tracker/kb"
)

// Options configures the router.
type Options struct {
	// AllowedOrigins feeds the CORS policy. Empty disables CORS headers.
	AllowedOrigins []string
	// Metrics, when set, is mounted at /metrics.
	Metrics http.Handler
	// Middleware wraps every route, e.g. request metrics.
	Middleware []func(http.Handler) http.Handler
	// LastTick reports when the simulator last ran, for /health.
	LastTick func() time.Time
	Log      logging.Logger
}

// NewRouter builds the dashboard HTTP API over store.
func NewRouter(store *kb.KnowledgeBase, opts Options) http.Handler {
	log := opts.Log
	if log == nil {
		log = logging.Noop()
	}
	h := NewHandler(store, log)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(log))
	if len(opts.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   opts.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"*"},
			AllowCredentials: true,
		}))
	}
	for _, mw := range opts.Middleware {
		r.Use(mw)
	}

	r.Get("/health", healthHandler(store, opts.LastTick))

	r.Route("/api", func(r chi.Router) {
		r.Get("/buses", h.ListBuses)
		r.Get("/buses/{id}", h.GetBus)
		r.Get("/students", h.ListStudents)
		r.Get("/alerts", h.ListAlerts)
		r.Get("/alerts/recent", h.RecentAlerts)
		r.Post("/alerts/{id}/read", h.MarkAlertRead)
		r.Delete("/alerts/{id}", h.DismissAlert)
		r.Get("/stats", h.GetStats)
	})

	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}
	return r
}

// requestLogger attaches a request-scoped logger, honouring an inbound
// X-Request-Id header.
func requestLogger(base logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if id := r.Header.Get("X-Request-Id"); id != "" {
				ctx = logging.ContextWithRequestID(ctx, id)
			}
			ctx, reqLog := logging.WithRequestLogger(ctx, base.With(
				logging.String("http_method", r.Method),
				logging.String("path", r.URL.Path),
			))
			ctx = logging.ContextWithLogger(ctx, reqLog)
			w.Header().Set("X-Request-Id", logging.RequestIDFromContext(ctx))

			start := time.Now()
			next.ServeHTTP(w, r.WithContext(ctx))
			reqLog.Debug(ctx, "request served", logging.Duration("elapsed", time.Since(start)))
		})
	}
}

func healthHandler(store *kb.KnowledgeBase, lastTick func() time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := map[string]interface{}{
			"status":    "ok",
			"buses":     len(store.BusIDs()),
			"timestamp": time.Now().UTC(),
		}
		if lastTick != nil {
			if t := lastTick(); !t.IsZero() {
				body["lastTick"] = t.UTC()
			}
		}
		writeJSON(w, http.StatusOK, body)
	}
}
