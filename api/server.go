/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. RealIP:     Client address for rate limiting and logs
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. Logger:     Structured request logging (logrus)
  5. Secure:     Security headers
  6. CORS:       Cross-origin requests for frontend
  7. Metrics:    Prometheus request counters and latencies

  Write routes (POST/PUT/DELETE under /api) are additionally rate limited
  per client IP.

ROUTE GROUPS:
  /api/customers/*      Customers, history, aging, mark-paid
  /api/credits/*        Credit transactions
  /api/payments/*       Payments
  /api/kpis, /api/aging Dashboard
  /api/scenarios/*      Demo scenarios (dev only)
  /metrics              Prometheus scrape endpoint
  /healthz              Liveness

SECURITY NOTE:
  No authentication middleware. The API is meant for a single store on a
  trusted network.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/tindahan/serve.go: Server startup
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/sirupsen/logrus"
	"github.com/unrolled/secure"
)

// RouterOptions tunes the router. Zero values pick the defaults.
type RouterOptions struct {
	AllowedOrigins []string
	// WriteRateLimit is the number of write requests per minute per client.
	WriteRateLimit int
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"http://localhost:5173", "http://localhost:8080"}
	}
	if opts.WriteRateLimit <= 0 {
		opts.WriteRateLimit = 120
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(h.Log))
	r.Use(secureHeaders(h.Log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
		AllowCredentials: true,
	}))
	r.Use(h.Metrics.Middleware)

	writeLimit := httprate.Limit(opts.WriteRateLimit, time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			writeError(w, http.StatusTooManyRequests, "Too many requests", nil)
		}),
	)

	r.Get("/healthz", h.Healthz)
	r.Handle("/metrics", h.Metrics.Handler())

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Reads
		r.Get("/customers", h.ListCustomers)
		r.Get("/customers/search", h.SearchCustomers)
		r.Get("/customers/{id}", h.GetCustomer)
		r.Get("/customers/{id}/history", h.GetHistory)
		r.Get("/customers/{id}/credits", h.GetCustomerCredits)
		r.Get("/customers/{id}/payments", h.GetCustomerPayments)
		r.Get("/customers/{id}/aging", h.GetCustomerAging)
		r.Get("/kpis", h.GetKPIs)
		r.Get("/aging", h.GetStoreAging)
		r.Get("/scenarios", h.ListScenarios)
		r.Get("/scenarios/current", h.GetCurrentScenario)

		// Writes
		r.Group(func(r chi.Router) {
			r.Use(writeLimit)

			r.Post("/customers", h.CreateCustomer)
			r.Put("/customers/{id}", h.UpdateCustomer)
			r.Delete("/customers/{id}", h.DeleteCustomer)
			r.Post("/customers/{id}/mark-paid", h.MarkAllPaid)

			r.Post("/credits", h.CreateCredit)
			r.Put("/credits/{id}", h.UpdateCredit)
			r.Delete("/credits/{id}", h.DeleteCredit)

			r.Post("/payments", h.RecordPayment)
			r.Delete("/payments/{id}", h.DeletePayment)

			r.Post("/scenarios/load", h.LoadScenario)
			r.Post("/scenarios/reset", h.ResetDatabase)
		})
	})

	return r
}

// requestLogger logs one line per request with logrus.
func requestLogger(log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			entry := log.WithFields(logrus.Fields{
				"method":      r.Method,
				"path":        r.URL.Path,
				"status":      ww.Status(),
				"bytes":       ww.BytesWritten(),
				"duration_ms": time.Since(start).Milliseconds(),
				"request_id":  middleware.GetReqID(r.Context()),
				"remote":      r.RemoteAddr,
			})
			switch {
			case ww.Status() >= 500:
				entry.Error("request failed")
			case ww.Status() >= 400:
				entry.Warn("request rejected")
			default:
				entry.Info("request")
			}
		})
	}
}

func secureHeaders(log logrus.FieldLogger) func(http.Handler) http.Handler {
	sm := secure.New(secure.Options{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		ContentSecurityPolicy: "default-src 'self'",
	})
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := sm.Process(w, r); err != nil {
				log.WithError(err).Warn("secure headers blocked request")
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
