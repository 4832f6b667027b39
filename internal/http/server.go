// Package http serves the derived dashboard tables as a JSON API, with CSV
// and XLSX downloads of each table and an endpoint for recording new
// violations.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	applog "bicdash/internal/log"
	"bicdash/internal/metrics"
	"bicdash/internal/middleware/ratelimit"
	"bicdash/internal/middleware/security"
	"bicdash/internal/middleware/trace"
	"bicdash/internal/services"
	ports "bicdash/internal/sheets"
)

// Deps are the collaborators of the server. Datasets is required.
type Deps struct {
	Datasets *services.DatasetService
	// Writer records new violations; nil makes the API read-only.
	Writer ports.ViolationWriter
	Logger *applog.Logger
	// Metrics may be nil.
	Metrics *metrics.Metrics
	// Ready reports backend health for /readyz, for example a database ping.
	Ready     func(ctx context.Context) error
	RateLimit ratelimit.Config
	// TrustedProxies are extra CIDRs allowed to set X-Forwarded-For.
	TrustedProxies []string
}

type Server struct {
	http.Server
	datasets *services.DatasetService
	writer   ports.ViolationWriter
	logger   *applog.Logger
	metrics  *metrics.Metrics
	ready    func(ctx context.Context) error
	limiter  *ratelimit.Limiter
	clientIP *security.ClientIPResolver
	validate *validator.Validate
	started  time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		datasets: deps.Datasets,
		writer:   deps.Writer,
		logger:   logger.WithComponent(applog.ComponentHTTP),
		metrics:  deps.Metrics,
		ready:    deps.Ready,
		limiter:  ratelimit.NewLimiter(deps.RateLimit),
		clientIP: security.NewClientIPResolver(),
		validate: newValidator(),
		started:  time.Now(),
	}
	for _, cidr := range deps.TrustedProxies {
		if err := s.clientIP.AddTrustedProxy(cidr); err != nil {
			s.logger.Warn("Ignoring trusted proxy", applog.FieldError, err)
		}
	}
	s.Handler = s.routes()
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(trace.NewMiddleware(s.logger, s.metrics, s.clientIP.ClientIP).Handler)
	r.Use(security.Headers(security.DefaultHeadersConfig()))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, r, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, r, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Handle("/metrics", s.metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/summary", s.handleSummary)
		r.Get("/trend", s.handleTrend)
		r.Get("/top", s.handleTop)
		r.Get("/categories", s.handleCategories)
		r.Get("/correlation", s.handleCorrelation)
		r.Get("/accounts/timeseries", s.handleAccountTimeseries)
		r.Get("/records", s.handleRecords)
		r.Get("/labels", s.handleLabels)

		r.With(s.limiter.Middleware(s.clientIP.ClientIP, s.handleRateLimited)).
			Post("/violations", s.handleCreateViolation)
	})
	return r
}

// Shutdown gracefully shuts down the server and its cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	applog.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		applog.FieldClientIP, s.clientIP.ClientIP(r),
		applog.FieldMethod, r.Method,
		applog.FieldPath, r.URL.Path)
	respondError(w, r, http.StatusTooManyRequests, "rate limit exceeded, try again later")
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, r, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	})
}

// handleReady checks the backend and that a dataset snapshot can be served.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := map[string]string{}

	if s.ready != nil {
		if err := s.ready(ctx); err != nil {
			checks["backend"] = "failed: " + err.Error()
			status = http.StatusServiceUnavailable
		} else {
			checks["backend"] = "ok"
		}
	}

	if snap, err := s.datasets.Snapshot(ctx); err != nil {
		checks["dataset"] = "failed: " + err.Error()
		status = http.StatusServiceUnavailable
	} else {
		checks["dataset"] = "ok"
		checks["loaded_at"] = snap.LoadedAt.UTC().Format(time.RFC3339)
	}

	if s.writer == nil {
		checks["writer"] = "read_only"
	} else {
		checks["writer"] = "ok"
	}

	state := "ready"
	if status != http.StatusOK {
		state = "not_ready"
	}
	respondJSON(w, r, status, map[string]any{"status": state, "checks": checks})
}
