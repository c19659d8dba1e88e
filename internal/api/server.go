// Package api provides the HTTP REST API for uploading videos, planning
// edits and following job progress.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/visualix/visualix/internal/core"
	"github.com/visualix/visualix/internal/diagnostics"
	"github.com/visualix/visualix/internal/events"
	"github.com/visualix/visualix/internal/logging"
	"github.com/visualix/visualix/internal/service/jobs"
	"github.com/visualix/visualix/internal/storage"
)

// JobService is the job lifecycle used by the handlers.
type JobService interface {
	Create(ctx context.Context, req jobs.CreateRequest) (*core.JobInfo, error)
	Get(ctx context.Context, id string) (*core.JobInfo, error)
	List(ctx context.Context, filter core.JobFilter) ([]*core.JobInfo, int, error)
	Delete(ctx context.Context, id string) error
	Stats(ctx context.Context) (*jobs.Stats, error)
	Analyze(ctx context.Context, prompt string, meta *core.VideoMetadata) (*core.WorkflowPlan, []string, error)
	Process(ctx context.Context, id, prompt string) (*jobs.ProcessResult, error)
	Cancel(ctx context.Context, id string) (*jobs.CancelResult, error)
	Status(ctx context.Context, id string) (*jobs.StatusReport, error)
}

// PlanExplainer explains and screens plans.
type PlanExplainer interface {
	Explain(ctx context.Context, plan *core.WorkflowPlan) string
	Validate(plan *core.WorkflowPlan) []string
	Available() bool
}

// ToolCatalog lists registered tools.
type ToolCatalog interface {
	DescribeAll() map[string]core.ToolDescriptor
	ByCategory() map[string][]string
}

// FileInfo reports upload limits and disk usage.
type FileInfo interface {
	AllowedFormats() []string
	MaxFileSize() int64
	Dirs() []string
	Stats() (storage.Stats, error)
}

// Cleaner runs the file cleanup on demand.
type Cleaner interface {
	RunOnce(ctx context.Context) storage.CleanupResult
	Stats() storage.CleanupStats
}

// Deps are the collaborators of the server. Jobs, Planner, Tools and Files
// are required.
type Deps struct {
	Jobs    JobService
	Planner PlanExplainer
	Tools   ToolCatalog
	Files   FileInfo
	Cleaner Cleaner
	Bus     *events.EventBus
	System  *diagnostics.Collector
	Metrics http.Handler
}

// Server provides HTTP REST API endpoints.
type Server struct {
	router      chi.Router
	deps        Deps
	logger      *logging.Logger
	corsOrigins []string
	timeout     time.Duration
	enableSSE   bool
	version     string
}

// ServerOption configures the server.
type ServerOption func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger *logging.Logger) ServerOption {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithCORSOrigins restricts cross-origin access. The default allows any
// origin.
func WithCORSOrigins(origins []string) ServerOption {
	return func(s *Server) {
		if len(origins) > 0 {
			s.corsOrigins = origins
		}
	}
}

// WithRequestTimeout bounds non-streaming requests.
func WithRequestTimeout(d time.Duration) ServerOption {
	return func(s *Server) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithSSE toggles the event stream endpoint.
func WithSSE(enabled bool) ServerOption {
	return func(s *Server) { s.enableSSE = enabled }
}

// WithVersion sets the version reported by /health.
func WithVersion(v string) ServerOption {
	return func(s *Server) { s.version = v }
}

// NewServer creates a new API server.
func NewServer(deps Deps, opts ...ServerOption) *Server {
	s := &Server{
		deps:        deps,
		logger:      logging.NewNop(),
		corsOrigins: []string{"*"},
		timeout:     60 * time.Second,
		enableSSE:   true,
		version:     "dev",
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithComponent("api")
	s.router = s.setupRouter()
	return s
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.loggingMiddleware)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   s.corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Requested-With"},
		AllowCredentials: false,
		MaxAge:           300,
	})
	r.Use(corsHandler.Handler)

	r.Get("/health", s.handleHealth)
	if s.deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.deps.Metrics)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		// Streaming and downloads are not bounded by the request timeout.
		if s.enableSSE {
			r.Get("/jobs/{jobID}/events", s.handleJobEvents)
		}
		r.Get("/jobs/{jobID}/result", s.handleResult)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(s.timeout))

			r.Post("/videos", s.handleUpload)

			r.Route("/jobs", func(r chi.Router) {
				r.Get("/", s.handleListJobs)
				r.Route("/{jobID}", func(r chi.Router) {
					r.Get("/", s.handleGetJob)
					r.Delete("/", s.handleDeleteJob)
					r.Get("/status", s.handleJobStatus)
					r.Post("/process", s.handleProcess)
					r.Post("/cancel", s.handleCancel)
				})
			})

			r.Route("/plans", func(r chi.Router) {
				r.Post("/analyze", s.handleAnalyze)
				r.Post("/explain", s.handleExplain)
				r.Post("/validate", s.handleValidate)
			})

			r.Get("/tools", s.handleTools)
			r.Get("/formats", s.handleFormats)
			r.Get("/stats", s.handleStats)
			r.Post("/cleanup", s.handleCleanup)
			r.Get("/system", s.handleSystem)
		})
	})

	return r
}

// loggingMiddleware logs HTTP requests.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			level := slog.LevelInfo
			if ww.Status() >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			s.logger.Log(r.Context(), level, "http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start),
				"bytes", ww.BytesWritten(),
				"request_id", middleware.GetReqID(r.Context()),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode response", "error", err)
		}
	}
}

// decodeJSON reads a JSON body into v, rejecting unknown fields.
func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return core.ErrValidation("EMPTY_BODY", "request body is required")
		}
		return core.ErrValidation("INVALID_JSON", "invalid request body: "+err.Error())
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	plannerReady := s.deps.Planner != nil && s.deps.Planner.Available()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":          "healthy",
		"version":         s.version,
		"planner_enabled": plannerReady,
		"time":            time.Now().UTC().Format(time.RFC3339),
	})
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string, readTimeout, writeTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting API server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.logger.Info("shutting down API server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}
