package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/randalmurphal/diagramkit/pkg/diagramkit/execution"
	"github.com/randalmurphal/diagramkit/pkg/diagramkit/format"
	"github.com/randalmurphal/diagramkit/pkg/diagramkit/idgen"
	"github.com/randalmurphal/diagramkit/pkg/diagramkit/repository"
)

// DefaultMaxBodyBytes limits request bodies when WithMaxBodyBytes is not given.
const DefaultMaxBodyBytes = 4 << 20

// Server exposes conversion, diagram storage and execution state over HTTP.
type Server struct {
	formats *format.Registry
	repo    repository.Store
	monitor *execution.Monitor
	ids     *idgen.Generator
	logger  *slog.Logger
	maxBody int64
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request and error logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithMaxBodyBytes limits the size of request bodies.
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) { s.maxBody = n }
}

// WithIDGenerator sets the generator for ids of diagrams created by POST.
func WithIDGenerator(g *idgen.Generator) Option {
	return func(s *Server) { s.ids = g }
}

// New creates a server over the given collaborators.
func New(formats *format.Registry, repo repository.Store, monitor *execution.Monitor, opts ...Option) *Server {
	s := &Server{
		formats: formats,
		repo:    repo,
		monitor: monitor,
		ids:     idgen.New(nil),
		logger:  slog.New(slog.DiscardHandler),
		maxBody: DefaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Get("/formats", s.listFormats)
		r.Post("/convert", s.convert)
		r.Post("/detect", s.detect)
		r.Post("/validate", s.validate)
		r.Post("/variables", s.variables)

		r.Route("/diagrams", func(r chi.Router) {
			r.Get("/", s.listDiagrams)
			r.Post("/", s.createDiagram)
			r.Get("/{id}", s.getDiagram)
			r.Put("/{id}", s.putDiagram)
			r.Delete("/{id}", s.deleteDiagram)
		})

		r.Route("/executions", func(r chi.Router) {
			r.Get("/", s.listExecutions)
			r.Get("/{id}", s.getExecution)
			r.Post("/{id}/updates", s.applyUpdate)
			r.Delete("/{id}", s.forgetExecution)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, r, errRouteNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, r, errMethodNotAllowed)
	})
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Int("bytes", ww.BytesWritten()),
			slog.Float64("duration_ms", float64(time.Since(start).Microseconds())/1000),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
