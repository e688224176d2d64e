package server

import (
	"context"
	"io/fs"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/tikgrab/tikgrab/internal/artifact"
	"github.com/tikgrab/tikgrab/internal/metrics"
	"github.com/tikgrab/tikgrab/internal/ratelimit"
	"github.com/tikgrab/tikgrab/internal/storage"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type Config struct {
	Pinger         Pinger
	Store          *storage.Dir
	Fetcher        artifact.Fetcher
	Scheduler      artifact.Scheduler
	Retention      time.Duration
	Locator        artifact.Locator
	Metrics        metrics.Recorder
	MetricsHandler http.Handler
	WebFS          fs.FS
	BaseURL        string
	SubmitRate     float64
	SubmitBurst    int
}

type Server struct {
	router          chi.Router
	pinger          Pinger
	artifactHandler *artifact.Handler
	metricsHandler  http.Handler
	webFS           fs.FS
	submitRate      float64
	submitBurst     int
	stop            context.CancelFunc
}

// New builds the router. Download routes are mounted only when Store,
// Fetcher and Scheduler are all set.
func New(cfg Config) *Server {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(slogMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(securityHeaders(SecurityConfig{BaseURL: cfg.BaseURL}))

	s := &Server{
		router:         r,
		pinger:         cfg.Pinger,
		metricsHandler: cfg.MetricsHandler,
		webFS:          cfg.WebFS,
		submitRate:     cfg.SubmitRate,
		submitBurst:    cfg.SubmitBurst,
	}
	if s.submitRate <= 0 {
		s.submitRate = 0.2
	}
	if s.submitBurst < 1 {
		s.submitBurst = 5
	}

	if cfg.Store != nil {
		if s.pinger == nil {
			s.pinger = cfg.Store
		}
		if cfg.Fetcher != nil && cfg.Scheduler != nil {
			s.artifactHandler = artifact.NewHandler(cfg.Store, cfg.Fetcher, cfg.Scheduler, cfg.Retention)
			if cfg.Locator != nil {
				s.artifactHandler.SetLocator(cfg.Locator)
			}
			s.artifactHandler.SetMetrics(cfg.Metrics)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.stop = cancel
	s.routes(ctx)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Close stops background work owned by the server.
func (s *Server) Close() {
	s.stop()
}

func (s *Server) routes(ctx context.Context) {
	s.router.Get("/api/health", s.handleHealth)

	if s.metricsHandler != nil {
		s.router.Handle("/metrics", s.metricsHandler)
	}

	if s.artifactHandler != nil {
		submitLimiter := ratelimit.NewLimiter(ctx, s.submitRate, s.submitBurst)
		s.router.Group(func(r chi.Router) {
			r.Use(submitLimiter.Middleware)
			r.Post("/download", s.artifactHandler.Submit)
			r.Post("/download-tiktok", s.artifactHandler.Submit)
		})
		s.router.Get("/download/{filename}", s.artifactHandler.Serve)
		s.router.Head("/download/{filename}", s.artifactHandler.Serve)
	}

	if s.webFS != nil {
		static := newStaticFileServer(s.webFS)
		s.router.Get("/", static.ServeHTTP)
		s.router.NotFound(static.ServeHTTP)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if s.pinger != nil {
		if err := s.pinger.Ping(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unhealthy","error":"storage unavailable"}`))
			return
		}
	}
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
