package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dshills/promptslot/internal/event"
	"github.com/dshills/promptslot/internal/logging"
	"github.com/dshills/promptslot/internal/node"
	"github.com/dshills/promptslot/internal/transform"
)

// MaxBodyBytes limits request bodies.
const MaxBodyBytes = 1 << 20

// ShutdownTimeout bounds graceful shutdown.
const ShutdownTimeout = 5 * time.Second

// Options configures a Server.
type Options struct {
	// Kinds lists the enabled placeholder kinds. Nil enables every kind.
	Kinds []node.Kind

	// Channel receives events posted to /v1/events. Nil disables the route.
	Channel event.Channel

	Logger *logging.Logger

	// Registerer and Gatherer back the HTTP metrics and /metrics. Nil uses
	// the Prometheus defaults.
	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Server serves the HTTP API.
type Server struct {
	registry    *node.Registry
	transformer *transform.Transformer
	channel     event.Channel
	logger      *logging.Logger
	metrics     *metrics
	gatherer    prometheus.Gatherer
	router      chi.Router

	readTimeout  time.Duration
	writeTimeout time.Duration
}

// New creates a server. It fails when a kind is not a built-in kind.
func New(opts Options) (*Server, error) {
	all := node.DefaultRegistry()
	reg := all
	if opts.Kinds != nil {
		if err := all.Require(opts.Kinds...); err != nil {
			return nil, fmt.Errorf("server: %w", err)
		}
		reg = node.NewRegistry()
		for _, k := range opts.Kinds {
			c, _ := all.Class(k)
			if err := reg.Register(c); err != nil {
				return nil, fmt.Errorf("server: %w", err)
			}
		}
	}

	logger := logging.OrNop(opts.Logger).WithComponent("server")
	t, err := transform.New(reg, transform.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("server: %w", err)
	}

	registerer := opts.Registerer
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		registry:     reg,
		transformer:  t,
		channel:      opts.Channel,
		logger:       logger,
		metrics:      newMetrics(registerer),
		gatherer:     gatherer,
		readTimeout:  opts.ReadTimeout,
		writeTimeout: opts.WriteTimeout,
	}
	s.router = s.routes()
	return s, nil
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)
	r.Use(s.metrics.instrument)

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.AllowContentType("application/json"))
		r.Post("/parse", s.handleParse)
		r.Post("/render", s.handleRender)
		r.Post("/validate", s.handleValidate)
		if s.channel != nil {
			r.Post("/events", s.handlePublish)
		}
	})
	return r
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// Registry returns the classes of the enabled kinds.
func (s *Server) Registry() *node.Registry { return s.registry }

// ListenAndServe listens on addr and serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:      s.router,
		ReadTimeout:  s.readTimeout,
		WriteTimeout: s.writeTimeout,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	s.logger.Info("server listening", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	<-errCh
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}
