// Package server exposes editing sessions over HTTP.
//
// Routes:
//
//	POST   /sessions                       create a session
//	GET    /sessions                       list sessions
//	DELETE /sessions/{id}                  close a session
//	POST   /sessions/{id}/commands         execute a command batch (text body)
//	POST   /sessions/{id}/paste            execute the clipboard contents
//	GET    /sessions/{id}/graph            snapshot as JSON
//	POST   /sessions/{id}/graph            import a JSON snapshot into the session
//	GET    /sessions/{id}/script           canonical command script
//	GET    /sessions/{id}/svg              rendered diagram
//	POST   /sessions/{id}/layout           start a layout (?mode=&engine=)
//	GET    /sessions/{id}/stream           WebSocket snapshot stream
//	GET    /metrics                        Prometheus metrics
//	GET    /healthz                        liveness
package server

import (
	"context"
	stderrors "errors"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/matzehuels/flowsketch/pkg/cache"
	"github.com/matzehuels/flowsketch/pkg/observability"
	"github.com/matzehuels/flowsketch/pkg/session"
)

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request and lifecycle logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRegistry sets the Prometheus registry metrics are registered with
// and served from.
func WithRegistry(r *prometheus.Registry) Option {
	return func(s *Server) {
		if r != nil {
			s.registry = r
		}
	}
}

// WithPingInterval sets how often stream connections are pinged.
func WithPingInterval(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.pingInterval = d
		}
	}
}

// WithRenderCache sets the cache SVG renders go through. The default is an
// in-memory LRU.
func WithRenderCache(m *cache.Memo) Option {
	return func(s *Server) {
		if m != nil {
			s.renders = m
		}
	}
}

// Server serves the HTTP API over a session manager.
type Server struct {
	sessions     *session.Manager
	logger       *log.Logger
	registry     *prometheus.Registry
	metrics      *Metrics
	renders      *cache.Memo
	upgrader     websocket.Upgrader
	pingInterval time.Duration
	router       chi.Router
}

// New creates a server and installs its metrics as the process-wide
// observability hooks.
func New(sessions *session.Manager, opts ...Option) *Server {
	s := &Server{
		sessions:     sessions,
		logger:       log.Default(),
		registry:     prometheus.NewRegistry(),
		pingInterval: 30 * time.Second,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Renderers are served from other origins during development.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.renders == nil {
		s.renders = cache.NewMemo(cache.NewMemory(0), 0, s.logger)
	}
	s.metrics = newMetrics(s.registry, sessions.Len, s.renders)
	observability.SetCommandHooks(s.metrics)
	observability.SetLayoutHooks(s.metrics)

	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.instrument)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("ok\n"))
	})
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{EnableOpenMetrics: true}))

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", s.createSession)
		r.Get("/", s.listSessions)
		r.Route("/{id}", func(r chi.Router) {
			r.Use(s.withSession)
			r.Delete("/", s.deleteSession)
			r.Post("/commands", s.executeCommands)
			r.Post("/paste", s.paste)
			r.Get("/graph", s.getGraph)
			r.Post("/graph", s.importGraph)
			r.Get("/script", s.getScript)
			r.Get("/svg", s.getSVG)
			r.Post("/layout", s.requestLayout)
			r.Get("/stream", s.stream)
		})
	})
	return r
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Metrics returns the server's collectors.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// ListenAndServe serves on addr until ctx is canceled, then shuts down
// gracefully and closes every session.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		_ = s.sessions.Close()
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	_ = s.sessions.Close()
	if err != nil {
		return err
	}
	if err := <-errc; err != nil && !stderrors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// instrument counts requests by route pattern and logs them at debug level.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.metrics.HTTPRequests.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
		s.logger.Debug("request",
			"method", r.Method,
			"route", route,
			"status", status,
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}
