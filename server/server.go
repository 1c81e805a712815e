// Package server exposes an engine over HTTP.
//
// Routes:
//
//	GET  /healthz                  liveness, never authenticated
//	GET  /agents                   registered agent names
//	GET  /agents/:name/config      client-visible agent configuration
//	POST /agents/:name/percepts    enqueue a message or interrupt percept
//	GET  /agents/:name/rpc         effect gateway (WebSocket)
//
// Every route but /healthz requires the bearer token when one is configured
// and is rate limited per client address.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hupe1980/lifemesh/config"
	"github.com/hupe1980/lifemesh/engine"
	"github.com/hupe1980/lifemesh/logging"
)

// Options configures a Server.
type Options struct {
	Logger logging.Logger
	// Addr is the listen address. Defaults to localhost:3003.
	Addr string
	// Token enables bearer authentication when non-empty.
	Token string
	// RateLimit is the sustained number of requests per second allowed for
	// one client. Zero disables rate limiting.
	RateLimit float64
	// Burst is the token bucket size. Defaults to twice the rate.
	Burst int
	// ReadHeaderTimeout bounds reading request headers.
	ReadHeaderTimeout time.Duration
}

// Server is the HTTP ingress of an engine.
type Server struct {
	eng    *engine.Engine
	opts   Options
	logger logging.Logger
	router *gin.Engine
	http   *http.Server

	gateways sync.Map // agent name -> http.Handler
}

// New creates a server routing requests to eng.
func New(eng *engine.Engine, optFns ...func(o *Options)) *Server {
	opts := Options{
		Logger:            logging.NoOpLogger{},
		Addr:              net.JoinHostPort(config.DefaultHost, "3003"),
		ReadHeaderTimeout: 10 * time.Second,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Logger = logging.OrNoOp(opts.Logger)
	if opts.Burst <= 0 {
		opts.Burst = max(1, int(opts.RateLimit*2))
	}

	logger := opts.Logger
	if sl, ok := logger.(*logging.StructuredLogger); ok {
		logger = sl.WithComponent("server")
	}

	s := &Server{eng: eng, opts: opts, logger: logger}
	s.router = s.routes()
	s.http = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: opts.ReadHeaderTimeout,
	}
	return s
}

func (s *Server) routes() *gin.Engine {
	g := gin.New()
	g.Use(gin.Recovery(), requestLogger(s.logger))

	g.GET("/healthz", s.health)

	api := g.Group("/agents", bearerAuth(s.opts.Token))
	if s.opts.RateLimit > 0 {
		api.Use(rateLimit(newLimiter(s.opts.RateLimit, s.opts.Burst)))
	}
	api.GET("", s.listAgents)
	api.GET("/:name/config", s.clientConfig)
	api.POST("/:name/percepts", s.pushPercept)
	api.GET("/:name/rpc", s.rpc)
	return g
}

// Handler returns the HTTP handler, useful for tests and embedding.
func (s *Server) Handler() http.Handler { return s.router }

// Addr returns the configured listen address.
func (s *Server) Addr() string { return s.opts.Addr }

// ListenAndServe serves until Stop is called. It returns nil after a
// graceful stop.
func (s *Server) ListenAndServe() error {
	s.logger.Info("server.listen", "addr", s.opts.Addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Serve is like ListenAndServe on an existing listener.
func (s *Server) Serve(l net.Listener) error {
	s.logger.Info("server.listen", "addr", l.Addr().String())
	if err := s.http.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop shuts the server down gracefully. Effect gateway connections are
// hijacked and therefore not awaited.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("server.stop")
	return s.http.Shutdown(ctx)
}
