package api

import (
	"context"
	"net/http"
	"time"

	"arena-combat/internal/catalog"
	"arena-combat/internal/config"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// ServerConfig wires the API server.
type ServerConfig struct {
	App     config.AppConfig
	Engine  EngineInterface
	Catalog *catalog.Catalog
	Journal JournalReader
	Logger  zerolog.Logger
}

// Server is the HTTP API server with WebSocket support.
// It combines the HTTP router with the session hub.
type Server struct {
	router      *chi.Mux
	hub         *Hub
	rateLimiter *IPRateLimiter
	httpServer  *http.Server
	logger      zerolog.Logger
}

// NewServer creates a new API server.
//
// IMPORTANT: Background workers do NOT start until Start() is called.
// This enables testing by allowing the server to be constructed without
// starting goroutines or opening network listeners.
//
// For testing HTTP endpoints without WebSocket support, use NewRouter() directly.
func NewServer(cfg ServerConfig) *Server {
	origins := NewOriginPolicy(cfg.App.Server.AllowedOrigins)

	s := &Server{
		rateLimiter: NewIPRateLimiter(RateLimitFromConfig(cfg.App.Server)),
		logger:      cfg.Logger.With().Str("component", "api").Logger(),
	}
	s.hub = NewHub(HubConfig{
		Engine:   cfg.Engine,
		Origins:  origins,
		Combat:   cfg.App.Combat,
		TickRate: cfg.App.Simulation.TickRate,
		Logger:   cfg.Logger,
	})

	s.router = NewRouter(RouterConfig{
		Engine:      cfg.Engine,
		Catalog:     cfg.Catalog,
		Journal:     cfg.Journal,
		RateLimiter: s.rateLimiter,
		CORSOrigins: origins.CORSOrigins(),
		Logger:      cfg.Logger,
	})

	// Session endpoint needs the hub, so it is not part of NewRouter
	s.router.Get("/ws", s.hub.HandleWebSocket)

	s.httpServer = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

// Start runs the hub and serves addr until Shutdown. It returns
// http.ErrServerClosed after a clean shutdown.
func (s *Server) Start(ctx context.Context, addr string) error {
	// Start background workers NOW, not in constructor
	go s.hub.Run(ctx)

	s.httpServer.Addr = addr
	s.logger.Info().Str("addr", addr).Msg("api server starting")
	return s.httpServer.ListenAndServe()
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	s.rateLimiter.Stop()
	return s.httpServer.Shutdown(ctx)
}

// Router returns the HTTP handler for use with httptest.
// Use this in integration tests instead of calling Start().
func (s *Server) Router() http.Handler {
	return s.router
}

// Hub returns the session hub.
func (s *Server) Hub() *Hub {
	return s.hub
}
