// Package server exposes the challenge API over HTTP and WebSocket.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/hlchallenge/internal/domain"
	"github.com/alanyoungcy/hlchallenge/internal/server/handler"
	"github.com/alanyoungcy/hlchallenge/internal/server/middleware"
	"github.com/alanyoungcy/hlchallenge/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	// APIKey enables authentication when non-empty.
	APIKey string
	// RateLimit is the per-client request budget per RateWindow. Zero
	// disables limiting.
	RateLimit  int
	RateWindow time.Duration
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health      *handler.HealthHandler
	Positions   *handler.PositionHandler
	PnL         *handler.PnLHandler
	Trades      *handler.TradeHandler
	Leaderboard *handler.LeaderboardHandler
	// Participants and Audit need Postgres and may be nil.
	Participants *handler.ParticipantHandler
	Audit        *handler.AuditHandler
}

// Server is the HTTP + WebSocket API server.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer registers routes and wraps them in auth, rate limiting, logging
// and CORS (outermost). limiter and wsHub may be nil.
func NewServer(cfg Config, handlers Handlers, limiter domain.RateLimiter, wsHub *ws.Hub, logger *slog.Logger) *Server {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      Routes(cfg, handlers, limiter, wsHub, logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return &Server{httpServer: srv, logger: logger}
}

// Routes builds the full handler chain. It is separate from NewServer so the
// chain can be exercised with httptest.
func Routes(cfg Config, handlers Handlers, limiter domain.RateLimiter, wsHub *ws.Hub, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	mux.HandleFunc("GET /v1/positions/history", handlers.Positions.History)
	mux.HandleFunc("GET /v1/pnl", handlers.PnL.Summary)
	mux.HandleFunc("GET /v1/trades", handlers.Trades.List)
	mux.HandleFunc("GET /v1/leaderboard", handlers.Leaderboard.Compute)
	mux.HandleFunc("GET /v1/leaderboard/latest", handlers.Leaderboard.Latest)

	if handlers.Participants != nil {
		mux.HandleFunc("GET /v1/participants", handlers.Participants.List)
		// Roster changes and the audit log are operator surfaces and stay
		// unrouted unless an API key guards them.
		if cfg.APIKey != "" {
			mux.HandleFunc("POST /v1/participants", handlers.Participants.Register)
			mux.HandleFunc("DELETE /v1/participants/{user}", handlers.Participants.Deactivate)
		}
	}
	if handlers.Audit != nil && cfg.APIKey != "" {
		mux.HandleFunc("GET /v1/audit", handlers.Audit.List)
	}

	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	var h http.Handler = mux
	if limiter != nil && cfg.RateLimit > 0 {
		window := cfg.RateWindow
		if window <= 0 {
			window = time.Minute
		}
		h = middleware.RateLimit(limiter, cfg.RateLimit, window, logger)(h)
	}
	h = middleware.Auth(cfg.APIKey, "/api/health")(h)
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)
	return h
}

// Start listens until the server is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
