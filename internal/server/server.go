// Package server hosts the operator HTTP and websocket API.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/chainarb/internal/domain"
	"github.com/alanyoungcy/chainarb/internal/server/handler"
	"github.com/alanyoungcy/chainarb/internal/server/middleware"
	"github.com/alanyoungcy/chainarb/internal/server/ws"
)

// Per-IP request budget for the whole API surface.
const (
	apiRateLimit  = 120
	apiRateWindow = time.Minute
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // empty disables authentication
}

// Handlers aggregates the HTTP handlers the server registers. Nil entries
// leave their routes unregistered, so monitor mode simply omits the trade
// control surface.
type Handlers struct {
	Health  *handler.HealthHandler
	Status  *handler.StatusHandler
	Stats   *handler.StatsHandler
	Trades  *handler.TradesHandler
	Spread  *handler.SpreadHandler
	Prices  *handler.PricesHandler
	Gas     *handler.GasHandler
	Control *handler.ControlHandler
}

// Server is the operator HTTP + websocket API.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// New creates a Server with all routes registered and the middleware chain
// assembled. limiter may be nil to disable API rate limiting; wsHub may be
// nil to disable the websocket endpoint.
func New(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	if handlers.Status != nil {
		mux.HandleFunc("GET /api/status", handlers.Status.GetStatus)
	}
	if handlers.Stats != nil {
		mux.HandleFunc("GET /api/stats", handlers.Stats.GetStats)
	}
	if handlers.Trades != nil {
		mux.HandleFunc("GET /api/trades", handlers.Trades.ListTrades)
	}
	if handlers.Spread != nil {
		mux.HandleFunc("GET /api/spread", handlers.Spread.GetSpread)
	}
	if handlers.Prices != nil {
		mux.HandleFunc("GET /api/prices", handlers.Prices.GetPrices)
	}
	if handlers.Gas != nil {
		mux.HandleFunc("GET /api/gas", handlers.Gas.GetGas)
	}
	if handlers.Control != nil {
		mux.HandleFunc("POST /api/pause", handlers.Control.Pause)
		mux.HandleFunc("POST /api/resume", handlers.Control.Resume)
		mux.HandleFunc("POST /api/trade", handlers.Control.ManualTrade)
	}
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	var h http.Handler = mux
	if limiter != nil {
		h = middleware.RateLimit(limiter, apiRateLimit, apiRateWindow)(h)
	}
	h = middleware.Auth(cfg.APIKey)(h)
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		logger:     logger.With("component", "server"),
	}
}

// Start blocks serving requests until the server errors or shuts down.
func (s *Server) Start() error {
	s.logger.Info("server starting", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests within the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
