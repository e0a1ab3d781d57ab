package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/chainarb/internal/config"
	"github.com/alanyoungcy/chainarb/internal/orchestrator"
	"github.com/alanyoungcy/chainarb/internal/server"
	"github.com/alanyoungcy/chainarb/internal/server/handler"
	"github.com/alanyoungcy/chainarb/internal/server/ws"
)

const shutdownTimeout = 10 * time.Second

// App owns the full process lifecycle: wiring, the agent orchestrator, and
// the optional HTTP/websocket surface.
type App struct {
	cfg    *config.Config
	logger *slog.Logger
}

// New creates an App from a validated config.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{cfg: cfg, logger: logger}
}

// Run wires the dependencies, starts every agent for the configured mode,
// and blocks until ctx is cancelled or an agent fails. Resources are
// released before it returns.
func (a *App) Run(ctx context.Context) error {
	startedAt := time.Now()

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return err
	}
	defer cleanup()

	set, err := buildAgents(a.cfg, deps, a.logger)
	if err != nil {
		return err
	}

	orch := orchestrator.New(set.bus, nil, a.logger)
	for _, agent := range set.agents {
		if err := orch.Register(agent); err != nil {
			return fmt.Errorf("app: register %s: %w", agent.Name(), err)
		}
	}

	hub := ws.NewHub(deps.SignalBus, a.logger, ws.Config{
		Mode:      a.cfg.Mode,
		StartedAt: startedAt,
	})

	var srv *server.Server
	if a.cfg.Server.Enabled {
		srv = server.New(server.Config{
			Port:        a.cfg.Server.Port,
			CORSOrigins: a.cfg.Server.CORSOrigins,
			APIKey:      a.cfg.Server.APIKey,
		}, a.buildHandlers(orch, set, deps, startedAt), hub, deps.RateLimiter, a.logger)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := orch.StartAll(runCtx); err != nil {
		return fmt.Errorf("app: start agents: %w", err)
	}

	hubDone := make(chan error, 1)
	go func() { hubDone <- hub.Run(runCtx) }()

	srvDone := make(chan error, 1)
	if srv != nil {
		go func() { srvDone <- srv.Start() }()
		a.logger.Info("api server listening", "port", a.cfg.Server.Port)
	}

	a.logger.Info("started", "mode", a.cfg.Mode, "agents", len(set.agents))

	var runErr error
	select {
	case <-ctx.Done():
		runErr = ctx.Err()
	case err := <-srvDone:
		runErr = fmt.Errorf("app: api server: %w", err)
	case done := <-waitCh(orch):
		runErr = done
	}

	cancel()
	orch.StopAll(shutdownTimeout)

	if srv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.logger.Warn("api server shutdown", "error", err)
		}
	}
	<-hubDone

	return runErr
}

// waitCh adapts Orchestrator.Wait to a channel for the run select.
func waitCh(orch *orchestrator.Orchestrator) <-chan error {
	ch := make(chan error, 1)
	go func() { ch <- orch.Wait() }()
	return ch
}

func (a *App) buildHandlers(orch *orchestrator.Orchestrator, set *agentSet, deps *Dependencies, startedAt time.Time) server.Handlers {
	h := server.Handlers{
		Health: handler.NewHealthHandler(),
		Status: handler.NewStatusHandler(orch, a.cfg.Mode, startedAt),
		Spread: handler.NewSpreadHandler(set.detector),
		Prices: handler.NewPricesHandler(deps.PriceCache),
		Gas:    handler.NewGasHandler(deps.Ethereum, set.detector),
	}
	if set.executor != nil {
		h.Stats = handler.NewStatsHandler(set.detector, set.executor)
		h.Trades = handler.NewTradesHandler(set.executor, deps.TradeStore)
		h.Control = handler.NewControlHandler(set.executor, set.detector, deps.Notifier, a.logger)
	} else {
		h.Stats = handler.NewStatsHandler(set.detector, nil)
	}
	return h
}
