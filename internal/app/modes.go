package app

import (
	"fmt"
	"log/slog"
	"strings"

	s3blob "github.com/alanyoungcy/chainarb/internal/blob/s3"
	"github.com/alanyoungcy/chainarb/internal/bus"
	"github.com/alanyoungcy/chainarb/internal/config"
	"github.com/alanyoungcy/chainarb/internal/detector"
	"github.com/alanyoungcy/chainarb/internal/domain"
	"github.com/alanyoungcy/chainarb/internal/executor"
	"github.com/alanyoungcy/chainarb/internal/monitor"
	"github.com/alanyoungcy/chainarb/internal/notify"
	"github.com/alanyoungcy/chainarb/internal/retry"
	"github.com/alanyoungcy/chainarb/internal/sentiment"
	"github.com/alanyoungcy/chainarb/internal/venue/binance"
)

// Runtime modes. Monitor watches prices and detects opportunities without
// trading; trade adds execution; full adds archival on top of trade.
const (
	ModeMonitor = "monitor"
	ModeTrade   = "trade"
	ModeFull    = "full"
)

// agentSet is everything the orchestrator runs plus the pieces the HTTP
// surface needs direct handles on.
type agentSet struct {
	bus      *bus.EventBus
	agents   []domain.Agent
	detector *detector.Detector
	executor *executor.TradeExecutor
}

func retryFromConfig(cfg *config.Config) retry.Config {
	rc := retry.Defaults()
	if cfg.Retry.Attempts > 0 {
		rc.Attempts = cfg.Retry.Attempts
	}
	if d := cfg.Retry.BaseDelay.Duration; d > 0 {
		rc.BaseDelay = d
	}
	return rc
}

// buildAgents assembles the agent pipeline for the configured mode.
func buildAgents(cfg *config.Config, deps *Dependencies, logger *slog.Logger) (*agentSet, error) {
	mode := strings.ToLower(cfg.Mode)
	switch mode {
	case ModeMonitor, ModeTrade, ModeFull:
	default:
		return nil, fmt.Errorf("app: unknown mode %q", cfg.Mode)
	}

	b := bus.New(logger)
	set := &agentSet{bus: b}
	rc := retryFromConfig(cfg)

	solMonitor := monitor.New(monitor.Config{
		Name:    "SOLANA_MONITOR",
		Chain:   domain.ChainSolana,
		Role:    domain.RoleBuy,
		Primary: deps.Solana,
		Fallbacks: []domain.PriceSource{
			deps.Coingecko,
			binance.NewTicker(deps.Binance, cfg.Binance.Pair, domain.ChainSolana),
		},
		Interval:    cfg.Monitoring.Interval.Duration,
		PriceMin:    cfg.Monitoring.PriceMin,
		PriceMax:    cfg.Monitoring.PriceMax,
		HistorySize: cfg.Monitoring.PriceHistorySize,
		Retry:       rc,
	}, b, deps.PriceCache, deps.RateLimiter, nil, logger)

	ethMonitor := monitor.New(monitor.Config{
		Name:    "ETHEREUM_MONITOR",
		Chain:   domain.ChainEthereum,
		Role:    domain.RoleSell,
		Primary: deps.Ethereum,
		Fallbacks: []domain.PriceSource{
			binance.NewTicker(deps.Binance, cfg.Binance.Pair, domain.ChainEthereum),
		},
		Interval:    cfg.Monitoring.Interval.Duration,
		PriceMin:    cfg.Monitoring.PriceMin,
		PriceMax:    cfg.Monitoring.PriceMax,
		HistorySize: cfg.Monitoring.PriceHistorySize,
		Retry:       rc,
	}, b, deps.PriceCache, deps.RateLimiter, nil, logger)

	set.detector = detector.New(detector.Config{
		MinProfitPct:    cfg.Trading.MinProfitPct,
		TradeSizeUSD:    cfg.Trading.TradeSizeUSD,
		MaxTradeSizeUSD: cfg.Trading.MaxTradeSizeUSD,
		StaleThreshold:  cfg.Monitoring.StaleThreshold.Duration,
		PriceMin:        cfg.Monitoring.PriceMin,
		PriceMax:        cfg.Monitoring.PriceMax,
	}, b, nil, logger)

	mirror := bus.NewMirror(b, deps.SignalBus, logger)
	analyzer := sentiment.New(0, b, nil, logger)

	set.agents = append(set.agents, solMonitor, ethMonitor, set.detector, analyzer, mirror)

	if mode == ModeTrade || mode == ModeFull {
		set.executor = executor.New(executor.Config{
			TradeSizeUSD:    cfg.Trading.TradeSizeUSD,
			MaxTradeSizeUSD: cfg.Trading.MaxTradeSizeUSD,
			MinNetMarginPct: cfg.Trading.MinNetMarginPct,
			MinBalance:      cfg.Trading.MinBalance,
			AutoExecute:     cfg.Trading.AutoExecute,
			MaxSlippagePct:  cfg.Trading.MaxSlippagePct,
			BalanceInterval: cfg.Monitoring.BalanceInterval.Duration,
			Pair:            cfg.Binance.Pair,
		}, b, deps.Solana, deps.Binance, deps.TradeStore, nil, logger)
		set.agents = append(set.agents, set.executor)

		if deps.Notifier.HasSenders() {
			set.agents = append(set.agents, notify.NewRelay(deps.Notifier, b, logger))
		}
	}

	if mode == ModeFull {
		if deps.BlobWriter == nil || deps.TradeStore == nil {
			return nil, fmt.Errorf("app: full mode requires postgres and s3 to be enabled")
		}
		archiver := s3blob.NewArchiver(s3blob.ArchiverConfig{
			Interval: cfg.S3.ArchiveInterval.Duration,
		}, deps.BlobWriter, deps.TradeStore, b, nil, logger)
		set.agents = append(set.agents, archiver)
	}

	return set, nil
}
