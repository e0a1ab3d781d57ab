// Package detector implements the arbitrage detector agent. It consumes
// price updates, keeps the latest snapshot per chain, and evaluates the pair
// for a profitable spread on every update.
package detector

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/chainarb/internal/bus"
	"github.com/alanyoungcy/chainarb/internal/domain"
)

const agentName = "ARBITRAGE_DETECTOR"

// Config parameterises the detector's gates.
type Config struct {
	MinProfitPct    float64
	TradeSizeUSD    float64
	MaxTradeSizeUSD float64
	StaleThreshold  time.Duration
	PriceMin        float64
	PriceMax        float64
}

// Detector implements domain.Agent.
type Detector struct {
	cfg    Config
	bus    *bus.EventBus
	clock  domain.Clock
	logger *slog.Logger

	running atomic.Bool

	mu        sync.Mutex
	snapshots map[domain.Chain]domain.PriceQuote
	stats     domain.DetectorStats
}

var _ domain.Agent = (*Detector)(nil)

// New creates a Detector. clock may be nil for the system clock.
func New(cfg Config, b *bus.EventBus, clock domain.Clock, logger *slog.Logger) *Detector {
	if clock == nil {
		clock = domain.SystemClock
	}
	return &Detector{
		cfg:       cfg,
		bus:       b,
		clock:     clock,
		logger:    logger.With(slog.String("component", "arbitrage_detector"), slog.String("agent", agentName)),
		snapshots: make(map[domain.Chain]domain.PriceQuote),
	}
}

// Name implements domain.Agent.
func (d *Detector) Name() string { return agentName }

// Running implements domain.Agent.
func (d *Detector) Running() bool { return d.running.Load() }

// Run consumes price updates until ctx is cancelled.
func (d *Detector) Run(ctx context.Context) error {
	d.running.Store(true)
	defer d.running.Store(false)

	updates, cancel := d.bus.Subscribe(domain.TopicPriceUpdate)
	defer cancel()

	d.logger.Info("arbitrage detector started",
		slog.Float64("min_profit_pct", d.cfg.MinProfitPct),
		slog.Duration("stale_threshold", d.cfg.StaleThreshold),
	)

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("arbitrage detector stopped")
			return ctx.Err()
		case ev, ok := <-updates:
			if !ok {
				return nil
			}
			pu, isPrice := ev.(domain.PriceUpdate)
			if !isPrice {
				continue
			}
			d.handle(pu)
		}
	}
}

// handle stores the snapshot and evaluates. The snapshot write happens before
// evaluation so a failed evaluation never loses data, and any panic inside
// the evaluation is reported as a non-critical agent error instead of taking
// the agent down.
func (d *Detector) handle(pu domain.PriceUpdate) {
	d.mu.Lock()
	d.snapshots[pu.Quote.Chain] = pu.Quote
	d.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("evaluation panicked", slog.Any("panic", r))
			d.bus.Publish(domain.AgentError{
				Agent:    agentName,
				Err:      fmt.Sprintf("evaluation panic: %v", r),
				Context:  "evaluate",
				Critical: false,
				At:       d.clock.Now(),
			})
		}
	}()

	d.evaluate()
}

func (d *Detector) evaluate() {
	d.mu.Lock()
	sol, haveSol := d.snapshots[domain.ChainSolana]
	eth, haveEth := d.snapshots[domain.ChainEthereum]
	d.mu.Unlock()

	if !haveSol || !haveEth {
		return
	}

	now := d.clock.Now()
	if stale, chain := d.staleChain(sol, eth, now); stale {
		d.skip(domain.Opportunity{BuyPrice: sol.Price, SellPrice: eth.Price},
			[]string{"stale data"}, chain, now)
		return
	}

	opp := buildOpportunity(sol, eth, d.cfg.TradeSizeUSD, now)

	if reasons := d.validate(opp); len(reasons) > 0 {
		d.skip(opp, reasons, "", now)
		return
	}

	d.mu.Lock()
	d.stats.OpportunityCount++
	d.stats.LastOpportunityAt = now
	d.mu.Unlock()

	d.logger.Info("arbitrage opportunity detected",
		slog.String("id", opp.ID),
		slog.String("buy_chain", string(opp.BuyChain)),
		slog.String("sell_chain", string(opp.SellChain)),
		slog.Float64("buy_price", opp.BuyPrice),
		slog.Float64("sell_price", opp.SellPrice),
		slog.Float64("profit_pct", opp.ProfitPct),
		slog.Float64("gross_profit_usd", opp.GrossProfitUSD),
	)
	d.bus.Publish(domain.OpportunityDetected{Opportunity: opp, Source: agentName})
}

// staleChain reports whether either snapshot exceeds the staleness threshold
// and names the first stale chain found.
func (d *Detector) staleChain(sol, eth domain.PriceQuote, now time.Time) (bool, domain.Chain) {
	if sol.Age(now) > d.cfg.StaleThreshold {
		return true, domain.ChainSolana
	}
	if eth.Age(now) > d.cfg.StaleThreshold {
		return true, domain.ChainEthereum
	}
	return false, ""
}

func (d *Detector) skip(opp domain.Opportunity, reasons []string, staleChain domain.Chain, now time.Time) {
	d.mu.Lock()
	d.stats.SkippedCount++
	d.mu.Unlock()

	d.logger.Debug("opportunity skipped",
		slog.Any("reasons", reasons),
		slog.String("stale_chain", string(staleChain)),
	)
	d.bus.Publish(domain.OpportunitySkipped{
		Opportunity: opp,
		Reasons:     reasons,
		StaleChain:  staleChain,
		Source:      agentName,
		At:          now,
	})
}

// Spread returns the current price gap between the two chains for the
// operator surface. The bool is false until both snapshots exist.
func (d *Detector) Spread() (domain.Spread, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	sol, haveSol := d.snapshots[domain.ChainSolana]
	eth, haveEth := d.snapshots[domain.ChainEthereum]
	if !haveSol || !haveEth {
		return domain.Spread{}, false
	}
	lower := math.Min(sol.Price, eth.Price)
	spread := domain.Spread{
		SolanaPrice:   sol.Price,
		EthereumPrice: eth.Price,
		PriceDiff:     math.Abs(sol.Price - eth.Price),
	}
	if lower > 0 {
		spread.SpreadPct = spread.PriceDiff / lower * 100
	}
	return spread, true
}

// CurrentOpportunity builds an opportunity from the latest snapshots for the
// manual trade path. It applies no profitability or staleness gates; those
// belong to the executor and the operator's judgement. The bool is false
// until both snapshots exist.
func (d *Detector) CurrentOpportunity(sizeUSD float64) (domain.Opportunity, bool) {
	d.mu.Lock()
	sol, haveSol := d.snapshots[domain.ChainSolana]
	eth, haveEth := d.snapshots[domain.ChainEthereum]
	d.mu.Unlock()

	if !haveSol || !haveEth {
		return domain.Opportunity{}, false
	}
	if sizeUSD <= 0 {
		sizeUSD = d.cfg.TradeSizeUSD
	}
	return buildOpportunity(sol, eth, sizeUSD, d.clock.Now()), true
}

// buildOpportunity assembles an Opportunity with the lower-priced chain on
// the buy side.
func buildOpportunity(sol, eth domain.PriceQuote, sizeUSD float64, now time.Time) domain.Opportunity {
	buy, sell := sol, eth
	if eth.Price < sol.Price {
		buy, sell = eth, sol
	}

	priceDiff := math.Abs(sol.Price - eth.Price)
	profitPct := 0.0
	grossProfit := 0.0
	if buy.Price > 0 {
		profitPct = priceDiff / buy.Price * 100
		grossProfit = (sell.Price - buy.Price) * (sizeUSD / buy.Price)
	}

	return domain.Opportunity{
		ID:             uuid.New().String(),
		BuyChain:       buy.Chain,
		SellChain:      sell.Chain,
		BuyVenue:       buy.Venue,
		SellVenue:      sell.Venue,
		BuyPrice:       buy.Price,
		SellPrice:      sell.Price,
		ProfitPct:      profitPct,
		PriceDiff:      priceDiff,
		TradeSizeUSD:   sizeUSD,
		GrossProfitUSD: grossProfit,
		DetectedAt:     now,
	}
}

// Stats returns a snapshot of the detector counters.
func (d *Detector) Stats() domain.DetectorStats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}
