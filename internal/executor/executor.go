// Package executor implements the trade executor agent: the only component
// that moves funds. It consumes detected opportunities, applies the cost and
// balance gates, and runs the two legs in buy-then-sell order.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/chainarb/internal/bus"
	"github.com/alanyoungcy/chainarb/internal/domain"
)

const agentName = "TRADE_EXECUTOR"

// Config parameterises the executor's gates and sizing.
type Config struct {
	TradeSizeUSD    float64
	MaxTradeSizeUSD float64
	// MinNetMarginPct rejects trades whose net profit after costs is below
	// this share of gross profit.
	MinNetMarginPct float64
	// MinBalance is the floor for the on-chain wallet's native balance.
	MinBalance      float64
	AutoExecute     bool
	MaxSlippagePct  float64
	BalanceInterval time.Duration
	// Pair is the custodial exchange trading pair, e.g. "ETHUSDT".
	Pair string
	// BaseAsset/QuoteAsset name the traded and settlement assets on the
	// custodial venue.
	BaseAsset  string
	QuoteAsset string
}

// TradeExecutor implements domain.Agent. A single instance serialises all
// trading: the executing flag is an atomic compare-and-swap, and an
// opportunity arriving while a trade is in flight is discarded, never queued.
type TradeExecutor struct {
	cfg      Config
	bus      *bus.EventBus
	chain    domain.ChainTradeSource
	exchange domain.CustodialExchangeSource
	store    domain.TradeStore // optional
	clock    domain.Clock
	logger   *slog.Logger

	running   atomic.Bool
	executing atomic.Bool
	paused    atomic.Bool

	mu      sync.Mutex
	history []domain.TradeResult
	stats   domain.ExecutorStats
}

var _ domain.Agent = (*TradeExecutor)(nil)

// New creates a TradeExecutor. store may be nil; clock may be nil for the
// system clock.
func New(cfg Config, b *bus.EventBus, chain domain.ChainTradeSource, exchange domain.CustodialExchangeSource, store domain.TradeStore, clock domain.Clock, logger *slog.Logger) *TradeExecutor {
	if clock == nil {
		clock = domain.SystemClock
	}
	if cfg.BaseAsset == "" {
		cfg.BaseAsset = "ETH"
	}
	if cfg.QuoteAsset == "" {
		cfg.QuoteAsset = "USDT"
	}
	return &TradeExecutor{
		cfg:      cfg,
		bus:      b,
		chain:    chain,
		exchange: exchange,
		store:    store,
		clock:    clock,
		logger:   logger.With(slog.String("component", "trade_executor"), slog.String("agent", agentName)),
	}
}

// Name implements domain.Agent.
func (e *TradeExecutor) Name() string { return agentName }

// Running implements domain.Agent.
func (e *TradeExecutor) Running() bool { return e.running.Load() }

// Run consumes opportunities and publishes balances until ctx is cancelled.
func (e *TradeExecutor) Run(ctx context.Context) error {
	e.running.Store(true)
	defer e.running.Store(false)

	opps, cancel := e.bus.Subscribe(domain.TopicOpportunity)
	defer cancel()

	balanceInterval := e.cfg.BalanceInterval
	if balanceInterval <= 0 {
		balanceInterval = time.Minute
	}
	balanceTicker := time.NewTicker(balanceInterval)
	defer balanceTicker.Stop()

	e.logger.Info("trade executor started",
		slog.Bool("auto_execute", e.cfg.AutoExecute),
		slog.Float64("trade_size_usd", e.cfg.TradeSizeUSD),
	)

	e.publishBalances(ctx)

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("trade executor stopped")
			return ctx.Err()
		case ev, ok := <-opps:
			if !ok {
				return nil
			}
			od, isOpp := ev.(domain.OpportunityDetected)
			if !isOpp {
				continue
			}
			e.dispatch(ctx, od.Opportunity)
		case <-balanceTicker.C:
			e.publishBalances(ctx)
		}
	}
}

// dispatch applies the pause and single-flight gates, then runs the trade in
// its own goroutine so the event loop keeps discarding while a trade is in
// flight.
func (e *TradeExecutor) dispatch(ctx context.Context, opp domain.Opportunity) {
	if !e.cfg.AutoExecute {
		e.logger.Debug("auto execution disabled, opportunity surfaced only",
			slog.String("opportunity_id", opp.ID),
		)
		return
	}
	if e.paused.Load() {
		e.mu.Lock()
		e.stats.DiscardedPaused++
		e.mu.Unlock()
		e.logger.Info("paused, discarding opportunity", slog.String("opportunity_id", opp.ID))
		return
	}
	if !e.executing.CompareAndSwap(false, true) {
		e.mu.Lock()
		e.stats.DiscardedBusy++
		e.mu.Unlock()
		e.logger.Info("trade in flight, discarding opportunity", slog.String("opportunity_id", opp.ID))
		return
	}

	go func() {
		defer e.executing.Store(false)
		e.execute(ctx, opp, e.cfg.TradeSizeUSD, false, false)
	}()
}

// ManualTrade runs the full execution sequence for an operator-submitted
// opportunity with an explicit size. override skips only the net-margin gate
// and is logged; every other gate still applies. Manual trades are accepted
// even when auto execution is off.
func (e *TradeExecutor) ManualTrade(ctx context.Context, opp domain.Opportunity, sizeUSD float64, override bool) (domain.TradeResult, error) {
	if sizeUSD <= 0 || sizeUSD > e.cfg.MaxTradeSizeUSD {
		return domain.TradeResult{}, fmt.Errorf("executor: trade size %v outside (0, %v]", sizeUSD, e.cfg.MaxTradeSizeUSD)
	}
	if e.paused.Load() {
		e.mu.Lock()
		e.stats.DiscardedPaused++
		e.mu.Unlock()
		return domain.TradeResult{}, domain.ErrPaused
	}
	if !e.executing.CompareAndSwap(false, true) {
		e.mu.Lock()
		e.stats.DiscardedBusy++
		e.mu.Unlock()
		return domain.TradeResult{}, domain.ErrTradeInFlight
	}
	defer e.executing.Store(false)

	e.logger.Info("manual trade requested",
		slog.String("opportunity_id", opp.ID),
		slog.Float64("size_usd", sizeUSD),
		slog.Bool("override", override),
	)
	return e.execute(ctx, opp, sizeUSD, true, override), nil
}

// execute runs the gates and both legs. Every path ends in finish, so the
// result always reaches the history, the bus, and the store.
func (e *TradeExecutor) execute(ctx context.Context, opp domain.Opportunity, sizeUSD float64, manual, override bool) domain.TradeResult {
	started := e.clock.Now()
	result := domain.TradeResult{
		ID:            uuid.New().String(),
		OpportunityID: opp.ID,
		Manual:        manual,
		Override:      override,
		TradeSizeUSD:  sizeUSD,
		StartedAt:     started,
	}
	log := e.logger.With(
		slog.String("trade_id", result.ID),
		slog.String("opportunity_id", opp.ID),
	)

	gas, err := e.estimateGas(ctx, opp, sizeUSD)
	if err != nil {
		result.Error = fmt.Sprintf("fee estimation: %v", err)
		return e.finish(log, result)
	}
	result.Gas = gas

	gross := grossProfitUSD(opp, sizeUSD)
	if gas.TotalUSD >= gross {
		result.Error = fmt.Sprintf("execution cost %.4f USD exceeds gross profit %.4f USD", gas.TotalUSD, gross)
		return e.finish(log, result)
	}

	net := gross - gas.TotalUSD
	margin := net / gross * 100
	if margin < e.cfg.MinNetMarginPct {
		if !override {
			result.Error = fmt.Sprintf("net margin %.2f%% below minimum %.2f%%", margin, e.cfg.MinNetMarginPct)
			return e.finish(log, result)
		}
		log.Warn("margin gate overridden by operator",
			slog.Float64("net_margin_pct", margin),
			slog.Float64("min_net_margin_pct", e.cfg.MinNetMarginPct),
		)
	}

	if err := e.checkBuyBalance(ctx, opp, sizeUSD); err != nil {
		result.Error = err.Error()
		return e.finish(log, result)
	}

	buyFill, err := e.executeLeg(ctx, opp.BuyChain, domain.SideBuy, opp, sizeUSD, 0)
	if err != nil {
		result.Error = fmt.Sprintf("buy leg: %v", err)
		return e.finish(log, result)
	}
	result.BuyFill = buyFill

	tokenAmount := buyFill.AmountOut
	if tokenAmount <= 0 {
		tokenAmount = sizeUSD / opp.BuyPrice
	}
	sellFill, err := e.executeLeg(ctx, opp.SellChain, domain.SideSell, opp, sizeUSD, tokenAmount)
	if err != nil {
		// One-sided exposure: the bought position is still open.
		log.Error("sell leg failed after buy fill, position open",
			slog.String("buy_tx", buyFill.TxID),
			slog.String("error", err.Error()),
		)
		result.Error = fmt.Sprintf("sell leg: %v", err)
		return e.finish(log, result)
	}
	result.SellFill = sellFill

	result.Success = true
	result.NetProfitUSD = net
	return e.finish(log, result)
}

// executeLeg routes one leg to the venue that owns its chain: the on-chain
// venue swaps, the custodial venue places a market order.
func (e *TradeExecutor) executeLeg(ctx context.Context, chain domain.Chain, side domain.OrderSide, opp domain.Opportunity, sizeUSD, tokenAmount float64) (domain.Fill, error) {
	if chain == domain.ChainSolana {
		req := domain.SwapRequest{
			FromToken:      e.cfg.QuoteAsset,
			ToToken:        e.cfg.BaseAsset,
			Amount:         sizeUSD,
			MaxSlippageBps: int(e.cfg.MaxSlippagePct * 100),
		}
		if side == domain.SideSell {
			req.FromToken, req.ToToken = e.cfg.BaseAsset, e.cfg.QuoteAsset
			req.Amount = tokenAmount
		}
		return e.chain.ExecuteSwap(ctx, req)
	}

	quantity := tokenAmount
	if side == domain.SideBuy {
		quantity = sizeUSD / opp.BuyPrice
	}
	return e.exchange.PlaceMarketOrder(ctx, e.cfg.Pair, side, quantity)
}

// checkBuyBalance verifies the buy-side venue can fund the trade. Balance
// shortfalls are hard failures, never retried.
func (e *TradeExecutor) checkBuyBalance(ctx context.Context, opp domain.Opportunity, sizeUSD float64) error {
	if opp.BuyChain == domain.ChainSolana {
		balance, err := e.chain.Balance(ctx)
		if err != nil {
			return fmt.Errorf("balance check: %w", err)
		}
		if balance < e.cfg.MinBalance {
			return fmt.Errorf("balance check: %w: native balance %v below minimum %v", domain.ErrInsufficientBalance, balance, e.cfg.MinBalance)
		}
		return nil
	}

	balance, err := e.exchange.AccountBalance(ctx, e.cfg.QuoteAsset)
	if err != nil {
		return fmt.Errorf("balance check: %w", err)
	}
	if balance < sizeUSD {
		return fmt.Errorf("balance check: %w: %s balance %v below trade size %v", domain.ErrInsufficientBalance, e.cfg.QuoteAsset, balance, sizeUSD)
	}
	return nil
}

// finish seals the result, updates counters, appends history, persists when a
// store is configured, and publishes trade:complete.
func (e *TradeExecutor) finish(log *slog.Logger, result domain.TradeResult) domain.TradeResult {
	result.ExecutionTime = e.clock.Now().Sub(result.StartedAt)

	e.mu.Lock()
	e.stats.TotalTrades++
	if result.Success {
		e.stats.SuccessfulTrades++
		e.stats.TotalNetProfit += result.NetProfitUSD
	} else {
		e.stats.FailedTrades++
	}
	e.history = append(e.history, result)
	e.mu.Unlock()

	if result.Success {
		log.Info("trade complete",
			slog.Float64("net_profit_usd", result.NetProfitUSD),
			slog.Duration("execution_time", result.ExecutionTime),
		)
	} else {
		log.Warn("trade failed", slog.String("error", result.Error))
	}

	if e.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := e.store.Insert(ctx, result); err != nil {
			log.Warn("trade store insert failed", slog.String("error", err.Error()))
		}
		cancel()
	}

	e.bus.Publish(domain.TradeComplete{Result: result, Source: agentName})
	return result
}

// Pause stops accepting new opportunities. It never cancels an in-flight
// trade and is idempotent.
func (e *TradeExecutor) Pause() {
	if e.paused.CompareAndSwap(false, true) {
		e.logger.Warn("trading paused")
	}
}

// Resume re-enables opportunity acceptance. Idempotent.
func (e *TradeExecutor) Resume() {
	if e.paused.CompareAndSwap(true, false) {
		e.logger.Info("trading resumed")
	}
}

// Paused reports the pause flag.
func (e *TradeExecutor) Paused() bool { return e.paused.Load() }

// Stats returns a snapshot of the executor counters.
func (e *TradeExecutor) Stats() domain.ExecutorStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	stats := e.stats
	stats.Paused = e.paused.Load()
	return stats
}

// History returns a copy of the trade history, oldest first.
func (e *TradeExecutor) History() []domain.TradeResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]domain.TradeResult, len(e.history))
	copy(out, e.history)
	return out
}

// publishBalances queries both venues and publishes whatever it could get.
// Partial results are fine; failures are logged and the loop moves on.
func (e *TradeExecutor) publishBalances(ctx context.Context) {
	balances := make(map[string]float64)

	if native, err := e.chain.Balance(ctx); err != nil {
		e.logger.Warn("chain balance query failed", slog.String("error", err.Error()))
	} else {
		balances["solana:SOL"] = native
	}
	if base, err := e.exchange.AccountBalance(ctx, e.cfg.BaseAsset); err != nil {
		e.logger.Warn("exchange balance query failed",
			slog.String("asset", e.cfg.BaseAsset),
			slog.String("error", err.Error()),
		)
	} else {
		balances["binance:"+e.cfg.BaseAsset] = base
	}
	if quote, err := e.exchange.AccountBalance(ctx, e.cfg.QuoteAsset); err != nil {
		e.logger.Warn("exchange balance query failed",
			slog.String("asset", e.cfg.QuoteAsset),
			slog.String("error", err.Error()),
		)
	} else {
		balances["binance:"+e.cfg.QuoteAsset] = quote
	}

	if len(balances) == 0 {
		return
	}
	e.bus.Publish(domain.BalanceUpdate{
		Balances: balances,
		At:       e.clock.Now(),
		Source:   agentName,
	})
}

// grossProfitUSD recomputes the gross for the actual trade size, which may
// differ from the detector's configured notional on manual trades.
func grossProfitUSD(opp domain.Opportunity, sizeUSD float64) float64 {
	if opp.BuyPrice <= 0 {
		return 0
	}
	return (opp.SellPrice - opp.BuyPrice) * (sizeUSD / opp.BuyPrice)
}
