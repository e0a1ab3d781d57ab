package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/alanyoungcy/chainarb/internal/bus"
	"github.com/alanyoungcy/chainarb/internal/domain"
)

const relayName = "NOTIFIER"

// Event names accepted by the notify.events config filter.
const (
	EventOpportunity = "opportunity_detected"
	EventTradeOK     = "trade_complete"
	EventTradeFailed = "trade_failed"
	EventPaused      = "paused"
	EventAgentError  = "agent_error"
)

// Relay subscribes to the bus and forwards selected events to the Notifier.
// Delivery is best effort; a failed send is logged and dropped.
type Relay struct {
	notifier *Notifier
	bus      *bus.EventBus
	logger   *slog.Logger
	running  atomic.Bool
}

var _ domain.Agent = (*Relay)(nil)

// NewRelay creates a Relay bridging the bus to the notifier.
func NewRelay(notifier *Notifier, b *bus.EventBus, logger *slog.Logger) *Relay {
	return &Relay{
		notifier: notifier,
		bus:      b,
		logger:   logger.With("component", relayName),
	}
}

// Name implements domain.Agent.
func (r *Relay) Name() string { return relayName }

// Running implements domain.Agent.
func (r *Relay) Running() bool { return r.running.Load() }

// Run consumes opportunity, trade, and error events until cancelled.
func (r *Relay) Run(ctx context.Context) error {
	r.running.Store(true)
	defer r.running.Store(false)

	opps, cancelOpps := r.bus.Subscribe(domain.TopicOpportunity)
	defer cancelOpps()
	trades, cancelTrades := r.bus.Subscribe(domain.TopicTradeComplete)
	defer cancelTrades()
	errs, cancelErrs := r.bus.Subscribe(domain.TopicAgentError)
	defer cancelErrs()

	r.logger.Info("notification relay started")

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("notification relay stopped")
			return ctx.Err()
		case ev := <-opps:
			if e, ok := ev.(domain.OpportunityDetected); ok {
				r.notifyOpportunity(ctx, e.Opportunity)
			}
		case ev := <-trades:
			if e, ok := ev.(domain.TradeComplete); ok {
				r.notifyTrade(ctx, e.Result)
			}
		case ev := <-errs:
			if e, ok := ev.(domain.AgentError); ok {
				r.notifyAgentError(ctx, e)
			}
		}
	}
}

func (r *Relay) notifyOpportunity(ctx context.Context, opp domain.Opportunity) {
	msg := fmt.Sprintf("Buy %s @ %.4f, sell %s @ %.4f\nSpread %.2f%%, est. gross $%.2f on $%.0f",
		opp.BuyVenue, opp.BuyPrice, opp.SellVenue, opp.SellPrice,
		opp.ProfitPct, opp.GrossProfitUSD, opp.TradeSizeUSD)
	r.send(ctx, EventOpportunity, "Arbitrage opportunity", msg)
}

func (r *Relay) notifyTrade(ctx context.Context, res domain.TradeResult) {
	if res.Success {
		msg := fmt.Sprintf("Net profit $%.2f on $%.0f in %s\nBuy %s (%s), sell %s (%s)",
			res.NetProfitUSD, res.TradeSizeUSD, res.ExecutionTime,
			res.BuyFill.Venue, res.BuyFill.TxID, res.SellFill.Venue, res.SellFill.TxID)
		r.send(ctx, EventTradeOK, "Trade complete", msg)
		return
	}

	msg := fmt.Sprintf("Trade %s failed: %s", res.ID, res.Error)
	if res.BuyFill.TxID != "" && res.SellFill.TxID == "" {
		msg += "\nWARNING: buy leg filled, position open"
	}
	r.send(ctx, EventTradeFailed, "Trade failed", msg)
}

func (r *Relay) notifyAgentError(ctx context.Context, e domain.AgentError) {
	if !e.Critical {
		return
	}
	msg := fmt.Sprintf("%s: %s (%s)", e.Agent, e.Err, e.Context)
	r.send(ctx, EventAgentError, "Agent failure", msg)
}

func (r *Relay) send(ctx context.Context, event, title, message string) {
	if err := r.notifier.Notify(ctx, event, title, message); err != nil {
		r.logger.Warn("notification dropped", "event", event, "error", err)
	}
}
