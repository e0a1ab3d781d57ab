package handler

import (
	"net/http"

	"github.com/alanyoungcy/chainarb/internal/domain"
)

// DetectorStatsSource exposes the detector's counters and current spread.
type DetectorStatsSource interface {
	Stats() domain.DetectorStats
	Spread() (domain.Spread, bool)
}

// ExecutorStatsSource exposes the executor's counters.
type ExecutorStatsSource interface {
	Stats() domain.ExecutorStats
}

// StatsHandler serves combined detector and executor statistics.
type StatsHandler struct {
	detector DetectorStatsSource
	executor ExecutorStatsSource
}

// NewStatsHandler creates a StatsHandler. executor may be nil in monitor
// mode.
func NewStatsHandler(detector DetectorStatsSource, executor ExecutorStatsSource) *StatsHandler {
	return &StatsHandler{detector: detector, executor: executor}
}

// GetStats responds with detector and executor counters.
// GET /api/stats
func (h *StatsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	out := map[string]any{}

	if h.detector != nil {
		ds := h.detector.Stats()
		out["detector"] = map[string]any{
			"opportunities":       ds.OpportunityCount,
			"skipped":             ds.SkippedCount,
			"last_opportunity_at": ds.LastOpportunityAt,
		}
	}

	if h.executor != nil {
		es := h.executor.Stats()
		out["executor"] = map[string]any{
			"total_trades":      es.TotalTrades,
			"successful_trades": es.SuccessfulTrades,
			"failed_trades":     es.FailedTrades,
			"discarded_busy":    es.DiscardedBusy,
			"discarded_paused":  es.DiscardedPaused,
			"total_net_profit":  es.TotalNetProfit,
			"paused":            es.Paused,
		}
	}

	writeJSON(w, http.StatusOK, out)
}

// SpreadHandler serves the current cross-chain spread.
type SpreadHandler struct {
	detector DetectorStatsSource
}

// NewSpreadHandler creates a SpreadHandler.
func NewSpreadHandler(detector DetectorStatsSource) *SpreadHandler {
	return &SpreadHandler{detector: detector}
}

// GetSpread responds with the latest price gap between the two chains.
// Returns 503 until both monitors have produced a quote.
// GET /api/spread
func (h *SpreadHandler) GetSpread(w http.ResponseWriter, r *http.Request) {
	spread, ok := h.detector.Spread()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "waiting for price data from both chains")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"solana_price":   spread.SolanaPrice,
		"ethereum_price": spread.EthereumPrice,
		"price_diff":     spread.PriceDiff,
		"spread_pct":     spread.SpreadPct,
	})
}
