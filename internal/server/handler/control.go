package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/chainarb/internal/domain"
	"github.com/alanyoungcy/chainarb/internal/notify"
)

// TradeController is the executor surface the control endpoints drive.
type TradeController interface {
	Pause()
	Resume()
	Paused() bool
	ManualTrade(ctx context.Context, opp domain.Opportunity, sizeUSD float64, override bool) (domain.TradeResult, error)
}

// OpportunityBuilder supplies an opportunity from the latest snapshots for
// manual trades.
type OpportunityBuilder interface {
	CurrentOpportunity(sizeUSD float64) (domain.Opportunity, bool)
}

// ControlHandler serves the pause/resume/manual-trade endpoints.
type ControlHandler struct {
	executor TradeController
	detector OpportunityBuilder
	notifier *notify.Notifier // nil disables pause alerts
	logger   *slog.Logger
}

// NewControlHandler creates a ControlHandler. notifier may be nil.
func NewControlHandler(executor TradeController, detector OpportunityBuilder, notifier *notify.Notifier, logger *slog.Logger) *ControlHandler {
	return &ControlHandler{
		executor: executor,
		detector: detector,
		notifier: notifier,
		logger:   logger.With("handler", "control"),
	}
}

// Pause stops new trades from being dispatched. In-flight trades finish.
// POST /api/pause
func (h *ControlHandler) Pause(w http.ResponseWriter, r *http.Request) {
	h.executor.Pause()
	h.alert(r.Context(), notify.EventPaused, "Trading paused", "Paused by operator")
	writeJSON(w, http.StatusOK, map[string]any{"paused": true})
}

// Resume re-enables trade dispatch.
// POST /api/resume
func (h *ControlHandler) Resume(w http.ResponseWriter, r *http.Request) {
	h.executor.Resume()
	h.alert(r.Context(), notify.EventPaused, "Trading resumed", "Resumed by operator")
	writeJSON(w, http.StatusOK, map[string]any{"paused": false})
}

// manualTradeRequest is the POST /api/trade body.
type manualTradeRequest struct {
	SizeUSD  float64 `json:"size_usd"`
	Override bool    `json:"override"`
}

// ManualTrade executes one trade at the current prices, synchronously.
// Override skips the margin gate only; every other gate still applies.
// POST /api/trade
func (h *ControlHandler) ManualTrade(w http.ResponseWriter, r *http.Request) {
	var req manualTradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	opp, ok := h.detector.CurrentOpportunity(req.SizeUSD)
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "waiting for price data from both chains")
		return
	}

	// CurrentOpportunity resolves a zero size to the configured notional.
	sizeUSD := opp.TradeSizeUSD

	h.logger.Info("manual trade requested",
		"size_usd", sizeUSD,
		"override", req.Override,
		"opportunity_id", opp.ID,
	)

	result, err := h.executor.ManualTrade(r.Context(), opp, sizeUSD, req.Override)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrPaused), errors.Is(err, domain.ErrTradeInFlight):
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeError(w, http.StatusBadRequest, err.Error())
		}
		return
	}

	status := http.StatusOK
	if !result.Success {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, result)
}

func (h *ControlHandler) alert(ctx context.Context, event, title, message string) {
	if h.notifier == nil {
		return
	}
	if err := h.notifier.Notify(ctx, event, title, message); err != nil {
		h.logger.Warn("notification dropped", "event", event, "error", err)
	}
}
