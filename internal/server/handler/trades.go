package handler

import (
	"net/http"

	"github.com/alanyoungcy/chainarb/internal/domain"
)

// TradeHistory exposes the executor's in-memory trade history.
type TradeHistory interface {
	History() []domain.TradeResult
}

// TradesHandler serves completed trades. When a durable store is configured
// it is preferred over the in-memory history, which only covers the current
// process lifetime.
type TradesHandler struct {
	history TradeHistory
	store   domain.TradeStore // nil without postgres
}

// NewTradesHandler creates a TradesHandler. store may be nil.
func NewTradesHandler(history TradeHistory, store domain.TradeStore) *TradesHandler {
	return &TradesHandler{history: history, store: store}
}

// ListTrades responds with the most recent trades, newest first.
// GET /api/trades?limit=50
func (h *TradesHandler) ListTrades(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r)

	if h.store != nil {
		trades, err := h.store.List(r.Context(), limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "querying trade store failed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"trades": trades, "source": "store"})
		return
	}

	var trades []domain.TradeResult
	if h.history != nil {
		trades = h.history.History()
	}
	// History is oldest first; serve newest first like the store does.
	if len(trades) > limit {
		trades = trades[len(trades)-limit:]
	}
	for i, j := 0, len(trades)-1; i < j; i, j = i+1, j-1 {
		trades[i], trades[j] = trades[j], trades[i]
	}

	writeJSON(w, http.StatusOK, map[string]any{"trades": trades, "source": "memory"})
}
