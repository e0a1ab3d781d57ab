package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/alanyoungcy/chainarb/internal/domain"
)

// PriceReader exposes the latest cached quote per chain.
type PriceReader interface {
	GetQuote(ctx context.Context, chain domain.Chain) (domain.PriceQuote, error)
}

// PricesHandler serves the last cached quote for each monitored chain. The
// cache survives a brief monitor outage, so a chain may be listed here while
// the spread endpoint still reports 503.
type PricesHandler struct {
	cache PriceReader
}

// NewPricesHandler creates a PricesHandler.
func NewPricesHandler(cache PriceReader) *PricesHandler {
	return &PricesHandler{cache: cache}
}

// GetPrices responds with the cached quote per chain; chains without a
// cached quote are omitted.
// GET /api/prices
func (h *PricesHandler) GetPrices(w http.ResponseWriter, r *http.Request) {
	prices := map[string]any{}

	for _, chain := range []domain.Chain{domain.ChainSolana, domain.ChainEthereum} {
		quote, err := h.cache.GetQuote(r.Context(), chain)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "reading price cache failed")
			return
		}
		prices[string(chain)] = map[string]any{
			"price":      quote.Price,
			"venue":      quote.Venue,
			"proxy":      quote.Proxy,
			"sourced_at": quote.SourcedAt,
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{"prices": prices})
}
