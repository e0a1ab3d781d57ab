package handler

import (
	"context"
	"net/http"

	"github.com/alanyoungcy/chainarb/internal/domain"
)

// FeeEstimator prices one swap on the Ethereum side at the given ETH/USD
// rate.
type FeeEstimator interface {
	EstimateFee(ctx context.Context, ethUSD float64) (domain.LegCost, error)
}

// GasHandler serves the current Ethereum gas cost estimate so operators can
// sanity-check the executor's cost gate against live fee markets.
type GasHandler struct {
	estimator FeeEstimator
	detector  DetectorStatsSource // supplies the ETH/USD reference price
}

// NewGasHandler creates a GasHandler.
func NewGasHandler(estimator FeeEstimator, detector DetectorStatsSource) *GasHandler {
	return &GasHandler{estimator: estimator, detector: detector}
}

// GetGas responds with the estimated cost of one swap at current gas prices.
// Returns 503 until a reference price exists, 502 when the RPC node fails.
// GET /api/gas
func (h *GasHandler) GetGas(w http.ResponseWriter, r *http.Request) {
	spread, ok := h.detector.Spread()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "waiting for price data from both chains")
		return
	}

	cost, err := h.estimator.EstimateFee(r.Context(), spread.EthereumPrice)
	if err != nil {
		writeError(w, http.StatusBadGateway, "gas estimate failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"chain":      string(cost.Chain),
		"native_fee": cost.NativeFee,
		"usd_fee":    cost.USDFee,
		"eth_usd":    spread.EthereumPrice,
	})
}
