package executor

import (
	"context"
	"fmt"

	"github.com/alanyoungcy/chainarb/internal/domain"
)

// estimateGas prices both legs through their venues. Estimates are computed
// fresh for every attempt; fee markets drift too fast to cache.
func (e *TradeExecutor) estimateGas(ctx context.Context, opp domain.Opportunity, sizeUSD float64) (domain.GasEstimate, error) {
	buy, err := e.legCost(ctx, opp.BuyChain, sizeUSD)
	if err != nil {
		return domain.GasEstimate{}, fmt.Errorf("buy leg (%s): %w", opp.BuyChain, err)
	}
	sell, err := e.legCost(ctx, opp.SellChain, sizeUSD)
	if err != nil {
		return domain.GasEstimate{}, fmt.Errorf("sell leg (%s): %w", opp.SellChain, err)
	}
	return domain.GasEstimate{
		Buy:      buy,
		Sell:     sell,
		TotalUSD: buy.USDFee + sell.USDFee,
	}, nil
}

// legCost routes the estimate to the venue owning the chain: the on-chain
// venue carries a native fee, the custodial venue charges only its taker fee.
func (e *TradeExecutor) legCost(ctx context.Context, chain domain.Chain, sizeUSD float64) (domain.LegCost, error) {
	if chain == domain.ChainSolana {
		return e.chain.EstimateFee(ctx)
	}
	return e.exchange.EstimateFee(ctx, sizeUSD)
}
