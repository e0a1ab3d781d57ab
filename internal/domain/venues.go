package domain

import "context"

// PriceSource quotes the monitored asset from one venue. Implementations may
// fail with network or venue errors; callers own retry policy.
type PriceSource interface {
	// Name identifies the source in logs and quote metadata.
	Name() string
	Quote(ctx context.Context) (PriceQuote, error)
}

// SwapRequest describes one on-chain swap.
type SwapRequest struct {
	FromToken      string
	ToToken        string
	Amount         float64 // in FromToken units
	MaxSlippageBps int
}

// ChainTradeSource is the trading capability of an on-chain venue.
type ChainTradeSource interface {
	// Balance returns the wallet's native-token balance.
	Balance(ctx context.Context) (float64, error)
	// EstimateFee returns the cost of one swap on this chain.
	EstimateFee(ctx context.Context) (LegCost, error)
	// ExecuteSwap performs the swap and returns the fill.
	ExecuteSwap(ctx context.Context, req SwapRequest) (Fill, error)
}

// CustodialExchangeSource is the trading capability of a custodial exchange.
type CustodialExchangeSource interface {
	Price(ctx context.Context, pair string) (float64, error)
	AccountBalance(ctx context.Context, asset string) (float64, error)
	PlaceMarketOrder(ctx context.Context, pair string, side OrderSide, quantity float64) (Fill, error)
	// EstimateFee returns the venue fee for one market order; custodial
	// legs have no native gas component.
	EstimateFee(ctx context.Context, notionalUSD float64) (LegCost, error)
}
