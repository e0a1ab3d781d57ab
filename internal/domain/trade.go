package domain

import "time"

// LegCost is the estimated execution cost of one leg of a trade.
type LegCost struct {
	Chain     Chain
	NativeFee float64 // fee in the chain's native unit (SOL, ETH); 0 for custodial legs
	USDFee    float64
}

// GasEstimate is the combined cost estimate for both legs of a trade. It is
// computed fresh for every attempt and never cached: fees drift.
type GasEstimate struct {
	Buy      LegCost
	Sell     LegCost
	TotalUSD float64
}

// Fill is the outcome of one executed leg.
type Fill struct {
	Venue     string
	TxID      string // transaction signature or exchange order ID
	Amount    float64
	AmountOut float64
	DryRun    bool
}

// TradeResult records one complete trade attempt, success or failure. Results
// are appended to an in-memory, append-only history; they are never mutated
// or deleted.
type TradeResult struct {
	ID            string
	OpportunityID string
	Success       bool
	Manual        bool
	Override      bool
	BuyFill       Fill
	SellFill      Fill
	Gas           GasEstimate
	TradeSizeUSD  float64
	NetProfitUSD  float64
	Error         string
	StartedAt     time.Time
	ExecutionTime time.Duration
}

// ExecutorStats summarises executor activity for the operator surface.
type ExecutorStats struct {
	TotalTrades      int64
	SuccessfulTrades int64
	FailedTrades     int64
	DiscardedBusy    int64
	DiscardedPaused  int64
	TotalNetProfit   float64
	Paused           bool
}

// OrderSide is the direction of a custodial exchange order.
type OrderSide string

const (
	SideBuy  OrderSide = "BUY"
	SideSell OrderSide = "SELL"
)
