package domain

import "time"

// Opportunity is a validated arbitrage opening between the two chains. It is
// built by the detector once both snapshots are fresh and is consumed
// read-only by the executor; a new observation produces a new Opportunity,
// never an update.
type Opportunity struct {
	ID             string
	BuyChain       Chain
	SellChain      Chain
	BuyVenue       string
	SellVenue      string
	BuyPrice       float64
	SellPrice      float64
	ProfitPct      float64
	PriceDiff      float64
	TradeSizeUSD   float64
	GrossProfitUSD float64
	DetectedAt     time.Time
}

// TokenAmount returns the quantity of the asset the configured notional
// buys at the buy-side price.
func (o Opportunity) TokenAmount() float64 {
	if o.BuyPrice <= 0 {
		return 0
	}
	return o.TradeSizeUSD / o.BuyPrice
}

// DetectorStats summarises detector activity for the operator surface.
type DetectorStats struct {
	OpportunityCount  int64
	SkippedCount      int64
	LastOpportunityAt time.Time
}
