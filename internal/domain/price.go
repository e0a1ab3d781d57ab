// Package domain defines the core types, events, and capability interfaces
// shared by every agent in the arbitrage pipeline. It has no third-party
// dependencies; concrete implementations live in their own packages.
package domain

import "time"

// Chain identifies one of the two monitored venues' settlement chains.
type Chain string

const (
	ChainSolana   Chain = "solana"
	ChainEthereum Chain = "ethereum"
)

// MonitorRole determines how a monitor selects among simultaneously
// available quotes: the buy side wants the lowest price, the sell side the
// highest. Each monitor instance is statically one or the other.
type MonitorRole string

const (
	RoleBuy  MonitorRole = "buy"
	RoleSell MonitorRole = "sell"
)

// PriceQuote is one successful price observation from a venue source. A
// quote is immutable once created; the next observation supersedes it, it is
// never mutated in place.
type PriceQuote struct {
	Price     float64
	Chain     Chain
	Venue     string // source name: "jupiter", "uniswap_v3", "coingecko", "binance"
	SourcedAt time.Time
	// Proxy marks quotes from fallback sources that price a correlated
	// reference pair rather than the asset itself.
	Proxy    bool
	Metadata map[string]string
}

// Age returns how old the quote is relative to now.
func (q PriceQuote) Age(now time.Time) time.Duration {
	return now.Sub(q.SourcedAt)
}

// Spread is a point-in-time view of the price gap between the two chains,
// exposed to the operator surface.
type Spread struct {
	SolanaPrice   float64
	EthereumPrice float64
	PriceDiff     float64
	SpreadPct     float64
}
