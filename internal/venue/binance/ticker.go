package binance

import (
	"context"

	"github.com/alanyoungcy/chainarb/internal/domain"
)

// Ticker adapts the public ticker endpoint to domain.PriceSource. Quotes are
// marked Proxy: the exchange prices a correlated reference pair, not the
// monitored venue itself.
type Ticker struct {
	client *Client
	pair   string
	chain  domain.Chain
}

var _ domain.PriceSource = (*Ticker)(nil)

// NewTicker creates a fallback price source for pair attributed to chain.
func NewTicker(client *Client, pair string, chain domain.Chain) *Ticker {
	return &Ticker{client: client, pair: pair, chain: chain}
}

// Name implements domain.PriceSource.
func (t *Ticker) Name() string { return "binance" }

// Quote implements domain.PriceSource.
func (t *Ticker) Quote(ctx context.Context) (domain.PriceQuote, error) {
	price, err := t.client.Price(ctx, t.pair)
	if err != nil {
		return domain.PriceQuote{}, err
	}
	return domain.PriceQuote{
		Price: price,
		Chain: t.chain,
		Venue: "binance",
		Proxy: true,
		Metadata: map[string]string{
			"pair": t.pair,
		},
	}, nil
}
