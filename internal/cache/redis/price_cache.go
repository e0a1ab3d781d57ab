package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/chainarb/internal/domain"
)

// priceTTL caps how long a cached quote survives; consumers still apply their
// own staleness rules on sourced_at.
const priceTTL = 5 * time.Minute

// PriceCache implements domain.PriceCache using Redis hashes. The latest
// quote per chain lives at "price:{chain}" with fields for price, venue,
// proxy flag, and the sourced_at timestamp in Unix nanoseconds.
type PriceCache struct {
	rdb *redis.Client
}

// NewPriceCache creates a PriceCache backed by the given Client.
func NewPriceCache(c *Client) *PriceCache {
	return &PriceCache{rdb: c.Underlying()}
}

func priceKey(chain domain.Chain) string {
	return "price:" + string(chain)
}

// SetQuote stores the latest quote for the quote's chain.
func (pc *PriceCache) SetQuote(ctx context.Context, quote domain.PriceQuote) error {
	key := priceKey(quote.Chain)
	fields := map[string]interface{}{
		"price":      strconv.FormatFloat(quote.Price, 'f', -1, 64),
		"venue":      quote.Venue,
		"proxy":      strconv.FormatBool(quote.Proxy),
		"sourced_at": strconv.FormatInt(quote.SourcedAt.UnixNano(), 10),
	}

	pipe := pc.rdb.TxPipeline()
	pipe.HSet(ctx, key, fields)
	pipe.Expire(ctx, key, priceTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set quote %s: %w", quote.Chain, err)
	}
	return nil
}

// GetQuote retrieves the latest quote for a chain. It returns
// domain.ErrNotFound when no quote has been cached.
func (pc *PriceCache) GetQuote(ctx context.Context, chain domain.Chain) (domain.PriceQuote, error) {
	vals, err := pc.rdb.HGetAll(ctx, priceKey(chain)).Result()
	if err != nil {
		return domain.PriceQuote{}, fmt.Errorf("redis: get quote %s: %w", chain, err)
	}
	if len(vals) == 0 {
		return domain.PriceQuote{}, domain.ErrNotFound
	}

	price, err := strconv.ParseFloat(vals["price"], 64)
	if err != nil {
		return domain.PriceQuote{}, fmt.Errorf("redis: parse price for %s: %w", chain, err)
	}
	tsNano, err := strconv.ParseInt(vals["sourced_at"], 10, 64)
	if err != nil {
		return domain.PriceQuote{}, fmt.Errorf("redis: parse sourced_at for %s: %w", chain, err)
	}

	return domain.PriceQuote{
		Price:     price,
		Chain:     chain,
		Venue:     vals["venue"],
		Proxy:     vals["proxy"] == "true",
		SourcedAt: time.Unix(0, tsNano),
	}, nil
}

// Compile-time interface check.
var _ domain.PriceCache = (*PriceCache)(nil)
