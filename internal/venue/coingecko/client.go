// Package coingecko implements a price source backed by the CoinGecko simple
// price endpoint. It is a public, unauthenticated API and is used only as a
// fallback, behind the shared rate limiter.
package coingecko

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/alanyoungcy/chainarb/internal/domain"
)

const defaultBaseURL = "https://api.coingecko.com/api/v3"

// Client queries CoinGecko for a single coin's USD price.
type Client struct {
	baseURL    string
	coinID     string // CoinGecko coin id, e.g. "ethereum"
	chain      domain.Chain
	httpClient *http.Client
}

var _ domain.PriceSource = (*Client)(nil)

// New creates a CoinGecko price source for coinID attributed to chain.
// baseURL may be empty for the public API.
func New(baseURL, coinID string, chain domain.Chain) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		coinID:  coinID,
		chain:   chain,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Name implements domain.PriceSource.
func (c *Client) Name() string { return "coingecko" }

// Quote implements domain.PriceSource.
func (c *Client) Quote(ctx context.Context) (domain.PriceQuote, error) {
	endpoint := fmt.Sprintf("%s/simple/price?ids=%s&vs_currencies=usd",
		c.baseURL, url.QueryEscape(c.coinID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return domain.PriceQuote{}, fmt.Errorf("coingecko: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.PriceQuote{}, fmt.Errorf("coingecko: http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return domain.PriceQuote{}, fmt.Errorf("coingecko: read response: %w", err)
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return domain.PriceQuote{}, fmt.Errorf("coingecko: %w: HTTP 429", domain.ErrRateLimited)
	}
	if resp.StatusCode != http.StatusOK {
		return domain.PriceQuote{}, fmt.Errorf("coingecko: HTTP %d: %s", resp.StatusCode, string(body))
	}

	var payload map[string]struct {
		USD float64 `json:"usd"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return domain.PriceQuote{}, fmt.Errorf("coingecko: decode response: %w", err)
	}

	entry, found := payload[c.coinID]
	if !found {
		return domain.PriceQuote{}, fmt.Errorf("coingecko: %w: no entry for %q", domain.ErrNoPrice, c.coinID)
	}
	return domain.PriceQuote{
		Price: entry.USD,
		Chain: c.chain,
		Venue: "coingecko",
	}, nil
}
