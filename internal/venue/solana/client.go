// Package solana implements the on-chain venue: wallet balance and
// transaction submission over JSON-RPC, spot pricing and swaps through the
// Jupiter aggregator.
package solana

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/alanyoungcy/chainarb/internal/domain"
)

const (
	lamportsPerSOL = 1e9
	// baseFeeLamports is the flat per-signature fee.
	baseFeeLamports = 5000
	solMint         = "So11111111111111111111111111111111111111112"
)

// Config holds the venue parameters.
type Config struct {
	RpcURL        string
	JupiterURL    string
	WalletAddress string
	// PrivateKey signs swap transactions; nil is fine for monitor-only and
	// dry-run operation.
	PrivateKey ed25519.PrivateKey
	TokenMint  string
	QuoteMint  string
	// BaseSymbol/QuoteSymbol are the names the trade pipeline uses for the
	// two mints.
	BaseSymbol          string
	QuoteSymbol         string
	TokenDecimals       int
	QuoteDecimals       int
	PriorityFeeLamports int64
	DryRun              bool
}

// Client implements domain.PriceSource and domain.ChainTradeSource.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

var (
	_ domain.PriceSource      = (*Client)(nil)
	_ domain.ChainTradeSource = (*Client)(nil)
)

// New creates a Client.
func New(cfg Config) *Client {
	if cfg.TokenDecimals == 0 {
		cfg.TokenDecimals = 8
	}
	if cfg.QuoteDecimals == 0 {
		cfg.QuoteDecimals = 6
	}
	if cfg.BaseSymbol == "" {
		cfg.BaseSymbol = "ETH"
	}
	if cfg.QuoteSymbol == "" {
		cfg.QuoteSymbol = "USDT"
	}
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 20 * time.Second,
		},
	}
}

// Balance implements domain.ChainTradeSource: the wallet's SOL balance.
func (c *Client) Balance(ctx context.Context) (float64, error) {
	var result struct {
		Value int64 `json:"value"`
	}
	if err := c.rpcCall(ctx, "getBalance", []any{c.cfg.WalletAddress}, &result); err != nil {
		return 0, fmt.Errorf("solana: get balance: %w", err)
	}
	return float64(result.Value) / lamportsPerSOL, nil
}

// EstimateFee implements domain.ChainTradeSource: base fee plus the
// configured priority fee, priced through the current SOL/USD quote.
func (c *Client) EstimateFee(ctx context.Context) (domain.LegCost, error) {
	lamports := int64(baseFeeLamports) + c.cfg.PriorityFeeLamports
	feeSOL := float64(lamports) / lamportsPerSOL

	solUSD, err := c.solPriceUSD(ctx)
	if err != nil {
		return domain.LegCost{}, fmt.Errorf("solana: price SOL for fee estimate: %w", err)
	}
	return domain.LegCost{
		Chain:     domain.ChainSolana,
		NativeFee: feeSOL,
		USDFee:    feeSOL * solUSD,
	}, nil
}

// solPriceUSD prices one SOL in the quote token through Jupiter.
func (c *Client) solPriceUSD(ctx context.Context) (float64, error) {
	quote, err := c.jupiterQuote(ctx, solMint, c.cfg.QuoteMint, lamportsPerSOL, 50)
	if err != nil {
		return 0, err
	}
	return float64(quote.outAmount) / math.Pow10(c.cfg.QuoteDecimals), nil
}

// rpcCall performs one JSON-RPC 2.0 call against the configured node.
func (c *Client) rpcCall(ctx context.Context, method string, params []any, result any) error {
	reqBody, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  method,
		"params":  params,
	})
	if err != nil {
		return fmt.Errorf("marshal rpc request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.RpcURL, bytes.NewReader(reqBody))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: HTTP 429", domain.ErrRateLimited)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}

	var envelope struct {
		Result json.RawMessage `json:"result"`
		Error  *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("decode rpc response: %w", err)
	}
	if envelope.Error != nil {
		return fmt.Errorf("rpc error %d: %s", envelope.Error.Code, envelope.Error.Message)
	}
	if result == nil {
		return nil
	}
	if err := json.Unmarshal(envelope.Result, result); err != nil {
		return fmt.Errorf("decode rpc result: %w", err)
	}
	return nil
}
