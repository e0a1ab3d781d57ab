package solana

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"

	"github.com/alanyoungcy/chainarb/internal/domain"
)

// jupiterQuoteResult carries the decoded amounts plus the raw response, which
// the swap endpoint wants back verbatim.
type jupiterQuoteResult struct {
	inAmount  int64
	outAmount int64
	raw       json.RawMessage
}

// Name implements domain.PriceSource.
func (c *Client) Name() string { return "jupiter" }

// Quote implements domain.PriceSource: the price of one whole token in the
// quote currency, derived from a Jupiter route for one token.
func (c *Client) Quote(ctx context.Context) (domain.PriceQuote, error) {
	oneToken := int64(math.Pow10(c.cfg.TokenDecimals))
	quote, err := c.jupiterQuote(ctx, c.cfg.TokenMint, c.cfg.QuoteMint, oneToken, 50)
	if err != nil {
		return domain.PriceQuote{}, fmt.Errorf("solana: jupiter quote: %w", err)
	}

	price := float64(quote.outAmount) / math.Pow10(c.cfg.QuoteDecimals)
	return domain.PriceQuote{
		Price: price,
		Chain: domain.ChainSolana,
		Venue: "jupiter",
		Metadata: map[string]string{
			"input_mint":  c.cfg.TokenMint,
			"output_mint": c.cfg.QuoteMint,
		},
	}, nil
}

// ExecuteSwap implements domain.ChainTradeSource. Dry-run mode fetches the
// route but never submits a transaction.
func (c *Client) ExecuteSwap(ctx context.Context, req domain.SwapRequest) (domain.Fill, error) {
	inputMint, outputMint, rawAmount, outDecimals, err := c.resolveSwap(req)
	if err != nil {
		return domain.Fill{}, err
	}

	slippageBps := req.MaxSlippageBps
	if slippageBps <= 0 {
		slippageBps = 50
	}
	quote, err := c.jupiterQuote(ctx, inputMint, outputMint, rawAmount, slippageBps)
	if err != nil {
		return domain.Fill{}, fmt.Errorf("solana: swap quote: %w", err)
	}
	amountOut := float64(quote.outAmount) / math.Pow10(outDecimals)

	if c.cfg.DryRun {
		return domain.Fill{
			Venue:     "jupiter",
			TxID:      "dry-run",
			Amount:    req.Amount,
			AmountOut: amountOut,
			DryRun:    true,
		}, nil
	}
	if len(c.cfg.PrivateKey) == 0 {
		return domain.Fill{}, fmt.Errorf("solana: no signing key configured for live swap")
	}

	unsignedTx, err := c.jupiterSwapTransaction(ctx, quote.raw)
	if err != nil {
		return domain.Fill{}, fmt.Errorf("solana: build swap transaction: %w", err)
	}
	signedTx, err := signTransaction(unsignedTx, c.cfg.PrivateKey)
	if err != nil {
		return domain.Fill{}, fmt.Errorf("solana: sign swap transaction: %w", err)
	}

	var signature string
	err = c.rpcCall(ctx, "sendTransaction", []any{
		signedTx,
		map[string]any{"encoding": "base64", "maxRetries": 3},
	}, &signature)
	if err != nil {
		return domain.Fill{}, fmt.Errorf("solana: send transaction: %w", err)
	}

	return domain.Fill{
		Venue:     "jupiter",
		TxID:      signature,
		Amount:    req.Amount,
		AmountOut: amountOut,
	}, nil
}

// resolveSwap maps the pipeline's symbolic request to mints and raw units.
func (c *Client) resolveSwap(req domain.SwapRequest) (inputMint, outputMint string, rawAmount int64, outDecimals int, err error) {
	switch {
	case req.FromToken == c.cfg.QuoteSymbol && req.ToToken == c.cfg.BaseSymbol:
		// Buying the token with the quote currency.
		return c.cfg.QuoteMint, c.cfg.TokenMint,
			int64(req.Amount * math.Pow10(c.cfg.QuoteDecimals)), c.cfg.TokenDecimals, nil
	case req.FromToken == c.cfg.BaseSymbol && req.ToToken == c.cfg.QuoteSymbol:
		return c.cfg.TokenMint, c.cfg.QuoteMint,
			int64(req.Amount * math.Pow10(c.cfg.TokenDecimals)), c.cfg.QuoteDecimals, nil
	default:
		return "", "", 0, 0, fmt.Errorf("solana: unknown swap pair %s->%s", req.FromToken, req.ToToken)
	}
}

// jupiterQuote fetches a route for amount raw units of inputMint.
func (c *Client) jupiterQuote(ctx context.Context, inputMint, outputMint string, amount int64, slippageBps int) (jupiterQuoteResult, error) {
	endpoint := fmt.Sprintf("%s/quote?inputMint=%s&outputMint=%s&amount=%d&slippageBps=%d",
		c.cfg.JupiterURL, inputMint, outputMint, amount, slippageBps)

	body, err := c.jupiterGet(ctx, endpoint)
	if err != nil {
		return jupiterQuoteResult{}, err
	}

	var payload struct {
		InAmount  string `json:"inAmount"`
		OutAmount string `json:"outAmount"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return jupiterQuoteResult{}, fmt.Errorf("decode quote: %w", err)
	}
	in, err := strconv.ParseInt(payload.InAmount, 10, 64)
	if err != nil {
		return jupiterQuoteResult{}, fmt.Errorf("parse inAmount %q: %w", payload.InAmount, err)
	}
	out, err := strconv.ParseInt(payload.OutAmount, 10, 64)
	if err != nil {
		return jupiterQuoteResult{}, fmt.Errorf("parse outAmount %q: %w", payload.OutAmount, err)
	}
	if out <= 0 {
		return jupiterQuoteResult{}, domain.ErrNoPrice
	}
	return jupiterQuoteResult{inAmount: in, outAmount: out, raw: body}, nil
}

// jupiterSwapTransaction exchanges a quote for an unsigned serialized
// transaction.
func (c *Client) jupiterSwapTransaction(ctx context.Context, quote json.RawMessage) (string, error) {
	reqBody, err := json.Marshal(map[string]any{
		"quoteResponse":             quote,
		"userPublicKey":             c.cfg.WalletAddress,
		"wrapAndUnwrapSol":          true,
		"prioritizationFeeLamports": c.cfg.PriorityFeeLamports,
	})
	if err != nil {
		return "", fmt.Errorf("marshal swap request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.JupiterURL+"/swap", bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}

	var payload struct {
		SwapTransaction string `json:"swapTransaction"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("decode swap response: %w", err)
	}
	if payload.SwapTransaction == "" {
		return "", fmt.Errorf("empty swap transaction")
	}
	return payload.SwapTransaction, nil
}

func (c *Client) jupiterGet(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("%w: HTTP 429", domain.ErrRateLimited)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}
