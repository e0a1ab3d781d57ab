package binance

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/chainarb/internal/domain"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := New(Config{
		BaseURL:   srv.URL,
		ApiKey:    "test-key",
		ApiSecret: "test-secret",
		FeeBps:    10,
	})
	c.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return c
}

func TestPriceParsesTicker(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/ticker/price", r.URL.Path)
		assert.Equal(t, "ETHUSDT", r.URL.Query().Get("symbol"))
		assert.Empty(t, r.Header.Get("X-MBX-APIKEY"), "public endpoint must not be signed")
		w.Write([]byte(`{"symbol":"ETHUSDT","price":"2501.37"}`))
	})

	price, err := c.Price(context.Background(), "ETHUSDT")
	require.NoError(t, err)
	assert.Equal(t, 2501.37, price)
}

func TestSignedRequestCarriesValidSignature(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("X-MBX-APIKEY"))

		raw := r.URL.RawQuery
		idx := strings.Index(raw, "&signature=")
		require.Greater(t, idx, 0, "signature must be the final parameter")
		payload, sig := raw[:idx], raw[idx+len("&signature="):]

		mac := hmac.New(sha256.New, []byte("test-secret"))
		mac.Write([]byte(payload))
		assert.Equal(t, hex.EncodeToString(mac.Sum(nil)), sig)

		values, err := url.ParseQuery(payload)
		require.NoError(t, err)
		assert.NotEmpty(t, values.Get("timestamp"))

		w.Write([]byte(`{"balances":[{"asset":"USDT","free":"1234.5"},{"asset":"ETH","free":"2.0"}]}`))
	})

	balance, err := c.AccountBalance(context.Background(), "USDT")
	require.NoError(t, err)
	assert.Equal(t, 1234.5, balance)
}

func TestAccountBalanceUnknownAssetIsZero(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"balances":[]}`))
	})

	balance, err := c.AccountBalance(context.Background(), "BTC")
	require.NoError(t, err)
	assert.Zero(t, balance)
}

func TestPlaceMarketOrder(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v3/order", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "ETHUSDT", q.Get("symbol"))
		assert.Equal(t, "SELL", q.Get("side"))
		assert.Equal(t, "MARKET", q.Get("type"))
		assert.Equal(t, "0.4", q.Get("quantity"))
		w.Write([]byte(`{"orderId":42,"executedQty":"0.4","status":"FILLED"}`))
	})

	fill, err := c.PlaceMarketOrder(context.Background(), "ETHUSDT", domain.SideSell, 0.4)
	require.NoError(t, err)
	assert.Equal(t, "42", fill.TxID)
	assert.Equal(t, 0.4, fill.AmountOut)
	assert.False(t, fill.DryRun)
}

func TestPlaceMarketOrderRejectedStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"orderId":43,"executedQty":"0","status":"EXPIRED"}`))
	})

	_, err := c.PlaceMarketOrder(context.Background(), "ETHUSDT", domain.SideBuy, 0.4)
	assert.ErrorContains(t, err, "not filled")
}

func TestDryRunNeverCallsExchange(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, DryRun: true})
	fill, err := c.PlaceMarketOrder(context.Background(), "ETHUSDT", domain.SideBuy, 0.4)
	require.NoError(t, err)
	assert.True(t, fill.DryRun)
	assert.False(t, called)
}

func TestRateLimitMapsToSentinel(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := c.Price(context.Background(), "ETHUSDT")
	assert.ErrorIs(t, err, domain.ErrRateLimited)
}

func TestEstimateFeeFromBps(t *testing.T) {
	c := New(Config{FeeBps: 10})
	cost, err := c.EstimateFee(context.Background(), 1000)
	require.NoError(t, err)
	assert.Equal(t, 1.0, cost.USDFee)
	assert.Zero(t, cost.NativeFee)
}

func TestTickerQuoteIsProxy(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"symbol":"ETHUSDT","price":"2500"}`))
	})
	ticker := NewTicker(c, "ETHUSDT", domain.ChainEthereum)

	q, err := ticker.Quote(context.Background())
	require.NoError(t, err)
	assert.True(t, q.Proxy)
	assert.Equal(t, 2500.0, q.Price)
	assert.Equal(t, "binance", q.Venue)
}
