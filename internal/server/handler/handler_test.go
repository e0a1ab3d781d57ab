package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/chainarb/internal/domain"
)

type fakeRegistry struct {
	records []domain.AgentRecord
}

func (f *fakeRegistry) Status() []domain.AgentRecord { return f.records }

type fakeDetector struct {
	stats  domain.DetectorStats
	spread domain.Spread
	ready  bool
	opp    domain.Opportunity
}

func (f *fakeDetector) Stats() domain.DetectorStats { return f.stats }

func (f *fakeDetector) Spread() (domain.Spread, bool) { return f.spread, f.ready }

func (f *fakeDetector) CurrentOpportunity(sizeUSD float64) (domain.Opportunity, bool) {
	if !f.ready {
		return domain.Opportunity{}, false
	}
	opp := f.opp
	if sizeUSD > 0 {
		opp.TradeSizeUSD = sizeUSD
	}
	return opp, true
}

type fakeExecutor struct {
	stats    domain.ExecutorStats
	history  []domain.TradeResult
	paused   bool
	result   domain.TradeResult
	tradeErr error
	lastSize float64
}

func (f *fakeExecutor) Pause()                     { f.paused = true }
func (f *fakeExecutor) Resume()                    { f.paused = false }
func (f *fakeExecutor) Paused() bool               { return f.paused }
func (f *fakeExecutor) Stats() domain.ExecutorStats { return f.stats }
func (f *fakeExecutor) History() []domain.TradeResult {
	out := make([]domain.TradeResult, len(f.history))
	copy(out, f.history)
	return out
}

func (f *fakeExecutor) ManualTrade(_ context.Context, opp domain.Opportunity, sizeUSD float64, override bool) (domain.TradeResult, error) {
	f.lastSize = sizeUSD
	if f.tradeErr != nil {
		return domain.TradeResult{}, f.tradeErr
	}
	return f.result, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(bytes.NewBuffer(nil), nil))
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHealthCheck(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHealthHandler().HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeBody(t, rec)["status"])
}

func TestGetStatusListsAgents(t *testing.T) {
	reg := &fakeRegistry{records: []domain.AgentRecord{
		{Name: "SOL_PRICE_MONITOR", Status: domain.AgentRunning},
		{Name: "TRADE_EXECUTOR", Status: domain.AgentFailed, LastError: "boom"},
	}}
	h := NewStatusHandler(reg, "full", time.Now().Add(-time.Minute))

	rec := httptest.NewRecorder()
	h.GetStatus(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "full", body["mode"])

	agents, ok := body["agents"].([]any)
	require.True(t, ok)
	require.Len(t, agents, 2)
	second := agents[1].(map[string]any)
	assert.Equal(t, "failed", second["status"])
	assert.Equal(t, "boom", second["last_error"])
}

func TestGetStatsCombinesAgents(t *testing.T) {
	det := &fakeDetector{stats: domain.DetectorStats{OpportunityCount: 7, SkippedCount: 3}}
	exe := &fakeExecutor{stats: domain.ExecutorStats{TotalTrades: 2, TotalNetProfit: 56.8}}
	h := NewStatsHandler(det, exe)

	rec := httptest.NewRecorder()
	h.GetStats(rec, httptest.NewRequest(http.MethodGet, "/api/stats", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, 7.0, body["detector"].(map[string]any)["opportunities"])
	assert.Equal(t, 56.8, body["executor"].(map[string]any)["total_net_profit"])
}

func TestGetStatsWithoutExecutor(t *testing.T) {
	h := NewStatsHandler(&fakeDetector{}, nil)

	rec := httptest.NewRecorder()
	h.GetStats(rec, httptest.NewRequest(http.MethodGet, "/api/stats", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	_, hasExecutor := decodeBody(t, rec)["executor"]
	assert.False(t, hasExecutor)
}

func TestGetSpreadBeforeData(t *testing.T) {
	h := NewSpreadHandler(&fakeDetector{})

	rec := httptest.NewRecorder()
	h.GetSpread(rec, httptest.NewRequest(http.MethodGet, "/api/spread", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestGetSpread(t *testing.T) {
	h := NewSpreadHandler(&fakeDetector{
		ready:  true,
		spread: domain.Spread{SolanaPrice: 100, EthereumPrice: 103, PriceDiff: 3, SpreadPct: 3},
	})

	rec := httptest.NewRecorder()
	h.GetSpread(rec, httptest.NewRequest(http.MethodGet, "/api/spread", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, 3.0, body["spread_pct"])
}

func TestListTradesFromMemoryNewestFirst(t *testing.T) {
	exe := &fakeExecutor{history: []domain.TradeResult{
		{ID: "t1"}, {ID: "t2"}, {ID: "t3"},
	}}
	h := NewTradesHandler(exe, nil)

	rec := httptest.NewRecorder()
	h.ListTrades(rec, httptest.NewRequest(http.MethodGet, "/api/trades?limit=2", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "memory", body["source"])

	trades := body["trades"].([]any)
	require.Len(t, trades, 2)
	assert.Equal(t, "t3", trades[0].(map[string]any)["ID"])
	assert.Equal(t, "t2", trades[1].(map[string]any)["ID"])
}

func TestPauseAndResume(t *testing.T) {
	exe := &fakeExecutor{}
	h := NewControlHandler(exe, &fakeDetector{}, nil, quietLogger())

	rec := httptest.NewRecorder()
	h.Pause(rec, httptest.NewRequest(http.MethodPost, "/api/pause", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, exe.paused)

	rec = httptest.NewRecorder()
	h.Resume(rec, httptest.NewRequest(http.MethodPost, "/api/resume", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, exe.paused)
}

func TestManualTradeSuccess(t *testing.T) {
	det := &fakeDetector{ready: true, opp: domain.Opportunity{ID: "opp-1", BuyPrice: 100, SellPrice: 103}}
	exe := &fakeExecutor{result: domain.TradeResult{ID: "t1", Success: true, NetProfitUSD: 12}}
	h := NewControlHandler(exe, det, nil, quietLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/trade", strings.NewReader(`{"size_usd":500,"override":true}`))
	rec := httptest.NewRecorder()
	h.ManualTrade(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 500.0, exe.lastSize)
	assert.Equal(t, true, decodeBody(t, rec)["Success"])
}

func TestManualTradeZeroSizeUsesConfiguredDefault(t *testing.T) {
	det := &fakeDetector{ready: true, opp: domain.Opportunity{ID: "opp-1", TradeSizeUSD: 250}}
	exe := &fakeExecutor{result: domain.TradeResult{ID: "t1", Success: true}}
	h := NewControlHandler(exe, det, nil, quietLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/trade", strings.NewReader(`{"size_usd":0}`))
	rec := httptest.NewRecorder()
	h.ManualTrade(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 250.0, exe.lastSize)
}

func TestManualTradeFailedResultReturns422(t *testing.T) {
	det := &fakeDetector{ready: true}
	exe := &fakeExecutor{result: domain.TradeResult{Success: false, Error: "cost gate"}}
	h := NewControlHandler(exe, det, nil, quietLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/trade", strings.NewReader(`{"size_usd":500}`))
	rec := httptest.NewRecorder()
	h.ManualTrade(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestManualTradeConflictsAndBadInput(t *testing.T) {
	det := &fakeDetector{ready: true}

	exe := &fakeExecutor{tradeErr: domain.ErrPaused}
	h := NewControlHandler(exe, det, nil, quietLogger())
	rec := httptest.NewRecorder()
	h.ManualTrade(rec, httptest.NewRequest(http.MethodPost, "/api/trade", strings.NewReader(`{"size_usd":500}`)))
	assert.Equal(t, http.StatusConflict, rec.Code)

	exe = &fakeExecutor{tradeErr: domain.ErrTradeInFlight}
	h = NewControlHandler(exe, det, nil, quietLogger())
	rec = httptest.NewRecorder()
	h.ManualTrade(rec, httptest.NewRequest(http.MethodPost, "/api/trade", strings.NewReader(`{"size_usd":500}`)))
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = httptest.NewRecorder()
	h.ManualTrade(rec, httptest.NewRequest(http.MethodPost, "/api/trade", strings.NewReader(`not json`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestManualTradeWithoutPriceData(t *testing.T) {
	h := NewControlHandler(&fakeExecutor{}, &fakeDetector{}, nil, quietLogger())

	rec := httptest.NewRecorder()
	h.ManualTrade(rec, httptest.NewRequest(http.MethodPost, "/api/trade", strings.NewReader(`{"size_usd":500}`)))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

type fakePriceReader struct {
	quotes map[domain.Chain]domain.PriceQuote
	err    error
}

func (f *fakePriceReader) GetQuote(_ context.Context, chain domain.Chain) (domain.PriceQuote, error) {
	if f.err != nil {
		return domain.PriceQuote{}, f.err
	}
	quote, ok := f.quotes[chain]
	if !ok {
		return domain.PriceQuote{}, domain.ErrNotFound
	}
	return quote, nil
}

func TestGetPricesOmitsMissingChain(t *testing.T) {
	reader := &fakePriceReader{quotes: map[domain.Chain]domain.PriceQuote{
		domain.ChainSolana: {Price: 101.5, Chain: domain.ChainSolana, Venue: "jupiter"},
	}}
	h := NewPricesHandler(reader)

	rec := httptest.NewRecorder()
	h.GetPrices(rec, httptest.NewRequest(http.MethodGet, "/api/prices", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	prices := decodeBody(t, rec)["prices"].(map[string]any)
	require.Len(t, prices, 1)
	sol := prices["solana"].(map[string]any)
	assert.Equal(t, 101.5, sol["price"])
	assert.Equal(t, "jupiter", sol["venue"])
}

func TestGetPricesCacheError(t *testing.T) {
	h := NewPricesHandler(&fakePriceReader{err: context.DeadlineExceeded})

	rec := httptest.NewRecorder()
	h.GetPrices(rec, httptest.NewRequest(http.MethodGet, "/api/prices", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

type fakeEstimator struct {
	cost domain.LegCost
	err  error
	rate float64
}

func (f *fakeEstimator) EstimateFee(_ context.Context, ethUSD float64) (domain.LegCost, error) {
	f.rate = ethUSD
	return f.cost, f.err
}

func TestGetGas(t *testing.T) {
	det := &fakeDetector{ready: true, spread: domain.Spread{EthereumPrice: 2500}}
	est := &fakeEstimator{cost: domain.LegCost{Chain: domain.ChainEthereum, NativeFee: 0.0028, USDFee: 7}}
	h := NewGasHandler(est, det)

	rec := httptest.NewRecorder()
	h.GetGas(rec, httptest.NewRequest(http.MethodGet, "/api/gas", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, 7.0, body["usd_fee"])
	assert.Equal(t, 2500.0, est.rate)

	// No reference price yet.
	rec = httptest.NewRecorder()
	NewGasHandler(est, &fakeDetector{}).GetGas(rec, httptest.NewRequest(http.MethodGet, "/api/gas", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
