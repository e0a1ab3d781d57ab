package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/chainarb/internal/bus"
	"github.com/alanyoungcy/chainarb/internal/domain"
)

type fakeWriter struct {
	keys     []string
	payloads [][]byte
	types    []string
}

func (w *fakeWriter) Write(_ context.Context, key string, data []byte, contentType string) error {
	w.keys = append(w.keys, key)
	w.payloads = append(w.payloads, data)
	w.types = append(w.types, contentType)
	return nil
}

type fakeTradeStore struct {
	trades []domain.TradeResult
}

func (s *fakeTradeStore) Insert(context.Context, domain.TradeResult) error { return nil }

func (s *fakeTradeStore) List(context.Context, int) ([]domain.TradeResult, error) {
	return s.trades, nil
}

func (s *fakeTradeStore) ListBefore(_ context.Context, cutoff time.Time, limit int) ([]domain.TradeResult, error) {
	var out []domain.TradeResult
	for _, t := range s.trades {
		if t.StartedAt.Before(cutoff) {
			out = append(out, t)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

var archiveTestNow = time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

func newTestArchiver(t *testing.T, store domain.TradeStore, writer domain.BlobWriter, now *time.Time) *Archiver {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(bytes.NewBuffer(nil), nil))
	b := bus.New(logger)
	t.Cleanup(b.Close)
	clock := domain.ClockFunc(func() time.Time { return *now })
	return NewArchiver(ArchiverConfig{}, writer, store, b, clock, logger)
}

func trade(id string, startedAt time.Time) domain.TradeResult {
	return domain.TradeResult{
		ID:           id,
		Success:      true,
		TradeSizeUSD: 1000,
		NetProfitUSD: 12.5,
		StartedAt:    startedAt,
	}
}

func TestArchiveOnceWritesJSONL(t *testing.T) {
	now := archiveTestNow
	store := &fakeTradeStore{trades: []domain.TradeResult{
		trade("t1", now.Add(-2*time.Hour)),
		trade("t2", now.Add(-1*time.Hour)),
	}}
	writer := &fakeWriter{}
	a := newTestArchiver(t, store, writer, &now)

	count, err := a.archiveOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	require.Len(t, writer.keys, 1)
	assert.Equal(t, "archive/trades/2026-09/20260901T120000Z.jsonl", writer.keys[0])
	assert.Equal(t, "application/x-ndjson", writer.types[0])

	lines := bytes.Split(bytes.TrimSpace(writer.payloads[0]), []byte("\n"))
	require.Len(t, lines, 2)

	var first domain.TradeResult
	require.NoError(t, json.Unmarshal(lines[0], &first))
	assert.Equal(t, "t1", first.ID)
	assert.Equal(t, 12.5, first.NetProfitUSD)
}

func TestArchiveOnceEmptyStoreWritesNothing(t *testing.T) {
	now := archiveTestNow
	writer := &fakeWriter{}
	a := newTestArchiver(t, &fakeTradeStore{}, writer, &now)

	count, err := a.archiveOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Empty(t, writer.keys)
}

func TestArchiveOnceSkipsAlreadyArchived(t *testing.T) {
	now := archiveTestNow
	store := &fakeTradeStore{trades: []domain.TradeResult{
		trade("t1", now.Add(-2*time.Hour)),
	}}
	writer := &fakeWriter{}
	a := newTestArchiver(t, store, writer, &now)

	count, err := a.archiveOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// A second pass sees the same rows but must not export them again.
	now = now.Add(time.Hour)
	count, err = a.archiveOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Len(t, writer.keys, 1)

	// A trade started after the first pass is picked up.
	store.trades = append(store.trades, trade("t2", archiveTestNow.Add(30*time.Minute)))
	now = now.Add(time.Hour)
	count, err = a.archiveOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	require.Len(t, writer.keys, 2)

	var got domain.TradeResult
	lines := bytes.Split(bytes.TrimSpace(writer.payloads[1]), []byte("\n"))
	require.Len(t, lines, 1)
	require.NoError(t, json.Unmarshal(lines[0], &got))
	assert.Equal(t, "t2", got.ID)
}

func TestArchiveKeyPartitionsByMonth(t *testing.T) {
	at := time.Date(2026, 12, 31, 23, 59, 59, 0, time.UTC)
	assert.Equal(t, "archive/trades/2026-12/20261231T235959Z.jsonl", archiveKey(at))
}
