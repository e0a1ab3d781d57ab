package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/alanyoungcy/chainarb/internal/bus"
	"github.com/alanyoungcy/chainarb/internal/domain"
)

const agentName = "TRADE_ARCHIVER"

const (
	defaultArchiveInterval = 24 * time.Hour
	defaultBatchLimit      = 5000
)

// ArchiverConfig controls the archival cadence and batch size.
type ArchiverConfig struct {
	// Interval is how often a pass runs. Defaults to 24h.
	Interval time.Duration

	// BatchLimit caps the number of trades archived per pass.
	BatchLimit int
}

// Archiver periodically exports completed trades to object storage as
// newline-delimited JSON. It only reads from the trade store; the database
// rows stay where they are, the archive is the cold copy.
type Archiver struct {
	cfg    ArchiverConfig
	writer domain.BlobWriter
	store  domain.TradeStore
	bus    *bus.EventBus
	clock  domain.Clock
	logger *slog.Logger

	running atomic.Bool

	// lastCutoff marks the upper bound of the previous pass; trades started
	// before it have already been exported.
	lastCutoff time.Time
}

var _ domain.Agent = (*Archiver)(nil)

// NewArchiver creates an Archiver. The clock may be nil, in which case the
// system clock is used.
func NewArchiver(cfg ArchiverConfig, writer domain.BlobWriter, store domain.TradeStore, b *bus.EventBus, clock domain.Clock, logger *slog.Logger) *Archiver {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultArchiveInterval
	}
	if cfg.BatchLimit <= 0 {
		cfg.BatchLimit = defaultBatchLimit
	}
	if clock == nil {
		clock = domain.SystemClock
	}
	return &Archiver{
		cfg:    cfg,
		writer: writer,
		store:  store,
		bus:    b,
		clock:  clock,
		logger: logger.With("component", agentName),
	}
}

// Name implements domain.Agent.
func (a *Archiver) Name() string { return agentName }

// Running implements domain.Agent.
func (a *Archiver) Running() bool { return a.running.Load() }

// Run performs one pass immediately, then on every interval tick until the
// context is cancelled. A failed pass is reported and retried on the next
// tick; it never stops the agent.
func (a *Archiver) Run(ctx context.Context) error {
	a.running.Store(true)
	defer a.running.Store(false)

	a.logger.Info("archiver started", "interval", a.cfg.Interval.String())

	ticker := time.NewTicker(a.cfg.Interval)
	defer ticker.Stop()

	a.pass(ctx)

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("archiver stopped")
			return ctx.Err()
		case <-ticker.C:
			a.pass(ctx)
		}
	}
}

func (a *Archiver) pass(ctx context.Context) {
	count, err := a.archiveOnce(ctx)
	if err != nil {
		a.logger.Error("archive pass failed", "error", err)
		a.bus.Publish(domain.AgentError{
			Agent:    agentName,
			Err:      err.Error(),
			Context:  "archive pass",
			Critical: false,
			At:       a.clock.Now(),
		})
		return
	}
	if count > 0 {
		a.logger.Info("archive pass complete", "trades", count)
	}
}

// archiveOnce exports trades started since the previous pass and before now.
// It returns the number of trades written.
func (a *Archiver) archiveOnce(ctx context.Context) (int, error) {
	cutoff := a.clock.Now()

	trades, err := a.store.ListBefore(ctx, cutoff, a.cfg.BatchLimit)
	if err != nil {
		return 0, fmt.Errorf("s3blob: list trades: %w", err)
	}

	// ListBefore has no lower bound, so drop what the previous pass already
	// exported.
	fresh := trades[:0:0]
	for _, t := range trades {
		if !t.StartedAt.Before(a.lastCutoff) {
			fresh = append(fresh, t)
		}
	}

	if len(fresh) == 0 {
		a.lastCutoff = cutoff
		return 0, nil
	}

	buf, err := marshalJSONL(fresh)
	if err != nil {
		return 0, fmt.Errorf("s3blob: marshal trades: %w", err)
	}

	key := archiveKey(cutoff)
	if err := a.writer.Write(ctx, key, buf, "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: upload archive: %w", err)
	}

	a.lastCutoff = cutoff
	a.logger.Debug("archive uploaded", "key", key, "trades", len(fresh))
	return len(fresh), nil
}

// archiveKey builds the object key for one pass, partitioned by month with
// the pass timestamp in the file name so passes never overwrite each other.
//
//	archive/trades/2026-09/20260901T120000Z.jsonl
func archiveKey(at time.Time) string {
	at = at.UTC()
	return fmt.Sprintf("archive/trades/%s/%s.jsonl", at.Format("2006-01"), at.Format("20060102T150405Z"))
}

// marshalJSONL serialises trades as newline-delimited JSON, one compact
// object per line.
func marshalJSONL(trades []domain.TradeResult) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, t := range trades {
		if err := enc.Encode(t); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
