package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/chainarb/internal/domain"
)

// TradeStore implements domain.TradeStore using PostgreSQL. Rows are
// append-only; nothing updates or deletes a recorded trade.
type TradeStore struct {
	pool *pgxpool.Pool
}

// NewTradeStore creates a TradeStore backed by the given connection pool.
func NewTradeStore(pool *pgxpool.Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

const tradeSelectCols = `id, opportunity_id, success, manual, override,
	buy_venue, buy_tx_id, buy_amount, buy_amount_out,
	sell_venue, sell_tx_id, sell_amount, sell_amount_out,
	dry_run, gas_total_usd, trade_size_usd, net_profit_usd,
	error, started_at, execution_ms`

func scanTradeRows(rows pgx.Rows) ([]domain.TradeResult, error) {
	var results []domain.TradeResult
	for rows.Next() {
		var (
			r           domain.TradeResult
			dryRun      bool
			executionMs int64
		)
		if err := rows.Scan(
			&r.ID, &r.OpportunityID, &r.Success, &r.Manual, &r.Override,
			&r.BuyFill.Venue, &r.BuyFill.TxID, &r.BuyFill.Amount, &r.BuyFill.AmountOut,
			&r.SellFill.Venue, &r.SellFill.TxID, &r.SellFill.Amount, &r.SellFill.AmountOut,
			&dryRun, &r.Gas.TotalUSD, &r.TradeSizeUSD, &r.NetProfitUSD,
			&r.Error, &r.StartedAt, &executionMs,
		); err != nil {
			return nil, err
		}
		r.BuyFill.DryRun = dryRun
		r.SellFill.DryRun = dryRun
		r.ExecutionTime = time.Duration(executionMs) * time.Millisecond
		results = append(results, r)
	}
	return results, rows.Err()
}

// Insert persists one trade result.
func (s *TradeStore) Insert(ctx context.Context, r domain.TradeResult) error {
	const query = `
		INSERT INTO trades (
			id, opportunity_id, success, manual, override,
			buy_venue, buy_tx_id, buy_amount, buy_amount_out,
			sell_venue, sell_tx_id, sell_amount, sell_amount_out,
			dry_run, gas_total_usd, trade_size_usd, net_profit_usd,
			error, started_at, execution_ms
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9,
			$10, $11, $12, $13,
			$14, $15, $16, $17,
			$18, $19, $20
		)`

	_, err := s.pool.Exec(ctx, query,
		r.ID, r.OpportunityID, r.Success, r.Manual, r.Override,
		r.BuyFill.Venue, r.BuyFill.TxID, r.BuyFill.Amount, r.BuyFill.AmountOut,
		r.SellFill.Venue, r.SellFill.TxID, r.SellFill.Amount, r.SellFill.AmountOut,
		r.BuyFill.DryRun || r.SellFill.DryRun, r.Gas.TotalUSD, r.TradeSizeUSD, r.NetProfitUSD,
		r.Error, r.StartedAt, r.ExecutionTime.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("postgres: insert trade %s: %w", r.ID, err)
	}
	return nil
}

// List returns the most recent trades, newest first.
func (s *TradeStore) List(ctx context.Context, limit int) ([]domain.TradeResult, error) {
	query := `SELECT ` + tradeSelectCols + ` FROM trades ORDER BY started_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trades: %w", err)
	}
	defer rows.Close()

	results, err := scanTradeRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan trades: %w", err)
	}
	return results, nil
}

// ListBefore returns trades started strictly before cutoff, oldest first,
// for the archiver.
func (s *TradeStore) ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.TradeResult, error) {
	query := `SELECT ` + tradeSelectCols + ` FROM trades WHERE started_at < $1 ORDER BY started_at ASC`
	args := []any{cutoff}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trades before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	defer rows.Close()

	results, err := scanTradeRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan trades before: %w", err)
	}
	return results, nil
}

// Compile-time interface check.
var _ domain.TradeStore = (*TradeStore)(nil)
