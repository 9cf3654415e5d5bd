package repository

import (
	"context"
	"fmt"

	"crypto-trading-agent/internal/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const createTradesTable = `
CREATE TABLE IF NOT EXISTS trades (
    seq         BIGINT           PRIMARY KEY,
    symbol      TEXT             NOT NULL,
    action      TEXT             NOT NULL,
    amount      DOUBLE PRECISION NOT NULL,
    price       DOUBLE PRECISION NOT NULL,
    value       DOUBLE PRECISION NOT NULL,
    executed_at TIMESTAMPTZ      NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trades_symbol_seq ON trades (symbol, seq);
`

// TradeRepository is an append-only ledger table. Rows are never updated;
// a duplicate seq is an error.
type TradeRepository struct {
	pool   PgxPool
	tracer trace.Tracer
}

func NewTradeRepository(pool PgxPool, tracer trace.Tracer) *TradeRepository {
	return &TradeRepository{pool: pool, tracer: tracer}
}

func (r *TradeRepository) RunMigrations(ctx context.Context) error {
	ctx, span := r.tracer.Start(ctx, "trade-repo.run-migrations")
	defer span.End()

	_, err := r.pool.Exec(ctx, createTradesTable)
	return err
}

func (r *TradeRepository) Append(ctx context.Context, record domain.TradeRecord) error {
	ctx, span := r.tracer.Start(ctx, "trade-repo.append")
	defer span.End()
	span.SetAttributes(
		attribute.String("symbol", record.Symbol),
		attribute.String("action", string(record.Action)),
	)

	if record.Seq <= 0 {
		return fmt.Errorf("%w: trade record without sequence", domain.ErrInput)
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO trades (seq, symbol, action, amount, price, value, executed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		record.Seq, record.Symbol, string(record.Action), record.Amount, record.Price, record.Value, record.Timestamp.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert trade %d: %w", record.Seq, err)
	}
	return nil
}

// Load returns every trade in insertion order.
func (r *TradeRepository) Load(ctx context.Context) ([]domain.TradeRecord, error) {
	ctx, span := r.tracer.Start(ctx, "trade-repo.load")
	defer span.End()

	rows, err := r.pool.Query(ctx,
		`SELECT seq, symbol, action, amount, price, value, executed_at
		 FROM trades
		 ORDER BY seq ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []domain.TradeRecord
	for rows.Next() {
		var rec domain.TradeRecord
		var action string
		if err := rows.Scan(&rec.Seq, &rec.Symbol, &action, &rec.Amount, &rec.Price, &rec.Value, &rec.Timestamp); err != nil {
			return nil, err
		}
		rec.Action = domain.TradeAction(action)
		rec.Timestamp = rec.Timestamp.UTC()
		records = append(records, rec)
	}
	return records, rows.Err()
}
