package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"crypto-trading-agent/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel/trace"
)

var testTracer = trace.NewNoopTracerProvider().Tracer("test")

type execCall struct {
	sql  string
	args []any
}

type fakePool struct {
	execs     []execCall
	execErr   error
	batchLen  int
	batchErr  error
	querySQL  string
	queryArgs []any
	rows      [][]any
	queryErr  error
}

func (f *fakePool) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.execs = append(f.execs, execCall{sql: sql, args: args})
	return pgconn.NewCommandTag("INSERT 0 1"), f.execErr
}

func (f *fakePool) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	f.batchLen = b.Len()
	return &fakeBatch{n: b.Len(), err: f.batchErr}
}

func (f *fakePool) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	f.querySQL = sql
	f.queryArgs = args
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	return &fakeRows{rows: f.rows, idx: -1}, nil
}

type fakeBatch struct {
	n   int
	err error
}

func (b *fakeBatch) Exec() (pgconn.CommandTag, error) { return pgconn.CommandTag{}, b.err }
func (b *fakeBatch) Query() (pgx.Rows, error)         { return nil, errors.New("not supported") }
func (b *fakeBatch) QueryRow() pgx.Row                { return nil }
func (b *fakeBatch) Close() error                     { return nil }

type fakeRows struct {
	rows [][]any
	idx  int
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) Values() ([]any, error)                       { return r.rows[r.idx], nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	r.idx++
	return r.idx < len(r.rows)
}

func (r *fakeRows) Scan(dest ...any) error {
	row := r.rows[r.idx]
	if len(dest) != len(row) {
		return fmt.Errorf("expected %d destinations, got %d", len(row), len(dest))
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = row[i].(string)
		case *float64:
			*p = row[i].(float64)
		case *int64:
			*p = row[i].(int64)
		case *time.Time:
			*p = row[i].(time.Time)
		default:
			return fmt.Errorf("unsupported destination %T", d)
		}
	}
	return nil
}

func TestCandleRepositoryGetCandlesReturnsOldestFirst(t *testing.T) {
	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	pool := &fakePool{rows: [][]any{
		{"BTC", "1h", base.Add(2 * time.Hour), 3.0, 3.0, 3.0, 3.0, 30.0},
		{"BTC", "1h", base.Add(time.Hour), 2.0, 2.0, 2.0, 2.0, 20.0},
		{"BTC", "1h", base, 1.0, 1.0, 1.0, 1.0, 10.0},
	}}
	repo := NewCandleRepository(pool, testTracer)

	candles, err := repo.GetCandles(context.Background(), "BTC", "1h", 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(candles) != 3 {
		t.Fatalf("expected 3 candles, got %d", len(candles))
	}
	if !candles[0].OpenTime.Equal(base) || candles[2].Close != 3 {
		t.Fatalf("expected ascending candles, got %+v", candles)
	}
	if !strings.Contains(pool.querySQL, "ORDER BY open_time DESC") || pool.queryArgs[2] != 3 {
		t.Fatalf("unexpected query: %s %v", pool.querySQL, pool.queryArgs)
	}
}

func TestCandleRepositoryUpsert(t *testing.T) {
	pool := &fakePool{}
	repo := NewCandleRepository(pool, testTracer)

	if err := repo.UpsertCandles(context.Background(), nil); err != nil {
		t.Fatalf("empty upsert should be a no-op, got %v", err)
	}
	if pool.batchLen != 0 {
		t.Fatalf("expected no batch for empty input")
	}

	candles := []domain.Candle{{Symbol: "ETH", Interval: "1h"}, {Symbol: "ETH", Interval: "1h"}}
	if err := repo.UpsertCandles(context.Background(), candles); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pool.batchLen != 2 {
		t.Fatalf("expected 2 queued statements, got %d", pool.batchLen)
	}

	pool.batchErr = errors.New("conflict")
	if err := repo.UpsertCandles(context.Background(), candles); err == nil {
		t.Fatal("expected batch error")
	}
}

func TestCandleRepositoryRunMigrations(t *testing.T) {
	pool := &fakePool{}
	repo := NewCandleRepository(pool, testTracer)
	if err := repo.RunMigrations(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pool.execs) != 1 || !strings.Contains(pool.execs[0].sql, "CREATE TABLE IF NOT EXISTS candles") {
		t.Fatalf("unexpected migration exec: %+v", pool.execs)
	}
}

func TestTradeRepositoryAppend(t *testing.T) {
	pool := &fakePool{}
	repo := NewTradeRepository(pool, testTracer)
	ts := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)

	rec := domain.TradeRecord{Seq: 4, Symbol: "BTC", Action: domain.ActionStopLoss, Amount: 0.1, Price: 56999, Value: 5699.9, Timestamp: ts}
	if err := repo.Append(context.Background(), rec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pool.execs) != 1 {
		t.Fatalf("expected one insert, got %d", len(pool.execs))
	}
	args := pool.execs[0].args
	if args[0] != int64(4) || args[2] != "stop_loss" || args[6] != ts {
		t.Fatalf("unexpected insert args: %v", args)
	}
	if strings.Contains(pool.execs[0].sql, "ON CONFLICT") {
		t.Fatal("ledger inserts must not overwrite existing rows")
	}

	if err := repo.Append(context.Background(), domain.TradeRecord{Symbol: "BTC"}); !errors.Is(err, domain.ErrInput) {
		t.Fatalf("expected input error for missing seq, got %v", err)
	}

	pool.execErr = errors.New("duplicate key")
	if err := repo.Append(context.Background(), rec); err == nil {
		t.Fatal("expected insert error")
	}
}

func TestTradeRepositoryLoad(t *testing.T) {
	ts := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	pool := &fakePool{rows: [][]any{
		{int64(1), "BTC", "buy", 0.1, 60000.0, 6000.0, ts},
		{int64(2), "BTC", "take_profit", 0.1, 66000.0, 6600.0, ts.Add(time.Hour)},
	}}
	repo := NewTradeRepository(pool, testTracer)

	records, err := repo.Load(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].Action != domain.ActionBuy || records[1].Action != domain.ActionTakeProfit || records[1].Seq != 2 {
		t.Fatalf("unexpected records: %+v", records)
	}
	if !strings.Contains(pool.querySQL, "ORDER BY seq ASC") {
		t.Fatalf("expected insertion order query, got %s", pool.querySQL)
	}

	pool.queryErr = errors.New("down")
	if _, err := repo.Load(context.Background()); err == nil {
		t.Fatal("expected query error")
	}
}
