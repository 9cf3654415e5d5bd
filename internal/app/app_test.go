package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"crypto-trading-agent/internal/config"
	"crypto-trading-agent/internal/domain"
	"crypto-trading-agent/internal/ledger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var testTracer = trace.NewNoopTracerProvider().Tracer("test")

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("CYCLE_SCHEDULE", "")
	t.Setenv("PAPER_STARTING_CASH", "")
	t.Setenv("LEDGER_PATH", filepath.Join(t.TempDir(), "trades.jsonl"))
	cfg, err := config.Load()
	require.NoError(t, err)
	return cfg
}

func TestBuildRestoresFromFileLedger(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	at := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	l := ledger.NewFileLedger(cfg.LedgerPath)
	require.NoError(t, l.Append(ctx, domain.TradeRecord{Seq: 1, Symbol: "BTC", Action: domain.ActionBuy, Amount: 0.01, Price: 50000, Value: 500, Timestamp: at}))

	a, err := Build(ctx, cfg, testTracer, zap.NewNop(), Infra{})
	require.NoError(t, err)

	positions := a.Positions.Positions()
	require.Len(t, positions, 1)
	assert.Equal(t, "BTC", positions[0].Symbol)
	assert.InDelta(t, cfg.PaperStartingCash-500, a.Account.Snapshot().Cash, 1e-6)
	assert.Len(t, a.Portfolio.Trades(ctx), 1)
	assert.False(t, a.Job.Running())
	assert.Equal(t, cfg.Assets, a.Engine.Config().Assets)
}

func TestBuildRejectsCorruptLedger(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	l := ledger.NewFileLedger(cfg.LedgerPath)
	require.NoError(t, l.Append(ctx, domain.TradeRecord{Seq: 1, Symbol: "ETH", Action: domain.ActionSell, Amount: 1, Price: 3000}))

	_, err := Build(ctx, cfg, testTracer, zap.NewNop(), Infra{})
	require.Error(t, err)
}

func TestBuildRejectsBadSchedule(t *testing.T) {
	cfg := testConfig(t)
	cfg.CycleSchedule = "every now and then"

	_, err := Build(context.Background(), cfg, testTracer, zap.NewNop(), Infra{})
	require.Error(t, err)
}

func TestNewDashboardReadsLedger(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	l := ledger.NewFileLedger(cfg.LedgerPath)
	require.NoError(t, l.Append(ctx, domain.TradeRecord{Seq: 1, Symbol: "ETH", Action: domain.ActionBuy, Amount: 1, Price: 3000, Value: 3000}))

	portfolio, analyses, err := NewDashboard(ctx, cfg, testTracer, zap.NewNop(), Infra{})
	require.NoError(t, err)
	require.NotNil(t, analyses)

	view, trades, err := portfolio.Snapshot(ctx)
	require.NoError(t, err)
	assert.Len(t, trades, 1)
	require.Len(t, view.Positions, 1)
	assert.InDelta(t, 3000, view.Positions[0].CurrentPrice, 1e-9)
}
