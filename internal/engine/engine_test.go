package engine

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"crypto-trading-agent/internal/domain"
	"crypto-trading-agent/internal/paper"
	"crypto-trading-agent/internal/position"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

var cycleAt = time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)

type stubMarket struct {
	bars map[string][]domain.Candle
	errs map[string]error
	seen []string
}

func (s *stubMarket) GetBars(ctx context.Context, symbol, interval string, limit int) ([]domain.Candle, error) {
	s.seen = append(s.seen, symbol)
	if err := s.errs[symbol]; err != nil {
		return nil, err
	}
	return s.bars[symbol], nil
}

type stubSocial struct {
	items   []domain.SentimentItem
	err     error
	queries []string
}

func (s *stubSocial) Search(ctx context.Context, query string, maxResults int, lookback time.Duration) ([]domain.SentimentItem, error) {
	s.queries = append(s.queries, query)
	return s.items, s.err
}

type memSink struct {
	mu       sync.Mutex
	analyses map[string]domain.AssetAnalysis
}

func (m *memSink) StoreAnalysis(ctx context.Context, a domain.AssetAnalysis) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.analyses == nil {
		m.analyses = make(map[string]domain.AssetAnalysis)
	}
	m.analyses[a.Symbol] = a
	return nil
}

// fallingBars returns n hourly bars closing from start down by one per bar.
func fallingBars(symbol string, start float64, n int) []domain.Candle {
	t0 := cycleAt.Add(-time.Duration(n) * time.Hour)
	bars := make([]domain.Candle, n)
	for i := range bars {
		c := start - float64(i)
		bars[i] = domain.Candle{Symbol: symbol, Interval: "1h", OpenTime: t0.Add(time.Duration(i) * time.Hour), Open: c + 0.5, High: c + 1, Low: c - 1, Close: c, Volume: 10}
	}
	return bars
}

func bullishItems() []domain.SentimentItem {
	return []domain.SentimentItem{{Text: "rally", RawPolarity: 0.5}, {Text: "moon", RawPolarity: 0.5}}
}

type fixture struct {
	market  *stubMarket
	social  *stubSocial
	account *paper.Account
	manager *position.Manager
	sink    *memSink
	engine  *Engine
}

func newFixture(opts ...Option) *fixture {
	tracer := trace.NewNoopTracerProvider().Tracer("test")
	f := &fixture{
		market:  &stubMarket{bars: map[string][]domain.Candle{}, errs: map[string]error{}},
		social:  &stubSocial{items: bullishItems()},
		account: paper.NewAccount(10000),
		sink:    &memSink{},
	}
	f.manager = position.NewManager(tracer, nil, position.DefaultConfig(), f.account, f.account, nil)
	cfg := DefaultConfig()
	cfg.Assets = []string{"BTC", "ETH"}
	opts = append([]Option{WithQuoteSink(f.account), WithAnalysisSink(f.sink), WithClock(func() time.Time { return cycleAt })}, opts...)
	f.engine = New(tracer, nil, cfg, f.market, f.social, f.manager, opts...)
	return f
}

func TestRunCycleOpensOnAgreement(t *testing.T) {
	f := newFixture()
	f.market.bars["BTC"] = fallingBars("BTC", 100, 30)
	f.market.bars["ETH"] = fallingBars("ETH", 100, 30)

	res := f.engine.RunCycle(context.Background(), CycleInput{Assets: []string{"BTC"}})
	require.Empty(t, res.Errors)
	require.Len(t, res.Analyses, 1)

	a := res.Analyses[0]
	assert.Equal(t, domain.StrongBuy, a.Technical.Classification)
	assert.Equal(t, domain.SentimentPositive, a.Sentiment.Classification)
	assert.Equal(t, domain.StrongBuy, a.Combined.Classification)
	assert.Equal(t, 0.8, a.Combined.Confidence)
	assert.Equal(t, domain.ActionBuy, a.Action)
	assert.Equal(t, cycleAt, res.CycleAt)

	pos, ok := f.manager.Position("BTC")
	require.True(t, ok)
	assert.Equal(t, 71.0, pos.EntryPrice)
	assert.InDelta(t, 1000.0/71, pos.Amount, 1e-9)
	assert.Equal(t, []string{`"BTC" OR "bitcoin"`}, f.social.queries)
	assert.Contains(t, f.sink.analyses, "BTC")
}

func TestRunCycleStopLossOnNextCycle(t *testing.T) {
	f := newFixture()
	f.market.bars["BTC"] = fallingBars("BTC", 100, 30)
	ctx := context.Background()

	first := f.engine.RunCycle(ctx, CycleInput{Assets: []string{"BTC"}})
	require.Equal(t, domain.ActionBuy, first.Analyses[0].Action)

	f.market.bars["BTC"] = fallingBars("BTC", 90, 30)
	second := f.engine.RunCycle(ctx, CycleInput{Assets: []string{"BTC"}, At: cycleAt.Add(time.Hour)})
	require.Empty(t, second.Errors)
	assert.Equal(t, domain.ActionStopLoss, second.Analyses[0].Action)
	assert.Empty(t, f.manager.Positions())

	trades := f.manager.Trades()
	require.Len(t, trades, 2)
	assert.Equal(t, 61.0, trades[1].Price)
}

func TestRunCycleIsolatesAssetFailures(t *testing.T) {
	f := newFixture()
	f.market.errs["BTC"] = errors.New("provider down")
	f.market.bars["ETH"] = fallingBars("ETH", 100, 30)

	res := f.engine.RunCycle(context.Background(), CycleInput{})
	require.Len(t, res.Errors, 1)
	require.Len(t, res.Analyses, 1)
	assert.Equal(t, "ETH", res.Analyses[0].Symbol)

	var aerr *domain.AssetError
	require.ErrorAs(t, res.Errors[0], &aerr)
	assert.Equal(t, "BTC", aerr.Symbol)
	assert.Equal(t, cycleAt, aerr.CycleAt)
	assert.Equal(t, domain.StageMarketData, aerr.Stage)
	assert.ErrorIs(t, res.Errors[0], domain.ErrUnavailable)
}

func TestRunCycleReportsInputErrors(t *testing.T) {
	f := newFixture()
	bars := fallingBars("BTC", 100, 30)
	bars[10].Volume = math.NaN()
	f.market.bars["BTC"] = bars

	res := f.engine.RunCycle(context.Background(), CycleInput{Assets: []string{"BTC"}})
	require.Len(t, res.Errors, 1)
	assert.ErrorIs(t, res.Errors[0], domain.ErrInput)
	assert.Empty(t, f.manager.Positions())
}

func TestRunCycleDegradesSentimentFailure(t *testing.T) {
	f := newFixture()
	f.social.err = errors.New("rate limited")
	f.market.bars["BTC"] = fallingBars("BTC", 100, 30)

	res := f.engine.RunCycle(context.Background(), CycleInput{Assets: []string{"BTC"}})
	require.Empty(t, res.Errors)
	require.Len(t, res.Warnings, 1)
	a := res.Analyses[0]
	assert.Equal(t, domain.SentimentNeutral, a.Sentiment.Classification)
	assert.Equal(t, 0, a.Sentiment.ItemCount)
	assert.Equal(t, 0.5, a.Combined.Confidence)
	assert.Equal(t, domain.ActionNone, a.Action)
}

func TestRunCycleStopsBetweenAssets(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	pacer := func(ctx context.Context) error {
		cancel()
		return ctx.Err()
	}
	f := newFixture(WithPacer(pacer))
	f.market.bars["BTC"] = fallingBars("BTC", 100, 30)
	f.market.bars["ETH"] = fallingBars("ETH", 100, 30)

	res := f.engine.RunCycle(ctx, CycleInput{})
	assert.True(t, res.Cancelled)
	assert.Len(t, res.Analyses, 1)
	assert.Equal(t, []string{"BTC"}, f.market.seen)
}

func TestAnalyzeAssetLeavesPositionsUntouched(t *testing.T) {
	f := newFixture()
	f.market.bars["SOL"] = fallingBars("SOL", 100, 30)

	a, warnings, err := f.engine.AnalyzeAsset(context.Background(), "sol")
	require.NoError(t, err)
	assert.Empty(t, warnings)
	assert.Equal(t, "SOL", a.Symbol)
	assert.Equal(t, domain.StrongBuy, a.Combined.Classification)
	assert.Equal(t, domain.ActionNone, a.Action)
	assert.NotNil(t, a.Change24h)
	assert.Nil(t, a.Change7d)
	assert.Empty(t, f.manager.Positions())
	assert.Contains(t, f.sink.analyses, "SOL")
}

func TestDelayPacerHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := DelayPacer(time.Hour)(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NoError(t, DelayPacer(time.Millisecond)(context.Background()))
}

func TestPercentChange(t *testing.T) {
	bars := fallingBars("BTC", 200, 26)
	got := percentChange(bars, 24)
	require.NotNil(t, got)
	// last close 175 vs 199
	assert.InDelta(t, (175.0-199.0)/199.0*100, *got, 1e-9)
	assert.Nil(t, percentChange(bars[:24], 24))
}
