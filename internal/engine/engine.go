package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"crypto-trading-agent/internal/domain"
	"crypto-trading-agent/internal/position"
	"crypto-trading-agent/internal/sentiment"
	"crypto-trading-agent/internal/signal"
	"crypto-trading-agent/internal/ta"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	barsPerDay  = 24
	barsPerWeek = 168
)

type MarketData interface {
	GetBars(ctx context.Context, symbol, interval string, limit int) ([]domain.Candle, error)
}

type SocialFeed interface {
	Search(ctx context.Context, query string, maxResults int, lookback time.Duration) ([]domain.SentimentItem, error)
}

type PositionManager interface {
	Apply(ctx context.Context, in position.ApplyInput) (domain.Decision, error)
}

// QuoteSink receives the latest close of every analysed asset.
type QuoteSink interface {
	SetQuote(symbol string, price float64)
}

// AnalysisSink stores analysis snapshots for readers.
type AnalysisSink interface {
	StoreAnalysis(ctx context.Context, analysis domain.AssetAnalysis) error
}

// Pacer blocks between assets. It returns an error when ctx is done.
type Pacer func(ctx context.Context) error

// DelayPacer waits d between assets.
func DelayPacer(d time.Duration) Pacer {
	return func(ctx context.Context) error {
		if d <= 0 {
			return ctx.Err()
		}
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			return nil
		}
	}
}

type Config struct {
	Assets     []string
	Interval   string
	Limit      int
	Windows    ta.Windows
	Technical  signal.TechnicalConfig
	Sentiment  sentiment.Config
	Weights    signal.Weights
	Keywords   []string
	MaxResults int
	Lookback   time.Duration
}

func DefaultConfig() Config {
	return Config{
		Assets:     []string{"BTC", "ETH"},
		Interval:   "1h",
		Limit:      200,
		Windows:    ta.DefaultWindows(),
		Technical:  signal.DefaultTechnicalConfig(),
		Sentiment:  sentiment.DefaultConfig(),
		Weights:    signal.DefaultWeights(),
		MaxResults: 200,
		Lookback:   48 * time.Hour,
	}
}

// Engine runs analysis cycles. It is the only writer of position state.
type Engine struct {
	cfg       Config
	market    MarketData
	social    SocialFeed
	positions PositionManager
	quotes    QuoteSink
	sink      AnalysisSink
	pacer     Pacer
	now       func() time.Time
	tracer    trace.Tracer
	logger    *zap.Logger
}

type Option func(*Engine)

func WithQuoteSink(q QuoteSink) Option       { return func(e *Engine) { e.quotes = q } }
func WithAnalysisSink(s AnalysisSink) Option { return func(e *Engine) { e.sink = s } }
func WithPacer(p Pacer) Option               { return func(e *Engine) { e.pacer = p } }
func WithClock(now func() time.Time) Option  { return func(e *Engine) { e.now = now } }

func New(tracer trace.Tracer, logger *zap.Logger, cfg Config, market MarketData, social SocialFeed, positions PositionManager, opts ...Option) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		cfg:       cfg,
		market:    market,
		social:    social,
		positions: positions,
		now:       func() time.Time { return time.Now().UTC() },
		tracer:    tracer,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Config() Config { return e.cfg }

type CycleInput struct {
	// Assets overrides the configured asset list when non-empty.
	Assets []string
	// At overrides the cycle timestamp.
	At time.Time
}

type CycleResult struct {
	CycleAt   time.Time              `json:"cycle_at"`
	Analyses  []domain.AssetAnalysis `json:"analyses"`
	Decisions []domain.Decision      `json:"decisions"`
	Errors    []error                `json:"-"`
	Warnings  []string               `json:"warnings"`
	Cancelled bool                   `json:"cancelled"`
}

// ErrorStrings renders Errors for JSON responses.
func (r CycleResult) ErrorStrings() []string {
	out := make([]string, 0, len(r.Errors))
	for _, err := range r.Errors {
		out = append(out, err.Error())
	}
	return out
}

// RunCycle analyses every asset in order and applies the combined signal to
// its position. A failing asset is recorded and the cycle moves on. The
// context is checked between assets.
func (e *Engine) RunCycle(ctx context.Context, in CycleInput) CycleResult {
	ctx, span := e.tracer.Start(ctx, "engine.run-cycle")
	defer span.End()

	assets := in.Assets
	if len(assets) == 0 {
		assets = e.cfg.Assets
	}
	cycleAt := in.At
	if cycleAt.IsZero() {
		cycleAt = e.now()
	}
	result := CycleResult{
		CycleAt:   cycleAt,
		Analyses:  make([]domain.AssetAnalysis, 0, len(assets)),
		Decisions: make([]domain.Decision, 0, len(assets)),
		Warnings:  []string{},
	}
	span.SetAttributes(attribute.Int("assets", len(assets)))

	for i, symbol := range assets {
		if i > 0 && e.pacer != nil {
			if err := e.pacer(ctx); err != nil {
				result.Cancelled = true
				break
			}
		}
		if ctx.Err() != nil {
			result.Cancelled = true
			break
		}
		symbol = strings.ToUpper(strings.TrimSpace(symbol))
		log := e.logger.With(zap.String("symbol", symbol), zap.Time("cycle_at", cycleAt))

		analysis, warnings, err := e.analyze(ctx, symbol, cycleAt)
		result.Warnings = append(result.Warnings, warnings...)
		if err != nil {
			log.Error("asset analysis failed", zap.Error(err))
			result.Errors = append(result.Errors, err)
			continue
		}

		decision, err := e.positions.Apply(ctx, position.ApplyInput{
			Symbol:       symbol,
			Signal:       analysis.Combined,
			CurrentPrice: analysis.LastBar.Close,
			Now:          cycleAt,
		})
		if err != nil {
			aerr := &domain.AssetError{Symbol: symbol, CycleAt: cycleAt, Stage: domain.StagePosition, Err: err}
			log.Error("position update failed", zap.Error(err))
			result.Errors = append(result.Errors, aerr)
		}
		analysis.Action = decision.Action
		result.Decisions = append(result.Decisions, decision)
		result.Analyses = append(result.Analyses, analysis)
		e.store(ctx, analysis, &result)

		log.Info("asset processed",
			zap.String("technical", string(analysis.Technical.Classification)),
			zap.String("sentiment", string(analysis.Sentiment.Classification)),
			zap.String("combined", string(analysis.Combined.Classification)),
			zap.Float64("confidence", analysis.Combined.Confidence),
			zap.String("action", string(decision.Action)),
		)
	}

	e.logger.Info("cycle completed",
		zap.Time("cycle_at", cycleAt),
		zap.Int("analysed", len(result.Analyses)),
		zap.Int("errors", len(result.Errors)),
		zap.Bool("cancelled", result.Cancelled),
	)
	return result
}

// AnalyzeAsset runs the analysis pipeline for one asset without touching
// position state.
func (e *Engine) AnalyzeAsset(ctx context.Context, symbol string) (domain.AssetAnalysis, []string, error) {
	ctx, span := e.tracer.Start(ctx, "engine.analyze-asset")
	defer span.End()

	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	analysis, warnings, err := e.analyze(ctx, symbol, e.now())
	if err != nil {
		return analysis, warnings, err
	}
	analysis.Action = domain.ActionNone
	var result CycleResult
	e.store(ctx, analysis, &result)
	return analysis, append(warnings, result.Warnings...), nil
}

func (e *Engine) analyze(ctx context.Context, symbol string, cycleAt time.Time) (domain.AssetAnalysis, []string, error) {
	analysis := domain.AssetAnalysis{Symbol: symbol, CycleAt: cycleAt, Action: domain.ActionNone}
	assetErr := func(stage string, err error) error {
		return &domain.AssetError{Symbol: symbol, CycleAt: cycleAt, Stage: stage, Err: err}
	}
	if symbol == "" {
		return analysis, nil, assetErr(domain.StageMarketData, fmt.Errorf("%w: empty symbol", domain.ErrInput))
	}

	bars, err := e.market.GetBars(ctx, symbol, e.cfg.Interval, e.cfg.Limit)
	if err != nil {
		return analysis, nil, assetErr(domain.StageMarketData, fmt.Errorf("%w: %w", domain.ErrUnavailable, err))
	}
	sets, err := ta.Compute(bars, e.cfg.Windows)
	if err != nil {
		return analysis, nil, assetErr(domain.StageIndicators, err)
	}
	latest, previous, err := ta.Latest(sets)
	if err != nil {
		return analysis, nil, assetErr(domain.StageIndicators, err)
	}
	last := bars[len(bars)-1]
	if e.quotes != nil {
		e.quotes.SetQuote(symbol, last.Close)
	}

	analysis.LastBar = last
	analysis.Change24h = percentChange(bars, barsPerDay)
	analysis.Change7d = percentChange(bars, barsPerWeek)
	analysis.Indicators = latest.Snapshot()
	analysis.Technical = signal.GenerateTechnical(latest, previous, last, e.cfg.Technical)

	var warnings []string
	var items []domain.SentimentItem
	if e.social != nil {
		query := sentiment.BuildQuery(symbol, e.cfg.Keywords...)
		items, err = e.social.Search(ctx, query, e.cfg.MaxResults, e.cfg.Lookback)
		if err != nil {
			werr := assetErr(domain.StageSentiment, fmt.Errorf("%w: %w", domain.ErrUnavailable, err))
			warnings = append(warnings, werr.Error())
			e.logger.Warn("sentiment unavailable, using empty batch", zap.String("symbol", symbol), zap.Time("cycle_at", cycleAt), zap.Error(err))
			items = nil
		}
	}
	analysis.Sentiment = sentiment.Aggregate(items, e.cfg.Sentiment)
	analysis.Combined = signal.Compose(analysis.Technical, analysis.Sentiment, e.cfg.Weights)
	return analysis, warnings, nil
}

func (e *Engine) store(ctx context.Context, analysis domain.AssetAnalysis, result *CycleResult) {
	if e.sink == nil {
		return
	}
	if err := e.sink.StoreAnalysis(ctx, analysis); err != nil {
		result.Warnings = append(result.Warnings, fmt.Sprintf("%s: store analysis: %v", analysis.Symbol, err))
	}
}

// percentChange compares the last close with the close n bars earlier and
// is nil when the history is too short.
func percentChange(bars []domain.Candle, n int) *float64 {
	if len(bars) <= n {
		return nil
	}
	base := bars[len(bars)-1-n].Close
	if base == 0 {
		return nil
	}
	v := (bars[len(bars)-1].Close - base) / base * 100
	return &v
}
