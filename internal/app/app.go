// Package app builds the object graph shared by the binaries.
package app

import (
	"context"
	"fmt"

	"crypto-trading-agent/internal/config"
	"crypto-trading-agent/internal/engine"
	"crypto-trading-agent/internal/job"
	"crypto-trading-agent/internal/ledger"
	"crypto-trading-agent/internal/metrics"
	"crypto-trading-agent/internal/paper"
	"crypto-trading-agent/internal/position"
	"crypto-trading-agent/internal/provider"
	"crypto-trading-agent/internal/repository"
	"crypto-trading-agent/internal/sentiment"
	"crypto-trading-agent/internal/service"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Infra holds the optional external connections. Either may be nil.
type Infra struct {
	Pool  *pgxpool.Pool
	Redis *redis.Client
}

type App struct {
	Engine    *engine.Engine
	Job       *job.CycleJob
	Positions *position.Manager
	Account   *paper.Account
	Portfolio *service.PortfolioService
	Analyses  *service.AnalysisCache
	Ledger    position.Ledger
	Metrics   *metrics.Recorder
}

// OpenLedger returns the postgres trade table when a pool is available and
// the JSON lines file otherwise.
func OpenLedger(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool, tracer trace.Tracer) (position.Ledger, error) {
	if pool == nil {
		return ledger.NewFileLedger(cfg.LedgerPath), nil
	}
	trades := repository.NewTradeRepository(pool, tracer)
	if err := trades.RunMigrations(ctx); err != nil {
		return nil, fmt.Errorf("migrate trades: %w", err)
	}
	return trades, nil
}

// Build wires the trading engine and restores positions and balances from
// the ledger.
func Build(ctx context.Context, cfg *config.Config, tracer trace.Tracer, logger *zap.Logger, infra Infra) (*App, error) {
	trades, err := OpenLedger(ctx, cfg, infra.Pool, tracer)
	if err != nil {
		return nil, err
	}
	records, err := trades.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}

	account := paper.NewAccount(cfg.PaperStartingCash)
	if err := account.Replay(records); err != nil {
		return nil, fmt.Errorf("replay paper account: %w", err)
	}
	manager := position.NewManager(tracer, logger, cfg.Position(), account, account, trades)
	if err := manager.Restore(records); err != nil {
		return nil, fmt.Errorf("restore positions: %w", err)
	}
	logger.Info("state restored",
		zap.Int("trades", len(records)),
		zap.Int("open_positions", len(manager.Positions())),
		zap.Float64("cash", account.Snapshot().Cash),
	)

	var store service.CandleStore
	if infra.Pool != nil {
		candles := repository.NewCandleRepository(infra.Pool, tracer)
		if err := candles.RunMigrations(ctx); err != nil {
			return nil, fmt.Errorf("migrate candles: %w", err)
		}
		store = candles
	}
	market := service.NewMarketDataService(tracer, logger, provider.NewCoinGeckoProvider(tracer), store)

	var llm sentiment.BatchLLMScorer
	if s := sentiment.NewOpenAIScorer(cfg.OpenAIAPIKey, cfg.OpenAIModel); s != nil {
		llm = s
		logger.Info("llm sentiment scoring enabled", zap.String("model", cfg.OpenAIModel))
	}
	social := service.NewSentimentFeedService(
		tracer, logger,
		provider.NewRedditProvider(tracer),
		provider.NewFeedProvider(tracer),
		sentiment.NewScorer(logger, llm, 0),
		service.SentimentFeedConfig{
			Subreddits:        cfg.RedditSubs,
			Feeds:             cfg.NewsFeeds,
			AuthorityAccounts: cfg.AuthorityAccounts,
		},
	)

	analyses := NewAnalysisCache(cfg, tracer, infra.Redis)

	eng := engine.New(tracer, logger, cfg.Engine(), market, social, manager,
		engine.WithQuoteSink(account),
		engine.WithAnalysisSink(analyses),
		engine.WithPacer(engine.DelayPacer(cfg.AssetDelay())),
	)
	cycles, err := job.NewCycleJob(tracer, logger, eng, cfg.CycleSchedule)
	if err != nil {
		return nil, err
	}
	portfolio := service.NewPortfolioService(tracer, manager, account)
	recorder := metrics.New()
	recorder.RegisterEquity(func() float64 {
		return portfolio.Portfolio(context.Background()).Equity
	})
	cycles.SetObserver(recorder)

	return &App{
		Engine:    eng,
		Job:       cycles,
		Positions: manager,
		Account:   account,
		Portfolio: portfolio,
		Analyses:  analyses,
		Ledger:    trades,
		Metrics:   recorder,
	}, nil
}

func NewAnalysisCache(cfg *config.Config, tracer trace.Tracer, client *redis.Client) *service.AnalysisCache {
	var rc service.RedisClient
	if client != nil {
		rc = client
	}
	return service.NewAnalysisCache(tracer, rc, cfg.AnalysisTTL())
}

// NewDashboard returns read-only sources for processes that observe a
// running agent without trading.
func NewDashboard(ctx context.Context, cfg *config.Config, tracer trace.Tracer, logger *zap.Logger, infra Infra) (*service.LedgerPortfolio, *service.AnalysisCache, error) {
	trades, err := OpenLedger(ctx, cfg, infra.Pool, tracer)
	if err != nil {
		return nil, nil, err
	}
	analyses := NewAnalysisCache(cfg, tracer, infra.Redis)
	portfolio := service.NewLedgerPortfolio(tracer, logger, trades, analyses, cfg.Position(), cfg.PaperStartingCash)
	return portfolio, analyses, nil
}
