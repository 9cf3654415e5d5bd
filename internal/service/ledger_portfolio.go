package service

import (
	"context"
	"fmt"

	"crypto-trading-agent/internal/domain"
	"crypto-trading-agent/internal/paper"
	"crypto-trading-agent/internal/position"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type TradeLoader interface {
	Load(ctx context.Context) ([]domain.TradeRecord, error)
}

type QuoteLookup interface {
	Get(ctx context.Context, symbol string) (domain.AssetAnalysis, bool, error)
}

// LedgerPortfolio rebuilds a read-only portfolio from the trade ledger on
// every call, for processes that do not run the engine. Open positions are
// marked at the last cached analysis close when one exists.
type LedgerPortfolio struct {
	tracer       trace.Tracer
	logger       *zap.Logger
	loader       TradeLoader
	quotes       QuoteLookup
	cfg          position.Config
	startingCash float64
}

func NewLedgerPortfolio(tracer trace.Tracer, logger *zap.Logger, loader TradeLoader, quotes QuoteLookup, cfg position.Config, startingCash float64) *LedgerPortfolio {
	return &LedgerPortfolio{
		tracer:       tracer,
		logger:       logger,
		loader:       loader,
		quotes:       quotes,
		cfg:          cfg,
		startingCash: startingCash,
	}
}

func (p *LedgerPortfolio) Snapshot(ctx context.Context) (PortfolioView, []domain.TradeRecord, error) {
	ctx, span := p.tracer.Start(ctx, "ledger-portfolio.snapshot")
	defer span.End()

	records, err := p.loader.Load(ctx)
	if err != nil {
		return PortfolioView{}, nil, fmt.Errorf("load ledger: %w", err)
	}

	account := paper.NewAccount(p.startingCash)
	if err := account.Replay(records); err != nil {
		return PortfolioView{}, nil, err
	}
	manager := position.NewManager(p.tracer, p.logger, p.cfg, account, account, nil)
	if err := manager.Restore(records); err != nil {
		return PortfolioView{}, nil, err
	}

	if p.quotes != nil {
		for _, pos := range manager.Positions() {
			analysis, ok, err := p.quotes.Get(ctx, pos.Symbol)
			if err != nil {
				p.logger.Warn("quote lookup failed", zap.String("symbol", pos.Symbol), zap.Error(err))
				continue
			}
			if ok {
				account.SetQuote(pos.Symbol, analysis.LastBar.Close)
			}
		}
	}

	view := NewPortfolioService(p.tracer, manager, account).Portfolio(ctx)
	return view, manager.Trades(), nil
}
