package service

import (
	"context"
	"time"

	"crypto-trading-agent/internal/domain"
	"crypto-trading-agent/internal/paper"

	"go.opentelemetry.io/otel/trace"
)

type PositionReader interface {
	Positions() []domain.Position
	Trades() []domain.TradeRecord
	Summary() domain.TradeSummary
}

type AccountReader interface {
	Snapshot() paper.Snapshot
}

type PositionView struct {
	domain.Position
	CurrentPrice  float64 `json:"current_price"`
	UnrealizedPnL float64 `json:"unrealized_pnl"`
	UnrealizedPct float64 `json:"unrealized_pct"`
}

type PortfolioView struct {
	AsOf         time.Time           `json:"as_of"`
	StartingCash float64             `json:"starting_cash"`
	Cash         float64             `json:"cash"`
	Equity       float64             `json:"equity"`
	Positions    []PositionView      `json:"positions"`
	Summary      domain.TradeSummary `json:"summary"`
}

// PortfolioService joins open positions with the paper account marks.
type PortfolioService struct {
	tracer    trace.Tracer
	positions PositionReader
	account   AccountReader
	now       func() time.Time
}

func NewPortfolioService(tracer trace.Tracer, positions PositionReader, account AccountReader) *PortfolioService {
	return &PortfolioService{
		tracer:    tracer,
		positions: positions,
		account:   account,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *PortfolioService) Portfolio(ctx context.Context) PortfolioView {
	_, span := s.tracer.Start(ctx, "portfolio-service.portfolio")
	defer span.End()

	snap := s.account.Snapshot()
	marks := make(map[string]float64, len(snap.Holdings))
	for _, h := range snap.Holdings {
		marks[h.Symbol] = h.Mark
	}

	open := s.positions.Positions()
	views := make([]PositionView, 0, len(open))
	for _, p := range open {
		view := PositionView{Position: p, CurrentPrice: p.EntryPrice}
		if mark, ok := marks[p.Symbol]; ok && mark > 0 {
			view.CurrentPrice = mark
		}
		view.UnrealizedPnL = (view.CurrentPrice - p.EntryPrice) * p.Amount
		if p.EntryPrice > 0 {
			view.UnrealizedPct = (view.CurrentPrice - p.EntryPrice) / p.EntryPrice * 100
		}
		views = append(views, view)
	}

	return PortfolioView{
		AsOf:         s.now(),
		StartingCash: snap.StartingCash,
		Cash:         snap.Cash,
		Equity:       snap.Equity,
		Positions:    views,
		Summary:      s.positions.Summary(),
	}
}

func (s *PortfolioService) Trades(ctx context.Context) []domain.TradeRecord {
	_, span := s.tracer.Start(ctx, "portfolio-service.trades")
	defer span.End()
	return s.positions.Trades()
}
