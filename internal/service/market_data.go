package service

import (
	"context"
	"fmt"

	"crypto-trading-agent/internal/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type BarProvider interface {
	FetchBars(ctx context.Context, symbol, interval string, limit int) ([]domain.Candle, error)
}

type CandleStore interface {
	GetCandles(ctx context.Context, symbol, interval string, limit int) ([]domain.Candle, error)
	UpsertCandles(ctx context.Context, candles []domain.Candle) error
}

// MarketDataService fetches candles from the provider and keeps a copy in
// the store. When the provider fails it serves the stored candles instead.
type MarketDataService struct {
	tracer   trace.Tracer
	logger   *zap.Logger
	provider BarProvider
	store    CandleStore
}

// NewMarketDataService accepts a nil store to run without persistence.
func NewMarketDataService(tracer trace.Tracer, logger *zap.Logger, provider BarProvider, store CandleStore) *MarketDataService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MarketDataService{tracer: tracer, logger: logger, provider: provider, store: store}
}

func (s *MarketDataService) GetBars(ctx context.Context, symbol, interval string, limit int) ([]domain.Candle, error) {
	ctx, span := s.tracer.Start(ctx, "market-data.get-bars")
	defer span.End()
	span.SetAttributes(attribute.String("symbol", symbol), attribute.String("interval", interval))

	if !domain.IsSupportedSymbol(symbol) {
		return nil, fmt.Errorf("%w: unsupported symbol %s", domain.ErrInput, symbol)
	}

	bars, err := s.provider.FetchBars(ctx, symbol, interval, limit)
	if err == nil && len(bars) > 0 {
		if s.store != nil {
			if uerr := s.store.UpsertCandles(ctx, bars); uerr != nil {
				s.logger.Warn("store candles failed", zap.String("symbol", symbol), zap.Error(uerr))
			}
		}
		return bars, nil
	}
	if err == nil {
		err = fmt.Errorf("provider returned no candles for %s %s", symbol, interval)
	}

	if s.store == nil {
		return nil, err
	}
	stored, serr := s.store.GetCandles(ctx, symbol, interval, limit)
	if serr != nil || len(stored) == 0 {
		return nil, err
	}
	s.logger.Warn("provider unavailable, using stored candles",
		zap.String("symbol", symbol),
		zap.Int("candles", len(stored)),
		zap.Error(err),
	)
	return stored, nil
}
