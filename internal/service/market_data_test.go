package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"crypto-trading-agent/internal/domain"
)

type mockBarProvider struct {
	bars  []domain.Candle
	err   error
	calls int
}

func (m *mockBarProvider) FetchBars(ctx context.Context, symbol, interval string, limit int) ([]domain.Candle, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.bars, nil
}

type mockCandleStore struct {
	stored      []domain.Candle
	getErr      error
	upsertErr   error
	upsertCalls int
	upsertArg   []domain.Candle
}

func (m *mockCandleStore) GetCandles(ctx context.Context, symbol, interval string, limit int) ([]domain.Candle, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.stored, nil
}

func (m *mockCandleStore) UpsertCandles(ctx context.Context, candles []domain.Candle) error {
	m.upsertCalls++
	m.upsertArg = candles
	return m.upsertErr
}

func sampleBars(n int, start float64) []domain.Candle {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]domain.Candle, n)
	for i := range out {
		p := start + float64(i)
		out[i] = domain.Candle{Symbol: "BTC", Interval: "1h", OpenTime: base.Add(time.Duration(i) * time.Hour), Open: p, High: p, Low: p, Close: p, Volume: 1}
	}
	return out
}

func TestMarketDataServiceStoresFetchedBars(t *testing.T) {
	t.Parallel()

	provider := &mockBarProvider{bars: sampleBars(3, 100)}
	store := &mockCandleStore{}
	svc := NewMarketDataService(testTracer, nil, provider, store)

	bars, err := svc.GetBars(context.Background(), "BTC", "1h", 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(bars) != 3 || store.upsertCalls != 1 || len(store.upsertArg) != 3 {
		t.Fatalf("expected bars stored once, got %d bars and %d upserts", len(bars), store.upsertCalls)
	}
}

func TestMarketDataServiceStoreFailureIsNotFatal(t *testing.T) {
	t.Parallel()

	provider := &mockBarProvider{bars: sampleBars(2, 100)}
	store := &mockCandleStore{upsertErr: errors.New("db down")}
	svc := NewMarketDataService(testTracer, nil, provider, store)

	if _, err := svc.GetBars(context.Background(), "BTC", "1h", 2); err != nil {
		t.Fatalf("store failure should not fail the read, got %v", err)
	}
}

func TestMarketDataServiceFallsBackToStore(t *testing.T) {
	t.Parallel()

	provider := &mockBarProvider{err: errors.New("429")}
	store := &mockCandleStore{stored: sampleBars(5, 50)}
	svc := NewMarketDataService(testTracer, nil, provider, store)

	bars, err := svc.GetBars(context.Background(), "BTC", "1h", 5)
	if err != nil {
		t.Fatalf("expected stored candles, got %v", err)
	}
	if len(bars) != 5 || bars[0].Close != 50 {
		t.Fatalf("unexpected fallback bars: %+v", bars)
	}
}

func TestMarketDataServiceErrors(t *testing.T) {
	t.Parallel()

	providerErr := errors.New("429")
	svc := NewMarketDataService(testTracer, nil, &mockBarProvider{err: providerErr}, &mockCandleStore{})
	if _, err := svc.GetBars(context.Background(), "BTC", "1h", 5); !errors.Is(err, providerErr) {
		t.Fatalf("expected provider error with empty store, got %v", err)
	}

	noStore := NewMarketDataService(testTracer, nil, &mockBarProvider{}, nil)
	if _, err := noStore.GetBars(context.Background(), "BTC", "1h", 5); err == nil {
		t.Fatal("expected error for empty provider response")
	}

	provider := &mockBarProvider{}
	unsupported := NewMarketDataService(testTracer, nil, provider, nil)
	if _, err := unsupported.GetBars(context.Background(), "FAKE", "1h", 5); !errors.Is(err, domain.ErrInput) {
		t.Fatalf("expected input error, got %v", err)
	}
	if provider.calls != 0 {
		t.Fatal("unsupported symbol must not reach the provider")
	}
}
