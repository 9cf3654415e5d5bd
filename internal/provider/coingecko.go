package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"sort"
	"time"

	"crypto-trading-agent/internal/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const coingeckoBaseURL = "https://api.coingecko.com/api/v3"

// CoinGeckoProvider builds OHLCV candles from the CoinGecko market_chart
// endpoint.
type CoinGeckoProvider struct {
	client  *http.Client
	baseURL string
	tracer  trace.Tracer
	limiter *RateLimiter
}

// NewCoinGeckoProvider creates a provider limited to 8 requests per minute.
func NewCoinGeckoProvider(tracer trace.Tracer) *CoinGeckoProvider {
	return &CoinGeckoProvider{
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: coingeckoBaseURL,
		tracer:  tracer,
		limiter: NewRateLimiter(8, 7500*time.Millisecond),
	}
}

// FetchBars returns up to limit of the most recent candles for symbol.
func (p *CoinGeckoProvider) FetchBars(ctx context.Context, symbol, interval string, limit int) ([]domain.Candle, error) {
	ctx, span := p.tracer.Start(ctx, "coingecko.fetch-bars")
	defer span.End()
	span.SetAttributes(attribute.String("symbol", symbol), attribute.String("interval", interval))

	if intervalToDuration(interval) == 0 {
		return nil, fmt.Errorf("unsupported interval: %s", interval)
	}
	candles, err := p.FetchMarketChart(ctx, symbol, daysForInterval(interval, limit), interval)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(candles) > limit {
		candles = candles[len(candles)-limit:]
	}
	return candles, nil
}

// FetchMarketChart fetches days of market_chart data and buckets it into
// candles of the given interval.
func (p *CoinGeckoProvider) FetchMarketChart(ctx context.Context, symbol string, days int, interval string) ([]domain.Candle, error) {
	_, span := p.tracer.Start(ctx, "coingecko.fetch-market-chart")
	defer span.End()

	cgID, ok := domain.CoinGeckoID[symbol]
	if !ok {
		return nil, fmt.Errorf("unsupported symbol: %s", symbol)
	}

	url := fmt.Sprintf("%s/coins/%s/market_chart?vs_currency=usd&days=%d", p.baseURL, cgID, days)
	body, err := p.doRequest(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("fetch market chart for %s: %w", symbol, err)
	}

	var raw struct {
		Prices       [][]float64 `json:"prices"`
		TotalVolumes [][]float64 `json:"total_volumes"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("parse market chart for %s: %w", symbol, err)
	}
	return buildCandlesFromMarketChart(symbol, interval, raw.Prices, raw.TotalVolumes), nil
}

func (p *CoinGeckoProvider) doRequest(ctx context.Context, url string) ([]byte, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("coingecko API error %d: %s", resp.StatusCode, string(body))
	}
	return io.ReadAll(resp.Body)
}

// daysForInterval picks the market_chart range. CoinGecko returns 5 minute
// points for one day, hourly points up to 90 days and daily points beyond.
func daysForInterval(interval string, limit int) int {
	d := intervalToDuration(interval)
	if d == 0 || limit <= 0 {
		return 1
	}
	if d < time.Hour {
		return 1
	}
	days := int(math.Ceil(float64(d*time.Duration(limit)) / float64(24*time.Hour)))
	if d < 24*time.Hour && days > 90 {
		return 90
	}
	if days < 2 {
		return 2
	}
	return days
}

type volumePoint struct {
	ts  int64
	vol float64
}

func buildCandlesFromMarketChart(symbol, interval string, prices, volumes [][]float64) []domain.Candle {
	if len(prices) == 0 {
		return nil
	}
	size := intervalToDuration(interval)
	if size == 0 {
		return nil
	}

	volPoints := make([]volumePoint, 0, len(volumes))
	for _, v := range volumes {
		if len(v) >= 2 {
			volPoints = append(volPoints, volumePoint{ts: int64(v[0]), vol: v[1]})
		}
	}

	sort.Slice(prices, func(i, j int) bool { return prices[i][0] < prices[j][0] })

	type bucket struct {
		open, high, low, close float64
	}
	buckets := make(map[int64]*bucket)
	for _, pt := range prices {
		if len(pt) < 2 {
			continue
		}
		price := pt[1]
		key := time.UnixMilli(int64(pt[0])).Truncate(size).UnixMilli()

		b, ok := buckets[key]
		if !ok {
			buckets[key] = &bucket{open: price, high: price, low: price, close: price}
			continue
		}
		b.high = math.Max(b.high, price)
		b.low = math.Min(b.low, price)
		b.close = price
	}

	keys := make([]int64, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	candles := make([]domain.Candle, 0, len(keys))
	for _, k := range keys {
		b := buckets[k]
		candles = append(candles, domain.Candle{
			Symbol:   symbol,
			Interval: interval,
			OpenTime: time.UnixMilli(k).UTC(),
			Open:     b.open,
			High:     b.high,
			Low:      b.low,
			Close:    b.close,
			Volume:   findClosestVolume(volPoints, k+size.Milliseconds()),
		})
	}
	return candles
}

func findClosestVolume(volumes []volumePoint, targetMs int64) float64 {
	if len(volumes) == 0 {
		return 0
	}
	closest := volumes[0]
	minDiff := int64(math.MaxInt64)
	for _, v := range volumes {
		diff := v.ts - targetMs
		if diff < 0 {
			diff = -diff
		}
		if diff < minDiff {
			minDiff = diff
			closest = v
		}
	}
	return closest.vol
}

func intervalToDuration(interval string) time.Duration {
	switch interval {
	case "5m":
		return 5 * time.Minute
	case "15m":
		return 15 * time.Minute
	case "1h":
		return time.Hour
	case "4h":
		return 4 * time.Hour
	case "1d":
		return 24 * time.Hour
	default:
		return 0
	}
}
