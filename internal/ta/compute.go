package ta

import (
	"fmt"
	"math"
	"time"

	"crypto-trading-agent/internal/domain"
)

const (
	BollingerPeriod  = 20
	BollingerStdDevs = 2.0
	VolatilityPeriod = 24
)

// ErrEmptySeries is returned when Compute receives no bars.
var ErrEmptySeries = fmt.Errorf("%w: empty price series", domain.ErrInput)

// MissingColumnError reports a bar whose OHLCV field is not a finite number.
type MissingColumnError struct {
	Index  int
	Column string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("bar %d: missing %s", e.Index, e.Column)
}

func (e *MissingColumnError) Unwrap() error { return domain.ErrInput }

// OrderError reports bars that are not strictly increasing in time.
type OrderError struct {
	Index int
	Prev  time.Time
	Got   time.Time
}

func (e *OrderError) Error() string {
	return fmt.Sprintf("bar %d: open time %s not after %s", e.Index, e.Got.Format(time.RFC3339), e.Prev.Format(time.RFC3339))
}

func (e *OrderError) Unwrap() error { return domain.ErrInput }

// Windows configures the indicator lookbacks.
type Windows struct {
	Short      int
	Long       int
	RSI        int
	MACDFast   int
	MACDSlow   int
	MACDSignal int
}

// DefaultWindows returns 20/50 moving averages, RSI 14 and MACD 12/26/9.
func DefaultWindows() Windows {
	return Windows{Short: 20, Long: 50, RSI: 14, MACDFast: 12, MACDSlow: 26, MACDSignal: 9}
}

func (w Windows) validate() error {
	if w.Short <= 0 || w.Long <= 0 || w.RSI <= 0 || w.MACDFast <= 0 || w.MACDSlow <= 0 || w.MACDSignal <= 0 {
		return fmt.Errorf("%w: indicator windows must be positive: %+v", domain.ErrInput, w)
	}
	return nil
}

// IndicatorSet is the indicator state at one bar. Undefined values are NaN.
type IndicatorSet struct {
	OpenTime   time.Time
	Close      float64
	SMAShort   float64
	SMALong    float64
	EMAShort   float64
	EMALong    float64
	RSI        float64
	MACD       float64
	MACDSignal float64
	MACDHist   float64
	BBUpper    float64
	BBMiddle   float64
	BBLower    float64
	OBV        float64
	Volatility float64
}

// Snapshot converts the set to its JSON-safe form.
func (s IndicatorSet) Snapshot() domain.IndicatorSnapshot {
	return domain.IndicatorSnapshot{
		SMAShort:   ptr(s.SMAShort),
		SMALong:    ptr(s.SMALong),
		EMAShort:   ptr(s.EMAShort),
		EMALong:    ptr(s.EMALong),
		RSI:        ptr(s.RSI),
		MACD:       ptr(s.MACD),
		MACDSignal: ptr(s.MACDSignal),
		MACDHist:   ptr(s.MACDHist),
		BBUpper:    ptr(s.BBUpper),
		BBMiddle:   ptr(s.BBMiddle),
		BBLower:    ptr(s.BBLower),
		OBV:        ptr(s.OBV),
		Volatility: ptr(s.Volatility),
	}
}

func ptr(v float64) *float64 {
	if !Defined(v) {
		return nil
	}
	return &v
}

// Validate checks that bars are non-empty, finite and strictly ordered.
func Validate(bars []domain.Candle) error {
	if len(bars) == 0 {
		return ErrEmptySeries
	}
	for i, b := range bars {
		for _, col := range []struct {
			name string
			v    float64
		}{{"open", b.Open}, {"high", b.High}, {"low", b.Low}, {"close", b.Close}, {"volume", b.Volume}} {
			if math.IsNaN(col.v) || math.IsInf(col.v, 0) {
				return &MissingColumnError{Index: i, Column: col.name}
			}
		}
		if b.OpenTime.IsZero() {
			return &MissingColumnError{Index: i, Column: "open_time"}
		}
		if i > 0 && !b.OpenTime.After(bars[i-1].OpenTime) {
			return &OrderError{Index: i, Prev: bars[i-1].OpenTime, Got: b.OpenTime}
		}
	}
	return nil
}

// Compute derives one IndicatorSet per bar.
func Compute(bars []domain.Candle, w Windows) ([]IndicatorSet, error) {
	if err := Validate(bars); err != nil {
		return nil, err
	}
	if err := w.validate(); err != nil {
		return nil, err
	}

	closes := make([]float64, len(bars))
	volumes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
		volumes[i] = b.Volume
	}

	smaShort := SMASeries(closes, w.Short)
	smaLong := SMASeries(closes, w.Long)
	emaShort := EMASeries(closes, w.Short)
	emaLong := EMASeries(closes, w.Long)
	rsi := RSISeries(closes, w.RSI)
	macd, macdSignal, macdHist := MACDSeries(closes, w.MACDFast, w.MACDSlow, w.MACDSignal)
	bbMiddle, bbUpper, bbLower := BollingerSeries(closes, BollingerPeriod, BollingerStdDevs)
	obv := OBVSeries(closes, volumes)
	vol := VolatilitySeries(closes, VolatilityPeriod)

	out := make([]IndicatorSet, len(bars))
	for i, b := range bars {
		out[i] = IndicatorSet{
			OpenTime:   b.OpenTime,
			Close:      b.Close,
			SMAShort:   smaShort[i],
			SMALong:    smaLong[i],
			EMAShort:   emaShort[i],
			EMALong:    emaLong[i],
			RSI:        rsi[i],
			MACD:       macd[i],
			MACDSignal: macdSignal[i],
			MACDHist:   macdHist[i],
			BBUpper:    bbUpper[i],
			BBMiddle:   bbMiddle[i],
			BBLower:    bbLower[i],
			OBV:        obv[i],
			Volatility: vol[i],
		}
	}
	return out, nil
}

// Latest returns the last and second-to-last sets; previous is nil when
// only one bar exists.
func Latest(sets []IndicatorSet) (latest, previous *IndicatorSet, err error) {
	if len(sets) == 0 {
		return nil, nil, ErrEmptySeries
	}
	latest = &sets[len(sets)-1]
	if len(sets) > 1 {
		previous = &sets[len(sets)-2]
	}
	return latest, previous, nil
}
