package signal

import (
	"fmt"
	"math"

	"crypto-trading-agent/internal/domain"
	"crypto-trading-agent/internal/ta"
)

// Rule strengths.
const (
	SMACrossStrength       = 60
	EMACrossStrength       = 70
	MACDCrossStrength      = 65
	RSIBaseStrength        = 50
	RSIDistanceFactor      = 2
	BollingerBreakStrength = 40
	MaxNetStrength         = 100
)

// Rule names.
const (
	ReasonSMACross       = "sma_cross"
	ReasonEMACross       = "ema_cross"
	ReasonMACDCross      = "macd_cross"
	ReasonRSIOversold    = "rsi_oversold"
	ReasonRSIOverbought  = "rsi_overbought"
	ReasonBollingerLower = "bollinger_lower"
	ReasonBollingerUpper = "bollinger_upper"
)

type TechnicalConfig struct {
	RSIOverbought float64
	RSIOversold   float64
}

func DefaultTechnicalConfig() TechnicalConfig {
	return TechnicalConfig{RSIOverbought: 70, RSIOversold: 30}
}

type crossDirection int

const (
	noCross crossDirection = iota
	crossUp
	crossDown
)

func crossover(prevFast, prevSlow, fast, slow float64) crossDirection {
	if !ta.Defined(prevFast) || !ta.Defined(prevSlow) || !ta.Defined(fast) || !ta.Defined(slow) {
		return noCross
	}
	switch {
	case prevFast <= prevSlow && fast > slow:
		return crossUp
	case prevFast >= prevSlow && fast < slow:
		return crossDown
	default:
		return noCross
	}
}

// GenerateTechnical scores the latest indicator state. previous may be nil,
// in which case the crossover rules are skipped.
func GenerateTechnical(latest, previous *ta.IndicatorSet, bar domain.Candle, cfg TechnicalConfig) domain.TechnicalSignal {
	sig := domain.TechnicalSignal{
		BuyReasons:  []domain.SignalReason{},
		SellReasons: []domain.SignalReason{},
		AsOf:        bar.OpenTime,
	}
	if latest == nil {
		sig.Classification = domain.Neutral
		return sig
	}

	add := func(dir crossDirection, name, up, down string, strength float64) {
		switch dir {
		case crossUp:
			sig.BuyReasons = append(sig.BuyReasons, domain.SignalReason{Name: name, Description: up, Strength: strength})
		case crossDown:
			sig.SellReasons = append(sig.SellReasons, domain.SignalReason{Name: name, Description: down, Strength: strength})
		}
	}

	if previous != nil {
		add(crossover(previous.SMAShort, previous.SMALong, latest.SMAShort, latest.SMALong),
			ReasonSMACross, "short SMA crossed above long SMA", "short SMA crossed below long SMA", SMACrossStrength)
		add(crossover(previous.EMAShort, previous.EMALong, latest.EMAShort, latest.EMALong),
			ReasonEMACross, "short EMA crossed above long EMA", "short EMA crossed below long EMA", EMACrossStrength)
		add(crossover(previous.MACD, previous.MACDSignal, latest.MACD, latest.MACDSignal),
			ReasonMACDCross, "MACD crossed above signal line", "MACD crossed below signal line", MACDCrossStrength)
	}

	if rsi := latest.RSI; ta.Defined(rsi) {
		switch {
		case rsi < cfg.RSIOversold:
			sig.BuyReasons = append(sig.BuyReasons, domain.SignalReason{
				Name:        ReasonRSIOversold,
				Description: fmt.Sprintf("RSI %.2f below %.0f", rsi, cfg.RSIOversold),
				Strength:    math.Min(MaxNetStrength, RSIBaseStrength+RSIDistanceFactor*(cfg.RSIOversold-rsi)),
			})
		case rsi > cfg.RSIOverbought:
			sig.SellReasons = append(sig.SellReasons, domain.SignalReason{
				Name:        ReasonRSIOverbought,
				Description: fmt.Sprintf("RSI %.2f above %.0f", rsi, cfg.RSIOverbought),
				Strength:    math.Min(MaxNetStrength, RSIBaseStrength+RSIDistanceFactor*(rsi-cfg.RSIOverbought)),
			})
		}
	}

	if ta.Defined(latest.BBUpper) && ta.Defined(latest.BBLower) {
		switch {
		case bar.Close > latest.BBUpper:
			sig.SellReasons = append(sig.SellReasons, domain.SignalReason{
				Name:        ReasonBollingerUpper,
				Description: "close above upper Bollinger band",
				Strength:    BollingerBreakStrength,
			})
		case bar.Close < latest.BBLower:
			sig.BuyReasons = append(sig.BuyReasons, domain.SignalReason{
				Name:        ReasonBollingerLower,
				Description: "close below lower Bollinger band",
				Strength:    BollingerBreakStrength,
			})
		}
	}

	var net float64
	for _, r := range sig.BuyReasons {
		net += r.Strength
	}
	for _, r := range sig.SellReasons {
		net -= r.Strength
	}
	sig.NetStrength = math.Max(-MaxNetStrength, math.Min(MaxNetStrength, net))
	sig.Classification = domain.ClassifyStrength(sig.NetStrength)
	return sig
}
