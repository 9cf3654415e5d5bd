package signal

import (
	"math"
	"testing"

	"crypto-trading-agent/internal/domain"
)

func TestComposeStrongBuyPositive(t *testing.T) {
	tech := domain.TechnicalSignal{Classification: domain.StrongBuy, NetStrength: 80}
	sent := domain.SentimentSignal{Classification: domain.SentimentPositive, OverallScore: 0.25}

	got := Compose(tech, sent, DefaultWeights())
	if got.Confidence != ConfidenceAgree {
		t.Fatalf("expected confidence 0.8, got %v", got.Confidence)
	}
	want := 0.6*100 + 0.4*100*0.25
	if math.Abs(got.Strength-want) > 1e-9 {
		t.Fatalf("expected strength %v, got %v", want, got.Strength)
	}
	if got.Classification != domain.StrongBuy {
		t.Fatalf("expected strong_buy, got %s", got.Classification)
	}
	if len(got.Factors) != 2 || got.Factors[0].Source != domain.FactorTechnical || got.Factors[1].Source != domain.FactorSentiment {
		t.Fatalf("unexpected factors %+v", got.Factors)
	}
	if math.Abs(got.Factors[0].Contribution-60) > 1e-9 || got.Factors[1].Score != 0.25 {
		t.Fatalf("unexpected factor values %+v", got.Factors)
	}
}

func TestComposeStrengthUnclamped(t *testing.T) {
	tech := domain.TechnicalSignal{Classification: domain.StrongBuy}
	sent := domain.SentimentSignal{Classification: domain.SentimentPositive, OverallScore: 3}

	got := Compose(tech, sent, DefaultWeights())
	if math.Abs(got.Strength-180) > 1e-9 {
		t.Fatalf("expected unclamped 180, got %v", got.Strength)
	}
}

func TestComposeOverridableWeights(t *testing.T) {
	tech := domain.TechnicalSignal{Classification: domain.Buy}
	sent := domain.SentimentSignal{Classification: domain.SentimentNeutral}

	got := Compose(tech, sent, Weights{Technical: 1, Sentiment: 0})
	if got.Strength != 50 || got.Classification != domain.Buy {
		t.Fatalf("expected buy at 50, got %v %s", got.Strength, got.Classification)
	}
}

func TestConfidenceOnlyThreeValues(t *testing.T) {
	techs := []domain.Classification{domain.StrongBuy, domain.Buy, domain.Neutral, domain.Sell, domain.StrongSell}
	sents := []domain.SentimentClass{domain.SentimentPositive, domain.SentimentNeutral, domain.SentimentNegative}
	want := map[domain.Classification]map[domain.SentimentClass]float64{
		domain.StrongBuy:  {domain.SentimentPositive: 0.8, domain.SentimentNeutral: 0.5, domain.SentimentNegative: 0.3},
		domain.Buy:        {domain.SentimentPositive: 0.8, domain.SentimentNeutral: 0.5, domain.SentimentNegative: 0.3},
		domain.Neutral:    {domain.SentimentPositive: 0.5, domain.SentimentNeutral: 0.5, domain.SentimentNegative: 0.5},
		domain.Sell:       {domain.SentimentPositive: 0.3, domain.SentimentNeutral: 0.5, domain.SentimentNegative: 0.8},
		domain.StrongSell: {domain.SentimentPositive: 0.3, domain.SentimentNeutral: 0.5, domain.SentimentNegative: 0.8},
	}
	for _, tc := range techs {
		for _, sc := range sents {
			for _, score := range []float64{-1, -0.3, 0, 0.3, 1} {
				got := Compose(domain.TechnicalSignal{Classification: tc}, domain.SentimentSignal{Classification: sc, OverallScore: score}, DefaultWeights())
				if got.Confidence != want[tc][sc] {
					t.Fatalf("%s/%s: expected %v, got %v", tc, sc, want[tc][sc], got.Confidence)
				}
			}
		}
	}
}
