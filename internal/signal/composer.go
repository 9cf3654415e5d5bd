package signal

import "crypto-trading-agent/internal/domain"

// Confidence levels.
const (
	ConfidenceAgree    = 0.8
	ConfidenceNeutral  = 0.5
	ConfidenceConflict = 0.3
)

// Weights sets the fusion weight of each side.
type Weights struct {
	Technical float64
	Sentiment float64
}

func DefaultWeights() Weights {
	return Weights{Technical: 0.6, Sentiment: 0.4}
}

// Compose fuses a technical and a sentiment signal. Strength is left
// unclamped.
func Compose(tech domain.TechnicalSignal, sent domain.SentimentSignal, w Weights) domain.CombinedSignal {
	techContribution := tech.Classification.Magnitude() * w.Technical
	sentContribution := sent.OverallScore * 100 * w.Sentiment
	strength := techContribution + sentContribution

	return domain.CombinedSignal{
		Strength:       strength,
		Classification: domain.ClassifyStrength(strength),
		Confidence:     confidence(tech.Classification, sent.Classification),
		Factors: []domain.ContributingFactor{
			{
				Source:         domain.FactorTechnical,
				Classification: string(tech.Classification),
				Score:          tech.NetStrength,
				Contribution:   techContribution,
			},
			{
				Source:         domain.FactorSentiment,
				Classification: string(sent.Classification),
				Score:          sent.OverallScore,
				Contribution:   sentContribution,
			},
		},
	}
}

func confidence(tech domain.Classification, sent domain.SentimentClass) float64 {
	switch {
	case tech.IsBuy() && sent == domain.SentimentPositive,
		tech.IsSell() && sent == domain.SentimentNegative:
		return ConfidenceAgree
	case tech == domain.Neutral || !sent.IsDirectional():
		return ConfidenceNeutral
	default:
		return ConfidenceConflict
	}
}
