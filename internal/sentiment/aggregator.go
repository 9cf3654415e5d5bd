package sentiment

import (
	"sort"

	"crypto-trading-agent/internal/domain"
)

// TopItemCount is how many items by engagement are kept on the signal.
const TopItemCount = 10

type Config struct {
	PositiveThreshold float64
	NegativeThreshold float64
	AuthorityWeight   float64
}

func DefaultConfig() Config {
	return Config{PositiveThreshold: 0.1, NegativeThreshold: -0.1, AuthorityWeight: 2.0}
}

func (c Config) classify(v float64) domain.SentimentClass {
	switch {
	case v > c.PositiveThreshold:
		return domain.SentimentPositive
	case v < c.NegativeThreshold:
		return domain.SentimentNegative
	default:
		return domain.SentimentNeutral
	}
}

func engagementFactor(n int) float64 {
	switch {
	case n > 100:
		return 1.5
	case n > 50:
		return 1.3
	case n > 10:
		return 1.1
	default:
		return 1.0
	}
}

func followerFactor(n int) float64 {
	switch {
	case n > 100000:
		return 1.5
	case n > 10000:
		return 1.3
	case n > 1000:
		return 1.1
	default:
		return 1.0
	}
}

// Weight is the effective weight of one item.
func Weight(item domain.SentimentItem, authorityWeight float64) float64 {
	w := engagementFactor(item.EngagementCount) * followerFactor(item.FollowerCount)
	if item.IsAuthority {
		w *= authorityWeight
	}
	return w
}

// Aggregate folds a batch of scored items into one signal. An empty batch
// yields a zero neutral signal.
func Aggregate(items []domain.SentimentItem, cfg Config) domain.SentimentSignal {
	sig := domain.SentimentSignal{
		Classification:          domain.SentimentNeutral,
		AuthorityClassification: domain.SentimentNeutral,
		ItemCount:               len(items),
	}
	if len(items) == 0 {
		return sig
	}

	var total, authorityTotal float64
	var authorityCount int
	for _, item := range items {
		weighted := item.RawPolarity * Weight(item, cfg.AuthorityWeight)
		total += weighted
		if item.IsAuthority {
			authorityTotal += weighted
			authorityCount++
		}

		switch cfg.classify(item.RawPolarity) {
		case domain.SentimentPositive:
			sig.PositiveCount++
		case domain.SentimentNegative:
			sig.NegativeCount++
		default:
			sig.NeutralCount++
		}
	}

	n := float64(len(items))
	sig.OverallScore = total / n
	sig.Classification = cfg.classify(sig.OverallScore)
	if authorityCount > 0 {
		sig.AuthorityScore = authorityTotal / float64(authorityCount)
		sig.AuthorityClassification = cfg.classify(sig.AuthorityScore)
	}
	sig.PositivePct = float64(sig.PositiveCount) / n * 100
	sig.NegativePct = float64(sig.NegativeCount) / n * 100
	sig.NeutralPct = float64(sig.NeutralCount) / n * 100
	sig.TopItems = topByEngagement(items, TopItemCount)
	return sig
}

func topByEngagement(items []domain.SentimentItem, n int) []domain.SentimentItem {
	sorted := append([]domain.SentimentItem(nil), items...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].EngagementCount > sorted[j].EngagementCount
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}
