package sentiment

import (
	"math"
	"testing"

	"crypto-trading-agent/internal/domain"
)

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestAggregateEmptyBatch(t *testing.T) {
	sig := Aggregate(nil, DefaultConfig())
	if sig.OverallScore != 0 || sig.Classification != domain.SentimentNeutral {
		t.Fatalf("expected zero neutral signal, got %+v", sig)
	}
	if sig.ItemCount != 0 || sig.PositiveCount != 0 || sig.NegativeCount != 0 || sig.NeutralCount != 0 {
		t.Fatalf("expected zero counts, got %+v", sig)
	}
	if sig.AuthorityClassification != domain.SentimentNeutral || sig.AuthorityScore != 0 {
		t.Fatalf("expected neutral authority, got %+v", sig)
	}
}

func TestWeightTiers(t *testing.T) {
	cases := []struct {
		item domain.SentimentItem
		want float64
	}{
		{domain.SentimentItem{}, 1.0},
		{domain.SentimentItem{EngagementCount: 11}, 1.1},
		{domain.SentimentItem{EngagementCount: 51}, 1.3},
		{domain.SentimentItem{EngagementCount: 101}, 1.5},
		{domain.SentimentItem{EngagementCount: 100}, 1.3},
		{domain.SentimentItem{FollowerCount: 1001}, 1.1},
		{domain.SentimentItem{FollowerCount: 10001}, 1.3},
		{domain.SentimentItem{FollowerCount: 100001}, 1.5},
		{domain.SentimentItem{EngagementCount: 200, FollowerCount: 200000}, 2.25},
		{domain.SentimentItem{IsAuthority: true}, 2.0},
		{domain.SentimentItem{EngagementCount: 20, IsAuthority: true}, 2.2},
	}
	for _, tc := range cases {
		if got := Weight(tc.item, 2.0); !near(got, tc.want) {
			t.Fatalf("Weight(%+v): expected %v, got %v", tc.item, tc.want, got)
		}
	}
}

func TestAggregateWeightedMean(t *testing.T) {
	items := []domain.SentimentItem{
		{RawPolarity: 0.5, EngagementCount: 200},
		{RawPolarity: -0.2},
		{RawPolarity: 0.05},
		{RawPolarity: 0.4, IsAuthority: true},
	}
	sig := Aggregate(items, DefaultConfig())

	want := (0.5*1.5 - 0.2 + 0.05 + 0.4*2.0) / 4
	if !near(sig.OverallScore, want) {
		t.Fatalf("expected overall %v, got %v", want, sig.OverallScore)
	}
	if sig.Classification != domain.SentimentPositive {
		t.Fatalf("expected positive, got %s", sig.Classification)
	}
	if !near(sig.AuthorityScore, 0.8) || sig.AuthorityClassification != domain.SentimentPositive {
		t.Fatalf("expected authority 0.8 positive, got %v %s", sig.AuthorityScore, sig.AuthorityClassification)
	}
	if sig.PositiveCount != 2 || sig.NegativeCount != 1 || sig.NeutralCount != 1 {
		t.Fatalf("unexpected counts %+v", sig)
	}
	if !near(sig.PositivePct, 50) || !near(sig.NegativePct, 25) || !near(sig.NeutralPct, 25) {
		t.Fatalf("unexpected percentages %+v", sig)
	}
}

func TestAggregateThresholdsAreStrict(t *testing.T) {
	sig := Aggregate([]domain.SentimentItem{{RawPolarity: 0.1}, {RawPolarity: -0.1}}, DefaultConfig())
	if sig.NeutralCount != 2 || sig.Classification != domain.SentimentNeutral {
		t.Fatalf("expected boundary values neutral, got %+v", sig)
	}
}

func TestAggregateNoAuthorityItems(t *testing.T) {
	sig := Aggregate([]domain.SentimentItem{{RawPolarity: -0.9}}, DefaultConfig())
	if sig.Classification != domain.SentimentNegative {
		t.Fatalf("expected negative, got %s", sig.Classification)
	}
	if sig.AuthorityScore != 0 || sig.AuthorityClassification != domain.SentimentNeutral {
		t.Fatalf("expected neutral authority without authority items, got %+v", sig)
	}
}

func TestAggregateTopItems(t *testing.T) {
	items := make([]domain.SentimentItem, 15)
	for i := range items {
		items[i] = domain.SentimentItem{EngagementCount: i}
	}
	sig := Aggregate(items, DefaultConfig())
	if len(sig.TopItems) != TopItemCount {
		t.Fatalf("expected %d top items, got %d", TopItemCount, len(sig.TopItems))
	}
	if sig.TopItems[0].EngagementCount != 14 || sig.TopItems[9].EngagementCount != 5 {
		t.Fatalf("unexpected top items order %+v", sig.TopItems)
	}
	if items[0].EngagementCount != 0 {
		t.Fatal("expected input slice untouched")
	}
}
