package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"

	"crypto-trading-agent/internal/domain"
	"crypto-trading-agent/internal/provider"
	"crypto-trading-agent/internal/sentiment"

	gocache "github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	feedCacheTTL     = 5 * time.Minute
	defaultFeedItems = 40
)

type RedditSearcher interface {
	Search(ctx context.Context, subreddit, query string, limit int, since time.Time) ([]provider.ContentItem, error)
}

type FeedFetcher interface {
	FetchFeed(ctx context.Context, feedURL string, maxItems int) ([]provider.ContentItem, error)
}

type TextScorer interface {
	Score(ctx context.Context, texts []string) ([]sentiment.Polarity, error)
}

type SentimentFeedConfig struct {
	Subreddits []string
	Feeds      []string
	// AuthorityAccounts are author names compared case-insensitively.
	AuthorityAccounts []string
}

// SentimentFeedService implements the social search used by the engine on
// top of reddit search and news feeds. Feed documents are cached for a few
// minutes since every asset of a cycle reads the same feeds.
type SentimentFeedService struct {
	tracer    trace.Tracer
	logger    *zap.Logger
	reddit    RedditSearcher
	feeds     FeedFetcher
	scorer    TextScorer
	cfg       SentimentFeedConfig
	authority map[string]struct{}
	feedCache *gocache.Cache
	now       func() time.Time
}

func NewSentimentFeedService(tracer trace.Tracer, logger *zap.Logger, reddit RedditSearcher, feeds FeedFetcher, scorer TextScorer, cfg SentimentFeedConfig) *SentimentFeedService {
	if logger == nil {
		logger = zap.NewNop()
	}
	authority := make(map[string]struct{}, len(cfg.AuthorityAccounts))
	for _, a := range cfg.AuthorityAccounts {
		if a = normalizeAuthor(a); a != "" {
			authority[a] = struct{}{}
		}
	}
	return &SentimentFeedService{
		tracer:    tracer,
		logger:    logger,
		reddit:    reddit,
		feeds:     feeds,
		scorer:    scorer,
		cfg:       cfg,
		authority: authority,
		feedCache: gocache.New(feedCacheTTL, 2*feedCacheTTL),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Search returns up to maxResults scored items matching query published
// within lookback, newest first. It fails only when every source failed.
func (s *SentimentFeedService) Search(ctx context.Context, query string, maxResults int, lookback time.Duration) ([]domain.SentimentItem, error) {
	ctx, span := s.tracer.Start(ctx, "sentiment-feed.search")
	defer span.End()

	terms := sentiment.QueryTerms(query)
	if len(terms) == 0 {
		return nil, fmt.Errorf("%w: empty sentiment query", domain.ErrInput)
	}
	if maxResults <= 0 {
		maxResults = 200
	}
	var since time.Time
	if lookback > 0 {
		since = s.now().Add(-lookback)
	}

	var (
		content []provider.ContentItem
		errs    []error
		sources int
	)
	if s.reddit != nil {
		for _, sub := range s.subreddits() {
			sources++
			items, err := s.reddit.Search(ctx, sub, query, maxResults, since)
			if err != nil {
				errs = append(errs, fmt.Errorf("reddit %s: %w", sub, err))
				continue
			}
			content = append(content, items...)
		}
	}
	if s.feeds != nil {
		for _, url := range s.cfg.Feeds {
			sources++
			items, err := s.fetchFeed(ctx, url)
			if err != nil {
				errs = append(errs, fmt.Errorf("feed %s: %w", url, err))
				continue
			}
			for _, item := range items {
				if !since.IsZero() && item.PublishedAt.Before(since) {
					continue
				}
				if matchesAny(item.Text(), terms) {
					content = append(content, item)
				}
			}
		}
	}
	span.SetAttributes(attribute.Int("sources", sources), attribute.Int("source_errors", len(errs)))

	if sources > 0 && len(errs) == sources {
		return nil, errors.Join(errs...)
	}
	for _, err := range errs {
		s.logger.Warn("sentiment source failed", zap.String("query", query), zap.Error(err))
	}

	content = dedupe(content)
	sort.SliceStable(content, func(i, j int) bool {
		return content[i].PublishedAt.After(content[j].PublishedAt)
	})
	if len(content) > maxResults {
		content = content[:maxResults]
	}
	return s.score(ctx, content)
}

func (s *SentimentFeedService) subreddits() []string {
	if len(s.cfg.Subreddits) == 0 {
		return []string{""}
	}
	return s.cfg.Subreddits
}

func (s *SentimentFeedService) fetchFeed(ctx context.Context, url string) ([]provider.ContentItem, error) {
	if cached, ok := s.feedCache.Get(url); ok {
		return cached.([]provider.ContentItem), nil
	}
	items, err := s.feeds.FetchFeed(ctx, url, defaultFeedItems)
	if err != nil {
		return nil, err
	}
	s.feedCache.SetDefault(url, items)
	return items, nil
}

func (s *SentimentFeedService) score(ctx context.Context, content []provider.ContentItem) ([]domain.SentimentItem, error) {
	if len(content) == 0 {
		return []domain.SentimentItem{}, nil
	}
	texts := make([]string, len(content))
	for i, c := range content {
		texts[i] = c.Text()
	}
	polarities, err := s.scorer.Score(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("score sentiment: %w", err)
	}

	out := make([]domain.SentimentItem, len(content))
	for i, c := range content {
		out[i] = domain.SentimentItem{
			Text:            texts[i],
			EngagementCount: c.Engagement,
			FollowerCount:   c.Followers,
			IsAuthority:     s.isAuthority(c.Author),
			Source:          c.Source,
			Author:          c.Author,
			PublishedAt:     c.PublishedAt,
		}
	}
	for _, p := range polarities {
		if p.Index >= 0 && p.Index < len(out) {
			out[p.Index].RawPolarity = p.Score
		}
	}
	return out, nil
}

func (s *SentimentFeedService) isAuthority(author string) bool {
	_, ok := s.authority[normalizeAuthor(author)]
	return ok
}

func normalizeAuthor(a string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(a), "@"))
}

func dedupe(items []provider.ContentItem) []provider.ContentItem {
	seen := make(map[string]struct{}, len(items))
	out := items[:0]
	for _, item := range items {
		key := item.Source + ":" + item.SourceItemID
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, item)
	}
	return out
}

// matchesAny reports whether text mentions one of terms. Single word terms
// must match a whole word so that "eth" does not match "method".
func matchesAny(text string, terms []string) bool {
	lower := strings.ToLower(text)
	words := make(map[string]struct{})
	for _, w := range strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		words[w] = struct{}{}
	}
	for _, term := range terms {
		term = strings.ToLower(strings.TrimSpace(term))
		if term == "" {
			continue
		}
		if strings.ContainsAny(term, " -") {
			if strings.Contains(lower, term) {
				return true
			}
			continue
		}
		if _, ok := words[term]; ok {
			return true
		}
	}
	return false
}
