package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	redditBaseURL     = "https://www.reddit.com"
	defaultRedditUA   = "crypto-trading-agent/1.0"
	defaultRedditSize = 50
)

type RedditProvider struct {
	client    *http.Client
	baseURL   string
	userAgent string
	tracer    trace.Tracer
	limiter   *RateLimiter
}

// NewRedditProvider allows a burst of 10 requests and one more every 6s,
// inside the unauthenticated listing quota.
func NewRedditProvider(tracer trace.Tracer) *RedditProvider {
	return &RedditProvider{
		client:    &http.Client{Timeout: 20 * time.Second},
		baseURL:   redditBaseURL,
		userAgent: defaultRedditUA,
		tracer:    tracer,
		limiter:   NewRateLimiter(10, 6*time.Second),
	}
}

// Search runs query against one subreddit, or all of reddit when subreddit
// is empty, newest first. Posts older than since are dropped.
func (p *RedditProvider) Search(ctx context.Context, subreddit, query string, limit int, since time.Time) ([]ContentItem, error) {
	ctx, span := p.tracer.Start(ctx, "reddit.search")
	defer span.End()
	span.SetAttributes(attribute.String("subreddit", subreddit))

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("query is required")
	}
	if limit <= 0 {
		limit = defaultRedditSize
	}
	if limit > 100 {
		limit = 100
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("sort", "new")
	params.Set("t", timeWindow(since))
	params.Set("limit", fmt.Sprintf("%d", limit))

	base := strings.TrimRight(p.baseURL, "/")
	path := "/search.json"
	if sub := strings.TrimSpace(subreddit); sub != "" {
		path = "/r/" + url.PathEscape(sub) + "/search.json"
		params.Set("restrict_sr", "1")
	}

	items, err := p.fetchListing(ctx, base, base+path+"?"+params.Encode())
	if err != nil {
		return nil, err
	}
	if since.IsZero() {
		return items, nil
	}
	out := items[:0]
	for _, item := range items {
		if !item.PublishedAt.Before(since) {
			out = append(out, item)
		}
	}
	return out, nil
}

func (p *RedditProvider) fetchListing(ctx context.Context, base, u string) ([]ContentItem, error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if p.userAgent != "" {
		req.Header.Set("User-Agent", p.userAgent)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("reddit API error %d: %s", resp.StatusCode, string(body))
	}

	var payload struct {
		Data struct {
			Children []struct {
				Data struct {
					ID          string  `json:"id"`
					Subreddit   string  `json:"subreddit"`
					Title       string  `json:"title"`
					SelfText    string  `json:"selftext"`
					Author      string  `json:"author"`
					CreatedUTC  float64 `json:"created_utc"`
					Permalink   string  `json:"permalink"`
					URL         string  `json:"url"`
					Score       float64 `json:"score"`
					NumComments float64 `json:"num_comments"`
				} `json:"data"`
			} `json:"children"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode reddit response: %w", err)
	}

	items := make([]ContentItem, 0, len(payload.Data.Children))
	for _, row := range payload.Data.Children {
		data := row.Data
		if strings.TrimSpace(data.ID) == "" || strings.TrimSpace(data.Title) == "" {
			continue
		}
		itemURL := strings.TrimSpace(data.URL)
		if permalink := strings.TrimSpace(data.Permalink); permalink != "" {
			itemURL = base + permalink
		}
		engagement := int(data.Score + data.NumComments)
		if engagement < 0 {
			engagement = 0
		}
		items = append(items, ContentItem{
			Source:       "reddit",
			SourceItemID: data.ID,
			Title:        sanitizeText(data.Title, 300),
			URL:          itemURL,
			Excerpt:      sanitizeText(data.SelfText, 420),
			Author:       sanitizeText(data.Author, 120),
			PublishedAt:  time.Unix(int64(data.CreatedUTC), 0).UTC(),
			Engagement:   engagement,
			Channel:      strings.TrimSpace(data.Subreddit),
		})
	}
	return items, nil
}

// timeWindow maps a lookback start to reddit's coarse t parameter.
func timeWindow(since time.Time) string {
	if since.IsZero() {
		return "week"
	}
	switch age := time.Since(since); {
	case age <= time.Hour:
		return "hour"
	case age <= 24*time.Hour:
		return "day"
	case age <= 7*24*time.Hour:
		return "week"
	case age <= 31*24*time.Hour:
		return "month"
	default:
		return "year"
	}
}
