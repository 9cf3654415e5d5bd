package provider

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	"go.opentelemetry.io/otel/trace"
)

// FeedProvider reads RSS, Atom and JSON feeds.
type FeedProvider struct {
	client *http.Client
	tracer trace.Tracer
	now    func() time.Time
}

func NewFeedProvider(tracer trace.Tracer) *FeedProvider {
	return &FeedProvider{
		client: &http.Client{Timeout: 20 * time.Second},
		tracer: tracer,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// FetchFeed returns up to maxItems entries of feedURL.
func (p *FeedProvider) FetchFeed(ctx context.Context, feedURL string, maxItems int) ([]ContentItem, error) {
	ctx, span := p.tracer.Start(ctx, "feed.fetch")
	defer span.End()

	feedURL = strings.TrimSpace(feedURL)
	if feedURL == "" {
		return nil, fmt.Errorf("feed url is required")
	}
	if maxItems <= 0 {
		maxItems = 40
	}

	parser := gofeed.NewParser()
	parser.Client = p.client
	parser.UserAgent = defaultRedditUA
	feed, err := parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", feedURL, err)
	}

	items := make([]ContentItem, 0, min(maxItems, len(feed.Items)))
	for _, row := range feed.Items {
		if len(items) >= maxItems {
			break
		}
		title := sanitizeText(row.Title, 300)
		if title == "" {
			continue
		}
		publishedAt := p.now()
		if row.PublishedParsed != nil {
			publishedAt = row.PublishedParsed.UTC()
		} else if row.UpdatedParsed != nil {
			publishedAt = row.UpdatedParsed.UTC()
		}

		sourceID := sanitizeText(row.GUID, 250)
		if sourceID == "" {
			sourceID = sanitizeText(row.Link, 250)
		}
		if sourceID == "" {
			h := sha1.Sum([]byte(title + "|" + publishedAt.Format(time.RFC3339Nano)))
			sourceID = hex.EncodeToString(h[:])
		}

		items = append(items, ContentItem{
			Source:       "news",
			SourceItemID: sourceID,
			Title:        title,
			URL:          sanitizeText(row.Link, 500),
			Excerpt:      sanitizeText(htmlStrip(row.Description), 420),
			Author:       feedAuthor(row),
			PublishedAt:  publishedAt,
			Channel:      sanitizeText(feed.Title, 120),
		})
	}
	return items, nil
}

func feedAuthor(item *gofeed.Item) string {
	for _, a := range item.Authors {
		if a != nil && strings.TrimSpace(a.Name) != "" {
			return sanitizeText(a.Name, 120)
		}
	}
	if item.DublinCoreExt != nil && len(item.DublinCoreExt.Creator) > 0 {
		return sanitizeText(item.DublinCoreExt.Creator[0], 120)
	}
	return ""
}

func htmlStrip(in string) string {
	if strings.TrimSpace(in) == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(in))
	if err != nil {
		return in
	}
	return doc.Text()
}
