package provider

import (
	"strings"
	"time"
)

// ContentItem is a post or article fetched from a social or news source.
type ContentItem struct {
	Source       string
	SourceItemID string
	Title        string
	URL          string
	Excerpt      string
	Author       string
	PublishedAt  time.Time
	Engagement   int
	Followers    int
	Channel      string
}

// Text is the title and excerpt joined for scoring.
func (c ContentItem) Text() string {
	return strings.TrimSpace(c.Title + " " + c.Excerpt)
}

func sanitizeText(in string, maxLen int) string {
	in = strings.TrimSpace(in)
	if in == "" {
		return ""
	}
	in = strings.Join(strings.Fields(in), " ")
	if maxLen > 0 && len(in) > maxLen {
		in = in[:maxLen]
	}
	return in
}
