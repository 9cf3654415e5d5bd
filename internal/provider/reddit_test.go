package provider

import (
	"context"
	"net/http"
	"testing"
	"time"

	"go.opentelemetry.io/otel/trace"
)

func TestRedditSearch(t *testing.T) {
	p := NewRedditProvider(trace.NewNoopTracerProvider().Tracer("test"))
	p.baseURL = "https://example.com"
	p.limiter = NewRateLimiter(10, time.Millisecond)
	p.client = &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
		if req.URL.Path != "/r/Bitcoin/search.json" {
			t.Fatalf("unexpected path: %s", req.URL.Path)
		}
		q := req.URL.Query()
		if q.Get("q") != `"BTC" OR "bitcoin"` || q.Get("restrict_sr") != "1" || q.Get("sort") != "new" {
			t.Fatalf("unexpected query: %s", req.URL.RawQuery)
		}
		if req.Header.Get("User-Agent") == "" {
			t.Fatalf("expected user-agent header")
		}
		body := `{"data":{"children":[
			{"data":{"id":"abc123","subreddit":"Bitcoin","title":"BTC breaks out","selftext":"Market is\nmoving up","author":"alice","created_utc":1771009800,"permalink":"/r/Bitcoin/comments/abc123/post","url":"https://example.com/fallback","score":10,"num_comments":3}},
			{"data":{"id":"old1","subreddit":"Bitcoin","title":"old news","created_utc":1000,"score":1}},
			{"data":{"id":"","title":"no id"}}
		]}}`
		return jsonResponse(http.StatusOK, body), nil
	})}

	since := time.Unix(1771000000, 0)
	items, err := p.Search(context.Background(), "Bitcoin", `"BTC" OR "bitcoin"`, 5, since)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 recent item, got %d", len(items))
	}
	item := items[0]
	if item.Source != "reddit" || item.SourceItemID != "abc123" || item.Author != "alice" {
		t.Fatalf("unexpected item: %+v", item)
	}
	if item.URL != "https://example.com/r/Bitcoin/comments/abc123/post" {
		t.Fatalf("unexpected permalink url: %s", item.URL)
	}
	if item.Engagement != 13 || item.Channel != "Bitcoin" {
		t.Fatalf("unexpected engagement/channel: %+v", item)
	}
	if item.Text() != "BTC breaks out Market is moving up" {
		t.Fatalf("unexpected text %q", item.Text())
	}
}

func TestRedditSearchGlobalAndErrors(t *testing.T) {
	p := NewRedditProvider(trace.NewNoopTracerProvider().Tracer("test"))
	p.limiter = nil
	p.client = &http.Client{Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
		if req.URL.Path != "/search.json" {
			t.Fatalf("unexpected path: %s", req.URL.Path)
		}
		return jsonResponse(http.StatusForbidden, "blocked"), nil
	})}

	if _, err := p.Search(context.Background(), "", " ", 5, time.Time{}); err == nil {
		t.Fatal("expected error for empty query")
	}
	if _, err := p.Search(context.Background(), "", "eth", 500, time.Time{}); err == nil {
		t.Fatal("expected API error")
	}
}

func TestTimeWindow(t *testing.T) {
	if got := timeWindow(time.Now().Add(-48 * time.Hour)); got != "week" {
		t.Fatalf("expected week, got %s", got)
	}
	if got := timeWindow(time.Now().Add(-30 * time.Minute)); got != "hour" {
		t.Fatalf("expected hour, got %s", got)
	}
	if got := timeWindow(time.Time{}); got != "week" {
		t.Fatalf("expected week default, got %s", got)
	}
}
