package feed

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coinbrief/ingestor/internal/config"
)

const rssDoc = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
<title>Test Feed</title>
<item>
  <title>Dated story</title>
  <link>https://news.test/dated</link>
  <pubDate>Mon, 03 Mar 2025 10:15:00 GMT</pubDate>
</item>
<item>
  <title>Undated story</title>
  <link>https://news.test/undated</link>
</item>
<item>
  <title>Garbage date story</title>
  <link>https://news.test/garbage</link>
  <pubDate>sometime last week</pubDate>
</item>
<item>
  <title>No link</title>
</item>
</channel>
</rss>`

func serveFeed(t *testing.T, body string) config.Source {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return config.Source{Name: "Test", Type: "crypto_media", RSS: srv.URL}
}

func TestFetchNormalizesDatesAndDropsLinklessEntries(t *testing.T) {
	src := serveFeed(t, rssDoc)
	client := NewClient(5 * time.Second)

	items, err := client.Fetch(context.Background(), src, 20)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("got %d items, want 3 (linkless entry dropped)", len(items))
	}

	dated := items[0]
	if dated.PublishedAt == nil {
		t.Fatal("RFC822 pubDate was not parsed")
	}
	want := time.Date(2025, 3, 3, 10, 15, 0, 0, time.UTC)
	if !dated.PublishedAt.Equal(want) {
		t.Errorf("published = %v, want %v (UTC)", dated.PublishedAt, want)
	}
	if dated.PublishedAt.Location() != time.UTC {
		t.Errorf("published timestamp not normalized to UTC: %v", dated.PublishedAt.Location())
	}

	if items[1].PublishedAt != nil {
		t.Errorf("undated entry got timestamp %v, want nil", items[1].PublishedAt)
	}
	if items[2].PublishedAt != nil {
		t.Errorf("garbage date parsed to %v, want nil", items[2].PublishedAt)
	}

	if items[0].SourceName != "Test" || items[0].SourceType != "crypto_media" {
		t.Errorf("source attribution missing: %+v", items[0])
	}
}

func TestFetchHonorsPerFeedLimit(t *testing.T) {
	src := serveFeed(t, rssDoc)
	client := NewClient(5 * time.Second)

	items, err := client.Fetch(context.Background(), src, 1)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(items) != 1 {
		t.Errorf("got %d items, want 1", len(items))
	}
}

func TestFetchUnreachableFeedFails(t *testing.T) {
	src := config.Source{Name: "Dead", RSS: "http://127.0.0.1:1/feed"}
	client := NewClient(2 * time.Second)

	if _, err := client.Fetch(context.Background(), src, 20); err == nil {
		t.Fatal("expected an error for an unreachable feed")
	}
}
