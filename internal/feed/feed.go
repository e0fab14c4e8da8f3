// Package feed pulls candidate items from the allowlisted RSS/Atom endpoints.
package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/coinbrief/ingestor/internal/config"
)

const userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/127.0 Safari/537.36"

// Item is a candidate article pulled from a feed. PublishedAt is nil when
// the feed carried no parseable timestamp; such items cannot be judged
// fresh and the policy drops them.
type Item struct {
	SourceName  string
	SourceType  string
	URL         string
	Title       string
	PublishedAt *time.Time
}

// Client fetches and parses feeds with a bounded per-call timeout, so one
// stuck endpoint cannot hang the run.
type Client struct {
	parser  *gofeed.Parser
	timeout time.Duration
}

func NewClient(timeout time.Duration) *Client {
	parser := gofeed.NewParser()
	parser.UserAgent = userAgent
	return &Client{parser: parser, timeout: timeout}
}

// Fetch downloads one feed and returns up to limit candidate items.
func (c *Client) Fetch(ctx context.Context, src config.Source, limit int) ([]Item, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	parsed, err := c.parser.ParseURLWithContext(src.RSS, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", src.RSS, err)
	}

	return itemsFromFeed(src, parsed, limit), nil
}

func itemsFromFeed(src config.Source, parsed *gofeed.Feed, limit int) []Item {
	entries := parsed.Items
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}

	items := make([]Item, 0, len(entries))
	for _, e := range entries {
		if e.Link == "" {
			continue
		}
		items = append(items, Item{
			SourceName:  src.Name,
			SourceType:  src.Type,
			URL:         e.Link,
			Title:       e.Title,
			PublishedAt: publishedUTC(e),
		})
	}
	return items
}

// publishedUTC normalizes whichever timestamp the feed carries to UTC.
// gofeed already parses the common RSS/Atom date formats; anything it could
// not parse stays nil rather than becoming a zero time.
func publishedUTC(e *gofeed.Item) *time.Time {
	raw := e.PublishedParsed
	if raw == nil {
		raw = e.UpdatedParsed
	}
	if raw == nil {
		return nil
	}
	utc := raw.UTC()
	return &utc
}
