package fetcher

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"

	"pulse_bot/internal/model"
)

// FeedProvider fetches items from RSS/Atom feeds. Engagement counts are
// taken from media RSS extensions when the feed carries them (YouTube
// channel feeds publish view and rating statistics this way).
type FeedProvider struct {
	client HTTPClient
}

// NewFeedProvider creates a FeedProvider with the given HTTP client.
func NewFeedProvider(client HTTPClient) *FeedProvider {
	return &FeedProvider{client: client}
}

// Fetch downloads and parses the feed behind a source. The source's
// ProfileID is the feed URL.
func (p *FeedProvider) Fetch(ctx context.Context, src model.Source) ([]Item, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.ProfileID, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "PulseBot/1.0")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 5*1024*1024))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	parser := gofeed.NewParser()
	feed, err := parser.ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	items := make([]Item, 0, len(feed.Items))
	for _, fi := range feed.Items {
		var postedAt time.Time
		if fi.PublishedParsed != nil {
			postedAt = *fi.PublishedParsed
		}
		var image string
		if fi.Image != nil {
			image = fi.Image.URL
		}
		items = append(items, Item{
			ID:       ItemGUID(fi),
			Message:  fi.Title,
			Image:    image,
			Link:     fi.Link,
			PostedAt: postedAt,
			Metrics:  mediaMetrics(fi),
		})
	}
	return items, nil
}

// ItemGUID returns the GUID for a feed item.
// If the item has no GUID, a SHA-256 hash of title+link is used.
func ItemGUID(item *gofeed.Item) string {
	if item.GUID != "" {
		return item.GUID
	}
	h := sha256.Sum256([]byte(item.Title + "|" + item.Link))
	return fmt.Sprintf("sha256:%x", h[:16])
}

// mediaMetrics extracts engagement counts from the media RSS community
// block (media:group > media:community). Views map to the primary
// reactions count, star ratings to comments. Feeds without the extension
// yield zero metrics.
func mediaMetrics(item *gofeed.Item) model.Metrics {
	var m model.Metrics
	community := findMediaCommunity(item)
	if community == nil {
		return m
	}
	if stats, ok := firstChild(community, "statistics"); ok {
		m.Reactions = parseAttr(stats, "views")
	}
	if rating, ok := firstChild(community, "starRating"); ok {
		m.Comments = parseAttr(rating, "count")
	}
	return m
}

func findMediaCommunity(item *gofeed.Item) *ext.Extension {
	media, ok := item.Extensions["media"]
	if !ok {
		return nil
	}
	if groups, ok := media["group"]; ok && len(groups) > 0 {
		if community, ok := firstChild(&groups[0], "community"); ok {
			return community
		}
	}
	if communities, ok := media["community"]; ok && len(communities) > 0 {
		return &communities[0]
	}
	return nil
}

func firstChild(e *ext.Extension, name string) (*ext.Extension, bool) {
	children, ok := e.Children[name]
	if !ok || len(children) == 0 {
		return nil, false
	}
	return &children[0], true
}

func parseAttr(e *ext.Extension, name string) int64 {
	v, err := strconv.ParseInt(e.Attrs[name], 10, 64)
	if err != nil {
		return 0
	}
	return v
}
