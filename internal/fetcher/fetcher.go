// Package fetcher retrieves engagement items from external providers.
package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"pulse_bot/internal/model"
)

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Item is one content unit returned by a source fetch.
type Item struct {
	ID       string
	Message  string
	Image    string
	Link     string
	PostedAt time.Time
	Metrics  model.Metrics
}

// Provider fetches the current items for a single source.
type Provider interface {
	Fetch(ctx context.Context, src model.Source) ([]Item, error)
}

const defaultPageBaseURL = "https://app.fanpagekarma.com/api/v1"

// PageProvider fetches posts for social pages through the engagement
// metrics API. Each request covers the trailing 24 hours.
type PageProvider struct {
	client  HTTPClient
	baseURL string
	token   string
	now     func() time.Time
}

// NewPageProvider creates a PageProvider with the given HTTP client and API token.
func NewPageProvider(client HTTPClient, token string) *PageProvider {
	return &PageProvider{
		client:  client,
		baseURL: defaultPageBaseURL,
		token:   token,
		now:     time.Now,
	}
}

// SetBaseURL overrides the API endpoint (useful for testing).
func (p *PageProvider) SetBaseURL(u string) {
	p.baseURL = u
}

type pageResponse struct {
	Posts []pagePost `json:"posts"`
}

type pagePost struct {
	ID      string  `json:"id"`
	Message string  `json:"message"`
	Image   string  `json:"image"`
	Link    string  `json:"link"`
	Date    string  `json:"date"`
	KPI     pageKPI `json:"kpi"`
}

type pageKPI struct {
	Reactions kpiValue `json:"page_posts_reactions"`
	Comments  kpiValue `json:"page_posts_comments_count"`
	Shares    kpiValue `json:"page_posts_shares_count"`
}

type kpiValue struct {
	Value int64 `json:"value"`
}

// Fetch downloads the posts of the trailing 24 hours for a page source.
// A missing API token is reported as an error so the caller can isolate
// the source like any other fetch failure.
func (p *PageProvider) Fetch(ctx context.Context, src model.Source) ([]Item, error) {
	if p.token == "" {
		return nil, fmt.Errorf("metrics API token is not configured")
	}

	now := p.now().UTC()
	period := fmt.Sprintf("%s_%s",
		now.Add(-24*time.Hour).Format("2006-01-02"),
		now.Format("2006-01-02"),
	)
	url := fmt.Sprintf("%s/%s/%s/posts?token=%s&period=%s",
		p.baseURL, src.Network, src.ProfileID, p.token, period)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
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

	var parsed pageResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	items := make([]Item, 0, len(parsed.Posts))
	for _, post := range parsed.Posts {
		items = append(items, Item{
			ID:       post.ID,
			Message:  post.Message,
			Image:    post.Image,
			Link:     post.Link,
			PostedAt: parsePostDate(post.Date),
			Metrics: model.Metrics{
				Reactions: post.KPI.Reactions.Value,
				Comments:  post.KPI.Comments.Value,
				Shares:    post.KPI.Shares.Value,
			},
		})
	}
	return items, nil
}

func parsePostDate(s string) time.Time {
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
