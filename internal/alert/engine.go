// Package alert implements the threshold alert rule engine.
package alert

import (
	"context"
	"fmt"
	"time"

	"pulse_bot/internal/fetcher"
	"pulse_bot/internal/model"
	"pulse_bot/internal/storage"
)

// RecencyWindow bounds how old an item may be to still trigger an alert.
// Older items stay above threshold in every fetched batch and must not
// re-alert forever.
const RecencyWindow = 10 * time.Minute

// Engine evaluates fetched items against their source's alert rule.
type Engine struct {
	store storage.Storage
	now   func() time.Time
}

// New creates an Engine backed by the given storage.
func New(store storage.Storage) *Engine {
	return &Engine{store: store, now: time.Now}
}

// SetNow overrides the clock (useful for testing).
func (e *Engine) SetNow(now func() time.Time) {
	e.now = now
}

// Evaluate fires an alert for the item if the source has alerting enabled,
// a threshold configured, the primary count has reached it, and the item is
// recent. Returns the created alert, or nil when no alert was due.
// Deduplication is an existence check: the scheduler guarantees cycles do
// not run concurrently.
func (e *Engine) Evaluate(ctx context.Context, src model.Source, item fetcher.Item) (*model.Alert, error) {
	if !src.AlertEnabled || src.AlertThreshold == nil {
		return nil, nil
	}
	if item.Metrics.Reactions < *src.AlertThreshold {
		return nil, nil
	}
	if item.PostedAt.Before(e.now().Add(-RecencyWindow)) {
		return nil, nil
	}

	exists, err := e.store.AlertExists(ctx, src.ID, item.ID)
	if err != nil {
		return nil, fmt.Errorf("check existing alert: %w", err)
	}
	if exists {
		return nil, nil
	}

	a := &model.Alert{
		SourceID:    src.ID,
		PostID:      item.ID,
		Reactions:   item.Metrics.Reactions,
		Threshold:   *src.AlertThreshold,
		PostLink:    item.Link,
		PostMessage: item.Message,
		PostedAt:    item.PostedAt,
	}
	if err := e.store.CreateAlert(ctx, a); err != nil {
		return nil, fmt.Errorf("create alert: %w", err)
	}
	return a, nil
}
