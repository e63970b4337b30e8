// Package storage defines the persistence interface and its implementations.
package storage

import (
	"context"
	"time"

	"pulse_bot/internal/model"
)

// Storage is the interface for all persistence operations.
type Storage interface {
	CreateSource(ctx context.Context, src *model.Source) error
	GetSource(ctx context.Context, id int64) (*model.Source, error)
	ListSources(ctx context.Context) ([]model.Source, error)
	UpdateSource(ctx context.Context, src *model.Source) error
	DeleteSource(ctx context.Context, id int64) error

	// UpsertPost writes a snapshot using read-modify-write semantics: if the
	// post already exists its stored current metrics become the previous
	// metrics of the new record. The previous metrics are returned so callers
	// can compute deltas without a second read.
	UpsertPost(ctx context.Context, post *model.Post) (model.Metrics, error)
	ListPosts(ctx context.Context, sourceID int64) ([]model.Post, error)
	DeletePostsByKind(ctx context.Context, kind model.SourceKind) error
	DeleteAllPosts(ctx context.Context) (int64, error)

	CreateAlert(ctx context.Context, a *model.Alert) error
	AlertExists(ctx context.Context, sourceID int64, postID string) (bool, error)
	ListAlerts(ctx context.Context, limit int) ([]model.Alert, error)
	MarkAlertRead(ctx context.Context, id int64) error
	UnreadAlertCount(ctx context.Context) (int, error)
	DeleteAlert(ctx context.Context, id int64) error

	GetRunState(ctx context.Context) (*model.RunState, error)
	SetActive(ctx context.Context, active bool) error
	SetLastRun(ctx context.Context, at time.Time, status string) error
	SetFingerprint(ctx context.Context, fp string) error
	SetOffset(ctx context.Context, seconds int) error
	SetDismissedPosts(ctx context.Context, raw string) error

	Close() error
}
