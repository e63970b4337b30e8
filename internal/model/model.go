// Package model defines the domain types used across the application.
package model

import "time"

// SourceKind identifies which fetch provider serves a source.
type SourceKind string

// Supported source kinds.
const (
	// KindPage is a social page polled through the engagement metrics API.
	KindPage SourceKind = "page"
	// KindFeed is an RSS/Atom feed polled directly.
	KindFeed SourceKind = "feed"
)

// Source represents one externally configured feed being polled.
// Sources are created and edited through the bot surface; the polling
// core only reads them.
type Source struct {
	ID             int64
	Kind           SourceKind
	ProfileID      string // opaque endpoint identity passed to the provider
	Name           string
	Network        string // page kind only: facebook, instagram, ...
	AlertThreshold *int64 // nil disables alerting for this source
	AlertEnabled   bool
	Color          string // display metadata, not used by the core
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Metrics holds the engagement counts of a single item. Reactions is the
// primary count used for alerting; comments and shares are secondary.
type Metrics struct {
	Reactions int64
	Comments  int64
	Shares    int64
}

// Post is the cached snapshot of one fetched item from one source.
// The cache key is (SourceID, ExternalID). Previous holds the metrics as of
// the prior cycle in which the item was seen; on first sight it equals
// Current.
type Post struct {
	ExternalID    string
	SourceID      int64
	Message       string
	Image         string
	Link          string
	PostedAt      time.Time
	Current       Metrics
	Previous      Metrics
	FirstSeenAt   time.Time
	LastUpdatedAt time.Time
}

// Alert records one threshold crossing. At most one alert exists per
// (SourceID, PostID) pair.
type Alert struct {
	ID          int64
	SourceID    int64
	PostID      string
	Reactions   int64 // observed value at trigger time
	Threshold   int64
	PostLink    string
	PostMessage string
	PostedAt    time.Time
	TriggeredAt time.Time
	IsRead      bool
}

// Run statuses recorded after each cycle.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// RunState is the process-wide monitoring state. It is mutated by the
// scheduler and the offset controller and read by the bot for display.
type RunState struct {
	Active          bool
	LastRunAt       *time.Time
	LastStatus      string
	LastFingerprint string
	OffsetSeconds   int
	DismissedPosts  string // JSON array of post IDs, opaque to the core
}
