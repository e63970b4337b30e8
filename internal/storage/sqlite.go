package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration.

	"pulse_bot/internal/model"
	"pulse_bot/migrations"
)

const timeLayout = "2006-01-02T15:04:05Z"

// SQLite implements Storage backed by a SQLite database.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=OFF"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("disable foreign keys: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// CreateSource inserts a new source and populates its ID and timestamps.
func (s *SQLite) CreateSource(ctx context.Context, src *model.Source) error {
	now := time.Now().UTC().Format(timeLayout)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO sources (kind, profile_id, name, network, alert_threshold, alert_enabled, color, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(src.Kind), src.ProfileID, src.Name, src.Network, src.AlertThreshold,
		boolToInt(src.AlertEnabled), src.Color, now, now,
	)
	if err != nil {
		return fmt.Errorf("insert source: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	src.ID = id
	src.CreatedAt, _ = time.Parse(timeLayout, now)
	src.UpdatedAt = src.CreatedAt
	return nil
}

// GetSource returns a single source by its ID.
func (s *SQLite) GetSource(ctx context.Context, id int64) (*model.Source, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, kind, profile_id, name, network, alert_threshold, alert_enabled, color, created_at, updated_at
		 FROM sources WHERE id = ?`, id,
	)
	return scanSource(row)
}

// ListSources returns all configured sources.
func (s *SQLite) ListSources(ctx context.Context) ([]model.Source, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, kind, profile_id, name, network, alert_threshold, alert_enabled, color, created_at, updated_at
		 FROM sources ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("query sources: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var sources []model.Source
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, err
		}
		sources = append(sources, *src)
	}
	return sources, rows.Err()
}

// UpdateSource persists changes to an existing source.
func (s *SQLite) UpdateSource(ctx context.Context, src *model.Source) error {
	now := time.Now().UTC().Format(timeLayout)
	_, err := s.db.ExecContext(ctx,
		`UPDATE sources SET name = ?, network = ?, alert_threshold = ?, alert_enabled = ?, color = ?, updated_at = ?
		 WHERE id = ?`,
		src.Name, src.Network, src.AlertThreshold, boolToInt(src.AlertEnabled), src.Color, now, src.ID,
	)
	if err != nil {
		return fmt.Errorf("update source: %w", err)
	}
	src.UpdatedAt, _ = time.Parse(timeLayout, now)
	return nil
}

// DeleteSource removes a source. Its cached posts are left in place;
// pruning is handled by the daily reset.
func (s *SQLite) DeleteSource(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sources WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete source: %w", err)
	}
	return nil
}

// UpsertPost inserts or updates a cached snapshot and returns the previous
// metrics. On first sight the previous metrics equal the incoming current
// metrics.
func (s *SQLite) UpsertPost(ctx context.Context, post *model.Post) (model.Metrics, error) {
	now := time.Now().UTC()
	nowStr := now.Format(timeLayout)

	var existing model.Metrics
	var firstSeen string
	err := s.db.QueryRowContext(ctx,
		`SELECT reactions, comments, shares, first_seen_at FROM posts WHERE source_id = ? AND external_id = ?`,
		post.SourceID, post.ExternalID,
	).Scan(&existing.Reactions, &existing.Comments, &existing.Shares, &firstSeen)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		post.Previous = post.Current
		post.FirstSeenAt = now
		post.LastUpdatedAt = now
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO posts (external_id, source_id, message, image, link, posted_at,
			                    reactions, comments, shares, prev_reactions, prev_comments, prev_shares,
			                    first_seen_at, last_updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			post.ExternalID, post.SourceID, post.Message, post.Image, post.Link,
			post.PostedAt.UTC().Format(timeLayout),
			post.Current.Reactions, post.Current.Comments, post.Current.Shares,
			post.Previous.Reactions, post.Previous.Comments, post.Previous.Shares,
			nowStr, nowStr,
		)
		if err != nil {
			return model.Metrics{}, fmt.Errorf("insert post: %w", err)
		}
		return post.Previous, nil
	case err != nil:
		return model.Metrics{}, fmt.Errorf("read post: %w", err)
	}

	post.Previous = existing
	post.FirstSeenAt, _ = time.Parse(timeLayout, firstSeen)
	post.LastUpdatedAt = now
	_, err = s.db.ExecContext(ctx,
		`UPDATE posts SET message = ?, image = ?, link = ?, posted_at = ?,
		        reactions = ?, comments = ?, shares = ?,
		        prev_reactions = ?, prev_comments = ?, prev_shares = ?,
		        last_updated_at = ?
		 WHERE source_id = ? AND external_id = ?`,
		post.Message, post.Image, post.Link, post.PostedAt.UTC().Format(timeLayout),
		post.Current.Reactions, post.Current.Comments, post.Current.Shares,
		existing.Reactions, existing.Comments, existing.Shares,
		nowStr, post.SourceID, post.ExternalID,
	)
	if err != nil {
		return model.Metrics{}, fmt.Errorf("update post: %w", err)
	}
	return existing, nil
}

// ListPosts returns all cached posts for the given source.
func (s *SQLite) ListPosts(ctx context.Context, sourceID int64) ([]model.Post, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT external_id, source_id, message, image, link, posted_at,
		        reactions, comments, shares, prev_reactions, prev_comments, prev_shares,
		        first_seen_at, last_updated_at
		 FROM posts WHERE source_id = ? ORDER BY posted_at DESC`, sourceID,
	)
	if err != nil {
		return nil, fmt.Errorf("query posts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var posts []model.Post
	for rows.Next() {
		var p model.Post
		var postedAt, firstSeen, lastUpdated string
		err := rows.Scan(&p.ExternalID, &p.SourceID, &p.Message, &p.Image, &p.Link, &postedAt,
			&p.Current.Reactions, &p.Current.Comments, &p.Current.Shares,
			&p.Previous.Reactions, &p.Previous.Comments, &p.Previous.Shares,
			&firstSeen, &lastUpdated)
		if err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		p.PostedAt, _ = time.Parse(timeLayout, postedAt)
		p.FirstSeenAt, _ = time.Parse(timeLayout, firstSeen)
		p.LastUpdatedAt, _ = time.Parse(timeLayout, lastUpdated)
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

// DeletePostsByKind removes cached posts belonging to sources of one kind.
func (s *SQLite) DeletePostsByKind(ctx context.Context, kind model.SourceKind) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM posts WHERE source_id IN (SELECT id FROM sources WHERE kind = ?)`,
		string(kind),
	)
	if err != nil {
		return fmt.Errorf("delete posts by kind: %w", err)
	}
	return nil
}

// DeleteAllPosts empties the post cache across all sources and reports how
// many rows were removed.
func (s *SQLite) DeleteAllPosts(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM posts`)
	if err != nil {
		return 0, fmt.Errorf("delete all posts: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// CreateAlert inserts a new alert and populates its ID and TriggeredAt.
func (s *SQLite) CreateAlert(ctx context.Context, a *model.Alert) error {
	now := time.Now().UTC().Format(timeLayout)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO alerts (source_id, post_id, reactions, threshold, post_link, post_message, posted_at, triggered_at, is_read)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0)`,
		a.SourceID, a.PostID, a.Reactions, a.Threshold, a.PostLink, a.PostMessage,
		a.PostedAt.UTC().Format(timeLayout), now,
	)
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	a.ID = id
	a.TriggeredAt, _ = time.Parse(timeLayout, now)
	return nil
}

// AlertExists checks whether an alert already exists for the post.
func (s *SQLite) AlertExists(ctx context.Context, sourceID int64, postID string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM alerts WHERE source_id = ? AND post_id = ?`,
		sourceID, postID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check alert: %w", err)
	}
	return count > 0, nil
}

// ListAlerts returns the most recent alerts, newest first.
func (s *SQLite) ListAlerts(ctx context.Context, limit int) ([]model.Alert, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source_id, post_id, reactions, threshold, post_link, post_message, posted_at, triggered_at, is_read
		 FROM alerts ORDER BY triggered_at DESC, id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var alerts []model.Alert
	for rows.Next() {
		var a model.Alert
		var isRead int
		var postedAt, triggeredAt string
		err := rows.Scan(&a.ID, &a.SourceID, &a.PostID, &a.Reactions, &a.Threshold,
			&a.PostLink, &a.PostMessage, &postedAt, &triggeredAt, &isRead)
		if err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		a.IsRead = isRead == 1
		a.PostedAt, _ = time.Parse(timeLayout, postedAt)
		a.TriggeredAt, _ = time.Parse(timeLayout, triggeredAt)
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// MarkAlertRead sets the read flag on an alert.
func (s *SQLite) MarkAlertRead(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE alerts SET is_read = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("mark alert read: %w", err)
	}
	return nil
}

// UnreadAlertCount returns the number of unread alerts.
func (s *SQLite) UnreadAlertCount(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM alerts WHERE is_read = 0`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count unread alerts: %w", err)
	}
	return count, nil
}

// DeleteAlert removes an alert by its ID.
func (s *SQLite) DeleteAlert(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM alerts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete alert: %w", err)
	}
	return nil
}

// GetRunState returns the singleton run state row.
func (s *SQLite) GetRunState(ctx context.Context) (*model.RunState, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT active, last_run_at, last_status, last_fingerprint, offset_seconds, dismissed_posts
		 FROM run_state WHERE id = 1`,
	)
	var st model.RunState
	var active int
	var lastRun sql.NullString
	err := row.Scan(&active, &lastRun, &st.LastStatus, &st.LastFingerprint, &st.OffsetSeconds, &st.DismissedPosts)
	if err != nil {
		return nil, fmt.Errorf("scan run state: %w", err)
	}
	st.Active = active == 1
	if lastRun.Valid {
		t, _ := time.Parse(timeLayout, lastRun.String)
		st.LastRunAt = &t
	}
	return &st, nil
}

// SetActive updates the monitoring active flag.
func (s *SQLite) SetActive(ctx context.Context, active bool) error {
	return s.setStateField(ctx, `UPDATE run_state SET active = ? WHERE id = 1`, boolToInt(active))
}

// SetLastRun records the time and status of the last cycle.
func (s *SQLite) SetLastRun(ctx context.Context, at time.Time, status string) error {
	return s.setStateField(ctx,
		`UPDATE run_state SET last_run_at = ?, last_status = ? WHERE id = 1`,
		at.UTC().Format(timeLayout), status)
}

// SetFingerprint stores the fingerprint of the last fetched batch.
func (s *SQLite) SetFingerprint(ctx context.Context, fp string) error {
	return s.setStateField(ctx, `UPDATE run_state SET last_fingerprint = ? WHERE id = 1`, fp)
}

// SetOffset stores the current adaptive offset in seconds.
func (s *SQLite) SetOffset(ctx context.Context, seconds int) error {
	return s.setStateField(ctx, `UPDATE run_state SET offset_seconds = ? WHERE id = 1`, seconds)
}

// SetDismissedPosts stores the opaque dismissed-posts blob.
func (s *SQLite) SetDismissedPosts(ctx context.Context, raw string) error {
	return s.setStateField(ctx, `UPDATE run_state SET dismissed_posts = ? WHERE id = 1`, raw)
}

func (s *SQLite) setStateField(ctx context.Context, query string, args ...any) error {
	_, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update run state: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

type scannable interface {
	Scan(dest ...any) error
}

func scanSource(row scannable) (*model.Source, error) {
	var src model.Source
	var kind string
	var threshold sql.NullInt64
	var enabled int
	var created, updated string
	err := row.Scan(&src.ID, &kind, &src.ProfileID, &src.Name, &src.Network,
		&threshold, &enabled, &src.Color, &created, &updated)
	if err != nil {
		return nil, fmt.Errorf("scan source: %w", err)
	}
	src.Kind = model.SourceKind(kind)
	if threshold.Valid {
		v := threshold.Int64
		src.AlertThreshold = &v
	}
	src.AlertEnabled = enabled == 1
	src.CreatedAt, _ = time.Parse(timeLayout, created)
	src.UpdatedAt, _ = time.Parse(timeLayout, updated)
	return &src, nil
}
