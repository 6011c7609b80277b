package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var _ FeedRepository = (*feedRepository)(nil)

type feedRepository struct {
	db *DB
}

func NewFeedRepository(db *DB) FeedRepository {
	return &feedRepository{db: db}
}

func (r *feedRepository) CreateFeed(ctx context.Context, url, label string) (*Feed, error) {
	now := time.Now().UTC()
	feed := &Feed{
		ID:        uuid.NewString(),
		URL:       url,
		Label:     label,
		Enabled:   true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO feeds (id, url, label, enabled, created_at, updated_at)
		VALUES (?, ?, ?, 1, ?, ?)
	`, feed.ID, feed.URL, feed.Label, now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create feed: %w", err)
	}

	return feed, nil
}

func (r *feedRepository) DeleteFeed(ctx context.Context, url string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM feeds WHERE url = ?`, url)
	if err != nil {
		return fmt.Errorf("failed to delete feed: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("feed not found: %s", url)
	}

	return nil
}

const feedColumns = `id, url, label, language, enabled, last_ok_at, last_error_at, last_error_msg, created_at, updated_at`

func (r *feedRepository) scanFeed(row *sql.Row) (*Feed, error) {
	var feed Feed
	err := row.Scan(
		&feed.ID, &feed.URL, &feed.Label, &feed.Language, &feed.Enabled,
		&feed.LastOKAt, &feed.LastErrorAt, &feed.LastErrorMsg,
		&feed.CreatedAt, &feed.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan feed: %w", err)
	}
	return &feed, nil
}

func (r *feedRepository) GetFeed(ctx context.Context, id string) (*Feed, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+feedColumns+` FROM feeds WHERE id = ?`, id)
	return r.scanFeed(row)
}

func (r *feedRepository) GetFeedByURL(ctx context.Context, url string) (*Feed, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+feedColumns+` FROM feeds WHERE url = ?`, url)
	return r.scanFeed(row)
}

func (r *feedRepository) listFeeds(ctx context.Context, query string, args ...any) ([]Feed, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query feeds: %w", err)
	}
	defer rows.Close()

	var feeds []Feed
	for rows.Next() {
		var feed Feed
		err := rows.Scan(
			&feed.ID, &feed.URL, &feed.Label, &feed.Language, &feed.Enabled,
			&feed.LastOKAt, &feed.LastErrorAt, &feed.LastErrorMsg,
			&feed.CreatedAt, &feed.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan feed row: %w", err)
		}
		feeds = append(feeds, feed)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating feed rows: %w", err)
	}

	return feeds, nil
}

func (r *feedRepository) ListFeeds(ctx context.Context) ([]Feed, error) {
	return r.listFeeds(ctx, `SELECT `+feedColumns+` FROM feeds ORDER BY created_at`)
}

func (r *feedRepository) GetEnabledFeeds(ctx context.Context) ([]Feed, error) {
	return r.listFeeds(ctx, `SELECT `+feedColumns+` FROM feeds WHERE enabled = 1 ORDER BY created_at`)
}

// MarkFeedSuccess clears the error state left by previous failed polls.
func (r *feedRepository) MarkFeedSuccess(ctx context.Context, id, language string) error {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
		UPDATE feeds
		SET last_ok_at = ?, last_error_at = NULL, last_error_msg = '',
		    language = CASE WHEN ? != '' THEN ? ELSE language END,
		    updated_at = ?
		WHERE id = ?
	`, now, language, language, now, id)
	if err != nil {
		return fmt.Errorf("failed to mark feed success: %w", err)
	}
	return nil
}

func (r *feedRepository) MarkFeedError(ctx context.Context, id, message string) error {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
		UPDATE feeds
		SET last_error_at = ?, last_error_msg = ?, updated_at = ?
		WHERE id = ?
	`, now, message, now, id)
	if err != nil {
		return fmt.Errorf("failed to mark feed error: %w", err)
	}
	return nil
}

func (r *feedRepository) SetFeedEnabled(ctx context.Context, id string, enabled bool) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE feeds SET enabled = ?, updated_at = ? WHERE id = ?
	`, enabled, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to set feed enabled: %w", err)
	}
	return nil
}

func (r *feedRepository) GetFeedCount(ctx context.Context) (int, int, error) {
	var total, enabled int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(enabled), 0) FROM feeds
	`).Scan(&total, &enabled)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to get feed count: %w", err)
	}
	return total, enabled, nil
}
