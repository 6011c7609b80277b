package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var _ EntryRepository = (*entryRepository)(nil)

type entryRepository struct {
	db *DB
}

func NewEntryRepository(db *DB) EntryRepository {
	return &entryRepository{db: db}
}

func (r *entryRepository) HasGUID(ctx context.Context, feedID, guid string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, `
		SELECT 1 FROM entries WHERE feed_id = ? AND guid = ? LIMIT 1
	`, feedID, guid).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check GUID: %w", err)
	}
	return true, nil
}

func (r *entryRepository) FindFingerprint(ctx context.Context, fingerprint, feedID string) (*string, error) {
	var id string
	err := r.db.QueryRowContext(ctx, `
		SELECT id FROM entries WHERE fingerprint = ? AND feed_id != ? LIMIT 1
	`, fingerprint, feedID).Scan(&id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to check fingerprint: %w", err)
	}
	return &id, nil
}

func (r *entryRepository) CreateEntry(ctx context.Context, entry *Entry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	tags, err := json.Marshal(entry.Tags)
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO entries (
			id, feed_id, guid, title, link, summary, content, image_url,
			tags, language, word_count, fingerprint, published_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, entry.ID, entry.FeedID, entry.GUID, entry.Title, entry.Link,
		entry.Summary, entry.Content, entry.ImageURL, string(tags),
		entry.Language, entry.WordCount, entry.Fingerprint,
		entry.PublishedAt, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create entry: %w", err)
	}

	return nil
}

const entryColumns = `id, feed_id, guid, title, link, summary, content, image_url, tags, language, word_count, fingerprint, published_at, created_at`

func scanEntry(scan func(dest ...any) error) (*Entry, error) {
	var entry Entry
	var tags string
	err := scan(
		&entry.ID, &entry.FeedID, &entry.GUID, &entry.Title, &entry.Link,
		&entry.Summary, &entry.Content, &entry.ImageURL, &tags,
		&entry.Language, &entry.WordCount, &entry.Fingerprint,
		&entry.PublishedAt, &entry.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if tags != "" {
		if err := json.Unmarshal([]byte(tags), &entry.Tags); err != nil {
			return nil, fmt.Errorf("failed to unmarshal tags: %w", err)
		}
	}
	return &entry, nil
}

func (r *entryRepository) GetEntry(ctx context.Context, id string) (*Entry, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM entries WHERE id = ?`, id)
	entry, err := scanEntry(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entry: %w", err)
	}
	return entry, nil
}

// GetTopEntriesSince ranks by word count, the digest's proxy for substance.
func (r *entryRepository) GetTopEntriesSince(ctx context.Context, since time.Time, limit int) ([]Entry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+entryColumns+`
		FROM entries
		WHERE created_at >= ?
		ORDER BY word_count DESC, created_at DESC
		LIMIT ?
	`, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get top entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entry row: %w", err)
		}
		entries = append(entries, *entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating entry rows: %w", err)
	}

	return entries, nil
}

func (r *entryRepository) DeleteEntriesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM entries WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old entries: %w", err)
	}
	return result.RowsAffected()
}

func (r *entryRepository) GetEntryCount(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM entries`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get entry count: %w", err)
	}
	return count, nil
}
