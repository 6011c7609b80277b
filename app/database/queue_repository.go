package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var _ QueueRepository = (*queueRepository)(nil)

type queueRepository struct {
	db *DB
}

func NewQueueRepository(db *DB) QueueRepository {
	return &queueRepository{db: db}
}

func (r *queueRepository) Enqueue(ctx context.Context, entry *QueueEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Status == "" {
		entry.Status = QueueStatusPending
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO queue_entries (
			id, entry_id, kind, destination, scheduled_at, status,
			attempts, last_attempt_at, last_error, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, entry.ID, entry.EntryID, entry.Kind, entry.Destination,
		entry.ScheduledAt, entry.Status, entry.Attempts,
		entry.LastAttemptAt, entry.LastError, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to enqueue: %w", err)
	}

	return nil
}

func (r *queueRepository) HasActive(ctx context.Context, entryID, kind string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, `
		SELECT 1 FROM queue_entries
		WHERE entry_id = ? AND kind = ? AND status != ?
		LIMIT 1
	`, entryID, kind, QueueStatusFailed).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check active queue entry: %w", err)
	}
	return true, nil
}

const queueColumns = `id, entry_id, kind, destination, scheduled_at, status, attempts, last_attempt_at, last_error, created_at`

// GetDue also surfaces processing entries whose last attempt is older than
// staleBefore; a crash mid-delivery must not strand an entry forever.
func (r *queueRepository) GetDue(ctx context.Context, now, staleBefore time.Time, limit int) ([]QueueEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+queueColumns+`
		FROM queue_entries
		WHERE (status = ? AND (scheduled_at IS NULL OR scheduled_at <= ?))
		   OR (status = ? AND last_attempt_at IS NOT NULL AND last_attempt_at <= ?)
		ORDER BY COALESCE(scheduled_at, created_at)
		LIMIT ?
	`, QueueStatusPending, now, QueueStatusProcessing, staleBefore, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get due queue entries: %w", err)
	}
	defer rows.Close()

	var entries []QueueEntry
	for rows.Next() {
		var entry QueueEntry
		err := rows.Scan(
			&entry.ID, &entry.EntryID, &entry.Kind, &entry.Destination,
			&entry.ScheduledAt, &entry.Status, &entry.Attempts,
			&entry.LastAttemptAt, &entry.LastError, &entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan queue row: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating queue rows: %w", err)
	}

	return entries, nil
}

// Claim is a conditional update: the status guard makes it atomic with
// respect to concurrent workers, so at most one claim succeeds.
func (r *queueRepository) Claim(ctx context.Context, id string, now, staleBefore time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE queue_entries
		SET status = ?, last_attempt_at = ?
		WHERE id = ?
		  AND (status = ?
		       OR (status = ? AND last_attempt_at IS NOT NULL AND last_attempt_at <= ?))
	`, QueueStatusProcessing, now, id, QueueStatusPending, QueueStatusProcessing, staleBefore)
	if err != nil {
		return false, fmt.Errorf("failed to claim queue entry: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}

	return affected == 1, nil
}

func (r *queueRepository) MarkCompleted(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE queue_entries SET status = ?, last_error = '' WHERE id = ?
	`, QueueStatusCompleted, id)
	if err != nil {
		return fmt.Errorf("failed to mark queue entry completed: %w", err)
	}
	return nil
}

func (r *queueRepository) MarkFailed(ctx context.Context, id, message string, now time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE queue_entries
		SET status = ?, last_error = ?, attempts = attempts + 1, last_attempt_at = ?
		WHERE id = ?
	`, QueueStatusFailed, message, now, id)
	if err != nil {
		return fmt.Errorf("failed to mark queue entry failed: %w", err)
	}
	return nil
}

func (r *queueRepository) Rearm(ctx context.Context, maxAttempts int) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE queue_entries
		SET status = ?, last_error = ''
		WHERE status = ? AND attempts < ?
	`, QueueStatusPending, QueueStatusFailed, maxAttempts)
	if err != nil {
		return 0, fmt.Errorf("failed to re-arm failed queue entries: %w", err)
	}
	return result.RowsAffected()
}

func (r *queueRepository) DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM queue_entries
		WHERE status IN (?, ?) AND created_at < ?
	`, QueueStatusCompleted, QueueStatusFailed, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete terminal queue entries: %w", err)
	}
	return result.RowsAffected()
}

func (r *queueRepository) GetStatusCounts(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT status, COUNT(*) FROM queue_entries GROUP BY status
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to get queue status counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}
		counts[status] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating status counts: %w", err)
	}

	return counts, nil
}
