package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var _ PublicationRepository = (*publicationRepository)(nil)

type publicationRepository struct {
	db *DB
}

func NewPublicationRepository(db *DB) PublicationRepository {
	return &publicationRepository{db: db}
}

// Record appends a publication audit row. Rows are never updated; retention
// cleanup is the only delete path.
func (r *publicationRepository) Record(ctx context.Context, pub *Publication) error {
	if pub.ID == "" {
		pub.ID = uuid.NewString()
	}
	if pub.PostedAt.IsZero() {
		pub.PostedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO publications (id, entry_id, target, kind, message_id, result, posted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, pub.ID, pub.EntryID, pub.Target, pub.Kind, pub.MessageID, pub.Result, pub.PostedAt)
	if err != nil {
		return fmt.Errorf("failed to record publication: %w", err)
	}

	return nil
}

func (r *publicationRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM publications WHERE posted_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old publications: %w", err)
	}
	return result.RowsAffected()
}

func (r *publicationRepository) CountSince(ctx context.Context, since time.Time) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM publications WHERE posted_at >= ?
	`, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count publications: %w", err)
	}
	return count, nil
}
