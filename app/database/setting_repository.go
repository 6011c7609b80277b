package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

var _ SettingRepository = (*settingRepository)(nil)

type settingRepository struct {
	db *DB
}

func NewSettingRepository(db *DB) SettingRepository {
	return &settingRepository{db: db}
}

// Get returns an empty string for unknown keys; settings are all optional.
func (r *settingRepository) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get setting %s: %w", key, err)
	}
	return value, nil
}

// Set is last-writer-wins; there is no versioning of settings.
func (r *settingRepository) Set(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to set setting %s: %w", key, err)
	}
	return nil
}

var _ SessionRepository = (*sessionRepository)(nil)

type sessionRepository struct {
	db *DB
}

func NewSessionRepository(db *DB) SessionRepository {
	return &sessionRepository{db: db}
}

func (r *sessionRepository) GetBlob(ctx context.Context, kind string) ([]byte, error) {
	var blob []byte
	err := r.db.QueryRowContext(ctx, `SELECT enc_blob FROM sessions WHERE kind = ?`, kind).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session blob: %w", err)
	}
	return blob, nil
}

func (r *sessionRepository) PutBlob(ctx context.Context, kind string, blob []byte) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sessions (kind, enc_blob, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (kind) DO UPDATE SET enc_blob = excluded.enc_blob, updated_at = excluded.updated_at
	`, kind, blob, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to put session blob: %w", err)
	}
	return nil
}
