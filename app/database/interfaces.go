package database

import (
	"context"
	"time"
)

type FeedRepository interface {
	CreateFeed(ctx context.Context, url, label string) (*Feed, error)
	DeleteFeed(ctx context.Context, url string) error
	GetFeed(ctx context.Context, id string) (*Feed, error)
	GetFeedByURL(ctx context.Context, url string) (*Feed, error)
	ListFeeds(ctx context.Context) ([]Feed, error)
	GetEnabledFeeds(ctx context.Context) ([]Feed, error)
	MarkFeedSuccess(ctx context.Context, id, language string) error
	MarkFeedError(ctx context.Context, id, message string) error
	SetFeedEnabled(ctx context.Context, id string, enabled bool) error
	GetFeedCount(ctx context.Context) (total int, enabled int, err error)
}

type EntryRepository interface {
	HasGUID(ctx context.Context, feedID, guid string) (bool, error)
	// FindFingerprint reports whether any entry outside feedID carries the
	// given fingerprint, returning the matching entry ID.
	FindFingerprint(ctx context.Context, fingerprint, feedID string) (*string, error)
	CreateEntry(ctx context.Context, entry *Entry) error
	GetEntry(ctx context.Context, id string) (*Entry, error)
	GetTopEntriesSince(ctx context.Context, since time.Time, limit int) ([]Entry, error)
	DeleteEntriesBefore(ctx context.Context, cutoff time.Time) (int64, error)
	GetEntryCount(ctx context.Context) (int, error)
}

type QueueRepository interface {
	Enqueue(ctx context.Context, entry *QueueEntry) error
	// HasActive reports whether a non-failed queue entry already exists for
	// (entryID, kind); used to keep moderation decisions idempotent.
	HasActive(ctx context.Context, entryID, kind string) (bool, error)
	// GetDue returns pending entries that are due plus processing entries
	// whose last attempt is older than staleBefore, oldest-due-first.
	GetDue(ctx context.Context, now, staleBefore time.Time, limit int) ([]QueueEntry, error)
	// Claim transitions one due entry to processing. Returns false when a
	// concurrent worker claimed it first.
	Claim(ctx context.Context, id string, now, staleBefore time.Time) (bool, error)
	MarkCompleted(ctx context.Context, id string) error
	// MarkFailed records the error and increments the attempt count.
	MarkFailed(ctx context.Context, id, message string, now time.Time) error
	// Rearm transitions a failed entry back to pending while its attempt
	// count is below maxAttempts. Returns the number of entries re-armed.
	Rearm(ctx context.Context, maxAttempts int) (int64, error)
	DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error)
	GetStatusCounts(ctx context.Context) (map[string]int, error)
}

type PublicationRepository interface {
	Record(ctx context.Context, pub *Publication) error
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
	CountSince(ctx context.Context, since time.Time) (int, error)
}

type SettingRepository interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

type SessionRepository interface {
	GetBlob(ctx context.Context, kind string) ([]byte, error)
	PutBlob(ctx context.Context, kind string, blob []byte) error
}
