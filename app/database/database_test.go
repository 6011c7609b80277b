package database

import (
	"context"
	"path/filepath"
	"testing"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := NewConnection(filepath.Join(t.TempDir(), "test.sqlite3"))
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, _, err := RunMigrations(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	return db
}

func createTestFeed(t *testing.T, db *DB, url string) *Feed {
	t.Helper()

	feed, err := NewFeedRepository(db).CreateFeed(context.Background(), url, "")
	if err != nil {
		t.Fatalf("Failed to create test feed: %v", err)
	}
	return feed
}

func createTestEntry(t *testing.T, db *DB, feedID, guid string) *Entry {
	t.Helper()

	entry := &Entry{
		FeedID:      feedID,
		GUID:        guid,
		Title:       "Entry " + guid,
		Link:        "https://example.com/" + guid,
		Fingerprint: "fp-" + guid,
	}
	if err := NewEntryRepository(db).CreateEntry(context.Background(), entry); err != nil {
		t.Fatalf("Failed to create test entry: %v", err)
	}
	return entry
}
