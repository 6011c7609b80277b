package database

import (
	"time"
)

type Feed struct {
	ID           string
	URL          string
	Label        string
	Language     string
	Enabled      bool
	LastOKAt     *time.Time
	LastErrorAt  *time.Time
	LastErrorMsg string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Entry struct {
	ID          string
	FeedID      string
	GUID        string
	Title       string
	Link        string
	Summary     string
	Content     string
	ImageURL    string
	Tags        []string
	Language    string
	WordCount   int
	Fingerprint string
	PublishedAt *time.Time
	CreatedAt   time.Time
}

// Queue entry status machine: pending -> processing -> {completed | failed}.
// A failed entry may be re-armed to pending while attempts < ceiling.
const (
	QueueStatusPending    = "pending"
	QueueStatusProcessing = "processing"
	QueueStatusCompleted  = "completed"
	QueueStatusFailed     = "failed"
)

const (
	DeliveryKindPost  = "post"
	DeliveryKindStory = "story"
)

type QueueEntry struct {
	ID            string
	EntryID       string
	Kind          string
	Destination   string
	ScheduledAt   *time.Time
	Status        string
	Attempts      int
	LastAttemptAt *time.Time
	LastError     string
	CreatedAt     time.Time
}

type Publication struct {
	ID        string
	EntryID   string
	Target    string
	Kind      string
	MessageID string
	Result    string
	PostedAt  time.Time
}

// Setting keys known to the application. Values are read at the start of
// each unit of work, never cached.
const (
	SettingModerationEnabled = "moderation_enabled"
	SettingDefaultChannel    = "default_channel"
	SettingPollInterval      = "poll_interval"
)
