package tasks

import (
	"context"
	"time"

	"github.com/atrishin/feedline/app/database"
)

type stubEntryRepo struct {
	entries map[string]*database.Entry
	top     []database.Entry
}

func (f *stubEntryRepo) HasGUID(ctx context.Context, feedID, guid string) (bool, error) {
	return false, nil
}

func (f *stubEntryRepo) FindFingerprint(ctx context.Context, fingerprint, feedID string) (*string, error) {
	return nil, nil
}

func (f *stubEntryRepo) CreateEntry(ctx context.Context, entry *database.Entry) error { return nil }

func (f *stubEntryRepo) GetEntry(ctx context.Context, id string) (*database.Entry, error) {
	return f.entries[id], nil
}

func (f *stubEntryRepo) GetTopEntriesSince(ctx context.Context, since time.Time, limit int) ([]database.Entry, error) {
	return f.top, nil
}

func (f *stubEntryRepo) DeleteEntriesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

func (f *stubEntryRepo) GetEntryCount(ctx context.Context) (int, error) { return 0, nil }

type stubQueueRepo struct {
	due       []database.QueueEntry
	claimDeny map[string]bool
	completed []string
	failed    map[string]string
	rearmed   int64
}

func newStubQueueRepo() *stubQueueRepo {
	return &stubQueueRepo{
		claimDeny: make(map[string]bool),
		failed:    make(map[string]string),
	}
}

func (f *stubQueueRepo) Enqueue(ctx context.Context, entry *database.QueueEntry) error { return nil }

func (f *stubQueueRepo) HasActive(ctx context.Context, entryID, kind string) (bool, error) {
	return false, nil
}

func (f *stubQueueRepo) GetDue(ctx context.Context, now, staleBefore time.Time, limit int) ([]database.QueueEntry, error) {
	if len(f.due) > limit {
		return f.due[:limit], nil
	}
	return f.due, nil
}

func (f *stubQueueRepo) Claim(ctx context.Context, id string, now, staleBefore time.Time) (bool, error) {
	return !f.claimDeny[id], nil
}

func (f *stubQueueRepo) MarkCompleted(ctx context.Context, id string) error {
	f.completed = append(f.completed, id)
	return nil
}

func (f *stubQueueRepo) MarkFailed(ctx context.Context, id, message string, now time.Time) error {
	f.failed[id] = message
	return nil
}

func (f *stubQueueRepo) Rearm(ctx context.Context, maxAttempts int) (int64, error) {
	return f.rearmed, nil
}

func (f *stubQueueRepo) DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

func (f *stubQueueRepo) GetStatusCounts(ctx context.Context) (map[string]int, error) {
	return nil, nil
}

type stubSettingRepo struct {
	values map[string]string
}

func (f *stubSettingRepo) Get(ctx context.Context, key string) (string, error) {
	return f.values[key], nil
}

func (f *stubSettingRepo) Set(ctx context.Context, key, value string) error {
	f.values[key] = value
	return nil
}

type stubPubRepo struct {
	recorded []*database.Publication
}

func (f *stubPubRepo) Record(ctx context.Context, pub *database.Publication) error {
	f.recorded = append(f.recorded, pub)
	return nil
}

func (f *stubPubRepo) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

func (f *stubPubRepo) CountSince(ctx context.Context, since time.Time) (int, error) { return 0, nil }

type stubPublisher struct {
	posts    []string
	stories  []string
	texts    []string
	postErr  error
	storyErr error
	textErr  error
}

func (f *stubPublisher) DeliverPost(ctx context.Context, entry *database.Entry, destination string) (string, error) {
	if f.postErr != nil {
		return "", f.postErr
	}
	f.posts = append(f.posts, entry.ID+"->"+destination)
	return "42", nil
}

func (f *stubPublisher) DeliverStory(ctx context.Context, entry *database.Entry, recipient string) error {
	if f.storyErr != nil {
		return f.storyErr
	}
	f.stories = append(f.stories, entry.ID+"->"+recipient)
	return nil
}

func (f *stubPublisher) DeliverText(ctx context.Context, text, destination string) (string, error) {
	if f.textErr != nil {
		return "", f.textErr
	}
	f.texts = append(f.texts, text)
	return "43", nil
}
