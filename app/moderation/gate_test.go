package moderation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/atrishin/feedline/app/database"
	"github.com/atrishin/feedline/app/publish"
)

type fakeEntryRepo struct {
	entries map[string]*database.Entry
}

func (f *fakeEntryRepo) HasGUID(ctx context.Context, feedID, guid string) (bool, error) {
	return false, nil
}

func (f *fakeEntryRepo) FindFingerprint(ctx context.Context, fingerprint, feedID string) (*string, error) {
	return nil, nil
}

func (f *fakeEntryRepo) CreateEntry(ctx context.Context, entry *database.Entry) error {
	f.entries[entry.ID] = entry
	return nil
}

func (f *fakeEntryRepo) GetEntry(ctx context.Context, id string) (*database.Entry, error) {
	return f.entries[id], nil
}

func (f *fakeEntryRepo) GetTopEntriesSince(ctx context.Context, since time.Time, limit int) ([]database.Entry, error) {
	return nil, nil
}

func (f *fakeEntryRepo) DeleteEntriesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

func (f *fakeEntryRepo) GetEntryCount(ctx context.Context) (int, error) {
	return len(f.entries), nil
}

type fakeFeedRepo struct {
	feeds    map[string]*database.Feed
	disabled []string
}

func (f *fakeFeedRepo) CreateFeed(ctx context.Context, url, label string) (*database.Feed, error) {
	return nil, nil
}

func (f *fakeFeedRepo) DeleteFeed(ctx context.Context, url string) error { return nil }

func (f *fakeFeedRepo) GetFeed(ctx context.Context, id string) (*database.Feed, error) {
	return f.feeds[id], nil
}

func (f *fakeFeedRepo) GetFeedByURL(ctx context.Context, url string) (*database.Feed, error) {
	return nil, nil
}

func (f *fakeFeedRepo) ListFeeds(ctx context.Context) ([]database.Feed, error) { return nil, nil }

func (f *fakeFeedRepo) GetEnabledFeeds(ctx context.Context) ([]database.Feed, error) {
	return nil, nil
}

func (f *fakeFeedRepo) MarkFeedSuccess(ctx context.Context, id, language string) error { return nil }

func (f *fakeFeedRepo) MarkFeedError(ctx context.Context, id, message string) error { return nil }

func (f *fakeFeedRepo) SetFeedEnabled(ctx context.Context, id string, enabled bool) error {
	if !enabled {
		f.disabled = append(f.disabled, id)
	}
	return nil
}

func (f *fakeFeedRepo) GetFeedCount(ctx context.Context) (int, int, error) { return 0, 0, nil }

type fakeQueueRepo struct {
	enqueued []*database.QueueEntry
	active   map[string]bool
}

func (f *fakeQueueRepo) Enqueue(ctx context.Context, entry *database.QueueEntry) error {
	f.enqueued = append(f.enqueued, entry)
	return nil
}

func (f *fakeQueueRepo) HasActive(ctx context.Context, entryID, kind string) (bool, error) {
	return f.active[entryID+"/"+kind], nil
}

func (f *fakeQueueRepo) GetDue(ctx context.Context, now, staleBefore time.Time, limit int) ([]database.QueueEntry, error) {
	return nil, nil
}

func (f *fakeQueueRepo) Claim(ctx context.Context, id string, now, staleBefore time.Time) (bool, error) {
	return true, nil
}

func (f *fakeQueueRepo) MarkCompleted(ctx context.Context, id string) error { return nil }

func (f *fakeQueueRepo) MarkFailed(ctx context.Context, id, message string, now time.Time) error {
	return nil
}

func (f *fakeQueueRepo) Rearm(ctx context.Context, maxAttempts int) (int64, error) { return 0, nil }

func (f *fakeQueueRepo) DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

func (f *fakeQueueRepo) GetStatusCounts(ctx context.Context) (map[string]int, error) {
	return nil, nil
}

type fakePubRepo struct {
	recorded []*database.Publication
}

func (f *fakePubRepo) Record(ctx context.Context, pub *database.Publication) error {
	f.recorded = append(f.recorded, pub)
	return nil
}

func (f *fakePubRepo) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

func (f *fakePubRepo) CountSince(ctx context.Context, since time.Time) (int, error) {
	return 0, nil
}

type fakePublisher struct {
	stories  []string
	storyErr error
}

func (f *fakePublisher) DeliverPost(ctx context.Context, entry *database.Entry, destination string) (string, error) {
	return "1", nil
}

func (f *fakePublisher) DeliverStory(ctx context.Context, entry *database.Entry, recipient string) error {
	if f.storyErr != nil {
		return f.storyErr
	}
	f.stories = append(f.stories, entry.ID+"->"+recipient)
	return nil
}

func (f *fakePublisher) DeliverText(ctx context.Context, text, destination string) (string, error) {
	return "1", nil
}

type fakeNotifier struct {
	previews []string
	fail     bool
}

func (f *fakeNotifier) SendModerationPreview(ctx context.Context, entry *database.Entry, operatorIDs []int64) []publish.NotificationResult {
	f.previews = append(f.previews, entry.ID)
	results := make([]publish.NotificationResult, 0, len(operatorIDs))
	for _, id := range operatorIDs {
		r := publish.NotificationResult{OperatorID: id, NotificationID: "10"}
		if f.fail {
			r.NotificationID = ""
			r.Err = errors.New("blocked by operator")
		}
		results = append(results, r)
	}
	return results
}

type gateFixture struct {
	gate      *Gate
	entryRepo *fakeEntryRepo
	feedRepo  *fakeFeedRepo
	queueRepo *fakeQueueRepo
	pubRepo   *fakePubRepo
	publisher *fakePublisher
	notifier  *fakeNotifier
	store     *MemoryStore
}

func newGateFixture() *gateFixture {
	f := &gateFixture{
		entryRepo: &fakeEntryRepo{entries: make(map[string]*database.Entry)},
		feedRepo:  &fakeFeedRepo{feeds: make(map[string]*database.Feed)},
		queueRepo: &fakeQueueRepo{active: make(map[string]bool)},
		pubRepo:   &fakePubRepo{},
		publisher: &fakePublisher{},
		notifier:  &fakeNotifier{},
		store:     NewMemoryStore(),
	}
	f.gate = NewGate(f.entryRepo, f.feedRepo, f.queueRepo, f.pubRepo,
		f.publisher, f.notifier, f.store, []int64{100, 200})
	return f
}

func (f *gateFixture) addPending(id string) *database.Entry {
	entry := &database.Entry{ID: id, FeedID: "feed-1", Title: "Title"}
	f.entryRepo.entries[id] = entry
	f.store.Remember(context.Background(), id)
	return entry
}

func TestReviewNotifiesAllOperators(t *testing.T) {
	f := newGateFixture()
	entry := &database.Entry{ID: "e1", Title: "Title"}

	if err := f.gate.Review(context.Background(), entry); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if len(f.notifier.previews) != 1 {
		t.Errorf("Expected 1 preview dispatch, got %d", len(f.notifier.previews))
	}

	pending, _ := f.store.Recall(context.Background(), "e1")
	if !pending {
		t.Error("Expected entry to be pending after review")
	}
}

func TestReviewFailsWhenNoOperatorReached(t *testing.T) {
	f := newGateFixture()
	f.notifier.fail = true

	err := f.gate.Review(context.Background(), &database.Entry{ID: "e1"})
	if err == nil {
		t.Error("Expected error when no operator reached, got nil")
	}
}

func TestPublishNowEnqueuesPost(t *testing.T) {
	f := newGateFixture()
	f.addPending("e1")

	if err := f.gate.PublishNow(context.Background(), "e1"); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if len(f.queueRepo.enqueued) != 1 {
		t.Fatalf("Expected 1 queue entry, got %d", len(f.queueRepo.enqueued))
	}
	qe := f.queueRepo.enqueued[0]
	if qe.Kind != database.DeliveryKindPost {
		t.Errorf("Expected kind %q, got %q", database.DeliveryKindPost, qe.Kind)
	}
	if qe.ScheduledAt != nil {
		t.Error("Expected immediate delivery without scheduled time")
	}

	pending, _ := f.store.Recall(context.Background(), "e1")
	if pending {
		t.Error("Expected pending state to be cleared after decision")
	}
}

func TestPublishNowExpiredWindow(t *testing.T) {
	f := newGateFixture()

	err := f.gate.PublishNow(context.Background(), "unknown")
	if !errors.Is(err, ErrExpired) {
		t.Errorf("Expected ErrExpired, got: %v", err)
	}
}

func TestPublishNowIdempotent(t *testing.T) {
	f := newGateFixture()
	f.addPending("e1")
	f.queueRepo.active["e1/post"] = true

	err := f.gate.PublishNow(context.Background(), "e1")
	if !errors.Is(err, ErrAlreadyDecided) {
		t.Errorf("Expected ErrAlreadyDecided, got: %v", err)
	}
	if len(f.queueRepo.enqueued) != 0 {
		t.Errorf("Expected no new queue entries, got %d", len(f.queueRepo.enqueued))
	}
}

func TestDelaySetsScheduledTime(t *testing.T) {
	f := newGateFixture()
	f.addPending("e1")

	before := time.Now().UTC()
	if err := f.gate.Delay(context.Background(), "e1", 30*time.Minute); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if len(f.queueRepo.enqueued) != 1 {
		t.Fatalf("Expected 1 queue entry, got %d", len(f.queueRepo.enqueued))
	}
	qe := f.queueRepo.enqueued[0]
	if qe.ScheduledAt == nil {
		t.Fatal("Expected scheduled time to be set")
	}
	if qe.ScheduledAt.Before(before.Add(29 * time.Minute)) {
		t.Errorf("Expected scheduled time ~30m ahead, got %v", qe.ScheduledAt)
	}
}

func TestPublishStoryDeliversToActingOperator(t *testing.T) {
	f := newGateFixture()
	f.addPending("e1")

	if err := f.gate.PublishStory(context.Background(), "e1", 100); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if len(f.publisher.stories) != 1 {
		t.Fatalf("Expected 1 story delivery, got %d", len(f.publisher.stories))
	}
	if f.publisher.stories[0] != "e1->100" {
		t.Errorf("Expected story delivered to the deciding operator, got %q", f.publisher.stories[0])
	}
	if len(f.pubRepo.recorded) != 1 {
		t.Fatalf("Expected 1 publication record, got %d", len(f.pubRepo.recorded))
	}
	if f.pubRepo.recorded[0].Kind != database.DeliveryKindStory {
		t.Errorf("Expected story publication, got %q", f.pubRepo.recorded[0].Kind)
	}
	if f.pubRepo.recorded[0].Target != "100" {
		t.Errorf("Expected operator as publication target, got %q", f.pubRepo.recorded[0].Target)
	}
	if len(f.queueRepo.enqueued) != 0 {
		t.Error("Expected story to bypass the queue")
	}
}

func TestPublishStoryFailureSurfaces(t *testing.T) {
	f := newGateFixture()
	f.addPending("e1")
	f.publisher.storyErr = errors.New("no session")

	if err := f.gate.PublishStory(context.Background(), "e1", 100); err == nil {
		t.Error("Expected story failure to surface, got nil")
	}
	if len(f.pubRepo.recorded) != 0 {
		t.Error("Expected no publication record on failure")
	}

	pending, _ := f.store.Recall(context.Background(), "e1")
	if !pending {
		t.Error("Expected entry to stay pending after a failed story")
	}
}

func TestBanSourceDisablesFeed(t *testing.T) {
	f := newGateFixture()
	f.feedRepo.feeds["feed-1"] = &database.Feed{ID: "feed-1", URL: "https://example.com/rss"}

	feed, err := f.gate.BanSource(context.Background(), "feed-1")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if feed.URL != "https://example.com/rss" {
		t.Errorf("Expected banned feed URL, got %q", feed.URL)
	}
	if len(f.feedRepo.disabled) != 1 || f.feedRepo.disabled[0] != "feed-1" {
		t.Errorf("Expected feed-1 disabled, got %v", f.feedRepo.disabled)
	}
}

func TestBanSourceUnknownFeed(t *testing.T) {
	f := newGateFixture()

	if _, err := f.gate.BanSource(context.Background(), "missing"); err == nil {
		t.Error("Expected error for unknown feed, got nil")
	}
}
