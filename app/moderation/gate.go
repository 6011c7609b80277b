package moderation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/atrishin/feedline/app/database"
	"github.com/atrishin/feedline/app/publish"
)

var (
	// ErrExpired is returned when the decision window for an entry has
	// elapsed or the entry was never offered for moderation.
	ErrExpired = errors.New("moderation window expired")
	// ErrAlreadyDecided is returned when a decision for the same entry and
	// delivery kind was already taken. Repeated button taps are no-ops.
	ErrAlreadyDecided = errors.New("decision already taken")
)

// Gate applies operator decisions to entries held for moderation. Every
// decision is idempotent: the first tap wins, repeats return
// ErrAlreadyDecided.
type Gate struct {
	entryRepo   database.EntryRepository
	feedRepo    database.FeedRepository
	queueRepo   database.QueueRepository
	pubRepo     database.PublicationRepository
	publisher   publish.Publisher
	notifier    publish.Notifier
	store       Store
	operatorIDs []int64
}

func NewGate(entryRepo database.EntryRepository, feedRepo database.FeedRepository,
	queueRepo database.QueueRepository, pubRepo database.PublicationRepository,
	publisher publish.Publisher, notifier publish.Notifier, store Store,
	operatorIDs []int64) *Gate {
	return &Gate{
		entryRepo:   entryRepo,
		feedRepo:    feedRepo,
		queueRepo:   queueRepo,
		pubRepo:     pubRepo,
		publisher:   publisher,
		notifier:    notifier,
		store:       store,
		operatorIDs: operatorIDs,
	}
}

// Review offers a freshly ingested entry to the operators. Implements the
// ingestion gate's reviewer hook.
func (g *Gate) Review(ctx context.Context, entry *database.Entry) error {
	if err := g.store.Remember(ctx, entry.ID); err != nil {
		return err
	}

	results := g.notifier.SendModerationPreview(ctx, entry, g.operatorIDs)
	delivered := 0
	for _, r := range results {
		if r.Err != nil {
			slog.Warn("Moderation preview not delivered", "operator", r.OperatorID, "entry", entry.ID, "error", r.Err)
			continue
		}
		delivered++
	}

	if delivered == 0 && len(g.operatorIDs) > 0 {
		return fmt.Errorf("moderation preview reached no operators")
	}
	return nil
}

// PublishNow queues the entry for immediate post delivery.
func (g *Gate) PublishNow(ctx context.Context, entryID string) error {
	return g.enqueueDecision(ctx, entryID, nil)
}

// Delay queues the entry for post delivery after the given duration.
func (g *Gate) Delay(ctx context.Context, entryID string, delay time.Duration) error {
	scheduledAt := time.Now().UTC().Add(delay)
	return g.enqueueDecision(ctx, entryID, &scheduledAt)
}

// PublishStory delivers the entry as a story right away, to the operator who
// took the decision. Stories are not queued: a failure surfaces to the
// operator immediately instead of retrying in the background.
func (g *Gate) PublishStory(ctx context.Context, entryID string, operatorID int64) error {
	entry, err := g.checkPending(ctx, entryID, database.DeliveryKindStory)
	if err != nil {
		return err
	}

	recipient := strconv.FormatInt(operatorID, 10)

	if err := g.publisher.DeliverStory(ctx, entry, recipient); err != nil {
		return err
	}

	pub := &database.Publication{
		EntryID: entry.ID,
		Target:  recipient,
		Kind:    database.DeliveryKindStory,
		Result:  "delivered",
	}
	if err := g.pubRepo.Record(ctx, pub); err != nil {
		slog.Error("Failed to record story publication", "entry", entry.ID, "error", err)
	}

	return g.store.Forget(ctx, entryID)
}

// BanSource disables the feed so it is skipped on future polling cycles.
// Already ingested entries stay; only new intake stops.
func (g *Gate) BanSource(ctx context.Context, feedID string) (*database.Feed, error) {
	feed, err := g.feedRepo.GetFeed(ctx, feedID)
	if err != nil {
		return nil, fmt.Errorf("failed to load feed: %w", err)
	}
	if feed == nil {
		return nil, fmt.Errorf("feed %s not found", feedID)
	}

	if err := g.feedRepo.SetFeedEnabled(ctx, feedID, false); err != nil {
		return nil, fmt.Errorf("failed to disable feed: %w", err)
	}

	slog.Info("Source banned by operator", "feed", feed.URL)
	return feed, nil
}

func (g *Gate) enqueueDecision(ctx context.Context, entryID string, scheduledAt *time.Time) error {
	entry, err := g.checkPending(ctx, entryID, database.DeliveryKindPost)
	if err != nil {
		return err
	}

	queueEntry := &database.QueueEntry{
		EntryID:     entry.ID,
		Kind:        database.DeliveryKindPost,
		ScheduledAt: scheduledAt,
	}
	if err := g.queueRepo.Enqueue(ctx, queueEntry); err != nil {
		return fmt.Errorf("failed to enqueue entry: %w", err)
	}

	return g.store.Forget(ctx, entryID)
}

// checkPending validates the decision window and guards against duplicate
// decisions before loading the entry.
func (g *Gate) checkPending(ctx context.Context, entryID, kind string) (*database.Entry, error) {
	pending, err := g.store.Recall(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if !pending {
		return nil, ErrExpired
	}

	active, err := g.queueRepo.HasActive(ctx, entryID, kind)
	if err != nil {
		return nil, fmt.Errorf("failed to check queue state: %w", err)
	}
	if active {
		return nil, ErrAlreadyDecided
	}

	entry, err := g.entryRepo.GetEntry(ctx, entryID)
	if err != nil {
		return nil, fmt.Errorf("failed to load entry: %w", err)
	}
	if entry == nil {
		return nil, ErrExpired
	}
	return entry, nil
}
