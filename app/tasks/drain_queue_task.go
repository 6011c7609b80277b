package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/atrishin/feedline/app/database"
	"github.com/atrishin/feedline/app/publish"
)

// staleClaimGrace is how long a processing claim may sit untouched before
// another drain cycle is allowed to reclaim it. Covers workers killed
// mid-delivery.
const staleClaimGrace = 10 * time.Minute

// DrainQueueTask re-arms retryable failures, claims a batch of due queue
// entries and delivers them. Claims are atomic: under concurrent drains each
// entry is delivered at most once.
type DrainQueueTask struct {
	Task
	queueRepo   database.QueueRepository
	entryRepo   database.EntryRepository
	settingRepo database.SettingRepository
	pubRepo     database.PublicationRepository
	publisher   publish.Publisher
	batchSize   int
	maxAttempts int
}

func NewDrainQueueTask(queueRepo database.QueueRepository, entryRepo database.EntryRepository,
	settingRepo database.SettingRepository, pubRepo database.PublicationRepository,
	publisher publish.Publisher, batchSize, maxAttempts int) *DrainQueueTask {
	return &DrainQueueTask{
		Task:        NewTask(TaskTypeDrainQueue, "queue"),
		queueRepo:   queueRepo,
		entryRepo:   entryRepo,
		settingRepo: settingRepo,
		pubRepo:     pubRepo,
		publisher:   publisher,
		batchSize:   batchSize,
		maxAttempts: maxAttempts,
	}
}

func (t *DrainQueueTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	rearmed, err := t.queueRepo.Rearm(ctx, t.maxAttempts)
	if err != nil {
		return fmt.Errorf("failed to re-arm failed entries: %w", err)
	}
	if rearmed > 0 {
		slog.Debug("Re-armed failed queue entries", "count", rearmed)
	}

	now := time.Now().UTC()
	staleBefore := now.Add(-staleClaimGrace)

	due, err := t.queueRepo.GetDue(ctx, now, staleBefore, t.batchSize)
	if err != nil {
		return fmt.Errorf("failed to load due queue entries: %w", err)
	}
	if len(due) == 0 {
		return nil
	}

	delivered := 0
	failed := 0
	for _, qe := range due {
		claimed, err := t.queueRepo.Claim(ctx, qe.ID, time.Now().UTC(), staleBefore)
		if err != nil {
			slog.Error("Failed to claim queue entry", "queue_entry", qe.ID, "error", err)
			continue
		}
		if !claimed {
			continue
		}

		if err := t.deliver(ctx, qe); err != nil {
			failed++
			if markErr := t.queueRepo.MarkFailed(ctx, qe.ID, err.Error(), time.Now().UTC()); markErr != nil {
				slog.Error("Failed to mark queue entry failed", "queue_entry", qe.ID, "error", markErr)
			}
			if publish.IsRetryable(err) {
				slog.Warn("Delivery failed, will retry", "queue_entry", qe.ID, "attempt", qe.Attempts+1, "error", err)
			} else {
				slog.Error("Delivery failed permanently", "queue_entry", qe.ID, "error", err)
			}
			continue
		}

		delivered++
		if err := t.queueRepo.MarkCompleted(ctx, qe.ID); err != nil {
			slog.Error("Failed to mark queue entry completed", "queue_entry", qe.ID, "error", err)
		}
	}

	slog.Info("Task completed",
		"type", "DrainQueue",
		"duration", t.GetDuration(),
		"due", len(due),
		"delivered", delivered,
		"failed", failed)

	return nil
}

func (t *DrainQueueTask) deliver(ctx context.Context, qe database.QueueEntry) error {
	entry, err := t.entryRepo.GetEntry(ctx, qe.EntryID)
	if err != nil {
		return fmt.Errorf("failed to load entry: %w", err)
	}
	if entry == nil {
		return &publish.ConfigurationError{Reason: fmt.Sprintf("entry %s no longer exists", qe.EntryID)}
	}

	destination, err := t.resolveDestination(ctx, qe)
	if err != nil {
		return err
	}

	switch qe.Kind {
	case database.DeliveryKindPost:
		messageID, err := t.publisher.DeliverPost(ctx, entry, destination)
		if err != nil {
			return err
		}
		t.record(ctx, entry.ID, destination, qe.Kind, messageID)
		return nil
	case database.DeliveryKindStory:
		if err := t.publisher.DeliverStory(ctx, entry, destination); err != nil {
			return err
		}
		t.record(ctx, entry.ID, destination, qe.Kind, "")
		return nil
	default:
		return &publish.ConfigurationError{Reason: fmt.Sprintf("unknown delivery kind %q", qe.Kind)}
	}
}

// resolveDestination falls back to the default channel for posts. Stories
// carry an explicit destination or fail outright.
func (t *DrainQueueTask) resolveDestination(ctx context.Context, qe database.QueueEntry) (string, error) {
	if qe.Destination != "" {
		return qe.Destination, nil
	}
	if qe.Kind == database.DeliveryKindStory {
		return "", &publish.ConfigurationError{Reason: "story queued without destination"}
	}

	destination, err := t.settingRepo.Get(ctx, database.SettingDefaultChannel)
	if err != nil {
		return "", fmt.Errorf("failed to read default channel: %w", err)
	}
	if destination == "" {
		return "", &publish.ConfigurationError{Reason: "no destination channel configured"}
	}
	return destination, nil
}

func (t *DrainQueueTask) record(ctx context.Context, entryID, target, kind, messageID string) {
	pub := &database.Publication{
		EntryID:   entryID,
		Target:    target,
		Kind:      kind,
		MessageID: messageID,
		Result:    "delivered",
	}
	if err := t.pubRepo.Record(ctx, pub); err != nil {
		slog.Error("Failed to record publication", "entry", entryID, "error", err)
	}
}
