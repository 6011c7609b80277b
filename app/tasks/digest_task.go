package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/atrishin/feedline/app/database"
	"github.com/atrishin/feedline/app/publish"
)

const (
	digestWindow   = 24 * time.Hour
	digestTopCount = 10
)

// DigestTask sends one aggregated message with the longest entries of the
// past day, ranked by word count. An empty window is a silent no-op.
type DigestTask struct {
	Task
	entryRepo   database.EntryRepository
	settingRepo database.SettingRepository
	pubRepo     database.PublicationRepository
	publisher   publish.Publisher
}

func NewDigestTask(entryRepo database.EntryRepository, settingRepo database.SettingRepository,
	pubRepo database.PublicationRepository, publisher publish.Publisher) *DigestTask {
	return &DigestTask{
		Task:        NewTask(TaskTypeDigest, "digest"),
		entryRepo:   entryRepo,
		settingRepo: settingRepo,
		pubRepo:     pubRepo,
		publisher:   publisher,
	}
}

func (t *DigestTask) Execute(ctx context.Context) error {
	since := time.Now().UTC().Add(-digestWindow)

	entries, err := t.entryRepo.GetTopEntriesSince(ctx, since, digestTopCount)
	if err != nil {
		return fmt.Errorf("failed to load digest entries: %w", err)
	}
	if len(entries) == 0 {
		slog.Debug("No entries in digest window, skipping")
		return nil
	}

	destination, err := t.settingRepo.Get(ctx, database.SettingDefaultChannel)
	if err != nil {
		return fmt.Errorf("failed to read default channel: %w", err)
	}
	if destination == "" {
		// Retrying would not conjure a channel; wait for the next schedule.
		slog.Warn("No destination channel configured, skipping digest")
		return nil
	}

	messageID, err := t.publisher.DeliverText(ctx, publish.RenderDigest(entries), destination)
	if err != nil {
		return fmt.Errorf("failed to deliver digest: %w", err)
	}

	pub := &database.Publication{
		Target:    destination,
		Kind:      "digest",
		MessageID: messageID,
		Result:    "delivered",
	}
	if err := t.pubRepo.Record(ctx, pub); err != nil {
		slog.Error("Failed to record digest publication", "error", err)
	}

	slog.Info("Task completed",
		"type", "Digest",
		"duration", t.GetDuration(),
		"entries", len(entries))

	return nil
}
