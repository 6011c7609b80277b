package tasks

import (
	"context"
	"log/slog"
	"time"

	"github.com/atrishin/feedline/app/database"
)

// CleanupTask prunes aged rows: old entries, terminal queue entries and
// publication records. The three deletes are independent; one failure does
// not stop the others.
type CleanupTask struct {
	Task
	entryRepo            database.EntryRepository
	queueRepo            database.QueueRepository
	pubRepo              database.PublicationRepository
	entryRetention       time.Duration
	queueRetention       time.Duration
	publicationRetention time.Duration
}

func NewCleanupTask(entryRepo database.EntryRepository, queueRepo database.QueueRepository,
	pubRepo database.PublicationRepository, entryRetentionDays, queueRetentionDays, publicationRetentionDays int) *CleanupTask {
	return &CleanupTask{
		Task:                 NewTask(TaskTypeCleanup, "cleanup"),
		entryRepo:            entryRepo,
		queueRepo:            queueRepo,
		pubRepo:              pubRepo,
		entryRetention:       time.Duration(entryRetentionDays) * 24 * time.Hour,
		queueRetention:       time.Duration(queueRetentionDays) * 24 * time.Hour,
		publicationRetention: time.Duration(publicationRetentionDays) * 24 * time.Hour,
	}
}

func (t *CleanupTask) Execute(ctx context.Context) error {
	now := time.Now().UTC()

	entries, err := t.entryRepo.DeleteEntriesBefore(ctx, now.Add(-t.entryRetention))
	if err != nil {
		slog.Error("Failed to prune entries", "error", err)
	}

	queued, err := t.queueRepo.DeleteTerminalBefore(ctx, now.Add(-t.queueRetention))
	if err != nil {
		slog.Error("Failed to prune queue entries", "error", err)
	}

	publications, err := t.pubRepo.DeleteBefore(ctx, now.Add(-t.publicationRetention))
	if err != nil {
		slog.Error("Failed to prune publications", "error", err)
	}

	slog.Info("Task completed",
		"type", "Cleanup",
		"duration", t.GetDuration(),
		"entries", entries,
		"queue_entries", queued,
		"publications", publications)

	return nil
}
