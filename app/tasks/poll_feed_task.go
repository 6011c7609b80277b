package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/atrishin/feedline/app/content"
	"github.com/atrishin/feedline/app/database"
	"github.com/atrishin/feedline/app/fetch"
)

// PollFeedTask fetches one feed and pushes its entries through the ingestion
// gate. Each feed fails or succeeds on its own; one broken source never
// blocks the rest of the cycle.
type PollFeedTask struct {
	Task
	feed     database.Feed
	fetcher  *fetch.Fetcher
	gate     *content.Gate
	feedRepo database.FeedRepository
}

func NewPollFeedTask(feed database.Feed, fetcher *fetch.Fetcher, gate *content.Gate, feedRepo database.FeedRepository) *PollFeedTask {
	return &PollFeedTask{
		Task:     NewTask(TaskTypePollFeed, feed.URL),
		feed:     feed,
		fetcher:  fetcher,
		gate:     gate,
		feedRepo: feedRepo,
	}
}

func (t *PollFeedTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	result, err := t.fetcher.Fetch(ctx, t.feed.URL)
	if err != nil {
		if markErr := t.feedRepo.MarkFeedError(ctx, t.feed.ID, err.Error()); markErr != nil {
			slog.Error("Failed to record feed error", "feed", t.feed.URL, "error", markErr)
		}
		return fmt.Errorf("failed to fetch feed: %w", err)
	}

	ingested := 0
	duplicates := 0
	for _, raw := range result.Entries {
		outcome, err := t.gate.Ingest(ctx, &t.feed, raw)
		if err != nil {
			slog.Warn("Failed to ingest entry", "feed", t.feed.URL, "guid", raw.GUID, "error", err)
			continue
		}
		switch outcome {
		case content.OutcomeIngested:
			ingested++
		default:
			duplicates++
		}
	}

	if err := t.feedRepo.MarkFeedSuccess(ctx, t.feed.ID, result.Language); err != nil {
		slog.Error("Failed to record feed success", "feed", t.feed.URL, "error", err)
	}

	slog.Info("Task completed",
		"type", "PollFeed",
		"feed", t.feed.URL,
		"duration", t.GetDuration(),
		"total", len(result.Entries),
		"duplicates", duplicates,
		"new", ingested)

	return nil
}
