package content

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/atrishin/feedline/app/cfg"
	"github.com/atrishin/feedline/app/database"
	"github.com/atrishin/feedline/app/fetch"
)

type Outcome string

const (
	OutcomeIngested       Outcome = "ingested"
	OutcomeDuplicateGUID  Outcome = "duplicate_guid"
	OutcomeDuplicateCross Outcome = "duplicate_cross_feed"
)

// Reviewer receives newly ingested entries when moderation is enabled.
// Implemented by the moderation gate; failures are non-fatal to ingestion.
type Reviewer interface {
	Review(ctx context.Context, entry *database.Entry) error
}

// Gate owns Entry creation. It decides whether a raw entry is new (per-feed
// GUID identity first, cross-feed fingerprint second) and routes accepted
// entries either to the moderation path or straight into the queue.
type Gate struct {
	normalizer     *Normalizer
	entryRepo      database.EntryRepository
	queueRepo      database.QueueRepository
	settingRepo    database.SettingRepository
	reviewer       Reviewer
	crossFeedDedup bool
}

func NewGate(entryRepo database.EntryRepository, queueRepo database.QueueRepository,
	settingRepo database.SettingRepository, reviewer Reviewer) *Gate {
	return &Gate{
		normalizer:     NewNormalizer(),
		entryRepo:      entryRepo,
		queueRepo:      queueRepo,
		settingRepo:    settingRepo,
		reviewer:       reviewer,
		crossFeedDedup: cfg.Get().CrossFeedDedup,
	}
}

func (g *Gate) Ingest(ctx context.Context, feed *database.Feed, raw fetch.RawEntry) (Outcome, error) {
	known, err := g.entryRepo.HasGUID(ctx, feed.ID, raw.GUID)
	if err != nil {
		return "", fmt.Errorf("failed to check GUID: %w", err)
	}
	if known {
		return OutcomeDuplicateGUID, nil
	}

	norm := g.normalizer.Run(raw)

	match, err := g.entryRepo.FindFingerprint(ctx, norm.Fingerprint, feed.ID)
	if err != nil {
		return "", fmt.Errorf("failed to check fingerprint: %w", err)
	}
	if match != nil {
		if g.crossFeedDedup {
			slog.Debug("Cross-feed duplicate discarded", "feed", feed.URL, "guid", raw.GUID, "matched_entry", *match)
			return OutcomeDuplicateCross, nil
		}
		// Recorded but not acted upon: within-feed GUID is the only hard
		// uniqueness constraint unless cross-feed dedup is switched on.
		slog.Info("Cross-feed fingerprint collision", "feed", feed.URL, "guid", raw.GUID, "matched_entry", *match)
	}

	entry := &database.Entry{
		FeedID:      feed.ID,
		GUID:        raw.GUID,
		Title:       norm.Title,
		Link:        norm.Link,
		Summary:     norm.Summary,
		Content:     norm.Content,
		ImageURL:    norm.ImageURL,
		Tags:        norm.Tags,
		Language:    norm.Language,
		WordCount:   norm.WordCount,
		Fingerprint: norm.Fingerprint,
		PublishedAt: raw.PublishedAt,
	}

	if err := g.entryRepo.CreateEntry(ctx, entry); err != nil {
		return "", fmt.Errorf("failed to create entry: %w", err)
	}

	if err := g.route(ctx, entry); err != nil {
		return "", err
	}

	return OutcomeIngested, nil
}

// route sends the new entry to moderation or enqueues it directly. The
// moderation toggle is read per entry, not cached: flipping it takes effect
// on the very next ingested item.
func (g *Gate) route(ctx context.Context, entry *database.Entry) error {
	moderation, err := g.settingRepo.Get(ctx, database.SettingModerationEnabled)
	if err != nil {
		return fmt.Errorf("failed to read moderation setting: %w", err)
	}

	if moderation == "true" {
		if g.reviewer == nil {
			slog.Warn("Moderation enabled but no reviewer configured", "entry", entry.ID)
			return nil
		}
		if err := g.reviewer.Review(ctx, entry); err != nil {
			// A failed preview leaves the entry persisted; an operator can
			// still act on it via the status surface.
			slog.Error("Failed to dispatch moderation preview", "entry", entry.ID, "error", err)
		}
		return nil
	}

	err = g.queueRepo.Enqueue(ctx, &database.QueueEntry{
		EntryID: entry.ID,
		Kind:    database.DeliveryKindPost,
	})
	if err != nil {
		return fmt.Errorf("failed to enqueue entry: %w", err)
	}

	return nil
}
