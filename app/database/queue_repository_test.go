package database

import (
	"context"
	"testing"
	"time"
)

func TestQueueClaimLifecycle(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	feed := createTestFeed(t, db, "https://example.com/rss")
	entry := createTestEntry(t, db, feed.ID, "g1")

	repo := NewQueueRepository(db)
	qe := &QueueEntry{EntryID: entry.ID, Kind: DeliveryKindPost}
	if err := repo.Enqueue(ctx, qe); err != nil {
		t.Fatalf("Failed to enqueue: %v", err)
	}

	now := time.Now().UTC()
	staleBefore := now.Add(-10 * time.Minute)

	due, err := repo.GetDue(ctx, now, staleBefore, 10)
	if err != nil {
		t.Fatalf("Failed to get due: %v", err)
	}
	if len(due) != 1 || due[0].ID != qe.ID {
		t.Fatalf("Expected the enqueued entry to be due, got %v", due)
	}
	if due[0].Status != QueueStatusPending {
		t.Errorf("Expected pending status, got %q", due[0].Status)
	}

	claimed, err := repo.Claim(ctx, qe.ID, now, staleBefore)
	if err != nil {
		t.Fatalf("Failed to claim: %v", err)
	}
	if !claimed {
		t.Fatal("Expected first claim to succeed")
	}

	// A second claim on a fresh processing entry must lose.
	claimed, err = repo.Claim(ctx, qe.ID, now, staleBefore)
	if err != nil {
		t.Fatalf("Failed on second claim: %v", err)
	}
	if claimed {
		t.Error("Expected second claim to fail while processing is fresh")
	}

	if err := repo.MarkCompleted(ctx, qe.ID); err != nil {
		t.Fatalf("Failed to mark completed: %v", err)
	}

	counts, err := repo.GetStatusCounts(ctx)
	if err != nil {
		t.Fatalf("Failed to get status counts: %v", err)
	}
	if counts[QueueStatusCompleted] != 1 {
		t.Errorf("Expected 1 completed entry, got %v", counts)
	}

	// Completed entries are terminal.
	claimed, _ = repo.Claim(ctx, qe.ID, now, staleBefore)
	if claimed {
		t.Error("Expected completed entry to be unclaimable")
	}
}

func TestQueueStaleClaimReclaim(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	feed := createTestFeed(t, db, "https://example.com/rss")
	entry := createTestEntry(t, db, feed.ID, "g1")

	repo := NewQueueRepository(db)
	qe := &QueueEntry{EntryID: entry.ID, Kind: DeliveryKindPost}
	if err := repo.Enqueue(ctx, qe); err != nil {
		t.Fatalf("Failed to enqueue: %v", err)
	}

	// Claim with a last_attempt_at in the past, simulating a worker that died
	// mid-delivery.
	past := time.Now().UTC().Add(-time.Hour)
	if claimed, err := repo.Claim(ctx, qe.ID, past, past.Add(-10*time.Minute)); err != nil || !claimed {
		t.Fatalf("Failed initial claim: claimed=%v err=%v", claimed, err)
	}

	now := time.Now().UTC()
	staleBefore := now.Add(-10 * time.Minute)

	due, err := repo.GetDue(ctx, now, staleBefore, 10)
	if err != nil {
		t.Fatalf("Failed to get due: %v", err)
	}
	if len(due) != 1 {
		t.Fatalf("Expected stale processing entry to be due again, got %d", len(due))
	}

	claimed, err := repo.Claim(ctx, qe.ID, now, staleBefore)
	if err != nil {
		t.Fatalf("Failed to reclaim: %v", err)
	}
	if !claimed {
		t.Error("Expected stale processing entry to be reclaimable")
	}
}

func TestQueueScheduledEntryNotDueEarly(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	feed := createTestFeed(t, db, "https://example.com/rss")
	entry := createTestEntry(t, db, feed.ID, "g1")

	repo := NewQueueRepository(db)
	future := time.Now().UTC().Add(30 * time.Minute)
	qe := &QueueEntry{EntryID: entry.ID, Kind: DeliveryKindPost, ScheduledAt: &future}
	if err := repo.Enqueue(ctx, qe); err != nil {
		t.Fatalf("Failed to enqueue: %v", err)
	}

	now := time.Now().UTC()
	due, err := repo.GetDue(ctx, now, now.Add(-10*time.Minute), 10)
	if err != nil {
		t.Fatalf("Failed to get due: %v", err)
	}
	if len(due) != 0 {
		t.Errorf("Expected scheduled entry to not be due yet, got %d", len(due))
	}

	due, err = repo.GetDue(ctx, future.Add(time.Minute), now.Add(-10*time.Minute), 10)
	if err != nil {
		t.Fatalf("Failed to get due: %v", err)
	}
	if len(due) != 1 {
		t.Errorf("Expected scheduled entry due after its time, got %d", len(due))
	}
}

func TestQueueMarkFailedAndRearm(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	feed := createTestFeed(t, db, "https://example.com/rss")
	entry := createTestEntry(t, db, feed.ID, "g1")

	repo := NewQueueRepository(db)
	qe := &QueueEntry{EntryID: entry.ID, Kind: DeliveryKindPost}
	if err := repo.Enqueue(ctx, qe); err != nil {
		t.Fatalf("Failed to enqueue: %v", err)
	}

	now := time.Now().UTC()
	maxAttempts := 3

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		rearmed, err := repo.Rearm(ctx, maxAttempts)
		if err != nil {
			t.Fatalf("Failed to re-arm: %v", err)
		}
		if attempt == 1 && rearmed != 0 {
			t.Errorf("Expected nothing to re-arm before first failure, got %d", rearmed)
		}
		if attempt > 1 && rearmed != 1 {
			t.Errorf("Attempt %d: expected 1 entry re-armed, got %d", attempt, rearmed)
		}

		claimed, err := repo.Claim(ctx, qe.ID, now, now.Add(-10*time.Minute))
		if err != nil || !claimed {
			t.Fatalf("Attempt %d: failed to claim: claimed=%v err=%v", attempt, claimed, err)
		}
		if err := repo.MarkFailed(ctx, qe.ID, "delivery refused", now); err != nil {
			t.Fatalf("Failed to mark failed: %v", err)
		}
	}

	// Attempt ceiling reached: no further re-arms.
	rearmed, err := repo.Rearm(ctx, maxAttempts)
	if err != nil {
		t.Fatalf("Failed final re-arm check: %v", err)
	}
	if rearmed != 0 {
		t.Errorf("Expected no re-arm at the attempt ceiling, got %d", rearmed)
	}

	counts, _ := repo.GetStatusCounts(ctx)
	if counts[QueueStatusFailed] != 1 {
		t.Errorf("Expected entry to stay failed, got %v", counts)
	}
}

func TestQueueHasActive(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	feed := createTestFeed(t, db, "https://example.com/rss")
	entry := createTestEntry(t, db, feed.ID, "g1")

	repo := NewQueueRepository(db)

	active, err := repo.HasActive(ctx, entry.ID, DeliveryKindPost)
	if err != nil {
		t.Fatalf("Failed to check active: %v", err)
	}
	if active {
		t.Error("Expected no active entry before enqueue")
	}

	qe := &QueueEntry{EntryID: entry.ID, Kind: DeliveryKindPost}
	if err := repo.Enqueue(ctx, qe); err != nil {
		t.Fatalf("Failed to enqueue: %v", err)
	}

	active, _ = repo.HasActive(ctx, entry.ID, DeliveryKindPost)
	if !active {
		t.Error("Expected active entry after enqueue")
	}

	// Other delivery kinds are tracked separately.
	active, _ = repo.HasActive(ctx, entry.ID, DeliveryKindStory)
	if active {
		t.Error("Expected story kind to be inactive")
	}

	// Failed entries do not block a new decision.
	if err := repo.MarkFailed(ctx, qe.ID, "boom", time.Now().UTC()); err != nil {
		t.Fatalf("Failed to mark failed: %v", err)
	}
	active, _ = repo.HasActive(ctx, entry.ID, DeliveryKindPost)
	if active {
		t.Error("Expected failed entry to not count as active")
	}
}

func TestQueueDeleteTerminalBefore(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	feed := createTestFeed(t, db, "https://example.com/rss")
	entry := createTestEntry(t, db, feed.ID, "g1")

	repo := NewQueueRepository(db)

	old := time.Now().UTC().Add(-48 * time.Hour)
	doneOld := &QueueEntry{EntryID: entry.ID, Kind: DeliveryKindPost, Status: QueueStatusCompleted, CreatedAt: old}
	pendingOld := &QueueEntry{EntryID: entry.ID, Kind: DeliveryKindStory, Status: QueueStatusPending, CreatedAt: old}
	for _, qe := range []*QueueEntry{doneOld, pendingOld} {
		if err := repo.Enqueue(ctx, qe); err != nil {
			t.Fatalf("Failed to enqueue: %v", err)
		}
	}

	deleted, err := repo.DeleteTerminalBefore(ctx, time.Now().UTC().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("Failed to delete terminal: %v", err)
	}
	if deleted != 1 {
		t.Errorf("Expected only the completed entry pruned, got %d", deleted)
	}

	counts, _ := repo.GetStatusCounts(ctx)
	if counts[QueueStatusPending] != 1 {
		t.Errorf("Expected pending entry retained, got %v", counts)
	}
}
