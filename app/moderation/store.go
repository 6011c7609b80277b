package moderation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DecisionWindow bounds how long an operator can act on a preview. After it
// elapses the pending item is treated as unknown.
const DecisionWindow = time.Hour

const keyPrefix = "moderation:entry:"

// Store tracks which entries are awaiting an operator decision.
type Store interface {
	Remember(ctx context.Context, entryID string) error
	// Recall reports whether the entry is still inside its decision window.
	Recall(ctx context.Context, entryID string) (bool, error)
	Forget(ctx context.Context, entryID string) error
}

var _ Store = (*RedisStore)(nil)

// RedisStore keeps pending decisions in Redis so they survive restarts and
// expire on their own.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Remember(ctx context.Context, entryID string) error {
	if err := s.client.Set(ctx, keyPrefix+entryID, "1", DecisionWindow).Err(); err != nil {
		return fmt.Errorf("failed to store pending decision: %w", err)
	}
	return nil
}

func (s *RedisStore) Recall(ctx context.Context, entryID string) (bool, error) {
	err := s.client.Get(ctx, keyPrefix+entryID).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check pending decision: %w", err)
	}
	return true, nil
}

func (s *RedisStore) Forget(ctx context.Context, entryID string) error {
	if err := s.client.Del(ctx, keyPrefix+entryID).Err(); err != nil {
		return fmt.Errorf("failed to clear pending decision: %w", err)
	}
	return nil
}

var _ Store = (*MemoryStore)(nil)

// MemoryStore is the in-process fallback used when no Redis URL is
// configured. Pending decisions do not survive restarts.
type MemoryStore struct {
	mu      sync.Mutex
	pending map[string]time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{pending: make(map[string]time.Time)}
}

func (s *MemoryStore) Remember(ctx context.Context, entryID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[entryID] = time.Now().Add(DecisionWindow)
	return nil
}

func (s *MemoryStore) Recall(ctx context.Context, entryID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deadline, ok := s.pending[entryID]
	if !ok {
		return false, nil
	}
	if time.Now().After(deadline) {
		delete(s.pending, entryID)
		return false, nil
	}
	return true, nil
}

func (s *MemoryStore) Forget(ctx context.Context, entryID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, entryID)
	return nil
}
