package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/windoze95/manas-api/internal/ai"
	"github.com/windoze95/manas-api/internal/logger"
	"go.uber.org/zap"
)

const (
	// MaxHistory is how many recent messages are kept per user.
	MaxHistory = 10

	historyTTL = 24 * time.Hour
)

// HistoryStore keeps each user's most recent conversation turns.
type HistoryStore interface {
	Recent(ctx context.Context, userID string) ([]ai.Message, error)
	Append(ctx context.Context, userID string, msgs ...ai.Message) error
	Clear(ctx context.Context, userID string) error
}

// RedisHistory stores history as a capped Redis list per user.
type RedisHistory struct {
	client *redis.Client
}

// NewRedisHistory creates a RedisHistory on an existing client.
func NewRedisHistory(client *redis.Client) *RedisHistory {
	return &RedisHistory{client: client}
}

func historyKey(userID string) string {
	return "history:" + userID
}

// Recent returns up to MaxHistory messages, oldest first.
func (h *RedisHistory) Recent(ctx context.Context, userID string) ([]ai.Message, error) {
	raw, err := h.client.LRange(ctx, historyKey(userID), -MaxHistory, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}

	msgs := make([]ai.Message, 0, len(raw))
	for _, r := range raw {
		var m ai.Message
		if err := json.Unmarshal([]byte(r), &m); err != nil {
			logger.Get().Warn("skipping corrupt history entry", zap.String("user_id", userID), zap.Error(err))
			continue
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

// Append adds messages and trims the list to MaxHistory.
func (h *RedisHistory) Append(ctx context.Context, userID string, msgs ...ai.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	values := make([]interface{}, 0, len(msgs))
	for _, m := range msgs {
		b, err := json.Marshal(m)
		if err != nil {
			return err
		}
		values = append(values, string(b))
	}

	key := historyKey(userID)
	_, err := h.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, values...)
		pipe.LTrim(ctx, key, -MaxHistory, -1)
		pipe.Expire(ctx, key, historyTTL)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to append history: %w", err)
	}
	return nil
}

// Clear drops the user's history.
func (h *RedisHistory) Clear(ctx context.Context, userID string) error {
	return h.client.Del(ctx, historyKey(userID)).Err()
}

// MemoryHistory is an in-process HistoryStore.
type MemoryHistory struct {
	mu    sync.Mutex
	turns map[string][]ai.Message
}

// NewMemoryHistory creates an empty MemoryHistory.
func NewMemoryHistory() *MemoryHistory {
	return &MemoryHistory{turns: make(map[string][]ai.Message)}
}

// Recent returns up to MaxHistory messages, oldest first.
func (h *MemoryHistory) Recent(ctx context.Context, userID string) ([]ai.Message, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]ai.Message, len(h.turns[userID]))
	copy(out, h.turns[userID])
	return out, nil
}

// Append adds messages and keeps the last MaxHistory.
func (h *MemoryHistory) Append(ctx context.Context, userID string, msgs ...ai.Message) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	turns := append(h.turns[userID], msgs...)
	if len(turns) > MaxHistory {
		turns = append([]ai.Message(nil), turns[len(turns)-MaxHistory:]...)
	}
	h.turns[userID] = turns
	return nil
}

// Clear drops the user's history.
func (h *MemoryHistory) Clear(ctx context.Context, userID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.turns, userID)
	return nil
}
