package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	oread "github.com/sleddd/oread-companion"
)

// History stores recent turns per conversation.
type History interface {
	Append(ctx context.Context, conversationID string, turn oread.Turn) error
	Recent(ctx context.Context, conversationID string, n int) ([]oread.Turn, error)
}

// RedisHistoryConfig controls the redis-backed history.
type RedisHistoryConfig struct {
	// KeyPrefix namespaces history keys. Zero means "oread:history:".
	KeyPrefix string
	// MaxTurns bounds stored turns per conversation. Zero means 64.
	MaxTurns int
	// TTL expires idle conversations. Zero means 7 days.
	TTL time.Duration
}

// DefaultRedisHistoryConfig returns the production history settings.
func DefaultRedisHistoryConfig() RedisHistoryConfig {
	return RedisHistoryConfig{
		KeyPrefix: "oread:history:",
		MaxTurns:  64,
		TTL:       7 * 24 * time.Hour,
	}
}

// RedisHistory keeps per-conversation turn lists in redis.
type RedisHistory struct {
	client redis.UniversalClient
	cfg    RedisHistoryConfig
}

// NewRedisHistory builds a redis history store.
func NewRedisHistory(client redis.UniversalClient, config ...RedisHistoryConfig) *RedisHistory {
	cfg := DefaultRedisHistoryConfig()
	if len(config) > 0 {
		cfg = config[0]
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "oread:history:"
	}
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = 64
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 7 * 24 * time.Hour
	}
	return &RedisHistory{client: client, cfg: cfg}
}

func (r *RedisHistory) key(conversationID string) string {
	return r.cfg.KeyPrefix + conversationID
}

// Append implements History.
func (r *RedisHistory) Append(ctx context.Context, conversationID string, turn oread.Turn) error {
	raw, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("memory: marshal turn: %w", err)
	}
	key := r.key(conversationID)
	pipe := r.client.TxPipeline()
	pipe.RPush(ctx, key, raw)
	pipe.LTrim(ctx, key, int64(-r.cfg.MaxTurns), -1)
	pipe.Expire(ctx, key, r.cfg.TTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("memory: append turn: %w", err)
	}
	return nil
}

// Recent implements History, returning up to n turns oldest first.
func (r *RedisHistory) Recent(ctx context.Context, conversationID string, n int) ([]oread.Turn, error) {
	if n <= 0 {
		n = r.cfg.MaxTurns
	}
	raws, err := r.client.LRange(ctx, r.key(conversationID), int64(-n), -1).Result()
	if err != nil {
		return nil, fmt.Errorf("memory: read history: %w", err)
	}
	turns := make([]oread.Turn, 0, len(raws))
	for _, raw := range raws {
		var t oread.Turn
		if err := json.Unmarshal([]byte(raw), &t); err != nil {
			continue
		}
		turns = append(turns, t)
	}
	return turns, nil
}

// MemoryHistory is an in-process History for tests and single-node runs.
type MemoryHistory struct {
	mu       sync.RWMutex
	turns    map[string][]oread.Turn
	maxTurns int
}

// NewMemoryHistory builds an in-process history store.
func NewMemoryHistory(maxTurns int) *MemoryHistory {
	if maxTurns <= 0 {
		maxTurns = 64
	}
	return &MemoryHistory{turns: map[string][]oread.Turn{}, maxTurns: maxTurns}
}

// Append implements History.
func (m *MemoryHistory) Append(_ context.Context, conversationID string, turn oread.Turn) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := append(m.turns[conversationID], turn)
	if len(list) > m.maxTurns {
		list = list[len(list)-m.maxTurns:]
	}
	m.turns[conversationID] = list
	return nil
}

// Recent implements History.
func (m *MemoryHistory) Recent(_ context.Context, conversationID string, n int) ([]oread.Turn, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	list := m.turns[conversationID]
	if n > 0 && len(list) > n {
		list = list[len(list)-n:]
	}
	out := make([]oread.Turn, len(list))
	copy(out, list)
	return out, nil
}
