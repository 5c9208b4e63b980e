package capture

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const defaultSessionTTL = 24 * time.Hour

// Store persists contexts between turns. Load returns a fresh query-mode
// context when nothing is stored.
type Store interface {
	Load(ctx context.Context, tenantID, conversationID string) (*Context, error)
	Save(ctx context.Context, tenantID, conversationID string, c *Context) error
	Delete(ctx context.Context, tenantID, conversationID string) error
}

type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]Snapshot
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]Snapshot)}
}

func (m *MemoryStore) Load(_ context.Context, tenantID, conversationID string) (*Context, error) {
	m.mu.Lock()
	snap, ok := m.sessions[sessionKey(tenantID, conversationID)]
	m.mu.Unlock()
	if !ok {
		return NewContext(ModeQuery), nil
	}
	return Restore(snap)
}

func (m *MemoryStore) Save(_ context.Context, tenantID, conversationID string, c *Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sessionKey(tenantID, conversationID)] = c.Snapshot()
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, tenantID, conversationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionKey(tenantID, conversationID))
	return nil
}

// RedisStore keeps snapshots as JSON with a sliding TTL.
type RedisStore struct {
	client goredis.UniversalClient
	ttl    time.Duration
}

func NewRedisStore(client goredis.UniversalClient, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

func (r *RedisStore) key(tenantID, conversationID string) string {
	return "almanac:ctx:" + sessionKey(tenantID, conversationID)
}

func (r *RedisStore) Load(ctx context.Context, tenantID, conversationID string) (*Context, error) {
	payload, err := r.client.Get(ctx, r.key(tenantID, conversationID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return NewContext(ModeQuery), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load conversation context: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return nil, fmt.Errorf("decode conversation context: %w", err)
	}
	return Restore(snap)
}

func (r *RedisStore) Save(ctx context.Context, tenantID, conversationID string, c *Context) error {
	payload, err := json.Marshal(c.Snapshot())
	if err != nil {
		return fmt.Errorf("encode conversation context: %w", err)
	}
	if err := r.client.Set(ctx, r.key(tenantID, conversationID), payload, r.ttl).Err(); err != nil {
		return fmt.Errorf("save conversation context: %w", err)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, tenantID, conversationID string) error {
	return r.client.Del(ctx, r.key(tenantID, conversationID)).Err()
}

func sessionKey(tenantID, conversationID string) string {
	return tenantID + ":" + conversationID
}
