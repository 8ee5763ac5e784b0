package returns

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps each session's desk as a JSON document in Redis. The
// document expires with the session.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore constructs a RedisStore.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) key(sessionID string) string {
	return "returnsdesk:desk:" + sessionID
}

// Load implements StateStore. A missing document yields an empty desk.
func (s *RedisStore) Load(ctx context.Context, sessionID string) (*State, error) {
	payload, err := s.client.Get(ctx, s.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return NewState(), nil
		}
		return nil, fmt.Errorf("returns: load desk: %w", err)
	}
	return decodeState(payload)
}

// Save implements StateStore.
func (s *RedisStore) Save(ctx context.Context, sessionID string, st *State) error {
	payload, err := json.Marshal(st)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(sessionID), payload, s.ttl).Err()
}

// Delete implements StateStore.
func (s *RedisStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, s.key(sessionID)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	return nil
}

// MemoryStore is a process-local StateStore.
type MemoryStore struct {
	mu    sync.Mutex
	desks map[string][]byte
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{desks: make(map[string][]byte)}
}

// Load implements StateStore.
func (s *MemoryStore) Load(_ context.Context, sessionID string) (*State, error) {
	s.mu.Lock()
	payload, ok := s.desks[sessionID]
	s.mu.Unlock()
	if !ok {
		return NewState(), nil
	}
	return decodeState(payload)
}

// Save implements StateStore.
func (s *MemoryStore) Save(_ context.Context, sessionID string, st *State) error {
	payload, err := json.Marshal(st)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.desks[sessionID] = payload
	s.mu.Unlock()
	return nil
}

// Delete implements StateStore.
func (s *MemoryStore) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	delete(s.desks, sessionID)
	s.mu.Unlock()
	return nil
}

func decodeState(payload []byte) (*State, error) {
	st := NewState()
	if err := json.Unmarshal(payload, st); err != nil {
		return nil, fmt.Errorf("returns: decode desk: %w", err)
	}
	st.Orders.Unique = true
	return st, nil
}
