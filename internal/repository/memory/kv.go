package memory

import (
	"context"
	"sync"
	"time"

	"github.com/kailas-cloud/cortex/internal/db"
)

type kvValue struct {
	data      []byte
	expiresAt time.Time
}

// KV is a process-local key-value store with optional expiry.
type KV struct {
	mu   sync.RWMutex
	data map[string]kvValue
	now  func() time.Time
}

// NewKV creates an empty KV.
func NewKV() *KV {
	return &KV{data: make(map[string]kvValue), now: time.Now}
}

// Get returns a value or db.ErrKeyNotFound.
func (s *KV) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	v, ok := s.data[key]
	s.mu.RUnlock()

	if !ok || (!v.expiresAt.IsZero() && s.now().After(v.expiresAt)) {
		return nil, db.ErrKeyNotFound
	}
	return append([]byte(nil), v.data...), nil
}

// Set stores a value without expiry.
func (s *KV) Set(ctx context.Context, key string, value []byte) error {
	return s.SetWithTTL(ctx, key, value, 0)
}

// SetWithTTL stores a value that expires after ttl; ttl <= 0 never expires.
func (s *KV) SetWithTTL(_ context.Context, key string, value []byte, ttl time.Duration) error {
	v := kvValue{data: append([]byte(nil), value...)}
	if ttl > 0 {
		v.expiresAt = s.now().Add(ttl)
	}
	s.mu.Lock()
	s.data[key] = v
	s.mu.Unlock()
	return nil
}
