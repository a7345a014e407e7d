// Package lock provides per-key mutual exclusion that honours context cancellation.
package lock

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

type slot struct {
	sem  *semaphore.Weighted
	refs int
}

// Keyed serializes work per key. Different keys never block each other.
// Slots are dropped once no holder or waiter references them.
type Keyed struct {
	mu    sync.Mutex
	slots map[string]*slot
}

// NewKeyed creates an empty Keyed lock.
func NewKeyed() *Keyed {
	return &Keyed{slots: make(map[string]*slot)}
}

// Lock blocks until key is free or ctx is done. The returned func releases
// the key and must be called exactly once.
func (k *Keyed) Lock(ctx context.Context, key string) (func(), error) {
	s := k.acquire(key)
	if err := s.sem.Acquire(ctx, 1); err != nil {
		k.release(key, s)
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			s.sem.Release(1)
			k.release(key, s)
		})
	}, nil
}

// TryLock takes key only if it is free.
func (k *Keyed) TryLock(key string) (func(), bool) {
	s := k.acquire(key)
	if !s.sem.TryAcquire(1) {
		k.release(key, s)
		return nil, false
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			s.sem.Release(1)
			k.release(key, s)
		})
	}, true
}

func (k *Keyed) acquire(key string) *slot {
	k.mu.Lock()
	defer k.mu.Unlock()

	s, ok := k.slots[key]
	if !ok {
		s = &slot{sem: semaphore.NewWeighted(1)}
		k.slots[key] = s
	}
	s.refs++
	return s
}

func (k *Keyed) release(key string, s *slot) {
	k.mu.Lock()
	defer k.mu.Unlock()

	s.refs--
	if s.refs == 0 {
		delete(k.slots, key)
	}
}

func (k *Keyed) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.slots)
}
