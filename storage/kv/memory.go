package kv

import (
	"context"
	"sync"
	"time"

	"github.com/trezcool/clubhouse/core/newsletter"
)

// NowFunc is mockable in tests.
var NowFunc = time.Now

type (
	counter struct {
		count   int64
		expires time.Time
	}

	// MemoryStore keeps counters in process. Counters are not shared between instances.
	// Expired counters are swept at most once per window.
	MemoryStore struct {
		mu        sync.Mutex
		counters  map[string]*counter
		nextSweep time.Time
	}
)

var _ newsletter.CounterStore = (*MemoryStore)(nil) // interface compliance check

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{counters: make(map[string]*counter)}
}

func (s *MemoryStore) Incr(_ context.Context, key string, window time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := NowFunc()
	if !now.Before(s.nextSweep) {
		s.sweep(now)
		s.nextSweep = now.Add(window)
	}

	c, ok := s.counters[key]
	if !ok || !now.Before(c.expires) {
		c = &counter{expires: now.Add(window)}
		s.counters[key] = c
	}
	c.count++
	return c.count, nil
}

// sweep drops expired counters. Callers hold the lock.
func (s *MemoryStore) sweep(now time.Time) {
	for key, c := range s.counters {
		if !now.Before(c.expires) {
			delete(s.counters, key)
		}
	}
}

// Len returns the number of counters held, expired ones included until the next sweep.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.counters)
}

func (s *MemoryStore) Close() error { return nil }
