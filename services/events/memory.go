package events

import (
	"context"
	"strings"
	"sync"

	"github.com/trezcool/clubhouse/core"
)

// MemoryBus delivers events synchronously to in-process subscribers.
// It is used in tests and when no NATS server is configured.
type MemoryBus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]memorySub
}

type memorySub struct {
	pattern string
	handler func([]byte)
}

type memorySubscription struct {
	bus *MemoryBus
	id  int
}

var _ core.EventBus = (*MemoryBus)(nil)

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: make(map[int]memorySub)}
}

func (b *MemoryBus) Publish(_ context.Context, subject string, data []byte) error {
	b.mu.RLock()
	var handlers []func([]byte)
	for _, s := range b.subs {
		if matchSubject(s.pattern, subject) {
			handlers = append(handlers, s.handler)
		}
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(data)
	}
	return nil
}

func (b *MemoryBus) Subscribe(subject string, handler func(data []byte)) (core.Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	b.subs[b.nextID] = memorySub{pattern: subject, handler: handler}
	return &memorySubscription{bus: b, id: b.nextID}, nil
}

func (b *MemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = make(map[int]memorySub)
	return nil
}

// Subscribers returns the number of live subscriptions.
func (b *MemoryBus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

func (s *memorySubscription) Unsubscribe() error {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	delete(s.bus.subs, s.id)
	return nil
}

// matchSubject implements NATS subject matching: "*" matches one token, a trailing ">" matches the rest.
func matchSubject(pattern, subject string) bool {
	pt := strings.Split(pattern, ".")
	st := strings.Split(subject, ".")
	for i, p := range pt {
		if p == ">" {
			return i < len(st)
		}
		if i >= len(st) {
			return false
		}
		if p != "*" && p != st[i] {
			return false
		}
	}
	return len(pt) == len(st)
}
