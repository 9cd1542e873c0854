package events

import "sync"

// Publisher delivers a value to every subscriber of key.
type Publisher[T any] interface {
	Publish(key string, v T)
}

// Subscriber registers fn for key and returns an idempotent unsubscribe.
type Subscriber[T any] interface {
	Subscribe(key string, fn func(T)) func()
}

type Bus[T any] interface {
	Publisher[T]
	Subscriber[T]
}

// Hub is an in-process fan-out keyed by string.
// Callbacks run synchronously on the publishing goroutine, outside the lock.
type Hub[T any] struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[string]map[uint64]func(T)
}

func NewHub[T any]() *Hub[T] {
	return &Hub[T]{subs: make(map[string]map[uint64]func(T))}
}

func (h *Hub[T]) Subscribe(key string, fn func(T)) func() {
	h.mu.Lock()
	h.nextID++
	id := h.nextID
	if h.subs[key] == nil {
		h.subs[key] = make(map[uint64]func(T))
	}
	h.subs[key][id] = fn
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs[key], id)
			if len(h.subs[key]) == 0 {
				delete(h.subs, key)
			}
		})
	}
}

func (h *Hub[T]) Publish(key string, v T) {
	h.mu.RLock()
	fns := make([]func(T), 0, len(h.subs[key]))
	for _, fn := range h.subs[key] {
		fns = append(fns, fn)
	}
	h.mu.RUnlock()

	for _, fn := range fns {
		fn(v)
	}
}

// Remote wraps a hub fed by another process, e.g. a PGBridge.
// Local publishes are dropped so a change is not delivered twice.
type Remote[T any] struct {
	*Hub[T]
}

func (Remote[T]) Publish(string, T) {}
