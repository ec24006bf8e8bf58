package signal

import (
	"context"
	"sync"

	"github.com/phenrril/rainydays/internal/domain"
)

// Hub delivers storage events to subscribers in this process. Delivery is
// synchronous on the publishing goroutine.
type Hub struct {
	mu   sync.RWMutex
	subs map[int]func(domain.StorageEvent)
	next int
}

func NewHub() *Hub { return &Hub{subs: map[int]func(domain.StorageEvent){}} }

func (h *Hub) Publish(_ context.Context, ev domain.StorageEvent) error {
	h.Dispatch(ev)
	return nil
}

func (h *Hub) Dispatch(ev domain.StorageEvent) {
	h.mu.RLock()
	fns := make([]func(domain.StorageEvent), 0, len(h.subs))
	for _, fn := range h.subs {
		fns = append(fns, fn)
	}
	h.mu.RUnlock()
	for _, fn := range fns {
		fn(ev)
	}
}

func (h *Hub) Subscribe(fn func(domain.StorageEvent)) func() {
	h.mu.Lock()
	id := h.next
	h.next++
	h.subs[id] = fn
	h.mu.Unlock()
	return func() {
		h.mu.Lock()
		delete(h.subs, id)
		h.mu.Unlock()
	}
}
