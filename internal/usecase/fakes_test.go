package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/phenrril/rainydays/internal/domain"
)

var errStoreDown = errors.New("store down")

type fakeStore struct {
	mu       sync.Mutex
	data     map[string][]byte
	sets     int
	failKeys map[string]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: map[string][]byte{}, failKeys: map[string]bool{}}
}

func (s *fakeStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *fakeStore) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failKeys[key] {
		return errStoreDown
	}
	s.sets++
	s.data[key] = append([]byte(nil), value...)
	return nil
}

func (s *fakeStore) raw(key string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return string(s.data[key])
}

func (s *fakeStore) setCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sets
}

func (s *fakeStore) fail(key string) {
	s.mu.Lock()
	s.failKeys[key] = true
	s.mu.Unlock()
}

// ctxStore fails writes once the caller's context is done, like a database
// driver would.
type ctxStore struct{ *fakeStore }

func (s ctxStore) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.fakeStore.Set(ctx, key, value)
}

// fakeSignal delivers events synchronously to every subscriber.
type fakeSignal struct {
	mu   sync.Mutex
	subs map[int]func(domain.StorageEvent)
	next int
	sent []domain.StorageEvent
}

func newFakeSignal() *fakeSignal { return &fakeSignal{subs: map[int]func(domain.StorageEvent){}} }

func (f *fakeSignal) Publish(_ context.Context, ev domain.StorageEvent) error {
	f.mu.Lock()
	f.sent = append(f.sent, ev)
	fns := make([]func(domain.StorageEvent), 0, len(f.subs))
	for _, fn := range f.subs {
		fns = append(fns, fn)
	}
	f.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
	return nil
}

func (f *fakeSignal) Subscribe(fn func(domain.StorageEvent)) func() {
	f.mu.Lock()
	id := f.next
	f.next++
	f.subs[id] = fn
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		delete(f.subs, id)
		f.mu.Unlock()
	}
}

type fakeCatalog struct {
	products []domain.Product
	err      error
}

func (c *fakeCatalog) ListProducts(context.Context) ([]domain.Product, error) {
	if c.err != nil {
		return nil, c.err
	}
	return c.products, nil
}

func (c *fakeCatalog) GetProduct(_ context.Context, id domain.ProductID) (*domain.Product, error) {
	if c.err != nil {
		return nil, c.err
	}
	for _, p := range c.products {
		if p.ID == id {
			p := p
			return &p, nil
		}
	}
	return nil, domain.ErrNotFound
}

// assertLines compares carts by value; decimals are compared numerically.
func assertLines(t *testing.T, want, got []domain.CartLine) {
	t.Helper()
	if !assert.Len(t, got, len(want)) {
		return
	}
	for i := range want {
		w, g := want[i], got[i]
		assert.Equal(t, w.Key(), g.Key(), "line %d identity", i)
		assert.Equal(t, w.Title, g.Title, "line %d title", i)
		assert.Equal(t, w.Image, g.Image, "line %d image", i)
		assert.Equal(t, w.Quantity, g.Quantity, "line %d quantity", i)
		assert.True(t, w.Price.Equal(g.Price), "line %d price: want %s got %s", i, w.Price, g.Price)
	}
}
