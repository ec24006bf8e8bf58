package usecase

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/phenrril/rainydays/internal/domain"
)

// CartStore owns one view's copy of the cart. Every mutation is written
// through to the store before it returns, then announced to other views over
// the change signal. Views sharing a store are last-writer-wins.
type CartStore struct {
	id        string
	namespace string
	store     domain.KVStore
	signal    domain.ChangeSignal

	mu   sync.Mutex
	cart domain.Cart

	lmu       sync.Mutex
	listeners map[int]func(domain.Cart)
	nextL     int
}

func NewCartStore(store domain.KVStore, sig domain.ChangeSignal, namespace string) *CartStore {
	return &CartStore{
		id:        uuid.NewString(),
		namespace: namespace,
		store:     store,
		signal:    sig,
		listeners: map[int]func(domain.Cart){},
	}
}

func (s *CartStore) ViewID() string    { return s.id }
func (s *CartStore) Namespace() string { return s.namespace }

func (s *CartStore) key() string { return domain.ScopedKey(s.namespace, domain.CartKey) }

// Load replaces the in-memory cart with the persisted one. Missing,
// unreadable or malformed data yields an empty cart.
func (s *CartStore) Load(ctx context.Context) domain.Cart {
	cart := s.read(ctx)
	s.mu.Lock()
	s.cart = cart
	s.mu.Unlock()
	return cart.Clone()
}

func (s *CartStore) read(ctx context.Context) domain.Cart {
	raw, ok, err := s.store.Get(ctx, s.key())
	if err != nil {
		log.Error().Err(err).Str("key", s.key()).Msg("read cart")
		return domain.Cart{Lines: []domain.CartLine{}}
	}
	if !ok || len(raw) == 0 {
		return domain.Cart{Lines: []domain.CartLine{}}
	}
	lines, err := decodeLines(raw)
	if err != nil {
		log.Warn().Err(err).Str("key", s.key()).Msg("discarding stored cart")
		return domain.Cart{Lines: []domain.CartLine{}}
	}
	return domain.Cart{Lines: normalizeLines(lines)}
}

func decodeLines(raw []byte) ([]domain.CartLine, error) {
	var lines []domain.CartLine
	if err := json.Unmarshal(raw, &lines); err != nil {
		return nil, errors.Wrap(domain.ErrMalformedState, err.Error())
	}
	return lines, nil
}

// normalizeLines restores the cart invariants on data another writer may
// have produced: one line per identity and every quantity at least 1.
func normalizeLines(in []domain.CartLine) []domain.CartLine {
	out := make([]domain.CartLine, 0, len(in))
	idx := map[domain.LineKey]int{}
	for _, l := range in {
		if l.ProductID == "" || l.Quantity < 0 {
			continue
		}
		if l.Quantity == 0 {
			l.Quantity = 1
		}
		if i, ok := idx[l.Key()]; ok {
			out[i].Quantity += l.Quantity
			continue
		}
		idx[l.Key()] = len(out)
		out = append(out, l)
	}
	return out
}

// Persist writes cart to the store and makes it this view's cart.
func (s *CartStore) Persist(ctx context.Context, cart domain.Cart) error {
	cart = domain.Cart{Lines: normalizeLines(cart.Lines)}
	return s.commit(ctx, func(domain.Cart) (domain.Cart, bool) { return cart, true })
}

// commit applies fn to a copy of the cart, writes the result and only then
// swaps it in. fn returns false when there is nothing to write.
func (s *CartStore) commit(ctx context.Context, fn func(domain.Cart) (domain.Cart, bool)) error {
	s.mu.Lock()
	next, changed := fn(s.cart.Clone())
	if !changed {
		s.mu.Unlock()
		return nil
	}
	if next.Lines == nil {
		next.Lines = []domain.CartLine{}
	}
	raw, err := json.Marshal(next.Lines)
	if err != nil {
		s.mu.Unlock()
		return errors.Wrap(err, "encode cart")
	}
	if err := s.store.Set(ctx, s.key(), raw); err != nil {
		s.mu.Unlock()
		return errors.Wrap(err, "persist cart")
	}
	s.cart = next
	snapshot := next.Clone()
	s.mu.Unlock()

	if s.signal != nil {
		ev := domain.StorageEvent{Namespace: s.namespace, Key: domain.CartKey, Origin: s.id}
		if err := s.signal.Publish(ctx, ev); err != nil {
			log.Warn().Err(err).Str("view", s.id).Msg("publish cart change")
		}
	}
	s.notify(snapshot)
	return nil
}

// AddItem merges into the line with the same product and size, or appends a
// new line priced from the product at this moment. A quantity below 1 is
// treated as 1.
func (s *CartStore) AddItem(ctx context.Context, p domain.Product, size string, qty int) error {
	p.ID = domain.ProductID(strings.TrimSpace(string(p.ID)))
	if p.ID == "" {
		return errors.Wrap(domain.ErrInvalidArgument, "product without id")
	}
	if qty < 1 {
		log.Debug().Int("qty", qty).Str("product", p.ID.String()).Msg("quantity clamped to 1")
		qty = 1
	}
	return s.commit(ctx, func(c domain.Cart) (domain.Cart, bool) {
		if i := c.Find(domain.NewLineKey(p.ID, size)); i >= 0 {
			c.Lines[i].Quantity += qty
			return c, true
		}
		c.Lines = append(c.Lines, domain.CartLine{
			ProductID: p.ID,
			Size:      size,
			Title:     p.Title,
			Price:     p.EffectivePrice(),
			Image:     p.Image.URL,
			Quantity:  qty,
		})
		return c, true
	})
}

func (s *CartStore) Increment(ctx context.Context, id domain.ProductID, size string) error {
	return s.commit(ctx, func(c domain.Cart) (domain.Cart, bool) {
		i := c.Find(domain.NewLineKey(id, size))
		if i < 0 {
			s.logMissing("increment", id, size)
			return c, false
		}
		c.Lines[i].Quantity++
		return c, true
	})
}

// Decrement removes the line once its quantity would drop to zero.
func (s *CartStore) Decrement(ctx context.Context, id domain.ProductID, size string) error {
	return s.commit(ctx, func(c domain.Cart) (domain.Cart, bool) {
		i := c.Find(domain.NewLineKey(id, size))
		if i < 0 {
			s.logMissing("decrement", id, size)
			return c, false
		}
		if c.Lines[i].Quantity > 1 {
			c.Lines[i].Quantity--
			return c, true
		}
		c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
		return c, true
	})
}

func (s *CartStore) RemoveItem(ctx context.Context, id domain.ProductID, size string) error {
	return s.commit(ctx, func(c domain.Cart) (domain.Cart, bool) {
		i := c.Find(domain.NewLineKey(id, size))
		if i < 0 {
			s.logMissing("remove", id, size)
			return c, false
		}
		c.Lines = append(c.Lines[:i], c.Lines[i+1:]...)
		return c, true
	})
}

func (s *CartStore) Clear(ctx context.Context) error {
	return s.commit(ctx, func(domain.Cart) (domain.Cart, bool) {
		return domain.Cart{Lines: []domain.CartLine{}}, true
	})
}

// a missing line is a no-op
func (s *CartStore) logMissing(op string, id domain.ProductID, size string) {
	log.Debug().Str("op", op).Str("product", id.String()).Str("size", size).Str("view", s.id).Msg("no matching cart line")
}

func (s *CartStore) Snapshot() domain.Cart {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Clone()
}

func (s *CartStore) Total() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Total()
}

func (s *CartStore) ItemCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.ItemCount()
}

// OnChange registers fn to run with a snapshot after every change to this
// view's cart, local or reloaded.
func (s *CartStore) OnChange(fn func(domain.Cart)) (cancel func()) {
	s.lmu.Lock()
	id := s.nextL
	s.nextL++
	s.listeners[id] = fn
	s.lmu.Unlock()
	return func() {
		s.lmu.Lock()
		delete(s.listeners, id)
		s.lmu.Unlock()
	}
}

func (s *CartStore) notify(c domain.Cart) {
	s.lmu.Lock()
	fns := make([]func(domain.Cart), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.lmu.Unlock()
	for _, fn := range fns {
		fn(c.Clone())
	}
}

// Watch reloads this view whenever another view reports that the persisted
// cart of the same namespace changed.
func (s *CartStore) Watch() (cancel func()) {
	if s.signal == nil {
		return func() {}
	}
	return s.signal.Subscribe(func(ev domain.StorageEvent) {
		if ev.Key != domain.CartKey || ev.Namespace != s.namespace || ev.Origin == s.id {
			return
		}
		cart := s.Load(context.Background())
		log.Debug().Str("view", s.id).Str("from", ev.Origin).Int("items", cart.ItemCount()).Msg("cart reloaded")
		s.notify(cart)
	})
}
