package usecase

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/phenrril/rainydays/internal/domain"
)

const (
	DefaultDeliveryDays = 10
	MinDeliveryDays     = 7
	MaxDeliveryDays     = 14
)

// OrderHistory is the append-only list of receipts kept under the
// orderHistory key.
type OrderHistory struct {
	store     domain.KVStore
	namespace string
	mu        sync.Mutex
}

func NewOrderHistory(store domain.KVStore, namespace string) *OrderHistory {
	return &OrderHistory{store: store, namespace: namespace}
}

func (h *OrderHistory) key() string { return domain.ScopedKey(h.namespace, domain.OrderHistoryKey) }

// List returns the stored receipts. A malformed value is logged and read as
// an empty history.
func (h *OrderHistory) List(ctx context.Context) ([]domain.OrderReceipt, error) {
	raw, ok, err := h.store.Get(ctx, h.key())
	if err != nil {
		return nil, errors.Wrap(err, "read order history")
	}
	if !ok || len(raw) == 0 {
		return []domain.OrderReceipt{}, nil
	}
	var list []domain.OrderReceipt
	if err := json.Unmarshal(raw, &list); err != nil {
		log.Warn().Err(errors.Wrap(domain.ErrMalformedState, err.Error())).Str("key", h.key()).Msg("discarding stored order history")
		return []domain.OrderReceipt{}, nil
	}
	if list == nil {
		list = []domain.OrderReceipt{}
	}
	return list, nil
}

func (h *OrderHistory) Append(ctx context.Context, o domain.OrderReceipt) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	list, err := h.List(ctx)
	if err != nil {
		return err
	}
	list = append(list, o)
	raw, err := json.Marshal(list)
	if err != nil {
		return errors.Wrap(err, "encode order history")
	}
	return errors.Wrap(h.store.Set(ctx, h.key(), raw), "persist order history")
}

// CheckoutUC simulates placing an order. Nothing leaves the process: there is
// no payment and no inventory update.
type CheckoutUC struct {
	Now             func() time.Time
	DeliveryDays    int
	ProcessingDelay time.Duration

	mu     sync.Mutex
	issued map[string]struct{}
}

func NewCheckoutUC(deliveryDays int, delay time.Duration) *CheckoutUC {
	return &CheckoutUC{Now: time.Now, DeliveryDays: deliveryDays, ProcessingDelay: delay}
}

func (uc *CheckoutUC) PlaceOrder(ctx context.Context, cart *CartStore, history *OrderHistory, customer domain.CustomerInfo) (*domain.OrderReceipt, error) {
	snapshot := cart.Snapshot()
	if snapshot.IsEmpty() {
		return nil, domain.ErrEmptyCart
	}
	customer.Trim()
	if err := customer.Validate(); err != nil {
		return nil, err
	}

	now := uc.now()
	o := domain.OrderReceipt{
		CustomerInfo: customer,
		OrderID:      uc.nextOrderID(),
		Items:        snapshot.Lines,
		Total:        snapshot.Total(),
		OrderDate:    now,
		DeliveryDate: now.AddDate(0, 0, uc.deliveryDays()),
	}

	// processing pause; from here on the order completes even if ctx ends
	if uc.ProcessingDelay > 0 {
		time.Sleep(uc.ProcessingDelay)
	}
	ctx = context.WithoutCancel(ctx)

	if err := cart.Clear(ctx); err != nil {
		return nil, err
	}
	if err := history.Append(ctx, o); err != nil {
		log.Error().Err(err).Str("order", o.OrderID).Msg("save order history")
		return &o, err
	}
	log.Info().Str("order", o.OrderID).Int("items", snapshot.ItemCount()).Str("total", domain.FormatPrice(o.Total)).Msg("order placed")
	return &o, nil
}

func (uc *CheckoutUC) now() time.Time {
	if uc.Now != nil {
		return uc.Now()
	}
	return time.Now()
}

func (uc *CheckoutUC) deliveryDays() int {
	d := uc.DeliveryDays
	if d == 0 {
		d = DefaultDeliveryDays
	}
	if d < MinDeliveryDays {
		d = MinDeliveryDays
	}
	if d > MaxDeliveryDays {
		d = MaxDeliveryDays
	}
	return d
}

func (uc *CheckoutUC) nextOrderID() string {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	if uc.issued == nil {
		uc.issued = map[string]struct{}{}
	}
	for {
		raw := strings.ReplaceAll(uuid.NewString(), "-", "")
		id := "#RD" + strings.ToUpper(raw[:8])
		if _, dup := uc.issued[id]; dup {
			continue
		}
		uc.issued[id] = struct{}{}
		return id
	}
}
