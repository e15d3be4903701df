package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/flexprice/recurring/internal/domain/order"
	ierr "github.com/flexprice/recurring/internal/errors"
	"github.com/flexprice/recurring/internal/types"
)

// InMemoryLedger implements order.Ledger. Like the postgres unique index it
// rejects a second order paid by the same gateway transaction.
type InMemoryLedger struct {
	*InMemoryStore[*order.Order]

	mu    sync.Mutex
	notes map[string][]*order.Note
}

func NewInMemoryLedger() *InMemoryLedger {
	return &InMemoryLedger{
		InMemoryStore: NewInMemoryStore[*order.Order](),
		notes:         make(map[string][]*order.Note),
	}
}

func (l *InMemoryLedger) GetOrder(ctx context.Context, id string) (*order.Order, error) {
	o, err := l.InMemoryStore.Get(ctx, id)
	if err != nil || !CheckTenantFilter(ctx, o.TenantID) || o.Status == types.StatusDeleted {
		return nil, ierr.NewErrorf("order %s not found", id).
			WithHint("Order not found").
			WithReportableDetails(map[string]any{"order_id": id}).
			Mark(ierr.ErrNotFound)
	}
	c := *o
	return &c, nil
}

func (l *InMemoryLedger) CreateOrder(ctx context.Context, o *order.Order) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if o.TransactionID != "" {
		if _, err := l.findByTransactionID(ctx, o.Gateway, o.TransactionID); err == nil {
			return ierr.NewErrorf("transaction %s already recorded", o.TransactionID).
				WithHintf("Transaction %s is already recorded", o.TransactionID).
				Mark(ierr.ErrAlreadyExists)
		}
	}
	if o.Status == "" {
		o.Status = types.StatusPublished
	}

	c := *o
	return l.InMemoryStore.Create(ctx, o.ID, &c)
}

func (l *InMemoryLedger) UpdateOrderStatus(ctx context.Context, id string, status types.OrderStatus) error {
	return l.update(ctx, id, func(o *order.Order) {
		o.OrderStatus = status
	})
}

func (l *InMemoryLedger) SetTransactionID(ctx context.Context, id string, transactionID string) error {
	return l.update(ctx, id, func(o *order.Order) {
		o.TransactionID = transactionID
	})
}

func (l *InMemoryLedger) update(ctx context.Context, id string, fn func(o *order.Order)) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	o, err := l.GetOrder(ctx, id)
	if err != nil {
		return err
	}
	fn(o)
	o.Touch(ctx)
	return l.InMemoryStore.Update(ctx, id, o)
}

func (l *InMemoryLedger) AddOrderNote(ctx context.Context, id string, text string) error {
	if _, err := l.GetOrder(ctx, id); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.notes[id] = append(l.notes[id], &order.Note{
		ID:        types.GenerateUUIDWithPrefix(types.UUID_PREFIX_ORDER_NOTE),
		TenantID:  types.GetTenantID(ctx),
		OrderID:   id,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	})
	return nil
}

// OrderNotes returns the notes added to an order, oldest first
func (l *InMemoryLedger) OrderNotes(id string) []*order.Note {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*order.Note(nil), l.notes[id]...)
}

func (l *InMemoryLedger) FindByTransactionID(ctx context.Context, gateway types.GatewayType, transactionID string) (*order.Order, error) {
	return l.findByTransactionID(ctx, gateway, transactionID)
}

func (l *InMemoryLedger) findByTransactionID(ctx context.Context, gateway types.GatewayType, transactionID string) (*order.Order, error) {
	orders, err := l.InMemoryStore.List(ctx, nil, func(ctx context.Context, o *order.Order, _ interface{}) bool {
		return CheckTenantFilter(ctx, o.TenantID) &&
			o.Status != types.StatusDeleted &&
			o.Gateway == gateway &&
			transactionID != "" &&
			o.TransactionID == transactionID
	}, nil)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, ierr.NewErrorf("no order paid by transaction %s", transactionID).
			WithHint("Order not found").
			Mark(ierr.ErrNotFound)
	}
	c := *orders[0]
	return &c, nil
}

func (l *InMemoryLedger) CountRenewals(ctx context.Context, subscriptionID string) (int, error) {
	return l.InMemoryStore.Count(ctx, nil, func(ctx context.Context, o *order.Order, _ interface{}) bool {
		return CheckTenantFilter(ctx, o.TenantID) &&
			o.Status != types.StatusDeleted &&
			o.Kind == types.OrderKindRenewal &&
			o.SubscriptionID != nil &&
			*o.SubscriptionID == subscriptionID
	})
}

// ListRenewals returns the renewal orders of a subscription oldest first
func (l *InMemoryLedger) ListRenewals(ctx context.Context, subscriptionID string) []*order.Order {
	orders, _ := l.InMemoryStore.List(ctx, nil, func(ctx context.Context, o *order.Order, _ interface{}) bool {
		return o.Kind == types.OrderKindRenewal &&
			o.SubscriptionID != nil &&
			*o.SubscriptionID == subscriptionID
	}, func(i, j *order.Order) bool {
		return i.Date.Before(j.Date)
	})
	return orders
}
