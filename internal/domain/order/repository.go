package order

import (
	"context"

	"github.com/flexprice/recurring/internal/types"
)

// Ledger is the order and payment store of the host commerce platform
type Ledger interface {
	GetOrder(ctx context.Context, id string) (*Order, error)
	// CreateOrder inserts order. A duplicate (gateway, transaction_id) pair yields ErrAlreadyExists.
	CreateOrder(ctx context.Context, order *Order) error
	UpdateOrderStatus(ctx context.Context, id string, status types.OrderStatus) error
	// SetTransactionID records the gateway transaction that paid an order
	SetTransactionID(ctx context.Context, id string, transactionID string) error
	AddOrderNote(ctx context.Context, id string, text string) error
	// FindByTransactionID returns the order paid by transactionID or ErrNotFound
	FindByTransactionID(ctx context.Context, gateway types.GatewayType, transactionID string) (*Order, error)
	// CountRenewals is the number of renewal orders linked to the subscription
	CountRenewals(ctx context.Context, subscriptionID string) (int, error)
}
