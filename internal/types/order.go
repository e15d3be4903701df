package types

import (
	ierr "github.com/flexprice/recurring/internal/errors"
	"github.com/samber/lo"
)

// OrderStatus is the status of an order in the host ledger
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusComplete   OrderStatus = "complete"
	OrderStatusFailed     OrderStatus = "failed"
	OrderStatusRefunded   OrderStatus = "refunded"
)

var OrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusProcessing,
	OrderStatusComplete,
	OrderStatusFailed,
	OrderStatusRefunded,
}

func (s OrderStatus) Validate() error {
	if !lo.Contains(OrderStatuses, s) {
		return ierr.NewError("invalid order status").
			WithHint("Invalid order status").
			WithReportableDetails(map[string]any{
				"status":  s,
				"allowed": OrderStatuses,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// OrderKind separates the order that created a subscription from its renewals
type OrderKind string

const (
	OrderKindParent  OrderKind = "parent"
	OrderKindRenewal OrderKind = "renewal"
)
