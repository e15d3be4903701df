package order

import (
	"time"

	ierr "github.com/flexprice/recurring/internal/errors"
	"github.com/flexprice/recurring/internal/types"
	"github.com/shopspring/decimal"
)

// Order is a payment record in the host ledger. The parent order of a subscription
// is created by checkout, renewal orders are created by the renewal recorder.
type Order struct {
	ID             string            `db:"id" json:"id"`
	SubscriptionID *string           `db:"subscription_id" json:"subscription_id,omitempty"`
	Kind           types.OrderKind   `db:"kind" json:"kind"`
	Gateway        types.GatewayType `db:"gateway" json:"gateway"`
	// Amount is the order total including tax
	Amount        decimal.Decimal   `db:"amount" json:"amount"`
	Tax           decimal.Decimal   `db:"tax" json:"tax"`
	Currency      string            `db:"currency" json:"currency"`
	OrderStatus   types.OrderStatus `db:"order_status" json:"order_status"`
	TransactionID string            `db:"transaction_id" json:"transaction_id"`
	Date          time.Time         `db:"date" json:"date"`

	types.BaseModel
}

// Total is what the customer was charged for the order
func (o *Order) Total() decimal.Decimal {
	return o.Amount
}

func (o *Order) IsComplete() bool {
	return o.OrderStatus == types.OrderStatusComplete
}

func (o *Order) Validate() error {
	if o.Amount.IsNegative() || o.Tax.IsNegative() {
		return ierr.NewError("order amounts must not be negative").
			WithHint("Order amount and tax must not be negative").
			WithReportableDetails(map[string]any{
				"amount": o.Amount.String(),
				"tax":    o.Tax.String(),
			}).
			Mark(ierr.ErrValidation)
	}
	if o.Currency == "" {
		return ierr.NewError("order currency is required").
			WithHint("Order currency is required").
			Mark(ierr.ErrValidation)
	}
	if o.Kind == types.OrderKindRenewal && (o.SubscriptionID == nil || *o.SubscriptionID == "") {
		return ierr.NewError("renewal order requires a subscription").
			WithHint("Renewal orders must be linked to a subscription").
			Mark(ierr.ErrValidation)
	}
	return o.OrderStatus.Validate()
}

// Note is an append-only entry on an order
type Note struct {
	ID        string    `db:"id" json:"id"`
	TenantID  string    `db:"tenant_id" json:"tenant_id"`
	OrderID   string    `db:"order_id" json:"order_id"`
	Text      string    `db:"text" json:"text"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
