package subscription

import (
	"time"

	ierr "github.com/flexprice/recurring/internal/errors"
	"github.com/flexprice/recurring/internal/types"
	"github.com/shopspring/decimal"
)

type Subscription struct {
	// ID is the unique identifier for the subscription
	ID string `db:"id" json:"id"`

	// CustomerID owns the subscription, a customer may have many
	CustomerID string `db:"customer_id" json:"customer_id"`

	// ProductID and PriceID identify the catalog item and tier being billed
	ProductID string  `db:"product_id" json:"product_id"`
	PriceID   *string `db:"price_id" json:"price_id,omitempty"`

	// ParentPaymentID is the order that created the subscription
	ParentPaymentID string `db:"parent_payment_id" json:"parent_payment_id"`

	// Gateway is the payment provider handling the recurring charges
	Gateway types.GatewayType `db:"gateway" json:"gateway"`

	// ProfileID is the recurring billing identifier assigned by the gateway
	ProfileID string `db:"profile_id" json:"profile_id"`

	Period      types.BillingPeriod `db:"period" json:"period"`
	PeriodCount int                 `db:"period_count" json:"period_count"`

	// Currency is the original currency of the subscription, renewals must match it
	Currency string `db:"currency" json:"currency"`

	InitialAmount    decimal.Decimal  `db:"initial_amount" json:"initial_amount"`
	RecurringAmount  decimal.Decimal  `db:"recurring_amount" json:"recurring_amount"`
	InitialTax       decimal.Decimal  `db:"initial_tax" json:"initial_tax"`
	RecurringTax     decimal.Decimal  `db:"recurring_tax" json:"recurring_tax"`
	InitialTaxRate   *decimal.Decimal `db:"initial_tax_rate" json:"initial_tax_rate,omitempty"`
	RecurringTaxRate *decimal.Decimal `db:"recurring_tax_rate" json:"recurring_tax_rate,omitempty"`

	// BillTimes is the number of renewals to bill, 0 bills until cancelled
	BillTimes int `db:"bill_times" json:"bill_times"`

	SubscriptionStatus types.SubscriptionStatus `db:"subscription_status" json:"subscription_status"`

	// Created is when checkout created the subscription
	Created time.Time `db:"created" json:"created"`

	// Expiration is the next due date while billing, the trial end while trialling
	// and the end of access once cancelled
	Expiration *time.Time `db:"expiration" json:"expiration,omitempty"`

	TrialEnd *time.Time `db:"trial_end" json:"trial_end,omitempty"`

	// Version is bumped on every write and guards against lost updates
	Version int64 `db:"version" json:"version"`

	types.BaseModel
}

// Validate checks the fields a subscription must carry before it is persisted
func (s *Subscription) Validate() error {
	if s.CustomerID == "" || s.ProductID == "" {
		return ierr.NewError("customer_id and product_id are required").
			WithHint("Subscription must reference a customer and a product").
			Mark(ierr.ErrValidation)
	}
	if s.ParentPaymentID == "" {
		return ierr.NewError("parent_payment_id is required").
			WithHint("Subscription must reference the order that created it").
			Mark(ierr.ErrValidation)
	}
	if err := s.Gateway.Validate(); err != nil {
		return err
	}
	if err := s.Period.Validate(); err != nil {
		return err
	}
	if err := s.SubscriptionStatus.Validate(); err != nil {
		return err
	}
	if s.PeriodCount < 1 {
		return ierr.NewError("period_count must be positive").
			WithHint("Billing period count must be at least 1").
			Mark(ierr.ErrValidation)
	}
	if s.BillTimes < 0 {
		return ierr.NewError("bill_times must not be negative").
			WithHint("Bill times must be 0 for unlimited or a positive count").
			Mark(ierr.ErrValidation)
	}
	if s.Currency == "" {
		return ierr.NewError("currency is required").
			WithHint("Subscription currency is required").
			Mark(ierr.ErrValidation)
	}
	if s.RecurringAmount.IsNegative() || s.InitialAmount.IsNegative() {
		return ierr.NewError("amounts must not be negative").
			WithHint("Subscription amounts must not be negative").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// IsTrialBounded reports whether the subscription is in a trial that has not ended at now
func (s *Subscription) IsTrialBounded(now time.Time) bool {
	if s.SubscriptionStatus != types.SubscriptionStatusTrialling {
		return false
	}
	end := s.TrialEnd
	if end == nil {
		end = s.Expiration
	}
	return end != nil && end.After(now)
}

// HasReachedBillTimes reports whether timesBilled renewals exhaust a fixed bill count
func (s *Subscription) HasReachedBillTimes(timesBilled int) bool {
	return s.BillTimes > 0 && timesBilled >= s.BillTimes
}

// RenewalTax returns the tax portion of a renewal charge of amount. A recurring
// tax rate treats amount as tax inclusive, otherwise the flat recurring tax is used.
func (s *Subscription) RenewalTax(amount decimal.Decimal) decimal.Decimal {
	if s.RecurringTaxRate != nil && s.RecurringTaxRate.IsPositive() {
		net := amount.Div(decimal.NewFromInt(1).Add(*s.RecurringTaxRate))
		return amount.Sub(net).Round(2)
	}
	return s.RecurringTax
}

// NextDueAmount is what a retry charges: the recurring amount
func (s *Subscription) NextDueAmount() decimal.Decimal {
	return s.RecurringAmount
}

// Note is a free text entry in a subscription's history
type Note struct {
	ID             string    `db:"id" json:"id"`
	TenantID       string    `db:"tenant_id" json:"tenant_id"`
	SubscriptionID string    `db:"subscription_id" json:"subscription_id"`
	Text           string    `db:"text" json:"text"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	CreatedBy      string    `db:"created_by" json:"created_by"`
}
