package dto

import (
	"time"

	"github.com/flexprice/recurring/internal/domain/customer"
	"github.com/flexprice/recurring/internal/domain/subscription"
	ierr "github.com/flexprice/recurring/internal/errors"
	"github.com/flexprice/recurring/internal/types"
	"github.com/flexprice/recurring/internal/validator"
	"github.com/shopspring/decimal"
)

type SubscriptionResponse struct {
	*subscription.Subscription

	// TimesBilled is the number of renewal payments recorded so far
	TimesBilled int                  `json:"times_billed"`
	Notes       []*subscription.Note `json:"notes,omitempty"`
	Customer    *customer.Customer   `json:"customer,omitempty"`
}

// ListSubscriptionsResponse represents the response for listing subscriptions
type ListSubscriptionsResponse = types.ListResponse[*SubscriptionResponse]

// UpdateSubscriptionRequest edits the fields an operator may change. Status only
// moves through lifecycle operations.
type UpdateSubscriptionRequest struct {
	RecurringAmount *decimal.Decimal `json:"recurring_amount,omitempty"`
	BillTimes       *int             `json:"bill_times,omitempty" validate:"omitempty,min=0"`
	Expiration      *time.Time       `json:"expiration,omitempty"`
	PriceID         *string          `json:"price_id,omitempty"`
	ProfileID       *string          `json:"profile_id,omitempty"`
}

func (r *UpdateSubscriptionRequest) Validate() error {
	if err := validator.ValidateRequest(r); err != nil {
		return err
	}
	if r.RecurringAmount != nil && r.RecurringAmount.IsNegative() {
		return ierr.NewError("recurring_amount must not be negative").
			WithHint("Recurring amount must not be negative").
			Mark(ierr.ErrValidation)
	}
	if r.RecurringAmount == nil && r.BillTimes == nil && r.Expiration == nil && r.PriceID == nil && r.ProfileID == nil {
		return ierr.NewError("nothing to update").
			WithHint("Provide at least one field to update").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// Apply writes the requested edits onto sub
func (r *UpdateSubscriptionRequest) Apply(sub *subscription.Subscription) {
	if r.RecurringAmount != nil {
		sub.RecurringAmount = *r.RecurringAmount
	}
	if r.BillTimes != nil {
		sub.BillTimes = *r.BillTimes
	}
	if r.Expiration != nil {
		exp := r.Expiration.UTC()
		sub.Expiration = &exp
	}
	if r.PriceID != nil {
		sub.PriceID = r.PriceID
	}
	if r.ProfileID != nil {
		sub.ProfileID = *r.ProfileID
	}
}

type AddSubscriptionNoteRequest struct {
	Text string `json:"text" validate:"required,max=2000"`
}

func (r *AddSubscriptionNoteRequest) Validate() error {
	return validator.ValidateRequest(r)
}

type CancelSubscriptionRequest struct {
	Reason string `json:"reason,omitempty" validate:"omitempty,max=500"`
}

func (r *CancelSubscriptionRequest) Validate() error {
	return validator.ValidateRequest(r)
}

// LifecycleResponse describes the effect of one lifecycle operation
type LifecycleResponse struct {
	Subscription *subscription.Subscription `json:"subscription"`
	From         types.SubscriptionStatus   `json:"from"`
	To           types.SubscriptionStatus   `json:"to"`
	// NoOp is set when the subscription was already in the target state
	NoOp bool `json:"no_op"`
}

type RetryResponse struct {
	Success bool `json:"success"`
	// Reference identifies the attempt in notes and logs
	Reference     string                     `json:"reference"`
	Reason        string                     `json:"reason,omitempty"`
	TransactionID string                     `json:"transaction_id,omitempty"`
	Subscription  *subscription.Subscription `json:"subscription,omitempty"`
}

type CanRetryResponse struct {
	SubscriptionID string `json:"subscription_id"`
	CanRetry       bool   `json:"can_retry"`
	Reason         string `json:"reason,omitempty"`
}

// RepairProfilesResponse reports a duplicate profile repair run
type RepairProfilesResponse struct {
	Groups   int      `json:"groups"`
	Cleared  []string `json:"cleared"`
	Kept     []string `json:"kept"`
	Failures []string `json:"failures,omitempty"`
}

// SweepResponse reports the outcome of a scheduled sweep
type SweepResponse struct {
	Scanned   int      `json:"scanned"`
	Succeeded int      `json:"succeeded"`
	Skipped   int      `json:"skipped"`
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors,omitempty"`
}

// Merge adds other into r
func (r *SweepResponse) Merge(other *SweepResponse) {
	if other == nil {
		return
	}
	r.Scanned += other.Scanned
	r.Succeeded += other.Succeeded
	r.Skipped += other.Skipped
	r.Failed += other.Failed
	r.Errors = append(r.Errors, other.Errors...)
}
