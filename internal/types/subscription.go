package types

import (
	"time"

	ierr "github.com/flexprice/recurring/internal/errors"
	"github.com/samber/lo"
)

// SubscriptionStatus is the lifecycle status of a subscription
type SubscriptionStatus string

// pending awaits its first successful charge, trialling grants access before any
// charge is due, failing means a due charge failed but billing has not stopped.
// cancelled, expired and completed are terminal.
const (
	SubscriptionStatusPending   SubscriptionStatus = "pending"
	SubscriptionStatusTrialling SubscriptionStatus = "trialling"
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusFailing   SubscriptionStatus = "failing"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
	SubscriptionStatusExpired   SubscriptionStatus = "expired"
	SubscriptionStatusCompleted SubscriptionStatus = "completed"
)

var SubscriptionStatuses = []SubscriptionStatus{
	SubscriptionStatusPending,
	SubscriptionStatusTrialling,
	SubscriptionStatusActive,
	SubscriptionStatusFailing,
	SubscriptionStatusCancelled,
	SubscriptionStatusExpired,
	SubscriptionStatusCompleted,
}

func (s SubscriptionStatus) String() string {
	return string(s)
}

func (s SubscriptionStatus) Validate() error {
	if !lo.Contains(SubscriptionStatuses, s) {
		return ierr.NewError("invalid subscription status").
			WithHint("Invalid subscription status").
			WithReportableDetails(map[string]any{
				"status":         s,
				"allowed_status": SubscriptionStatuses,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// IsSettled reports whether the subscription needs no further lifecycle work.
// Cancelled subscriptions are terminal but still wait for their expiry.
func (s SubscriptionStatus) IsSettled() bool {
	return s == SubscriptionStatusExpired || s == SubscriptionStatusCompleted
}

// IsTerminal reports whether no further billing is expected in this status
func (s SubscriptionStatus) IsTerminal() bool {
	return s == SubscriptionStatusCancelled ||
		s == SubscriptionStatusExpired ||
		s == SubscriptionStatusCompleted
}

// BillingPeriod is the interval unit between two charges
type BillingPeriod string

const (
	BILLING_PERIOD_DAILY     BillingPeriod = "day"
	BILLING_PERIOD_WEEKLY    BillingPeriod = "week"
	BILLING_PERIOD_MONTHLY   BillingPeriod = "month"
	BILLING_PERIOD_QUARTERLY BillingPeriod = "quarter"
	BILLING_PERIOD_ANNUAL    BillingPeriod = "year"
)

var BillingPeriods = []BillingPeriod{
	BILLING_PERIOD_DAILY,
	BILLING_PERIOD_WEEKLY,
	BILLING_PERIOD_MONTHLY,
	BILLING_PERIOD_QUARTERLY,
	BILLING_PERIOD_ANNUAL,
}

func (p BillingPeriod) String() string {
	return string(p)
}

func (p BillingPeriod) Validate() error {
	if !lo.Contains(BillingPeriods, p) {
		return ierr.NewError("invalid billing period").
			WithHint("Billing period must be one of day, week, month, quarter or year").
			WithReportableDetails(map[string]any{
				"billing_period": p,
				"allowed":        BillingPeriods,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// SubscriptionFilter represents filters for subscription queries
type SubscriptionFilter struct {
	*QueryFilter

	SubscriptionIDs []string `json:"subscription_ids,omitempty" form:"subscription_ids"`
	// CustomerID filters by customer ID
	CustomerID string `json:"customer_id,omitempty" form:"customer_id"`
	// ProductID filters by catalog product
	ProductID string `json:"product_id,omitempty" form:"product_id"`
	// Gateway filters by payment gateway
	Gateway GatewayType `json:"gateway,omitempty" form:"gateway"`
	// ProfileID filters by the gateway's recurring profile identifier
	ProfileID string `json:"profile_id,omitempty" form:"profile_id"`
	// SubscriptionStatus filters by subscription status
	SubscriptionStatus []SubscriptionStatus `json:"subscription_status,omitempty" form:"subscription_status"`
	// ExpiringBefore filters subscriptions whose expiration is strictly before the given time
	ExpiringBefore *time.Time `json:"expiring_before,omitempty" form:"expiring_before" time_format:"2006-01-02T15:04:05Z07:00"`
}

// NewSubscriptionFilter creates a new SubscriptionFilter with default values
func NewSubscriptionFilter() *SubscriptionFilter {
	return &SubscriptionFilter{
		QueryFilter: NewDefaultQueryFilter(),
	}
}

// NewNoLimitSubscriptionFilter creates a new SubscriptionFilter with no pagination limits
func NewNoLimitSubscriptionFilter() *SubscriptionFilter {
	return &SubscriptionFilter{
		QueryFilter: NewNoLimitQueryFilter(),
	}
}

// Validate validates the subscription filter
func (f SubscriptionFilter) Validate() error {
	if f.QueryFilter != nil {
		if err := f.QueryFilter.Validate(); err != nil {
			return ierr.WithError(err).
				WithHint("Invalid pagination parameters").
				Mark(ierr.ErrValidation)
		}
	}

	for _, status := range f.SubscriptionStatus {
		if err := status.Validate(); err != nil {
			return err
		}
	}

	if f.Gateway != "" {
		if err := f.Gateway.Validate(); err != nil {
			return err
		}
	}

	return nil
}

// GetLimit implements BaseFilter interface
func (f *SubscriptionFilter) GetLimit() int {
	if f.QueryFilter == nil {
		return NewDefaultQueryFilter().GetLimit()
	}
	return f.QueryFilter.GetLimit()
}

// GetOffset implements BaseFilter interface
func (f *SubscriptionFilter) GetOffset() int {
	if f.QueryFilter == nil {
		return NewDefaultQueryFilter().GetOffset()
	}
	return f.QueryFilter.GetOffset()
}

// GetStatus implements BaseFilter interface
func (f *SubscriptionFilter) GetStatus() string {
	if f.QueryFilter == nil {
		return NewDefaultQueryFilter().GetStatus()
	}
	return f.QueryFilter.GetStatus()
}

// IsUnlimited implements BaseFilter interface
func (f *SubscriptionFilter) IsUnlimited() bool {
	if f.QueryFilter == nil {
		return NewDefaultQueryFilter().IsUnlimited()
	}
	return f.QueryFilter.IsUnlimited()
}
