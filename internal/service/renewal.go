package service

import (
	"context"
	"time"

	"github.com/flexprice/recurring/internal/domain/order"
	"github.com/flexprice/recurring/internal/domain/subscription"
	ierr "github.com/flexprice/recurring/internal/errors"
	"github.com/flexprice/recurring/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// RenewalInput describes a settled recurring payment
type RenewalInput struct {
	TransactionID string
	Amount        decimal.Decimal
	Currency      string
	Date          time.Time
	// Source tags the order note, e.g. "webhook" or "retry"
	Source string
}

type RenewalResult struct {
	Subscription *subscription.Subscription
	Transition   *subscription.Transition
	Order        *order.Order
	// Replay is set when the transaction had already been recorded
	Replay      bool
	TimesBilled int
}

// RenewalRecorder turns a settled recurring payment into a renewal order and
// extends the subscription. Recording is idempotent by gateway transaction id.
type RenewalRecorder interface {
	Record(ctx context.Context, subscriptionID string, in RenewalInput) (*RenewalResult, error)
}

type renewalRecorder struct {
	ServiceParams
	lifecycle LifecycleService
}

func NewRenewalRecorder(params ServiceParams, lifecycle LifecycleService) RenewalRecorder {
	return &renewalRecorder{
		ServiceParams: params,
		lifecycle:     lifecycle,
	}
}

func (r *renewalRecorder) Record(ctx context.Context, subscriptionID string, in RenewalInput) (*RenewalResult, error) {
	if in.TransactionID == "" {
		return nil, ierr.NewError("renewal transaction id is required").
			WithHint("A renewal must reference the gateway transaction that paid it").
			WithReportableDetails(map[string]any{"subscription_id": subscriptionID}).
			Mark(ierr.ErrValidation)
	}
	if in.Date.IsZero() {
		in.Date = time.Now().UTC()
	}

	var (
		created     *order.Order
		replay      *order.Order
		timesBilled int
	)

	result, err := r.lifecycle.Execute(ctx, subscriptionID, func(ctx context.Context, sub *subscription.Subscription) (*subscription.Transition, error) {
		created, replay = nil, nil

		existing, err := r.Ledger.FindByTransactionID(ctx, sub.Gateway, in.TransactionID)
		if err == nil {
			replay = existing
			return &subscription.Transition{
				From: sub.SubscriptionStatus,
				To:   sub.SubscriptionStatus,
				NoOp: true,
			}, nil
		}
		if !ierr.IsNotFound(err) {
			return nil, err
		}

		if !types.IsMatchingCurrency(in.Currency, sub.Currency) {
			return nil, ierr.NewErrorf("renewal currency %s does not match subscription currency %s", in.Currency, sub.Currency).
				WithHint("Payment currency does not match the subscription").
				WithReportableDetails(map[string]any{
					"subscription_id": sub.ID,
					"transaction_id":  in.TransactionID,
					"currency":        in.Currency,
					"expected":        sub.Currency,
				}).
				Mark(ierr.ErrReconciliation)
		}

		billed, err := r.Ledger.CountRenewals(ctx, sub.ID)
		if err != nil {
			return nil, err
		}
		timesBilled = billed + 1

		t, err := sub.Plan(subscription.OperationRenew, subscription.TransitionInput{
			Now:         in.Date,
			TimesBilled: timesBilled,
		})
		if err != nil {
			return nil, err
		}

		o := &order.Order{
			ID:             types.GenerateUUIDWithPrefix(types.UUID_PREFIX_ORDER),
			SubscriptionID: lo.ToPtr(sub.ID),
			Kind:           types.OrderKindRenewal,
			Gateway:        sub.Gateway,
			Amount:         in.Amount,
			Tax:            sub.RenewalTax(in.Amount),
			Currency:       sub.Currency,
			OrderStatus:    types.OrderStatusComplete,
			TransactionID:  in.TransactionID,
			Date:           in.Date.UTC(),
			BaseModel:      types.GetDefaultBaseModel(ctx),
		}
		if err := o.Validate(); err != nil {
			return nil, err
		}
		if err := r.Ledger.CreateOrder(ctx, o); err != nil {
			return nil, err
		}

		source := in.Source
		if source == "" {
			source = "webhook"
		}
		if err := r.Ledger.AddOrderNote(ctx, o.ID, "Renewal payment "+in.TransactionID+" recorded from "+source); err != nil {
			return nil, err
		}

		created = o
		return t, nil
	})
	if err != nil {
		// a concurrent writer recorded the same transaction first
		if ierr.IsAlreadyExists(err) {
			return r.replayResult(ctx, subscriptionID, in)
		}
		return nil, err
	}

	if replay != nil {
		r.Logger.Infow("renewal already recorded",
			"subscription_id", subscriptionID,
			"transaction_id", in.TransactionID,
			"order_id", replay.ID)
		billed, err := r.Ledger.CountRenewals(ctx, subscriptionID)
		if err != nil {
			return nil, err
		}
		return &RenewalResult{
			Subscription: result.Subscription,
			Transition:   result.Transition,
			Order:        replay,
			Replay:       true,
			TimesBilled:  billed,
		}, nil
	}

	r.Logger.Infow("renewal recorded",
		"subscription_id", subscriptionID,
		"transaction_id", in.TransactionID,
		"order_id", created.ID,
		"times_billed", timesBilled,
		"status", result.Subscription.SubscriptionStatus)

	return &RenewalResult{
		Subscription: result.Subscription,
		Transition:   result.Transition,
		Order:        created,
		TimesBilled:  timesBilled,
	}, nil
}

func (r *renewalRecorder) replayResult(ctx context.Context, subscriptionID string, in RenewalInput) (*RenewalResult, error) {
	sub, err := r.SubRepo.Get(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	existing, err := r.Ledger.FindByTransactionID(ctx, sub.Gateway, in.TransactionID)
	if err != nil {
		return nil, err
	}
	billed, err := r.Ledger.CountRenewals(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	return &RenewalResult{
		Subscription: sub,
		Transition: &subscription.Transition{
			From: sub.SubscriptionStatus,
			To:   sub.SubscriptionStatus,
			NoOp: true,
		},
		Order:       existing,
		Replay:      true,
		TimesBilled: billed,
	}, nil
}
