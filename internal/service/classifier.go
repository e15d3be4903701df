package service

import (
	"context"
	"fmt"
	"time"

	"github.com/flexprice/recurring/internal/domain/order"
	"github.com/flexprice/recurring/internal/domain/subscription"
	ierr "github.com/flexprice/recurring/internal/errors"
	"github.com/flexprice/recurring/internal/gateway"
	"github.com/flexprice/recurring/internal/types"
)

// PaymentPath is how a sale notification is reconciled
type PaymentPath string

const (
	PaymentPathInitial  PaymentPath = "initial"
	PaymentPathRenewal  PaymentPath = "renewal"
	PaymentPathPending  PaymentPath = "pending"
	PaymentPathDeclined PaymentPath = "declined"
)

type Classification struct {
	Path   PaymentPath
	Reason string
}

// Classify decides whether a sale settles the parent order or is a renewal.
// The parent transaction id is authoritative when set. Otherwise a sale closer
// to the parent order than window is the initial payment.
func Classify(parent *order.Order, evt gateway.Event, window time.Duration) Classification {
	switch evt.State() {
	case types.SaleStateDenied:
		return Classification{Path: PaymentPathDeclined, Reason: "sale denied by gateway"}
	case types.SaleStatePending:
		return Classification{Path: PaymentPathPending, Reason: "sale pending at gateway"}
	}

	if parent == nil {
		return Classification{Path: PaymentPathRenewal, Reason: "no parent order"}
	}

	txID := evt.TransactionID()
	if parent.TransactionID != "" {
		if parent.TransactionID == txID {
			return Classification{Path: PaymentPathInitial, Reason: "transaction matches parent order"}
		}
		if parent.IsComplete() {
			return Classification{Path: PaymentPathRenewal, Reason: "parent order settled by another transaction"}
		}
	}

	delta := evt.Timestamp().Sub(parent.Date)
	if delta < 0 {
		delta = -delta
	}
	if delta < window {
		return Classification{
			Path:   PaymentPathInitial,
			Reason: fmt.Sprintf("sale %s after parent order", delta.Round(time.Minute)),
		}
	}
	return Classification{
		Path:   PaymentPathRenewal,
		Reason: fmt.Sprintf("sale %s after parent order", delta.Round(time.Minute)),
	}
}

// PaymentClassifier reconciles sale notifications against the subscription and its orders
type PaymentClassifier interface {
	Process(ctx context.Context, evt gateway.Event, sub *subscription.Subscription) (*PaymentOutcome, error)
}

type PaymentOutcome struct {
	Classification Classification
	Subscription   *subscription.Subscription
	Transition     *subscription.Transition
	Renewal        *RenewalResult
}

type paymentClassifier struct {
	ServiceParams
	lifecycle LifecycleService
	recorder  RenewalRecorder
}

func NewPaymentClassifier(params ServiceParams, lifecycle LifecycleService, recorder RenewalRecorder) PaymentClassifier {
	return &paymentClassifier{
		ServiceParams: params,
		lifecycle:     lifecycle,
		recorder:      recorder,
	}
}

func (c *paymentClassifier) Process(ctx context.Context, evt gateway.Event, sub *subscription.Subscription) (*PaymentOutcome, error) {
	parent, err := c.Ledger.GetOrder(ctx, sub.ParentPaymentID)
	if err != nil && !ierr.IsNotFound(err) {
		return nil, err
	}
	if err != nil {
		parent = nil
	}

	class := Classify(parent, evt, c.Config.Gateway.InitialPaymentWindow)
	c.Logger.Debugw("classified sale",
		"subscription_id", sub.ID,
		"transaction_id", evt.TransactionID(),
		"path", class.Path,
		"reason", class.Reason)

	outcome := &PaymentOutcome{Classification: class, Subscription: sub}

	switch class.Path {
	case PaymentPathDeclined:
		result, err := c.lifecycle.Execute(ctx, sub.ID, func(ctx context.Context, sub *subscription.Subscription) (*subscription.Transition, error) {
			if parent != nil && !parent.IsComplete() {
				if err := c.Ledger.UpdateOrderStatus(ctx, parent.ID, types.OrderStatusFailed); err != nil {
					return nil, err
				}
				if err := c.Ledger.AddOrderNote(ctx, parent.ID, "Payment "+evt.TransactionID()+" denied by gateway"); err != nil {
					return nil, err
				}
			}
			return sub.Plan(subscription.OperationFailing, subscription.TransitionInput{
				Now:    time.Now().UTC(),
				Reason: "payment " + evt.TransactionID() + " denied",
			})
		})
		return withResult(outcome, result), err

	case PaymentPathPending:
		if parent != nil && !parent.IsComplete() {
			if err := c.Ledger.UpdateOrderStatus(ctx, parent.ID, types.OrderStatusProcessing); err != nil {
				return nil, err
			}
		}
		return outcome, nil

	case PaymentPathInitial:
		return c.processInitial(ctx, evt, sub, parent, outcome)
	}

	if sub.SubscriptionStatus == types.SubscriptionStatusPending && parent != nil && !parent.IsComplete() {
		return outcome, c.unmatchedFirstPayment(ctx, evt, sub, parent)
	}

	if !types.IsMatchingCurrency(evt.Currency(), sub.Currency) {
		mismatch := currencyMismatch(sub, evt)
		result, err := c.lifecycle.Execute(ctx, sub.ID, func(ctx context.Context, sub *subscription.Subscription) (*subscription.Transition, error) {
			if err := c.NoteRepo.CreateNote(ctx, newNote(ctx, sub.ID, ierr.DisplayMessage(mismatch)+" ("+evt.TransactionID()+")")); err != nil {
				return nil, err
			}
			return sub.Plan(subscription.OperationFailing, subscription.TransitionInput{
				Now:    time.Now().UTC(),
				Reason: "renewal currency mismatch",
			})
		})
		if err != nil {
			return nil, err
		}
		return withResult(outcome, result), mismatch
	}

	renewal, err := c.recorder.Record(ctx, sub.ID, RenewalInput{
		TransactionID: evt.TransactionID(),
		Amount:        evt.Amount(),
		Currency:      evt.Currency(),
		Date:          evt.Timestamp(),
		Source:        "webhook",
	})
	if err != nil {
		return nil, err
	}
	outcome.Renewal = renewal
	outcome.Subscription = renewal.Subscription
	outcome.Transition = renewal.Transition
	return outcome, nil
}

// processInitial settles the parent order. An underpaid or foreign currency sale
// fails the order and returns ErrReconciliation once that state is committed.
func (c *paymentClassifier) processInitial(ctx context.Context, evt gateway.Event, sub *subscription.Subscription, parent *order.Order, outcome *PaymentOutcome) (*PaymentOutcome, error) {
	var mismatch error

	result, err := c.lifecycle.Execute(ctx, sub.ID, func(ctx context.Context, sub *subscription.Subscription) (*subscription.Transition, error) {
		mismatch = nil
		txID := evt.TransactionID()

		parent, err := c.Ledger.GetOrder(ctx, parent.ID)
		if err != nil {
			return nil, err
		}

		if !types.IsMatchingCurrency(evt.Currency(), parent.Currency) {
			mismatch = currencyMismatch(sub, evt)
		} else if evt.Amount().LessThan(parent.Total()) {
			mismatch = ierr.NewErrorf("initial payment %s is below order total %s", evt.Amount(), parent.Total()).
				WithHintf("Payment of %s does not cover the order total of %s", evt.Amount(), parent.Total()).
				WithReportableDetails(map[string]any{
					"subscription_id": sub.ID,
					"order_id":        parent.ID,
					"transaction_id":  txID,
				}).
				Mark(ierr.ErrReconciliation)
		}

		if mismatch != nil {
			if err := c.Ledger.UpdateOrderStatus(ctx, parent.ID, types.OrderStatusFailed); err != nil {
				return nil, err
			}
			if err := c.Ledger.AddOrderNote(ctx, parent.ID, ierr.DisplayMessage(mismatch)+" ("+txID+")"); err != nil {
				return nil, err
			}
			return sub.Plan(subscription.OperationFailing, subscription.TransitionInput{
				Now:    time.Now().UTC(),
				Reason: "initial payment did not match the order",
			})
		}

		if !parent.IsComplete() {
			if err := c.Ledger.UpdateOrderStatus(ctx, parent.ID, types.OrderStatusComplete); err != nil {
				return nil, err
			}
		}
		if parent.TransactionID != txID {
			if err := c.Ledger.SetTransactionID(ctx, parent.ID, txID); err != nil {
				return nil, err
			}
			if err := c.Ledger.AddOrderNote(ctx, parent.ID, "Initial payment "+txID+" received"); err != nil {
				return nil, err
			}
		}
		return sub.Plan(subscription.OperationActivate, subscription.TransitionInput{
			Now: time.Now().UTC(),
		})
	})
	if err != nil {
		return nil, err
	}
	return withResult(outcome, result), mismatch
}

// unmatchedFirstPayment handles a sale that looks like a renewal while the
// parent order still waits for its first payment. Usually a skewed gateway
// clock. Nothing is settled, an operator has to match it by hand.
func (c *paymentClassifier) unmatchedFirstPayment(ctx context.Context, evt gateway.Event, sub *subscription.Subscription, parent *order.Order) error {
	txID := evt.TransactionID()
	mismatch := ierr.NewErrorf("sale %s at %s is outside the initial payment window of pending order %s",
		txID, evt.Timestamp().Format(time.RFC3339), parent.ID).
		WithHintf("Payment %s could not be matched to the pending initial order", txID).
		WithReportableDetails(map[string]any{
			"subscription_id": sub.ID,
			"order_id":        parent.ID,
			"transaction_id":  txID,
		}).
		Mark(ierr.ErrReconciliation)

	c.Logger.Warnw("data integrity: sale classified as renewal against a pending parent order",
		"subscription_id", sub.ID,
		"order_id", parent.ID,
		"transaction_id", txID,
		"sale_time", evt.Timestamp(),
		"order_date", parent.Date)

	if err := c.NoteRepo.CreateNote(ctx, newNote(ctx, sub.ID, ierr.DisplayMessage(mismatch))); err != nil {
		return err
	}
	return mismatch
}

func withResult(outcome *PaymentOutcome, result *LifecycleResult) *PaymentOutcome {
	if result != nil {
		outcome.Subscription = result.Subscription
		outcome.Transition = result.Transition
	}
	return outcome
}

func currencyMismatch(sub *subscription.Subscription, evt gateway.Event) error {
	return ierr.NewErrorf("payment currency %s does not match subscription currency %s", evt.Currency(), sub.Currency).
		WithHintf("Payment currency %s does not match subscription currency %s", evt.Currency(), sub.Currency).
		WithReportableDetails(map[string]any{
			"subscription_id": sub.ID,
			"transaction_id":  evt.TransactionID(),
		}).
		Mark(ierr.ErrReconciliation)
}
