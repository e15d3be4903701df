package subscription

import (
	"fmt"
	"time"

	ierr "github.com/flexprice/recurring/internal/errors"
	"github.com/flexprice/recurring/internal/types"
	"github.com/samber/lo"
)

// Operation is a lifecycle operation applied to a subscription
type Operation string

const (
	OperationActivate Operation = "activate"
	OperationRenew    Operation = "renew"
	OperationFailing  Operation = "failing"
	OperationCancel   Operation = "cancel"
	OperationExpire   Operation = "expire"
	OperationComplete Operation = "complete"
)

// allowedFrom lists the source states of each operation
var allowedFrom = map[Operation][]types.SubscriptionStatus{
	OperationActivate: {
		types.SubscriptionStatusPending,
		types.SubscriptionStatusTrialling,
		types.SubscriptionStatusFailing,
	},
	OperationRenew: {
		types.SubscriptionStatusActive,
		types.SubscriptionStatusTrialling,
		types.SubscriptionStatusFailing,
	},
	// pending is accepted so a rejected initial payment can be flagged
	OperationFailing: {
		types.SubscriptionStatusPending,
		types.SubscriptionStatusActive,
		types.SubscriptionStatusTrialling,
	},
	OperationCancel: {
		types.SubscriptionStatusPending,
		types.SubscriptionStatusTrialling,
		types.SubscriptionStatusActive,
		types.SubscriptionStatusFailing,
	},
	OperationExpire: {
		types.SubscriptionStatusActive,
		types.SubscriptionStatusFailing,
		types.SubscriptionStatusCancelled,
	},
	OperationComplete: {
		types.SubscriptionStatusActive,
		types.SubscriptionStatusFailing,
	},
}

// targetOf is the state an operation settles in. renew may settle in completed instead.
var targetOf = map[Operation]types.SubscriptionStatus{
	OperationActivate: types.SubscriptionStatusActive,
	OperationRenew:    types.SubscriptionStatusActive,
	OperationFailing:  types.SubscriptionStatusFailing,
	OperationCancel:   types.SubscriptionStatusCancelled,
	OperationExpire:   types.SubscriptionStatusExpired,
	OperationComplete: types.SubscriptionStatusCompleted,
}

// TransitionInput carries the facts a transition depends on besides the subscription itself
type TransitionInput struct {
	Now time.Time
	// TimesBilled is the renewal count after the operation takes effect.
	// For renew it includes the renewal being recorded.
	TimesBilled int
	// Reason is recorded in the transition note
	Reason string
}

// Transition is the planned effect of an operation. Nothing changes until Apply.
type Transition struct {
	Operation  Operation
	From       types.SubscriptionStatus
	To         types.SubscriptionStatus
	Expiration *time.Time
	// NoOp is set when the subscription is already in the target state
	NoOp bool
	Note string
}

// EventName maps a committed transition to its lifecycle event
func (t *Transition) EventName() string {
	if t.To == types.SubscriptionStatusCompleted {
		return types.WebhookEventSubscriptionCompleted
	}
	switch t.Operation {
	case OperationActivate:
		return types.WebhookEventSubscriptionActivated
	case OperationRenew:
		return types.WebhookEventSubscriptionRenewed
	case OperationFailing:
		return types.WebhookEventSubscriptionFailing
	case OperationCancel:
		return types.WebhookEventSubscriptionCancelled
	case OperationExpire:
		return types.WebhookEventSubscriptionExpired
	}
	return ""
}

// Plan computes the transition of op from the subscription's current state.
// It is a total function: every (state, operation) pair either yields a transition,
// a no-op when the target is already reached, or ErrInvalidTransition.
func (s *Subscription) Plan(op Operation, in TransitionInput) (*Transition, error) {
	from := s.SubscriptionStatus
	target, known := targetOf[op]
	if !known {
		return nil, ierr.NewErrorf("unknown lifecycle operation %s", op).
			Mark(ierr.ErrInvalidOperation)
	}

	t := &Transition{
		Operation:  op,
		From:       from,
		To:         target,
		Expiration: s.Expiration,
	}

	// renew never no-ops on state, its idempotency is keyed by transaction id
	if from == target && op != OperationRenew {
		t.NoOp = true
		return t, nil
	}

	if !lo.Contains(allowedFrom[op], from) {
		return nil, invalidTransition(s, op, "")
	}

	now := in.Now.UTC()
	switch op {
	case OperationActivate:
		if !s.IsTrialBounded(now) {
			next, err := s.advance(now)
			if err != nil {
				return nil, err
			}
			t.Expiration = &next
		}
		t.Note = "Subscription activated"

	case OperationRenew:
		if s.HasReachedBillTimes(in.TimesBilled) {
			t.To = types.SubscriptionStatusCompleted
			t.Note = fmt.Sprintf("Final renewal %d of %d recorded, subscription completed", in.TimesBilled, s.BillTimes)
			break
		}
		base := now
		if s.Expiration != nil {
			base = s.Expiration.UTC()
		}
		next, err := s.advance(base)
		if err != nil {
			return nil, err
		}
		t.Expiration = &next
		t.Note = fmt.Sprintf("Renewal %d recorded, next payment due %s", in.TimesBilled, next.Format(time.RFC3339))

	case OperationFailing:
		t.Note = "Subscription marked as failing"

	case OperationCancel:
		t.Note = "Subscription cancelled"

	case OperationExpire:
		t.Note = "Subscription expired"

	case OperationComplete:
		if !s.HasReachedBillTimes(in.TimesBilled) {
			return nil, invalidTransition(s, op,
				fmt.Sprintf("billed %d of %d times", in.TimesBilled, s.BillTimes))
		}
		t.Note = "Subscription completed"
	}

	if in.Reason != "" {
		t.Note = t.Note + ": " + in.Reason
	}
	return t, nil
}

// Apply writes a planned transition onto the subscription
func (s *Subscription) Apply(t *Transition) {
	if t == nil || t.NoOp {
		return
	}
	s.SubscriptionStatus = t.To
	s.Expiration = t.Expiration
}

func (s *Subscription) advance(from time.Time) (time.Time, error) {
	count := s.PeriodCount
	if count < 1 {
		count = 1
	}
	next, err := types.NextBillingDate(from, count, s.Period)
	if err != nil {
		return from, ierr.WithError(err).
			WithHint("Subscription has an invalid billing period").
			Mark(ierr.ErrValidation)
	}
	return next, nil
}

func invalidTransition(s *Subscription, op Operation, detail string) error {
	details := map[string]any{
		"subscription_id": s.ID,
		"status":          s.SubscriptionStatus,
		"operation":       op,
	}
	if detail != "" {
		details["detail"] = detail
	}
	return ierr.NewErrorf("cannot %s subscription in status %s", op, s.SubscriptionStatus).
		WithHintf("Subscription cannot be %s from status %s", pastTense(op), s.SubscriptionStatus).
		WithReportableDetails(details).
		Mark(ierr.ErrInvalidTransition)
}

func pastTense(op Operation) string {
	switch op {
	case OperationActivate:
		return "activated"
	case OperationRenew:
		return "renewed"
	case OperationFailing:
		return "marked as failing"
	case OperationCancel:
		return "cancelled"
	case OperationExpire:
		return "expired"
	case OperationComplete:
		return "completed"
	}
	return string(op)
}
