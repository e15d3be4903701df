package service

import (
	"context"
	"time"

	"github.com/flexprice/recurring/internal/api/dto"
	"github.com/flexprice/recurring/internal/domain/subscription"
	ierr "github.com/flexprice/recurring/internal/errors"
	"github.com/flexprice/recurring/internal/gateway"
	"github.com/flexprice/recurring/internal/idempotency"
	"github.com/flexprice/recurring/internal/types"
)

// RetryService charges a failing subscription out of band through its gateway
type RetryService interface {
	CanRetry(ctx context.Context, id string) (*dto.CanRetryResponse, error)
	Retry(ctx context.Context, id string) (*dto.RetryResponse, error)
}

type retryService struct {
	ServiceParams
	lifecycle   LifecycleService
	recorder    RenewalRecorder
	idempotency *idempotency.Generator
}

func NewRetryService(params ServiceParams, lifecycle LifecycleService, recorder RenewalRecorder) RetryService {
	return &retryService{
		ServiceParams: params,
		lifecycle:     lifecycle,
		recorder:      recorder,
		idempotency:   idempotency.NewGenerator(),
	}
}

func retryLockKey(id string) string {
	return "retry:" + id
}

func (s *retryService) CanRetry(ctx context.Context, id string) (*dto.CanRetryResponse, error) {
	sub, err := s.SubRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	_, reason := s.eligibility(sub)
	return &dto.CanRetryResponse{
		SubscriptionID: sub.ID,
		CanRetry:       reason == "",
		Reason:         reason,
	}, nil
}

// eligibility returns the adapter to charge through, or the reason the subscription cannot be retried
func (s *retryService) eligibility(sub *subscription.Subscription) (gateway.Adapter, string) {
	if sub.SubscriptionStatus != types.SubscriptionStatusFailing {
		return nil, "subscription is " + string(sub.SubscriptionStatus) + ", only failing subscriptions can be retried"
	}
	if sub.ProfileID == "" {
		return nil, "subscription has no gateway profile"
	}
	adapter, err := s.Gateways.Get(sub.Gateway)
	if err != nil {
		return nil, "gateway " + string(sub.Gateway) + " is not configured"
	}
	if !adapter.SupportsRetry() {
		return nil, "gateway " + string(sub.Gateway) + " does not support retrying a charge"
	}
	return adapter, ""
}

func (s *retryService) Retry(ctx context.Context, id string) (*dto.RetryResponse, error) {
	unlock, acquired, err := s.Locker.TryLock(ctx, retryLockKey(id))
	if err != nil {
		return nil, err
	}
	if !acquired {
		return nil, ierr.NewErrorf("retry already in progress for subscription %s", id).
			WithHint("A payment retry is already running for this subscription").
			WithReportableDetails(map[string]any{"subscription_id": id}).
			Mark(ierr.ErrRetryInProgress)
	}
	defer unlock()

	sub, err := s.SubRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	adapter, reason := s.eligibility(sub)
	if adapter == nil {
		return nil, ierr.NewErrorf("subscription %s cannot be retried: %s", id, reason).
			WithHintf("Payment cannot be retried: %s", reason).
			WithReportableDetails(map[string]any{
				"subscription_id": id,
				"status":          sub.SubscriptionStatus,
			}).
			Mark(ierr.ErrInvalidOperation)
	}

	reference := types.GenerateShortIDWithPrefix(types.SHORT_ID_PREFIX_RETRY)
	amount := sub.NextDueAmount()

	chargeCtx, cancel := context.WithTimeout(ctx, s.Config.Gateway.Timeout)
	defer cancel()

	charge, err := adapter.AttemptCharge(chargeCtx, gateway.ChargeRequest{
		SubscriptionID: sub.ID,
		ProfileID:      sub.ProfileID,
		Amount:         amount,
		Currency:       sub.Currency,
		IdempotencyKey: s.idempotency.GenerateKey(idempotency.ScopeRetryCharge, map[string]interface{}{
			"subscription_id": sub.ID,
			"reference":       reference,
		}),
	})
	if err != nil {
		return s.recordFailure(ctx, sub, reference, err)
	}

	s.Logger.Infow("retry charge succeeded",
		"subscription_id", sub.ID,
		"reference", reference,
		"transaction_id", charge.TransactionID)

	currency := charge.Currency
	if currency == "" {
		currency = sub.Currency
	}
	chargedAt := charge.ChargedAt
	if chargedAt.IsZero() {
		chargedAt = time.Now().UTC()
	}

	renewal, err := s.recorder.Record(ctx, sub.ID, RenewalInput{
		TransactionID: charge.TransactionID,
		Amount:        charge.Amount,
		Currency:      currency,
		Date:          chargedAt,
		Source:        "retry " + reference,
	})
	if err != nil {
		// the customer was charged, the webhook for this sale will record it later
		s.Logger.Errorw("retry charge succeeded but renewal was not recorded",
			"error", err,
			"subscription_id", sub.ID,
			"reference", reference,
			"transaction_id", charge.TransactionID)
		return nil, err
	}

	return &dto.RetryResponse{
		Success:       true,
		Reference:     reference,
		TransactionID: charge.TransactionID,
		Subscription:  renewal.Subscription,
	}, nil
}

func (s *retryService) recordFailure(ctx context.Context, sub *subscription.Subscription, reference string, chargeErr error) (*dto.RetryResponse, error) {
	reason := ierr.DisplayMessage(chargeErr)
	s.Logger.Warnw("retry charge failed",
		"subscription_id", sub.ID,
		"reference", reference,
		"error", chargeErr)

	result, err := s.lifecycle.Execute(ctx, sub.ID, func(ctx context.Context, sub *subscription.Subscription) (*subscription.Transition, error) {
		if err := s.NoteRepo.CreateNote(ctx, newNote(ctx, sub.ID, "Payment retry "+reference+" failed: "+reason)); err != nil {
			return nil, err
		}
		return sub.Plan(subscription.OperationFailing, subscription.TransitionInput{
			Now: time.Now().UTC(),
		})
	})
	if err != nil {
		return nil, err
	}

	resp := &dto.RetryResponse{
		Success:      false,
		Reference:    reference,
		Reason:       reason,
		Subscription: result.Subscription,
	}
	return resp, ierr.WithError(chargeErr).
		WithHintf("Payment retry failed: %s", reason).
		WithReportableDetails(map[string]any{
			"subscription_id": sub.ID,
			"reference":       reference,
		}).
		Mark(ierr.ErrGateway)
}
