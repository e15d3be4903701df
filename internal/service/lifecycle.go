package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/flexprice/recurring/internal/api/dto"
	"github.com/flexprice/recurring/internal/config"
	"github.com/flexprice/recurring/internal/domain/subscription"
	ierr "github.com/flexprice/recurring/internal/errors"
	"github.com/flexprice/recurring/internal/idempotency"
	"github.com/flexprice/recurring/internal/types"
	webhookDto "github.com/flexprice/recurring/internal/webhook/dto"
)

// MutationFunc plans a change to sub inside the lifecycle transaction. It may write
// to the ledger through ctx. A nil or no-op transition leaves the subscription untouched.
type MutationFunc func(ctx context.Context, sub *subscription.Subscription) (*subscription.Transition, error)

// LifecycleResult is the committed effect of one mutation
type LifecycleResult struct {
	Subscription *subscription.Subscription
	Transition   *subscription.Transition
}

// Changed reports whether the mutation moved the subscription
func (r *LifecycleResult) Changed() bool {
	return r != nil && r.Transition != nil && !r.Transition.NoOp
}

func (r *LifecycleResult) ToResponse() *dto.LifecycleResponse {
	resp := &dto.LifecycleResponse{Subscription: r.Subscription}
	if r.Transition != nil {
		resp.From = r.Transition.From
		resp.To = r.Transition.To
		resp.NoOp = r.Transition.NoOp
	} else if r.Subscription != nil {
		resp.From = r.Subscription.SubscriptionStatus
		resp.To = r.Subscription.SubscriptionStatus
		resp.NoOp = true
	}
	return resp
}

type CancelOptions struct {
	Reason string
	// SkipGateway is set for cancellations the gateway itself reported
	SkipGateway bool
}

// LifecycleService applies state machine operations to stored subscriptions. Every
// write holds the subscription lock, runs in one transaction and is retried when the
// stored version moved underneath it.
type LifecycleService interface {
	Activate(ctx context.Context, id string, reason string) (*LifecycleResult, error)
	MarkFailing(ctx context.Context, id string, reason string) (*LifecycleResult, error)
	Cancel(ctx context.Context, id string, opts CancelOptions) (*LifecycleResult, error)
	Expire(ctx context.Context, id string, reason string) (*LifecycleResult, error)
	Complete(ctx context.Context, id string, reason string) (*LifecycleResult, error)

	// Execute runs fn under the subscription lock and transaction, persists the
	// planned transition and publishes its lifecycle event after commit
	Execute(ctx context.Context, id string, fn MutationFunc) (*LifecycleResult, error)
}

type lifecycleService struct {
	ServiceParams
	idempotency *idempotency.Generator
}

func NewLifecycleService(params ServiceParams) LifecycleService {
	return &lifecycleService{
		ServiceParams: params,
		idempotency:   idempotency.NewGenerator(),
	}
}

func subscriptionLockKey(id string) string {
	return "subscription:" + id
}

func (s *lifecycleService) Activate(ctx context.Context, id string, reason string) (*LifecycleResult, error) {
	return s.Execute(ctx, id, planOp(subscription.OperationActivate, reason))
}

func (s *lifecycleService) MarkFailing(ctx context.Context, id string, reason string) (*LifecycleResult, error) {
	return s.Execute(ctx, id, planOp(subscription.OperationFailing, reason))
}

func (s *lifecycleService) Expire(ctx context.Context, id string, reason string) (*LifecycleResult, error) {
	return s.Execute(ctx, id, planOp(subscription.OperationExpire, reason))
}

func (s *lifecycleService) Complete(ctx context.Context, id string, reason string) (*LifecycleResult, error) {
	return s.Execute(ctx, id, func(ctx context.Context, sub *subscription.Subscription) (*subscription.Transition, error) {
		billed, err := s.Ledger.CountRenewals(ctx, sub.ID)
		if err != nil {
			return nil, err
		}
		return sub.Plan(subscription.OperationComplete, subscription.TransitionInput{
			Now:         time.Now().UTC(),
			TimesBilled: billed,
			Reason:      reason,
		})
	})
}

// Cancel commits the local cancellation first, then asks the gateway to stop
// billing. A failed gateway call is noted on the subscription, never returned.
func (s *lifecycleService) Cancel(ctx context.Context, id string, opts CancelOptions) (*LifecycleResult, error) {
	result, err := s.Execute(ctx, id, planOp(subscription.OperationCancel, opts.Reason))
	if err != nil {
		return nil, err
	}

	sub := result.Subscription
	if !result.Changed() || opts.SkipGateway || sub.ProfileID == "" {
		return result, nil
	}

	adapter, err := s.Gateways.Get(sub.Gateway)
	if err != nil {
		s.Logger.Warnw("no adapter to cancel subscription at gateway",
			"subscription_id", sub.ID,
			"gateway", sub.Gateway,
			"error", err)
		return result, nil
	}

	// the caller's deadline must not cut the gateway call short
	gwCtx, cancel := context.WithTimeout(types.DetachedContext(ctx), s.Config.Gateway.Timeout)
	defer cancel()

	if err := adapter.CancelSubscription(gwCtx, sub.ProfileID); err != nil {
		s.Logger.Warnw("gateway cancellation failed, subscription is cancelled locally",
			"subscription_id", sub.ID,
			"gateway", sub.Gateway,
			"profile_id", sub.ProfileID,
			"error", err)
		s.addNote(ctx, sub.ID, "Gateway cancellation failed: "+ierr.DisplayMessage(err))
	}

	return result, nil
}

func (s *lifecycleService) Execute(ctx context.Context, id string, fn MutationFunc) (*LifecycleResult, error) {
	var result *LifecycleResult
	err := retryOnConflict(ctx, s.Config.Conflict, func() error {
		result = nil
		return lockedTx(ctx, s.ServiceParams, subscriptionLockKey(id), func(txCtx context.Context) error {
			sub, err := s.SubRepo.Get(txCtx, id)
			if err != nil {
				return err
			}

			t, err := fn(txCtx, sub)
			if err != nil {
				return err
			}

			result = &LifecycleResult{Subscription: sub, Transition: t}
			if t == nil || t.NoOp {
				return nil
			}

			sub.Apply(t)
			if err := s.SubRepo.Update(txCtx, sub); err != nil {
				return err
			}

			if t.Note != "" {
				if err := s.NoteRepo.CreateNote(txCtx, newNote(txCtx, sub.ID, t.Note)); err != nil {
					return err
				}
			}
			return nil
		})
	})
	if err != nil {
		if ierr.IsVersionConflict(err) {
			s.Logger.Errorw("gave up on subscription write after repeated version conflicts",
				"subscription_id", id,
				"attempts", s.Config.Conflict.MaxAttempts)
		}
		return nil, err
	}

	if result.Changed() {
		s.Logger.Infow("subscription transitioned",
			"subscription_id", id,
			"operation", result.Transition.Operation,
			"from", result.Transition.From,
			"to", result.Transition.To)
		s.publishLifecycleEvent(ctx, result)
	}

	return result, nil
}

// lockedTx runs fn in a transaction that holds key. The lock is taken after
// the transaction begins and released only after it ends, so the postgres
// locker binds it to the transaction's connection.
func lockedTx(ctx context.Context, p ServiceParams, key string, fn func(ctx context.Context) error) error {
	var unlock func()
	defer func() {
		if unlock != nil {
			unlock()
		}
	}()

	return p.DB.WithTx(ctx, func(txCtx context.Context) error {
		u, err := p.Locker.Lock(txCtx, key)
		if err != nil {
			return err
		}
		unlock = u
		return fn(txCtx)
	})
}

func (s *lifecycleService) publishLifecycleEvent(ctx context.Context, result *LifecycleResult) {
	if s.WebhookPublisher == nil {
		return
	}

	sub, t := result.Subscription, result.Transition
	eventName := t.EventName()
	payload, err := json.Marshal(&webhookDto.InternalSubscriptionEvent{
		EventType:      eventName,
		SubscriptionID: sub.ID,
		TenantID:       sub.TenantID,
		From:           t.From,
		To:             t.To,
		Note:           t.Note,
	})
	if err != nil {
		s.Logger.Errorw("failed to encode lifecycle event", "error", err, "subscription_id", sub.ID)
		return
	}

	// the committed version makes the id stable across redeliveries of the same change
	eventID := s.idempotency.GenerateKey(idempotency.ScopeLifecycleEvent, map[string]interface{}{
		"subscription_id": sub.ID,
		"version":         sub.Version,
		"event_name":      eventName,
	})

	event := &types.WebhookEvent{
		ID:            eventID,
		EventName:     eventName,
		TenantID:      sub.TenantID,
		EnvironmentID: types.GetEnvironmentID(ctx),
		UserID:        types.GetUserID(ctx),
		Timestamp:     time.Now().UTC(),
		Payload:       json.RawMessage(payload),
	}

	// the transition is committed, a failed publish is only logged
	if err := s.WebhookPublisher.PublishWebhook(ctx, event); err != nil {
		s.Logger.Errorw("failed to publish lifecycle event",
			"error", err,
			"subscription_id", sub.ID,
			"event_name", eventName)
	}
}

// addNote records a note outside of any lifecycle transaction, logging failures
func (s *lifecycleService) addNote(ctx context.Context, subscriptionID string, text string) {
	if err := s.NoteRepo.CreateNote(ctx, newNote(ctx, subscriptionID, text)); err != nil {
		s.Logger.Errorw("failed to record subscription note",
			"error", err,
			"subscription_id", subscriptionID)
	}
}

func planOp(op subscription.Operation, reason string) MutationFunc {
	return func(_ context.Context, sub *subscription.Subscription) (*subscription.Transition, error) {
		return sub.Plan(op, subscription.TransitionInput{
			Now:    time.Now().UTC(),
			Reason: reason,
		})
	}
}

func newNote(ctx context.Context, subscriptionID string, text string) *subscription.Note {
	return &subscription.Note{
		ID:             types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SUBSCRIPTION_NOTE),
		TenantID:       types.GetTenantID(ctx),
		SubscriptionID: subscriptionID,
		Text:           text,
		CreatedAt:      time.Now().UTC(),
		CreatedBy:      types.GetUserID(ctx),
	}
}

// retryOnConflict reruns op while it fails with ErrVersionConflict, backing off
// exponentially up to the configured number of attempts. Other errors stop it at once.
func retryOnConflict(ctx context.Context, cfg config.ConflictConfig, op func() error) error {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = cfg.InitialInterval
	eb.MaxInterval = cfg.MaxInterval
	eb.MaxElapsedTime = 0

	attempts := cfg.MaxAttempts
	if attempts == 0 {
		attempts = 1
	}

	b := backoff.WithContext(backoff.WithMaxRetries(eb, attempts-1), ctx)
	return backoff.Retry(func() error {
		err := op()
		if err == nil || ierr.IsVersionConflict(err) {
			return err
		}
		return backoff.Permanent(err)
	}, b)
}
