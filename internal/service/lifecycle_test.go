package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/flexprice/recurring/internal/domain/subscription"
	ierr "github.com/flexprice/recurring/internal/errors"
	"github.com/flexprice/recurring/internal/locker"
	"github.com/flexprice/recurring/internal/postgres"
	"github.com/flexprice/recurring/internal/testutil"
	"github.com/flexprice/recurring/internal/types"
	webhookDto "github.com/flexprice/recurring/internal/webhook/dto"
	"github.com/samber/lo"
	"github.com/stretchr/testify/suite"
)

type LifecycleServiceSuite struct {
	engineSuite
}

func TestLifecycleService(t *testing.T) {
	suite.Run(t, new(LifecycleServiceSuite))
}

func (s *LifecycleServiceSuite) TestActivatePending() {
	sub, _ := s.CreateSubscription(testutil.SubscriptionFixture{Status: types.SubscriptionStatusPending})

	result, err := s.lifecycle.Activate(s.GetContext(), sub.ID, "")
	s.Require().NoError(err)
	s.True(result.Changed())
	s.Equal(types.SubscriptionStatusActive, result.Subscription.SubscriptionStatus)
	s.Require().NotNil(result.Subscription.Expiration)
	s.True(result.Subscription.Expiration.After(s.GetNow().AddDate(0, 0, 27)))

	stored := s.MustGetSubscription(sub.ID)
	s.Equal(types.SubscriptionStatusActive, stored.SubscriptionStatus)
	s.Equal(sub.Version+1, stored.Version)
	s.Equal([]string{"Subscription activated"}, s.notes(sub.ID))
	s.Equal([]string{types.WebhookEventSubscriptionActivated}, s.publishedEvents())
}

func (s *LifecycleServiceSuite) TestActivateTwiceIsNoOp() {
	sub, _ := s.CreateSubscription(testutil.SubscriptionFixture{Status: types.SubscriptionStatusPending})

	_, err := s.lifecycle.Activate(s.GetContext(), sub.ID, "")
	s.Require().NoError(err)
	version := s.MustGetSubscription(sub.ID).Version

	result, err := s.lifecycle.Activate(s.GetContext(), sub.ID, "")
	s.Require().NoError(err)
	s.False(result.Changed())
	s.True(result.ToResponse().NoOp)
	s.Equal(version, s.MustGetSubscription(sub.ID).Version)
	s.Len(s.publishedEvents(), 1)
}

func (s *LifecycleServiceSuite) TestActivateKeepsTrialExpiration() {
	trialEnd := s.GetNow().Add(7 * 24 * time.Hour)
	sub, _ := s.CreateSubscription(testutil.SubscriptionFixture{
		Status:     types.SubscriptionStatusTrialling,
		Expiration: lo.ToPtr(trialEnd),
		TrialEnd:   lo.ToPtr(trialEnd),
	})

	result, err := s.lifecycle.Activate(s.GetContext(), sub.ID, "")
	s.Require().NoError(err)
	s.Equal(types.SubscriptionStatusActive, result.Subscription.SubscriptionStatus)
	s.True(result.Subscription.Expiration.Equal(trialEnd))
}

func (s *LifecycleServiceSuite) TestLifecycleEventPayload() {
	sub, _ := s.CreateSubscription(testutil.SubscriptionFixture{})

	_, err := s.lifecycle.MarkFailing(s.GetContext(), sub.ID, "card expired")
	s.Require().NoError(err)

	events := s.GetPubSub().WebhookEvents(s.GetConfig().Webhook.Topic)
	s.Require().Len(events, 1)
	event := events[0]
	s.Equal(types.WebhookEventSubscriptionFailing, event.EventName)
	s.Equal(types.DefaultTenantID, event.TenantID)
	s.Equal("env_sandbox", event.EnvironmentID)
	s.NotEmpty(event.ID)

	var payload webhookDto.InternalSubscriptionEvent
	s.Require().NoError(json.Unmarshal(event.Payload, &payload))
	s.Equal(sub.ID, payload.SubscriptionID)
	s.Equal(types.SubscriptionStatusActive, payload.From)
	s.Equal(types.SubscriptionStatusFailing, payload.To)
	s.Equal("Subscription marked as failing: card expired", payload.Note)
}

func (s *LifecycleServiceSuite) TestInvalidTransition() {
	sub, _ := s.CreateSubscription(testutil.SubscriptionFixture{Status: types.SubscriptionStatusExpired})

	_, err := s.lifecycle.Activate(s.GetContext(), sub.ID, "")
	s.Require().Error(err)
	s.True(ierr.IsInvalidTransition(err))
	s.Equal(types.SubscriptionStatusExpired, s.MustGetSubscription(sub.ID).SubscriptionStatus)
	s.Empty(s.publishedEvents())
}

func (s *LifecycleServiceSuite) TestNotFound() {
	_, err := s.lifecycle.Expire(s.GetContext(), "sub_missing", "")
	s.Require().Error(err)
	s.True(ierr.IsNotFound(err))
}

func (s *LifecycleServiceSuite) TestCancelCallsGateway() {
	sub, _ := s.CreateSubscription(testutil.SubscriptionFixture{ProfileID: "I-CANCEL"})

	result, err := s.lifecycle.Cancel(s.GetContext(), sub.ID, CancelOptions{Reason: "customer request"})
	s.Require().NoError(err)
	s.Equal(types.SubscriptionStatusCancelled, result.Subscription.SubscriptionStatus)
	s.Equal([]string{"I-CANCEL"}, s.GetPayPal().Cancels())
	s.Equal([]string{types.WebhookEventSubscriptionCancelled}, s.publishedEvents())
}

func (s *LifecycleServiceSuite) TestCancelGatewayFailureIsNoted() {
	sub, _ := s.CreateSubscription(testutil.SubscriptionFixture{})
	s.GetPayPal().CancelFunc = func(context.Context, string) error {
		return ierr.NewError("profile not found").
			WithHint("Gateway rejected the cancellation").
			Mark(ierr.ErrGateway)
	}

	result, err := s.lifecycle.Cancel(s.GetContext(), sub.ID, CancelOptions{})
	s.Require().NoError(err)
	s.Equal(types.SubscriptionStatusCancelled, result.Subscription.SubscriptionStatus)
	s.Equal(types.SubscriptionStatusCancelled, s.MustGetSubscription(sub.ID).SubscriptionStatus)
	s.Equal([]string{
		"Subscription cancelled",
		"Gateway cancellation failed: Gateway rejected the cancellation",
	}, s.notes(sub.ID))
}

func (s *LifecycleServiceSuite) TestCancelSkipGateway() {
	sub, _ := s.CreateSubscription(testutil.SubscriptionFixture{})

	_, err := s.lifecycle.Cancel(s.GetContext(), sub.ID, CancelOptions{SkipGateway: true})
	s.Require().NoError(err)
	s.Empty(s.GetPayPal().Cancels())
}

func (s *LifecycleServiceSuite) TestCancelTwiceCallsGatewayOnce() {
	sub, _ := s.CreateSubscription(testutil.SubscriptionFixture{})

	_, err := s.lifecycle.Cancel(s.GetContext(), sub.ID, CancelOptions{})
	s.Require().NoError(err)
	result, err := s.lifecycle.Cancel(s.GetContext(), sub.ID, CancelOptions{})
	s.Require().NoError(err)
	s.False(result.Changed())
	s.Len(s.GetPayPal().Cancels(), 1)
}

func (s *LifecycleServiceSuite) TestCompleteRequiresBillTimes() {
	sub, _ := s.CreateSubscription(testutil.SubscriptionFixture{BillTimes: 2})

	_, err := s.lifecycle.Complete(s.GetContext(), sub.ID, "")
	s.Require().Error(err)
	s.True(ierr.IsInvalidTransition(err))

	for _, txID := range []string{"TX-1", "TX-2"} {
		_, err := s.recorder.Record(s.GetContext(), sub.ID, RenewalInput{
			TransactionID: txID,
			Amount:        sub.RecurringAmount,
			Currency:      sub.Currency,
		})
		s.Require().NoError(err)
	}

	// the second renewal already completed it
	s.Equal(types.SubscriptionStatusCompleted, s.MustGetSubscription(sub.ID).SubscriptionStatus)
}

func (s *LifecycleServiceSuite) TestExecuteRollsBackOnError() {
	sub, _ := s.CreateSubscription(testutil.SubscriptionFixture{})
	boom := errors.New("boom")

	_, err := s.lifecycle.Execute(s.GetContext(), sub.ID, func(ctx context.Context, _ *subscription.Subscription) (*subscription.Transition, error) {
		return nil, boom
	})
	s.Require().ErrorIs(err, boom)
	s.Equal(sub.Version, s.MustGetSubscription(sub.ID).Version)
	s.Empty(s.publishedEvents())
}

func (s *LifecycleServiceSuite) TestConflictIsRetried() {
	sub, _ := s.CreateSubscription(testutil.SubscriptionFixture{})
	repo := newConflictingRepo(s.GetStores().SubscriptionRepo, 2)
	s.setupServices(repo)

	result, err := s.lifecycle.MarkFailing(s.GetContext(), sub.ID, "")
	s.Require().NoError(err)
	s.Equal(types.SubscriptionStatusFailing, result.Subscription.SubscriptionStatus)
	s.Equal(int64(3), repo.updates.Load())
	s.Len(s.publishedEvents(), 1)
}

func (s *LifecycleServiceSuite) TestConflictExhaustion() {
	sub, _ := s.CreateSubscription(testutil.SubscriptionFixture{})
	attempts := int64(s.GetConfig().Conflict.MaxAttempts)
	repo := newConflictingRepo(s.GetStores().SubscriptionRepo, attempts)
	s.setupServices(repo)

	_, err := s.lifecycle.MarkFailing(s.GetContext(), sub.ID, "")
	s.Require().Error(err)
	s.True(ierr.IsVersionConflict(err))
	s.Equal(attempts, repo.updates.Load())
	s.Equal(types.SubscriptionStatusActive, s.MustGetSubscription(sub.ID).SubscriptionStatus)
	s.Empty(s.publishedEvents())
}

func (s *LifecycleServiceSuite) TestWebhooksDisabled() {
	s.GetConfig().Webhook.Enabled = false
	sub, _ := s.CreateSubscription(testutil.SubscriptionFixture{})

	_, err := s.lifecycle.MarkFailing(s.GetContext(), sub.ID, "")
	s.Require().NoError(err)
	s.Empty(s.publishedEvents())
}

type inTxKey struct{}

// tracingClient marks the transaction context and records its boundaries
type tracingClient struct {
	postgres.IClient
	trace *[]string
}

func (c *tracingClient) WithTx(ctx context.Context, fn func(context.Context) error) error {
	*c.trace = append(*c.trace, "begin")
	err := c.IClient.WithTx(context.WithValue(ctx, inTxKey{}, true), fn)
	*c.trace = append(*c.trace, "end")
	return err
}

// tracingLocker records lock calls and whether they ran inside a transaction
type tracingLocker struct {
	locker.Locker
	trace *[]string
}

func (l *tracingLocker) Lock(ctx context.Context, key string) (func(), error) {
	if ctx.Value(inTxKey{}) == nil {
		*l.trace = append(*l.trace, "lock outside tx")
	} else {
		*l.trace = append(*l.trace, "lock")
	}
	unlock, err := l.Locker.Lock(ctx, key)
	if err != nil {
		return nil, err
	}
	return func() {
		*l.trace = append(*l.trace, "unlock")
		unlock()
	}, nil
}

func (s *LifecycleServiceSuite) TestLockHeldInsideTransaction() {
	sub, _ := s.CreateSubscription(testutil.SubscriptionFixture{})

	var trace []string
	params := s.params
	params.DB = &tracingClient{IClient: s.GetDB(), trace: &trace}
	params.Locker = &tracingLocker{Locker: s.GetLocker(), trace: &trace}
	params.SubRepo = newConflictingRepo(s.GetStores().SubscriptionRepo, 1)
	lifecycle := NewLifecycleService(params)

	_, err := lifecycle.MarkFailing(s.GetContext(), sub.ID, "")
	s.Require().NoError(err)

	// one conflicting attempt, then the successful one
	s.Equal([]string{
		"begin", "lock", "end", "unlock",
		"begin", "lock", "end", "unlock",
	}, trace)
}
