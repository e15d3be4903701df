package service

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/flexprice/recurring/internal/api/dto"
	"github.com/flexprice/recurring/internal/domain/eventlog"
	"github.com/flexprice/recurring/internal/domain/subscription"
	ierr "github.com/flexprice/recurring/internal/errors"
	"github.com/flexprice/recurring/internal/gateway"
	"github.com/flexprice/recurring/internal/types"
	"github.com/samber/lo"
)

// DispatchResult is what the dispatcher did with one gateway event
type DispatchResult struct {
	Outcome types.DispatchOutcome
	// Retryable is set when the gateway should redeliver the event
	Retryable      bool
	Reason         string
	SubscriptionID string
	EventID        string
	// Err is the failure behind a failed outcome
	Err error
}

// StatusCode is the HTTP status acknowledged to the gateway. Anything but 2xx makes it redeliver.
func (r *DispatchResult) StatusCode() int {
	switch r.Outcome {
	case types.DispatchOutcomeProcessed, types.DispatchOutcomeIgnored:
		return http.StatusOK
	}
	if ierr.IsVersionConflict(r.Err) {
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func (r *DispatchResult) ToResponse() *dto.WebhookResponse {
	return &dto.WebhookResponse{
		Outcome:        r.Outcome,
		Reason:         r.Reason,
		SubscriptionID: r.SubscriptionID,
		EventID:        r.EventID,
	}
}

// WebhookDispatcher routes normalized gateway events to lifecycle operations
type WebhookDispatcher interface {
	// Handle parses a raw delivery with the gateway's adapter and dispatches it
	Handle(ctx context.Context, gw types.GatewayType, payload []byte, headers http.Header) (*DispatchResult, error)
	Dispatch(ctx context.Context, evt gateway.Event) *DispatchResult
}

type webhookDispatcher struct {
	ServiceParams
	lifecycle  LifecycleService
	classifier PaymentClassifier
}

func NewWebhookDispatcher(params ServiceParams, lifecycle LifecycleService, classifier PaymentClassifier) WebhookDispatcher {
	return &webhookDispatcher{
		ServiceParams: params,
		lifecycle:     lifecycle,
		classifier:    classifier,
	}
}

func (d *webhookDispatcher) Handle(ctx context.Context, gw types.GatewayType, payload []byte, headers http.Header) (*DispatchResult, error) {
	if err := gw.Validate(); err != nil {
		return nil, err
	}
	adapter, err := d.Gateways.Get(gw)
	if err != nil {
		return nil, err
	}

	evt, err := adapter.ParseEvent(ctx, payload, headers)
	if err != nil {
		d.Logger.Warnw("rejected gateway event",
			"gateway", gw,
			"error", err)
		return nil, err
	}
	return d.Dispatch(ctx, evt), nil
}

func (d *webhookDispatcher) Dispatch(ctx context.Context, evt gateway.Event) *DispatchResult {
	result := d.dispatch(ctx, evt)
	result.EventID = evt.ID()

	logFn := d.Logger.Infow
	if result.Outcome == types.DispatchOutcomeFailed {
		logFn = d.Logger.Errorw
	}
	logFn("dispatched gateway event",
		"gateway", evt.Gateway(),
		"event_id", evt.ID(),
		"kind", evt.Kind(),
		"resource_id", evt.ResourceID(),
		"subscription_id", result.SubscriptionID,
		"outcome", result.Outcome,
		"reason", result.Reason)

	d.recordEvent(ctx, evt, result)
	return result
}

func (d *webhookDispatcher) dispatch(ctx context.Context, evt gateway.Event) *DispatchResult {
	kind := evt.Kind()
	switch kind {
	case types.GatewayEventUnknown, "":
		return ignored("unsupported event kind", "")
	}
	if evt.ResourceID() == "" {
		return ignored("event carries no resource id", "")
	}

	switch kind {
	case types.GatewayEventSaleRefunded:
		return d.handleRefund(ctx, evt)
	}

	profileID := evt.ProfileID()
	if profileID == "" {
		return ignored("event carries no recurring profile", "")
	}

	subs, err := d.SubRepo.ListByProfileID(ctx, evt.Gateway(), profileID)
	if err != nil {
		return failed(err, "")
	}
	switch len(subs) {
	case 0:
		return ignored("no subscription for profile "+profileID, "")
	case 1:
	default:
		// ambiguous until the duplicate profile repair has run
		ids := lo.Map(subs, func(s *subscription.Subscription, _ int) string { return s.ID })
		d.Logger.Warnw("profile is shared by several subscriptions",
			"gateway", evt.Gateway(),
			"profile_id", profileID,
			"subscription_ids", ids)
		return ignored("profile "+profileID+" matches several subscriptions", "")
	}

	sub := subs[0]
	var opErr error
	switch kind {
	case types.GatewayEventSale:
		_, opErr = d.classifier.Process(ctx, evt, sub)
	case types.GatewayEventSubscriptionCancelled:
		_, opErr = d.lifecycle.Cancel(ctx, sub.ID, CancelOptions{
			Reason:      "cancelled at " + evt.Gateway().String(),
			SkipGateway: true,
		})
	case types.GatewayEventSubscriptionSuspended, types.GatewayEventSubscriptionPaymentFailed:
		_, opErr = d.lifecycle.MarkFailing(ctx, sub.ID, string(kind)+" reported by "+evt.Gateway().String())
	case types.GatewayEventSubscriptionExpired:
		_, opErr = d.lifecycle.Expire(ctx, sub.ID, "expired at "+evt.Gateway().String())
	case types.GatewayEventSubscriptionActivated:
		_, opErr = d.lifecycle.Activate(ctx, sub.ID, "activated at "+evt.Gateway().String())
	default:
		return ignored("unsupported event kind "+string(kind), sub.ID)
	}

	if opErr != nil {
		return classifyError(opErr, sub.ID)
	}
	return &DispatchResult{Outcome: types.DispatchOutcomeProcessed, SubscriptionID: sub.ID}
}

// handleRefund marks the order paid by the refunded transaction. Refunds never
// move the subscription itself.
func (d *webhookDispatcher) handleRefund(ctx context.Context, evt gateway.Event) *DispatchResult {
	o, err := d.Ledger.FindByTransactionID(ctx, evt.Gateway(), evt.TransactionID())
	if err != nil {
		if ierr.IsNotFound(err) {
			return ignored("no order for refunded transaction "+evt.TransactionID(), "")
		}
		return failed(err, "")
	}

	subID := lo.FromPtr(o.SubscriptionID)
	if o.OrderStatus == types.OrderStatusRefunded {
		return &DispatchResult{Outcome: types.DispatchOutcomeProcessed, Reason: "already refunded", SubscriptionID: subID}
	}

	err = d.DB.WithTx(ctx, func(ctx context.Context) error {
		if err := d.Ledger.UpdateOrderStatus(ctx, o.ID, types.OrderStatusRefunded); err != nil {
			return err
		}
		return d.Ledger.AddOrderNote(ctx, o.ID, "Payment "+evt.TransactionID()+" refunded at "+evt.Gateway().String())
	})
	if err != nil {
		return failed(err, subID)
	}
	return &DispatchResult{Outcome: types.DispatchOutcomeProcessed, SubscriptionID: subID}
}

func (d *webhookDispatcher) recordEvent(ctx context.Context, evt gateway.Event, result *DispatchResult) {
	if d.EventLogRepo == nil {
		return
	}

	var payload json.RawMessage
	if raw := evt.Payload(); json.Valid(raw) {
		payload = raw
	}

	entry := &eventlog.GatewayEvent{
		ID:             types.GenerateUUIDWithPrefix(types.UUID_PREFIX_GATEWAY_EVENT),
		TenantID:       types.GetTenantID(ctx),
		EnvironmentID:  types.GetEnvironmentID(ctx),
		Gateway:        evt.Gateway(),
		GatewayEventID: evt.ID(),
		Kind:           evt.Kind(),
		ResourceID:     evt.ResourceID(),
		SubscriptionID: result.SubscriptionID,
		Outcome:        result.Outcome,
		Reason:         result.Reason,
		Payload:        payload,
		ReceivedAt:     time.Now().UTC(),
	}
	if err := d.EventLogRepo.Create(ctx, entry); err != nil {
		d.Logger.Errorw("failed to record gateway event",
			"error", err,
			"gateway", evt.Gateway(),
			"event_id", evt.ID())
	}
}

// classifyError maps an operation failure onto the acknowledgement policy. Events
// that can never apply are acknowledged. Reconciliation mismatches are redelivered
// after the subscription was moved to failing.
func classifyError(err error, subscriptionID string) *DispatchResult {
	switch {
	case ierr.IsNotFound(err),
		ierr.IsInvalidTransition(err),
		ierr.IsValidation(err),
		ierr.IsInvalidOperation(err):
		return ignored(ierr.DisplayMessage(err), subscriptionID)
	}
	return failed(err, subscriptionID)
}

func ignored(reason string, subscriptionID string) *DispatchResult {
	return &DispatchResult{
		Outcome:        types.DispatchOutcomeIgnored,
		Reason:         reason,
		SubscriptionID: subscriptionID,
	}
}

func failed(err error, subscriptionID string) *DispatchResult {
	return &DispatchResult{
		Outcome:        types.DispatchOutcomeFailed,
		Retryable:      true,
		Reason:         ierr.DisplayMessage(err),
		SubscriptionID: subscriptionID,
		Err:            err,
	}
}

// EventLogService lists the gateway event log
type EventLogService interface {
	ListEvents(ctx context.Context, filter *types.GatewayEventFilter) (*dto.ListGatewayEventsResponse, error)
}

type eventLogService struct {
	ServiceParams
}

func NewEventLogService(params ServiceParams) EventLogService {
	return &eventLogService{ServiceParams: params}
}

func (s *eventLogService) ListEvents(ctx context.Context, filter *types.GatewayEventFilter) (*dto.ListGatewayEventsResponse, error) {
	if filter == nil {
		filter = types.NewGatewayEventFilter()
	}
	if filter.QueryFilter == nil {
		filter.QueryFilter = types.NewDefaultQueryFilter()
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	events, err := s.EventLogRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	total, err := s.EventLogRepo.Count(ctx, filter)
	if err != nil {
		return nil, err
	}

	items := lo.Map(events, func(e *eventlog.GatewayEvent, _ int) *dto.GatewayEventResponse {
		return &dto.GatewayEventResponse{GatewayEvent: e}
	})
	resp := types.NewListResponse(items, total, filter.GetLimit(), filter.GetOffset())
	return &resp, nil
}
