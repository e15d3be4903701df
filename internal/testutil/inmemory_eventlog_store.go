package testutil

import (
	"context"

	"github.com/flexprice/recurring/internal/domain/eventlog"
	"github.com/flexprice/recurring/internal/types"
)

// InMemoryEventLogStore implements eventlog.Repository
type InMemoryEventLogStore struct {
	*InMemoryStore[*eventlog.GatewayEvent]
}

func NewInMemoryEventLogStore() *InMemoryEventLogStore {
	return &InMemoryEventLogStore{
		InMemoryStore: NewInMemoryStore[*eventlog.GatewayEvent](),
	}
}

func eventLogFilterFn(ctx context.Context, e *eventlog.GatewayEvent, filter interface{}) bool {
	if !CheckTenantFilter(ctx, e.TenantID) {
		return false
	}
	f, ok := filter.(*types.GatewayEventFilter)
	if !ok || f == nil {
		return true
	}
	if f.Gateway != "" && e.Gateway != f.Gateway {
		return false
	}
	if f.SubscriptionID != "" && e.SubscriptionID != f.SubscriptionID {
		return false
	}
	if f.Outcome != "" && e.Outcome != f.Outcome {
		return false
	}
	return true
}

func (s *InMemoryEventLogStore) Create(ctx context.Context, e *eventlog.GatewayEvent) error {
	if e.ID == "" {
		e.ID = types.GenerateUUIDWithPrefix(types.UUID_PREFIX_GATEWAY_EVENT)
	}
	cp := *e
	return s.InMemoryStore.Create(ctx, e.ID, &cp)
}

func (s *InMemoryEventLogStore) List(ctx context.Context, filter *types.GatewayEventFilter) ([]*eventlog.GatewayEvent, error) {
	return s.InMemoryStore.List(ctx, filter, eventLogFilterFn, func(i, j *eventlog.GatewayEvent) bool {
		if i.ReceivedAt.Equal(j.ReceivedAt) {
			return i.ID > j.ID
		}
		return i.ReceivedAt.After(j.ReceivedAt)
	})
}

func (s *InMemoryEventLogStore) Count(ctx context.Context, filter *types.GatewayEventFilter) (int, error) {
	return s.InMemoryStore.Count(ctx, filter, eventLogFilterFn)
}
