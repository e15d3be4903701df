package testutil

import (
	"context"
	"sort"
	"time"

	"github.com/flexprice/recurring/internal/domain/subscription"
	ierr "github.com/flexprice/recurring/internal/errors"
	"github.com/flexprice/recurring/internal/types"
	"github.com/samber/lo"
)

// InMemorySubscriptionStore implements subscription.Repository. Items are copied on
// the way in and out so callers never share state with the store, which keeps the
// optimistic version check meaningful in concurrent tests.
type InMemorySubscriptionStore struct {
	*InMemoryStore[*subscription.Subscription]
}

func NewInMemorySubscriptionStore() *InMemorySubscriptionStore {
	return &InMemorySubscriptionStore{
		InMemoryStore: NewInMemoryStore[*subscription.Subscription](),
	}
}

func copySubscription(sub *subscription.Subscription) *subscription.Subscription {
	if sub == nil {
		return nil
	}
	c := *sub
	if sub.Expiration != nil {
		c.Expiration = lo.ToPtr(*sub.Expiration)
	}
	if sub.TrialEnd != nil {
		c.TrialEnd = lo.ToPtr(*sub.TrialEnd)
	}
	if sub.PriceID != nil {
		c.PriceID = lo.ToPtr(*sub.PriceID)
	}
	return &c
}

// subscriptionFilterFn implements filtering logic for subscriptions
func subscriptionFilterFn(ctx context.Context, sub *subscription.Subscription, filter interface{}) bool {
	if sub == nil {
		return false
	}

	if !CheckTenantFilter(ctx, sub.TenantID) {
		return false
	}

	f, ok := filter.(*types.SubscriptionFilter)
	if !ok || f == nil {
		return sub.Status != types.StatusDeleted
	}

	if string(sub.Status) != f.GetStatus() {
		return false
	}

	if len(f.SubscriptionIDs) > 0 && !lo.Contains(f.SubscriptionIDs, sub.ID) {
		return false
	}

	if f.CustomerID != "" && sub.CustomerID != f.CustomerID {
		return false
	}

	if f.ProductID != "" && sub.ProductID != f.ProductID {
		return false
	}

	if f.Gateway != "" && sub.Gateway != f.Gateway {
		return false
	}

	if f.ProfileID != "" && sub.ProfileID != f.ProfileID {
		return false
	}

	if len(f.SubscriptionStatus) > 0 && !lo.Contains(f.SubscriptionStatus, sub.SubscriptionStatus) {
		return false
	}

	if f.ExpiringBefore != nil {
		if sub.Expiration == nil || !sub.Expiration.Before(*f.ExpiringBefore) {
			return false
		}
	}

	return true
}

// subscriptionSortFn sorts newest first like the postgres repository
func subscriptionSortFn(i, j *subscription.Subscription) bool {
	if i.CreatedAt.Equal(j.CreatedAt) {
		return i.ID < j.ID
	}
	return i.CreatedAt.After(j.CreatedAt)
}

func oldestFirst(i, j *subscription.Subscription) bool {
	if i.CreatedAt.Equal(j.CreatedAt) {
		return i.ID < j.ID
	}
	return i.CreatedAt.Before(j.CreatedAt)
}

func (s *InMemorySubscriptionStore) Create(ctx context.Context, sub *subscription.Subscription) error {
	if sub == nil {
		return ierr.NewError("subscription cannot be nil").
			Mark(ierr.ErrValidation)
	}
	if sub.Version == 0 {
		sub.Version = 1
	}
	if sub.Status == "" {
		sub.Status = types.StatusPublished
	}
	return s.InMemoryStore.Create(ctx, sub.ID, copySubscription(sub))
}

func (s *InMemorySubscriptionStore) Get(ctx context.Context, id string) (*subscription.Subscription, error) {
	sub, err := s.InMemoryStore.Get(ctx, id)
	if err != nil || !CheckTenantFilter(ctx, sub.TenantID) || sub.Status == types.StatusDeleted {
		return nil, ierr.NewErrorf("subscription %s not found", id).
			WithHint("Subscription not found").
			WithReportableDetails(map[string]any{"subscription_id": id}).
			Mark(ierr.ErrNotFound)
	}
	return copySubscription(sub), nil
}

// Update applies the same version check the postgres repository does
func (s *InMemorySubscriptionStore) Update(ctx context.Context, sub *subscription.Subscription) error {
	next := copySubscription(sub)
	next.Version = sub.Version + 1
	next.Touch(ctx)

	err := s.CompareAndUpdate(ctx, sub.ID, next, func(stored *subscription.Subscription) error {
		if stored.Version != sub.Version {
			return ierr.NewErrorf("subscription %s changed since version %d", sub.ID, sub.Version).
				WithHint("Subscription was modified concurrently, please retry").
				Mark(ierr.ErrVersionConflict)
		}
		return nil
	})
	if err != nil {
		return err
	}

	sub.Version = next.Version
	sub.UpdatedAt = next.UpdatedAt
	sub.UpdatedBy = next.UpdatedBy
	return nil
}

func (s *InMemorySubscriptionStore) List(ctx context.Context, filter *types.SubscriptionFilter) ([]*subscription.Subscription, error) {
	subs, err := s.InMemoryStore.List(ctx, filter, subscriptionFilterFn, subscriptionSortFn)
	if err != nil {
		return nil, err
	}
	return lo.Map(subs, func(sub *subscription.Subscription, _ int) *subscription.Subscription {
		return copySubscription(sub)
	}), nil
}

func (s *InMemorySubscriptionStore) Count(ctx context.Context, filter *types.SubscriptionFilter) (int, error) {
	return s.InMemoryStore.Count(ctx, filter, subscriptionFilterFn)
}

func (s *InMemorySubscriptionStore) ListByProfileID(ctx context.Context, gateway types.GatewayType, profileID string) ([]*subscription.Subscription, error) {
	subs, err := s.InMemoryStore.List(ctx, nil, func(ctx context.Context, sub *subscription.Subscription, _ interface{}) bool {
		return CheckTenantFilter(ctx, sub.TenantID) &&
			sub.Status != types.StatusDeleted &&
			sub.Gateway == gateway &&
			sub.ProfileID == profileID
	}, oldestFirst)
	if err != nil {
		return nil, err
	}
	return lo.Map(subs, func(sub *subscription.Subscription, _ int) *subscription.Subscription {
		return copySubscription(sub)
	}), nil
}

func (s *InMemorySubscriptionStore) ListDuplicateProfiles(ctx context.Context) ([]*subscription.Subscription, error) {
	subs, err := s.InMemoryStore.List(ctx, nil, func(ctx context.Context, sub *subscription.Subscription, _ interface{}) bool {
		return CheckTenantFilter(ctx, sub.TenantID) &&
			sub.Status != types.StatusDeleted &&
			sub.ProfileID != ""
	}, nil)
	if err != nil {
		return nil, err
	}

	groups := lo.GroupBy(subs, func(sub *subscription.Subscription) string {
		return string(sub.Gateway) + "\x00" + sub.ProfileID
	})

	result := make([]*subscription.Subscription, 0)
	for _, group := range groups {
		if len(group) > 1 {
			result = append(result, group...)
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if a.Gateway != b.Gateway {
			return a.Gateway < b.Gateway
		}
		if a.ProfileID != b.ProfileID {
			return a.ProfileID < b.ProfileID
		}
		return oldestFirst(a, b)
	})

	return lo.Map(result, func(sub *subscription.Subscription, _ int) *subscription.Subscription {
		return copySubscription(sub)
	}), nil
}

func (s *InMemorySubscriptionStore) ListTenantIDs(ctx context.Context) ([]string, error) {
	subs, err := s.InMemoryStore.List(context.Background(), nil, func(_ context.Context, sub *subscription.Subscription, _ interface{}) bool {
		return sub.Status != types.StatusDeleted && !sub.SubscriptionStatus.IsSettled()
	}, nil)
	if err != nil {
		return nil, err
	}

	tenants := lo.Uniq(lo.Map(subs, func(sub *subscription.Subscription, _ int) string {
		return sub.TenantID
	}))
	sort.Strings(tenants)
	return tenants, nil
}

// InMemoryNoteStore implements subscription.NoteRepository
type InMemoryNoteStore struct {
	*InMemoryStore[*subscription.Note]
}

func NewInMemoryNoteStore() *InMemoryNoteStore {
	return &InMemoryNoteStore{
		InMemoryStore: NewInMemoryStore[*subscription.Note](),
	}
}

func (s *InMemoryNoteStore) CreateNote(ctx context.Context, note *subscription.Note) error {
	if note.ID == "" {
		note.ID = types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SUBSCRIPTION_NOTE)
	}
	if note.CreatedAt.IsZero() {
		note.CreatedAt = time.Now().UTC()
	}
	c := *note
	return s.InMemoryStore.Create(ctx, note.ID, &c)
}

func (s *InMemoryNoteStore) ListNotes(ctx context.Context, subscriptionID string) ([]*subscription.Note, error) {
	return s.InMemoryStore.List(ctx, nil, func(ctx context.Context, note *subscription.Note, _ interface{}) bool {
		return CheckTenantFilter(ctx, note.TenantID) && note.SubscriptionID == subscriptionID
	}, func(i, j *subscription.Note) bool {
		if i.CreatedAt.Equal(j.CreatedAt) {
			return i.ID < j.ID
		}
		return i.CreatedAt.Before(j.CreatedAt)
	})
}
