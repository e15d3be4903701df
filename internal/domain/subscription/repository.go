package subscription

import (
	"context"

	"github.com/flexprice/recurring/internal/types"
)

type Repository interface {
	Create(ctx context.Context, subscription *Subscription) error
	Get(ctx context.Context, id string) (*Subscription, error)
	// Update writes subscription only if the stored version still equals
	// subscription.Version, then increments it. A moved version yields ErrVersionConflict.
	Update(ctx context.Context, subscription *Subscription) error
	List(ctx context.Context, filter *types.SubscriptionFilter) ([]*Subscription, error)
	Count(ctx context.Context, filter *types.SubscriptionFilter) (int, error)
	// ListByProfileID returns every non-deleted subscription carrying the gateway profile id.
	// More than one result is a corruption state.
	ListByProfileID(ctx context.Context, gateway types.GatewayType, profileID string) ([]*Subscription, error)
	// ListDuplicateProfiles returns the subscriptions whose (gateway, profile_id) pair is shared
	ListDuplicateProfiles(ctx context.Context) ([]*Subscription, error)
	// ListTenantIDs returns the tenants owning at least one unsettled subscription. It is
	// the only cross tenant read and drives the scheduled sweeps.
	ListTenantIDs(ctx context.Context) ([]string, error)
}

// NoteRepository stores the append-only notes of a subscription
type NoteRepository interface {
	CreateNote(ctx context.Context, note *Note) error
	// ListNotes returns notes oldest first
	ListNotes(ctx context.Context, subscriptionID string) ([]*Note, error)
}
