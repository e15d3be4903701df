package service

import (
	"context"
	"fmt"

	"github.com/flexprice/recurring/internal/api/dto"
	"github.com/flexprice/recurring/internal/domain/subscription"
	ierr "github.com/flexprice/recurring/internal/errors"
	"github.com/flexprice/recurring/internal/types"
	"github.com/samber/lo"
)

type SubscriptionService interface {
	GetSubscription(ctx context.Context, id string) (*dto.SubscriptionResponse, error)
	ListSubscriptions(ctx context.Context, filter *types.SubscriptionFilter) (*dto.ListSubscriptionsResponse, error)
	UpdateSubscription(ctx context.Context, id string, req dto.UpdateSubscriptionRequest) (*dto.SubscriptionResponse, error)
	AddNote(ctx context.Context, id string, req dto.AddSubscriptionNoteRequest) (*subscription.Note, error)
	// RepairDuplicateProfiles keeps the oldest subscription of every shared
	// (gateway, profile) pair and clears the profile of the others
	RepairDuplicateProfiles(ctx context.Context) (*dto.RepairProfilesResponse, error)
}

type subscriptionService struct {
	ServiceParams
	customers CustomerService
}

func NewSubscriptionService(params ServiceParams, customers CustomerService) SubscriptionService {
	return &subscriptionService{
		ServiceParams: params,
		customers:     customers,
	}
}

func (s *subscriptionService) GetSubscription(ctx context.Context, id string) (*dto.SubscriptionResponse, error) {
	if id == "" {
		return nil, ierr.NewError("subscription_id is required").
			WithHint("Subscription ID is required").
			Mark(ierr.ErrValidation)
	}

	sub, err := s.SubRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.enrich(ctx, sub, true)
}

func (s *subscriptionService) enrich(ctx context.Context, sub *subscription.Subscription, withNotes bool) (*dto.SubscriptionResponse, error) {
	resp := &dto.SubscriptionResponse{Subscription: sub}

	billed, err := s.Ledger.CountRenewals(ctx, sub.ID)
	if err != nil {
		return nil, err
	}
	resp.TimesBilled = billed

	if withNotes {
		notes, err := s.NoteRepo.ListNotes(ctx, sub.ID)
		if err != nil {
			return nil, err
		}
		resp.Notes = notes
	}

	if s.customers != nil && sub.CustomerID != "" {
		c, err := s.customers.GetCustomer(ctx, sub.CustomerID)
		if err != nil && !ierr.IsNotFound(err) {
			return nil, err
		}
		// a customer missing from the directory is not fatal for a read
		resp.Customer = c
	}
	return resp, nil
}

func (s *subscriptionService) ListSubscriptions(ctx context.Context, filter *types.SubscriptionFilter) (*dto.ListSubscriptionsResponse, error) {
	if filter == nil {
		filter = types.NewSubscriptionFilter()
	}
	if filter.QueryFilter == nil {
		filter.QueryFilter = types.NewDefaultQueryFilter()
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	subs, err := s.SubRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	total, err := s.SubRepo.Count(ctx, filter)
	if err != nil {
		return nil, err
	}

	items := make([]*dto.SubscriptionResponse, 0, len(subs))
	for _, sub := range subs {
		item, err := s.enrich(ctx, sub, false)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	resp := types.NewListResponse(items, total, filter.GetLimit(), filter.GetOffset())
	return &resp, nil
}

func (s *subscriptionService) UpdateSubscription(ctx context.Context, id string, req dto.UpdateSubscriptionRequest) (*dto.SubscriptionResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var updated *subscription.Subscription
	err := retryOnConflict(ctx, s.Config.Conflict, func() error {
		return lockedTx(ctx, s.ServiceParams, subscriptionLockKey(id), func(ctx context.Context) error {
			sub, err := s.SubRepo.Get(ctx, id)
			if err != nil {
				return err
			}
			if req.ProfileID != nil && *req.ProfileID != "" && *req.ProfileID != sub.ProfileID {
				if err := s.ensureProfileUnused(ctx, sub, *req.ProfileID); err != nil {
					return err
				}
			}

			req.Apply(sub)
			if err := sub.Validate(); err != nil {
				return err
			}
			if err := s.SubRepo.Update(ctx, sub); err != nil {
				return err
			}
			updated = sub
			return s.NoteRepo.CreateNote(ctx, newNote(ctx, sub.ID, "Subscription details updated"))
		})
	})
	if err != nil {
		return nil, err
	}

	s.Logger.Infow("subscription updated", "subscription_id", id)
	return s.enrich(ctx, updated, true)
}

func (s *subscriptionService) ensureProfileUnused(ctx context.Context, sub *subscription.Subscription, profileID string) error {
	holders, err := s.SubRepo.ListByProfileID(ctx, sub.Gateway, profileID)
	if err != nil {
		return err
	}
	if lo.ContainsBy(holders, func(h *subscription.Subscription) bool { return h.ID != sub.ID }) {
		return ierr.NewErrorf("profile %s is already used by another subscription", profileID).
			WithHint("The gateway profile is already linked to another subscription").
			WithReportableDetails(map[string]any{
				"subscription_id": sub.ID,
				"profile_id":      profileID,
			}).
			Mark(ierr.ErrAlreadyExists)
	}
	return nil
}

func (s *subscriptionService) AddNote(ctx context.Context, id string, req dto.AddSubscriptionNoteRequest) (*subscription.Note, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.SubRepo.Get(ctx, id); err != nil {
		return nil, err
	}

	note := newNote(ctx, id, req.Text)
	if err := s.NoteRepo.CreateNote(ctx, note); err != nil {
		return nil, err
	}
	return note, nil
}

func (s *subscriptionService) RepairDuplicateProfiles(ctx context.Context) (*dto.RepairProfilesResponse, error) {
	dupes, err := s.SubRepo.ListDuplicateProfiles(ctx)
	if err != nil {
		return nil, err
	}

	resp := &dto.RepairProfilesResponse{Cleared: []string{}, Kept: []string{}}

	// ListDuplicateProfiles orders each group oldest first
	groups := lo.GroupBy(dupes, func(sub *subscription.Subscription) string {
		return string(sub.Gateway) + "/" + sub.ProfileID
	})
	keys := lo.Uniq(lo.Map(dupes, func(sub *subscription.Subscription, _ int) string {
		return string(sub.Gateway) + "/" + sub.ProfileID
	}))

	for _, key := range keys {
		group := groups[key]
		if len(group) < 2 {
			continue
		}
		resp.Groups++

		keeper := group[0]
		resp.Kept = append(resp.Kept, keeper.ID)
		s.addNote(ctx, keeper.ID, fmt.Sprintf("Kept gateway profile %s shared with %d other subscription(s)", keeper.ProfileID, len(group)-1))

		for _, sub := range group[1:] {
			if err := s.clearProfile(ctx, sub.ID, keeper); err != nil {
				s.Logger.Errorw("failed to clear duplicate profile",
					"error", err,
					"subscription_id", sub.ID,
					"profile_id", sub.ProfileID)
				resp.Failures = append(resp.Failures, sub.ID)
				continue
			}
			resp.Cleared = append(resp.Cleared, sub.ID)
		}
	}

	s.Logger.Infow("duplicate profile repair finished",
		"groups", resp.Groups,
		"cleared", len(resp.Cleared),
		"failures", len(resp.Failures))
	return resp, nil
}

func (s *subscriptionService) clearProfile(ctx context.Context, id string, keeper *subscription.Subscription) error {
	return retryOnConflict(ctx, s.Config.Conflict, func() error {
		return lockedTx(ctx, s.ServiceParams, subscriptionLockKey(id), func(ctx context.Context) error {
			sub, err := s.SubRepo.Get(ctx, id)
			if err != nil {
				return err
			}
			// repaired by someone else in the meantime
			if sub.ProfileID != keeper.ProfileID || sub.Gateway != keeper.Gateway {
				return nil
			}

			profileID := sub.ProfileID
			sub.ProfileID = ""
			if err := s.SubRepo.Update(ctx, sub); err != nil {
				return err
			}
			return s.NoteRepo.CreateNote(ctx, newNote(ctx, sub.ID,
				fmt.Sprintf("Cleared gateway profile %s, it belongs to subscription %s", profileID, keeper.ID)))
		})
	})
}

func (s *subscriptionService) addNote(ctx context.Context, id string, text string) {
	if err := s.NoteRepo.CreateNote(ctx, newNote(ctx, id, text)); err != nil {
		s.Logger.Errorw("failed to record subscription note", "error", err, "subscription_id", id)
	}
}
