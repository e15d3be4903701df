package service

import (
	"context"

	"github.com/flexprice/recurring/internal/cache"
	"github.com/flexprice/recurring/internal/domain/customer"
	"github.com/flexprice/recurring/internal/types"
)

// CustomerService reads the host platform's customer directory. Lookups are
// cached per tenant since every lifecycle notification resolves the customer.
type CustomerService interface {
	GetCustomer(ctx context.Context, id string) (*customer.Customer, error)
	// InvalidateCustomer drops the cached entry after the directory changed
	InvalidateCustomer(ctx context.Context, id string)
}

type customerService struct {
	ServiceParams
}

func NewCustomerService(params ServiceParams) CustomerService {
	return &customerService{ServiceParams: params}
}

func customerCacheKey(ctx context.Context, id string) string {
	return cache.GenerateKey(cache.PrefixCustomer, types.GetTenantID(ctx), id)
}

func (s *customerService) GetCustomer(ctx context.Context, id string) (*customer.Customer, error) {
	key := customerCacheKey(ctx, id)
	if s.Cache != nil {
		if cached, found := s.Cache.Get(ctx, key); found {
			if c, ok := cached.(*customer.Customer); ok {
				return c, nil
			}
		}
	}

	c, err := s.CustomerRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.Cache != nil {
		s.Cache.Set(ctx, key, c, 0)
	}
	return c, nil
}

func (s *customerService) InvalidateCustomer(ctx context.Context, id string) {
	if s.Cache != nil {
		s.Cache.Delete(ctx, customerCacheKey(ctx, id))
	}
}
