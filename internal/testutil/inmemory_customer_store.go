package testutil

import (
	"context"
	"sync/atomic"

	"github.com/flexprice/recurring/internal/domain/customer"
	ierr "github.com/flexprice/recurring/internal/errors"
	"github.com/flexprice/recurring/internal/types"
)

// InMemoryCustomerStore implements customer.Repository
type InMemoryCustomerStore struct {
	*InMemoryStore[*customer.Customer]

	gets atomic.Int64
}

func NewInMemoryCustomerStore() *InMemoryCustomerStore {
	return &InMemoryCustomerStore{
		InMemoryStore: NewInMemoryStore[*customer.Customer](),
	}
}

func (s *InMemoryCustomerStore) Create(ctx context.Context, c *customer.Customer) error {
	if c.Status == "" {
		c.Status = types.StatusPublished
	}
	cp := *c
	return s.InMemoryStore.Create(ctx, c.ID, &cp)
}

func (s *InMemoryCustomerStore) Get(ctx context.Context, id string) (*customer.Customer, error) {
	s.gets.Add(1)
	c, err := s.InMemoryStore.Get(ctx, id)
	if err != nil || !CheckTenantFilter(ctx, c.TenantID) || c.Status == types.StatusDeleted {
		return nil, ierr.NewErrorf("customer %s not found", id).
			WithHint("Customer not found").
			Mark(ierr.ErrNotFound)
	}
	cp := *c
	return &cp, nil
}

// Gets is the number of Get calls that reached the store
func (s *InMemoryCustomerStore) Gets() int64 {
	return s.gets.Load()
}
