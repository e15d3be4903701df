package types

import (
	ierr "github.com/flexprice/recurring/internal/errors"
	"github.com/samber/lo"
)

const (
	FILTER_DEFAULT_LIMIT = 50
	FILTER_MAX_LIMIT     = 1000
)

// QueryFilter is the pagination and row status part of every list filter.
// A nil Limit means unlimited and is only built internally, never bound from a request.
type QueryFilter struct {
	Limit  *int    `json:"limit,omitempty" form:"limit" validate:"omitempty,min=1,max=1000"`
	Offset *int    `json:"offset,omitempty" form:"offset" validate:"omitempty,min=0"`
	Status *Status `json:"status,omitempty" form:"status"`
}

func NewDefaultQueryFilter() *QueryFilter {
	return &QueryFilter{
		Limit:  lo.ToPtr(FILTER_DEFAULT_LIMIT),
		Offset: lo.ToPtr(0),
		Status: lo.ToPtr(StatusPublished),
	}
}

// NewNoLimitQueryFilter is used by sweeps and repairs that page on their own
func NewNoLimitQueryFilter() *QueryFilter {
	return &QueryFilter{
		Offset: lo.ToPtr(0),
		Status: lo.ToPtr(StatusPublished),
	}
}

func (f QueryFilter) IsUnlimited() bool {
	return f.Limit == nil
}

// GetLimit returns 0 when unlimited
func (f QueryFilter) GetLimit() int {
	return lo.FromPtr(f.Limit)
}

func (f QueryFilter) GetOffset() int {
	return lo.FromPtr(f.Offset)
}

func (f QueryFilter) GetStatus() string {
	return string(lo.FromPtrOr(f.Status, StatusPublished))
}

func (f QueryFilter) Validate() error {
	if f.Limit != nil && (*f.Limit < 1 || *f.Limit > FILTER_MAX_LIMIT) {
		return ierr.NewErrorf("limit must be between 1 and %d", FILTER_MAX_LIMIT).
			WithHint("Invalid limit").
			Mark(ierr.ErrValidation)
	}
	if f.Offset != nil && *f.Offset < 0 {
		return ierr.NewError("offset must be non-negative").
			WithHint("Invalid offset").
			Mark(ierr.ErrValidation)
	}
	return nil
}
