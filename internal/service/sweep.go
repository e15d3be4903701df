package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/flexprice/recurring/internal/api/dto"
	"github.com/flexprice/recurring/internal/domain/subscription"
	ierr "github.com/flexprice/recurring/internal/errors"
	"github.com/flexprice/recurring/internal/types"
	"github.com/samber/lo"
	"github.com/sourcegraph/conc/pool"
	"golang.org/x/time/rate"
)

// SweepService runs the scheduled maintenance passes over due subscriptions
type SweepService interface {
	// ExpireDue expires cancelled subscriptions past their end of access and
	// failing ones past their expiration plus the grace period
	ExpireDue(ctx context.Context) (*dto.SweepResponse, error)
	// RetryFailing retries the charge of due failing subscriptions whose gateway supports it
	RetryFailing(ctx context.Context) (*dto.SweepResponse, error)

	ExpireDueAllTenants(ctx context.Context) (*dto.SweepResponse, error)
	RetryFailingAllTenants(ctx context.Context) (*dto.SweepResponse, error)
}

type sweepService struct {
	ServiceParams
	lifecycle LifecycleService
	retry     RetryService
	limiter   *rate.Limiter
}

func NewSweepService(params ServiceParams, lifecycle LifecycleService, retry RetryService) SweepService {
	perSecond := params.Config.Sweep.RetryRatePerSecond
	if perSecond <= 0 {
		perSecond = 1
	}
	return &sweepService{
		ServiceParams: params,
		lifecycle:     lifecycle,
		retry:         retry,
		limiter:       rate.NewLimiter(rate.Limit(perSecond), 1),
	}
}

// sweepItem handles one subscription. It reports whether the subscription left
// the swept set, so paging can account for the rows still in place.
type sweepItem func(ctx context.Context, sub *subscription.Subscription) (outcome sweepOutcome, err error)

type sweepOutcome int

const (
	sweepSucceeded sweepOutcome = iota
	sweepSkipped
	sweepFailed
)

func (s *sweepService) ExpireDue(ctx context.Context) (*dto.SweepResponse, error) {
	now := time.Now().UTC()

	resp, err := s.sweep(ctx, "expire_cancelled", []types.SubscriptionStatus{types.SubscriptionStatusCancelled}, now, s.expireItem)
	if err != nil {
		return nil, err
	}

	failing, err := s.sweep(ctx, "expire_failing", []types.SubscriptionStatus{types.SubscriptionStatusFailing}, now.Add(-s.Config.Sweep.GracePeriod), s.expireItem)
	if err != nil {
		return nil, err
	}
	resp.Merge(failing)
	return resp, nil
}

func (s *sweepService) expireItem(ctx context.Context, sub *subscription.Subscription) (sweepOutcome, error) {
	result, err := s.lifecycle.Expire(ctx, sub.ID, "expired by scheduled sweep")
	if err != nil {
		if ierr.IsInvalidTransition(err) || ierr.IsNotFound(err) {
			return sweepSkipped, nil
		}
		return sweepFailed, err
	}
	if !result.Changed() {
		return sweepSkipped, nil
	}
	return sweepSucceeded, nil
}

func (s *sweepService) RetryFailing(ctx context.Context) (*dto.SweepResponse, error) {
	return s.sweep(ctx, "retry_failing", []types.SubscriptionStatus{types.SubscriptionStatusFailing}, time.Now().UTC(), s.retryItem)
}

func (s *sweepService) retryItem(ctx context.Context, sub *subscription.Subscription) (sweepOutcome, error) {
	adapter, err := s.Gateways.Get(sub.Gateway)
	if err != nil || !adapter.SupportsRetry() || sub.ProfileID == "" {
		return sweepSkipped, nil
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return sweepFailed, err
	}

	resp, err := s.retry.Retry(ctx, sub.ID)
	if err != nil {
		if ierr.IsRetryInProgress(err) || ierr.IsInvalidOperation(err) {
			return sweepSkipped, nil
		}
		return sweepFailed, err
	}
	if !resp.Success {
		return sweepFailed, nil
	}
	return sweepSucceeded, nil
}

// sweep pages through the subscriptions in statuses that expire before cutoff
// and hands each to fn on a bounded pool
func (s *sweepService) sweep(ctx context.Context, name string, statuses []types.SubscriptionStatus, cutoff time.Time, fn sweepItem) (*dto.SweepResponse, error) {
	batchSize := s.Config.Sweep.BatchSize
	if batchSize <= 0 {
		batchSize = types.FILTER_DEFAULT_LIMIT
	}
	concurrency := s.Config.Sweep.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	var (
		succeeded, skipped, failed atomic.Int64
		mu                         sync.Mutex
		errs                       []string
		scanned                    int
		offset                     int
	)

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		filter := types.NewSubscriptionFilter()
		filter.QueryFilter.Limit = lo.ToPtr(batchSize)
		filter.QueryFilter.Offset = lo.ToPtr(offset)
		filter.SubscriptionStatus = statuses
		filter.ExpiringBefore = lo.ToPtr(cutoff)

		subs, err := s.SubRepo.List(ctx, filter)
		if err != nil {
			return nil, err
		}
		if len(subs) == 0 {
			break
		}
		scanned += len(subs)

		var remaining atomic.Int64
		p := pool.New().WithMaxGoroutines(concurrency)
		for _, sub := range subs {
			p.Go(func() {
				outcome, err := fn(ctx, sub)
				switch outcome {
				case sweepSucceeded:
					succeeded.Add(1)
					return
				case sweepSkipped:
					skipped.Add(1)
				case sweepFailed:
					failed.Add(1)
				}
				remaining.Add(1)
				if err != nil {
					s.Logger.Warnw("sweep item failed",
						"sweep", name,
						"subscription_id", sub.ID,
						"error", err)
					mu.Lock()
					errs = append(errs, sub.ID+": "+ierr.DisplayMessage(err))
					mu.Unlock()
				}
			})
		}
		p.Wait()

		// handled rows left the filter, the rest are still ahead of the offset
		offset += int(remaining.Load())
		if len(subs) < batchSize {
			break
		}
	}

	resp := &dto.SweepResponse{
		Scanned:   scanned,
		Succeeded: int(succeeded.Load()),
		Skipped:   int(skipped.Load()),
		Failed:    int(failed.Load()),
		Errors:    errs,
	}
	s.Logger.Infow("sweep finished",
		"sweep", name,
		"tenant_id", types.GetTenantID(ctx),
		"scanned", resp.Scanned,
		"succeeded", resp.Succeeded,
		"skipped", resp.Skipped,
		"failed", resp.Failed)
	return resp, nil
}

func (s *sweepService) ExpireDueAllTenants(ctx context.Context) (*dto.SweepResponse, error) {
	return s.forEachTenant(ctx, s.ExpireDue)
}

func (s *sweepService) RetryFailingAllTenants(ctx context.Context) (*dto.SweepResponse, error) {
	return s.forEachTenant(ctx, s.RetryFailing)
}

func (s *sweepService) forEachTenant(ctx context.Context, fn func(ctx context.Context) (*dto.SweepResponse, error)) (*dto.SweepResponse, error) {
	tenants, err := s.SubRepo.ListTenantIDs(types.SetTenantID(ctx, ""))
	if err != nil {
		return nil, err
	}

	total := &dto.SweepResponse{}
	for _, tenantID := range tenants {
		resp, err := fn(types.SetTenantID(ctx, tenantID))
		if err != nil {
			s.Logger.Errorw("tenant sweep failed", "tenant_id", tenantID, "error", err)
			total.Errors = append(total.Errors, tenantID+": "+ierr.DisplayMessage(err))
			continue
		}
		total.Merge(resp)
	}
	return total, nil
}
