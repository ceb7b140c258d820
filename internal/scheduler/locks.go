package scheduler

import (
	"context"
	"time"

	obsmetrics "github.com/smallbiznis/chargeplan/internal/observability/metrics"
	"go.uber.org/zap"
)

const leaseReleaseTimeout = 2 * time.Second

// acquireLease takes the shared sweep lease. It returns a release func, or
// nil and the skip reason when the sweep must not run. Without a configured
// locker the lease is always granted.
func (s *Scheduler) acquireLease(ctx context.Context) (func(), string) {
	if s.locker == nil {
		return func() {}, ""
	}

	token, ok, err := s.locker.TryLock(ctx, s.cfg.LockKey, s.cfg.LockTTL)
	if err != nil {
		s.log.Warn("scheduler.lease.error",
			zap.String("lock_key", s.cfg.LockKey),
			zap.String("error_type", obsmetrics.ClassifySchedulerErrorType(err)),
			zap.Error(err),
		)
		return nil, obsmetrics.SweepSkippedLockError
	}
	if !ok {
		return nil, obsmetrics.SweepSkippedLockHeld
	}

	return func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), leaseReleaseTimeout)
		defer cancel()
		if err := s.locker.Release(releaseCtx, s.cfg.LockKey, token); err != nil {
			// the lease still expires after its TTL
			s.log.Warn("scheduler.lease.release_failed",
				zap.String("lock_key", s.cfg.LockKey),
				zap.Error(err),
			)
		}
	}, ""
}
