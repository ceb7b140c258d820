package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/chargeplan/internal/clock"
	"github.com/smallbiznis/chargeplan/internal/command"
	"github.com/smallbiznis/chargeplan/internal/config"
	"github.com/smallbiznis/chargeplan/internal/lock"
	obsmetrics "github.com/smallbiznis/chargeplan/internal/observability/metrics"
	"github.com/smallbiznis/chargeplan/internal/recordstore"
	scheduledomain "github.com/smallbiznis/chargeplan/internal/schedule/domain"
	"github.com/smallbiznis/chargeplan/internal/scheduler/guard"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const JobChargingDispatch = "charging_dispatch"

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

// Locker is a lease shared between processes.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	Release(ctx context.Context, key, token string) error
}

type Params struct {
	fx.In

	Store    recordstore.Store
	Sender   command.Sender
	Clock    clock.Clock
	GenID    *snowflake.Node
	Log      *zap.Logger
	Dispatch *config.DispatchConfigHolder `optional:"true"`
	Locker   *lock.Locker                 `optional:"true"`
	Metrics  *obsmetrics.Metrics          `optional:"true"`
	Config   Config                       `optional:"true"`
}

type Scheduler struct {
	store    recordstore.Store
	sender   command.Sender
	clock    clock.Clock
	genID    *snowflake.Node
	log      *zap.Logger
	cfg      Config
	dispatch *config.DispatchConfigHolder
	locker   Locker
	metrics  *obsmetrics.Metrics

	running sync.Mutex
}

func New(p Params) (*Scheduler, error) {
	if p.Store == nil || p.Sender == nil || p.Clock == nil || p.GenID == nil || p.Log == nil {
		return nil, ErrInvalidConfig
	}
	s := &Scheduler{
		store:    p.Store,
		sender:   p.Sender,
		clock:    p.Clock,
		genID:    p.GenID,
		log:      p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:      p.Config.withDefaults(),
		dispatch: p.Dispatch,
		metrics:  p.Metrics,
	}
	if p.Locker != nil {
		s.locker = p.Locker
	}
	return s, nil
}

// WithLocker replaces the cross-process lease.
func (s *Scheduler) WithLocker(l Locker) *Scheduler {
	s.locker = l
	return s
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	start := time.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx, run, owner := s.ensureJobRun(ctx, name)
	if owner {
		s.logJobStart(ctx, run)
	}
	log := s.logger(ctx).With(
		zap.String("job", name),
		zap.String("run_id", run.runID),
	)
	schedMetrics := obsmetrics.Scheduler()
	schedMetrics.IncJobRun(name)

	err := fn(ctx)
	schedMetrics.ObserveJobDuration(name, time.Since(start))
	if owner {
		if err != nil && run.errorCount == 0 {
			run.IncError()
		}
		s.logJobFinish(ctx, run)
	}
	if err == nil {
		return nil
	}

	// a timed-out sweep leaves the rest for the next tick
	isTimeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
	if isTimeout {
		schedMetrics.IncJobTimeout(name)
	}
	schedMetrics.IncJobError(name, err)
	if isTimeout {
		log.Warn("job timed out",
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	return fmt.Errorf("%s: %w", name, err)
}

// RunOnce performs one dispatch sweep. A sweep that cannot take the
// in-process guard or the shared lease is skipped, not failed.
func (s *Scheduler) RunOnce(parent context.Context) error {
	schedMetrics := obsmetrics.Scheduler()

	if !s.running.TryLock() {
		schedMetrics.IncSweepSkipped(obsmetrics.SweepSkippedAlreadyRunning)
		s.log.Warn("scheduler.sweep.skipped", zap.String("reason", obsmetrics.SweepSkippedAlreadyRunning))
		return nil
	}
	defer s.running.Unlock()

	if !s.dispatchConfig().Enabled {
		schedMetrics.IncSweepSkipped(obsmetrics.SweepSkippedDisabled)
		s.log.Debug("scheduler.sweep.skipped", zap.String("reason", obsmetrics.SweepSkippedDisabled))
		return nil
	}

	release, reason := s.acquireLease(parent)
	if release == nil {
		schedMetrics.IncSweepSkipped(reason)
		s.log.Info("scheduler.sweep.skipped", zap.String("reason", reason))
		return nil
	}
	defer release()

	return s.runJob(parent, JobChargingDispatch, s.cfg.JobTimeout, s.DispatchDueSchedules)
}

// DispatchDueSchedules sends a start command for every pending schedule whose
// time has come, then marks it completed. Failures are isolated per schedule:
// a failed send leaves the schedule pending for the next sweep, and a failed
// write after a successful send may lead to a duplicate command next sweep.
func (s *Scheduler) DispatchDueSchedules(ctx context.Context) error {
	ctx, run, owner := s.ensureJobRun(ctx, JobChargingDispatch)
	if owner {
		s.logJobStart(ctx, run)
		defer s.logJobFinish(ctx, run)
	}

	schedules, err := s.store.ListAllSchedules(ctx)
	if err != nil {
		return err
	}

	now := s.clock.Now()
	cfg := s.dispatchConfig()
	schedMetrics := obsmetrics.Scheduler()

	var errs error
	attempted, deferred := 0, 0
	for _, schedule := range schedules {
		if guard.EnsureScheduleDue(schedule, now) != nil {
			continue
		}
		if err := ctx.Err(); err != nil {
			return errors.Join(errs, err)
		}
		if cfg.MaxPerSweep > 0 && attempted >= cfg.MaxPerSweep {
			deferred++
			continue
		}
		attempted++
		if err := s.dispatchSchedule(ctx, run, schedule, cfg.SendTimeout); err != nil {
			errs = errors.Join(errs, err)
		}
	}

	if deferred > 0 {
		schedMetrics.AddDeferred(deferred)
		s.logger(ctx).Info("scheduler.dispatch.deferred",
			zap.Int("deferred_count", deferred),
			zap.Int("max_per_sweep", cfg.MaxPerSweep),
		)
	}
	return errs
}

func (s *Scheduler) dispatchSchedule(ctx context.Context, run *jobRun, schedule scheduledomain.ChargingSchedule, sendTimeout time.Duration) error {
	schedMetrics := obsmetrics.Scheduler()

	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	err := s.sender.Send(sendCtx, schedule.DeviceID, command.Start())
	cancel()
	s.metrics.RecordCommand(ctx, string(command.ActionStart), err)
	if err != nil {
		schedMetrics.IncDispatch(obsmetrics.DispatchOutcomeSendFailed)
		s.logDispatchError(ctx, run, "scheduler.dispatch.failed", schedule, err)
		return fmt.Errorf("dispatch schedule %s: %w", schedule.ID, err)
	}

	schedule.IsCompleted = true
	if err := s.store.PutSchedule(ctx, schedule); err != nil {
		schedMetrics.IncDispatch(obsmetrics.DispatchOutcomePersistFailed)
		s.logDispatchError(ctx, run, "scheduler.dispatch.persist_failed", schedule, err,
			zap.Bool("duplicate_risk", true),
		)
		return fmt.Errorf("complete schedule %s: %w", schedule.ID, err)
	}

	schedMetrics.IncDispatch(obsmetrics.DispatchOutcomeDispatched)
	run.AddProcessed(1)
	s.logDispatched(ctx, schedule)
	return nil
}

func (s *Scheduler) dispatchConfig() config.DispatchConfig {
	return s.dispatch.Get()
}
