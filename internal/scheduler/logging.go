package scheduler

import (
	"context"
	"time"

	obscontext "github.com/smallbiznis/chargeplan/internal/observability/context"
	obslogger "github.com/smallbiznis/chargeplan/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/chargeplan/internal/observability/metrics"
	scheduledomain "github.com/smallbiznis/chargeplan/internal/schedule/domain"
	"go.uber.org/zap"
)

type jobRun struct {
	job            string
	runID          string
	startedAt      time.Time
	processedCount int
	errorCount     int
}

type jobRunKey struct{}

func (r *jobRun) AddProcessed(count int) {
	if r == nil || count <= 0 {
		return
	}
	r.processedCount += count
}

func (r *jobRun) IncError() {
	if r == nil {
		return
	}
	r.errorCount++
}

func (s *Scheduler) ensureJobRun(ctx context.Context, job string) (context.Context, *jobRun, bool) {
	if ctx == nil {
		ctx = context.Background()
	}
	if existing := jobRunFromContext(ctx); existing != nil {
		return ctx, existing, false
	}
	run := &jobRun{
		job:       job,
		runID:     s.genID.Generate().String(),
		startedAt: time.Now(),
	}
	ctx = context.WithValue(ctx, jobRunKey{}, run)
	ctx = obscontext.WithActor(ctx, "system", "scheduler")
	return ctx, run, true
}

func jobRunFromContext(ctx context.Context) *jobRun {
	if ctx == nil {
		return nil
	}
	if run, ok := ctx.Value(jobRunKey{}).(*jobRun); ok {
		return run
	}
	return nil
}

func (s *Scheduler) logger(ctx context.Context) *zap.Logger {
	return obslogger.WithContext(ctx, s.log)
}

func (s *Scheduler) logJobStart(ctx context.Context, run *jobRun) {
	if run == nil {
		return
	}
	s.logger(ctx).Info("scheduler.job.start",
		zap.String("job", run.job),
		zap.String("run_id", run.runID),
	)
}

func (s *Scheduler) logJobFinish(ctx context.Context, run *jobRun) {
	if run == nil {
		return
	}
	fields := []zap.Field{
		zap.String("job", run.job),
		zap.String("run_id", run.runID),
		zap.Int64("duration_ms", time.Since(run.startedAt).Milliseconds()),
		zap.Int("processed_count", run.processedCount),
		zap.Int("error_count", run.errorCount),
	}
	log := s.logger(ctx)
	if run.errorCount > 0 {
		log.Warn("scheduler.job.finish", fields...)
		return
	}
	log.Info("scheduler.job.finish", fields...)
}

func (s *Scheduler) logDispatchError(ctx context.Context, run *jobRun, msg string, schedule scheduledomain.ChargingSchedule, err error, fields ...zap.Field) {
	if err == nil {
		return
	}
	run.IncError()
	ctx = obscontext.WithDeviceID(ctx, schedule.DeviceID)
	baseFields := []zap.Field{
		zap.String("schedule_id", schedule.ID),
		zap.Time("scheduled_time", schedule.ScheduledTime),
		zap.String("error_type", obsmetrics.ClassifySchedulerErrorType(err)),
		zap.String("error", err.Error()),
		zap.Bool("retryable", obsmetrics.IsSchedulerErrorRetryable(err)),
	}
	s.logger(ctx).Error(msg, append(baseFields, fields...)...)
}

func (s *Scheduler) logDispatched(ctx context.Context, schedule scheduledomain.ChargingSchedule) {
	ctx = obscontext.WithDeviceID(ctx, schedule.DeviceID)
	s.logger(ctx).Info("scheduler.schedule.dispatched",
		zap.String("schedule_id", schedule.ID),
		zap.Time("scheduled_time", schedule.ScheduledTime),
	)
}
