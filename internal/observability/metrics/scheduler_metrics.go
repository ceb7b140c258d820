package metrics

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/chargeplan/internal/command"
	"github.com/smallbiznis/chargeplan/internal/recordstore"
	"gorm.io/gorm"
)

const (
	SchedulerErrorTypeDeadlineExceeded   = "deadline_exceeded"
	SchedulerErrorTypeStoreUnavailable   = "store_unavailable"
	SchedulerErrorTypeChannelUnavailable = "channel_unavailable"
	SchedulerErrorTypeDB                 = "db"
	SchedulerErrorTypeUnknown            = "unknown"
)

const (
	SchedulerJobReasonDeadlineExceeded     = "deadline_exceeded"
	SchedulerJobReasonStoreUnavailable     = "store_unavailable"
	SchedulerJobReasonChannelUnavailable   = "channel_unavailable"
	SchedulerJobReasonDBLockTimeout        = "db_lock_timeout"
	SchedulerJobReasonSerializationFailure = "serialization_failure"
	SchedulerJobReasonUnknown              = "unknown"
)

const (
	DispatchOutcomeDispatched    = "dispatched"
	DispatchOutcomeSendFailed    = "send_failed"
	DispatchOutcomePersistFailed = "persist_failed"
)

const (
	SweepSkippedAlreadyRunning = "already_running"
	SweepSkippedLockHeld       = "lock_held"
	SweepSkippedLockError      = "lock_error"
	SweepSkippedDisabled       = "disabled"
)

// SchedulerMetrics captures dispatch sweep health signals.
type SchedulerMetrics struct {
	jobRuns       *prometheus.CounterVec
	jobDuration   *prometheus.HistogramVec
	jobTimeouts   *prometheus.CounterVec
	jobErrors     *prometheus.CounterVec
	dispatches    *prometheus.CounterVec
	sweepsSkipped *prometheus.CounterVec
	deferred      prometheus.Counter
}

var (
	schedulerMetricsOnce sync.Once
	schedulerMetrics     *SchedulerMetrics
)

// Scheduler returns the singleton scheduler metrics registry.
func Scheduler() *SchedulerMetrics {
	return SchedulerWithConfig(Config{})
}

// SchedulerWithConfig returns the singleton scheduler metrics registry using config labels.
func SchedulerWithConfig(cfg Config) *SchedulerMetrics {
	schedulerMetricsOnce.Do(func() {
		schedulerMetrics = newSchedulerMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return schedulerMetrics
}

// ResetSchedulerMetricsForTest resets the scheduler metrics singleton for tests.
func ResetSchedulerMetricsForTest() {
	schedulerMetricsOnce = sync.Once{}
	schedulerMetrics = nil
}

func newSchedulerMetrics(registerer prometheus.Registerer, cfg Config) *SchedulerMetrics {
	constLabels := serviceLabels(cfg)

	jobRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "chargeplan_scheduler_job_runs_total",
		Help:        "Scheduler job runs by name.",
		ConstLabels: constLabels,
	}, []string{"job"})
	jobDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "chargeplan_scheduler_job_duration_seconds",
		Help:        "Scheduler job latency.",
		Buckets:     []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60},
		ConstLabels: constLabels,
	}, []string{"job"})
	jobTimeouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "chargeplan_scheduler_job_timeouts_total",
		Help:        "Scheduler jobs that hit their timeout.",
		ConstLabels: constLabels,
	}, []string{"job"})
	jobErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "chargeplan_scheduler_job_errors_total",
		Help:        "Scheduler job errors by low-cardinality reason.",
		ConstLabels: constLabels,
	}, []string{"job", "reason"})
	dispatches := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "chargeplan_scheduler_dispatch_total",
		Help:        "Due charging schedules by dispatch outcome.",
		ConstLabels: constLabels,
	}, []string{"outcome"})
	sweepsSkipped := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "chargeplan_scheduler_sweeps_skipped_total",
		Help:        "Dispatch sweeps skipped before evaluating schedules.",
		ConstLabels: constLabels,
	}, []string{"reason"})
	deferred := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "chargeplan_scheduler_dispatch_deferred_total",
		Help:        "Due schedules left for the next sweep because of the per-sweep cap.",
		ConstLabels: constLabels,
	})

	return &SchedulerMetrics{
		jobRuns:       registerOrReuse(registerer, jobRuns),
		jobDuration:   registerOrReuse(registerer, jobDuration),
		jobTimeouts:   registerOrReuse(registerer, jobTimeouts),
		jobErrors:     registerOrReuse(registerer, jobErrors),
		dispatches:    registerOrReuse(registerer, dispatches),
		sweepsSkipped: registerOrReuse(registerer, sweepsSkipped),
		deferred:      registerOrReuse(registerer, deferred),
	}
}

// IncJobRun increments the run counter for a scheduler job.
func (m *SchedulerMetrics) IncJobRun(job string) {
	if m == nil {
		return
	}
	m.jobRuns.WithLabelValues(job).Inc()
}

// ObserveJobDuration records scheduler job latency in seconds.
func (m *SchedulerMetrics) ObserveJobDuration(job string, duration time.Duration) {
	if m == nil {
		return
	}
	m.jobDuration.WithLabelValues(job).Observe(duration.Seconds())
}

func (m *SchedulerMetrics) IncJobTimeout(job string) {
	if m == nil {
		return
	}
	m.jobTimeouts.WithLabelValues(job).Inc()
}

// IncJobError increments the scheduler job error counter with classification.
func (m *SchedulerMetrics) IncJobError(job string, err error) {
	if m == nil || err == nil {
		return
	}
	m.jobErrors.WithLabelValues(job, ClassifySchedulerJobReason(err)).Inc()
}

func (m *SchedulerMetrics) IncDispatch(outcome string) {
	if m == nil {
		return
	}
	m.dispatches.WithLabelValues(outcome).Inc()
}

func (m *SchedulerMetrics) IncSweepSkipped(reason string) {
	if m == nil {
		return
	}
	m.sweepsSkipped.WithLabelValues(reason).Inc()
}

func (m *SchedulerMetrics) AddDeferred(count int) {
	if m == nil || count <= 0 {
		return
	}
	m.deferred.Add(float64(count))
}

// ClassifySchedulerErrorType returns a low-cardinality error type for logging.
func ClassifySchedulerErrorType(err error) string {
	switch {
	case err == nil:
		return SchedulerErrorTypeUnknown
	case isDeadline(err):
		return SchedulerErrorTypeDeadlineExceeded
	case errors.Is(err, command.ErrChannelUnavailable):
		return SchedulerErrorTypeChannelUnavailable
	case isDBError(err):
		return SchedulerErrorTypeDB
	case errors.Is(err, recordstore.ErrUnavailable):
		return SchedulerErrorTypeStoreUnavailable
	default:
		return SchedulerErrorTypeUnknown
	}
}

// IsSchedulerErrorRetryable reports whether the next sweep may succeed where this one failed.
func IsSchedulerErrorRetryable(err error) bool {
	if err == nil {
		return false
	}
	return isDeadline(err) ||
		errors.Is(err, command.ErrChannelUnavailable) ||
		errors.Is(err, recordstore.ErrUnavailable) ||
		isDBError(err)
}

// ClassifySchedulerJobReason maps scheduler job errors to low-cardinality reasons.
func ClassifySchedulerJobReason(err error) string {
	switch {
	case err == nil:
		return SchedulerJobReasonUnknown
	case isDeadline(err):
		return SchedulerJobReasonDeadlineExceeded
	case hasPGCode(err, "55P03"):
		return SchedulerJobReasonDBLockTimeout
	case hasPGCode(err, "40001"):
		return SchedulerJobReasonSerializationFailure
	case errors.Is(err, command.ErrChannelUnavailable):
		return SchedulerJobReasonChannelUnavailable
	case errors.Is(err, recordstore.ErrUnavailable):
		return SchedulerJobReasonStoreUnavailable
	default:
		return SchedulerJobReasonUnknown
	}
}

func isDeadline(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}

func hasPGCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}
	return false
}

func isDBError(err error) bool {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false
	}
	if errors.Is(err, gorm.ErrInvalidDB) ||
		errors.Is(err, gorm.ErrInvalidTransaction) ||
		errors.Is(err, gorm.ErrInvalidField) ||
		errors.Is(err, gorm.ErrInvalidData) ||
		errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr)
}
