package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/smallbiznis/chargeplan/internal/command"
	"github.com/smallbiznis/chargeplan/internal/recordstore"
	"github.com/stretchr/testify/assert"
)

func TestClassifySchedulerJobReason(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{name: "deadline", err: context.DeadlineExceeded, want: SchedulerJobReasonDeadlineExceeded},
		{name: "db_lock_timeout", err: &pgconn.PgError{Code: "55P03"}, want: SchedulerJobReasonDBLockTimeout},
		{name: "serialization_failure", err: &pgconn.PgError{Code: "40001"}, want: SchedulerJobReasonSerializationFailure},
		{name: "channel", err: fmt.Errorf("%w: broker down", command.ErrChannelUnavailable), want: SchedulerJobReasonChannelUnavailable},
		{name: "store", err: fmt.Errorf("%w: timeout", recordstore.ErrUnavailable), want: SchedulerJobReasonStoreUnavailable},
		{name: "unknown", err: errors.New("boom"), want: SchedulerJobReasonUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ClassifySchedulerJobReason(tc.err); got != tc.want {
				t.Fatalf("expected reason %q, got %q", tc.want, got)
			}
		})
	}
}

func TestIsSchedulerErrorRetryable(t *testing.T) {
	assert.True(t, IsSchedulerErrorRetryable(fmt.Errorf("%w: x", recordstore.ErrUnavailable)))
	assert.True(t, IsSchedulerErrorRetryable(command.ErrChannelUnavailable))
	assert.True(t, IsSchedulerErrorRetryable(context.Canceled))
	assert.False(t, IsSchedulerErrorRetryable(errors.New("bad payload")))
	assert.False(t, IsSchedulerErrorRetryable(nil))
}

func TestSchedulerMetricsCounters(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := newSchedulerMetrics(registry, Config{ServiceName: "chargeplan", Environment: "test"})

	m.IncJobRun("charging_dispatch")
	m.IncDispatch(DispatchOutcomeDispatched)
	m.IncDispatch(DispatchOutcomeDispatched)
	m.IncDispatch(DispatchOutcomeSendFailed)
	m.IncSweepSkipped(SweepSkippedAlreadyRunning)
	m.AddDeferred(3)
	m.IncJobError("charging_dispatch", command.ErrChannelUnavailable)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.jobRuns.WithLabelValues("charging_dispatch")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.dispatches.WithLabelValues(DispatchOutcomeDispatched)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.dispatches.WithLabelValues(DispatchOutcomeSendFailed)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.sweepsSkipped.WithLabelValues(SweepSkippedAlreadyRunning)))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.deferred))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.jobErrors.WithLabelValues("charging_dispatch", SchedulerJobReasonChannelUnavailable)))
}

func TestSchedulerMetricsReusesRegisteredCollectors(t *testing.T) {
	registry := prometheus.NewRegistry()
	first := newSchedulerMetrics(registry, Config{})
	second := newSchedulerMetrics(registry, Config{})

	first.IncDispatch(DispatchOutcomeDispatched)
	assert.Equal(t, float64(1), testutil.ToFloat64(second.dispatches.WithLabelValues(DispatchOutcomeDispatched)))
}

func TestSchedulerMetricsNilSafe(t *testing.T) {
	var m *SchedulerMetrics
	m.IncJobRun("x")
	m.IncDispatch(DispatchOutcomeDispatched)
	m.AddDeferred(1)
}
