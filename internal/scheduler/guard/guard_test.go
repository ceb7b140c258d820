package guard

import (
	"testing"
	"time"

	scheduledomain "github.com/smallbiznis/chargeplan/internal/schedule/domain"
)

func TestEnsureScheduleDue(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		name     string
		schedule scheduledomain.ChargingSchedule
		want     error
	}{
		{name: "past", schedule: scheduledomain.ChargingSchedule{ScheduledTime: now.Add(-time.Hour)}},
		{name: "exactly now", schedule: scheduledomain.ChargingSchedule{ScheduledTime: now}},
		{name: "future", schedule: scheduledomain.ChargingSchedule{ScheduledTime: now.Add(time.Second)}, want: ErrNotDue},
		{name: "completed", schedule: scheduledomain.ChargingSchedule{ScheduledTime: now.Add(-time.Hour), IsCompleted: true}, want: ErrAlreadyCompleted},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := EnsureScheduleDue(tc.schedule, now); got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}
