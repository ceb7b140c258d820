package guard

import (
	"errors"
	"time"

	scheduledomain "github.com/smallbiznis/chargeplan/internal/schedule/domain"
)

var (
	ErrAlreadyCompleted = errors.New("schedule_already_completed")
	ErrNotDue           = errors.New("schedule_not_due")
)

// EnsureScheduleDue reports whether a schedule may be dispatched at now.
// A schedule exactly at now is due.
func EnsureScheduleDue(schedule scheduledomain.ChargingSchedule, now time.Time) error {
	if schedule.IsCompleted {
		return ErrAlreadyCompleted
	}
	if schedule.ScheduledTime.After(now) {
		return ErrNotDue
	}
	return nil
}
