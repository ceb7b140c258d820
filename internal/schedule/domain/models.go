package domain

import "time"

// ChargingSchedule is a one-shot instruction to start charging DeviceID at
// ScheduledTime. (DeviceID, ID) is the primary key and ID alone is unique.
// IsCompleted only ever moves from false to true.
type ChargingSchedule struct {
	ID            string    `json:"id"`
	DeviceID      string    `json:"deviceId"`
	ScheduledTime time.Time `json:"scheduledTime"`
	IsCompleted   bool      `json:"isCompleted"`
}

// IsDue reports whether the schedule should be dispatched at now.
func (s ChargingSchedule) IsDue(now time.Time) bool {
	return !s.IsCompleted && !s.ScheduledTime.After(now)
}
