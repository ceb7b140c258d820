package sqlstore

import (
	"time"

	devicedomain "github.com/smallbiznis/chargeplan/internal/device/domain"
	scheduledomain "github.com/smallbiznis/chargeplan/internal/schedule/domain"
)

type DeviceStatusRow struct {
	DeviceID     string    `gorm:"column:device_id;primaryKey;size:128"`
	BatteryLevel float64   `gorm:"column:battery_level;not null"`
	IsCharging   bool      `gorm:"column:is_charging;not null"`
	LastUpdated  time.Time `gorm:"column:last_updated;not null"`
}

func (DeviceStatusRow) TableName() string { return "device_statuses" }

type ChargingScheduleRow struct {
	DeviceID      string    `gorm:"column:device_id;primaryKey;size:128"`
	ID            string    `gorm:"column:id;primaryKey;size:64;uniqueIndex:ux_charging_schedules_id"`
	ScheduledTime time.Time `gorm:"column:scheduled_time;not null;index:ix_charging_schedules_due"`
	IsCompleted   bool      `gorm:"column:is_completed;not null;index:ix_charging_schedules_due"`
}

func (ChargingScheduleRow) TableName() string { return "charging_schedules" }

// Models lists every table owned by the record store, in migration order.
func Models() []any {
	return []any{&DeviceStatusRow{}, &ChargingScheduleRow{}}
}

func statusFromRow(row DeviceStatusRow) devicedomain.DeviceStatus {
	return devicedomain.DeviceStatus{
		DeviceID:     row.DeviceID,
		BatteryLevel: row.BatteryLevel,
		IsCharging:   row.IsCharging,
		LastUpdated:  row.LastUpdated.UTC(),
	}
}

func statusToRow(status devicedomain.DeviceStatus) DeviceStatusRow {
	return DeviceStatusRow{
		DeviceID:     status.DeviceID,
		BatteryLevel: status.BatteryLevel,
		IsCharging:   status.IsCharging,
		LastUpdated:  status.LastUpdated.UTC(),
	}
}

func scheduleFromRow(row ChargingScheduleRow) scheduledomain.ChargingSchedule {
	return scheduledomain.ChargingSchedule{
		ID:            row.ID,
		DeviceID:      row.DeviceID,
		ScheduledTime: row.ScheduledTime.UTC(),
		IsCompleted:   row.IsCompleted,
	}
}

func scheduleToRow(schedule scheduledomain.ChargingSchedule) ChargingScheduleRow {
	return ChargingScheduleRow{
		DeviceID:      schedule.DeviceID,
		ID:            schedule.ID,
		ScheduledTime: schedule.ScheduledTime.UTC(),
		IsCompleted:   schedule.IsCompleted,
	}
}
