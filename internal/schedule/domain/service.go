package domain

import (
	"context"
	"errors"
	"time"
)

// CreateRequest carries an optional caller-chosen ID. ScheduledTime is nil
// when the body omitted it.
type CreateRequest struct {
	DeviceID      string
	ID            string
	ScheduledTime *time.Time
}

type Service interface {
	Create(ctx context.Context, req CreateRequest) (ChargingSchedule, error)
	ListByDevice(ctx context.Context, deviceID string) ([]ChargingSchedule, error)
	// Delete removes a schedule after checking it belongs to deviceID.
	Delete(ctx context.Context, deviceID, scheduleID string) error
	// DeleteByID removes a schedule without an ownership check. Absent ids are a no-op.
	DeleteByID(ctx context.Context, scheduleID string) error
}

var (
	ErrInvalidDeviceID = errors.New("invalid_device_id")
	ErrInvalidSchedule = errors.New("invalid_schedule")
	ErrScheduleInPast  = errors.New("schedule_in_past")
	ErrScheduleExists  = errors.New("schedule_exists")
	ErrNotFound        = errors.New("not_found")
	ErrDeviceMismatch  = errors.New("schedule_device_mismatch")
)
