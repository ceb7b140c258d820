// Package recordstore is the durable keyed storage for device statuses and
// charging schedules. Backends live in the sub-packages.
package recordstore

import (
	"context"
	"errors"
	"fmt"

	devicedomain "github.com/smallbiznis/chargeplan/internal/device/domain"
	scheduledomain "github.com/smallbiznis/chargeplan/internal/schedule/domain"
)

// ErrUnavailable wraps every transport or storage fault. Absence is never an error.
var ErrUnavailable = errors.New("record_store_unavailable")

// Unavailable wraps err as a store fault, keeping the cause for errors.As.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", ErrUnavailable, op, err)
}

type Store interface {
	// GetStatus returns nil, nil when the device has never been written.
	GetStatus(ctx context.Context, deviceID string) (*devicedomain.DeviceStatus, error)
	// PutStatus upserts by DeviceID; last write wins.
	PutStatus(ctx context.Context, status devicedomain.DeviceStatus) error
	ListStatuses(ctx context.Context) ([]devicedomain.DeviceStatus, error)

	// FindByScheduleID resolves a schedule by id alone. nil, nil when absent.
	FindByScheduleID(ctx context.Context, scheduleID string) (*scheduledomain.ChargingSchedule, error)
	ListSchedulesByDevice(ctx context.Context, deviceID string) ([]scheduledomain.ChargingSchedule, error)
	ListAllSchedules(ctx context.Context) ([]scheduledomain.ChargingSchedule, error)
	// PutSchedule upserts by (DeviceID, ID).
	PutSchedule(ctx context.Context, schedule scheduledomain.ChargingSchedule) error
	// DeleteSchedule resolves the owner first; deleting an absent id is a no-op.
	DeleteSchedule(ctx context.Context, scheduleID string) error
}
