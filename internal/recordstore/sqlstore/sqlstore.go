// Package sqlstore keeps device statuses and charging schedules in a
// relational database through gorm.
package sqlstore

import (
	"context"
	"errors"

	devicedomain "github.com/smallbiznis/chargeplan/internal/device/domain"
	"github.com/smallbiznis/chargeplan/internal/recordstore"
	scheduledomain "github.com/smallbiznis/chargeplan/internal/schedule/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) GetStatus(ctx context.Context, deviceID string) (*devicedomain.DeviceStatus, error) {
	var row DeviceStatusRow
	err := s.db.WithContext(ctx).Where("device_id = ?", deviceID).Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, recordstore.Unavailable("get_status", err)
	}
	status := statusFromRow(row)
	return &status, nil
}

func (s *Store) PutStatus(ctx context.Context, status devicedomain.DeviceStatus) error {
	row := statusToRow(status)
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "device_id"}},
			UpdateAll: true,
		}).
		Create(&row).Error
	return recordstore.Unavailable("put_status", err)
}

func (s *Store) ListStatuses(ctx context.Context) ([]devicedomain.DeviceStatus, error) {
	var rows []DeviceStatusRow
	if err := s.db.WithContext(ctx).Order("device_id ASC").Find(&rows).Error; err != nil {
		return nil, recordstore.Unavailable("list_statuses", err)
	}
	out := make([]devicedomain.DeviceStatus, 0, len(rows))
	for _, row := range rows {
		out = append(out, statusFromRow(row))
	}
	return out, nil
}

func (s *Store) FindByScheduleID(ctx context.Context, scheduleID string) (*scheduledomain.ChargingSchedule, error) {
	var row ChargingScheduleRow
	err := s.db.WithContext(ctx).Where("id = ?", scheduleID).Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, recordstore.Unavailable("find_schedule", err)
	}
	schedule := scheduleFromRow(row)
	return &schedule, nil
}

func (s *Store) ListSchedulesByDevice(ctx context.Context, deviceID string) ([]scheduledomain.ChargingSchedule, error) {
	var rows []ChargingScheduleRow
	err := s.db.WithContext(ctx).
		Where("device_id = ?", deviceID).
		Order("scheduled_time ASC").Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, recordstore.Unavailable("list_schedules_by_device", err)
	}
	return schedulesFromRows(rows), nil
}

func (s *Store) ListAllSchedules(ctx context.Context) ([]scheduledomain.ChargingSchedule, error) {
	var rows []ChargingScheduleRow
	err := s.db.WithContext(ctx).
		Order("scheduled_time ASC").Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, recordstore.Unavailable("list_schedules", err)
	}
	return schedulesFromRows(rows), nil
}

func (s *Store) PutSchedule(ctx context.Context, schedule scheduledomain.ChargingSchedule) error {
	row := scheduleToRow(schedule)
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "device_id"}, {Name: "id"}},
			UpdateAll: true,
		}).
		Create(&row).Error
	return recordstore.Unavailable("put_schedule", err)
}

func (s *Store) DeleteSchedule(ctx context.Context, scheduleID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row ChargingScheduleRow
		err := tx.Where("id = ?", scheduleID).Take(&row).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return recordstore.Unavailable("delete_schedule", err)
		}
		err = tx.Where("device_id = ? AND id = ?", row.DeviceID, row.ID).
			Delete(&ChargingScheduleRow{}).Error
		return recordstore.Unavailable("delete_schedule", err)
	})
}

func schedulesFromRows(rows []ChargingScheduleRow) []scheduledomain.ChargingSchedule {
	out := make([]scheduledomain.ChargingSchedule, 0, len(rows))
	for _, row := range rows {
		out = append(out, scheduleFromRow(row))
	}
	return out
}

var _ recordstore.Store = (*Store)(nil)
