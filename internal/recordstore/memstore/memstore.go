// Package memstore is an in-process record store used by tests and the
// single-binary development profile.
package memstore

import (
	"context"
	"sort"
	"sync"

	devicedomain "github.com/smallbiznis/chargeplan/internal/device/domain"
	"github.com/smallbiznis/chargeplan/internal/recordstore"
	scheduledomain "github.com/smallbiznis/chargeplan/internal/schedule/domain"
)

type scheduleKey struct {
	deviceID string
	id       string
}

type Store struct {
	mu        sync.RWMutex
	statuses  map[string]devicedomain.DeviceStatus
	schedules map[scheduleKey]scheduledomain.ChargingSchedule
	owners    map[string]string
}

func New() *Store {
	return &Store{
		statuses:  make(map[string]devicedomain.DeviceStatus),
		schedules: make(map[scheduleKey]scheduledomain.ChargingSchedule),
		owners:    make(map[string]string),
	}
}

func (s *Store) GetStatus(ctx context.Context, deviceID string) (*devicedomain.DeviceStatus, error) {
	if err := ctx.Err(); err != nil {
		return nil, recordstore.Unavailable("get_status", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	status, ok := s.statuses[deviceID]
	if !ok {
		return nil, nil
	}
	return &status, nil
}

func (s *Store) PutStatus(ctx context.Context, status devicedomain.DeviceStatus) error {
	if err := ctx.Err(); err != nil {
		return recordstore.Unavailable("put_status", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.statuses[status.DeviceID] = status
	return nil
}

func (s *Store) ListStatuses(ctx context.Context) ([]devicedomain.DeviceStatus, error) {
	if err := ctx.Err(); err != nil {
		return nil, recordstore.Unavailable("list_statuses", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]devicedomain.DeviceStatus, 0, len(s.statuses))
	for _, status := range s.statuses {
		out = append(out, status)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DeviceID < out[j].DeviceID })
	return out, nil
}

func (s *Store) FindByScheduleID(ctx context.Context, scheduleID string) (*scheduledomain.ChargingSchedule, error) {
	if err := ctx.Err(); err != nil {
		return nil, recordstore.Unavailable("find_schedule", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	owner, ok := s.owners[scheduleID]
	if !ok {
		return nil, nil
	}
	schedule, ok := s.schedules[scheduleKey{deviceID: owner, id: scheduleID}]
	if !ok {
		return nil, nil
	}
	return &schedule, nil
}

func (s *Store) ListSchedulesByDevice(ctx context.Context, deviceID string) ([]scheduledomain.ChargingSchedule, error) {
	if err := ctx.Err(); err != nil {
		return nil, recordstore.Unavailable("list_schedules_by_device", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]scheduledomain.ChargingSchedule, 0)
	for key, schedule := range s.schedules {
		if key.deviceID == deviceID {
			out = append(out, schedule)
		}
	}
	sortSchedules(out)
	return out, nil
}

func (s *Store) ListAllSchedules(ctx context.Context) ([]scheduledomain.ChargingSchedule, error) {
	if err := ctx.Err(); err != nil {
		return nil, recordstore.Unavailable("list_schedules", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]scheduledomain.ChargingSchedule, 0, len(s.schedules))
	for _, schedule := range s.schedules {
		out = append(out, schedule)
	}
	sortSchedules(out)
	return out, nil
}

func (s *Store) PutSchedule(ctx context.Context, schedule scheduledomain.ChargingSchedule) error {
	if err := ctx.Err(); err != nil {
		return recordstore.Unavailable("put_schedule", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if owner, ok := s.owners[schedule.ID]; ok && owner != schedule.DeviceID {
		delete(s.schedules, scheduleKey{deviceID: owner, id: schedule.ID})
	}
	s.schedules[scheduleKey{deviceID: schedule.DeviceID, id: schedule.ID}] = schedule
	s.owners[schedule.ID] = schedule.DeviceID
	return nil
}

func (s *Store) DeleteSchedule(ctx context.Context, scheduleID string) error {
	if err := ctx.Err(); err != nil {
		return recordstore.Unavailable("delete_schedule", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	owner, ok := s.owners[scheduleID]
	if !ok {
		return nil
	}
	delete(s.schedules, scheduleKey{deviceID: owner, id: scheduleID})
	delete(s.owners, scheduleID)
	return nil
}

func sortSchedules(items []scheduledomain.ChargingSchedule) {
	sort.Slice(items, func(i, j int) bool {
		if !items[i].ScheduledTime.Equal(items[j].ScheduledTime) {
			return items[i].ScheduledTime.Before(items[j].ScheduledTime)
		}
		return items[i].ID < items[j].ID
	})
}

var _ recordstore.Store = (*Store)(nil)
