package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/smallbiznis/chargeplan/internal/clock"
	"github.com/smallbiznis/chargeplan/internal/observability/metrics"
	"github.com/smallbiznis/chargeplan/internal/recordstore"
	"github.com/smallbiznis/chargeplan/internal/schedule/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Store   recordstore.Store
	Clock   clock.Clock
	Log     *zap.Logger
	Metrics *metrics.Metrics `optional:"true"`
}

type Service struct {
	store   recordstore.Store
	clock   clock.Clock
	log     *zap.Logger
	metrics *metrics.Metrics
	newID   func() string
}

func New(p Params) domain.Service {
	return &Service{
		store:   p.Store,
		clock:   p.Clock,
		log:     p.Log.Named("schedule.service"),
		metrics: p.Metrics,
		newID:   uuid.NewString,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (domain.ChargingSchedule, error) {
	deviceID := strings.TrimSpace(req.DeviceID)
	if deviceID == "" {
		return domain.ChargingSchedule{}, domain.ErrInvalidDeviceID
	}
	if req.ScheduledTime == nil || req.ScheduledTime.IsZero() {
		return domain.ChargingSchedule{}, domain.ErrInvalidSchedule
	}

	scheduledTime := req.ScheduledTime.UTC()
	if !scheduledTime.After(s.clock.Now()) {
		return domain.ChargingSchedule{}, domain.ErrScheduleInPast
	}

	id := strings.TrimSpace(req.ID)
	if id == "" {
		id = s.newID()
	} else {
		existing, err := s.store.FindByScheduleID(ctx, id)
		if err != nil {
			return domain.ChargingSchedule{}, err
		}
		if existing != nil {
			return domain.ChargingSchedule{}, domain.ErrScheduleExists
		}
	}

	schedule := domain.ChargingSchedule{
		ID:            id,
		DeviceID:      deviceID,
		ScheduledTime: scheduledTime,
		IsCompleted:   false,
	}
	if err := s.store.PutSchedule(ctx, schedule); err != nil {
		return domain.ChargingSchedule{}, err
	}

	s.metrics.RecordScheduleCreated(ctx)
	s.log.Info("charging schedule created",
		zap.String("schedule_id", schedule.ID),
		zap.String("device_id", schedule.DeviceID),
		zap.Time("scheduled_time", schedule.ScheduledTime),
	)
	return schedule, nil
}

func (s *Service) ListByDevice(ctx context.Context, deviceID string) ([]domain.ChargingSchedule, error) {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return nil, domain.ErrInvalidDeviceID
	}
	return s.store.ListSchedulesByDevice(ctx, deviceID)
}

func (s *Service) Delete(ctx context.Context, deviceID, scheduleID string) error {
	deviceID = strings.TrimSpace(deviceID)
	scheduleID = strings.TrimSpace(scheduleID)
	if deviceID == "" {
		return domain.ErrInvalidDeviceID
	}
	if scheduleID == "" {
		return domain.ErrNotFound
	}

	existing, err := s.store.FindByScheduleID(ctx, scheduleID)
	if err != nil {
		return err
	}
	if existing == nil {
		return domain.ErrNotFound
	}
	if existing.DeviceID != deviceID {
		s.log.Warn("schedule delete rejected",
			zap.String("schedule_id", scheduleID),
			zap.String("device_id", deviceID),
			zap.String("owner_device_id", existing.DeviceID),
		)
		return domain.ErrDeviceMismatch
	}

	if err := s.store.DeleteSchedule(ctx, scheduleID); err != nil {
		return err
	}
	s.log.Info("charging schedule deleted",
		zap.String("schedule_id", scheduleID),
		zap.String("device_id", deviceID),
	)
	return nil
}

func (s *Service) DeleteByID(ctx context.Context, scheduleID string) error {
	scheduleID = strings.TrimSpace(scheduleID)
	if scheduleID == "" {
		return nil
	}
	return s.store.DeleteSchedule(ctx, scheduleID)
}
