package service

import (
	"context"
	"strings"

	"github.com/smallbiznis/chargeplan/internal/clock"
	"github.com/smallbiznis/chargeplan/internal/command"
	"github.com/smallbiznis/chargeplan/internal/device/domain"
	"github.com/smallbiznis/chargeplan/internal/observability/metrics"
	"github.com/smallbiznis/chargeplan/internal/recordstore"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Store   recordstore.Store
	Sender  command.Sender
	Clock   clock.Clock
	Log     *zap.Logger
	Metrics *metrics.Metrics `optional:"true"`
}

type Service struct {
	store   recordstore.Store
	sender  command.Sender
	clock   clock.Clock
	log     *zap.Logger
	metrics *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		store:   p.Store,
		sender:  p.Sender,
		clock:   p.Clock,
		log:     p.Log.Named("device.service"),
		metrics: p.Metrics,
	}
}

func (s *Service) Get(ctx context.Context, deviceID string) (domain.DeviceStatus, error) {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return domain.DeviceStatus{}, domain.ErrInvalidDeviceID
	}

	status, err := s.store.GetStatus(ctx, deviceID)
	if err != nil {
		return domain.DeviceStatus{}, err
	}
	if status == nil {
		return domain.DeviceStatus{}, domain.ErrNotFound
	}
	return *status, nil
}

func (s *Service) List(ctx context.Context) ([]domain.DeviceStatus, error) {
	return s.store.ListStatuses(ctx)
}

// Register creates the default status for a new device. Two concurrent first
// registrations both succeed and the later write wins.
func (s *Service) Register(ctx context.Context, deviceID string) (domain.DeviceStatus, error) {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return domain.DeviceStatus{}, domain.ErrInvalidDeviceID
	}

	existing, err := s.store.GetStatus(ctx, deviceID)
	if err != nil {
		return domain.DeviceStatus{}, err
	}
	if existing != nil {
		return domain.DeviceStatus{}, domain.ErrAlreadyRegistered
	}

	status := domain.DeviceStatus{
		DeviceID:     deviceID,
		BatteryLevel: domain.DefaultBatteryLevel,
		IsCharging:   false,
		LastUpdated:  s.clock.Now(),
	}
	if err := s.store.PutStatus(ctx, status); err != nil {
		return domain.DeviceStatus{}, err
	}

	s.log.Info("device registered", zap.String("device_id", deviceID))
	return status, nil
}

func (s *Service) StartCharging(ctx context.Context, deviceID string) error {
	return s.send(ctx, deviceID, command.Start())
}

func (s *Service) StopCharging(ctx context.Context, deviceID string) error {
	return s.send(ctx, deviceID, command.Stop())
}

func (s *Service) send(ctx context.Context, deviceID string, cmd command.Command) error {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return domain.ErrInvalidDeviceID
	}

	err := s.sender.Send(ctx, deviceID, cmd)
	s.metrics.RecordCommand(ctx, string(cmd.Action), err)
	if err != nil {
		s.log.Warn("command send failed",
			zap.String("device_id", deviceID),
			zap.String("action", string(cmd.Action)),
			zap.Error(err),
		)
		return err
	}
	return nil
}
