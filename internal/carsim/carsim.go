// Package carsim simulates a single car: it reports battery telemetry on a
// fixed interval and starts or stops charging when told to.
package carsim

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/smallbiznis/chargeplan/internal/clock"
	"github.com/smallbiznis/chargeplan/internal/command"
	"github.com/smallbiznis/chargeplan/internal/devicehub"
	"github.com/smallbiznis/chargeplan/internal/ingestion"
	"go.uber.org/zap"
)

const (
	InitialBatteryLevel = 50.0
	chargeStep          = 3.0
	drainStep           = 1.0
	maxBatteryLevel     = 100.0
	minBatteryLevel     = 0.0
	publishTimeout      = 5 * time.Second
)

var ErrInvalidInterval = errors.New("invalid_interval")

type State struct {
	BatteryLevel float64
	IsCharging   bool
}

// Step advances the battery by one interval.
func Step(s State) State {
	if s.IsCharging {
		s.BatteryLevel = min(s.BatteryLevel+chargeStep, maxBatteryLevel)
	} else {
		s.BatteryLevel = max(s.BatteryLevel-drainStep, minBatteryLevel)
	}
	return s
}

// Apply returns the state after cmd.
func Apply(s State, cmd command.Command) State {
	switch cmd.Action {
	case command.ActionStart:
		s.IsCharging = true
	case command.ActionStop:
		s.IsCharging = false
	}
	return s
}

// Hub is the part of devicehub.Client the simulator talks to.
type Hub interface {
	Prefix() string
	Publish(ctx context.Context, topic string, payload []byte) error
	Subscribe(ctx context.Context, topic string, handler devicehub.MessageHandler) error
}

type Simulator struct {
	hub      Hub
	deviceID string
	interval time.Duration
	clock    clock.Clock
	log      *zap.Logger

	mu    sync.Mutex
	state State
}

func New(hub Hub, deviceID string, interval time.Duration, clk clock.Clock, log *zap.Logger) (*Simulator, error) {
	if interval <= 0 {
		return nil, ErrInvalidInterval
	}
	if deviceID == "" {
		return nil, command.ErrInvalidDeviceID
	}
	return &Simulator{
		hub:      hub,
		deviceID: deviceID,
		interval: interval,
		clock:    clk,
		log:      log.Named("carsim").With(zap.String("device_id", deviceID)),
		state:    State{BatteryLevel: InitialBatteryLevel},
	}, nil
}

func (s *Simulator) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Run listens for commands and reports telemetry until ctx is done.
func (s *Simulator) Run(ctx context.Context) error {
	topic := devicehub.CommandTopic(s.hub.Prefix(), s.deviceID)
	if err := s.hub.Subscribe(ctx, topic, s.HandleCommand); err != nil {
		return err
	}
	s.log.Info("listening for commands", zap.String("topic", topic))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if err := s.Tick(ctx); err != nil {
			s.log.Warn("telemetry publish failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Tick publishes the current state, then advances it.
func (s *Simulator) Tick(ctx context.Context) error {
	s.mu.Lock()
	current := s.state
	s.state = Step(current)
	s.mu.Unlock()

	payload, err := json.Marshal(ingestion.Telemetry{
		DeviceID:     s.deviceID,
		BatteryLevel: current.BatteryLevel,
		IsCharging:   current.IsCharging,
		Timestamp:    s.clock.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("encode telemetry: %w", err)
	}

	publishCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := s.hub.Publish(publishCtx, devicehub.TelemetryTopic(s.hub.Prefix(), s.deviceID), payload); err != nil {
		return err
	}

	s.log.Info("telemetry sent",
		zap.Float64("battery_level", current.BatteryLevel),
		zap.Bool("is_charging", current.IsCharging),
	)
	return nil
}

// HandleCommand applies one command message. Unknown payloads are logged and dropped.
func (s *Simulator) HandleCommand(_ context.Context, topic string, payload []byte) error {
	cmd, err := command.Decode(payload)
	if err != nil {
		s.log.Warn("command ignored", zap.String("topic", topic), zap.Error(err))
		return nil
	}

	s.mu.Lock()
	s.state = Apply(s.state, cmd)
	charging := s.state.IsCharging
	s.mu.Unlock()

	s.log.Info("command applied",
		zap.String("action", string(cmd.Action)),
		zap.Bool("is_charging", charging),
	)
	return nil
}
