package domain

import (
	"context"
	"errors"
)

type Service interface {
	Get(ctx context.Context, deviceID string) (DeviceStatus, error)
	List(ctx context.Context) ([]DeviceStatus, error)
	Register(ctx context.Context, deviceID string) (DeviceStatus, error)
	StartCharging(ctx context.Context, deviceID string) error
	StopCharging(ctx context.Context, deviceID string) error
}

var (
	ErrInvalidDeviceID   = errors.New("invalid_device_id")
	ErrNotFound          = errors.New("not_found")
	ErrAlreadyRegistered = errors.New("already_registered")
)
