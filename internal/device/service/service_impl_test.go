package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/smallbiznis/chargeplan/internal/clock"
	"github.com/smallbiznis/chargeplan/internal/command"
	"github.com/smallbiznis/chargeplan/internal/device/domain"
	"github.com/smallbiznis/chargeplan/internal/recordstore/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type mockSender struct {
	mock.Mock
}

func (m *mockSender) Send(ctx context.Context, deviceID string, cmd command.Command) error {
	args := m.Called(ctx, deviceID, cmd)
	return args.Error(0)
}

func setupService(t *testing.T, sender command.Sender) (domain.Service, *memstore.Store, *clock.FakeClock) {
	t.Helper()
	store := memstore.New()
	fakeClock := clock.NewFakeClock(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))
	svc := New(Params{
		Store:  store,
		Sender: sender,
		Clock:  fakeClock,
		Log:    zaptest.NewLogger(t),
	})
	return svc, store, fakeClock
}

func TestGetUnknownDeviceIsNotFound(t *testing.T) {
	svc, _, _ := setupService(t, &mockSender{})

	_, err := svc.Get(context.Background(), "car-404")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.Get(context.Background(), "  ")
	assert.ErrorIs(t, err, domain.ErrInvalidDeviceID)
}

func TestRegisterCreatesDefaults(t *testing.T) {
	svc, _, fakeClock := setupService(t, &mockSender{})
	ctx := context.Background()

	status, err := svc.Register(ctx, "car-1")
	require.NoError(t, err)
	assert.Equal(t, "car-1", status.DeviceID)
	assert.Equal(t, 50.0, status.BatteryLevel)
	assert.False(t, status.IsCharging)
	assert.True(t, status.LastUpdated.Equal(fakeClock.Now()))

	got, err := svc.Get(ctx, "car-1")
	require.NoError(t, err)
	assert.Equal(t, status, got)
}

func TestRegisterTwiceConflictsAndKeepsOriginal(t *testing.T) {
	svc, store, fakeClock := setupService(t, &mockSender{})
	ctx := context.Background()

	_, err := svc.Register(ctx, "car-1")
	require.NoError(t, err)

	// telemetry moved the device on since registration
	updated := domain.DeviceStatus{DeviceID: "car-1", BatteryLevel: 77, IsCharging: true, LastUpdated: fakeClock.Now()}
	require.NoError(t, store.PutStatus(ctx, updated))
	fakeClock.Advance(time.Minute)

	_, err = svc.Register(ctx, "car-1")
	assert.ErrorIs(t, err, domain.ErrAlreadyRegistered)

	got, err := svc.Get(ctx, "car-1")
	require.NoError(t, err)
	assert.Equal(t, updated, got)
}

func TestListReturnsEveryDevice(t *testing.T) {
	svc, _, _ := setupService(t, &mockSender{})
	ctx := context.Background()

	empty, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, empty)

	for _, id := range []string{"car-1", "car-2"} {
		_, err := svc.Register(ctx, id)
		require.NoError(t, err)
	}
	all, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestStartAndStopSendCommandsWithoutTouchingStore(t *testing.T) {
	sender := &mockSender{}
	sender.On("Send", mock.Anything, "car-1", command.Start()).Return(nil).Once()
	sender.On("Send", mock.Anything, "car-1", command.Stop()).Return(nil).Once()
	svc, store, _ := setupService(t, sender)
	ctx := context.Background()

	require.NoError(t, svc.StartCharging(ctx, "car-1"))
	require.NoError(t, svc.StopCharging(ctx, "car-1"))

	sender.AssertExpectations(t)
	status, err := store.GetStatus(ctx, "car-1")
	require.NoError(t, err)
	assert.Nil(t, status)
}

func TestStartChargingPropagatesChannelFailure(t *testing.T) {
	sender := &mockSender{}
	sender.On("Send", mock.Anything, "car-1", command.Start()).
		Return(fmt.Errorf("%w: not connected", command.ErrChannelUnavailable))
	svc, _, _ := setupService(t, sender)

	err := svc.StartCharging(context.Background(), "car-1")
	assert.ErrorIs(t, err, command.ErrChannelUnavailable)
}
