package memstore

import (
	"context"
	"testing"

	devicedomain "github.com/smallbiznis/chargeplan/internal/device/domain"
	"github.com/smallbiznis/chargeplan/internal/recordstore"
	"github.com/smallbiznis/chargeplan/internal/recordstore/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) recordstore.Store {
		return New()
	})
}

func TestCanceledContextIsUnavailable(t *testing.T) {
	store := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := store.PutStatus(ctx, devicedomain.DeviceStatus{DeviceID: "car-1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, recordstore.ErrUnavailable)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReturnedStatusIsACopy(t *testing.T) {
	store := New()
	ctx := context.Background()
	require.NoError(t, store.PutStatus(ctx, devicedomain.DeviceStatus{DeviceID: "car-1", BatteryLevel: 50}))

	got, err := store.GetStatus(ctx, "car-1")
	require.NoError(t, err)
	got.BatteryLevel = 1

	again, err := store.GetStatus(ctx, "car-1")
	require.NoError(t, err)
	assert.Equal(t, 50.0, again.BatteryLevel)
}
