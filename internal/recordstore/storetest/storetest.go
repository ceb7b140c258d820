// Package storetest holds the behavioural suite every recordstore backend
// must pass.
package storetest

import (
	"context"
	"testing"
	"time"

	devicedomain "github.com/smallbiznis/chargeplan/internal/device/domain"
	"github.com/smallbiznis/chargeplan/internal/recordstore"
	scheduledomain "github.com/smallbiznis/chargeplan/internal/schedule/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

// Run executes the suite. newStore must return an empty store per call.
func Run(t *testing.T, newStore func(t *testing.T) recordstore.Store) {
	t.Helper()

	t.Run("get status of unknown device is absent", func(t *testing.T) {
		store := newStore(t)
		got, err := store.GetStatus(context.Background(), "ghost")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("put status then get returns it", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		want := devicedomain.DeviceStatus{DeviceID: "car-1", BatteryLevel: 42.5, IsCharging: true, LastUpdated: base}
		require.NoError(t, store.PutStatus(ctx, want))

		got, err := store.GetStatus(ctx, "car-1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assertStatus(t, want, *got)
	})

	t.Run("put status overwrites by device id", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		require.NoError(t, store.PutStatus(ctx, devicedomain.DeviceStatus{DeviceID: "car-1", BatteryLevel: 10, LastUpdated: base}))
		latest := devicedomain.DeviceStatus{DeviceID: "car-1", BatteryLevel: 80, IsCharging: true, LastUpdated: base.Add(time.Minute)}
		require.NoError(t, store.PutStatus(ctx, latest))

		got, err := store.GetStatus(ctx, "car-1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assertStatus(t, latest, *got)

		all, err := store.ListStatuses(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})

	t.Run("list statuses returns every device", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		empty, err := store.ListStatuses(ctx)
		require.NoError(t, err)
		assert.Empty(t, empty)

		for _, id := range []string{"car-b", "car-a", "car-c"} {
			require.NoError(t, store.PutStatus(ctx, devicedomain.DeviceStatus{DeviceID: id, BatteryLevel: 50, LastUpdated: base}))
		}
		all, err := store.ListStatuses(ctx)
		require.NoError(t, err)
		ids := make([]string, 0, len(all))
		for _, status := range all {
			ids = append(ids, status.DeviceID)
		}
		assert.ElementsMatch(t, []string{"car-a", "car-b", "car-c"}, ids)
	})

	t.Run("find schedule by id", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		want := scheduledomain.ChargingSchedule{ID: "s-1", DeviceID: "car-1", ScheduledTime: base.Add(time.Hour)}
		require.NoError(t, store.PutSchedule(ctx, want))

		got, err := store.FindByScheduleID(ctx, "s-1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assertSchedule(t, want, *got)

		missing, err := store.FindByScheduleID(ctx, "s-404")
		require.NoError(t, err)
		assert.Nil(t, missing)
	})

	t.Run("list schedules by device only returns that device", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		require.NoError(t, store.PutSchedule(ctx, scheduledomain.ChargingSchedule{ID: "s-1", DeviceID: "car-1", ScheduledTime: base}))
		require.NoError(t, store.PutSchedule(ctx, scheduledomain.ChargingSchedule{ID: "s-2", DeviceID: "car-1", ScheduledTime: base.Add(time.Hour)}))
		require.NoError(t, store.PutSchedule(ctx, scheduledomain.ChargingSchedule{ID: "s-3", DeviceID: "car-2", ScheduledTime: base}))

		items, err := store.ListSchedulesByDevice(ctx, "car-1")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"s-1", "s-2"}, scheduleIDs(items))

		none, err := store.ListSchedulesByDevice(ctx, "car-9")
		require.NoError(t, err)
		assert.Empty(t, none)

		all, err := store.ListAllSchedules(ctx)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"s-1", "s-2", "s-3"}, scheduleIDs(all))
	})

	t.Run("put schedule upserts completion", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		schedule := scheduledomain.ChargingSchedule{ID: "s-1", DeviceID: "car-1", ScheduledTime: base}
		require.NoError(t, store.PutSchedule(ctx, schedule))
		schedule.IsCompleted = true
		require.NoError(t, store.PutSchedule(ctx, schedule))

		got, err := store.FindByScheduleID(ctx, "s-1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.True(t, got.IsCompleted)

		all, err := store.ListAllSchedules(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})

	t.Run("delete schedule removes it and tolerates unknown ids", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()
		require.NoError(t, store.PutSchedule(ctx, scheduledomain.ChargingSchedule{ID: "s-1", DeviceID: "car-1", ScheduledTime: base}))
		require.NoError(t, store.PutSchedule(ctx, scheduledomain.ChargingSchedule{ID: "s-2", DeviceID: "car-1", ScheduledTime: base}))

		require.NoError(t, store.DeleteSchedule(ctx, "s-1"))
		require.NoError(t, store.DeleteSchedule(ctx, "s-1"))
		require.NoError(t, store.DeleteSchedule(ctx, "never-existed"))

		got, err := store.FindByScheduleID(ctx, "s-1")
		require.NoError(t, err)
		assert.Nil(t, got)

		remaining, err := store.ListSchedulesByDevice(ctx, "car-1")
		require.NoError(t, err)
		assert.Equal(t, []string{"s-2"}, scheduleIDs(remaining))
	})
}

func assertStatus(t *testing.T, want, got devicedomain.DeviceStatus) {
	t.Helper()
	assert.Equal(t, want.DeviceID, got.DeviceID)
	assert.InDelta(t, want.BatteryLevel, got.BatteryLevel, 0.0001)
	assert.Equal(t, want.IsCharging, got.IsCharging)
	assert.True(t, want.LastUpdated.Equal(got.LastUpdated), "last updated: want %s got %s", want.LastUpdated, got.LastUpdated)
}

func assertSchedule(t *testing.T, want, got scheduledomain.ChargingSchedule) {
	t.Helper()
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.DeviceID, got.DeviceID)
	assert.Equal(t, want.IsCompleted, got.IsCompleted)
	assert.True(t, want.ScheduledTime.Equal(got.ScheduledTime), "scheduled time: want %s got %s", want.ScheduledTime, got.ScheduledTime)
}

func scheduleIDs(items []scheduledomain.ChargingSchedule) []string {
	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}
	return ids
}
