package ingestion

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/smallbiznis/chargeplan/internal/clock"
	devicedomain "github.com/smallbiznis/chargeplan/internal/device/domain"
	"github.com/smallbiznis/chargeplan/internal/recordstore"
	"github.com/smallbiznis/chargeplan/internal/recordstore/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var now = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

// flakyStore fails writes for one device and delegates everything else.
type flakyStore struct {
	recordstore.Store
	failDevice string
}

func (f *flakyStore) PutStatus(ctx context.Context, status devicedomain.DeviceStatus) error {
	if status.DeviceID == f.failDevice {
		return recordstore.Unavailable("put_status", errors.New("connection reset"))
	}
	return f.Store.PutStatus(ctx, status)
}

func newProcessor(t *testing.T, store recordstore.Store) *Processor {
	return NewProcessor(Params{
		Store: store,
		Clock: clock.NewFakeClock(now),
		Log:   zaptest.NewLogger(t),
	})
}

func TestProcessStoresLatestStatus(t *testing.T) {
	store := memstore.New()
	p := newProcessor(t, store)
	ctx := context.Background()

	result := p.Process(ctx, SourceHTTP, [][]byte{
		[]byte(`{"deviceId":"car-1","batteryLevel":42.5,"isCharging":true,"timestamp":"2025-03-01T08:59:00Z"}`),
	})
	assert.Equal(t, Result{Received: 1, Stored: 1}, result)

	got, err := store.GetStatus(ctx, "car-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 42.5, got.BatteryLevel)
	assert.True(t, got.IsCharging)
	assert.True(t, got.LastUpdated.Equal(time.Date(2025, 3, 1, 8, 59, 0, 0, time.UTC)))
}

func TestProcessIsolatesBadPayloads(t *testing.T) {
	store := memstore.New()
	p := newProcessor(t, &flakyStore{Store: store, failDevice: "car-down"})
	ctx := context.Background()

	result := p.Process(ctx, SourceMQTT, [][]byte{
		[]byte(`not json`),
		[]byte(`{"deviceId":"car-1","batteryLevel":10}`),
		[]byte(`{"batteryLevel":99}`),
		[]byte(`{"deviceId":"car-down","batteryLevel":20}`),
		[]byte(`{"deviceId":"car-2","batteryLevel":30}`),
	})
	assert.Equal(t, Result{Received: 5, Stored: 2, Skipped: 2, Failed: 1}, result)

	all, err := store.ListStatuses(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestProcessLastWriteWins(t *testing.T) {
	store := memstore.New()
	p := newProcessor(t, store)
	ctx := context.Background()

	// the later arrival wins even though its timestamp is older
	p.Process(ctx, SourceMQTT, [][]byte{[]byte(`{"deviceId":"car-1","batteryLevel":80,"timestamp":"2025-03-01T08:00:00Z"}`)})
	p.Process(ctx, SourceMQTT, [][]byte{[]byte(`{"deviceId":"car-1","batteryLevel":60,"timestamp":"2025-03-01T07:00:00Z"}`)})

	got, err := store.GetStatus(ctx, "car-1")
	require.NoError(t, err)
	assert.Equal(t, 60.0, got.BatteryLevel)
}

func TestProcessDefaultsMissingTimestampAndKeepsOutOfRange(t *testing.T) {
	store := memstore.New()
	p := newProcessor(t, store)
	ctx := context.Background()

	p.Process(ctx, SourceHTTP, [][]byte{[]byte(`{"deviceId":"car-1","batteryLevel":120}`)})

	got, err := store.GetStatus(ctx, "car-1")
	require.NoError(t, err)
	assert.Equal(t, 120.0, got.BatteryLevel)
	assert.True(t, got.LastUpdated.Equal(now))
}

func TestDecode(t *testing.T) {
	_, err := Decode([]byte(`{"deviceId":"  "}`))
	assert.ErrorIs(t, err, ErrMissingDeviceID)

	got, err := Decode([]byte(`{"deviceId":" car-1 ","isCharging":true}`))
	require.NoError(t, err)
	assert.Equal(t, "car-1", got.DeviceID)
	assert.True(t, got.IsCharging)
}

func TestSubscriberWithoutBrokerIsNoop(t *testing.T) {
	s := NewSubscriber(nil, newProcessor(t, memstore.New()), zaptest.NewLogger(t))
	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Stop(context.Background()))
}
