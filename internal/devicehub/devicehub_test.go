package devicehub

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/smallbiznis/chargeplan/internal/command"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestTopics(t *testing.T) {
	assert.Equal(t, "devices/car-1/commands", CommandTopic("devices", "car-1"))
	assert.Equal(t, "fleet/eu/car-1/telemetry", TelemetryTopic("/fleet/eu/", "car-1"))
	assert.Equal(t, "devices/+/telemetry", TelemetryWildcard("devices"))
	assert.Equal(t, "car-1/telemetry", TelemetryTopic("", "car-1"))
	assert.Equal(t, "car-1", DeviceFromTopic("fleet/eu/car-1/telemetry"))
	assert.Equal(t, "", DeviceFromTopic("telemetry"))
}

func TestSenderPublishesStructuredCommand(t *testing.T) {
	conn := newFakeConn()
	client := newClientWithConn(conn, "devices", 1, zaptest.NewLogger(t))
	sender := NewSender(client, zaptest.NewLogger(t))

	require.NoError(t, sender.Send(context.Background(), "car-1", command.Start()))

	require.Len(t, conn.published, 1)
	assert.Equal(t, "devices/car-1/commands", conn.published[0].topic)
	assert.Equal(t, byte(1), conn.published[0].qos)
	assert.JSONEq(t, `{"action":"start"}`, string(conn.published[0].payload))
}

func TestSenderWithoutBrokerIsUnavailable(t *testing.T) {
	sender := NewSender(nil, zaptest.NewLogger(t))

	err := sender.Send(context.Background(), "car-1", command.Stop())
	assert.ErrorIs(t, err, command.ErrChannelUnavailable)
}

func TestSenderFailuresAreChannelUnavailable(t *testing.T) {
	t.Run("disconnected", func(t *testing.T) {
		conn := newFakeConn()
		conn.connected = false
		sender := NewSender(newClientWithConn(conn, "devices", 1, zaptest.NewLogger(t)), zaptest.NewLogger(t))

		err := sender.Send(context.Background(), "car-1", command.Start())
		assert.ErrorIs(t, err, command.ErrChannelUnavailable)
		assert.ErrorIs(t, err, ErrNotConnected)
	})

	t.Run("broker error", func(t *testing.T) {
		conn := newFakeConn()
		conn.publishErr = errors.New("not authorized")
		sender := NewSender(newClientWithConn(conn, "devices", 1, zaptest.NewLogger(t)), zaptest.NewLogger(t))

		err := sender.Send(context.Background(), "car-1", command.Start())
		assert.ErrorIs(t, err, command.ErrChannelUnavailable)
	})

	t.Run("deadline", func(t *testing.T) {
		conn := newFakeConn()
		conn.hang = true
		sender := NewSender(newClientWithConn(conn, "devices", 1, zaptest.NewLogger(t)), zaptest.NewLogger(t))

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		err := sender.Send(ctx, "car-1", command.Start())
		assert.ErrorIs(t, err, command.ErrChannelUnavailable)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestSenderRejectsUnknownAction(t *testing.T) {
	conn := newFakeConn()
	sender := NewSender(newClientWithConn(conn, "devices", 1, zaptest.NewLogger(t)), zaptest.NewLogger(t))

	err := sender.Send(context.Background(), "car-1", command.Command{Action: "reboot"})
	assert.ErrorIs(t, err, command.ErrUnknownAction)
	assert.Empty(t, conn.published)
}

func TestSubscribeDispatchesMessages(t *testing.T) {
	conn := newFakeConn()
	client := newClientWithConn(conn, "devices", 1, zaptest.NewLogger(t))

	var got []string
	err := client.Subscribe(context.Background(), TelemetryWildcard("devices"), func(_ context.Context, topic string, payload []byte) error {
		got = append(got, topic+"="+string(payload))
		return errors.New("handler errors are only logged")
	})
	require.NoError(t, err)

	conn.deliver("devices/+/telemetry", "devices/car-1/telemetry", []byte(`{}`))
	assert.Equal(t, []string{"devices/car-1/telemetry={}"}, got)

	require.NoError(t, client.Unsubscribe(context.Background(), "devices/+/telemetry"))
	conn.deliver("devices/+/telemetry", "devices/car-1/telemetry", []byte(`{}`))
	assert.Len(t, got, 1)
}

func TestSubscribeWhileDisconnectedResubscribesOnConnect(t *testing.T) {
	conn := newFakeConn()
	conn.connected = false
	client := newClientWithConn(conn, "devices", 1, zaptest.NewLogger(t))

	delivered := make(chan struct{}, 1)
	require.NoError(t, client.Subscribe(context.Background(), "devices/car-1/commands", func(context.Context, string, []byte) error {
		delivered <- struct{}{}
		return nil
	}))
	assert.Empty(t, conn.handlers)

	conn.connected = true
	client.resubscribe()
	conn.deliver("devices/car-1/commands", "devices/car-1/commands", []byte(`{"action":"stop"}`))

	select {
	case <-delivered:
	case <-time.After(time.Second):
		t.Fatal("handler not invoked after resubscribe")
	}
}
