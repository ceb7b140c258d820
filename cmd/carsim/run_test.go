package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunOptionsValidate(t *testing.T) {
	require.NoError(t, (&RunOptions{DeviceID: "car-1", Interval: time.Second}).Validate())
	assert.Error(t, (&RunOptions{DeviceID: " ", Interval: time.Second}).Validate())
	assert.Error(t, (&RunOptions{DeviceID: "car-1"}).Validate())
}

func TestRunOptionsFlagsOverrideEnv(t *testing.T) {
	t.Setenv("MQTT_BROKER", "tcp://env:1883")
	t.Setenv("MQTT_TOPIC_PREFIX", "fleet")

	cfg := (&RunOptions{DeviceID: "car-9", Broker: "tcp://flag:1883"}).mqttConfig()
	assert.Equal(t, "tcp://flag:1883", cfg.Broker)
	assert.Equal(t, "fleet", cfg.TopicPrefix)
	assert.Equal(t, "carsim-car-9", cfg.ClientID)
}

func TestRunCommandFlags(t *testing.T) {
	cmd := NewCmdRun()
	require.NoError(t, cmd.ParseFlags([]string{"--device-id", "car-7", "--interval", "2s"}))

	interval, err := cmd.Flags().GetDuration("interval")
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, interval)
	id, err := cmd.Flags().GetString("device-id")
	require.NoError(t, err)
	assert.Equal(t, "car-7", id)
}
