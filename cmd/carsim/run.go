package main

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/smallbiznis/chargeplan/internal/carsim"
	"github.com/smallbiznis/chargeplan/internal/clock"
	"github.com/smallbiznis/chargeplan/internal/config"
	"github.com/smallbiznis/chargeplan/internal/devicehub"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func NewCarsimCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "carsim",
		Short:        "Simulate a car reporting battery telemetry over MQTT",
		SilenceUsage: true,
		Run: func(cmd *cobra.Command, args []string) {
			_ = cmd.Help()
		},
	}
	cmd.AddCommand(NewCmdRun())
	return cmd
}

// RunOptions holds the flags for carsim run. Unset flags fall back to the
// MQTT_* environment used by the services.
type RunOptions struct {
	DeviceID    string
	Broker      string
	TopicPrefix string
	Username    string
	Password    string
	Interval    time.Duration
	Verbose     bool
}

func NewCmdRun() *cobra.Command {
	o := &RunOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Publish telemetry for one car and obey charging commands",
		Long: `Publish telemetry for one car and obey charging commands.

Every interval the car reports {deviceId, batteryLevel, isCharging, timestamp}
on {prefix}/{deviceId}/telemetry. It starts at 50%, gains 3% per interval while
charging and loses 1% otherwise. Commands arrive on {prefix}/{deviceId}/commands.

Examples:
  carsim run --device-id car-001 --broker tcp://localhost:1883
  carsim run --device-id car-002 --interval 1s`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := o.Validate(); err != nil {
				return err
			}
			return o.Run(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&o.DeviceID, "device-id", "car-001", "device id reported in telemetry")
	cmd.Flags().StringVar(&o.Broker, "broker", "", "MQTT broker URL (default $MQTT_BROKER)")
	cmd.Flags().StringVar(&o.TopicPrefix, "topic-prefix", "", "MQTT topic prefix (default $MQTT_TOPIC_PREFIX)")
	cmd.Flags().StringVar(&o.Username, "username", "", "MQTT username")
	cmd.Flags().StringVar(&o.Password, "password", "", "MQTT password")
	cmd.Flags().DurationVar(&o.Interval, "interval", 5*time.Second, "telemetry interval")
	cmd.Flags().BoolVarP(&o.Verbose, "verbose", "v", false, "log at debug level")
	return cmd
}

func (o *RunOptions) Validate() error {
	if strings.TrimSpace(o.DeviceID) == "" {
		return fmt.Errorf("--device-id is required")
	}
	if o.Interval <= 0 {
		return fmt.Errorf("--interval must be positive, got %s", o.Interval)
	}
	return nil
}

func (o *RunOptions) mqttConfig() config.MQTTConfig {
	cfg := config.Load().MQTT
	if o.Broker != "" {
		cfg.Broker = o.Broker
	}
	if o.TopicPrefix != "" {
		cfg.TopicPrefix = strings.Trim(o.TopicPrefix, "/")
	}
	if o.Username != "" {
		cfg.Username = o.Username
	}
	if o.Password != "" {
		cfg.Password = o.Password
	}
	cfg.ClientID = "carsim-" + o.DeviceID
	return cfg
}

func (o *RunOptions) Run(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	zcfg := zap.NewDevelopmentConfig()
	if !o.Verbose {
		zcfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	log, err := zcfg.Build()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	cfg := o.mqttConfig()
	if !cfg.Enabled() {
		return fmt.Errorf("no broker: pass --broker or set MQTT_BROKER")
	}

	connectCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	hub, err := devicehub.Dial(connectCtx, cfg, log)
	cancel()
	if err != nil {
		return err
	}
	defer hub.Disconnect()

	sim, err := carsim.New(hub, strings.TrimSpace(o.DeviceID), o.Interval, clock.NewSystemClock(), log)
	if err != nil {
		return err
	}
	return sim.Run(ctx)
}
