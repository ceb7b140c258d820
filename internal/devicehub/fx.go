package devicehub

import (
	"context"
	"time"

	"github.com/smallbiznis/chargeplan/internal/command"
	"github.com/smallbiznis/chargeplan/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const startupConnectWait = 5 * time.Second

var Module = fx.Module("devicehub",
	fx.Provide(Provide),
	fx.Provide(fx.Annotate(NewSender, fx.As(new(command.Sender)))),
)

// Provide returns nil when MQTT_BROKER is unset.
func Provide(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) *Client {
	if !cfg.MQTT.Enabled() {
		log.Named("devicehub").Warn("mqtt broker not configured; device commands and telemetry subscription are disabled")
		return nil
	}

	client := NewClient(cfg.MQTT, log)
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			connectCtx, cancel := context.WithTimeout(ctx, startupConnectWait)
			defer cancel()
			// SetConnectRetry keeps dialing in the background if the broker is down at boot.
			if err := client.Connect(connectCtx); err != nil {
				client.log.Warn("mqtt broker not reachable at startup", zap.Error(err))
			}
			return nil
		},
		OnStop: func(context.Context) error {
			client.Disconnect()
			return nil
		},
	})
	return client
}
