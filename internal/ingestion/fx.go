package ingestion

import (
	"go.uber.org/fx"
)

var Module = fx.Module("ingestion",
	fx.Provide(NewProcessor),
)

// SubscriberModule consumes MQTT telemetry for the lifetime of the app.
var SubscriberModule = fx.Module("ingestion.mqtt",
	fx.Provide(NewSubscriber),
	fx.Invoke(func(lc fx.Lifecycle, s *Subscriber) {
		lc.Append(fx.Hook{
			OnStart: s.Start,
			OnStop:  s.Stop,
		})
	}),
)
