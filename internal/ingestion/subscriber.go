package ingestion

import (
	"context"

	"github.com/smallbiznis/chargeplan/internal/devicehub"
	"go.uber.org/zap"
)

// Subscriber feeds telemetry published on {prefix}/+/telemetry into the processor.
type Subscriber struct {
	client    *devicehub.Client
	processor *Processor
	log       *zap.Logger
	topic     string
}

func NewSubscriber(client *devicehub.Client, processor *Processor, log *zap.Logger) *Subscriber {
	s := &Subscriber{
		client:    client,
		processor: processor,
		log:       log.Named("ingestion.mqtt"),
	}
	if client != nil {
		s.topic = devicehub.TelemetryWildcard(client.Prefix())
	}
	return s
}

func (s *Subscriber) Start(ctx context.Context) error {
	if s.client == nil {
		s.log.Warn("telemetry subscription disabled; no mqtt broker configured")
		return nil
	}
	if err := s.client.Subscribe(ctx, s.topic, s.handle); err != nil {
		return err
	}
	s.log.Info("telemetry subscription started", zap.String("topic", s.topic))
	return nil
}

func (s *Subscriber) Stop(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	if err := s.client.Unsubscribe(ctx, s.topic); err != nil {
		s.log.Warn("telemetry unsubscribe failed", zap.Error(err))
	}
	return nil
}

func (s *Subscriber) handle(ctx context.Context, topic string, payload []byte) error {
	result := s.processor.Process(ctx, SourceMQTT, [][]byte{payload})
	if result.Stored == 0 {
		s.log.Debug("telemetry message not stored",
			zap.String("topic", topic),
			zap.String("topic_device_id", devicehub.DeviceFromTopic(topic)),
		)
	}
	return nil
}
