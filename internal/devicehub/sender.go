package devicehub

import (
	"context"
	"fmt"

	"github.com/smallbiznis/chargeplan/internal/command"
	"go.uber.org/zap"
)

// Sender publishes commands to {prefix}/{deviceId}/commands. A nil client
// means no broker is configured and every send fails.
type Sender struct {
	client *Client
	log    *zap.Logger
}

func NewSender(client *Client, log *zap.Logger) *Sender {
	return &Sender{client: client, log: log.Named("devicehub.sender")}
}

func (s *Sender) Send(ctx context.Context, deviceID string, cmd command.Command) error {
	if deviceID == "" {
		return command.ErrInvalidDeviceID
	}
	if s.client == nil {
		return fmt.Errorf("%w: no mqtt broker configured", command.ErrChannelUnavailable)
	}

	payload, err := command.Encode(cmd)
	if err != nil {
		return err
	}

	topic := CommandTopic(s.client.Prefix(), deviceID)
	if err := s.client.Publish(ctx, topic, payload); err != nil {
		return command.Unavailable(err)
	}
	s.log.Debug("command published",
		zap.String("device_id", deviceID),
		zap.String("action", string(cmd.Action)),
		zap.String("topic", topic),
	)
	return nil
}

var _ command.Sender = (*Sender)(nil)
