// Package devicehub is the MQTT side of the device message hub: commands go
// out to devices and telemetry comes back in.
package devicehub

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/smallbiznis/chargeplan/internal/config"
	"go.uber.org/zap"
)

const (
	connectTimeout    = 10 * time.Second
	disconnectQuiesce = 250
)

var ErrNotConnected = errors.New("mqtt_not_connected")

// MessageHandler processes one inbound message. Errors are logged, never
// returned to the broker.
type MessageHandler func(ctx context.Context, topic string, payload []byte) error

type subscription struct {
	qos     byte
	handler MessageHandler
}

type Client struct {
	conn   mqtt.Client
	prefix string
	qos    byte
	log    *zap.Logger

	mu   sync.Mutex
	subs map[string]subscription
}

// NewClient configures a client without connecting. Subscriptions are
// restored on every reconnect.
func NewClient(cfg config.MQTTConfig, log *zap.Logger) *Client {
	c := &Client{
		prefix: cfg.TopicPrefix,
		qos:    cfg.QoS,
		log:    log.Named("devicehub"),
		subs:   map[string]subscription{},
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(fmt.Sprintf("%s-%s", cfg.ClientID, uuid.NewString()[:8]))
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetCleanSession(true)
	opts.SetConnectTimeout(connectTimeout)
	opts.SetOrderMatters(false)
	opts.SetOnConnectHandler(func(mqtt.Client) {
		c.log.Info("mqtt connected", zap.String("broker", cfg.Broker))
		c.resubscribe()
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		c.log.Warn("mqtt connection lost", zap.Error(err))
	})

	c.conn = mqtt.NewClient(opts)
	return c
}

func newClientWithConn(conn mqtt.Client, prefix string, qos byte, log *zap.Logger) *Client {
	return &Client{
		conn:   conn,
		prefix: prefix,
		qos:    qos,
		log:    log.Named("devicehub"),
		subs:   map[string]subscription{},
	}
}

// Dial connects a new client and waits for the first connection.
func Dial(ctx context.Context, cfg config.MQTTConfig, log *zap.Logger) (*Client, error) {
	c := NewClient(cfg, log)
	if err := c.Connect(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) Prefix() string { return c.prefix }

func (c *Client) Connect(ctx context.Context) error {
	if err := wait(ctx, c.conn.Connect()); err != nil {
		return fmt.Errorf("connect to mqtt broker: %w", err)
	}
	return nil
}

func (c *Client) IsConnected() bool {
	return c.conn.IsConnected()
}

// Publish sends payload at the configured QoS, waiting no longer than ctx allows.
func (c *Client) Publish(ctx context.Context, topic string, payload []byte) error {
	if !c.conn.IsConnected() {
		return ErrNotConnected
	}
	if err := wait(ctx, c.conn.Publish(topic, c.qos, false, payload)); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

func (c *Client) Subscribe(ctx context.Context, topic string, handler MessageHandler) error {
	c.mu.Lock()
	c.subs[topic] = subscription{qos: c.qos, handler: handler}
	c.mu.Unlock()

	if !c.conn.IsConnected() {
		// the on-connect handler subscribes once the broker is reachable
		return nil
	}
	if err := wait(ctx, c.conn.Subscribe(topic, c.qos, c.dispatch(handler))); err != nil {
		return fmt.Errorf("subscribe to %s: %w", topic, err)
	}
	c.log.Info("mqtt subscribed", zap.String("topic", topic))
	return nil
}

func (c *Client) Unsubscribe(ctx context.Context, topics ...string) error {
	c.mu.Lock()
	for _, topic := range topics {
		delete(c.subs, topic)
	}
	c.mu.Unlock()

	if !c.conn.IsConnected() {
		return nil
	}
	if err := wait(ctx, c.conn.Unsubscribe(topics...)); err != nil {
		return fmt.Errorf("unsubscribe: %w", err)
	}
	return nil
}

func (c *Client) Disconnect() {
	c.conn.Disconnect(disconnectQuiesce)
}

func (c *Client) resubscribe() {
	c.mu.Lock()
	subs := make(map[string]subscription, len(c.subs))
	for topic, sub := range c.subs {
		subs[topic] = sub
	}
	c.mu.Unlock()

	for topic, sub := range subs {
		token := c.conn.Subscribe(topic, sub.qos, c.dispatch(sub.handler))
		go func(topic string, token mqtt.Token) {
			if token.WaitTimeout(connectTimeout) && token.Error() != nil {
				c.log.Error("mqtt resubscribe failed", zap.String("topic", topic), zap.Error(token.Error()))
			}
		}(topic, token)
	}
}

func (c *Client) dispatch(handler MessageHandler) mqtt.MessageHandler {
	return func(_ mqtt.Client, msg mqtt.Message) {
		if err := handler(context.Background(), msg.Topic(), msg.Payload()); err != nil {
			c.log.Warn("mqtt message handler failed",
				zap.String("topic", msg.Topic()),
				zap.Int("payload_size", len(msg.Payload())),
				zap.Error(err),
			)
		}
	}
}

func wait(ctx context.Context, token mqtt.Token) error {
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}
