// Package bus bridges the elevator to an MQTT broker.
// 이 패키지는 MQTT 브로커와 엘리베이터를 연결합니다. 명령은 받고 텔레메트리는 게시합니다.
package bus

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go-fuzzy-elevator/pkg/elevator"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Controller is the command surface the bridge drives.
type Controller interface {
	Move(floorID string) error
	EmergencyStop()
	Status() elevator.Status
}

// Topics names the four bridge topics.
type Topics struct {
	FloorRequest   string
	EmergencyStop  string
	PositionUpdate string
	StatusUpdate   string
}

// DefaultTopics returns the topics under prefix, e.g. "elevator/floor_request".
func DefaultTopics(prefix string) Topics {
	return Topics{
		FloorRequest:   prefix + "/floor_request",
		EmergencyStop:  prefix + "/emergency_stop",
		PositionUpdate: prefix + "/position_update",
		StatusUpdate:   prefix + "/status_update",
	}
}

// Config holds broker connection settings.
type Config struct {
	Broker         string // tcp://host:1883
	ClientID       string
	TopicPrefix    string
	QoS            byte
	KeepAlive      time.Duration
	ConnectTimeout time.Duration
}

// client is the subset of mqtt.Client the bridge uses.
type client interface {
	IsConnected() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
	Disconnect(quiesce uint)
}

// Bridge subscribes to command topics and publishes telemetry.
type Bridge struct {
	ctrl    Controller
	client  client
	topics  Topics
	qos     byte
	timeout time.Duration
	logger  *slog.Logger
}

// Dial connects to the broker and subscribes to the command topics.
// Subscriptions are restored on every reconnect.
func Dial(ctrl Controller, cfg Config) (*Bridge, error) {
	if cfg.Broker == "" {
		return nil, errors.New("mqtt broker address is empty")
	}
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = "elevator"
	}
	if cfg.KeepAlive <= 0 {
		cfg.KeepAlive = 60 * time.Second
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}

	b := &Bridge{
		ctrl:    ctrl,
		topics:  DefaultTopics(cfg.TopicPrefix),
		qos:     cfg.QoS,
		timeout: cfg.ConnectTimeout,
		logger:  slog.Default().With("component", "mqtt", "broker", cfg.Broker),
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetKeepAlive(cfg.KeepAlive).
		SetConnectTimeout(cfg.ConnectTimeout).
		SetAutoReconnect(true).
		SetOnConnectHandler(func(mqtt.Client) {
			b.logger.Info("Connected to MQTT broker")
			if err := b.subscribe(); err != nil {
				b.logger.Error("Subscribe failed", "error", err)
			}
		}).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			b.logger.Warn("Disconnected from MQTT broker", "error", err)
		})

	c := mqtt.NewClient(opts)
	b.client = c
	tok := c.Connect()
	if !tok.WaitTimeout(cfg.ConnectTimeout) {
		return nil, fmt.Errorf("connect %s: timed out after %s", cfg.Broker, cfg.ConnectTimeout)
	}
	if err := tok.Error(); err != nil {
		return nil, fmt.Errorf("connect %s: %w", cfg.Broker, err)
	}
	return b, nil
}

func newBridge(ctrl Controller, c client, topics Topics) *Bridge {
	return &Bridge{
		ctrl:    ctrl,
		client:  c,
		topics:  topics,
		timeout: time.Second,
		logger:  slog.Default().With("component", "mqtt"),
	}
}

// Topics returns the topics in use.
func (b *Bridge) Topics() Topics { return b.topics }

func (b *Bridge) subscribe() error {
	for _, topic := range []string{b.topics.FloorRequest, b.topics.EmergencyStop} {
		tok := b.client.Subscribe(topic, b.qos, func(_ mqtt.Client, msg mqtt.Message) {
			b.handle(msg.Topic(), msg.Payload())
		})
		if !tok.WaitTimeout(b.timeout) {
			return fmt.Errorf("subscribe %s: timed out", topic)
		}
		if err := tok.Error(); err != nil {
			return fmt.Errorf("subscribe %s: %w", topic, err)
		}
		b.logger.Info("Subscribed to topic", "topic", topic)
	}
	return nil
}

// handle dispatches one inbound command. Bad payloads and rejected moves
// are logged and ignored.
func (b *Bridge) handle(topic string, payload []byte) {
	switch topic {
	case b.topics.FloorRequest:
		var req struct {
			Floor string `json:"floor"`
		}
		if err := json.Unmarshal(payload, &req); err != nil {
			b.logger.Warn("Invalid JSON received", "topic", topic, "error", err)
			return
		}
		if req.Floor == "" {
			b.logger.Warn("Floor request without floor", "topic", topic)
			return
		}
		if err := b.ctrl.Move(req.Floor); err != nil {
			b.logger.Warn("Floor request rejected", "floor", req.Floor, "error", err)
		}
	case b.topics.EmergencyStop:
		b.ctrl.EmergencyStop()
	default:
		b.logger.Debug("Message on unexpected topic", "topic", topic)
	}
}

// Publish sends a telemetry event. Movement start and termination also
// publish a status update.
func (b *Bridge) Publish(ev elevator.TelemetryEvent) {
	b.publish(b.topics.PositionUpdate, ev)
	if ev.Type == elevator.EventMoveStarted || ev.Terminal() {
		b.publish(b.topics.StatusUpdate, b.ctrl.Status())
	}
}

// publish does not wait for delivery.
func (b *Bridge) publish(topic string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		b.logger.Error("Failed to encode message", "topic", topic, "error", err)
		return
	}
	if !b.client.IsConnected() {
		b.logger.Debug("Not connected, dropping message", "topic", topic)
		return
	}
	tok := b.client.Publish(topic, b.qos, false, data)
	go func() {
		if tok.WaitTimeout(b.timeout) && tok.Error() != nil {
			b.logger.Warn("Publish failed", "topic", topic, "error", tok.Error())
		}
	}()
}

// Close disconnects from the broker.
func (b *Bridge) Close() {
	b.client.Disconnect(250)
	b.logger.Info("MQTT client disconnected")
}
