// Package mqtt publishes timer firings to an MQTT broker so other home
// automation can react to them.
package mqtt

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"

	"homechat/internal/scheduler"
)

const (
	DefaultTopic    = "homechat"
	DefaultClientID = "homechat"

	publishTimeout = 5 * time.Second
)

type Config struct {
	Broker   string
	Username string
	Password string
	ClientID string
	Topic    string
}

// sender is the part of the connection manager the publisher needs.
type sender interface {
	Publish(ctx context.Context, p *paho.Publish) (*paho.PublishResponse, error)
}

// Publisher keeps a connection to the broker and implements
// scheduler.Observer.
type Publisher struct {
	cfg    Config
	logger *slog.Logger
	cm     *autopaho.ConnectionManager
	out    sender
}

func New(cfg Config, logger *slog.Logger) *Publisher {
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}
	cfg.Topic = strings.TrimSuffix(cfg.Topic, "/")
	if cfg.ClientID == "" {
		cfg.ClientID = DefaultClientID
	}
	return &Publisher{cfg: cfg, logger: logger}
}

// Start opens the connection. It returns once the first connection attempt
// has finished or timed out; autopaho keeps reconnecting in the background
// until ctx is cancelled.
func (p *Publisher) Start(ctx context.Context) error {
	brokerURL, err := url.Parse(p.cfg.Broker)
	if err != nil {
		return fmt.Errorf("parse mqtt broker URL: %w", err)
	}

	availTopic := p.AvailabilityTopic()

	pahoCfg := autopaho.ClientConfig{
		ServerUrls:      []*url.URL{brokerURL},
		KeepAlive:       30,
		ConnectUsername: p.cfg.Username,
		ConnectPassword: []byte(p.cfg.Password),
		WillMessage: &paho.WillMessage{
			Topic:   availTopic,
			Payload: []byte("offline"),
			QoS:     1,
			Retain:  true,
		},
		OnConnectionUp: func(cm *autopaho.ConnectionManager, _ *paho.Connack) {
			p.logger.Info("mqtt connected to broker", "broker", p.cfg.Broker)
			p.publishAvailability(ctx, cm, "online")
		},
		OnConnectError: func(err error) {
			p.logger.Warn("mqtt connection error", "error", err)
		},
		ClientConfig: paho.ClientConfig{
			ClientID: p.cfg.ClientID,
		},
	}

	if brokerURL.Scheme == "mqtts" || brokerURL.Scheme == "ssl" {
		pahoCfg.TlsCfg = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
	}

	cm, err := autopaho.NewConnection(ctx, pahoCfg)
	if err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	p.cm = cm
	p.out = cm

	connCtx, connCancel := context.WithTimeout(ctx, 10*time.Second)
	defer connCancel()
	if err := cm.AwaitConnection(connCtx); err != nil {
		p.logger.Warn("mqtt initial connection timed out, will retry in background", "error", err)
	}
	return nil
}

// Stop publishes "offline" and disconnects.
func (p *Publisher) Stop(ctx context.Context) error {
	if p.cm == nil {
		return nil
	}
	p.publishAvailability(ctx, p.cm, "offline")
	return p.cm.Disconnect(ctx)
}

func (p *Publisher) AvailabilityTopic() string {
	return p.cfg.Topic + "/availability"
}

func (p *Publisher) FiredTopic() string {
	return p.cfg.Topic + "/timers/fired"
}

// TimerFired publishes the firing as JSON.
func (p *Publisher) TimerFired(ctx context.Context, f scheduler.Firing) {
	if p.out == nil {
		return
	}

	payload, err := json.Marshal(f)
	if err != nil {
		p.logger.Error("mqtt marshal firing", "timer", f.TimerID, "error", err)
		return
	}

	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if _, err := p.out.Publish(pubCtx, &paho.Publish{
		Topic:   p.FiredTopic(),
		Payload: payload,
		QoS:     1,
	}); err != nil {
		p.logger.Warn("mqtt firing publish failed", "timer", f.TimerID, "error", err)
		return
	}
	p.logger.Debug("mqtt firing published", "timer", f.TimerID, "topic", p.FiredTopic())
}

func (p *Publisher) publishAvailability(ctx context.Context, out sender, status string) {
	if _, err := out.Publish(ctx, &paho.Publish{
		Topic:   p.AvailabilityTopic(),
		Payload: []byte(status),
		QoS:     1,
		Retain:  true,
	}); err != nil {
		p.logger.Warn("mqtt availability publish failed", "status", status, "error", err)
	} else {
		p.logger.Info("mqtt availability published", "status", status)
	}
}
