package ingest

import (
	"context"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"coldwatch/config"
	"coldwatch/core/utils"
)

// Subscriber consumes readings from an actual MQTT broker.
type Subscriber struct {
	client paho.Client
	cfg    config.MQTTConfig
	svc    *Service
	logger *utils.Logger
}

func NewSubscriber(cfg config.MQTTConfig, svc *Service, logger *utils.Logger) (*Subscriber, error) {
	opts := paho.NewClientOptions().
		AddBroker(cfg.BrokerURL).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	client := paho.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("mqtt connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	return &Subscriber{client: client, cfg: cfg, svc: svc, logger: logger}, nil
}

// Start subscribes to the readings topic. Message handling runs on paho's
// callback goroutine; failures are logged and the message dropped.
func (s *Subscriber) Start(ctx context.Context) error {
	token := s.client.Subscribe(s.cfg.Topic, 1, func(_ paho.Client, msg paho.Message) {
		if err := s.svc.HandleMessage(ctx, msg.Payload()); err != nil {
			s.logger.Errorf("mqtt ingest %s: %v", msg.Topic(), err)
		}
	})
	if !token.WaitTimeout(10 * time.Second) {
		return fmt.Errorf("mqtt subscribe timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe %s: %w", s.cfg.Topic, err)
	}
	s.logger.Infof("mqtt ingest listening on %s", s.cfg.Topic)
	return nil
}

func (s *Subscriber) Close() error {
	s.client.Disconnect(1000)
	return nil
}
