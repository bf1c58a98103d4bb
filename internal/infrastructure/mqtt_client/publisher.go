package mqtt_client

import (
	"context"
	"encoding/json"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
)

// Publisher sends JSON payloads to one topic.
type Publisher struct {
	client  mqtt.Client
	topic   string
	qos     byte
	retain  bool
	timeout time.Duration
}

type PublisherOption func(*Publisher)

func WithQoS(qos byte) PublisherOption {
	return func(p *Publisher) {
		p.qos = qos
	}
}

func WithRetain(retain bool) PublisherOption {
	return func(p *Publisher) {
		p.retain = retain
	}
}

func WithPublishTimeout(d time.Duration) PublisherOption {
	return func(p *Publisher) {
		p.timeout = d
	}
}

func NewPublisher(c mqtt.Client, topic string, opts ...PublisherOption) *Publisher {
	p := &Publisher{client: c, topic: topic, qos: 1, timeout: 5 * time.Second}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish marshals payload to JSON and waits for the broker to accept it.
func (p *Publisher) Publish(ctx context.Context, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "failed to marshal mqtt payload")
	}

	tok := p.client.Publish(p.topic, p.qos, p.retain, data)
	select {
	case <-tok.Done():
		return errors.Wrapf(tok.Error(), "failed to publish to %s", p.topic)
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(p.timeout):
		return errors.Errorf("timed out publishing to %s", p.topic)
	}
}
