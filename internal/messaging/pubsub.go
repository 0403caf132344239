package messaging

import (
	"context"
	"encoding/json"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"

	"example.com/albaranes/config"
)

func newPubSubClient(ctx context.Context, cfg config.PubSubConfig) (*pubsub.Client, error) {
	var opts []option.ClientOption
	if cfg.CredentialsJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
	}
	client, err := pubsub.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Pub/Sub client")
	}
	return client, nil
}

// PubSubPublisher publishes render requests to a Google Pub/Sub topic
type PubSubPublisher struct {
	client *pubsub.Client
	topic  *pubsub.Topic
}

// NewPubSubPublisher creates a new Pub/Sub publisher
func NewPubSubPublisher(ctx context.Context, cfg config.PubSubConfig) (*PubSubPublisher, error) {
	client, err := newPubSubClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &PubSubPublisher{client: client, topic: client.Topic(cfg.Topic)}, nil
}

// PublishRender publishes a render request and waits for the server ack
func (p *PubSubPublisher) PublishRender(ctx context.Context, req RenderRequest) error {
	data, err := json.Marshal(req)
	if err != nil {
		return errors.Wrap(err, "failed to marshal render request")
	}

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"source": messageSource,
			"time":   time.Now().UTC().Format(time.RFC3339),
		},
	})
	if _, err := result.Get(ctx); err != nil {
		return errors.Wrapf(err, "failed to publish render request to %s", p.topic.ID())
	}
	return nil
}

// Close stops the topic and closes the client
func (p *PubSubPublisher) Close() error {
	p.topic.Stop()
	return p.client.Close()
}

// PubSubConsumer receives render requests from a Pub/Sub subscription
type PubSubConsumer struct {
	client       *pubsub.Client
	subscription *pubsub.Subscription
}

// NewPubSubConsumer creates a new Pub/Sub consumer
func NewPubSubConsumer(ctx context.Context, cfg config.PubSubConfig) (*PubSubConsumer, error) {
	client, err := newPubSubClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	sub := client.Subscription(cfg.Subscription)
	sub.ReceiveSettings.MaxOutstandingMessages = 10
	return &PubSubConsumer{client: client, subscription: sub}, nil
}

// Consume blocks until ctx is done, acking handled messages and nacking failures.
// Malformed messages are acked and logged.
func (c *PubSubConsumer) Consume(ctx context.Context, handle Handler) error {
	log.Info().Str("subscription", c.subscription.ID()).Msg("Starting render request consumer")

	err := c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		req, err := ParseRenderRequest(msg.Data)
		if err != nil {
			// redelivery cannot fix the body
			log.Error().Err(err).Str("message_id", msg.ID).Msg("Malformed render request, dropping")
			msg.Ack()
			return
		}
		if err := handle(ctx, req); err != nil {
			log.Error().Err(err).Str("message_id", msg.ID).Msg("Error processing render request")
			msg.Nack()
			return
		}
		msg.Ack()
	})
	if err != nil && ctx.Err() == nil {
		return errors.Wrap(err, "render request subscription stopped")
	}
	return nil
}

// Close closes the client
func (c *PubSubConsumer) Close() error {
	return c.client.Close()
}
