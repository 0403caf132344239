// Package messaging carries render requests between the API and the worker.
package messaging

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"example.com/albaranes/config"
)

// RenderRequest asks the worker to render and store a delivery note
type RenderRequest struct {
	DeliveryNoteID uuid.UUID `json:"deliveryNoteId"`
}

// Handler processes one render request; an error returns the message to the queue
type Handler func(ctx context.Context, req RenderRequest) error

// Publisher enqueues render requests
type Publisher interface {
	PublishRender(ctx context.Context, req RenderRequest) error
	Close() error
}

// Consumer delivers render requests to a handler until ctx is done
type Consumer interface {
	Consume(ctx context.Context, handle Handler) error
	Close() error
}

// ParseRenderRequest decodes a message body
func ParseRenderRequest(body []byte) (RenderRequest, error) {
	var req RenderRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return req, errors.Wrap(err, "failed to unmarshal render request")
	}
	if req.DeliveryNoteID == uuid.Nil {
		return req, errors.New("render request without deliveryNoteId")
	}
	return req, nil
}

// NewPublisher creates the publisher for the configured queue provider
func NewPublisher(ctx context.Context, cfg config.Config) (Publisher, error) {
	switch cfg.Queue.Provider {
	case "servicebus":
		return NewServiceBusPublisher(cfg.Azure)
	case "pubsub":
		return NewPubSubPublisher(ctx, cfg.PubSub)
	default:
		return NoopPublisher{}, nil
	}
}

// NewConsumer creates the consumer for the configured queue provider, nil when
// no queue is configured
func NewConsumer(ctx context.Context, cfg config.Config) (Consumer, error) {
	switch cfg.Queue.Provider {
	case "servicebus":
		return NewServiceBusConsumer(cfg.Azure)
	case "pubsub":
		return NewPubSubConsumer(ctx, cfg.PubSub)
	default:
		return nil, nil
	}
}

// NoopPublisher drops render requests; out-of-band rendering then relies on
// the reconciliation job alone.
type NoopPublisher struct{}

// PublishRender does nothing
func (NoopPublisher) PublishRender(context.Context, RenderRequest) error { return nil }

// Close does nothing
func (NoopPublisher) Close() error { return nil }
