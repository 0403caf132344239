package messaging

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"example.com/albaranes/config"
)

const messageSource = "albaranes-api"

// ServiceBusPublisher sends render requests to an Azure Service Bus queue
type ServiceBusPublisher struct {
	client    *azservicebus.Client
	sender    *azservicebus.Sender
	queueName string
}

// NewServiceBusPublisher creates a new Azure Service Bus sender
func NewServiceBusPublisher(cfg config.AzureConfig) (*ServiceBusPublisher, error) {
	if cfg.QueueConnStr == "" {
		return nil, errors.New("Azure Service Bus connection string is empty")
	}

	client, err := azservicebus.NewClientFromConnectionString(cfg.QueueConnStr, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Service Bus client")
	}

	sender, err := client.NewSender(cfg.RenderQueueName, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Service Bus sender")
	}

	return &ServiceBusPublisher{
		client:    client,
		sender:    sender,
		queueName: cfg.RenderQueueName,
	}, nil
}

// PublishRender sends a render request to the queue
func (p *ServiceBusPublisher) PublishRender(ctx context.Context, req RenderRequest) error {
	data, err := json.Marshal(req)
	if err != nil {
		return errors.Wrap(err, "failed to marshal render request")
	}

	messageID := req.DeliveryNoteID.String()
	contentType := "application/json"
	msg := &azservicebus.Message{
		Body:        data,
		MessageID:   &messageID,
		ContentType: &contentType,
		ApplicationProperties: map[string]interface{}{
			"source": messageSource,
			"time":   time.Now().UTC().Format(time.RFC3339),
		},
	}

	if err := p.sender.SendMessage(ctx, msg, nil); err != nil {
		return errors.Wrapf(err, "failed to send render request to %s", p.queueName)
	}
	return nil
}

// Close closes the sender and the client
func (p *ServiceBusPublisher) Close() error {
	if p.sender != nil {
		if err := p.sender.Close(context.Background()); err != nil {
			return err
		}
	}
	if p.client != nil {
		return p.client.Close(context.Background())
	}
	return nil
}

// ServiceBusConsumer receives render requests from an Azure Service Bus queue
type ServiceBusConsumer struct {
	client    *azservicebus.Client
	queueName string
	batchSize int
}

// NewServiceBusConsumer creates a new Azure Service Bus receiver client
func NewServiceBusConsumer(cfg config.AzureConfig) (*ServiceBusConsumer, error) {
	client, err := azservicebus.NewClientFromConnectionString(cfg.QueueConnStr, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Service Bus client")
	}
	return &ServiceBusConsumer{client: client, queueName: cfg.RenderQueueName, batchSize: 10}, nil
}

// Consume receives messages in batches until ctx is done. A handled message is
// completed, a failed one is abandoned for redelivery and a malformed one is
// dead-lettered.
func (c *ServiceBusConsumer) Consume(ctx context.Context, handle Handler) error {
	receiver, err := c.client.NewReceiverForQueue(c.queueName, nil)
	if err != nil {
		return errors.Wrap(err, "failed to create Service Bus receiver")
	}
	defer func() {
		if err := receiver.Close(context.Background()); err != nil {
			log.Error().Err(err).Str("queue", c.queueName).Msg("Error closing receiver")
		}
	}()

	log.Info().Str("queue", c.queueName).Msg("Starting render request consumer")

	for {
		messages, err := receiver.ReceiveMessages(ctx, c.batchSize, nil)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, "failed to receive render requests")
		}

		for _, message := range messages {
			settle(ctx, receiver, message, handle)
		}
	}
}

// messageSettler is the part of *azservicebus.Receiver that settles messages
type messageSettler interface {
	CompleteMessage(ctx context.Context, message *azservicebus.ReceivedMessage, options *azservicebus.CompleteMessageOptions) error
	AbandonMessage(ctx context.Context, message *azservicebus.ReceivedMessage, options *azservicebus.AbandonMessageOptions) error
	DeadLetterMessage(ctx context.Context, message *azservicebus.ReceivedMessage, options *azservicebus.DeadLetterOptions) error
}

// settle hands one message to handle. A body that does not parse can never
// succeed and goes straight to the dead-letter queue.
func settle(ctx context.Context, r messageSettler, message *azservicebus.ReceivedMessage, handle Handler) {
	req, err := ParseRenderRequest(message.Body)
	if err != nil {
		log.Error().Err(err).Str("message_id", message.MessageID).Msg("Malformed render request, dead-lettering")
		reason := "MalformedRenderRequest"
		description := err.Error()
		opts := &azservicebus.DeadLetterOptions{Reason: &reason, ErrorDescription: &description}
		if err := r.DeadLetterMessage(context.Background(), message, opts); err != nil {
			log.Error().Err(err).Str("message_id", message.MessageID).Msg("Failed to dead-letter message")
		}
		return
	}

	if err := handle(ctx, req); err != nil {
		log.Error().Err(err).Str("message_id", message.MessageID).Msg("Error processing render request")
		if err := r.AbandonMessage(context.Background(), message, nil); err != nil {
			log.Error().Err(err).Str("message_id", message.MessageID).Msg("Failed to abandon message")
		}
		return
	}

	if err := r.CompleteMessage(context.Background(), message, nil); err != nil {
		log.Error().Err(err).Str("message_id", message.MessageID).Msg("Failed to complete message")
	}
}

// Close closes the client
func (c *ServiceBusConsumer) Close() error {
	return c.client.Close(context.Background())
}
