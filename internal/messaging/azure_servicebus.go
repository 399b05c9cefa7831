package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"example.com/grocery/services/delivery/config"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Event types published by the API and consumed by the worker's order
// projection.
const (
	EventOrderCreated       = "OrderCreated"
	EventOrderStatusChanged = "OrderStatusChanged"
	EventOrderCancelled     = "OrderCancelled"
	EventDeliveryAssigned   = "DeliveryAssigned"
)

// Event is the common message envelope
type Event struct {
	ID        uuid.UUID       `json:"id"`
	EventType string          `json:"eventType"`
	Data      json.RawMessage `json:"data"`
	Time      time.Time       `json:"time"`
}

// OrderEventData is the payload for order events
type OrderEventData struct {
	OrderID     int       `json:"order_id"`
	UserID      int       `json:"user_id"`
	Status      string    `json:"status"`
	TotalAmount float64   `json:"total_amount"`
	OrderDate   time.Time `json:"order_date"`
}

// DeliveryEventData is the payload for delivery events
type DeliveryEventData struct {
	DeliveryID int `json:"delivery_id"`
	OrderID    int `json:"order_id"`
	DriverID   int `json:"driver_id"`
}

// Publisher is an interface for publishing events to the bus
type Publisher interface {
	Publish(ctx context.Context, eventType string, data interface{}) error
	Close() error
}

// serviceBusClient implements the Publisher interface
type serviceBusClient struct {
	client    *azservicebus.Client
	sender    *azservicebus.Sender
	queueName string
	source    string
}

// NewPublisher creates a new Azure Service Bus publisher
func NewPublisher(cfg config.AzureConfig, source string) (Publisher, error) {
	if cfg.QueueConnStr == "" {
		return nil, fmt.Errorf("Azure Service Bus connection string is empty")
	}

	// Create the Service Bus client
	client, err := azservicebus.NewClientFromConnectionString(cfg.QueueConnStr, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Service Bus client: %w", err)
	}

	// Create a sender for the queue
	sender, err := client.NewSender(cfg.QueueName, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Service Bus sender: %w", err)
	}

	return &serviceBusClient{
		client:    client,
		sender:    sender,
		queueName: cfg.QueueName,
		source:    source,
	}, nil
}

// Publish wraps data in an event envelope and sends it to the queue
func (s *serviceBusClient) Publish(ctx context.Context, eventType string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	event := Event{
		ID:        uuid.New(),
		EventType: eventType,
		Data:      payload,
		Time:      time.Now().UTC(),
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event envelope: %w", err)
	}

	msg := &azservicebus.Message{
		Body: body,
		ApplicationProperties: map[string]interface{}{
			"source": s.source,
			"time":   event.Time.Format(time.RFC3339),
		},
	}

	return s.sender.SendMessage(ctx, msg, nil)
}

// Close closes the Service Bus client
func (s *serviceBusClient) Close() error {
	// Close the sender
	if s.sender != nil {
		if err := s.sender.Close(context.Background()); err != nil {
			return err
		}
	}

	// Close the client
	if s.client != nil {
		return s.client.Close(context.Background())
	}

	return nil
}

// MessageProcessor handles a single received message
type MessageProcessor interface {
	ProcessMessage(ctx context.Context, message *azservicebus.ReceivedMessage) error
}

// Consumer receives events from the bus and hands them to a processor
type Consumer struct {
	client    *azservicebus.Client
	queueName string
}

// NewConsumer creates a new Azure Service Bus consumer
func NewConsumer(cfg config.AzureConfig) (*Consumer, error) {
	if cfg.QueueConnStr == "" {
		return nil, fmt.Errorf("Azure Service Bus connection string is empty")
	}

	client, err := azservicebus.NewClientFromConnectionString(cfg.QueueConnStr, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Service Bus client: %w", err)
	}

	return &Consumer{client: client, queueName: cfg.QueueName}, nil
}

// ProcessMessages receives messages in batches until ctx is cancelled.
// Failed messages are abandoned back to the queue.
func (c *Consumer) ProcessMessages(ctx context.Context, processor MessageProcessor) error {
	receiver, err := c.client.NewReceiverForQueue(c.queueName, nil)
	if err != nil {
		return fmt.Errorf("failed to create Service Bus receiver: %w", err)
	}
	defer func() {
		if err := receiver.Close(context.Background()); err != nil {
			log.Error().Err(err).Msg("Error closing Service Bus receiver")
		}
	}()

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		messages, err := receiver.ReceiveMessages(ctx, 10, nil)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Error().Err(err).Msg("Error receiving messages")
			continue
		}

		for _, message := range messages {
			err := processor.ProcessMessage(ctx, message)
			if err != nil {
				log.Error().Err(err).Msgf("Error processing message '%s'", message.MessageID)
				// Return the message to the queue
				if err := receiver.AbandonMessage(ctx, message, nil); err != nil {
					log.Error().Err(err).Msgf("(AbandonMessage) err: %v", err)
				}
				continue
			}

			if err := receiver.CompleteMessage(ctx, message, nil); err != nil {
				log.Error().Err(err).Msgf("(CompleteMessage) err: %v", err)
			}
		}
	}
}

// Close closes the consumer's underlying client
func (c *Consumer) Close() error {
	if c.client != nil {
		return c.client.Close(context.Background())
	}
	return nil
}
