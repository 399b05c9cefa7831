package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"example.com/grocery/services/delivery/internal/search"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
	"github.com/rs/zerolog/log"
)

// OrderProjectionProcessor maintains the Elasticsearch order projection
// from the event stream. It is read-side only; the assignment engine never
// depends on it.
type OrderProjectionProcessor struct {
	elastic *search.ElasticClient
}

// NewOrderProjectionProcessor creates a new processor
func NewOrderProjectionProcessor(elastic *search.ElasticClient) *OrderProjectionProcessor {
	return &OrderProjectionProcessor{elastic: elastic}
}

// ProcessMessage handles a single event from the bus
func (p *OrderProjectionProcessor) ProcessMessage(ctx context.Context, message *azservicebus.ReceivedMessage) error {
	var event Event
	if err := json.Unmarshal(message.Body, &event); err != nil {
		return fmt.Errorf("error unmarshalling event: %w", err)
	}

	log.Info().Str("eventType", event.EventType).Msg("Processing event")

	switch event.EventType {
	case EventOrderCreated, EventOrderStatusChanged, EventOrderCancelled:
		var data OrderEventData
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return fmt.Errorf("error unmarshalling order event data: %w", err)
		}
		return p.elastic.IndexOrder(ctx, search.OrderDocument{
			OrderID:     data.OrderID,
			UserID:      data.UserID,
			Status:      data.Status,
			TotalAmount: data.TotalAmount,
			OrderDate:   data.OrderDate,
			EventTime:   event.Time,
		})

	case EventDeliveryAssigned:
		var data DeliveryEventData
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return fmt.Errorf("error unmarshalling delivery event data: %w", err)
		}
		return p.elastic.UpdateOrderDriver(ctx, data.OrderID, data.DriverID)

	default:
		// Unknown events are completed, not retried
		log.Warn().Str("eventType", event.EventType).Msg("Skipping unknown event type")
		return nil
	}
}
