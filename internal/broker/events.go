package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"coursehub/internal/models"

	"github.com/segmentio/kafka-go"
)

// EventPublisher handles publishing domain events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishPurchaseCompleted publishes a PurchaseCompleted event, keyed by
// account so one buyer's events stay ordered.
func (ep *EventPublisher) PublishPurchaseCompleted(ctx context.Context, event *models.PurchaseCompletedEvent) error {
	key := fmt.Sprintf("account-%s", event.AccountID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishLessonCompleted publishes a LessonCompleted event
func (ep *EventPublisher) PublishLessonCompleted(ctx context.Context, event *models.LessonCompletedEvent) error {
	key := fmt.Sprintf("account-%s", event.AccountID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// EventHandler handles incoming events
type EventHandler struct {
	onPurchaseCompleted func(context.Context, *models.PurchaseCompletedEvent) error
	onLessonCompleted   func(context.Context, *models.LessonCompletedEvent) error
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{}
}

// OnPurchaseCompleted registers a handler for PurchaseCompleted events
func (eh *EventHandler) OnPurchaseCompleted(handler func(context.Context, *models.PurchaseCompletedEvent) error) {
	eh.onPurchaseCompleted = handler
}

// OnLessonCompleted registers a handler for LessonCompleted events
func (eh *EventHandler) OnLessonCompleted(handler func(context.Context, *models.LessonCompletedEvent) error) {
	eh.onLessonCompleted = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	log.Printf("Handling event: type=%s, id=%s", baseEvent.EventType, baseEvent.EventID)

	switch baseEvent.EventType {
	case models.EventTypePurchaseCompleted:
		if eh.onPurchaseCompleted != nil {
			var event models.PurchaseCompletedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal PurchaseCompleted event: %w", err)
			}
			return eh.onPurchaseCompleted(ctx, &event)
		}

	case models.EventTypeLessonCompleted:
		if eh.onLessonCompleted != nil {
			var event models.LessonCompletedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal LessonCompleted event: %w", err)
			}
			return eh.onLessonCompleted(ctx, &event)
		}

	default:
		log.Printf("Ignoring unknown event type: %s", baseEvent.EventType)
	}

	return nil
}
