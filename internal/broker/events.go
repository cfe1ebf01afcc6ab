package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"shop-assistant/internal/models"
	"shop-assistant/internal/util"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventPublisher handles publishing checkout events
type EventPublisher struct {
	writer Writer
	now    func() time.Time
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(writer Writer) *EventPublisher {
	if writer == nil {
		writer = DiscardWriter{}
	}
	return &EventPublisher{writer: writer, now: time.Now}
}

func (ep *EventPublisher) base(eventType, sessionID string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		SessionID: sessionID,
		Timestamp: ep.now().UTC(),
	}
}

func orderKey(orderID string) string {
	return "order-" + orderID
}

// PublishCheckoutStarted publishes CheckoutStarted event
func (ep *EventPublisher) PublishCheckoutStarted(ctx context.Context, sessionID string, order models.Order) error {
	event := &models.CheckoutStartedEvent{
		BaseEvent: ep.base(models.EventTypeCheckoutStarted, sessionID),
		OrderID:   order.ID,
		ItemCount: order.ItemCount(),
		Subtotal:  order.Subtotal.StringFixed(2),
		Tax:       order.Tax.StringFixed(2),
		Total:     order.Total.StringFixed(2),
	}
	return ep.writer.PublishEvent(ctx, orderKey(order.ID), event)
}

// PublishCheckoutCancelled publishes CheckoutCancelled event
func (ep *EventPublisher) PublishCheckoutCancelled(ctx context.Context, sessionID string, order models.Order) error {
	event := &models.CheckoutCancelledEvent{
		BaseEvent: ep.base(models.EventTypeCheckoutCancelled, sessionID),
		OrderID:   order.ID,
		Status:    string(order.Status),
	}
	return ep.writer.PublishEvent(ctx, orderKey(order.ID), event)
}

// PublishPaymentSucceeded publishes PaymentSucceeded event
func (ep *EventPublisher) PublishPaymentSucceeded(ctx context.Context, sessionID string, order models.Order) error {
	event := &models.PaymentSucceededEvent{
		BaseEvent: ep.base(models.EventTypePaymentSucceeded, sessionID),
		OrderID:   order.ID,
		Amount:    order.Total.StringFixed(2),
	}
	return ep.writer.PublishEvent(ctx, orderKey(order.ID), event)
}

// PublishPaymentFailed publishes PaymentFailed event
func (ep *EventPublisher) PublishPaymentFailed(ctx context.Context, sessionID string, order models.Order, reason string) error {
	event := &models.PaymentFailedEvent{
		BaseEvent: ep.base(models.EventTypePaymentFailed, sessionID),
		OrderID:   order.ID,
		Amount:    order.Total.StringFixed(2),
		Reason:    reason,
	}
	return ep.writer.PublishEvent(ctx, orderKey(order.ID), event)
}

// PublishOrderCompleted publishes OrderCompleted event
func (ep *EventPublisher) PublishOrderCompleted(ctx context.Context, sessionID string, order models.Order) error {
	event := &models.OrderCompletedEvent{
		BaseEvent: ep.base(models.EventTypeOrderCompleted, sessionID),
		OrderID:   order.ID,
		Items:     order.Items,
		Total:     order.Total.StringFixed(2),
	}
	return ep.writer.PublishEvent(ctx, orderKey(order.ID), event)
}

// Close closes the underlying writer
func (ep *EventPublisher) Close() error {
	return ep.writer.Close()
}

// EventHandler handles incoming events
type EventHandler struct {
	onCheckoutStarted   func(context.Context, *models.CheckoutStartedEvent) error
	onCheckoutCancelled func(context.Context, *models.CheckoutCancelledEvent) error
	onPaymentSucceeded  func(context.Context, *models.PaymentSucceededEvent) error
	onPaymentFailed     func(context.Context, *models.PaymentFailedEvent) error
	onOrderCompleted    func(context.Context, *models.OrderCompletedEvent) error
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{}
}

func (eh *EventHandler) OnCheckoutStarted(handler func(context.Context, *models.CheckoutStartedEvent) error) {
	eh.onCheckoutStarted = handler
}

func (eh *EventHandler) OnCheckoutCancelled(handler func(context.Context, *models.CheckoutCancelledEvent) error) {
	eh.onCheckoutCancelled = handler
}

func (eh *EventHandler) OnPaymentSucceeded(handler func(context.Context, *models.PaymentSucceededEvent) error) {
	eh.onPaymentSucceeded = handler
}

func (eh *EventHandler) OnPaymentFailed(handler func(context.Context, *models.PaymentFailedEvent) error) {
	eh.onPaymentFailed = handler
}

func (eh *EventHandler) OnOrderCompleted(handler func(context.Context, *models.OrderCompletedEvent) error) {
	eh.onOrderCompleted = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	logger := util.GetLogger()
	logger.Debug("Handling event",
		zap.String("event_type", baseEvent.EventType),
		zap.String("event_id", baseEvent.EventID))

	switch baseEvent.EventType {
	case models.EventTypeCheckoutStarted:
		if eh.onCheckoutStarted != nil {
			var event models.CheckoutStartedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal CheckoutStarted event: %w", err)
			}
			return eh.onCheckoutStarted(ctx, &event)
		}

	case models.EventTypeCheckoutCancelled:
		if eh.onCheckoutCancelled != nil {
			var event models.CheckoutCancelledEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal CheckoutCancelled event: %w", err)
			}
			return eh.onCheckoutCancelled(ctx, &event)
		}

	case models.EventTypePaymentSucceeded:
		if eh.onPaymentSucceeded != nil {
			var event models.PaymentSucceededEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal PaymentSucceeded event: %w", err)
			}
			return eh.onPaymentSucceeded(ctx, &event)
		}

	case models.EventTypePaymentFailed:
		if eh.onPaymentFailed != nil {
			var event models.PaymentFailedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal PaymentFailed event: %w", err)
			}
			return eh.onPaymentFailed(ctx, &event)
		}

	case models.EventTypeOrderCompleted:
		if eh.onOrderCompleted != nil {
			var event models.OrderCompletedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal OrderCompleted event: %w", err)
			}
			return eh.onOrderCompleted(ctx, &event)
		}

	default:
		logger.Warn("Unhandled event type", zap.String("event_type", baseEvent.EventType))
	}

	return nil
}
