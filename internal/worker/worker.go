package worker

import (
	"context"
	"sync"

	"shop-assistant/internal/broker"
	"shop-assistant/internal/models"
	"shop-assistant/internal/util"

	"go.uber.org/zap"
)

const recentLimit = 100

// AuditRecord is one checkout event as seen by the audit worker
type AuditRecord struct {
	EventType string `json:"event_type"`
	EventID   string `json:"event_id"`
	SessionID string `json:"session_id"`
	OrderID   string `json:"order_id"`
	Detail    string `json:"detail,omitempty"`
}

// AuditWorker consumes checkout events and records them
type AuditWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	logger       *zap.Logger

	mu     sync.Mutex
	recent []AuditRecord
}

// NewAuditWorker creates a new audit worker
func NewAuditWorker(consumer *broker.Consumer) *AuditWorker {
	w := &AuditWorker{
		consumer: consumer,
		logger:   util.GetLogger(),
	}

	h := broker.NewEventHandler()
	h.OnCheckoutStarted(func(_ context.Context, e *models.CheckoutStartedEvent) error {
		w.record(e.BaseEvent, e.OrderID, "total "+e.Total)
		return nil
	})
	h.OnCheckoutCancelled(func(_ context.Context, e *models.CheckoutCancelledEvent) error {
		w.record(e.BaseEvent, e.OrderID, "status "+e.Status)
		return nil
	})
	h.OnPaymentSucceeded(func(_ context.Context, e *models.PaymentSucceededEvent) error {
		w.record(e.BaseEvent, e.OrderID, "amount "+e.Amount)
		return nil
	})
	h.OnPaymentFailed(func(_ context.Context, e *models.PaymentFailedEvent) error {
		w.record(e.BaseEvent, e.OrderID, e.Reason)
		return nil
	})
	h.OnOrderCompleted(func(_ context.Context, e *models.OrderCompletedEvent) error {
		w.record(e.BaseEvent, e.OrderID, "total "+e.Total)
		return nil
	})
	w.eventHandler = h

	return w
}

// Handler returns the message router of this worker
func (w *AuditWorker) Handler() *broker.EventHandler {
	return w.eventHandler
}

// Start starts the worker
func (w *AuditWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting audit worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *AuditWorker) Stop() error {
	w.logger.Info("Stopping audit worker")
	return w.consumer.Close()
}

// Recent returns the latest records, oldest first
func (w *AuditWorker) Recent() []AuditRecord {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make([]AuditRecord, len(w.recent))
	copy(out, w.recent)
	return out
}

func (w *AuditWorker) record(base models.BaseEvent, orderID, detail string) {
	util.CheckoutEventsConsumedTotal.WithLabelValues(base.EventType).Inc()
	w.logger.Info("Checkout event",
		zap.String("event_type", base.EventType),
		zap.String("event_id", base.EventID),
		zap.String("session_id", base.SessionID),
		zap.String("order_id", orderID),
		zap.String("detail", detail))

	w.mu.Lock()
	defer w.mu.Unlock()
	w.recent = append(w.recent, AuditRecord{
		EventType: base.EventType,
		EventID:   base.EventID,
		SessionID: base.SessionID,
		OrderID:   orderID,
		Detail:    detail,
	})
	if len(w.recent) > recentLimit {
		w.recent = w.recent[len(w.recent)-recentLimit:]
	}
}
