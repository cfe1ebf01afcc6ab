package models

import "time"

// Event types
const (
	EventTypeCheckoutStarted   = "CHECKOUT_STARTED"
	EventTypeCheckoutCancelled = "CHECKOUT_CANCELLED"
	EventTypePaymentSucceeded  = "PAYMENT_SUCCEEDED"
	EventTypePaymentFailed     = "PAYMENT_FAILED"
	EventTypeOrderCompleted    = "ORDER_COMPLETED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	SessionID string    `json:"session_id"`
	Timestamp time.Time `json:"timestamp"`
}

// CheckoutStartedEvent published when an order is created from a cart
type CheckoutStartedEvent struct {
	BaseEvent
	OrderID   string `json:"order_id"`
	ItemCount int    `json:"item_count"`
	Subtotal  string `json:"subtotal"`
	Tax       string `json:"tax"`
	Total     string `json:"total"`
}

// CheckoutCancelledEvent published when an active checkout is discarded
type CheckoutCancelledEvent struct {
	BaseEvent
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}

// PaymentSucceededEvent published when the simulated payment goes through
type PaymentSucceededEvent struct {
	BaseEvent
	OrderID string `json:"order_id"`
	Amount  string `json:"amount"`
}

// PaymentFailedEvent published when the simulated payment is declined
type PaymentFailedEvent struct {
	BaseEvent
	OrderID string `json:"order_id"`
	Amount  string `json:"amount"`
	Reason  string `json:"reason"`
}

// OrderCompletedEvent published once the receipt was read and the cart cleared
type OrderCompletedEvent struct {
	BaseEvent
	OrderID string      `json:"order_id"`
	Items   []OrderLine `json:"items"`
	Total   string      `json:"total"`
}
