// Package payment describes notifications received from the payment
// gateway.
package payment

import (
	"encoding/json"
	"time"
)

// EventType is the gateway's name for a notification.
type EventType string

const (
	OrderCompleted  EventType = "checkout.order.completed"
	OrderFailed     EventType = "checkout.order.failed"
	RefundAccepted  EventType = "pg.refund.accepted"
	RefundCompleted EventType = "pg.refund.completed"
	RefundFailed    EventType = "pg.refund.failed"
)

// Known reports whether t is one of the notifications till acts on.
func (t EventType) Known() bool {
	switch t {
	case OrderCompleted, OrderFailed, RefundAccepted, RefundCompleted, RefundFailed:
		return true
	}
	return false
}

// IsRefund reports whether t concerns a refund rather than an order.
func (t EventType) IsRefund() bool {
	return t == RefundAccepted || t == RefundCompleted || t == RefundFailed
}

// Payload is the gateway's description of the order or refund.
type Payload struct {
	MerchantOrderID string          `json:"merchantOrderId,omitempty"`
	OrderID         string          `json:"orderId,omitempty"`
	RefundID        string          `json:"refundId,omitempty"`
	State           string          `json:"state"`
	Amount          int64           `json:"amount"`
	Raw             json.RawMessage `json:"-"`
}

// Reference returns the merchant order id, falling back to the gateway's.
func (p Payload) Reference() string {
	if p.MerchantOrderID != "" {
		return p.MerchantOrderID
	}
	return p.OrderID
}

// Event is one verified gateway notification.
type Event struct {
	ID         string    `json:"id"`
	Type       EventType `json:"event"`
	Payload    Payload   `json:"payload"`
	ReceivedAt time.Time `json:"received_at"`
}

// DedupeKey identifies a notification across gateway retries. It is empty
// when the payload names no order, since such deliveries cannot be told apart.
func (e *Event) DedupeKey() string {
	ref := e.Payload.Reference()
	if ref == "" {
		return ""
	}
	return string(e.Type) + ":" + ref + ":" + e.Payload.State
}
