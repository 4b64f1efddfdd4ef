// Package events publishes storefront domain events to a message broker.
package events

import (
	"context"
	"time"

	"kinara/internal/domain"
)

const OrderCreatedPattern = "order.created"

// Publisher sends one event under a routing pattern.
type Publisher interface {
	Publish(ctx context.Context, pattern string, data any) error
}

// Message is the wire envelope: {"pattern": ..., "data": ...}.
type Message struct {
	Pattern string `json:"pattern"`
	Data    any    `json:"data"`
	ID      string `json:"id,omitempty"`
}

type OrderCreated struct {
	OrderID     string    `json:"orderId"`
	CustomerID  string    `json:"customerId"`
	TotalAmount int64     `json:"totalAmount"`
	ItemCount   int       `json:"itemCount"`
	PaymentRef  string    `json:"paymentReference,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

func NewOrderCreated(o domain.Order) OrderCreated {
	return OrderCreated{
		OrderID:     o.ID,
		CustomerID:  o.CustomerID,
		TotalAmount: o.TotalAmount,
		ItemCount:   o.UnitCount(),
		PaymentRef:  o.PaymentReference,
		CreatedAt:   o.CreatedAt,
	}
}

// Nop drops every event. Used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, string, any) error { return nil }
