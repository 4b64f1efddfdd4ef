package domain

import (
	"errors"
	"strings"
	"time"
)

type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderProcessing OrderStatus = "processing"
	OrderShipped    OrderStatus = "shipped"
	OrderDelivered  OrderStatus = "delivered"
	OrderCancelled  OrderStatus = "cancelled"
)

var ErrIllegalTransition = errors.New("illegal order status transition")

// OrderStatuses lists every status in happy-path order.
var OrderStatuses = []OrderStatus{OrderPending, OrderProcessing, OrderShipped, OrderDelivered, OrderCancelled}

var nextStatus = map[OrderStatus]OrderStatus{
	OrderPending:    OrderProcessing,
	OrderProcessing: OrderShipped,
	OrderShipped:    OrderDelivered,
}

func ParseOrderStatus(s string) (OrderStatus, bool) {
	st := OrderStatus(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range OrderStatuses {
		if st == known {
			return st, true
		}
	}
	return "", false
}

func (s OrderStatus) IsTerminal() bool {
	return s == OrderDelivered || s == OrderCancelled
}

// CanTransitionTo allows one step along pending→processing→shipped→delivered,
// or cancellation from any non-terminal status.
func (s OrderStatus) CanTransitionTo(to OrderStatus) bool {
	if s.IsTerminal() {
		return false
	}
	if to == OrderCancelled {
		return true
	}
	return nextStatus[s] == to
}

// Next returns the statuses an admin may move an order to from s.
func (s OrderStatus) Next() []OrderStatus {
	var out []OrderStatus
	for _, to := range OrderStatuses {
		if s.CanTransitionTo(to) {
			out = append(out, to)
		}
	}
	return out
}

func (s OrderStatus) String() string { return string(s) }

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
)

const (
	PaymentMethodMpesa = "mpesa"
	OrderTypeOnline    = "online"
)

type Address struct {
	Street     string `json:"street"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

// ResolvedLine is a cart line joined against a catalog snapshot. UnitPrice is the
// price at resolution time and is what the order keeps.
type ResolvedLine struct {
	ProductID    string `json:"productId"`
	Quantity     int    `json:"quantity"`
	UnitPrice    int64  `json:"price"`
	ProductName  string `json:"productName"`
	ProductImage string `json:"productImage"`
}

func (l ResolvedLine) Subtotal() int64 { return l.UnitPrice * int64(l.Quantity) }

// LinesTotal is the exact sum of unit price times quantity.
func LinesTotal(lines []ResolvedLine) int64 {
	var total int64
	for _, l := range lines {
		total += l.Subtotal()
	}
	return total
}

type Order struct {
	ID               string         `json:"id"`
	CustomerID       string         `json:"customerId"`
	Items            []ResolvedLine `json:"items"`
	TotalAmount      int64          `json:"totalAmount"`
	Status           OrderStatus    `json:"status"`
	OrderType        string         `json:"orderType"`
	ShippingAddress  Address        `json:"shippingAddress"`
	PaymentStatus    PaymentStatus  `json:"paymentStatus"`
	PaymentMethod    string         `json:"paymentMethod"`
	PaymentReference string         `json:"paymentReference,omitempty"`
	TrackingNumber   string         `json:"trackingNumber,omitempty"`
	Notes            string         `json:"notes,omitempty"`
	CreatedAt        time.Time      `json:"createdAt"`
	UpdatedAt        time.Time      `json:"updatedAt"`
}

func (o Order) UnitCount() int {
	n := 0
	for _, it := range o.Items {
		n += it.Quantity
	}
	return n
}
