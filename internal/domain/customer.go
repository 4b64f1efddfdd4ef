package domain

import "time"

type CustomerAddress struct {
	Address
	IsDefault bool `json:"isDefault"`
}

type Customer struct {
	ID            string            `json:"id"`
	FirstName     string            `json:"firstName"`
	LastName      string            `json:"lastName"`
	Phone         string            `json:"phone"`
	Email         string            `json:"email"`
	Addresses     []CustomerAddress `json:"addresses,omitempty"`
	CreatedAt     time.Time         `json:"createdAt"`
	UpdatedAt     time.Time         `json:"updatedAt"`
	TotalOrders   int               `json:"totalOrders"`
	TotalSpent    int64             `json:"totalSpent"`
	LastOrderDate *time.Time        `json:"lastOrderDate,omitempty"`
}

func (c Customer) FullName() string {
	if c.LastName == "" {
		return c.FirstName
	}
	return c.FirstName + " " + c.LastName
}

// AverageOrder is total spent over orders, counting at least one order.
func (c Customer) AverageOrder() int64 {
	n := c.TotalOrders
	if n < 1 {
		n = 1
	}
	return c.TotalSpent / int64(n)
}

type CustomerStatus string

const (
	CustomerNew      CustomerStatus = "New"
	CustomerActive   CustomerStatus = "Active"
	CustomerRecent   CustomerStatus = "Recent"
	CustomerInactive CustomerStatus = "Inactive"
)

// Status labels a customer by days since their last order.
func (c Customer) Status(now time.Time) CustomerStatus {
	if c.LastOrderDate == nil {
		return CustomerNew
	}
	days := int(now.Sub(*c.LastOrderDate).Hours() / 24)
	switch {
	case days <= 30:
		return CustomerActive
	case days <= 90:
		return CustomerRecent
	default:
		return CustomerInactive
	}
}
