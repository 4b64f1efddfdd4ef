// Package payment initiates customer payments for placed orders.
package payment

import (
	"context"
	"errors"
)

// ErrNotImplemented is returned by gateways that cannot take payments.
var ErrNotImplemented = errors.New("payment initiation not implemented")

type Request struct {
	OrderID string
	Phone   string // MSISDN, 2547XXXXXXXX
	Amount  int64  // KES
}

type Result struct {
	Reference string
	Message   string
}

type Gateway interface {
	Initiate(ctx context.Context, req Request) (Result, error)
}

// Stub is the gateway used when no payment provider is configured. It never succeeds.
type Stub struct{}

func (Stub) Initiate(context.Context, Request) (Result, error) {
	return Result{}, ErrNotImplemented
}
