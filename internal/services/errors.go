package services

import (
	"errors"
	"fmt"
)

var ErrEmptyCart = errors.New("cart is empty")

// ValidationError is a rejected input. Nothing was sent to the store.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Reason == "" && e.Err != nil {
		return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Err }

type CheckoutStage string

const (
	StageCustomer CheckoutStage = "customer"
	StageOrder    CheckoutStage = "order"
)

// CheckoutFailed is a submission error. The cart is left as it was.
type CheckoutFailed struct {
	Stage CheckoutStage
	Err   error
}

func (e *CheckoutFailed) Error() string {
	return fmt.Sprintf("checkout failed at %s: %v", e.Stage, e.Err)
}

func (e *CheckoutFailed) Unwrap() error { return e.Err }

// PartialSubmission means the customer record was written but the order was not
// and the customer could not be removed again. It unwraps to a *CheckoutFailed.
type PartialSubmission struct {
	CustomerID string
	Err        error
}

func (e *PartialSubmission) Error() string {
	return fmt.Sprintf("order not created, customer %s left behind: %v", e.CustomerID, e.Err)
}

func (e *PartialSubmission) Unwrap() error {
	return &CheckoutFailed{Stage: StageOrder, Err: e.Err}
}
