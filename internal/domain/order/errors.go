package order

import (
	"fmt"

	"github.com/go-faster/errors"
)

// Sentinel errors for the lifecycle error taxonomy. All expected failures are
// returned to the caller; nothing is retried inside the core.
var (
	ErrNotFound            = errors.New("order not found")
	ErrActorNotAuthorized  = errors.New("actor not authorized for this transition")
	ErrTransferCodeExpired = errors.New("transfer code expired")
	ErrInsufficientBalance = errors.New("insufficient wallet balance")
)

// InvalidTransitionError indicates an event was attempted from a state that
// does not permit it. The order is left unchanged.
type InvalidTransitionError struct {
	OrderID string
	From    Status
	Event   string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("order %s: cannot %s while %s", e.OrderID, e.Event, e.From)
}

// PaymentCaptureError wraps a gateway capture failure. The wallet is never
// debited when this is returned.
type PaymentCaptureError struct {
	OrderID string
	Err     error
}

func (e *PaymentCaptureError) Error() string {
	return fmt.Sprintf("order %s: payment capture failed: %v", e.OrderID, e.Err)
}

func (e *PaymentCaptureError) Unwrap() error {
	return e.Err
}

// ValidationError indicates malformed command input (non-positive amount,
// empty code, expiry in the past, unknown method or outcome).
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func invalidTransition(o *Order, event string) error {
	return &InvalidTransitionError{OrderID: o.ID, From: o.Status, Event: event}
}
