// Package payment defines what the checkout needs from a payment provider:
// minting an order for an amount and verifying that a payment settled it.
package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/irsalhamdi/selfcrafted/api/weberr"
)

// ErrSignature reports a confirmation that the provider did not sign.
var ErrSignature = errors.New("payment signature mismatch")

// Order is an order minted by a provider. Amount is in minor units.
type Order struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
}

// Confirmation is what the client sends back once the payment widget closes.
type Confirmation struct {
	OrderID   string
	PaymentID string
	Signature string
	// Amount is the charged amount in minor units as reported by the
	// payment widget, zero when the client did not send it.
	Amount int64
}

func (c Confirmation) Complete() bool {
	return c.OrderID != "" && c.PaymentID != "" && c.Signature != ""
}

type Gateway interface {
	Name() string
	KeyID() string
	CreateOrder(ctx context.Context, amount int64, currency, receipt string) (Order, error)
	Verify(ctx context.Context, c Confirmation) error
}

// Error is a failure reported by the provider itself.
type Error struct {
	Status      int
	Code        string
	Description string
}

func (e *Error) Error() string {
	return fmt.Sprintf("payment gateway: %d %s: %s", e.Status, e.Code, e.Description)
}

func (e *Error) Response() (any, int) {
	status := e.Status
	if status < http.StatusBadRequest {
		status = http.StatusBadGateway
	}
	msg := e.Description
	if msg == "" {
		msg = "payment gateway unavailable"
	}
	return weberr.ErrorResponse{Error: true, Message: msg}, status
}

func (e *Error) Fields() map[string]any {
	return map[string]any{"gateway_status": e.Status, "gateway_code": e.Code}
}

// AsError keeps provider failures typed so they render with the provider's
// status. Failures that never reached the provider become a 502.
func AsError(err error) error {
	var perr *Error
	if errors.As(err, &perr) {
		return err
	}
	return &Error{
		Status:      http.StatusBadGateway,
		Code:        "GATEWAY_ERROR",
		Description: fmt.Sprintf("payment gateway error: %v", err),
	}
}
