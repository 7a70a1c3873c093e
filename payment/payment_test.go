package payment_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/irsalhamdi/selfcrafted/payment"
)

func TestAsError(t *testing.T) {
	declined := &payment.Error{Status: http.StatusPaymentRequired, Code: "CARD_DECLINED", Description: "declined"}
	if got := payment.AsError(fmt.Errorf("creating order: %w", declined)); !errors.Is(got, declined) {
		t.Fatalf("typed error was rewrapped: %v", got)
	}

	var pe *payment.Error
	if !errors.As(payment.AsError(errors.New("dial tcp: timeout")), &pe) {
		t.Fatal("expected a payment error")
	}
	if _, status := pe.Response(); status != http.StatusBadGateway || pe.Code != "GATEWAY_ERROR" {
		t.Fatalf("unexpected error: status=%d code=%s", status, pe.Code)
	}
}
