// Package paymenttest provides an in-process gateway for tests. It signs
// payments the way Razorpay does.
package paymenttest

import (
	"context"
	"fmt"
	"sync"

	"github.com/irsalhamdi/selfcrafted/payment"
	"github.com/irsalhamdi/selfcrafted/payment/razorpay"
)

const Secret = "test-secret"

type Gateway struct {
	// Err, when set, is returned by CreateOrder.
	Err error
	// VerifyErr, when set, is returned by Verify.
	VerifyErr error

	mu     sync.Mutex
	seq    int
	orders []payment.Order
}

func (g *Gateway) Name() string { return "razorpay" }

func (g *Gateway) KeyID() string { return "rzp_test" }

func (g *Gateway) CreateOrder(_ context.Context, amount int64, currency, receipt string) (payment.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.Err != nil {
		return payment.Order{}, g.Err
	}

	g.seq++
	ord := payment.Order{
		ID:       fmt.Sprintf("order_%d", g.seq),
		Amount:   amount,
		Currency: currency,
		Receipt:  receipt,
	}
	g.orders = append(g.orders, ord)
	return ord, nil
}

func (g *Gateway) Verify(_ context.Context, cf payment.Confirmation) error {
	if g.VerifyErr != nil {
		return g.VerifyErr
	}
	if razorpay.Signature(Secret, cf.OrderID, cf.PaymentID) != cf.Signature {
		return payment.ErrSignature
	}
	return nil
}

// Orders returns every order minted so far.
func (g *Gateway) Orders() []payment.Order {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]payment.Order(nil), g.orders...)
}

// Confirm returns a correctly signed confirmation for orderID.
func Confirm(orderID, paymentID string) payment.Confirmation {
	return payment.Confirmation{
		OrderID:   orderID,
		PaymentID: paymentID,
		Signature: razorpay.Signature(Secret, orderID, paymentID),
	}
}
