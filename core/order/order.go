// Package order turns an active cart into a gateway order and settles it
// once the gateway confirms the payment.
package order

import (
	"context"

	"github.com/irsalhamdi/selfcrafted/core/address"
	"github.com/irsalhamdi/selfcrafted/core/cart"
	"github.com/irsalhamdi/selfcrafted/payment"
)

type Config struct {
	DeliveryFee int
	Currency    string
}

// Input is the body of a checkout request.
type Input struct {
	CartID  string          `json:"cartId" validate:"required"`
	Address address.Address `json:"address"`
}

// Checkout is what the client needs to open the payment widget. Amount is in
// minor units.
type Checkout struct {
	OrderID  string `json:"orderId"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	CartID   string `json:"cartId"`
	KeyID    string `json:"keyId"`
}

type Confirmed struct {
	CartID           string `json:"cartId"`
	Amount           int    `json:"amount"`
	AlreadyConfirmed bool   `json:"alreadyConfirmed"`
}

// OrderUp is written onto a cart once its gateway order exists.
type OrderUp struct {
	OrderID string
	Price   int
	Address address.Address
	Items   []cart.Item
}

type Store interface {
	FetchCart(ctx context.Context, id string) (cart.Cart, error)
	FetchCartByOrder(ctx context.Context, orderID string) (cart.Cart, error)
	// SetCartOrder stores a new gateway order on an active cart whose
	// current order id is still prevOrderID ("" for none).
	SetCartOrder(ctx context.Context, cartID, prevOrderID string, up OrderUp) (int, error)
	SetCartAddress(ctx context.Context, cartID, orderID string, addr address.Address) (int, error)
	// MarkCartPaid moves the active cart holding cf.OrderID to paid and
	// stores the confirmation fields.
	MarkCartPaid(ctx context.Context, cf payment.Confirmation) (int, error)
	MarkCartFailed(ctx context.Context, cartID, orderID string) (int, error)
}

func sameItems(a, b []cart.Item) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
