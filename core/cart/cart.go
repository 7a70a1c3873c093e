package cart

import (
	"context"
	"time"

	"github.com/irsalhamdi/selfcrafted/core/address"
)

const (
	StatusActive = "active"
	StatusPaid   = "paid"
	StatusFailed = "failed"
)

type Cart struct {
	ID               string           `json:"id"`
	ClientID         string           `json:"-"`
	UID              string           `json:"-"`
	Items            []Item           `json:"list"`
	Status           string           `json:"status"`
	Price            int              `json:"price,omitempty"`
	PaymentIDA       string           `json:"orderId,omitempty"`
	PaymentIDB       string           `json:"-"`
	PaymentSignature string           `json:"-"`
	Address          *address.Address `json:"address,omitempty"`
	OrderItems       []Item           `json:"-"`
	CreatedAt        time.Time        `json:"createdAt"`
	UpdatedAt        time.Time        `json:"updatedAt"`
}

// Item is one cart line. Price is the price seen when the item was added and
// is informational only.
type Item struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
	Price     int    `json:"price"`
}

type ItemChange struct {
	ProductID string `json:"productId" validate:"required"`
	Qty       int    `json:"qty"`
	Absolute  bool   `json:"absolute"`
}

type Store interface {
	// GetCartByUID returns the active cart visible to the client, preferring
	// the one owned by uid. It fails with database.ErrNotFound.
	GetCartByUID(ctx context.Context, clientID, uid string) (Cart, error)
	// CreateCart does nothing when an active cart already exists for the
	// same client or user.
	CreateCart(ctx context.Context, c Cart) error
	// UpdateCartByID replaces the item list of an active cart owned by the
	// caller and reports how many rows changed.
	UpdateCartByID(ctx context.Context, clientID, cartID string, items []Item, status, uid string) (int, error)
	// AttachCartUser hands the guest cart of clientID to uid unless uid
	// already has an active cart.
	AttachCartUser(ctx context.Context, clientID, uid string) error
}

// Count is the number of units in items, as shown on the cart badge.
func Count(items []Item) int {
	var n int
	for _, it := range items {
		n += it.Qty
	}
	return n
}
