// Package purchase keeps the immutable record written once per settled
// payment, for both cart checkouts and print requests.
package purchase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/irsalhamdi/selfcrafted/api/web"
	"github.com/irsalhamdi/selfcrafted/api/weberr"
	"github.com/irsalhamdi/selfcrafted/core/address"
	"github.com/irsalhamdi/selfcrafted/core/claims"
)

const (
	StatusPaid   = "paid"
	StatusFailed = "failed"
)

// MethodPrintRequest suffixes the provider name of print-request payments so
// they can be told apart from cart checkouts.
const MethodPrintRequest = ":PrintRequest"

type Item struct {
	ProductID string `json:"product_id"`
	Name      string `json:"product_name"`
	Qty       int    `json:"qty"`
	Price     int    `json:"price"`
}

type Purchase struct {
	ID               int64            `json:"id"`
	PaymentStatus    string           `json:"paymentStatus"`
	PaymentMethod    string           `json:"paymentMethod"`
	PaymentID        string           `json:"paymentId"`
	PaymentIDB       string           `json:"paymentIdB,omitempty"`
	PaymentSignature string           `json:"-"`
	Amount           int              `json:"amount"`
	BillingAddress   *address.Address `json:"billingAddress,omitempty"`
	ShippingAddress  *address.Address `json:"shippingAddress,omitempty"`
	CartID           string           `json:"cartId"`
	ClientID         string           `json:"clientId"`
	UID              string           `json:"uid,omitempty"`
	Items            []Item           `json:"items"`
	CreatedAt        time.Time        `json:"createdAt"`
}

type Store interface {
	// InsertPurchase fails with database.ErrDuplicate when a purchase with
	// the same payment id exists.
	InsertPurchase(ctx context.Context, p Purchase) (int64, error)
	ListPurchasesByUser(ctx context.Context, uid string) ([]Purchase, error)
}

func HandleListOwned(st Store) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		ps, err := st.ListPurchasesByUser(ctx, clm.UserID)
		if err != nil {
			return fmt.Errorf("listing purchases of user[%s]: %w", clm.UserID, err)
		}

		return web.OK(ctx, w, ps)
	}
}
