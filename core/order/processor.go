package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/irsalhamdi/selfcrafted/core/cart"
	"github.com/irsalhamdi/selfcrafted/core/fault"
	"github.com/irsalhamdi/selfcrafted/core/product"
	"github.com/irsalhamdi/selfcrafted/core/purchase"
	"github.com/irsalhamdi/selfcrafted/database"
	"github.com/irsalhamdi/selfcrafted/payment"
	"github.com/sirupsen/logrus"
)

type Processor struct {
	store     Store
	products  product.Store
	purchases purchase.Store
	gw        payment.Gateway
	log       logrus.FieldLogger
}

func NewProcessor(st Store, products product.Store, purchases purchase.Store, gw payment.Gateway, log logrus.FieldLogger) *Processor {
	return &Processor{store: st, products: products, purchases: purchases, gw: gw, log: log}
}

// Confirm settles the cart holding cf.OrderID. Only the call that moves the
// cart to paid decrements stock and records the purchase; repeated calls
// for the same order succeed with AlreadyConfirmed set.
func (p *Processor) Confirm(ctx context.Context, cf payment.Confirmation) (Confirmed, error) {
	if !cf.Complete() {
		return Confirmed{}, fault.Validation("invalid payment details")
	}

	if err := p.gw.Verify(ctx, cf); err != nil {
		if errors.Is(err, payment.ErrSignature) {
			p.log.WithFields(logrus.Fields{"order_id": cf.OrderID, "payment_id": cf.PaymentID}).Warn("payment signature rejected")
			return Confirmed{}, fault.Validation("payment could not be verified")
		}
		return Confirmed{}, payment.AsError(err)
	}

	n, err := p.store.MarkCartPaid(ctx, cf)
	if err != nil {
		return Confirmed{}, fmt.Errorf("marking order[%s] paid: %w", cf.OrderID, err)
	}

	c, err := p.store.FetchCartByOrder(ctx, cf.OrderID)
	if errors.Is(err, database.ErrNotFound) {
		return Confirmed{}, fault.NotFound("order", cf.OrderID)
	}
	if err != nil {
		return Confirmed{}, fmt.Errorf("fetching cart of order[%s]: %w", cf.OrderID, err)
	}

	if n == 0 {
		if c.Status == cart.StatusPaid {
			return Confirmed{CartID: c.ID, Amount: c.Price, AlreadyConfirmed: true}, nil
		}
		return Confirmed{}, fault.Conflict("order is already %s", c.Status)
	}

	lines := c.OrderItems
	if len(lines) == 0 {
		lines = c.Items
	}
	names := p.fulfill(ctx, c.ID, lines)

	pur := purchase.Purchase{
		PaymentStatus:    purchase.StatusPaid,
		PaymentMethod:    p.gw.Name(),
		PaymentID:        cf.OrderID,
		PaymentIDB:       cf.PaymentID,
		PaymentSignature: cf.Signature,
		Amount:           c.Price,
		BillingAddress:   c.Address,
		ShippingAddress:  c.Address,
		CartID:           c.ID,
		ClientID:         c.ClientID,
		UID:              c.UID,
		Items:            snapshot(lines, names),
	}
	if _, err := p.purchases.InsertPurchase(ctx, pur); err != nil {
		p.log.WithFields(logrus.Fields{"cart_id": c.ID, "order_id": cf.OrderID, "error": err}).Warn("recording purchase after payment")
	}

	return Confirmed{CartID: c.ID, Amount: c.Price}, nil
}

// fulfill takes the sold units off stock and returns the current name of
// every product. Failures are logged and do not undo the payment.
func (p *Processor) fulfill(ctx context.Context, cartID string, lines []cart.Item) map[string]string {
	names := make(map[string]string, len(lines))

	for _, it := range lines {
		log := p.log.WithFields(logrus.Fields{"cart_id": cartID, "product_id": it.ProductID, "qty": it.Qty})

		if prod, err := p.products.FetchProduct(ctx, it.ProductID); err == nil {
			names[it.ProductID] = prod.Name
		}

		n, err := p.products.DecreaseStock(ctx, it.ProductID, it.Qty)
		switch {
		case err != nil:
			log.WithField("error", err).Warn("decreasing stock")
		case n == 0:
			log.Warn("stock not decreased: product missing or not enough left")
		}
	}

	return names
}
