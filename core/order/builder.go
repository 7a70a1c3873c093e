package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/irsalhamdi/selfcrafted/core/address"
	"github.com/irsalhamdi/selfcrafted/core/cart"
	"github.com/irsalhamdi/selfcrafted/core/fault"
	"github.com/irsalhamdi/selfcrafted/core/identity"
	"github.com/irsalhamdi/selfcrafted/core/product"
	"github.com/irsalhamdi/selfcrafted/core/purchase"
	"github.com/irsalhamdi/selfcrafted/database"
	"github.com/irsalhamdi/selfcrafted/payment"
	"github.com/irsalhamdi/selfcrafted/validate"
	"github.com/sirupsen/logrus"
)

type Builder struct {
	store     Store
	products  product.Store
	purchases purchase.Store
	gw        payment.Gateway
	cfg       Config
	log       logrus.FieldLogger
}

func NewBuilder(st Store, products product.Store, purchases purchase.Store, gw payment.Gateway, cfg Config, log logrus.FieldLogger) *Builder {
	return &Builder{store: st, products: products, purchases: purchases, gw: gw, cfg: cfg, log: log}
}

// Create prices the cart from the live product rows and mints a gateway
// order for it. A pending order for the same amount and items is reused.
func (b *Builder) Create(ctx context.Context, id identity.Identity, in Input) (Checkout, error) {
	c, err := b.ownedCart(ctx, id, in.CartID)
	if err != nil {
		return Checkout{}, err
	}

	if c.Status != cart.StatusActive {
		return Checkout{}, fault.NotFound("cart", c.ID)
	}
	if len(c.Items) == 0 {
		return Checkout{}, fault.Validation("Order cart is empty")
	}

	addr, err := address.Validate(in.Address)
	if err != nil {
		return Checkout{}, err
	}

	items, subtotal, err := b.price(ctx, c.Items)
	if err != nil {
		return Checkout{}, err
	}
	if subtotal == 0 {
		return Checkout{}, fault.Validation("Order cart total is 0")
	}
	total := subtotal + b.cfg.DeliveryFee

	out := Checkout{
		Amount:   int64(total) * 100,
		Currency: b.cfg.Currency,
		CartID:   c.ID,
		KeyID:    b.gw.KeyID(),
	}

	if c.PaymentIDA != "" && c.Price == total && sameItems(c.OrderItems, items) {
		n, err := b.store.SetCartAddress(ctx, c.ID, c.PaymentIDA, addr)
		if err != nil {
			return Checkout{}, fmt.Errorf("updating address of cart[%s]: %w", c.ID, err)
		}
		if n == 0 {
			return Checkout{}, fault.Conflict("checkout changed concurrently, please retry")
		}

		out.OrderID = c.PaymentIDA
		return out, nil
	}

	ord, err := b.gw.CreateOrder(ctx, out.Amount, b.cfg.Currency, c.ID)
	if err != nil {
		return Checkout{}, payment.AsError(err)
	}

	up := OrderUp{OrderID: ord.ID, Price: total, Address: addr, Items: items}
	n, err := b.store.SetCartOrder(ctx, c.ID, c.PaymentIDA, up)
	if err != nil {
		b.orphan(ord.ID, c.ID, err)
		return Checkout{}, fmt.Errorf("storing order[%s] on cart[%s]: %w", ord.ID, c.ID, err)
	}
	if n == 0 {
		b.orphan(ord.ID, c.ID, nil)
		return Checkout{}, fault.Conflict("checkout changed concurrently, please retry")
	}

	out.OrderID = ord.ID
	return out, nil
}

// Fail records that the payment of a pending order did not go through. The
// cart becomes terminal and a failed purchase is kept for the history.
func (b *Builder) Fail(ctx context.Context, id identity.Identity, cartID, orderID string) error {
	c, err := b.ownedCart(ctx, id, cartID)
	if err != nil {
		return err
	}
	if orderID == "" || c.PaymentIDA != orderID {
		return fault.NotFound("order", orderID)
	}

	n, err := b.store.MarkCartFailed(ctx, c.ID, orderID)
	if err != nil {
		return fmt.Errorf("failing cart[%s]: %w", c.ID, err)
	}
	if n == 0 {
		if c.Status == cart.StatusFailed {
			return nil
		}
		cur, err := b.store.FetchCart(ctx, c.ID)
		if err != nil {
			return fmt.Errorf("refetching cart[%s]: %w", c.ID, err)
		}
		if cur.Status == cart.StatusFailed {
			return nil
		}
		return fault.Conflict("order is already %s", cur.Status)
	}

	p := purchase.Purchase{
		PaymentStatus:   purchase.StatusFailed,
		PaymentMethod:   b.gw.Name(),
		PaymentID:       orderID,
		Amount:          c.Price,
		BillingAddress:  c.Address,
		ShippingAddress: c.Address,
		CartID:          c.ID,
		ClientID:        c.ClientID,
		UID:             c.UID,
		Items:           snapshot(c.OrderItems, nil),
	}
	if _, err := b.purchases.InsertPurchase(ctx, p); err != nil {
		b.log.WithFields(logrus.Fields{"cart_id": c.ID, "order_id": orderID, "error": err}).Warn("recording failed purchase")
	}
	return nil
}

func (b *Builder) ownedCart(ctx context.Context, id identity.Identity, cartID string) (cart.Cart, error) {
	if err := validate.CheckID(cartID); err != nil {
		return cart.Cart{}, fault.NotFound("cart", cartID)
	}

	c, err := b.store.FetchCart(ctx, cartID)
	if errors.Is(err, database.ErrNotFound) {
		return cart.Cart{}, fault.NotFound("cart", cartID)
	}
	if err != nil {
		return cart.Cart{}, fmt.Errorf("fetching cart[%s]: %w", cartID, err)
	}

	if !id.Owns(c.ClientID, c.UID) {
		return cart.Cart{}, fault.Forbidden("cart does not belong to this client")
	}
	return c, nil
}

// price re-reads every line from the products table.
func (b *Builder) price(ctx context.Context, lines []cart.Item) ([]cart.Item, int, error) {
	items := make([]cart.Item, 0, len(lines))
	var subtotal int

	for _, it := range lines {
		p, err := b.products.FetchProduct(ctx, it.ProductID)
		if errors.Is(err, database.ErrNotFound) {
			return nil, 0, fault.Validation("One or more products in the cart are invalid")
		}
		if err != nil {
			return nil, 0, fmt.Errorf("fetching product[%s]: %w", it.ProductID, err)
		}

		if it.Qty > p.Stock.Count {
			return nil, 0, &fault.OutOfStockError{ProductID: p.ID, Available: p.Stock.Count, Requested: it.Qty}
		}

		items = append(items, cart.Item{ProductID: p.ID, Qty: it.Qty, Price: p.Price.New})
		subtotal += p.Price.New * it.Qty
	}

	return items, subtotal, nil
}

func (b *Builder) orphan(orderID, cartID string, err error) {
	log := b.log.WithFields(logrus.Fields{"order_id": orderID, "cart_id": cartID})
	if err != nil {
		log = log.WithField("error", err)
	}
	log.Warn("gateway order orphaned, reconcile with the provider")
}

func snapshot(items []cart.Item, names map[string]string) []purchase.Item {
	out := make([]purchase.Item, 0, len(items))
	for _, it := range items {
		out = append(out, purchase.Item{
			ProductID: it.ProductID,
			Name:      names[it.ProductID],
			Qty:       it.Qty,
			Price:     it.Price,
		})
	}
	return out
}
