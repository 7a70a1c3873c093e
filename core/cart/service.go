package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/irsalhamdi/selfcrafted/core/fault"
	"github.com/irsalhamdi/selfcrafted/core/identity"
	"github.com/irsalhamdi/selfcrafted/database"
	"github.com/irsalhamdi/selfcrafted/validate"
	"github.com/sirupsen/logrus"
)

type Service struct {
	store Store
	log   logrus.FieldLogger
}

func NewService(st Store, log logrus.FieldLogger) *Service {
	return &Service{store: st, log: log}
}

// Change asks for a new quantity of one product. Price is the current price
// of the product, kept on the line for display.
type Change struct {
	ProductID string
	Qty       int
	Price     int
}

type Result struct {
	Cart      Cart `json:"cart"`
	ItemCount int  `json:"itemCount"`
}

// GetActive returns the active cart of the identity, creating an empty one
// on first use.
func (s *Service) GetActive(ctx context.Context, id identity.Identity) (Cart, error) {
	c, err := s.store.GetCartByUID(ctx, id.ClientID, id.UserID)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		return Cart{}, fmt.Errorf("fetching active cart: %w", err)
	}

	now := time.Now().UTC()
	nc := Cart{
		ID:        validate.GenerateID(),
		ClientID:  id.ClientID,
		UID:       id.UserID,
		Items:     []Item{},
		Status:    StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateCart(ctx, nc); err != nil {
		return Cart{}, fmt.Errorf("creating cart: %w", err)
	}

	c, err = s.store.GetCartByUID(ctx, id.ClientID, id.UserID)
	if errors.Is(err, database.ErrNotFound) {
		s.log.WithField("client_id", id.ClientID).Error("created cart is not visible")
		return Cart{}, fault.NotFound("cart", "")
	}
	if err != nil {
		return Cart{}, fmt.Errorf("fetching created cart: %w", err)
	}
	return c, nil
}

// ChangeQuantity sets (absolute) or shifts the quantity of one product and
// persists the whole item list. Quantities above currentStock are refused
// without touching the cart.
func (s *Service) ChangeQuantity(ctx context.Context, id identity.Identity, ch Change, currentStock int, absolute bool) (Result, error) {
	c, err := s.GetActive(ctx, id)
	if err != nil {
		return Result{}, err
	}

	items := make([]Item, len(c.Items))
	copy(items, c.Items)

	idx := -1
	for i, it := range items {
		if it.ProductID == ch.ProductID {
			idx = i
			break
		}
	}

	var inCart int
	if idx >= 0 {
		inCart = items[idx].Qty
	}

	next := ch.Qty
	if !absolute {
		next = inCart + ch.Qty
	}

	switch {
	case next < 0:
		return Result{}, fault.Validation("quantity cannot be negative")
	case next > currentStock:
		return Result{}, &fault.StockExceededError{ProductID: ch.ProductID, Available: currentStock, InCart: inCart}
	case next == 0 && idx >= 0:
		items = append(items[:idx], items[idx+1:]...)
	case next == 0:
	case idx >= 0:
		items[idx].Qty = next
		items[idx].Price = ch.Price
	default:
		items = append(items, Item{ProductID: ch.ProductID, Qty: next, Price: ch.Price})
	}

	n, err := s.store.UpdateCartByID(ctx, id.ClientID, c.ID, items, StatusActive, id.UserID)
	if err != nil {
		return Result{}, fmt.Errorf("updating cart[%s]: %w", c.ID, err)
	}
	if n == 0 {
		return Result{}, fault.Conflict("cart is no longer active")
	}

	c.Items = items
	return Result{Cart: c, ItemCount: Count(items)}, nil
}

// Claim hands the guest cart of clientID to a user who just signed in.
func (s *Service) Claim(ctx context.Context, clientID, userID string) error {
	if clientID == "" || userID == "" {
		return nil
	}
	if err := s.store.AttachCartUser(ctx, clientID, userID); err != nil {
		return fmt.Errorf("attaching cart of client[%s] to user[%s]: %w", clientID, userID, err)
	}
	return nil
}
