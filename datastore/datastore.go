// Package datastore implements the stores of every core package, once on
// Postgres and once in memory. Both honour the same conditional updates, so
// tests against Memory hold for Postgres.
package datastore

import (
	"github.com/google/uuid"
	"github.com/irsalhamdi/selfcrafted/core/cart"
	"github.com/irsalhamdi/selfcrafted/core/order"
	"github.com/irsalhamdi/selfcrafted/core/printrequest"
	"github.com/irsalhamdi/selfcrafted/core/product"
	"github.com/irsalhamdi/selfcrafted/core/purchase"
	"github.com/irsalhamdi/selfcrafted/core/user"
)

// Store is everything the core packages persist.
type Store interface {
	cart.Store
	order.Store
	product.Store
	purchase.Store
	user.Store
	printrequest.Store
}

var (
	_ Store = (*Memory)(nil)
	_ Store = (*Postgres)(nil)
)

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
