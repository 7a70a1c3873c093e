package cart

import (
	"context"
	"fmt"
	"net/http"

	"github.com/irsalhamdi/selfcrafted/api/web"
	"github.com/irsalhamdi/selfcrafted/api/weberr"
	"github.com/irsalhamdi/selfcrafted/core/fault"
	"github.com/irsalhamdi/selfcrafted/core/identity"
	"github.com/irsalhamdi/selfcrafted/core/product"
	"github.com/irsalhamdi/selfcrafted/validate"
)

func HandleShow(svc *Service) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		c, err := svc.GetActive(ctx, identity.FromContext(ctx))
		if err != nil {
			return err
		}

		return web.OK(ctx, w, Result{Cart: c, ItemCount: Count(c.Items)})
	}
}

// HandleChangeItem reads the stock from the product row, never from the
// request.
func HandleChangeItem(svc *Service, products product.Store) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var ic ItemChange
		if err := web.Decode(w, r, &ic); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if err := validate.Check(ic); err != nil {
			return &fault.ValidationError{Message: err.Error()}
		}

		p, err := product.Fetch(ctx, products, ic.ProductID)
		if err != nil {
			return err
		}

		ch := Change{ProductID: p.ID, Qty: ic.Qty, Price: p.Price.New}
		res, err := svc.ChangeQuantity(ctx, identity.FromContext(ctx), ch, p.Stock.Count, ic.Absolute)
		if err != nil {
			return err
		}

		return web.OK(ctx, w, res)
	}
}

func HandleDeleteItem(svc *Service) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		ch := Change{ProductID: web.Param(r, "product_id")}

		res, err := svc.ChangeQuantity(ctx, identity.FromContext(ctx), ch, 0, true)
		if err != nil {
			return err
		}

		return web.OK(ctx, w, res)
	}
}
