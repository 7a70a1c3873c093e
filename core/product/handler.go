package product

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/irsalhamdi/selfcrafted/api/web"
	"github.com/irsalhamdi/selfcrafted/api/weberr"
	"github.com/irsalhamdi/selfcrafted/core/fault"
	"github.com/irsalhamdi/selfcrafted/database"
	"github.com/irsalhamdi/selfcrafted/validate"
)

const maxPageSize = 50

type Store interface {
	FetchProduct(ctx context.Context, id string) (Product, error)
	ListProducts(ctx context.Context, page, size int) ([]Product, error)
	CreateProduct(ctx context.Context, p Product) error
	SetStock(ctx context.Context, id string, stock Stock) error
	// DecreaseStock takes qty units off the count only when that many are
	// left, and reports how many rows changed.
	DecreaseStock(ctx context.Context, id string, qty int) (int, error)
}

// Fetch loads a product and converts a missing row into a NotFound fault.
func Fetch(ctx context.Context, st Store, id string) (Product, error) {
	if err := validate.CheckID(id); err != nil {
		return Product{}, fault.NotFound("product", id)
	}

	p, err := st.FetchProduct(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return Product{}, fault.NotFound("product", id)
	}
	if err != nil {
		return Product{}, fmt.Errorf("fetching product[%s]: %w", id, err)
	}
	return p, nil
}

func HandleList(st Store) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		page, size := Page(r)

		prods, err := st.ListProducts(ctx, page, size)
		if err != nil {
			return fmt.Errorf("listing products: %w", err)
		}

		return web.OK(ctx, w, prods)
	}
}

func HandleShow(st Store) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		p, err := Fetch(ctx, st, web.Param(r, "id"))
		if err != nil {
			return err
		}

		return web.OK(ctx, w, p)
	}
}

func HandleCreate(st Store) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var pn ProductNew
		if err := web.Decode(w, r, &pn); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if err := validate.Check(pn); err != nil {
			return &fault.ValidationError{Message: err.Error()}
		}

		now := time.Now().UTC()
		p := Product{
			ID:          validate.GenerateID(),
			Name:        pn.Name,
			Description: pn.Description,
			Price:       Price{Old: pn.PriceOld, New: pn.PriceNew},
			Stock:       Stock{Count: pn.Stock, Status: StockStatus(pn.Stock)},
			Images:      make([]Image, 0, len(pn.Images)),
			Tags:        make([]Tag, 0, len(pn.Tags)),
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		for _, u := range pn.Images {
			p.Images = append(p.Images, Image{URL: u})
		}
		for _, t := range pn.Tags {
			p.Tags = append(p.Tags, Tag{Tag: t})
		}

		if err := st.CreateProduct(ctx, p); err != nil {
			return fmt.Errorf("creating product: %w", err)
		}

		return web.Respond(ctx, w, web.Result{Data: p}, http.StatusCreated)
	}
}

func HandleUpdateStock(st Store) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		id := web.Param(r, "id")

		var up StockUp
		if err := web.Decode(w, r, &up); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}
		if err := validate.Check(up); err != nil {
			return &fault.ValidationError{Message: err.Error()}
		}

		if _, err := Fetch(ctx, st, id); err != nil {
			return err
		}

		stock := Stock{Count: up.Count, Status: StockStatus(up.Count)}
		if err := st.SetStock(ctx, id, stock); err != nil {
			return fmt.Errorf("setting stock of product[%s]: %w", id, err)
		}

		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}

// Page reads the page and pageSize query parameters, clamping the size.
func Page(r *http.Request) (page, size int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	size, _ = strconv.Atoi(r.URL.Query().Get("pageSize"))
	if size < 1 || size > maxPageSize {
		size = maxPageSize
	}
	return page, size
}
