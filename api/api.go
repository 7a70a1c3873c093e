package api

import (
	"context"
	"net/http"

	"github.com/alexedwards/scs/v2"
	"github.com/gorilla/mux"
	"github.com/irsalhamdi/selfcrafted/api/middleware"
	"github.com/irsalhamdi/selfcrafted/api/web"
	"github.com/irsalhamdi/selfcrafted/blob"
	"github.com/irsalhamdi/selfcrafted/config"
	"github.com/irsalhamdi/selfcrafted/core/auth"
	"github.com/irsalhamdi/selfcrafted/core/cart"
	"github.com/irsalhamdi/selfcrafted/core/claims"
	"github.com/irsalhamdi/selfcrafted/core/identity"
	"github.com/irsalhamdi/selfcrafted/core/order"
	"github.com/irsalhamdi/selfcrafted/core/printrequest"
	"github.com/irsalhamdi/selfcrafted/core/product"
	"github.com/irsalhamdi/selfcrafted/core/purchase"
	"github.com/irsalhamdi/selfcrafted/core/user"
	"github.com/irsalhamdi/selfcrafted/datastore"
	"github.com/irsalhamdi/selfcrafted/payment"
	"github.com/irsalhamdi/selfcrafted/rate"
	"github.com/sirupsen/logrus"
)

type APIConfig struct {
	CorsOrigin   string
	SecureCookie bool
	Log          logrus.FieldLogger
	Store        datastore.Store
	Session      *scs.SessionManager
	Gateway      payment.Gateway
	// Events is set when the provider confirms payments through webhooks.
	Events   order.EventSource
	Blobs    blob.Store
	Limiter  *rate.Limiter
	Checkout config.Checkout
	Auth     config.Auth
	Storage  config.Storage
}

type api struct {
	*mux.Router
	mw  []web.Middleware
	log logrus.FieldLogger
}

func APIMux(cfg APIConfig) http.Handler {
	a := &api{
		Router: mux.NewRouter(),
		log:    cfg.Log,
	}

	a.mw = append(a.mw, auth.LoadAndSave(cfg.Session))
	a.mw = append(a.mw, middleware.RequestID())
	a.mw = append(a.mw, identity.Middleware(cfg.SecureCookie))
	a.mw = append(a.mw, auth.Identify(cfg.Session))
	a.mw = append(a.mw, middleware.Logger(cfg.Log))
	a.mw = append(a.mw, middleware.Errors(cfg.Log))
	a.mw = append(a.mw, middleware.Panics())

	if cfg.CorsOrigin != "" {
		a.mw = append(a.mw, middleware.Cors(cfg.CorsOrigin))

		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			w.WriteHeader(http.StatusNoContent)
			return nil
		}

		a.Handle(http.MethodOptions, "/{path:.*}", h)
	}

	st := cfg.Store
	carts := cart.NewService(st, cfg.Log)
	builder := order.NewBuilder(st, st, st, cfg.Gateway, order.Config{
		DeliveryFee: cfg.Checkout.DeliveryFee,
		Currency:    cfg.Checkout.Currency,
	}, cfg.Log)
	processor := order.NewProcessor(st, st, st, cfg.Gateway, cfg.Log)
	requests := printrequest.NewService(st, st, st, cfg.Blobs, cfg.Gateway, printrequest.Config{
		DailyLimit: cfg.Auth.QuoteDailyLimit,
		Currency:   cfg.Checkout.Currency,
		URLTTL:     cfg.Storage.SignedURLTTL,
	}, cfg.Log)

	authen := auth.Authenticate()
	admin := auth.Admin()
	maker := auth.Role(claims.RoleMaker)

	var limit web.Middleware
	if cfg.Limiter != nil {
		limit = middleware.RateLimit(cfg.Limiter)
	}

	a.Handle(http.MethodPost, "/auth/signup", auth.HandleSignup(st, cfg.Session, carts, auth.Config{QuoteDailyLimit: cfg.Auth.QuoteDailyLimit}, cfg.Log))
	a.Handle(http.MethodPost, "/auth/login", auth.HandleLogin(st, cfg.Session, carts, cfg.Log), limit)
	a.Handle(http.MethodPost, "/auth/logout", auth.HandleLogout(cfg.Session))

	a.Handle(http.MethodGet, "/users/current", user.HandleShowCurrent(st), authen)
	a.Handle(http.MethodGet, "/users/current/addresses", user.HandleListAddresses(st), authen)
	a.Handle(http.MethodPost, "/users/current/addresses", user.HandleAddAddress(st), authen)

	a.Handle(http.MethodGet, "/products", product.HandleList(st))
	a.Handle(http.MethodGet, "/products/{id}", product.HandleShow(st))
	a.Handle(http.MethodPost, "/products", product.HandleCreate(st), admin)
	a.Handle(http.MethodPut, "/products/{id}/stock", product.HandleUpdateStock(st), admin)

	a.Handle(http.MethodGet, "/cart", cart.HandleShow(carts))
	a.Handle(http.MethodPut, "/cart/items", cart.HandleChangeItem(carts, st))
	a.Handle(http.MethodDelete, "/cart/items/{product_id}", cart.HandleDeleteItem(carts))

	a.Handle(http.MethodPost, "/checkout/orders", order.HandleCreate(builder), limit)
	a.Handle(http.MethodPatch, "/checkout/orders", order.HandleConfirm(processor), limit)
	a.Handle(http.MethodPost, "/checkout/orders/{cart_id}/failure", order.HandleFail(builder))
	if cfg.Events != nil {
		a.Handle(http.MethodPost, "/checkout/orders/stripe/webhook", order.HandleStripeWebhook(processor, cfg.Events))
	}

	a.Handle(http.MethodGet, "/purchases", purchase.HandleListOwned(st), authen)

	a.Handle(http.MethodPost, "/print-requests", printrequest.HandleSubmit(requests, cfg.Storage.MaxUploadSize), authen, limit)
	a.Handle(http.MethodGet, "/print-requests", printrequest.HandleListForUser(requests), authen)
	a.Handle(http.MethodGet, "/print-requests/incoming", printrequest.HandleListForMaker(requests), maker)
	a.Handle(http.MethodGet, "/print-requests/{id}", printrequest.HandleShow(requests), authen)
	a.Handle(http.MethodGet, "/print-requests/{id}/model", printrequest.HandleModelURL(requests), authen)
	a.Handle(http.MethodPost, "/print-requests/{id}/quote", printrequest.HandleQuote(requests), maker)
	a.Handle(http.MethodPost, "/print-requests/{id}/order", printrequest.HandleCreateOrder(requests), authen, limit)
	a.Handle(http.MethodPatch, "/print-requests/{id}/order", printrequest.HandleConfirm(requests), authen, limit)
	a.Handle(http.MethodPost, "/print-requests/{id}/complete", printrequest.HandleComplete(requests), maker)
	a.Handle(http.MethodPost, "/print-requests/{id}/cancel", printrequest.HandleCancel(requests), authen)
	a.Handle(http.MethodGet, "/makers/{id}/stats", printrequest.HandleMakerStats(requests))

	if m, ok := cfg.Blobs.(*blob.Memory); ok {
		a.Handle(http.MethodGet, "/blobs/{key:.+}", blob.HandleServe(m))
	}

	return a.Router
}

func (a *api) Handle(method string, path string, handler web.Handler, mw ...web.Middleware) {

	handler = web.WrapMiddleware(mw, handler)

	handler = web.WrapMiddleware(a.mw, handler)

	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {

		ctx := r.Context()

		if err := handler(ctx, w, r); err != nil {

			a.log.WithFields(logrus.Fields{
				"req_id":  middleware.ContextRequestID(ctx),
				"message": err,
			}).Error("ERROR")
		}
	})

	a.Router.Handle(path, h).Methods(method)
}
