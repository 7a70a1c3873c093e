package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/ardanlabs/conf/v3"
	"github.com/irsalhamdi/selfcrafted/api"
	"github.com/irsalhamdi/selfcrafted/blob"
	"github.com/irsalhamdi/selfcrafted/config"
	"github.com/irsalhamdi/selfcrafted/core/order"
	"github.com/irsalhamdi/selfcrafted/database"
	"github.com/irsalhamdi/selfcrafted/datastore"
	"github.com/irsalhamdi/selfcrafted/payment"
	"github.com/irsalhamdi/selfcrafted/payment/paypal"
	"github.com/irsalhamdi/selfcrafted/payment/razorpay"
	"github.com/irsalhamdi/selfcrafted/payment/stripe"
	"github.com/irsalhamdi/selfcrafted/random"
	"github.com/irsalhamdi/selfcrafted/rate"
	"github.com/sirupsen/logrus"
)

func main() {
	log := logrus.New()
	log.SetOutput(os.Stdout)

	if err := Run(log); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}

func Run(logger *logrus.Logger) error {
	logger.Infof("starting server")
	defer logger.Info("shutdown complete")

	const prefix = "SELFCRAFTED"
	var cfg config.Config
	if _, err := conf.Parse(prefix, &cfg); err != nil {
		return fmt.Errorf("parsing config: %w", err)
	}

	lw := logger.Writer()
	defer lw.Close()
	errLog := log.New(lw, "", 0)

	st, blobs, closeStore, err := openStore(context.Background(), cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	gw, events, err := openGateway(context.Background(), cfg)
	if err != nil {
		return err
	}
	logger.Infof("payments through %s", gw.Name())

	sessionManager := scs.New()
	sessionManager.Lifetime = cfg.Session.Lifetime
	sessionManager.Cookie.Secure = cfg.Session.SecureCookie
	sessionManager.Cookie.SameSite = http.SameSiteLaxMode

	limiter := rate.NewLimiter(cfg.Rate.Burst, cfg.Rate.Expiry, cfg.Rate.RPS)
	defer limiter.Stop()

	mux := api.APIMux(api.APIConfig{
		CorsOrigin:   cfg.Cors.Origin,
		SecureCookie: cfg.Session.SecureCookie,
		Log:          logger,
		Store:        st,
		Session:      sessionManager,
		Gateway:      gw,
		Events:       events,
		Blobs:        blobs,
		Limiter:      limiter,
		Checkout:     cfg.Checkout,
		Auth:         cfg.Auth,
		Storage:      cfg.Storage,
	})

	api := http.Server{
		Handler:      mux,
		Addr:         cfg.Web.Address,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		ErrorLog:     errLog,
	}

	serverErrors := make(chan error, 1)

	go func() {
		logger.Infof("starting api router at %s", api.Addr)
		serverErrors <- api.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		logger.Infof("shutting down: signal %s", sig)

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancel()

		if err := api.Shutdown(ctx); err != nil {
			api.Close()
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
	}
	return nil
}

// openStore returns the rows and model files the api works on. The memory
// driver keeps both in process and serves models itself.
func openStore(ctx context.Context, cfg config.Config, logger logrus.FieldLogger) (datastore.Store, blob.Store, func(), error) {
	if cfg.DB.Driver == "memory" {
		secret, err := random.String(32)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("generating blob secret: %w", err)
		}
		logger.Warn("using the in-memory store, data is lost on exit")
		return datastore.NewMemory(), blob.NewMemory("/blobs", []byte(secret)), func() {}, nil
	}

	db, err := database.Open(cfg.DB)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to open db connection: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := database.StatusCheck(pingCtx, db); err != nil {
		db.Close()
		return nil, nil, nil, fmt.Errorf("database unavailable: %w", err)
	}

	if cfg.DB.Migrate {
		if err := database.Migrate(db); err != nil {
			db.Close()
			return nil, nil, nil, err
		}
	}

	gcs, err := blob.NewGCS(ctx, cfg.Storage.Bucket)
	if err != nil {
		db.Close()
		return nil, nil, nil, fmt.Errorf("opening model storage: %w", err)
	}

	closeAll := func() {
		if err := gcs.Close(); err != nil {
			logger.WithField("error", err).Warn("closing model storage")
		}
		if err := db.Close(); err != nil {
			logger.WithField("error", err).Warn("closing db")
		}
	}
	return datastore.NewPostgres(db), gcs, closeAll, nil
}

// openGateway builds the configured payment provider. Stripe also confirms
// payments through its webhook.
func openGateway(ctx context.Context, cfg config.Config) (payment.Gateway, order.EventSource, error) {
	switch cfg.Payment.Provider {
	case razorpay.Name:
		return razorpay.New(cfg.Razorpay.KeyID, cfg.Razorpay.KeySecret, cfg.Razorpay.URL), nil, nil

	case stripe.Name:
		c := stripe.New(cfg.Stripe.APISecret, cfg.Stripe.PublicKey, cfg.Stripe.WebhookSecret, nil)
		return c, c, nil

	case paypal.Name:
		c, err := paypal.New(ctx, cfg.Paypal.ClientID, cfg.Paypal.Secret, cfg.Paypal.URL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to build the paypal client: %w", err)
		}
		return c, nil, nil
	}
	return nil, nil, fmt.Errorf("unknown payment provider %q", cfg.Payment.Provider)
}
