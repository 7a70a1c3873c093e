// Package stripe settles checkouts through Stripe PaymentIntents.
//
// The order id is the PaymentIntent id, the payment id is its latest charge
// and the signature is the intent's client secret, which only the browser
// that opened the checkout and the server ever see.
package stripe

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/irsalhamdi/selfcrafted/payment"
	"github.com/stripe/stripe-go/v74"
	stripecl "github.com/stripe/stripe-go/v74/client"
	"github.com/stripe/stripe-go/v74/webhook"
)

const Name = "stripe"

const EventPaymentSucceeded = "payment_intent.succeeded"

type Client struct {
	api           *stripecl.API
	publicKey     string
	webhookSecret string
}

// New builds a client. A nil backends uses the Stripe API.
func New(apiSecret, publicKey, webhookSecret string, backends *stripe.Backends) *Client {
	api := &stripecl.API{}
	api.Init(apiSecret, backends)

	return &Client{api: api, publicKey: publicKey, webhookSecret: webhookSecret}
}

func (c *Client) Name() string { return Name }

func (c *Client) KeyID() string { return c.publicKey }

func (c *Client) CreateOrder(ctx context.Context, amount int64, currency, receipt string) (payment.Order, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amount),
		Currency: stripe.String(strings.ToLower(currency)),
	}
	params.Context = ctx
	params.AddMetadata("receipt", receipt)

	pi, err := c.api.PaymentIntents.New(params)
	if err != nil {
		return payment.Order{}, gatewayError(err)
	}

	return payment.Order{
		ID:       pi.ID,
		Amount:   pi.Amount,
		Currency: strings.ToUpper(string(pi.Currency)),
		Receipt:  receipt,
	}, nil
}

// Verify retrieves the intent and requires it to have succeeded with the
// confirmed charge.
func (c *Client) Verify(ctx context.Context, cf payment.Confirmation) error {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := c.api.PaymentIntents.Get(cf.OrderID, params)
	if err != nil {
		return gatewayError(err)
	}

	if subtle.ConstantTimeCompare([]byte(pi.ClientSecret), []byte(cf.Signature)) != 1 {
		return payment.ErrSignature
	}
	if pi.LatestCharge == nil || pi.LatestCharge.ID != cf.PaymentID {
		return payment.ErrSignature
	}
	if pi.Status != stripe.PaymentIntentStatusSucceeded {
		return fmt.Errorf("payment intent[%s] is %s: %w", pi.ID, pi.Status, payment.ErrSignature)
	}
	return nil
}

// Event checks the Stripe-Signature header of a webhook delivery. It reports
// the confirmation carried by a payment_intent.succeeded event, and false for
// every other event type.
func (c *Client) Event(payload []byte, header string) (payment.Confirmation, bool, error) {
	if header == "" {
		return payment.Confirmation{}, false, errors.New("received stripe event is not signed")
	}

	event, err := webhook.ConstructEvent(payload, header, c.webhookSecret)
	if err != nil {
		return payment.Confirmation{}, false, fmt.Errorf("cannot construct stripe event: %w", err)
	}

	if event.Type != EventPaymentSucceeded {
		return payment.Confirmation{}, false, nil
	}

	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return payment.Confirmation{}, false, fmt.Errorf("unable to decode stripe event: %w", err)
	}

	cf := payment.Confirmation{OrderID: pi.ID, Signature: pi.ClientSecret}
	if pi.LatestCharge != nil {
		cf.PaymentID = pi.LatestCharge.ID
	}
	return cf, true, nil
}

func gatewayError(err error) error {
	var se *stripe.Error
	if errors.As(err, &se) {
		status := se.HTTPStatusCode
		if status == 0 {
			status = http.StatusBadGateway
		}
		return &payment.Error{Status: status, Code: string(se.Code), Description: se.Msg}
	}
	return &payment.Error{Status: http.StatusBadGateway, Code: "UNREACHABLE", Description: err.Error()}
}
