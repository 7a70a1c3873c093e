// Package paypal settles checkouts through PayPal orders.
//
// The order id is the PayPal order, the payment id is the approving payer and
// the signature is the approval token handed to the browser. Verification
// captures the order, or accepts it when it is already captured, and requires
// the capture to belong to the same payer.
package paypal

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/irsalhamdi/selfcrafted/payment"
	"github.com/plutov/paypal/v4"
)

const Name = "paypal"

const (
	statusApproved  = "APPROVED"
	statusCompleted = "COMPLETED"
)

type Client struct {
	pp       *paypal.Client
	clientID string
}

// New builds a client and fetches the first access token.
func New(ctx context.Context, clientID, secret, url string) (*Client, error) {
	pp, err := paypal.NewClient(clientID, secret, url)
	if err != nil {
		return nil, fmt.Errorf("building the paypal client: %w", err)
	}

	if _, err = pp.GetAccessToken(ctx); err != nil {
		return nil, fmt.Errorf("getting the first paypal access token: %w", err)
	}

	return &Client{pp: pp, clientID: clientID}, nil
}

func (c *Client) Name() string { return Name }

func (c *Client) KeyID() string { return c.clientID }

func (c *Client) CreateOrder(ctx context.Context, amount int64, currency, receipt string) (payment.Order, error) {
	value := fmt.Sprintf("%d.%02d", amount/100, amount%100)

	units := []paypal.PurchaseUnitRequest{{
		ReferenceID: receipt,
		Amount: &paypal.PurchaseUnitAmount{
			Currency: currency,
			Value:    value,
		},
	}}

	ord, err := c.pp.CreateOrder(ctx, paypal.OrderIntentCapture, units, nil, &paypal.ApplicationContext{})
	if err != nil {
		return payment.Order{}, gatewayError(err)
	}

	return payment.Order{ID: ord.ID, Amount: amount, Currency: currency, Receipt: receipt}, nil
}

func (c *Client) Verify(ctx context.Context, cf payment.Confirmation) error {
	ord, err := c.pp.GetOrder(ctx, cf.OrderID)
	if err != nil {
		return gatewayError(err)
	}

	status, payer := ord.Status, ord.Payer
	if status == statusApproved {
		resp, err := c.pp.CaptureOrder(ctx, cf.OrderID, paypal.CaptureOrderRequest{})
		if err != nil {
			return gatewayError(err)
		}
		status = resp.Status
		if resp.Payer != nil {
			payer = resp.Payer
		}
	}

	if status != statusCompleted {
		return fmt.Errorf("paypal order[%s] is %s: %w", cf.OrderID, status, payment.ErrSignature)
	}
	if payer == nil || payer.PayerID != cf.PaymentID {
		return payment.ErrSignature
	}
	return nil
}

func gatewayError(err error) error {
	var er *paypal.ErrorResponse
	if errors.As(err, &er) {
		status := http.StatusBadGateway
		if er.Response != nil {
			status = er.Response.StatusCode
		}
		return &payment.Error{Status: status, Code: er.Name, Description: er.Message}
	}
	return &payment.Error{Status: http.StatusBadGateway, Code: "UNREACHABLE", Description: err.Error()}
}
