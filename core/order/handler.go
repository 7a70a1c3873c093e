package order

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/irsalhamdi/selfcrafted/api/web"
	"github.com/irsalhamdi/selfcrafted/api/weberr"
	"github.com/irsalhamdi/selfcrafted/core/fault"
	"github.com/irsalhamdi/selfcrafted/core/identity"
	"github.com/irsalhamdi/selfcrafted/payment"
	"github.com/irsalhamdi/selfcrafted/validate"
)

const maxEventBytes = 65536

// EventSource turns a signed provider webhook into a confirmation.
type EventSource interface {
	Event(payload []byte, header string) (payment.Confirmation, bool, error)
}

func HandleCreate(b *Builder) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var in Input
		if err := web.Decode(w, r, &in); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if err := validate.Check(in); err != nil {
			return &fault.ValidationError{Message: err.Error()}
		}

		out, err := b.Create(ctx, identity.FromContext(ctx), in)
		if err != nil {
			return err
		}

		return web.OK(ctx, w, out)
	}
}

// HandleConfirm accepts the fields of the payment widget either as a form or
// as JSON.
func HandleConfirm(p *Processor) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		f, err := web.Fields(w, r, "payment_id_a", "payment_id_b", "payment_signature")
		if err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payment details: %w", err))
		}

		cf := payment.Confirmation{
			OrderID:   f["payment_id_a"],
			PaymentID: f["payment_id_b"],
			Signature: f["payment_signature"],
		}

		res, err := p.Confirm(ctx, cf)
		if err != nil {
			return err
		}

		return web.OK(ctx, w, res)
	}
}

func HandleFail(b *Builder) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		f, err := web.Fields(w, r, "order_id")
		if err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		cartID := web.Param(r, "cart_id")
		if err := b.Fail(ctx, identity.FromContext(ctx), cartID, f["order_id"]); err != nil {
			return err
		}

		return web.OK(ctx, w, map[string]string{"message": "Payment failed"})
	}
}

// HandleStripeWebhook confirms the cart of a payment_intent.succeeded event.
// Other events are acknowledged and ignored.
func HandleStripeWebhook(p *Processor, src EventSource) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		b, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxEventBytes))
		if err != nil {
			return weberr.BadRequest(fmt.Errorf("cannot read the request body: %w", err))
		}

		cf, ok, err := src.Event(b, r.Header.Get("Stripe-Signature"))
		if err != nil {
			return weberr.BadRequest(err)
		}
		if !ok {
			return web.Respond(ctx, w, nil, http.StatusNoContent)
		}

		if _, err := p.Confirm(ctx, cf); err != nil {
			var nf *fault.NotFoundError
			if errors.As(err, &nf) {
				// Print requests settle through their own endpoint.
				return web.Respond(ctx, w, nil, http.StatusNoContent)
			}
			return fmt.Errorf("the order was payed but its confirmation failed: %w", err)
		}

		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}
