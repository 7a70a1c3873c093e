package printrequest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/irsalhamdi/selfcrafted/api/web"
	"github.com/irsalhamdi/selfcrafted/api/weberr"
	"github.com/irsalhamdi/selfcrafted/core/address"
	"github.com/irsalhamdi/selfcrafted/core/claims"
	"github.com/irsalhamdi/selfcrafted/core/fault"
	"github.com/irsalhamdi/selfcrafted/core/identity"
	"github.com/irsalhamdi/selfcrafted/core/product"
	"github.com/irsalhamdi/selfcrafted/payment"
)

const multipartMemory = 8 << 20

type QuoteNew struct {
	Amount int    `json:"amount"`
	Reason string `json:"reason"`
}

type OrderNew struct {
	Address address.Address `json:"address"`
	Amount  int             `json:"amount"`
}

type CancelNew struct {
	Reason string `json:"reason"`
}

// HandleSubmit reads a multipart form with the model under "model", the
// maker under "creatorId" and the print settings as JSON under "modelData".
func HandleSubmit(svc *Service, maxUpload int64) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxUpload)
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to parse upload: %w", err))
		}

		f, hdr, err := r.FormFile("model")
		if err != nil {
			return weberr.BadRequest(fmt.Errorf("model file is required: %w", err))
		}
		defer f.Close()

		sub := Submission{CreatorID: r.FormValue("creatorId")}
		if err := json.Unmarshal([]byte(r.FormValue("modelData")), &sub.ModelData); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode model data: %w", err))
		}

		pr, err := svc.Submit(ctx, clm.UserID, sub, Upload{Name: hdr.Filename, Size: hdr.Size, Body: f})
		if err != nil {
			return err
		}

		return web.Respond(ctx, w, web.Result{Data: pr}, http.StatusCreated)
	}
}

func HandleShow(svc *Service) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		pr, err := svc.Show(ctx, claims.UserID(ctx), web.Param(r, "id"))
		if err != nil {
			return err
		}

		return web.OK(ctx, w, pr)
	}
}

func HandleListForUser(svc *Service) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		page, size := product.Page(r)

		prs, err := svc.ListForUser(ctx, claims.UserID(ctx), page, size)
		if err != nil {
			return err
		}

		return web.OK(ctx, w, prs)
	}
}

func HandleListForMaker(svc *Service) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		page, size := product.Page(r)

		prs, err := svc.ListForMaker(ctx, claims.UserID(ctx), page, size)
		if err != nil {
			return err
		}

		return web.OK(ctx, w, prs)
	}
}

func HandleQuote(svc *Service) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var qn QuoteNew
		if err := web.Decode(w, r, &qn); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		pr, err := svc.Quote(ctx, claims.UserID(ctx), web.Param(r, "id"), qn.Amount, qn.Reason)
		if err != nil {
			return err
		}

		return web.OK(ctx, w, pr)
	}
}

func HandleCreateOrder(svc *Service) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var on OrderNew
		if err := web.Decode(w, r, &on); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		p, err := svc.CreateOrder(ctx, claims.UserID(ctx), web.Param(r, "id"), on.Address, on.Amount)
		if err != nil {
			return err
		}

		return web.OK(ctx, w, p)
	}
}

func HandleConfirm(svc *Service) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		f, err := web.Fields(w, r, "payment_id_a", "payment_id_b", "payment_signature", "amount")
		if err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payment details: %w", err))
		}

		cf := payment.Confirmation{
			OrderID:   f["payment_id_a"],
			PaymentID: f["payment_id_b"],
			Signature: f["payment_signature"],
		}
		if a := f["amount"]; a != "" {
			if cf.Amount, err = strconv.ParseInt(a, 10, 64); err != nil {
				return fault.Validation("amount must be a whole number of minor units")
			}
		}

		res, err := svc.Confirm(ctx, identity.FromContext(ctx), web.Param(r, "id"), cf)
		if err != nil {
			return err
		}

		return web.OK(ctx, w, res)
	}
}

func HandleComplete(svc *Service) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		pr, err := svc.Complete(ctx, claims.UserID(ctx), web.Param(r, "id"))
		if err != nil {
			return err
		}

		return web.OK(ctx, w, pr)
	}
}

func HandleCancel(svc *Service) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var cn CancelNew
		if r.ContentLength != 0 {
			if err := web.Decode(w, r, &cn); err != nil {
				return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
			}
		}

		pr, err := svc.Cancel(ctx, claims.UserID(ctx), web.Param(r, "id"), cn.Reason)
		if err != nil {
			return err
		}

		return web.OK(ctx, w, pr)
	}
}

func HandleModelURL(svc *Service) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		u, err := svc.ModelURL(ctx, claims.UserID(ctx), web.Param(r, "id"))
		if err != nil {
			return err
		}

		return web.OK(ctx, w, map[string]string{"url": u})
	}
}

func HandleMakerStats(svc *Service) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		st, err := svc.MakerStats(ctx, web.Param(r, "id"))
		if err != nil {
			return err
		}

		return web.OK(ctx, w, st)
	}
}
