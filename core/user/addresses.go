package user

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/irsalhamdi/selfcrafted/api/web"
	"github.com/irsalhamdi/selfcrafted/api/weberr"
	"github.com/irsalhamdi/selfcrafted/core/address"
	"github.com/irsalhamdi/selfcrafted/core/claims"
	"github.com/irsalhamdi/selfcrafted/core/fault"
)

// MaxAddresses caps the saved addresses of one user.
const MaxAddresses = 10

// SaveAddress validates a and adds it to the address book of uid.
func SaveAddress(ctx context.Context, st Store, uid string, a address.Address) (address.Address, error) {
	a, err := address.Validate(a)
	if err != nil {
		return address.Address{}, err
	}
	a.ID = uuid.NewString()

	n, err := st.AddAddress(ctx, uid, a, MaxAddresses)
	if err != nil {
		return address.Address{}, fmt.Errorf("saving address of user[%s]: %w", uid, err)
	}
	if n == 0 {
		return address.Address{}, fault.Validation("You can save at most %d addresses", MaxAddresses)
	}
	return a, nil
}

func HandleListAddresses(st Store) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		as, err := st.ListAddresses(ctx, clm.UserID)
		if err != nil {
			return fmt.Errorf("listing addresses of user[%s]: %w", clm.UserID, err)
		}

		return web.OK(ctx, w, as)
	}
}

func HandleAddAddress(st Store) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		var a address.Address
		if err := web.Decode(w, r, &a); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		a, err = SaveAddress(ctx, st, clm.UserID, a)
		if err != nil {
			return err
		}

		return web.Respond(ctx, w, web.Result{Data: a}, http.StatusCreated)
	}
}
