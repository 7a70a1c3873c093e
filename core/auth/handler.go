package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/irsalhamdi/selfcrafted/api/web"
	"github.com/irsalhamdi/selfcrafted/api/weberr"
	"github.com/irsalhamdi/selfcrafted/core/cart"
	"github.com/irsalhamdi/selfcrafted/core/claims"
	"github.com/irsalhamdi/selfcrafted/core/fault"
	"github.com/irsalhamdi/selfcrafted/core/identity"
	"github.com/irsalhamdi/selfcrafted/core/user"
	"github.com/irsalhamdi/selfcrafted/database"
	"github.com/irsalhamdi/selfcrafted/validate"
	"github.com/sirupsen/logrus"
)

type Config struct {
	QuoteDailyLimit int
}

func HandleSignup(users user.Store, sm *scs.SessionManager, carts *cart.Service, cfg Config, log logrus.FieldLogger) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var us user.UserSignup
		if err := web.Decode(w, r, &us); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if err := validate.Check(us); err != nil {
			return &fault.ValidationError{Message: err.Error()}
		}

		hash, err := user.HashPassword(us.Password)
		if err != nil {
			return fmt.Errorf("hashing password: %w", err)
		}

		role := claims.RoleUser
		if us.Maker {
			role = claims.RoleMaker
		}

		now := time.Now().UTC()
		u := user.User{
			ID:              validate.GenerateID(),
			Name:            us.Name,
			Email:           strings.ToLower(us.Email),
			Role:            role,
			PasswordHash:    hash,
			QuoteDailyLimit: cfg.QuoteDailyLimit,
			CreatedAt:       now,
			UpdatedAt:       now,
		}

		if err := users.CreateUser(ctx, u); err != nil {
			if errors.Is(err, database.ErrDuplicate) {
				return fault.Validation("email is already registered")
			}
			return fmt.Errorf("creating user: %w", err)
		}

		if err := login(ctx, sm, u); err != nil {
			return fmt.Errorf("starting session: %w", err)
		}
		claim(ctx, carts, u.ID, log)

		return web.Respond(ctx, w, web.Result{Data: u}, http.StatusCreated)
	}
}

func HandleLogin(users user.Store, sm *scs.SessionManager, carts *cart.Service, log logrus.FieldLogger) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		var ul user.UserLogin
		if err := web.Decode(w, r, &ul); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		if err := validate.Check(ul); err != nil {
			return &fault.ValidationError{Message: err.Error()}
		}

		u, err := users.FetchUserByEmail(ctx, strings.ToLower(ul.Email))
		if err != nil && !errors.Is(err, database.ErrNotFound) {
			return fmt.Errorf("fetching user by email: %w", err)
		}
		if err != nil || !user.CheckPassword(u, ul.Password) {
			return weberr.NotAuthorized(errors.New("invalid credentials"))
		}

		if err := login(ctx, sm, u); err != nil {
			return fmt.Errorf("starting session: %w", err)
		}
		claim(ctx, carts, u.ID, log)

		return web.OK(ctx, w, u)
	}
}

func HandleLogout(sm *scs.SessionManager) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		if err := sm.Destroy(ctx); err != nil {
			return fmt.Errorf("destroying session: %w", err)
		}

		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}

// claim moves the guest cart to the user. A failure leaves the cart with the
// client and is not worth failing the login for.
func claim(ctx context.Context, carts *cart.Service, userID string, log logrus.FieldLogger) {
	clientID := identity.FromContext(ctx).ClientID
	if err := carts.Claim(ctx, clientID, userID); err != nil {
		log.WithFields(logrus.Fields{"client_id": clientID, "user_id": userID, "error": err}).Warn("claiming guest cart")
	}
}
