// Package auth keeps the signed-in user in an scs session and exposes it to
// handlers as claims.
package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/alexedwards/scs/v2"
	"github.com/irsalhamdi/selfcrafted/api/web"
	"github.com/irsalhamdi/selfcrafted/api/weberr"
	"github.com/irsalhamdi/selfcrafted/core/claims"
	"github.com/irsalhamdi/selfcrafted/core/user"
)

const (
	userIDKey = "userID"
	emailKey  = "email"
	roleKey   = "role"
)

// LoadAndSave runs the handler inside the scs session middleware.
func LoadAndSave(sm *scs.SessionManager) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			var err error
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				err = handler(r.Context(), w, r)
			})

			sm.LoadAndSave(next).ServeHTTP(w, r.WithContext(ctx))
			return err
		}
		return h
	}
	return m
}

// Identify sets the claims of the session user, if any. Guests pass through.
func Identify(sm *scs.SessionManager) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			if id := sm.GetString(ctx, userIDKey); id != "" {
				ctx = claims.Set(ctx, claims.Claims{
					UserID: id,
					Email:  sm.GetString(ctx, emailKey),
					Role:   sm.GetString(ctx, roleKey),
				})
			}
			return handler(ctx, w, r)
		}
		return h
	}
	return m
}

func Authenticate() web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			if _, err := claims.Get(ctx); err != nil {
				return weberr.NotAuthorized(errors.New("user not authenticated"))
			}
			return handler(ctx, w, r)
		}
		return h
	}
	return m
}

// Role lets through signed-in users holding one of roles. Admins always pass.
func Role(roles ...string) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			clm, err := claims.Get(ctx)
			if err != nil {
				return weberr.NotAuthorized(errors.New("user not authenticated"))
			}

			if clm.Role == claims.RoleAdmin {
				return handler(ctx, w, r)
			}
			for _, role := range roles {
				if clm.Role == role {
					return handler(ctx, w, r)
				}
			}
			return weberr.Forbidden(errors.New("user lacks the required role"), weberr.WithFields(map[string]any{"user_id": clm.UserID}))
		}
		return h
	}
	return m
}

func Admin() web.Middleware {
	return Role(claims.RoleAdmin)
}

func login(ctx context.Context, sm *scs.SessionManager, u user.User) error {
	if err := sm.RenewToken(ctx); err != nil {
		return err
	}
	sm.Put(ctx, userIDKey, u.ID)
	sm.Put(ctx, emailKey, u.Email)
	sm.Put(ctx, roleKey, u.Role)
	return nil
}
