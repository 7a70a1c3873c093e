// Package identity resolves the anonymous client id that keys carts before
// (and after) sign in.
package identity

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/irsalhamdi/selfcrafted/api/web"
	"github.com/irsalhamdi/selfcrafted/core/claims"
)

const (
	CookieName = "clientId"

	cookieLifetime = 365 * 24 * time.Hour
)

// Identity is who a request acts for: always a client, sometimes a user.
type Identity struct {
	ClientID string
	UserID   string
}

// Owns reports whether a row keyed by clientID/uid belongs to this identity.
// A row claimed by a user belongs to that user only; the client id matters
// for unclaimed rows.
func (id Identity) Owns(clientID, uid string) bool {
	if uid != "" {
		return id.UserID != "" && uid == id.UserID
	}
	return clientID != "" && clientID == id.ClientID
}

// Resolve returns the client id carried by the request cookie, minting and
// setting a new one when it is missing or malformed.
func Resolve(w http.ResponseWriter, r *http.Request, secure bool) string {
	var clientID string
	if c, err := r.Cookie(CookieName); err == nil {
		if _, err := uuid.Parse(c.Value); err == nil {
			clientID = c.Value
		}
	}
	if clientID == "" {
		clientID = uuid.NewString()
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    clientID,
		Path:     "/",
		Expires:  time.Now().Add(cookieLifetime),
		MaxAge:   int(cookieLifetime.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
	return clientID
}

type ctxKey int

const clientKey ctxKey = 1

// Middleware resolves the client id of every request and stores it in the
// context.
func Middleware(secure bool) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			clientID := Resolve(w, r, secure)
			return handler(WithClient(ctx, clientID), w, r)
		}
		return h
	}
	return m
}

func WithClient(ctx context.Context, clientID string) context.Context {
	return context.WithValue(ctx, clientKey, clientID)
}

// FromContext combines the resolved client id with the session user, if any.
func FromContext(ctx context.Context) Identity {
	clientID, _ := ctx.Value(clientKey).(string)
	return Identity{ClientID: clientID, UserID: claims.UserID(ctx)}
}
