package middleware

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/irsalhamdi/selfcrafted/api/web"
	"github.com/irsalhamdi/selfcrafted/api/weberr"
	"github.com/irsalhamdi/selfcrafted/core/identity"
	"github.com/irsalhamdi/selfcrafted/rate"
)

// RateLimit rejects requests once the caller exhausts its bucket. Callers are
// keyed by client id, falling back to the remote host.
func RateLimit(lim *rate.Limiter) web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			key := identity.FromContext(ctx).ClientID
			if key == "" {
				host, _, err := net.SplitHostPort(r.RemoteAddr)
				if err != nil {
					host = r.RemoteAddr
				}
				key = host
			}

			if !lim.Allow(key) {
				return weberr.TooManyRequests(errors.New("rate limit exceeded"), weberr.WithFields(map[string]any{"client": key}))
			}
			return handler(ctx, w, r)
		}
		return h
	}
	return m
}
