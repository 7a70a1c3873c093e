package claims

import (
	"context"
	"errors"
)

const (
	RoleAdmin = "ADMIN"
	RoleMaker = "MAKER"
	RoleUser  = "USER"
)

var ErrMissing = errors.New("claim value missing from context")

// Claims describe the signed-in user of a request.
type Claims struct {
	UserID string
	Email  string
	Role   string
}

type ctxKey int

const claimsKey ctxKey = 1

func Set(ctx context.Context, claims Claims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

func Get(ctx context.Context) (Claims, error) {
	v, ok := ctx.Value(claimsKey).(Claims)
	if !ok || v.UserID == "" {
		return Claims{}, ErrMissing
	}
	return v, nil
}

// UserID returns the signed-in user, or "" for guests.
func UserID(ctx context.Context) string {
	c, err := Get(ctx)
	if err != nil {
		return ""
	}
	return c.UserID
}
