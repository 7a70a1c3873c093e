package user

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/irsalhamdi/selfcrafted/api/web"
	"github.com/irsalhamdi/selfcrafted/api/weberr"
	"github.com/irsalhamdi/selfcrafted/core/address"
	"github.com/irsalhamdi/selfcrafted/core/claims"
	"github.com/irsalhamdi/selfcrafted/core/fault"
	"github.com/irsalhamdi/selfcrafted/database"
	"golang.org/x/crypto/bcrypt"
)

type User struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Email           string    `json:"email"`
	Role            string    `json:"role"`
	PasswordHash    []byte    `json:"-"`
	QuoteDailyLimit int       `json:"quoteDailyLimit"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

type UserSignup struct {
	Name            string `json:"name" validate:"required"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=8"`
	PasswordConfirm string `json:"passwordConfirm" validate:"eqfield=Password"`
	Maker           bool   `json:"maker"`
}

type UserLogin struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type Store interface {
	// CreateUser fails with database.ErrDuplicate when the email is taken.
	CreateUser(ctx context.Context, u User) error
	FetchUser(ctx context.Context, id string) (User, error)
	FetchUserByEmail(ctx context.Context, email string) (User, error)

	// ListAddresses returns the saved addresses of uid, oldest first.
	ListAddresses(ctx context.Context, uid string) ([]address.Address, error)
	// AddAddress stores a unless uid already has limit addresses and
	// reports how many rows were added.
	AddAddress(ctx context.Context, uid string, a address.Address, limit int) (int, error)
}

func HashPassword(password string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
}

func CheckPassword(u User, password string) bool {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)) == nil
}

// Fetch loads a user and converts a missing row into a NotFound fault.
func Fetch(ctx context.Context, st Store, id string) (User, error) {
	u, err := st.FetchUser(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return User{}, fault.NotFound("user", id)
	}
	if err != nil {
		return User{}, fmt.Errorf("fetching user[%s]: %w", id, err)
	}
	return u, nil
}

func HandleShowCurrent(st Store) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		u, err := Fetch(ctx, st, clm.UserID)
		if err != nil {
			return err
		}

		return web.OK(ctx, w, u)
	}
}
