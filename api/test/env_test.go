package test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/google/uuid"
	"github.com/irsalhamdi/selfcrafted/api"
	"github.com/irsalhamdi/selfcrafted/blob"
	"github.com/irsalhamdi/selfcrafted/config"
	"github.com/irsalhamdi/selfcrafted/core/claims"
	"github.com/irsalhamdi/selfcrafted/core/user"
	"github.com/irsalhamdi/selfcrafted/datastore"
	"github.com/irsalhamdi/selfcrafted/payment/paymenttest"
	"github.com/sirupsen/logrus/hooks/test"
)

const (
	adminEmail = "admin@selfcrafted.in"
	adminPass  = "admin-password"
)

type TestEnv struct {
	*httptest.Server
	Store *datastore.Memory
	Blobs *blob.Memory
	Gw    *paymenttest.Gateway
}

func NewTestEnv(t *testing.T) *TestEnv {
	t.Helper()

	log, _ := test.NewNullLogger()
	env := &TestEnv{
		Store: datastore.NewMemory(),
		Blobs: blob.NewMemory("/blobs", []byte("blob-secret")),
		Gw:    &paymenttest.Gateway{},
	}

	sm := scs.New()
	sm.Lifetime = time.Hour

	mux := api.APIMux(api.APIConfig{
		Log:      log,
		Store:    env.Store,
		Session:  sm,
		Gateway:  env.Gw,
		Blobs:    env.Blobs,
		Checkout: config.Checkout{DeliveryFee: 49, Currency: "INR"},
		Auth:     config.Auth{QuoteDailyLimit: 3},
		Storage:  config.Storage{SignedURLTTL: 10 * time.Minute, MaxUploadSize: 1 << 20},
	})

	env.Server = httptest.NewServer(mux)
	t.Cleanup(env.Server.Close)

	hash, err := user.HashPassword(adminPass)
	if err != nil {
		t.Fatalf("hashing admin password: %v", err)
	}
	admin := user.User{
		ID:           uuid.NewString(),
		Name:         "Admin",
		Email:        adminEmail,
		Role:         claims.RoleAdmin,
		PasswordHash: hash,
	}
	if err := env.Store.CreateUser(context.Background(), admin); err != nil {
		t.Fatalf("creating admin: %v", err)
	}

	return env
}

// Client is one browser: its own cookie jar, so its own client id and
// session.
type Client struct {
	t    *testing.T
	http *http.Client
	base string
}

func (env *TestEnv) NewClient(t *testing.T) *Client {
	t.Helper()

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatal(err)
	}
	return &Client{t: t, http: &http.Client{Jar: jar}, base: env.URL}
}

// envelope mirrors the body of every response.
type envelope struct {
	Error   bool            `json:"error"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Do sends body as JSON (or as is when it is an io.Reader) and decodes the
// data of the response into out when out is not nil.
func (c *Client) Do(method, path string, body any, out any) (int, envelope) {
	c.t.Helper()

	var (
		r           io.Reader
		contentType = "application/json"
	)
	switch b := body.(type) {
	case nil:
	case url.Values:
		r = strings.NewReader(b.Encode())
		contentType = "application/x-www-form-urlencoded"
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			c.t.Fatalf("encoding body: %v", err)
		}
		r = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, c.base+path, r)
	if err != nil {
		c.t.Fatal(err)
	}
	if r != nil {
		req.Header.Set("Content-Type", contentType)
	}

	return c.send(req, out)
}

func (c *Client) send(req *http.Request, out any) (int, envelope) {
	c.t.Helper()

	resp, err := c.http.Do(req)
	if err != nil {
		c.t.Fatalf("%s %s: %v", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	var env envelope
	if resp.StatusCode == http.StatusNoContent {
		return resp.StatusCode, env
	}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		c.t.Fatalf("%s %s: decoding response (%s): %v", req.Method, req.URL.Path, resp.Status, err)
	}

	if out != nil && !env.Error && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			c.t.Fatalf("%s %s: decoding data: %v", req.Method, req.URL.Path, err)
		}
	}
	return resp.StatusCode, env
}

// MustDo is Do for calls that have to answer with want.
func (c *Client) MustDo(method, path string, body any, out any, want int) {
	c.t.Helper()

	code, env := c.Do(method, path, body, out)
	if code != want {
		c.t.Fatalf("%s %s: expected status %d, got %d (%s)", method, path, want, code, env.Message)
	}
}

func (c *Client) Signup(name, email string, maker bool) user.User {
	c.t.Helper()

	body := map[string]any{
		"name":            name,
		"email":           email,
		"password":        "password123",
		"passwordConfirm": "password123",
		"maker":           maker,
	}
	var u user.User
	c.MustDo(http.MethodPost, "/auth/signup", body, &u, http.StatusCreated)
	return u
}

func (c *Client) Login(email, password string) {
	c.t.Helper()
	c.MustDo(http.MethodPost, "/auth/login", map[string]string{"email": email, "password": password}, nil, http.StatusOK)
}

func uniqueEmail(prefix string) string {
	return fmt.Sprintf("%s-%s@example.com", prefix, uuid.NewString()[:8])
}
