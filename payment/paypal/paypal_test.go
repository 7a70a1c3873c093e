package paypal_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/gorilla/mux"
	"github.com/irsalhamdi/selfcrafted/payment"
	ppay "github.com/irsalhamdi/selfcrafted/payment/paypal"
	"github.com/plutov/paypal/v4"
)

type mockPaypal struct {
	status   string
	captures int
	units    []paypal.PurchaseUnitRequest
}

func (m *mockPaypal) handle() http.Handler {
	respond := func(w http.ResponseWriter, status int, v any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(v)
	}

	token := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respond(w, http.StatusOK, map[string]any{"access_token": "tok", "token_type": "Bearer", "expires_in": 3600})
	})

	create := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Units []paypal.PurchaseUnitRequest `json:"purchase_units"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			respond(w, http.StatusBadRequest, nil)
			return
		}
		m.units = body.Units
		respond(w, http.StatusCreated, map[string]any{"id": "PP-1", "status": "CREATED"})
	})

	get := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if mux.Vars(r)["id"] != "PP-1" {
			respond(w, http.StatusNotFound, map[string]any{"name": "RESOURCE_NOT_FOUND", "message": "order not found"})
			return
		}
		respond(w, http.StatusOK, map[string]any{"id": "PP-1", "status": m.status, "payer": map[string]any{"payer_id": "PAYER-1"}})
	})

	capture := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.captures++
		m.status = "COMPLETED"
		respond(w, http.StatusCreated, map[string]any{"id": "PP-1", "status": "COMPLETED", "payer": map[string]any{"payer_id": "PAYER-1"}})
	})

	r := mux.NewRouter()
	r.Handle("/v1/oauth2/token", token).Methods(http.MethodPost)
	r.Handle("/v2/checkout/orders", create).Methods(http.MethodPost)
	r.Handle("/v2/checkout/orders/{id}", get).Methods(http.MethodGet)
	r.Handle("/v2/checkout/orders/{id}/capture", capture).Methods(http.MethodPost)
	return r
}

func newClient(t *testing.T, m *mockPaypal) *ppay.Client {
	srv := httptest.NewServer(m.handle())
	t.Cleanup(srv.Close)

	c, err := ppay.New(context.Background(), "client", "secret", srv.URL)
	if err != nil {
		t.Fatalf("building client: %s", err)
	}
	return c
}

func TestCreateOrder(t *testing.T) {
	m := &mockPaypal{}
	c := newClient(t, m)

	ord, err := c.CreateOrder(context.Background(), 104900, "INR", "cart-1")
	if err != nil {
		t.Fatalf("creating order: %s", err)
	}

	exp := payment.Order{ID: "PP-1", Amount: 104900, Currency: "INR", Receipt: "cart-1"}
	if diff := cmp.Diff(exp, ord); diff != "" {
		t.Fatalf("wrong order, diff: %s", diff)
	}

	if len(m.units) != 1 || m.units[0].Amount.Value != "1049.00" || m.units[0].ReferenceID != "cart-1" {
		t.Fatalf("wrong purchase units: %+v", m.units)
	}
}

func TestVerifyCapturesOnce(t *testing.T) {
	m := &mockPaypal{status: "APPROVED"}
	c := newClient(t, m)
	cf := payment.Confirmation{OrderID: "PP-1", PaymentID: "PAYER-1", Signature: "approval"}

	if err := c.Verify(context.Background(), cf); err != nil {
		t.Fatalf("verifying approved order: %s", err)
	}
	if err := c.Verify(context.Background(), cf); err != nil {
		t.Fatalf("verifying captured order: %s", err)
	}
	if m.captures != 1 {
		t.Fatalf("expected one capture, got %d", m.captures)
	}
}

func TestVerifyRejects(t *testing.T) {
	tests := map[string]struct {
		status string
		cf     payment.Confirmation
	}{
		"not approved": {status: "CREATED", cf: payment.Confirmation{OrderID: "PP-1", PaymentID: "PAYER-1", Signature: "x"}},
		"other payer":  {status: "COMPLETED", cf: payment.Confirmation{OrderID: "PP-1", PaymentID: "PAYER-2", Signature: "x"}},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			c := newClient(t, &mockPaypal{status: tc.status})
			if err := c.Verify(context.Background(), tc.cf); !errors.Is(err, payment.ErrSignature) {
				t.Fatalf("expected signature error, got %v", err)
			}
		})
	}
}

func TestVerifyUnknownOrder(t *testing.T) {
	c := newClient(t, &mockPaypal{status: "COMPLETED"})

	err := c.Verify(context.Background(), payment.Confirmation{OrderID: "PP-404", PaymentID: "PAYER-1", Signature: "x"})

	var perr *payment.Error
	if !errors.As(err, &perr) {
		t.Fatalf("expected a payment error, got %v", err)
	}
	if perr.Status != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", perr.Status)
	}
}
