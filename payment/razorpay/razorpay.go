// Package razorpay talks to the Razorpay orders API and checks the signature
// Razorpay's checkout widget attaches to a completed payment.
package razorpay

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/irsalhamdi/selfcrafted/payment"
)

const Name = "razorpay"

type Client struct {
	keyID     string
	keySecret string
	baseURL   string
	http      *http.Client
}

func New(keyID, keySecret, baseURL string) *Client {
	return &Client{
		keyID:     keyID,
		keySecret: keySecret,
		baseURL:   strings.TrimRight(baseURL, "/"),
		http:      &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *Client) Name() string { return Name }

// KeyID is the public key the checkout widget is opened with.
func (c *Client) KeyID() string { return c.keyID }

type orderReq struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
}

type orderResp struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

type errorResp struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

func (c *Client) CreateOrder(ctx context.Context, amount int64, currency, receipt string) (payment.Order, error) {
	body, err := json.Marshal(orderReq{Amount: amount, Currency: currency, Receipt: receipt})
	if err != nil {
		return payment.Order{}, fmt.Errorf("encoding order: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/orders", bytes.NewReader(body))
	if err != nil {
		return payment.Order{}, fmt.Errorf("building request: %w", err)
	}
	req.SetBasicAuth(c.keyID, c.keySecret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return payment.Order{}, &payment.Error{Status: http.StatusBadGateway, Code: "UNREACHABLE", Description: err.Error()}
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return payment.Order{}, fmt.Errorf("reading razorpay response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		var er errorResp
		if err := json.Unmarshal(b, &er); err != nil || er.Error.Description == "" {
			er.Error.Description = http.StatusText(resp.StatusCode)
		}
		return payment.Order{}, &payment.Error{
			Status:      resp.StatusCode,
			Code:        er.Error.Code,
			Description: er.Error.Description,
		}
	}

	var or orderResp
	if err := json.Unmarshal(b, &or); err != nil {
		return payment.Order{}, fmt.Errorf("decoding razorpay order: %w", err)
	}
	if or.ID == "" {
		return payment.Order{}, &payment.Error{Status: http.StatusBadGateway, Code: "EMPTY_ORDER", Description: "razorpay returned an order without id"}
	}

	return payment.Order{ID: or.ID, Amount: or.Amount, Currency: or.Currency, Receipt: or.Receipt}, nil
}

// Verify recomputes the checkout signature over "order_id|payment_id".
func (c *Client) Verify(_ context.Context, cf payment.Confirmation) error {
	want := Signature(c.keySecret, cf.OrderID, cf.PaymentID)
	if !hmac.Equal([]byte(want), []byte(cf.Signature)) {
		return payment.ErrSignature
	}
	return nil
}

// Signature is the hex HMAC-SHA256 Razorpay signs a payment with.
func Signature(secret, orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}
