// Package gateway is the SkalePay PIX client: create transaction and fetch
// status. Creation retries bounded on server-side errors; status polling
// never retries, callers decide.
package gateway

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	createMaxAttempts = 3
	defaultBackoff    = 1 * time.Second
)

// Error is a non-success or unusable response from SkalePay, after any
// applicable retries. StatusCode is zero for transport-level failures and
// unusable 2xx bodies.
type Error struct {
	StatusCode int
	Body       string
}

func (e *Error) Error() string {
	if e.StatusCode == 0 {
		return "skalepay: " + e.Body
	}
	return fmt.Sprintf("skalepay: status %d: %s", e.StatusCode, e.Body)
}

type Item struct {
	Title     string `json:"title"`
	UnitPrice int64  `json:"unitPrice"`
	Quantity  int    `json:"quantity"`
	Tangible  bool   `json:"tangible"`
}

type Document struct {
	Type   string `json:"type"`
	Number string `json:"number"`
}

type Customer struct {
	Name     string   `json:"name"`
	Email    string   `json:"email"`
	Phone    string   `json:"phone"`
	Document Document `json:"document"`
}

// CreateResult is the usable subset of a create-transaction response.
// SkalePay normally sends no QR image URL, only the EMV copy-paste code.
type CreateResult struct {
	TransactionID string
	Status        string
	SecureURL     string
	CopyPaste     string
	ExpiresAt     string
}

type Client struct {
	baseURL     string
	authHeader  string
	callbackURL string
	client      *http.Client
	backoff     time.Duration
}

// NewClient computes the Basic auth header once from the static secret
// (secret as username, "x" as password, per SkalePay docs).
func NewClient(baseURL, secret, callbackURL string) *Client {
	return &Client{
		baseURL:     baseURL,
		authHeader:  "Basic " + base64.StdEncoding.EncodeToString([]byte(secret+":x")),
		callbackURL: callbackURL,
		client:      &http.Client{Timeout: 30 * time.Second},
		backoff:     defaultBackoff,
	}
}

type createRequest struct {
	PaymentMethod string   `json:"paymentMethod"`
	Amount        int64    `json:"amount"`
	Items         []Item   `json:"items"`
	Customer      Customer `json:"customer"`
	PostbackURL   string   `json:"postbackUrl"`
}

type createResponse struct {
	ID        string `json:"id"`
	SecureID  string `json:"secureId"`
	Status    string `json:"status"`
	SecureURL string `json:"secureUrl"`
	Pix       struct {
		QRCode         string `json:"qrcode"`
		ExpirationDate string `json:"expirationDate"`
	} `json:"pix"`
}

// CreateTransaction creates a PIX charge for amountMinor centavos. On HTTP
// 5xx it retries up to two more times with linearly increasing backoff
// (attempt number x backoff unit); any other failure, and a failure on the
// final attempt, propagates immediately.
func (c *Client) CreateTransaction(ctx context.Context, amountMinor int64, items []Item, customer Customer) (CreateResult, error) {
	payload, err := json.Marshal(createRequest{
		PaymentMethod: "pix",
		Amount:        amountMinor,
		Items:         items,
		Customer:      customer,
		PostbackURL:   c.callbackURL,
	})
	if err != nil {
		return CreateResult{}, &Error{Body: err.Error()}
	}

	var lastErr error
	for attempt := 1; attempt <= createMaxAttempts; attempt++ {
		status, raw, err := c.do(ctx, http.MethodPost, c.baseURL+"/transactions", payload)
		if err != nil {
			return CreateResult{}, err
		}

		if status >= 200 && status < 300 {
			return parseCreateResponse(raw)
		}

		lastErr = &Error{StatusCode: status, Body: string(raw)}
		if status >= 500 && attempt < createMaxAttempts {
			select {
			case <-time.After(time.Duration(attempt) * c.backoff):
			case <-ctx.Done():
				return CreateResult{}, &Error{Body: ctx.Err().Error()}
			}
			continue
		}
		break
	}
	return CreateResult{}, lastErr
}

// parseCreateResponse rejects a 2xx body that carries no transaction id, or
// neither a copy-paste code nor a hosted checkout URL: there is nothing the
// payer could act on, so it counts as a gateway failure.
func parseCreateResponse(raw []byte) (CreateResult, error) {
	var data createResponse
	if err := json.Unmarshal(raw, &data); err != nil {
		return CreateResult{}, &Error{Body: "invalid create response: " + err.Error()}
	}

	txID := data.ID
	if txID == "" {
		txID = data.SecureID
	}
	if txID == "" || (data.Pix.QRCode == "" && data.SecureURL == "") {
		return CreateResult{}, &Error{Body: "create response has no usable payment data: " + string(raw)}
	}

	return CreateResult{
		TransactionID: txID,
		Status:        data.Status,
		SecureURL:     data.SecureURL,
		CopyPaste:     data.Pix.QRCode,
		ExpiresAt:     data.Pix.ExpirationDate,
	}, nil
}

// GetStatus fetches the current transaction status string
// (waiting_payment, paid, refused, ...). No retry here.
func (c *Client) GetStatus(ctx context.Context, transactionID string) (string, error) {
	status, raw, err := c.do(ctx, http.MethodGet, c.baseURL+"/transactions/"+transactionID, nil)
	if err != nil {
		return "", err
	}
	if status < 200 || status >= 300 {
		return "", &Error{StatusCode: status, Body: string(raw)}
	}

	var data struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return "", &Error{Body: "invalid status response: " + err.Error()}
	}
	return data.Status, nil
}

func (c *Client) do(ctx context.Context, method, url string, body []byte) (int, []byte, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rd)
	if err != nil {
		return 0, nil, &Error{Body: err.Error()}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", c.authHeader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, nil, &Error{Body: err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, &Error{Body: err.Error()}
	}
	return resp.StatusCode, raw, nil
}
