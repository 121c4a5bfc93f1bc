// Package gateway submits assembled orders to the remote order service.
//
// This is the single asynchronous boundary of the engine: one POST per
// shopper-initiated submission. The client never retries on its own — a
// failed submission is surfaced to the caller with the cart and checkout
// session intact, and retrying is always an explicit re-submission. The
// session ID travels as an idempotency key so that a shopper retry of a
// request that actually landed cannot double-charge.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Address is a postal address on the wire.
type Address struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	ZipCode string `json:"zipCode"`
	Country string `json:"country"`
}

// OrderItem is one ordered line on the wire. Price is the unit price in
// display dollars captured when the checkout session started.
type OrderItem struct {
	Product  string  `json:"product"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

// PaymentDescriptor identifies how the shopper pays. Card fields are set
// only for card payments and exist only for the duration of the request.
type PaymentDescriptor struct {
	Type       string `json:"type"`
	CardNumber string `json:"cardNumber,omitempty"`
	CardName   string `json:"cardName,omitempty"`
	ExpiryDate string `json:"expiryDate,omitempty"`
	CVV        string `json:"cvv,omitempty"`
}

// Order is the outbound payload. Monetary fields are display dollars; the
// engine's internal cents arithmetic is converted at this boundary.
type Order struct {
	IdempotencyKey  string            `json:"-"`
	Items           []OrderItem       `json:"items"`
	ShippingAddress Address           `json:"shippingAddress"`
	BillingAddress  Address           `json:"billingAddress"`
	PaymentMethod   PaymentDescriptor `json:"paymentMethod"`
	TotalAmount     float64           `json:"totalAmount"`
	ShippingCost    float64           `json:"shippingCost"`
	TaxAmount       float64           `json:"taxAmount"`
}

// Confirmation is the service's acknowledgement of a placed order.
type Confirmation struct {
	OrderID string
}

// SubmissionError is a failed submission: a transport failure (StatusCode
// zero) or a structured service rejection.
type SubmissionError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *SubmissionError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("order submission failed: %s", e.Message)
	}
	if e.Code != "" {
		return fmt.Sprintf("order service rejected submission (%d %s): %s",
			e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("order service rejected submission (%d): %s",
		e.StatusCode, e.Message)
}

// TokenSource supplies the current auth credential, if any.
type TokenSource interface {
	Token() (string, bool)
}

// Client talks to the order service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
	logger     *slog.Logger
}

// NewClient creates an order service client rooted at baseURL (e.g.
// "https://shop.example.com/api").
func NewClient(baseURL string, timeout time.Duration, tokens TokenSource, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		tokens:     tokens,
		logger:     logger,
	}
}

// SubmitOrder POSTs the order and returns the service's confirmation. Any
// failure is returned as a *SubmissionError; the caller decides whether to
// re-submit.
func (c *Client) SubmitOrder(ctx context.Context, order *Order) (*Confirmation, error) {
	payload, err := json.Marshal(order)
	if err != nil {
		return nil, &SubmissionError{Message: fmt.Sprintf("failed to encode order: %v", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/orders", bytes.NewReader(payload))
	if err != nil {
		return nil, &SubmissionError{Message: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	if order.IdempotencyKey != "" {
		req.Header.Set("Idempotency-Key", order.IdempotencyKey)
	}
	if token, ok := c.tokens.Token(); ok {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	c.logger.Debug("posting order", "url", req.URL.String(), "items", len(order.Items))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &SubmissionError{Message: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &SubmissionError{Message: err.Error()}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, c.serviceError(resp.StatusCode, body)
	}

	var decoded struct {
		Order struct {
			ID string `json:"_id"`
		} `json:"order"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil || decoded.Order.ID == "" {
		return nil, &SubmissionError{
			StatusCode: resp.StatusCode,
			Message:    "order service returned an unreadable confirmation",
		}
	}

	return &Confirmation{OrderID: decoded.Order.ID}, nil
}

// serviceError maps a non-2xx response to a SubmissionError, picking up the
// service's structured {code, message} body when it sends one.
func (c *Client) serviceError(status int, body []byte) *SubmissionError {
	var decoded struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &decoded); err == nil && decoded.Message != "" {
		return &SubmissionError{StatusCode: status, Code: decoded.Code, Message: decoded.Message}
	}
	return &SubmissionError{StatusCode: status, Message: http.StatusText(status)}
}
