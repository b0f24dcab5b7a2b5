package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	pkgerrors "github.com/angelmondragon/chronus-storefront/pkg/errors"
)

const (
	checkoutPath     = "/stripe/checkout"
	sessionPath      = "/stripe/session/%s"
	orderPath        = "/order/by-session/%s"
	confirmationPath = "/order/send-confirmation"

	errorBodyReadLimit = 4096
	bodyReadLimit      = 1 << 20
)

var errBaseURLRequired = errors.New("payment gateway base url is required")

// ErrUnexpectedResponse marks a 2xx checkout answer whose body is not a
// checkout object.
var ErrUnexpectedResponse = errors.New("unexpected checkout response shape")

// Client talks to the payment gateway backend.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

func NewClient(baseURL string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, errBaseURLRequired
	}
	client := &Client{
		baseURL:    trimmed,
		httpClient: &http.Client{Timeout: 20 * time.Second},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// CreateCheckout posts payload with bearer auth. A non-2xx answer becomes a
// GATEWAY_ERROR carrying the gateway's message when it sent one. A 2xx body
// that does not decode wraps ErrUnexpectedResponse.
func (c *Client) CreateCheckout(ctx context.Context, token string, payload any) (*CheckoutResponse, error) {
	status, body, err := c.do(ctx, http.MethodPost, checkoutPath, token, payload)
	if err != nil {
		return nil, err
	}
	if !ok(status) {
		return nil, pkgerrors.New(pkgerrors.CodeGateway, messageFrom(body, "failed to process checkout")).
			WithDetails(map[string]any{"status": status})
	}

	var resp CheckoutResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeGateway, fmt.Errorf("%w: %v", ErrUnexpectedResponse, err), "unexpected response from payment gateway")
	}
	return &resp, nil
}

// GetSession reads the status of a payment session.
func (c *Client) GetSession(ctx context.Context, sessionID string) (*SessionResponse, error) {
	status, body, err := c.do(ctx, http.MethodGet, fmt.Sprintf(sessionPath, url.PathEscape(sessionID)), "", nil)
	if err != nil {
		return nil, err
	}
	if !ok(status) {
		return nil, pkgerrors.New(pkgerrors.CodeGateway, "failed to verify payment session").
			WithDetails(map[string]any{"status": status})
	}

	var resp SessionResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeGateway, err, "decode payment session")
	}
	return &resp, nil
}

// OrderBySession returns the order recorded for a session, or NOT_FOUND.
func (c *Client) OrderBySession(ctx context.Context, sessionID string) (*OrderDetails, error) {
	status, body, err := c.do(ctx, http.MethodGet, fmt.Sprintf(orderPath, url.PathEscape(sessionID)), "", nil)
	if err != nil {
		return nil, err
	}
	if !ok(status) {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("order lookup failed with status %d", status))
	}

	var resp struct {
		Success bool          `json:"success"`
		Order   *OrderDetails `json:"order"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode order details")
	}
	if !resp.Success || resp.Order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return resp.Order, nil
}

// SendConfirmation asks the backend to email the receipt for a session.
func (c *Client) SendConfirmation(ctx context.Context, sessionID, email string) error {
	payload := map[string]string{"session_id": sessionID, "email": email}
	status, body, err := c.do(ctx, http.MethodPost, confirmationPath, "", payload)
	if err != nil {
		return err
	}
	if !ok(status) {
		return pkgerrors.New(pkgerrors.CodeDependency, messageFrom(body, "failed to send confirmation email"))
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path, token string, payload any) (int, []byte, error) {
	if c == nil {
		return 0, nil, pkgerrors.New(pkgerrors.CodeDependency, "payment gateway client not configured")
	}

	var reader io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal gateway request")
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build gateway request")
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute gateway request")
	}
	defer func() { _ = resp.Body.Close() }()

	limit := int64(errorBodyReadLimit)
	if ok(resp.StatusCode) {
		limit = bodyReadLimit
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return 0, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read gateway response")
	}
	return resp.StatusCode, body, nil
}

func ok(status int) bool {
	return status >= 200 && status < 300
}

func messageFrom(body []byte, fallback string) string {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if msg := strings.TrimSpace(payload.Message); msg != "" {
			return msg
		}
	}
	return fallback
}
