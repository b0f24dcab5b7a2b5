package freight

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	pkgerrors "github.com/angelmondragon/chronus-storefront/pkg/errors"
	"github.com/angelmondragon/chronus-storefront/pkg/types"
	"github.com/shopspring/decimal"
)

const (
	calculatePath         = "/calculate-shipping"
	responseBodyReadLimit = 1024

	// PackageID names the single logical package a whole cart is quoted as.
	PackageID = "package-camisas"
)

var errBaseURLRequired = errors.New("shipping base url is required")

// Client quotes shipping rates.
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
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// QuoteRequest is the package descriptor sent to the rate service.
type QuoteRequest struct {
	CEP      string         `json:"cep"`
	Products []QuotePackage `json:"products"`
}

type QuotePackage struct {
	ID             string       `json:"id"`
	Quantity       int          `json:"quantity"`
	InsuranceValue types.Amount `json:"insurance_value"`
}

// Quote is one raw carrier option.
type Quote struct {
	ServiceID    flexString   `json:"service_id"`
	ID           flexString   `json:"id"`
	Name         string       `json:"name"`
	Price        types.Amount `json:"price"`
	CustomPrice  types.Amount `json:"custom_price"`
	DeliveryTime *int         `json:"delivery_time,omitempty"`
	Company      struct {
		Name string `json:"name"`
	} `json:"company"`
}

// Identifier returns service_id, then id, then "unknown".
func (q Quote) Identifier() string {
	if id := strings.TrimSpace(string(q.ServiceID)); id != "" {
		return id
	}
	if id := strings.TrimSpace(string(q.ID)); id != "" {
		return id
	}
	return "unknown"
}

// Amount returns price, falling back to custom_price when price is unset.
func (q Quote) Amount() decimal.Decimal {
	if !q.Price.IsZero() {
		return q.Price.Decimal
	}
	return q.CustomPrice.Decimal
}

// Calculate requests quotes. Transport failures, non-2xx statuses, a false
// success indicator and undecodable bodies are all returned as errors.
func (c *Client) Calculate(ctx context.Context, in QuoteRequest) ([]Quote, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "shipping client not configured")
	}

	payload, err := json.Marshal(in)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal shipping request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+calculatePath, bytes.NewReader(payload))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build shipping request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute shipping request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "shipping request failed").
			WithDetails(map[string]any{"status": resp.StatusCode})
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read shipping response")
	}
	return decodeQuotes(body)
}

func decodeQuotes(body []byte) ([]Quote, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var quotes []Quote
		if err := json.Unmarshal(trimmed, &quotes); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode shipping response")
		}
		return quotes, nil
	}

	var envelope struct {
		Success bool    `json:"success"`
		Error   string  `json:"error"`
		Data    []Quote `json:"data"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode shipping response")
	}
	if !envelope.Success {
		msg := strings.TrimSpace(envelope.Error)
		if msg == "" {
			msg = "shipping service reported failure"
		}
		return nil, pkgerrors.New(pkgerrors.CodeDependency, msg)
	}
	return envelope.Data, nil
}

// flexString accepts a JSON string or number.
type flexString string

func (s *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = flexString(v)
		return nil
	}
	*s = flexString(data)
	return nil
}
