package identity

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
)

const responseBodyReadLimit = 4096

var errBaseURLRequired = errors.New("identity base url is required")

// Client talks to the club's user service.
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

// User is the account record returned by the user service.
type User struct {
	ID             int64  `json:"id"`
	UUID           string `json:"uuid"`
	Email          string `json:"email"`
	Phone          string `json:"phone"`
	FullName       string `json:"full_name"`
	SocialName     string `json:"social_name"`
	EmailValidated bool   `json:"email_validated"`
	PhoneValidated bool   `json:"phone_validated"`
	Active         bool   `json:"active"`
	LastLogin      string `json:"last_login"`
	CreatedAt      string `json:"created_at"`
	UpdatedAt      string `json:"updated_at,omitempty"`
}

// Credentials is the login form. The service expects the password as "senha".
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"senha"`
}

type LoginResult struct {
	Token   string `json:"token"`
	User    User   `json:"user"`
	Message string `json:"message"`
}

// SavedAddress is the address on file for a user.
type SavedAddress struct {
	CEP          string `json:"cep"`
	Street       string `json:"logradouro"`
	Number       string `json:"numero"`
	Complement   string `json:"complemento"`
	Neighborhood string `json:"bairro"`
	City         string `json:"cidade"`
	State        string `json:"estado"`
}

// Login exchanges credentials for a bearer token. A rejected login is
// returned as UNAUTHORIZED carrying the service's message.
func (c *Client) Login(ctx context.Context, creds Credentials) (*LoginResult, error) {
	var result LoginResult
	status, body, err := c.do(ctx, http.MethodPost, "/user/login", "", creds)
	if err != nil {
		return nil, err
	}
	if !ok(status) {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, messageFrom(body, "login failed"))
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode login response")
	}
	if strings.TrimSpace(result.Token) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "login response carried no token")
	}
	return &result, nil
}

// Me re-validates token and returns the current user record.
func (c *Client) Me(ctx context.Context, token string) (*User, error) {
	status, body, err := c.do(ctx, http.MethodGet, "/user/me", token, nil)
	if err != nil {
		return nil, err
	}
	if !ok(status) {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, messageFrom(body, "session expired"))
	}
	var result struct {
		User User `json:"user"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode user response")
	}
	return &result.User, nil
}

// Logout revokes token on the user service.
func (c *Client) Logout(ctx context.Context, token string) error {
	status, body, err := c.do(ctx, http.MethodPost, "/user/logout", token, nil)
	if err != nil {
		return err
	}
	if !ok(status) {
		return pkgerrors.New(pkgerrors.CodeDependency, messageFrom(body, "logout failed"))
	}
	return nil
}

// Address returns the address on file for userID.
func (c *Client) Address(ctx context.Context, token string, userID int64) (*SavedAddress, error) {
	status, body, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/user/address/%d", userID), token, nil)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no saved address")
	}
	if !ok(status) {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, messageFrom(body, "saved address request failed"))
	}
	var addr SavedAddress
	if err := json.Unmarshal(body, &addr); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode saved address")
	}
	return &addr, nil
}

func (c *Client) do(ctx context.Context, method, path, token string, payload any) (int, []byte, error) {
	if c == nil {
		return 0, nil, pkgerrors.New(pkgerrors.CodeDependency, "identity client not configured")
	}

	var reader io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal identity request")
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build identity request")
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute identity request")
	}
	defer func() { _ = resp.Body.Close() }()

	limit := int64(responseBodyReadLimit)
	if ok(resp.StatusCode) {
		limit = 1 << 20
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return 0, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read identity response")
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
