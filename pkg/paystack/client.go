// Package paystack is a minimal client for the hosted checkout gateway's
// transaction initialize and verify endpoints.
package paystack

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

	pkgerrors "github.com/angelmondragon/contributions-backend/pkg/errors"
)

const (
	DefaultBaseURL             = "https://api.paystack.co"
	defaultTimeout             = 15 * time.Second
	responseBodyReadLimit int64 = 4096
)

var errSecretKeyRequired = errors.New("paystack secret key is required")

// Client calls the gateway with the server-held secret key.
type Client struct {
	httpClient *http.Client
	baseURL    string
	secretKey  string
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

// WithBaseURL overrides the gateway base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		trimmed := strings.TrimSpace(baseURL)
		if trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// WithTimeout sets the transport-level timeout. Per-call deadlines come from ctx.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient = &http.Client{Timeout: d, Transport: c.httpClient.Transport}
		}
	}
}

// NewClient builds a gateway client.
func NewClient(secretKey string, opts ...Option) (*Client, error) {
	trimmedKey := strings.TrimSpace(secretKey)
	if trimmedKey == "" {
		return nil, errSecretKeyRequired
	}

	client := &Client{
		secretKey:  trimmedKey,
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return client, nil
}

// InitializeRequest is the payload for POST /transaction/initialize. Amount is in
// minor units (pesewas for GHS).
type InitializeRequest struct {
	Email       string         `json:"email"`
	Amount      int64          `json:"amount"`
	Currency    string         `json:"currency"`
	Reference   string         `json:"reference"`
	Channels    []string       `json:"channels,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CallbackURL string         `json:"callback_url,omitempty"`
}

// Authorization is the checkout session returned by initialize.
type Authorization struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

// Transaction is the subset of the verify payload the service uses.
type Transaction struct {
	ID              int64      `json:"id"`
	Status          string     `json:"status"`
	Reference       string     `json:"reference"`
	Amount          int64      `json:"amount"`
	Currency        string     `json:"currency"`
	Channel         string     `json:"channel"`
	GatewayResponse string     `json:"gateway_response"`
	PaidAt          *time.Time `json:"paid_at"`
}

// StatusSuccess is the only gateway status that means money moved.
const StatusSuccess = "success"

type envelope[T any] struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    *T     `json:"data"`
}

// InitializeTransaction opens a hosted checkout session.
func (c *Client) InitializeTransaction(ctx context.Context, req InitializeRequest) (*Authorization, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "payment gateway client not configured")
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal initialize request")
	}

	auth, err := do[Authorization](ctx, c, http.MethodPost, c.buildURL("transaction/initialize"), payload, "initialize")
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(auth.AuthorizationURL) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeGateway, "initialize response missing authorization_url")
	}
	return auth, nil
}

// VerifyTransaction fetches the gateway's view of a transaction by reference.
func (c *Client) VerifyTransaction(ctx context.Context, reference string) (*Transaction, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "payment gateway client not configured")
	}
	trimmed := strings.TrimSpace(reference)
	if trimmed == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reference is required")
	}

	txn, err := do[Transaction](ctx, c, http.MethodGet, c.buildURL("transaction/verify/"+url.PathEscape(trimmed)), nil, "verify")
	if err != nil {
		return nil, err
	}
	if txn.Status == "" {
		return nil, pkgerrors.New(pkgerrors.CodeGateway, "verify response missing status")
	}
	return txn, nil
}

func do[T any](ctx context.Context, c *Client, method, target string, body []byte, op string) (*T, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, fmt.Sprintf("build %s request", op))
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.secretKey)
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeGateway, err, fmt.Sprintf("execute %s request", op))
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeGateway, err, fmt.Sprintf("read %s response", op))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := gatewayMessage(raw)
		return nil, pkgerrors.Wrap(pkgerrors.CodeGateway, &StatusError{StatusCode: resp.StatusCode, Message: msg}, fmt.Sprintf("%s request failed", op))
	}

	var env envelope[T]
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeGateway, err, fmt.Sprintf("decode %s response", op))
	}
	if !env.Status || env.Data == nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeGateway, &StatusError{StatusCode: resp.StatusCode, Message: env.Message}, fmt.Sprintf("%s rejected by gateway", op))
	}
	return env.Data, nil
}

// StatusError carries the gateway's own status and message. It is logged, never
// returned to API clients.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("gateway status %d", e.StatusCode)
	}
	return fmt.Sprintf("gateway status %d: %s", e.StatusCode, e.Message)
}

func gatewayMessage(raw []byte) string {
	var body struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &body); err == nil && body.Message != "" {
		return body.Message
	}
	if int64(len(raw)) > responseBodyReadLimit {
		raw = raw[:responseBodyReadLimit]
	}
	return strings.TrimSpace(string(raw))
}

func (c *Client) buildURL(path string) string {
	return fmt.Sprintf("%s/%s", strings.TrimRight(c.baseURL, "/"), strings.TrimLeft(path, "/"))
}
