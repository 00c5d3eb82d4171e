package checkoutflow

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

	"github.com/angelmondragon/contributions-backend/pkg/types"
)

const idempotencyHeader = "Idempotency-Key"

// Contribution status values as reported by the verify endpoint.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// CreateContributionRequest records a pending contribution.
type CreateContributionRequest struct {
	ProjectID        string `json:"project_id"`
	DonorFirstName   string `json:"donor_first_name"`
	DonorLastName    string `json:"donor_last_name"`
	DonorContact     string `json:"donor_contact,omitempty"`
	Units            int    `json:"units_contributed"`
	PaymentReference string `json:"payment_reference"`
	PaymentMethod    string `json:"payment_method"`
}

// Contribution is the server's view of a contribution row.
type Contribution struct {
	ID               string `json:"id"`
	ProjectID        string `json:"project_id"`
	AmountGHS        string `json:"amount_ghs"`
	UnitsContributed int    `json:"units_contributed"`
	PaymentReference string `json:"payment_reference"`
	PaymentMethod    string `json:"payment_method"`
	Status           string `json:"status"`
}

// InitializeRequest opens a gateway checkout; Amount is in pesewas.
type InitializeRequest struct {
	Email       string         `json:"email"`
	Amount      int64          `json:"amount"`
	Currency    string         `json:"currency"`
	Reference   string         `json:"reference"`
	Channels    []string       `json:"channels"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CallbackURL string         `json:"callback_url,omitempty"`
}

type InitializeResponse struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

type VerifyResponse struct {
	Verified         bool   `json:"verified"`
	Status           string `json:"status"`
	Reference        string `json:"reference"`
	Cached           bool   `json:"cached"`
	AlreadyProcessed bool   `json:"already_processed"`
}

// VerifyClient checks a reference's status.
type VerifyClient interface {
	Verify(ctx context.Context, reference string) (*VerifyResponse, error)
}

// Backend is everything the wizard needs from the server.
type Backend interface {
	VerifyClient
	CreateContribution(ctx context.Context, req CreateContributionRequest) (*Contribution, error)
	InitializePayment(ctx context.Context, req InitializeRequest) (*InitializeResponse, error)
}

// APIError is a non-2xx response decoded from the server's error envelope.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Details    any
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api status %d: %s: %s", e.StatusCode, e.Code, e.Message)
}

// Client talks to the contributions API with a bearer token.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

type ClientOption func(*Client)

func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

func NewClient(baseURL, token string, opts ...ClientOption) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, errors.New("api base url required")
	}
	client := &Client{
		baseURL:    trimmed,
		token:      strings.TrimSpace(token),
		httpClient: &http.Client{Timeout: 20 * time.Second},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

var _ Backend = (*Client)(nil)

func (c *Client) CreateContribution(ctx context.Context, req CreateContributionRequest) (*Contribution, error) {
	var env struct {
		Data Contribution `json:"data"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/contributions", req.PaymentReference, req, &env); err != nil {
		return nil, err
	}
	return &env.Data, nil
}

func (c *Client) GetContribution(ctx context.Context, reference string) (*Contribution, error) {
	var env struct {
		Data Contribution `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/contributions/"+url.PathEscape(reference), "", nil, &env); err != nil {
		return nil, err
	}
	return &env.Data, nil
}

func (c *Client) InitializePayment(ctx context.Context, req InitializeRequest) (*InitializeResponse, error) {
	var resp InitializeResponse
	if err := c.do(ctx, http.MethodPost, "/functions/v1/initialize-payment", req.Reference, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Verify(ctx context.Context, reference string) (*VerifyResponse, error) {
	var resp VerifyResponse
	if err := c.do(ctx, http.MethodPost, "/functions/v1/verify-payment", "", map[string]string{"reference": reference}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// do sends one request. A non-empty idempotencyKey lets the server replay a retried write.
func (c *Client) do(ctx context.Context, method, path, idempotencyKey string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if idempotencyKey != "" {
		req.Header.Set(idempotencyHeader, idempotencyKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var env types.ErrorEnvelope
		if json.Unmarshal(raw, &env) == nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
			apiErr.Details = env.Error.Details
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
