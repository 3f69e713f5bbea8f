// Package paystack implements the payment.Gateway contract against the
// Paystack transaction API. The provider is treated as untrusted and
// possibly slow: every call carries the client's bounded timeout, and
// transport or decoding failures surface as *payment.GatewayError so callers
// can tell "could not reach provider" apart from "payment declined".
package paystack

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/go-faster/errors"

	"github.com/swiftcart/commerce-api/internal/domain/payment"
)

// DefaultBaseURL is the production Paystack API endpoint.
const DefaultBaseURL = "https://api.paystack.co"

// successStatus is the provider's terminal success value for a transaction.
const successStatus = "success"

var _ payment.Gateway = (*Client)(nil)

// Config configures a Paystack Client.
type Config struct {
	// SecretKey authenticates requests (Bearer token).
	SecretKey string
	// BaseURL overrides the API endpoint, mainly for tests.
	BaseURL string
	// Timeout bounds each outbound call. Defaults to 30s.
	Timeout time.Duration
}

// Client talks to the Paystack transaction API.
type Client struct {
	http      *http.Client
	baseURL   string
	secretKey string
}

// NewClient creates a Client with a bounded-timeout HTTP client.
func NewClient(cfg Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		http:      &http.Client{Timeout: timeout},
		baseURL:   baseURL,
		secretKey: cfg.SecretKey,
	}
}

// envelope is the common Paystack response wrapper.
type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type initializeData struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

type verifyData struct {
	Status    string `json:"status"`
	Reference string `json:"reference"`
}

// Initialize creates a provider transaction and returns the authorization URL
// the customer must visit. Amounts are already in minor units (kobo).
func (c *Client) Initialize(ctx context.Context, req payment.InitializeRequest) (*payment.Authorization, error) {
	body := map[string]any{
		"email":        req.Email,
		"amount":       req.AmountMinor,
		"reference":    req.Reference,
		"callback_url": req.CallbackURL,
	}

	env, _, err := c.post(ctx, "/transaction/initialize", body)
	if err != nil {
		return nil, &payment.GatewayError{Op: "initialize", Err: err}
	}
	if !env.Status {
		return nil, &payment.GatewayError{Op: "initialize", Err: errors.Errorf("provider rejected initialization: %s", env.Message)}
	}

	var data initializeData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, &payment.GatewayError{Op: "initialize", Err: errors.Wrap(err, "decode data")}
	}
	if data.AuthorizationURL == "" {
		return nil, &payment.GatewayError{Op: "initialize", Err: errors.New("missing authorization_url in response")}
	}

	return &payment.Authorization{
		AuthorizationURL:  data.AuthorizationURL,
		AccessCode:        data.AccessCode,
		ProviderReference: data.Reference,
	}, nil
}

// Verify asks the provider for the authoritative status of a reference. A
// provider-reported non-success is a normal result, not an error.
func (c *Client) Verify(ctx context.Context, reference string) (*payment.VerifyResult, error) {
	env, raw, err := c.get(ctx, "/transaction/verify/"+url.PathEscape(reference))
	if err != nil {
		return nil, &payment.GatewayError{Op: "verify", Err: err}
	}

	var data verifyData
	if env.Status && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return nil, &payment.GatewayError{Op: "verify", Err: errors.Wrap(err, "decode data")}
		}
	}

	return &payment.VerifyResult{
		Success:        env.Status && data.Status == successStatus,
		ProviderStatus: data.Status,
		Raw:            raw,
	}, nil
}

func (c *Client) post(ctx context.Context, path string, body any) (*envelope, []byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, nil, errors.Wrap(err, "encode request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, nil, errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req)
}

func (c *Client) get(ctx context.Context, path string) (*envelope, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, nil, errors.Wrap(err, "build request")
	}

	return c.do(req)
}

func (c *Client) do(req *http.Request) (*envelope, []byte, error) {
	req.Header.Set("Authorization", "Bearer "+c.secretKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, errors.Wrap(err, "call provider")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, nil, errors.Wrap(err, "read response")
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, nil, errors.Errorf("provider returned %d", resp.StatusCode)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, nil, errors.Wrap(err, "decode response")
	}

	return &env, raw, nil
}
