package paystack

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swiftcart/commerce-api/internal/domain/payment"
)

func newTestClient(handler http.HandlerFunc) (*Client, *httptest.Server) {
	srv := httptest.NewServer(handler)
	c := NewClient(Config{SecretKey: "sk_test_secret", BaseURL: srv.URL})
	return c, srv
}

func TestInitialize_Success(t *testing.T) {
	var gotAuth string
	var gotBody map[string]any

	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/transaction/initialize", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":  true,
			"message": "Authorization URL created",
			"data": map[string]any{
				"authorization_url": "https://checkout.paystack.com/abc123",
				"access_code":       "abc123",
				"reference":         "PAY-9f2c41d07ab3",
			},
		})
	})
	defer srv.Close()

	auth, err := c.Initialize(context.Background(), payment.InitializeRequest{
		Email:       "demo@swiftcart.dev",
		AmountMinor: 25250,
		Reference:   "PAY-9f2c41d07ab3",
		CallbackURL: "https://shop.example.com/api/payments/callback",
	})
	require.NoError(t, err)

	assert.Equal(t, "https://checkout.paystack.com/abc123", auth.AuthorizationURL)
	assert.Equal(t, "abc123", auth.AccessCode)
	assert.Equal(t, "PAY-9f2c41d07ab3", auth.ProviderReference)

	assert.Equal(t, "Bearer sk_test_secret", gotAuth)
	assert.Equal(t, float64(25250), gotBody["amount"])
	assert.Equal(t, "PAY-9f2c41d07ab3", gotBody["reference"])
}

func TestInitialize_ProviderRejection(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":  false,
			"message": "Invalid amount",
		})
	})
	defer srv.Close()

	_, err := c.Initialize(context.Background(), payment.InitializeRequest{AmountMinor: -1})

	var gwErr *payment.GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, "initialize", gwErr.Op)
	assert.Contains(t, gwErr.Error(), "Invalid amount")
}

func TestInitialize_ServerError(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	defer srv.Close()

	_, err := c.Initialize(context.Background(), payment.InitializeRequest{})

	var gwErr *payment.GatewayError
	require.ErrorAs(t, err, &gwErr)
}

func TestInitialize_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close() // refuse connections

	c := NewClient(Config{SecretKey: "sk_test_secret", BaseURL: srv.URL})
	_, err := c.Initialize(context.Background(), payment.InitializeRequest{})

	var gwErr *payment.GatewayError
	require.ErrorAs(t, err, &gwErr)
}

func TestInitialize_MissingAuthorizationURL(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": true,
			"data":   map[string]any{},
		})
	})
	defer srv.Close()

	_, err := c.Initialize(context.Background(), payment.InitializeRequest{})

	var gwErr *payment.GatewayError
	require.ErrorAs(t, err, &gwErr)
}

func TestVerify_Success(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/transaction/verify/PAY-9f2c41d07ab3", r.URL.Path)

		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":  true,
			"message": "Verification successful",
			"data": map[string]any{
				"status":    "success",
				"reference": "PAY-9f2c41d07ab3",
			},
		})
	})
	defer srv.Close()

	res, err := c.Verify(context.Background(), "PAY-9f2c41d07ab3")
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, "success", res.ProviderStatus)
	assert.NotEmpty(t, res.Raw)
}

func TestVerify_DeclinedIsNotAnError(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": true,
			"data": map[string]any{
				"status": "failed",
			},
		})
	})
	defer srv.Close()

	res, err := c.Verify(context.Background(), "PAY-9f2c41d07ab3")
	require.NoError(t, err)

	assert.False(t, res.Success)
	assert.Equal(t, "failed", res.ProviderStatus)
}

func TestVerify_AbandonedIsNotSuccess(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": true,
			"data": map[string]any{
				"status": "abandoned",
			},
		})
	})
	defer srv.Close()

	res, err := c.Verify(context.Background(), "PAY-9f2c41d07ab3")
	require.NoError(t, err)
	assert.False(t, res.Success)
}

func TestVerify_ServerError(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	defer srv.Close()

	_, err := c.Verify(context.Background(), "PAY-9f2c41d07ab3")

	var gwErr *payment.GatewayError
	require.ErrorAs(t, err, &gwErr)
	assert.Equal(t, "verify", gwErr.Op)
}

func TestVerify_MalformedResponse(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("not json"))
	})
	defer srv.Close()

	_, err := c.Verify(context.Background(), "PAY-9f2c41d07ab3")

	var gwErr *payment.GatewayError
	require.ErrorAs(t, err, &gwErr)
}
