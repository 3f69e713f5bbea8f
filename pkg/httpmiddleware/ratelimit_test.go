package httpmiddleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func limitedHandler(cfg RateLimitConfig) http.Handler {
	return RateLimit(cfg)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func hit(t *testing.T, h http.Handler, remoteAddr string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = remoteAddr
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRateLimit_AllowsWithinBudget(t *testing.T) {
	h := limitedHandler(RateLimitConfig{Max: 3, Window: time.Minute})

	for i := range 3 {
		w := hit(t, h, "172.16.0.9:1000", nil)
		require.Equal(t, http.StatusOK, w.Code, "request %d", i+1)
		assert.Equal(t, "3", w.Header().Get("X-RateLimit-Limit"))
		assert.NotEmpty(t, w.Header().Get("X-RateLimit-Remaining"))
		assert.NotEmpty(t, w.Header().Get("X-RateLimit-Reset"))
	}
}

func TestRateLimit_RejectsOverBudget(t *testing.T) {
	h := limitedHandler(RateLimitConfig{Max: 2, Window: time.Minute})

	for range 2 {
		require.Equal(t, http.StatusOK, hit(t, h, "172.16.0.1:1000", nil).Code)
	}

	w := hit(t, h, "172.16.0.1:2000", nil)
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	var body struct {
		Code    int    `json:"code"`
		Kind    string `json:"kind"`
		Message string `json:"message"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, http.StatusTooManyRequests, body.Code)
	assert.Equal(t, "rate_limited", body.Kind)
	assert.Equal(t, "rate limit exceeded", body.Message)
}

func TestRateLimit_IndependentPerClient(t *testing.T) {
	h := limitedHandler(RateLimitConfig{Max: 1, Window: time.Minute})

	assert.Equal(t, http.StatusOK, hit(t, h, "10.1.1.1:1000", nil).Code)
	assert.Equal(t, http.StatusOK, hit(t, h, "10.1.1.2:1000", nil).Code)
	// Port changes do not change the key.
	assert.Equal(t, http.StatusTooManyRequests, hit(t, h, "10.1.1.1:9999", nil).Code)
}

func TestRateLimit_KeyFunc(t *testing.T) {
	h := limitedHandler(RateLimitConfig{
		Max:    1,
		Window: time.Minute,
		KeyFunc: func(r *http.Request) string {
			return r.Header.Get("X-API-Key")
		},
	})

	assert.Equal(t, http.StatusOK, hit(t, h, "10.2.0.1:1", map[string]string{"X-API-Key": "alpha"}).Code)
	assert.Equal(t, http.StatusTooManyRequests, hit(t, h, "10.2.0.2:2", map[string]string{"X-API-Key": "alpha"}).Code)
	assert.Equal(t, http.StatusOK, hit(t, h, "10.2.0.1:1", map[string]string{"X-API-Key": "beta"}).Code)
}

func TestRateLimit_ForwardedForKeysOnFirstHop(t *testing.T) {
	h := limitedHandler(RateLimitConfig{Max: 1, Window: time.Minute})

	fwd := map[string]string{"X-Forwarded-For": "198.51.100.7, 192.0.2.1"}
	assert.Equal(t, http.StatusOK, hit(t, h, "10.3.0.1:1000", fwd).Code)
	// Same forwarded client through a different proxy shares the budget.
	assert.Equal(t, http.StatusTooManyRequests, hit(t, h, "10.3.0.2:1000", fwd).Code)
}

func TestClientIP(t *testing.T) {
	for name, tc := range map[string]struct {
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		"remote addr":     {remoteAddr: "203.0.113.9:443", want: "203.0.113.9"},
		"x real ip":       {remoteAddr: "10.0.0.1:80", headers: map[string]string{"X-Real-IP": "198.51.100.4"}, want: "198.51.100.4"},
		"forwarded chain": {remoteAddr: "10.0.0.1:80", headers: map[string]string{"X-Forwarded-For": " 198.51.100.5 , 10.0.0.2"}, want: "198.51.100.5"},
	} {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tc.remoteAddr
			for k, v := range tc.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tc.want, clientIP(req))
		})
	}
}
