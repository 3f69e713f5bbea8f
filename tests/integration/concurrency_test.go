//go:build integration

package integration

import (
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetCartAs(t *testing.T, apiKey string) {
	t.Helper()

	resp := do(t, http.MethodGet, "/api/cart", nil, apiKey)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(t, http.MethodDelete, "/api/cart", nil, apiKey)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func addToCartAs(t *testing.T, apiKey, productID string, quantity int) {
	t.Helper()

	resp := do(t, http.MethodPost, "/api/cart/items", map[string]any{
		"product_id": productID,
		"quantity":   quantity,
	}, apiKey)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func cancelOrderAs(t *testing.T, apiKey, orderID string) {
	t.Helper()

	resp := do(t, http.MethodPost, "/api/orders/"+orderID+"/cancel", nil, apiKey)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

type checkoutOutcome struct {
	status  int
	order   orderResponse
	errKind string
}

func checkoutAs(t *testing.T, apiKey string) checkoutOutcome {
	t.Helper()

	resp := do(t, http.MethodPost, "/api/orders", testShipping(), apiKey)
	defer resp.Body.Close()

	out := checkoutOutcome{status: resp.StatusCode}
	if resp.StatusCode == http.StatusCreated {
		out.order = decodeJSON[orderResponse](t, resp)
	} else {
		out.errKind = decodeJSON[errorResponse](t, resp).Kind
	}
	return out
}

// Two customers race checkouts for more units of one product than exist.
// Exactly one order may win, and stock must never go negative.
func TestConcurrentCheckout_SharedStock(t *testing.T) {
	resetCartAs(t, testAPIKey)
	resetCartAs(t, rivalAPIKey)

	webcam := findProduct(t, "Webcam")
	start := webcam.Stock
	require.GreaterOrEqual(t, start, 2, "test needs at least two units in stock")

	// Each wants more than half the stock, so both cannot be satisfied. The
	// advisory cart check passes for both; the checkout transaction decides.
	qty := start/2 + 1
	addToCartAs(t, testAPIKey, webcam.ID, qty)
	addToCartAs(t, rivalAPIKey, webcam.ID, qty)

	keys := []string{testAPIKey, rivalAPIKey}
	outcomes := make([]checkoutOutcome, len(keys))

	var wg sync.WaitGroup
	for i, key := range keys {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcomes[i] = checkoutAs(t, key)
		}()
	}
	wg.Wait()

	var winners, losers int
	var winnerIdx int
	for i, out := range outcomes {
		switch out.status {
		case http.StatusCreated:
			winners++
			winnerIdx = i
		case http.StatusConflict:
			losers++
			assert.Equal(t, "conflict", out.errKind)
		default:
			t.Fatalf("unexpected checkout status %d", out.status)
		}
	}
	require.Equal(t, 1, winners, "exactly one checkout may win the stock")
	require.Equal(t, 1, losers)

	after := findProduct(t, "Webcam").Stock
	assert.Equal(t, start-qty, after)
	assert.GreaterOrEqual(t, after, 0)

	// Return the reservation and the loser's cart.
	cancelOrderAs(t, keys[winnerIdx], outcomes[winnerIdx].order.ID)
	assert.Equal(t, start, findProduct(t, "Webcam").Stock)
	resetCartAs(t, keys[1-winnerIdx])
}

// The same cart submitted twice concurrently yields exactly one order; the
// losing attempt finds the cart gone rather than double-reserving stock.
func TestConcurrentCheckout_SameCart(t *testing.T) {
	resetCart(t)

	mat := findProduct(t, "Desk Mat")
	start := mat.Stock
	addToCart(t, mat.ID, 1)

	outcomes := make([]checkoutOutcome, 2)
	var wg sync.WaitGroup
	for i := range outcomes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcomes[i] = checkoutAs(t, testAPIKey)
		}()
	}
	wg.Wait()

	var winners int
	var winner orderResponse
	for _, out := range outcomes {
		if out.status == http.StatusCreated {
			winners++
			winner = out.order
			continue
		}
		// The losing submission sees a deactivated (or already emptied) cart.
		assert.Contains(t, []int{http.StatusNotFound, http.StatusBadRequest}, out.status)
	}
	require.Equal(t, 1, winners, "exactly one order per cart submission race")

	assert.Equal(t, start-1, findProduct(t, "Desk Mat").Stock)

	cancelOrderAs(t, testAPIKey, winner.ID)
	assert.Equal(t, start, findProduct(t, "Desk Mat").Stock)
}

type initiateResponse struct {
	AuthorizationURL string `json:"authorization_url"`
	Reference        string `json:"reference"`
}

type callbackResponse struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}

// The provider may deliver the same callback any number of times,
// concurrently. Every delivery reconciles to the same success and the order
// is completed exactly once.
func TestPaymentCallback_ConcurrentDeliveries(t *testing.T) {
	resetCart(t)

	stand := findProduct(t, "Laptop Stand")
	start := stand.Stock
	addToCart(t, stand.ID, 2)

	placed := checkoutAs(t, testAPIKey)
	require.Equal(t, http.StatusCreated, placed.status)

	resp := do(t, http.MethodPost, "/api/payments/initiate", map[string]any{
		"order_id": placed.order.ID,
	}, testAPIKey)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	init := decodeJSON[initiateResponse](t, resp)
	resp.Body.Close()

	require.True(t, strings.HasPrefix(init.Reference, "PAY-"))
	require.NotEmpty(t, init.AuthorizationURL)

	const deliveries = 5
	results := make([]callbackResponse, deliveries)
	statuses := make([]int, deliveries)

	var wg sync.WaitGroup
	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r := do(t, http.MethodGet, "/api/payments/callback?reference="+init.Reference, nil, "")
			statuses[i] = r.StatusCode
			if r.StatusCode == http.StatusOK {
				results[i] = decodeJSON[callbackResponse](t, r)
			}
			r.Body.Close()
		}()
	}
	wg.Wait()

	for i := 0; i < deliveries; i++ {
		require.Equal(t, http.StatusOK, statuses[i], "delivery %d", i)
		assert.Equal(t, placed.order.ID, results[i].OrderID)
		assert.Equal(t, "success", results[i].Status)
	}

	// One completed order; the checkout reservation is untouched by the
	// replays.
	resp = doGetAuth(t, "/api/orders/"+placed.order.ID)
	paid := decodeJSON[orderResponse](t, resp)
	resp.Body.Close()
	assert.Equal(t, "processing", paid.Status)
	assert.Equal(t, "completed", paid.PaymentStatus)
	assert.Equal(t, start-2, findProduct(t, "Laptop Stand").Stock)

	// A late manual verify resolves from the stored terminal state.
	resp = doGetAuth(t, "/api/payments/verify?reference="+init.Reference)
	verified := decodeJSON[callbackResponse](t, resp)
	resp.Body.Close()
	assert.Equal(t, "success", verified.Status)
}
