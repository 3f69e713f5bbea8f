//go:build integration

package integration

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func addToCart(t *testing.T, productID string, quantity int) cartResponse {
	t.Helper()

	resp := do(t, http.MethodPost, "/api/cart/items", map[string]any{
		"product_id": productID,
		"quantity":   quantity,
	}, testAPIKey)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	return decodeJSON[cartResponse](t, resp)
}

func TestCartLifecycle(t *testing.T) {
	resetCart(t)

	mouse := findProduct(t, "Wireless Mouse")
	hub := findProduct(t, "USB-C Hub")

	cart := addToCart(t, mouse.ID, 2)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, "200.00", cart.Subtotal)

	cart = addToCart(t, hub.ID, 1)
	require.Len(t, cart.Items, 2)
	assert.Equal(t, "250.00", cart.Subtotal)
	assert.Equal(t, 3, cart.Count)

	// Bump the mouse line; quantities accumulate on the same line.
	cart = addToCart(t, mouse.ID, 1)
	require.Len(t, cart.Items, 2)
	assert.Equal(t, 4, cart.Count)

	// Set an explicit quantity, then remove the line.
	var mouseItem string
	for _, l := range cart.Items {
		if l.ProductID == mouse.ID {
			mouseItem = l.ItemID
		}
	}
	require.NotEmpty(t, mouseItem)

	resp := do(t, http.MethodPatch, "/api/cart/items/"+mouseItem, map[string]any{"quantity": 1}, testAPIKey)
	cart = decodeJSON[cartResponse](t, resp)
	resp.Body.Close()
	assert.Equal(t, 2, cart.Count)

	resp = do(t, http.MethodDelete, "/api/cart/items/"+mouseItem, nil, testAPIKey)
	cart = decodeJSON[cartResponse](t, resp)
	resp.Body.Close()
	require.Len(t, cart.Items, 1)
	assert.Equal(t, hub.ID, cart.Items[0].ProductID)
}

func TestCart_InsufficientStock(t *testing.T) {
	resetCart(t)

	webcam := findProduct(t, "Webcam")

	resp := do(t, http.MethodPost, "/api/cart/items", map[string]any{
		"product_id": webcam.ID,
		"quantity":   webcam.Stock + 1,
	}, testAPIKey)
	defer resp.Body.Close()

	require.Equal(t, http.StatusConflict, resp.StatusCode)
	e := decodeJSON[errorResponse](t, resp)
	assert.Equal(t, "conflict", e.Kind)
}

func TestCheckout_TotalsAndStock(t *testing.T) {
	resetCart(t)

	mouse := findProduct(t, "Wireless Mouse")
	hub := findProduct(t, "USB-C Hub")
	mouseStock := mouse.Stock
	hubStock := hub.Stock

	addToCart(t, mouse.ID, 2)
	addToCart(t, hub.ID, 1)

	resp := do(t, http.MethodPost, "/api/orders", testShipping(), testAPIKey)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	o := decodeJSON[orderResponse](t, resp)
	assert.True(t, strings.HasPrefix(o.OrderNumber, "ORD-SWC-"))
	assert.Equal(t, "pending", o.Status)
	assert.Equal(t, "pending", o.PaymentStatus)
	assert.Equal(t, "250.00", o.Subtotal)
	assert.Equal(t, "2.50", o.Tax)
	assert.Equal(t, "0.00", o.ShippingFee)
	assert.Equal(t, "252.50", o.TotalAmount)
	require.Len(t, o.Items, 2)

	// Stock is reserved and the cart is emptied.
	assert.Equal(t, mouseStock-2, findProduct(t, "Wireless Mouse").Stock)
	assert.Equal(t, hubStock-1, findProduct(t, "USB-C Hub").Stock)

	cartResp := doGetAuth(t, "/api/cart")
	cart := decodeJSON[cartResponse](t, cartResp)
	cartResp.Body.Close()
	assert.Empty(t, cart.Items)

	// Cancel returns the reservation.
	cancelResp := do(t, http.MethodPost, "/api/orders/"+o.ID+"/cancel", nil, testAPIKey)
	cancelled := decodeJSON[orderResponse](t, cancelResp)
	cancelResp.Body.Close()
	assert.Equal(t, "cancelled", cancelled.Status)
	assert.Equal(t, mouseStock, findProduct(t, "Wireless Mouse").Stock)
	assert.Equal(t, hubStock, findProduct(t, "USB-C Hub").Stock)
}

func TestCheckout_EmptyCart(t *testing.T) {
	resetCart(t)

	resp := do(t, http.MethodPost, "/api/orders", testShipping(), testAPIKey)
	defer resp.Body.Close()

	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	e := decodeJSON[errorResponse](t, resp)
	assert.Equal(t, "validation_error", e.Kind)
}

func TestCheckout_MissingShippingFields(t *testing.T) {
	resetCart(t)
	mouse := findProduct(t, "Wireless Mouse")
	addToCart(t, mouse.ID, 1)

	shipping := testShipping()
	shipping.Address = ""
	shipping.Phone = ""

	resp := do(t, http.MethodPost, "/api/orders", shipping, testAPIKey)
	defer resp.Body.Close()

	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	e := decodeJSON[errorResponse](t, resp)
	assert.Contains(t, e.Message, "address")
	assert.Contains(t, e.Message, "phone")

	resetCart(t)
}

func TestListOrders(t *testing.T) {
	resp := doGetAuth(t, "/api/orders")
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	orders := decodeJSON[[]orderResponse](t, resp)
	for _, o := range orders {
		assert.NotEmpty(t, o.ID)
		assert.NotEmpty(t, o.OrderNumber)
	}
}

func TestCancelTwice(t *testing.T) {
	resetCart(t)
	mouse := findProduct(t, "Wireless Mouse")
	addToCart(t, mouse.ID, 1)

	resp := do(t, http.MethodPost, "/api/orders", testShipping(), testAPIKey)
	o := decodeJSON[orderResponse](t, resp)
	resp.Body.Close()

	resp = do(t, http.MethodPost, "/api/orders/"+o.ID+"/cancel", nil, testAPIKey)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(t, http.MethodPost, "/api/orders/"+o.ID+"/cancel", nil, testAPIKey)
	defer resp.Body.Close()
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	e := decodeJSON[errorResponse](t, resp)
	assert.Equal(t, "conflict", e.Kind)
}
