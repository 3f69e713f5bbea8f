// Package handler exposes the commerce API over HTTP. Handlers validate
// input, delegate to the domain services, and map domain errors to stable
// machine-readable error kinds.
package handler

import (
	"net/http"

	"github.com/swiftcart/commerce-api/internal/domain/auth"
	"github.com/swiftcart/commerce-api/internal/domain/cart"
	"github.com/swiftcart/commerce-api/internal/domain/order"
	"github.com/swiftcart/commerce-api/internal/domain/payment"
	"github.com/swiftcart/commerce-api/internal/domain/product"
)

// Handler implements the HTTP API, delegating business logic to the injected
// domain services.
type Handler struct {
	products product.Repository
	carts    *cart.Service
	orders   *order.Service
	payments *payment.Service
	security *Security
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	products product.Repository,
	carts *cart.Service,
	orders *order.Service,
	payments *payment.Service,
	apikeys auth.Repository,
	pepper []byte,
) *Handler {
	return &Handler{
		products: products,
		carts:    carts,
		orders:   orders,
		payments: payments,
		security: NewSecurity(apikeys, pepper),
	}
}

// Register mounts all API routes on the mux.
//
// The payment callback route is deliberately unauthenticated: the external
// provider calls it, and authenticity comes from re-verifying the reference
// against the provider rather than trusting callback parameters.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/products", h.listProducts)
	mux.HandleFunc("GET /api/products/{id}", h.getProduct)

	mux.HandleFunc("GET /api/cart", h.authed(h.getCart))
	mux.HandleFunc("POST /api/cart/items", h.authed(h.addCartItem))
	mux.HandleFunc("PATCH /api/cart/items/{id}", h.authed(h.updateCartItem))
	mux.HandleFunc("DELETE /api/cart/items/{id}", h.authed(h.removeCartItem))
	mux.HandleFunc("DELETE /api/cart", h.authed(h.clearCart))

	mux.HandleFunc("POST /api/orders", h.authed(h.createOrder))
	mux.HandleFunc("GET /api/orders", h.authed(h.listOrders))
	mux.HandleFunc("GET /api/orders/{id}", h.authed(h.getOrder))
	mux.HandleFunc("POST /api/orders/{id}/cancel", h.authed(h.cancelOrder))

	mux.HandleFunc("POST /api/payments/initiate", h.authed(h.initiatePayment))
	mux.HandleFunc("GET /api/payments/verify", h.authed(h.verifyPayment))
	mux.HandleFunc("GET /api/payments/callback", h.paymentCallback)
}

// authed wraps a handler that needs a resolved user identity, responding with
// 401 when the API key is missing or invalid.
func (h *Handler) authed(next func(w http.ResponseWriter, r *http.Request, id *auth.Identity)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := h.security.Authenticate(r)
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, kindUnauthorized, "invalid or missing API key")
			return
		}
		next(w, r, id)
	}
}
