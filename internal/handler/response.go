package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/swiftcart/commerce-api/internal/domain/cart"
	"github.com/swiftcart/commerce-api/internal/domain/order"
	"github.com/swiftcart/commerce-api/internal/domain/payment"
	"github.com/swiftcart/commerce-api/internal/domain/product"
)

// Stable machine-readable error kinds. Clients branch on these, not on
// messages.
const (
	kindValidation   = "validation_error"
	kindNotFound     = "not_found"
	kindConflict     = "conflict"
	kindGateway      = "gateway_error"
	kindUnauthorized = "unauthorized"
	kindInternal     = "internal_error"
)

// errorBody is the JSON error envelope for all non-2xx responses.
type errorBody struct {
	Code    int    `json:"code"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zctx.From(r.Context()).Error("encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, kind, message string) {
	writeJSON(w, r, status, errorBody{Code: status, Kind: kind, Message: message})
}

// writeDomainError maps a domain error to its HTTP status and error kind.
// Unknown errors are logged with full context and surfaced generically.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		cartStock       *cart.InsufficientStockError
		cartUnavailable *cart.ProductUnavailableError
		unavailable     *order.ProductUnavailableError
		stock           *order.InsufficientStockError
		transition      *order.InvalidTransitionError
		orderState      *payment.InvalidOrderStateError
		gateway         *payment.GatewayError
	)

	switch {
	case errors.Is(err, cart.ErrNotFound),
		errors.Is(err, cart.ErrItemNotFound),
		errors.Is(err, product.ErrNotFound),
		errors.Is(err, order.ErrNotFound),
		errors.Is(err, payment.ErrNotFound):
		writeError(w, r, http.StatusNotFound, kindNotFound, err.Error())

	case errors.Is(err, order.ErrCartNotFound):
		writeError(w, r, http.StatusNotFound, kindNotFound, err.Error())

	case errors.Is(err, order.ErrEmptyCart),
		errors.Is(err, payment.ErrMissingReference):
		writeError(w, r, http.StatusBadRequest, kindValidation, err.Error())

	case errors.Is(err, payment.ErrOrderExpired):
		writeError(w, r, http.StatusConflict, kindConflict, err.Error())

	case errors.As(err, &cartStock),
		errors.As(err, &stock),
		errors.As(err, &transition),
		errors.As(err, &orderState):
		writeError(w, r, http.StatusConflict, kindConflict, err.Error())

	case errors.As(err, &cartUnavailable),
		errors.As(err, &unavailable):
		writeError(w, r, http.StatusUnprocessableEntity, kindValidation, err.Error())

	case errors.As(err, &gateway):
		// Unknown outcome on the provider side: tell the caller to retry.
		writeError(w, r, http.StatusBadGateway, kindGateway, "payment provider unavailable, retry later")

	default:
		zctx.From(r.Context()).Error("unhandled error", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, kindInternal, "internal error")
	}
}
