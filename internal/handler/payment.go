package handler

import (
	"encoding/json"
	"net/http"

	"github.com/swiftcart/commerce-api/internal/domain/auth"
)

type initiatePaymentRequest struct {
	OrderID string `json:"order_id"`
}

type initiatePaymentResponse struct {
	AuthorizationURL string `json:"authorization_url"`
	Reference        string `json:"reference"`
}

func (h *Handler) initiatePayment(w http.ResponseWriter, r *http.Request, id *auth.Identity) {
	var req initiatePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, kindValidation, "malformed request body")
		return
	}
	if req.OrderID == "" {
		writeError(w, r, http.StatusBadRequest, kindValidation, "order_id is required")
		return
	}

	init, err := h.payments.Initiate(r.Context(), id.UserID, req.OrderID, id.Email)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, initiatePaymentResponse{
		AuthorizationURL: init.AuthorizationURL,
		Reference:        init.Reference,
	})
}

type callbackResponse struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}

// verifyPayment and paymentCallback share the same reconciliation path: both
// resolve a reference by asking the provider, never by trusting the request.
func (h *Handler) verifyPayment(w http.ResponseWriter, r *http.Request, _ *auth.Identity) {
	h.reconcile(w, r)
}

func (h *Handler) paymentCallback(w http.ResponseWriter, r *http.Request) {
	h.reconcile(w, r)
}

func (h *Handler) reconcile(w http.ResponseWriter, r *http.Request) {
	reference := r.URL.Query().Get("reference")
	if reference == "" {
		// Paystack sends trxref alongside reference; accept either.
		reference = r.URL.Query().Get("trxref")
	}

	res, err := h.payments.HandleCallback(r.Context(), reference)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, callbackResponse{
		OrderID: res.OrderID,
		Status:  string(res.Status),
	})
}
