package handler

import (
	"encoding/json"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/swiftcart/commerce-api/internal/domain/auth"
	"github.com/swiftcart/commerce-api/internal/domain/cart"
)

type cartLineResponse struct {
	ItemID      string          `json:"item_id"`
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    int             `json:"quantity"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

type cartResponse struct {
	ID       string             `json:"id"`
	Items    []cartLineResponse `json:"items"`
	Subtotal decimal.Decimal    `json:"subtotal"`
	Count    int                `json:"count"`
}

func toCartResponse(v *cart.View) cartResponse {
	items := make([]cartLineResponse, len(v.Lines))
	for i, l := range v.Lines {
		items[i] = cartLineResponse{
			ItemID:      l.ID,
			ProductID:   l.ProductID,
			ProductName: l.ProductName,
			UnitPrice:   l.UnitPrice,
			Quantity:    l.Quantity,
			LineTotal:   l.Total(),
		}
	}
	return cartResponse{
		ID:       v.Cart.ID,
		Items:    items,
		Subtotal: v.Subtotal,
		Count:    v.Count,
	}
}

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request, id *auth.Identity) {
	v, err := h.carts.Get(r.Context(), id.UserID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toCartResponse(v))
}

type addCartItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

func (h *Handler) addCartItem(w http.ResponseWriter, r *http.Request, id *auth.Identity) {
	var req addCartItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, kindValidation, "malformed request body")
		return
	}
	if req.ProductID == "" {
		writeError(w, r, http.StatusBadRequest, kindValidation, "product_id is required")
		return
	}

	v, err := h.carts.AddItem(r.Context(), id.UserID, req.ProductID, req.Quantity)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toCartResponse(v))
}

type updateCartItemRequest struct {
	Quantity int `json:"quantity"`
}

func (h *Handler) updateCartItem(w http.ResponseWriter, r *http.Request, id *auth.Identity) {
	var req updateCartItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, kindValidation, "malformed request body")
		return
	}

	v, err := h.carts.UpdateItem(r.Context(), id.UserID, r.PathValue("id"), req.Quantity)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toCartResponse(v))
}

func (h *Handler) removeCartItem(w http.ResponseWriter, r *http.Request, id *auth.Identity) {
	v, err := h.carts.RemoveItem(r.Context(), id.UserID, r.PathValue("id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toCartResponse(v))
}

func (h *Handler) clearCart(w http.ResponseWriter, r *http.Request, id *auth.Identity) {
	v, err := h.carts.Clear(r.Context(), id.UserID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toCartResponse(v))
}
