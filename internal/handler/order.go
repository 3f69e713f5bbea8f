package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/swiftcart/commerce-api/internal/domain/auth"
	"github.com/swiftcart/commerce-api/internal/domain/order"
)

type orderItemResponse struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    int             `json:"quantity"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

type orderResponse struct {
	ID               string              `json:"id"`
	OrderNumber      string              `json:"order_number"`
	Status           string              `json:"status"`
	PaymentStatus    string              `json:"payment_status"`
	Items            []orderItemResponse `json:"items,omitempty"`
	Subtotal         decimal.Decimal     `json:"subtotal"`
	Tax              decimal.Decimal     `json:"tax"`
	ShippingFee      decimal.Decimal     `json:"shipping_fee"`
	TotalAmount      decimal.Decimal     `json:"total_amount"`
	PriceLockedUntil time.Time           `json:"price_locked_until"`
	CreatedAt        time.Time           `json:"created_at"`
}

func toOrderResponse(o *order.Order, items []order.Item) orderResponse {
	resp := orderResponse{
		ID:               o.ID,
		OrderNumber:      o.OrderNumber,
		Status:           string(o.Status),
		PaymentStatus:    string(o.PaymentStatus),
		Subtotal:         o.Subtotal,
		Tax:              o.Tax,
		ShippingFee:      o.ShippingFee,
		TotalAmount:      o.TotalAmount,
		PriceLockedUntil: o.PriceLockedUntil,
		CreatedAt:        o.CreatedAt,
	}
	for _, it := range items {
		resp.Items = append(resp.Items, orderItemResponse{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			UnitPrice:   it.UnitPrice,
			Quantity:    it.Quantity,
			LineTotal:   it.LineTotal,
		})
	}
	return resp
}

type createOrderRequest struct {
	Address    string `json:"address"`
	City       string `json:"city"`
	State      string `json:"state"`
	Country    string `json:"country"`
	PostalCode string `json:"postal_code"`
	Phone      string `json:"phone"`
}

func (r createOrderRequest) validate() []string {
	var missing []string
	for _, f := range []struct {
		name, value string
	}{
		{"address", r.Address},
		{"city", r.City},
		{"state", r.State},
		{"country", r.Country},
		{"postal_code", r.PostalCode},
		{"phone", r.Phone},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	return missing
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request, id *auth.Identity) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, kindValidation, "malformed request body")
		return
	}
	if missing := req.validate(); len(missing) > 0 {
		writeError(w, r, http.StatusBadRequest, kindValidation,
			"missing required fields: "+strings.Join(missing, ", "))
		return
	}

	o, items, err := h.orders.CreateOrder(r.Context(), id.UserID, order.ShippingInfo{
		Address:    req.Address,
		City:       req.City,
		State:      req.State,
		Country:    req.Country,
		PostalCode: req.PostalCode,
		Phone:      req.Phone,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, toOrderResponse(o, items))
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request, id *auth.Identity) {
	orders, err := h.orders.List(r.Context(), id.UserID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	resp := make([]orderResponse, len(orders))
	for i := range orders {
		resp[i] = toOrderResponse(&orders[i], nil)
	}
	writeJSON(w, r, http.StatusOK, resp)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request, id *auth.Identity) {
	o, items, err := h.orders.Get(r.Context(), id.UserID, r.PathValue("id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toOrderResponse(o, items))
}

func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request, id *auth.Identity) {
	o, err := h.orders.Cancel(r.Context(), id.UserID, r.PathValue("id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toOrderResponse(o, nil))
}
