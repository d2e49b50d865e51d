package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/prepprhq/preppr-backend/internal/auth"
	"github.com/prepprhq/preppr-backend/internal/cart"
	"github.com/prepprhq/preppr-backend/internal/metrics"
)

type CartHandler struct {
	Service *cart.Service
	Metrics *metrics.ServerMetrics
}

type addItemReq struct {
	StallID  string `json:"stall_id"`
	Quantity int    `json:"quantity"`
}

type setQtyReq struct {
	Quantity int `json:"quantity"`
}

type setStatusReq struct {
	Status cart.ItemStatus `json:"status"`
}

func (h *CartHandler) Register(r chi.Router) {
	r.Get("/cart", h.getCart)
	r.Post("/cart/items", h.addItem)
	r.Patch("/cart/items/{id}", h.updateItem)
	r.Delete("/cart/items/{id}", h.removeItem)
	r.Post("/cart/checkout", h.checkout)
	r.Get("/orders", h.listOrders)
	r.Get("/orders/{id}", h.getOrder)
	r.Get("/seller/order-items", h.listSellerItems)
	r.Post("/order-items/{id}/status", h.setItemStatus)
}

func (h *CartHandler) getCart(w http.ResponseWriter, r *http.Request) {
	p, ok := requireRole(w, r, auth.RoleBuyer)
	if !ok {
		return
	}
	c, err := h.Service.GetOrCreateCart(r.Context(), p.UserID)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *CartHandler) addItem(w http.ResponseWriter, r *http.Request) {
	p, ok := requireRole(w, r, auth.RoleBuyer)
	if !ok {
		return
	}
	var req addItemReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.StallID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "stall_id is required"})
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}
	c, err := h.Service.AddItem(r.Context(), p.UserID, req.StallID, req.Quantity)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *CartHandler) updateItem(w http.ResponseWriter, r *http.Request) {
	p, ok := requireRole(w, r, auth.RoleBuyer)
	if !ok {
		return
	}
	var req setQtyReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	c, err := h.Service.UpdateItem(r.Context(), p.UserID, chi.URLParam(r, "id"), req.Quantity)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *CartHandler) removeItem(w http.ResponseWriter, r *http.Request) {
	p, ok := requireRole(w, r, auth.RoleBuyer)
	if !ok {
		return
	}
	c, err := h.Service.RemoveItem(r.Context(), p.UserID, chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *CartHandler) checkout(w http.ResponseWriter, r *http.Request) {
	p, ok := requireRole(w, r, auth.RoleBuyer)
	if !ok {
		return
	}
	o, err := h.Service.Checkout(r.Context(), p.UserID)
	h.countCheckout(err)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, o)
}

func (h *CartHandler) countCheckout(err error) {
	if h.Metrics == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "rejected"
	}
	h.Metrics.Checkouts.WithLabelValues(h.Service.Policy.Name(), outcome).Inc()
}

func (h *CartHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	p, ok := requireRole(w, r, auth.RoleBuyer)
	if !ok {
		return
	}
	out, err := h.Service.ListOrders(r.Context(), p.UserID)
	if err != nil {
		writeErr(w, err)
		return
	}
	if out == nil {
		out = []cart.Order{}
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *CartHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	p, ok := requireRole(w, r, auth.RoleBuyer)
	if !ok {
		return
	}
	o, err := h.Service.GetOrder(r.Context(), p.UserID, chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *CartHandler) listSellerItems(w http.ResponseWriter, r *http.Request) {
	p, ok := requireRole(w, r, auth.RoleSeller)
	if !ok {
		return
	}
	out, err := h.Service.ListSellerItems(r.Context(), p.UserID)
	if err != nil {
		writeErr(w, err)
		return
	}
	if out == nil {
		out = []cart.OrderItem{}
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *CartHandler) setItemStatus(w http.ResponseWriter, r *http.Request) {
	p, ok := requireRole(w, r, auth.RoleSeller)
	if !ok {
		return
	}
	var req setStatusReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	it, err := h.Service.SetItemStatus(r.Context(), chi.URLParam(r, "id"), req.Status, p.UserID)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, it)
}
