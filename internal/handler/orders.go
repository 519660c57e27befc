package handler

import (
	"net/http"

	"github.com/xenking/marketplace/internal/domain/order"
)

type cartItemRequest struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
}

type checkoutRequest struct {
	UserID string `json:"user_id"`
}

// GetCart handles GET /api/cart/{user_id}, creating the cart on first use.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	c, err := h.carts.GetOrCreate(r.Context(), r.PathValue("user_id"))
	if err != nil {
		fail(w, r, "Cart", err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, c)
}

// AddToCart handles POST /api/cart/{user_id}/add.
func (h *Handler) AddToCart(w http.ResponseWriter, r *http.Request) {
	req := cartItemRequest{Qty: 1}
	if err := decodeBody(w, r, &req); err != nil {
		fail(w, r, "Cart", err)
		return
	}
	c, err := h.carts.AddItem(r.Context(), r.PathValue("user_id"), req.ProductID, req.Qty)
	if err != nil {
		fail(w, r, "Cart", err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, c)
}

// RemoveFromCart handles POST /api/cart/{user_id}/remove.
func (h *Handler) RemoveFromCart(w http.ResponseWriter, r *http.Request) {
	var req cartItemRequest
	if err := decodeBody(w, r, &req); err != nil {
		fail(w, r, "Cart", err)
		return
	}
	c, err := h.carts.RemoveItem(r.Context(), r.PathValue("user_id"), req.ProductID)
	if err != nil {
		fail(w, r, "Cart", err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, c)
}

// Checkout handles POST /api/checkout.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := decodeBody(w, r, &req); err != nil {
		fail(w, r, "Order", err)
		return
	}
	res, err := h.checkout.Checkout(r.Context(), req.UserID)
	if err != nil {
		fail(w, r, "Order", err)
		return
	}
	writeCheckout(w, res)
}

// ListOrders handles GET /api/orders?user_id=&limit=.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r)
	if err != nil {
		fail(w, r, "Order", err)
		return
	}
	orders, err := h.orders.List(r.Context(), order.ListQuery{
		UserID: r.URL.Query().Get("user_id"),
		Limit:  limit,
	})
	if err != nil {
		fail(w, r, "Order", err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, orders)
}

// GetOrder handles GET /api/orders/{id}.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		fail(w, r, "Order", err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, o)
}
