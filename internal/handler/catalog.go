package handler

import (
	"io"
	"net/http"

	"github.com/xenking/marketplace/internal/docstore"
	"github.com/xenking/marketplace/internal/domain"
	"github.com/xenking/marketplace/internal/domain/product"
	"github.com/xenking/marketplace/internal/domain/review"
	"github.com/xenking/marketplace/internal/domain/shop"
	"github.com/xenking/marketplace/internal/domain/user"
)

// CreateUser handles POST /api/users.
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var u user.User
	if err := decodeBody(w, r, &u); err != nil {
		fail(w, r, "User", err)
		return
	}
	id, err := h.users.Create(r.Context(), &u)
	if err != nil {
		fail(w, r, "User", err)
		return
	}
	writeID(w, id)
}

// ListUsers handles GET /api/users.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r)
	if err != nil {
		fail(w, r, "User", err)
		return
	}
	users, err := h.users.List(r.Context(), limit)
	if err != nil {
		fail(w, r, "User", err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, users)
}

// GetUser handles GET /api/users/{id}.
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.users.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		fail(w, r, "User", err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, u)
}

// CreateShop handles POST /api/shops.
func (h *Handler) CreateShop(w http.ResponseWriter, r *http.Request) {
	var s shop.Shop
	if err := decodeBody(w, r, &s); err != nil {
		fail(w, r, "Shop", err)
		return
	}
	id, err := h.shops.Create(r.Context(), &s)
	if err != nil {
		fail(w, r, "Shop", err)
		return
	}
	writeID(w, id)
}

// ListShops handles GET /api/shops?vendor_id=&limit=.
func (h *Handler) ListShops(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r)
	if err != nil {
		fail(w, r, "Shop", err)
		return
	}
	shops, err := h.shops.List(r.Context(), shop.ListQuery{
		VendorID: r.URL.Query().Get("vendor_id"),
		Limit:    limit,
	})
	if err != nil {
		fail(w, r, "Shop", err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, shops)
}

// GetShop handles GET /api/shops/{id}.
func (h *Handler) GetShop(w http.ResponseWriter, r *http.Request) {
	s, err := h.shops.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		fail(w, r, "Shop", err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, s)
}

// CreateProduct handles POST /api/products.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var p product.Product
	if err := decodeBody(w, r, &p); err != nil {
		fail(w, r, "Product", err)
		return
	}
	id, err := h.products.Create(r.Context(), &p)
	if err != nil {
		fail(w, r, "Product", err)
		return
	}
	writeID(w, id)
}

// ListProducts handles GET /api/products?shop_id=&q=&category=&limit=.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r)
	if err != nil {
		fail(w, r, "Product", err)
		return
	}
	q := r.URL.Query()
	products, err := h.products.List(r.Context(), product.Query{
		ShopID:   q.Get("shop_id"),
		Category: q.Get("category"),
		Q:        q.Get("q"),
		Limit:    limit,
	})
	if err != nil {
		fail(w, r, "Product", err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, products)
}

// GetProduct handles GET /api/products/{id}.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.products.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		fail(w, r, "Product", err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, p)
}

// UpdateProduct handles PATCH /api/products/{id}. The body is a partial
// product; the updated product is returned.
func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		fail(w, r, "Product", domain.Invalid("request", "body", "is too large"))
		return
	}
	patch, err := docstore.UnmarshalDocument(data)
	if err != nil {
		fail(w, r, "Product", domain.Invalid("request", "body", "is not valid JSON"))
		return
	}
	p, err := h.products.Update(r.Context(), r.PathValue("id"), patch)
	if err != nil {
		fail(w, r, "Product", err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, p)
}

// DeleteProduct handles DELETE /api/products/{id}.
func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	ok, err := h.products.Delete(r.Context(), r.PathValue("id"))
	if err != nil {
		fail(w, r, "Product", err)
		return
	}
	if !ok {
		fail(w, r, "Product", docstore.ErrNotFound)
		return
	}
	writeOK(w)
}

// CreateReview handles POST /api/reviews.
func (h *Handler) CreateReview(w http.ResponseWriter, r *http.Request) {
	var rv review.Review
	if err := decodeBody(w, r, &rv); err != nil {
		fail(w, r, "Review", err)
		return
	}
	id, err := h.reviews.Create(r.Context(), &rv)
	if err != nil {
		fail(w, r, "Review", err)
		return
	}
	writeID(w, id)
}

// ListReviews handles GET /api/reviews?product_id=&user_id=&limit=.
func (h *Handler) ListReviews(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r)
	if err != nil {
		fail(w, r, "Review", err)
		return
	}
	q := r.URL.Query()
	reviews, err := h.reviews.List(r.Context(), review.ListQuery{
		ProductID: q.Get("product_id"),
		UserID:    q.Get("user_id"),
		Limit:     limit,
	})
	if err != nil {
		fail(w, r, "Review", err)
		return
	}
	writeJSON(r.Context(), w, http.StatusOK, reviews)
}
