package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/marketplace/internal/docstore"
	"github.com/xenking/marketplace/internal/domain"
	"github.com/xenking/marketplace/internal/domain/cart"
	"github.com/xenking/marketplace/internal/domain/order"
	"github.com/xenking/marketplace/internal/domain/product"
	"github.com/xenking/marketplace/internal/domain/review"
	"github.com/xenking/marketplace/internal/domain/shop"
	"github.com/xenking/marketplace/internal/domain/user"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// HandlerConfig holds non-dependency configuration for the Handler.
type HandlerConfig struct {
	// StoreDriver names the document store backend, reported by /test.
	StoreDriver string
	// DatabaseName is the logical database reported by /test.
	DatabaseName string
}

// Handler serves the marketplace REST API, delegating to the domain
// repositories, the cart manager and the checkout service.
type Handler struct {
	cfg   HandlerConfig
	store docstore.Store

	users    *user.Repository
	shops    *shop.Repository
	products *product.Repository
	reviews  *review.Repository
	orders   *order.Repository
	carts    *cart.Manager
	checkout *order.Service
}

// NewHandler constructs a Handler over store. Cart writes and checkouts are
// serialized with locker when it is not nil.
func NewHandler(cfg HandlerConfig, store docstore.Store, locker cart.Locker, opts ...order.Option) *Handler {
	carts := cart.NewRepository(store)
	products := product.NewRepository(store)
	orders := order.NewRepository(store)
	if locker != nil {
		opts = append(opts, order.WithLocker(locker))
	}

	return &Handler{
		cfg:      cfg,
		store:    store,
		users:    user.NewRepository(store),
		shops:    shop.NewRepository(store),
		products: products,
		reviews:  review.NewRepository(store),
		orders:   orders,
		carts:    cart.NewManager(carts, locker),
		checkout: order.NewService(carts, products, orders, opts...),
	}
}

// Register mounts every route on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", h.Root)
	mux.HandleFunc("GET /test", h.TestDatabase)

	mux.HandleFunc("POST /api/users", h.CreateUser)
	mux.HandleFunc("GET /api/users", h.ListUsers)
	mux.HandleFunc("GET /api/users/{id}", h.GetUser)

	mux.HandleFunc("POST /api/shops", h.CreateShop)
	mux.HandleFunc("GET /api/shops", h.ListShops)
	mux.HandleFunc("GET /api/shops/{id}", h.GetShop)

	mux.HandleFunc("POST /api/products", h.CreateProduct)
	mux.HandleFunc("GET /api/products", h.ListProducts)
	mux.HandleFunc("GET /api/products/{id}", h.GetProduct)
	mux.HandleFunc("PATCH /api/products/{id}", h.UpdateProduct)
	mux.HandleFunc("DELETE /api/products/{id}", h.DeleteProduct)

	mux.HandleFunc("POST /api/reviews", h.CreateReview)
	mux.HandleFunc("GET /api/reviews", h.ListReviews)

	mux.HandleFunc("GET /api/cart/{user_id}", h.GetCart)
	mux.HandleFunc("POST /api/cart/{user_id}/add", h.AddToCart)
	mux.HandleFunc("POST /api/cart/{user_id}/remove", h.RemoveFromCart)

	mux.HandleFunc("POST /api/checkout", h.Checkout)
	mux.HandleFunc("GET /api/orders", h.ListOrders)
	mux.HandleFunc("GET /api/orders/{id}", h.GetOrder)
}

// Root answers the service banner.
func (h *Handler) Root(w http.ResponseWriter, _ *http.Request) {
	writeMessage(w, "Marketplace API running")
}

type databaseStatus struct {
	Backend          string   `json:"backend"`
	Database         string   `json:"database"`
	Driver           string   `json:"driver"`
	DatabaseName     string   `json:"database_name,omitempty"`
	ConnectionStatus string   `json:"connection_status"`
	Collections      []string `json:"collections"`
}

// TestDatabase reports store connectivity and up to 20 collection names.
// It always answers 200; failures are described in the body.
func (h *Handler) TestDatabase(w http.ResponseWriter, r *http.Request) {
	resp := databaseStatus{
		Backend:          "running",
		Database:         "not available",
		Driver:           h.cfg.StoreDriver,
		DatabaseName:     h.cfg.DatabaseName,
		ConnectionStatus: "not connected",
		Collections:      []string{},
	}

	ctx := r.Context()
	if err := h.store.Ping(ctx); err != nil {
		resp.Database = "error: " + truncate(err.Error(), 80)
		writeJSON(ctx, w, http.StatusOK, resp)
		return
	}
	resp.ConnectionStatus = "connected"

	names, err := h.store.Collections(ctx)
	if err != nil {
		resp.Database = "connected but error: " + truncate(err.Error(), 80)
		writeJSON(ctx, w, http.StatusOK, resp)
		return
	}
	if len(names) > 20 {
		names = names[:20]
	}
	resp.Collections = names
	resp.Database = "connected and working"
	writeJSON(ctx, w, http.StatusOK, resp)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// decodeBody reads a JSON request body into v.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return domain.Invalid("request", "body", "is not valid JSON")
	}
	return nil
}

// queryLimit parses the optional "limit" query parameter. Zero means the
// repository default.
func queryLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, domain.Invalid("request", "limit", "must be a non-negative integer")
	}
	return n, nil
}

// writeJSON encodes v as the response body.
func writeJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zctx.From(ctx).Debug("Write response", zap.Error(err))
	}
}
