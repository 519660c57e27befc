package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/marketplace/internal/docstore"
	"github.com/xenking/marketplace/internal/domain/cart"
	"github.com/xenking/marketplace/internal/storage/memory"
)

// --- Helpers ---

type testServer struct {
	t   *testing.T
	mux *http.ServeMux
}

func newTestServer(t *testing.T, store docstore.Store, locker cart.Locker) *testServer {
	t.Helper()
	h := NewHandler(HandlerConfig{StoreDriver: "memory", DatabaseName: "test"}, store, locker)
	mux := http.NewServeMux()
	h.Register(mux)
	return &testServer{t: t, mux: mux}
}

func (s *testServer) do(method, path string, body any) (int, map[string]any) {
	s.t.Helper()
	code, raw := s.doRaw(method, path, body)
	var out map[string]any
	require.NoError(s.t, json.Unmarshal(raw, &out), string(raw))
	return code, out
}

func (s *testServer) doList(method, path string) (int, []map[string]any) {
	s.t.Helper()
	code, raw := s.doRaw(method, path, nil)
	var out []map[string]any
	require.NoError(s.t, json.Unmarshal(raw, &out), string(raw))
	return code, out
}

func (s *testServer) doRaw(method, path string, body any) (int, []byte) {
	s.t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(s.t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)
	return rec.Code, rec.Body.Bytes()
}

func (s *testServer) create(path string, body any) string {
	s.t.Helper()
	code, resp := s.do(http.MethodPost, path, body)
	require.Equal(s.t, http.StatusOK, code, resp)
	id, ok := resp["id"].(string)
	require.True(s.t, ok, resp)
	return id
}

type busyLocker struct{}

func (busyLocker) Lock(context.Context, string) (func(), error) {
	return nil, cart.ErrLocked
}

type brokenStore struct {
	*memory.Store
}

func (brokenStore) Ping(context.Context) error {
	return errors.New("connection refused")
}

// --- Tests ---

func TestRoot(t *testing.T) {
	s := newTestServer(t, memory.New(), nil)

	code, resp := s.do(http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Marketplace API running", resp["message"])
}

func TestTestDatabase(t *testing.T) {
	store := memory.New()
	s := newTestServer(t, store, nil)
	s.create("/api/users", map[string]any{"name": "Ann", "email": "ann@example.com"})

	code, resp := s.do(http.MethodGet, "/test", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "connected", resp["connection_status"])
	assert.Equal(t, "memory", resp["driver"])
	assert.Equal(t, []any{"user"}, resp["collections"])
}

func TestTestDatabase_PingError(t *testing.T) {
	s := newTestServer(t, brokenStore{memory.New()}, nil)

	code, resp := s.do(http.MethodGet, "/test", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "not connected", resp["connection_status"])
	assert.Equal(t, "error: connection refused", resp["database"])
}

func TestUsers(t *testing.T) {
	s := newTestServer(t, memory.New(), nil)
	id := s.create("/api/users", map[string]any{
		"name":      "Ann",
		"email":     "ann@example.com",
		"is_vendor": true,
	})

	code, u := s.do(http.MethodGet, "/api/users/"+id, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, id, u["id"])
	assert.Equal(t, "Ann", u["name"])
	assert.Equal(t, true, u["is_vendor"])
	assert.NotContains(t, u, "_id")

	code, list := s.doList(http.MethodGet, "/api/users")
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, list, 1)
}

func TestCreateUser_Invalid(t *testing.T) {
	s := newTestServer(t, memory.New(), nil)

	code, resp := s.do(http.MethodPost, "/api/users", map[string]any{"name": "Ann", "email": "nope"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.EqualValues(t, http.StatusBadRequest, resp["code"])

	code, _ = s.do(http.MethodPost, "/api/users", "{not json")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestGetUser_Errors(t *testing.T) {
	s := newTestServer(t, memory.New(), nil)

	code, resp := s.do(http.MethodGet, "/api/users/not-an-id", nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Invalid id", resp["message"])

	code, resp = s.do(http.MethodGet, "/api/users/6f1c2a4e-9a7b-4f55-9a51-2d1f3c1b8e11", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "User not found", resp["message"])
}

func TestListLimit_Invalid(t *testing.T) {
	s := newTestServer(t, memory.New(), nil)

	code, _ := s.do(http.MethodGet, "/api/products?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestShopsByVendor(t *testing.T) {
	s := newTestServer(t, memory.New(), nil)
	s.create("/api/shops", map[string]any{"vendor_id": "v1", "name": "One"})
	s.create("/api/shops", map[string]any{"vendor_id": "v2", "name": "Two"})

	code, list := s.doList(http.MethodGet, "/api/shops?vendor_id=v2")
	require.Equal(t, http.StatusOK, code)
	require.Len(t, list, 1)
	assert.Equal(t, "Two", list[0]["name"])
}

func TestProductLifecycle(t *testing.T) {
	s := newTestServer(t, memory.New(), nil)
	id := s.create("/api/products", map[string]any{
		"shop_id":   "s1",
		"vendor_id": "v1",
		"title":     "Red Shoes",
		"price":     12.5,
		"stock":     3,
		"tags":      []string{"footwear"},
	})
	s.create("/api/products", map[string]any{
		"shop_id":   "s1",
		"vendor_id": "v1",
		"title":     "Blue Hat",
		"price":     5,
		"tags":      []string{"red-shoe-sale"},
	})

	code, list := s.doList(http.MethodGet, "/api/products?q=red+shoe")
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, list, 2)

	code, p := s.do(http.MethodPatch, "/api/products/"+id, map[string]any{"price": 9.99})
	require.Equal(t, http.StatusOK, code, p)
	assert.EqualValues(t, 9.99, p["price"])
	assert.Equal(t, "Red Shoes", p["title"])

	code, _ = s.do(http.MethodPatch, "/api/products/"+id, map[string]any{"stock": -1})
	assert.Equal(t, http.StatusBadRequest, code)

	code, resp := s.do(http.MethodDelete, "/api/products/"+id, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, resp["ok"])

	code, resp = s.do(http.MethodDelete, "/api/products/"+id, nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "Product not found", resp["message"])
}

func TestReviews(t *testing.T) {
	s := newTestServer(t, memory.New(), nil)
	s.create("/api/reviews", map[string]any{"product_id": "p1", "user_id": "u1", "rating": 5})
	s.create("/api/reviews", map[string]any{"product_id": "p2", "user_id": "u1", "rating": 3})

	code, _ := s.do(http.MethodPost, "/api/reviews", map[string]any{"product_id": "p1", "user_id": "u1", "rating": 6})
	assert.Equal(t, http.StatusBadRequest, code)

	code, list := s.doList(http.MethodGet, "/api/reviews?product_id=p1")
	require.Equal(t, http.StatusOK, code)
	require.Len(t, list, 1)
	assert.EqualValues(t, 5, list[0]["rating"])
}

func TestCartAndCheckout(t *testing.T) {
	s := newTestServer(t, memory.New(), nil)
	a := s.create("/api/products", map[string]any{"shop_id": "s", "vendor_id": "v", "title": "A", "price": 10.00})
	b := s.create("/api/products", map[string]any{"shop_id": "s", "vendor_id": "v", "title": "B", "price": 5.50})

	code, c := s.do(http.MethodGet, "/api/cart/u1", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, []any{}, c["items"])

	s.do(http.MethodPost, "/api/cart/u1/add", map[string]any{"product_id": a, "qty": 2})
	code, c = s.do(http.MethodPost, "/api/cart/u1/add", map[string]any{"product_id": b, "qty": 1})
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, c["items"], 2)

	code, res := s.do(http.MethodPost, "/api/checkout", map[string]any{"user_id": "u1"})
	require.Equal(t, http.StatusOK, code, res)
	assert.EqualValues(t, 25.5, res["total"])
	assert.Equal(t, "paid", res["status"])
	orderID := res["id"].(string)

	code, o := s.do(http.MethodGet, "/api/orders/"+orderID, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "u1", o["user_id"])
	assert.Len(t, o["items"], 2)

	code, c = s.do(http.MethodGet, "/api/cart/u1", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, []any{}, c["items"])

	code, res = s.do(http.MethodPost, "/api/checkout", map[string]any{"user_id": "u1"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Cart is empty", res["message"])

	code, list := s.doList(http.MethodGet, "/api/orders?user_id=u1")
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, list, 1)
}

func TestRemoveFromCart_NoCart(t *testing.T) {
	s := newTestServer(t, memory.New(), nil)

	code, resp := s.do(http.MethodPost, "/api/cart/ghost/remove", map[string]any{"product_id": "p"})
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "Cart not found", resp["message"])
}

func TestAddToCart_InvalidQty(t *testing.T) {
	s := newTestServer(t, memory.New(), nil)

	code, _ := s.do(http.MethodPost, "/api/cart/u1/add", map[string]any{"product_id": "p", "qty": 0})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestCheckout_Locked(t *testing.T) {
	s := newTestServer(t, memory.New(), busyLocker{})

	code, resp := s.do(http.MethodPost, "/api/checkout", map[string]any{"user_id": "u1"})
	assert.Equal(t, http.StatusConflict, code)
	assert.EqualValues(t, http.StatusConflict, resp["code"])

	code, _ = s.do(http.MethodPost, "/api/cart/u1/add", map[string]any{"product_id": "p", "qty": 1})
	assert.Equal(t, http.StatusConflict, code)

	code, _ = s.do(http.MethodGet, "/api/cart/u1", nil)
	assert.Equal(t, http.StatusConflict, code, "creating a cart needs the lock")
}

func TestGetCart_ReadsWhileLocked(t *testing.T) {
	store := memory.New()
	code, _ := newTestServer(t, store, nil).do(http.MethodPost, "/api/cart/u1/add", map[string]any{"product_id": "p", "qty": 2})
	require.Equal(t, http.StatusOK, code)

	code, resp := newTestServer(t, store, busyLocker{}).do(http.MethodGet, "/api/cart/u1", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "u1", resp["user_id"])
}
