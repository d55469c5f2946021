package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"cart-service/internal/cart"
	"cart-service/internal/catalog"
	"cart-service/internal/clientconfig"
	"cart-service/internal/models"
	"cart-service/internal/service"
	"cart-service/internal/session"
	"cart-service/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testServer struct {
	router  *gin.Engine
	handler *Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	backend := cart.NewSimulatedBackend(cart.Latency{}, 0)
	storage := store.NewMemory()
	sessions := session.NewManager(func(ctx context.Context, id string) (*cart.Engine, error) {
		return cart.NewEngine(ctx, id, backend, storage, cart.WithLogger(zap.NewNop()))
	}, 0)
	t.Cleanup(sessions.Shutdown)

	svc := service.NewCartService(sessions, catalog.NewMock(), storage, nil)
	h := NewHandler(svc, clientconfig.Default())

	router := gin.New()
	h.SetupRoutes(router)
	return &testServer{router: router, handler: h}
}

func (s *testServer) do(t *testing.T, method, path, sessionID, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if sessionID != "" {
		req.Header.Set(SessionHeader, sessionID)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

type cartBody struct {
	SessionID string `json:"session_id"`
	Items     []struct {
		ID       string  `json:"id"`
		Quantity int     `json:"quantity"`
		Price    float64 `json:"price"`
	} `json:"items"`
	Discount struct {
		Code   string  `json:"code"`
		Amount float64 `json:"amount"`
	} `json:"discount"`
	Totals struct {
		Subtotal float64 `json:"subtotal"`
		Tax      float64 `json:"tax"`
		Shipping float64 `json:"shipping"`
		Total    float64 `json:"total"`
	} `json:"totals"`
	Errors []struct {
		Kind    string `json:"kind"`
		Message string `json:"message"`
	} `json:"errors"`
	ItemCount int  `json:"item_count"`
	CanUndo   bool `json:"can_undo"`
}

func decodeCart(t *testing.T, w *httptest.ResponseRecorder) cartBody {
	t.Helper()
	var body cartBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestHealthAndReady(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodGet, "/ready", "", "")
	assert.Equal(t, http.StatusOK, w.Code)

	s.handler.AddReadinessCheck("redis", func(context.Context) error { return errors.New("connection refused") })
	w = s.do(t, http.MethodGet, "/ready", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")
}

func TestProducts(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/api/v1/products", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Products []struct {
			ID string `json:"id"`
		} `json:"products"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list.Products, 6)

	w = s.do(t, http.MethodGet, "/api/v1/products/2", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"price":49.99`)

	w = s.do(t, http.MethodGet, "/api/v1/products/999", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCart_SessionHeaderGenerated(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/api/v1/cart", "", "")
	require.Equal(t, http.StatusOK, w.Code)

	id := w.Header().Get(SessionHeader)
	assert.NotEmpty(t, id)
	assert.Equal(t, id, decodeCart(t, w).SessionID)

	w = s.do(t, http.MethodGet, "/api/v1/cart", "mine", "")
	assert.Equal(t, "mine", w.Header().Get(SessionHeader))
}

func TestCart_FullFlow(t *testing.T) {
	s := newTestServer(t)
	const sid = "flow"

	w := s.do(t, http.MethodPost, "/api/v1/cart/items", sid, `{"product_id":"5","quantity":1}`)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeCart(t, w)
	require.Len(t, body.Items, 1)
	assert.InDelta(t, 19.99, body.Totals.Subtotal, 1e-9)

	w = s.do(t, http.MethodPost, "/api/v1/cart/items", sid, `{"product_id":"5","quantity":2}`)
	require.Equal(t, http.StatusOK, w.Code)
	body = decodeCart(t, w)
	require.Len(t, body.Items, 1)
	assert.Equal(t, 3, body.Items[0].Quantity)

	w = s.do(t, http.MethodPut, "/api/v1/cart/items/5", sid, `{"quantity":1}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, decodeCart(t, w).ItemCount)

	w = s.do(t, http.MethodPost, "/api/v1/cart/discount", sid, `{"code":"save10"}`)
	require.Equal(t, http.StatusOK, w.Code)
	body = decodeCart(t, w)
	assert.Equal(t, "SAVE10", body.Discount.Code)
	assert.InDelta(t, 10, body.Discount.Amount, 1e-9)

	w = s.do(t, http.MethodPost, "/api/v1/cart/discount", sid, `{"code":"nope"}`)
	require.Equal(t, http.StatusOK, w.Code)
	body = decodeCart(t, w)
	require.Len(t, body.Errors, 1)
	assert.Equal(t, "Invalid discount code", body.Errors[0].Message)

	w = s.do(t, http.MethodDelete, "/api/v1/cart/items/5", sid, "")
	require.Equal(t, http.StatusOK, w.Code)
	body = decodeCart(t, w)
	assert.Empty(t, body.Items)
	assert.InDelta(t, 0, body.Totals.Total, 1e-9, "total never negative")

	w = s.do(t, http.MethodPost, "/api/v1/cart/undo", sid, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeCart(t, w).Items, 1)

	w = s.do(t, http.MethodPost, "/api/v1/cart/clear", sid, "")
	require.Equal(t, http.StatusOK, w.Code)
	body = decodeCart(t, w)
	assert.Empty(t, body.Items)
	assert.True(t, body.CanUndo)
}

func TestCart_UpdateToZeroRemoves(t *testing.T) {
	s := newTestServer(t)
	const sid = "zero"

	s.do(t, http.MethodPost, "/api/v1/cart/items", sid, `{"product_id":"1","quantity":1}`)
	w := s.do(t, http.MethodPut, "/api/v1/cart/items/1", sid, `{"quantity":0}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decodeCart(t, w).Items)
}

func TestCart_BadRequests(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/v1/cart/items", "s", `{"quantity":1}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPut, "/api/v1/cart/items/1", "s", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/cart/items", "s", `{"product_id":"404","quantity":1}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCart_Checkout(t *testing.T) {
	s := newTestServer(t)
	const sid = "buyer"

	w := s.do(t, http.MethodPost, "/api/v1/cart/checkout", sid, "")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	s.do(t, http.MethodPost, "/api/v1/cart/items", sid, `{"product_id":"3","quantity":2}`)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/checkout", nil)
	req.Header.Set(SessionHeader, sid)
	req.Header.Set("Idempotency-Key", "abc")
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code)

	var first service.CheckoutResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &first))
	assert.Equal(t, 2, first.ItemCount)

	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var second service.CheckoutResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &second))
	assert.True(t, second.Duplicate)
	assert.Equal(t, first.CheckoutID, second.CheckoutID)
}

func TestClients(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/api/v1/clients", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "client-a")

	w = s.do(t, http.MethodGet, "/api/v1/clients/unknown", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	var client clientconfig.Client
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &client))
	assert.Equal(t, "default", client.ID)
}

type unreachableStorage struct{}

func (unreachableStorage) Load(context.Context, string) (*models.PersistedCart, error) {
	return nil, errors.New("dial tcp 10.0.0.5:6379: connect: connection refused")
}

func (unreachableStorage) Save(context.Context, string, *models.PersistedCart) error {
	return errors.New("dial tcp 10.0.0.5:6379: connect: connection refused")
}

func TestCart_StorageUnavailable(t *testing.T) {
	gin.SetMode(gin.TestMode)

	backend := cart.NewSimulatedBackend(cart.Latency{}, 0)
	sessions := session.NewManager(func(ctx context.Context, id string) (*cart.Engine, error) {
		return cart.NewEngine(ctx, id, backend, unreachableStorage{}, cart.WithLogger(zap.NewNop()))
	}, 0)
	t.Cleanup(sessions.Shutdown)

	svc := service.NewCartService(sessions, catalog.NewMock(), store.NewMemory(), nil)
	router := gin.New()
	NewHandler(svc, clientconfig.Default()).SetupRoutes(router)
	s := &testServer{router: router}

	w := s.do(t, http.MethodGet, "/api/v1/cart", "s1", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = s.do(t, http.MethodPost, "/api/v1/cart/items", "s1", `{"product_id":"1","quantity":1}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
