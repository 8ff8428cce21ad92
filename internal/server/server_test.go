package server

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"pos-terminal/internal/config"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// remotePOS fakes the upstream POS API
func remotePOS(t *testing.T, sales *atomic.Int32) *httptest.Server {
	t.Helper()
	r := chi.NewRouter()
	r.Post("/users/login", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"token":"opaque-token","role":"cashier","username":"alice"}`))
	})
	r.Get("/products", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer opaque-token" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"msg":"No token"}`))
			return
		}
		w.Write([]byte(`{"products":[{"_id":"p1","name":"Latte","category":"Coffee","price":4.5,"quantity":3}]}`))
	})
	r.Post("/sales", func(w http.ResponseWriter, r *http.Request) {
		sales.Add(1)
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"sale":{"_id":"s1","timestamp":"2026-10-15T10:00:00Z","cashierId":"u1","totalAmount":4.5}}`))
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(baseURL string) *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Port: "0", Env: "development"},
		API:    config.APIConfig{BaseURL: baseURL, Timeout: 5 * time.Second, AuthScheme: "Bearer"},
		Catalog: config.CatalogConfig{
			RefreshInterval:   time.Hour,
			LowStockThreshold: 5,
		},
		Breaker: config.BreakerConfig{MaxFailures: 3, OpenTimeout: time.Second},
	}
}

func call(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	srv := NewServer(testConfig("http://127.0.0.1:1"), zap.NewNop())
	defer srv.Close()

	w := call(t, srv.Handler, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestServer_SaleAgainstRemoteAPI(t *testing.T) {
	var sales atomic.Int32
	remote := remotePOS(t, &sales)

	srv := NewServer(testConfig(remote.URL), zap.NewNop())
	defer srv.Close()
	h := srv.Handler

	w := call(t, h, http.MethodPost, "/api/session", `{"username":"alice","password":"secret"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = call(t, h, http.MethodGet, "/api/products", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"id":"p1"`)

	w = call(t, h, http.MethodPost, "/api/cart/items", `{"product_id":"p1"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = call(t, h, http.MethodPost, "/api/checkout", "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"sale_id":"s1"`)
	assert.Equal(t, int32(1), sales.Load())

	require.NoError(t, srv.Close())
	w = call(t, h, http.MethodGet, "/api/cart", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestServer_DroppedCheckoutRequestStillCompletesSale(t *testing.T) {
	var sales atomic.Int32
	received := make(chan struct{}, 1)

	r := chi.NewRouter()
	r.Post("/users/login", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"token":"opaque-token","role":"cashier","username":"alice"}`))
	})
	r.Get("/products", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"products":[{"_id":"p1","name":"Latte","category":"Coffee","price":4.5,"quantity":3}]}`))
	})
	r.Post("/sales", func(w http.ResponseWriter, r *http.Request) {
		sales.Add(1)
		received <- struct{}{}
		time.Sleep(300 * time.Millisecond)
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"sale":{"_id":"s1","totalAmount":4.5}}`))
	})
	remote := httptest.NewServer(r)
	defer remote.Close()

	srv := NewServer(testConfig(remote.URL), zap.NewNop())
	defer srv.Close()
	h := srv.Handler

	require.Equal(t, http.StatusOK, call(t, h, http.MethodPost, "/api/session", `{"username":"alice","password":"secret"}`).Code)
	require.Equal(t, http.StatusOK, call(t, h, http.MethodPost, "/api/cart/items", `{"product_id":"p1"}`).Code)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-received
		cancel()
	}()
	req := httptest.NewRequest(http.MethodPost, "/api/checkout", nil).WithContext(ctx)
	h.ServeHTTP(httptest.NewRecorder(), req)

	w := call(t, h, http.MethodGet, "/api/checkout", "")
	assert.Contains(t, w.Body.String(), `"state":"COMPLETED"`)
	assert.Contains(t, w.Body.String(), `"sale_id":"s1"`)

	w = call(t, h, http.MethodGet, "/api/cart", "")
	assert.Contains(t, w.Body.String(), `"count":0`)

	// Nothing left to sell twice
	w = call(t, h, http.MethodPost, "/api/checkout", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, int32(1), sales.Load())
}
