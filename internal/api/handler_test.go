package api_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/returnsdesk/internal/api"
	"github.com/odyssey-erp/returnsdesk/internal/integrations/sheets"
	"github.com/odyssey-erp/returnsdesk/internal/integrations/shipstation"
)

func newRouter(t *testing.T, upstream http.HandlerFunc) http.Handler {
	t.Helper()
	srv := httptest.NewServer(upstream)
	t.Cleanup(srv.Close)
	gateway := sheets.NewClient(srv.URL, time.Second)
	ship := shipstation.NewClient(shipstation.Config{}, gateway)
	r := chi.NewRouter()
	r.Route("/api", api.NewHandler(nil, gateway, ship).MountRoutes)
	return r
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	res := httptest.NewRecorder()
	h.ServeHTTP(res, httptest.NewRequest(method, target, reader))
	return res
}

func decodeError(t *testing.T, res *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	return body.Error
}

func TestLookupRelaysBody(t *testing.T) {
	h := newRouter(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/lookup", r.URL.Path)
		require.Equal(t, "LPN1", r.URL.Query().Get("lpn"))
		_, _ = w.Write([]byte(`{"asin":"B0726307618","productName":"Pool Item #21"}`))
	})

	res := do(t, h, http.MethodGet, "/api/sheets?lpn=LPN1", "")
	require.Equal(t, http.StatusOK, res.Code)
	require.JSONEq(t, `{"asin":"B0726307618","productName":"Pool Item #21"}`, res.Body.String())
}

func TestLookupRequiresIdentifier(t *testing.T) {
	h := newRouter(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("gateway must not be called")
	})
	res := do(t, h, http.MethodGet, "/api/sheets", "")
	require.Equal(t, http.StatusBadRequest, res.Code)
}

func TestLookupRelaysUpstreamStatus(t *testing.T) {
	h := newRouter(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	res := do(t, h, http.MethodGet, "/api/sheets?name=Jo", "")
	require.Equal(t, http.StatusForbidden, res.Code)
	require.Equal(t, "gateway returned status 403", decodeError(t, res))
}

func TestLookupTransportFailure(t *testing.T) {
	gateway := sheets.NewClient("http://127.0.0.1:1", 200*time.Millisecond)
	r := chi.NewRouter()
	r.Route("/api", api.NewHandler(nil, gateway, shipstation.NewClient(shipstation.Config{}, gateway)).MountRoutes)

	res := do(t, r, http.MethodGet, "/api/sheets?name=Jo", "")
	require.Equal(t, http.StatusInternalServerError, res.Code)
	require.Equal(t, "failed to connect to gateway", decodeError(t, res))
}

func TestShipmentFallbackNotFound(t *testing.T) {
	h := newRouter(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/shipment-location", r.URL.Path)
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"not found"}`))
	})
	res := do(t, h, http.MethodGet, "/api/shipstation?orderId=114-1", "")
	require.Equal(t, http.StatusNotFound, res.Code)
	require.Equal(t, "Shipment record not found", decodeError(t, res))

	res = do(t, h, http.MethodGet, "/api/shipstation", "")
	require.Equal(t, http.StatusBadRequest, res.Code)
}

func TestWebhookAck(t *testing.T) {
	h := newRouter(t, func(w http.ResponseWriter, r *http.Request) {})
	res := do(t, h, http.MethodPost, "/api/shipstation", `{"resource_url":"https://x","resource_type":"SHIP_NOTIFY"}`)
	require.Equal(t, http.StatusOK, res.Code)
	require.JSONEq(t, `{"success":true}`, res.Body.String())
}

func TestInventoryUpdateValidatesAndRelays(t *testing.T) {
	var got sheets.InventoryUpdate
	h := newRouter(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/inventory/update", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"success":true}`))
	})

	res := do(t, h, http.MethodPost, "/api/inventory/update", `{"action":"remove","asin":"A","quantity":1}`)
	require.Equal(t, http.StatusBadRequest, res.Code)

	res = do(t, h, http.MethodPost, "/api/inventory/update", `{"action":"add","asin":"A","sku":"A-NEW","quantity":2}`)
	require.Equal(t, http.StatusOK, res.Code)
	require.Equal(t, "A-NEW", got.SKU)
	require.Equal(t, 2, got.Quantity)
}

func TestInventoryList(t *testing.T) {
	h := newRouter(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"asin":"B0726307618","qty":3,"pendingQty":1,"totalQty":4}]`))
	})
	res := do(t, h, http.MethodGet, "/api/inventory", "")
	require.Equal(t, http.StatusOK, res.Code)
	require.Contains(t, res.Body.String(), "B0726307618")
}
