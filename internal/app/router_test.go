package app_test

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/odyssey-erp/returnsdesk/internal/api"
	"github.com/odyssey-erp/returnsdesk/internal/app"
	"github.com/odyssey-erp/returnsdesk/internal/auth"
	"github.com/odyssey-erp/returnsdesk/internal/integrations/sheets"
	"github.com/odyssey-erp/returnsdesk/internal/integrations/shipstation"
	"github.com/odyssey-erp/returnsdesk/internal/observability"
	"github.com/odyssey-erp/returnsdesk/internal/pricing"
	"github.com/odyssey-erp/returnsdesk/internal/returns"
	returnshttp "github.com/odyssey-erp/returnsdesk/internal/returns/http"
	"github.com/odyssey-erp/returnsdesk/internal/shared"
	"github.com/odyssey-erp/returnsdesk/internal/view"
	_ "github.com/odyssey-erp/returnsdesk/testing"
)

func newTestRouter(t *testing.T, passwordHash string) http.Handler {
	t.Helper()
	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/inventory":
			_, _ = w.Write([]byte(`[]`))
		case "/inventory/update":
			_, _ = w.Write([]byte(`{"success":true}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(gateway.Close)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := &app.Config{AppEnv: "test", RateLimitPerMinute: 1000, AppRequestTimeout: 5 * time.Second}
	sessions := shared.NewSessionManager(client, shared.SessionOptions{Secret: "secret", TTL: time.Hour})
	csrf := shared.NewCSRFManager("csrf")
	templates, err := view.NewEngine()
	require.NoError(t, err)

	gatewayClient := sheets.NewClient(gateway.URL, time.Second)
	service := returns.NewService(
		returns.NewDesk(gatewayClient, pricing.DefaultPolicy()),
		returns.NewRedisStore(client, time.Hour),
		gatewayClient,
		nil,
	)
	authHandler := auth.NewHandler(nil, auth.NewService(passwordHash), templates, sessions, csrf)

	return app.NewRouter(app.RouterParams{
		Config:            cfg,
		SessionManager:    sessions,
		CSRFManager:       csrf,
		AuthHandler:       authHandler,
		ReturnsHandler:    returnshttp.NewHandler(nil, service, templates, csrf),
		ReturnsAPIHandler: returnshttp.NewAPIHandler(nil, service, csrf),
		APIHandler:        api.NewHandler(nil, gatewayClient, shipstation.NewClient(shipstation.Config{}, gatewayClient)),
		Metrics:           observability.NewMetrics(),
	})
}

func TestHealthz(t *testing.T) {
	router := newTestRouter(t, "")
	res := httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, res.Code)
	require.JSONEq(t, `{"status":"ok"}`, res.Body.String())
}

func TestRootRedirectsToDesk(t *testing.T) {
	router := newTestRouter(t, "")
	res := httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusSeeOther, res.Code)
	require.Equal(t, "/returns", res.Header().Get("Location"))
}

func TestDeskRendersWithoutLoginGate(t *testing.T) {
	router := newTestRouter(t, "")
	res := httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/returns/", nil))
	require.Equal(t, http.StatusOK, res.Code)
	require.Contains(t, res.Body.String(), "Returns Desk")
	require.NotEmpty(t, res.Header().Get("X-Frame-Options"))
}

func TestDeskRequiresOperatorWhenGateEnabled(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("warehouse-pass"), bcrypt.MinCost)
	require.NoError(t, err)
	router := newTestRouter(t, string(hash))

	res := httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/returns/", nil))
	require.Equal(t, http.StatusSeeOther, res.Code)
	require.True(t, strings.HasPrefix(res.Header().Get("Location"), "/auth/login"))
}

func TestFormPostWithoutTokenIsForbidden(t *testing.T) {
	router := newTestRouter(t, "")
	form := url.Values{"name": {"Jane Doe"}, "quantity": {"1"}, "condition": {"New"}}
	req := httptest.NewRequest(http.MethodPost, "/returns/intake", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)
	require.Equal(t, http.StatusForbidden, res.Code)
}

func TestGatewayRelaySkipsCSRF(t *testing.T) {
	router := newTestRouter(t, "")
	body := `{"action":"add","asin":"B0726307618","quantity":1}`
	req := httptest.NewRequest(http.MethodPost, "/api/inventory/update", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)
	require.Equal(t, http.StatusOK, res.Code)
	require.JSONEq(t, `{"success":true}`, res.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	router := newTestRouter(t, "")
	res := httptest.NewRecorder()
	router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, res.Code)
}
