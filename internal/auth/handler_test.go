package auth_test

import (
	"context"
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

	"github.com/odyssey-erp/returnsdesk/internal/auth"
	"github.com/odyssey-erp/returnsdesk/internal/shared"
	"github.com/odyssey-erp/returnsdesk/internal/view"
	_ "github.com/odyssey-erp/returnsdesk/testing"
)

func newAuthHandler(t *testing.T, password string) (*auth.Handler, *shared.SessionManager) {
	t.Helper()
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessionManager := shared.NewSessionManager(redisClient, shared.SessionOptions{CookieName: "test_session", Secret: "secret", TTL: time.Hour})
	csrfManager := shared.NewCSRFManager("csrfsecret")
	templates, err := view.NewEngine()
	require.NoError(t, err)

	hash := ""
	if password != "" {
		hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
		require.NoError(t, err)
		hash = string(hashed)
	}
	return auth.NewHandler(nil, auth.NewService(hash), templates, sessionManager, csrfManager), sessionManager
}

func withSession(t *testing.T, sm *shared.SessionManager, req *http.Request) (*http.Request, *shared.Session) {
	t.Helper()
	sess, err := sm.Load(context.Background(), req)
	require.NoError(t, err)
	return req.WithContext(shared.ContextWithSession(req.Context(), sess)), sess
}

func loginRequest(t *testing.T, sm *shared.SessionManager, password string) (*http.Request, *shared.Session) {
	form := url.Values{}
	form.Set("password", password)
	req := httptest.NewRequest(http.MethodPost, "/auth/login?next=/returns/", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return withSession(t, sm, req)
}

func TestLoginPage(t *testing.T) {
	handler, sm := newAuthHandler(t, "warehouse-pass")
	req, sess := withSession(t, sm, httptest.NewRequest(http.MethodGet, "/auth/login?next=/returns/", nil))

	res := httptest.NewRecorder()
	handler.ShowLoginForTest(res, req)

	require.Equal(t, http.StatusOK, res.Code)
	require.Contains(t, res.Body.String(), "<form")
	require.Contains(t, res.Body.String(), "next=")
	require.NotEmpty(t, sess.Get(shared.CSRFSessionKey))
}

func TestLoginPageRedirectsWhenGateDisabled(t *testing.T) {
	handler, sm := newAuthHandler(t, "")
	req, _ := withSession(t, sm, httptest.NewRequest(http.MethodGet, "/auth/login", nil))

	res := httptest.NewRecorder()
	handler.ShowLoginForTest(res, req)

	require.Equal(t, http.StatusSeeOther, res.Code)
	require.Equal(t, "/returns", res.Header().Get("Location"))
}

func TestLoginInvalidPassword(t *testing.T) {
	handler, sm := newAuthHandler(t, "warehouse-pass")
	req, sess := loginRequest(t, sm, "wrong-pass")

	res := httptest.NewRecorder()
	handler.HandleLoginForTest(res, req)

	require.Equal(t, http.StatusBadRequest, res.Code)
	require.Contains(t, res.Body.String(), "Invalid password")
	require.Empty(t, sess.Operator())
}

func TestLoginMissingPassword(t *testing.T) {
	handler, sm := newAuthHandler(t, "warehouse-pass")
	req, _ := loginRequest(t, sm, "")

	res := httptest.NewRecorder()
	handler.HandleLoginForTest(res, req)

	require.Equal(t, http.StatusBadRequest, res.Code)
	require.Contains(t, res.Body.String(), "Password is required")
}

func TestLoginSuccessRedirectsToNext(t *testing.T) {
	handler, sm := newAuthHandler(t, "warehouse-pass")
	req, sess := loginRequest(t, sm, "warehouse-pass")

	res := httptest.NewRecorder()
	handler.HandleLoginForTest(res, req)

	require.Equal(t, http.StatusSeeOther, res.Code)
	require.Equal(t, "/returns/", res.Header().Get("Location"))
	require.Equal(t, auth.OperatorID, sess.Operator())
}

func TestRequireOperator(t *testing.T) {
	handler, sm := newAuthHandler(t, "warehouse-pass")
	protected := handler.RequireOperator(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req, _ := withSession(t, sm, httptest.NewRequest(http.MethodGet, "/returns/", nil))
	res := httptest.NewRecorder()
	protected.ServeHTTP(res, req)
	require.Equal(t, http.StatusSeeOther, res.Code)
	require.True(t, strings.HasPrefix(res.Header().Get("Location"), "/auth/login?next="))

	req, _ = withSession(t, sm, httptest.NewRequest(http.MethodGet, "/returns/api/state", nil))
	res = httptest.NewRecorder()
	protected.ServeHTTP(res, req)
	require.Equal(t, http.StatusUnauthorized, res.Code)

	req, sess := withSession(t, sm, httptest.NewRequest(http.MethodGet, "/returns/", nil))
	sess.SetOperator(auth.OperatorID)
	res = httptest.NewRecorder()
	protected.ServeHTTP(res, req)
	require.Equal(t, http.StatusNoContent, res.Code)
}

func TestRequireOperatorDisabledGate(t *testing.T) {
	handler, sm := newAuthHandler(t, "")
	protected := handler.RequireOperator(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	req, _ := withSession(t, sm, httptest.NewRequest(http.MethodGet, "/returns/", nil))
	res := httptest.NewRecorder()
	protected.ServeHTTP(res, req)
	require.Equal(t, http.StatusNoContent, res.Code)
}
