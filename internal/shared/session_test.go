package shared

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestSessions(t *testing.T) (*SessionManager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewSessionManager(client, SessionOptions{CookieName: "desk", Secret: "secret", TTL: time.Hour}), mr
}

func roundTrip(t *testing.T, sm *SessionManager, sess *Session) *http.Request {
	t.Helper()
	res := httptest.NewRecorder()
	require.NoError(t, sm.Commit(context.Background(), res, httptest.NewRequest(http.MethodGet, "/", nil), sess))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range res.Result().Cookies() {
		req.AddCookie(c)
	}
	return req
}

func TestSessionPersistsAcrossRequests(t *testing.T) {
	sm, _ := newTestSessions(t)
	sess, err := sm.Load(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	require.NotEmpty(t, sess.ID)
	sess.Set("k", "v")
	sess.SetOperator("operator")
	sess.AddFlash(FlashMessage{Kind: "success", Message: "Saved"})

	loaded, err := sm.Load(context.Background(), roundTrip(t, sm, sess))
	require.NoError(t, err)
	require.Equal(t, sess.ID, loaded.ID)
	require.Equal(t, "v", loaded.Get("k"))
	require.Equal(t, "operator", loaded.Operator())

	flash := loaded.PopFlash()
	require.NotNil(t, flash)
	require.Equal(t, "Saved", flash.Message)
	require.Nil(t, loaded.PopFlash())

	again, err := sm.Load(context.Background(), roundTrip(t, sm, loaded))
	require.NoError(t, err)
	require.Nil(t, again.PopFlash())
}

func TestSessionRejectsForgedCookie(t *testing.T) {
	sm, _ := newTestSessions(t)
	sess, err := sm.Load(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	roundTrip(t, sm, sess)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "desk", Value: sess.ID + ".forged"})
	loaded, err := sm.Load(context.Background(), req)
	require.NoError(t, err)
	require.NotEqual(t, sess.ID, loaded.ID)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "desk", Value: sm.CookieValue(sess)})
	loaded, err = sm.Load(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, sess.ID, loaded.ID)
}

func TestSessionExpiredStartsFresh(t *testing.T) {
	sm, mr := newTestSessions(t)
	sess, err := sm.Load(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	req := roundTrip(t, sm, sess)

	mr.FastForward(2 * time.Hour)
	loaded, err := sm.Load(context.Background(), req)
	require.NoError(t, err)
	require.NotEqual(t, sess.ID, loaded.ID)
}

func TestSessionSlidesOnUnchangedCommit(t *testing.T) {
	sm, mr := newTestSessions(t)
	sess, err := sm.Load(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	req := roundTrip(t, sm, sess)

	mr.FastForward(50 * time.Minute)
	loaded, err := sm.Load(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, sess.ID, loaded.ID)
	roundTrip(t, sm, loaded)
	require.Equal(t, time.Hour, mr.TTL(sm.redisKey(sess.ID)))
}

func TestSessionDestroyRunsHooks(t *testing.T) {
	sm, mr := newTestSessions(t)
	var dropped []string
	sm.OnDestroy(func(ctx context.Context, sessionID string) {
		dropped = append(dropped, sessionID)
	})
	sess, err := sm.Load(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	roundTrip(t, sm, sess)
	require.True(t, mr.Exists(sm.redisKey(sess.ID)))

	sm.Destroy(sess)
	res := httptest.NewRecorder()
	require.NoError(t, sm.Commit(context.Background(), res, httptest.NewRequest(http.MethodPost, "/", nil), sess))

	require.Equal(t, []string{sess.ID}, dropped)
	require.False(t, mr.Exists(sm.redisKey(sess.ID)))
	cookies := res.Result().Cookies()
	require.Len(t, cookies, 1)
	require.Equal(t, -1, cookies[0].MaxAge)
}
