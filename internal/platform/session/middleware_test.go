package session

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pulkitk069-maker/Shop.with.mukuu1/internal/platform/auth"
	"github.com/pulkitk069-maker/Shop.with.mukuu1/internal/platform/requestctx"
)

func TestMiddleware_AttachesSessionAndWritesCookie(t *testing.T) {
	mgr, _ := newTestManager(t)

	var seenID string
	handler := Middleware(mgr)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, ok := FromContext(r.Context())
		require.True(t, ok)
		seenID = sess.ID()
		require.Equal(t, sess.ID(), requestctx.SessionID(r.Context()))

		_, ok = auth.IdentityFromContext(r.Context())
		require.False(t, ok)

		sess.SetUser(&User{UID: "uid-9", Email: "ravi@example.com"})
		w.WriteHeader(http.StatusCreated)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/sign-in", nil))

	require.Equal(t, http.StatusCreated, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)

	// The user set inside the handler must be in the cookie written before the header.
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	loaded, err := mgr.Load(req)
	require.NoError(t, err)
	require.Equal(t, seenID, loaded.ID())
	require.Equal(t, "uid-9", loaded.User().UID)
}

func TestMiddleware_SessionUserBecomesIdentity(t *testing.T) {
	mgr, _ := newTestManager(t)
	sess := mgr.New()
	sess.SetUser(&User{UID: "uid-7", Email: "meera@example.com", DisplayName: "Meera"})
	req := roundTrip(t, mgr, sess)

	handler := Middleware(mgr)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := auth.IdentityFromContext(r.Context())
		require.True(t, ok)
		require.Equal(t, "uid-7", identity.UID)
		require.Equal(t, "Meera", identity.DisplayName)
		require.Equal(t, auth.SourceSession, identity.Source)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Len(t, rec.Result().Cookies(), 1)
}

func TestMiddleware_ExpiredSessionIsReplaced(t *testing.T) {
	mgr, clock := newTestManager(t)
	old := mgr.New()
	req := roundTrip(t, mgr, old)
	clock.current = clock.current.Add(mgr.cfg.IdleTimeout * 2)

	handler := Middleware(mgr)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, ok := FromContext(r.Context())
		require.True(t, ok)
		require.NotEqual(t, old.ID(), sess.ID())
	}))

	handler.ServeHTTP(httptest.NewRecorder(), req)
}
