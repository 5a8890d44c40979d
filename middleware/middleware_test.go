package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dopemusic/dopesite/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestSafeNext(t *testing.T) {
	cases := map[string]string{
		"":                       "/media",
		"/create":                "/create",
		"/edit/3?x=1":            "/edit/3?x=1",
		"//evil.example":         "/media",
		"/\\evil.example":        "/media",
		"https://evil.example/x": "/media",
		"javascript:alert(1)":    "/media",
		"relative/path":          "/media",
	}
	for in, want := range cases {
		assert.Equal(t, want, SafeNext(in, "/media"), in)
	}
}

func newSessionEngine(store utils.SessionStore) (*gin.Engine, *SessionManager) {
	sm := NewSessionManager(store, "secret", time.Hour, false, nil)
	r := gin.New()
	r.Use(sm.Middleware())
	r.GET("/private", RequireAuth(func(ctx *gin.Context, userID uint) {
		ctx.String(http.StatusOK, "user %d", userID)
	}))
	r.POST("/private", RequireAuth(func(ctx *gin.Context, userID uint) {
		ctx.String(http.StatusOK, "posted")
	}))
	r.POST("/forms/:id", RequireAuthResumeAt(ResumeAtPath, func(ctx *gin.Context, userID uint) {
		ctx.String(http.StatusOK, "saved")
	}))
	r.GET("/login-as/:id", func(ctx *gin.Context) {
		sm.Login(ctx, 7)
		ctx.Status(http.StatusNoContent)
	})
	r.GET("/logout", func(ctx *gin.Context) {
		sm.Logout(ctx)
		ctx.Status(http.StatusNoContent)
	})
	r.GET("/notices", func(ctx *gin.Context) {
		var msgs []string
		for _, n := range Session(ctx).TakeNotices() {
			msgs = append(msgs, n.Category+":"+n.Message)
		}
		ctx.JSON(http.StatusOK, msgs)
	})
	return r, sm
}

func lastCookie(t *testing.T, w *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()
	var found *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			found = c
		}
	}
	require.NotNil(t, found, "cookie %s not set", name)
	return found
}

func TestRequireAuth_RedirectsAnonymous(t *testing.T) {
	r, sm := newSessionEngine(utils.NewMemorySessionStore())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/private?tab=2", nil))
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login?next=%2Fprivate%3Ftab%3D2", w.Header().Get("Location"))

	// the notice is kept for the next page of the same client
	cookie := lastCookie(t, w, sm.CookieName())
	req := httptest.NewRequest(http.MethodGet, "/notices", nil)
	req.AddCookie(cookie)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.JSONEq(t, `["info:Please log in to access this page."]`, w.Body.String())
}

func TestRequireAuth_PostResumesWithoutNext(t *testing.T) {
	r, _ := newSessionEngine(utils.NewMemorySessionStore())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/private", nil))
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, LoginPath, w.Header().Get("Location"))
}

func TestRequireAuthResumeAt_KeepsFormPage(t *testing.T) {
	r, _ := newSessionEngine(utils.NewMemorySessionStore())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/forms/4?draft=1", nil))
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login?next=%2Fforms%2F4", w.Header().Get("Location"))
}

func TestSessionLoginAndLogout(t *testing.T) {
	r, sm := newSessionEngine(utils.NewMemorySessionStore())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/login-as/7", nil))
	require.Equal(t, http.StatusNoContent, w.Code)
	authed := lastCookie(t, w, sm.CookieName())
	assert.True(t, authed.HttpOnly)

	req := httptest.NewRequest(http.MethodGet, "/private", nil)
	req.AddCookie(authed)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "user 7", w.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/logout", nil)
	req.AddCookie(authed)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusNoContent, w.Code)

	// the old cookie no longer maps to a session
	req = httptest.NewRequest(http.MethodGet, "/private", nil)
	req.AddCookie(authed)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusFound, w.Code)
}

func TestSessionRejectsForgedCookie(t *testing.T) {
	r, sm := newSessionEngine(utils.NewMemorySessionStore())

	token, err := utils.SignSessionID("other-secret", "some-id", time.Hour)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/private", nil)
	req.AddCookie(&http.Cookie{Name: sm.CookieName(), Value: token})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusFound, w.Code)
}

func TestRateLimiter(t *testing.T) {
	r := gin.New()
	r.Use(NewRateLimiter(2).Middleware())
	r.POST("/login", func(ctx *gin.Context) { ctx.Status(http.StatusOK) })
	r.GET("/login", func(ctx *gin.Context) { ctx.Status(http.StatusOK) })

	post := func() int {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		r.ServeHTTP(w, req)
		return w.Code
	}
	// burst is half the per-minute budget
	assert.Equal(t, http.StatusOK, post())
	assert.Equal(t, http.StatusTooManyRequests, post())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/login", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
