package middleware

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/dopemusic/dopesite/utils"
)

// LoginPath is where anonymous visitors of protected routes are sent.
const LoginPath = "/login"

// AuthedHandler is a handler that runs only for an authenticated principal.
type AuthedHandler func(ctx *gin.Context, userID uint)

// RequireAuth gates next behind an authenticated session. Anonymous callers
// are redirected to the login page with the requested destination in "next".
// Only GET destinations are resumable; other methods log in to the default page.
func RequireAuth(next AuthedHandler) gin.HandlerFunc {
	return gate(nil, next)
}

// RequireAuthResumeAt gates a form submission. Anonymous callers resume at
// the GET page resume returns after logging in.
func RequireAuthResumeAt(resume func(ctx *gin.Context) string, next AuthedHandler) gin.HandlerFunc {
	return gate(resume, next)
}

// ResumeAtPath resumes at the submitted path, for forms served by a GET on
// the same URL.
func ResumeAtPath(ctx *gin.Context) string { return ctx.Request.URL.Path }

func gate(resume func(ctx *gin.Context) string, next AuthedHandler) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		userID, ok := CurrentUserID(ctx)
		if !ok {
			AddNotice(ctx, utils.NoticeInfo, "Please log in to access this page.")
			dest := ""
			switch {
			case ctx.Request.Method == http.MethodGet:
				dest = ctx.Request.URL.RequestURI()
			case resume != nil:
				dest = resume(ctx)
			}
			target := LoginPath
			if dest != "" {
				target += "?next=" + url.QueryEscape(dest)
			}
			ctx.Redirect(http.StatusFound, target)
			ctx.Abort()
			return
		}
		next(ctx, userID)
	}
}

// SafeNext returns next when it is a local absolute path, fallback otherwise.
func SafeNext(next, fallback string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return fallback
	}
	u, err := url.Parse(next)
	if err != nil || u.IsAbs() || u.Host != "" {
		return fallback
	}
	return next
}
