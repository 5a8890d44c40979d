package controllers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/dopemusic/dopesite/middleware"
	"github.com/dopemusic/dopesite/store"
	"github.com/dopemusic/dopesite/utils"
)

// AfterLoginPath is where a login without a usable "next" ends up.
const AfterLoginPath = "/media"

// AuthController handles the login form and logout.
type AuthController struct {
	users    *store.UserStore
	sessions *middleware.SessionManager
	view     View
}

// NewAuthController creates a new AuthController instance.
func NewAuthController(users *store.UserStore, sessions *middleware.SessionManager, view View) *AuthController {
	return &AuthController{users: users, sessions: sessions, view: view}
}

// LoginForm shows the login page. Authenticated users go straight to the media page.
func (a *AuthController) LoginForm(ctx *gin.Context) {
	if _, ok := middleware.CurrentUserID(ctx); ok {
		ctx.Redirect(http.StatusFound, AfterLoginPath)
		return
	}
	a.view.HTML(ctx, http.StatusOK, "login.html", gin.H{
		"Username": "",
		"Next":     ctx.Query("next"),
	})
}

// Login verifies the submitted credentials and binds the user to the session.
// Unknown usernames and wrong passwords produce the same response.
func (a *AuthController) Login(ctx *gin.Context) {
	if _, ok := middleware.CurrentUserID(ctx); ok {
		ctx.Redirect(http.StatusFound, AfterLoginPath)
		return
	}

	username := strings.TrimSpace(ctx.PostForm("username"))
	password := ctx.PostForm("password")
	next := ctx.PostForm("next")
	if next == "" {
		next = ctx.Query("next")
	}

	user, ok := a.users.Verify(ctx.Request.Context(), username, password)
	if !ok {
		utils.Sugar.Infow("login failed", "ip", ctx.ClientIP())
		middleware.AddNotice(ctx, utils.NoticeDanger, "Invalid username or password.")
		a.view.HTML(ctx, http.StatusOK, "login.html", gin.H{
			"Username": username,
			"Next":     next,
		})
		return
	}

	a.sessions.Login(ctx, user.ID)
	utils.Sugar.Infow("login", "user_id", user.ID, "ip", ctx.ClientIP())
	ctx.Redirect(http.StatusFound, middleware.SafeNext(next, AfterLoginPath))
}

// Logout ends the session and returns to the home page.
func (a *AuthController) Logout(ctx *gin.Context, userID uint) {
	a.sessions.Logout(ctx)
	utils.Sugar.Infow("logout", "user_id", userID)
	middleware.AddNotice(ctx, utils.NoticeInfo, "You have been logged out.")
	ctx.Redirect(http.StatusFound, "/")
}
