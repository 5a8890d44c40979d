package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/dopemusic/dopesite/middleware"
)

// View renders HTML templates with the data every page needs.
type View struct {
	Timezone   string
	TimeLayout string
}

// HTML renders the named template. Pending notices of the session are
// consumed and shown on this page.
func (v View) HTML(ctx *gin.Context, status int, name string, data gin.H) {
	if data == nil {
		data = gin.H{}
	}
	if sess := middleware.Session(ctx); sess != nil {
		data["Notices"] = sess.TakeNotices()
	}
	_, authenticated := middleware.CurrentUserID(ctx)
	data["Authenticated"] = authenticated
	data["Timezone"] = v.Timezone
	data["TimeLayout"] = v.TimeLayout
	data["Path"] = ctx.Request.URL.Path
	ctx.HTML(status, name, data)
}

// Error renders the generic error page.
func (v View) Error(ctx *gin.Context, status int, message string) {
	v.HTML(ctx, status, "error.html", gin.H{
		"Status":  status,
		"Message": message,
	})
}

// NotFound answers unknown routes.
func (v View) NotFound(ctx *gin.Context) {
	v.Error(ctx, http.StatusNotFound, "Page not found.")
}

// MethodNotAllowed answers known routes hit with the wrong method.
func (v View) MethodNotAllowed(ctx *gin.Context) {
	v.Error(ctx, http.StatusMethodNotAllowed, "Method not allowed.")
}

func parseID(raw string) (uint, bool) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}
