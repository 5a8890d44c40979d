package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/dopemusic/dopesite/utils"
)

// PageController serves the static label pages and the health check.
type PageController struct {
	db   *gorm.DB
	view View
}

// NewPageController creates a PageController.
func NewPageController(db *gorm.DB, view View) *PageController {
	return &PageController{db: db, view: view}
}

// Show renders a template that needs no data.
func (p *PageController) Show(template string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		p.view.HTML(ctx, http.StatusOK, template, nil)
	}
}

// Health reports whether the database answers.
func (p *PageController) Health(ctx *gin.Context) {
	sqlDB, err := p.db.DB()
	if err == nil {
		pingCtx, cancel := context.WithTimeout(ctx.Request.Context(), 2*time.Second)
		defer cancel()
		err = sqlDB.PingContext(pingCtx)
	}
	if err != nil {
		utils.Error(ctx, http.StatusServiceUnavailable, 50300, "database unavailable")
		return
	}
	utils.Success(ctx, gin.H{"status": "ok"})
}
