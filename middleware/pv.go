package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dopemusic/dopesite/models"
	"github.com/dopemusic/dopesite/utils"
)

// PageViewRecorder counts successful GET page renders per UTC day and path.
func PageViewRecorder(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Request.Method != http.MethodGet {
			return
		}
		status := c.Writer.Status()
		if status < 200 || status >= 300 {
			return
		}
		path := c.Request.URL.Path
		if path == "/health" || strings.HasPrefix(path, "/static/") || strings.HasPrefix(path, "/uploads/") {
			return
		}

		now := time.Now().UTC()
		day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

		// upsert so concurrent first hits of a day do not collide on the unique index
		err := db.WithContext(c.Request.Context()).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "date"}, {Name: "path"}},
			DoUpdates: clause.Assignments(map[string]interface{}{"count": gorm.Expr("count + 1"), "updated_at": now}),
		}).Create(&models.PageView{Date: day, Path: path, Count: 1}).Error
		if err != nil {
			utils.Sugar.Warnw("page view not recorded", "path", path, "error", err)
		}
	}
}
