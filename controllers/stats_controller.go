package controllers

import (
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/dopemusic/dopesite/models"
	"github.com/dopemusic/dopesite/utils"
)

// StatsController reports content counts and page views to signed-in users.
type StatsController struct {
	db *gorm.DB
}

// NewStatsController creates a new StatsController instance.
func NewStatsController(db *gorm.DB) *StatsController {
	return &StatsController{db: db}
}

// GetStats returns aggregate site statistics.
func (s *StatsController) GetStats(ctx *gin.Context, _ uint) {
	var userCount int64
	var postCount int64
	var viewsToday int64
	var viewsTotal int64

	db := s.db.WithContext(ctx.Request.Context())
	if err := db.Model(&models.User{}).Count(&userCount).Error; err != nil {
		// Fallback to 0 instead of failing the whole endpoint
		userCount = 0
	}
	if err := db.Model(&models.Post{}).Count(&postCount).Error; err != nil {
		postCount = 0
	}

	now := time.Now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if err := db.Model(&models.PageView{}).
		Where("date = ?", today).
		Select("COALESCE(SUM(count),0)").
		Scan(&viewsToday).Error; err != nil {
		viewsToday = 0
	}
	if err := db.Model(&models.PageView{}).
		Select("COALESCE(SUM(count),0)").
		Scan(&viewsTotal).Error; err != nil {
		viewsTotal = 0
	}

	utils.Success(ctx, gin.H{
		"user_count":  userCount,
		"post_count":  postCount,
		"views_today": viewsToday,
		"views_total": viewsTotal,
	})
}

// GetTopPages returns today's most viewed paths.
func (s *StatsController) GetTopPages(ctx *gin.Context, _ uint) {
	now := time.Now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	var views []models.PageView
	if err := s.db.WithContext(ctx.Request.Context()).
		Where("date = ?", today).
		Order("count DESC").
		Limit(10).
		Find(&views).Error; err != nil {
		utils.Error(ctx, 500, 50010, "failed to load page views")
		return
	}

	items := make([]gin.H, 0, len(views))
	for _, v := range views {
		items = append(items, gin.H{"path": v.Path, "count": v.Count})
	}
	utils.Success(ctx, gin.H{"items": items})
}
