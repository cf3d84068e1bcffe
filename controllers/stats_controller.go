package controllers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/cppla/commentboard/models"
	"github.com/cppla/commentboard/utils"
)

const statsCacheKey = "stats"

// BoardStats is the payload of GET /api/v1/stats.
type BoardStats struct {
	CommentCount int64 `json:"comment_count"`
	UpvoteTotal  int64 `json:"upvote_total"`
}

// StatsController provides board statistics. Cached values are dropped by Invalidate,
// which the comment service calls after each write; the TTL bounds staleness if that fails.
type StatsController struct {
	db    *gorm.DB
	cache *utils.Cache
}

// NewStatsController creates a new StatsController instance. cache may be nil.
func NewStatsController(db *gorm.DB, cache *utils.Cache) *StatsController {
	return &StatsController{db: db, cache: cache}
}

// GetStats returns the number of comments and the sum of their upvotes.
func (s *StatsController) GetStats(ctx *gin.Context) {
	var stats BoardStats
	if s.cache.GetJSON(ctx.Request.Context(), statsCacheKey, &stats) {
		utils.Success(ctx, stats)
		return
	}

	db := s.db.WithContext(ctx.Request.Context())
	if err := db.Model(&models.Comment{}).Count(&stats.CommentCount).Error; err != nil {
		utils.Sugar.Errorf("count comments failed: %v", err)
		utils.Error(ctx, http.StatusInternalServerError, 50001, "failed to load stats")
		return
	}
	if err := db.Model(&models.Comment{}).
		Select("COALESCE(SUM(upvotes),0)").
		Scan(&stats.UpvoteTotal).Error; err != nil {
		utils.Sugar.Errorf("sum upvotes failed: %v", err)
		utils.Error(ctx, http.StatusInternalServerError, 50001, "failed to load stats")
		return
	}

	s.cache.SetJSON(ctx.Request.Context(), statsCacheKey, stats, 0)
	utils.Success(ctx, stats)
}

// Invalidate drops the cached stats. It matches services.ChangeHook.
func (s *StatsController) Invalidate(ctx context.Context) {
	s.cache.Delete(ctx, statsCacheKey)
}
