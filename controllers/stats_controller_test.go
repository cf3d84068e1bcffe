package controllers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/cppla/commentboard/config"
	"github.com/cppla/commentboard/models"
	"github.com/cppla/commentboard/services"
	"github.com/cppla/commentboard/utils"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := config.OpenDatabase(config.AppConfig{
		DBDriver:    config.DriverSQLite,
		DatabaseURI: fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()),
		LogLevel:    "silent",
	})
	require.NoError(t, err)
	require.NoError(t, config.Migrate(db, &models.Comment{}))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func seed(t *testing.T, db *gorm.DB, upvotes ...int) {
	t.Helper()
	for _, n := range upvotes {
		now := time.Now().UTC()
		require.NoError(t, db.Create(&models.Comment{
			ID: uuid.NewString(), AuthorName: "a", Content: "c", Upvotes: n, CreatedAt: now, UpdatedAt: now,
		}).Error)
	}
}

func getStats(t *testing.T, sc *StatsController) BoardStats {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/api/v1/stats", sc.GetStats)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body struct {
		Code int        `json:"code"`
		Data BoardStats `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 0, body.Code)
	return body.Data
}

func TestGetStats(t *testing.T) {
	db := newTestDB(t)
	sc := NewStatsController(db, nil)

	assert.Equal(t, BoardStats{}, getStats(t, sc))

	seed(t, db, 3, -1, 0)
	assert.Equal(t, BoardStats{CommentCount: 3, UpvoteTotal: 2}, getStats(t, sc))
}

func TestGetStats_Cached(t *testing.T) {
	db := newTestDB(t)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	sc := NewStatsController(db, utils.NewCache(client, "test:"))

	seed(t, db, 5)
	first := getStats(t, sc)
	assert.Equal(t, BoardStats{CommentCount: 1, UpvoteTotal: 5}, first)
	assert.True(t, mr.Exists("test:stats"))

	seed(t, db, 1)
	assert.Equal(t, first, getStats(t, sc), "served from cache")

	mr.FastForward(time.Minute)
	assert.Equal(t, BoardStats{CommentCount: 2, UpvoteTotal: 6}, getStats(t, sc))
}

func TestGetStats_InvalidatedOnWrite(t *testing.T) {
	db := newTestDB(t)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	sc := NewStatsController(db, utils.NewCache(client, "test:"))
	svc := services.NewCommentService(db, services.WithChangeHook(sc.Invalidate))
	ctx := context.Background()

	c, err := svc.Create(ctx, "first")
	require.NoError(t, err)
	assert.Equal(t, BoardStats{CommentCount: 1}, getStats(t, sc))
	require.True(t, mr.Exists("test:stats"))

	_, err = svc.Upvote(ctx, c.ID)
	require.NoError(t, err)
	assert.False(t, mr.Exists("test:stats"))
	assert.Equal(t, BoardStats{CommentCount: 1, UpvoteTotal: 1}, getStats(t, sc))

	_, err = svc.Create(ctx, "second")
	require.NoError(t, err)
	assert.Equal(t, BoardStats{CommentCount: 2, UpvoteTotal: 1}, getStats(t, sc))
}
