package routes

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/cppla/commentboard/config"
	"github.com/cppla/commentboard/controllers"
	"github.com/cppla/commentboard/gql"
	"github.com/cppla/commentboard/middleware"
	"github.com/cppla/commentboard/services"
	"github.com/cppla/commentboard/utils"
)

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(cfg config.AppConfig, db *gorm.DB) (*gin.Engine, error) {
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(middleware.RequestID())

	// access log goes to its own rolling file when GinPath is set
	accessLog := utils.Logger
	if cfg.GinPath != "" {
		gl, err := utils.NewRollingFileLogger(utils.RollingFile{
			Path:       cfg.GinPath,
			MaxSizeMB:  cfg.LogMaxSizeMB,
			MaxBackups: cfg.LogMaxBackups,
			MaxAgeDays: cfg.LogMaxAgeDays,
			Compress:   cfg.LogCompress,
		}, cfg.LogLevel)
		if err != nil {
			utils.Sugar.Warnf("gin log %s unavailable, using app logger: %v", cfg.GinPath, err)
		} else {
			accessLog = gl
		}
	}
	r.Use(utils.Ginzap(accessLog, time.RFC3339, true))
	r.Use(utils.RecoveryWithZap(accessLog, true))
	r.Use(middleware.Metrics())

	corsCfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", utils.RequestIDKey},
		ExposeHeaders: []string{"Content-Length", utils.RequestIDKey},
		MaxAge:        12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 0 || (len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*") {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	staticDir := cfg.StaticDir
	if staticDir == "" {
		staticDir = "./static"
	}
	r.Static("/static", staticDir)
	r.GET("/", func(c *gin.Context) {
		c.File(filepath.Join(staticDir, "index.html"))
	})

	r.GET("/health", func(ctx *gin.Context) {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(ctx.Request.Context())
		}
		if err != nil {
			utils.Logger.Warn("health check failed", zap.Error(err))
			utils.Error(ctx, http.StatusServiceUnavailable, 50300, "database unavailable")
			return
		}
		utils.Success(ctx, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	rdb := utils.NewRedis(cfg)
	statsController := controllers.NewStatsController(db, utils.NewCache(rdb, "commentboard:cache:"))
	commentService := services.NewCommentService(db, services.WithChangeHook(statsController.Invalidate))
	schema, err := gql.NewSchema(commentService, utils.Logger)
	if err != nil {
		return nil, fmt.Errorf("build graphql schema: %w", err)
	}
	graphqlController := controllers.NewGraphQLController(gql.NewEngine(schema, utils.Logger))

	// every method reaches the engine so unsupported ones get a GraphQL style 405
	graphqlHandlers := []gin.HandlerFunc{}
	if cfg.RateLimitEnabled() {
		graphqlHandlers = append(graphqlHandlers, middleware.RateLimitMiddleware(newLimiter(cfg, rdb)))
	}
	graphqlHandlers = append(graphqlHandlers, graphqlController.Serve)
	r.Any("/graphql", graphqlHandlers...)

	api := r.Group("/api/v1")
	api.GET("/stats", statsController.GetStats)

	r.NoRoute(func(ctx *gin.Context) {
		if strings.HasPrefix(ctx.Request.URL.Path, "/static/") {
			utils.Error(ctx, http.StatusNotFound, 40401, "static asset not found")
			return
		}
		utils.Error(ctx, http.StatusNotFound, 40400, "route not found")
	})

	return r, nil
}

func newLimiter(cfg config.AppConfig, rdb *redis.Client) middleware.Limiter {
	if rdb != nil {
		utils.Sugar.Infof("rate limit: %d/min per client, shared through redis", cfg.RateLimitPerMinute)
		return middleware.NewRedisLimiter(rdb, cfg.RateLimitPerMinute)
	}
	utils.Sugar.Infof("rate limit: %d/min per client, in memory", cfg.RateLimitPerMinute)
	return middleware.NewMemoryLimiter(cfg.RateLimitPerMinute)
}
