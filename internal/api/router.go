package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/creditchain/config"
	"github.com/d60-Lab/creditchain/internal/api/handler"
	"github.com/d60-Lab/creditchain/internal/api/middleware"
)

// NewRouter 组装中间件与路由
func NewRouter(cfg *config.Config, h *handler.Handler) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	r.Use(gzip.Gzip(gzip.DefaultCompression))
	r.Use(cors.Default())

	limiter := middleware.NewIPRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)

	r.GET("/healthz", h.Health)

	v1 := r.Group("/api/v1")
	{
		insights := v1.Group("/insights")
		{
			insights.GET("", h.ListInsights)
			insights.GET("/trending", h.Trending)
			insights.GET("/category/:category", h.ListByCategory)
			insights.POST("", middleware.RateLimit(limiter), h.SubmitInsight)
			insights.POST("/:id/upvote", h.Upvote)
			insights.POST("/resync", h.Resync)
		}
	}

	return r
}
