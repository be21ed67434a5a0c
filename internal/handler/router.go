package handler

import (
	"net/http"

	"github.com/uptube/content-ingestion-go/internal/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RouterConfig carries everything NewRouter mounts.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type RouterConfig struct {
	Content        *ContentHandler
	Comments       *CommentHandler
	Subscriptions  *SubscriptionHandler
	Health         *HealthHandler
	Metrics        http.Handler
	APIKeys        []string
	AllowedOrigins []string
	Logger         *zap.Logger
}

// NewRouter builds the gin engine. Health and metrics stay outside the API
// key check.
func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.AccessLog(cfg.Logger), middleware.CORS(cfg.AllowedOrigins))

	r.GET("/health/live", cfg.Health.LivenessProbe)
	r.GET("/health/ready", cfg.Health.ReadinessProbe)
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics))
	}

	api := r.Group("/api/v1")
	if len(cfg.APIKeys) > 0 {
		api.Use(middleware.NewAPIKeyAuth(cfg.APIKeys, cfg.Logger).Handler())
	}
	api.Use(middleware.Actor())

	content := api.Group("/content")
	content.POST("", cfg.Content.Upload)
	content.GET("/:id", cfg.Content.Get)
	content.PATCH("/:id", cfg.Content.Update)
	content.DELETE("/:id", cfg.Content.Delete)
	content.POST("/:id/copy", cfg.Content.Copy)
	content.POST("/:id/views", cfg.Content.View)
	content.POST("/:id/ads", cfg.Content.AttachAds)
	content.DELETE("/:id/ads", cfg.Content.DetachAds)

	api.POST("/comments", cfg.Comments.Create)
	api.DELETE("/comments/:id", cfg.Comments.Delete)

	api.POST("/subscriptions/:channelId", cfg.Subscriptions.Toggle)

	return r
}
