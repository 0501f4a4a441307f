package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"plant-monitor-backend/config"
	"plant-monitor-backend/internal/mw"
	"plant-monitor-backend/internal/notification"
	"plant-monitor-backend/internal/pipeline"
	"plant-monitor-backend/internal/store"
	"plant-monitor-backend/internal/watering"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(cfg *config.Config, s store.Store, l *watering.Limiter, p *pipeline.Service, n *notification.WorkerPool, uploadDir string) *gin.Engine {
	r := gin.Default()

	handler := NewHandler(s, l, p, n, cfg)

	burst := cfg.Server.RateLimitBurst
	if burst <= 0 {
		burst = 20
	}
	rateLimiter := mw.RateLimiter(rate.Limit(cfg.Server.RateLimitPerSec), burst)

	cacheTTL := time.Duration(cfg.Server.CacheTTLSeconds) * time.Second
	cacheStore := cache.New(cacheTTL, 10*time.Minute)
	caching := mw.Cache(cacheStore, cacheTTL)

	deviceAuth := mw.DeviceAuth(cfg.Server.DeviceToken)

	if uploadDir != "" {
		r.Static("/uploads", uploadDir)
	}

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		// Device-facing endpoints, shared-secret bearer auth.
		api.POST("/telemetry", deviceAuth, handler.PostTelemetry)
		api.POST("/image", deviceAuth, handler.PostImage)
		api.POST("/control/water", deviceAuth, handler.PostControlWater)
		api.GET("/commands", deviceAuth, handler.GetCommands)
		api.GET("/commands/:id", deviceAuth, handler.GetCommand)
		api.POST("/commands/:id", deviceAuth, handler.AckCommand)

		// Dashboard reads, unauthenticated and cached.
		api.GET("/latest", caching, handler.GetLatest)
		api.GET("/history", caching, handler.GetHistory)
		api.GET("/plant-profiles", caching, handler.GetPlantProfiles)
		api.GET("/plant-profiles/:id", caching, handler.GetPlantProfile)
		api.GET("/alerts", handler.GetAlerts)

		// Alert push subscriptions.
		api.GET("/subscriptions", handler.GetSubscription)
		api.PUT("/subscriptions", handler.PutSubscription)
		api.DELETE("/subscriptions", handler.DeleteSubscription)
		api.GET("/vapid_public_key", handler.GetVAPIDPublicKey)
	}

	return r
}
