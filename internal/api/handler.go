package api

import (
	"github.com/gin-gonic/gin"

	"plant-monitor-backend/config"
	"plant-monitor-backend/internal/notification"
	"plant-monitor-backend/internal/pipeline"
	"plant-monitor-backend/internal/store"
	"plant-monitor-backend/internal/watering"
)

// Error kind strings, stable across releases.
const (
	errValidation = "validation_error"
	errAuth       = "auth_error"
	errNotFound   = "not_found"
	errRateLimit  = "rate_limited"
	errUpstream   = "upstream_error"
	errInternal   = "internal_error"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store    store.Store
	limiter  *watering.Limiter
	pipeline *pipeline.Service
	notifier *notification.WorkerPool
	cfg      *config.Config
}

// NewHandler creates a new API handler.
func NewHandler(s store.Store, l *watering.Limiter, p *pipeline.Service, n *notification.WorkerPool, cfg *config.Config) *Handler {
	return &Handler{
		store:    s,
		limiter:  l,
		pipeline: p,
		notifier: n,
		cfg:      cfg,
	}
}

// data wraps a success payload the way the device client expects.
func data(c *gin.Context, status int, payload any) {
	c.JSON(status, gin.H{"data": payload})
}

// fail writes a structured error with a stable kind and a readable message.
func fail(c *gin.Context, status int, kind, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": kind, "message": message})
}
