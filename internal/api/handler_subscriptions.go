package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"plant-monitor-backend/internal/model"
)

type subscriptionRequest struct {
	Endpoint string `json:"endpoint" binding:"required"`
	P256DH   string `json:"p256dh" binding:"required"`
	Auth     string `json:"auth" binding:"required"`
	DeviceID string `json:"device_id"`
}

// PutSubscription handles PUT /api/subscriptions: register or refresh a
// browser push subscription. An empty device_id subscribes to every device.
func (h *Handler) PutSubscription(c *gin.Context) {
	var req subscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, errValidation, "malformed subscription: "+err.Error())
		return
	}

	sub := model.PushSubscription{
		Endpoint: req.Endpoint,
		P256DH:   req.P256DH,
		Auth:     req.Auth,
		DeviceID: req.DeviceID,
	}
	if err := h.store.UpsertSubscription(c.Request.Context(), &sub); err != nil {
		fail(c, http.StatusInternalServerError, errInternal, "failed to save subscription")
		return
	}
	data(c, http.StatusCreated, sub)
}

// GetSubscription handles GET /api/subscriptions?endpoint=.
func (h *Handler) GetSubscription(c *gin.Context) {
	endpoint := c.Query("endpoint")
	if endpoint == "" {
		fail(c, http.StatusBadRequest, errValidation, "endpoint is required")
		return
	}

	sub, err := h.store.GetSubscription(c.Request.Context(), endpoint)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		fail(c, http.StatusNotFound, errNotFound, "subscription not found")
		return
	}
	if err != nil {
		fail(c, http.StatusInternalServerError, errInternal, "failed to load subscription")
		return
	}
	data(c, http.StatusOK, sub)
}

// DeleteSubscription handles DELETE /api/subscriptions?endpoint=.
func (h *Handler) DeleteSubscription(c *gin.Context) {
	endpoint := c.Query("endpoint")
	if endpoint == "" {
		fail(c, http.StatusBadRequest, errValidation, "endpoint is required")
		return
	}
	if err := h.store.DeleteSubscription(c.Request.Context(), endpoint); err != nil {
		fail(c, http.StatusInternalServerError, errInternal, "failed to delete subscription")
		return
	}
	c.Status(http.StatusNoContent)
}

// GetVAPIDPublicKey handles GET /api/vapid_public_key so clients can
// subscribe without the key baked into the frontend build.
func (h *Handler) GetVAPIDPublicKey(c *gin.Context) {
	data(c, http.StatusOK, gin.H{"public_key": h.cfg.Push.PublicKey})
}
