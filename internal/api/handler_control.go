package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"plant-monitor-backend/internal/model"
)

type waterRequest struct {
	DeviceID        string  `json:"device_id"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// PostControlWater handles POST /api/control/water: consult the watering
// policy, then enqueue a pump command for the device to pick up.
func (h *Handler) PostControlWater(c *gin.Context) {
	var req waterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, errValidation, "malformed request: "+err.Error())
		return
	}
	if req.DeviceID == "" {
		req.DeviceID = c.Query("device_id")
	}
	if req.DeviceID == "" {
		fail(c, http.StatusBadRequest, errValidation, "device_id is required")
		return
	}
	if req.DurationSeconds <= 0 {
		fail(c, http.StatusBadRequest, errValidation, "duration_seconds must be positive")
		return
	}

	duration := time.Duration(req.DurationSeconds * float64(time.Second))
	decision := h.limiter.Reserve(req.DeviceID, duration)
	if !decision.Allowed {
		resp := gin.H{
			"error":                 errRateLimit,
			"message":               decision.Reason,
			"reason":                decision.Reason,
			"remaining_activations": decision.Remaining,
		}
		if decision.NextAllowedAt != nil {
			resp["next_allowed_at"] = decision.NextAllowedAt.UTC().Format(time.RFC3339)
		}
		c.AbortWithStatusJSON(http.StatusTooManyRequests, resp)
		return
	}

	payload, _ := json.Marshal(map[string]float64{"duration_seconds": req.DurationSeconds})
	cmd := model.Command{
		DeviceID: req.DeviceID,
		Type:     model.CommandTypeWater,
		Payload:  string(payload),
	}
	if err := h.store.CreateCommand(c.Request.Context(), &cmd); err != nil {
		// The reservation must not count when nothing was enqueued.
		h.limiter.Release(req.DeviceID)
		fail(c, http.StatusInternalServerError, errInternal, "failed to enqueue command")
		return
	}

	resp := gin.H{
		"command_id":            cmd.ID,
		"remaining_activations": decision.Remaining,
	}
	// A probe with a minimal duration reveals when the cooldown we just
	// started will lift.
	if probe := h.limiter.Check(req.DeviceID, time.Second); probe.NextAllowedAt != nil {
		resp["next_allowed_at"] = probe.NextAllowedAt.UTC().Format(time.RFC3339)
	}
	data(c, http.StatusCreated, resp)
}

// GetCommands handles GET /api/commands?device_id=: the device polls its
// pending commands, oldest first. Pure read, nothing is claimed.
func (h *Handler) GetCommands(c *gin.Context) {
	deviceID := c.Query("device_id")
	if deviceID == "" {
		fail(c, http.StatusBadRequest, errValidation, "device_id is required")
		return
	}

	cmds, err := h.store.PendingCommands(c.Request.Context(), deviceID)
	if err != nil {
		fail(c, http.StatusInternalServerError, errInternal, "failed to poll commands")
		return
	}
	if cmds == nil {
		cmds = []model.Command{}
	}
	data(c, http.StatusOK, gin.H{"commands": cmds, "count": len(cmds)})
}

// GetCommand handles GET /api/commands/:id.
func (h *Handler) GetCommand(c *gin.Context) {
	cmd, err := h.store.GetCommand(c.Request.Context(), c.Param("id"))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		fail(c, http.StatusNotFound, errNotFound, "command not found")
		return
	}
	if err != nil {
		fail(c, http.StatusInternalServerError, errInternal, "failed to load command")
		return
	}
	data(c, http.StatusOK, cmd)
}

type ackRequest struct {
	Status string          `json:"status" binding:"required"`
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error"`
}

// AckCommand handles POST /api/commands/:id: a device acknowledgment
// moving the command through its state machine.
func (h *Handler) AckCommand(c *gin.Context) {
	var req ackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, errValidation, "malformed acknowledgment: "+err.Error())
		return
	}

	status := model.CommandStatus(req.Status)
	if !model.ValidAckStatus(status) {
		fail(c, http.StatusBadRequest, errValidation,
			fmt.Sprintf("status must be one of %s, %s, %s",
				model.CommandStarted, model.CommandCompleted, model.CommandFailed))
		return
	}

	cmd, err := h.store.AckCommand(c.Request.Context(), c.Param("id"), status, string(req.Result), req.Error)
	var invalid *model.ErrInvalidTransition
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		fail(c, http.StatusNotFound, errNotFound, "command not found")
		return
	case errors.As(err, &invalid):
		fail(c, http.StatusBadRequest, errValidation, invalid.Error())
		return
	case err != nil:
		fail(c, http.StatusInternalServerError, errInternal, "failed to update command")
		return
	}
	data(c, http.StatusOK, cmd)
}
