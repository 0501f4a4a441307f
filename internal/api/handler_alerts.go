package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"plant-monitor-backend/internal/alert"
	"plant-monitor-backend/internal/model"
)

// GetAlerts handles GET /api/alerts: derive the current alert set from the
// latest reading, the identified plant's thresholds and the watering queue.
// Alerts are computed on demand, never stored.
func (h *Handler) GetAlerts(c *gin.Context) {
	ctx := c.Request.Context()
	deviceID := c.Query("device_id")

	reading, err := h.store.LatestReading(ctx, deviceID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		data(c, http.StatusOK, gin.H{"alerts": []alert.Alert{}, "count": 0})
		return
	}
	if err != nil {
		fail(c, http.StatusInternalServerError, errInternal, "failed to load latest reading")
		return
	}

	profile, err := h.identifiedProfile(ctx, reading.DeviceID)
	if err != nil {
		fail(c, http.StatusInternalServerError, errInternal, "failed to resolve plant profile")
		return
	}

	pendingWater := 0
	cmds, err := h.store.PendingCommands(ctx, reading.DeviceID)
	if err != nil {
		fail(c, http.StatusInternalServerError, errInternal, "failed to poll commands")
		return
	}
	for _, cmd := range cmds {
		if cmd.Type == model.CommandTypeWater {
			pendingWater++
		}
	}

	probe := h.limiter.Check(reading.DeviceID, time.Second)
	alerts := alert.Derive(reading, profile, pendingWater, &probe)
	if alerts == nil {
		alerts = []alert.Alert{}
	}
	data(c, http.StatusOK, gin.H{"alerts": alerts, "count": len(alerts)})
}
