package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"plant-monitor-backend/internal/alert"
	"plant-monitor-backend/internal/model"
	"plant-monitor-backend/internal/notification"
)

type telemetryRequest struct {
	DeviceID     string   `json:"device_id" binding:"required"`
	Timestamp    string   `json:"timestamp"`
	SoilPct      *float64 `json:"soil_pct"`
	TemperatureC *float64 `json:"temperature_c"`
	HumidityPct  *float64 `json:"humidity_pct"`
	Lux          *float64 `json:"lux"`
	ImageID      *string  `json:"image_id"`
}

// PostTelemetry handles POST /api/telemetry: fire-and-forget reading ingest.
func (h *Handler) PostTelemetry(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		fail(c, http.StatusBadRequest, errValidation, "unreadable request body")
		return
	}

	var req telemetryRequest
	if err := json.Unmarshal(body, &req); err != nil {
		fail(c, http.StatusBadRequest, errValidation, "malformed telemetry payload: "+err.Error())
		return
	}
	if req.DeviceID == "" {
		fail(c, http.StatusBadRequest, errValidation, "device_id is required")
		return
	}

	ts := time.Now().UTC()
	if req.Timestamp != "" {
		parsed, err := time.Parse(time.RFC3339, req.Timestamp)
		if err != nil {
			fail(c, http.StatusBadRequest, errValidation, "timestamp must be RFC3339")
			return
		}
		ts = parsed.UTC()
	}

	reading := model.Reading{
		DeviceID:     req.DeviceID,
		Timestamp:    ts,
		SoilPct:      req.SoilPct,
		TemperatureC: req.TemperatureC,
		HumidityPct:  req.HumidityPct,
		Lux:          req.Lux,
		ImageID:      req.ImageID,
		Raw:          string(body),
	}
	if err := h.store.CreateReading(c.Request.Context(), &reading); err != nil {
		fail(c, http.StatusInternalServerError, errInternal, "failed to store reading")
		return
	}

	h.notifyIfCritical(c.Request.Context(), &reading)

	data(c, http.StatusCreated, reading)
}

// notifyIfCritical derives alerts for the fresh reading and pushes the
// first critical one to the device's subscribers. Best effort only.
func (h *Handler) notifyIfCritical(ctx context.Context, reading *model.Reading) {
	if h.notifier == nil {
		return
	}

	profile, err := h.identifiedProfile(ctx, reading.DeviceID)
	if err != nil {
		log.Printf("profile lookup for alerts failed: %v", err)
		return
	}

	alerts := alert.Derive(reading, profile, 0, nil)
	if critical, ok := alert.Critical(alerts); ok {
		h.notifier.Dispatch(notification.Job{
			DeviceID: reading.DeviceID,
			Code:     critical.Code,
			Message:  critical.Message,
		})
	}
}

// identifiedProfile resolves the device's current plant: the profile linked
// to the dominant detection of its newest image, or nil when unidentified.
func (h *Handler) identifiedProfile(ctx context.Context, deviceID string) (*model.PlantProfile, error) {
	img, err := h.store.LatestImage(ctx, deviceID)
	if err != nil {
		return nil, nil // no image yet
	}
	dominant, err := h.store.DominantDetection(ctx, img.ID)
	if err != nil {
		return nil, err
	}
	if dominant == nil || dominant.PlantProfileID == nil {
		return nil, nil
	}
	return h.store.GetPlantProfile(ctx, *dominant.PlantProfileID)
}
