package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"plant-monitor-backend/internal/model"
)

const historyLimitCap = 1000

// GetLatest handles GET /api/latest: the newest reading, the newest image
// and its dominant detection, plus the resolved plant profile when one is
// identified.
func (h *Handler) GetLatest(c *gin.Context) {
	ctx := c.Request.Context()
	deviceID := c.Query("device_id")

	payload := gin.H{
		"reading":   nil,
		"image":     nil,
		"detection": nil,
		"plant":     nil,
	}

	reading, err := h.store.LatestReading(ctx, deviceID)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		// Fresh deployment, nothing ingested yet.
	case err != nil:
		fail(c, http.StatusInternalServerError, errInternal, "failed to load latest reading")
		return
	default:
		payload["reading"] = reading
	}

	img, err := h.store.LatestImage(ctx, deviceID)
	if err == nil {
		payload["image"] = img
		dominant, derr := h.store.DominantDetection(ctx, img.ID)
		if derr == nil && dominant != nil {
			payload["detection"] = dominant
			if dominant.PlantProfileID != nil {
				if profile, perr := h.store.GetPlantProfile(ctx, *dominant.PlantProfileID); perr == nil {
					payload["plant"] = profile
				}
			}
		}
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		fail(c, http.StatusInternalServerError, errInternal, "failed to load latest image")
		return
	}

	data(c, http.StatusOK, payload)
}

// readingSensors maps the sensor query parameter onto a Reading field.
var readingSensors = map[string]func(model.Reading) *float64{
	"soil":        func(r model.Reading) *float64 { return r.SoilPct },
	"temperature": func(r model.Reading) *float64 { return r.TemperatureC },
	"humidity":    func(r model.Reading) *float64 { return r.HumidityPct },
	"light":       func(r model.Reading) *float64 { return r.Lux },
}

// summarySensors maps the sensor query parameter onto summary stats.
var summarySensors = map[string]func(model.HourlySummary) (avg, min, max *float64){
	"soil": func(s model.HourlySummary) (*float64, *float64, *float64) {
		return s.SoilAvg, s.SoilMin, s.SoilMax
	},
	"temperature": func(s model.HourlySummary) (*float64, *float64, *float64) {
		return s.TempAvg, s.TempMin, s.TempMax
	},
	"humidity": func(s model.HourlySummary) (*float64, *float64, *float64) {
		return s.HumidityAvg, s.HumidityMin, s.HumidityMax
	},
	"light": func(s model.HourlySummary) (*float64, *float64, *float64) {
		return s.LuxAvg, s.LuxMin, s.LuxMax
	},
}

type sensorPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

type summaryPoint struct {
	HourStart   time.Time `json:"hour_start"`
	Avg         float64   `json:"avg"`
	Min         float64   `json:"min"`
	Max         float64   `json:"max"`
	SampleCount int       `json:"sample_count"`
}

// GetHistory handles GET /api/history: raw readings or hourly rollups in a
// time window, oldest first, limit capped. A sensor parameter projects the
// response down to that sensor's series.
func (h *Handler) GetHistory(c *gin.Context) {
	ctx := c.Request.Context()

	sensor := c.Query("sensor")
	if sensor != "" && readingSensors[sensor] == nil {
		fail(c, http.StatusBadRequest, errValidation, "unknown sensor "+strconv.Quote(sensor))
		return
	}

	now := time.Now().UTC()
	from, to := now.Add(-24*time.Hour), now
	if v := c.Query("from"); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			fail(c, http.StatusBadRequest, errValidation, "from must be RFC3339")
			return
		}
		from = parsed.UTC()
	}
	if v := c.Query("to"); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			fail(c, http.StatusBadRequest, errValidation, "to must be RFC3339")
			return
		}
		to = parsed.UTC()
	}

	limit := 100
	if v := c.Query("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			fail(c, http.StatusBadRequest, errValidation, "limit must be a positive integer")
			return
		}
		limit = parsed
	}
	if limit > historyLimitCap {
		limit = historyLimitCap
	}

	deviceID := c.Query("device_id")

	switch agg := c.DefaultQuery("agg", "raw"); agg {
	case "raw":
		readings, err := h.store.ReadingsBetween(ctx, deviceID, from, to, limit)
		if err != nil {
			fail(c, http.StatusInternalServerError, errInternal, "failed to query readings")
			return
		}
		if sensor != "" {
			get := readingSensors[sensor]
			points := make([]sensorPoint, 0, len(readings))
			for _, r := range readings {
				// Readings without this sensor are absent from the series,
				// not zero-filled.
				if v := get(r); v != nil {
					points = append(points, sensorPoint{Timestamp: r.Timestamp, Value: *v})
				}
			}
			data(c, http.StatusOK, gin.H{"agg": "raw", "sensor": sensor, "points": points, "count": len(points)})
			return
		}
		if readings == nil {
			readings = []model.Reading{}
		}
		data(c, http.StatusOK, gin.H{"agg": "raw", "readings": readings, "count": len(readings)})
	case "hourly":
		summaries, err := h.store.HourlySummariesBetween(ctx, deviceID, from, to, limit)
		if err != nil {
			fail(c, http.StatusInternalServerError, errInternal, "failed to query hourly summaries")
			return
		}
		if sensor != "" {
			get := summarySensors[sensor]
			points := make([]summaryPoint, 0, len(summaries))
			for _, s := range summaries {
				avg, min, max := get(s)
				if avg == nil {
					continue
				}
				points = append(points, summaryPoint{
					HourStart:   s.HourStart,
					Avg:         *avg,
					Min:         *min,
					Max:         *max,
					SampleCount: s.SampleCount,
				})
			}
			data(c, http.StatusOK, gin.H{"agg": "hourly", "sensor": sensor, "points": points, "count": len(points)})
			return
		}
		if summaries == nil {
			summaries = []model.HourlySummary{}
		}
		data(c, http.StatusOK, gin.H{"agg": "hourly", "summaries": summaries, "count": len(summaries)})
	default:
		fail(c, http.StatusBadRequest, errValidation, "agg must be raw or hourly")
	}
}
