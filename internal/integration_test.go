package internal

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"plant-monitor-backend/config"
	"plant-monitor-backend/internal/api"
	"plant-monitor-backend/internal/blob"
	"plant-monitor-backend/internal/db"
	"plant-monitor-backend/internal/labelmap"
	"plant-monitor-backend/internal/pipeline"
	"plant-monitor-backend/internal/store"
	"plant-monitor-backend/internal/watering"
)

const testToken = "test-device-token"

// newTestServer wires the full HTTP stack over an in-memory SQLite database,
// with the classifier disabled so inference stays out of these scenarios.
func newTestServer(t *testing.T) (*gin.Engine, store.Store) {
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	testDB, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(testDB))
	require.NoError(t, db.SeedPlantProfiles(testDB))

	cfg := &config.Config{}
	cfg.Server.DeviceToken = testToken
	cfg.Server.RateLimitPerSec = 1000
	cfg.Server.RateLimitBurst = 100
	cfg.Server.CacheTTLSeconds = 1
	cfg.Watering.MaxDurationSeconds = 10
	cfg.Watering.CooldownMinutes = 15
	cfg.Watering.MaxPerHour = 2

	appStore := store.NewGormStore(testDB)
	limiter := watering.NewLimiter(watering.Config{
		MaxDuration: 10 * time.Second,
		Cooldown:    15 * time.Minute,
		MaxPerHour:  2,
	})

	blobs, err := blob.NewFileStore(t.TempDir(), "")
	require.NoError(t, err)
	pipelineSvc := pipeline.NewService(1, appStore, blobs, nil, labelmap.NewMapper(appStore))

	router := api.NewRouter(cfg, appStore, limiter, pipelineSvc, nil, blobs.Dir())
	return router, appStore
}

func doJSON(router *gin.Engine, method, path string, body any, authed bool) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if authed {
		req.Header.Set("Authorization", "Bearer "+testToken)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), "body: %s", w.Body.String())
	return body
}

func jpegBytes(t *testing.T) []byte {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 80, G: 160, B: 60, A: 255})
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

func TestDeviceAuthRequired(t *testing.T) {
	router, _ := newTestServer(t)

	w := doJSON(router, http.MethodPost, "/api/telemetry",
		map[string]any{"device_id": "dev-1"}, false)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "auth_error", decodeBody(t, w)["error"])

	req := httptest.NewRequest(http.MethodPost, "/api/telemetry", bytes.NewBufferString(`{"device_id":"dev-1"}`))
	req.Header.Set("Authorization", "Bearer wrong-token")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

// TestWateringLifecycle walks the actuation path end to end: request a
// watering, watch the policy reject the follow-up, poll the command as the
// device would and acknowledge it through to completion.
func TestWateringLifecycle(t *testing.T) {
	router, _ := newTestServer(t)

	// First request passes the policy and enqueues a command.
	w := doJSON(router, http.MethodPost, "/api/control/water",
		map[string]any{"device_id": "dev-1", "duration_seconds": 5}, true)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	body := decodeBody(t, w)
	created := body["data"].(map[string]any)
	commandID := created["command_id"].(string)
	require.NotEmpty(t, commandID)
	assert.Equal(t, float64(1), created["remaining_activations"])
	assert.NotEmpty(t, created["next_allowed_at"])

	// An immediate second request is inside the cooldown.
	w = doJSON(router, http.MethodPost, "/api/control/water",
		map[string]any{"device_id": "dev-1", "duration_seconds": 5}, true)
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	rejected := decodeBody(t, w)
	assert.Equal(t, "rate_limited", rejected["error"])
	assert.Equal(t, watering.ReasonCooldownActive, rejected["reason"])
	assert.NotEmpty(t, rejected["next_allowed_at"])

	// A rejected request must not enqueue anything for any device.
	w = doJSON(router, http.MethodPost, "/api/control/water",
		map[string]any{"device_id": "dev-1", "duration_seconds": 30}, true)
	require.Equal(t, http.StatusTooManyRequests, w.Code)

	// The device polls and sees exactly the one command.
	w = doJSON(router, http.MethodGet, "/api/commands?device_id=dev-1", nil, true)
	require.Equal(t, http.StatusOK, w.Code)
	poll := decodeBody(t, w)["data"].(map[string]any)
	require.Equal(t, float64(1), poll["count"])
	cmd := poll["commands"].([]any)[0].(map[string]any)
	assert.Equal(t, commandID, cmd["id"])
	assert.Equal(t, "pending", cmd["status"])
	assert.JSONEq(t, `{"duration_seconds":5}`, cmd["payload"].(string))

	// started -> completed, then the queue drains.
	w = doJSON(router, http.MethodPost, "/api/commands/"+commandID,
		map[string]any{"status": "started"}, true)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(router, http.MethodPost, "/api/commands/"+commandID,
		map[string]any{"status": "completed", "result": map[string]any{"dispensed_ml": 38}}, true)
	require.Equal(t, http.StatusOK, w.Code)
	acked := decodeBody(t, w)["data"].(map[string]any)
	assert.Equal(t, "completed", acked["status"])
	assert.NotEmpty(t, acked["completed_at"])

	w = doJSON(router, http.MethodGet, "/api/commands?device_id=dev-1", nil, true)
	require.Equal(t, http.StatusOK, w.Code)
	poll = decodeBody(t, w)["data"].(map[string]any)
	assert.Equal(t, float64(0), poll["count"])

	// Reversing a terminal state is rejected, repeating it is idempotent.
	w = doJSON(router, http.MethodPost, "/api/commands/"+commandID,
		map[string]any{"status": "started"}, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(router, http.MethodPost, "/api/commands/"+commandID,
		map[string]any{"status": "completed"}, true)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestWateringValidation(t *testing.T) {
	router, _ := newTestServer(t)

	w := doJSON(router, http.MethodPost, "/api/control/water",
		map[string]any{"device_id": "dev-1", "duration_seconds": 0}, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Over the duration cap: rejected by policy, not by validation, so the
	// client sees the policy reason.
	w = doJSON(router, http.MethodPost, "/api/control/water",
		map[string]any{"device_id": "dev-1", "duration_seconds": 60}, true)
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, watering.ReasonDurationExceeded, decodeBody(t, w)["reason"])

	// The rejection left no cooldown behind.
	w = doJSON(router, http.MethodPost, "/api/control/water",
		map[string]any{"device_id": "dev-1", "duration_seconds": 5}, true)
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestTelemetryAndHistory(t *testing.T) {
	router, _ := newTestServer(t)

	ts := time.Now().UTC().Add(-time.Hour).Format(time.RFC3339)
	w := doJSON(router, http.MethodPost, "/api/telemetry", map[string]any{
		"device_id": "dev-1", "timestamp": ts,
		"soil_pct": 34.5, "temperature_c": 21.0, "humidity_pct": 55.0, "lux": 800.0,
	}, true)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	reading := decodeBody(t, w)["data"].(map[string]any)
	assert.Equal(t, 34.5, reading["soil_pct"])

	w = doJSON(router, http.MethodGet, "/api/latest?device_id=dev-1", nil, false)
	require.Equal(t, http.StatusOK, w.Code)
	latest := decodeBody(t, w)["data"].(map[string]any)
	require.NotNil(t, latest["reading"])
	assert.Nil(t, latest["plant"])

	w = doJSON(router, http.MethodGet, "/api/history?device_id=dev-1", nil, false)
	require.Equal(t, http.StatusOK, w.Code)
	history := decodeBody(t, w)["data"].(map[string]any)
	assert.Equal(t, float64(1), history["count"])
	assert.Equal(t, "raw", history["agg"])

	// A second reading without a light sample.
	w = doJSON(router, http.MethodPost, "/api/telemetry", map[string]any{
		"device_id": "dev-1",
		"timestamp": time.Now().UTC().Add(-30 * time.Minute).Format(time.RFC3339),
		"soil_pct":  36.0,
	}, true)
	require.Equal(t, http.StatusCreated, w.Code)

	// Naming a sensor projects the response to that sensor's series.
	w = doJSON(router, http.MethodGet, "/api/history?device_id=dev-1&sensor=soil", nil, false)
	require.Equal(t, http.StatusOK, w.Code)
	series := decodeBody(t, w)["data"].(map[string]any)
	assert.Equal(t, "soil", series["sensor"])
	require.Equal(t, float64(2), series["count"])
	first := series["points"].([]any)[0].(map[string]any)
	assert.Equal(t, 34.5, first["value"])

	// Readings that never sampled the sensor drop out of its series.
	w = doJSON(router, http.MethodGet, "/api/history?device_id=dev-1&sensor=light", nil, false)
	require.Equal(t, http.StatusOK, w.Code)
	series = decodeBody(t, w)["data"].(map[string]any)
	assert.Equal(t, float64(1), series["count"])

	w = doJSON(router, http.MethodGet, "/api/history?sensor=wind", nil, false)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(router, http.MethodGet, "/api/history?agg=weekly", nil, false)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestImageUpload(t *testing.T) {
	router, _ := newTestServer(t)

	postImage := func(data []byte) *httptest.ResponseRecorder {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		require.NoError(t, mw.WriteField("device_id", "dev-1"))
		part, err := mw.CreateFormFile("image", "capture.jpg")
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
		require.NoError(t, mw.Close())

		req := httptest.NewRequest(http.MethodPost, "/api/image", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		req.Header.Set("Authorization", "Bearer "+testToken)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	// Empty and non-image uploads are validation errors.
	w := postImage(nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = postImage([]byte("definitely not an image"))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// A real JPEG is accepted and queued for identification.
	w = postImage(jpegBytes(t))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	body := decodeBody(t, w)["data"].(map[string]any)
	assert.Equal(t, true, body["processing"])
	img := body["image"].(map[string]any)
	assert.Equal(t, "dev-1", img["device_id"])
	assert.NotEmpty(t, img["id"])
}

func TestPlantProfilesSeeded(t *testing.T) {
	router, _ := newTestServer(t)

	w := doJSON(router, http.MethodGet, "/api/plant-profiles", nil, false)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)["data"].(map[string]any)
	assert.GreaterOrEqual(t, body["count"].(float64), float64(5))

	w = doJSON(router, http.MethodGet, "/api/plant-profiles/999999", nil, false)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(router, http.MethodGet, "/api/plant-profiles/abc", nil, false)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAlertsReflectThresholdsAndQueue(t *testing.T) {
	router, _ := newTestServer(t)

	// No data yet: empty alert set, not an error.
	w := doJSON(router, http.MethodGet, "/api/alerts?device_id=dev-1", nil, false)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(0), decodeBody(t, w)["data"].(map[string]any)["count"])

	// A reading plus a queued watering produces the queue alert even with
	// no identified plant.
	w = doJSON(router, http.MethodPost, "/api/telemetry",
		map[string]any{"device_id": "dev-1", "soil_pct": 12.0}, true)
	require.Equal(t, http.StatusCreated, w.Code)
	w = doJSON(router, http.MethodPost, "/api/control/water",
		map[string]any{"device_id": "dev-1", "duration_seconds": 5}, true)
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(router, http.MethodGet, "/api/alerts?device_id=dev-1", nil, false)
	require.Equal(t, http.StatusOK, w.Code)
	payload := decodeBody(t, w)["data"].(map[string]any)
	require.Greater(t, payload["count"].(float64), float64(0))

	codes := make([]string, 0)
	for _, a := range payload["alerts"].([]any) {
		codes = append(codes, a.(map[string]any)["code"].(string))
	}
	assert.Contains(t, codes, "watering_queued")
}

func TestSubscriptionLifecycle(t *testing.T) {
	router, _ := newTestServer(t)

	w := doJSON(router, http.MethodPut, "/api/subscriptions", map[string]any{
		"endpoint": "https://push.example.com/s/1",
		"p256dh":   "key",
		"auth":     "secret",
	}, false)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = doJSON(router, http.MethodGet, "/api/subscriptions?endpoint=https://push.example.com/s/1", nil, false)
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(router, http.MethodDelete, "/api/subscriptions?endpoint=https://push.example.com/s/1", nil, false)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(router, http.MethodGet, "/api/subscriptions?endpoint=https://push.example.com/s/1", nil, false)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Incomplete subscriptions are rejected.
	w = doJSON(router, http.MethodPut, "/api/subscriptions",
		map[string]any{"endpoint": "https://push.example.com/s/2"}, false)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
