package api

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"plant-monitor-backend/internal/pipeline"
)

// PostImage handles POST /api/image: store the upload, return immediately,
// infer out of band. Accepts the device client's multipart form ("image"
// field plus device_id) or a raw image body with ?device_id=.
func (h *Handler) PostImage(c *gin.Context) {
	deviceID := c.PostForm("device_id")
	if deviceID == "" {
		deviceID = c.Query("device_id")
	}
	if deviceID == "" {
		fail(c, http.StatusBadRequest, errValidation, "device_id is required")
		return
	}

	capturedAt := time.Now().UTC()
	if ts := c.PostForm("timestamp"); ts != "" {
		if parsed, err := time.Parse(time.RFC3339, ts); err == nil {
			capturedAt = parsed.UTC()
		}
	}

	imageBytes, err := readImageBytes(c)
	if err != nil {
		fail(c, http.StatusBadRequest, errValidation, "unreadable image upload")
		return
	}

	img, err := h.pipeline.SubmitImage(c.Request.Context(), deviceID, imageBytes, capturedAt)
	switch {
	case errors.Is(err, pipeline.ErrEmptyImage), errors.Is(err, pipeline.ErrUnsupportedImage):
		fail(c, http.StatusBadRequest, errValidation, err.Error())
		return
	case errors.Is(err, pipeline.ErrUpstream):
		fail(c, http.StatusBadGateway, errUpstream, "image storage failed")
		return
	case err != nil:
		fail(c, http.StatusInternalServerError, errInternal, "failed to store image")
		return
	}

	data(c, http.StatusCreated, gin.H{
		"image":      img,
		"detections": []any{},
		"processing": true,
	})
}

func readImageBytes(c *gin.Context) ([]byte, error) {
	file, _, err := c.Request.FormFile("image")
	if err == nil {
		defer file.Close()
		return io.ReadAll(file)
	}
	// Fall back to a raw body; an empty body is a validation problem for
	// the pipeline, not a transport error.
	if c.Request.Body == nil {
		return nil, nil
	}
	return io.ReadAll(c.Request.Body)
}
