package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// GetPlantProfiles handles GET /api/plant-profiles.
func (h *Handler) GetPlantProfiles(c *gin.Context) {
	profiles, err := h.store.ListPlantProfiles(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, errInternal, "failed to list plant profiles")
		return
	}
	data(c, http.StatusOK, gin.H{"profiles": profiles, "count": len(profiles)})
}

// GetPlantProfile handles GET /api/plant-profiles/:id.
func (h *Handler) GetPlantProfile(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		fail(c, http.StatusBadRequest, errValidation, "invalid profile ID")
		return
	}

	profile, err := h.store.GetPlantProfile(c.Request.Context(), id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		fail(c, http.StatusNotFound, errNotFound, "plant profile not found")
		return
	}
	if err != nil {
		fail(c, http.StatusInternalServerError, errInternal, "failed to load plant profile")
		return
	}
	data(c, http.StatusOK, profile)
}
