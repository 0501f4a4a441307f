package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Image is one uploaded plant photo. Immutable after creation.
type Image struct {
	ID         string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	DeviceID   string    `gorm:"size:64;index;not null" json:"device_id"`
	URL        string    `gorm:"size:512;not null" json:"url"`
	Width      int       `json:"width"`
	Height     int       `json:"height"`
	ByteSize   int64     `json:"byte_size"`
	CapturedAt time.Time `gorm:"index" json:"captured_at"`
	CreatedAt  time.Time `json:"created_at"`

	Detections []Detection `gorm:"foreignKey:ImageID" json:"detections,omitempty"`
}

func (img *Image) BeforeCreate(tx *gorm.DB) error {
	if img.ID == "" {
		img.ID = uuid.New().String()
	}
	return nil
}

// InferenceResult caches the raw classifier response for one image.
// The unique index on ImageID is what enforces at-most-one inference
// per image: a second insert is a conflict, not a second provider call.
type InferenceResult struct {
	ID          int64     `gorm:"primaryKey" json:"id"`
	ImageID     string    `gorm:"type:varchar(36);uniqueIndex;not null" json:"image_id"`
	Provider    string    `gorm:"size:64" json:"provider"`
	RawResponse string    `gorm:"type:text" json:"raw_response"`
	Failed      bool      `json:"failed"`
	Error       string    `gorm:"size:512" json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Detection is one classifier output entry for an image, optionally
// resolved to a plant profile.
type Detection struct {
	ID             int64     `gorm:"primaryKey" json:"id"`
	ImageID        string    `gorm:"type:varchar(36);index;not null" json:"image_id"`
	PlantProfileID *int64    `gorm:"index" json:"plant_profile_id"`
	Label          string    `gorm:"size:256;not null" json:"label"`
	Confidence     float64   `gorm:"not null" json:"confidence"`
	BoundingBox    string    `gorm:"type:text" json:"bounding_box,omitempty"` // JSON [x,y,w,h], optional
	IsDominant     bool      `gorm:"index" json:"is_dominant"`
	CreatedAt      time.Time `json:"created_at"`
}
