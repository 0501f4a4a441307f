package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"plant-monitor-backend/internal/model"
)

// CreateImage persists the metadata of an uploaded image.
func (s *gormStore) CreateImage(ctx context.Context, img *model.Image) error {
	if err := s.db.WithContext(ctx).Create(img).Error; err != nil {
		return fmt.Errorf("failed to create image: %w", err)
	}
	return nil
}

// GetImage returns one image with its detections preloaded.
func (s *gormStore) GetImage(ctx context.Context, id string) (*model.Image, error) {
	var img model.Image
	if err := s.db.WithContext(ctx).Preload("Detections").First(&img, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &img, nil
}

// LatestImage returns the newest image, optionally scoped to a device.
func (s *gormStore) LatestImage(ctx context.Context, deviceID string) (*model.Image, error) {
	q := s.db.WithContext(ctx).Preload("Detections").Order("captured_at DESC")
	if deviceID != "" {
		q = q.Where("device_id = ?", deviceID)
	}
	var img model.Image
	if err := q.First(&img).Error; err != nil {
		return nil, err
	}
	return &img, nil
}

// CreateInferenceResult inserts the cached classifier response for an image.
// The insert is a conflict no-op when a result already exists, which is what
// guarantees at most one inference per image even under concurrent triggers.
// Returns true when this call created the row.
func (s *gormStore) CreateInferenceResult(ctx context.Context, res *model.InferenceResult) (bool, error) {
	tx := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "image_id"}},
		DoNothing: true,
	}).Create(res)
	if tx.Error != nil {
		return false, fmt.Errorf("failed to create inference result: %w", tx.Error)
	}
	return tx.RowsAffected > 0, nil
}

// GetInferenceResult returns the cached result for an image, or nil when
// no inference has run yet.
func (s *gormStore) GetInferenceResult(ctx context.Context, imageID string) (*model.InferenceResult, error) {
	var res model.InferenceResult
	err := s.db.WithContext(ctx).First(&res, "image_id = ?", imageID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up inference result: %w", err)
	}
	return &res, nil
}

// CreateDetections persists the classifier output entries for one image.
func (s *gormStore) CreateDetections(ctx context.Context, detections []model.Detection) error {
	if len(detections) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).Create(&detections).Error; err != nil {
		return fmt.Errorf("failed to create detections: %w", err)
	}
	return nil
}

// DominantDetection returns the detection flagged dominant for an image,
// or nil when the image has no detections.
func (s *gormStore) DominantDetection(ctx context.Context, imageID string) (*model.Detection, error) {
	var det model.Detection
	err := s.db.WithContext(ctx).
		Where("image_id = ? AND is_dominant = ?", imageID, true).
		First(&det).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up dominant detection: %w", err)
	}
	return &det, nil
}
