package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"plant-monitor-backend/internal/model"
)

// ListPlantProfiles returns all plant reference profiles.
func (s *gormStore) ListPlantProfiles(ctx context.Context) ([]model.PlantProfile, error) {
	var profiles []model.PlantProfile
	if err := s.db.WithContext(ctx).Order("name ASC").Find(&profiles).Error; err != nil {
		return nil, fmt.Errorf("failed to list plant profiles: %w", err)
	}
	return profiles, nil
}

// GetPlantProfile returns one profile by ID.
func (s *gormStore) GetPlantProfile(ctx context.Context, id int64) (*model.PlantProfile, error) {
	var profile model.PlantProfile
	if err := s.db.WithContext(ctx).First(&profile, id).Error; err != nil {
		return nil, err
	}
	return &profile, nil
}

// FindAliasByLabel returns the alias row matching a classifier label,
// case-insensitive, or nil when no alias is known.
func (s *gormStore) FindAliasByLabel(ctx context.Context, label string) (*model.PlantAlias, error) {
	var alias model.PlantAlias
	err := s.db.WithContext(ctx).
		Where("LOWER(alias) = ?", strings.ToLower(strings.TrimSpace(label))).
		First(&alias).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up alias: %w", err)
	}
	return &alias, nil
}

// FindProfileByName matches a label directly against profile name or
// common name, case-insensitive, or nil when nothing matches.
func (s *gormStore) FindProfileByName(ctx context.Context, name string) (*model.PlantProfile, error) {
	lowered := strings.ToLower(strings.TrimSpace(name))
	var profile model.PlantProfile
	err := s.db.WithContext(ctx).
		Where("LOWER(name) = ? OR LOWER(common_name) = ?", lowered, lowered).
		First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up profile by name: %w", err)
	}
	return &profile, nil
}
