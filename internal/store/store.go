package store

import (
	"context"
	"time"

	"gorm.io/gorm"

	"plant-monitor-backend/internal/model"
)

// Store defines the interface for all database operations.
type Store interface {
	DB() *gorm.DB

	// Readings
	CreateReading(ctx context.Context, r *model.Reading) error
	LatestReading(ctx context.Context, deviceID string) (*model.Reading, error)
	ReadingsBetween(ctx context.Context, deviceID string, from, to time.Time, limit int) ([]model.Reading, error)
	HourlySummariesBetween(ctx context.Context, deviceID string, from, to time.Time, limit int) ([]model.HourlySummary, error)
	RollupHourly(ctx context.Context, from, to time.Time) (int, error)
	PruneReadings(ctx context.Context, olderThan time.Time) (int64, error)

	// Images and detections
	CreateImage(ctx context.Context, img *model.Image) error
	GetImage(ctx context.Context, id string) (*model.Image, error)
	LatestImage(ctx context.Context, deviceID string) (*model.Image, error)
	CreateInferenceResult(ctx context.Context, res *model.InferenceResult) (bool, error)
	GetInferenceResult(ctx context.Context, imageID string) (*model.InferenceResult, error)
	CreateDetections(ctx context.Context, detections []model.Detection) error
	DominantDetection(ctx context.Context, imageID string) (*model.Detection, error)

	// Plant reference data
	ListPlantProfiles(ctx context.Context) ([]model.PlantProfile, error)
	GetPlantProfile(ctx context.Context, id int64) (*model.PlantProfile, error)
	FindAliasByLabel(ctx context.Context, label string) (*model.PlantAlias, error)
	FindProfileByName(ctx context.Context, name string) (*model.PlantProfile, error)

	// Command queue
	CreateCommand(ctx context.Context, cmd *model.Command) error
	PendingCommands(ctx context.Context, deviceID string) ([]model.Command, error)
	GetCommand(ctx context.Context, id string) (*model.Command, error)
	AckCommand(ctx context.Context, id string, status model.CommandStatus, result, errMsg string) (*model.Command, error)
	CleanupCommands(ctx context.Context, olderThan time.Time) (int64, error)

	// Push subscriptions
	UpsertSubscription(ctx context.Context, sub *model.PushSubscription) error
	GetSubscription(ctx context.Context, endpoint string) (*model.PushSubscription, error)
	DeleteSubscription(ctx context.Context, endpoint string) error
	SubscriptionsForDevice(ctx context.Context, deviceID string) ([]model.PushSubscription, error)
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

// DB exposes the underlying connection for migration and test setup.
func (s *gormStore) DB() *gorm.DB {
	return s.db
}
