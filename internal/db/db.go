package db

import (
	"fmt"
	"log"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"plant-monitor-backend/config"
	"plant-monitor-backend/internal/model"
)

// Init initializes the database connection, runs migrations and seeds
// the plant reference data.
func Init(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Info),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)

	log.Println("Running database migrations...")
	if err := Migrate(db); err != nil {
		return nil, err
	}

	if err := SeedPlantProfiles(db); err != nil {
		return nil, fmt.Errorf("failed to seed plant profiles: %w", err)
	}

	log.Println("Database initialization complete.")
	return db, nil
}

// Migrate runs the schema migrations for all models.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.Reading{},
		&model.HourlySummary{},
		&model.Image{},
		&model.InferenceResult{},
		&model.Detection{},
		&model.PlantProfile{},
		&model.PlantAlias{},
		&model.Command{},
		&model.PushSubscription{},
	); err != nil {
		return fmt.Errorf("automigrate failed: %w", err)
	}
	return nil
}

// SeedPlantProfiles inserts the built-in plant reference data when the
// profile table is empty. Administered out of band afterwards.
func SeedPlantProfiles(db *gorm.DB) error {
	var count int64
	if err := db.Model(&model.PlantProfile{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	profiles := []model.PlantProfile{
		{
			Name: "Ocimum basilicum", CommonName: "Basil",
			SoilMin: 40, SoilMax: 70, TempMin: 18, TempMax: 30,
			HumidityMin: 40, HumidityMax: 60, LightMin: 500, LightMax: 3000,
			WateringAmountML: 200, WateringFrequencyDays: 2,
			IdealSoilType: "well-draining loam", FertilizerInfo: "balanced 10-10-10 monthly",
		},
		{
			Name: "Mentha spicata", CommonName: "Mint",
			SoilMin: 50, SoilMax: 80, TempMin: 15, TempMax: 27,
			HumidityMin: 45, HumidityMax: 70, LightMin: 300, LightMax: 2500,
			WateringAmountML: 250, WateringFrequencyDays: 2,
			IdealSoilType: "moist rich soil", FertilizerInfo: "light feeding every 6 weeks",
		},
		{
			Name: "Monstera deliciosa", CommonName: "Swiss cheese plant",
			SoilMin: 30, SoilMax: 60, TempMin: 18, TempMax: 30,
			HumidityMin: 50, HumidityMax: 80, LightMin: 200, LightMax: 1500,
			WateringAmountML: 400, WateringFrequencyDays: 7,
			IdealSoilType: "chunky aroid mix", FertilizerInfo: "diluted liquid monthly in summer",
		},
		{
			Name: "Epipremnum aureum", CommonName: "Pothos",
			SoilMin: 25, SoilMax: 60, TempMin: 16, TempMax: 30,
			HumidityMin: 40, HumidityMax: 70, LightMin: 100, LightMax: 1200,
			WateringAmountML: 300, WateringFrequencyDays: 7,
			IdealSoilType: "standard potting mix", FertilizerInfo: "bi-monthly balanced feed",
		},
		{
			Name: "Sansevieria trifasciata", CommonName: "Snake plant",
			SoilMin: 10, SoilMax: 40, TempMin: 15, TempMax: 32,
			HumidityMin: 30, HumidityMax: 50, LightMin: 100, LightMax: 2000,
			WateringAmountML: 150, WateringFrequencyDays: 14,
			IdealSoilType: "cactus mix", FertilizerInfo: "twice per growing season",
		},
	}

	if err := db.Create(&profiles).Error; err != nil {
		return err
	}

	byName := make(map[string]int64, len(profiles))
	for _, p := range profiles {
		byName[p.CommonName] = p.ID
	}

	aliases := []model.PlantAlias{
		{Alias: "basil", PlantProfileID: byName["Basil"], MinConfidence: 0.7},
		{Alias: "sweet basil", PlantProfileID: byName["Basil"], MinConfidence: 0.7},
		{Alias: "mint", PlantProfileID: byName["Mint"], MinConfidence: 0.7},
		{Alias: "spearmint", PlantProfileID: byName["Mint"], MinConfidence: 0.6},
		{Alias: "monstera", PlantProfileID: byName["Swiss cheese plant"]},
		{Alias: "split-leaf philodendron", PlantProfileID: byName["Swiss cheese plant"], MinConfidence: 0.5},
		{Alias: "pothos", PlantProfileID: byName["Pothos"]},
		{Alias: "devil's ivy", PlantProfileID: byName["Pothos"]},
		{Alias: "golden pothos", PlantProfileID: byName["Pothos"]},
		{Alias: "snake plant", PlantProfileID: byName["Snake plant"]},
		{Alias: "mother-in-law's tongue", PlantProfileID: byName["Snake plant"]},
	}

	log.Printf("Seeding %d plant profiles and %d aliases...", len(profiles), len(aliases))
	return db.Create(&aliases).Error
}
