package model

import "time"

// PlantProfile is static reference data for one plant species:
// sensor threshold ranges plus care attributes. Seeded out of band
// and read-only from the pipeline's perspective.
type PlantProfile struct {
	ID         int64  `gorm:"primaryKey" json:"id"`
	Name       string `gorm:"uniqueIndex;size:128;not null" json:"name"`
	CommonName string `gorm:"size:128" json:"common_name"`

	SoilMin     float64 `json:"soil_min"`
	SoilMax     float64 `json:"soil_max"`
	TempMin     float64 `json:"temp_min"`
	TempMax     float64 `json:"temp_max"`
	HumidityMin float64 `json:"humidity_min"`
	HumidityMax float64 `json:"humidity_max"`
	LightMin    float64 `json:"light_min"`
	LightMax    float64 `json:"light_max"`

	WateringAmountML      int    `json:"watering_amount_ml"`
	WateringFrequencyDays int    `json:"watering_frequency_days"`
	IdealSoilType         string `gorm:"size:128" json:"ideal_soil_type"`
	FertilizerInfo        string `gorm:"size:512" json:"fertilizer_info"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PlantAlias maps a free-text classifier label to a profile. MinConfidence,
// when positive, gates the link: detections below it stay unlinked.
type PlantAlias struct {
	ID             int64   `gorm:"primaryKey" json:"id"`
	Alias          string  `gorm:"uniqueIndex;size:256;not null" json:"alias"`
	PlantProfileID int64   `gorm:"index;not null" json:"plant_profile_id"`
	MinConfidence  float64 `json:"min_confidence"`

	PlantProfile PlantProfile `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}
