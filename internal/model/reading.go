package model

import "time"

// Reading is a single immutable sensor sample pushed by a device.
type Reading struct {
	ID           int64     `gorm:"primaryKey" json:"id"`
	DeviceID     string    `gorm:"size:64;index:idx_readings_device_time;not null" json:"device_id"`
	Timestamp    time.Time `gorm:"index:idx_readings_device_time;not null" json:"timestamp"`
	SoilPct      *float64  `json:"soil_pct"`
	TemperatureC *float64  `json:"temperature_c"`
	HumidityPct  *float64  `json:"humidity_pct"`
	Lux          *float64  `json:"lux"`
	ImageID      *string   `gorm:"size:36" json:"image_id,omitempty"`
	Raw          string    `gorm:"type:text" json:"raw,omitempty"` // original payload, JSON string
	CreatedAt    time.Time `json:"created_at"`
}

// HourlySummary is a per-device, per-hour rollup of readings.
type HourlySummary struct {
	ID          int64     `gorm:"primaryKey" json:"id"`
	DeviceID    string    `gorm:"size:64;uniqueIndex:idx_summary_device_hour;not null" json:"device_id"`
	HourStart   time.Time `gorm:"uniqueIndex:idx_summary_device_hour;not null" json:"hour_start"`
	SampleCount int       `gorm:"not null" json:"sample_count"`

	SoilAvg *float64 `json:"soil_avg"`
	SoilMin *float64 `json:"soil_min"`
	SoilMax *float64 `json:"soil_max"`

	TempAvg *float64 `json:"temperature_avg"`
	TempMin *float64 `json:"temperature_min"`
	TempMax *float64 `json:"temperature_max"`

	HumidityAvg *float64 `json:"humidity_avg"`
	HumidityMin *float64 `json:"humidity_min"`
	HumidityMax *float64 `json:"humidity_max"`

	LuxAvg *float64 `json:"lux_avg"`
	LuxMin *float64 `json:"lux_min"`
	LuxMax *float64 `json:"lux_max"`

	UpdatedAt time.Time `json:"updated_at"`
}
