package config

import (
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	Storage     StorageConfig     `yaml:"storage"`
	Classifier  ClassifierConfig  `yaml:"classifier"`
	Watering    WateringConfig    `yaml:"watering"`
	Aggregation AggregationConfig `yaml:"aggregation"`
	Retention   RetentionConfig   `yaml:"retention"`
	Push        PushConfig        `yaml:"push"`
	WorkerPool  WorkerPoolConfig  `yaml:"worker_pool"`
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	DeviceToken     string  `yaml:"device_token"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int     `yaml:"rate_limit_burst"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
}

// StorageConfig holds the image blob storage configuration.
type StorageConfig struct {
	UploadDir     string `yaml:"upload_dir"`
	PublicBaseURL string `yaml:"public_base_url"`
}

// ClassifierConfig holds the plant identification provider configuration.
type ClassifierConfig struct {
	Enabled        bool   `yaml:"enabled"`
	URL            string `yaml:"url"`
	APIKey         string `yaml:"api_key"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// WateringConfig holds the pump actuation safety policy.
type WateringConfig struct {
	MaxDurationSeconds int `yaml:"max_duration_seconds"`
	CooldownMinutes    int `yaml:"cooldown_minutes"`
	MaxPerHour         int `yaml:"max_per_hour"`
}

// AggregationConfig holds the hourly rollup scheduler configuration.
type AggregationConfig struct {
	IntervalMinutes int           `yaml:"interval_minutes"`
	Interval        time.Duration `yaml:"-"` // Ignored by YAML parser
}

// RetentionConfig holds data retention thresholds.
type RetentionConfig struct {
	CommandDays int `yaml:"command_days"`
	ReadingDays int `yaml:"reading_days"`
}

// PushConfig holds the VAPID keys for web push alert notifications.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// WorkerPoolConfig holds the configuration for the inference and
// notification worker pools.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
}

// Load reads the configuration from the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 3000
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	// The burst must absorb a device's full poll-ack exchange arriving
	// back to back.
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 20
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 15
	}

	if cfg.Storage.UploadDir == "" {
		cfg.Storage.UploadDir = "./uploads"
	}

	if cfg.Classifier.TimeoutSeconds <= 0 {
		cfg.Classifier.TimeoutSeconds = 60
	}

	if cfg.Watering.MaxDurationSeconds <= 0 {
		cfg.Watering.MaxDurationSeconds = 10
	}
	if cfg.Watering.CooldownMinutes <= 0 {
		cfg.Watering.CooldownMinutes = 15
	}
	if cfg.Watering.MaxPerHour <= 0 {
		cfg.Watering.MaxPerHour = 2
	}

	if cfg.Aggregation.IntervalMinutes <= 0 {
		cfg.Aggregation.IntervalMinutes = 10
	}
	cfg.Aggregation.Interval = time.Duration(cfg.Aggregation.IntervalMinutes) * time.Minute

	if cfg.Retention.CommandDays <= 0 {
		cfg.Retention.CommandDays = 30
	}
	if cfg.Retention.ReadingDays <= 0 {
		cfg.Retention.ReadingDays = 90
	}

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.WorkerPool.Size <= 0 {
		log.Printf("worker_pool.size is not set or invalid; defaulting to 1")
		cfg.WorkerPool.Size = 1
	}

	return &cfg, nil
}
