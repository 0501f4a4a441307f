package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"plant-monitor-backend/internal/model"
)

// CreateReading persists one immutable sensor sample.
func (s *gormStore) CreateReading(ctx context.Context, r *model.Reading) error {
	if err := s.db.WithContext(ctx).Create(r).Error; err != nil {
		return fmt.Errorf("failed to create reading: %w", err)
	}
	return nil
}

// LatestReading returns the newest reading, optionally scoped to a device.
// An empty deviceID matches any device.
func (s *gormStore) LatestReading(ctx context.Context, deviceID string) (*model.Reading, error) {
	q := s.db.WithContext(ctx).Order("timestamp DESC")
	if deviceID != "" {
		q = q.Where("device_id = ?", deviceID)
	}
	var r model.Reading
	if err := q.First(&r).Error; err != nil {
		return nil, err
	}
	return &r, nil
}

// ReadingsBetween returns raw readings in [from, to), oldest first.
func (s *gormStore) ReadingsBetween(ctx context.Context, deviceID string, from, to time.Time, limit int) ([]model.Reading, error) {
	q := s.db.WithContext(ctx).
		Where("timestamp >= ? AND timestamp < ?", from, to).
		Order("timestamp ASC").
		Limit(limit)
	if deviceID != "" {
		q = q.Where("device_id = ?", deviceID)
	}
	var readings []model.Reading
	if err := q.Find(&readings).Error; err != nil {
		return nil, fmt.Errorf("failed to query readings: %w", err)
	}
	return readings, nil
}

// HourlySummariesBetween returns hourly rollups in [from, to), oldest first.
func (s *gormStore) HourlySummariesBetween(ctx context.Context, deviceID string, from, to time.Time, limit int) ([]model.HourlySummary, error) {
	q := s.db.WithContext(ctx).
		Where("hour_start >= ? AND hour_start < ?", from, to).
		Order("hour_start ASC").
		Limit(limit)
	if deviceID != "" {
		q = q.Where("device_id = ?", deviceID)
	}
	var summaries []model.HourlySummary
	if err := q.Find(&summaries).Error; err != nil {
		return nil, fmt.Errorf("failed to query hourly summaries: %w", err)
	}
	return summaries, nil
}

// hourlyAccumulator collects per-sensor stats for one device-hour bucket.
type hourlyAccumulator struct {
	count    int
	soil     sensorStats
	temp     sensorStats
	humidity sensorStats
	lux      sensorStats
}

type sensorStats struct {
	n   int
	sum float64
	min float64
	max float64
}

func (st *sensorStats) add(v *float64) {
	if v == nil {
		return
	}
	if st.n == 0 || *v < st.min {
		st.min = *v
	}
	if st.n == 0 || *v > st.max {
		st.max = *v
	}
	st.sum += *v
	st.n++
}

func (st *sensorStats) fill(avg, min, max **float64) {
	if st.n == 0 {
		return
	}
	a := st.sum / float64(st.n)
	lo, hi := st.min, st.max
	*avg, *min, *max = &a, &lo, &hi
}

// RollupHourly aggregates readings in [from, to) into hourly summaries,
// upserting per device-hour bucket. Returns the number of buckets written.
// Aggregation happens in Go so the same path works on Postgres and the
// SQLite test database.
func (s *gormStore) RollupHourly(ctx context.Context, from, to time.Time) (int, error) {
	var readings []model.Reading
	if err := s.db.WithContext(ctx).
		Where("timestamp >= ? AND timestamp < ?", from, to).
		Order("timestamp ASC").
		Find(&readings).Error; err != nil {
		return 0, fmt.Errorf("failed to fetch readings for rollup: %w", err)
	}
	if len(readings) == 0 {
		return 0, nil
	}

	type bucketKey struct {
		deviceID string
		hour     time.Time
	}
	buckets := make(map[bucketKey]*hourlyAccumulator)
	for _, r := range readings {
		key := bucketKey{r.DeviceID, r.Timestamp.UTC().Truncate(time.Hour)}
		acc, ok := buckets[key]
		if !ok {
			acc = &hourlyAccumulator{}
			buckets[key] = acc
		}
		acc.count++
		acc.soil.add(r.SoilPct)
		acc.temp.add(r.TemperatureC)
		acc.humidity.add(r.HumidityPct)
		acc.lux.add(r.Lux)
	}

	summaries := make([]model.HourlySummary, 0, len(buckets))
	for key, acc := range buckets {
		sum := model.HourlySummary{
			DeviceID:    key.deviceID,
			HourStart:   key.hour,
			SampleCount: acc.count,
		}
		acc.soil.fill(&sum.SoilAvg, &sum.SoilMin, &sum.SoilMax)
		acc.temp.fill(&sum.TempAvg, &sum.TempMin, &sum.TempMax)
		acc.humidity.fill(&sum.HumidityAvg, &sum.HumidityMin, &sum.HumidityMax)
		acc.lux.fill(&sum.LuxAvg, &sum.LuxMin, &sum.LuxMax)
		summaries = append(summaries, sum)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "device_id"}, {Name: "hour_start"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"sample_count",
				"soil_avg", "soil_min", "soil_max",
				"temp_avg", "temp_min", "temp_max",
				"humidity_avg", "humidity_min", "humidity_max",
				"lux_avg", "lux_min", "lux_max",
				"updated_at",
			}),
		}).Create(&summaries).Error
	})
	if err != nil {
		return 0, fmt.Errorf("failed to upsert hourly summaries: %w", err)
	}
	return len(summaries), nil
}

// PruneReadings deletes readings older than the given cutoff.
func (s *gormStore) PruneReadings(ctx context.Context, olderThan time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Where("timestamp < ?", olderThan).Delete(&model.Reading{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to prune readings: %w", res.Error)
	}
	return res.RowsAffected, nil
}
