package alert

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"plant-monitor-backend/internal/model"
	"plant-monitor-backend/internal/watering"
)

func f(v float64) *float64 { return &v }

func basilProfile() *model.PlantProfile {
	return &model.PlantProfile{
		CommonName: "Basil",
		SoilMin:    40, SoilMax: 70,
		TempMin: 18, TempMax: 30,
		HumidityMin: 40, HumidityMax: 60,
		LightMin: 500, LightMax: 3000,
	}
}

func codes(alerts []Alert) []string {
	out := make([]string, len(alerts))
	for i, a := range alerts {
		out[i] = a.Code
	}
	return out
}

func TestDerive_ThresholdBreaches(t *testing.T) {
	reading := &model.Reading{
		SoilPct:      f(25),  // below min
		TemperatureC: f(35),  // above max
		HumidityPct:  f(50),  // in range
		Lux:          f(100), // below min
	}

	alerts := Derive(reading, basilProfile(), 0, nil)
	assert.ElementsMatch(t, []string{"soil_low", "temp_high", "light_low"}, codes(alerts))

	soil, ok := Critical(alerts)
	assert.True(t, ok)
	assert.Equal(t, "soil_low", soil.Code)
}

func TestDerive_InRangeIsQuiet(t *testing.T) {
	reading := &model.Reading{
		SoilPct:      f(55),
		TemperatureC: f(22),
		HumidityPct:  f(50),
		Lux:          f(1000),
	}
	assert.Empty(t, Derive(reading, basilProfile(), 0, nil))
}

func TestDerive_MissingSensorsAreSkipped(t *testing.T) {
	reading := &model.Reading{SoilPct: f(10)} // other sensors absent
	alerts := Derive(reading, basilProfile(), 0, nil)
	assert.Equal(t, []string{"soil_low"}, codes(alerts))
}

func TestDerive_NoProfileNoThresholdAlerts(t *testing.T) {
	reading := &model.Reading{SoilPct: f(1)}
	assert.Empty(t, Derive(reading, nil, 0, nil))
}

func TestDerive_QueueAndCooldownState(t *testing.T) {
	next := time.Now().Add(10 * time.Minute)
	probe := &watering.Decision{
		Allowed:       false,
		Reason:        watering.ReasonCooldownActive,
		NextAllowedAt: &next,
	}

	alerts := Derive(nil, nil, 2, probe)
	assert.ElementsMatch(t, []string{"watering_queued", "watering_cooldown"}, codes(alerts))
}
