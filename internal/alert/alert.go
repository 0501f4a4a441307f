// Package alert derives transient advisories from the latest reading,
// the identified plant's thresholds and the command queue state. Alerts
// are computed on demand and never persisted.
package alert

import (
	"fmt"

	"plant-monitor-backend/internal/model"
	"plant-monitor-backend/internal/watering"
)

// Severity ranks an alert.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Alert is one derived advisory.
type Alert struct {
	Code     string   `json:"code"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// Derive computes alerts for one device. profile may be nil when no plant
// has been identified yet; pendingWater is the number of queued water
// commands; probe is a read-only limiter decision for a minimal activation.
func Derive(reading *model.Reading, profile *model.PlantProfile, pendingWater int, probe *watering.Decision) []Alert {
	var alerts []Alert

	if reading != nil && profile != nil {
		alerts = append(alerts, thresholdAlerts(reading, profile)...)
	}

	if pendingWater > 0 {
		alerts = append(alerts, Alert{
			Code:     "watering_queued",
			Severity: SeverityInfo,
			Message:  fmt.Sprintf("%d water command(s) pending device pickup", pendingWater),
		})
	}

	if probe != nil && !probe.Allowed && probe.Reason == watering.ReasonCooldownActive {
		alerts = append(alerts, Alert{
			Code:     "watering_cooldown",
			Severity: SeverityInfo,
			Message:  fmt.Sprintf("watering is in cooldown until %s", probe.NextAllowedAt.Format("15:04:05")),
		})
	}

	return alerts
}

func thresholdAlerts(r *model.Reading, p *model.PlantProfile) []Alert {
	var alerts []Alert

	check := func(value *float64, min, max float64, lowCode, highCode, sensor string, lowSev Severity) {
		if value == nil {
			return
		}
		switch {
		case *value < min:
			alerts = append(alerts, Alert{
				Code:     lowCode,
				Severity: lowSev,
				Message:  fmt.Sprintf("%s %.1f below minimum %.1f for %s", sensor, *value, min, p.CommonName),
			})
		case *value > max:
			alerts = append(alerts, Alert{
				Code:     highCode,
				Severity: SeverityWarning,
				Message:  fmt.Sprintf("%s %.1f above maximum %.1f for %s", sensor, *value, max, p.CommonName),
			})
		}
	}

	// Dry soil is the one condition the actuator exists to fix.
	check(r.SoilPct, p.SoilMin, p.SoilMax, "soil_low", "soil_high", "soil moisture", SeverityCritical)
	check(r.TemperatureC, p.TempMin, p.TempMax, "temp_low", "temp_high", "temperature", SeverityWarning)
	check(r.HumidityPct, p.HumidityMin, p.HumidityMax, "humidity_low", "humidity_high", "humidity", SeverityWarning)
	check(r.Lux, p.LightMin, p.LightMax, "light_low", "light_high", "illuminance", SeverityWarning)

	return alerts
}

// Critical reports whether any alert in the list is critical. Used by the
// telemetry path to decide when to push a notification.
func Critical(alerts []Alert) (Alert, bool) {
	for _, a := range alerts {
		if a.Severity == SeverityCritical {
			return a, true
		}
	}
	return Alert{}, false
}
