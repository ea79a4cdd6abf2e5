package monitor

import (
	"fmt"
	"time"

	"github.com/rewired-gh/uroflow/internal/models"
)

// Frequency labels for VolumeAssessment.FrequencyStatus.
const (
	FrequencyNormal   = "normal"
	FrequencyFrequent = "frequent"
	FrequencySparse   = "sparse"
	FrequencyUnknown  = "unknown"
)

// AssessVolume interprets an optional current sample volume against the normal
// single-event range, and the device history against the daily range, the voiding
// frequency bounds and the pattern anomalies.
func AssessVolume(current *float64, events []models.VoidingEvent, now time.Time, cfg Config) models.VolumeAssessment {
	out := models.VolumeAssessment{
		CurrentStatus:   models.VolumeStatusUnknown,
		DailyStatus:     models.VolumeStatusUnknown,
		FrequencyStatus: FrequencyUnknown,
		Alerts:          []string{},
		Recommendations: []string{},
	}

	if current != nil {
		v := *current
		out.CurrentVolume = &v
		switch {
		case v < cfg.NormalSingle.Min:
			out.CurrentStatus = models.VolumeStatusLow
			out.Alerts = append(out.Alerts, fmt.Sprintf("Low single volume: %.1f ml (normal %.0f-%.0f ml)", v, cfg.NormalSingle.Min, cfg.NormalSingle.Max))
		case v > cfg.NormalSingle.Max:
			out.CurrentStatus = models.VolumeStatusHigh
			out.Alerts = append(out.Alerts, fmt.Sprintf("High single volume: %.1f ml (normal %.0f-%.0f ml)", v, cfg.NormalSingle.Min, cfg.NormalSingle.Max))
		default:
			out.CurrentStatus = models.VolumeStatusNormal
		}
	}

	out.Daily = CalculateDailyStats(events, now, cfg)
	if !out.Daily.Empty {
		total := out.Daily.TotalVolume
		switch {
		case total < cfg.NormalDaily.Min:
			out.DailyStatus = models.VolumeStatusLow
			out.Alerts = append(out.Alerts, fmt.Sprintf("Low daily total so far: %.1f ml (normal %.0f-%.0f ml)", total, cfg.NormalDaily.Min, cfg.NormalDaily.Max))
			out.Recommendations = append(out.Recommendations, "Increase fluid intake through the rest of the day")
		case total > cfg.NormalDaily.Max:
			out.DailyStatus = models.VolumeStatusHigh
			out.Alerts = append(out.Alerts, fmt.Sprintf("High daily total: %.1f ml (normal %.0f-%.0f ml)", total, cfg.NormalDaily.Min, cfg.NormalDaily.Max))
			out.Recommendations = append(out.Recommendations, "Discuss persistent high output with a doctor")
		default:
			out.DailyStatus = models.VolumeStatusNormal
		}

		if h := out.Daily.AverageIntervalHours; h > 0 {
			switch {
			case h < cfg.FrequentIntervalHours:
				out.FrequencyStatus = FrequencyFrequent
				out.Alerts = append(out.Alerts, fmt.Sprintf("Frequent voiding: every %.1f hours on average", h))
			case h > cfg.SparseIntervalHours:
				out.FrequencyStatus = FrequencySparse
				out.Alerts = append(out.Alerts, fmt.Sprintf("Long intervals between voids: every %.1f hours on average", h))
			default:
				out.FrequencyStatus = FrequencyNormal
			}
		}
	}

	out.Patterns = AnalyzePatterns(events, now, cfg)
	for _, a := range out.Patterns.Anomalies {
		out.Alerts = append(out.Alerts, a.Message)
	}
	return out
}
