package monitor

import (
	"fmt"
	"time"

	"github.com/rewired-gh/uroflow/internal/models"
)

// InsufficientDataMessage is reported when history is too short for pattern analysis.
const InsufficientDataMessage = "more voiding events are needed for pattern analysis"

// AnalyzePatterns summarizes the trailing short and long windows, builds an hourly
// histogram of the short window and flags short-window events whose volume lies
// strictly outside the normal single-event range.
func AnalyzePatterns(events []models.VoidingEvent, now time.Time, cfg Config) models.PatternReport {
	if len(events) < cfg.MinPatternEvents {
		return models.PatternReport{InsufficientData: true, Message: InsufficientDataMessage}
	}

	shortCutoff := now.Add(-cfg.ShortWindow)
	longCutoff := now.Add(-cfg.LongWindow)

	report := models.PatternReport{
		HourlyPattern:     make([]int, 24),
		NormalSingleRange: cfg.NormalSingle,
		NormalDailyRange:  cfg.NormalDaily,
	}

	var shortTotal, longTotal float64
	for i := range events {
		e := &events[i]
		if e.StartTime.After(longCutoff) {
			report.Last7d.EventCount++
			longTotal += e.TotalVolume
		}
		if !e.StartTime.After(shortCutoff) {
			continue
		}
		report.Last24h.EventCount++
		shortTotal += e.TotalVolume
		report.HourlyPattern[e.StartTime.In(now.Location()).Hour()]++

		if a, ok := classifyVolume(e, cfg.NormalSingle); ok {
			report.Anomalies = append(report.Anomalies, a)
		}
	}

	report.Last24h = summarize(report.Last24h.EventCount, shortTotal, cfg.ShortWindow)
	report.Last7d = summarize(report.Last7d.EventCount, longTotal, cfg.LongWindow)
	return report
}

func summarize(count int, total float64, window time.Duration) models.WindowSummary {
	s := models.WindowSummary{EventCount: count, TotalVolume: round1(total)}
	if count > 0 {
		s.AverageVolume = round1(total / float64(count))
	}
	days := window.Hours() / 24
	if days > 0 {
		s.EventsPerDay = round1(float64(count) / days)
		s.DailyAverage = round1(total / days)
	}
	return s
}

func classifyVolume(e *models.VoidingEvent, normal models.Range) (models.Anomaly, bool) {
	var typ models.AnomalyType
	switch {
	case e.TotalVolume < normal.Min:
		typ = models.AnomalyLowVolume
	case e.TotalVolume > normal.Max:
		typ = models.AnomalyHighVolume
	default:
		return models.Anomaly{}, false
	}
	return models.Anomaly{
		Type:      typ,
		EventID:   e.ID,
		StartTime: e.StartTime,
		Volume:    e.TotalVolume,
		Expected:  normal,
		Message: fmt.Sprintf("%s event: %.1f ml at %s (normal %.0f-%.0f ml)",
			anomalyLabel(typ), e.TotalVolume, e.StartTime.Format("15:04"), normal.Min, normal.Max),
	}, true
}

func anomalyLabel(t models.AnomalyType) string {
	if t == models.AnomalyLowVolume {
		return "Low-volume"
	}
	return "High-volume"
}
