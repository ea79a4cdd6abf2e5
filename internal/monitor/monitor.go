// Package monitor derives volume statistics and patterns from voiding event history.
//
// The analysis functions are pure over a caller-owned event slice and an injected
// "now", so the same history always produces the same report:
//
//	CalculateDailyStats  events on one calendar date
//	PeriodStats          trailing N-day buckets
//	AnalyzePatterns      24 h / 7 d windows, hourly histogram, volume anomalies
//	AssessVolume         current sample + history against the normal ranges
//
// Monitor wraps these with history validation and per-device alert deduplication.
package monitor

import (
	"fmt"
	"sync"
	"time"

	"github.com/rewired-gh/uroflow/internal/logger"
	"github.com/rewired-gh/uroflow/internal/models"
)

// Config holds the analysis thresholds.
type Config struct {
	DailyGoal             float64
	NormalSingle          models.Range
	NormalDaily           models.Range
	MinPatternEvents      int
	FrequentIntervalHours float64
	SparseIntervalHours   float64
	ShortWindow           time.Duration
	LongWindow            time.Duration
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		DailyGoal:             1500,
		NormalSingle:          models.Range{Min: 200, Max: 500},
		NormalDaily:           models.Range{Min: 800, Max: 2000},
		MinPatternEvents:      3,
		FrequentIntervalHours: 1.5,
		SparseIntervalHours:   6,
		ShortWindow:           24 * time.Hour,
		LongWindow:            7 * 24 * time.Hour,
	}
}

// alertRecord tracks a previously sent anomaly alert for cooldown deduplication.
type alertRecord struct {
	Volume float64
	SentAt time.Time
}

// Monitor evaluates device history and remembers which anomalies were alerted.
type Monitor struct {
	cfg     Config
	mu      sync.Mutex
	alerted map[string]alertRecord // key = device ID + anomaly type
}

// New creates a new Monitor instance
func New(cfg Config) *Monitor {
	return &Monitor{
		cfg:     cfg,
		alerted: make(map[string]alertRecord),
	}
}

// Config returns the thresholds the monitor was built with.
func (m *Monitor) Config() Config {
	return m.cfg
}

// EventError represents a per-event error found while validating history
type EventError struct {
	EventID string
	Err     error
}

func (e EventError) Error() string {
	return fmt.Sprintf("invalid event %s: %v", e.EventID, e.Err)
}

// Evaluate validates history, drops open or invalid events, and assesses the rest.
// Invalid events are returned as non-fatal errors.
func (m *Monitor) Evaluate(current *float64, history []models.VoidingEvent, now time.Time) (models.VolumeAssessment, []EventError) {
	valid := make([]models.VoidingEvent, 0, len(history))
	var errs []EventError
	for i := range history {
		e := &history[i]
		if err := e.Validate(); err != nil {
			errs = append(errs, EventError{EventID: e.ID, Err: err})
			continue
		}
		if e.IsOpen() {
			continue
		}
		valid = append(valid, *e)
	}

	out := AssessVolume(current, valid, now, m.cfg)
	logger.Debug("Evaluate: %d events (%d invalid), daily total %.1f ml, %d anomalies, insufficient=%v",
		len(valid), len(errs), out.Daily.TotalVolume, len(out.Patterns.Anomalies), out.Patterns.InsufficientData)
	return out, errs
}

// ClaimAlerts returns the anomalies that are due for an alert and marks them as
// alerted at now, in one step. An anomaly type already alerted for the device
// within cooldown is dropped unless the new volume is further outside the normal
// range than the one previously sent. Returns a non-nil slice.
func (m *Monitor) ClaimAlerts(deviceID string, anomalies []models.Anomaly, cooldown time.Duration, now time.Time) []models.Anomaly {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := []models.Anomaly{}
	for _, a := range anomalies {
		key := alertKey(deviceID, a.Type)
		rec, exists := m.alerted[key]
		if exists && now.Sub(rec.SentAt) < cooldown && !moreExtreme(a, rec.Volume) {
			continue
		}
		m.alerted[key] = alertRecord{Volume: a.Volume, SentAt: now}
		result = append(result, a)
	}
	return result
}

func alertKey(deviceID string, t models.AnomalyType) string {
	return deviceID + "|" + string(t)
}

func moreExtreme(a models.Anomaly, previous float64) bool {
	if a.Type == models.AnomalyLowVolume {
		return a.Volume < previous
	}
	return a.Volume > previous
}
