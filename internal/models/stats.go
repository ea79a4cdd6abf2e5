package models

import "time"

// DailyStats summarizes the events that started on one calendar date.
type DailyStats struct {
	Date                 string  `json:"date"` // YYYY-MM-DD
	EventCount           int     `json:"event_count"`
	TotalVolume          float64 `json:"total_volume"`
	AverageVolume        float64 `json:"average_volume"`
	AverageIntervalHours float64 `json:"average_interval_hours"`
	MinVolume            float64 `json:"min_volume"`
	MaxVolume            float64 `json:"max_volume"`
	GoalPercentage       float64 `json:"volume_percentage"` // share of the daily goal, capped at 100
	Empty                bool    `json:"empty"`
}

// DayTotal is one date bucket of a multi-day summary.
type DayTotal struct {
	Date        string  `json:"date"`
	EventCount  int     `json:"event_count"`
	TotalVolume float64 `json:"total_volume"`
}

// PeriodStats summarizes the trailing N days of events.
type PeriodStats struct {
	Days         int        `json:"days"`
	From         time.Time  `json:"from"`
	To           time.Time  `json:"to"`
	EventCount   int        `json:"event_count"`
	TotalVolume  float64    `json:"total_volume"`
	DailyAverage float64    `json:"daily_average"`
	PerDay       []DayTotal `json:"per_day"`
}

// Range is an inclusive numeric range.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Contains reports whether v lies inside the inclusive range.
func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// WindowSummary aggregates events over a trailing window.
type WindowSummary struct {
	EventCount    int     `json:"event_count"`
	TotalVolume   float64 `json:"total_volume"`
	AverageVolume float64 `json:"average_volume"`
	EventsPerDay  float64 `json:"events_per_day"`
	DailyAverage  float64 `json:"daily_average"`
}

// AnomalyType classifies an out-of-range event.
type AnomalyType string

const (
	AnomalyLowVolume  AnomalyType = "low_volume"
	AnomalyHighVolume AnomalyType = "high_volume"
)

// Anomaly flags one event whose volume falls outside the normal single-event range.
type Anomaly struct {
	Type      AnomalyType `json:"type"`
	EventID   string      `json:"event_id"`
	StartTime time.Time   `json:"time"`
	Volume    float64     `json:"volume"`
	Expected  Range       `json:"expected"`
	Message   string      `json:"message"`
}

// PatternReport is the result of pattern analysis over recent history.
// When InsufficientData is set only Message is populated.
type PatternReport struct {
	InsufficientData  bool          `json:"insufficient_data"`
	Message           string        `json:"message,omitempty"`
	Last24h           WindowSummary `json:"last_24h"`
	Last7d            WindowSummary `json:"last_7d"`
	HourlyPattern     []int         `json:"hourly_pattern,omitempty"` // index = hour of day
	Anomalies         []Anomaly     `json:"anomalies,omitempty"`
	NormalSingleRange Range         `json:"normal_single_range"`
	NormalDailyRange  Range         `json:"normal_daily_range"`
}
