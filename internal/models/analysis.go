package models

import (
	"errors"
	"time"
)

// RiskLevel is the overall risk of a reading.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Rank orders risk levels so the higher of two can be picked.
func (r RiskLevel) Rank() int {
	switch r {
	case RiskHigh:
		return 2
	case RiskMedium:
		return 1
	default:
		return 0
	}
}

// Assessment is the rule-based risk assessment of a single reading.
type Assessment struct {
	RiskLevel       RiskLevel         `json:"risk_level"`
	KeyFindings     []string          `json:"key_findings"`
	Recommendations []string          `json:"recommendations"`
	NormalRanges    map[string]string `json:"normal_ranges"`
}

// VolumeStatus labels a volume against its normal range.
type VolumeStatus string

const (
	VolumeStatusNormal  VolumeStatus = "normal"
	VolumeStatusLow     VolumeStatus = "low"
	VolumeStatusHigh    VolumeStatus = "high"
	VolumeStatusUnknown VolumeStatus = "unknown"
)

// VolumeAssessment interprets the current sample and the device history.
type VolumeAssessment struct {
	CurrentVolume   *float64      `json:"current_volume,omitempty"`
	CurrentStatus   VolumeStatus  `json:"current_status"`
	DailyStatus     VolumeStatus  `json:"daily_status"`
	FrequencyStatus string        `json:"frequency_status"` // normal | frequent | sparse | unknown
	Alerts          []string      `json:"alerts"`
	Recommendations []string      `json:"recommendations"`
	Daily           DailyStats    `json:"daily_stats"`
	Patterns        PatternReport `json:"patterns"`
}

// AdvisorySummary is the structured context handed to the advisory client.
type AdvisorySummary struct {
	DeviceID      string               `json:"device_id"`
	Timestamp     time.Time            `json:"timestamp"`
	Color         *ColorClassification `json:"color,omitempty"`
	Chemistry     Chemistry            `json:"chemistry"`
	CurrentVolume *float64             `json:"current_volume,omitempty"`
	Daily         DailyStats           `json:"daily_stats"`
	Patterns      PatternReport        `json:"patterns"`
	Assessment    Assessment           `json:"assessment"`
	VolumeAlerts  []string             `json:"volume_alerts,omitempty"`
}

// AdvisoryResult is the opaque advisory text plus display helpers.
type AdvisoryResult struct {
	Enabled       bool      `json:"enabled"`
	Success       bool      `json:"success"`
	Model         string    `json:"model,omitempty"`
	Text          string    `json:"text,omitempty"`
	FormattedText string    `json:"formatted_text,omitempty"`
	Summary       string    `json:"summary,omitempty"`
	Error         string    `json:"error,omitempty"`
	ResponseTime  float64   `json:"response_time"` // seconds
	GeneratedAt   time.Time `json:"generated_at"`
}

// SampleRecord is one processed upload as kept in history.
type SampleRecord struct {
	ID         string           `json:"id"`
	DeviceID   string           `json:"device_id"`
	ReceivedAt time.Time        `json:"received_at"`
	Reading    Reading          `json:"reading"`
	Segment    SegmentOutcome   `json:"segment"`
	Assessment Assessment       `json:"assessment"`
	Volume     VolumeAssessment `json:"volume_analysis"`
	Advisory   *AdvisoryResult  `json:"advisory,omitempty"`
	Summary    string           `json:"summary"`
}

// Validate checks that the record can be persisted.
func (r *SampleRecord) Validate() error {
	if r.ID == "" {
		return errors.New("record ID must not be empty")
	}
	if r.DeviceID == "" {
		return errors.New("device ID must not be empty")
	}
	if r.ReceivedAt.IsZero() {
		return errors.New("received at must be set")
	}
	return nil
}

// IngestResult is returned for every upload. Failed uploads carry Error and no record.
type IngestResult struct {
	Success bool          `json:"success"`
	Error   string        `json:"error,omitempty"`
	Field   string        `json:"field,omitempty"`
	Record  *SampleRecord `json:"record,omitempty"`
}

// DeviceStatus tracks when a device was last heard from.
type DeviceStatus struct {
	DeviceID    string    `json:"device_id"`
	LastSeen    time.Time `json:"last_seen"`
	SampleCount int       `json:"sample_count"`
	LastRisk    RiskLevel `json:"last_risk,omitempty"`
}

// Severity grades outbound alerts.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Alert is a notification raised by the pipeline.
type Alert struct {
	DeviceID string    `json:"device_id"`
	Severity Severity  `json:"severity"`
	Title    string    `json:"title"`
	Details  []string  `json:"details"`
	Time     time.Time `json:"time"`
}
