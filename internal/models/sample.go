// Package models defines the core domain entities for the uroflow service.
// These models represent device samples, voiding events, colour classifications
// and the statistics derived from event history.
//
// Terminology:
//   - Sample: one periodic reading pushed by a device (colour, flow, chemistry).
//   - Voiding event: a contiguous run of flow samples segmented into one urination.
//   - Reading: a sample after normalization, with its canonical volume and colour result.
package models

import (
	"errors"
	"time"
)

// Sample is one device reading after field coercion. Optional measurements are nil
// when the device did not report them.
type Sample struct {
	DeviceID            string    `json:"device_id"`
	Timestamp           time.Time `json:"timestamp"`
	ColorRGB            string    `json:"color_rgb,omitempty"`       // Raw "R,G,B" string as sent by the device
	UrineVolume         *float64  `json:"urine_volume,omitempty"`    // ml, direct measurement
	FlowRate            *float64  `json:"flow_rate,omitempty"`       // ml/s
	SampleInterval      *float64  `json:"sample_interval,omitempty"` // seconds
	ECValue             *float64  `json:"ec_value,omitempty"`        // mS/cm
	Concentration       string    `json:"concentration,omitempty"`
	EstimatedSG         *float64  `json:"estimated_sg,omitempty"`
	SGCategory          string    `json:"sg_category,omitempty"`
	EstimatedNa         *float64  `json:"estimated_na,omitempty"` // mmol/L
	NaCategory          string    `json:"na_category,omitempty"`
	FSRRaw              *float64  `json:"fsr_raw,omitempty"`
	FSRResistance       *float64  `json:"fsr_resistance,omitempty"`
	UrinationInProgress *bool     `json:"urination_in_progress,omitempty"`
	DeviceEventCount    *int      `json:"event_count,omitempty"` // Device-side counter, informational only
}

// Validate checks that all sample fields are valid.
func (s *Sample) Validate() error {
	if s.DeviceID == "" {
		return errors.New("device ID must not be empty")
	}
	if s.Timestamp.IsZero() {
		return errors.New("timestamp must be set")
	}
	if s.UrineVolume != nil && *s.UrineVolume < 0 {
		return errors.New("urine volume must not be negative")
	}
	if s.FlowRate != nil && *s.FlowRate < 0 {
		return errors.New("flow rate must not be negative")
	}
	if s.SampleInterval != nil && *s.SampleInterval <= 0 {
		return errors.New("sample interval must be positive")
	}
	if s.ECValue != nil && *s.ECValue < 0 {
		return errors.New("conductivity must not be negative")
	}
	return nil
}

// VolumeSource records where a reading's canonical volume came from.
type VolumeSource string

const (
	VolumeDirect       VolumeSource = "direct"
	VolumeFlowEstimate VolumeSource = "flow_estimate"
	VolumeNone         VolumeSource = "none"
)

// Chemistry bundles the device-estimated chemistry values carried by a sample.
type Chemistry struct {
	Conductivity    *float64 `json:"conductivity,omitempty"`
	Concentration   string   `json:"concentration,omitempty"`
	SpecificGravity *float64 `json:"specific_gravity,omitempty"`
	SGCategory      string   `json:"sg_category,omitempty"`
	Sodium          *float64 `json:"sodium,omitempty"`
	SodiumCategory  string   `json:"sodium_category,omitempty"`
}

// Reading is the normalized form of a sample handed to the analytics core.
type Reading struct {
	Sample       Sample               `json:"sample"`
	Volume       float64              `json:"volume_ml"`
	VolumeSource VolumeSource         `json:"volume_source"`
	Color        *ColorClassification `json:"color,omitempty"`
	Chemistry    Chemistry            `json:"chemistry"`
	Warnings     []string             `json:"warnings,omitempty"`
}

// HasVolume reports whether the reading carries a usable volume.
func (r *Reading) HasVolume() bool {
	return r.VolumeSource != VolumeNone
}

// Float64 returns a pointer to v, for building samples with optional fields.
func Float64(v float64) *float64 {
	return &v
}
