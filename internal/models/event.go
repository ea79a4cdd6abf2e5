package models

import (
	"errors"
	"time"
)

// FlowSample is one qualifying volume contribution inside a voiding event.
type FlowSample struct {
	Time   time.Time `json:"time"`
	Volume float64   `json:"volume"`
}

// VoidingEvent is a contiguous run of flow samples treated as one urination.
// EndTime is nil while the event is still open.
type VoidingEvent struct {
	ID              string       `json:"event_id"`
	DeviceID        string       `json:"device_id"`
	StartTime       time.Time    `json:"start_time"`
	EndTime         *time.Time   `json:"end_time,omitempty"`
	TotalVolume     float64      `json:"total_volume"`      // ml
	Duration        float64      `json:"duration"`          // seconds, EndTime - StartTime
	AverageFlowRate float64      `json:"average_flow_rate"` // ml/s, 0 when Duration is 0
	PeakSample      float64      `json:"peak_sample"`       // largest single contribution, ml
	FlowSamples     []FlowSample `json:"flow_samples,omitempty"`
}

// IsOpen reports whether the event has not been closed yet.
func (e *VoidingEvent) IsOpen() bool {
	return e.EndTime == nil
}

// Clone returns a deep copy so callers cannot mutate segmenter-owned state.
func (e *VoidingEvent) Clone() VoidingEvent {
	c := *e
	if e.EndTime != nil {
		end := *e.EndTime
		c.EndTime = &end
	}
	if e.FlowSamples != nil {
		c.FlowSamples = make([]FlowSample, len(e.FlowSamples))
		copy(c.FlowSamples, e.FlowSamples)
	}
	return c
}

// Validate checks that all event fields are valid.
func (e *VoidingEvent) Validate() error {
	if e.ID == "" {
		return errors.New("event ID must not be empty")
	}
	if e.DeviceID == "" {
		return errors.New("device ID must not be empty")
	}
	if e.StartTime.IsZero() {
		return errors.New("start time must be set")
	}
	if e.TotalVolume < 0 {
		return errors.New("total volume must not be negative")
	}
	if e.Duration < 0 {
		return errors.New("duration must not be negative")
	}
	if e.AverageFlowRate < 0 {
		return errors.New("average flow rate must not be negative")
	}
	if e.EndTime != nil && e.EndTime.Before(e.StartTime) {
		return errors.New("end time must be >= start time")
	}
	return nil
}

// Transition names what a sample did to a device's segmentation state.
type Transition string

const (
	TransitionIgnored    Transition = "ignored"
	TransitionStarted    Transition = "started"
	TransitionContinuing Transition = "continuing"
	TransitionCompleted  Transition = "completed" // previous event closed; the sample may also start a new one
)

// SegmentOutcome reports the effect of one sample on segmentation.
type SegmentOutcome struct {
	Detected   bool          `json:"event_detected"`
	Transition Transition    `json:"transition"`
	Volume     float64       `json:"volume"`
	Reason     string        `json:"reason,omitempty"`
	Completed  *VoidingEvent `json:"completed_event,omitempty"`
	Open       *VoidingEvent `json:"current_event,omitempty"`
}
