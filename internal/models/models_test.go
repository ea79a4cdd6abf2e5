package models

import (
	"testing"
	"time"
)

func TestSampleValidate(t *testing.T) {
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	tests := []struct {
		name    string
		sample  Sample
		wantErr bool
	}{
		{
			name:    "valid sample",
			sample:  Sample{DeviceID: "dev-1", Timestamp: now, UrineVolume: Float64(120)},
			wantErr: false,
		},
		{
			name:    "colour only",
			sample:  Sample{DeviceID: "dev-1", Timestamp: now, ColorRGB: "230,230,230"},
			wantErr: false,
		},
		{
			name:    "empty device ID",
			sample:  Sample{Timestamp: now},
			wantErr: true,
		},
		{
			name:    "zero timestamp",
			sample:  Sample{DeviceID: "dev-1"},
			wantErr: true,
		},
		{
			name:    "negative volume",
			sample:  Sample{DeviceID: "dev-1", Timestamp: now, UrineVolume: Float64(-1)},
			wantErr: true,
		},
		{
			name:    "negative flow rate",
			sample:  Sample{DeviceID: "dev-1", Timestamp: now, FlowRate: Float64(-3)},
			wantErr: true,
		},
		{
			name:    "zero sample interval",
			sample:  Sample{DeviceID: "dev-1", Timestamp: now, SampleInterval: Float64(0)},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.sample.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Sample.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestVoidingEventValidate(t *testing.T) {
	start := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	end := start.Add(20 * time.Second)
	before := start.Add(-time.Second)

	tests := []struct {
		name    string
		event   VoidingEvent
		wantErr bool
	}{
		{
			name:    "valid closed event",
			event:   VoidingEvent{ID: "e1", DeviceID: "dev-1", StartTime: start, EndTime: &end, TotalVolume: 300, Duration: 20, AverageFlowRate: 15},
			wantErr: false,
		},
		{
			name:    "valid open event",
			event:   VoidingEvent{ID: "e1", DeviceID: "dev-1", StartTime: start, TotalVolume: 60},
			wantErr: false,
		},
		{
			name:    "empty ID",
			event:   VoidingEvent{DeviceID: "dev-1", StartTime: start},
			wantErr: true,
		},
		{
			name:    "negative volume",
			event:   VoidingEvent{ID: "e1", DeviceID: "dev-1", StartTime: start, TotalVolume: -5},
			wantErr: true,
		},
		{
			name:    "end before start",
			event:   VoidingEvent{ID: "e1", DeviceID: "dev-1", StartTime: start, EndTime: &before},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.event.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("VoidingEvent.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestVoidingEventCloneIsDeep(t *testing.T) {
	start := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	end := start.Add(5 * time.Second)
	orig := VoidingEvent{
		ID:          "e1",
		DeviceID:    "dev-1",
		StartTime:   start,
		EndTime:     &end,
		FlowSamples: []FlowSample{{Time: start, Volume: 100}},
	}

	c := orig.Clone()
	c.FlowSamples[0].Volume = 1
	*c.EndTime = start

	if orig.FlowSamples[0].Volume != 100 {
		t.Errorf("clone shares flow samples with original")
	}
	if !orig.EndTime.Equal(end) {
		t.Errorf("clone shares end time with original")
	}
}

func TestRiskLevelRank(t *testing.T) {
	if !(RiskHigh.Rank() > RiskMedium.Rank() && RiskMedium.Rank() > RiskLow.Rank()) {
		t.Errorf("risk ranks out of order: high=%d medium=%d low=%d", RiskHigh.Rank(), RiskMedium.Rank(), RiskLow.Rank())
	}
}

func TestRangeContainsIsInclusive(t *testing.T) {
	r := Range{Min: 200, Max: 500}
	for _, v := range []float64{200, 350, 500} {
		if !r.Contains(v) {
			t.Errorf("Range.Contains(%v) = false, want true", v)
		}
	}
	for _, v := range []float64{199.9, 500.1} {
		if r.Contains(v) {
			t.Errorf("Range.Contains(%v) = true, want false", v)
		}
	}
}
