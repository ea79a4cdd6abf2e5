package ingest

import (
	"fmt"
	"time"

	"github.com/rewired-gh/uroflow/internal/colorimetry"
	"github.com/rewired-gh/uroflow/internal/models"
)

// VolumePolicy decides how a sample's volume is derived.
type VolumePolicy struct {
	// DefaultInterval is the flow-rate sampling period assumed when a sample
	// reports flow without its own sample_interval.
	DefaultInterval time.Duration
}

// DefaultVolumePolicy assumes one-second flow sampling.
func DefaultVolumePolicy() VolumePolicy {
	return VolumePolicy{DefaultInterval: time.Second}
}

// Resolve returns the sample's volume in ml. A direct urine_volume wins; otherwise
// flow_rate is multiplied by the sample's own interval or the policy default.
func (p VolumePolicy) Resolve(s models.Sample) (float64, models.VolumeSource) {
	if s.UrineVolume != nil {
		return *s.UrineVolume, models.VolumeDirect
	}
	if s.FlowRate != nil {
		interval := p.DefaultInterval.Seconds()
		if s.SampleInterval != nil {
			interval = *s.SampleInterval
		}
		return *s.FlowRate * interval, models.VolumeFlowEstimate
	}
	return 0, models.VolumeNone
}

// Normalizer turns raw payloads into readings.
type Normalizer struct {
	Policy VolumePolicy
}

// NewNormalizer creates a normalizer with the given volume policy.
func NewNormalizer(p VolumePolicy) *Normalizer {
	return &Normalizer{Policy: p}
}

// Normalize parses a raw payload and builds the reading handed to the analytics core.
func (n *Normalizer) Normalize(raw map[string]interface{}, receivedAt time.Time) (models.Reading, error) {
	s, warnings, err := Parse(raw, receivedAt)
	if err != nil {
		return models.Reading{}, err
	}
	return n.FromSample(s, warnings), nil
}

// FromSample builds a reading from an already parsed sample.
func (n *Normalizer) FromSample(s models.Sample, warnings []string) models.Reading {
	r := models.Reading{
		Sample: s,
		Chemistry: models.Chemistry{
			Conductivity:    s.ECValue,
			Concentration:   s.Concentration,
			SpecificGravity: s.EstimatedSG,
			SGCategory:      s.SGCategory,
			Sodium:          s.EstimatedNa,
			SodiumCategory:  s.NaCategory,
		},
		Warnings: append([]string{}, warnings...),
	}
	r.Volume, r.VolumeSource = n.Policy.Resolve(s)

	if s.ColorRGB != "" {
		c := colorimetry.AnalyzeRGB(s.ColorRGB)
		r.Color = &c
		switch {
		case !c.Success:
			r.Warnings = append(r.Warnings, fmt.Sprintf("Colour analysis failed: %s", c.Error))
		case colorimetry.IsAbnormal(c.ColorName):
			r.Warnings = append(r.Warnings, fmt.Sprintf("Abnormal urine colour: %s", c.ColorName))
		case colorimetry.SuggestsDehydration(c.ColorName):
			r.Warnings = append(r.Warnings, fmt.Sprintf("Urine colour suggests dehydration: %s", c.ColorName))
		}
	}

	if ec := s.ECValue; ec != nil {
		switch {
		case *ec == 0:
			r.Warnings = append(r.Warnings, "Conductivity reads 0, possible sensor fault")
		case *ec < 0.1:
			r.Warnings = append(r.Warnings, "Very low conductivity, sample may be extremely dilute")
		}
	}
	return r
}
