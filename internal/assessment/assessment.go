// Package assessment grades a single reading into a risk level with findings and
// recommendations, and renders the one-line result summary.
package assessment

import (
	"fmt"
	"strings"

	"github.com/rewired-gh/uroflow/internal/models"
	"github.com/rewired-gh/uroflow/internal/monitor"
)

// Thresholds are the normal ranges used for chemistry findings.
type Thresholds struct {
	Conductivity    models.Range // mS/cm
	SpecificGravity models.Range
	Sodium          models.Range // mmol/L
	NormalSingle    models.Range // ml
	NormalDaily     models.Range // ml
}

// DefaultThresholds returns the standard reference ranges.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Conductivity:    models.Range{Min: 0.5, Max: 20},
		SpecificGravity: models.Range{Min: 1.003, Max: 1.030},
		Sodium:          models.Range{Min: 40, Max: 220},
		NormalSingle:    models.Range{Min: 200, Max: 500},
		NormalDaily:     models.Range{Min: 800, Max: 2000},
	}
}

var genericRecommendations = []string{
	"Keep up adequate fluid intake",
	"Eat a balanced diet and exercise moderately",
	"See a doctor if you feel unwell",
}

// Assess grades one reading. The risk level only ever rises while rules are applied.
func Assess(r models.Reading, th Thresholds) models.Assessment {
	a := models.Assessment{
		RiskLevel:       models.RiskLow,
		KeyFindings:     []string{},
		Recommendations: []string{},
		NormalRanges: map[string]string{
			"conductivity":     fmt.Sprintf("%g-%g mS/cm", th.Conductivity.Min, th.Conductivity.Max),
			"specific_gravity": fmt.Sprintf("%.3f-%.3f", th.SpecificGravity.Min, th.SpecificGravity.Max),
			"sodium":           fmt.Sprintf("%g-%g mmol/L", th.Sodium.Min, th.Sodium.Max),
			"urine_volume":     fmt.Sprintf("%g-%g ml", th.NormalSingle.Min, th.NormalSingle.Max),
			"daily_volume":     fmt.Sprintf("%g-%g ml", th.NormalDaily.Min, th.NormalDaily.Max),
		},
	}
	raise := func(level models.RiskLevel) {
		if level.Rank() > a.RiskLevel.Rank() {
			a.RiskLevel = level
		}
	}

	if c := r.Color; c != nil && c.Success {
		switch c.ColorName {
		case models.ColorRed, models.ColorBrown, models.ColorGreenBlue:
			raise(models.RiskHigh)
			a.KeyFindings = append(a.KeyFindings, fmt.Sprintf("Abnormal urine colour: %s", c.ColorName))
		case models.ColorOrange, models.ColorAmber, models.ColorCloudyWhite:
			raise(models.RiskMedium)
			a.KeyFindings = append(a.KeyFindings, fmt.Sprintf("Abnormal urine colour: %s", c.ColorName))
		case models.ColorDarkYellow:
			a.KeyFindings = append(a.KeyFindings, fmt.Sprintf("Urine colour suggests dehydration: %s", c.ColorName))
		}
		if len(c.Recommendations) > 2 {
			a.Recommendations = append(a.Recommendations, c.Recommendations[:2]...)
		} else {
			a.Recommendations = append(a.Recommendations, c.Recommendations...)
		}
	}

	chem := r.Chemistry
	if ec := chem.Conductivity; ec != nil {
		switch {
		case *ec < th.Conductivity.Min:
			raise(models.RiskMedium)
			a.KeyFindings = append(a.KeyFindings, "Low conductivity, urine may be very dilute")
		case *ec > th.Conductivity.Max:
			raise(models.RiskMedium)
			a.KeyFindings = append(a.KeyFindings, "High conductivity, urine may be concentrated")
		}
	}
	if sg := chem.SpecificGravity; sg != nil {
		switch {
		case *sg < th.SpecificGravity.Min:
			raise(models.RiskMedium)
			a.KeyFindings = append(a.KeyFindings, "Low specific gravity, possible hyposthenuria")
		case *sg > th.SpecificGravity.Max:
			raise(models.RiskMedium)
			a.KeyFindings = append(a.KeyFindings, "High specific gravity, possible hypersthenuria")
		}
	}
	if na := chem.Sodium; na != nil {
		switch {
		case *na < th.Sodium.Min:
			a.KeyFindings = append(a.KeyFindings, "Low urinary sodium")
			a.Recommendations = append(a.Recommendations, "Consider increasing sodium intake")
		case *na > th.Sodium.Max:
			raise(models.RiskMedium)
			a.KeyFindings = append(a.KeyFindings, "High urinary sodium")
			a.Recommendations = append(a.Recommendations, "Consider reducing sodium intake")
		}
	}

	if len(a.Recommendations) == 0 {
		a.Recommendations = append(a.Recommendations, genericRecommendations...)
	}
	return a
}

// Describe returns the human label of a risk level.
func Describe(level models.RiskLevel) string {
	switch level {
	case models.RiskHigh:
		return "High risk, seek medical advice"
	case models.RiskMedium:
		return "Medium risk, keep an eye on it"
	default:
		return "Low risk"
	}
}

// VolumeLabel names the most relevant non-normal volume condition, or "" when all is normal.
func VolumeLabel(v models.VolumeAssessment) string {
	switch {
	case v.FrequencyStatus == monitor.FrequencyFrequent:
		return "frequent voiding"
	case v.FrequencyStatus == monitor.FrequencySparse:
		return "long voiding intervals"
	case v.CurrentStatus == models.VolumeStatusLow:
		return "low single volume"
	case v.CurrentStatus == models.VolumeStatusHigh:
		return "high single volume"
	case v.DailyStatus == models.VolumeStatusLow:
		return "low daily volume"
	case v.DailyStatus == models.VolumeStatusHigh:
		return "high daily volume"
	}
	return ""
}

// Summarize renders the combined one-line summary of a processed reading.
func Summarize(a models.Assessment, color *models.ColorClassification, v models.VolumeAssessment, adv *models.AdvisoryResult) string {
	parts := []string{"Risk: " + string(a.RiskLevel)}
	if color != nil && color.Success {
		parts = append(parts, "Color: "+string(color.ColorName))
	}
	if label := VolumeLabel(v); label != "" {
		parts = append(parts, "Volume: "+label)
	}
	if adv != nil && adv.Success && adv.Summary != "" {
		parts = append(parts, "Advisory: "+adv.Summary)
	}
	return strings.Join(parts, " | ")
}
