// Package colorimetry classifies urine colour from an RGB triplet.
//
// Classification converts RGB to HSV and walks an ordered rule list; the first
// matching rule decides the category and its confidence. All functions are pure.
package colorimetry

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	colorful "github.com/lucasb-eyer/go-colorful"

	"github.com/rewired-gh/uroflow/internal/models"
)

// ErrNoReading is returned for the device's "0,0,0" sentinel.
var ErrNoReading = errors.New("no colour reading")

// RGBToHSV converts 8-bit RGB to hue degrees [0,360) and saturation/value percentages.
func RGBToHSV(r, g, b int) models.HSV {
	c := colorful.Color{R: float64(r) / 255, G: float64(g) / 255, B: float64(b) / 255}
	h, s, v := c.Hsv()
	return models.HSV{H: h, S: s * 100, V: v * 100}
}

// ParseRGB parses an "R,G,B" string into its components.
func ParseRGB(s string) (models.RGB, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return models.RGB{}, errors.New("empty RGB value")
	}
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return models.RGB{}, fmt.Errorf("RGB value must have 3 components, got %d", len(parts))
	}
	var vals [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return models.RGB{}, fmt.Errorf("RGB component %d is not an integer: %q", i+1, p)
		}
		if n < 0 || n > 255 {
			return models.RGB{}, fmt.Errorf("RGB component %d out of range: %d", i+1, n)
		}
		vals[i] = n
	}
	rgb := models.RGB{R: vals[0], G: vals[1], B: vals[2]}
	if rgb == (models.RGB{}) {
		return models.RGB{}, ErrNoReading
	}
	return rgb, nil
}

// features is what each rule predicate sees.
type features struct {
	r, g, b float64
	hsv     models.HSV
}

func (f features) yellowIndex() float64 {
	return (f.r + f.g) / (2 * 255) * 100
}

func (f features) redBand() bool {
	return (f.hsv.H < 15 || f.hsv.H > 340) && f.hsv.S > 30 && f.r > f.g*1.5 && f.r > f.b*1.5
}

type rule struct {
	name       string
	match      func(f features) bool
	category   models.ColorCategory
	confidence float64
}

// rules is evaluated in order; the first match wins.
var rules = []rule{
	{"colorless", func(f features) bool { return f.hsv.V > 80 && f.hsv.S < 10 }, models.ColorColorless, 0.9},
	{"red", func(f features) bool { return f.redBand() && f.hsv.S > 50 && f.r > 150 }, models.ColorRed, 0.8},
	{"pink", features.redBand, models.ColorPink, 0.7},
	{"green_blue", func(f features) bool { return f.hsv.H > 100 && f.hsv.H < 200 && f.hsv.S > 20 }, models.ColorGreenBlue, 0.7},
	{"brown", func(f features) bool { return f.hsv.H > 20 && f.hsv.H < 50 && f.hsv.S > 30 && f.hsv.V < 70 }, models.ColorBrown, 0.7},
	{"orange", func(f features) bool { return f.hsv.H > 15 && f.hsv.H < 45 && f.hsv.S > 40 }, models.ColorOrange, 0.7},
	{"cloudy_white", func(f features) bool { return f.hsv.S < 10 && f.hsv.V > 50 && f.hsv.V < 85 }, models.ColorCloudyWhite, 0.6},
	{"pale_yellow", func(f features) bool { return f.yellowIndex() > 80 && f.hsv.V > 80 }, models.ColorPaleYellow, 0.8},
	{"yellow", func(f features) bool { return f.yellowIndex() > 80 }, models.ColorYellow, 0.8},
	{"dark_yellow", func(f features) bool { return f.yellowIndex() > 60 }, models.ColorDarkYellow, 0.75},
	{"amber", func(f features) bool { return f.yellowIndex() > 40 }, models.ColorAmber, 0.7},
}

const unknownConfidence = 0.5

// Classify classifies one RGB triplet. Components outside [0,255] yield Success=false.
func Classify(r, g, b int) models.ColorClassification {
	rgb := models.RGB{R: r, G: g, B: b}
	for _, c := range []int{r, g, b} {
		if c < 0 || c > 255 {
			return failure(rgb, fmt.Errorf("RGB component out of range: %d", c))
		}
	}

	hsv := RGBToHSV(r, g, b)
	f := features{r: float64(r), g: float64(g), b: float64(b), hsv: hsv}

	category, confidence := models.ColorUnknown, unknownConfidence
	for _, rl := range rules {
		if rl.match(f) {
			category, confidence = rl.category, rl.confidence
			break
		}
	}

	info := infoFor(category)
	return models.ColorClassification{
		Success:         true,
		RGB:             rgb,
		HSV:             models.HSV{H: round1(hsv.H), S: round1(hsv.S), V: round1(hsv.V)},
		ColorName:       category,
		Confidence:      confidence,
		Description:     info.description,
		ClinicalMeaning: info.clinicalMeaning,
		HealthStatus:    info.health,
		Detail:          detailFor(category, hsv),
		Recommendations: Recommendations(category),
	}
}

// AnalyzeRGB parses and classifies an "R,G,B" string. It never panics; bad input
// returns a result with Success=false and the reason in Error.
func AnalyzeRGB(s string) models.ColorClassification {
	rgb, err := ParseRGB(s)
	if err != nil {
		return failure(rgb, err)
	}
	return Classify(rgb.R, rgb.G, rgb.B)
}

func failure(rgb models.RGB, err error) models.ColorClassification {
	return models.ColorClassification{
		Success:      false,
		Error:        err.Error(),
		RGB:          rgb,
		ColorName:    models.ColorUnknown,
		HealthStatus: models.HealthUnknown,
	}
}

// IsAbnormal reports whether a category warrants an abnormal-colour warning.
func IsAbnormal(c models.ColorCategory) bool {
	switch c {
	case models.ColorRed, models.ColorBrown, models.ColorGreenBlue:
		return true
	}
	return false
}

// SuggestsDehydration reports whether a category warrants a dehydration warning.
func SuggestsDehydration(c models.ColorCategory) bool {
	switch c {
	case models.ColorAmber, models.ColorOrange:
		return true
	}
	return false
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
