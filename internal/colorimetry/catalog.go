package colorimetry

import "github.com/rewired-gh/uroflow/internal/models"

type categoryInfo struct {
	description     string
	clinicalMeaning string
	health          models.HealthStatus
	typicalLow      models.RGB
	typicalHigh     models.RGB
}

// chartOrder is the display order of the reference chart.
var chartOrder = []models.ColorCategory{
	models.ColorColorless,
	models.ColorPaleYellow,
	models.ColorYellow,
	models.ColorDarkYellow,
	models.ColorAmber,
	models.ColorOrange,
	models.ColorBrown,
	models.ColorRed,
	models.ColorPink,
	models.ColorGreenBlue,
	models.ColorCloudyWhite,
}

var catalog = map[models.ColorCategory]categoryInfo{
	models.ColorColorless: {
		description:     "Very dilute urine, high fluid intake",
		clinicalMeaning: "May indicate excessive drinking or diabetes insipidus",
		health:          models.HealthNormal,
		typicalLow:      models.RGB{R: 200, G: 200, B: 200},
		typicalHigh:     models.RGB{R: 255, G: 255, B: 255},
	},
	models.ColorPaleYellow: {
		description:     "Normal healthy urine, well hydrated",
		clinicalMeaning: "Ideal colour, fluid balance is good",
		health:          models.HealthNormal,
		typicalLow:      models.RGB{R: 220, G: 220, B: 150},
		typicalHigh:     models.RGB{R: 255, G: 255, B: 200},
	},
	models.ColorYellow: {
		description:     "Normal urine, slightly dehydrated",
		clinicalMeaning: "Mild dehydration or normal physiological variation",
		health:          models.HealthNormal,
		typicalLow:      models.RGB{R: 200, G: 200, B: 100},
		typicalHigh:     models.RGB{R: 240, G: 240, B: 140},
	},
	models.ColorDarkYellow: {
		description:     "Noticeably dehydrated, fluids needed",
		clinicalMeaning: "Dehydration, possibly from sweating or low intake",
		health:          models.HealthAttention,
		typicalLow:      models.RGB{R: 180, G: 160, B: 80},
		typicalHigh:     models.RGB{R: 220, G: 200, B: 120},
	},
	models.ColorAmber: {
		description:     "Severely dehydrated, rehydrate now",
		clinicalMeaning: "Severe dehydration requiring immediate fluids",
		health:          models.HealthWarning,
		typicalLow:      models.RGB{R: 160, G: 120, B: 60},
		typicalHigh:     models.RGB{R: 200, G: 160, B: 100},
	},
	models.ColorOrange: {
		description:     "Possible dehydration or medication effect",
		clinicalMeaning: "May be caused by medication such as rifampicin, dehydration or liver problems",
		health:          models.HealthAttention,
		typicalLow:      models.RGB{R: 200, G: 120, B: 60},
		typicalHigh:     models.RGB{R: 240, G: 160, B: 100},
	},
	models.ColorBrown: {
		description:     "Possible liver problem or severe dehydration",
		clinicalMeaning: "May indicate liver disease, haemolysis or rhabdomyolysis",
		health:          models.HealthWarning,
		typicalLow:      models.RGB{R: 120, G: 80, B: 40},
		typicalHigh:     models.RGB{R: 160, G: 120, B: 80},
	},
	models.ColorRed: {
		description:     "Possible haematuria",
		clinicalMeaning: "May indicate urinary tract infection, stones, tumour or kidney disease",
		health:          models.HealthUrgent,
		typicalLow:      models.RGB{R: 150, G: 40, B: 40},
		typicalHigh:     models.RGB{R: 255, G: 100, B: 100},
	},
	models.ColorPink: {
		description:     "Trace blood or food pigment",
		clinicalMeaning: "Trace haematuria, or pigments from beetroot or blueberries",
		health:          models.HealthAttention,
		typicalLow:      models.RGB{R: 200, G: 120, B: 140},
		typicalHigh:     models.RGB{R: 255, G: 180, B: 200},
	},
	models.ColorGreenBlue: {
		description:     "Rare, possibly bacterial infection or medication",
		clinicalMeaning: "May be caused by Pseudomonas infection, specific drugs or dyes",
		health:          models.HealthWarning,
		typicalLow:      models.RGB{R: 80, G: 150, B: 150},
		typicalHigh:     models.RGB{R: 150, G: 200, B: 200},
	},
	models.ColorCloudyWhite: {
		description:     "Possible pyuria or phosphate precipitate",
		clinicalMeaning: "May indicate urinary tract infection, chyluria or phosphaturia",
		health:          models.HealthWarning,
		typicalLow:      models.RGB{R: 180, G: 180, B: 180},
		typicalHigh:     models.RGB{R: 220, G: 220, B: 220},
	},
}

var unknownInfo = categoryInfo{
	description:     "Colour could not be classified reliably",
	clinicalMeaning: "Further testing may be needed",
	health:          models.HealthUnknown,
}

func infoFor(c models.ColorCategory) categoryInfo {
	if info, ok := catalog[c]; ok {
		return info
	}
	return unknownInfo
}

type detailInfo struct {
	hydration  string
	causes     []string
	conditions []string
	urgency    string
}

var details = map[models.ColorCategory]detailInfo{
	models.ColorColorless:   {"over-hydrated", []string{"excessive fluid intake", "diabetes insipidus", "diabetes"}, nil, "low"},
	models.ColorPaleYellow:  {"good", []string{"normal fluid intake", "healthy state"}, nil, "none"},
	models.ColorYellow:      {"mild dehydration", []string{"low fluid intake", "light sweating"}, nil, "low"},
	models.ColorDarkYellow:  {"moderate dehydration", []string{"clearly low fluid intake", "heavy sweating", "fever"}, []string{"dehydration"}, "medium"},
	models.ColorAmber:       {"severe dehydration", []string{"severely low fluid intake", "diarrhoea", "vomiting"}, []string{"severe dehydration"}, "high"},
	models.ColorOrange:      {"dehydrated or abnormal", []string{"dehydration", "medication such as rifampicin", "liver problems"}, []string{"liver disease", "biliary obstruction"}, "medium"},
	models.ColorBrown:       {"abnormal", []string{"severe dehydration", "liver disease", "haemolysis", "rhabdomyolysis"}, []string{"liver disease", "haemolytic anaemia", "muscle injury"}, "high"},
	models.ColorRed:         {"urgent", []string{"haematuria", "urinary tract infection", "kidney stones", "tumour"}, []string{"haematuria", "urinary tract disease", "kidney disease"}, "urgent"},
	models.ColorPink:        {"needs attention", []string{"trace haematuria", "food pigments (beetroot, blueberries)", "medication"}, []string{"urinary tract infection", "glomerulonephritis"}, "medium"},
	models.ColorGreenBlue:   {"abnormal", []string{"bacterial infection", "specific medication", "food dyes"}, []string{"Pseudomonas infection", "cholestasis"}, "high"},
	models.ColorCloudyWhite: {"abnormal", []string{"urinary tract infection", "phosphate precipitate", "chyluria"}, []string{"pyuria", "urinary tract infection"}, "medium"},
}

func detailFor(c models.ColorCategory, hsv models.HSV) *models.ColorDetail {
	d, ok := details[c]
	if !ok {
		d = detailInfo{hydration: "normal", urgency: "low"}
	}
	out := &models.ColorDetail{
		HydrationLevel:    d.hydration,
		PossibleCauses:    append([]string{}, d.causes...),
		MedicalConditions: append([]string{}, d.conditions...),
		UrgencyLevel:      d.urgency,
		Characteristics: models.ColorCharacteristics{
			HueCategory:     "cool",
			SaturationLevel: "high",
			BrightnessLevel: "dark",
		},
	}
	if hsv.H < 60 || hsv.H > 300 {
		out.Characteristics.HueCategory = "warm"
	}
	if hsv.S < 30 {
		out.Characteristics.SaturationLevel = "low"
	}
	if hsv.V > 70 {
		out.Characteristics.BrightnessLevel = "bright"
	}
	return out
}

// Recommendations returns the advice set for a category's group.
func Recommendations(c models.ColorCategory) []string {
	switch c {
	case models.ColorColorless, models.ColorPaleYellow:
		return []string{
			"Keep your current fluid intake",
			"Monitor urine colour regularly",
			"Maintain a healthy diet",
		}
	case models.ColorYellow, models.ColorDarkYellow:
		return []string{
			"Increase fluid intake to at least 2 litres a day",
			"Reduce caffeine and alcohol",
			"Watch for changes in urine colour",
		}
	case models.ColorAmber, models.ColorOrange:
		return []string{
			"Rehydrate now with small frequent sips",
			"Consult a doctor if the colour persists",
			"Avoid strenuous exercise that worsens dehydration",
		}
	case models.ColorBrown, models.ColorRed, models.ColorPink:
		return []string{
			"Seek medical attention promptly",
			"Record when the symptoms started",
			"Avoid self-medicating",
		}
	case models.ColorGreenBlue, models.ColorCloudyWhite:
		return []string{
			"Ask a doctor for a routine urinalysis",
			"Watch for fever or painful urination",
			"Collect a urine sample for the doctor",
		}
	default:
		return []string{
			"Consider a routine urinalysis",
			"Consult a medical professional",
			"Record any other related symptoms",
		}
	}
}

// Chart returns the reference colour chart.
func Chart() []models.ColorChartEntry {
	chart := make([]models.ColorChartEntry, 0, len(chartOrder))
	for _, c := range chartOrder {
		info := catalog[c]
		chart = append(chart, models.ColorChartEntry{
			Category:        c,
			Description:     info.description,
			ClinicalMeaning: info.clinicalMeaning,
			HealthStatus:    info.health,
			TypicalLow:      info.typicalLow,
			TypicalHigh:     info.typicalHigh,
		})
	}
	return chart
}

// ReferenceSamples are labelled triplets used by the self-test endpoint.
var ReferenceSamples = []struct {
	Label string
	RGB   models.RGB
}{
	{"colorless", models.RGB{R: 230, G: 230, B: 230}},
	{"pale yellow", models.RGB{R: 240, G: 240, B: 180}},
	{"dark yellow", models.RGB{R: 200, G: 180, B: 100}},
	{"brown", models.RGB{R: 140, G: 100, B: 60}},
	{"orange", models.RGB{R: 220, G: 140, B: 70}},
	{"red", models.RGB{R: 200, G: 50, B: 50}},
	{"green/blue", models.RGB{R: 100, G: 180, B: 150}},
}
