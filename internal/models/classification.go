package models

// ColorCategory is the enumerated result of colour classification.
type ColorCategory string

const (
	ColorColorless   ColorCategory = "colorless"
	ColorPaleYellow  ColorCategory = "pale_yellow"
	ColorYellow      ColorCategory = "yellow"
	ColorDarkYellow  ColorCategory = "dark_yellow"
	ColorAmber       ColorCategory = "amber"
	ColorOrange      ColorCategory = "orange"
	ColorBrown       ColorCategory = "brown"
	ColorRed         ColorCategory = "red"
	ColorPink        ColorCategory = "pink"
	ColorGreenBlue   ColorCategory = "green_blue"
	ColorCloudyWhite ColorCategory = "cloudy_white"
	ColorUnknown     ColorCategory = "unknown"
)

// HealthStatus is the coarse health label attached to a colour category.
type HealthStatus string

const (
	HealthNormal    HealthStatus = "normal"
	HealthAttention HealthStatus = "attention"
	HealthWarning   HealthStatus = "warning"
	HealthUrgent    HealthStatus = "urgent"
	HealthUnknown   HealthStatus = "unknown"
)

// RGB is an 8-bit colour triplet.
type RGB struct {
	R int `json:"r"`
	G int `json:"g"`
	B int `json:"b"`
}

// HSV holds hue in degrees [0,360) and saturation/value as percentages [0,100].
type HSV struct {
	H float64 `json:"h"`
	S float64 `json:"s"`
	V float64 `json:"v"`
}

// ColorCharacteristics are coarse descriptors derived from HSV.
type ColorCharacteristics struct {
	HueCategory     string `json:"hue_category"`     // warm | cool
	SaturationLevel string `json:"saturation_level"` // low | high
	BrightnessLevel string `json:"brightness_level"` // bright | dark
}

// ColorDetail is the extended clinical interpretation for a category.
type ColorDetail struct {
	HydrationLevel    string               `json:"hydration_level"`
	PossibleCauses    []string             `json:"possible_causes"`
	MedicalConditions []string             `json:"medical_conditions"`
	UrgencyLevel      string               `json:"urgency_level"`
	Characteristics   ColorCharacteristics `json:"color_characteristics"`
}

// ColorClassification is the result of classifying one RGB triplet.
// Success is false, with Error set, when the input could not be classified.
type ColorClassification struct {
	Success         bool          `json:"success"`
	Error           string        `json:"error,omitempty"`
	RGB             RGB           `json:"rgb"`
	HSV             HSV           `json:"hsv"`
	ColorName       ColorCategory `json:"color_name"`
	Confidence      float64       `json:"confidence"`
	Description     string        `json:"description,omitempty"`
	ClinicalMeaning string        `json:"clinical_meaning,omitempty"`
	HealthStatus    HealthStatus  `json:"health_status,omitempty"`
	Detail          *ColorDetail  `json:"detailed_analysis,omitempty"`
	Recommendations []string      `json:"recommendations,omitempty"`
}

// ColorChartEntry is one row of the reference colour chart.
type ColorChartEntry struct {
	Category        ColorCategory `json:"category"`
	Description     string        `json:"description"`
	ClinicalMeaning string        `json:"clinical_meaning"`
	HealthStatus    HealthStatus  `json:"health_status"`
	TypicalLow      RGB           `json:"typical_low"`
	TypicalHigh     RGB           `json:"typical_high"`
}
