// Package common - Shared data types passed between the stages of the meal
// analysis pipeline.
package common

// Method identifies the strategy that produced a candidate or a portion.
type Method string

// Detection and portion methods.
const (
	// MethodDelegate is the external object-detection+OCR service.
	MethodDelegate Method = "delegate"
	// MethodHeuristicCV is the local color/shape/texture heuristic detector.
	MethodHeuristicCV Method = "heuristic_cv"
	// MethodTextKeyword is the free-text keyword detector.
	MethodTextKeyword Method = "text_keyword"
	// MethodPattern is the plate/texture pattern fallback detector.
	MethodPattern Method = "pattern_recognition"

	// MethodAreaEstimate marks portions estimated from region area.
	MethodAreaEstimate Method = "area_estimate"
	// MethodExplicit marks portions supplied by a detector hint.
	MethodExplicit Method = "explicit"
	// MethodFallback marks conservative fallback portions.
	MethodFallback Method = "fallback"
)

// PortionSize is a coarse portion bucket.
type PortionSize string

// Portion buckets.
const (
	PortionSmall  PortionSize = "small"
	PortionMedium PortionSize = "medium"
	PortionLarge  PortionSize = "large"
)

// ParsePortionSize maps free-form portion hints onto a bucket.
func ParsePortionSize(hint string) (PortionSize, bool) {
	switch hint {
	case "small", "s", "light", "half":
		return PortionSmall, true
	case "medium", "m", "regular", "normal":
		return PortionMedium, true
	case "large", "l", "big", "double":
		return PortionLarge, true
	}
	return "", false
}

// ImageQuality holds normalized quality metrics for one request image.
type ImageQuality struct {
	Brightness     float64 `json:"brightness"`
	Contrast       float64 `json:"contrast"`
	Sharpness      float64 `json:"sharpness"`
	Noise          float64 `json:"noise"`
	OverallQuality float64 `json:"overall_quality"`
}

// NeutralImageQuality is reported when quality could not be measured.
func NeutralImageQuality() ImageQuality {
	return ImageQuality{
		Brightness:     0.5,
		Contrast:       0.5,
		Sharpness:      0.5,
		Noise:          0.5,
		OverallQuality: 0.5,
	}
}

// Candidate is a food proposal from a single detector, prior to validation.
type Candidate struct {
	Name        string       `json:"name"`
	Confidence  float64      `json:"confidence"`
	Method      Method       `json:"method"`
	PortionHint string       `json:"portion_hint,omitempty"`
	BBox        *BoundingBox `json:"bbox,omitempty"`
}

// NutritionRecord is per-serving nutrient data for one catalog food.
type NutritionRecord struct {
	Calories      float64  `json:"calories"`
	Protein       float64  `json:"protein"`
	Carbs         float64  `json:"carbs"`
	Fat           float64  `json:"fat"`
	Fiber         float64  `json:"fiber"`
	Sodium        float64  `json:"sodium"`
	Sugar         float64  `json:"sugar"`
	Category      string   `json:"category"`
	GlycemicIndex int      `json:"glycemic_index"`
	HealthScore   float64  `json:"health_score"`
	Allergens     []string `json:"allergens,omitempty"`
}

// Portion is an estimated serving size.
type Portion struct {
	Size       PortionSize `json:"size"`
	Grams      float64     `json:"grams"`
	Confidence float64     `json:"confidence"`
	Method     Method      `json:"method"`
}

// IsZero reports whether no portion has been attached.
func (p Portion) IsZero() bool {
	return p.Size == "" && p.Grams == 0
}

// DetectedFood is a validated food with its resolved nutrition snapshot.
type DetectedFood struct {
	Name             string          `json:"name"`
	Confidence       float64         `json:"confidence"`
	EstimatedPortion Portion         `json:"estimated_portion"`
	Nutrition        NutritionRecord `json:"nutrition"`
	DetectionMethod  Method          `json:"detection_method"`
	PortionAccuracy  float64         `json:"portion_accuracy"`
	FoodCategory     string          `json:"food_category"`
	GlycemicIndex    int             `json:"glycemic_index"`
	HealthScore      float64         `json:"health_score"`
	MatchedKey       string          `json:"matched_key,omitempty"`
	BBox             *BoundingBox    `json:"bbox,omitempty"`
}

// WithPortion returns a copy of the food carrying the given portion.
func (f DetectedFood) WithPortion(p Portion) DetectedFood {
	f.EstimatedPortion = p
	f.PortionAccuracy = p.Confidence
	return f
}
