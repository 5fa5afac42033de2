// Package quality - Combines detector trust, food count and image quality into
// the confidence metrics reported with every analysis.
package quality

import (
	"math"

	"github.com/nvr-ai/go-nutrition/common"
	"github.com/nvr-ai/go-nutrition/images"
	"github.com/nvr-ai/go-nutrition/logging"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Scoring constants.
const (
	// BaseConfidence is used when no detector produced a usable result.
	BaseConfidence = 0.3
	// NoFoodPenalty scales confidence when nothing was detected.
	NoFoodPenalty = 0.3
	// CrowdedPenalty scales confidence when more than CrowdedFoods were detected.
	CrowdedPenalty = 0.8
	CrowdedFoods   = 5
	// PoorImagePenalty scales confidence when image quality is below PoorImage.
	PoorImagePenalty = 0.8
	PoorImage        = 0.4

	PortionAccuracy         = 0.7
	NutritionAccuracy       = 0.85
	NutritionAccuracyNoFood = 0.3
	FailureScore            = 0.5
)

// Recommendation and warning texts.
const (
	RecommendBetterLighting = "better lighting"
	RecommendVerifyItems    = "verify individual items"
	RecommendManualCheck    = "manual verification"
	WarnNoFood              = "no food detected"
)

// Analysis holds the confidence metrics of one analysis.
type Analysis struct {
	OverallConfidence float64  `json:"overall_confidence"`
	DetectionAccuracy float64  `json:"detection_accuracy"`
	PortionAccuracy   float64  `json:"portion_accuracy"`
	NutritionAccuracy float64  `json:"nutrition_accuracy"`
	ImageQualityScore float64  `json:"image_quality_score"`
	LightingScore     float64  `json:"lighting_score"`
	ClarityScore      float64  `json:"clarity_score"`
	Recommendations   []string `json:"recommendations"`
	Warnings          []string `json:"warnings"`
}

// Scorer computes Analysis values.
type Scorer struct {
	logger *zap.Logger
}

// New creates a Scorer.
func New(logger *zap.Logger) *Scorer {
	return &Scorer{logger: logging.Component(logger, "quality")}
}

// Score computes the confidence metrics.
//
// Arguments:
// - weights: The weight of every detector outcome; zero for failed or skipped ones.
// - foods: The validated foods.
// - img: The image quality measured by the preprocessor.
//
// Returns:
// - Analysis: Every score lies in [0,1]. An internal failure yields Failed.
func (s *Scorer) Score(weights []float64, foods []common.DetectedFood, img common.ImageQuality) (out Analysis) {
	defer func() {
		if r := recover(); r != nil {
			err := errors.Errorf("%v", r)
			s.logger.Warn("quality scoring failed", zap.Error(err))
			out = Failed(err)
		}
	}()

	overall := Base(weights)
	switch n := len(foods); {
	case n == 0:
		overall *= NoFoodPenalty
	case n > CrowdedFoods:
		overall *= CrowdedPenalty
	}
	detection := math.Min(overall+0.1, 1)

	if img.OverallQuality < PoorImage {
		overall *= PoorImagePenalty
		detection *= PoorImagePenalty
	}

	nutrition := NutritionAccuracyNoFood
	if len(foods) > 0 {
		nutrition = NutritionAccuracy
	}

	out = Analysis{
		OverallConfidence: unit(overall),
		DetectionAccuracy: unit(detection),
		PortionAccuracy:   PortionAccuracy,
		NutritionAccuracy: nutrition,
		ImageQualityScore: unit(img.OverallQuality),
		LightingScore:     unit(img.Brightness),
		ClarityScore:      unit(img.Sharpness),
		Recommendations:   []string{},
		Warnings:          []string{},
	}

	if img.OverallQuality < 0.5 {
		out.Recommendations = append(out.Recommendations, RecommendBetterLighting)
	}
	if len(foods) > 3 {
		out.Recommendations = append(out.Recommendations, RecommendVerifyItems)
	}
	if out.OverallConfidence < 0.5 {
		out.Recommendations = append(out.Recommendations, RecommendManualCheck)
	}
	if len(foods) == 0 {
		out.Warnings = append(out.Warnings, WarnNoFood)
	}

	s.logger.Debug("quality scored",
		zap.Float64("overall", out.OverallConfidence),
		zap.Float64("detection", out.DetectionAccuracy),
		zap.Int("foods", len(foods)))
	return out
}

// Base is the mean of the non-zero detector weights, or BaseConfidence when
// every weight is zero.
func Base(weights []float64) float64 {
	sum, n := 0.0, 0
	for _, w := range weights {
		if w > 0 && !math.IsNaN(w) {
			sum += w
			n++
		}
	}
	if n == 0 {
		return BaseConfidence
	}
	return sum / float64(n)
}

// Failed is the neutral analysis reported when scoring itself fails.
func Failed(err error) Analysis {
	return Analysis{
		OverallConfidence: FailureScore,
		DetectionAccuracy: FailureScore,
		PortionAccuracy:   FailureScore,
		NutritionAccuracy: FailureScore,
		ImageQualityScore: FailureScore,
		LightingScore:     FailureScore,
		ClarityScore:      FailureScore,
		Recommendations:   []string{},
		Warnings:          []string{"quality scoring failed: " + err.Error()},
	}
}

func unit(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return images.Clamp(v, 0, 1)
}
