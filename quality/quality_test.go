package quality

import (
	"math"
	"testing"

	"github.com/nvr-ai/go-nutrition/common"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

var goodImage = common.ImageQuality{Brightness: 0.8, Contrast: 0.7, Sharpness: 0.9, Noise: 0.9, OverallQuality: 0.8}

func foods(n int) []common.DetectedFood {
	out := make([]common.DetectedFood, n)
	for i := range out {
		out[i] = common.DetectedFood{Name: "rice", Confidence: 0.9}
	}
	return out
}

func TestBase(t *testing.T) {
	assert.Equal(t, BaseConfidence, Base(nil))
	assert.Equal(t, BaseConfidence, Base([]float64{0, 0, 0, 0}))
	assert.InDelta(t, 0.825, Base([]float64{0.9, 0.75, 0, 0}), 1e-9)
	assert.InDelta(t, 0.6, Base([]float64{0.6, math.NaN()}), 1e-9)
}

func TestScore(t *testing.T) {
	s := New(nil)
	weights := []float64{0.9, 0.75, 0.8, 0.6}
	base := Base(weights)

	tests := []struct {
		name            string
		weights         []float64
		foods           int
		img             common.ImageQuality
		overall         float64
		detection       float64
		nutrition       float64
		recommendations []string
		warnings        []string
	}{
		{
			name: "two foods", weights: weights, foods: 2, img: goodImage,
			overall: base, detection: base + 0.1, nutrition: NutritionAccuracy,
			recommendations: []string{}, warnings: []string{},
		},
		{
			name: "no foods", weights: weights, foods: 0, img: goodImage,
			overall: base * NoFoodPenalty, detection: base*NoFoodPenalty + 0.1, nutrition: NutritionAccuracyNoFood,
			recommendations: []string{RecommendManualCheck}, warnings: []string{WarnNoFood},
		},
		{
			name: "crowded plate", weights: weights, foods: 6, img: goodImage,
			overall: base * CrowdedPenalty, detection: base*CrowdedPenalty + 0.1, nutrition: NutritionAccuracy,
			recommendations: []string{RecommendVerifyItems}, warnings: []string{},
		},
		{
			name: "poor image", weights: weights, foods: 1,
			img:     common.ImageQuality{Brightness: 0.2, Sharpness: 0.1, OverallQuality: 0.3},
			overall: base * PoorImagePenalty, detection: (base + 0.1) * PoorImagePenalty, nutrition: NutritionAccuracy,
			recommendations: []string{RecommendBetterLighting}, warnings: []string{},
		},
		{
			name: "all detectors failed", weights: []float64{0, 0, 0, 0}, foods: 0, img: goodImage,
			overall: BaseConfidence * NoFoodPenalty, detection: BaseConfidence*NoFoodPenalty + 0.1, nutrition: NutritionAccuracyNoFood,
			recommendations: []string{RecommendManualCheck}, warnings: []string{WarnNoFood},
		},
		{
			name: "detection capped", weights: []float64{1}, foods: 4, img: goodImage,
			overall: 1, detection: 1, nutrition: NutritionAccuracy,
			recommendations: []string{RecommendVerifyItems}, warnings: []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := s.Score(tt.weights, foods(tt.foods), tt.img)
			assert.InDelta(t, tt.overall, a.OverallConfidence, 1e-9)
			assert.InDelta(t, tt.detection, a.DetectionAccuracy, 1e-9)
			assert.Equal(t, PortionAccuracy, a.PortionAccuracy)
			assert.Equal(t, tt.nutrition, a.NutritionAccuracy)
			assert.Equal(t, tt.img.OverallQuality, a.ImageQualityScore)
			assert.Equal(t, tt.img.Brightness, a.LightingScore)
			assert.Equal(t, tt.img.Sharpness, a.ClarityScore)
			assert.Equal(t, tt.recommendations, a.Recommendations)
			assert.Equal(t, tt.warnings, a.Warnings)
		})
	}
}

func TestScoreBounds(t *testing.T) {
	s := New(nil)
	weightSets := [][]float64{nil, {0}, {1, 1, 1, 1}, {2.5}, {0.6, 0.9}}
	imgs := []common.ImageQuality{
		{},
		goodImage,
		{Brightness: 1.7, Sharpness: 3, OverallQuality: 1.2},
		{Brightness: -1, OverallQuality: math.NaN()},
	}
	for _, w := range weightSets {
		for _, img := range imgs {
			for _, n := range []int{0, 1, 4, 9} {
				a := s.Score(w, foods(n), img)
				for _, v := range []float64{
					a.OverallConfidence, a.DetectionAccuracy, a.PortionAccuracy,
					a.NutritionAccuracy, a.ImageQualityScore, a.LightingScore, a.ClarityScore,
				} {
					assert.GreaterOrEqual(t, v, 0.0)
					assert.LessOrEqual(t, v, 1.0)
				}
			}
		}
	}
}

func TestFailed(t *testing.T) {
	a := Failed(errors.New("boom"))
	assert.Equal(t, FailureScore, a.OverallConfidence)
	assert.Equal(t, FailureScore, a.ClarityScore)
	assert.Equal(t, []string{"quality scoring failed: boom"}, a.Warnings)
}
