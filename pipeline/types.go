package pipeline

import (
	"strings"
	"sync"
	"time"

	"github.com/nvr-ai/go-nutrition/common"
	"github.com/nvr-ai/go-nutrition/insights"
	"github.com/nvr-ai/go-nutrition/nutrition"
	"github.com/nvr-ai/go-nutrition/portion"
	"github.com/nvr-ai/go-nutrition/quality"
)

// MealType is the meal a photo belongs to.
type MealType string

// Meal types.
const (
	Breakfast MealType = "breakfast"
	Lunch     MealType = "lunch"
	Dinner    MealType = "dinner"
	Snack     MealType = "snack"
)

// ParseMealType maps a name onto a MealType, reporting whether it was valid.
// Invalid names map to Snack.
func ParseMealType(s string) (MealType, bool) {
	switch m := MealType(strings.ToLower(strings.TrimSpace(s))); m {
	case Breakfast, Lunch, Dinner, Snack:
		return m, true
	}
	return Snack, false
}

// Result method tags.
const (
	MethodEnsemble = "ensemble"
	MethodFallback = "hardcore_fallback"
)

// FallbackConfidence is the overall confidence of a fallback result.
const FallbackConfidence = 0.1

// Request is one analysis request.
type Request struct {
	// Image holds the encoded photo (JPEG, PNG, GIF or WebP).
	Image               []byte
	UserID              string
	MealType            string
	Text                string
	DietaryRestrictions []string
	// CulturalContext defaults to the service's configured context.
	CulturalContext  string
	ReferenceObjects []portion.Reference
}

// AnalysisResult is the outcome of one analysis.
type AnalysisResult struct {
	AnalysisID            string                `json:"analysis_id"`
	UserID                string                `json:"user_id"`
	Timestamp             time.Time             `json:"timestamp"`
	DetectedFoods         []common.DetectedFood `json:"detected_foods"`
	NutritionAnalysis     nutrition.Analysis    `json:"nutrition_analysis"`
	AnalysisQuality       quality.Analysis      `json:"analysis_quality"`
	Insights              insights.Insights     `json:"insights"`
	ProcessingTimeSeconds float64               `json:"processing_time_seconds"`
	MealType              MealType              `json:"meal_type"`
	TextDescription       string                `json:"text_description"`
	CulturalContext       string                `json:"cultural_context"`
	ImageQuality          common.ImageQuality   `json:"image_quality"`
	Method                string                `json:"method"`
	Error                 string                `json:"error,omitempty"`
	StageTimings          map[string]float64    `json:"stage_timings"`
}

// statsDecay weights the previous running average.
const statsDecay = 0.9

// Stats is a snapshot of RunningStats.
type Stats struct {
	TotalAnalyses         int64   `json:"total_analyses"`
	AverageConfidence     float64 `json:"average_confidence"`
	AverageProcessingTime float64 `json:"average_processing_time"`
}

// RunningStats tracks service-wide averages with exponential decay. The
// decay applies from the zero value.
type RunningStats struct {
	mu    sync.Mutex
	stats Stats
}

// Update folds one finished analysis into the averages.
func (r *RunningStats) Update(confidence, seconds float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stats.TotalAnalyses++
	r.stats.AverageConfidence = r.stats.AverageConfidence*statsDecay + confidence*(1-statsDecay)
	r.stats.AverageProcessingTime = r.stats.AverageProcessingTime*statsDecay + seconds*(1-statsDecay)
}

// Snapshot returns a copy of the current stats.
func (r *RunningStats) Snapshot() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}
