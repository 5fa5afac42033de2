// Package insights - Turns a nutrition analysis into a meal rating, health
// tips, cultural notes and recommendations.
package insights

import (
	"sort"
	"strings"

	"github.com/nvr-ai/go-nutrition/catalog"
	"github.com/nvr-ai/go-nutrition/common"
	"github.com/nvr-ai/go-nutrition/logging"
	"github.com/nvr-ai/go-nutrition/nutrition"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Rating constants.
const (
	BaseRating = 5.0
	MinRating  = 1.0
	MaxRating  = 10.0

	// Calorie window that earns a bonus, and the level that costs one.
	TargetCaloriesMin = 300.0
	TargetCaloriesMax = 600.0
	HighCalories      = 800.0

	// Thresholds for recommendations.
	LowProteinGrams = 15.0
	LowFiberGrams   = 5.0
)

// Tip, suggestion and recommendation texts.
const (
	TipEnergy  = "Grains provide energy for the day; pair them with protein for steadier blood sugar."
	TipMuscle  = "This meal includes protein sources that support muscle maintenance and repair."
	TipFiber   = "Vegetables add fiber and vitamins; keep them on the plate."
	TipGeneral = "Balance your plate with grains, protein and vegetables."

	SuggestAddProtein = "Add protein such as dal, egg, fish or chicken to balance the carbohydrates."
	SuggestLighter    = "This is a heavy meal; consider a smaller portion of rice or fried items."

	RecommendProtein = "Increase protein with lentils, eggs, fish or lean meat."
	RecommendFiber   = "Add vegetables, greens or legumes to raise fiber."
	RecommendVariety = "Add more variety to the meal with a side of vegetables or a salad."
)

// Insights is the guidance attached to an analysis.
type Insights struct {
	MealRating      float64  `json:"meal_rating"`
	HealthTips      []string `json:"health_tips"`
	CulturalNotes   []string `json:"cultural_notes"`
	Recommendations []string `json:"recommendations"`
	Suggestions     []string `json:"suggestions"`
}

// Generic is the block returned when generation fails.
func Generic() Insights {
	return Insights{
		MealRating:      BaseRating,
		HealthTips:      []string{TipGeneral},
		CulturalNotes:   []string{},
		Recommendations: []string{"Consult a nutritionist for personalized advice."},
		Suggestions:     []string{},
	}
}

var muscleCategories = map[string]bool{
	"protein":               true,
	catalog.CategoryCurry:   true,
	catalog.CategoryMeat:    true,
	catalog.CategoryPoultry: true,
	catalog.CategoryFish:    true,
}

// vocabulary maps a cultural context onto name fragments and their notes.
var vocabulary = map[string]map[string]string{
	"sri_lankan": {
		"rice":   "Rice is the centre of a Sri Lankan meal, served with several curries.",
		"curry":  "Sri Lankan curries build flavour from roasted curry powder, coconut milk and curry leaves.",
		"kottu":  "Kottu is chopped roti stir-fried on a griddle, a popular street food.",
		"hopper": "Hoppers are fermented rice-flour pancakes, often eaten at breakfast or dinner.",
		"dal":    "Dal (parippu) is a staple lentil curry and a good plant protein.",
		"sambol": "Sambols are fresh relishes of coconut, chilli and lime served alongside rice.",
	},
	"indian": {
		"rice":    "Rice pairs with dal and sabzi in many regional thalis.",
		"dal":     "Dal is an everyday lentil dish and an inexpensive plant protein.",
		"roti":    "Roti is an unleavened whole-wheat flatbread.",
		"biryani": "Biryani layers spiced rice with meat or vegetables.",
	},
}

// Generator builds Insights.
type Generator struct {
	logger *zap.Logger
}

// New creates a Generator.
func New(logger *zap.Logger) *Generator {
	return &Generator{logger: logging.Component(logger, "insights")}
}

// Generate builds the insights for a meal.
//
// Arguments:
// - analysis: The nutrition summary.
// - foods: The detected foods.
// - culturalContext: Selects the cultural vocabulary, e.g. "sri_lankan".
//
// Returns:
// - Insights: The guidance. A failure yields Generic().
func (g *Generator) Generate(analysis nutrition.Analysis, foods []common.DetectedFood, culturalContext string) (out Insights) {
	defer func() {
		if r := recover(); r != nil {
			g.logger.Warn("insight generation failed", zap.Error(errors.Errorf("%v", r)))
			out = Generic()
		}
	}()

	out = Insights{
		HealthTips:      []string{},
		CulturalNotes:   []string{},
		Recommendations: []string{},
		Suggestions:     []string{},
	}

	out.MealRating, out.Suggestions = Rate(analysis)
	out.HealthTips = Tips(foods)
	out.CulturalNotes = CulturalNotes(foods, culturalContext)

	if analysis.TotalProtein < LowProteinGrams {
		out.Recommendations = append(out.Recommendations, RecommendProtein)
	}
	if analysis.TotalFiber < LowFiberGrams {
		out.Recommendations = append(out.Recommendations, RecommendFiber)
	}
	if len(foods) == 1 {
		out.Recommendations = append(out.Recommendations, RecommendVariety)
	}

	g.logger.Debug("insights generated",
		zap.Float64("rating", out.MealRating),
		zap.Int("tips", len(out.HealthTips)),
		zap.Int("notes", len(out.CulturalNotes)))
	return out
}

// Rate scores a meal on [1, 10] and returns the suggestions the score implies.
//
// @example
//
//	Rate(nutrition.Analysis{MealBalance: nutrition.WellBalanced, TotalCalories: 450}) // 8.0
func Rate(analysis nutrition.Analysis) (float64, []string) {
	rating := BaseRating
	suggestions := []string{}

	switch analysis.MealBalance {
	case nutrition.WellBalanced:
		rating += 2.0
	case nutrition.HighProtein:
		rating += 1.0
	case nutrition.HighCarb:
		rating += 0.5
		suggestions = append(suggestions, SuggestAddProtein)
	}

	switch {
	case analysis.TotalCalories >= TargetCaloriesMin && analysis.TotalCalories <= TargetCaloriesMax:
		rating += 1.0
	case analysis.TotalCalories > HighCalories:
		rating -= 0.5
		suggestions = append(suggestions, SuggestLighter)
	}

	if rating < MinRating {
		rating = MinRating
	}
	if rating > MaxRating {
		rating = MaxRating
	}
	return rating, suggestions
}

// Tips returns one tip per food group present, in a fixed order.
func Tips(foods []common.DetectedFood) []string {
	var grains, muscle, vegetables bool
	for _, f := range foods {
		category := strings.ToLower(f.FoodCategory)
		switch {
		case category == catalog.CategoryGrains:
			grains = true
		case muscleCategories[category]:
			muscle = true
		case category == catalog.CategoryVegetables:
			vegetables = true
		}
	}

	tips := []string{}
	if grains {
		tips = append(tips, TipEnergy)
	}
	if muscle {
		tips = append(tips, TipMuscle)
	}
	if vegetables {
		tips = append(tips, TipFiber)
	}
	return tips
}

// CulturalNotes returns the notes of every vocabulary fragment contained in a
// detected food name, ordered by fragment.
func CulturalNotes(foods []common.DetectedFood, culturalContext string) []string {
	vocab := vocabulary[catalog.NormalizeKey(culturalContext)]
	notes := []string{}
	if len(vocab) == 0 {
		return notes
	}

	fragments := make([]string, 0, len(vocab))
	for k := range vocab {
		fragments = append(fragments, k)
	}
	sort.Strings(fragments)

	for _, fragment := range fragments {
		for _, f := range foods {
			if strings.Contains(strings.ToLower(f.Name), fragment) {
				notes = append(notes, vocab[fragment])
				break
			}
		}
	}
	return notes
}
