package insights

import (
	"testing"

	"github.com/nvr-ai/go-nutrition/catalog"
	"github.com/nvr-ai/go-nutrition/common"
	"github.com/nvr-ai/go-nutrition/nutrition"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRate(t *testing.T) {
	tests := []struct {
		name        string
		balance     nutrition.MealBalance
		calories    float64
		rating      float64
		suggestions []string
	}{
		{"well balanced in window", nutrition.WellBalanced, 450, 8.0, []string{}},
		{"well balanced window edges", nutrition.WellBalanced, 300, 8.0, []string{}},
		{"high protein", nutrition.HighProtein, 700, 6.0, []string{}},
		{"high carb", nutrition.HighCarb, 500, 6.5, []string{SuggestAddProtein}},
		{"high carb heavy", nutrition.HighCarb, 900, 5.0, []string{SuggestAddProtein, SuggestLighter}},
		{"high fat heavy", nutrition.HighFat, 1200, 4.5, []string{SuggestLighter}},
		{"needs adjustment", nutrition.NeedsAdjustment, 0, 5.0, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rating, suggestions := Rate(nutrition.Analysis{MealBalance: tt.balance, TotalCalories: tt.calories})
			assert.Equal(t, tt.rating, rating)
			assert.Equal(t, tt.suggestions, suggestions)
		})
	}
}

func TestRateClamped(t *testing.T) {
	for _, balance := range []nutrition.MealBalance{
		nutrition.WellBalanced, nutrition.HighProtein, nutrition.HighCarb,
		nutrition.HighFat, nutrition.NeedsAdjustment, "",
	} {
		for _, calories := range []float64{-100, 0, 300, 601, 801, 1e9} {
			rating, _ := Rate(nutrition.Analysis{MealBalance: balance, TotalCalories: calories})
			assert.GreaterOrEqual(t, rating, MinRating)
			assert.LessOrEqual(t, rating, MaxRating)
		}
	}
}

func TestTips(t *testing.T) {
	foods := []common.DetectedFood{
		{Name: "salad", FoodCategory: catalog.CategoryVegetables},
		{Name: "rice", FoodCategory: catalog.CategoryGrains},
		{Name: "chicken", FoodCategory: catalog.CategoryPoultry},
	}
	assert.Equal(t, []string{TipEnergy, TipMuscle, TipFiber}, Tips(foods))
	assert.Equal(t, []string{TipMuscle}, Tips([]common.DetectedFood{{FoodCategory: "Curry"}}))
	assert.Empty(t, Tips(nil))
}

func TestCulturalNotes(t *testing.T) {
	foods := []common.DetectedFood{
		{Name: "string_hoppers"},
		{Name: "dal_curry"},
		{Name: "pizza"},
	}

	notes := CulturalNotes(foods, "Sri Lankan")
	require.Len(t, notes, 3)
	// fragments in order: curry, dal, hopper
	assert.Contains(t, notes[0], "curries")
	assert.Contains(t, notes[1], "Dal")
	assert.Contains(t, notes[2], "Hoppers")

	assert.Empty(t, CulturalNotes(foods, "mexican"))
	assert.Empty(t, CulturalNotes(nil, "sri_lankan"))
}

func TestGenerate(t *testing.T) {
	g := New(nil)
	foods := []common.DetectedFood{{Name: "rice", FoodCategory: catalog.CategoryGrains}}
	analysis := nutrition.Analysis{
		TotalCalories: 205,
		TotalProtein:  4.3,
		TotalFiber:    0.6,
		MealBalance:   nutrition.HighCarb,
	}

	in := g.Generate(analysis, foods, "sri_lankan")
	assert.Equal(t, 5.5, in.MealRating)
	assert.Equal(t, []string{SuggestAddProtein}, in.Suggestions)
	assert.Equal(t, []string{TipEnergy}, in.HealthTips)
	require.Len(t, in.CulturalNotes, 1)
	assert.Equal(t, []string{RecommendProtein, RecommendFiber, RecommendVariety}, in.Recommendations)
}

func TestGenerateEmptyMeal(t *testing.T) {
	in := New(nil).Generate(nutrition.Empty(), nil, "")
	assert.Equal(t, BaseRating, in.MealRating)
	assert.Empty(t, in.HealthTips)
	assert.Empty(t, in.CulturalNotes)
	assert.Equal(t, []string{RecommendProtein, RecommendFiber}, in.Recommendations)
	assert.NotNil(t, in.Suggestions)
}

func TestGeneric(t *testing.T) {
	in := Generic()
	assert.Equal(t, BaseRating, in.MealRating)
	assert.NotEmpty(t, in.HealthTips)
	assert.NotEmpty(t, in.Recommendations)
}
