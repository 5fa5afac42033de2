package nutrition

import (
	"context"
	"math"
	"testing"

	"github.com/nvr-ai/go-nutrition/catalog"
	"github.com/nvr-ai/go-nutrition/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func food(name, category string, rec common.NutritionRecord) common.DetectedFood {
	rec.Category = category
	return common.DetectedFood{Name: name, FoodCategory: category, Nutrition: rec}
}

func TestMacros(t *testing.T) {
	m := Macros(25, 50, 10)
	assert.InDelta(t, 100.0/390*100, m.ProteinPercent, 1e-9)
	assert.InDelta(t, 200.0/390*100, m.CarbsPercent, 1e-9)
	assert.InDelta(t, 90.0/390*100, m.FatPercent, 1e-9)
	assert.InDelta(t, 100, m.ProteinPercent+m.CarbsPercent+m.FatPercent, 1e-9)

	assert.Equal(t, MacroBalance{}, Macros(0, 0, 0))
}

func TestMacrosSumTo100(t *testing.T) {
	inputs := [][3]float64{{1, 0, 0}, {0, 0, 3}, {12.5, 80, 4}, {33, 1, 17}, {0.1, 0.2, 0.3}}
	for _, in := range inputs {
		m := Macros(in[0], in[1], in[2])
		assert.InDelta(t, 100, m.ProteinPercent+m.CarbsPercent+m.FatPercent, 1e-6, "%v", in)
	}
}

func TestBalance(t *testing.T) {
	tests := []struct {
		name     string
		macros   MacroBalance
		expected MealBalance
	}{
		{"well balanced", MacroBalance{25, 50, 25}, WellBalanced},
		{"bounds inclusive", MacroBalance{15, 65, 20}, WellBalanced},
		{"high protein", MacroBalance{40, 40, 20}, HighProtein},
		{"high carb", MacroBalance{10, 70, 20}, HighCarb},
		{"high fat", MacroBalance{10, 50, 40}, HighFat},
		{"needs adjustment", MacroBalance{10, 60, 30}, NeedsAdjustment},
		{"empty", MacroBalance{}, NeedsAdjustment},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Balance(tt.macros))
		})
	}
}

func TestAggregateScenarioB(t *testing.T) {
	c := catalog.NewDefault()
	rice, _, _ := c.Lookup(context.Background(), "rice")
	curry, _, _ := c.Lookup(context.Background(), "curry")

	foods := []common.DetectedFood{
		food("rice", rice.Category, rice),
		food("rice", rice.Category, rice),
		food("curry", curry.Category, curry),
	}

	a := New(nil).Aggregate(foods, nil)
	assert.InDelta(t, 2*rice.Calories+curry.Calories, a.TotalCalories, 1e-9)
	assert.InDelta(t, 2*rice.Protein+curry.Protein, a.TotalProtein, 1e-9)
	assert.InDelta(t, 2*rice.Carbs+curry.Carbs, a.TotalCarbs, 1e-9)
	assert.InDelta(t, 2*rice.Fat+curry.Fat, a.TotalFat, 1e-9)
	assert.InDelta(t, 2*rice.Sodium+curry.Sodium, a.TotalSodium, 1e-9)
	require.Len(t, a.Foods, 3)
	assert.True(t, a.DietaryCompliance)
	assert.Empty(t, a.Violations)
}

func TestAggregateMissingFields(t *testing.T) {
	foods := []common.DetectedFood{
		food("odd", catalog.CategoryGeneral, common.NutritionRecord{
			Calories: math.NaN(), Protein: -3, Carbs: 10, Fat: math.Inf(1), Fiber: -1,
		}),
	}
	a := New(nil).Aggregate(foods, nil)
	assert.Equal(t, 0.0, a.TotalCalories)
	assert.Equal(t, 0.0, a.TotalProtein)
	assert.Equal(t, 10.0, a.TotalCarbs)
	assert.Equal(t, 0.0, a.TotalFat)
	assert.Equal(t, 0.0, a.TotalFiber)
	assert.Equal(t, 100.0, a.MacroBalance.CarbsPercent)
	assert.Equal(t, HighCarb, a.MealBalance)
}

func TestAggregateEmpty(t *testing.T) {
	a := New(nil).Aggregate(nil, []string{Vegetarian})
	assert.Equal(t, Empty(), a)
	assert.Equal(t, MacroBalance{}, a.MacroBalance)
	assert.True(t, a.DietaryCompliance)
}

func TestComplianceScenarioD(t *testing.T) {
	foods := []common.DetectedFood{
		food("rice", catalog.CategoryGrains, common.NutritionRecord{Calories: 205}),
		food("beef", catalog.CategoryMeat, common.NutritionRecord{Calories: 250}),
	}

	a := New(nil).Aggregate(foods, []string{"Vegetarian"})
	assert.False(t, a.DietaryCompliance)
	assert.Equal(t, []string{"beef:vegetarian"}, a.Violations)
}

func TestCompliance(t *testing.T) {
	curd := food("curd", catalog.CategoryDairy, common.NutritionRecord{Allergens: []string{"Milk"}})
	egg := food("egg", catalog.CategoryEgg, common.NutritionRecord{Allergens: []string{"egg"}})
	dal := food("dal", catalog.CategoryLegumes, common.NutritionRecord{})

	tests := []struct {
		name         string
		foods        []common.DetectedFood
		restrictions []string
		compliant    bool
		violations   []string
	}{
		{"no restrictions", []common.DetectedFood{curd, egg}, nil, true, []string{}},
		{"no foods", nil, []string{Vegan}, true, []string{}},
		{"blank restriction ignored", []common.DetectedFood{curd}, []string{"  "}, true, []string{}},
		{"vegetarian allows egg", []common.DetectedFood{egg, dal}, []string{Vegetarian}, true, []string{}},
		{"vegetarian rejects dairy", []common.DetectedFood{curd, dal}, []string{Vegetarian}, false, []string{"curd:vegetarian"}},
		{"vegan rejects egg", []common.DetectedFood{egg, dal}, []string{"VEGAN"}, false, []string{"egg:vegan"}},
		{"allergen match case-insensitive", []common.DetectedFood{curd}, []string{"milk"}, false, []string{"curd:milk"}},
		{"unrelated allergen", []common.DetectedFood{dal}, []string{"peanut"}, true, []string{}},
		{"all pairs reported", []common.DetectedFood{curd, egg}, []string{Vegan, "egg"}, false,
			[]string{"curd:vegan", "egg:vegan", "egg:egg"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, violations := Compliance(tt.foods, tt.restrictions)
			assert.Equal(t, tt.compliant, ok)
			assert.Equal(t, tt.violations, violations)
		})
	}
}
