// Package nutrition - Sums per-serving nutrients across detected foods and
// derives macro balance and dietary compliance.
package nutrition

import (
	"math"
	"strings"

	"github.com/nvr-ai/go-nutrition/catalog"
	"github.com/nvr-ai/go-nutrition/common"
	"github.com/nvr-ai/go-nutrition/logging"
	"go.uber.org/zap"
)

// MealBalance tags the macro distribution of a meal.
type MealBalance string

// Balance tags.
const (
	WellBalanced    MealBalance = "well_balanced"
	HighProtein     MealBalance = "high_protein"
	HighCarb        MealBalance = "high_carb"
	HighFat         MealBalance = "high_fat"
	NeedsAdjustment MealBalance = "needs_adjustment"
)

// Dietary restrictions checked against food categories.
const (
	Vegetarian = "vegetarian"
	Vegan      = "vegan"
)

var (
	nonVegetarian = map[string]bool{
		catalog.CategoryMeat:    true,
		catalog.CategoryPoultry: true,
		catalog.CategoryFish:    true,
		catalog.CategorySeafood: true,
		catalog.CategoryDairy:   true,
	}
	nonVegan = map[string]bool{
		catalog.CategoryMeat:    true,
		catalog.CategoryPoultry: true,
		catalog.CategoryFish:    true,
		catalog.CategorySeafood: true,
		catalog.CategoryDairy:   true,
		catalog.CategoryEgg:     true,
	}
)

// MacroBalance holds each macro's share of macro calories in percent.
type MacroBalance struct {
	ProteinPercent float64 `json:"protein_percent"`
	CarbsPercent   float64 `json:"carbs_percent"`
	FatPercent     float64 `json:"fat_percent"`
}

// FoodNutrition is the contribution of one food to the totals.
type FoodNutrition struct {
	Name     string  `json:"name"`
	Category string  `json:"category"`
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
	Carbs    float64 `json:"carbs"`
	Fat      float64 `json:"fat"`
}

// Analysis is the nutrition summary of a meal.
type Analysis struct {
	TotalCalories     float64         `json:"total_calories"`
	TotalProtein      float64         `json:"total_protein"`
	TotalCarbs        float64         `json:"total_carbs"`
	TotalFat          float64         `json:"total_fat"`
	TotalFiber        float64         `json:"total_fiber"`
	TotalSodium       float64         `json:"total_sodium"`
	TotalSugar        float64         `json:"total_sugar"`
	MacroBalance      MacroBalance    `json:"macro_balance"`
	MealBalance       MealBalance     `json:"meal_balance"`
	DietaryCompliance bool            `json:"dietary_compliance"`
	Violations        []string        `json:"violations"`
	Foods             []FoodNutrition `json:"foods"`
}

// Empty is the analysis of a meal with no foods.
func Empty() Analysis {
	return Analysis{
		MealBalance:       NeedsAdjustment,
		DietaryCompliance: true,
		Violations:        []string{},
		Foods:             []FoodNutrition{},
	}
}

// Aggregator computes meal-level nutrition.
type Aggregator struct {
	logger *zap.Logger
}

// New creates an Aggregator.
func New(logger *zap.Logger) *Aggregator {
	return &Aggregator{logger: logging.Component(logger, "nutrition")}
}

// Aggregate sums one serving of every food and evaluates the restrictions.
//
// Arguments:
// - foods: The detected foods.
// - restrictions: Dietary restrictions such as "vegetarian" or an allergen.
//
// Returns:
// - Analysis: The summary. A failure yields Empty().
func (a *Aggregator) Aggregate(foods []common.DetectedFood, restrictions []string) (out Analysis) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Warn("nutrition aggregation failed", zap.Any("panic", r))
			out = Empty()
		}
	}()

	out = Empty()
	for _, food := range foods {
		n := food.Nutrition
		fn := FoodNutrition{
			Name:     food.Name,
			Category: food.FoodCategory,
			Calories: orZero(n.Calories),
			Protein:  orZero(n.Protein),
			Carbs:    orZero(n.Carbs),
			Fat:      orZero(n.Fat),
		}
		out.Foods = append(out.Foods, fn)

		out.TotalCalories += fn.Calories
		out.TotalProtein += fn.Protein
		out.TotalCarbs += fn.Carbs
		out.TotalFat += fn.Fat
		out.TotalFiber += orZero(n.Fiber)
		out.TotalSodium += orZero(n.Sodium)
		out.TotalSugar += orZero(n.Sugar)
	}

	out.MacroBalance = Macros(out.TotalProtein, out.TotalCarbs, out.TotalFat)
	out.MealBalance = Balance(out.MacroBalance)
	out.DietaryCompliance, out.Violations = Compliance(foods, restrictions)

	a.logger.Debug("nutrition aggregated",
		zap.Int("foods", len(foods)),
		zap.Float64("calories", out.TotalCalories),
		zap.String("balance", string(out.MealBalance)),
		zap.Bool("compliant", out.DietaryCompliance))
	return out
}

// orZero replaces missing (negative or NaN) values.
func orZero(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

// Macros converts gram totals into calorie shares.
//
// @example
//
//	Macros(25, 50, 10) // {25.6, 51.3, 23.1}: 100, 200 and 90 of 390 kcal
func Macros(protein, carbs, fat float64) MacroBalance {
	p, c, f := protein*4, carbs*4, fat*9
	total := p + c + f
	if total <= 0 {
		return MacroBalance{}
	}
	return MacroBalance{
		ProteinPercent: p / total * 100,
		CarbsPercent:   c / total * 100,
		FatPercent:     f / total * 100,
	}
}

// Balance tags a macro distribution.
func Balance(m MacroBalance) MealBalance {
	switch {
	case m.ProteinPercent >= 15 && m.ProteinPercent <= 35 &&
		m.CarbsPercent >= 45 && m.CarbsPercent <= 65 &&
		m.FatPercent >= 20 && m.FatPercent <= 35:
		return WellBalanced
	case m.ProteinPercent > 35:
		return HighProtein
	case m.CarbsPercent > 65:
		return HighCarb
	case m.FatPercent > 35:
		return HighFat
	default:
		return NeedsAdjustment
	}
}

// Compliance checks every food against every restriction. Vegetarian and
// vegan are checked against food categories; any other restriction is
// treated as an allergen name.
//
// Arguments:
// - foods: The detected foods.
// - restrictions: The restrictions to honour.
//
// Returns:
// - bool: True when no pair is violated, including for empty inputs.
// - []string: Violations as "food:restriction", never nil.
func Compliance(foods []common.DetectedFood, restrictions []string) (bool, []string) {
	violations := []string{}
	for _, food := range foods {
		category := strings.ToLower(food.FoodCategory)
		if category == "" {
			category = strings.ToLower(food.Nutrition.Category)
		}
		for _, raw := range restrictions {
			restriction := strings.ToLower(strings.TrimSpace(raw))
			if restriction == "" {
				continue
			}
			if violates(category, food.Nutrition.Allergens, restriction) {
				violations = append(violations, food.Name+":"+restriction)
			}
		}
	}
	return len(violations) == 0, violations
}

func violates(category string, allergens []string, restriction string) bool {
	switch restriction {
	case Vegetarian:
		return nonVegetarian[category]
	case Vegan:
		return nonVegan[category]
	}
	for _, allergen := range allergens {
		if strings.EqualFold(strings.TrimSpace(allergen), restriction) {
			return true
		}
	}
	return false
}
