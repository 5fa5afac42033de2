package catalog

import "github.com/nvr-ai/go-nutrition/common"

// Record categories used by compliance checks and insights.
const (
	CategoryGrains     = "grains"
	CategoryCurry      = "curry"
	CategoryLegumes    = "legumes"
	CategoryMeat       = "meat"
	CategoryPoultry    = "poultry"
	CategoryFish       = "fish"
	CategorySeafood    = "seafood"
	CategoryDairy      = "dairy"
	CategoryEgg        = "egg"
	CategoryVegetables = "vegetables"
	CategoryCondiment  = "condiment"
	CategoryMixed      = "mixed"
	CategoryGeneral    = "general"
)

// Neutral values used when a record leaves a field empty.
const (
	DefaultGlycemicIndex = 50
	DefaultHealthScore   = 7.0
)

// DefaultRecord is the generic per-serving record used when a name resolves
// to nothing in any catalog tier.
func DefaultRecord() common.NutritionRecord {
	return common.NutritionRecord{
		Calories:      150,
		Protein:       8,
		Carbs:         25,
		Fat:           4,
		Fiber:         3,
		Sodium:        300,
		Sugar:         5,
		Category:      CategoryGeneral,
		GlycemicIndex: DefaultGlycemicIndex,
		HealthScore:   DefaultHealthScore,
	}
}

// DefaultRecords returns the built-in per-serving table, centred on Sri Lankan
// home cooking.
func DefaultRecords() map[string]common.NutritionRecord {
	return map[string]common.NutritionRecord{
		"rice": {
			Calories: 205, Protein: 4.3, Carbs: 45, Fat: 0.4, Fiber: 0.6, Sodium: 2, Sugar: 0.1,
			Category: CategoryGrains, GlycemicIndex: 73, HealthScore: 6.0,
		},
		"fried_rice": {
			Calories: 340, Protein: 8, Carbs: 50, Fat: 12, Fiber: 1.5, Sodium: 650, Sugar: 1.5,
			Category: CategoryGrains, GlycemicIndex: 70, HealthScore: 4.5,
			Allergens: []string{"egg", "soy"},
		},
		"curry": {
			Calories: 180, Protein: 6, Carbs: 12, Fat: 12, Fiber: 3, Sodium: 480, Sugar: 4,
			Category: CategoryCurry, GlycemicIndex: 45, HealthScore: 6.5,
			Allergens: []string{"coconut"},
		},
		"curry_dish": {
			Calories: 200, Protein: 10, Carbs: 12, Fat: 13, Fiber: 3, Sodium: 520, Sugar: 4,
			Category: CategoryCurry, GlycemicIndex: 45, HealthScore: 6.5,
			Allergens: []string{"coconut"},
		},
		"chicken_curry": {
			Calories: 245, Protein: 24, Carbs: 6, Fat: 14, Fiber: 1.5, Sodium: 560, Sugar: 3,
			Category: CategoryPoultry, GlycemicIndex: 30, HealthScore: 7.0,
			Allergens: []string{"coconut"},
		},
		"fish_curry": {
			Calories: 210, Protein: 22, Carbs: 5, Fat: 11, Fiber: 1, Sodium: 540, Sugar: 2,
			Category: CategoryFish, GlycemicIndex: 30, HealthScore: 7.5,
			Allergens: []string{"fish", "coconut"},
		},
		"dal_curry": {
			Calories: 165, Protein: 9, Carbs: 20, Fat: 6, Fiber: 7, Sodium: 380, Sugar: 2,
			Category: CategoryLegumes, GlycemicIndex: 32, HealthScore: 8.5,
			Allergens: []string{"coconut"},
		},
		"dal": {
			Calories: 150, Protein: 9, Carbs: 20, Fat: 4, Fiber: 8, Sodium: 300, Sugar: 2,
			Category: CategoryLegumes, GlycemicIndex: 30, HealthScore: 8.5,
		},
		"kottu": {
			Calories: 520, Protein: 18, Carbs: 62, Fat: 22, Fiber: 3, Sodium: 980, Sugar: 4,
			Category: CategoryMixed, GlycemicIndex: 68, HealthScore: 4.0,
			Allergens: []string{"gluten", "egg"},
		},
		"roti": {
			Calories: 210, Protein: 5, Carbs: 30, Fat: 8, Fiber: 2, Sodium: 250, Sugar: 1,
			Category: CategoryGrains, GlycemicIndex: 62, HealthScore: 5.5,
			Allergens: []string{"gluten", "coconut"},
		},
		"hoppers": {
			Calories: 120, Protein: 2.5, Carbs: 22, Fat: 2.5, Fiber: 0.8, Sodium: 120, Sugar: 2,
			Category: CategoryGrains, GlycemicIndex: 70, HealthScore: 5.5,
			Allergens: []string{"coconut"},
		},
		"string_hoppers": {
			Calories: 180, Protein: 3.5, Carbs: 39, Fat: 0.6, Fiber: 1.2, Sodium: 90, Sugar: 0.3,
			Category: CategoryGrains, GlycemicIndex: 65, HealthScore: 6.0,
		},
		"sambol": {
			Calories: 90, Protein: 1, Carbs: 4, Fat: 8, Fiber: 2.5, Sodium: 310, Sugar: 1.5,
			Category: CategoryCondiment, GlycemicIndex: 35, HealthScore: 6.0,
			Allergens: []string{"coconut", "fish"},
		},
		"chicken": {
			Calories: 230, Protein: 27, Carbs: 0, Fat: 13, Fiber: 0, Sodium: 400, Sugar: 0,
			Category: CategoryPoultry, GlycemicIndex: 0, HealthScore: 7.5,
		},
		"fish": {
			Calories: 190, Protein: 25, Carbs: 0, Fat: 9, Fiber: 0, Sodium: 350, Sugar: 0,
			Category: CategoryFish, GlycemicIndex: 0, HealthScore: 8.5,
			Allergens: []string{"fish"},
		},
		"beef": {
			Calories: 270, Protein: 26, Carbs: 0, Fat: 18, Fiber: 0, Sodium: 380, Sugar: 0,
			Category: CategoryMeat, GlycemicIndex: 0, HealthScore: 5.5,
		},
		"prawns": {
			Calories: 140, Protein: 24, Carbs: 1, Fat: 4, Fiber: 0, Sodium: 560, Sugar: 0,
			Category: CategorySeafood, GlycemicIndex: 0, HealthScore: 7.5,
			Allergens: []string{"shellfish"},
		},
		"egg": {
			Calories: 78, Protein: 6.3, Carbs: 0.6, Fat: 5.3, Fiber: 0, Sodium: 62, Sugar: 0.6,
			Category: CategoryEgg, GlycemicIndex: 0, HealthScore: 7.5,
			Allergens: []string{"egg"},
		},
		"curd": {
			Calories: 150, Protein: 8, Carbs: 11, Fat: 8, Fiber: 0, Sodium: 110, Sugar: 11,
			Category: CategoryDairy, GlycemicIndex: 35, HealthScore: 7.0,
			Allergens: []string{"dairy", "milk"},
		},
		"vegetables": {
			Calories: 80, Protein: 3, Carbs: 12, Fat: 2.5, Fiber: 5, Sodium: 180, Sugar: 5,
			Category: CategoryVegetables, GlycemicIndex: 30, HealthScore: 9.0,
		},
		"vegetable_curry": {
			Calories: 140, Protein: 4, Carbs: 14, Fat: 8, Fiber: 5, Sodium: 360, Sugar: 5,
			Category: CategoryVegetables, GlycemicIndex: 35, HealthScore: 8.5,
			Allergens: []string{"coconut"},
		},
		"salad": {
			Calories: 60, Protein: 2, Carbs: 8, Fat: 2.5, Fiber: 3.5, Sodium: 120, Sugar: 4,
			Category: CategoryVegetables, GlycemicIndex: 15, HealthScore: 9.5,
		},
		"bread": {
			Calories: 160, Protein: 5.5, Carbs: 30, Fat: 2, Fiber: 1.6, Sodium: 300, Sugar: 3,
			Category: CategoryGrains, GlycemicIndex: 75, HealthScore: 5.0,
			Allergens: []string{"gluten"},
		},
		"noodles": {
			Calories: 220, Protein: 7, Carbs: 40, Fat: 3.5, Fiber: 2, Sodium: 420, Sugar: 1,
			Category: CategoryGrains, GlycemicIndex: 55, HealthScore: 5.0,
			Allergens: []string{"gluten"},
		},
		"rice_and_curry": {
			Calories: 550, Protein: 18, Carbs: 80, Fat: 16, Fiber: 8, Sodium: 900, Sugar: 7,
			Category: CategoryMixed, GlycemicIndex: 60, HealthScore: 7.0,
			Allergens: []string{"coconut"},
		},
		"plated_meal": {
			Calories: 450, Protein: 15, Carbs: 60, Fat: 15, Fiber: 5, Sodium: 700, Sugar: 6,
			Category: CategoryMixed, GlycemicIndex: 55, HealthScore: 6.5,
		},
		"mixed_dish": {
			Calories: 300, Protein: 12, Carbs: 35, Fat: 12, Fiber: 4, Sodium: 600, Sugar: 5,
			Category: CategoryMixed, GlycemicIndex: 55, HealthScore: 6.0,
		},
	}
}
