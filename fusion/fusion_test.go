package fusion

import (
	"context"
	"testing"

	"github.com/nvr-ai/go-nutrition/catalog"
	"github.com/nvr-ai/go-nutrition/common"
	"github.com/nvr-ai/go-nutrition/detector"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockCatalog is a mock implementation of catalog.Catalog.
type MockCatalog struct {
	records     map[string]common.NutritionRecord
	shouldError bool
	shouldPanic bool
	lookups     []string
}

func (m *MockCatalog) Lookup(_ context.Context, key string) (common.NutritionRecord, bool, error) {
	m.lookups = append(m.lookups, key)
	if m.shouldPanic {
		panic("catalog exploded")
	}
	if m.shouldError {
		return common.NutritionRecord{}, false, errors.New("mock catalog error")
	}
	rec, ok := m.records[key]
	return rec, ok, nil
}

func (m *MockCatalog) Keys() []string {
	keys := make([]string, 0, len(m.records))
	for k := range m.records {
		keys = append(keys, k)
	}
	return keys
}

func outcome(method common.Method, weight float64, candidates ...common.Candidate) detector.Outcome {
	for i := range candidates {
		candidates[i].Method = method
	}
	return detector.Outcome{Method: method, Weight: weight, Candidates: candidates}
}

func TestBestSubstringKey(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		keys     []string
		expected string
	}{
		{"longest contained key", "spicy_chicken_curry", []string{"chicken", "curry", "chicken_curry"}, "chicken_curry"},
		{"key contains name", "hopper", []string{"hoppers", "string_hoppers"}, "string_hoppers"},
		{"lexicographic tie", "fish_and_rice", []string{"rice", "fish"}, "fish"},
		{"no match", "pizza", []string{"rice", "curry"}, ""},
		{"empty keys skipped", "rice", []string{""}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, BestSubstringKey(tt.key, tt.keys))
		})
	}
}

func TestResolveChain(t *testing.T) {
	f := New(0, Chain(catalog.NewDefault(), nil), nil)
	ctx := context.Background()

	tests := []struct {
		name     string
		food     string
		key      string
		category string
	}{
		{"exact", "Chicken Curry", "chicken_curry", catalog.CategoryPoultry},
		{"exact hyphenated", "string-hoppers", "string_hoppers", ""},
		{"substring", "Yellow Dal Curry Bowl", "dal_curry", ""},
		{"default", "pizza", "", catalog.CategoryGeneral},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, key := f.Resolve(ctx, tt.food)
			assert.Equal(t, tt.key, key)
			if tt.category != "" {
				assert.Equal(t, tt.category, rec.Category)
			}
			assert.Greater(t, rec.Calories, 0.0)
		})
	}
}

func TestResolveIsTotal(t *testing.T) {
	failing := &MockCatalog{shouldError: true}
	panicking := &MockCatalog{shouldPanic: true}
	f := New(0, []Resolver{
		ExactResolver{Catalog: failing},
		SubstringResolver{Catalog: panicking},
		RemoteResolver{Catalog: failing},
	}, nil)

	for _, name := range []string{"rice", "", "!!!", "unknown food"} {
		rec, key := f.Resolve(context.Background(), name)
		assert.Equal(t, catalog.DefaultRecord(), rec, name)
		assert.Empty(t, key)
	}
}

func TestRemoteResolverInChain(t *testing.T) {
	remote := &MockCatalog{records: map[string]common.NutritionRecord{
		"jackfruit_curry": {Calories: 210, Category: catalog.CategoryCurry},
	}}
	f := New(0, Chain(catalog.NewMemory(map[string]common.NutritionRecord{
		"rice": {Calories: 205},
	}), remote), nil)

	rec, key := f.Resolve(context.Background(), "Jackfruit Curry")
	assert.Equal(t, "jackfruit_curry", key)
	assert.Equal(t, 210.0, rec.Calories)

	// local hits never reach the remote tier
	remote.lookups = nil
	_, key = f.Resolve(context.Background(), "rice")
	assert.Equal(t, "rice", key)
	assert.Empty(t, remote.lookups)

	// remote failures fall through to the default record
	remote.shouldError = true
	rec, key = f.Resolve(context.Background(), "breadfruit")
	assert.Empty(t, key)
	assert.Equal(t, catalog.DefaultRecord(), rec)
}

func TestChainOrder(t *testing.T) {
	chain := Chain(catalog.NewDefault(), nil)
	names := make([]string, len(chain))
	for i, r := range chain {
		names[i] = r.Name()
	}
	assert.Equal(t, []string{"exact", "substring", "default"}, names)

	chain = Chain(catalog.NewDefault(), &MockCatalog{})
	assert.Equal(t, "remote", chain[2].Name())
	assert.Equal(t, "default", chain[3].Name())
}

func TestFuseScenarioB(t *testing.T) {
	f := New(0, Chain(catalog.NewDefault(), nil), nil)

	outcomes := []detector.Outcome{
		outcome(common.MethodTextKeyword, detector.WeightKeyword, common.Candidate{Name: "curry", Confidence: 0.4}),
		outcome(common.MethodHeuristicCV, detector.WeightHeuristic, common.Candidate{Name: "rice", Confidence: 0.5}),
		outcome(common.MethodDelegate, detector.WeightDelegate, common.Candidate{Name: "rice", Confidence: 0.9}),
	}

	foods := f.Fuse(context.Background(), outcomes)
	require.Len(t, foods, 3)

	assert.Equal(t, "rice", foods[0].Name)
	assert.Equal(t, common.MethodDelegate, foods[0].DetectionMethod)
	assert.Equal(t, 0.9, foods[0].Confidence)
	assert.Equal(t, "rice", foods[1].Name)
	assert.Equal(t, common.MethodHeuristicCV, foods[1].DetectionMethod)
	assert.Equal(t, "curry", foods[2].Name)
	assert.Equal(t, common.MethodTextKeyword, foods[2].DetectionMethod)

	for _, food := range foods {
		assert.GreaterOrEqual(t, food.Confidence, ConfidenceFloor)
		assert.NotZero(t, food.Nutrition.Calories)
		assert.Equal(t, food.Name, food.MatchedKey)
		assert.NotEmpty(t, food.FoodCategory)
	}
}

func TestFuseScenarioC(t *testing.T) {
	f := New(0, Chain(catalog.NewDefault(), nil), nil)

	outcomes := []detector.Outcome{
		outcome(common.MethodDelegate, detector.WeightDelegate, common.Candidate{Name: "rice", Confidence: 0.29}),
		outcome(common.MethodPattern, detector.WeightPattern, common.Candidate{Name: "plated_meal", Confidence: 0.1}),
		outcome(common.MethodHeuristicCV, 0),
	}

	foods := f.Fuse(context.Background(), outcomes)
	assert.NotNil(t, foods)
	assert.Empty(t, foods)
}

func TestFuseFloorBoundary(t *testing.T) {
	f := New(0, nil, nil)
	foods := f.Fuse(context.Background(), []detector.Outcome{
		outcome(common.MethodPattern, detector.WeightPattern,
			common.Candidate{Name: "plated_meal", Confidence: 0.3},
			common.Candidate{Name: "", Confidence: 0.9}),
	})
	require.Len(t, foods, 1)
	assert.Equal(t, catalog.DefaultRecord(), foods[0].Nutrition)
}

func TestFuseDefaultsAndHints(t *testing.T) {
	c := &MockCatalog{records: map[string]common.NutritionRecord{
		"mystery": {Calories: 100},
	}}
	f := New(0, []Resolver{ExactResolver{Catalog: c}}, nil)

	box := &common.BoundingBox{X1: 1, Y1: 2, X2: 30, Y2: 40}
	foods := f.Fuse(context.Background(), []detector.Outcome{
		outcome(common.MethodDelegate, detector.WeightDelegate,
			common.Candidate{Name: "mystery", Confidence: 0.8, PortionHint: "Large", BBox: box}),
	})
	require.Len(t, foods, 1)
	food := foods[0]

	assert.Equal(t, catalog.CategoryGeneral, food.FoodCategory)
	assert.Equal(t, catalog.DefaultGlycemicIndex, food.GlycemicIndex)
	assert.Equal(t, catalog.DefaultHealthScore, food.HealthScore)

	assert.Equal(t, common.MethodExplicit, food.EstimatedPortion.Method)
	assert.Equal(t, common.PortionLarge, food.EstimatedPortion.Size)
	assert.Equal(t, 200.0, food.EstimatedPortion.Grams)
	assert.Equal(t, food.EstimatedPortion.Confidence, food.PortionAccuracy)

	require.NotNil(t, food.BBox)
	assert.Equal(t, *box, *food.BBox)
	box.X1 = 99
	assert.Equal(t, 1.0, food.BBox.X1)
}

func TestFuseUnparsableHintLeavesPortionEmpty(t *testing.T) {
	f := New(0, nil, nil)
	foods := f.Fuse(context.Background(), []detector.Outcome{
		outcome(common.MethodDelegate, detector.WeightDelegate,
			common.Candidate{Name: "rice", Confidence: 0.8, PortionHint: "a few spoonfuls"}),
	})
	require.Len(t, foods, 1)
	assert.True(t, foods[0].EstimatedPortion.IsZero())
}
