// Package fusion - Merges detector outcomes into validated foods: candidates
// are flattened in method-trust order, filtered by the confidence floor and
// resolved to nutrition records through an ordered resolver chain.
package fusion

import (
	"context"
	"sort"

	"github.com/nvr-ai/go-nutrition/catalog"
	"github.com/nvr-ai/go-nutrition/common"
	"github.com/nvr-ai/go-nutrition/detector"
	"github.com/nvr-ai/go-nutrition/logging"
	"github.com/nvr-ai/go-nutrition/portion"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ConfidenceFloor is the minimum confidence a candidate needs to survive.
const ConfidenceFloor = 0.3

// methodOrder is the flattening order of detector outcomes.
var methodOrder = map[common.Method]int{
	common.MethodDelegate:    0,
	common.MethodHeuristicCV: 1,
	common.MethodTextKeyword: 2,
	common.MethodPattern:     3,
}

// Fuser validates candidates and resolves them to foods.
type Fuser struct {
	resolvers []Resolver
	floor     float64
	logger    *zap.Logger
}

// New creates a Fuser.
//
// Arguments:
// - floor: The minimum confidence kept; ConfidenceFloor when not positive.
// - resolvers: The ordered resolver chain; a DefaultResolver is appended if
// the chain does not already end with one.
// - logger: Logger for resolution failures; nil disables logging.
//
// Returns:
// - *Fuser: The fuser.
func New(floor float64, resolvers []Resolver, logger *zap.Logger) *Fuser {
	if floor <= 0 {
		floor = ConfidenceFloor
	}
	chain := append([]Resolver(nil), resolvers...)
	if len(chain) == 0 {
		chain = append(chain, DefaultResolver{})
	} else if _, ok := chain[len(chain)-1].(DefaultResolver); !ok {
		chain = append(chain, DefaultResolver{})
	}
	return &Fuser{
		resolvers: chain,
		floor:     floor,
		logger:    logging.Component(logger, "fusion"),
	}
}

// Fuse flattens the outcomes, drops candidates below the confidence floor and
// builds one DetectedFood per survivor. Candidates naming the same food from
// different detectors are all kept.
//
// Arguments:
// - ctx: Bounds remote resolution.
// - outcomes: One outcome per detector, in any order.
//
// Returns:
// - []common.DetectedFood: The validated foods; never nil.
func (f *Fuser) Fuse(ctx context.Context, outcomes []detector.Outcome) []common.DetectedFood {
	ordered := append([]detector.Outcome(nil), outcomes...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return rank(ordered[i].Method) < rank(ordered[j].Method)
	})

	foods := make([]common.DetectedFood, 0)
	dropped := 0
	for _, o := range ordered {
		for _, c := range o.Candidates {
			if c.Confidence < f.floor || c.Name == "" {
				dropped++
				continue
			}
			foods = append(foods, f.build(ctx, c, o.Method))
		}
	}

	f.logger.Debug("fused candidates",
		zap.Int("foods", len(foods)),
		zap.Int("dropped", dropped))
	return foods
}

func rank(m common.Method) int {
	if r, ok := methodOrder[m]; ok {
		return r
	}
	return len(methodOrder)
}

func (f *Fuser) build(ctx context.Context, c common.Candidate, method common.Method) common.DetectedFood {
	if c.Method == "" {
		c.Method = method
	}
	rec, key := f.Resolve(ctx, c.Name)

	food := common.DetectedFood{
		Name:            c.Name,
		Confidence:      c.Confidence,
		Nutrition:       rec,
		DetectionMethod: c.Method,
		FoodCategory:    rec.Category,
		GlycemicIndex:   rec.GlycemicIndex,
		HealthScore:     rec.HealthScore,
		MatchedKey:      key,
	}
	if food.FoodCategory == "" {
		food.FoodCategory = catalog.CategoryGeneral
	}
	if food.GlycemicIndex <= 0 {
		food.GlycemicIndex = catalog.DefaultGlycemicIndex
	}
	if food.HealthScore <= 0 {
		food.HealthScore = catalog.DefaultHealthScore
	}
	if c.BBox != nil {
		box := *c.BBox
		food.BBox = &box
	}
	if size, ok := common.ParsePortionSize(catalog.NormalizeKey(c.PortionHint)); ok {
		food = food.WithPortion(portion.Explicit(c.Name, size))
	}
	return food
}

// Resolve runs the resolver chain. Resolver errors and panics are logged and
// the chain moves on; the chain always ends in the default record.
//
// Arguments:
// - ctx: Bounds remote resolution.
// - name: The food name.
//
// Returns:
// - common.NutritionRecord: The resolved record.
// - string: The catalog key it matched, "" for the default record.
func (f *Fuser) Resolve(ctx context.Context, name string) (common.NutritionRecord, string) {
	for _, r := range f.resolvers {
		rec, key, ok, err := safeResolve(ctx, r, name)
		if err != nil {
			f.logger.Warn("resolver failed",
				zap.String("resolver", r.Name()),
				zap.String("food", name),
				zap.Error(err))
			continue
		}
		if ok {
			f.logger.Debug("resolved food",
				zap.String("resolver", r.Name()),
				zap.String("food", name),
				zap.String("key", key))
			return rec, key
		}
	}
	return catalog.DefaultRecord(), ""
}

func safeResolve(ctx context.Context, r Resolver, name string) (rec common.NutritionRecord, key string, ok bool, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = errors.Errorf("resolver panic: %v", p)
		}
	}()
	return r.Resolve(ctx, name)
}
