package fusion

import (
	"context"
	"strings"

	"github.com/nvr-ai/go-nutrition/catalog"
	"github.com/nvr-ai/go-nutrition/common"
)

// Resolver maps a detected food name onto a nutrition record.
type Resolver interface {
	// Name identifies the resolver in logs.
	Name() string
	// Resolve returns the record and the catalog key it was found under. A
	// miss is (zero, "", false, nil).
	Resolve(ctx context.Context, name string) (common.NutritionRecord, string, bool, error)
}

// ExactResolver matches the normalized name against catalog keys.
type ExactResolver struct {
	Catalog catalog.Catalog
}

// Name implements Resolver.
func (r ExactResolver) Name() string { return "exact" }

// Resolve implements Resolver.
func (r ExactResolver) Resolve(ctx context.Context, name string) (common.NutritionRecord, string, bool, error) {
	key := catalog.NormalizeKey(name)
	if key == "" || r.Catalog == nil {
		return common.NutritionRecord{}, "", false, nil
	}
	rec, ok, err := r.Catalog.Lookup(ctx, key)
	if err != nil || !ok {
		return common.NutritionRecord{}, "", false, err
	}
	return rec, key, true, nil
}

// SubstringResolver matches catalog keys that are contained in the name or
// contain it. The longest matching key wins; equal lengths resolve
// lexicographically.
type SubstringResolver struct {
	Catalog catalog.Catalog
}

// Name implements Resolver.
func (r SubstringResolver) Name() string { return "substring" }

// Resolve implements Resolver.
func (r SubstringResolver) Resolve(ctx context.Context, name string) (common.NutritionRecord, string, bool, error) {
	key := catalog.NormalizeKey(name)
	if key == "" || r.Catalog == nil {
		return common.NutritionRecord{}, "", false, nil
	}

	best := BestSubstringKey(key, r.Catalog.Keys())
	if best == "" {
		return common.NutritionRecord{}, "", false, nil
	}
	rec, ok, err := r.Catalog.Lookup(ctx, best)
	if err != nil || !ok {
		return common.NutritionRecord{}, "", false, err
	}
	return rec, best, true, nil
}

// BestSubstringKey picks the longest candidate key that is a substring of key
// or contains it, breaking ties lexicographically. It returns "" when nothing
// matches.
//
// @example
//
//	BestSubstringKey("spicy_chicken_curry", []string{"chicken", "curry", "chicken_curry"}) // "chicken_curry"
func BestSubstringKey(key string, candidates []string) string {
	best := ""
	for _, k := range candidates {
		if k == "" || !(strings.Contains(key, k) || strings.Contains(k, key)) {
			continue
		}
		if len(k) > len(best) || (len(k) == len(best) && k < best) {
			best = k
		}
	}
	return best
}

// RemoteResolver looks the normalized name up in a remote catalog tier.
type RemoteResolver struct {
	Catalog catalog.Catalog
}

// Name implements Resolver.
func (r RemoteResolver) Name() string { return "remote" }

// Resolve implements Resolver.
func (r RemoteResolver) Resolve(ctx context.Context, name string) (common.NutritionRecord, string, bool, error) {
	key := catalog.NormalizeKey(name)
	if key == "" || r.Catalog == nil {
		return common.NutritionRecord{}, "", false, nil
	}
	rec, ok, err := r.Catalog.Lookup(ctx, key)
	if err != nil || !ok {
		return common.NutritionRecord{}, "", false, err
	}
	return rec, key, true, nil
}

// DefaultResolver always succeeds with the generic record.
type DefaultResolver struct{}

// Name implements Resolver.
func (DefaultResolver) Name() string { return "default" }

// Resolve implements Resolver.
func (DefaultResolver) Resolve(context.Context, string) (common.NutritionRecord, string, bool, error) {
	return catalog.DefaultRecord(), "", true, nil
}

// Chain builds the standard resolver order: exact, substring, the remote tier
// when one is given, then the default record.
//
// Arguments:
// - local: The in-process catalog.
// - remote: The remote tier, or nil.
//
// Returns:
// - []Resolver: The ordered chain.
func Chain(local, remote catalog.Catalog) []Resolver {
	chain := []Resolver{
		ExactResolver{Catalog: local},
		SubstringResolver{Catalog: local},
	}
	if remote != nil {
		chain = append(chain, RemoteResolver{Catalog: remote})
	}
	return append(chain, DefaultResolver{})
}
