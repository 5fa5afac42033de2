package catalog

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/nvr-ai/go-nutrition/common"
	"github.com/nvr-ai/go-nutrition/logging"
	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// remoteEntry caches both hits and misses.
type remoteEntry struct {
	record common.NutritionRecord
	found  bool
}

// Remote looks foods up against a food-database parser API that answers
// GET {base}?ingr=<name>&app_id=..&app_key=.. with per-100 g nutrients
// (ENERC_KCAL, PROCNT, CHOCDF, FAT, FIBTG, NA, SUGAR).
type Remote struct {
	baseURL string
	appID   string
	appKey  string
	client  *http.Client
	logger  *zap.Logger

	mu    sync.RWMutex
	cache map[string]remoteEntry
}

// NewRemote creates a remote catalog tier.
//
// Arguments:
//   - baseURL: The parser endpoint, e.g. https://api.edamam.com/api/food-database/v2/parser.
//   - appID, appKey: API credentials.
//   - timeout: HTTP client timeout (10s when zero).
//   - logger: Optional logger.
func NewRemote(baseURL, appID, appKey string, timeout time.Duration, logger *zap.Logger) *Remote {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Remote{
		baseURL: baseURL,
		appID:   appID,
		appKey:  appKey,
		client:  &http.Client{Timeout: timeout},
		logger:  logging.Component(logger, "catalog.remote"),
		cache:   make(map[string]remoteEntry),
	}
}

// Lookup implements Catalog. Results, including misses, are cached for the
// lifetime of the process.
func (r *Remote) Lookup(ctx context.Context, key string) (common.NutritionRecord, bool, error) {
	if r == nil || r.baseURL == "" {
		return common.NutritionRecord{}, false, ErrNotConfigured
	}
	key = NormalizeKey(key)

	r.mu.RLock()
	entry, cached := r.cache[key]
	r.mu.RUnlock()
	if cached {
		return entry.record, entry.found, nil
	}

	body, err := r.fetch(ctx, strings.ReplaceAll(key, "_", " "))
	if err != nil {
		return common.NutritionRecord{}, false, err
	}

	rec, found := parseParserResponse(key, body)

	r.mu.Lock()
	r.cache[key] = remoteEntry{record: rec, found: found}
	r.mu.Unlock()

	r.logger.Debug("remote lookup", zap.String("key", key), zap.Bool("found", found))
	return rec, found, nil
}

// Keys implements Catalog with the keys of cached hits; the remote key space
// itself can't be enumerated.
func (r *Remote) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.cache))
	for k, e := range r.cache {
		if e.found {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

func (r *Remote) fetch(ctx context.Context, ingredient string) ([]byte, error) {
	q := url.Values{}
	q.Set("ingr", ingredient)
	q.Set("app_id", r.appID)
	q.Set("app_key", r.appKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "build parser request")
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "call parser")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read parser response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("parser API error %d: %s", resp.StatusCode, truncate(string(body), 200))
	}
	return body, nil
}

// parseParserResponse reads the first parsed food, falling back to the first
// hint, and converts its nutrient map into a record.
func parseParserResponse(key string, body []byte) (common.NutritionRecord, bool) {
	food := gjson.GetBytes(body, "parsed.0.food")
	if !food.Exists() {
		food = gjson.GetBytes(body, "hints.0.food")
	}
	if !food.Exists() {
		return common.NutritionRecord{}, false
	}

	n := food.Get("nutrients")
	rec := common.NutritionRecord{
		Calories:      n.Get("ENERC_KCAL").Float(),
		Protein:       n.Get("PROCNT").Float(),
		Carbs:         n.Get("CHOCDF").Float(),
		Fat:           n.Get("FAT").Float(),
		Fiber:         n.Get("FIBTG").Float(),
		Sodium:        n.Get("NA").Float(),
		Sugar:         n.Get("SUGAR").Float(),
		Category:      InferCategory(food.Get("label").String() + " " + key),
		GlycemicIndex: DefaultGlycemicIndex,
		HealthScore:   DefaultHealthScore,
	}
	return rec, rec.Calories > 0
}

// categoryKeywords is checked in order; the first hit wins.
var categoryKeywords = []struct {
	keyword  string
	category string
}{
	{"chicken", CategoryPoultry},
	{"turkey", CategoryPoultry},
	{"fish", CategoryFish},
	{"tuna", CategoryFish},
	{"salmon", CategoryFish},
	{"prawn", CategorySeafood},
	{"shrimp", CategorySeafood},
	{"crab", CategorySeafood},
	{"beef", CategoryMeat},
	{"pork", CategoryMeat},
	{"mutton", CategoryMeat},
	{"lamb", CategoryMeat},
	{"milk", CategoryDairy},
	{"cheese", CategoryDairy},
	{"yogurt", CategoryDairy},
	{"curd", CategoryDairy},
	{"egg", CategoryEgg},
	{"lentil", CategoryLegumes},
	{"dal", CategoryLegumes},
	{"bean", CategoryLegumes},
	{"rice", CategoryGrains},
	{"bread", CategoryGrains},
	{"roti", CategoryGrains},
	{"noodle", CategoryGrains},
	{"salad", CategoryVegetables},
	{"vegetable", CategoryVegetables},
	{"curry", CategoryCurry},
}

// InferCategory guesses a record category from a food label.
func InferCategory(label string) string {
	label = strings.ToLower(label)
	for _, kw := range categoryKeywords {
		if strings.Contains(label, kw.keyword) {
			return kw.category
		}
	}
	return CategoryGeneral
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
