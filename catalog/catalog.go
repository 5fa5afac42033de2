// Package catalog - Nutrition record lookup: a built-in in-memory table of
// per-serving records, optional JSON overrides and a remote parser-API tier.
package catalog

import (
	"context"
	"encoding/json"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/nvr-ai/go-nutrition/common"
	"github.com/pkg/errors"
)

// ErrNotConfigured is returned by tiers that have no backing service.
var ErrNotConfigured = errors.New("catalog tier not configured")

// Catalog resolves normalized food names to nutrition records.
type Catalog interface {
	// Lookup returns the record stored under key. A miss is (zero, false, nil).
	Lookup(ctx context.Context, key string) (common.NutritionRecord, bool, error)
	// Keys returns every key in a stable, sorted order.
	Keys() []string
}

// NormalizeKey lower-cases a food name and joins words with underscores so
// that "Fried Rice", "fried-rice" and "fried_rice" share one key.
func NormalizeKey(name string) string {
	fields := strings.FieldsFunc(strings.ToLower(strings.TrimSpace(name)), func(r rune) bool {
		return r == ' ' || r == '-' || r == '_' || r == '\t'
	})
	return strings.Join(fields, "_")
}

// Memory is a thread-safe in-memory catalog.
type Memory struct {
	mu      sync.RWMutex
	records map[string]common.NutritionRecord
	keys    []string
}

// NewMemory builds a catalog from the given records, normalizing keys.
func NewMemory(records map[string]common.NutritionRecord) *Memory {
	m := &Memory{records: make(map[string]common.NutritionRecord, len(records))}
	for k, v := range records {
		m.records[NormalizeKey(k)] = v
	}
	m.reindex()
	return m
}

// NewDefault builds a catalog holding DefaultRecords.
func NewDefault() *Memory {
	return NewMemory(DefaultRecords())
}

func (m *Memory) reindex() {
	m.keys = m.keys[:0]
	for k := range m.records {
		m.keys = append(m.keys, k)
	}
	sort.Strings(m.keys)
}

// Lookup implements Catalog.
func (m *Memory) Lookup(_ context.Context, key string) (common.NutritionRecord, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[NormalizeKey(key)]
	return rec, ok, nil
}

// Keys implements Catalog.
func (m *Memory) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Put adds or replaces one record.
func (m *Memory) Put(key string, rec common.NutritionRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[NormalizeKey(key)] = rec
	m.reindex()
}

// Len returns the number of records.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

// LoadJSON merges records from a JSON object of name -> record into the
// catalog, replacing entries with the same normalized key.
//
// Arguments:
//   - path: Path to a JSON file such as {"pol_sambol": {"calories": 90, ...}}.
//
// Returns:
//   - int: The number of records merged.
//   - error: An error if the file can't be read or parsed.
func (m *Memory) LoadJSON(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, errors.Wrapf(err, "read catalog %s", path)
	}

	var records map[string]common.NutritionRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return 0, errors.Wrapf(err, "parse catalog %s", path)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range records {
		m.records[NormalizeKey(k)] = v
	}
	m.reindex()
	return len(records), nil
}
