package pipeline

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/nvr-ai/go-nutrition/config"
	"github.com/nvr-ai/go-nutrition/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServicePersistsResults(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Store.SQLitePath = filepath.Join(dir, "history.db")

	svc, err := NewService(context.Background(), cfg, nil)
	require.NoError(t, err)
	require.NotNil(t, svc.History)

	res := svc.Analyze(context.Background(), Request{Image: mealPNG(t), UserID: "u1", Text: "dal"})
	require.NoError(t, svc.Close(context.Background()))

	sink, err := store.Open(cfg.Store.SQLitePath)
	require.NoError(t, err)
	defer sink.Close()

	rec, err := sink.Get(context.Background(), res.AnalysisID)
	require.NoError(t, err)
	assert.Equal(t, "u1", rec.UserID)
	assert.Equal(t, res.Method, rec.Method)

	var doc AnalysisResult
	require.NoError(t, json.Unmarshal(rec.Document, &doc))
	assert.Equal(t, res.AnalysisID, doc.AnalysisID)
}

func TestServiceCatalogOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"pol_roti": {"calories": 190, "category": "grains"}}`), 0o600))

	cfg := config.DefaultConfig()
	cfg.Catalog.Path = path

	svc, err := NewService(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer svc.Close(context.Background())

	assert.Nil(t, svc.History)
	rec, key := svc.fuser.Resolve(context.Background(), "Pol Roti")
	assert.Equal(t, "pol_roti", key)
	assert.Equal(t, 190.0, rec.Calories)
}

func TestServiceBadConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Catalog.Path = filepath.Join(t.TempDir(), "missing.json")
	_, err := NewService(context.Background(), cfg, nil)
	assert.Error(t, err)

	cfg = config.DefaultConfig()
	cfg.Delegate.Backend = "carrier_pigeon"
	_, err = NewService(context.Background(), cfg, nil)
	assert.Error(t, err)
}
