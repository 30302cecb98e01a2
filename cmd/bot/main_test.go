package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"EtfSentinel/internal/cache"
	"EtfSentinel/internal/collector"
	"EtfSentinel/internal/importer"
	"EtfSentinel/internal/model"
	"EtfSentinel/internal/tracker"
)

func newTracker(store cache.Cache) *tracker.Manager {
	col := collector.NewCollector(map[model.DataSource]collector.Fetcher{
		model.SourceBorsaItaliana: &collector.MockFetcher{Price: 100},
	}, store, zerolog.Nop())
	return tracker.NewManager(store, col, zerolog.Nop())
}

func TestImportPortfolio(t *testing.T) {
	path := filepath.Join(t.TempDir(), "portfolio.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: Seed
targetAssetClassAllocation: {stocks: 100}
targetCountryAllocation: {US: 100}
maxDrift: 5
etfs:
  IE00B4L5Y983:
    name: World
    assetClass: {name: World, category: stocks}
`), 0o644))

	store := cache.NewMemoryCache()
	tm := newTracker(store)
	require.NoError(t, importPortfolio(tm, path))
	require.NotNil(t, tm.Portfolio())
	assert.Equal(t, "Seed", tm.Portfolio().Name)

	// a restarted process restores it from the cache instead of re-importing
	restored := newTracker(store)
	ok, err := restored.Load()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, tm.Portfolio().ID, restored.Portfolio().ID)
}

func TestImportPortfolio_Errors(t *testing.T) {
	tm := newTracker(cache.NewMemoryCache())
	assert.Error(t, importPortfolio(tm, filepath.Join(t.TempDir(), "missing.yaml")))

	empty := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	assert.ErrorIs(t, importPortfolio(tm, empty), importer.ErrEmptyDocument)
	assert.Nil(t, tm.Portfolio())
}
