package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRuntimeStoreSeedsDefaultsAndPersists(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.json")

	cfg := defaultConfig()
	store, err := NewRuntimeStore(path, &cfg)
	require.NoError(t, err)

	snap := store.Snapshot()
	assert.Equal(t, BackendGeminiBridge, snap.Sonnet.Provider)
	assert.Equal(t, BackendAnthropic, snap.Opus.Provider)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var onDisk RuntimeConfig
	require.NoError(t, json.Unmarshal(data, &onDisk))
	assert.Equal(t, snap.Sonnet, onDisk.Sonnet)
}

func TestRuntimeStoreUpdateIsAtomicAndPersisted(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.json")
	cfg := defaultConfig()
	store, err := NewRuntimeStore(path, &cfg)
	require.NoError(t, err)

	_, err = store.Update(func(rc *RuntimeConfig) {
		rc.Opus = TierRoute{Provider: BackendOpenRouter, Model: "anthropic/claude-opus-4.5"}
	})
	require.NoError(t, err)

	reloaded, err := NewRuntimeStore(path, &cfg)
	require.NoError(t, err)
	assert.Equal(t, BackendOpenRouter, reloaded.RouteFor(TierOpus).Provider)
}

func TestRuntimeStoreConcurrentUpdatesDoNotRace(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.json")
	cfg := defaultConfig()
	store, err := NewRuntimeStore(path, &cfg)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			store.Update(func(rc *RuntimeConfig) {
				rc.Haiku.Model = "model-x"
			})
			_ = store.RouteFor(TierHaiku)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, "model-x", store.RouteFor(TierHaiku).Model)
}
