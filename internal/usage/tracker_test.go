package usage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestTrackerRecordAccumulatesTotals(t *testing.T) {
	path := filepath.Join(t.TempDir(), "usage.json")
	tr := NewTracker(path, zap.NewNop())

	tr.Record(100, 50, "anthropic", "claude-sonnet-4-5-20250929", "sonnet")
	tr.Record(20, 10, "glm", "glm-4.7", "haiku")

	stats := tr.Stats()
	assert.EqualValues(t, 2, stats.TotalRequests)
	assert.EqualValues(t, 120, stats.TotalInputTokens)
	assert.EqualValues(t, 60, stats.TotalOutputTokens)

	assert.EqualValues(t, 1, stats.ByProvider["anthropic"].Requests)
	assert.EqualValues(t, 100, stats.ByProvider["anthropic"].InputTokens)
	assert.EqualValues(t, 1, stats.ByTier["haiku"].Requests)
	assert.EqualValues(t, 20, stats.ByModel["glm-4.7"].InputTokens)
	require.Len(t, stats.History, 2)
	assert.Equal(t, "anthropic", stats.History[0].Provider)
}

func TestTrackerHistoryIsBoundedToLast100(t *testing.T) {
	path := filepath.Join(t.TempDir(), "usage.json")
	tr := NewTracker(path, zap.NewNop())

	for i := 0; i < 150; i++ {
		tr.Record(1, 1, "anthropic", "claude-haiku-4-5", "haiku")
	}

	stats := tr.Stats()
	assert.EqualValues(t, 150, stats.TotalRequests)
	assert.Len(t, stats.History, historyLimit)
}

func TestTrackerPersistsAndReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "usage.json")
	tr := NewTracker(path, zap.NewNop())
	tr.Record(5, 5, "anthropic", "claude-opus-4-5", "opus")

	reloaded := NewTracker(path, zap.NewNop())
	stats := reloaded.Stats()
	assert.EqualValues(t, 1, stats.TotalRequests)
	assert.EqualValues(t, 5, stats.ByTier["opus"].InputTokens)
}

func TestTrackerResetZeroesStatsAndPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "usage.json")
	tr := NewTracker(path, zap.NewNop())
	tr.Record(5, 5, "anthropic", "claude-opus-4-5", "opus")

	require.NoError(t, tr.Reset())
	stats := tr.Stats()
	assert.Zero(t, stats.TotalRequests)
	assert.Empty(t, stats.ByProvider)
	assert.Empty(t, stats.History)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var onDisk Stats
	require.NoError(t, json.Unmarshal(raw, &onDisk))
	assert.Zero(t, onDisk.TotalRequests)
}

func TestTrackerCorruptFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "usage.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	tr := NewTracker(path, zap.NewNop())
	stats := tr.Stats()
	assert.Zero(t, stats.TotalRequests)
}
