// Package usage tracks token consumption across providers, models, and
// tiers, and persists it so counters survive a restart.
package usage

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

// historyLimit bounds the in-memory/on-disk request history (spec.md §4.6).
const historyLimit = 100

// Totals is a requests/input/output counter triple, used for the
// by-provider, by-model, and by-tier breakdowns.
type Totals struct {
	Requests     int64 `json:"requests"`
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

// Entry is one recorded request in the bounded history.
type Entry struct {
	Timestamp    time.Time `json:"timestamp"`
	InputTokens  int64     `json:"input_tokens"`
	OutputTokens int64     `json:"output_tokens"`
	Provider     string    `json:"provider"`
	Model        string    `json:"model"`
	Tier         string    `json:"tier"`
}

// Stats is the full persisted usage document, and also what GET
// /api/usage/stats returns verbatim.
type Stats struct {
	TotalRequests     int64             `json:"total_requests"`
	TotalInputTokens  int64             `json:"total_input_tokens"`
	TotalOutputTokens int64             `json:"total_output_tokens"`
	ByProvider        map[string]Totals `json:"by_provider"`
	ByModel           map[string]Totals `json:"by_model"`
	ByTier            map[string]Totals `json:"by_tier"`
	History           []Entry           `json:"history"`
}

func emptyStats() Stats {
	return Stats{
		ByProvider: map[string]Totals{},
		ByModel:    map[string]Totals{},
		ByTier:     map[string]Totals{},
		History:    []Entry{},
	}
}

// Tracker accumulates usage statistics in memory and persists them to a
// JSON file on every recorded request.
type Tracker struct {
	path   string
	logger *zap.Logger

	mu   sync.Mutex
	data Stats
}

// NewTracker loads a Tracker from path, starting from zeroed stats if the
// file is absent or unreadable.
func NewTracker(path string, logger *zap.Logger) *Tracker {
	t := &Tracker{path: path, logger: logger.With(zap.String("component", "usage")), data: emptyStats()}
	if raw, err := os.ReadFile(path); err == nil {
		var loaded Stats
		if err := json.Unmarshal(raw, &loaded); err != nil {
			t.logger.Warn("usage file corrupt, starting empty", zap.Error(err))
		} else {
			if loaded.ByProvider == nil {
				loaded.ByProvider = map[string]Totals{}
			}
			if loaded.ByModel == nil {
				loaded.ByModel = map[string]Totals{}
			}
			if loaded.ByTier == nil {
				loaded.ByTier = map[string]Totals{}
			}
			if loaded.History == nil {
				loaded.History = []Entry{}
			}
			t.data = loaded
		}
	}
	return t
}

// Record adds one request's token usage to the totals, the per-provider /
// per-model / per-tier breakdowns, and the bounded history, then persists.
func (t *Tracker) Record(inputTokens, outputTokens int64, provider, model, tier string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.data.TotalRequests++
	t.data.TotalInputTokens += inputTokens
	t.data.TotalOutputTokens += outputTokens

	addTo(t.data.ByProvider, provider, inputTokens, outputTokens)
	addTo(t.data.ByModel, model, inputTokens, outputTokens)
	addTo(t.data.ByTier, tier, inputTokens, outputTokens)

	t.data.History = append(t.data.History, Entry{
		Timestamp:    time.Now(),
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		Provider:     provider,
		Model:        model,
		Tier:         tier,
	})
	if len(t.data.History) > historyLimit {
		t.data.History = t.data.History[len(t.data.History)-historyLimit:]
	}

	if err := t.persistLocked(); err != nil {
		t.logger.Warn("failed to persist usage stats", zap.Error(err))
	}
}

func addTo(m map[string]Totals, key string, input, output int64) {
	entry := m[key]
	entry.Requests++
	entry.InputTokens += input
	entry.OutputTokens += output
	m[key] = entry
}

// Stats returns a snapshot of the current usage statistics.
func (t *Tracker) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return cloneStats(t.data)
}

// Reset zeroes all usage statistics and persists the empty document.
func (t *Tracker) Reset() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.data = emptyStats()
	return t.persistLocked()
}

func (t *Tracker) persistLocked() error {
	data, err := json.MarshalIndent(t.data, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(t.path, data, 0o644)
}

func cloneStats(s Stats) Stats {
	out := Stats{
		TotalRequests:     s.TotalRequests,
		TotalInputTokens:  s.TotalInputTokens,
		TotalOutputTokens: s.TotalOutputTokens,
		ByProvider:        make(map[string]Totals, len(s.ByProvider)),
		ByModel:           make(map[string]Totals, len(s.ByModel)),
		ByTier:            make(map[string]Totals, len(s.ByTier)),
		History:           make([]Entry, len(s.History)),
	}
	for k, v := range s.ByProvider {
		out.ByProvider[k] = v
	}
	for k, v := range s.ByModel {
		out.ByModel[k] = v
	}
	for k, v := range s.ByTier {
		out.ByTier[k] = v
	}
	copy(out.History, s.History)
	return out
}
