package config

import (
	"encoding/json"
	"os"
	"sync"
	"time"
)

// BackendType is one of the upstream backends the router can select.
type BackendType string

const (
	BackendAnthropic     BackendType = "anthropic"
	BackendGLM           BackendType = "glm"
	BackendGeminiBridge  BackendType = "gemini_bridge"
	BackendCopilotBridge BackendType = "copilot_bridge"
	BackendOpenRouter    BackendType = "openrouter"
	BackendCustom        BackendType = "custom"
	BackendMisconfigured BackendType = "misconfigured"
)

// Tier is one of the three qualitative model sizes the router classifies
// incoming requests into.
type Tier string

const (
	TierHaiku  Tier = "haiku"
	TierSonnet Tier = "sonnet"
	TierOpus   Tier = "opus"
)

// TierRoute is the provider + model chosen for one tier.
type TierRoute struct {
	Provider BackendType `json:"provider"`
	Model    string      `json:"model"`
}

// RuntimeConfig is the mutable tier -> (backend, model) routing table.
// It is the only thing in the gateway that changes after startup, and the
// only thing persisted to config.json.
type RuntimeConfig struct {
	Sonnet      TierRoute `json:"sonnet"`
	Haiku       TierRoute `json:"haiku"`
	Opus        TierRoute `json:"opus"`
	LastUpdated time.Time `json:"last_updated"`
}

// RuntimeStore owns RuntimeConfig and serializes every read and write
// behind a single mutex, per spec.md §5's "one writer lock for
// RuntimeConfig; readers use the same lock" rule.
type RuntimeStore struct {
	path string
	mu   sync.Mutex
	cfg  RuntimeConfig
}

// NewRuntimeStore loads RuntimeConfig from path if it exists, or seeds it
// from the static Config's per-tier defaults and writes it out.
func NewRuntimeStore(path string, cfg *Config) (*RuntimeStore, error) {
	s := &RuntimeStore{path: path}

	if data, err := os.ReadFile(path); err == nil {
		var loaded RuntimeConfig
		if err := json.Unmarshal(data, &loaded); err == nil {
			s.cfg = loaded
			return s, nil
		}
		// A corrupted file falls through to defaults below rather than
		// failing startup — the same tolerance spec.md §4.6 requires of
		// the usage tracker's load path.
	}

	s.cfg = RuntimeConfig{
		Sonnet:      TierRoute{Provider: BackendGeminiBridge, Model: cfg.GeminiBridge.SonnetModel},
		Haiku:       TierRoute{Provider: BackendGeminiBridge, Model: cfg.GeminiBridge.HaikuModel},
		Opus:        TierRoute{Provider: BackendAnthropic, Model: cfg.Anthropic.OpusModel},
		LastUpdated: time.Now(),
	}
	return s, s.persistLocked()
}

// Snapshot returns a copy of the current RuntimeConfig.
func (s *RuntimeStore) Snapshot() RuntimeConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// RouteFor returns the configured TierRoute for a tier.
func (s *RuntimeStore) RouteFor(tier Tier) TierRoute {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch tier {
	case TierSonnet:
		return s.cfg.Sonnet
	case TierOpus:
		return s.cfg.Opus
	default:
		return s.cfg.Haiku
	}
}

// Update applies a partial set of changes atomically and persists the
// result. Only the fields the apply closure assigns change; callers set
// just the tiers/fields they want to change.
func (s *RuntimeStore) Update(apply func(*RuntimeConfig)) (RuntimeConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	apply(&s.cfg)
	s.cfg.LastUpdated = time.Now()

	if err := s.persistLocked(); err != nil {
		return s.cfg, err
	}
	return s.cfg, nil
}

func (s *RuntimeStore) persistLocked() error {
	data, err := json.MarshalIndent(s.cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o644)
}
