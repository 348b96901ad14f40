// Package router implements tier classification and per-tier backend
// selection. Everything here is a pure function of its inputs — no I/O, no
// shared state — so the request dispatcher can call it on every request
// without synchronization of its own.
package router

import (
	"strings"

	"github.com/howard-nolan/claude-gateway/internal/config"
)

// Decision is the router's output for one request: which backend to call,
// what model name to send it, the tier the request was classified into,
// and (for misconfigured) which backend type the operator had selected.
type Decision struct {
	Tier          config.Tier
	Backend       config.BackendType
	OutboundModel string
	Misconfigured bool
	// SelectedBackend is the backend type configured for the tier; set only
	// when Misconfigured is true (Backend is then BackendMisconfigured).
	SelectedBackend config.BackendType
}

// Availability carries the static, process-lifetime facts the router
// needs to validate a tier's configured backend without reaching into
// config.Config directly — keeping Route a pure function of plain values.
type Availability struct {
	GeminiBridgeEnabled  bool
	CopilotBridgeEnabled bool
	GLMConfigured        func(tier config.Tier) bool
	OpenRouterConfigured bool
	CustomConfigured     bool
}

// NewAvailability derives an Availability from a loaded Config.
func NewAvailability(cfg *config.Config) Availability {
	return Availability{
		GeminiBridgeEnabled:  cfg.GeminiBridge.Enabled,
		CopilotBridgeEnabled: cfg.CopilotBridge.Enabled,
		GLMConfigured: func(tier config.Tier) bool {
			ep := tierEndpoint(cfg, tier)
			return ep.APIKey != "" && ep.BaseURL != ""
		},
		OpenRouterConfigured: cfg.OpenRouter.APIKey != "",
		CustomConfigured:     cfg.Custom.APIKey != "" && cfg.Custom.BaseURL != "",
	}
}

func tierEndpoint(cfg *config.Config, tier config.Tier) config.TierEndpoint {
	switch tier {
	case config.TierHaiku:
		return cfg.GLM.Haiku
	case config.TierOpus:
		return cfg.GLM.Opus
	default:
		return cfg.GLM.Sonnet
	}
}

// ClassifyTier classifies an incoming model name into a TierSelector.
// First match wins: exact match against any tier's configured backend
// model name, then the tier nicknames as substrings, then provider-family
// prefix heuristics, then a haiku fallback.
func ClassifyTier(incomingModel string, runtime config.RuntimeConfig) config.Tier {
	switch incomingModel {
	case runtime.Haiku.Model:
		if runtime.Haiku.Model != "" {
			return config.TierHaiku
		}
	case runtime.Sonnet.Model:
		if runtime.Sonnet.Model != "" {
			return config.TierSonnet
		}
	case runtime.Opus.Model:
		if runtime.Opus.Model != "" {
			return config.TierOpus
		}
	}

	lower := strings.ToLower(incomingModel)
	switch {
	case strings.Contains(lower, "haiku"):
		return config.TierHaiku
	case strings.Contains(lower, "sonnet"):
		return config.TierSonnet
	case strings.Contains(lower, "opus"):
		return config.TierOpus
	}

	switch {
	case strings.HasPrefix(lower, "glm-") || strings.HasPrefix(lower, "zai-"):
		if strings.Contains(lower, "flash") || strings.Contains(lower, "5") {
			return config.TierHaiku
		}
		return config.TierSonnet
	case strings.HasPrefix(lower, "gemini-"):
		if strings.Contains(lower, "flash") {
			return config.TierHaiku
		}
		return config.TierSonnet
	}

	return config.TierHaiku
}

// Route classifies the request and validates the configured backend's
// prerequisites for that tier, returning a misconfigured Decision rather
// than silently falling back to a different backend.
func Route(incomingModel string, runtime config.RuntimeConfig, avail Availability) Decision {
	tier := ClassifyTier(incomingModel, runtime)
	route := routeFor(runtime, tier)

	ok := false
	switch route.Provider {
	case config.BackendGeminiBridge:
		ok = avail.GeminiBridgeEnabled
	case config.BackendGLM:
		ok = avail.GLMConfigured(tier)
	case config.BackendCopilotBridge:
		ok = avail.CopilotBridgeEnabled
	case config.BackendOpenRouter:
		ok = avail.OpenRouterConfigured
	case config.BackendCustom:
		ok = avail.CustomConfigured
	case config.BackendAnthropic:
		ok = true
	}

	if !ok {
		return Decision{Tier: tier, Backend: config.BackendMisconfigured, Misconfigured: true, SelectedBackend: route.Provider}
	}

	outboundModel := route.Model
	if route.Provider == config.BackendAnthropic {
		outboundModel = incomingModel
	}
	outboundModel = stripMinuteSuffix(outboundModel)

	return Decision{Tier: tier, Backend: route.Provider, OutboundModel: outboundModel}
}

func routeFor(runtime config.RuntimeConfig, tier config.Tier) config.TierRoute {
	switch tier {
	case config.TierSonnet:
		return runtime.Sonnet
	case config.TierOpus:
		return runtime.Opus
	default:
		return runtime.Haiku
	}
}

// stripMinuteSuffix removes a literal "[1m]" suffix some clients append to
// model identifiers — an Anthropic-internal context-window annotation that
// backends other than Anthropic itself don't understand.
func stripMinuteSuffix(model string) string {
	return strings.TrimSuffix(model, "[1m]")
}
