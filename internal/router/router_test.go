package router

import (
	"testing"

	"github.com/howard-nolan/claude-gateway/internal/config"
	"github.com/stretchr/testify/assert"
)

func always(b bool) func(config.Tier) bool { return func(config.Tier) bool { return b } }

func TestClassifyTierByNickname(t *testing.T) {
	rc := config.RuntimeConfig{}
	assert.Equal(t, config.TierHaiku, ClassifyTier("claude-3-5-haiku-20241022", rc))
	assert.Equal(t, config.TierSonnet, ClassifyTier("claude-sonnet-4-5-20250929", rc))
	assert.Equal(t, config.TierOpus, ClassifyTier("claude-opus-4-20250514", rc))
}

func TestClassifyTierByExactConfiguredModel(t *testing.T) {
	rc := config.RuntimeConfig{
		Sonnet: config.TierRoute{Provider: config.BackendGLM, Model: "glm-4.7"},
	}
	assert.Equal(t, config.TierSonnet, ClassifyTier("glm-4.7", rc))
}

func TestClassifyTierGLMPrefixHeuristics(t *testing.T) {
	rc := config.RuntimeConfig{}
	assert.Equal(t, config.TierHaiku, ClassifyTier("glm-4.5-flash", rc))
	assert.Equal(t, config.TierHaiku, ClassifyTier("zai-5", rc))
	assert.Equal(t, config.TierSonnet, ClassifyTier("glm-4.7", rc))
}

func TestClassifyTierGeminiPrefixHeuristics(t *testing.T) {
	rc := config.RuntimeConfig{}
	assert.Equal(t, config.TierHaiku, ClassifyTier("gemini-3-flash", rc))
	assert.Equal(t, config.TierSonnet, ClassifyTier("gemini-3-pro-high", rc))
}

func TestClassifyTierFallsBackToHaiku(t *testing.T) {
	rc := config.RuntimeConfig{}
	assert.Equal(t, config.TierHaiku, ClassifyTier("some-unknown-model", rc))
}

func TestRouteAnthropicPassesModelThrough(t *testing.T) {
	rc := config.RuntimeConfig{Sonnet: config.TierRoute{Provider: config.BackendAnthropic}}
	avail := Availability{}
	d := Route("claude-sonnet-4-5-20250929", rc, avail)
	assert.False(t, d.Misconfigured)
	assert.Equal(t, config.BackendAnthropic, d.Backend)
	assert.Equal(t, "claude-sonnet-4-5-20250929", d.OutboundModel)
}

func TestRouteStripsMinuteSuffix(t *testing.T) {
	rc := config.RuntimeConfig{Sonnet: config.TierRoute{Provider: config.BackendAnthropic}}
	d := Route("claude-sonnet-4-5-20250929[1m]", rc, Availability{})
	assert.Equal(t, "claude-sonnet-4-5-20250929", d.OutboundModel)
}

func TestRouteUsesConfiguredModelForNonAnthropicBackend(t *testing.T) {
	rc := config.RuntimeConfig{Sonnet: config.TierRoute{Provider: config.BackendGLM, Model: "glm-4.7"}}
	avail := Availability{GLMConfigured: always(true)}
	d := Route("claude-sonnet-4-5-20250929", rc, avail)
	assert.Equal(t, config.BackendGLM, d.Backend)
	assert.Equal(t, "glm-4.7", d.OutboundModel)
}

func TestRouteReturnsMisconfiguredWhenPrerequisitesMissing(t *testing.T) {
	rc := config.RuntimeConfig{Sonnet: config.TierRoute{Provider: config.BackendGLM, Model: "glm-4.7"}}
	avail := Availability{GLMConfigured: always(false)}
	d := Route("claude-sonnet-4-5-20250929", rc, avail)
	assert.True(t, d.Misconfigured)
	assert.Equal(t, config.BackendMisconfigured, d.Backend)
	assert.Equal(t, config.TierSonnet, d.Tier)
}

func TestRouteGeminiBridgeRequiresEnabledFlag(t *testing.T) {
	rc := config.RuntimeConfig{Haiku: config.TierRoute{Provider: config.BackendGeminiBridge, Model: "gemini-3-flash"}}
	d := Route("claude-3-5-haiku-20241022", rc, Availability{GeminiBridgeEnabled: false})
	assert.True(t, d.Misconfigured)

	d = Route("claude-3-5-haiku-20241022", rc, Availability{GeminiBridgeEnabled: true})
	assert.False(t, d.Misconfigured)
	assert.Equal(t, "gemini-3-flash", d.OutboundModel)
}

func TestRouteCopilotBridgeRequiresEnabledFlag(t *testing.T) {
	rc := config.RuntimeConfig{Opus: config.TierRoute{Provider: config.BackendCopilotBridge, Model: "claude-opus-4.5"}}
	d := Route("claude-opus-4-20250514", rc, Availability{CopilotBridgeEnabled: false})
	assert.True(t, d.Misconfigured)
}

func TestRouteOpenRouterRequiresAPIKey(t *testing.T) {
	rc := config.RuntimeConfig{Sonnet: config.TierRoute{Provider: config.BackendOpenRouter, Model: "anthropic/claude-sonnet-4.5"}}
	d := Route("claude-sonnet-4-5-20250929", rc, Availability{OpenRouterConfigured: false})
	assert.True(t, d.Misconfigured)
}

func TestRouteCustomRequiresAPIKeyAndBaseURL(t *testing.T) {
	rc := config.RuntimeConfig{Sonnet: config.TierRoute{Provider: config.BackendCustom, Model: "claude-sonnet-4.5"}}
	d := Route("claude-sonnet-4-5-20250929", rc, Availability{CustomConfigured: false})
	assert.True(t, d.Misconfigured)
}

func TestNewAvailabilityDerivesGLMConfiguredPerTier(t *testing.T) {
	cfg := config.Config{}
	cfg.GLM.Sonnet = config.TierEndpoint{APIKey: "k", BaseURL: "https://x"}
	avail := NewAvailability(&cfg)
	assert.True(t, avail.GLMConfigured(config.TierSonnet))
	assert.False(t, avail.GLMConfigured(config.TierHaiku))
}
