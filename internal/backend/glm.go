package backend

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/howard-nolan/claude-gateway/internal/config"
)

// glmAdapter calls a GLM/Z.AI-style Anthropic-compatible API with a
// per-tier API key and base URL.
type glmAdapter struct {
	cfg    config.TieredAPIConfig
	client *http.Client
	logger *zap.Logger
}

func newGLMAdapter(cfg config.TieredAPIConfig, client *http.Client, logger *zap.Logger) *glmAdapter {
	return &glmAdapter{cfg: cfg, client: client, logger: logger.With(zap.String("backend", "glm"))}
}

func (a *glmAdapter) Backend() config.BackendType { return config.BackendGLM }

func (a *glmAdapter) endpointFor(tier config.Tier) config.TierEndpoint {
	switch tier {
	case config.TierHaiku:
		return a.cfg.Haiku
	case config.TierOpus:
		return a.cfg.Opus
	default:
		return a.cfg.Sonnet
	}
}

func (a *glmAdapter) Do(ctx context.Context, r Request) (*Result, error) {
	ep := a.endpointFor(r.Tier)
	url := fmt.Sprintf("%s/v1/%s", strings.TrimRight(ep.BaseURL, "/"), r.Endpoint)

	headers := http.Header{
		"Content-Type": []string{"application/json"},
		"x-api-key":    []string{ep.APIKey},
	}
	if r.AnthropicVersion != "" {
		headers.Set("anthropic-version", r.AnthropicVersion)
	}
	if beta := buildFilteredBetaHeader(r, config.BackendGLM); beta != "" {
		headers.Set("anthropic-beta", beta)
	}

	body, err := marshalBody(r.Body)
	if err != nil {
		return nil, fmt.Errorf("marshaling request body: %w", err)
	}

	a.logger.Info("forwarding request", zap.String("model", r.Model), zap.Bool("stream", r.Stream))
	return doRequest(ctx, a.client, http.MethodPost, url, headers, body)
}
