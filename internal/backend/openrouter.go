package backend

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/howard-nolan/claude-gateway/internal/config"
)

// openrouterAdapter calls the OpenRouter aggregator, which requires the
// HTTP-Referer and X-Title identification headers on top of the bearer
// token.
type openrouterAdapter struct {
	cfg    config.TieredConfig
	client *http.Client
	logger *zap.Logger
}

func newOpenRouterAdapter(cfg config.TieredConfig, client *http.Client, logger *zap.Logger) *openrouterAdapter {
	return &openrouterAdapter{cfg: cfg, client: client, logger: logger.With(zap.String("backend", "openrouter"))}
}

func (a *openrouterAdapter) Backend() config.BackendType { return config.BackendOpenRouter }

func (a *openrouterAdapter) Do(ctx context.Context, r Request) (*Result, error) {
	url := fmt.Sprintf("%s/v1/%s", a.cfg.BaseURL, r.Endpoint)

	headers := http.Header{
		"Content-Type":  []string{"application/json"},
		"Authorization": []string{"Bearer " + a.cfg.APIKey},
		"HTTP-Referer":  []string{"https://claude-gateway.local"},
		"X-Title":       []string{"Claude Gateway"},
	}
	if r.AnthropicVersion != "" {
		headers.Set("anthropic-version", r.AnthropicVersion)
	}
	if beta := buildFilteredBetaHeader(r, config.BackendOpenRouter); beta != "" {
		headers.Set("anthropic-beta", beta)
	}

	body, err := marshalBody(r.Body)
	if err != nil {
		return nil, fmt.Errorf("marshaling request body: %w", err)
	}

	a.logger.Info("forwarding request", zap.String("model", r.Model), zap.Bool("stream", r.Stream))
	return doRequest(ctx, a.client, http.MethodPost, url, headers, body)
}
