package backend

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/howard-nolan/claude-gateway/internal/config"
	"github.com/howard-nolan/claude-gateway/internal/credentials"
)

// anthropicAdapter calls the real Anthropic API, authenticating with a
// bearer token from the OAuth credential manager.
type anthropicAdapter struct {
	cfg    config.AnthropicConfig
	creds  *credentials.Manager
	client *http.Client
	logger *zap.Logger
}

func newAnthropicAdapter(cfg config.AnthropicConfig, creds *credentials.Manager, client *http.Client, logger *zap.Logger) *anthropicAdapter {
	return &anthropicAdapter{cfg: cfg, creds: creds, client: client, logger: logger.With(zap.String("backend", "anthropic"))}
}

func (a *anthropicAdapter) Backend() config.BackendType { return config.BackendAnthropic }

func (a *anthropicAdapter) Do(ctx context.Context, r Request) (*Result, error) {
	url := fmt.Sprintf("%s/v1/%s", a.cfg.BaseURL, r.Endpoint)

	headers := http.Header{"Content-Type": []string{"application/json"}}

	token, err := a.creds.CurrentAccessToken(ctx)
	if err != nil {
		return nil, err
	}
	if token != "" {
		headers.Set("Authorization", "Bearer "+token)
	}
	if r.AnthropicVersion != "" {
		headers.Set("anthropic-version", r.AnthropicVersion)
	}
	if beta := buildFilteredBetaHeader(r, config.BackendAnthropic); beta != "" {
		headers.Set("anthropic-beta", beta)
	}

	body, err := marshalBody(r.Body)
	if err != nil {
		return nil, fmt.Errorf("marshaling request body: %w", err)
	}

	a.logger.Info("forwarding request", zap.String("model", r.Model), zap.Bool("stream", r.Stream))
	return doRequest(ctx, a.client, http.MethodPost, url, headers, body)
}
