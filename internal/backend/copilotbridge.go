package backend

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/howard-nolan/claude-gateway/internal/config"
)

// copilotBridgeAdapter calls a locally-running IDE account service that
// exposes an Anthropic-compatible interface and handles its own auth
// internally — we only ever send it a placeholder bearer token.
type copilotBridgeAdapter struct {
	cfg    config.LocalConfig
	client *http.Client
	logger *zap.Logger
}

func newCopilotBridgeAdapter(cfg config.LocalConfig, client *http.Client, logger *zap.Logger) *copilotBridgeAdapter {
	return &copilotBridgeAdapter{cfg: cfg, client: client, logger: logger.With(zap.String("backend", "copilot_bridge"))}
}

func (a *copilotBridgeAdapter) Backend() config.BackendType { return config.BackendCopilotBridge }

func (a *copilotBridgeAdapter) Do(ctx context.Context, r Request) (*Result, error) {
	url := fmt.Sprintf("%s/v1/%s", a.cfg.BaseURL, r.Endpoint)

	headers := http.Header{
		"Content-Type":  []string{"application/json"},
		"Authorization": []string{"Bearer dummy"},
	}
	if r.AnthropicVersion != "" {
		headers.Set("anthropic-version", r.AnthropicVersion)
	}
	if beta := buildFilteredBetaHeader(r, config.BackendCopilotBridge); beta != "" {
		headers.Set("anthropic-beta", beta)
	}

	body, err := marshalBody(r.Body)
	if err != nil {
		return nil, fmt.Errorf("marshaling request body: %w", err)
	}

	a.logger.Info("forwarding request", zap.String("model", r.Model), zap.Bool("stream", r.Stream))
	return doRequest(ctx, a.client, http.MethodPost, url, headers, body)
}
