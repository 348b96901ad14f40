package backend

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/howard-nolan/claude-gateway/internal/config"
)

// geminiBridgeAdapter calls the locally-supervised gemini-bridge helper
// process, which exposes an Anthropic-compatible interface over a fixed,
// internal-only API key.
type geminiBridgeAdapter struct {
	cfg    config.SubprocessConfig
	client *http.Client
	logger *zap.Logger
}

func newGeminiBridgeAdapter(cfg config.SubprocessConfig, client *http.Client, logger *zap.Logger) *geminiBridgeAdapter {
	return &geminiBridgeAdapter{cfg: cfg, client: client, logger: logger.With(zap.String("backend", "gemini_bridge"))}
}

func (a *geminiBridgeAdapter) Backend() config.BackendType { return config.BackendGeminiBridge }

func (a *geminiBridgeAdapter) baseURL() string {
	return fmt.Sprintf("http://localhost:%d", a.cfg.Port)
}

func (a *geminiBridgeAdapter) Do(ctx context.Context, r Request) (*Result, error) {
	url := fmt.Sprintf("%s/v1/%s", a.baseURL(), r.Endpoint)

	headers := http.Header{
		"Content-Type":      []string{"application/json"},
		"x-api-key":         []string{"test"},
		"anthropic-version": []string{"2023-06-01"},
	}
	if beta := buildFilteredBetaHeader(r, config.BackendGeminiBridge); beta != "" {
		headers.Set("anthropic-beta", beta)
	}

	body, err := marshalBody(r.Body)
	if err != nil {
		return nil, fmt.Errorf("marshaling request body: %w", err)
	}

	a.logger.Info("forwarding request",
		zap.String("model", r.Model), zap.Bool("stream", r.Stream),
		zap.Int("messages", countMessages(r.Body)))
	return doRequest(ctx, a.client, http.MethodPost, url, headers, body)
}

func countMessages(body map[string]any) int {
	if messages, ok := body["messages"].([]any); ok {
		return len(messages)
	}
	return 0
}
