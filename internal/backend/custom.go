package backend

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/howard-nolan/claude-gateway/internal/config"
	"github.com/howard-nolan/claude-gateway/internal/transform"
)

// customAdapter calls a generic Anthropic-compatible backend that rejects
// non-standard fields — every request body is deep-whitelist-sanitized
// first (spec.md §4.2 step 4).
type customAdapter struct {
	cfg    config.TieredConfig
	client *http.Client
	logger *zap.Logger
}

func newCustomAdapter(cfg config.TieredConfig, client *http.Client, logger *zap.Logger) *customAdapter {
	return &customAdapter{cfg: cfg, client: client, logger: logger.With(zap.String("backend", "custom"))}
}

func (a *customAdapter) Backend() config.BackendType { return config.BackendCustom }

func (a *customAdapter) Do(ctx context.Context, r Request) (*Result, error) {
	base := strings.TrimRight(a.cfg.BaseURL, "/")
	var url string
	if a.cfg.SkipV1 {
		url = fmt.Sprintf("%s/%s", base, r.Endpoint)
	} else {
		url = fmt.Sprintf("%s/v1/%s", base, r.Endpoint)
	}

	headers := http.Header{
		"Content-Type": []string{"application/json"},
		"x-api-key":    []string{a.cfg.APIKey},
	}
	if r.AnthropicVersion != "" {
		headers.Set("anthropic-version", r.AnthropicVersion)
	}
	if beta := buildFilteredBetaHeader(r, config.BackendCustom); beta != "" {
		headers.Set("anthropic-beta", beta)
	}

	transform.SanitizeForCustomProvider(r.Body)

	body, err := marshalBody(r.Body)
	if err != nil {
		return nil, fmt.Errorf("marshaling request body: %w", err)
	}

	a.logger.Info("forwarding sanitized request",
		zap.String("model", r.Model), zap.Bool("stream", r.Stream), zap.Int("body_bytes", len(body)))
	return doRequest(ctx, a.client, http.MethodPost, url, headers, body)
}
