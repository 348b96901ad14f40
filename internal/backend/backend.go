// Package backend implements one adapter per upstream backend type. Every
// adapter builds an outbound HTTP request (URL, headers, body) from an
// already-transformed request and forwards it, returning either a buffered
// JSON response or a raw streaming passthrough.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/howard-nolan/claude-gateway/internal/config"
	"github.com/howard-nolan/claude-gateway/internal/credentials"
	"github.com/howard-nolan/claude-gateway/internal/transform"
)

// Request is everything an adapter needs to build and send the outbound
// call. Body has already been through the payload transformer (thinking
// strip, reasoning-param strip) by the time an adapter sees it.
type Request struct {
	Endpoint         string      // "messages" or "messages/count_tokens"
	Tier             config.Tier // which tier this request was classified into
	Model            string      // outbound model name, already tier-resolved
	Body             map[string]any
	Stream           bool
	AnthropicVersion string
	BetaHeader       string // raw inbound anthropic-beta, unfiltered
}

// Result is an adapter's outbound-call outcome. Body is always a live
// reader — callers that want buffered JSON read it fully themselves.
type Result struct {
	StatusCode int
	Header     http.Header
	Body       io.ReadCloser
}

// Adapter is implemented by every backend type.
type Adapter interface {
	// Backend returns this adapter's identifier, used for logging, usage
	// accounting, and the per-backend behavior tables in this package.
	Backend() config.BackendType

	// Do builds the outbound request from r and sends it, returning the
	// raw upstream response for the caller to relay or buffer.
	Do(ctx context.Context, r Request) (*Result, error)
}

// hopByHopHeaders are stripped from every upstream response before it's
// relayed to the client — the Go HTTP client has already decoded the body,
// so these would describe a transport encoding that no longer applies.
var hopByHopHeaders = []string{"Content-Encoding", "Content-Length", "Transfer-Encoding"}

func copyResponseHeaders(h http.Header) http.Header {
	out := h.Clone()
	for _, k := range hopByHopHeaders {
		out.Del(k)
	}
	return out
}

// NeedsStreamRepair reports whether a backend's SSE responses need the
// tool_use.input string-to-object repair pass (spec.md §4.2 step 5).
func NeedsStreamRepair(b config.BackendType) bool {
	return b == config.BackendCustom || b == config.BackendGeminiBridge
}

// PostFilterResponse applies a backend's buffered-response post-filter, in
// place, to a decoded JSON response body. Only the anthropic backend has
// one: thinking/redacted_thinking blocks must never reach the client, even
// when the real Anthropic API happens to echo them back.
func PostFilterResponse(b config.BackendType, body map[string]any) {
	if b != config.BackendAnthropic {
		return
	}
	content, ok := body["content"].([]any)
	if !ok {
		return
	}
	filtered := content[:0]
	for _, c := range content {
		block, ok := c.(map[string]any)
		if ok {
			if t, _ := block["type"].(string); t == "thinking" || t == "redacted_thinking" {
				continue
			}
		}
		filtered = append(filtered, c)
	}
	body["content"] = filtered
}

// Usage extracts input/output token counts from a decoded response body's
// "usage" object, if present.
func Usage(body map[string]any) (input, output int64, ok bool) {
	usage, isMap := body["usage"].(map[string]any)
	if !isMap {
		return 0, 0, false
	}
	input, _ = numberToInt64(usage["input_tokens"])
	output, _ = numberToInt64(usage["output_tokens"])
	return input, output, true
}

func numberToInt64(v any) (int64, bool) {
	f, ok := v.(float64)
	if !ok {
		return 0, false
	}
	return int64(f), true
}

// buildFilteredBetaHeader filters the inbound anthropic-beta value for the
// given outbound model/backend, per spec.md §4.2 step 3.
func buildFilteredBetaHeader(r Request, backend config.BackendType) string {
	return transform.FilterBetaHeader(r.BetaHeader, r.Model, string(backend))
}

// marshalBody serializes the (already-transformed) request body.
func marshalBody(body map[string]any) ([]byte, error) {
	return json.Marshal(body)
}

// doRequest is the shared "build an *http.Request, send it, return a
// Result" tail every adapter ends with.
func doRequest(ctx context.Context, client *http.Client, method, url string, headers http.Header, body []byte) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header = headers

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	return &Result{
		StatusCode: resp.StatusCode,
		Header:     copyResponseHeaders(resp.Header),
		Body:       resp.Body,
	}, nil
}

// Registry holds one constructed adapter per backend type, built from
// static Config.
type Registry struct {
	adapters map[config.BackendType]Adapter
}

// NewRegistry constructs every adapter from cfg and the shared OAuth
// credential manager (used only by the anthropic adapter).
func NewRegistry(cfg *config.Config, creds *credentials.Manager, logger *zap.Logger) *Registry {
	httpClient := &http.Client{Timeout: cfg.Server.RequestTimeout}

	r := &Registry{adapters: map[config.BackendType]Adapter{}}
	r.adapters[config.BackendAnthropic] = newAnthropicAdapter(cfg.Anthropic, creds, httpClient, logger)
	r.adapters[config.BackendGLM] = newGLMAdapter(cfg.GLM, httpClient, logger)
	r.adapters[config.BackendGeminiBridge] = newGeminiBridgeAdapter(cfg.GeminiBridge, httpClient, logger)
	r.adapters[config.BackendCopilotBridge] = newCopilotBridgeAdapter(cfg.CopilotBridge, httpClient, logger)
	r.adapters[config.BackendOpenRouter] = newOpenRouterAdapter(cfg.OpenRouter, httpClient, logger)
	r.adapters[config.BackendCustom] = newCustomAdapter(cfg.Custom, httpClient, logger)
	return r
}

// Get returns the adapter for a backend type, or false if none is
// registered (only ever BackendMisconfigured, which the router short
// circuits before an adapter is ever needed).
func (r *Registry) Get(b config.BackendType) (Adapter, bool) {
	a, ok := r.adapters[b]
	return a, ok
}

// NewRegistryFromAdapters builds a Registry directly from a caller-supplied
// adapter set, bypassing config-driven construction. Exported for tests in
// other packages that need to substitute a fake Adapter.
func NewRegistryFromAdapters(adapters map[config.BackendType]Adapter) *Registry {
	return &Registry{adapters: adapters}
}
