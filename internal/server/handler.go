package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/howard-nolan/claude-gateway/internal/backend"
	"github.com/howard-nolan/claude-gateway/internal/config"
	"github.com/howard-nolan/claude-gateway/internal/router"
	"github.com/howard-nolan/claude-gateway/internal/stream"
	"github.com/howard-nolan/claude-gateway/internal/transform"
)

const defaultIncomingModel = "claude-sonnet-4-5-20250929"

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// handleHealth reports liveness plus a summary of current routing and
// backend availability, per spec.md §6.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	avail := s.availability()
	runtime := s.runtime.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"routing": map[string]config.TierRoute{
			"haiku":  runtime.Haiku,
			"sonnet": runtime.Sonnet,
			"opus":   runtime.Opus,
		},
		"backends": map[string]bool{
			"gemini_bridge":  avail.GeminiBridgeEnabled,
			"copilot_bridge": avail.CopilotBridgeEnabled,
			"openrouter":     avail.OpenRouterConfigured,
			"custom":         avail.CustomConfigured,
		},
		"oauth_configured": s.creds.HasCredentials(),
	})
}

// handleMessages implements the dispatcher pipeline from spec.md §4.5 for
// POST /v1/messages.
func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "internal_error", "failed to read request body: "+err.Error())
		return
	}
	s.proxyRequest(r, w, raw, "messages")
}

// handleCountTokens forwards to messages/count_tokens only when the tier's
// configured backend is native Anthropic; otherwise 501 not_supported, per
// spec.md §4.5 and the restored original_source/server/api/endpoints.py
// behavior.
func (s *Server) handleCountTokens(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "internal_error", "failed to read request body: "+err.Error())
		return
	}

	_, model := decodeBody(raw)
	decision := router.Route(model, s.runtime.Snapshot(), s.availability())
	if decision.Misconfigured || decision.Backend != config.BackendAnthropic {
		writeError(w, http.StatusNotImplemented, "not_supported",
			"count_tokens is only supported when the target backend is native Anthropic")
		return
	}

	s.proxyRequest(r, w, raw, "messages/count_tokens")
}

// proxyRequest is the shared pipeline behind both messages endpoints:
// authenticate has already run; this does parse -> route -> transform ->
// adapter -> relay/record, per spec.md §4.5.
func (s *Server) proxyRequest(r *http.Request, w http.ResponseWriter, raw []byte, endpoint string) {
	bodyJSON, incomingModel := decodeBody(raw)

	decision := router.Route(incomingModel, s.runtime.Snapshot(), s.availability())
	s.collector.ObserveRouteDecision(string(decision.Tier), string(decision.Backend), decision.Misconfigured)

	if decision.Misconfigured {
		msg := "Backend configured for " + string(decision.Tier) +
			" is missing required credentials (API key and/or base URL). " +
			"Set the appropriate environment variables or switch providers via the dashboard."
		s.logger.Error("misconfigured backend", zap.String("tier", string(decision.Tier)))
		writeError(w, http.StatusServiceUnavailable, "configuration_error", msg)
		return
	}

	transform.StripThinkingBlocks(bodyJSON)
	transform.StripReasoningParams(bodyJSON, decision.OutboundModel, string(decision.Backend))
	bodyJSON["model"] = decision.OutboundModel

	streamRequested, _ := bodyJSON["stream"].(bool)

	adapter, ok := s.registry.Get(decision.Backend)
	if !ok {
		writeError(w, http.StatusInternalServerError, "internal_error", "no adapter registered for backend "+string(decision.Backend))
		return
	}

	req := backend.Request{
		Endpoint:         endpoint,
		Tier:             decision.Tier,
		Model:            decision.OutboundModel,
		Body:             bodyJSON,
		Stream:           streamRequested,
		AnthropicVersion: r.Header.Get("anthropic-version"),
		BetaHeader:       r.Header.Get("anthropic-beta"),
	}

	start := time.Now()
	result, err := adapter.Do(r.Context(), req)
	if err != nil {
		s.collector.ObserveBackendRequest(string(decision.Backend), string(decision.Tier), "error", time.Since(start))
		s.logger.Error("upstream call failed", zap.String("backend", string(decision.Backend)), zap.Error(err))
		writeError(w, http.StatusBadGateway, "upstream_error", "upstream request failed: "+err.Error())
		return
	}
	defer result.Body.Close()
	s.collector.ObserveBackendRequest(string(decision.Backend), string(decision.Tier), strconv.Itoa(result.StatusCode), time.Since(start))

	for k, v := range result.Header {
		w.Header()[k] = v
	}

	if result.StatusCode != http.StatusOK {
		w.WriteHeader(result.StatusCode)
		io.Copy(w, result.Body)
		return
	}

	if streamRequested {
		if err := stream.Relay(w, result.Body, backend.NeedsStreamRepair(decision.Backend)); err != nil {
			s.logger.Error("stream relay failed", zap.Error(err))
		}
		return
	}

	respRaw, err := io.ReadAll(result.Body)
	if err != nil {
		writeError(w, http.StatusBadGateway, "upstream_error", "failed to read upstream response: "+err.Error())
		return
	}

	var respJSON map[string]any
	if err := json.Unmarshal(respRaw, &respJSON); err != nil {
		w.WriteHeader(result.StatusCode)
		w.Write(respRaw)
		return
	}

	backend.PostFilterResponse(decision.Backend, respJSON)

	if input, output, ok := backend.Usage(respJSON); ok {
		s.tracker.Record(input, output, string(decision.Backend), decision.OutboundModel, string(decision.Tier))
		s.collector.ObserveBackendTokens(string(decision.Backend), decision.OutboundModel, string(decision.Tier), input, output)
	}

	writeJSON(w, result.StatusCode, respJSON)
}

func decodeBody(raw []byte) (map[string]any, string) {
	body := map[string]any{}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &body)
	}
	model, _ := body["model"].(string)
	if model == "" {
		model = defaultIncomingModel
		body["model"] = model
	}
	return body, model
}

// handleGetConfig returns the current RuntimeConfig plus backend
// availability and the per-backend model choices (spec.md §6 GET /config).
func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	avail := s.availability()
	writeJSON(w, http.StatusOK, map[string]any{
		"runtime": s.runtime.Snapshot(),
		"available_backends": map[string]bool{
			"anthropic":      true,
			"glm":            avail.GLMConfigured(config.TierHaiku) || avail.GLMConfigured(config.TierSonnet) || avail.GLMConfigured(config.TierOpus),
			"gemini_bridge":  avail.GeminiBridgeEnabled,
			"copilot_bridge": avail.CopilotBridgeEnabled,
			"openrouter":     avail.OpenRouterConfigured,
			"custom":         avail.CustomConfigured,
		},
		"model_choices": map[string][]string{
			"anthropic":      {s.cfg.Anthropic.HaikuModel, s.cfg.Anthropic.SonnetModel, s.cfg.Anthropic.OpusModel},
			"glm":            {s.cfg.GLM.Haiku.Model, s.cfg.GLM.Sonnet.Model, s.cfg.GLM.Opus.Model},
			"gemini_bridge":  {s.cfg.GeminiBridge.HaikuModel, s.cfg.GeminiBridge.SonnetModel, s.cfg.GeminiBridge.OpusModel},
			"copilot_bridge": {s.cfg.CopilotBridge.HaikuModel, s.cfg.CopilotBridge.SonnetModel, s.cfg.CopilotBridge.OpusModel},
			"openrouter":     {s.cfg.OpenRouter.HaikuModel, s.cfg.OpenRouter.SonnetModel, s.cfg.OpenRouter.OpusModel},
			"custom":         {s.cfg.Custom.HaikuModel, s.cfg.Custom.SonnetModel, s.cfg.Custom.OpusModel},
		},
	})
}

type configPatch struct {
	SonnetProvider *string `json:"sonnet_provider"`
	HaikuProvider  *string `json:"haiku_provider"`
	OpusProvider   *string `json:"opus_provider"`
	SonnetModel    *string `json:"sonnet_model"`
	HaikuModel     *string `json:"haiku_model"`
	OpusModel      *string `json:"opus_model"`
}

// handlePostConfig applies a partial RuntimeConfig update atomically and
// persists it (spec.md §6 POST /config).
func (s *Server) handlePostConfig(w http.ResponseWriter, r *http.Request) {
	var patch configPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "internal_error", "invalid JSON body: "+err.Error())
		return
	}

	updated, err := s.runtime.Update(func(cfg *config.RuntimeConfig) {
		if patch.SonnetProvider != nil {
			cfg.Sonnet.Provider = config.BackendType(*patch.SonnetProvider)
		}
		if patch.HaikuProvider != nil {
			cfg.Haiku.Provider = config.BackendType(*patch.HaikuProvider)
		}
		if patch.OpusProvider != nil {
			cfg.Opus.Provider = config.BackendType(*patch.OpusProvider)
		}
		if patch.SonnetModel != nil {
			cfg.Sonnet.Model = *patch.SonnetModel
		}
		if patch.HaikuModel != nil {
			cfg.Haiku.Model = *patch.HaikuModel
		}
		if patch.OpusModel != nil {
			cfg.Opus.Model = *patch.OpusModel
		}
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to persist config: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleListFavorites(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.favorites.List())
}

func (s *Server) handleAddFavorite(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "internal_error", "invalid JSON body: "+err.Error())
		return
	}
	fav, err := s.favorites.Add(body.Name, s.runtime.Snapshot())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to save favorite: "+err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, fav)
}

func (s *Server) handleRemoveFavorite(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "internal_error", "favorite index must be an integer")
		return
	}
	if err := s.favorites.RemoveAt(index); err != nil {
		writeError(w, http.StatusNotFound, "internal_error", err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetLogs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"logs": s.logBuffer.Entries()})
}

func (s *Server) handleClearLogs(w http.ResponseWriter, r *http.Request) {
	s.logBuffer.Clear()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUsageStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.tracker.Stats())
}

func (s *Server) handleUsageReset(w http.ResponseWriter, r *http.Request) {
	if err := s.tracker.Reset(); err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "failed to reset usage stats: "+err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
